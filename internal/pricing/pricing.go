// Package pricing computes percentile-based price guidance from historical
// completed-job prices.
package pricing

import (
	"math"
	"sort"
)

// Guidance is the percentile summary surfaced to customers and used to seed
// quick-book estimated prices (the median).
type Guidance struct {
	P10        float64 `json:"p10"`
	P50        float64 `json:"p50"`
	P90        float64 `json:"p90"`
	DataPoints int     `json:"data_points"`
}

// Default guidance when a category has no completed-job history yet.
var defaultGuidance = Guidance{P10: 50, P50: 100, P90: 200, DataPoints: 0}

// Guide summarises historical prices for a category. With no data it returns
// the fixed default; with a single sample every percentile equals it.
func Guide(prices []float64) Guidance {
	if len(prices) == 0 {
		return defaultGuidance
	}
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	return Guidance{
		P10:        Percentile(sorted, 10),
		P50:        Percentile(sorted, 50),
		P90:        Percentile(sorted, 90),
		DataPoints: len(sorted),
	}
}

// Percentile linearly interpolates the p-th percentile of an ascending
// sorted slice. The rank index is (p/100)*(n-1); when the ceiling index
// runs past the end the last element is used.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := (p / 100) * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if hi >= n {
		return sorted[n-1]
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
