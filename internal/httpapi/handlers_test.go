package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/taskradar/taskradar/internal/auth"
	"github.com/taskradar/taskradar/internal/dispatch"
	"github.com/taskradar/taskradar/internal/notify"
	"github.com/taskradar/taskradar/internal/store/memory"
)

type nopScheduler struct{}

func (nopScheduler) ScheduleStageAdvance(context.Context, uuid.UUID, int, time.Duration) error {
	return nil
}
func (nopScheduler) ScheduleQuickBookExpiry(context.Context, uuid.UUID, time.Time) error {
	return nil
}

func newTestAPI(t *testing.T) *echo.Echo {
	t.Helper()
	log := zaptest.NewLogger(t)
	st := memory.New()
	registry := notify.NewRegistry(log)
	svc := dispatch.New(st, registry, nopScheduler{}, dispatch.DefaultConfig(), log)

	secret := []byte("test-secret")
	e := echo.New()
	Register(e, NewHandler(svc, registry, log), auth.NewHandler(st, secret), st, secret)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func signup(t *testing.T, e *echo.Echo, email, role string) (token string, userID string) {
	t.Helper()
	rec, body := do(t, e, http.MethodPost, "/auth/signup", "",
		fmt.Sprintf(`{"email":%q,"name":"Test","password":"hunter2hunter2","role":%q}`, email, role))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func registerProvider(t *testing.T, e *echo.Echo, token string, cat uuid.UUID) {
	t.Helper()
	rec, _ := do(t, e, http.MethodPut, "/providers/me", token,
		fmt.Sprintf(`{"latitude":6.5244,"longitude":3.3792,"is_available":true,"categories":[%q]}`, cat))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestQuickBookFlow(t *testing.T) {
	e := newTestAPI(t)
	cat := uuid.New()

	customer, _ := signup(t, e, "customer@example.com", "customer")
	winner, _ := signup(t, e, "winner@example.com", "provider")
	loser, _ := signup(t, e, "loser@example.com", "provider")
	registerProvider(t, e, winner, cat)
	registerProvider(t, e, loser, cat)

	rec, job := do(t, e, http.MethodPost, "/jobs/quickbook", customer,
		fmt.Sprintf(`{"category_id":%q,"latitude":6.5244,"longitude":3.3792,"address":"12 Allen Avenue"}`, cat))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "BROADCASTED", job["status"])
	jobID := job["id"].(string)

	// Providers race; the role guard keeps customers out entirely.
	rec, _ = do(t, e, http.MethodPost, "/jobs/"+jobID+"/accept", customer, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, booked := do(t, e, http.MethodPost, "/jobs/"+jobID+"/accept", winner, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BOOKED", booked["status"])

	rec, body := do(t, e, http.MethodPost, "/jobs/"+jobID+"/accept", loser, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "already taken")

	// Both parties can see the held escrow; outsiders cannot.
	rec, esc := do(t, e, http.MethodGet, "/jobs/"+jobID+"/escrow", customer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HELD", esc["status"])

	rec, _ = do(t, e, http.MethodGet, "/jobs/"+jobID+"/escrow", loser, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Complete, then release funds to the provider.
	rec, _ = do(t, e, http.MethodPost, "/jobs/"+jobID+"/complete", customer, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, released := do(t, e, http.MethodPost, "/escrows/"+esc["id"].(string)+"/release", customer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "RELEASED", released["status"])
}

func TestPostQuoteFlow(t *testing.T) {
	e := newTestAPI(t)
	cat := uuid.New()

	customer, _ := signup(t, e, "customer@example.com", "customer")
	provider, _ := signup(t, e, "provider@example.com", "provider")
	rival, _ := signup(t, e, "rival@example.com", "provider")
	registerProvider(t, e, provider, cat)
	registerProvider(t, e, rival, cat)

	rec, job := do(t, e, http.MethodPost, "/jobs/postquote", customer,
		fmt.Sprintf(`{"category_id":%q,"latitude":6.5244,"longitude":3.3792,"estimated_price":150}`, cat))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	jobID := job["id"].(string)

	rec, res := do(t, e, http.MethodPost, "/jobs/"+jobID+"/bids", provider,
		`{"price":120,"estimated_eta":45,"note":"can start today"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, false, res["auto_hired"])
	bidID := res["bid"].(map[string]any)["id"].(string)

	rec, _ = do(t, e, http.MethodPost, "/jobs/"+jobID+"/bids", rival,
		`{"price":140,"estimated_eta":30}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Only the job's customer sees the ranked board.
	rec, _ = do(t, e, http.MethodGet, "/jobs/"+jobID+"/bids", rival, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, board := do(t, e, http.MethodGet, "/jobs/"+jobID+"/bids", customer, "")
	require.Equal(t, http.StatusOK, rec.Code)
	bids := board["bids"].([]any)
	require.Len(t, bids, 2)
	assert.Equal(t, 120.0, bids[0].(map[string]any)["price"], "cheapest bid ranks first")

	rec, accepted := do(t, e, http.MethodPost, "/bids/"+bidID+"/accept", customer, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BOOKED", accepted["job"].(map[string]any)["status"])
	assert.Equal(t, 120.0, accepted["escrow"].(map[string]any)["amount"])
}

func TestAuthRequired(t *testing.T) {
	e := newTestAPI(t)

	rec, _ := do(t, e, http.MethodGet, "/jobs/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code, "memory store is always ready")
}
