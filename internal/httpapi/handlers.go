package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/taskradar/taskradar/internal/auth"
	"github.com/taskradar/taskradar/internal/dispatch"
	"github.com/taskradar/taskradar/internal/domain"
	"github.com/taskradar/taskradar/internal/notify"
)

// Handler exposes the dispatch core over HTTP.
type Handler struct {
	svc      *dispatch.Service
	registry *notify.Registry
	log      *zap.Logger
}

// NewHandler builds the API handler.
func NewHandler(svc *dispatch.Service, registry *notify.Registry, log *zap.Logger) *Handler {
	return &Handler{svc: svc, registry: registry, log: log}
}

func pathID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// PriceGuidance - percentile price summary for a category.
func (h *Handler) PriceGuidance(c echo.Context) error {
	categoryID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid category id"})
	}
	g, err := h.svc.PriceGuidance(c.Request().Context(), categoryID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, g)
}

type createQuickBookRequest struct {
	CategoryID           uuid.UUID `json:"category_id"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	Address              string    `json:"address"`
	ArrivalWindowMinutes int       `json:"arrival_window_minutes"`
}

// CreateQuickBookJob - customer posts an instant-acceptance job.
func (h *Handler) CreateQuickBookJob(c echo.Context) error {
	var req createQuickBookRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	job, err := h.svc.CreateQuickBookJob(c.Request().Context(), auth.UserID(c), dispatch.QuickBookInput{
		CategoryID:    req.CategoryID,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Address:       req.Address,
		ArrivalWindow: time.Duration(req.ArrivalWindowMinutes) * time.Minute,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

type createPostQuoteRequest struct {
	CategoryID     uuid.UUID `json:"category_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Address        string    `json:"address"`
	EstimatedPrice float64   `json:"estimated_price"`
	AcceptPrice    *float64  `json:"accept_price,omitempty"`
}

// CreatePostQuoteJob - customer posts a bidding job.
func (h *Handler) CreatePostQuoteJob(c echo.Context) error {
	var req createPostQuoteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	job, err := h.svc.CreatePostQuoteJob(c.Request().Context(), auth.UserID(c), dispatch.PostQuoteInput{
		CategoryID:     req.CategoryID,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Address:        req.Address,
		EstimatedPrice: req.EstimatedPrice,
		AcceptPrice:    req.AcceptPrice,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, job)
}

// GetJob - fetch a job by id.
func (h *Handler) GetJob(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.svc.GetJob(c.Request().Context(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// ListMyJobs - the caller's jobs as a customer, newest first.
func (h *Handler) ListMyJobs(c echo.Context) error {
	jobs, err := h.svc.ListCustomerJobs(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

// AcceptQuickBookJob - provider accepts; first one wins.
func (h *Handler) AcceptQuickBookJob(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.svc.AcceptQuickBook(c.Request().Context(), jobID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

type submitBidRequest struct {
	Price        float64 `json:"price"`
	EstimatedETA int     `json:"estimated_eta"`
	Note         string  `json:"note"`
}

// SubmitBid - provider quotes on a post-&-quote job.
func (h *Handler) SubmitBid(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	var req submitBidRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	result, err := h.svc.SubmitBid(c.Request().Context(), dispatch.BidInput{
		JobID:        jobID,
		ProviderID:   auth.UserID(c),
		Price:        req.Price,
		EstimatedETA: req.EstimatedETA,
		Note:         req.Note,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ListBids - ranked pending bids, visible to the job's customer.
func (h *Handler) ListBids(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.svc.GetJob(c.Request().Context(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	if job.CustomerID != auth.UserID(c) {
		return writeError(c, domain.ErrUnauthorized)
	}
	bids, err := h.svc.RankBids(c.Request().Context(), jobID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": bids})
}

// AcceptBid - customer picks a bid.
func (h *Handler) AcceptBid(c echo.Context) error {
	bidID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	result, err := h.svc.AcceptBid(c.Request().Context(), bidID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CancelJob - customer or bound provider cancels.
func (h *Handler) CancelJob(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.svc.CancelJob(c.Request().Context(), jobID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// CompleteJob - customer marks a booked job done.
func (h *Handler) CompleteJob(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	job, err := h.svc.CompleteJob(c.Request().Context(), jobID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, job)
}

// GetJobEscrow - the escrow bound to a job, visible to its parties.
func (h *Handler) GetJobEscrow(c echo.Context) error {
	jobID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	esc, err := h.svc.EscrowByJob(c.Request().Context(), jobID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, esc)
}

// ReleaseEscrow - customer releases held funds to the provider.
func (h *Handler) ReleaseEscrow(c echo.Context) error {
	escrowID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid escrow id"})
	}
	esc, err := h.svc.ReleaseEscrow(c.Request().Context(), escrowID, auth.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, esc)
}

type upsertProviderRequest struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	IsAvailable bool        `json:"is_available"`
	Categories  []uuid.UUID `json:"categories"`
}

// UpsertProvider - provider location/availability heartbeat.
func (h *Handler) UpsertProvider(c echo.Context) error {
	var req upsertProviderRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	p, err := h.svc.UpsertProvider(c.Request().Context(), auth.UserID(c), dispatch.ProviderInput{
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		IsAvailable: req.IsAvailable,
		Categories:  req.Categories,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
