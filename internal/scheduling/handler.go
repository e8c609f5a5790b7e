package scheduling

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/response"
)

// Handler exposes the reservation engine over HTTP.
type Handler struct {
	engine *Engine
	jobs   *queue.Queue
	logger *zap.Logger
}

// NewHandler creates a scheduling handler. jobs may be nil (no confirmation
// emails are enqueued then).
func NewHandler(engine *Engine, jobs *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{engine: engine, jobs: jobs, logger: logger}
}

// CreateRequest is the body for POST /sessions/:id/reservations.
// Status defaults to confirmed.
type CreateRequest struct {
	Status string `json:"status"`
}

// Create handles POST /sessions/:id/reservations.
func (h *Handler) Create(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	desired := models.ReservationConfirmed
	if req.Status != "" {
		if !models.ValidReservationStatus(req.Status) {
			response.BadRequest(c, "unknown reservation status")
			return
		}
		desired = models.ReservationStatus(req.Status)
	}

	r, err := h.engine.CreateReservation(c.Request.Context(), userID, sessionID, desired)
	if err != nil {
		response.Domain(c, err)
		return
	}
	if r.Status == models.ReservationConfirmed {
		h.enqueueConfirmation(c, r)
	}
	response.Created(c, r)
}

// enqueueConfirmation pushes a best-effort confirmation email job. Failures
// are logged, never surfaced: the reservation already exists.
func (h *Handler) enqueueConfirmation(c *gin.Context, r *models.Reservation) {
	if h.jobs == nil {
		return
	}
	email, _ := c.Get(middleware.ContextUserEmail)
	recipient, _ := email.(string)
	title := ""
	if s, err := h.engine.catalog.GetByID(c.Request.Context(), r.SessionID); err == nil && s != nil {
		title = s.Title
	}
	err := h.jobs.EnqueueReservationConfirmation(c.Request.Context(), queue.ReservationConfirmationPayload{
		ReservationID:  r.ID,
		SessionID:      r.SessionID,
		SessionTitle:   title,
		UserID:         r.UserID,
		RecipientEmail: recipient,
	})
	if err != nil {
		h.logger.Warn("enqueue confirmation failed", zap.Error(err), zap.String("reservation_id", r.ID.String()))
	}
}

// List handles GET /reservations (the caller's own).
func (h *Handler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.engine.ListReservations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list reservations failed", zap.Error(err))
		response.Internal(c, "failed to list reservations")
		return
	}
	response.OK(c, list)
}

// UpdateRequest is the body for PATCH /reservations/:id.
type UpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// Update handles PATCH /reservations/:id.
func (h *Handler) Update(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	r, err := h.engine.UpdateReservation(c.Request.Context(), userID, reservationID, models.ReservationStatus(req.Status))
	if err != nil {
		response.Domain(c, err)
		return
	}
	response.OK(c, r)
}

// Delete handles DELETE /reservations/:id.
func (h *Handler) Delete(c *gin.Context) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	if err := h.engine.DeleteReservation(c.Request.Context(), userID, reservationID); err != nil {
		response.Domain(c, err)
		return
	}
	response.NoContent(c)
}

// CheckConflicts handles GET /sessions/:id/conflicts, the read-only preview
// used before confirming.
func (h *Handler) CheckConflicts(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	report, err := h.engine.CheckConflicts(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.Domain(c, err)
		return
	}
	response.OK(c, report)
}
