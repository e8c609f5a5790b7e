package chat

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/apperr"
	"github.com/aura-events/backend/pkg/response"
)

// Handler exposes conversation and history endpoints. Live messaging goes
// over the WebSocket gateway; these endpoints cover creation and catch-up.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a chat handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateConversationRequest is the body for POST /conversations.
type CreateConversationRequest struct {
	ParticipantIDs []uuid.UUID `json:"participant_ids" binding:"required,min=1"`
}

// CreateConversation handles POST /conversations. The caller is always a
// participant of the conversation they create.
func (h *Handler) CreateConversation(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	conv, err := h.repo.CreateConversation(c.Request.Context(), userID, req.ParticipantIDs)
	if err != nil {
		h.logger.Error("create conversation failed", zap.Error(err))
		response.Internal(c, "failed to create conversation")
		return
	}
	response.Created(c, conv)
}

// ListConversations handles GET /conversations (the caller's inbox).
func (h *Handler) ListConversations(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list conversations failed", zap.Error(err))
		response.Internal(c, "failed to list conversations")
		return
	}
	response.OK(c, list)
}

// ListMessages handles GET /conversations/:id/messages. Participants only.
// ?before=RFC3339 pages backwards; ?limit caps the page size.
func (h *Handler) ListMessages(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid conversation id")
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	conv, err := h.repo.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		h.logger.Error("get conversation failed", zap.Error(err))
		response.Internal(c, "failed to load conversation")
		return
	}
	if conv == nil {
		response.NotFound(c, "conversation not found")
		return
	}
	isMember, err := h.repo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		h.logger.Error("membership check failed", zap.Error(err))
		response.Internal(c, "failed to load conversation")
		return
	}
	if !isMember {
		response.Domain(c, apperr.New(apperr.KindUnauthorized, "not a conversation participant"))
		return
	}

	var before *time.Time
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, "invalid before timestamp")
			return
		}
		before = &t
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		// ListMessages clamps out-of-range values; parse failures fall
		// through to the default page size.
		limit, _ = strconv.Atoi(v)
	}
	msgs, err := h.repo.ListMessages(c.Request.Context(), conversationID, before, limit)
	if err != nil {
		h.logger.Error("list messages failed", zap.Error(err))
		response.Internal(c, "failed to list messages")
		return
	}
	response.OK(c, msgs)
}
