package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/apperr"
)

const rateLimitKeyPrefix = "chat:rl:"

// Repository is the pgx-backed message and membership store. It also applies
// the sender-level rate limit (Redis counter with a rolling window) on
// Insert, so the relay sees RateLimited as just another store failure.
type Repository struct {
	pool   *pgxpool.Pool
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger
}

// NewRepository creates a chat repository. rdb may be nil, which disables
// rate limiting (tests, single-user tools).
func NewRepository(pool *pgxpool.Pool, rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, rdb: rdb, limit: limit, window: window, logger: logger}
}

// checkRateLimit counts the sender's messages in the current window.
func (r *Repository) checkRateLimit(ctx context.Context, senderID uuid.UUID) error {
	if r.rdb == nil || r.limit <= 0 {
		return nil
	}
	key := rateLimitKeyPrefix + senderID.String()
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		// A Redis outage must not take messaging down with it.
		r.logger.Warn("rate limit check failed", zap.Error(err))
		return nil
	}
	if n == 1 {
		r.rdb.Expire(ctx, key, r.window)
	}
	if n > int64(r.limit) {
		return apperr.New(apperr.KindRateLimited, "too many messages, slow down")
	}
	return nil
}

// Insert persists a message, enforcing the sender rate limit first.
func (r *Repository) Insert(ctx context.Context, m *models.Message) error {
	if err := r.checkRateLimit(ctx, m.SenderID); err != nil {
		return err
	}
	const q = `INSERT INTO messages (id, conversation_id, sender_id, content)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, read, created_at`
	return r.pool.QueryRow(ctx, q, m.ConversationID, m.SenderID, m.Content).
		Scan(&m.ID, &m.Read, &m.CreatedAt)
}

// MarkRead flips all unread messages in the conversation not sent by the
// reader. Returns how many were flipped.
func (r *Repository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	const q = `UPDATE messages SET read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	tag, err := r.pool.Exec(ctx, q, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// IsParticipant reports whether the user belongs to the conversation.
func (r *Repository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID).Scan(&exists)
	return exists, err
}

// Participants returns the user ids in a conversation.
func (r *Repository) Participants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateConversation inserts a conversation with its participants (creator
// included) in one transaction.
func (r *Repository) CreateConversation(ctx context.Context, createdBy uuid.UUID, participantIDs []uuid.UUID) (*models.Conversation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var conv models.Conversation
	err = tx.QueryRow(ctx,
		`INSERT INTO conversations (id, created_by) VALUES (gen_random_uuid(), $1) RETURNING id, created_by, created_at`,
		createdBy).Scan(&conv.ID, &conv.CreatedBy, &conv.CreatedAt)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]struct{}{}
	for _, id := range append([]uuid.UUID{createdBy}, participantIDs...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, id); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the user's conversations with participants and the
// unread count from their point of view, most recent first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	const q = `SELECT c.id, c.created_by, c.created_at,
			(SELECT COUNT(*) FROM messages m
				WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read = FALSE) AS unread
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = $1
		ORDER BY c.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		if err := rows.Scan(&s.ID, &s.CreatedBy, &s.CreatedAt, &s.UnreadCount); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		participants, err := r.Participants(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Participants = participants
	}
	return list, nil
}

// ListMessages returns up to limit messages in a conversation, oldest first,
// optionally only those created before the given instant (for paging back).
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const base = `SELECT id, conversation_id, sender_id, content, read, created_at FROM messages
		WHERE conversation_id = $1`
	var rows pgx.Rows
	var err error
	if before != nil {
		rows, err = r.pool.Query(ctx, base+` AND created_at < $2 ORDER BY created_at DESC LIMIT $3`,
			conversationID, *before, limit)
	} else {
		rows, err = r.pool.Query(ctx, base+` ORDER BY created_at DESC LIMIT $2`, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse to oldest-first for the client.
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// GetConversation returns a conversation by id, or nil when absent.
func (r *Repository) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, created_by, created_at FROM conversations WHERE id = $1`, id).
		Scan(&conv.ID, &conv.CreatedBy, &conv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
