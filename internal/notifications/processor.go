package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/pkg/queue"
)

// Processor consumes notification jobs and records the resulting emails.
type Processor struct {
	repo   *Repository
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates a notification job processor.
func NewProcessor(repo *Repository, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, queue: q, logger: logger}
}

// Process executes one job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReservationConfirmation {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReservationConfirmationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sentAt := time.Now()
	reservationID := payload.ReservationID
	el := &models.EmailLog{
		ReservationID:  &reservationID,
		EmailType:      models.EmailTypeReservationConfirmation,
		RecipientEmail: payload.RecipientEmail,
		Subject:        "Your seat is confirmed: " + payload.SessionTitle,
		Status:         models.EmailLogStatusLogged,
		SentAt:         &sentAt,
	}
	if err := p.repo.Create(ctx, el); err != nil {
		return fmt.Errorf("record email log: %w", err)
	}
	p.logger.Info("confirmation recorded",
		zap.String("reservation_id", payload.ReservationID.String()),
		zap.String("recipient", payload.RecipientEmail))
	return nil
}

// Run dequeues jobs until ctx is cancelled. Failed jobs are retried via the
// queue, which moves them to the DLQ after MaxRetries.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("notification worker running")
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Warn("job failed", zap.Error(err), zap.String("job_id", job.ID))
			if err := p.queue.Retry(ctx, job); err != nil {
				p.logger.Error("retry failed", zap.Error(err), zap.String("job_id", job.ID))
			}
		}
	}
}
