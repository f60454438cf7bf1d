package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/triline/triline/internal/jobs"
	"github.com/triline/triline/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeWorkflowTransitioned fans out notifications after a status
	// change was committed.
	TaskTypeWorkflowTransitioned = "workflow:transitioned"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// WorkflowTransitionedPayload carries a committed transition event.
type WorkflowTransitionedPayload struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	FirmID     string `json:"firm_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	ActorID    string `json:"actor_id"`
}

// NewWorkflowTransitionedTask constructs an Asynq task for a transition event.
func NewWorkflowTransitionedTask(payload WorkflowTransitionedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWorkflowTransitioned, data), nil
}

// NotificationJob turns transition events into notification rows for the
// affected firm's users. Delivery is at-least-once, so an idempotency key
// keeps retries from duplicating rows.
type NotificationJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	idem    *shared.IdempotencyStore
}

func NewNotificationJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	return &NotificationJob{
		pool:    pool,
		logger:  logger,
		metrics: metrics,
		idem:    shared.NewIdempotencyStore(pool),
	}
}

// Handle processes TaskTypeWorkflowTransitioned tasks.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	tracker := j.metrics.Track(TaskTypeWorkflowTransitioned)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	var payload WorkflowTransitionedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.pool == nil {
		return nil
	}

	key := fmt.Sprintf("%s:%s:%s>%s", payload.EntityType, payload.EntityID, payload.From, payload.To)
	if err := j.idem.CheckAndInsert(ctx, key, "notifications"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			j.logger.Info("transition notification already delivered", slog.String("key", key))
			return nil
		}
		return err
	}

	_, err := j.pool.Exec(ctx, `
INSERT INTO notifications (firm_id, entity_type, entity_id, message, created_at)
VALUES ($1, $2, $3, $4, NOW())`,
		payload.FirmID, payload.EntityType, payload.EntityID,
		payload.EntityName+" moved from "+payload.From+" to "+payload.To)
	if err != nil {
		if delErr := j.idem.Delete(ctx, key); delErr != nil {
			j.logger.Warn("release idempotency key", slog.Any("error", delErr))
		}
		j.logger.Error("store transition notification",
			slog.String("entity_id", payload.EntityID),
			slog.Any("error", err))
		return err
	}
	j.logger.Info("transition notification stored",
		slog.String("entity_type", payload.EntityType),
		slog.String("entity_id", payload.EntityID),
		slog.String("to", payload.To))
	return nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder until the SMTP relay is provisioned.
	slog.Default().Info("send email",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return nil
}
