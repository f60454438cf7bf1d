package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/triline/triline/internal/jobs"
)

// TaskTypeFilingReminders is the nightly sweep for approaching filing
// deadlines.
const TaskTypeFilingReminders = "filing:reminders"

// NewFilingRemindersTask constructs the cron task.
func NewFilingRemindersTask() *asynq.Task {
	return asynq.NewTask(TaskTypeFilingReminders, nil)
}

// FilingReminderJob notifies firms about engagements whose filing deadline is
// near but whose documentation has not been filed yet.
type FilingReminderJob struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	window  time.Duration
	metrics *jobmetrics.Metrics
}

func NewFilingReminderJob(pool *pgxpool.Pool, logger *slog.Logger, window time.Duration) *FilingReminderJob {
	if window <= 0 {
		window = 14 * 24 * time.Hour
	}
	return &FilingReminderJob{pool: pool, logger: logger, window: window, metrics: defaultJobMetrics}
}

// Handle processes TaskTypeFilingReminders tasks.
func (j *FilingReminderJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	tracker := j.metrics.Track(TaskTypeFilingReminders)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.pool == nil {
		return nil
	}
	rows, err := j.pool.Query(ctx, `
SELECT e.id, e.name, e.firm_id, e.filing_deadline
FROM engagements e
WHERE e.status NOT IN ('FILED', 'COMPLETED')
  AND e.filing_deadline IS NOT NULL
  AND e.filing_deadline <= $1`, time.Now().Add(j.window))
	if err != nil {
		j.logger.Error("filing reminder scan", slog.Any("error", err))
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var (
			id, name, firmID string
			deadline         time.Time
		)
		if err := rows.Scan(&id, &name, &firmID, &deadline); err != nil {
			return err
		}
		meta, _ := json.Marshal(map[string]string{"deadline": deadline.Format("2006-01-02")})
		if _, err := j.pool.Exec(ctx, `
INSERT INTO notifications (firm_id, entity_type, entity_id, message, meta, created_at)
VALUES ($1, 'ENGAGEMENT', $2, $3, $4, NOW())`,
			firmID, id, "Filing deadline approaching for "+name, meta); err != nil {
			j.logger.Error("filing reminder insert",
				slog.String("engagement_id", id),
				slog.Any("error", err))
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.logger.Info("filing reminders swept",
		slog.String("job", "filing_reminders"),
		slog.Int("notified", count))
	return nil
}
