package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/sharex-union/sharex/internal/jobs"
	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

// TaskAnomalyScan compares the latest run of a period against the previous
// period and logs partners whose payout swung beyond the threshold.
const TaskAnomalyScan = "settlement:anomaly-scan"

// AnomalyScanPayload configures one scan.
type AnomalyScanPayload struct {
	// Period to inspect. Empty selects the last completed quarter, which is
	// what the cron schedule relies on.
	Period string `json:"period,omitempty"`
	// Threshold is the relative payout change that triggers a flag, as a
	// decimal string. Empty selects the engine default.
	Threshold string `json:"threshold,omitempty"`
}

// AnomalyScanJob inspects settlement runs looking for significant deltas.
type AnomalyScanJob struct {
	Results ResultSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAnomalyScanJob initialises the anomaly scan handler.
func NewAnomalyScanJob(results ResultSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnomalyScanJob {
	return &AnomalyScanJob{
		Results: results,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewAnomalyScanTask creates an Asynq task for the given period.
func NewAnomalyScanTask(period, threshold string) (*asynq.Task, error) {
	body, err := json.Marshal(AnomalyScanPayload{Period: period, Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnomalyScan, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the anomaly scan logic.
func (j *AnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Results == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload AnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Period == "" {
		// Scheduled scans always look at the quarter that just closed.
		prev, err := shared.PreviousPeriod(shared.QuarterOf(j.now()))
		if err != nil {
			return asynq.SkipRetry
		}
		payload.Period = prev
	}
	if !shared.ValidPeriod(payload.Period) {
		j.log().Error("invalid period in payload", slog.String("period", payload.Period))
		return asynq.SkipRetry
	}
	threshold := decimal.Zero
	if payload.Threshold != "" {
		parsed, err := decimal.NewFromString(payload.Threshold)
		if err != nil {
			j.log().Error("invalid threshold in payload", slog.String("threshold", payload.Threshold))
			return asynq.SkipRetry
		}
		threshold = parsed
	}

	start := j.now()
	tracker := j.metrics().Track(TaskAnomalyScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	prevPeriod, err := shared.PreviousPeriod(payload.Period)
	if err != nil {
		return asynq.SkipRetry
	}

	curr, err := j.Results.Latest(ctx, payload.Period)
	if err != nil {
		resultErr = err
		j.log().Error("load current run", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}
	prev, err := j.Results.Latest(ctx, prevPeriod)
	if err != nil {
		if errors.Is(err, settle.ErrRunNotFound) {
			j.log().Info("no previous run to compare", slog.String("period", prevPeriod))
			return resultErr
		}
		resultErr = err
		j.log().Error("load previous run", slog.String("period", prevPeriod), slog.Any("error", err))
		return resultErr
	}

	anomalies := settle.CompareRuns(prev, curr, threshold)
	for _, a := range anomalies {
		j.log().Warn("settlement anomaly detected",
			slog.String("company", a.CompanyID),
			slog.String("period", payload.Period),
			slog.String("previous", a.Expected.String()),
			slog.String("current", a.Actual.String()),
			slog.String("delta", a.Delta.String()),
		)
	}

	j.log().Info("completed anomaly scan",
		slog.String("period", payload.Period),
		slog.String("previous_period", prevPeriod),
		slog.Int("anomalies", len(anomalies)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *AnomalyScanJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnomalyScan))
	}
	return slog.Default().With(slog.String("job", TaskAnomalyScan))
}

func (j *AnomalyScanJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnomalyScanJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
