package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sharex-union/sharex/internal/jobs"
	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

// TaskSettlementRun computes and archives a settlement for one period.
const TaskSettlementRun = "settlement:run"

// SettlementRunPayload selects the period to settle.
type SettlementRunPayload struct {
	Period string `json:"period"`
}

// SettlementService runs the settlement pipeline.
type SettlementService interface {
	Compute(ctx context.Context, in settle.Input) (settle.Result, error)
}

// InputSource loads the normalized revenue and cost input for a period.
type InputSource interface {
	Load(ctx context.Context, period string) (settle.Input, error)
}

// SettlementRunJob coordinates a scheduled or requested settlement run.
type SettlementRunJob struct {
	Service SettlementService
	Inputs  InputSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSettlementRunJob constructs the job handler.
func NewSettlementRunJob(service SettlementService, inputs InputSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *SettlementRunJob {
	return &SettlementRunJob{
		Service: service,
		Inputs:  inputs,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewSettlementRunTask creates an Asynq task for the given period.
func NewSettlementRunTask(period string) (*asynq.Task, error) {
	body, err := json.Marshal(SettlementRunPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementRun, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the settlement run job.
func (j *SettlementRunJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Inputs == nil {
		return errors.New("settlement run: dependencies not configured")
	}
	var payload SettlementRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !shared.ValidPeriod(payload.Period) {
		j.log().Error("invalid period in payload", slog.String("period", payload.Period))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSettlementRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	in, err := j.Inputs.Load(ctx, payload.Period)
	if err != nil {
		resultErr = err
		j.log().Error("load settlement input", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}

	result, err := j.Service.Compute(ctx, in)
	if err != nil {
		resultErr = err
		var inputErr *settle.InputError
		var cfgErr *settle.ConfigError
		if errors.As(err, &inputErr) || errors.As(err, &cfgErr) {
			// Bad input or reference data will not fix itself on retry.
			j.log().Error("settlement rejected", slog.String("period", payload.Period), slog.Any("error", err))
			return asynq.SkipRetry
		}
		j.log().Error("settlement run failed", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}

	j.log().Info("settlement run complete",
		slog.String("period", payload.Period),
		slog.String("run_id", result.RunID),
		slog.Int("partners", len(result.Settlements)),
		slog.Int("issues", len(result.Issues)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *SettlementRunJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SettlementRunJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSettlementRun))
	}
	return slog.Default().With(slog.String("job", TaskSettlementRun))
}

func (j *SettlementRunJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *SettlementRunJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
