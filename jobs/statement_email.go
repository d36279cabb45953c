package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sharex-union/sharex/internal/jobs"
	"github.com/sharex-union/sharex/internal/notify"
	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

// TaskStatementEmails sends settlement statement emails for an approved run.
const TaskStatementEmails = "settlement:statements"

// StatementEmailPayload selects the period whose statements are mailed out. An
// empty CompanyID fans out to every union partner with a payout.
type StatementEmailPayload struct {
	Period    string `json:"period"`
	CompanyID string `json:"company_id,omitempty"`
}

// ResultSource loads the stored run statements are rendered from.
type ResultSource interface {
	Latest(ctx context.Context, period string) (settle.Result, error)
}

// StatementEmailJob delivers statement emails after approval.
type StatementEmailJob struct {
	Results ResultSource
	Store   refdata.Store
	Builder *notify.Builder
	Mailer  notify.Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatementEmailJob constructs the job handler.
func NewStatementEmailJob(results ResultSource, store refdata.Store, builder *notify.Builder, mailer notify.Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatementEmailJob {
	return &StatementEmailJob{
		Results: results,
		Store:   store,
		Builder: builder,
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
	}
}

// NewStatementEmailTask creates an Asynq task for the given period.
func NewStatementEmailTask(period, companyID string) (*asynq.Task, error) {
	body, err := json.Marshal(StatementEmailPayload{Period: period, CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementEmails, body, asynq.Queue(QueueDefault)), nil
}

// Handle sends the statement emails. Runs that are not yet approved are
// rejected; statements only go out for reviewed numbers.
func (j *StatementEmailJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Results == nil || j.Store == nil || j.Builder == nil || j.Mailer == nil {
		return errors.New("statement email: dependencies not configured")
	}
	var payload StatementEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if !shared.ValidPeriod(payload.Period) {
		j.log().Error("invalid period in payload", slog.String("period", payload.Period))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatementEmails)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	result, err := j.Results.Latest(ctx, payload.Period)
	if err != nil {
		resultErr = err
		j.log().Error("load settlement run", slog.String("period", payload.Period), slog.Any("error", err))
		return resultErr
	}
	if result.Status != shared.RunStatusApproved {
		j.log().Error("run not approved", slog.String("period", payload.Period), slog.String("status", result.Status))
		return asynq.SkipRetry
	}

	asOf, err := shared.PeriodStart(payload.Period)
	if err != nil {
		return asynq.SkipRetry
	}

	sent := 0
	for _, settlement := range result.Settlements {
		if payload.CompanyID != "" && settlement.CompanyID != payload.CompanyID {
			continue
		}
		company, _, err := j.Store.Partner(ctx, settlement.CompanyID, asOf)
		if err != nil {
			resultErr = err
			j.log().Error("load partner", slog.String("company", settlement.CompanyID), slog.Any("error", err))
			continue
		}
		if company.IsOperator() {
			continue
		}
		email, err := j.Builder.StatementEmail(payload.Period, settlement, company)
		if err != nil {
			resultErr = err
			j.log().Error("build statement email", slog.String("company", settlement.CompanyID), slog.Any("error", err))
			continue
		}
		if err := j.Mailer.Send(ctx, email); err != nil {
			resultErr = err
			j.log().Error("send statement email", slog.String("company", settlement.CompanyID), slog.Any("error", err))
			continue
		}
		sent++
	}
	if payload.CompanyID != "" && sent == 0 && resultErr == nil {
		resultErr = fmt.Errorf("statement email: company %s not in run %s", payload.CompanyID, result.RunID)
		return resultErr
	}

	j.log().Info("statement emails sent",
		slog.String("period", payload.Period),
		slog.String("run_id", result.RunID),
		slog.Int("sent", sent))
	return resultErr
}

func (j *StatementEmailJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatementEmailJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatementEmails))
	}
	return slog.Default().With(slog.String("job", TaskStatementEmails))
}
