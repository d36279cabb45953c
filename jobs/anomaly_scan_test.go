package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharex-union/sharex/internal/settle"
	"github.com/sharex-union/sharex/internal/shared"
)

type periodResults struct {
	runs map[string]settle.Result
}

func (f *periodResults) Latest(ctx context.Context, period string) (settle.Result, error) {
	run, ok := f.runs[period]
	if !ok {
		return settle.Result{}, settle.ErrRunNotFound
	}
	return run, nil
}

func anomalyRun(period string, amounts map[string]string) settle.Result {
	result := settle.Result{
		RunID:  "run-" + period,
		Period: period,
		Status: shared.RunStatusApproved,
	}
	for company, amount := range amounts {
		result.Settlements = append(result.Settlements, settle.PartnerSettlement{
			CompanyID: company,
			Period:    period,
			Amount:    decimal.RequireFromString(amount),
		})
	}
	return result
}

func TestAnomalyScanLogsDetectedSwings(t *testing.T) {
	results := &periodResults{runs: map[string]settle.Result{
		"2024-Q3": anomalyRun("2024-Q3", map[string]string{"bkid": "1000000", "heaz": "2000000"}),
		"2024-Q4": anomalyRun("2024-Q4", map[string]string{"bkid": "1600000", "heaz": "2100000"}),
	}}
	job := NewAnomalyScanJob(results, nil, nil)

	task, err := NewAnomalyScanTask("2024-Q4", "")
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
}

func TestAnomalyScanNoPreviousRunIsNotAnError(t *testing.T) {
	results := &periodResults{runs: map[string]settle.Result{
		"2024-Q4": anomalyRun("2024-Q4", map[string]string{"bkid": "1600000"}),
	}}
	job := NewAnomalyScanJob(results, nil, nil)

	task, err := NewAnomalyScanTask("2024-Q4", "")
	require.NoError(t, err)
	assert.NoError(t, job.Handle(context.Background(), task))
}

func TestAnomalyScanMissingCurrentRunRetries(t *testing.T) {
	job := NewAnomalyScanJob(&periodResults{runs: map[string]settle.Result{}}, nil, nil)

	task, err := NewAnomalyScanTask("2024-Q4", "")
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestAnomalyScanRejectsBadPayload(t *testing.T) {
	job := NewAnomalyScanJob(&periodResults{}, nil, nil)

	task := asynq.NewTask(TaskAnomalyScan, []byte("{not json"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	task, err := NewAnomalyScanTask("Q4-2024", "")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)

	task, err = NewAnomalyScanTask("2024-Q4", "half")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
