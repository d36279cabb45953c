package settle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sharex-union/sharex/internal/refdata"
	"github.com/sharex-union/sharex/internal/shared"
)

// Repository persists settlement runs. Archival is a collaborator concern;
// the engine only needs these three operations.
type Repository interface {
	InsertRun(ctx context.Context, result Result) error
	LatestRun(ctx context.Context, period string) (Result, error)
	UpdateStatus(ctx context.Context, runID, status string) error
}

// RunRecorder receives engine metrics. Satisfied by observability.Metrics.
type RunRecorder interface {
	RecordRun(period, outcome string, duration time.Duration)
	RecordIssues(period string, count int)
}

// Service runs the classify, apportion, aggregate, validate pipeline against a
// pinned reference data snapshot.
type Service struct {
	store   refdata.Store
	repo    Repository
	cache   *Cache
	metrics RunRecorder
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// NewService wires the settlement service. repo, cache and metrics may be nil
// for pure in-memory computation.
func NewService(store refdata.Store, repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		repo:   repo,
		cache:  cache,
		logger: logger,
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID: func() string {
			return uuid.NewString()
		},
	}
}

// WithMetrics installs an engine metrics recorder.
func (s *Service) WithMetrics(metrics RunRecorder) {
	s.metrics = metrics
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithIDGenerator overrides run id generation for deterministic tests.
func (s *Service) WithIDGenerator(gen func() string) {
	if gen != nil {
		s.newID = gen
	}
}

// Compute runs one full settlement for the input period. A fatal error
// returns nothing partial; validation issues ride along on the result.
func (s *Service) Compute(ctx context.Context, in Input) (Result, error) {
	if s == nil || s.store == nil {
		return Result{}, fmt.Errorf("settle service not initialised")
	}
	started := s.now()
	result, err := s.compute(ctx, in)
	if err != nil {
		s.record(in.Period, "error", started)
		return Result{}, err
	}

	if s.repo != nil {
		if err := s.repo.InsertRun(ctx, result); err != nil {
			s.record(in.Period, "error", started)
			return Result{}, fmt.Errorf("settle: persist run %s: %w", result.RunID, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.StoreResult(ctx, result); err != nil {
			s.log().Warn("cache settlement result", slog.String("period", in.Period), slog.Any("error", err))
		}
	}

	s.record(in.Period, "ok", started)
	if s.metrics != nil {
		s.metrics.RecordIssues(in.Period, len(result.Issues))
	}
	s.log().Info("settlement computed",
		slog.String("period", in.Period),
		slog.String("run_id", result.RunID),
		slog.Int64("ref_revision", result.RefRevision),
		slog.Int("partners", len(result.Settlements)),
		slog.Int("ledger_entries", len(result.Ledger)),
		slog.Int("issues", len(result.Issues)))
	return result, nil
}

func (s *Service) compute(ctx context.Context, in Input) (Result, error) {
	if !shared.ValidPeriod(in.Period) {
		return Result{}, inputErrorf(in.Period, in.Period, "invalid period code")
	}
	months, err := shared.PeriodMonths(in.Period)
	if err != nil {
		return Result{}, inputErrorf(in.Period, in.Period, "%v", err)
	}
	monthSet := make(map[string]struct{}, len(months))
	for _, m := range months {
		monthSet[m] = struct{}{}
	}
	for _, line := range in.CostLines {
		if _, ok := monthSet[line.Month]; !ok {
			return Result{}, inputErrorf(in.Period, line.ID, "cost line month %s outside period", line.Month)
		}
	}

	snap, err := s.store.Snapshot(ctx, in.Period)
	if err != nil {
		return Result{}, fmt.Errorf("settle: load reference data: %w", err)
	}

	courses := resolveOwnership(in.Courses, snap.Ownership)
	input := Input{Period: in.Period, Courses: courses, CostLines: in.CostLines}

	classifier := NewClassifier(snap)
	converter := newConverter(snap)

	entries, err := Apportion(input, classifier, converter)
	if err != nil {
		return Result{}, err
	}
	settlements, err := Aggregate(entries, snap, in.Period)
	if err != nil {
		return Result{}, err
	}

	asOf, err := shared.PeriodStart(in.Period)
	if err != nil {
		return Result{}, inputErrorf(in.Period, in.Period, "%v", err)
	}
	issues := make([]ValidationIssue, 0)
	for _, settlement := range settlements {
		company, _ := snap.Company(settlement.CompanyID)
		window, err := company.Ratios.Resolve(asOf)
		if err != nil {
			return Result{}, configErrorf(in.Period, "company", settlement.CompanyID, "%v", err)
		}
		issues = append(issues, Validate(settlement, entries, window)...)
	}

	return Result{
		RunID:       s.newID(),
		Period:      in.Period,
		RefRevision: snap.Revision,
		Status:      shared.RunStatusDraft,
		Settlements: settlements,
		Ledger:      entries,
		Issues:      issues,
		ComputedAt:  s.now(),
	}, nil
}

// ComputeBatch computes several periods concurrently, one worker per period.
// Stages take immutable inputs, so no locking is needed inside the engine.
func (s *Service) ComputeBatch(ctx context.Context, inputs []Input) ([]Result, error) {
	results := make([]Result, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, in := range inputs {
		g.Go(func() error {
			result, err := s.Compute(ctx, in)
			if err != nil {
				return fmt.Errorf("period %s: %w", in.Period, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Period < results[j].Period })
	return results, nil
}

// Latest returns the most recent stored run for the period, serving from
// cache when possible.
func (s *Service) Latest(ctx context.Context, period string) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, fmt.Errorf("settle service has no archive")
	}
	if s.cache != nil {
		if result, ok, err := s.cache.Result(ctx, period); err != nil {
			s.log().Warn("settlement cache read", slog.String("period", period), slog.Any("error", err))
		} else if ok {
			return result, nil
		}
	}
	result, err := s.repo.LatestRun(ctx, period)
	if err != nil {
		return Result{}, err
	}
	if s.cache != nil {
		if err := s.cache.StoreResult(ctx, result); err != nil {
			s.log().Warn("cache settlement result", slog.String("period", period), slog.Any("error", err))
		}
	}
	return result, nil
}

// Approve marks the latest run for the period as approved. Validation issues
// never block approval; the reviewer owns that decision.
func (s *Service) Approve(ctx context.Context, period string) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, fmt.Errorf("settle service has no archive")
	}
	result, err := s.repo.LatestRun(ctx, period)
	if err != nil {
		return Result{}, err
	}
	if err := s.repo.UpdateStatus(ctx, result.RunID, shared.RunStatusApproved); err != nil {
		return Result{}, err
	}
	result.Status = shared.RunStatusApproved
	if s.cache != nil {
		if err := s.cache.StoreResult(ctx, result); err != nil {
			s.log().Warn("cache settlement result", slog.String("period", period), slog.Any("error", err))
		}
	}
	s.log().Info("settlement approved",
		slog.String("period", period),
		slog.String("run_id", result.RunID),
		slog.Int("issues", len(result.Issues)))
	return result, nil
}

func resolveOwnership(courses []Course, ownership refdata.Ownership) []Course {
	resolved := make([]Course, len(courses))
	for i, course := range courses {
		if len(course.Ownership) == 0 {
			if owners, ok := ownership[course.ID]; ok {
				course.Ownership = owners
			}
		}
		resolved[i] = course
	}
	return resolved
}

func (s *Service) record(period, outcome string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(period, outcome, s.now().Sub(started))
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger.With(slog.String("component", "settle"))
	}
	return slog.Default().With(slog.String("component", "settle"))
}
