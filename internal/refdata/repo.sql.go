package refdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository loads reference data from Postgres.
type Repository struct {
	pool     *pgxpool.Pool
	currency string
}

// NewRepository constructs a reference data repository. currency is the
// settlement currency all amounts are converted into.
func NewRepository(pool *pgxpool.Pool, currency string) *Repository {
	return &Repository{pool: pool, currency: currency}
}

// Snapshot loads one consistent view of reference data inside a repeatable
// read transaction so a computation never observes a half-applied update.
func (r *Repository) Snapshot(ctx context.Context, period string) (*Snapshot, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("refdata repo not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("refdata: begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	snap := &Snapshot{
		Currency:  r.currency,
		Companies: make(map[string]Company),
		Ownership: make(Ownership),
		Rates:     make(map[string]decimal.Decimal),
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(revision), 0) FROM refdata_revisions`).Scan(&snap.Revision); err != nil {
		return nil, fmt.Errorf("refdata: load revision: %w", err)
	}
	if err := r.loadCompanies(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := r.loadOwnership(ctx, tx, period, snap); err != nil {
		return nil, err
	}
	if err := r.loadRules(ctx, tx, snap); err != nil {
		return nil, err
	}
	if err := r.loadRates(ctx, tx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Repository) loadCompanies(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	const query = `
		SELECT id, name, type, bank, account, contact_name, contact_email
		FROM companies
		ORDER BY id`
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("refdata: load companies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Bank, &c.Account, &c.ContactName, &c.ContactEmail); err != nil {
			return fmt.Errorf("refdata: scan company: %w", err)
		}
		snap.Companies[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("refdata: load companies: %w", err)
	}

	const ratioQuery = `
		SELECT company_id, valid_from, valid_to, revenue_share_ratio, union_payout_ratio
		FROM company_ratio_windows
		ORDER BY company_id, valid_from NULLS FIRST`
	ratioRows, err := tx.Query(ctx, ratioQuery)
	if err != nil {
		return fmt.Errorf("refdata: load ratio windows: %w", err)
	}
	defer ratioRows.Close()

	windows := make(map[string][]RatioWindow)
	for ratioRows.Next() {
		var companyID string
		var from, to *time.Time
		var window RatioWindow
		if err := ratioRows.Scan(&companyID, &from, &to, &window.RevenueShare, &window.UnionPayout); err != nil {
			return fmt.Errorf("refdata: scan ratio window: %w", err)
		}
		if from != nil {
			window.From = from.UTC()
		}
		if to != nil {
			window.To = to.UTC()
		}
		windows[companyID] = append(windows[companyID], window)
	}
	if err := ratioRows.Err(); err != nil {
		return fmt.Errorf("refdata: load ratio windows: %w", err)
	}

	for id, companyWindows := range windows {
		company, ok := snap.Companies[id]
		if !ok {
			return fmt.Errorf("refdata: ratio window references unknown company %s", id)
		}
		schedule, err := NewRatioSchedule(companyWindows)
		if err != nil {
			return fmt.Errorf("company %s: %w", id, err)
		}
		company.Ratios = schedule
		snap.Companies[id] = company
	}
	return nil
}

func (r *Repository) loadOwnership(ctx context.Context, tx pgx.Tx, period string, snap *Snapshot) error {
	const query = `
		SELECT course_id, company_id, fraction
		FROM course_ownership
		WHERE period = $1
		ORDER BY course_id, company_id`
	rows, err := tx.Query(ctx, query, period)
	if err != nil {
		return fmt.Errorf("refdata: load ownership: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var courseID, companyID string
		var fraction decimal.Decimal
		if err := rows.Scan(&courseID, &companyID, &fraction); err != nil {
			return fmt.Errorf("refdata: scan ownership: %w", err)
		}
		owners := snap.Ownership[courseID]
		if owners == nil {
			owners = make(map[string]decimal.Decimal)
			snap.Ownership[courseID] = owners
		}
		owners[companyID] = fraction
	}
	return rows.Err()
}

func (r *Repository) loadRules(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	const query = `
		SELECT priority, company_id, pattern
		FROM classification_rules
		ORDER BY priority`
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("refdata: load classification rules: %w", err)
	}
	defer rows.Close()
	raw := make([]ClassificationRule, 0)
	for rows.Next() {
		var rule ClassificationRule
		if err := rows.Scan(&rule.Priority, &rule.CompanyID, &rule.Pattern); err != nil {
			return fmt.Errorf("refdata: scan classification rule: %w", err)
		}
		raw = append(raw, rule)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("refdata: load classification rules: %w", err)
	}
	compiled, err := CompileRules(raw)
	if err != nil {
		return err
	}
	snap.Rules = compiled
	return nil
}

func (r *Repository) loadRates(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	const query = `
		SELECT month, currency, rate
		FROM exchange_rates
		ORDER BY month, currency`
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("refdata: load exchange rates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rate ExchangeRate
		if err := rows.Scan(&rate.Month, &rate.Currency, &rate.Rate); err != nil {
			return fmt.Errorf("refdata: scan exchange rate: %w", err)
		}
		snap.Rates[RateKey(rate.Currency, rate.Month)] = rate.Rate
	}
	return rows.Err()
}

// Partner resolves a single company and its ratio window effective at asOf.
func (r *Repository) Partner(ctx context.Context, id string, asOf time.Time) (Company, RatioWindow, error) {
	if r == nil || r.pool == nil {
		return Company{}, RatioWindow{}, fmt.Errorf("refdata repo not initialised")
	}
	const query = `
		SELECT id, name, type, bank, account, contact_name, contact_email
		FROM companies WHERE id = $1`
	var c Company
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.Type, &c.Bank, &c.Account, &c.ContactName, &c.ContactEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, RatioWindow{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
		}
		return Company{}, RatioWindow{}, fmt.Errorf("refdata: load company %s: %w", id, err)
	}

	const ratioQuery = `
		SELECT valid_from, valid_to, revenue_share_ratio, union_payout_ratio
		FROM company_ratio_windows
		WHERE company_id = $1
		ORDER BY valid_from NULLS FIRST`
	rows, err := r.pool.Query(ctx, ratioQuery, id)
	if err != nil {
		return Company{}, RatioWindow{}, fmt.Errorf("refdata: load ratio windows for %s: %w", id, err)
	}
	defer rows.Close()
	windows := make([]RatioWindow, 0)
	for rows.Next() {
		var from, to *time.Time
		var window RatioWindow
		if err := rows.Scan(&from, &to, &window.RevenueShare, &window.UnionPayout); err != nil {
			return Company{}, RatioWindow{}, fmt.Errorf("refdata: scan ratio window: %w", err)
		}
		if from != nil {
			window.From = from.UTC()
		}
		if to != nil {
			window.To = to.UTC()
		}
		windows = append(windows, window)
	}
	if err := rows.Err(); err != nil {
		return Company{}, RatioWindow{}, fmt.Errorf("refdata: load ratio windows for %s: %w", id, err)
	}
	schedule, err := NewRatioSchedule(windows)
	if err != nil {
		return Company{}, RatioWindow{}, fmt.Errorf("company %s: %w", id, err)
	}
	c.Ratios = schedule
	window, err := schedule.Resolve(asOf)
	if err != nil {
		return Company{}, RatioWindow{}, fmt.Errorf("company %s: %w", id, err)
	}
	return c, window, nil
}

// CourseOwnership loads the ownership mapping for a period.
func (r *Repository) CourseOwnership(ctx context.Context, period string) (Ownership, error) {
	snap, err := r.Snapshot(ctx, period)
	if err != nil {
		return nil, err
	}
	return snap.Ownership, nil
}

// ClassificationRules loads and compiles the current rule set.
func (r *Repository) ClassificationRules(ctx context.Context) ([]CompiledRule, error) {
	snap, err := r.Snapshot(ctx, "")
	if err != nil {
		return nil, err
	}
	return snap.Rules, nil
}
