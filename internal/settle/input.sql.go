package settle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SQLInputSource loads the normalized settlement input for a period from the
// ingestion tables. Rows are written by the upstream importer; this side only
// reads.
type SQLInputSource struct {
	pool *pgxpool.Pool
}

// NewSQLInputSource constructs the input loader.
func NewSQLInputSource(pool *pgxpool.Pool) *SQLInputSource {
	return &SQLInputSource{pool: pool}
}

// Load assembles the course and cost line sets for a period.
func (s *SQLInputSource) Load(ctx context.Context, period string) (Input, error) {
	if s == nil || s.pool == nil {
		return Input{}, fmt.Errorf("settle input source not initialised")
	}
	in := Input{Period: period}

	const courseQuery = `
		SELECT course_id, course_name, revenue, ownership, excluded
		FROM settlement_courses
		WHERE period = $1
		ORDER BY course_id`
	rows, err := s.pool.Query(ctx, courseQuery, period)
	if err != nil {
		return Input{}, fmt.Errorf("settle: load courses for %s: %w", period, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Course
		var ownership []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Revenue, &ownership, &c.Excluded); err != nil {
			return Input{}, fmt.Errorf("settle: scan course for %s: %w", period, err)
		}
		c.Ownership = make(map[string]decimal.Decimal)
		if len(ownership) > 0 {
			if err := json.Unmarshal(ownership, &c.Ownership); err != nil {
				return Input{}, fmt.Errorf("settle: decode ownership for course %s: %w", c.ID, err)
			}
		}
		in.Courses = append(in.Courses, c)
	}
	if err := rows.Err(); err != nil {
		return Input{}, fmt.Errorf("settle: iterate courses for %s: %w", period, err)
	}

	const costQuery = `
		SELECT cost_id, label, channel, COALESCE(target, ''), COALESCE(course_id, ''),
		       amount, currency, month
		FROM settlement_cost_lines
		WHERE period = $1
		ORDER BY month, cost_id`
	costRows, err := s.pool.Query(ctx, costQuery, period)
	if err != nil {
		return Input{}, fmt.Errorf("settle: load cost lines for %s: %w", period, err)
	}
	defer costRows.Close()
	for costRows.Next() {
		var l CostLine
		if err := costRows.Scan(&l.ID, &l.Label, &l.Channel, &l.Target, &l.CourseID,
			&l.Amount, &l.Currency, &l.Month); err != nil {
			return Input{}, fmt.Errorf("settle: scan cost line for %s: %w", period, err)
		}
		in.CostLines = append(in.CostLines, l)
	}
	if err := costRows.Err(); err != nil {
		return Input{}, fmt.Errorf("settle: iterate cost lines for %s: %w", period, err)
	}
	return in, nil
}
