package refdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrCompanyNotFound indicates the requested company id is not configured.
var ErrCompanyNotFound = errors.New("refdata: company not found")

// Store exposes the read accessors the settlement engine depends on. How the
// data is persisted is invisible behind this interface.
type Store interface {
	// Snapshot pins one immutable view of reference data for a period.
	Snapshot(ctx context.Context, period string) (*Snapshot, error)
	// Partner resolves a company and its ratio window effective at asOf.
	Partner(ctx context.Context, id string, asOf time.Time) (Company, RatioWindow, error)
	// CourseOwnership maps course ids to per-partner ownership fractions.
	CourseOwnership(ctx context.Context, period string) (Ownership, error)
	// ClassificationRules returns the compiled, priority-ordered rule set.
	ClassificationRules(ctx context.Context) ([]CompiledRule, error)
}

// MemStore serves a fixed snapshot from memory. Used in tests and for
// file-seeded deployments without a database.
type MemStore struct {
	snap *Snapshot
}

// NewMemStore wraps a prepared snapshot.
func NewMemStore(snap *Snapshot) *MemStore {
	return &MemStore{snap: snap}
}

// Snapshot returns the wrapped snapshot regardless of period.
func (m *MemStore) Snapshot(ctx context.Context, period string) (*Snapshot, error) {
	if m == nil || m.snap == nil {
		return nil, fmt.Errorf("refdata: mem store not initialised")
	}
	return m.snap, nil
}

// Partner resolves a company and its effective ratio window.
func (m *MemStore) Partner(ctx context.Context, id string, asOf time.Time) (Company, RatioWindow, error) {
	snap, err := m.Snapshot(ctx, "")
	if err != nil {
		return Company{}, RatioWindow{}, err
	}
	company, ok := snap.Company(id)
	if !ok {
		return Company{}, RatioWindow{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, id)
	}
	window, err := company.Ratios.Resolve(asOf)
	if err != nil {
		return Company{}, RatioWindow{}, err
	}
	return company, window, nil
}

// CourseOwnership returns the ownership mapping of the snapshot.
func (m *MemStore) CourseOwnership(ctx context.Context, period string) (Ownership, error) {
	snap, err := m.Snapshot(ctx, period)
	if err != nil {
		return nil, err
	}
	return snap.Ownership, nil
}

// ClassificationRules returns the compiled rule set of the snapshot.
func (m *MemStore) ClassificationRules(ctx context.Context) ([]CompiledRule, error) {
	snap, err := m.Snapshot(ctx, "")
	if err != nil {
		return nil, err
	}
	return snap.Rules, nil
}
