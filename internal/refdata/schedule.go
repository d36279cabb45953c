package refdata

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoRatioForDate indicates no ratio window covers the requested date.
var ErrNoRatioForDate = errors.New("refdata: no ratio window covers date")

// RatioWindow is one effective-dated payout configuration. A zero From means
// "since the beginning of the contract"; a zero To means open ended.
type RatioWindow struct {
	From         time.Time
	To           time.Time
	RevenueShare decimal.Decimal
	UnionPayout  decimal.Decimal
}

func (w RatioWindow) contains(at time.Time) bool {
	if !w.From.IsZero() && at.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !at.Before(w.To) {
		return false
	}
	return true
}

// RatioSchedule is a sorted, non-overlapping list of ratio windows.
type RatioSchedule struct {
	windows []RatioWindow
}

// NewRatioSchedule validates and sorts the windows. Overlapping windows are a
// configuration error: an ambiguous ratio could silently shift money between
// the partner and the operator.
func NewRatioSchedule(windows []RatioWindow) (RatioSchedule, error) {
	sorted := append([]RatioWindow(nil), windows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].From.Before(sorted[j].From)
	})
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.To.IsZero() || sorted[i].From.Before(prev.To) {
			return RatioSchedule{}, fmt.Errorf(
				"refdata: ratio windows overlap: [%s, %s) and [%s, %s)",
				formatBound(prev.From), formatBound(prev.To),
				formatBound(sorted[i].From), formatBound(sorted[i].To))
		}
	}
	return RatioSchedule{windows: sorted}, nil
}

// MustRatioSchedule is a test helper; it panics on invalid windows.
func MustRatioSchedule(windows ...RatioWindow) RatioSchedule {
	s, err := NewRatioSchedule(windows)
	if err != nil {
		panic(err)
	}
	return s
}

// Resolve returns the window effective at the given date.
func (s RatioSchedule) Resolve(at time.Time) (RatioWindow, error) {
	// Windows are sorted by From; take the last window starting at or before at.
	idx := sort.Search(len(s.windows), func(i int) bool {
		return s.windows[i].From.After(at)
	})
	if idx == 0 {
		return RatioWindow{}, fmt.Errorf("%w: %s", ErrNoRatioForDate, at.Format("2006-01-02"))
	}
	w := s.windows[idx-1]
	if !w.contains(at) {
		return RatioWindow{}, fmt.Errorf("%w: %s", ErrNoRatioForDate, at.Format("2006-01-02"))
	}
	return w, nil
}

// Windows exposes a copy of the schedule, oldest first.
func (s RatioSchedule) Windows() []RatioWindow {
	return append([]RatioWindow(nil), s.windows...)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format("2006-01-02")
}
