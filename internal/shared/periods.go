package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Settlement run statuses shared between the engine, archive and HTTP layer.
const (
	RunStatusDraft      = "DRAFT"
	RunStatusApproved   = "APPROVED"
	RunStatusSuperseded = "SUPERSEDED"
)

var (
	quarterPattern = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	monthPattern   = regexp.MustCompile(`^(\d{4})-(0[1-9]|1[0-2])$`)
)

// ValidPeriod reports whether code is a quarter ("2024-Q4") or month ("2024-10") period.
func ValidPeriod(code string) bool {
	return quarterPattern.MatchString(code) || monthPattern.MatchString(code)
}

// PeriodMonths expands a period code into its month codes.
// "2024-Q4" yields ["2024-10","2024-11","2024-12"]; a month code yields itself.
func PeriodMonths(code string) ([]string, error) {
	if m := quarterPattern.FindStringSubmatch(code); m != nil {
		quarter, _ := strconv.Atoi(m[2])
		first := (quarter-1)*3 + 1
		months := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			months = append(months, fmt.Sprintf("%s-%02d", m[1], first+i))
		}
		return months, nil
	}
	if monthPattern.MatchString(code) {
		return []string{code}, nil
	}
	return nil, fmt.Errorf("invalid period code %q", code)
}

// NormalizePeriod maps a period code to its first month so quarter and month
// codes compare lexicographically. "2024-Q4" becomes "2024-10".
func NormalizePeriod(code string) (string, error) {
	months, err := PeriodMonths(code)
	if err != nil {
		return "", err
	}
	return months[0], nil
}

// PreviousPeriod returns the period immediately before code, in the same
// granularity. "2025-Q1" yields "2024-Q4"; "2024-01" yields "2023-12".
func PreviousPeriod(code string) (string, error) {
	if m := quarterPattern.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		quarter, _ := strconv.Atoi(m[2])
		quarter--
		if quarter == 0 {
			year--
			quarter = 4
		}
		return fmt.Sprintf("%04d-Q%d", year, quarter), nil
	}
	if monthPattern.MatchString(code) {
		t, err := time.Parse("2006-01", code)
		if err != nil {
			return "", fmt.Errorf("invalid period code %q", code)
		}
		return t.AddDate(0, -1, 0).Format("2006-01"), nil
	}
	return "", fmt.Errorf("invalid period code %q", code)
}

// QuarterOf returns the quarter period code containing t.
func QuarterOf(t time.Time) string {
	quarter := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
}

// PeriodStart returns the first day of the period in UTC. Ratio schedules are
// resolved against this date.
func PeriodStart(code string) (time.Time, error) {
	normalized, err := NormalizePeriod(code)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse("2006-01", normalized)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period code %q", code)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}
