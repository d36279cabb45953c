package settle

import "fmt"

// ConfigError is a fatal configuration violation. The computation for the
// period aborts entirely; a partial settlement is worse than none.
type ConfigError struct {
	Period string
	Entity string // "course", "company", "rate"
	ID     string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("settle: %s: %s", e.Period, e.Reason)
	}
	return fmt.Sprintf("settle: %s: %s %s: %s", e.Period, e.Entity, e.ID, e.Reason)
}

func configErrorf(period, entity, id, format string, args ...any) *ConfigError {
	return &ConfigError{Period: period, Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)}
}

// InputError is a malformed ingestion record, rejected before classification
// begins.
type InputError struct {
	Period   string
	RecordID string
	Reason   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("settle: %s: record %s: %s", e.Period, e.RecordID, e.Reason)
}

func inputErrorf(period, recordID, format string, args ...any) *InputError {
	return &InputError{Period: period, RecordID: recordID, Reason: fmt.Sprintf(format, args...)}
}
