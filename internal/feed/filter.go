package feed

import (
	"strings"
)

// Default candidate criteria.
const (
	DefaultSource   = "GRAPHITE"
	DefaultAction   = "UPDATED"
	DefaultCategory = "Безпілотний літак"
)

// Criteria selects candidate records. All three conditions must hold.
type Criteria struct {
	Source   string // exact source name
	Action   string // exact action
	Category string // substring of the type name
}

// DefaultCriteria returns the criteria used when none are configured.
func DefaultCriteria() Criteria {
	return Criteria{
		Source:   DefaultSource,
		Action:   DefaultAction,
		Category: DefaultCategory,
	}
}

// IsCandidate reports whether r satisfies c.
func IsCandidate(r Record, c Criteria) bool {
	return r.SourceName() == c.Source &&
		r.Action == c.Action &&
		strings.Contains(r.TypeName, c.Category)
}

// FilterObserver is told how many records each Filter call examined and kept.
// *Metrics implements it.
type FilterObserver interface {
	AddRecordsReceived(n int)
	AddRecordsMatched(n int)
}

// RecordFilter selects candidate records from decoded batches.
type RecordFilter struct {
	criteria Criteria
	observer FilterObserver
}

// NewRecordFilter creates a RecordFilter. observer may be nil.
func NewRecordFilter(criteria Criteria, observer FilterObserver) *RecordFilter {
	return &RecordFilter{
		criteria: criteria,
		observer: observer,
	}
}

// Criteria returns the filter's criteria.
func (f *RecordFilter) Criteria() Criteria {
	return f.criteria
}

// Filter returns the candidates of batch in input order. The batch is not modified.
func (f *RecordFilter) Filter(batch []Record) []Record {
	out := make([]Record, 0, len(batch))
	for _, r := range batch {
		if IsCandidate(r, f.criteria) {
			out = append(out, r)
		}
	}
	if f.observer != nil {
		f.observer.AddRecordsReceived(len(batch))
		f.observer.AddRecordsMatched(len(out))
	}
	return out
}
