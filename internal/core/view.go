package core

import (
	"strings"
)

// StatusAll disables status filtering.
const StatusAll StatusFilter = "All"

// StatusFilter is either StatusAll or one of the invoice statuses.
type StatusFilter string

// ParseStatusFilter maps "", "All" or a status name to a filter.
func ParseStatusFilter(s string) (StatusFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(StatusAll)) {
		return StatusAll, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	return StatusFilter(st), nil
}

func (f StatusFilter) Matches(s Status) bool {
	return f == StatusAll || Status(f) == s
}

// SortState is the active sort column and direction.
type SortState struct {
	Field     SortField
	Direction Direction
}

// DefaultSort shows the most recently touched invoices first.
func DefaultSort() SortState {
	return SortState{Field: FieldUpdatedAt, Direction: Desc}
}

// Toggle flips the direction on the active field; any other field starts ascending.
func (s SortState) Toggle(f SortField) SortState {
	if s.Field != f {
		return SortState{Field: f, Direction: Asc}
	}
	return SortState{Field: f, Direction: s.Direction.Flip()}
}

// ViewState is everything that decides which invoices are shown and in which order.
type ViewState struct {
	Query  string
	Status StatusFilter
	Sort   SortState
}

func DefaultViewState() ViewState {
	return ViewState{Status: StatusAll, Sort: DefaultSort()}
}

// Matches applies the text query and status filter to one invoice.
func (v ViewState) Matches(inv Invoice) bool {
	q := strings.ToLower(strings.TrimSpace(v.Query))
	matchesQuery := q == "" ||
		strings.Contains(strings.ToLower(inv.AccountName), q) ||
		strings.Contains(strings.ToLower(inv.InvoiceNumber), q)
	status := v.Status
	if status == "" {
		status = StatusAll
	}
	return matchesQuery && status.Matches(inv.Status)
}

// Key identifies the state for caching derived views.
func (v ViewState) Key() string {
	status := v.Status
	if status == "" {
		status = StatusAll
	}
	return strings.ToLower(strings.TrimSpace(v.Query)) + "|" + string(status) + "|" + v.Sort.Field.Key() + "|" + string(v.Sort.Direction)
}

// Apply filters then sorts a snapshot. An empty result is a valid view.
func Apply(items []Invoice, v ViewState) []Invoice {
	filtered := make([]Invoice, 0, len(items))
	for _, inv := range items {
		if v.Matches(inv) {
			filtered = append(filtered, inv)
		}
	}
	return SortBy(filtered, v.Sort.Field, v.Sort.Direction)
}

// Summary is the KPI strip shown above the table.
type Summary struct {
	Count       int
	TotalCents  int64
	OpenCount   int
	DeniedCount int
}

// Summarize computes KPIs over the full collection, not the filtered view.
func Summarize(items []Invoice) Summary {
	var s Summary
	for _, inv := range items {
		s.Count++
		s.TotalCents += inv.AmountCents
		switch inv.Status {
		case StatusOpen:
			s.OpenCount++
		case StatusDenied:
			s.DeniedCount++
		}
	}
	return s
}
