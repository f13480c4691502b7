package flexiboard

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/flexiboard/internal/models"
)

// cell resolves a filter/sort column against an item. The pseudo-columns
// status, priority, group_id, created_at and updated_at read the item fields
// when the board defines no column with that id.
func (e *Engine) cell(item *models.Item, column string) any {
	if v, ok := item.Data[column]; ok {
		return v
	}
	if c := e.board.ColumnByRef(column); c != nil {
		return item.Data[c.ID]
	}
	switch column {
	case "status":
		if item.Status == "" {
			return nil
		}
		return item.Status
	case "priority":
		if item.Priority == "" {
			return nil
		}
		return item.Priority
	case "group_id":
		return item.GroupID
	case "created_at":
		return item.CreatedAt
	case "updated_at":
		return item.UpdatedAt
	case "assignees":
		return toAnySlice(item.Assignees)
	case "tags":
		return toAnySlice(item.Tags)
	}
	return nil
}

func toAnySlice(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// matchFilter evaluates one filter against a value.
func matchFilter(f models.Filter, v any) bool {
	switch f.Operator {
	case models.FilterEquals:
		return valuesEqual(v, f.Value)
	case models.FilterContains:
		if list, ok := v.([]any); ok {
			for _, e := range list {
				if containsFold(e, f.Value) {
					return true
				}
			}
			return false
		}
		return containsFold(v, f.Value)
	case models.FilterGreater:
		return v != nil && compareValues(v, f.Value) > 0
	case models.FilterLess:
		return v != nil && compareValues(v, f.Value) < 0
	case models.FilterBetween:
		bounds, ok := f.Value.([]any)
		if !ok || len(bounds) != 2 || v == nil {
			return false
		}
		return compareValues(v, bounds[0]) >= 0 && compareValues(v, bounds[1]) <= 0
	case models.FilterIn:
		list, ok := f.Value.([]any)
		if !ok {
			return valuesEqual(v, f.Value)
		}
		for _, want := range list {
			if valuesEqual(v, want) {
				return true
			}
		}
		return false
	case models.FilterEmpty:
		return isEmpty(v)
	}
	return true
}

// applyFilters folds filters left to right. A filter's Conjunction ("or")
// joins it to the running result; the default is "and".
func (e *Engine) applyFilters(items []*models.Item, filters []models.Filter) []*models.Item {
	if len(filters) == 0 {
		return items
	}
	out := make([]*models.Item, 0, len(items))
	for _, it := range items {
		result := true
		for i, f := range filters {
			ok := matchFilter(f, e.cell(it, f.Column))
			if i > 0 && strings.EqualFold(f.Conjunction, models.LogicOr) {
				result = result || ok
			} else {
				result = result && ok
			}
		}
		if result {
			out = append(out, it)
		}
	}
	return out
}

func (e *Engine) applySorts(items []*models.Item, sorts []models.Sort) {
	if len(sorts) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b *models.Item) int {
		for _, s := range sorts {
			c := compareValues(e.cell(a, s.Column), e.cell(b, s.Column))
			if c == 0 {
				continue
			}
			if strings.EqualFold(s.Direction, "desc") {
				return -c
			}
			return c
		}
		return 0
	})
}

// Items returns the live items matching filters, ordered by sorts. The board
// order is kept for equal keys.
func (e *Engine) Items(filters []models.Filter, sorts []models.Sort) []*models.Item {
	items := e.applyFilters(slices.Clone(e.board.Items), filters)
	e.applySorts(items, sorts)
	return items
}

// ItemsByColumn returns items whose column equals value.
func (e *Engine) ItemsByColumn(column string, value any) []*models.Item {
	return e.Items([]models.Filter{{Column: column, Operator: models.FilterEquals, Value: value}}, nil)
}

// SearchItems matches query case-insensitively against text and long-text
// columns.
func (e *Engine) SearchItems(query string) []*models.Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	var textCols []string
	for _, c := range e.board.Columns {
		if c.Type == models.ColumnText || c.Type == models.ColumnLongText {
			textCols = append(textCols, c.ID)
		}
	}
	var out []*models.Item
	for _, it := range e.board.Items {
		for _, id := range textCols {
			if s, ok := it.Data[id].(string); ok && containsFold(s, query) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// AdvancedFilter combines the search criteria exposed by the API. All set
// criteria must match.
type AdvancedFilter struct {
	Text          string          `json:"text,omitempty"`
	Columns       map[string]any  `json:"columns,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
	Assignees     []string        `json:"assignees,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Status        []string        `json:"status,omitempty"`
	Priority      []string        `json:"priority,omitempty"`
	Custom        []models.Filter `json:"custom,omitempty"`
	Sorts         []models.Sort   `json:"sorts,omitempty"`
}

// Filter applies an AdvancedFilter to the live items.
func (e *Engine) Filter(af AdvancedFilter) []*models.Item {
	items := slices.Clone(e.board.Items)
	if af.Text != "" {
		q := strings.ToLower(af.Text)
		items = slices.DeleteFunc(items, func(it *models.Item) bool {
			for _, v := range it.Data {
				if strings.Contains(strings.ToLower(toString(v)), q) {
					return false
				}
			}
			return true
		})
	}
	for col, want := range af.Columns {
		items = slices.DeleteFunc(items, func(it *models.Item) bool {
			return !valuesEqual(e.cell(it, col), want)
		})
	}
	if af.CreatedAfter != nil {
		items = slices.DeleteFunc(items, func(it *models.Item) bool { return it.CreatedAt.Before(*af.CreatedAfter) })
	}
	if af.CreatedBefore != nil {
		items = slices.DeleteFunc(items, func(it *models.Item) bool { return it.CreatedAt.After(*af.CreatedBefore) })
	}
	if len(af.Assignees) > 0 {
		items = slices.DeleteFunc(items, func(it *models.Item) bool {
			return !slices.ContainsFunc(it.Assignees, func(a string) bool { return slices.Contains(af.Assignees, a) })
		})
	}
	if len(af.Tags) > 0 {
		items = slices.DeleteFunc(items, func(it *models.Item) bool {
			return !slices.ContainsFunc(it.Tags, func(t string) bool { return slices.Contains(af.Tags, t) })
		})
	}
	if len(af.Status) > 0 {
		items = slices.DeleteFunc(items, func(it *models.Item) bool { return !slices.Contains(af.Status, it.Status) })
	}
	if len(af.Priority) > 0 {
		items = slices.DeleteFunc(items, func(it *models.Item) bool { return !slices.Contains(af.Priority, it.Priority) })
	}
	items = e.applyFilters(items, af.Custom)
	e.applySorts(items, af.Sorts)
	return items
}

// Stats summarises a board's items.
type Stats struct {
	TotalItems     int            `json:"total_items"`
	CompletedItems int            `json:"completed_items"`
	CompletionRate float64        `json:"completion_rate"`
	StatusCounts   map[string]int `json:"status_counts"`
	PriorityCounts map[string]int `json:"priority_counts"`
}

// isDone reports whether a status value counts as completed.
func isDone(status string) bool {
	switch strings.ToLower(status) {
	case "done", "completed", "complete":
		return true
	}
	return false
}

// Statistics computes item counts by status and priority.
func (e *Engine) Statistics() Stats {
	s := Stats{
		TotalItems:     len(e.board.Items),
		StatusCounts:   make(map[string]int),
		PriorityCounts: make(map[string]int),
	}
	for _, it := range e.board.Items {
		status := e.statusOf(it)
		if status != "" {
			s.StatusCounts[status]++
		}
		if isDone(status) {
			s.CompletedItems++
		}
		if it.Priority != "" {
			s.PriorityCounts[it.Priority]++
		}
	}
	if s.TotalItems > 0 {
		s.CompletionRate = float64(s.CompletedItems) / float64(s.TotalItems) * 100
	}
	return s
}

// statusOf prefers the item field and falls back to the status column.
func (e *Engine) statusOf(it *models.Item) string {
	if it.Status != "" {
		return it.Status
	}
	if s, ok := it.Data["status"].(string); ok {
		return s
	}
	return ""
}
