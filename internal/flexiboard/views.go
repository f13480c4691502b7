package flexiboard

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

var laneColors = map[string]string{
	"todo":        "#94a3b8",
	"in-progress": "#3b82f6",
	"in-review":   "#f59e0b",
	"done":        "#10b981",
	"blocked":     "#ef4444",
	"cancelled":   "#6b7280",
}

var wipLimits = map[string]int{
	"in-progress": 5,
	"in-review":   3,
}

var priorityColors = map[string]string{
	models.PriorityLow:    "#94a3b8",
	models.PriorityMedium: "#3b82f6",
	models.PriorityHigh:   "#f59e0b",
	models.PriorityUrgent: "#ef4444",
}

const defaultColor = "#94a3b8"

// RenderOptions overrides parts of the view being rendered.
type RenderOptions struct {
	ViewID  string `json:"view_id,omitempty"`
	GroupBy string `json:"group_by,omitempty"`
}

// KanbanLane is one column of a kanban board.
type KanbanLane struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Items []*models.Item `json:"items"`
	Color string         `json:"color"`
	Limit int            `json:"limit,omitempty"`
}

// TableHeader describes a visible table column.
type TableHeader struct {
	ID    string            `json:"id"`
	Title string            `json:"title"`
	Type  models.ColumnType `json:"type"`
}

// TableRow is one rendered row.
type TableRow struct {
	ID    string         `json:"id"`
	Cells map[string]any `json:"cells"`
	Item  *models.Item   `json:"item"`
}

// Table is the rendered table view.
type Table struct {
	Headers []TableHeader `json:"headers"`
	Rows    []TableRow    `json:"rows"`
}

// CalendarEvent places an item on a calendar.
type CalendarEvent struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Start time.Time    `json:"start"`
	End   *time.Time   `json:"end,omitempty"`
	Item  *models.Item `json:"item"`
	Color string       `json:"color"`
}

// TimelineEvent places an item on a timeline.
type TimelineEvent struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	Item         *models.Item `json:"item"`
	Dependencies []string     `json:"dependencies"`
	Progress     float64      `json:"progress"`
}

// Summary is the headline block of a dashboard.
type Summary struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Overdue        int     `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

// ChartPoint is a labelled value.
type ChartPoint struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Chart is a dashboard chart.
type Chart struct {
	Type  string       `json:"type"`
	Title string       `json:"title"`
	Data  []ChartPoint `json:"data"`
}

// Dashboard is the rendered dashboard view.
type Dashboard struct {
	Summary     Summary        `json:"summary"`
	Charts      []Chart        `json:"charts"`
	RecentItems []*models.Item `json:"recent_items"`
}

// Render renders the board as viewType. The view definition is the one
// named by opts.ViewID, else the first view of that type, else the first
// view.
func (e *Engine) Render(viewType models.ViewType, opts RenderOptions) (any, error) {
	view := e.viewFor(viewType, opts.ViewID)
	switch viewType {
	case models.ViewKanban:
		return e.Kanban(view, opts.GroupBy)
	case models.ViewTable:
		return e.Table(view), nil
	case models.ViewCalendar:
		return e.Calendar(view)
	case models.ViewTimeline, models.ViewGantt:
		return e.TimelineView(view)
	case models.ViewDashboard:
		return e.Dashboard(view), nil
	}
	return nil, fmt.Errorf("view type %q: %w", viewType, apperr.ErrUnsupported)
}

func (e *Engine) viewFor(viewType models.ViewType, id string) models.View {
	if id != "" {
		if v := e.board.View(id); v != nil {
			return *v
		}
	}
	for _, v := range e.board.Views {
		if v.Type == viewType {
			return v
		}
	}
	if len(e.board.Views) > 0 {
		return e.board.Views[0]
	}
	return models.View{Type: viewType}
}

// Kanban groups the view's items into lanes by groupBy, the view's GroupBy
// or the status column. Lanes follow first-seen order of the values.
func (e *Engine) Kanban(view models.View, groupBy string) ([]KanbanLane, error) {
	if groupBy == "" {
		groupBy = view.GroupBy
	}
	if groupBy == "" {
		groupBy = "status"
	}
	col := e.board.ColumnByRef(groupBy)
	if col == nil {
		return nil, fmt.Errorf("column %q not found for grouping: %w", groupBy, apperr.ErrInvalid)
	}
	items := e.Items(view.Filters, view.Sorts)

	var order []string
	lanes := make(map[string]*KanbanLane)
	for _, it := range items {
		v := toString(it.Data[col.ID])
		if v == "" {
			continue
		}
		lane, ok := lanes[v]
		if !ok {
			key := strings.ToLower(v)
			color, ok := laneColors[key]
			if !ok {
				color = defaultColor
			}
			lane = &KanbanLane{
				ID:    col.ID + "-" + v,
				Title: v,
				Items: []*models.Item{},
				Color: color,
				Limit: wipLimits[key],
			}
			lanes[v] = lane
			order = append(order, v)
		}
		lane.Items = append(lane.Items, it)
	}
	out := make([]KanbanLane, 0, len(order))
	for _, v := range order {
		out = append(out, *lanes[v])
	}
	return out, nil
}

// Table renders visible columns for filtered, sorted items. Computed
// columns show their evaluated value; empty cells render as "".
func (e *Engine) Table(view models.View) Table {
	visible := view.VisibleColumns
	if len(visible) == 0 {
		for _, c := range e.board.Columns {
			visible = append(visible, c.ID)
		}
	}
	t := Table{Headers: []TableHeader{}, Rows: []TableRow{}}
	var cols []*models.Column
	for i := range e.board.Columns {
		c := &e.board.Columns[i]
		if slices.Contains(visible, c.ID) {
			t.Headers = append(t.Headers, TableHeader{ID: c.ID, Title: c.Title, Type: c.Type})
			cols = append(cols, c)
		}
	}
	for _, it := range e.Items(view.Filters, view.Sorts) {
		cells := make(map[string]any, len(cols))
		for _, c := range cols {
			v := e.Evaluate(c, it)
			if items, ok := v.([]*models.Item); ok {
				ids := make([]string, len(items))
				for i, x := range items {
					ids[i] = x.ID
				}
				v = ids
			}
			if v == nil {
				v = ""
			}
			cells[c.ID] = v
		}
		t.Rows = append(t.Rows, TableRow{ID: it.ID, Cells: cells, Item: it})
	}
	return t
}

func (e *Engine) dateColumns() []*models.Column {
	var out []*models.Column
	for i := range e.board.Columns {
		if t := e.board.Columns[i].Type; t == models.ColumnDate || t == models.ColumnDateTime {
			out = append(out, &e.board.Columns[i])
		}
	}
	return out
}

// Calendar places items on their first date column; a second date column,
// if any, supplies the end.
func (e *Engine) Calendar(view models.View) ([]CalendarEvent, error) {
	dates := e.dateColumns()
	if len(dates) == 0 {
		return nil, fmt.Errorf("no date columns found for calendar view: %w", apperr.ErrInvalid)
	}
	out := []CalendarEvent{}
	for _, it := range e.Items(view.Filters, view.Sorts) {
		start, ok := toTime(it.Data[dates[0].ID])
		if !ok {
			continue
		}
		ev := CalendarEvent{
			ID:    it.ID,
			Title: e.itemTitle(it),
			Start: start,
			Item:  it,
			Color: itemColor(it),
		}
		if len(dates) > 1 {
			if end, ok := toTime(it.Data[dates[1].ID]); ok {
				ev.End = &end
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// TimelineView spans items between the first two date columns.
func (e *Engine) TimelineView(view models.View) ([]TimelineEvent, error) {
	dates := e.dateColumns()
	if len(dates) < 2 {
		return nil, fmt.Errorf("timeline view requires at least 2 date columns: %w", apperr.ErrInvalid)
	}
	var progressCol *models.Column
	for i := range e.board.Columns {
		if e.board.Columns[i].Type == models.ColumnProgress {
			progressCol = &e.board.Columns[i]
			break
		}
	}
	out := []TimelineEvent{}
	for _, it := range e.Items(view.Filters, view.Sorts) {
		start, ok1 := toTime(it.Data[dates[0].ID])
		end, ok2 := toTime(it.Data[dates[1].ID])
		if !ok1 || !ok2 {
			continue
		}
		ev := TimelineEvent{
			ID:           it.ID,
			Title:        e.itemTitle(it),
			Start:        start,
			End:          end,
			Item:         it,
			Dependencies: e.dependencies(it),
		}
		if progressCol != nil {
			ev.Progress = e.Progress(progressCol, it)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Dashboard summarises the view's items.
func (e *Engine) Dashboard(view models.View) Dashboard {
	items := e.Items(view.Filters, nil)
	now := e.now()

	var due *models.Column
	for _, c := range e.dateColumns() {
		if strings.Contains(strings.ToLower(c.Title), "due") {
			due = c
			break
		}
	}

	var s Summary
	s.Total = len(items)
	var statusOrder, priorityOrder []string
	statusCounts := make(map[string]int)
	priorityCounts := make(map[string]int)
	for _, it := range items {
		status := e.statusOf(it)
		if isDone(status) {
			s.Completed++
		}
		if due != nil && !isDone(status) {
			if t, ok := toTime(it.Data[due.ID]); ok && t.Before(now) {
				s.Overdue++
			}
		}
		if status == "" {
			status = "No Status"
		}
		if statusCounts[status] == 0 {
			statusOrder = append(statusOrder, status)
		}
		statusCounts[status]++

		priority := it.Priority
		if priority == "" {
			priority = "No Priority"
		}
		if priorityCounts[priority] == 0 {
			priorityOrder = append(priorityOrder, priority)
		}
		priorityCounts[priority]++
	}
	if s.Total > 0 {
		s.CompletionRate = float64(roundPercent(s.Completed, s.Total))
	}

	chart := func(typ, title string, order []string, counts map[string]int) Chart {
		c := Chart{Type: typ, Title: title, Data: []ChartPoint{}}
		for _, k := range order {
			c.Data = append(c.Data, ChartPoint{Label: k, Value: counts[k]})
		}
		return c
	}

	recent := slices.Clone(items)
	slices.SortStableFunc(recent, func(a, b *models.Item) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	if len(recent) > 10 {
		recent = recent[:10]
	}

	return Dashboard{
		Summary: s,
		Charts: []Chart{
			chart("pie", "Status Distribution", statusOrder, statusCounts),
			chart("bar", "Priority Distribution", priorityOrder, priorityCounts),
		},
		RecentItems: recent,
	}
}

func roundPercent(n, total int) int {
	return (n*200 + total) / (2 * total)
}

// itemTitle prefers a text column named like a title or name, then the
// first text column, then "Item <id>".
func (e *Engine) itemTitle(item *models.Item) string {
	var first *models.Column
	for i := range e.board.Columns {
		c := &e.board.Columns[i]
		if c.Type != models.ColumnText {
			continue
		}
		title := strings.ToLower(c.Title)
		if strings.Contains(title, "title") || strings.Contains(title, "name") {
			first = c
			break
		}
		if first == nil {
			first = c
		}
	}
	if first != nil {
		if s := toString(item.Data[first.ID]); s != "" {
			return s
		}
	}
	return "Item " + item.ID
}

func itemColor(item *models.Item) string {
	if c, ok := priorityColors[item.Priority]; ok {
		return c
	}
	return "#3b82f6"
}

// dependencies reads a column titled like "depends", else the parent item.
func (e *Engine) dependencies(item *models.Item) []string {
	for _, c := range e.board.Columns {
		if strings.Contains(strings.ToLower(c.Title), "depend") {
			if deps := toStringSlice(item.Data[c.ID]); len(deps) > 0 {
				return deps
			}
			break
		}
	}
	if item.ParentID != "" {
		return []string{item.ParentID}
	}
	return []string{}
}
