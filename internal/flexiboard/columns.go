package flexiboard

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// Evaluate computes the display value of a column for an item.
//
//	formula         expression result, or FormulaError
//	lookup          value from the source board, or FormulaError
//	connect-boards  []*models.Item from the linked board
//	mirror          map of mirror column -> []any
//	progress        float64 in 0..100
//	timeline        TimelineValue
//
// Every other type returns the raw cell.
func (e *Engine) Evaluate(col *models.Column, item *models.Item) any {
	switch col.Type {
	case models.ColumnFormula:
		return e.evaluateFormula(col, item)
	case models.ColumnLookup:
		return e.evaluateLookup(col, item)
	case models.ColumnConnectBoards:
		return e.ConnectedItems(col, item)
	case models.ColumnMirror:
		return e.MirroredValues(col, item)
	case models.ColumnProgress:
		return e.Progress(col, item)
	case models.ColumnTimeline:
		return e.Timeline(col, item)
	}
	return item.Data[col.ID]
}

// EvaluateItem evaluates every computed column of an item, keyed by column id.
func (e *Engine) EvaluateItem(item *models.Item) map[string]any {
	out := make(map[string]any)
	for i := range e.board.Columns {
		col := &e.board.Columns[i]
		switch col.Type {
		case models.ColumnFormula, models.ColumnLookup, models.ColumnConnectBoards,
			models.ColumnMirror, models.ColumnProgress, models.ColumnTimeline:
			v := e.Evaluate(col, item)
			if items, ok := v.([]*models.Item); ok {
				ids := make([]string, len(items))
				for j, it := range items {
					ids[j] = it.ID
				}
				v = ids
			}
			out[col.ID] = v
		}
	}
	return out
}

func (e *Engine) evaluateLookup(col *models.Column, item *models.Item) any {
	if col.Lookup == nil {
		return nil
	}
	l := col.Lookup
	src, ok := e.connected[l.SourceBoard]
	if !ok {
		e.logger.Debug("lookup source board missing",
			slog.String("board_id", e.board.ID),
			slog.String("column_id", col.ID),
			slog.String("source_board", l.SourceBoard))
		return FormulaError
	}
	link := item.Data[l.LinkColumn]
	if link == nil {
		return nil
	}
	for _, s := range src.Items {
		if valuesEqual(s.Data[l.SourceColumn], link) || valuesEqual(s.ID, link) {
			if l.DisplayColumn != "" {
				return s.Data[l.DisplayColumn]
			}
			return s.Data
		}
	}
	return nil
}

// LookupOption is a selectable value for a lookup column.
type LookupOption struct {
	Label any `json:"label"`
	Value any `json:"value"`
}

// LookupOptions lists the values a lookup column can link to.
func (e *Engine) LookupOptions(col *models.Column) []LookupOption {
	if col.Lookup == nil {
		return nil
	}
	src, ok := e.connected[col.Lookup.SourceBoard]
	if !ok {
		return nil
	}
	out := make([]LookupOption, 0, len(src.Items))
	for _, it := range src.Items {
		label := it.Data[col.Lookup.SourceColumn]
		if col.Lookup.DisplayColumn != "" {
			label = it.Data[col.Lookup.DisplayColumn]
		}
		value := it.Data[col.Lookup.SourceColumn]
		if isEmpty(value) {
			value = it.ID
		}
		out = append(out, LookupOption{Label: label, Value: value})
	}
	return out
}

// ConnectedItems returns the linked-board items whose ids are stored in
// the cell.
func (e *Engine) ConnectedItems(col *models.Column, item *models.Item) []*models.Item {
	if col.ConnectBoards == nil {
		return nil
	}
	linked, ok := e.connected[col.ConnectBoards.LinkedBoard]
	if !ok {
		return nil
	}
	ids := toStringSlice(item.Data[col.ID])
	if len(ids) == 0 {
		return nil
	}
	var out []*models.Item
	for _, it := range linked.Items {
		if slices.Contains(ids, it.ID) {
			out = append(out, it)
		}
	}
	return out
}

// MirroredValues collects, per mirror column, the non-nil values of the
// connected items.
func (e *Engine) MirroredValues(col *models.Column, item *models.Item) map[string][]any {
	out := make(map[string][]any)
	if col.ConnectBoards == nil || len(col.ConnectBoards.MirrorColumns) == 0 {
		return out
	}
	items := e.ConnectedItems(col, item)
	for _, mc := range col.ConnectBoards.MirrorColumns {
		values := []any{}
		for _, it := range items {
			if v := it.Data[mc]; v != nil {
				values = append(values, v)
			}
		}
		out[mc] = values
	}
	return out
}

// AddConnection links item to targetItemID. One-to-many columns replace the
// existing link; many-to-many append. Returns false when already linked.
func (e *Engine) AddConnection(columnID, itemID, targetItemID string) (bool, error) {
	col, item, err := e.connectTarget(columnID, itemID)
	if err != nil {
		return false, err
	}
	ids := toStringSlice(item.Data[col.ID])
	if slices.Contains(ids, targetItemID) {
		return false, nil
	}
	if col.ConnectBoards.LinkType == models.LinkOneToMany {
		ids = []string{targetItemID}
	} else {
		ids = append(ids, targetItemID)
	}
	item.Data[col.ID] = toAnySlice(ids)
	item.UpdatedAt = e.now()
	e.touch()
	return true, nil
}

// RemoveConnection unlinks targetItemID. An emptied cell is cleared.
func (e *Engine) RemoveConnection(columnID, itemID, targetItemID string) (bool, error) {
	col, item, err := e.connectTarget(columnID, itemID)
	if err != nil {
		return false, err
	}
	ids := toStringSlice(item.Data[col.ID])
	kept := slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return id == targetItemID })
	if len(kept) == 0 {
		delete(item.Data, col.ID)
	} else {
		item.Data[col.ID] = toAnySlice(kept)
	}
	item.UpdatedAt = e.now()
	e.touch()
	return len(kept) < len(ids), nil
}

func (e *Engine) connectTarget(columnID, itemID string) (*models.Column, *models.Item, error) {
	col := e.board.Column(columnID)
	if col == nil {
		return nil, nil, fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
	}
	if col.ConnectBoards == nil {
		return nil, nil, fmt.Errorf("column %s is not a connect-boards column: %w", columnID, apperr.ErrInvalid)
	}
	item := e.board.Item(itemID)
	if item == nil {
		return nil, nil, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
	}
	if item.Data == nil {
		item.Data = make(map[string]any)
	}
	return col, item, nil
}

// Progress returns the completion percentage of a progress column. With
// AutoCalculate it is the share of sub-items whose status counts as done,
// matching Statistics.
func (e *Engine) Progress(col *models.Column, item *models.Item) float64 {
	if col.Settings != nil && col.Settings.AutoCalculate {
		var total, done int
		for _, it := range e.board.Items {
			if it.ParentID != item.ID {
				continue
			}
			total++
			if isDone(e.statusOf(it)) {
				done++
			}
		}
		if total == 0 {
			return 0
		}
		return math.Round(float64(done) / float64(total) * 100)
	}
	v := item.Data[col.ID]
	if !isNumber(v) {
		return 0
	}
	f, _ := toFloat(v)
	return math.Max(0, math.Min(100, f))
}

// TimelineValue is the evaluated form of a timeline cell.
type TimelineValue struct {
	Start    *time.Time    `json:"start"`
	End      *time.Time    `json:"end"`
	Duration time.Duration `json:"duration"`
	Progress float64       `json:"progress"`
}

// Timeline reads a {start, end} cell and reports its duration and how much
// of it has elapsed.
func (e *Engine) Timeline(col *models.Column, item *models.Item) TimelineValue {
	var tv TimelineValue
	m, ok := item.Data[col.ID].(map[string]any)
	if !ok {
		return tv
	}
	if t, ok := toTime(m["start"]); ok {
		tv.Start = &t
	}
	if t, ok := toTime(m["end"]); ok {
		tv.End = &t
	}
	if tv.Start == nil || tv.End == nil {
		return tv
	}
	tv.Duration = tv.End.Sub(*tv.Start)
	elapsed := e.now().Sub(*tv.Start)
	switch {
	case elapsed <= 0:
		tv.Progress = 0
	case elapsed >= tv.Duration:
		tv.Progress = 100
	default:
		tv.Progress = math.Round(float64(elapsed) / float64(tv.Duration) * 100)
	}
	return tv
}

// SetTimeline updates the start and/or end of a timeline cell.
func (e *Engine) SetTimeline(columnID, itemID string, start, end *time.Time) error {
	item := e.board.Item(itemID)
	if item == nil {
		return fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
	}
	if e.board.Column(columnID) == nil {
		return fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
	}
	cur, _ := item.Data[columnID].(map[string]any)
	next := make(map[string]any, 2)
	for k, v := range cur {
		next[k] = v
	}
	if start != nil {
		next["start"] = start.Format(time.RFC3339)
	}
	if end != nil {
		next["end"] = end.Format(time.RFC3339)
	}
	if item.Data == nil {
		item.Data = make(map[string]any)
	}
	item.Data[columnID] = next
	item.UpdatedAt = e.now()
	e.touch()
	return nil
}
