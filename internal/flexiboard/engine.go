// Package flexiboard implements the in-memory board engine: column, item and
// view management, queries, automations, column evaluation and view rendering.
//
// An Engine wraps one *models.Board and mutates it in place. It is not safe
// for concurrent use; callers serialise access per board.
package flexiboard

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for skipped actions and failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConnectedBoard makes another board visible to lookup, connect-boards
// and mirror columns.
func WithConnectedBoard(b *models.Board) Option {
	return func(e *Engine) { e.connected[b.ID] = b }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine operates on a single board.
type Engine struct {
	board     *models.Board
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	connected map[string]*models.Board
}

// New returns an engine bound to board.
func New(board *models.Board, opts ...Option) *Engine {
	e := &Engine{
		board:     board,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    slog.Default(),
		connected: make(map[string]*models.Board),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Board returns the underlying board.
func (e *Engine) Board() *models.Board {
	return e.board
}

// ConnectBoard registers another board for cross-board columns.
func (e *Engine) ConnectBoard(b *models.Board) {
	e.connected[b.ID] = b
}

func (e *Engine) touch() {
	e.board.UpdatedAt = e.now()
}

// BoardPatch holds optional board-level updates.
type BoardPatch struct {
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	FolderID    *string             `json:"folder_id,omitempty"`
	BusinessApp *string             `json:"business_app,omitempty"`
	Groups      []models.Group      `json:"groups,omitempty"`
	Settings    *models.Settings    `json:"settings,omitempty"`
	Permissions *models.Permissions `json:"permissions,omitempty"`
}

// UpdateBoard applies patch to board-level fields.
func (e *Engine) UpdateBoard(p BoardPatch) *models.Board {
	b := e.board
	if p.Name != nil {
		b.Name = *p.Name
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.FolderID != nil {
		b.FolderID = *p.FolderID
	}
	if p.BusinessApp != nil {
		b.BusinessApp = *p.BusinessApp
	}
	if p.Groups != nil {
		b.Groups = p.Groups
	}
	if p.Settings != nil {
		b.Settings = *p.Settings
	}
	if p.Permissions != nil {
		b.Permissions = *p.Permissions
	}
	e.touch()
	return b
}

// AddColumn appends a column. An empty id is generated; a duplicate id fails.
func (e *Engine) AddColumn(c models.Column) (*models.Column, error) {
	if c.Title == "" {
		return nil, fmt.Errorf("column title is required: %w", apperr.ErrInvalid)
	}
	if c.Type == "" {
		c.Type = models.ColumnText
	}
	if !slices.Contains(models.ColumnTypes, c.Type) {
		return nil, fmt.Errorf("unknown column type %q: %w", c.Type, apperr.ErrInvalid)
	}
	if c.ID == "" {
		c.ID = e.newID()
	} else if e.board.Column(c.ID) != nil {
		return nil, fmt.Errorf("column %s: %w", c.ID, apperr.ErrAlreadyExists)
	}
	e.board.Columns = append(e.board.Columns, c)
	e.touch()
	return &e.board.Columns[len(e.board.Columns)-1], nil
}

// UpdateColumn replaces a column definition, keeping its id.
func (e *Engine) UpdateColumn(id string, c models.Column) (*models.Column, error) {
	existing := e.board.Column(id)
	if existing == nil {
		return nil, fmt.Errorf("column %s: %w", id, apperr.ErrNotFound)
	}
	if c.Type != "" && !slices.Contains(models.ColumnTypes, c.Type) {
		return nil, fmt.Errorf("unknown column type %q: %w", c.Type, apperr.ErrInvalid)
	}
	c.ID = id
	if c.Title == "" {
		c.Title = existing.Title
	}
	if c.Type == "" {
		c.Type = existing.Type
	}
	*existing = c
	e.touch()
	return existing, nil
}

// RemoveColumn deletes a column and its cell from every item.
func (e *Engine) RemoveColumn(id string) bool {
	before := len(e.board.Columns)
	e.board.Columns = slices.DeleteFunc(e.board.Columns, func(c models.Column) bool { return c.ID == id })
	if len(e.board.Columns) == before {
		return false
	}
	for _, it := range e.board.Items {
		delete(it.Data, id)
	}
	e.touch()
	return true
}

// ReorderColumns puts the named columns first in the given order. Unknown
// ids are ignored and unnamed columns keep their relative order at the end.
func (e *Engine) ReorderColumns(ids []string) {
	byID := make(map[string]models.Column, len(e.board.Columns))
	for _, c := range e.board.Columns {
		byID[c.ID] = c
	}
	out := make([]models.Column, 0, len(e.board.Columns))
	placed := make(map[string]bool, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, c)
	}
	for _, c := range e.board.Columns {
		if !placed[c.ID] {
			out = append(out, c)
		}
	}
	e.board.Columns = out
	e.touch()
}

// NewItem describes an item to create.
type NewItem struct {
	Data      map[string]any `json:"data"`
	Status    string         `json:"status,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	Assignees []string       `json:"assignees,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	GroupID   string         `json:"group_id,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
}

// AddItem appends an item at the end of the board. Column default values
// fill missing cells.
func (e *Engine) AddItem(in NewItem) *models.Item {
	now := e.now()
	data := cloneData(in.Data)
	for _, c := range e.board.Columns {
		if _, ok := data[c.ID]; !ok && c.DefaultValue != nil {
			data[c.ID] = cloneValue(c.DefaultValue)
		}
	}
	item := &models.Item{
		ID:        e.newID(),
		BoardID:   e.board.ID,
		Data:      data,
		Status:    in.Status,
		Priority:  in.Priority,
		Assignees: in.Assignees,
		Tags:      in.Tags,
		GroupID:   in.GroupID,
		ParentID:  in.ParentID,
		CreatedBy: in.CreatedBy,
		Position:  len(e.board.Items),
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.mirror(item, "status", &item.Status, in.Status != "")
	e.mirror(item, "priority", &item.Priority, in.Priority != "")
	e.board.Items = append(e.board.Items, item)
	e.touch()
	return item
}

// mirror keeps an item field equal to the cell of the same-named column
// when the board has one. An explicitly written field wins, then the cell,
// then a field with no cell behind it.
func (e *Engine) mirror(item *models.Item, columnID string, field *string, fieldSet bool) {
	if e.board.Column(columnID) == nil {
		return
	}
	v, hasCell := item.Data[columnID]
	switch {
	case fieldSet && *field == "":
		delete(item.Data, columnID)
	case fieldSet:
		item.Data[columnID] = *field
	case hasCell:
		*field = toString(v)
	case *field != "":
		item.Data[columnID] = *field
	}
}

// ItemPatch holds optional item updates. Data keys are merged; a nil value
// deletes the cell.
type ItemPatch struct {
	Data      map[string]any `json:"data,omitempty"`
	Status    *string        `json:"status,omitempty"`
	Priority  *string        `json:"priority,omitempty"`
	Assignees []string       `json:"assignees,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	GroupID   *string        `json:"group_id,omitempty"`
	ParentID  *string        `json:"parent_id,omitempty"`
}

// UpdateItem applies patch to an item.
func (e *Engine) UpdateItem(id string, p ItemPatch) (*models.Item, error) {
	item := e.board.Item(id)
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	if item.Data == nil {
		item.Data = make(map[string]any)
	}
	for k, v := range p.Data {
		if v == nil {
			delete(item.Data, k)
			continue
		}
		item.Data[k] = v
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	if p.Priority != nil {
		item.Priority = *p.Priority
	}
	if p.Assignees != nil {
		item.Assignees = p.Assignees
	}
	if p.Tags != nil {
		item.Tags = p.Tags
	}
	if p.GroupID != nil {
		item.GroupID = *p.GroupID
	}
	if p.ParentID != nil {
		item.ParentID = *p.ParentID
	}
	e.mirror(item, "status", &item.Status, p.Status != nil)
	e.mirror(item, "priority", &item.Priority, p.Priority != nil)
	item.UpdatedAt = e.now()
	e.touch()
	return item, nil
}

// RemoveItem deletes an item.
func (e *Engine) RemoveItem(id string) bool {
	before := len(e.board.Items)
	e.board.Items = slices.DeleteFunc(e.board.Items, func(it *models.Item) bool { return it.ID == id })
	if len(e.board.Items) == before {
		return false
	}
	e.renumber()
	e.touch()
	return true
}

// ArchiveItem moves an item out of the live list into ArchivedItems.
func (e *Engine) ArchiveItem(id string) bool {
	item := e.board.Item(id)
	if item == nil {
		return false
	}
	e.RemoveItem(id)
	now := e.now()
	item.ArchivedAt = &now
	e.board.ArchivedItems = append(e.board.ArchivedItems, item)
	return true
}

// MoveItem moves an item to position (clamped) and optionally to a group.
func (e *Engine) MoveItem(id string, position int, groupID string) error {
	item := e.board.Item(id)
	if item == nil {
		return fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	if groupID != "" {
		if e.board.Group(groupID) == nil {
			return fmt.Errorf("group %s: %w", groupID, apperr.ErrNotFound)
		}
		item.GroupID = groupID
	}
	items := slices.DeleteFunc(e.board.Items, func(it *models.Item) bool { return it.ID == id })
	position = max(0, min(position, len(items)))
	e.board.Items = slices.Insert(items, position, item)
	e.renumber()
	item.UpdatedAt = e.now()
	e.touch()
	return nil
}

func (e *Engine) renumber() {
	for i, it := range e.board.Items {
		it.Position = i
	}
}

// ActiveView returns the active view, or nil.
func (e *Engine) ActiveView() *models.View {
	return e.board.View(e.board.ActiveViewID)
}

// SetActiveView switches the active view.
func (e *Engine) SetActiveView(id string) bool {
	if e.board.View(id) == nil {
		return false
	}
	e.board.ActiveViewID = id
	e.touch()
	return true
}

// AddView appends a view.
func (e *Engine) AddView(v models.View) (*models.View, error) {
	if v.Name == "" {
		return nil, fmt.Errorf("view name is required: %w", apperr.ErrInvalid)
	}
	if v.Type == "" {
		v.Type = models.ViewTable
	}
	if v.ID == "" {
		v.ID = e.newID()
	} else if e.board.View(v.ID) != nil {
		return nil, fmt.Errorf("view %s: %w", v.ID, apperr.ErrAlreadyExists)
	}
	e.board.Views = append(e.board.Views, v)
	if e.board.ActiveViewID == "" {
		e.board.ActiveViewID = v.ID
	}
	e.touch()
	return &e.board.Views[len(e.board.Views)-1], nil
}

// UpdateView replaces a view definition, keeping its id.
func (e *Engine) UpdateView(id string, v models.View) (*models.View, error) {
	existing := e.board.View(id)
	if existing == nil {
		return nil, fmt.Errorf("view %s: %w", id, apperr.ErrNotFound)
	}
	v.ID = id
	if v.Name == "" {
		v.Name = existing.Name
	}
	if v.Type == "" {
		v.Type = existing.Type
	}
	*existing = v
	e.touch()
	return existing, nil
}

// RemoveView deletes a view. The last view cannot be removed; removing the
// active view activates the first remaining one.
func (e *Engine) RemoveView(id string) bool {
	if len(e.board.Views) <= 1 || e.board.View(id) == nil {
		return false
	}
	e.board.Views = slices.DeleteFunc(e.board.Views, func(v models.View) bool { return v.ID == id })
	if e.board.ActiveViewID == id {
		e.board.ActiveViewID = e.board.Views[0].ID
	}
	e.touch()
	return true
}

// DefaultView builds the table view every new board starts with.
func DefaultView(id string, columns []models.Column) models.View {
	visible := make([]string, len(columns))
	for i, c := range columns {
		visible[i] = c.ID
	}
	return models.View{
		ID:             id,
		Name:           "Main Table",
		Type:           models.ViewTable,
		IsDefault:      true,
		Filters:        []models.Filter{},
		Sorts:          []models.Sort{},
		VisibleColumns: visible,
	}
}
