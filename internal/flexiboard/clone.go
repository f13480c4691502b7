package flexiboard

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// CloneBoard deep-copies a board through its JSON form.
func CloneBoard(b *models.Board) (*models.Board, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("flexiboard: clone board: %w", err)
	}
	var out models.Board
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("flexiboard: clone board: %w", err)
	}
	return &out, nil
}

// DuplicateOptions selects what Duplicate copies. Views and automations are
// copied unless excluded; item data only when IncludeData is set.
type DuplicateOptions struct {
	IncludeData        bool `json:"include_data"`
	ExcludeAutomations bool `json:"exclude_automations"`
	ExcludeViews       bool `json:"exclude_views"`
}

// Duplicate builds a new board shaped like this one. Columns, views, groups
// and automations get fresh ids and every reference to an old column id is
// rewritten to the new one.
func (e *Engine) Duplicate(name string, opts DuplicateOptions) *models.Board {
	src := e.board
	now := e.now()

	colMap := make(map[string]string, len(src.Columns))
	columns := make([]models.Column, len(src.Columns))
	for i, c := range src.Columns {
		nc := cloneColumn(c)
		nc.ID = e.newID()
		colMap[c.ID] = nc.ID
		columns[i] = nc
	}
	remap := func(id string) string {
		if n, ok := colMap[id]; ok {
			return n
		}
		return id
	}

	groupMap := make(map[string]string, len(src.Groups))
	groups := make([]models.Group, len(src.Groups))
	for i, g := range src.Groups {
		g.ID = e.newID()
		groupMap[src.Groups[i].ID] = g.ID
		groups[i] = g
	}

	out := &models.Board{
		ID:          e.newID(),
		WorkspaceID: src.WorkspaceID,
		FolderID:    src.FolderID,
		Name:        name,
		Description: src.Description,
		OwnerID:     src.OwnerID,
		BusinessApp: src.BusinessApp,
		Template:    src.Template,
		Columns:     columns,
		Items:       []*models.Item{},
		Groups:      groups,
		Permissions: src.Permissions,
		Settings:    src.Settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if opts.ExcludeViews || len(src.Views) == 0 {
		v := DefaultView(e.newID(), columns)
		out.Views = []models.View{v}
		out.ActiveViewID = v.ID
	} else {
		for _, v := range src.Views {
			nv := remapView(v, remap)
			nv.ID = e.newID()
			if v.ID == src.ActiveViewID {
				out.ActiveViewID = nv.ID
			}
			out.Views = append(out.Views, nv)
		}
		if out.ActiveViewID == "" {
			out.ActiveViewID = out.Views[0].ID
		}
	}

	if !opts.ExcludeAutomations {
		for _, a := range src.Automations {
			na := remapAutomation(a, remap)
			na.ID = e.newID()
			na.CreatedAt = now
			na.LastRun = nil
			na.RunCount = 0
			out.Automations = append(out.Automations, na)
		}
	}

	if opts.IncludeData {
		itemMap := make(map[string]string, len(src.Items))
		for _, it := range src.Items {
			itemMap[it.ID] = e.newID()
		}
		for i, it := range src.Items {
			data := make(map[string]any, len(it.Data))
			for k, v := range it.Data {
				data[remap(k)] = cloneValue(v)
			}
			ni := &models.Item{
				ID:        itemMap[it.ID],
				BoardID:   out.ID,
				Data:      data,
				Status:    it.Status,
				Priority:  it.Priority,
				Assignees: slices.Clone(it.Assignees),
				Tags:      slices.Clone(it.Tags),
				GroupID:   groupMap[it.GroupID],
				ParentID:  itemMap[it.ParentID],
				Position:  i,
				CreatedBy: it.CreatedBy,
				CreatedAt: now,
				UpdatedAt: now,
			}
			out.Items = append(out.Items, ni)
		}
	}
	return out
}

// TemplateOptions names a template snapshot.
type TemplateOptions struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IncludeData bool     `json:"include_data"`
}

// Template snapshots the board's shape. Column ids are kept so views and
// automations stay valid; item data is included on request.
func (e *Engine) Template(opts TemplateOptions) models.Template {
	src := e.board
	t := models.Template{
		ID:          opts.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Category:    opts.Category,
		BusinessApp: src.BusinessApp,
		Tags:        opts.Tags,
		Groups:      slices.Clone(src.Groups),
	}
	if t.Name == "" {
		t.Name = src.Name
	}
	settings := src.Settings
	t.Settings = &settings
	for _, c := range src.Columns {
		t.Columns = append(t.Columns, cloneColumn(c))
	}
	for _, v := range src.Views {
		nv := remapView(v, func(s string) string { return s })
		nv.IsDefault = v.ID == src.ActiveViewID
		t.Views = append(t.Views, nv)
	}
	for _, a := range src.Automations {
		na := remapAutomation(a, func(s string) string { return s })
		na.LastRun = nil
		na.RunCount = 0
		t.Automations = append(t.Automations, na)
	}
	if opts.IncludeData {
		for _, it := range src.Items {
			t.Items = append(t.Items, cloneData(it.Data))
		}
	}
	return t
}

// MorphOptions controls how a board is reshaped into a template.
type MorphOptions struct {
	PreserveData bool              `json:"preserve_data"`
	Mapping      map[string]string `json:"mapping,omitempty"`
}

// Morph reshapes the board in place to match tpl. Identity, ownership and
// workspace placement are kept. With PreserveData the items survive and, if
// a mapping is given, their data is moved from old to new column ids with
// unmapped cells dropped; without it the board starts empty.
func (e *Engine) Morph(tpl models.Template, opts MorphOptions) error {
	if len(tpl.Columns) == 0 {
		return fmt.Errorf("template %s has no columns: %w", tpl.ID, apperr.ErrInvalid)
	}
	b := e.board
	b.Name = tpl.Name
	if tpl.Description != "" {
		b.Description = tpl.Description
	}
	b.BusinessApp = tpl.BusinessApp
	b.Template = tpl.ID
	b.Columns = nil
	for _, c := range tpl.Columns {
		b.Columns = append(b.Columns, cloneColumn(c))
	}
	b.Groups = slices.Clone(tpl.Groups)
	e.applyTemplateViews(tpl)
	b.Automations = nil
	for _, a := range tpl.Automations {
		na := remapAutomation(a, func(s string) string { return s })
		if na.ID == "" {
			na.ID = e.newID()
		}
		na.CreatedAt = e.now()
		b.Automations = append(b.Automations, na)
	}

	if !opts.PreserveData {
		b.Items = []*models.Item{}
	} else if len(opts.Mapping) > 0 {
		for _, it := range b.Items {
			data := make(map[string]any, len(opts.Mapping))
			for oldID, newID := range opts.Mapping {
				if v, ok := it.Data[oldID]; ok {
					data[newID] = v
				}
			}
			it.Data = data
			if it.GroupID != "" && b.Group(it.GroupID) == nil {
				it.GroupID = ""
			}
		}
	}
	e.touch()
	return nil
}

// ApplyTemplate initialises an empty board from tpl: columns, groups,
// views, automations and any sample items.
func (e *Engine) ApplyTemplate(tpl models.Template) {
	b := e.board
	b.BusinessApp = tpl.BusinessApp
	b.Template = tpl.ID
	b.Columns = nil
	for _, c := range tpl.Columns {
		b.Columns = append(b.Columns, cloneColumn(c))
	}
	b.Groups = slices.Clone(tpl.Groups)
	if tpl.Settings != nil {
		b.Settings = *tpl.Settings
	}
	e.applyTemplateViews(tpl)
	for _, a := range tpl.Automations {
		na := remapAutomation(a, func(s string) string { return s })
		if na.ID == "" {
			na.ID = e.newID()
		}
		na.CreatedAt = e.now()
		b.Automations = append(b.Automations, na)
	}
	for _, data := range tpl.Items {
		e.AddItem(NewItem{Data: data, Status: toString(data["status"]), CreatedBy: b.OwnerID})
	}
	e.touch()
}

func (e *Engine) applyTemplateViews(tpl models.Template) {
	b := e.board
	b.Views = nil
	b.ActiveViewID = ""
	for _, v := range tpl.Views {
		nv := remapView(v, func(s string) string { return s })
		if nv.ID == "" {
			nv.ID = e.newID()
		}
		if nv.Filters == nil {
			nv.Filters = []models.Filter{}
		}
		if nv.Sorts == nil {
			nv.Sorts = []models.Sort{}
		}
		b.Views = append(b.Views, nv)
		if nv.IsDefault && b.ActiveViewID == "" {
			b.ActiveViewID = nv.ID
		}
	}
	if len(b.Views) == 0 {
		v := DefaultView(e.newID(), b.Columns)
		b.Views = []models.View{v}
	}
	if b.ActiveViewID == "" {
		b.ActiveViewID = b.Views[0].ID
	}
}

func (e *Engine) duplicateItem(src *models.Item) *models.Item {
	item := e.AddItem(NewItem{
		Data:      cloneData(src.Data),
		Status:    src.Status,
		Priority:  src.Priority,
		Assignees: slices.Clone(src.Assignees),
		Tags:      slices.Clone(src.Tags),
		GroupID:   src.GroupID,
		ParentID:  src.ParentID,
		CreatedBy: src.CreatedBy,
	})
	return item
}

func cloneColumn(c models.Column) models.Column {
	c.Options = slices.Clone(c.Options)
	c.DefaultValue = cloneValue(c.DefaultValue)
	if c.Validation != nil {
		v := *c.Validation
		c.Validation = &v
	}
	if c.Formula != nil {
		f := *c.Formula
		f.Dependencies = slices.Clone(f.Dependencies)
		c.Formula = &f
	}
	if c.Lookup != nil {
		l := *c.Lookup
		c.Lookup = &l
	}
	if c.ConnectBoards != nil {
		cb := *c.ConnectBoards
		cb.MirrorColumns = slices.Clone(cb.MirrorColumns)
		c.ConnectBoards = &cb
	}
	if c.Settings != nil {
		s := *c.Settings
		c.Settings = &s
	}
	return c
}

func remapView(v models.View, remap func(string) string) models.View {
	out := v
	out.Filters = make([]models.Filter, len(v.Filters))
	for i, f := range v.Filters {
		f.Column = remap(f.Column)
		f.Value = cloneValue(f.Value)
		out.Filters[i] = f
	}
	out.Sorts = make([]models.Sort, len(v.Sorts))
	for i, s := range v.Sorts {
		s.Column = remap(s.Column)
		out.Sorts[i] = s
	}
	if v.GroupBy != "" {
		out.GroupBy = remap(v.GroupBy)
	}
	if v.VisibleColumns != nil {
		out.VisibleColumns = make([]string, len(v.VisibleColumns))
		for i, c := range v.VisibleColumns {
			out.VisibleColumns[i] = remap(c)
		}
	}
	if v.Settings != nil {
		out.Settings = cloneData(v.Settings)
	}
	return out
}

func remapAutomation(a models.Automation, remap func(string) string) models.Automation {
	out := a
	if a.Trigger.Column != "" {
		out.Trigger.Column = remap(a.Trigger.Column)
	}
	if a.Trigger.Schedule != nil {
		s := *a.Trigger.Schedule
		s.Days = slices.Clone(s.Days)
		out.Trigger.Schedule = &s
	}
	out.Conditions = make([]models.Condition, len(a.Conditions))
	for i, c := range a.Conditions {
		c.Column = remap(c.Column)
		out.Conditions[i] = c
	}
	out.Actions = make([]models.Action, len(a.Actions))
	for i, act := range a.Actions {
		if act.TargetColumn != "" {
			act.TargetColumn = remap(act.TargetColumn)
		}
		act.Recipients = slices.Clone(act.Recipients)
		act.Value = cloneValue(act.Value)
		out.Actions[i] = act
	}
	return out
}
