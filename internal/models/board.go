// Package models defines the domain types for FlexiBoard.
package models

import "time"

// ViewType identifies how a board view is rendered.
type ViewType string

const (
	ViewKanban    ViewType = "kanban"
	ViewTable     ViewType = "table"
	ViewCalendar  ViewType = "calendar"
	ViewTimeline  ViewType = "timeline"
	ViewDashboard ViewType = "dashboard"
	ViewGantt     ViewType = "gantt"
	ViewChart     ViewType = "chart"
	ViewForm      ViewType = "form"
	ViewMap       ViewType = "map"
	ViewCards     ViewType = "cards"
	ViewFiles     ViewType = "files"
)

// ColumnType is the type tag of a board column.
type ColumnType string

const (
	ColumnText          ColumnType = "text"
	ColumnLongText      ColumnType = "long-text"
	ColumnNumber        ColumnType = "number"
	ColumnDate          ColumnType = "date"
	ColumnDateTime      ColumnType = "datetime"
	ColumnStatus        ColumnType = "status"
	ColumnPriority      ColumnType = "priority"
	ColumnPerson        ColumnType = "person"
	ColumnTeam          ColumnType = "team"
	ColumnFile          ColumnType = "file"
	ColumnProgress      ColumnType = "progress"
	ColumnTimeline      ColumnType = "timeline"
	ColumnTags          ColumnType = "tags"
	ColumnDropdown      ColumnType = "dropdown"
	ColumnMultiselect   ColumnType = "multiselect"
	ColumnCurrency      ColumnType = "currency"
	ColumnRating        ColumnType = "rating"
	ColumnCheckbox      ColumnType = "checkbox"
	ColumnEmail         ColumnType = "email"
	ColumnPhone         ColumnType = "phone"
	ColumnURL           ColumnType = "url"
	ColumnLocation      ColumnType = "location"
	ColumnFormula       ColumnType = "formula"
	ColumnLookup        ColumnType = "lookup"
	ColumnConnectBoards ColumnType = "connect-boards"
	ColumnMirror        ColumnType = "mirror"
	ColumnAutoNumber    ColumnType = "auto-number"
	ColumnCreationLog   ColumnType = "creation-log"
	ColumnLastUpdated   ColumnType = "last-updated"
	ColumnVote          ColumnType = "vote"
	ColumnWorldClock    ColumnType = "world-clock"
	ColumnWeek          ColumnType = "week"
	ColumnButton        ColumnType = "button"
	ColumnColorPicker   ColumnType = "color-picker"
)

// ColumnTypes lists every known column type.
var ColumnTypes = []ColumnType{
	ColumnText, ColumnLongText, ColumnNumber, ColumnDate, ColumnDateTime, ColumnStatus,
	ColumnPriority, ColumnPerson, ColumnTeam, ColumnFile, ColumnProgress, ColumnTimeline,
	ColumnTags, ColumnDropdown, ColumnMultiselect, ColumnCurrency, ColumnRating,
	ColumnCheckbox, ColumnEmail, ColumnPhone, ColumnURL, ColumnLocation, ColumnFormula,
	ColumnLookup, ColumnConnectBoards, ColumnMirror, ColumnAutoNumber, ColumnCreationLog,
	ColumnLastUpdated, ColumnVote, ColumnWorldClock, ColumnWeek, ColumnButton, ColumnColorPicker,
}

// Priority levels.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Formula configures a formula column.
type Formula struct {
	Expression   string   `json:"expression" yaml:"expression"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ResultType   string   `json:"result_type,omitempty" yaml:"result_type,omitempty"` // number, text, date, boolean
}

// Lookup configures a lookup column.
type Lookup struct {
	SourceBoard   string `json:"source_board" yaml:"source_board"`
	SourceColumn  string `json:"source_column" yaml:"source_column"`
	LinkColumn    string `json:"link_column" yaml:"link_column"`
	DisplayColumn string `json:"display_column,omitempty" yaml:"display_column,omitempty"`
}

// Link types for connect-boards columns.
const (
	LinkOneToMany  = "one-to-many"
	LinkManyToMany = "many-to-many"
)

// ConnectBoards configures a connect-boards or mirror column.
type ConnectBoards struct {
	LinkedBoard   string   `json:"linked_board" yaml:"linked_board"`
	LinkType      string   `json:"link_type" yaml:"link_type"`
	MirrorColumns []string `json:"mirror_columns,omitempty" yaml:"mirror_columns,omitempty"`
}

// ColumnValidation holds per-column input constraints.
type ColumnValidation struct {
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
	Unique   bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// ColumnSettings holds display and computation settings.
type ColumnSettings struct {
	ShowInCard    bool   `json:"show_in_card,omitempty" yaml:"show_in_card,omitempty"`
	HideEmpty     bool   `json:"hide_empty,omitempty" yaml:"hide_empty,omitempty"`
	Prefix        string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix        string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	DecimalPlaces *int   `json:"decimal_places,omitempty" yaml:"decimal_places,omitempty"`
	DateFormat    string `json:"date_format,omitempty" yaml:"date_format,omitempty"`
	TimeZone      string `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
	AllowMultiple bool   `json:"allow_multiple,omitempty" yaml:"allow_multiple,omitempty"`
	AutoCalculate bool   `json:"auto_calculate,omitempty" yaml:"auto_calculate,omitempty"`
}

// Column is a typed field of a board.
type Column struct {
	ID            string            `json:"id" yaml:"id"`
	Title         string            `json:"title" yaml:"title"`
	Type          ColumnType        `json:"type" yaml:"type"`
	Width         int               `json:"width,omitempty" yaml:"width,omitempty"`
	Required      bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Options       []string          `json:"options,omitempty" yaml:"options,omitempty"`
	DefaultValue  any               `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Validation    *ColumnValidation `json:"validation,omitempty" yaml:"validation,omitempty"`
	Formula       *Formula          `json:"formula,omitempty" yaml:"formula,omitempty"`
	Lookup        *Lookup           `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	ConnectBoards *ConnectBoards    `json:"connect_boards,omitempty" yaml:"connect_boards,omitempty"`
	Settings      *ColumnSettings   `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Item is a row of a board. Data is keyed by column id.
type Item struct {
	ID         string         `json:"id"`
	BoardID    string         `json:"board_id"`
	Data       map[string]any `json:"data"`
	Status     string         `json:"status,omitempty"`
	Priority   string         `json:"priority,omitempty"`
	Assignees  []string       `json:"assignees,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	GroupID    string         `json:"group_id,omitempty"`
	ParentID   string         `json:"parent_id,omitempty"`
	Position   int            `json:"position"`
	CreatedBy  string         `json:"created_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
}

// Group is a named bucket of items.
type Group struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Color     string `json:"color,omitempty" yaml:"color,omitempty"`
	Collapsed bool   `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
}

// Filter operators.
const (
	FilterEquals   = "equals"
	FilterContains = "contains"
	FilterGreater  = "greater"
	FilterLess     = "less"
	FilterBetween  = "between"
	FilterIn       = "in"
	FilterEmpty    = "empty"
)

// Filter restricts the items of a view.
type Filter struct {
	Column      string `json:"column" yaml:"column"`
	Operator    string `json:"operator" yaml:"operator"`
	Value       any    `json:"value,omitempty" yaml:"value,omitempty"`
	Conjunction string `json:"conjunction,omitempty" yaml:"conjunction,omitempty"`
}

// Sort orders the items of a view.
type Sort struct {
	Column    string `json:"column" yaml:"column"`
	Direction string `json:"direction" yaml:"direction"` // asc or desc
}

// View is a saved presentation of a board.
type View struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Type           ViewType       `json:"type" yaml:"type"`
	IsDefault      bool           `json:"is_default,omitempty" yaml:"is_default,omitempty"`
	Filters        []Filter       `json:"filters" yaml:"filters"`
	Sorts          []Sort         `json:"sorts" yaml:"sorts"`
	GroupBy        string         `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	VisibleColumns []string       `json:"visible_columns,omitempty" yaml:"visible_columns,omitempty"`
	Settings       map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Permissions is the per-board capability set.
type Permissions struct {
	CanEdit              bool `json:"can_edit"`
	CanDelete            bool `json:"can_delete"`
	CanShare             bool `json:"can_share"`
	CanComment           bool `json:"can_comment"`
	CanManageAutomations bool `json:"can_manage_automations"`
	CanExport            bool `json:"can_export"`
	CanDuplicate         bool `json:"can_duplicate"`
}

// Settings is the per-board feature switchboard.
type Settings struct {
	AllowComments       bool `json:"allow_comments"`
	EnableNotifications bool `json:"enable_notifications"`
	ShowSubItems        bool `json:"show_sub_items"`
	ColorCoding         bool `json:"color_coding"`
	EnableAutomations   bool `json:"enable_automations"`
	TrackTime           bool `json:"track_time"`
	RequireApproval     bool `json:"require_approval"`
	ShowUpdates         bool `json:"show_updates"`
	EnableIntegrations  bool `json:"enable_integrations"`
	AllowBulkOperations bool `json:"allow_bulk_operations"`
}

// DefaultPermissions grants everything.
func DefaultPermissions() Permissions {
	return Permissions{
		CanEdit: true, CanDelete: true, CanShare: true, CanComment: true,
		CanManageAutomations: true, CanExport: true, CanDuplicate: true,
	}
}

// DefaultSettings enables the common features.
func DefaultSettings() Settings {
	return Settings{
		AllowComments:       true,
		EnableNotifications: true,
		ShowSubItems:        true,
		ColorCoding:         true,
		EnableAutomations:   true,
		ShowUpdates:         true,
		AllowBulkOperations: true,
	}
}

// Board is the aggregate root of the FlexiBoard domain.
type Board struct {
	ID            string       `json:"id"`
	WorkspaceID   string       `json:"workspace_id"`
	FolderID      string       `json:"folder_id,omitempty"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	OwnerID       string       `json:"owner_id"`
	BusinessApp   string       `json:"business_app,omitempty"`
	Template      string       `json:"template,omitempty"`
	Columns       []Column     `json:"columns"`
	Items         []*Item      `json:"items"`
	ArchivedItems []*Item      `json:"archived_items,omitempty"`
	Groups        []Group      `json:"groups,omitempty"`
	Views         []View       `json:"views"`
	ActiveViewID  string       `json:"active_view_id"`
	Automations   []Automation `json:"automations,omitempty"`
	Permissions   Permissions  `json:"permissions"`
	Settings      Settings     `json:"settings"`
	IsTemplate    bool         `json:"is_template,omitempty"`
	Version       int64        `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Column returns the column with the given id, or nil.
func (b *Board) Column(id string) *Column {
	for i := range b.Columns {
		if b.Columns[i].ID == id {
			return &b.Columns[i]
		}
	}
	return nil
}

// ColumnByRef resolves a column by id first, then by title.
func (b *Board) ColumnByRef(ref string) *Column {
	if c := b.Column(ref); c != nil {
		return c
	}
	for i := range b.Columns {
		if b.Columns[i].Title == ref {
			return &b.Columns[i]
		}
	}
	return nil
}

// Item returns the live item with the given id, or nil.
func (b *Board) Item(id string) *Item {
	for _, it := range b.Items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// Group returns the group with the given id, or nil.
func (b *Board) Group(id string) *Group {
	for i := range b.Groups {
		if b.Groups[i].ID == id {
			return &b.Groups[i]
		}
	}
	return nil
}

// View returns the view with the given id, or nil.
func (b *Board) View(id string) *View {
	for i := range b.Views {
		if b.Views[i].ID == id {
			return &b.Views[i]
		}
	}
	return nil
}

// BoardSummary is a lightweight board listing row.
type BoardSummary struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	FolderID    string    `json:"folder_id,omitempty"`
	Name        string    `json:"name"`
	BusinessApp string    `json:"business_app,omitempty"`
	ItemCount   int       `json:"item_count"`
	Version     int64     `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}
