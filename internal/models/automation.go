package models

import "time"

// Trigger types.
const (
	TriggerStatusChanges = "when-status-changes"
	TriggerDateArrives   = "when-date-arrives"
	TriggerColumnChanges = "when-column-changes"
	TriggerTimePeriod    = "every-time-period"
	TriggerItemCreated   = "when-item-created"
	TriggerItemMoved     = "when-item-moved"
)

// Event types fed into the automation engine.
const (
	EventItemCreated = "item-created"
	EventItemUpdated = "item-updated"
	EventItemMoved   = "item-moved"
	EventDateReached = "date-reached"
	EventScheduled   = "scheduled"
)

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not-equals"
	OpContains    = "contains"
	OpNotContains = "not-contains"
	OpGreater     = "greater"
	OpLess        = "less"
	OpIsEmpty     = "is-empty"
	OpIsNotEmpty  = "is-not-empty"
	OpChangedTo   = "changed-to"
	OpChangedFrom = "changed-from"
)

// Logical operators joining conditions.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// Action types.
const (
	ActionChangeStatus      = "change-status"
	ActionAssignPerson      = "assign-person"
	ActionMoveToGroup       = "move-to-group"
	ActionCreateItem        = "create-item"
	ActionSendNotification  = "send-notification"
	ActionSendEmail         = "send-email"
	ActionArchiveItem       = "archive-item"
	ActionDuplicateItem     = "duplicate-item"
	ActionChangeColumnValue = "change-column-value"
	ActionCreateUpdate      = "create-update"
	ActionAddToBoard        = "add-to-board"
)

// Schedule frequencies.
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Schedule configures an every-time-period trigger.
type Schedule struct {
	Frequency string `json:"frequency" yaml:"frequency"`
	Time      string `json:"time,omitempty" yaml:"time,omitempty"` // HH:MM
	Days      []int  `json:"days,omitempty" yaml:"days,omitempty"`
}

// Trigger describes what starts an automation.
type Trigger struct {
	Type     string    `json:"type" yaml:"type"`
	Column   string    `json:"column,omitempty" yaml:"column,omitempty"`
	Value    any       `json:"value,omitempty" yaml:"value,omitempty"`
	Schedule *Schedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// Condition gates an automation on item data.
type Condition struct {
	Column          string `json:"column" yaml:"column"`
	Operator        string `json:"operator" yaml:"operator"`
	Value           any    `json:"value,omitempty" yaml:"value,omitempty"`
	LogicalOperator string `json:"logical_operator,omitempty" yaml:"logical_operator,omitempty"`
}

// Action is one step executed by an automation.
type Action struct {
	Type         string   `json:"type" yaml:"type"`
	TargetColumn string   `json:"target_column,omitempty" yaml:"target_column,omitempty"`
	Value        any      `json:"value,omitempty" yaml:"value,omitempty"`
	Message      string   `json:"message,omitempty" yaml:"message,omitempty"`
	Recipients   []string `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Template     string   `json:"template,omitempty" yaml:"template,omitempty"`
	Delay        int      `json:"delay,omitempty" yaml:"delay,omitempty"` // minutes
}

// Automation is a trigger/condition/action rule attached to a board.
type Automation struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Trigger     Trigger     `json:"trigger" yaml:"trigger"`
	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Actions     []Action    `json:"actions" yaml:"actions"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	CreatedBy   string      `json:"created_by,omitempty" yaml:"-"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	LastRun     *time.Time  `json:"last_run,omitempty" yaml:"-"`
	RunCount    int         `json:"run_count" yaml:"-"`
}

// Event is a board change fed to the automation engine.
type Event struct {
	Type     string `json:"type"`
	ItemID   string `json:"item_id,omitempty"`
	Column   string `json:"column,omitempty"`
	OldValue any    `json:"old_value,omitempty"`
	NewValue any    `json:"new_value,omitempty"`
	UserID   string `json:"user_id"`
}

// DeferredAction is an automation action postponed by its Delay.
type DeferredAction struct {
	ID           string    `json:"id"`
	BoardID      string    `json:"board_id"`
	AutomationID string    `json:"automation_id"`
	Action       Action    `json:"action"`
	Event        Event     `json:"event"`
	RunAt        time.Time `json:"run_at"`
}
