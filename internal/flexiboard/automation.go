package flexiboard

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// CrossBoardItem is an item to create on another board, produced by the
// add-to-board action.
type CrossBoardItem struct {
	TargetBoardID string  `json:"target_board_id"`
	SourceItemID  string  `json:"source_item_id"`
	Item          NewItem `json:"item"`
}

// Run records one automation that fired.
type Run struct {
	AutomationID string `json:"automation_id"`
	Name         string `json:"name"`
	Actions      int    `json:"actions"`
	Deferred     int    `json:"deferred"`
	Error        string `json:"error,omitempty"`
}

// Result carries the effects of an automation pass that leave the board.
type Result struct {
	Runs          []Run                   `json:"runs"`
	Notifications []models.Notification   `json:"notifications,omitempty"`
	Activities    []models.Activity       `json:"activities,omitempty"`
	Deferred      []models.DeferredAction `json:"deferred,omitempty"`
	CrossBoard    []CrossBoardItem        `json:"cross_board,omitempty"`
}

// Merge appends other's effects.
func (r *Result) Merge(other Result) {
	r.Runs = append(r.Runs, other.Runs...)
	r.Notifications = append(r.Notifications, other.Notifications...)
	r.Activities = append(r.Activities, other.Activities...)
	r.Deferred = append(r.Deferred, other.Deferred...)
	r.CrossBoard = append(r.CrossBoard, other.CrossBoard...)
}

// Fired reports whether any automation ran.
func (r Result) Fired() bool {
	return len(r.Runs) > 0
}

var errNoItem = errors.New("automation: action requires an item")

// Automations evaluates and manages a board's automation rules.
type Automations struct {
	e *Engine
}

// Automations returns the automation engine for the board.
func (e *Engine) Automations() *Automations {
	return &Automations{e: e}
}

// List returns the board's automations.
func (a *Automations) List() []models.Automation {
	return a.e.board.Automations
}

// Get returns an automation by id, or nil.
func (a *Automations) Get(id string) *models.Automation {
	for i := range a.e.board.Automations {
		if a.e.board.Automations[i].ID == id {
			return &a.e.board.Automations[i]
		}
	}
	return nil
}

// Add registers a new automation with a fresh id and zero run count.
func (a *Automations) Add(auto models.Automation) (*models.Automation, error) {
	if err := validateAutomation(auto); err != nil {
		return nil, err
	}
	auto.ID = a.e.newID()
	auto.CreatedAt = a.e.now()
	auto.RunCount = 0
	auto.LastRun = nil
	a.e.board.Automations = append(a.e.board.Automations, auto)
	a.e.touch()
	return &a.e.board.Automations[len(a.e.board.Automations)-1], nil
}

// Update replaces an automation's definition. Run bookkeeping and identity
// are preserved.
func (a *Automations) Update(id string, auto models.Automation) (*models.Automation, error) {
	existing := a.Get(id)
	if existing == nil {
		return nil, fmt.Errorf("automation %s: %w", id, apperr.ErrNotFound)
	}
	if err := validateAutomation(auto); err != nil {
		return nil, err
	}
	auto.ID = existing.ID
	auto.CreatedAt = existing.CreatedAt
	auto.CreatedBy = existing.CreatedBy
	auto.LastRun = existing.LastRun
	auto.RunCount = existing.RunCount
	*existing = auto
	a.e.touch()
	return existing, nil
}

// SetEnabled toggles an automation.
func (a *Automations) SetEnabled(id string, enabled bool) bool {
	existing := a.Get(id)
	if existing == nil {
		return false
	}
	existing.Enabled = enabled
	a.e.touch()
	return true
}

// Delete removes an automation.
func (a *Automations) Delete(id string) bool {
	before := len(a.e.board.Automations)
	a.e.board.Automations = slices.DeleteFunc(a.e.board.Automations, func(x models.Automation) bool { return x.ID == id })
	if len(a.e.board.Automations) == before {
		return false
	}
	a.e.touch()
	return true
}

func validateAutomation(auto models.Automation) error {
	if auto.Name == "" {
		return fmt.Errorf("automation name is required: %w", apperr.ErrInvalid)
	}
	switch auto.Trigger.Type {
	case models.TriggerStatusChanges, models.TriggerDateArrives, models.TriggerItemCreated, models.TriggerItemMoved:
	case models.TriggerColumnChanges:
		if auto.Trigger.Column == "" {
			return fmt.Errorf("trigger %s needs a column: %w", auto.Trigger.Type, apperr.ErrInvalid)
		}
	case models.TriggerTimePeriod:
		if _, err := CronSpec(auto.Trigger.Schedule); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trigger %q: %w", auto.Trigger.Type, apperr.ErrInvalid)
	}
	if len(auto.Actions) == 0 {
		return fmt.Errorf("automation needs at least one action: %w", apperr.ErrInvalid)
	}
	return nil
}

// Execute runs every enabled automation whose trigger matches ev, in board
// order. Actions mutate the board directly and never raise further events.
func (a *Automations) Execute(ev models.Event) Result {
	var res Result
	b := a.e.board
	if !b.Settings.EnableAutomations || len(b.Automations) == 0 {
		return res
	}
	for i := range b.Automations {
		auto := &b.Automations[i]
		if !auto.Enabled || !matchesTrigger(auto.Trigger, ev) {
			continue
		}
		a.run(auto, ev, &res)
	}
	return res
}

// RunOne executes a single automation for ev if it is enabled and its
// trigger matches. The scheduler uses it to target one rule at a time.
func (a *Automations) RunOne(id string, ev models.Event) Result {
	var res Result
	auto := a.Get(id)
	if auto == nil || !auto.Enabled || !a.e.board.Settings.EnableAutomations || !matchesTrigger(auto.Trigger, ev) {
		return res
	}
	a.run(auto, ev, &res)
	return res
}

// Fire runs one automation for ev without matching its trigger or enabled
// flag, for manual runs. Conditions and the board-wide switch still apply.
func (a *Automations) Fire(id string, ev models.Event) (Result, error) {
	var res Result
	auto := a.Get(id)
	if auto == nil {
		return res, fmt.Errorf("automation %s: %w", id, apperr.ErrNotFound)
	}
	if !a.e.board.Settings.EnableAutomations {
		return res, fmt.Errorf("automations are disabled on board %s: %w", a.e.board.ID, apperr.ErrInvalid)
	}
	a.run(auto, ev, &res)
	return res, nil
}

// TestReport describes what an automation would do for an event.
type TestReport struct {
	TriggerMatched bool   `json:"trigger_matched"`
	ConditionsMet  bool   `json:"conditions_met"`
	WouldFire      bool   `json:"would_fire"`
	Result         Result `json:"result"`
}

// Test dry-runs one automation against ev on a copy of the board. The real
// board is left untouched.
func (a *Automations) Test(id string, ev models.Event) (TestReport, error) {
	auto := a.Get(id)
	if auto == nil {
		return TestReport{}, fmt.Errorf("automation %s: %w", id, apperr.ErrNotFound)
	}
	var rep TestReport
	rep.TriggerMatched = matchesTrigger(auto.Trigger, ev)
	rep.ConditionsMet = a.conditionsMet(auto.Conditions, ev)
	rep.WouldFire = rep.TriggerMatched && rep.ConditionsMet
	if !rep.WouldFire {
		return rep, nil
	}
	copyBoard, err := CloneBoard(a.e.board)
	if err != nil {
		return rep, err
	}
	sandbox := a.e.fork(copyBoard)
	sandboxAuto := sandbox.Automations().Get(id)
	sandbox.Automations().run(sandboxAuto, ev, &rep.Result)
	return rep, nil
}

func matchesTrigger(t models.Trigger, ev models.Event) bool {
	switch t.Type {
	case models.TriggerStatusChanges:
		return ev.Type == models.EventItemUpdated && ev.Column == "status" &&
			(isEmpty(t.Value) || valuesEqual(ev.NewValue, t.Value))
	case models.TriggerColumnChanges:
		return ev.Type == models.EventItemUpdated && ev.Column == t.Column
	case models.TriggerItemCreated:
		return ev.Type == models.EventItemCreated
	case models.TriggerItemMoved:
		return ev.Type == models.EventItemMoved
	case models.TriggerDateArrives:
		return ev.Type == models.EventDateReached && (t.Column == "" || ev.Column == "" || ev.Column == t.Column)
	case models.TriggerTimePeriod:
		return ev.Type == models.EventScheduled
	}
	return false
}

func (a *Automations) run(auto *models.Automation, ev models.Event, res *Result) {
	if len(auto.Conditions) > 0 && !a.conditionsMet(auto.Conditions, ev) {
		return
	}
	run := Run{AutomationID: auto.ID, Name: auto.Name}
	for _, act := range auto.Actions {
		if act.Delay > 0 {
			res.Deferred = append(res.Deferred, models.DeferredAction{
				ID:           a.e.newID(),
				BoardID:      a.e.board.ID,
				AutomationID: auto.ID,
				Action:       act,
				Event:        ev,
				RunAt:        a.e.now().Add(time.Duration(act.Delay) * time.Minute),
			})
			run.Deferred++
			continue
		}
		if err := a.ApplyAction(act, ev, res); err != nil {
			a.e.logger.Warn("automation failed",
				slog.String("board_id", a.e.board.ID),
				slog.String("automation_id", auto.ID),
				slog.String("error", err.Error()))
			run.Error = err.Error()
			res.Runs = append(res.Runs, run)
			res.Activities = append(res.Activities, a.e.activity(models.ActivityAutomationTriggered, ev.UserID, ev.ItemID,
				fmt.Sprintf("Automation %q failed to execute", auto.Name),
				map[string]any{"automation_id": auto.ID, "error": err.Error()}))
			return
		}
		run.Actions++
	}
	now := a.e.now()
	auto.LastRun = &now
	auto.RunCount++
	res.Runs = append(res.Runs, run)
	res.Activities = append(res.Activities, a.e.activity(models.ActivityAutomationTriggered, ev.UserID, ev.ItemID,
		fmt.Sprintf("Automation %q executed %d actions", auto.Name, len(auto.Actions)),
		map[string]any{
			"automation_id":    auto.ID,
			"automation_name":  auto.Name,
			"actions_executed": len(auto.Actions),
		}))
	a.e.touch()
}

// conditionsMet folds conditions left to right starting from true. A
// condition's LogicalOperator switches the join for itself and every later
// condition.
func (a *Automations) conditionsMet(conds []models.Condition, ev models.Event) bool {
	if len(conds) == 0 || ev.ItemID == "" {
		return true
	}
	item := a.e.board.Item(ev.ItemID)
	if item == nil {
		return false
	}
	result := true
	op := models.LogicAnd
	for _, c := range conds {
		ok := a.evalCondition(c, item, ev)
		if c.LogicalOperator != "" {
			op = c.LogicalOperator
		}
		if op == models.LogicOr {
			result = result || ok
		} else {
			result = result && ok
		}
	}
	return result
}

func (a *Automations) evalCondition(c models.Condition, item *models.Item, ev models.Event) bool {
	v := a.e.cell(item, c.Column)
	switch c.Operator {
	case models.OpEquals:
		return valuesEqual(v, c.Value)
	case models.OpNotEquals:
		return !valuesEqual(v, c.Value)
	case models.OpContains:
		return contains(v, c.Value)
	case models.OpNotContains:
		return !contains(v, c.Value)
	case models.OpGreater:
		return !isEmpty(v) && compareValues(v, c.Value) > 0
	case models.OpLess:
		return !isEmpty(v) && compareValues(v, c.Value) < 0
	case models.OpIsEmpty:
		return isEmpty(v)
	case models.OpIsNotEmpty:
		return !isEmpty(v)
	case models.OpChangedTo:
		return ev.Column == c.Column && valuesEqual(ev.NewValue, c.Value)
	case models.OpChangedFrom:
		return ev.Column == c.Column && valuesEqual(ev.OldValue, c.Value)
	}
	return false
}

// ApplyAction executes one action for ev. Unsupported action types are
// logged and skipped.
func (a *Automations) ApplyAction(act models.Action, ev models.Event, res *Result) error {
	e := a.e
	var item *models.Item
	if ev.ItemID != "" {
		item = e.board.Item(ev.ItemID)
	}
	now := e.now()

	switch act.Type {
	case models.ActionChangeStatus:
		if item == nil || isEmpty(act.Value) {
			return nil
		}
		target := act.TargetColumn
		if target == "" {
			target = "status"
		}
		item.Data[target] = act.Value
		if target == "status" {
			item.Status = toString(act.Value)
		}
		item.UpdatedAt = now

	case models.ActionAssignPerson:
		if item == nil || isEmpty(act.Value) {
			return nil
		}
		item.Assignees = toStringSlice(act.Value)
		item.UpdatedAt = now
		for _, user := range item.Assignees {
			res.Notifications = append(res.Notifications, e.notification(user, item.ID, models.NotifyAssignment,
				"Item assigned", fmt.Sprintf("You were assigned to %s", e.itemTitle(item))))
		}

	case models.ActionChangeColumnValue:
		if item == nil || act.TargetColumn == "" || act.Value == nil {
			return nil
		}
		item.Data[act.TargetColumn] = act.Value
		item.UpdatedAt = now

	case models.ActionMoveToGroup:
		if item == nil || isEmpty(act.Value) {
			return nil
		}
		group := toString(act.Value)
		if e.board.Group(group) == nil {
			return fmt.Errorf("group %s: %w", group, apperr.ErrNotFound)
		}
		item.GroupID = group
		item.UpdatedAt = now

	case models.ActionCreateItem:
		if isEmpty(act.Value) {
			return nil
		}
		data, _ := act.Value.(map[string]any)
		e.AddItem(NewItem{
			Data:      data,
			Status:    "Not Started",
			Priority:  models.PriorityMedium,
			CreatedBy: ev.UserID,
		})

	case models.ActionDuplicateItem:
		if item == nil {
			return errNoItem
		}
		e.duplicateItem(item)

	case models.ActionArchiveItem:
		if item == nil {
			return errNoItem
		}
		e.ArchiveItem(item.ID)

	case models.ActionSendNotification:
		if len(act.Recipients) == 0 || act.Message == "" {
			return nil
		}
		msg := e.renderMessage(act.Message, item)
		for _, user := range act.Recipients {
			res.Notifications = append(res.Notifications, e.notification(user, ev.ItemID, models.NotifyAutomation,
				"Automation Notification", msg))
		}

	case models.ActionSendEmail:
		if len(act.Recipients) == 0 {
			return nil
		}
		title := act.Template
		if title == "" {
			title = "Automation Email"
		}
		msg := e.renderMessage(act.Message, item)
		for _, user := range act.Recipients {
			res.Notifications = append(res.Notifications, e.notification(user, ev.ItemID, models.NotifyEmail, title, msg))
		}

	case models.ActionCreateUpdate:
		msg := act.Message
		if msg == "" {
			msg = toString(act.Value)
		}
		if msg == "" {
			return nil
		}
		res.Activities = append(res.Activities, e.activity(models.ActivityUpdatePosted, ev.UserID, ev.ItemID,
			e.renderMessage(msg, item), nil))

	case models.ActionAddToBoard:
		if item == nil {
			return errNoItem
		}
		target := AddToBoardTarget(act)
		if target == "" {
			return fmt.Errorf("add-to-board needs a target board: %w", apperr.ErrInvalid)
		}
		res.CrossBoard = append(res.CrossBoard, CrossBoardItem{
			TargetBoardID: target,
			SourceItemID:  item.ID,
			Item: NewItem{
				Data:      cloneData(item.Data),
				Status:    item.Status,
				Priority:  item.Priority,
				Assignees: slices.Clone(item.Assignees),
				Tags:      slices.Clone(item.Tags),
				CreatedBy: ev.UserID,
			},
		})

	default:
		e.logger.Warn("unsupported automation action",
			slog.String("board_id", e.board.ID),
			slog.String("action", act.Type))
	}
	return nil
}

// RunDeferred executes a postponed action. The automation must still exist
// and be enabled.
func (a *Automations) RunDeferred(d models.DeferredAction) (Result, error) {
	var res Result
	auto := a.Get(d.AutomationID)
	if auto == nil || !auto.Enabled {
		return res, nil
	}
	if err := a.ApplyAction(d.Action, d.Event, &res); err != nil {
		res.Activities = append(res.Activities, a.e.activity(models.ActivityAutomationTriggered, d.Event.UserID, d.Event.ItemID,
			fmt.Sprintf("Delayed action of %q failed", auto.Name),
			map[string]any{"automation_id": auto.ID, "error": err.Error()}))
		return res, err
	}
	a.e.touch()
	return res, nil
}

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)

// renderMessage replaces {Column Title} placeholders with item values.
func (e *Engine) renderMessage(msg string, item *models.Item) string {
	if item == nil {
		return msg
	}
	return placeholderRe.ReplaceAllStringFunc(msg, func(m string) string {
		ref := m[1 : len(m)-1]
		if ref == "item" || ref == "name" {
			return e.itemTitle(item)
		}
		if c := e.board.ColumnByRef(ref); c != nil {
			return toString(item.Data[c.ID])
		}
		return m
	})
}

func (e *Engine) activity(typ, userID, itemID, msg string, data map[string]any) models.Activity {
	return models.Activity{
		ID:        e.newID(),
		BoardID:   e.board.ID,
		ItemID:    itemID,
		Type:      typ,
		UserID:    userID,
		UserName:  "System",
		Timestamp: e.now(),
		Data:      data,
		Message:   msg,
	}
}

func (e *Engine) notification(userID, itemID, typ, title, msg string) models.Notification {
	return models.Notification{
		ID:        e.newID(),
		UserID:    userID,
		BoardID:   e.board.ID,
		ItemID:    itemID,
		Type:      typ,
		Title:     title,
		Message:   msg,
		CreatedAt: e.now(),
	}
}

// fork returns an engine over b sharing this engine's clock, ids and
// connected boards.
func (e *Engine) fork(b *models.Board) *Engine {
	return &Engine{board: b, now: e.now, newID: e.newID, logger: e.logger, connected: e.connected}
}

// AddToBoardTarget returns the board an add-to-board action copies items
// to. Value is either the board id or an object with a board_id key.
func AddToBoardTarget(act models.Action) string {
	if m, ok := act.Value.(map[string]any); ok {
		return toString(m["board_id"])
	}
	return toString(act.Value)
}
