package flexiboard

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

func addAutomation(t *testing.T, e *Engine, a models.Automation) *models.Automation {
	t.Helper()
	a.Enabled = true
	got, err := e.Automations().Add(a)
	if err != nil {
		t.Fatalf("Add automation: %v", err)
	}
	return got
}

func TestStatusChangeAutomation(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	auto := addAutomation(t, e, models.Automation{
		Name:    "Done notifier",
		Trigger: models.Trigger{Type: models.TriggerStatusChanges, Value: "done"},
		Actions: []models.Action{
			{Type: models.ActionChangeColumnValue, TargetColumn: "amount", Value: 100.0},
			{Type: models.ActionSendNotification, Recipients: []string{"ann", "bob"}, Message: "{Name} is done"},
		},
	})

	_, res, err := e.UpdateItemWithAutomation(items[0].ID, ItemPatch{Data: map[string]any{"status": "done"}}, "u1")
	if err != nil {
		t.Fatalf("UpdateItemWithAutomation: %v", err)
	}
	if !res.Fired() {
		t.Fatal("automation did not fire")
	}
	if items[0].Data["amount"] != 100.0 {
		t.Errorf("amount = %v, want 100", items[0].Data["amount"])
	}
	if len(res.Notifications) != 2 || res.Notifications[0].Message != "Alpha is done" {
		t.Errorf("notifications = %+v", res.Notifications)
	}
	if auto.RunCount != 1 || auto.LastRun == nil || !auto.LastRun.Equal(testNow) {
		t.Errorf("bookkeeping: run_count=%d last_run=%v", auto.RunCount, auto.LastRun)
	}
	if len(res.Activities) != 1 || res.Activities[0].Type != models.ActivityAutomationTriggered {
		t.Errorf("activities = %+v", res.Activities)
	}

	// A different target value must not match.
	_, res, _ = e.UpdateItemWithAutomation(items[2].ID, ItemPatch{Data: map[string]any{"status": "in-progress"}}, "u1")
	if res.Fired() {
		t.Error("automation fired for non-matching status")
	}
}

func TestAutomationsDisabledOnBoard(t *testing.T) {
	b := testBoard()
	e := testEngine(b)
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:    "Any create",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionChangeStatus, Value: "done"}},
	})
	b.Settings.EnableAutomations = false
	res := e.Automations().Execute(models.Event{Type: models.EventItemCreated, ItemID: items[0].ID})
	if res.Fired() {
		t.Error("automations ran while disabled")
	}
}

func TestConditionOperatorIsSticky(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:    "Sticky or",
		Trigger: models.Trigger{Type: models.TriggerItemMoved},
		Conditions: []models.Condition{
			{Column: "status", Operator: models.OpEquals, Value: "done"},
			{Column: "amount", Operator: models.OpGreater, Value: 1.0, LogicalOperator: models.LogicOr},
			{Column: "due", Operator: models.OpIsEmpty},
		},
		Actions: []models.Action{{Type: models.ActionChangeColumnValue, TargetColumn: "name", Value: "moved"}},
	})
	// (true && false) || true || false with the sticky "or".
	res := e.Automations().Execute(models.Event{Type: models.EventItemMoved, ItemID: items[0].ID})
	if !res.Fired() || items[0].Data["name"] != "moved" {
		t.Fatalf("expected automation to fire, runs=%+v", res.Runs)
	}
}

func TestConditionsUnknownItemFail(t *testing.T) {
	e := testEngine(testBoard())
	seed(e)
	addAutomation(t, e, models.Automation{
		Name:       "Needs item",
		Trigger:    models.Trigger{Type: models.TriggerItemCreated},
		Conditions: []models.Condition{{Column: "name", Operator: models.OpIsNotEmpty}},
		Actions:    []models.Action{{Type: models.ActionCreateItem, Value: map[string]any{"name": "x"}}},
	})
	if res := e.Automations().Execute(models.Event{Type: models.EventItemCreated, ItemID: "missing"}); res.Fired() {
		t.Error("conditions should fail for an unknown item")
	}
	before := len(e.Board().Items)
	if res := e.Automations().Execute(models.Event{Type: models.EventItemCreated}); !res.Fired() {
		t.Error("conditions should pass without an item id")
	}
	if len(e.Board().Items) != before+1 {
		t.Error("create-item did not add an item")
	}
}

func TestChangedToCondition(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:       "Changed from todo",
		Trigger:    models.Trigger{Type: models.TriggerColumnChanges, Column: "status"},
		Conditions: []models.Condition{{Column: "status", Operator: models.OpChangedFrom, Value: "todo"}},
		Actions:    []models.Action{{Type: models.ActionAssignPerson, Value: []any{"ann"}}},
	})
	_, res, err := e.UpdateItemWithAutomation(items[0].ID, ItemPatch{Data: map[string]any{"status": "in-progress"}}, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fired() || len(items[0].Assignees) != 1 || items[0].Assignees[0] != "ann" {
		t.Fatalf("assign-person not applied: %+v", items[0].Assignees)
	}
	if len(res.Notifications) != 1 || res.Notifications[0].Type != models.NotifyAssignment {
		t.Errorf("assignment notification = %+v", res.Notifications)
	}
}

func TestDelayedActionIsDeferred(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:    "Later",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionChangeStatus, Value: "done", Delay: 30}},
	})
	res := e.Automations().Execute(models.Event{Type: models.EventItemCreated, ItemID: items[0].ID, UserID: "u1"})
	if len(res.Deferred) != 1 {
		t.Fatalf("deferred = %d, want 1", len(res.Deferred))
	}
	d := res.Deferred[0]
	if !d.RunAt.Equal(testNow.Add(30 * time.Minute)) {
		t.Errorf("RunAt = %v", d.RunAt)
	}
	if items[0].Status != "todo" {
		t.Error("delayed action ran immediately")
	}

	if _, err := e.Automations().RunDeferred(d); err != nil {
		t.Fatalf("RunDeferred: %v", err)
	}
	if items[0].Status != "done" {
		t.Errorf("status after deferred run = %q", items[0].Status)
	}
}

func TestFailingAutomationDoesNotStopOthers(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	bad := addAutomation(t, e, models.Automation{
		Name:    "Bad group",
		Trigger: models.Trigger{Type: models.TriggerItemMoved},
		Actions: []models.Action{{Type: models.ActionMoveToGroup, Value: "nope"}},
	})
	good := addAutomation(t, e, models.Automation{
		Name:    "Good group",
		Trigger: models.Trigger{Type: models.TriggerItemMoved},
		Actions: []models.Action{{Type: models.ActionMoveToGroup, Value: "g2"}},
	})
	res := e.Automations().Execute(models.Event{Type: models.EventItemMoved, ItemID: items[0].ID})
	if len(res.Runs) != 2 || res.Runs[0].Error == "" || res.Runs[1].Error != "" {
		t.Fatalf("runs = %+v", res.Runs)
	}
	autos := e.Automations()
	if autos.Get(bad.ID).RunCount != 0 || autos.Get(good.ID).RunCount != 1 {
		t.Errorf("run counts bad=%d good=%d", autos.Get(bad.ID).RunCount, autos.Get(good.ID).RunCount)
	}
	if items[0].GroupID != "g2" {
		t.Errorf("group = %q", items[0].GroupID)
	}
}

func TestUnsupportedActionSkipped(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	auto := addAutomation(t, e, models.Automation{
		Name:    "Mixed",
		Trigger: models.Trigger{Type: models.TriggerItemMoved},
		Actions: []models.Action{{Type: "launch-rocket"}, {Type: models.ActionArchiveItem}},
	})
	res := e.Automations().Execute(models.Event{Type: models.EventItemMoved, ItemID: items[1].ID})
	if !res.Fired() || auto.RunCount != 1 {
		t.Fatal("automation should complete despite unsupported action")
	}
	if len(e.Board().ArchivedItems) != 1 {
		t.Error("archive-item did not archive")
	}
}

func TestTestAutomationLeavesBoardAlone(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	auto := addAutomation(t, e, models.Automation{
		Name:    "Archive on create",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionArchiveItem}},
	})
	rep, err := e.Automations().Test(auto.ID, models.Event{Type: models.EventItemCreated, ItemID: items[0].ID})
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if !rep.WouldFire || !rep.Result.Fired() {
		t.Fatalf("report = %+v", rep)
	}
	if len(e.Board().Items) != 3 || len(e.Board().ArchivedItems) != 0 || auto.RunCount != 0 {
		t.Error("Test mutated the real board")
	}
	if _, err := e.Automations().Test("missing", models.Event{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing automation err = %v", err)
	}
}

func TestAddToBoardProducesCrossBoardItem(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:    "Copy",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionAddToBoard, Value: "b2"}},
	})
	res := e.Automations().Execute(models.Event{Type: models.EventItemCreated, ItemID: items[0].ID, UserID: "u1"})
	if len(res.CrossBoard) != 1 || res.CrossBoard[0].TargetBoardID != "b2" {
		t.Fatalf("cross board = %+v", res.CrossBoard)
	}
	if res.CrossBoard[0].Item.Data["name"] != "Alpha" {
		t.Error("copied data mismatch")
	}
}

func TestAutomationValidation(t *testing.T) {
	e := testEngine(testBoard())
	cases := []models.Automation{
		{Name: "", Trigger: models.Trigger{Type: models.TriggerItemCreated}, Actions: []models.Action{{Type: models.ActionArchiveItem}}},
		{Name: "x", Trigger: models.Trigger{Type: "whenever"}, Actions: []models.Action{{Type: models.ActionArchiveItem}}},
		{Name: "x", Trigger: models.Trigger{Type: models.TriggerColumnChanges}, Actions: []models.Action{{Type: models.ActionArchiveItem}}},
		{Name: "x", Trigger: models.Trigger{Type: models.TriggerTimePeriod, Schedule: &models.Schedule{Frequency: "yearly"}}, Actions: []models.Action{{Type: models.ActionArchiveItem}}},
		{Name: "x", Trigger: models.Trigger{Type: models.TriggerItemCreated}},
	}
	for i, c := range cases {
		if _, err := e.Automations().Add(c); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("case %d: err = %v, want ErrInvalid", i, err)
		}
	}
}

func TestFireIgnoresTrigger(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	auto := addAutomation(t, e, models.Automation{
		Name:    "Bump",
		Trigger: models.Trigger{Type: models.TriggerStatusChanges, Value: "done"},
		Actions: []models.Action{{Type: models.ActionChangeColumnValue, TargetColumn: "amount", Value: 99.0}},
	})
	ev := models.Event{Type: models.EventItemCreated, ItemID: items[0].ID}

	if res := e.Automations().RunOne(auto.ID, ev); res.Fired() {
		t.Fatal("RunOne fired for a mismatched trigger")
	}
	res, err := e.Automations().Fire(auto.ID, ev)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if !res.Fired() || items[0].Data["amount"] != 99.0 {
		t.Errorf("fired=%v amount=%v", res.Fired(), items[0].Data["amount"])
	}
	if _, err := e.Automations().Fire("missing", ev); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown automation: err = %v", err)
	}
}
