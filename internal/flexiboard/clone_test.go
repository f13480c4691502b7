package flexiboard

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

func TestDuplicateRemapsColumns(t *testing.T) {
	b := testBoard()
	b.Views[0].Sorts = []models.Sort{{Column: "amount", Direction: "desc"}}
	e := testEngine(b)
	items := seed(e)
	items[0].GroupID = "g1"
	addAutomation(t, e, models.Automation{
		Name:    "Watch amount",
		Trigger: models.Trigger{Type: models.TriggerColumnChanges, Column: "amount"},
		Actions: []models.Action{{Type: models.ActionChangeColumnValue, TargetColumn: "status", Value: "done"}},
	})

	dup := e.Duplicate("Copy", DuplicateOptions{IncludeData: true})
	if dup.ID == b.ID || dup.Name != "Copy" {
		t.Fatalf("dup identity = %s %q", dup.ID, dup.Name)
	}
	newAmount := dup.Columns[2].ID
	if newAmount == "amount" {
		t.Fatal("column ids were not regenerated")
	}
	if got := dup.Items[0].Data[newAmount]; got != 5.0 {
		t.Errorf("remapped amount = %v, want 5", got)
	}
	if _, ok := dup.Items[0].Data["amount"]; ok {
		t.Error("old column id left in item data")
	}
	if dup.Items[0].GroupID == "g1" || dup.Items[0].GroupID != dup.Groups[0].ID {
		t.Errorf("group not remapped: %q", dup.Items[0].GroupID)
	}
	if dup.Views[0].Sorts[0].Column != newAmount || dup.ActiveViewID != dup.Views[0].ID {
		t.Errorf("view not remapped: %+v", dup.Views[0])
	}
	a := dup.Automations[0]
	if a.Trigger.Column != newAmount || a.Actions[0].TargetColumn != dup.Columns[1].ID || a.RunCount != 0 {
		t.Errorf("automation not remapped: %+v", a)
	}

	bare := e.Duplicate("Bare", DuplicateOptions{ExcludeViews: true, ExcludeAutomations: true})
	if len(bare.Items) != 0 || len(bare.Automations) != 0 || len(bare.Views) != 1 || bare.Views[0].Name != "Main Table" {
		t.Errorf("bare duplicate = %+v", bare)
	}
}

func TestTemplateSnapshot(t *testing.T) {
	e := testEngine(testBoard())
	seed(e)
	tpl := e.Template(TemplateOptions{ID: "t1", Name: "Tracker", IncludeData: true})
	if tpl.Name != "Tracker" || len(tpl.Columns) != 4 || len(tpl.Items) != 3 {
		t.Errorf("template = %+v", tpl)
	}
	if !tpl.Views[0].IsDefault {
		t.Error("active view should be the template default")
	}
	tpl.Items[0]["name"] = "changed"
	if e.Board().Items[0].Data["name"] != "Alpha" {
		t.Error("template shares item data with the board")
	}
}

func TestMorphPreservesIdentity(t *testing.T) {
	b := testBoard()
	b.CreatedAt = testNow.Add(-time.Hour)
	e := testEngine(b)
	seed(e)

	tpl := models.Template{
		ID:          "crm",
		Name:        "CRM",
		BusinessApp: "relationship",
		Columns: []models.Column{
			{ID: "contact", Title: "Contact", Type: models.ColumnText},
			{ID: "stage", Title: "Stage", Type: models.ColumnStatus},
		},
		Views: []models.View{{ID: "pipeline", Name: "Pipeline", Type: models.ViewKanban, GroupBy: "stage", IsDefault: true}},
	}
	err := e.Morph(tpl, MorphOptions{PreserveData: true, Mapping: map[string]string{"name": "contact", "status": "stage"}})
	if err != nil {
		t.Fatalf("Morph: %v", err)
	}
	if b.ID != "b1" || b.OwnerID != "u1" || b.Name != "CRM" || b.Template != "crm" {
		t.Errorf("identity = %s %s %q %q", b.ID, b.OwnerID, b.Name, b.Template)
	}
	want := map[string]any{"contact": "Alpha", "stage": "todo"}
	if diff := cmp.Diff(want, b.Items[0].Data); diff != "" {
		t.Errorf("mapped data (-want +got):\n%s", diff)
	}
	if b.ActiveViewID != "pipeline" {
		t.Errorf("active view = %q", b.ActiveViewID)
	}

	if err := e.Morph(tpl, MorphOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(b.Items) != 0 {
		t.Error("morph without preserve_data should clear items")
	}
	if err := e.Morph(models.Template{ID: "empty"}, MorphOptions{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty template err = %v", err)
	}
}

func TestExecuteBulk(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)

	res, _, err := e.ExecuteBulk(models.BulkOperation{
		Type:    models.BulkUpdate,
		ItemIDs: []string{items[0].ID, "ghost", items[2].ID},
		Data:    map[string]any{"amount": 1.0},
	}, "u1")
	if err != nil {
		t.Fatalf("ExecuteBulk: %v", err)
	}
	if res.Success || res.ProcessedItems != 2 || res.FailedItems != 1 || res.Errors[0].ItemID != "ghost" {
		t.Errorf("result = %+v", res)
	}
	if items[2].Data["amount"] != 1.0 {
		t.Error("update not applied")
	}

	res, _, _ = e.ExecuteBulk(models.BulkOperation{Type: models.BulkMove, ItemIDs: []string{items[0].ID}, TargetGroupID: "g2"}, "u1")
	if !res.Success || items[0].GroupID != "g2" {
		t.Errorf("move result = %+v group=%q", res, items[0].GroupID)
	}

	res, _, _ = e.ExecuteBulk(models.BulkOperation{Type: models.BulkDuplicate, ItemIDs: []string{items[1].ID}}, "u1")
	if !res.Success || len(e.Board().Items) != 4 {
		t.Errorf("duplicate: items = %d", len(e.Board().Items))
	}

	res, _, _ = e.ExecuteBulk(models.BulkOperation{Type: models.BulkArchive, ItemIDs: []string{items[1].ID}}, "u1")
	if !res.Success || len(e.Board().ArchivedItems) != 1 {
		t.Error("archive failed")
	}

	if _, _, err := e.ExecuteBulk(models.BulkOperation{Type: "explode"}, "u1"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown op err = %v", err)
	}
	e.Board().Settings.AllowBulkOperations = false
	if _, _, err := e.ExecuteBulk(models.BulkOperation{Type: models.BulkDelete}, "u1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("disabled bulk err = %v", err)
	}
}

func TestMoveItemWithAutomationFires(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	addAutomation(t, e, models.Automation{
		Name:    "On move",
		Trigger: models.Trigger{Type: models.TriggerItemMoved},
		Actions: []models.Action{{Type: models.ActionCreateUpdate, Message: "{Name} moved"}},
	})
	res, err := e.MoveItemWithAutomation(items[2].ID, 0, "", "u1")
	if err != nil {
		t.Fatal(err)
	}
	var posted []string
	for _, a := range res.Activities {
		if a.Type == models.ActivityUpdatePosted {
			posted = append(posted, a.Message)
		}
	}
	if diff := cmp.Diff([]string{"Gamma moved"}, posted); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestCronSpec(t *testing.T) {
	tests := []struct {
		sched models.Schedule
		want  string
	}{
		{models.Schedule{Frequency: models.FrequencyHourly, Time: "08:15"}, "15 * * * *"},
		{models.Schedule{Frequency: models.FrequencyDaily}, "0 9 * * *"},
		{models.Schedule{Frequency: models.FrequencyWeekly, Time: "17:30", Days: []int{1, 5}}, "30 17 * * 1,5"},
		{models.Schedule{Frequency: models.FrequencyMonthly, Time: "06:00", Days: []int{15}}, "0 6 15 * *"},
	}
	for _, tt := range tests {
		got, err := CronSpec(&tt.sched)
		if err != nil {
			t.Errorf("CronSpec(%+v): %v", tt.sched, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CronSpec(%+v) = %q, want %q", tt.sched, got, tt.want)
		}
	}
	if _, err := CronSpec(&models.Schedule{Frequency: models.FrequencyDaily, Time: "25:00"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad time err = %v", err)
	}
}

func TestScheduleDue(t *testing.T) {
	auto := models.Automation{
		Trigger:   models.Trigger{Type: models.TriggerTimePeriod, Schedule: &models.Schedule{Frequency: models.FrequencyDaily, Time: "09:00"}},
		CreatedAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}
	if !ScheduleDue(auto, testNow) {
		t.Error("09:00 on the 10th should be due at noon")
	}
	last := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	auto.LastRun = &last
	if ScheduleDue(auto, testNow) {
		t.Error("already ran today")
	}
}

func TestArrivedDates(t *testing.T) {
	e := testEngine(testBoard())
	items := seed(e)
	e.AddItem(NewItem{Data: map[string]any{"name": "Today", "due": "2026-03-10"}})
	auto := models.Automation{
		Trigger:   models.Trigger{Type: models.TriggerDateArrives, Column: "Due Date"},
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	hits := e.ArrivedDates(auto, testNow)
	if len(hits) != 2 {
		t.Fatalf("hits = %+v, want Alpha and Today", hits)
	}
	if hits[0].ItemID != items[0].ID || hits[0].Date != "2026-03-01" || hits[0].Column != "Due Date" {
		t.Errorf("first hit = %+v", hits[0])
	}

	auto.CreatedAt = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if hits := e.ArrivedDates(auto, testNow); len(hits) != 1 || hits[0].Date != "2026-03-10" {
		t.Errorf("dates before the rule existed should be skipped, got %+v", hits)
	}

	// Date-only cells name the same day west of UTC.
	west := time.Date(2026, 3, 10, 21, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))
	e.AddItem(NewItem{Data: map[string]any{"name": "Tomorrow", "due": "2026-03-11"}})
	if hits := e.ArrivedDates(auto, west); len(hits) != 1 || hits[0].Date != "2026-03-10" {
		t.Errorf("hits west of UTC = %+v, want only 2026-03-10", hits)
	}

	auto.Trigger.Type = models.TriggerItemCreated
	if hits := e.ArrivedDates(auto, testNow); hits != nil {
		t.Errorf("non date trigger hits = %+v", hits)
	}
}
