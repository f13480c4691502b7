package boardservice

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
	"github.com/starford/flexiboard/internal/store"
	"github.com/starford/flexiboard/internal/templates"
	"github.com/starford/flexiboard/internal/testutil"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) PublishBoardEvent(kind, boardID, itemID string) {
	r.mu.Lock()
	r.events = append(r.events, kind)
	r.mu.Unlock()
}

func (r *recorder) has(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, kind)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	db    *store.DB
	rec   *recorder
	clock *clock
	ws    *models.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	reg, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}
	_, files := testutil.TestAttachments(t)
	f := &fixture{db: db, rec: &recorder{}, clock: &clock{now: testNow}}
	f.svc = NewService(db, reg,
		WithPublisher(f.rec),
		WithAttachments(files),
		WithClock(f.clock.Now),
		WithLogger(testutil.Logger()),
	)
	ws, err := f.svc.CreateWorkspace(context.Background(), "u1", WorkspaceInput{Name: "Acme", MemberIDs: []string{"u2"}})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	f.ws = ws
	return f
}

func (f *fixture) board(t *testing.T, name string) *models.Board {
	t.Helper()
	d, err := f.svc.CreateBoard(context.Background(), "u1", CreateBoardInput{WorkspaceID: f.ws.ID, Name: name})
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	return d.Board
}

func (f *fixture) item(t *testing.T, boardID string, data map[string]any) *models.Item {
	t.Helper()
	res, err := f.svc.CreateItem(context.Background(), "u1", boardID, "", flexiboard.NewItem{Data: data})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return res.Item
}

func (f *fixture) automation(t *testing.T, boardID string, a models.Automation) *models.Automation {
	t.Helper()
	a.Enabled = true
	got, err := f.svc.CreateAutomation(context.Background(), "u1", boardID, a)
	if err != nil {
		t.Fatalf("CreateAutomation: %v", err)
	}
	return got
}

func TestCreateBoardBlankAndFromTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.board(t, "Tasks")
	if len(b.Columns) != 5 || len(b.Views) != 1 || b.ActiveViewID != b.Views[0].ID {
		t.Errorf("blank board shape: %d columns, %d views", len(b.Columns), len(b.Views))
	}
	if b.Version != 1 {
		t.Errorf("version = %d, want 1", b.Version)
	}
	if !f.rec.has("board.created") {
		t.Error("board.created not published")
	}

	d, err := f.svc.CreateBoard(ctx, "u2", CreateBoardInput{WorkspaceID: f.ws.ID, Name: "Roadmap", TemplateID: "project"})
	if err != nil {
		t.Fatalf("CreateBoard(project): %v", err)
	}
	if d.Board.Template != "project" || len(d.Board.Views) < 4 || d.Board.OwnerID != "u2" {
		t.Errorf("template board = template %q, %d views, owner %q", d.Board.Template, len(d.Board.Views), d.Board.OwnerID)
	}

	d, err = f.svc.CreateBoard(ctx, "u1", CreateBoardInput{WorkspaceID: f.ws.ID, Name: "Audit", BusinessApp: "compliance"})
	if err != nil || d.Board.Template != "compliance" {
		t.Errorf("business app board: %v", err)
	}

	if _, err := f.svc.CreateBoard(ctx, "u1", CreateBoardInput{WorkspaceID: f.ws.ID}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("nameless board err = %v", err)
	}
	if _, err := f.svc.CreateBoard(ctx, "u1", CreateBoardInput{WorkspaceID: f.ws.ID, Name: "X", TemplateID: "nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown template err = %v", err)
	}
	if _, err := f.svc.GetBoard(ctx, "stranger", b.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("outsider err = %v, want ErrForbidden", err)
	}
}

func TestItemUpdateRunsAutomationsAndPersistsEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	f.automation(t, b.ID, models.Automation{
		Name:    "Tell u2",
		Trigger: models.Trigger{Type: models.TriggerStatusChanges, Value: "Done"},
		Actions: []models.Action{{Type: models.ActionSendNotification, Recipients: []string{"u2"}, Message: "{Name} finished"}},
	})

	it := f.item(t, b.ID, map[string]any{"name": "Write docs"})
	if it.Data["status"] != "Not Started" {
		t.Errorf("default status = %v", it.Data["status"])
	}

	res, err := f.svc.UpdateItem(ctx, "u1", b.ID, it.ID, "", flexiboard.ItemPatch{Data: map[string]any{"status": "Done"}})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(res.Automations) != 1 || res.Automations[0].Error != "" {
		t.Fatalf("automations = %+v", res.Automations)
	}

	ns, err := f.svc.ListNotifications(ctx, "u2", true, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ns) != 1 || !strings.Contains(ns[0].Message, "finished") || ns[0].BoardID != b.ID {
		t.Errorf("notifications = %+v", ns)
	}
	if err := f.svc.MarkNotificationRead(ctx, "u2", ns[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if ns, _ := f.svc.ListNotifications(ctx, "u2", true, 10); len(ns) != 0 {
		t.Errorf("unread after mark = %d", len(ns))
	}

	acts, err := f.svc.ListActivities(ctx, "u1", b.ID, it.ID, 50)
	if err != nil {
		t.Fatal(err)
	}
	types := map[string]bool{}
	for _, a := range acts {
		types[a.Type] = true
	}
	for _, want := range []string{models.ActivityItemCreated, models.ActivityItemUpdated, models.ActivityAutomationTriggered} {
		if !types[want] {
			t.Errorf("missing activity %s in %v", want, types)
		}
	}
	if !f.rec.has("automation.triggered") || !f.rec.has("notification.created") {
		t.Errorf("events = %v", f.rec.events)
	}
}

func TestCellValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")

	if _, err := f.svc.CreateItem(ctx, "u1", b.ID, "", flexiboard.NewItem{Data: map[string]any{}}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("missing required name err = %v", err)
	}
	it := f.item(t, b.ID, map[string]any{"name": "ok"})
	if _, err := f.svc.UpdateItem(ctx, "u1", b.ID, it.ID, "", flexiboard.ItemPatch{Data: map[string]any{"name": ""}}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blanking required name err = %v", err)
	}

	lo, hi := 1.0, 5.0
	if _, err := f.svc.AddColumn(ctx, "u1", b.ID, "", models.Column{
		ID: "score", Title: "Score", Type: models.ColumnRating,
		Validation: &models.ColumnValidation{Min: &lo, Max: &hi},
	}); err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if _, err := f.svc.UpdateItem(ctx, "u1", b.ID, it.ID, "", flexiboard.ItemPatch{Data: map[string]any{"score": 9.0}}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("out of range err = %v", err)
	}
	if _, err := f.svc.UpdateItem(ctx, "u1", b.ID, it.ID, "", flexiboard.ItemPatch{Data: map[string]any{"score": 4.0}}); err != nil {
		t.Errorf("in range: %v", err)
	}
}

func TestIfMatchDetectsStaleWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")

	d, err := f.svc.GetBoard(ctx, "u1", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.svc.CreateItem(ctx, "u1", b.ID, d.ETag, flexiboard.NewItem{Data: map[string]any{"name": "first"}})
	if err != nil {
		t.Fatalf("fresh etag: %v", err)
	}
	if res.ETag == d.ETag || res.Board.Version != 2 {
		t.Errorf("etag/version not advanced: %s v%d", res.ETag, res.Board.Version)
	}
	if _, err := f.svc.CreateItem(ctx, "u1", b.ID, d.ETag, flexiboard.NewItem{Data: map[string]any{"name": "second"}}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale etag err = %v, want ErrConflict", err)
	}
}

func TestConcurrentMutationsAreSerialised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateItem(ctx, "u1", b.ID, "", flexiboard.NewItem{Data: map[string]any{"name": "x"}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("CreateItem: %v", err)
		}
	}
	d, _ := f.svc.GetBoard(ctx, "u1", b.ID)
	if len(d.Board.Items) != 10 || d.Board.Version != 11 {
		t.Errorf("items = %d, version = %d", len(d.Board.Items), d.Board.Version)
	}
}

func TestAddToBoardCreatesItemOnTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.board(t, "Intake")
	dst := f.board(t, "Archive")
	f.automation(t, src.ID, models.Automation{
		Name:    "Copy",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionAddToBoard, Value: dst.ID}},
	})
	f.automation(t, dst.ID, models.Automation{
		Name:    "Loud",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionSendNotification, Recipients: []string{"u2"}, Message: "new"}},
	})

	f.item(t, src.ID, map[string]any{"name": "Lead"})

	d, err := f.svc.GetBoard(ctx, "u1", dst.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Board.Items) != 1 || d.Board.Items[0].Data["name"] != "Lead" {
		t.Fatalf("target items = %+v", d.Board.Items)
	}
	if ns, _ := f.svc.ListNotifications(ctx, "u2", false, 10); len(ns) != 0 {
		t.Errorf("target automations ran for a copied item: %+v", ns)
	}
}

func TestAddToBoardStaysInWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.board(t, "Intake")

	other, err := f.svc.CreateWorkspace(ctx, "u9", WorkspaceInput{Name: "Other"})
	if err != nil {
		t.Fatal(err)
	}
	od, err := f.svc.CreateBoard(ctx, "u9", CreateBoardInput{WorkspaceID: other.ID, Name: "Private"})
	if err != nil {
		t.Fatal(err)
	}
	foreign := od.Board.ID

	copyTo := func(target string) models.Automation {
		return models.Automation{
			Name:    "Copy",
			Enabled: true,
			Trigger: models.Trigger{Type: models.TriggerItemCreated},
			Actions: []models.Action{{Type: models.ActionAddToBoard, Value: map[string]any{"board_id": target}}},
		}
	}
	if _, err := f.svc.CreateAutomation(ctx, "u1", src.ID, copyTo(foreign)); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("foreign target: err = %v", err)
	}
	if _, err := f.svc.CreateAutomation(ctx, "u1", src.ID, copyTo("missing")); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown target: err = %v", err)
	}
	ok := f.automation(t, src.ID, copyTo(f.board(t, "Archive").ID))
	if _, err := f.svc.UpdateAutomation(ctx, "u1", src.ID, ok.ID, copyTo(foreign)); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("update to foreign target: err = %v", err)
	}

	// A rule stored before validation existed is still refused at run time.
	b, err := f.db.GetBoard(src.ID)
	if err != nil {
		t.Fatal(err)
	}
	stale := copyTo(foreign)
	stale.ID = "stale"
	b.Automations = append(b.Automations, stale)
	if err := f.db.SaveBoard(b, b.Version); err != nil {
		t.Fatal(err)
	}

	f.item(t, src.ID, map[string]any{"name": "Lead"})

	d, err := f.svc.GetBoard(ctx, "u9", foreign)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Board.Items) != 0 {
		t.Errorf("foreign board items = %+v", d.Board.Items)
	}
}

func TestFireScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Standups")
	f.automation(t, b.ID, models.Automation{
		Name:    "Daily",
		Trigger: models.Trigger{Type: models.TriggerTimePeriod, Schedule: &models.Schedule{Frequency: models.FrequencyDaily, Time: "09:00"}},
		Actions: []models.Action{{Type: models.ActionCreateUpdate, Message: "Daily standup"}},
	})

	if n, err := f.svc.FireScheduled(ctx, b.ID, testNow); err != nil || n != 0 {
		t.Fatalf("before first slot: n=%d err=%v", n, err)
	}

	next := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	f.clock.Set(next)
	n, err := f.svc.FireScheduled(ctx, b.ID, next)
	if err != nil || n != 1 {
		t.Fatalf("first slot: n=%d err=%v", n, err)
	}
	if n, _ := f.svc.FireScheduled(ctx, b.ID, next.Add(time.Minute)); n != 0 {
		t.Errorf("fired twice in one slot")
	}

	acts, _ := f.svc.ListActivities(ctx, "u1", b.ID, "", 50)
	found := false
	for _, a := range acts {
		if a.Type == models.ActivityUpdatePosted && a.Message == "Daily standup" {
			found = true
		}
	}
	if !found {
		t.Error("scheduled update not recorded")
	}
}

func TestFireDateArrivalsOncePerDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Deadlines")
	f.automation(t, b.ID, models.Automation{
		Name:    "Due",
		Trigger: models.Trigger{Type: models.TriggerDateArrives, Column: "due_date"},
		Actions: []models.Action{{Type: models.ActionSendNotification, Recipients: []string{"u2"}, Message: "Due: {Name}"}},
	})
	f.item(t, b.ID, map[string]any{"name": "Report", "due_date": "2026-03-10"})
	f.item(t, b.ID, map[string]any{"name": "Later", "due_date": "2026-03-20"})

	n, err := f.svc.FireDateArrivals(ctx, b.ID, testNow)
	if err != nil || n != 1 {
		t.Fatalf("first sweep: n=%d err=%v", n, err)
	}
	if n, _ := f.svc.FireDateArrivals(ctx, b.ID, testNow.Add(time.Hour)); n != 0 {
		t.Errorf("second sweep fired %d", n)
	}
	ns, _ := f.svc.ListNotifications(ctx, "u2", false, 10)
	if len(ns) != 1 || !strings.Contains(ns[0].Message, "Report") {
		t.Errorf("notifications = %+v", ns)
	}
}

// flakySave fails SaveBoard while fail is set.
type flakySave struct {
	store.Repository
	fail bool
}

func (r *flakySave) SaveBoard(b *models.Board, expectedVersion int64) error {
	if r.fail {
		return errors.New("disk full")
	}
	return r.Repository.SaveBoard(b, expectedVersion)
}

func TestFireDateArrivalsRetriesAfterFailedSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Deadlines")
	f.automation(t, b.ID, models.Automation{
		Name:    "Due",
		Trigger: models.Trigger{Type: models.TriggerDateArrives, Column: "due_date"},
		Actions: []models.Action{{Type: models.ActionCreateUpdate, Message: "Due today"}},
	})
	f.item(t, b.ID, map[string]any{"name": "Report", "due_date": "2026-03-10"})

	repo := &flakySave{Repository: f.db, fail: true}
	reg, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(repo, reg, WithClock(f.clock.Now), WithLogger(testutil.Logger()))

	if _, err := svc.FireDateArrivals(ctx, b.ID, testNow); err == nil {
		t.Fatal("expected the failed save to surface")
	}
	repo.fail = false
	if n, err := svc.FireDateArrivals(ctx, b.ID, testNow); err != nil || n != 1 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}
	if n, _ := svc.FireDateArrivals(ctx, b.ID, testNow); n != 0 {
		t.Errorf("fired again after a successful save: %d", n)
	}
}

func TestDeferredActionsRunWhenDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	f.automation(t, b.ID, models.Automation{
		Name:    "Start later",
		Trigger: models.Trigger{Type: models.TriggerItemCreated},
		Actions: []models.Action{{Type: models.ActionChangeStatus, Value: "Working on it", Delay: 30}},
	})
	it := f.item(t, b.ID, map[string]any{"name": "Ticket"})

	if n, err := f.svc.RunDueDeferred(ctx, testNow); err != nil || n != 0 {
		t.Fatalf("early run: n=%d err=%v", n, err)
	}
	n, err := f.svc.RunDueDeferred(ctx, testNow.Add(31*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("due run: n=%d err=%v", n, err)
	}
	got, err := f.svc.GetItem(ctx, "u1", b.ID, it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Data["status"] != "Working on it" {
		t.Errorf("status = %v", got.Data["status"])
	}
	if n, _ := f.svc.RunDueDeferred(ctx, testNow.Add(time.Hour)); n != 0 {
		t.Errorf("deferred action ran twice")
	}
}

func TestBulkAndArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	a := f.item(t, b.ID, map[string]any{"name": "a"})
	c := f.item(t, b.ID, map[string]any{"name": "c"})

	res, err := f.svc.Bulk(ctx, "u1", b.ID, "", models.BulkOperation{
		Type: models.BulkUpdate, ItemIDs: []string{a.ID, c.ID, "ghost"}, Data: map[string]any{"status": "Done"},
	})
	if err != nil {
		t.Fatalf("Bulk: %v", err)
	}
	if res.Bulk.ProcessedItems != 2 || res.Bulk.FailedItems != 1 || res.Bulk.Success {
		t.Errorf("bulk = %+v", res.Bulk)
	}
	if _, err := f.svc.Bulk(ctx, "u1", b.ID, "", models.BulkOperation{Type: models.BulkDelete}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty bulk err = %v", err)
	}

	d, err := f.svc.ArchiveItem(ctx, "u1", b.ID, a.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Board.Items) != 1 || len(d.Board.ArchivedItems) != 1 {
		t.Errorf("live=%d archived=%d", len(d.Board.Items), len(d.Board.ArchivedItems))
	}
	if _, err := f.svc.ArchiveItem(ctx, "u1", b.ID, a.ID, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archiving twice err = %v", err)
	}
}

func TestDuplicateSaveAsTemplateAndMorph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	f.item(t, b.ID, map[string]any{"name": "keep me"})

	dup, err := f.svc.DuplicateBoard(ctx, "u2", b.ID, "", flexiboard.DuplicateOptions{IncludeData: true})
	if err != nil {
		t.Fatalf("DuplicateBoard: %v", err)
	}
	if dup.Board.ID == b.ID || dup.Board.Name != "Tasks (copy)" || len(dup.Board.Items) != 1 || dup.Board.OwnerID != "u2" {
		t.Errorf("duplicate = %+v", dup.Board)
	}

	tpl, err := f.svc.SaveAsTemplate(ctx, "u1", b.ID, flexiboard.TemplateOptions{Name: "Snapshot"})
	if err != nil {
		t.Fatalf("SaveAsTemplate: %v", err)
	}
	if _, err := f.svc.GetTemplate(tpl.ID); err != nil {
		t.Errorf("saved template not registered: %v", err)
	}

	m, err := f.svc.MorphBoard(ctx, "u1", b.ID, "project", "", flexiboard.MorphOptions{})
	if err != nil {
		t.Fatalf("MorphBoard: %v", err)
	}
	if m.Board.ID != b.ID || m.Board.Template != "project" || len(m.Board.Items) != 0 {
		t.Errorf("morphed = id %s template %s items %d", m.Board.ID, m.Board.Template, len(m.Board.Items))
	}
}

func TestDeleteBoardAndWorkspace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")

	if err := f.svc.DeleteWorkspace(ctx, "u2", f.ws.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("member deleting workspace err = %v", err)
	}
	if err := f.svc.DeleteBoard(ctx, "u1", b.ID); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if _, err := f.svc.GetBoard(ctx, "u1", b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted board err = %v", err)
	}
	if !f.rec.has("board.deleted") {
		t.Error("board.deleted not published")
	}

	other := f.board(t, "Other")
	if err := f.svc.DeleteWorkspace(ctx, "u1", f.ws.ID); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}
	if _, err := f.db.GetBoard(other.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("workspace boards survived: %v", err)
	}
}

func TestPostUpdateNotifiesMentionedMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	it := f.item(t, b.ID, map[string]any{"name": "Review"})

	if _, err := f.svc.PostUpdate(ctx, "u1", b.ID, it.ID, "ping @u2 and @stranger"); err != nil {
		t.Fatalf("PostUpdate: %v", err)
	}
	if ns, _ := f.svc.ListNotifications(ctx, "u2", false, 10); len(ns) != 1 || ns[0].Type != models.NotifyMention {
		t.Errorf("u2 notifications = %+v", ns)
	}
	if ns, _ := f.svc.ListNotifications(ctx, "stranger", false, 10); len(ns) != 0 {
		t.Errorf("non-member was notified")
	}
	if _, err := f.svc.PostUpdate(ctx, "u1", b.ID, it.ID, "  "); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank update err = %v", err)
	}
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Files")
	if _, err := f.svc.AddColumn(ctx, "u1", b.ID, "", models.Column{ID: "docs", Title: "Docs", Type: models.ColumnFile}); err != nil {
		t.Fatal(err)
	}
	it := f.item(t, b.ID, map[string]any{"name": "Contract"})

	att, err := f.svc.AttachFile(ctx, "u1", b.ID, it.ID, "docs", "nda.txt", []byte("secret"))
	if err != nil {
		t.Fatalf("AttachFile: %v", err)
	}
	if att.Size != 6 || att.Checksum == "" {
		t.Errorf("attachment = %+v", att)
	}
	if _, err := f.svc.AttachFile(ctx, "u1", b.ID, it.ID, "docs", "../x.txt", []byte("x")); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("traversal err = %v", err)
	}
	if _, err := f.svc.AttachFile(ctx, "u1", b.ID, it.ID, "name", "a.txt", []byte("x")); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("non-file column err = %v", err)
	}

	data, err := f.svc.ReadAttachment(ctx, "u1", b.ID, it.ID, "nda.txt")
	if err != nil || string(data) != "secret" {
		t.Fatalf("ReadAttachment = %q, %v", data, err)
	}
	got, _ := f.svc.GetItem(ctx, "u1", b.ID, it.ID)
	if cells, ok := got.Data["docs"].([]any); !ok || len(cells) != 1 {
		t.Errorf("docs cell = %#v", got.Data["docs"])
	}

	if err := f.svc.DetachFile(ctx, "u1", b.ID, it.ID, "nda.txt"); err != nil {
		t.Fatalf("DetachFile: %v", err)
	}
	if list, _ := f.svc.ListAttachments(ctx, "u1", b.ID, it.ID); len(list) != 0 {
		t.Errorf("files left = %+v", list)
	}
}

func TestViewsAndReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.board(t, "Tasks")
	f.item(t, b.ID, map[string]any{"name": "a", "status": "Done"})
	f.item(t, b.ID, map[string]any{"name": "b"})

	out, err := f.svc.RenderView(ctx, "u1", b.ID, "", flexiboard.RenderOptions{})
	if err != nil {
		t.Fatalf("RenderView: %v", err)
	}
	if tbl, ok := out.(flexiboard.Table); !ok || len(tbl.Rows) != 2 {
		t.Errorf("default render = %T", out)
	}
	if _, err := f.svc.RenderView(ctx, "u1", b.ID, models.ViewMap, flexiboard.RenderOptions{}); !errors.Is(err, apperr.ErrUnsupported) {
		t.Errorf("map view err = %v", err)
	}

	if _, err := f.svc.AddView(ctx, "u1", b.ID, "", models.View{Name: "Board", Type: models.ViewKanban, GroupBy: "ghost"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad group_by err = %v", err)
	}
	d, err := f.svc.AddView(ctx, "u1", b.ID, "", models.View{Name: "Board", Type: models.ViewKanban, GroupBy: "status"})
	if err != nil {
		t.Fatalf("AddView: %v", err)
	}
	if len(d.Board.Views) != 2 {
		t.Errorf("views = %d", len(d.Board.Views))
	}

	stats, err := f.svc.Statistics(ctx, "u1", b.ID)
	if err != nil || stats.TotalItems != 2 || stats.CompletedItems != 1 {
		t.Errorf("stats = %+v, %v", stats, err)
	}
	an, err := f.svc.Analytics(ctx, "u1", b.ID)
	if err != nil || an.Overview.TotalItems != 2 {
		t.Errorf("analytics = %+v, %v", an, err)
	}
}

func TestFolderTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent, err := f.svc.CreateFolder(ctx, "u1", f.ws.ID, FolderInput{Name: "Sales"})
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	child, err := f.svc.CreateFolder(ctx, "u1", f.ws.ID, FolderInput{Name: "EMEA", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("CreateFolder child: %v", err)
	}
	if _, err := f.svc.UpdateFolder(ctx, "u1", parent.ID, FolderInput{Name: "Sales", ParentID: child.ID}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("cycle err = %v", err)
	}
	if _, err := f.svc.CreateBoard(ctx, "u1", CreateBoardInput{WorkspaceID: f.ws.ID, FolderID: child.ID, Name: "Leads"}); err != nil {
		t.Fatal(err)
	}
	f.board(t, "Loose")

	tree, err := f.svc.Tree(ctx, "u1", f.ws.ID)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(tree.Folders) != 1 || len(tree.Folders[0].Children) != 1 || len(tree.Folders[0].Children[0].Boards) != 1 {
		t.Errorf("tree folders = %+v", tree.Folders)
	}
	if len(tree.Boards) != 1 || tree.Boards[0].Name != "Loose" {
		t.Errorf("root boards = %+v", tree.Boards)
	}
}
