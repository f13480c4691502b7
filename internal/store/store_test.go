package store

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "flexiboard-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedWorkspace(t *testing.T, db *DB) models.Workspace {
	t.Helper()
	ws := models.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1", MemberIDs: []string{"u2"}, CreatedAt: testNow, UpdatedAt: testNow}
	if err := db.CreateWorkspace(ws); err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	return ws
}

func testBoard(id string) *models.Board {
	return &models.Board{
		ID:          id,
		WorkspaceID: "ws1",
		Name:        "Launch",
		OwnerID:     "u1",
		Columns: []models.Column{
			{ID: "name", Title: "Name", Type: models.ColumnText},
			{ID: "notes", Title: "Notes", Type: models.ColumnLongText},
		},
		Items: []*models.Item{
			{ID: "i1", Data: map[string]any{"name": "Write press release", "notes": "coordinate with marketing"}, Tags: []string{"pr"}},
			{ID: "i2", Data: map[string]any{"name": "Book venue"}},
		},
		Views:     []models.View{{ID: "v1", Name: "Main Table", Type: models.ViewTable}},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"workspaces", "folders", "boards", "items_search", "activities", "notifications", "deferred_actions", "date_triggers"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Errorf("%s table missing: %v", table, err)
		}
	}
}

func TestWorkspaceMembership(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	_ = db.CreateWorkspace(models.Workspace{ID: "ws2", Name: "Other", OwnerID: "u3", CreatedAt: testNow, UpdatedAt: testNow})

	got, err := db.ListWorkspaces("u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "ws1" {
		t.Errorf("u2 workspaces = %+v", got)
	}
	all, _ := db.ListWorkspaces("")
	if len(all) != 2 {
		t.Errorf("all workspaces = %d", len(all))
	}
	if _, err := db.GetWorkspace("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing workspace err = %v", err)
	}
}

func TestBoardVersioning(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	b := testBoard("b1")
	if err := db.CreateBoard(b); err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if b.Version != 1 {
		t.Fatalf("version after create = %d", b.Version)
	}

	loaded, err := db.GetBoard("b1")
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if diff := cmp.Diff(b.Items[0].Data, loaded.Items[0].Data); diff != "" {
		t.Errorf("item data (-want +got):\n%s", diff)
	}

	loaded.Name = "Renamed"
	if err := db.SaveBoard(loaded, 1); err != nil {
		t.Fatalf("SaveBoard: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("version after save = %d", loaded.Version)
	}

	b.Name = "Stale write"
	if err := db.SaveBoard(b, 1); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale save err = %v, want ErrConflict", err)
	}
	if b.Version != 1 {
		t.Errorf("failed save changed version to %d", b.Version)
	}
	if err := db.SaveBoard(testBoard("ghost"), 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing board err = %v", err)
	}

	got, _ := db.GetBoard("b1")
	if got.Name != "Renamed" || got.Version != 2 {
		t.Errorf("stored = %q v%d", got.Name, got.Version)
	}
}

func TestFolderDeleteKeepsBoards(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	_ = db.CreateFolder(models.Folder{ID: "f1", WorkspaceID: "ws1", Name: "Ops", CreatedAt: testNow})
	_ = db.CreateFolder(models.Folder{ID: "f2", WorkspaceID: "ws1", ParentID: "f1", Name: "Nested", CreatedAt: testNow})
	b := testBoard("b1")
	b.FolderID = "f2"
	if err := db.CreateBoard(b); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteFolder("f1"); err != nil {
		t.Fatalf("DeleteFolder: %v", err)
	}
	folders, _ := db.ListFolders("ws1")
	if len(folders) != 0 {
		t.Errorf("sub-folder survived: %+v", folders)
	}
	got, err := db.GetBoard("b1")
	if err != nil {
		t.Fatalf("board lost with folder: %v", err)
	}
	if got.FolderID != "" {
		t.Errorf("folder id = %q, want root", got.FolderID)
	}
}

func TestDeleteWorkspaceCascades(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	_ = db.CreateBoard(testBoard("b1"))
	if err := db.DeleteWorkspace("ws1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetBoard("b1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("board survived workspace delete: %v", err)
	}
}

func TestSearchItems(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	_ = db.CreateBoard(testBoard("b1"))

	hits, err := db.SearchItems("marketing", "ws1", 10)
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(hits) != 1 || hits[0].ItemID != "i1" || hits[0].Title != "Write press release" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits, _ := db.SearchItems("marketing", "ws-other", 10); len(hits) != 0 {
		t.Errorf("workspace filter leaked: %+v", hits)
	}

	b, _ := db.GetBoard("b1")
	b.Items = b.Items[1:]
	if err := db.SaveBoard(b, b.Version); err != nil {
		t.Fatal(err)
	}
	if hits, _ := db.SearchItems("marketing", "", 10); len(hits) != 0 {
		t.Errorf("removed item still searchable: %+v", hits)
	}
}

func TestActivitiesAndNotifications(t *testing.T) {
	db := testDB(t)
	err := db.AddActivities([]models.Activity{
		{ID: "a1", BoardID: "b1", ItemID: "i1", Type: models.ActivityItemCreated, UserID: "u1", Timestamp: testNow},
		{ID: "a2", BoardID: "b1", ItemID: "i2", Type: models.ActivityItemUpdated, UserID: "u1", Timestamp: testNow.Add(time.Minute), Data: map[string]any{"column": "status"}},
	})
	if err != nil {
		t.Fatalf("AddActivities: %v", err)
	}
	acts, _ := db.ListActivities("b1", "", 10)
	if len(acts) != 2 || acts[0].ID != "a2" || acts[0].Data["column"] != "status" {
		t.Errorf("activities = %+v", acts)
	}
	if acts, _ := db.ListActivities("b1", "i1", 10); len(acts) != 1 {
		t.Errorf("item activities = %d", len(acts))
	}

	_ = db.AddNotifications([]models.Notification{
		{ID: "n1", UserID: "ann", BoardID: "b1", Type: models.NotifyAutomation, Message: "hi", CreatedAt: testNow},
		{ID: "n2", UserID: "ann", BoardID: "b1", Type: models.NotifyAssignment, Message: "yo", CreatedAt: testNow},
	})
	if err := db.MarkNotificationRead("n1", "ann"); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNotificationRead("n1", "bob"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("foreign notification err = %v", err)
	}
	unread, _ := db.ListNotifications("ann", true, 0)
	if len(unread) != 1 || unread[0].ID != "n2" {
		t.Errorf("unread = %+v", unread)
	}
}

func TestDeferredQueue(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	_ = db.CreateBoard(testBoard("b1"))
	err := db.AddDeferred([]models.DeferredAction{
		{ID: "d1", BoardID: "b1", AutomationID: "a1", Action: models.Action{Type: models.ActionArchiveItem}, RunAt: testNow},
		{ID: "d2", BoardID: "b1", AutomationID: "a1", Action: models.Action{Type: models.ActionArchiveItem}, RunAt: testNow.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("AddDeferred: %v", err)
	}
	due, err := db.DueDeferred(testNow.Add(time.Minute), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].ID != "d1" || due[0].Action.Type != models.ActionArchiveItem {
		t.Fatalf("due = %+v", due)
	}
	_ = db.DeleteDeferred("d1")
	if due, _ := db.DueDeferred(testNow.Add(2*time.Hour), 0); len(due) != 1 || due[0].ID != "d2" {
		t.Errorf("after delete = %+v", due)
	}
}

func TestMarkDateTriggerOnce(t *testing.T) {
	db := testDB(t)
	first, err := db.MarkDateTrigger("a1", "i1", "2026-03-10", testNow)
	if err != nil || !first {
		t.Fatalf("first mark = %v, %v", first, err)
	}
	again, _ := db.MarkDateTrigger("a1", "i1", "2026-03-10", testNow)
	if again {
		t.Error("same date fired twice")
	}
	next, _ := db.MarkDateTrigger("a1", "i1", "2026-03-11", testNow)
	if !next {
		t.Error("new date should fire")
	}
	if done, err := db.DateTriggered("a1", "i1", "2026-03-11"); err != nil || !done {
		t.Errorf("DateTriggered marked = %v, %v", done, err)
	}
	if done, _ := db.DateTriggered("a1", "i1", "2026-03-12"); done {
		t.Error("DateTriggered reported an unmarked date")
	}
}
