//go:build sqlite_fts5

package store

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items_fts`).Scan(&count); err != nil {
		t.Fatalf("items_fts table missing: %v", err)
	}
}

func TestFTS5_SnippetHighlights(t *testing.T) {
	db := testDB(t)
	seedWorkspace(t, db)
	if err := db.CreateBoard(testBoard("b1")); err != nil {
		t.Fatal(err)
	}
	hits, err := db.SearchItems("marketing", "", 10)
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Snippet == "" || hits[0].Snippet == "coordinate with marketing pr" {
		t.Errorf("snippet not highlighted: %q", hits[0].Snippet)
	}
}
