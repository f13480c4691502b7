//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over items_search.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _ string) error { return nil }

func ftsDeleteBoard(_ *sql.Tx, _ string) {}

// SearchItems performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) SearchItems(query, workspaceID string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT s.board_id, s.item_id, s.title, substr(s.body, 1, 200)
		FROM items_search s
		JOIN boards b ON b.id = s.board_id
		WHERE (s.title LIKE ? OR s.body LIKE ?) AND (? = '' OR b.workspace_id = ?)
		ORDER BY s.title
		LIMIT ?
	`, like, like, workspaceID, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.BoardID, &h.ItemID, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
