//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS items_fts USING fts5(
			board_id UNINDEXED,
			item_id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, boardID, itemID, title, body string) error {
	_, err := tx.Exec(`INSERT INTO items_fts (board_id, item_id, title, body) VALUES (?, ?, ?, ?)`,
		boardID, itemID, title, body)
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteBoard(tx *sql.Tx, boardID string) {
	_, _ = tx.Exec(`DELETE FROM items_fts WHERE board_id = ?`, boardID)
}

// SearchItems runs an FTS5 query over item text, optionally limited to one
// workspace, and returns hits with highlighted snippets.
func (db *DB) SearchItems(query, workspaceID string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT items_fts.board_id,
		       items_fts.item_id,
		       items_fts.title,
		       snippet(items_fts, 3, '<b>', '</b>', '...', 32)
		FROM items_fts
		JOIN boards b ON b.id = items_fts.board_id
		WHERE items_fts MATCH ? AND (? = '' OR b.workspace_id = ?)
		ORDER BY items_fts.rank
		LIMIT ?
	`, query, workspaceID, workspaceID, limit)
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
