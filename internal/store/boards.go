package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// CreateBoard inserts a new board document at version 1.
func (db *DB) CreateBoard(b *models.Board) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	b.Version = 1
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("store: encode board: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO boards (id, workspace_id, folder_id, name, business_app, item_count, version, doc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.WorkspaceID, nullable(b.FolderID), b.Name, b.BusinessApp, len(b.Items), b.Version, string(doc),
		b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create board: %w", err)
	}
	if err := indexItems(tx, b); err != nil {
		return err
	}
	return tx.Commit()
}

// GetBoard loads a board document. The row's workspace and folder win over
// the document's copy, since folder deletion only touches the row.
func (db *DB) GetBoard(id string) (*models.Board, error) {
	var doc string
	var folder sql.NullString
	var wsID string
	var version int64
	err := db.conn.QueryRow(`SELECT workspace_id, folder_id, version, doc FROM boards WHERE id = ?`, id).
		Scan(&wsID, &folder, &version, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get board: %w", err)
	}
	var b models.Board
	if err := json.Unmarshal([]byte(doc), &b); err != nil {
		return nil, fmt.Errorf("store: decode board %s: %w", id, err)
	}
	b.WorkspaceID = wsID
	b.FolderID = folder.String
	b.Version = version
	if b.Items == nil {
		b.Items = []*models.Item{}
	}
	return &b, nil
}

// SaveBoard writes b if the stored version still equals expectedVersion,
// then bumps b.Version. A stale version yields apperr.ErrConflict.
func (db *DB) SaveBoard(b *models.Board, expectedVersion int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	b.Version = expectedVersion + 1
	doc, err := json.Marshal(b)
	if err != nil {
		b.Version = expectedVersion
		return fmt.Errorf("store: encode board: %w", err)
	}
	res, err := tx.Exec(`
		UPDATE boards
		SET folder_id = ?, name = ?, business_app = ?, item_count = ?, version = ?, doc = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`, nullable(b.FolderID), b.Name, b.BusinessApp, len(b.Items), b.Version, string(doc), b.UpdatedAt.UTC(),
		b.ID, expectedVersion)
	if err != nil {
		b.Version = expectedVersion
		return fmt.Errorf("store: save board: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		b.Version = expectedVersion
		var exists int
		if err := tx.QueryRow(`SELECT count(*) FROM boards WHERE id = ?`, b.ID).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("board %q: %w", b.ID, apperr.ErrNotFound)
		}
		return fmt.Errorf("board %q at version %d: %w", b.ID, expectedVersion, apperr.ErrConflict)
	}
	if err := indexItems(tx, b); err != nil {
		b.Version = expectedVersion
		return err
	}
	return tx.Commit()
}

// DeleteBoard removes a board with its search rows and deferred actions.
func (db *DB) DeleteBoard(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDeleteBoard(tx, id)
	res, err := tx.Exec(`DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete board: %w", err)
	}
	if err := mustAffect(res, "board", id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListBoards returns summaries of every board in a workspace.
func (db *DB) ListBoards(workspaceID string) ([]models.BoardSummary, error) {
	rows, err := db.conn.Query(`
		SELECT id, workspace_id, folder_id, name, business_app, item_count, version, updated_at
		FROM boards WHERE workspace_id = ? ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store: list boards: %w", err)
	}
	defer rows.Close()

	out := []models.BoardSummary{}
	for rows.Next() {
		var s models.BoardSummary
		var folder sql.NullString
		if err := rows.Scan(&s.ID, &s.WorkspaceID, &folder, &s.Name, &s.BusinessApp, &s.ItemCount, &s.Version, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.FolderID = folder.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// BoardIDs returns the id of every stored board.
func (db *DB) BoardIDs() ([]string, error) {
	rows, err := db.conn.Query(`SELECT id FROM boards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: board ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// indexItems replaces a board's search rows with its current items.
func indexItems(tx *sql.Tx, b *models.Board) error {
	_, _ = tx.Exec(`DELETE FROM items_search WHERE board_id = ?`, b.ID)
	ftsDeleteBoard(tx, b.ID)
	if len(b.Items) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO items_search (board_id, item_id, title, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare search insert: %w", err)
	}
	defer stmt.Close()
	for _, it := range b.Items {
		title, body := searchText(b, it)
		if _, err := stmt.Exec(b.ID, it.ID, title, body); err != nil {
			return fmt.Errorf("store: insert search row: %w", err)
		}
		if err := ftsUpsert(tx, b.ID, it.ID, title, body); err != nil {
			return err
		}
	}
	return nil
}

// searchText flattens an item into a title and a body of its text cells.
func searchText(b *models.Board, it *models.Item) (string, string) {
	var title string
	var parts []string
	for _, c := range b.Columns {
		v, ok := it.Data[c.ID]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case string:
			if val == "" {
				continue
			}
			if title == "" && c.Type == models.ColumnText {
				title = val
				continue
			}
			parts = append(parts, val)
		case []any:
			for _, e := range val {
				if s, ok := e.(string); ok {
					parts = append(parts, s)
				}
			}
		}
	}
	parts = append(parts, it.Tags...)
	return title, strings.Join(parts, " ")
}
