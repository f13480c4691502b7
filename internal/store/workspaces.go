package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// CreateWorkspace inserts a new workspace.
func (db *DB) CreateWorkspace(ws models.Workspace) error {
	members, _ := json.Marshal(ws.MemberIDs)
	_, err := db.conn.Exec(`
		INSERT INTO workspaces (id, name, description, owner_id, members, color, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ws.ID, ws.Name, ws.Description, ws.OwnerID, string(members), ws.Color, ws.IsDefault, ws.CreatedAt.UTC(), ws.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create workspace: %w", err)
	}
	return nil
}

const workspaceCols = `id, name, description, owner_id, members, color, is_default, created_at, updated_at`

func scanWorkspace(sc interface{ Scan(...any) error }) (models.Workspace, error) {
	var ws models.Workspace
	var members string
	if err := sc.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.OwnerID, &members, &ws.Color, &ws.IsDefault, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return ws, err
	}
	_ = json.Unmarshal([]byte(members), &ws.MemberIDs)
	if ws.MemberIDs == nil {
		ws.MemberIDs = []string{}
	}
	return ws, nil
}

// GetWorkspace returns the workspace with the given id.
func (db *DB) GetWorkspace(id string) (*models.Workspace, error) {
	ws, err := scanWorkspace(db.conn.QueryRow(`SELECT `+workspaceCols+` FROM workspaces WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workspace %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get workspace: %w", err)
	}
	return &ws, nil
}

// ListWorkspaces returns the workspaces userID owns or belongs to.
// An empty userID lists all workspaces.
func (db *DB) ListWorkspaces(userID string) ([]models.Workspace, error) {
	rows, err := db.conn.Query(`SELECT ` + workspaceCols + ` FROM workspaces ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("store: list workspaces: %w", err)
	}
	defer rows.Close()

	out := []models.Workspace{}
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		if userID == "" || ws.HasMember(userID) {
			out = append(out, ws)
		}
	}
	return out, rows.Err()
}

// UpdateWorkspace rewrites a workspace's mutable fields.
func (db *DB) UpdateWorkspace(ws models.Workspace) error {
	members, _ := json.Marshal(ws.MemberIDs)
	res, err := db.conn.Exec(`
		UPDATE workspaces
		SET name = ?, description = ?, members = ?, color = ?, is_default = ?, updated_at = ?
		WHERE id = ?
	`, ws.Name, ws.Description, string(members), ws.Color, ws.IsDefault, ws.UpdatedAt.UTC(), ws.ID)
	if err != nil {
		return fmt.Errorf("store: update workspace: %w", err)
	}
	return mustAffect(res, "workspace", ws.ID)
}

// DeleteWorkspace removes a workspace with its folders and boards.
func (db *DB) DeleteWorkspace(id string) error {
	res, err := db.conn.Exec(`DELETE FROM workspaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete workspace: %w", err)
	}
	return mustAffect(res, "workspace", id)
}

// CreateFolder inserts a folder.
func (db *DB) CreateFolder(f models.Folder) error {
	_, err := db.conn.Exec(`
		INSERT INTO folders (id, workspace_id, parent_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.WorkspaceID, nullable(f.ParentID), f.Name, f.Color, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("store: create folder: %w", err)
	}
	return nil
}

const folderCols = `id, workspace_id, parent_id, name, color, created_at`

func scanFolder(sc interface{ Scan(...any) error }) (models.Folder, error) {
	var f models.Folder
	var parent sql.NullString
	err := sc.Scan(&f.ID, &f.WorkspaceID, &parent, &f.Name, &f.Color, &f.CreatedAt)
	f.ParentID = parent.String
	return f, err
}

// GetFolder returns the folder with the given id.
func (db *DB) GetFolder(id string) (*models.Folder, error) {
	f, err := scanFolder(db.conn.QueryRow(`SELECT `+folderCols+` FROM folders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get folder: %w", err)
	}
	return &f, nil
}

// ListFolders returns every folder of a workspace, ordered by name.
func (db *DB) ListFolders(workspaceID string) ([]models.Folder, error) {
	rows, err := db.conn.Query(`SELECT `+folderCols+` FROM folders WHERE workspace_id = ? ORDER BY name`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("store: list folders: %w", err)
	}
	defer rows.Close()

	out := []models.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFolder renames, recolours or re-parents a folder.
func (db *DB) UpdateFolder(f models.Folder) error {
	res, err := db.conn.Exec(`UPDATE folders SET parent_id = ?, name = ?, color = ? WHERE id = ?`,
		nullable(f.ParentID), f.Name, f.Color, f.ID)
	if err != nil {
		return fmt.Errorf("store: update folder: %w", err)
	}
	return mustAffect(res, "folder", f.ID)
}

// DeleteFolder removes a folder and its sub-folders. Boards inside are kept
// and moved to the workspace root.
func (db *DB) DeleteFolder(id string) error {
	res, err := db.conn.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete folder: %w", err)
	}
	return mustAffect(res, "folder", id)
}

func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}
