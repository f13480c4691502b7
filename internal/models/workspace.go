package models

import "time"

// Workspace owns folders and boards for one tenant.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	Color       string    `json:"color,omitempty"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMember reports whether userID may access the workspace.
func (w *Workspace) HasMember(userID string) bool {
	if w.OwnerID == userID {
		return true
	}
	for _, m := range w.MemberIDs {
		if m == userID {
			return true
		}
	}
	return false
}

// Folder groups boards inside a workspace. Folders nest via ParentID.
type Folder struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FolderNode is a folder with its children and boards, for tree rendering.
type FolderNode struct {
	Folder   Folder         `json:"folder"`
	Children []*FolderNode  `json:"children"`
	Boards   []BoardSummary `json:"boards"`
}

// WorkspaceTree is the full folder/board hierarchy of a workspace.
type WorkspaceTree struct {
	Workspace Workspace      `json:"workspace"`
	Folders   []*FolderNode  `json:"folders"`
	Boards    []BoardSummary `json:"boards"` // boards outside any folder
}
