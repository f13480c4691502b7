package boardservice

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// WorkspaceInput carries the editable workspace fields.
type WorkspaceInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	MemberIDs   []string `json:"member_ids,omitempty"`
	IsDefault   bool     `json:"is_default,omitempty"`
}

// CreateWorkspace creates a workspace owned by userID.
func (s *Service) CreateWorkspace(_ context.Context, userID string, in WorkspaceInput) (*models.Workspace, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("workspace name: %w", apperr.ErrInvalid)
	}
	now := s.now()
	ws := models.Workspace{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     userID,
		MemberIDs:   nonNilSlice(in.MemberIDs),
		Color:       in.Color,
		IsDefault:   in.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateWorkspace(ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkspaces returns the workspaces userID can see.
func (s *Service) ListWorkspaces(_ context.Context, userID string) ([]models.Workspace, error) {
	return s.repo.ListWorkspaces(userID)
}

// GetWorkspace returns one workspace if userID belongs to it.
func (s *Service) GetWorkspace(_ context.Context, userID, id string) (*models.Workspace, error) {
	ws, err := s.repo.GetWorkspace(id)
	if err != nil {
		return nil, err
	}
	if userID != "" && !ws.HasMember(userID) {
		return nil, fmt.Errorf("workspace %s: %w", id, apperr.ErrForbidden)
	}
	return ws, nil
}

// UpdateWorkspace edits a workspace. Only the owner may change members.
func (s *Service) UpdateWorkspace(ctx context.Context, userID, id string, in WorkspaceInput) (*models.Workspace, error) {
	ws, err := s.GetWorkspace(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		ws.Name = in.Name
	}
	ws.Description = in.Description
	ws.Color = in.Color
	ws.IsDefault = in.IsDefault
	if in.MemberIDs != nil && !slices.Equal(in.MemberIDs, ws.MemberIDs) {
		if userID != "" && userID != ws.OwnerID {
			return nil, fmt.Errorf("workspace %s members: %w", id, apperr.ErrForbidden)
		}
		ws.MemberIDs = in.MemberIDs
	}
	ws.UpdatedAt = s.now()
	if err := s.repo.UpdateWorkspace(*ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// DeleteWorkspace removes a workspace and everything in it. Owner only.
func (s *Service) DeleteWorkspace(ctx context.Context, userID, id string) error {
	ws, err := s.GetWorkspace(ctx, userID, id)
	if err != nil {
		return err
	}
	if userID != "" && userID != ws.OwnerID {
		return fmt.Errorf("workspace %s: %w", id, apperr.ErrForbidden)
	}
	boards, err := s.repo.ListBoards(id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteWorkspace(id); err != nil {
		return err
	}
	for _, b := range boards {
		s.forget(b.ID)
		s.purgeAttachments(b.ID)
		s.publish("board.deleted", b.ID, "")
	}
	return nil
}

// FolderInput carries the editable folder fields.
type FolderInput struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
	Color    string `json:"color,omitempty"`
}

// CreateFolder adds a folder to a workspace, optionally nested.
func (s *Service) CreateFolder(ctx context.Context, userID, workspaceID string, in FolderInput) (*models.Folder, error) {
	if _, err := s.GetWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("folder name: %w", apperr.ErrInvalid)
	}
	if err := s.checkParent(workspaceID, "", in.ParentID); err != nil {
		return nil, err
	}
	f := models.Folder{
		ID:          s.newID(),
		WorkspaceID: workspaceID,
		ParentID:    in.ParentID,
		Name:        in.Name,
		Color:       in.Color,
		CreatedAt:   s.now(),
	}
	if err := s.repo.CreateFolder(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// UpdateFolder renames or moves a folder. A folder cannot move under itself
// or one of its descendants.
func (s *Service) UpdateFolder(ctx context.Context, userID, id string, in FolderInput) (*models.Folder, error) {
	f, err := s.repo.GetFolder(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetWorkspace(ctx, userID, f.WorkspaceID); err != nil {
		return nil, err
	}
	if err := s.checkParent(f.WorkspaceID, id, in.ParentID); err != nil {
		return nil, err
	}
	if in.Name != "" {
		f.Name = in.Name
	}
	f.Color = in.Color
	f.ParentID = in.ParentID
	if err := s.repo.UpdateFolder(*f); err != nil {
		return nil, err
	}
	return f, nil
}

// DeleteFolder removes a folder and its sub-folders; their boards move to
// the workspace root.
func (s *Service) DeleteFolder(ctx context.Context, userID, id string) error {
	f, err := s.repo.GetFolder(id)
	if err != nil {
		return err
	}
	if _, err := s.GetWorkspace(ctx, userID, f.WorkspaceID); err != nil {
		return err
	}
	return s.repo.DeleteFolder(id)
}

func (s *Service) checkParent(workspaceID, folderID, parentID string) error {
	for cur := parentID; cur != ""; {
		if cur == folderID {
			return fmt.Errorf("folder %s cannot nest under itself: %w", folderID, apperr.ErrInvalid)
		}
		p, err := s.repo.GetFolder(cur)
		if err != nil {
			return err
		}
		if p.WorkspaceID != workspaceID {
			return fmt.Errorf("parent folder %s is in another workspace: %w", parentID, apperr.ErrInvalid)
		}
		cur = p.ParentID
	}
	return nil
}

// Tree returns the folder/board hierarchy of a workspace.
func (s *Service) Tree(ctx context.Context, userID, workspaceID string) (*models.WorkspaceTree, error) {
	ws, err := s.GetWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	folders, err := s.repo.ListFolders(workspaceID)
	if err != nil {
		return nil, err
	}
	boards, err := s.repo.ListBoards(workspaceID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*models.FolderNode, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &models.FolderNode{Folder: f, Children: []*models.FolderNode{}, Boards: []models.BoardSummary{}}
	}
	tree := &models.WorkspaceTree{Workspace: *ws, Folders: []*models.FolderNode{}, Boards: []models.BoardSummary{}}
	for _, f := range folders {
		n := nodes[f.ID]
		if parent, ok := nodes[f.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		} else {
			tree.Folders = append(tree.Folders, n)
		}
	}
	for _, b := range boards {
		if n, ok := nodes[b.FolderID]; ok {
			n.Boards = append(n.Boards, b)
		} else {
			tree.Boards = append(tree.Boards, b)
		}
	}
	return tree, nil
}
