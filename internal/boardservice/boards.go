package boardservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// CreateBoardInput describes a new board. TemplateID wins over BusinessApp;
// with neither the board gets the default columns.
type CreateBoardInput struct {
	WorkspaceID string `json:"workspace_id"`
	FolderID    string `json:"folder_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TemplateID  string `json:"template_id,omitempty"`
	BusinessApp string `json:"business_app,omitempty"`
}

// defaultColumns is the shape of a blank board.
func defaultColumns() []models.Column {
	return []models.Column{
		{ID: "name", Title: "Name", Type: models.ColumnText, Required: true, Width: 240},
		{ID: "status", Title: "Status", Type: models.ColumnStatus, Options: []string{"Not Started", "Working on it", "Stuck", "Done"}, DefaultValue: "Not Started"},
		{ID: "owner", Title: "Owner", Type: models.ColumnPerson},
		{ID: "due_date", Title: "Due Date", Type: models.ColumnDate},
		{ID: "priority", Title: "Priority", Type: models.ColumnPriority, DefaultValue: models.PriorityMedium},
	}
}

// CreateBoard creates a board in a workspace the user belongs to.
func (s *Service) CreateBoard(ctx context.Context, userID string, in CreateBoardInput) (*BoardDetail, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("board name: %w", apperr.ErrInvalid)
	}
	if _, err := s.GetWorkspace(ctx, userID, in.WorkspaceID); err != nil {
		return nil, err
	}
	if in.FolderID != "" {
		f, err := s.repo.GetFolder(in.FolderID)
		if err != nil {
			return nil, err
		}
		if f.WorkspaceID != in.WorkspaceID {
			return nil, fmt.Errorf("folder %s is in another workspace: %w", in.FolderID, apperr.ErrInvalid)
		}
	}

	now := s.now()
	b := &models.Board{
		ID:          s.newID(),
		WorkspaceID: in.WorkspaceID,
		FolderID:    in.FolderID,
		Name:        in.Name,
		Description: in.Description,
		OwnerID:     userID,
		Items:       []*models.Item{},
		Permissions: models.DefaultPermissions(),
		Settings:    models.DefaultSettings(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e := s.engine(b)

	var tpl *models.Template
	switch {
	case in.TemplateID != "":
		t, err := s.templates.Get(in.TemplateID)
		if err != nil {
			return nil, err
		}
		tpl = &t
	case in.BusinessApp != "":
		t, err := s.templates.ByBusinessApp(in.BusinessApp)
		if err != nil {
			return nil, err
		}
		tpl = &t
	}
	if tpl != nil {
		e.ApplyTemplate(*tpl)
	} else {
		b.Columns = defaultColumns()
		v := flexiboard.DefaultView(s.newID(), b.Columns)
		b.Views = []models.View{v}
		b.ActiveViewID = v.ID
	}

	if err := s.repo.CreateBoard(b); err != nil {
		return nil, err
	}
	act := s.activity(b, models.ActivityItemCreated, userID, "", fmt.Sprintf("Board %q created", b.Name),
		map[string]any{"template": b.Template})
	s.persistEffects(b, flexiboard.Result{Activities: []models.Activity{act}})
	s.publish("board.created", b.ID, "")
	tag, _ := ETag(b)
	return &BoardDetail{Board: b, ETag: tag}, nil
}

// GetBoard returns a board with its ETag.
func (s *Service) GetBoard(_ context.Context, userID, id string) (*BoardDetail, error) {
	var out *BoardDetail
	err := s.read(id, userID, func(e *flexiboard.Engine) error {
		tag, err := ETag(e.Board())
		if err != nil {
			return err
		}
		out = &BoardDetail{Board: e.Board(), ETag: tag}
		return nil
	})
	return out, err
}

// ListBoards returns the board summaries of a workspace.
func (s *Service) ListBoards(ctx context.Context, userID, workspaceID string) ([]models.BoardSummary, error) {
	if _, err := s.GetWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.repo.ListBoards(workspaceID)
}

// UpdateBoard edits board-level fields.
func (s *Service) UpdateBoard(ctx context.Context, userID, id, ifMatch string, p flexiboard.BoardPatch) (*BoardDetail, error) {
	if p.FolderID != nil && *p.FolderID != "" {
		if _, err := s.repo.GetFolder(*p.FolderID); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, id, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if !e.Board().Permissions.CanEdit {
			return change{}, fmt.Errorf("board %s is read-only: %w", id, apperr.ErrForbidden)
		}
		e.UpdateBoard(p)
		return change{kind: "board.updated"}, nil
	})
}

// DeleteBoard removes a board.
func (s *Service) DeleteBoard(_ context.Context, userID, id string) error {
	unlock := s.lock(id)
	defer unlock()
	b, err := s.repo.GetBoard(id)
	if err != nil {
		return err
	}
	if err := s.checkAccess(b, userID); err != nil {
		return err
	}
	if !b.Permissions.CanDelete {
		return fmt.Errorf("board %s: %w", id, apperr.ErrForbidden)
	}
	if err := s.repo.DeleteBoard(id); err != nil {
		return err
	}
	s.forget(id)
	s.purgeAttachments(id)
	s.publish("board.deleted", id, "")
	return nil
}

// DuplicateBoard copies a board into the same workspace and folder.
func (s *Service) DuplicateBoard(ctx context.Context, userID, id, name string, opts flexiboard.DuplicateOptions) (*BoardDetail, error) {
	var dup *models.Board
	err := s.read(id, userID, func(e *flexiboard.Engine) error {
		if !e.Board().Permissions.CanDuplicate {
			return fmt.Errorf("board %s: %w", id, apperr.ErrForbidden)
		}
		if name == "" {
			name = e.Board().Name + " (copy)"
		}
		dup = e.Duplicate(name, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if userID != "" {
		dup.OwnerID = userID
	}
	if err := s.repo.CreateBoard(dup); err != nil {
		return nil, err
	}
	s.publish("board.created", dup.ID, "")
	tag, _ := ETag(dup)
	return &BoardDetail{Board: dup, ETag: tag}, nil
}

// SaveAsTemplate snapshots a board into the template registry.
func (s *Service) SaveAsTemplate(_ context.Context, userID, id string, opts flexiboard.TemplateOptions) (*models.Template, error) {
	var tpl models.Template
	err := s.read(id, userID, func(e *flexiboard.Engine) error {
		if opts.ID == "" {
			opts.ID = s.newID()
		}
		tpl = e.Template(opts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.templates.Register(tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// MorphBoard reshapes a board into a template, keeping its identity.
func (s *Service) MorphBoard(ctx context.Context, userID, id, templateID, ifMatch string, opts flexiboard.MorphOptions) (*BoardDetail, error) {
	tpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if !e.Board().Permissions.CanEdit {
			return change{}, fmt.Errorf("board %s is read-only: %w", id, apperr.ErrForbidden)
		}
		if err := e.Morph(tpl, opts); err != nil {
			return change{}, err
		}
		act := s.activity(e.Board(), models.ActivityColumnUpdated, userID, "",
			fmt.Sprintf("Board morphed into %q", tpl.Name), map[string]any{"template": tpl.ID})
		return change{kind: "board.updated", res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
}
