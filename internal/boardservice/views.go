package boardservice

import (
	"context"
	"fmt"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// AddView adds a saved view.
func (s *Service) AddView(ctx context.Context, userID, boardID, ifMatch string, v models.View) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := checkView(e.Board(), v); err != nil {
			return change{}, err
		}
		if _, err := e.AddView(v); err != nil {
			return change{}, err
		}
		return change{kind: "view.updated"}, nil
	})
}

// UpdateView replaces a saved view.
func (s *Service) UpdateView(ctx context.Context, userID, boardID, viewID, ifMatch string, v models.View) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := checkView(e.Board(), v); err != nil {
			return change{}, err
		}
		if _, err := e.UpdateView(viewID, v); err != nil {
			return change{}, err
		}
		return change{kind: "view.updated"}, nil
	})
}

// DeleteView removes a view. The last view of a board cannot be removed.
func (s *Service) DeleteView(ctx context.Context, userID, boardID, viewID, ifMatch string) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if e.Board().View(viewID) == nil {
			return change{}, fmt.Errorf("view %s: %w", viewID, apperr.ErrNotFound)
		}
		if !e.RemoveView(viewID) {
			return change{}, fmt.Errorf("cannot remove the last view: %w", apperr.ErrConflict)
		}
		return change{kind: "view.updated"}, nil
	})
}

// SetActiveView switches the board's active view.
func (s *Service) SetActiveView(ctx context.Context, userID, boardID, viewID string) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if !e.SetActiveView(viewID) {
			return change{}, fmt.Errorf("view %s: %w", viewID, apperr.ErrNotFound)
		}
		return change{kind: "view.updated"}, nil
	})
}

func checkView(b *models.Board, v models.View) error {
	if v.GroupBy != "" && b.ColumnByRef(v.GroupBy) == nil {
		return fmt.Errorf("view group_by: column %s: %w", v.GroupBy, apperr.ErrInvalid)
	}
	for _, f := range v.Filters {
		if b.ColumnByRef(f.Column) == nil && !builtinField(f.Column) {
			return fmt.Errorf("view filter: column %s: %w", f.Column, apperr.ErrInvalid)
		}
	}
	return nil
}

func builtinField(name string) bool {
	switch name {
	case "status", "priority", "assignees", "tags", "group_id", "created_at", "updated_at":
		return true
	}
	return false
}

// RenderView renders a board as viewType.
func (s *Service) RenderView(_ context.Context, userID, boardID string, viewType models.ViewType, opts flexiboard.RenderOptions) (any, error) {
	var out any
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		if viewType == "" {
			if v := e.ActiveView(); v != nil {
				viewType = v.Type
				if opts.ViewID == "" {
					opts.ViewID = v.ID
				}
			} else {
				viewType = models.ViewTable
			}
		}
		var err error
		out, err = e.Render(viewType, opts)
		return err
	})
	return out, err
}

// Analytics returns the analytics report of a board.
func (s *Service) Analytics(_ context.Context, userID, boardID string) (*flexiboard.Analytics, error) {
	var out flexiboard.Analytics
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = e.Analytics()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Statistics returns item counts by status and priority.
func (s *Service) Statistics(_ context.Context, userID, boardID string) (*flexiboard.Stats, error) {
	var out flexiboard.Stats
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = e.Statistics()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
