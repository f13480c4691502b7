package boardservice

import (
	"context"
	"fmt"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// AddColumn appends a column to a board.
func (s *Service) AddColumn(ctx context.Context, userID, boardID, ifMatch string, c models.Column) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if err := s.checkColumnRefs(e.Board(), c); err != nil {
			return change{}, err
		}
		col, err := e.AddColumn(c)
		if err != nil {
			return change{}, err
		}
		act := s.activity(e.Board(), models.ActivityColumnAdded, userID, "",
			fmt.Sprintf("Column %q added", col.Title), map[string]any{"column_id": col.ID, "type": col.Type})
		return change{kind: "column.added", res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
}

// UpdateColumn replaces a column definition.
func (s *Service) UpdateColumn(ctx context.Context, userID, boardID, columnID, ifMatch string, c models.Column) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if err := s.checkColumnRefs(e.Board(), c); err != nil {
			return change{}, err
		}
		col, err := e.UpdateColumn(columnID, c)
		if err != nil {
			return change{}, err
		}
		act := s.activity(e.Board(), models.ActivityColumnUpdated, userID, "",
			fmt.Sprintf("Column %q updated", col.Title), map[string]any{"column_id": col.ID})
		return change{kind: "column.updated", res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
}

// DeleteColumn removes a column and its cells.
func (s *Service) DeleteColumn(ctx context.Context, userID, boardID, columnID, ifMatch string) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if !e.RemoveColumn(columnID) {
			return change{}, fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
		}
		return change{kind: "column.deleted"}, nil
	})
}

// ReorderColumns sets the column order.
func (s *Service) ReorderColumns(ctx context.Context, userID, boardID, ifMatch string, ids []string) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		e.ReorderColumns(ids)
		return change{kind: "column.updated"}, nil
	})
}

// checkColumnRefs requires boards referenced by lookup and connect-boards
// columns to exist.
func (s *Service) checkColumnRefs(b *models.Board, c models.Column) error {
	var ref string
	switch {
	case c.Lookup != nil:
		ref = c.Lookup.SourceBoard
	case c.ConnectBoards != nil:
		ref = c.ConnectBoards.LinkedBoard
	}
	if ref == "" || ref == b.ID {
		return nil
	}
	other, err := s.repo.GetBoard(ref)
	if err != nil {
		return fmt.Errorf("column %q references board %s: %w", c.Title, ref, err)
	}
	if other.WorkspaceID != b.WorkspaceID {
		return fmt.Errorf("column %q references a board in another workspace: %w", c.Title, apperr.ErrInvalid)
	}
	return nil
}

// LookupOptions lists the values a lookup column can link to.
func (s *Service) LookupOptions(_ context.Context, userID, boardID, columnID string) ([]flexiboard.LookupOption, error) {
	var out []flexiboard.LookupOption
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		c := e.Board().Column(columnID)
		if c == nil {
			return fmt.Errorf("column %s: %w", columnID, apperr.ErrNotFound)
		}
		out = nonNilSlice(e.LookupOptions(c))
		return nil
	})
	return out, err
}
