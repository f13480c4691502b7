package boardservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

func requireAutomations(b *models.Board) error {
	if !b.Permissions.CanManageAutomations {
		return fmt.Errorf("automations on board %s: %w", b.ID, apperr.ErrForbidden)
	}
	return nil
}

// checkAutomationRefs requires add-to-board targets to be existing boards of
// the same workspace.
func (s *Service) checkAutomationRefs(b *models.Board, a models.Automation) error {
	for _, act := range a.Actions {
		if act.Type != models.ActionAddToBoard {
			continue
		}
		ref := flexiboard.AddToBoardTarget(act)
		if ref == "" || ref == b.ID {
			continue
		}
		other, err := s.repo.GetBoard(ref)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("automation %q targets unknown board %s: %w", a.Name, ref, apperr.ErrInvalid)
			}
			return err
		}
		if other.WorkspaceID != b.WorkspaceID {
			return fmt.Errorf("automation %q targets a board in another workspace: %w", a.Name, apperr.ErrInvalid)
		}
	}
	return nil
}

// ListAutomations returns a board's automations.
func (s *Service) ListAutomations(_ context.Context, userID, boardID string) ([]models.Automation, error) {
	var out []models.Automation
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = nonNilSlice(e.Automations().List())
		return nil
	})
	return out, err
}

// CreateAutomation adds an automation to a board.
func (s *Service) CreateAutomation(ctx context.Context, userID, boardID string, a models.Automation) (*models.Automation, error) {
	var out models.Automation
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireAutomations(e.Board()); err != nil {
			return change{}, err
		}
		if err := s.checkAutomationRefs(e.Board(), a); err != nil {
			return change{}, err
		}
		a.CreatedBy = userID
		got, err := e.Automations().Add(a)
		if err != nil {
			return change{}, err
		}
		out = *got
		return change{kind: "automation.updated"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAutomation replaces an automation's definition.
func (s *Service) UpdateAutomation(ctx context.Context, userID, boardID, id string, a models.Automation) (*models.Automation, error) {
	var out models.Automation
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireAutomations(e.Board()); err != nil {
			return change{}, err
		}
		if err := s.checkAutomationRefs(e.Board(), a); err != nil {
			return change{}, err
		}
		got, err := e.Automations().Update(id, a)
		if err != nil {
			return change{}, err
		}
		out = *got
		return change{kind: "automation.updated"}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAutomationEnabled toggles an automation.
func (s *Service) SetAutomationEnabled(ctx context.Context, userID, boardID, id string, enabled bool) error {
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireAutomations(e.Board()); err != nil {
			return change{}, err
		}
		if !e.Automations().SetEnabled(id, enabled) {
			return change{}, fmt.Errorf("automation %s: %w", id, apperr.ErrNotFound)
		}
		return change{kind: "automation.updated"}, nil
	})
	return err
}

// DeleteAutomation removes an automation.
func (s *Service) DeleteAutomation(ctx context.Context, userID, boardID, id string) error {
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireAutomations(e.Board()); err != nil {
			return change{}, err
		}
		if !e.Automations().Delete(id) {
			return change{}, fmt.Errorf("automation %s: %w", id, apperr.ErrNotFound)
		}
		return change{kind: "automation.updated"}, nil
	})
	return err
}

// TestAutomation dry-runs an automation against ev. Nothing is saved.
func (s *Service) TestAutomation(_ context.Context, userID, boardID, id string, ev models.Event) (*flexiboard.TestReport, error) {
	var out flexiboard.TestReport
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		if ev.UserID == "" {
			ev.UserID = userID
		}
		rep, err := e.Automations().Test(id, ev)
		out = rep
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunAutomation fires one automation for ev now, as if its trigger matched.
// Its conditions still decide whether the actions run.
func (s *Service) RunAutomation(ctx context.Context, userID, boardID, id string, ev models.Event) (*flexiboard.Result, error) {
	var out flexiboard.Result
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireAutomations(e.Board()); err != nil {
			return change{}, err
		}
		if ev.UserID == "" {
			ev.UserID = userID
		}
		res, err := e.Automations().Fire(id, ev)
		if err != nil {
			return change{}, err
		}
		out = res
		return change{kind: "board.updated", itemID: ev.ItemID, res: out}, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FireScheduled runs every every-time-period automation of a board that has
// a due instant at now. It returns the number of automations that ran.
func (s *Service) FireScheduled(ctx context.Context, boardID string, now time.Time) (int, error) {
	var due bool
	err := s.read(boardID, "", func(e *flexiboard.Engine) error {
		for _, a := range e.Automations().List() {
			if a.Enabled && flexiboard.ScheduleDue(a, now) {
				due = true
			}
		}
		return nil
	})
	if err != nil || !due {
		return 0, err
	}

	ran := 0
	_, err = s.mutate(ctx, boardID, "", "", func(e *flexiboard.Engine) (change, error) {
		var res flexiboard.Result
		autos := e.Automations()
		for _, a := range autos.List() {
			if !a.Enabled || !flexiboard.ScheduleDue(a, now) {
				continue
			}
			r := autos.RunOne(a.ID, models.Event{Type: models.EventScheduled})
			if r.Fired() {
				ran++
			}
			// A rule that failed or was skipped waits for its next slot.
			if got := autos.Get(a.ID); got != nil && flexiboard.ScheduleDue(*got, now) {
				t := now
				got.LastRun = &t
			}
			res.Merge(r)
		}
		return change{kind: "board.updated", res: res}, nil
	})
	return ran, err
}

// FireDateArrivals runs when-date-arrives automations for item dates that
// have arrived. Each automation fires once per item and date.
func (s *Service) FireDateArrivals(ctx context.Context, boardID string, now time.Time) (int, error) {
	var pending bool
	err := s.read(boardID, "", func(e *flexiboard.Engine) error {
		for _, a := range e.Automations().List() {
			if a.Enabled && len(e.ArrivedDates(a, now)) > 0 {
				pending = true
			}
		}
		return nil
	})
	if err != nil || !pending {
		return 0, err
	}

	type fired struct{ automationID, itemID, date string }
	var marks []fired
	ran := 0
	_, err = s.mutate(ctx, boardID, "", "", func(e *flexiboard.Engine) (change, error) {
		var res flexiboard.Result
		autos := e.Automations()
		for _, a := range autos.List() {
			if !a.Enabled {
				continue
			}
			for _, hit := range e.ArrivedDates(a, now) {
				done, err := s.repo.DateTriggered(a.ID, hit.ItemID, hit.Date)
				if err != nil {
					return change{}, err
				}
				if done {
					continue
				}
				marks = append(marks, fired{a.ID, hit.ItemID, hit.Date})
				r := autos.RunOne(a.ID, models.Event{
					Type:     models.EventDateReached,
					ItemID:   hit.ItemID,
					Column:   hit.Column,
					NewValue: hit.Date,
				})
				if r.Fired() {
					ran++
				}
				res.Merge(r)
			}
		}
		return change{kind: "board.updated", res: res}, nil
	})
	if err != nil {
		return 0, err
	}
	// Dates are marked only once the board saved, so a failed pass retries.
	for _, m := range marks {
		if _, err := s.repo.MarkDateTrigger(m.automationID, m.itemID, m.date, now); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

// RunDueDeferred executes the delayed actions due at now. Actions whose
// board is gone are dropped.
func (s *Service) RunDueDeferred(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.DueDeferred(now, 100)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, d := range due {
		_, err := s.mutate(ctx, d.BoardID, "", "", func(e *flexiboard.Engine) (change, error) {
			res, err := e.Automations().RunDeferred(d)
			if err != nil {
				// The failure is recorded as an activity; the board still saves.
				s.logger.Warn("boardservice: deferred action failed",
					slog.String("board_id", d.BoardID),
					slog.String("automation_id", d.AutomationID),
					slog.String("error", err.Error()))
				s.recordDeferred("failed")
			} else {
				s.recordDeferred("executed")
				ran++
			}
			return change{kind: "automation.triggered", itemID: d.Event.ItemID, res: res}, nil
		})
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return ran, err
		}
		if err := s.repo.DeleteDeferred(d.ID); err != nil {
			return ran, err
		}
	}
	return ran, nil
}

func (s *Service) recordDeferred(stage string) {
	if s.metrics != nil {
		s.metrics.RecordDeferred(stage, 1)
	}
}

// BoardIDs lists every board, for sweeps that visit all of them.
func (s *Service) BoardIDs() ([]string, error) {
	return s.repo.BoardIDs()
}
