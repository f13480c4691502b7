package boardservice

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
	"github.com/starford/flexiboard/internal/store"
)

// ItemResult is the outcome of an item mutation.
type ItemResult struct {
	*BoardDetail
	Item        *models.Item     `json:"item,omitempty"`
	Automations []flexiboard.Run `json:"automations"`
}

func itemResult(d *BoardDetail, itemID string, res flexiboard.Result) *ItemResult {
	out := &ItemResult{BoardDetail: d, Automations: nonNilSlice(res.Runs)}
	if d != nil {
		out.Item = d.Board.Item(itemID)
	}
	return out
}

// validateCells checks user-supplied cell values against column rules.
// Required columns are only enforced when creating.
func validateCells(b *models.Board, data map[string]any, creating bool) error {
	errs := validation.Errors{}
	for i := range b.Columns {
		c := &b.Columns[i]
		v, present := data[c.ID]
		var rules []validation.Rule
		required := c.Required || (c.Validation != nil && c.Validation.Required)
		if required && (creating || present) {
			rules = append(rules, validation.Required)
		}
		if !present {
			if len(rules) > 0 {
				if err := validation.Validate(nil, rules...); err != nil {
					errs[c.ID] = err
				}
			}
			continue
		}
		if c.Validation != nil {
			if n, ok := v.(float64); ok {
				if c.Validation.Min != nil {
					rules = append(rules, validation.Min(*c.Validation.Min))
				}
				if c.Validation.Max != nil {
					rules = append(rules, validation.Max(*c.Validation.Max))
				}
				v = n
			}
			if s, ok := v.(string); ok && c.Validation.Pattern != "" {
				re, err := regexp.Compile(c.Validation.Pattern)
				if err != nil {
					errs[c.ID] = fmt.Errorf("bad pattern: %v", err)
					continue
				}
				rules = append(rules, validation.Match(re))
				v = s
			}
		}
		if err := validation.Validate(v, rules...); err != nil {
			errs[c.ID] = err
		}
	}
	if err := errs.Filter(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	return nil
}

func requireEdit(b *models.Board) error {
	if !b.Permissions.CanEdit {
		return fmt.Errorf("board %s is read-only: %w", b.ID, apperr.ErrForbidden)
	}
	return nil
}

// CreateItem adds an item and runs item-created automations.
func (s *Service) CreateItem(ctx context.Context, userID, boardID, ifMatch string, in flexiboard.NewItem) (*ItemResult, error) {
	var (
		itemID string
		runs   flexiboard.Result
	)
	d, err := s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if err := requireEdit(b); err != nil {
			return change{}, err
		}
		if err := validateCells(b, in.Data, true); err != nil {
			return change{}, err
		}
		if in.GroupID != "" && b.Group(in.GroupID) == nil {
			return change{}, fmt.Errorf("group %s: %w", in.GroupID, apperr.ErrNotFound)
		}
		if in.CreatedBy == "" {
			in.CreatedBy = userID
		}
		it, res := e.AddItemWithAutomation(in, userID)
		itemID, runs = it.ID, res
		res.Activities = append([]models.Activity{s.activity(b, models.ActivityItemCreated, userID, it.ID, "Item created", nil)}, res.Activities...)
		return change{kind: "item.created", itemID: it.ID, res: res}, nil
	})
	if err != nil {
		return nil, err
	}
	return itemResult(d, itemID, runs), nil
}

// UpdateItem patches an item and runs update automations per changed cell.
func (s *Service) UpdateItem(ctx context.Context, userID, boardID, itemID, ifMatch string, p flexiboard.ItemPatch) (*ItemResult, error) {
	var runs flexiboard.Result
	d, err := s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if err := requireEdit(b); err != nil {
			return change{}, err
		}
		if err := validateCells(b, p.Data, false); err != nil {
			return change{}, err
		}
		if p.GroupID != nil && *p.GroupID != "" && b.Group(*p.GroupID) == nil {
			return change{}, fmt.Errorf("group %s: %w", *p.GroupID, apperr.ErrNotFound)
		}
		var oldStatus string
		if it := b.Item(itemID); it != nil {
			oldStatus = it.Status
		}
		it, res, err := e.UpdateItemWithAutomation(itemID, p, userID)
		if err != nil {
			return change{}, err
		}
		runs = res
		acts := []models.Activity{s.activity(b, models.ActivityItemUpdated, userID, itemID, "Item updated", map[string]any{"data": p.Data})}
		if it.Status != oldStatus {
			acts = append(acts, s.activity(b, models.ActivityStatusChanged, userID, itemID,
				fmt.Sprintf("Status changed from %q to %q", oldStatus, it.Status),
				map[string]any{"old": oldStatus, "new": it.Status}))
		}
		res.Activities = append(acts, res.Activities...)
		return change{kind: "item.updated", itemID: itemID, res: res}, nil
	})
	if err != nil {
		return nil, err
	}
	return itemResult(d, itemID, runs), nil
}

// MoveItem repositions an item, optionally into another group.
func (s *Service) MoveItem(ctx context.Context, userID, boardID, itemID, ifMatch string, position int, groupID string) (*ItemResult, error) {
	var runs flexiboard.Result
	d, err := s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if err := requireEdit(b); err != nil {
			return change{}, err
		}
		res, err := e.MoveItemWithAutomation(itemID, position, groupID, userID)
		if err != nil {
			return change{}, err
		}
		runs = res
		act := s.activity(b, models.ActivityItemMoved, userID, itemID, "Item moved",
			map[string]any{"position": position, "group_id": groupID})
		res.Activities = append([]models.Activity{act}, res.Activities...)
		return change{kind: "item.moved", itemID: itemID, res: res}, nil
	})
	if err != nil {
		return nil, err
	}
	return itemResult(d, itemID, runs), nil
}

// DeleteItem removes an item.
func (s *Service) DeleteItem(ctx context.Context, userID, boardID, itemID, ifMatch string) (*BoardDetail, error) {
	d, err := s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if !e.RemoveItem(itemID) {
			return change{}, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		act := s.activity(e.Board(), models.ActivityItemDeleted, userID, itemID, "Item deleted", nil)
		return change{kind: "item.deleted", itemID: itemID, res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.purgeAttachments(path.Join(boardID, itemID))
	return d, nil
}

// ArchiveItem moves an item to the board's archive.
func (s *Service) ArchiveItem(ctx context.Context, userID, boardID, itemID, ifMatch string) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if !e.ArchiveItem(itemID) {
			return change{}, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		act := s.activity(e.Board(), models.ActivityItemArchived, userID, itemID, "Item archived", nil)
		return change{kind: "item.archived", itemID: itemID, res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
	})
}

// BulkResult is the outcome of a bulk operation.
type BulkResult struct {
	*BoardDetail
	Bulk        models.BulkResult `json:"bulk"`
	Automations []flexiboard.Run  `json:"automations"`
}

// Bulk applies one operation to many items in a single save.
func (s *Service) Bulk(ctx context.Context, userID, boardID, ifMatch string, op models.BulkOperation) (*BulkResult, error) {
	if len(op.ItemIDs) == 0 {
		return nil, fmt.Errorf("bulk: item_ids: %w", apperr.ErrInvalid)
	}
	var (
		out  models.BulkResult
		runs flexiboard.Result
	)
	d, err := s.mutate(ctx, boardID, userID, ifMatch, func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if op.Type == models.BulkUpdate {
			if err := validateCells(e.Board(), op.Data, false); err != nil {
				return change{}, err
			}
		}
		r, res, err := e.ExecuteBulk(op, userID)
		if err != nil {
			return change{}, err
		}
		out, runs = r, res
		act := s.activity(e.Board(), models.ActivityItemUpdated, userID, "",
			fmt.Sprintf("Bulk %s on %d items", op.Type, r.ProcessedItems),
			map[string]any{"type": op.Type, "processed": r.ProcessedItems, "failed": r.FailedItems})
		res.Activities = append([]models.Activity{act}, res.Activities...)
		return change{kind: "board.updated", res: res}, nil
	})
	if err != nil {
		return nil, err
	}
	return &BulkResult{BoardDetail: d, Bulk: out, Automations: nonNilSlice(runs.Runs)}, nil
}

// Connect links itemID to targetItemID through a connect-boards column.
func (s *Service) Connect(ctx context.Context, userID, boardID, columnID, itemID, targetItemID string, remove bool) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		var err error
		if remove {
			_, err = e.RemoveConnection(columnID, itemID, targetItemID)
		} else {
			_, err = e.AddConnection(columnID, itemID, targetItemID)
		}
		if err != nil {
			return change{}, err
		}
		return change{kind: "item.updated", itemID: itemID}, nil
	})
}

// SetTimeline sets the start and end of a timeline cell.
func (s *Service) SetTimeline(ctx context.Context, userID, boardID, columnID, itemID string, start, end *time.Time) (*BoardDetail, error) {
	return s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		if err := requireEdit(e.Board()); err != nil {
			return change{}, err
		}
		if err := e.SetTimeline(columnID, itemID, start, end); err != nil {
			return change{}, err
		}
		return change{kind: "item.updated", itemID: itemID}, nil
	})
}

// ItemView is an item with its computed column values.
type ItemView struct {
	*models.Item
	Computed map[string]any `json:"computed,omitempty"`
}

func viewItems(e *flexiboard.Engine, items []*models.Item) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, ItemView{Item: it, Computed: e.EvaluateItem(it)})
	}
	return out
}

// GetItem returns one item with its computed values.
func (s *Service) GetItem(_ context.Context, userID, boardID, itemID string) (*ItemView, error) {
	var out *ItemView
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		it := e.Board().Item(itemID)
		if it == nil {
			return fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		out = &ItemView{Item: it, Computed: e.EvaluateItem(it)}
		return nil
	})
	return out, err
}

// ListItems returns the live items after filters and sorts.
func (s *Service) ListItems(_ context.Context, userID, boardID string, filters []models.Filter, sorts []models.Sort) ([]ItemView, error) {
	var out []ItemView
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = viewItems(e, e.Items(filters, sorts))
		return nil
	})
	return out, err
}

// FilterItems applies an advanced filter to a board.
func (s *Service) FilterItems(_ context.Context, userID, boardID string, af flexiboard.AdvancedFilter) ([]ItemView, error) {
	var out []ItemView
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = viewItems(e, e.Filter(af))
		return nil
	})
	return out, err
}

// SearchBoard searches one board's items in memory.
func (s *Service) SearchBoard(_ context.Context, userID, boardID, query string) ([]ItemView, error) {
	var out []ItemView
	err := s.read(boardID, userID, func(e *flexiboard.Engine) error {
		out = viewItems(e, e.SearchItems(query))
		return nil
	})
	return out, err
}

// Search runs a full-text search over a workspace's items.
func (s *Service) Search(ctx context.Context, userID, workspaceID, query string, limit int) ([]store.SearchHit, error) {
	if query == "" {
		return []store.SearchHit{}, nil
	}
	if workspaceID != "" {
		if _, err := s.GetWorkspace(ctx, userID, workspaceID); err != nil {
			return nil, err
		}
	} else if userID != "" {
		return nil, fmt.Errorf("search: workspace_id: %w", apperr.ErrInvalid)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	hits, err := s.repo.SearchItems(query, workspaceID, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(hits), nil
}
