package flexiboard

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/models"
)

// AddItemWithAutomation adds an item and fires item-created automations.
func (e *Engine) AddItemWithAutomation(in NewItem, userID string) (*models.Item, Result) {
	if in.CreatedBy == "" {
		in.CreatedBy = userID
	}
	item := e.AddItem(in)
	res := e.Automations().Execute(models.Event{
		Type:   models.EventItemCreated,
		ItemID: item.ID,
		UserID: userID,
	})
	return item, res
}

// UpdateItemWithAutomation applies patch and fires one item-updated event per
// changed data key, in key order, then for changed status and priority
// fields not already covered by a data key.
func (e *Engine) UpdateItemWithAutomation(id string, p ItemPatch, userID string) (*models.Item, Result, error) {
	old := e.board.Item(id)
	if old == nil {
		return nil, Result{}, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	oldData := cloneData(old.Data)
	oldStatus, oldPriority := old.Status, old.Priority

	item, err := e.UpdateItem(id, p)
	if err != nil {
		return nil, Result{}, err
	}

	var events []models.Event
	for _, key := range slices.Sorted(maps.Keys(p.Data)) {
		nv := item.Data[key]
		ov := oldData[key]
		if valuesEqual(ov, nv) {
			continue
		}
		events = append(events, models.Event{
			Type: models.EventItemUpdated, ItemID: id, Column: key,
			OldValue: ov, NewValue: nv, UserID: userID,
		})
	}
	if _, ok := p.Data["status"]; !ok && item.Status != oldStatus {
		events = append(events, models.Event{
			Type: models.EventItemUpdated, ItemID: id, Column: "status",
			OldValue: oldStatus, NewValue: item.Status, UserID: userID,
		})
	}
	if _, ok := p.Data["priority"]; !ok && item.Priority != oldPriority {
		events = append(events, models.Event{
			Type: models.EventItemUpdated, ItemID: id, Column: "priority",
			OldValue: oldPriority, NewValue: item.Priority, UserID: userID,
		})
	}

	var res Result
	for _, ev := range events {
		res.Merge(e.Automations().Execute(ev))
	}
	return item, res, nil
}

// MoveItemWithAutomation moves an item and fires item-moved automations.
func (e *Engine) MoveItemWithAutomation(id string, position int, groupID, userID string) (Result, error) {
	item := e.board.Item(id)
	if item == nil {
		return Result{}, fmt.Errorf("item %s: %w", id, apperr.ErrNotFound)
	}
	oldPos, oldGroup := item.Position, item.GroupID
	if err := e.MoveItem(id, position, groupID); err != nil {
		return Result{}, err
	}
	return e.Automations().Execute(models.Event{
		Type:     models.EventItemMoved,
		ItemID:   id,
		Column:   "position",
		OldValue: map[string]any{"position": oldPos, "group_id": oldGroup},
		NewValue: map[string]any{"position": item.Position, "group_id": item.GroupID},
		UserID:   userID,
	}), nil
}

// ExecuteBulk applies op to each item in turn. Failures are collected per
// item and do not stop the batch.
func (e *Engine) ExecuteBulk(op models.BulkOperation, userID string) (models.BulkResult, Result, error) {
	var res Result
	out := models.BulkResult{Errors: []models.BulkError{}}
	if !e.board.Settings.AllowBulkOperations {
		return out, res, fmt.Errorf("bulk operations are disabled on this board: %w", apperr.ErrForbidden)
	}
	switch op.Type {
	case models.BulkUpdate, models.BulkDelete, models.BulkMove, models.BulkDuplicate, models.BulkArchive:
	default:
		return out, res, fmt.Errorf("bulk operation %q: %w", op.Type, apperr.ErrInvalid)
	}

	for _, id := range op.ItemIDs {
		r, err := e.bulkOne(op, id, userID)
		if err != nil {
			out.FailedItems++
			out.Errors = append(out.Errors, models.BulkError{ItemID: id, Error: err.Error()})
			continue
		}
		res.Merge(r)
		out.ProcessedItems++
	}
	out.Success = out.FailedItems == 0
	return out, res, nil
}

var errItemMissing = errors.New("item not found")

func (e *Engine) bulkOne(op models.BulkOperation, id, userID string) (Result, error) {
	item := e.board.Item(id)
	if item == nil {
		return Result{}, errItemMissing
	}
	switch op.Type {
	case models.BulkUpdate:
		if len(op.Data) == 0 {
			return Result{}, nil
		}
		_, r, err := e.UpdateItemWithAutomation(id, ItemPatch{Data: op.Data}, userID)
		return r, err
	case models.BulkDelete:
		e.RemoveItem(id)
	case models.BulkMove:
		if op.TargetGroupID == "" {
			return Result{}, fmt.Errorf("target group is required: %w", apperr.ErrInvalid)
		}
		return e.MoveItemWithAutomation(id, item.Position, op.TargetGroupID, userID)
	case models.BulkDuplicate:
		_, r := e.AddItemWithAutomation(NewItem{
			Data:      cloneData(item.Data),
			Status:    item.Status,
			Priority:  item.Priority,
			Assignees: slices.Clone(item.Assignees),
			Tags:      slices.Clone(item.Tags),
			GroupID:   item.GroupID,
			ParentID:  item.ParentID,
			CreatedBy: userID,
		}, userID)
		return r, nil
	case models.BulkArchive:
		e.ArchiveItem(id)
	}
	return Result{}, nil
}
