package boardservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// ListActivities returns a board's audit trail, newest first. itemID
// narrows it to one item.
func (s *Service) ListActivities(_ context.Context, userID, boardID, itemID string, limit int) ([]models.Activity, error) {
	if err := s.read(boardID, userID, func(*flexiboard.Engine) error { return nil }); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(boardID, itemID, limit)
}

// ListNotifications returns the acting user's notifications.
func (s *Service) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if userID == "" {
		return []models.Notification{}, nil
	}
	return s.repo.ListNotifications(userID, unreadOnly, limit)
}

// MarkNotificationRead flags one of the user's notifications as read.
func (s *Service) MarkNotificationRead(_ context.Context, userID, id string) error {
	return s.repo.MarkNotificationRead(id, userID)
}

var mentionRe = regexp.MustCompile(`@([\w.-]+)`)

// PostUpdate records a comment on an item. Workspace members mentioned as
// @user are notified.
func (s *Service) PostUpdate(ctx context.Context, userID, boardID, itemID, text string) (*models.Activity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("update text: %w", apperr.ErrInvalid)
	}
	var act models.Activity
	_, err := s.mutate(ctx, boardID, userID, "", func(e *flexiboard.Engine) (change, error) {
		b := e.Board()
		if !b.Settings.AllowComments || !b.Permissions.CanComment {
			return change{}, fmt.Errorf("comments on board %s: %w", boardID, apperr.ErrForbidden)
		}
		it := b.Item(itemID)
		if it == nil {
			return change{}, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		act = s.activity(b, models.ActivityUpdatePosted, userID, itemID, text, nil)
		res := flexiboard.Result{Activities: []models.Activity{act}}
		if b.Settings.EnableNotifications {
			ws, err := s.repo.GetWorkspace(b.WorkspaceID)
			if err != nil {
				return change{}, err
			}
			seen := map[string]bool{userID: true}
			for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
				who := m[1]
				if seen[who] || !ws.HasMember(who) {
					continue
				}
				seen[who] = true
				res.Notifications = append(res.Notifications, models.Notification{
					ID:        s.newID(),
					UserID:    who,
					BoardID:   b.ID,
					ItemID:    itemID,
					Type:      models.NotifyMention,
					Title:     "You were mentioned",
					Message:   text,
					CreatedAt: s.now(),
				})
				res.Activities = append(res.Activities, s.activity(b, models.ActivityUserMentioned, userID, itemID,
					"Mentioned "+who, map[string]any{"user_id": who}))
			}
		}
		return change{kind: "item.updated", itemID: itemID, res: res}, nil
	})
	if err != nil {
		return nil, err
	}
	return &act, nil
}

// ListTemplates returns every available template.
func (s *Service) ListTemplates() []models.Template {
	return s.templates.List()
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(id string) (models.Template, error) {
	return s.templates.Get(id)
}
