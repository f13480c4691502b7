package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/flexiboard/internal/models"
)

// AddActivities appends entries to the audit trail.
func (db *DB) AddActivities(as []models.Activity) error {
	if len(as) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO activities (id, board_id, item_id, type, user_id, message, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare activity insert: %w", err)
	}
	defer stmt.Close()
	for _, a := range as {
		data, _ := json.Marshal(a.Data)
		if _, err := stmt.Exec(a.ID, a.BoardID, a.ItemID, a.Type, a.UserID, a.Message, string(data), a.Timestamp.UTC()); err != nil {
			return fmt.Errorf("store: insert activity: %w", err)
		}
	}
	return tx.Commit()
}

// ListActivities returns a board's newest activities first. A non-empty
// itemID narrows the trail to one item.
func (db *DB) ListActivities(boardID, itemID string, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, board_id, item_id, type, user_id, message, data, created_at
		FROM activities
		WHERE board_id = ? AND (? = '' OR item_id = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, boardID, itemID, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list activities: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var data string
		if err := rows.Scan(&a.ID, &a.BoardID, &a.ItemID, &a.Type, &a.UserID, &a.Message, &data, &a.Timestamp); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(data), &a.Data)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddNotifications stores notifications for their recipients.
func (db *DB) AddNotifications(ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO notifications (id, user_id, board_id, item_id, type, title, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare notification insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range ns {
		if _, err := stmt.Exec(n.ID, n.UserID, n.BoardID, n.ItemID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("store: insert notification: %w", err)
		}
	}
	return tx.Commit()
}

// ListNotifications returns a user's notifications, newest first.
func (db *DB) ListNotifications(userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, user_id, board_id, item_id, type, title, message, read, created_at
		FROM notifications
		WHERE user_id = ? AND (? = 0 OR read = 0)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.BoardID, &n.ItemID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one of userID's notifications as read.
func (db *DB) MarkNotificationRead(id, userID string) error {
	res, err := db.conn.Exec(`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: mark notification: %w", err)
	}
	return mustAffect(res, "notification", id)
}

// AddDeferred queues delayed automation actions.
func (db *DB) AddDeferred(ds []models.DeferredAction) error {
	if len(ds) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range ds {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("store: encode deferred: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO deferred_actions (id, board_id, automation_id, payload, run_at)
			VALUES (?, ?, ?, ?, ?)
		`, d.ID, d.BoardID, d.AutomationID, string(payload), d.RunAt.Unix()); err != nil {
			return fmt.Errorf("store: insert deferred: %w", err)
		}
	}
	return tx.Commit()
}

// DueDeferred returns queued actions whose run time is at or before now,
// oldest first.
func (db *DB) DueDeferred(now time.Time, limit int) ([]models.DeferredAction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT payload FROM deferred_actions WHERE run_at <= ? ORDER BY run_at, id LIMIT ?
	`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("store: due deferred: %w", err)
	}
	defer rows.Close()

	var out []models.DeferredAction
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d models.DeferredAction
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("store: decode deferred: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDeferred removes a queued action once it ran.
func (db *DB) DeleteDeferred(id string) error {
	_, err := db.conn.Exec(`DELETE FROM deferred_actions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete deferred: %w", err)
	}
	return nil
}

// MarkDateTrigger records that a date-arrives automation fired for an item's
// date. It reports false when that date already fired.
func (db *DB) MarkDateTrigger(automationID, itemID, date string, at time.Time) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT OR IGNORE INTO date_triggers (automation_id, item_id, date, fired_at) VALUES (?, ?, ?, ?)
	`, automationID, itemID, date, at.UTC())
	if err != nil {
		return false, fmt.Errorf("store: mark date trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DateTriggered reports whether MarkDateTrigger already recorded the date.
func (db *DB) DateTriggered(automationID, itemID, date string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM date_triggers WHERE automation_id = ? AND item_id = ? AND date = ?
	`, automationID, itemID, date).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check date trigger: %w", err)
	}
	return n > 0, nil
}
