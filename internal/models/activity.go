package models

import "time"

// Activity types.
const (
	ActivityItemCreated         = "item-created"
	ActivityItemUpdated         = "item-updated"
	ActivityItemDeleted         = "item-deleted"
	ActivityItemMoved           = "item-moved"
	ActivityColumnAdded         = "column-added"
	ActivityColumnUpdated       = "column-updated"
	ActivityAutomationTriggered = "automation-triggered"
	ActivityUserMentioned       = "user-mentioned"
	ActivityStatusChanged       = "status-changed"
	ActivityFileUploaded        = "file-uploaded"
	ActivityItemArchived        = "item-archived"
	ActivityUpdatePosted        = "update-posted"
)

// Activity is an entry in a board's audit trail.
type Activity struct {
	ID        string         `json:"id"`
	BoardID   string         `json:"board_id"`
	ItemID    string         `json:"item_id,omitempty"`
	Type      string         `json:"type"`
	UserID    string         `json:"user_id"`
	UserName  string         `json:"user_name,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// Notification types.
const (
	NotifyMention      = "mention"
	NotifyAssignment   = "assignment"
	NotifyDeadline     = "deadline"
	NotifyStatusChange = "status-change"
	NotifyAutomation   = "automation"
	NotifyComment      = "comment"
	NotifyEmail        = "email"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	BoardID   string    `json:"board_id"`
	ItemID    string    `json:"item_id,omitempty"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Bulk operation types.
const (
	BulkUpdate    = "update"
	BulkDelete    = "delete"
	BulkMove      = "move"
	BulkDuplicate = "duplicate"
	BulkArchive   = "archive"
)

// BulkOperation applies one change to many items.
type BulkOperation struct {
	Type          string         `json:"type"`
	ItemIDs       []string       `json:"item_ids"`
	Data          map[string]any `json:"data,omitempty"`
	TargetGroupID string         `json:"target_group_id,omitempty"`
}

// BulkError records a per-item failure.
type BulkError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// BulkResult summarises a bulk operation.
type BulkResult struct {
	Success        bool        `json:"success"`
	ProcessedItems int         `json:"processed_items"`
	FailedItems    int         `json:"failed_items"`
	Errors         []BulkError `json:"errors,omitempty"`
}
