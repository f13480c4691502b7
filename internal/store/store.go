package store

import (
	"time"

	"github.com/starford/flexiboard/internal/models"
)

// Repository defines the persistence operations the service layer needs.
// Consumers should depend on this interface rather than the concrete *DB.
type Repository interface {
	CreateWorkspace(ws models.Workspace) error
	GetWorkspace(id string) (*models.Workspace, error)
	ListWorkspaces(userID string) ([]models.Workspace, error)
	UpdateWorkspace(ws models.Workspace) error
	DeleteWorkspace(id string) error

	CreateFolder(f models.Folder) error
	GetFolder(id string) (*models.Folder, error)
	ListFolders(workspaceID string) ([]models.Folder, error)
	UpdateFolder(f models.Folder) error
	DeleteFolder(id string) error

	CreateBoard(b *models.Board) error
	GetBoard(id string) (*models.Board, error)
	SaveBoard(b *models.Board, expectedVersion int64) error
	DeleteBoard(id string) error
	ListBoards(workspaceID string) ([]models.BoardSummary, error)
	BoardIDs() ([]string, error)
	SearchItems(query, workspaceID string, limit int) ([]SearchHit, error)

	AddActivities(as []models.Activity) error
	ListActivities(boardID, itemID string, limit int) ([]models.Activity, error)
	AddNotifications(ns []models.Notification) error
	ListNotifications(userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(id, userID string) error

	AddDeferred(ds []models.DeferredAction) error
	DueDeferred(now time.Time, limit int) ([]models.DeferredAction, error)
	DeleteDeferred(id string) error
	MarkDateTrigger(automationID, itemID, date string, at time.Time) (bool, error)
	DateTriggered(automationID, itemID, date string) (bool, error)

	Ping() error
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)

// SearchHit is one item search result.
type SearchHit struct {
	BoardID string `json:"board_id"`
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
