package api

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flexiboard/internal/boardservice"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
	"github.com/starford/flexiboard/internal/store"
)

// CreateBoardRequest is the request body for creating a board.
type CreateBoardRequest = boardservice.CreateBoardInput

// WorkspaceRequest is the request body for creating or updating a workspace.
type WorkspaceRequest = boardservice.WorkspaceInput

// FolderRequest is the request body for creating or updating a folder.
type FolderRequest = boardservice.FolderInput

// MoveItemRequest moves an item within the board.
type MoveItemRequest struct {
	Position int    `json:"position" example:"0"`
	GroupID  string `json:"group_id,omitempty" example:"topics"`
}

// Validate validates the request.
func (r MoveItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Position, validation.Min(0)),
	)
}

// ConnectRequest links or unlinks an item through a connect-boards column.
type ConnectRequest struct {
	ColumnID     string `json:"column_id" validate:"required"`
	TargetItemID string `json:"target_item_id" validate:"required"`
	Remove       bool   `json:"remove,omitempty"`
}

// Validate validates the request.
func (r ConnectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ColumnID, validation.Required),
		validation.Field(&r.TargetItemID, validation.Required),
	)
}

// TimelineRequest sets a timeline cell. Nil bounds clear the cell.
type TimelineRequest struct {
	ColumnID string     `json:"column_id" validate:"required"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// Validate validates the request.
func (r TimelineRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.ColumnID, validation.Required),
	); err != nil {
		return err
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return errors.New("end: must not be before start")
	}
	return nil
}

// ReorderColumnsRequest lists column ids in their new order.
type ReorderColumnsRequest struct {
	ColumnIDs []string `json:"column_ids" validate:"required"`
}

// Validate validates the request.
func (r ReorderColumnsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ColumnIDs, validation.Required),
	)
}

// EnabledRequest toggles an automation.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// DuplicateBoardRequest copies a board.
type DuplicateBoardRequest struct {
	Name string `json:"name,omitempty" example:"Roadmap (copy)"`
	flexiboard.DuplicateOptions
}

// SaveTemplateRequest saves a board as a template.
type SaveTemplateRequest = flexiboard.TemplateOptions

// MorphRequest re-shapes a board after a template.
type MorphRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	flexiboard.MorphOptions
}

// Validate validates the request.
func (r MorphRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TemplateID, validation.Required),
	)
}

// PostUpdateRequest is a comment posted on an item.
type PostUpdateRequest struct {
	Text string `json:"text" validate:"required"`
}

// Validate validates the request.
func (r PostUpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required, validation.Length(1, 10000)),
	)
}

// BoardListResponse wraps board listings.
type BoardListResponse struct {
	Boards []models.BoardSummary `json:"boards" validate:"required"`
	Total  int                   `json:"total" example:"3" validate:"required"`
}

// ItemListResponse wraps item listings.
type ItemListResponse struct {
	Items []boardservice.ItemView `json:"items" validate:"required"`
	Total int                     `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchHit `json:"results" validate:"required"`
}
