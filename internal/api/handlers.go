package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flexiboard/internal/boardservice"
	"github.com/starford/flexiboard/internal/flexiboard"
)

// Handler holds API route handlers.
type Handler struct {
	svc *boardservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *boardservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListWorkspaces handles GET /api/workspaces.
//
//	@Summary		List the workspaces the caller belongs to
//	@Tags			workspaces
//	@Produce		json
//	@Success		200	{array}	models.Workspace
//	@Security		BearerAuth
//	@Router			/workspaces [get]
func (h *Handler) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListWorkspaces(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateWorkspace handles POST /api/workspaces.
//
//	@Summary		Create a workspace owned by the caller
//	@Tags			workspaces
//	@Accept			json
//	@Produce		json
//	@Param			body	body		WorkspaceRequest	true	"Workspace to create"
//	@Success		201		{object}	models.Workspace
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces [post]
func (h *Handler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := h.svc.CreateWorkspace(r.Context(), UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

// GetWorkspace handles GET /api/workspaces/{workspaceID}.
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.svc.GetWorkspace(r.Context(), UserID(r.Context()), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// UpdateWorkspace handles PUT /api/workspaces/{workspaceID}.
func (h *Handler) UpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := h.svc.UpdateWorkspace(r.Context(), UserID(r.Context()), chi.URLParam(r, "workspaceID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// DeleteWorkspace handles DELETE /api/workspaces/{workspaceID}. Its boards
// and folders go with it.
func (h *Handler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWorkspace(r.Context(), UserID(r.Context()), chi.URLParam(r, "workspaceID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WorkspaceTree handles GET /api/workspaces/{workspaceID}/tree.
//
//	@Summary		Folder and board hierarchy of a workspace
//	@Tags			workspaces
//	@Produce		json
//	@Param			workspaceID	path		string	true	"Workspace id"
//	@Success		200			{object}	models.WorkspaceTree
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/workspaces/{workspaceID}/tree [get]
func (h *Handler) WorkspaceTree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree(r.Context(), UserID(r.Context()), chi.URLParam(r, "workspaceID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// CreateFolder handles POST /api/workspaces/{workspaceID}/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.CreateFolder(r.Context(), UserID(r.Context()), chi.URLParam(r, "workspaceID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// UpdateFolder handles PUT /api/folders/{folderID}.
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.svc.UpdateFolder(r.Context(), UserID(r.Context()), chi.URLParam(r, "folderID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// DeleteFolder handles DELETE /api/folders/{folderID}.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFolder(r.Context(), UserID(r.Context()), chi.URLParam(r, "folderID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTemplates handles GET /api/templates.
func (h *Handler) ListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListTemplates())
}

// GetTemplate handles GET /api/templates/{templateID}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTemplate(chi.URLParam(r, "templateID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListBoards handles GET /api/boards?workspace_id=.
//
//	@Summary		List boards in a workspace
//	@Tags			boards
//	@Produce		json
//	@Param			workspace_id	query		string	true	"Workspace id"
//	@Success		200				{object}	BoardListResponse
//	@Security		BearerAuth
//	@Router			/boards [get]
func (h *Handler) ListBoards(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBoards(r.Context(), UserID(r.Context()), r.URL.Query().Get("workspace_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BoardListResponse{Boards: list, Total: len(list)})
}

// CreateBoard handles POST /api/boards.
//
//	@Summary		Create a board, blank or from a template
//	@Tags			boards
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBoardRequest	true	"Board to create"
//	@Success		201		{object}	boardservice.BoardDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards [post]
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req CreateBoardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.CreateBoard(r.Context(), UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusCreated, d, d)
}

// GetBoard handles GET /api/boards/{boardID}.
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetBoard(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// UpdateBoard handles PATCH /api/boards/{boardID}.
//
//	@Summary		Update board fields with optimistic concurrency
//	@Tags			boards
//	@Accept			json
//	@Produce		json
//	@Param			boardID		path		string					true	"Board id"
//	@Param			If-Match	header		string					false	"Board ETag"
//	@Param			body		body		flexiboard.BoardPatch	true	"Fields to change"
//	@Success		200			{object}	boardservice.BoardDetail
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID} [patch]
func (h *Handler) UpdateBoard(w http.ResponseWriter, r *http.Request) {
	var req flexiboard.BoardPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.UpdateBoard(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// DeleteBoard handles DELETE /api/boards/{boardID}.
func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBoard(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateBoard handles POST /api/boards/{boardID}/duplicate.
func (h *Handler) DuplicateBoard(w http.ResponseWriter, r *http.Request) {
	var req DuplicateBoardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.DuplicateBoard(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req.Name, req.DuplicateOptions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusCreated, d, d)
}

// SaveAsTemplate handles POST /api/boards/{boardID}/template.
func (h *Handler) SaveAsTemplate(w http.ResponseWriter, r *http.Request) {
	var req SaveTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.SaveAsTemplate(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// MorphBoard handles POST /api/boards/{boardID}/morph.
func (h *Handler) MorphBoard(w http.ResponseWriter, r *http.Request) {
	var req MorphRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.MorphBoard(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req.TemplateID, ifMatch(r), req.MorphOptions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}
