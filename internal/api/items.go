package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flexiboard/internal/boardservice"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// parseFilters reads repeated filter=column:operator[:value] parameters.
func parseFilters(vals []string) []models.Filter {
	var out []models.Filter
	for _, v := range vals {
		parts := strings.SplitN(v, ":", 3)
		if len(parts) < 2 {
			continue
		}
		f := models.Filter{Column: parts[0], Operator: parts[1]}
		if len(parts) == 3 {
			f.Value = parts[2]
		}
		out = append(out, f)
	}
	return out
}

// parseSorts reads repeated sort=column[:asc|desc] parameters.
func parseSorts(vals []string) []models.Sort {
	var out []models.Sort
	for _, v := range vals {
		col, dir, _ := strings.Cut(v, ":")
		if col == "" {
			continue
		}
		if dir == "" {
			dir = "asc"
		}
		out = append(out, models.Sort{Column: col, Direction: dir})
	}
	return out
}

// ListItems handles GET /api/boards/{boardID}/items.
//
//	@Summary		List items with optional search, filters and sorts
//	@Tags			items
//	@Produce		json
//	@Param			boardID	path		string	true	"Board id"
//	@Param			q		query		string	false	"Free-text search within the board"
//	@Param			filter	query		[]string	false	"column:operator[:value]"
//	@Param			sort	query		[]string	false	"column[:asc|desc]"
//	@Success		200		{object}	ItemListResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	boardID := chi.URLParam(r, "boardID")
	var (
		items []boardservice.ItemView
		err   error
	)
	if text := q.Get("q"); text != "" {
		items, err = h.svc.SearchBoard(r.Context(), UserID(r.Context()), boardID, text)
	} else {
		items, err = h.svc.ListItems(r.Context(), UserID(r.Context()), boardID, parseFilters(q["filter"]), parseSorts(q["sort"]))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// FilterItems handles POST /api/boards/{boardID}/items/filter.
func (h *Handler) FilterItems(w http.ResponseWriter, r *http.Request) {
	var req flexiboard.AdvancedFilter
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.svc.FilterItems(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)})
}

// CreateItem handles POST /api/boards/{boardID}/items.
//
//	@Summary		Create an item and run item-created automations
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			boardID		path		string				true	"Board id"
//	@Param			If-Match	header		string				false	"Board ETag"
//	@Param			body		body		flexiboard.NewItem	true	"Item to create"
//	@Success		201			{object}	boardservice.ItemResult
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req flexiboard.NewItem
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.CreateItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusCreated, res.BoardDetail, res)
}

// GetItem handles GET /api/boards/{boardID}/items/{itemID}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.GetItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// UpdateItem handles PATCH /api/boards/{boardID}/items/{itemID}.
//
//	@Summary		Update an item and run change automations
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			boardID		path		string					true	"Board id"
//	@Param			itemID		path		string					true	"Item id"
//	@Param			If-Match	header		string					false	"Board ETag"
//	@Param			body		body		flexiboard.ItemPatch	true	"Fields to change"
//	@Success		200			{object}	boardservice.ItemResult
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/items/{itemID} [patch]
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req flexiboard.ItemPatch
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.UpdateItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, res.BoardDetail, res)
}

// MoveItem handles POST /api/boards/{boardID}/items/{itemID}/move.
func (h *Handler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req MoveItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.MoveItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), ifMatch(r), req.Position, req.GroupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, res.BoardDetail, res)
}

// DeleteItem handles DELETE /api/boards/{boardID}/items/{itemID}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DeleteItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), ifMatch(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if d != nil && d.ETag != "" {
		w.Header().Set("ETag", `"`+d.ETag+`"`)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveItem handles POST /api/boards/{boardID}/items/{itemID}/archive.
func (h *Handler) ArchiveItem(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.ArchiveItem(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), ifMatch(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// Connect handles POST /api/boards/{boardID}/items/{itemID}/connections.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Connect(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req.ColumnID, chi.URLParam(r, "itemID"), req.TargetItemID, req.Remove)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// SetTimeline handles PUT /api/boards/{boardID}/items/{itemID}/timeline.
func (h *Handler) SetTimeline(w http.ResponseWriter, r *http.Request) {
	var req TimelineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.SetTimeline(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req.ColumnID, chi.URLParam(r, "itemID"), req.Start, req.End)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// PostUpdate handles POST /api/boards/{boardID}/items/{itemID}/updates.
func (h *Handler) PostUpdate(w http.ResponseWriter, r *http.Request) {
	var req PostUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	act, err := h.svc.PostUpdate(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, act)
}

// Bulk handles POST /api/boards/{boardID}/bulk.
//
//	@Summary		Apply one operation to many items
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			boardID		path		string					true	"Board id"
//	@Param			If-Match	header		string					false	"Board ETag"
//	@Param			body		body		models.BulkOperation	true	"Operation"
//	@Success		200			{object}	boardservice.BulkResult
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/bulk [post]
func (h *Handler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkOperation
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Bulk(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, res.BoardDetail, res)
}

// ListActivities handles GET /api/boards/{boardID}/activities.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.svc.ListActivities(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), q.Get("item_id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the items of a workspace
//	@Tags			search
//	@Produce		json
//	@Param			q				query		string	true	"Search query"
//	@Param			workspace_id	query		string	false	"Workspace id (required for users)"
//	@Param			limit			query		int		false	"Max results"
//	@Success		200				{object}	SearchResponse
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("q") == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	hits, err := h.svc.Search(r.Context(), UserID(r.Context()), q.Get("workspace_id"), q.Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// ListNotifications handles GET /api/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	unread := q.Get("unread") == "true"
	list, err := h.svc.ListNotifications(r.Context(), UserID(r.Context()), unread, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkNotificationRead handles POST /api/notifications/{notificationID}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationRead(r.Context(), UserID(r.Context()), chi.URLParam(r, "notificationID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
