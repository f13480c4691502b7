package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/models"
)

// Column, view and automation handlers. All of them act on
// /api/boards/{boardID}.

// AddColumn handles POST /api/boards/{boardID}/columns.
//
//	@Summary		Add a column
//	@Tags			columns
//	@Accept			json
//	@Produce		json
//	@Param			boardID		path		string			true	"Board id"
//	@Param			If-Match	header		string			false	"Board ETag"
//	@Param			body		body		models.Column	true	"Column definition"
//	@Success		201			{object}	boardservice.BoardDetail
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/columns [post]
func (h *Handler) AddColumn(w http.ResponseWriter, r *http.Request) {
	var req models.Column
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.AddColumn(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusCreated, d, d)
}

// UpdateColumn handles PATCH /api/boards/{boardID}/columns/{columnID}.
func (h *Handler) UpdateColumn(w http.ResponseWriter, r *http.Request) {
	var req models.Column
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.UpdateColumn(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "columnID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// DeleteColumn handles DELETE /api/boards/{boardID}/columns/{columnID}.
func (h *Handler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DeleteColumn(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "columnID"), ifMatch(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// ReorderColumns handles PUT /api/boards/{boardID}/columns/order.
func (h *Handler) ReorderColumns(w http.ResponseWriter, r *http.Request) {
	var req ReorderColumnsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.ReorderColumns(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req.ColumnIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// LookupOptions handles GET /api/boards/{boardID}/columns/{columnID}/options.
func (h *Handler) LookupOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.LookupOptions(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "columnID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// AddView handles POST /api/boards/{boardID}/views.
func (h *Handler) AddView(w http.ResponseWriter, r *http.Request) {
	var req models.View
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.AddView(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusCreated, d, d)
}

// UpdateView handles PATCH /api/boards/{boardID}/views/{viewID}.
func (h *Handler) UpdateView(w http.ResponseWriter, r *http.Request) {
	var req models.View
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.UpdateView(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "viewID"), ifMatch(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// DeleteView handles DELETE /api/boards/{boardID}/views/{viewID}.
func (h *Handler) DeleteView(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.DeleteView(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "viewID"), ifMatch(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// ActivateView handles POST /api/boards/{boardID}/views/{viewID}/activate.
func (h *Handler) ActivateView(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.SetActiveView(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "viewID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeBoard(w, http.StatusOK, d, d)
}

// RenderView handles GET /api/boards/{boardID}/render/{viewType}.
//
//	@Summary		Render the board as a view
//	@Tags			views
//	@Produce		json
//	@Param			boardID		path	string	true	"Board id"
//	@Param			viewType	path	string	true	"View type"	Enums(kanban, table, calendar, timeline, gantt, chart, form, cards, dashboard)
//	@Param			view_id		query	string	false	"Saved view supplying filters and sorts"
//	@Param			group_by	query	string	false	"Column to group by"
//	@Success		200
//	@Failure		501	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/render/{viewType} [get]
func (h *Handler) RenderView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := flexiboard.RenderOptions{ViewID: q.Get("view_id"), GroupBy: q.Get("group_by")}
	out, err := h.svc.RenderView(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), models.ViewType(chi.URLParam(r, "viewType")), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Analytics handles GET /api/boards/{boardID}/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Analytics(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Statistics handles GET /api/boards/{boardID}/stats.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Statistics(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListAutomations handles GET /api/boards/{boardID}/automations.
func (h *Handler) ListAutomations(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAutomations(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateAutomation handles POST /api/boards/{boardID}/automations.
//
//	@Summary		Create an automation rule
//	@Tags			automations
//	@Accept			json
//	@Produce		json
//	@Param			boardID	path		string				true	"Board id"
//	@Param			body	body		models.Automation	true	"Trigger, conditions and actions"
//	@Success		201		{object}	models.Automation
//	@Failure		400		{object}	errResponse
//	@Failure		403		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/automations [post]
func (h *Handler) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req models.Automation
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.CreateAutomation(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAutomation handles PUT /api/boards/{boardID}/automations/{automationID}.
func (h *Handler) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var req models.Automation
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.svc.UpdateAutomation(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "automationID"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SetAutomationEnabled handles PUT /api/boards/{boardID}/automations/{automationID}/enabled.
func (h *Handler) SetAutomationEnabled(w http.ResponseWriter, r *http.Request) {
	var req EnabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.SetAutomationEnabled(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "automationID"), req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAutomation handles DELETE /api/boards/{boardID}/automations/{automationID}.
func (h *Handler) DeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAutomation(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "automationID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestAutomation handles POST /api/boards/{boardID}/automations/{automationID}/test.
// The body is the event to evaluate; nothing is changed.
func (h *Handler) TestAutomation(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := h.svc.TestAutomation(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "automationID"), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// RunAutomation handles POST /api/boards/{boardID}/automations/{automationID}/run.
func (h *Handler) RunAutomation(w http.ResponseWriter, r *http.Request) {
	var ev models.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.RunAutomation(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "automationID"), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
