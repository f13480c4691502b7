package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flexiboard/internal/apperr"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ListFiles handles GET /api/boards/{boardID}/items/{itemID}/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAttachments(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// UploadFile handles POST /api/boards/{boardID}/items/{itemID}/files
// (multipart/form-data with fields "file" and "column_id").
//
//	@Summary		Attach a file to an item's file column
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			boardID		path		string	true	"Board id"
//	@Param			itemID		path		string	true	"Item id"
//	@Param			column_id	formData	string	true	"File column id"
//	@Param			file		formData	file	true	"File content"
//	@Success		201			{object}	models.Attachment
//	@Failure		400			{object}	errResponse
//	@Failure		501			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/boards/{boardID}/items/{itemID}/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("read upload: %w", apperr.ErrInvalid))
		return
	}
	att, err := h.svc.AttachFile(r.Context(), UserID(r.Context()),
		chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), r.FormValue("column_id"), header.Filename, content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// DownloadFile handles GET /api/boards/{boardID}/items/{itemID}/files/{name}.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.svc.ReadAttachment(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteFile handles DELETE /api/boards/{boardID}/items/{itemID}/files/{name}.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DetachFile(r.Context(), UserID(r.Context()), chi.URLParam(r, "boardID"), chi.URLParam(r, "itemID"), chi.URLParam(r, "name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
