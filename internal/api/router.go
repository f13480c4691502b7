package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flexiboard/internal/boardservice"
)

// RouterConfig carries what the router needs besides the service.
// Events and Socket, if non-nil, are mounted at GET /events and GET /ws
// inside the auth group.
type RouterConfig struct {
	Auth   AuthConfig
	Events http.Handler
	Socket http.Handler
}

// NewRouter creates a chi router with all API routes mounted. The caller
// mounts it under /api.
func NewRouter(svc *boardservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.Auth))

	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", h.ListWorkspaces)
		r.Post("/", h.CreateWorkspace)
		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Get("/", h.GetWorkspace)
			r.Put("/", h.UpdateWorkspace)
			r.Delete("/", h.DeleteWorkspace)
			r.Get("/tree", h.WorkspaceTree)
			r.Post("/folders", h.CreateFolder)
		})
	})
	r.Put("/folders/{folderID}", h.UpdateFolder)
	r.Delete("/folders/{folderID}", h.DeleteFolder)

	r.Get("/templates", h.ListTemplates)
	r.Get("/templates/{templateID}", h.GetTemplate)

	r.Route("/boards", func(r chi.Router) {
		r.Get("/", h.ListBoards)
		r.Post("/", h.CreateBoard)
		r.Route("/{boardID}", func(r chi.Router) {
			r.Get("/", h.GetBoard)
			r.Patch("/", h.UpdateBoard)
			r.Delete("/", h.DeleteBoard)
			r.Post("/duplicate", h.DuplicateBoard)
			r.Post("/template", h.SaveAsTemplate)
			r.Post("/morph", h.MorphBoard)

			r.Post("/columns", h.AddColumn)
			r.Put("/columns/order", h.ReorderColumns)
			r.Patch("/columns/{columnID}", h.UpdateColumn)
			r.Delete("/columns/{columnID}", h.DeleteColumn)
			r.Get("/columns/{columnID}/options", h.LookupOptions)

			r.Post("/views", h.AddView)
			r.Patch("/views/{viewID}", h.UpdateView)
			r.Delete("/views/{viewID}", h.DeleteView)
			r.Post("/views/{viewID}/activate", h.ActivateView)
			r.Get("/render/{viewType}", h.RenderView)
			r.Get("/analytics", h.Analytics)
			r.Get("/stats", h.Statistics)

			r.Get("/items", h.ListItems)
			r.Post("/items", h.CreateItem)
			r.Post("/items/filter", h.FilterItems)
			r.Route("/items/{itemID}", func(r chi.Router) {
				r.Get("/", h.GetItem)
				r.Patch("/", h.UpdateItem)
				r.Delete("/", h.DeleteItem)
				r.Post("/move", h.MoveItem)
				r.Post("/archive", h.ArchiveItem)
				r.Post("/connections", h.Connect)
				r.Put("/timeline", h.SetTimeline)
				r.Post("/updates", h.PostUpdate)
				r.Get("/files", h.ListFiles)
				r.Post("/files", h.UploadFile)
				r.Get("/files/{name}", h.DownloadFile)
				r.Delete("/files/{name}", h.DeleteFile)
			})
			r.Post("/bulk", h.Bulk)
			r.Get("/activities", h.ListActivities)

			r.Get("/automations", h.ListAutomations)
			r.Post("/automations", h.CreateAutomation)
			r.Route("/automations/{automationID}", func(r chi.Router) {
				r.Put("/", h.UpdateAutomation)
				r.Delete("/", h.DeleteAutomation)
				r.Put("/enabled", h.SetAutomationEnabled)
				r.Post("/test", h.TestAutomation)
				r.Post("/run", h.RunAutomation)
			})
		})
	})

	r.Get("/search", h.Search)
	r.Get("/notifications", h.ListNotifications)
	r.Post("/notifications/{notificationID}/read", h.MarkNotificationRead)

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}
	if cfg.Socket != nil {
		r.Get("/ws", cfg.Socket.ServeHTTP)
	}

	return r
}
