package app

import (
	"net/http"

	"inkdown-client/internal/handler"
	"inkdown-client/internal/middleware"
	"inkdown-client/pkg/response"

	"github.com/gorilla/mux"
)

func NewRouter(a *App) *mux.Router {
	cfg := a.Config

	noteHandler := handler.NewNoteHandler(a.Notes)
	tagHandler := handler.NewTagHandler(a.Tags)
	viewHandler := handler.NewViewHandler(a.Projection)
	transferHandler := handler.NewTransferHandler(a.Exporter, a.Importer)
	wsHandler := handler.NewWebSocketHandler(a.Manager, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, a.Logger)
	a.Manager.SetMessageHandler(handler.NewWebSocketMessageHandler(a.Manager, a.Notes, a.Tags))

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(a.Logger))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	r.HandleFunc("/health", a.health).Methods("GET")

	auth := middleware.AuthMiddleware(cfg.Auth.Secret)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth)

	api.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/reload", noteHandler.Reload).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/search", noteHandler.Search).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/error", noteHandler.ClearError).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/open", noteHandler.Current).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/open", noteHandler.Close).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/open", noteHandler.Open).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Save).Methods("PUT", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/restore", noteHandler.Restore).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/permanent", noteHandler.PermanentlyDelete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/favorite", noteHandler.ToggleFavorite).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/tags", tagHandler.AddToNote).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/tags/{tagId}", tagHandler.RemoveFromNote).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/export", transferHandler.ExportNote).Methods("POST", "OPTIONS")

	api.HandleFunc("/tags", tagHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/tags", tagHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/tags/reload", tagHandler.Reload).Methods("POST", "OPTIONS")
	api.HandleFunc("/tags/search", tagHandler.Search).Methods("GET", "OPTIONS")
	api.HandleFunc("/tags/cleanup", tagHandler.CleanupUnused).Methods("POST", "OPTIONS")
	api.HandleFunc("/tags/error", tagHandler.ClearError).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/tags/{id}", tagHandler.Rename).Methods("PUT", "OPTIONS")
	api.HandleFunc("/tags/{id}", tagHandler.Delete).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/views/{name}", viewHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/filter", viewHandler.GetFilter).Methods("GET", "OPTIONS")
	api.HandleFunc("/filter", viewHandler.SetFilter).Methods("PUT", "OPTIONS")
	api.HandleFunc("/filter", viewHandler.ClearFilter).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/export", transferHandler.ExportAll).Methods("POST", "OPTIONS")
	api.HandleFunc("/import", transferHandler.Import).Methods("POST", "OPTIONS")

	r.Handle("/ws", auth(http.HandlerFunc(wsHandler.HandleConnection)))

	return r
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"status":      "healthy",
		"service":     "inkdown-client",
		"notes":       len(a.Notes.Notes()),
		"tags":        len(a.Tags.Tags()),
		"connections": a.Manager.Connections(),
	})
}
