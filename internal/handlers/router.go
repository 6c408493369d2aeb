package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/notisync/notisync/internal/repositories"
	"github.com/notisync/notisync/internal/services"
)

func NewRouter(
	auth *services.AuthService,
	notifications *services.NotificationService,
	reconcile *services.ReconcileService,
	sync *services.SyncService,
	presenceRepo repositories.PresenceRepository,
) chi.Router {
	authHandler := &AuthHandler{auth: auth}
	notificationHandler := &NotificationHandler{notifications: notifications, reconcile: reconcile}
	syncHandler := &SyncHandler{sync: sync, presenceRepo: presenceRepo}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(auth))
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/notifications", notificationHandler.Create)
			r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
			r.Get("/sync", syncHandler.Sync)
			r.Post("/presence/heartbeat", syncHandler.Heartbeat)
		})
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
