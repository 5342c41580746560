package handlers

import (
	"net/http"
	"strings"

	"iou/internal/config"
	"iou/internal/db"
	"iou/internal/middleware"
	"iou/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	users         UserStore
	audit         AuditStore
	friendships   FriendshipService
	persons       PersonService
	ledger        LedgerService
	notifications NotificationService
	hub           *websocket.Hub
	log           *zap.Logger
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, audit AuditStore, friendships FriendshipService, persons PersonService, ledger LedgerService, notifications NotificationService, hub *websocket.Hub, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		txRunner:      txRunner,
		cfg:           cfg,
		users:         users,
		audit:         audit,
		friendships:   friendships,
		persons:       persons,
		ledger:        ledger,
		notifications: notifications,
		hub:           hub,
		log:           log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	authenticated := chi.Chain(middleware.Auth(h.cfg.JWTSecret), middleware.RequireUser(h.users))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated...).Get("/me", h.Me)
	})
	router.Route("/users", func(r chi.Router) {
		r.Use(authenticated...)
		r.Get("/search", h.SearchUsers)
		r.Put("/me", h.UpdateMe)
	})

	router.Route("/friends", func(r chi.Router) {
		r.Use(authenticated...)
		r.Get("/", h.ListFriends)
		r.Post("/request", h.SendFriendRequest)
		r.Get("/requests", h.ListFriendRequests)
		r.Post("/respond", h.RespondFriendRequest)
		r.Post("/cancel", h.CancelFriendRequest)
	})

	router.Route("/people", func(r chi.Router) {
		r.Use(authenticated...)
		r.Get("/with-transactions", h.ListPersons)
		r.Post("/", h.CreatePerson)
		r.Put("/{id}", h.UpdatePerson)
		r.Delete("/{id}", h.DeletePerson)
		r.Post("/{id}/remind", h.SendReminder)
	})

	router.Route("/transactions", func(r chi.Router) {
		r.Use(authenticated...)
		r.Post("/bulk", h.CreateBulkTransaction)
		r.Post("/{personID}", h.CreateTransaction)
		r.Put("/{id}", h.UpdateTransaction)
		r.Delete("/{id}", h.DeleteTransaction)
	})

	router.Route("/notifications", func(r chi.Router) {
		r.Use(authenticated...)
		r.Get("/", h.ListNotifications)
		r.Post("/read", h.MarkNotificationsRead)
		r.Delete("/clear", h.ClearNotifications)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/ws/notifications", h.WSNotifications)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

// allowedOrigins splits the comma separated ALLOWED_ORIGINS setting.
func allowedOrigins(raw string) []string {
	origins := make([]string, 0, 1)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
