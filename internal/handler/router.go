package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler/room"
	"github.com/zhouzirui/z-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/z-chat/backend/internal/handler/user"
	"github.com/zhouzirui/z-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/z-chat/backend/internal/middleware"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. db may be nil when no
// durable store is configured.
func NewRouter(cfg config.WebSocketConfig, chatSvc *chatService.Service, hub *ws.Hub, feed *stream.Feed, db *store.Store, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	var history room.HistoryStore
	if db != nil {
		history = db
	}

	roomHandler := room.New(chatSvc, history, logger)
	userHandler := user.New(chatSvc)
	streamHandler := stream.New(chatSvc, feed, 0, logger)
	wsHandler := ws.New(chatSvc, hub, cfg, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{
			"status":      "ok",
			"connections": hub.Len(),
		}
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				status["status"] = "degraded"
				status["store"] = err.Error()
				utils.RespondJSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		utils.RespondJSON(w, http.StatusOK, status)
	})

	r.Route("/api", func(api chi.Router) {
		roomHandler.RegisterRoutes(api)
		userHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	wsHandler.RegisterRoutes(r)

	return r
}
