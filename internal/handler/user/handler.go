package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// Handler exposes the live session registry.
type Handler struct {
	chatSvc *chatService.Service
}

// New creates the user handler.
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts the user routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.handleListUsers)
	r.Get("/users/{userID}", h.handleGetUser)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	sessions := h.chatSvc.Sessions()
	if r.URL.Query().Get("online") == "true" {
		online := sessions[:0]
		for _, s := range sessions {
			if s.Online {
				online = append(online, s)
			}
		}
		sessions = online
	}
	utils.RespondJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	session, ok := h.chatSvc.Lookup(chi.URLParam(r, "userID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}
