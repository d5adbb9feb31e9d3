package room

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// HistoryStore reads archived room messages.
type HistoryStore interface {
	ListMessages(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
}

// Handler serves the room catalog and room history.
type Handler struct {
	chatSvc *chatService.Service
	history HistoryStore
	log     logrus.FieldLogger
}

// New creates the room handler. history may be nil, in which case messages
// come from the live room log.
func New(chatSvc *chatService.Service, history HistoryStore, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		chatSvc: chatSvc,
		history: history,
		log:     logger.WithField("component", "room-api"),
	}
}

// RegisterRoutes mounts the room routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms", h.handleListRooms)
	r.Post("/rooms", h.handleCreateRoom)
	r.Get("/rooms/{roomID}/messages", h.handleListMessages)
}

type roomSummary struct {
	chat.Room
	MemberCount int `json:"memberCount"`
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.chatSvc.Rooms()
	out := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, roomSummary{Room: room, MemberCount: len(room.Users)})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := strings.TrimSpace(payload.ID)
	if id == "" {
		id = Slug(payload.Name)
	}
	if id == "" && strings.TrimSpace(payload.Name) != "" {
		id = uuid.NewString()
	}
	room, err := h.chatSvc.CreateRoom(chat.Room{
		ID:          id,
		Name:        strings.TrimSpace(payload.Name),
		Description: strings.TrimSpace(payload.Description),
	})
	switch {
	case err == nil:
		utils.RespondJSON(w, http.StatusCreated, room)
	case errors.Is(err, chatService.ErrRoomExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chatService.ErrInvalidPayload):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error("failed to create room")
		utils.RespondError(w, http.StatusInternalServerError, "failed to create room")
	}
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.RespondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	live, err := h.chatSvc.RoomMessages(roomID)
	if err != nil {
		if errors.Is(err, chatService.ErrRoomNotFound) {
			utils.RespondError(w, http.StatusNotFound, "room not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.history != nil {
		archived, err := h.history.ListMessages(r.Context(), roomID, limit)
		if err == nil {
			utils.RespondJSON(w, http.StatusOK, withLiveState(archived, live))
			return
		}
		h.log.WithError(err).WithField("room", roomID).Warn("history store unavailable; serving live log")
	}

	if limit > 0 && len(live) > limit {
		live = live[len(live)-limit:]
	}
	utils.RespondJSON(w, http.StatusOK, live)
}

// withLiveState swaps archived rows for their live log entry when the message
// is still retained, so ids and reactions match what the socket reports. Log
// ids restart with the process, so a row only matches an entry with the same
// author and content.
func withLiveState(archived, live []chat.Message) []chat.Message {
	byID := make(map[string]chat.Message, len(live))
	for _, msg := range live {
		byID[msg.ID] = msg
	}
	for i, msg := range archived {
		cur, ok := byID[msg.ID]
		if ok && cur.UserID == msg.UserID && cur.Content == msg.Content {
			archived[i] = cur
		}
	}
	return archived
}

// Slug derives a room id from a display name: lower case ASCII letters and
// digits, other runs collapsed to a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
