package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

// DefaultHeartbeat is the keepalive interval of an idle stream.
const DefaultHeartbeat = 15 * time.Second

// Handler streams a room's activity as Server-Sent Events, so a page can
// preview a room before opening a socket.
type Handler struct {
	chatSvc   *chatService.Service
	feed      *Feed
	heartbeat time.Duration
	log       logrus.FieldLogger
}

// New creates a stream handler. heartbeat <= 0 means DefaultHeartbeat.
func New(chatSvc *chatService.Service, feed *Feed, heartbeat time.Duration, logger logrus.FieldLogger) *Handler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		chatSvc:   chatSvc,
		feed:      feed,
		heartbeat: heartbeat,
		log:       logger.WithField("component", "sse"),
	}
}

// RegisterRoutes mounts the stream route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rooms/{roomID}/events", h.handleRoomEvents)
}

func (h *Handler) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.feed.Subscribe(roomID)
	defer cancel()

	// Subscribed before the snapshot, so nothing falls between the two;
	// clients drop duplicates by seq.
	messages, err := h.chatSvc.RoomMessages(roomID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "room not found")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	snapshot := chat.Event{
		Type:    chat.EventRoomMessages,
		Payload: chat.RoomMessages{RoomID: roomID, Messages: messages},
		RoomID:  roomID,
	}
	if !h.send(w, flusher, snapshot) {
		return
	}

	entry := h.log.WithFields(logrus.Fields{"room": roomID, "remote": r.RemoteAddr})
	entry.Debug("opening room stream")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			entry.Debug("closing room stream")
			return
		case event, ok := <-events:
			if !ok {
				entry.Debug("room stream dropped")
				return
			}
			if !h.send(w, flusher, event) {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "keepalive"); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, event chat.Event) bool {
	frame, err := event.Encode()
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Error("failed to encode event")
		return true
	}
	return utils.SendSSEEvent(w, flusher, string(event.Type), json.RawMessage(frame)) == nil
}
