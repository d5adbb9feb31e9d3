// Package ws serves the chat WebSocket endpoint. Each connection gets a
// uuid, a read loop that routes envelopes into the chat service and a write
// loop fed by the Hub.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

// ErrUnknownEvent is returned for an envelope type the server does not handle.
var ErrUnknownEvent = errors.New("unknown event type")

// Handler upgrades HTTP requests and runs the connection loops.
type Handler struct {
	svc      *chatservice.Service
	hub      *Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// New creates the WebSocket handler.
func New(svc *chatservice.Service, hub *Hub, cfg config.WebSocketConfig, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "websocket")
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	if cfg.MaxMessageSize < chatservice.MinFrameSize {
		if cfg.MaxMessageSize > 0 {
			logger.WithFields(logrus.Fields{
				"configured": cfg.MaxMessageSize,
				"using":      chatservice.MinFrameSize,
			}).Warn("max message size too small for a valid chat message; raising it")
		}
		cfg.MaxMessageSize = chatservice.MinFrameSize
	}

	return &Handler{
		svc: svc,
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		log: logger,
	}
}

// RegisterRoutes mounts the socket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("upgrade failed")
		return
	}

	id := uuid.NewString()
	client := newClient(id, conn, h.cfg.SendBuffer, h.newLimiter(), h.log)
	h.hub.Register(client)
	go client.writePump()

	h.log.WithFields(logrus.Fields{"conn": id, "remote": r.RemoteAddr}).Info("websocket connected")

	client.readPump(h.cfg.MaxMessageSize, func(raw []byte) {
		h.dispatch(id, raw)
	})

	h.hub.Unregister(id)
	if err := h.svc.Disconnect(id); err != nil && !errors.Is(err, chatservice.ErrSessionNotFound) {
		h.log.WithError(err).WithField("conn", id).Warn("disconnect failed")
	}
	h.log.WithField("conn", id).Info("websocket disconnected")
}

func (h *Handler) newLimiter() *rate.Limiter {
	if h.cfg.RateLimit <= 0 {
		return nil
	}
	burst := h.cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.cfg.RateLimit), burst)
}

// dispatch decodes one frame and runs it. Failures are logged and the frame
// is dropped; the connection stays open.
func (h *Handler) dispatch(connID string, raw []byte) {
	var env chat.Envelope
	defer func() {
		if rec := recover(); rec != nil {
			h.log.WithFields(logrus.Fields{"conn": connID, "event": env.Type, "panic": rec}).Error("event handler panicked")
		}
	}()

	if err := json.Unmarshal(raw, &env); err != nil {
		h.log.WithError(err).WithField("conn", connID).Debug("dropping malformed frame")
		return
	}

	if err := h.route(connID, env); err != nil {
		entry := h.log.WithError(err).WithFields(logrus.Fields{"conn": connID, "event": env.Type})
		if errors.Is(err, ErrUnknownEvent) {
			entry.Warn("dropping event")
			return
		}
		entry.Debug("dropping event")
	}
}

func (h *Handler) route(connID string, env chat.Envelope) error {
	switch env.Type {
	case chat.EventJoin:
		var p chat.JoinPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		_, err := h.svc.Join(connID, p)
		return err

	case chat.EventJoinRoom:
		var p chat.JoinRoomPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.svc.JoinRoom(connID, p)

	case chat.EventSendMessage:
		var p chat.SendMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		_, err := h.svc.SendMessage(connID, p)
		return err

	case chat.EventTyping:
		var p chat.TypingPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.svc.SetTyping(connID, p)

	case chat.EventAddReaction:
		var p chat.ReactionPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.svc.AddReaction(connID, p)

	case chat.EventSendPrivateMessage:
		var p chat.PrivateMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		_, err := h.svc.SendPrivateMessage(connID, p)
		return err

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", chatservice.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", chatservice.ErrInvalidPayload, err)
	}
	return nil
}
