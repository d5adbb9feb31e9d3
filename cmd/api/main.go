package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-chat/backend/internal/config"
	"github.com/zhouzirui/z-chat/backend/internal/handler"
	"github.com/zhouzirui/z-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/z-chat/backend/internal/handler/ws"
	"github.com/zhouzirui/z-chat/backend/internal/logging"
	model "github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/service/chat"
	"github.com/zhouzirui/z-chat/backend/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("failed to build logger: %v", err)
	}
	if envErr != nil {
		logger.WithError(envErr).Debug("no .env file; using process environment only")
	}

	var db *store.Store
	var mirror *chat.Mirror
	rooms := model.Seed()
	if cfg.Store.Enabled {
		db, err = store.Open(cfg.Store.DSN)
		if err != nil {
			logger.WithError(err).Fatal("failed to open store")
		}
		rooms = withStoredRooms(db, rooms, logger)
		mirror = chat.NewMirror(db, cfg.Store.QueueSize, logger)
		logger.WithField("dsn", cfg.Store.DSN).Info("durable store enabled")
	} else {
		logger.Info("DB_PATH not set; running without durable store")
	}

	hub := ws.NewHub(logger)
	feed := stream.NewFeed(cfg.WebSocket.SendBuffer, logger)
	chatService := chat.NewService(chat.Config{
		Rooms:              rooms,
		DefaultRoom:        cfg.Chat.DefaultRoom,
		HistoryLimit:       cfg.Chat.HistoryLimit,
		RoomHistoryLimits:  cfg.Chat.RoomHistoryLimits,
		SessionTTL:         cfg.Chat.SessionTTL,
		MaxOfflineSessions: cfg.Chat.MaxOfflineSessions,
	}, chat.Dispatchers{hub, feed}, chat.WithMirror(mirror), chat.WithLogger(logger))

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go chatService.RunJanitor(janitorCtx, cfg.Chat.SweepInterval)

	router := handler.NewRouter(cfg.WebSocket, chatService, hub, feed, db, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Long-lived SSE streams watch the request context; end them when
	// shutdown starts.
	streamCtx, stopStreams := context.WithCancel(context.Background())
	srv.BaseContext = func(net.Listener) context.Context { return streamCtx }
	srv.RegisterOnShutdown(stopStreams)

	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("z-chat backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
			"chat": func(ctx context.Context) error {
				stopJanitor()
				if err := hub.Shutdown(ctx); err != nil {
					logger.WithError(err).Warn("websocket clients did not close in time")
				}
				if err := chatService.Close(ctx); err != nil {
					logger.WithError(err).Warn("pending persistence writes dropped")
				}
				if db != nil {
					return db.Close()
				}
				return nil
			},
		},
	)

	exitCode := <-wait
	logger.WithField("code", exitCode).Info("z-chat backend stopped")
	os.Exit(exitCode)
}

// withStoredRooms appends rooms created in earlier runs to the static catalog.
func withStoredRooms(db *store.Store, rooms []model.Room, logger logrus.FieldLogger) []model.Room {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored, err := db.ListRooms(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to load stored rooms; using static catalog")
		return rooms
	}

	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		seen[room.ID] = struct{}{}
	}
	for _, room := range stored {
		if _, ok := seen[room.ID]; !ok {
			rooms = append(rooms, room)
		}
	}
	return rooms
}
