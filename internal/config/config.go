package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	Chat      ChatConfig
	WebSocket WebSocketConfig
	Store     StoreConfig
	Log       LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ws, err := loadWebSocketConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	log, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Chat: chat, WebSocket: ws, Store: store, Log: log}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ChatConfig 描述房间历史与会话保留策略。
type ChatConfig struct {
	DefaultRoom        string
	HistoryLimit       int
	RoomHistoryLimits  map[string]int
	SessionTTL         time.Duration
	MaxOfflineSessions int
	SweepInterval      time.Duration
}

func loadChatConfig() (ChatConfig, error) {
	historyLimit, err := parseIntEnv("CHAT_HISTORY_LIMIT", 100)
	if err != nil {
		return ChatConfig{}, err
	}
	if historyLimit < 1 {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_HISTORY_LIMIT value %d: must be positive", historyLimit)
	}

	roomLimits, err := parseLimitsEnv("CHAT_ROOM_HISTORY_LIMITS", "")
	if err != nil {
		return ChatConfig{}, err
	}

	ttl, err := parseDurationEnv("CHAT_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return ChatConfig{}, err
	}

	maxOffline, err := parseIntEnv("CHAT_MAX_OFFLINE_SESSIONS", 1000)
	if err != nil {
		return ChatConfig{}, err
	}

	sweep, err := parseDurationEnv("CHAT_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return ChatConfig{}, err
	}
	if sweep <= 0 {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_SWEEP_INTERVAL value %s: must be positive", sweep)
	}

	return ChatConfig{
		DefaultRoom:        getEnvOrDefault("CHAT_DEFAULT_ROOM", "general"),
		HistoryLimit:       historyLimit,
		RoomHistoryLimits:  roomLimits,
		SessionTTL:         ttl,
		MaxOfflineSessions: maxOffline,
		SweepInterval:      sweep,
	}, nil
}

// WebSocketConfig 描述 /ws 连接的限制。MaxMessageSize 低于单条合法消息所需的帧大小时，
// 由 ws 处理器自动提升。
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxMessageSize int64
	SendBuffer     int
	RateLimit      float64
	RateBurst      int
}

func loadWebSocketConfig() (WebSocketConfig, error) {
	maxSize, err := parseIntEnv("WS_MAX_MESSAGE_SIZE", 64*1024)
	if err != nil {
		return WebSocketConfig{}, err
	}

	sendBuffer, err := parseIntEnv("WS_SEND_BUFFER", 256)
	if err != nil {
		return WebSocketConfig{}, err
	}
	if sendBuffer < 1 {
		sendBuffer = 1
	}

	rateLimit, err := parseFloatEnv("WS_RATE_LIMIT", 10)
	if err != nil {
		return WebSocketConfig{}, err
	}

	rateBurst, err := parseIntEnv("WS_RATE_BURST", 20)
	if err != nil {
		return WebSocketConfig{}, err
	}

	return WebSocketConfig{
		AllowedOrigins: parseListEnv("ALLOWED_ORIGINS"),
		MaxMessageSize: int64(maxSize),
		SendBuffer:     sendBuffer,
		RateLimit:      rateLimit,
		RateBurst:      rateBurst,
	}, nil
}

// StoreConfig 描述持久化存储配置，DB_PATH 为空时不启用。
type StoreConfig struct {
	Enabled   bool
	DSN       string
	QueueSize int
}

func loadStoreConfig() (StoreConfig, error) {
	queueSize, err := parseIntEnv("STORE_QUEUE_SIZE", 256)
	if err != nil {
		return StoreConfig{}, err
	}
	if queueSize < 1 {
		queueSize = 1
	}

	dsn := strings.TrimSpace(os.Getenv("DB_PATH"))
	return StoreConfig{
		Enabled:   dsn != "",
		DSN:       dsn,
		QueueSize: queueSize,
	}, nil
}

// LogConfig 描述日志级别与格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() (LogConfig, error) {
	format := strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text"))
	if format != "text" && format != "json" {
		return LogConfig{}, fmt.Errorf("invalid LOG_FORMAT value %q: want text or json", format)
	}

	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: format,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseListEnv(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseLimitsEnv 解析以逗号分隔的 "room=limit" 列表，未设置时返回空表。
func parseLimitsEnv(key, defaultValue string) (map[string]int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = defaultValue
	}

	limits := make(map[string]int)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		room, value, ok := strings.Cut(part, "=")
		room = strings.TrimSpace(room)
		if !ok || room == "" {
			return nil, fmt.Errorf("invalid %s entry %q: want room=limit", key, part)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid %s entry %q: limit must be a positive integer", key, part)
		}
		limits[room] = limit
	}
	return limits, nil
}
