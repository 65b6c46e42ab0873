package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	defaultCoordinatorURL   = "http://localhost:3005"
	defaultPort             = "3005"
	defaultChunkSize        = 100 * 1024
	defaultAckWindow        = 5
	defaultMaxSessionSize   = 1536 * 1024 * 1024
	defaultAckTimeout       = 5 * time.Second
	defaultChannelTimeout   = 30 * time.Second
	defaultChannelThreshold = 64 * 1024
	defaultStunServer       = "stun.l.google.com:19302"
)

// Config holds peer and coordinator configuration. Fields are unexported to prevent modification.
type Config struct {
	userID             string
	coordinatorURL     string
	port               string
	chunkSize          int
	ackWindow          int
	maxSessionSize     int64
	ackTimeout         time.Duration
	channelTimeout     time.Duration
	channelThreshold   uint64
	stunServer         string
	downloadDir        string
	logFile            string
	serviceName        string
	serviceDisplayName string
	serviceDescription string
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	cfg := &Config{
		userID:             uuid.NewString(),
		coordinatorURL:     envOr("COORDINATOR_URL", defaultCoordinatorURL),
		port:               envOr("PORT", defaultPort),
		chunkSize:          int(bytesOr("CHUNK_SIZE", defaultChunkSize)),
		ackWindow:          intOr("ACK_WINDOW", defaultAckWindow),
		maxSessionSize:     int64(bytesOr("MAX_SESSION_SIZE", defaultMaxSessionSize)),
		ackTimeout:         durationOr("ACK_TIMEOUT", defaultAckTimeout),
		channelTimeout:     durationOr("CHANNEL_TIMEOUT", defaultChannelTimeout),
		channelThreshold:   bytesOr("CHANNEL_THRESHOLD", defaultChannelThreshold),
		stunServer:         envOr("STUN_SERVER", defaultStunServer),
		downloadDir:        envOr("DOWNLOAD_DIR", "."),
		logFile:            envOr("LOG_FILE", "filesharer.log"),
		serviceName:        envOr("SERVICE_NAME", "FileSharerCoordinator"),
		serviceDisplayName: envOr("SERVICE_DISPLAY_NAME", "File Sharer Coordinator"),
		serviceDescription: envOr("SERVICE_DESCRIPTION", "Room coordination and relay server for peer-to-peer file sharing"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func bytesOr(key string, fallback uint64) uint64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := humanize.ParseBytes(raw)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// Getter methods (immutable from outside)

func (c *Config) UserID() string {
	return c.userID
}

func (c *Config) CoordinatorURL() string {
	return c.coordinatorURL
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) ChunkSize() int {
	return c.chunkSize
}

func (c *Config) AckWindow() int {
	return c.ackWindow
}

func (c *Config) MaxSessionSize() int64 {
	return c.maxSessionSize
}

func (c *Config) AckTimeout() time.Duration {
	return c.ackTimeout
}

func (c *Config) ChannelTimeout() time.Duration {
	return c.channelTimeout
}

func (c *Config) ChannelThreshold() uint64 {
	return c.channelThreshold
}

func (c *Config) StunServer() string {
	return c.stunServer
}

func (c *Config) DownloadDir() string {
	return c.downloadDir
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}
