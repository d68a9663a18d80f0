// Package config loads clef's runtime configuration from the environment,
// applying sane defaults and returning descriptive, aggregated errors for
// invalid overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultChatAddr is the default host:port of the chat server.
	DefaultChatAddr = "irc.example-chat.tv:6697"
	// DefaultWebAddr is the default bind address for the web/API surface.
	DefaultWebAddr = ":8000"
	// DefaultPingInterval controls the keepalive cadence for the chat connection.
	DefaultPingInterval = 60 * time.Second
	// DefaultPongTimeout bounds how long a PING may go unanswered before the
	// chat loop treats the connection as dead.
	DefaultPongTimeout = 5 * time.Second

	// DefaultChatRateLimitPerSecond caps steady-state outbound chat throughput.
	DefaultChatRateLimitPerSecond = 1.0
	// DefaultChatRateLimitBurst bounds how many messages may be sent back to back.
	DefaultChatRateLimitBurst = 5

	// DefaultIdleThreshold is the number of non-streamer messages required
	// before the bot is considered non-idle again.
	DefaultIdleThreshold = 5

	// DefaultRoleRefreshInterval controls how often moderator/VIP sets refresh.
	DefaultRoleRefreshInterval = 5 * time.Minute

	// DefaultReconnectBackoffMin is the initial reconnect delay.
	DefaultReconnectBackoffMin = 100 * time.Millisecond
	// DefaultReconnectBackoffMax is the default for Chat.ReconnectBackoffMax.
	// The chat loop's reconnect delay is capped at a fixed 120s and does not
	// read this field.
	DefaultReconnectBackoffMax = 120 * time.Second

	// DefaultLogLevel controls verbosity for clef's logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "clef.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultScriptDir is where hot-loaded command scripts are read from.
	DefaultScriptDir = "scripts"
	// DefaultSettingsSchemaPath points at the YAML settings schema document.
	DefaultSettingsSchemaPath = "settings.yaml"
	// DefaultHistoryDir is where the chat/event history log is written.
	DefaultHistoryDir = "history"

	// DefaultOAuthPendingTTL bounds how long a pending OAuth state lives
	// before the redirect server forgets it.
	DefaultOAuthPendingTTL = 5 * time.Minute
)

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ChatConfig groups the settings needed to join and stay connected to the
// streamer's chat channel.
type ChatConfig struct {
	Addr               string
	BotLogin           string
	StreamerLogin      string
	PingInterval       time.Duration
	PongTimeout        time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
	RoleRefreshInterval time.Duration
	ReconnectBackoffMin time.Duration
	ReconnectBackoffMax time.Duration
	JoinMessage         string
	LeaveMessage        string
}

// OAuthConfig groups the fields needed to run the local OAuth redirect server
// and exchange authorization codes with the platform and Spotify.
type OAuthConfig struct {
	RedirectAddr   string
	RedirectPath   string
	PlatformID     string
	PlatformSecret string
	SpotifyID      string
	SpotifySecret  string
	PendingTTL     time.Duration
}

// Config captures all runtime tunables for the clef process.
type Config struct {
	WebAddr         string
	DatabaseDSN     string
	TLSCertPath     string
	TLSKeyPath      string
	IdleThreshold   int
	ScriptDir       string
	SettingsSchema  string
	HistoryDir      string
	Logging         LoggingConfig
	Chat            ChatConfig
	OAuth           OAuthConfig
}

// Load reads clef's configuration from environment variables, applying sane
// defaults and returning a single error aggregating every invalid override.
func Load() (*Config, error) {
	cfg := &Config{
		WebAddr:        getString("CLEF_WEB_ADDR", DefaultWebAddr),
		DatabaseDSN:    strings.TrimSpace(os.Getenv("CLEF_DATABASE_DSN")),
		TLSCertPath:    strings.TrimSpace(os.Getenv("CLEF_TLS_CERT")),
		TLSKeyPath:     strings.TrimSpace(os.Getenv("CLEF_TLS_KEY")),
		IdleThreshold:  DefaultIdleThreshold,
		ScriptDir:      getString("CLEF_SCRIPT_DIR", DefaultScriptDir),
		SettingsSchema: getString("CLEF_SETTINGS_SCHEMA", DefaultSettingsSchemaPath),
		HistoryDir:     getString("CLEF_HISTORY_DIR", DefaultHistoryDir),
		Logging: LoggingConfig{
			Level:      getString("CLEF_LOG_LEVEL", DefaultLogLevel),
			Path:       getString("CLEF_LOG_PATH", DefaultLogPath),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		Chat: ChatConfig{
			Addr:                getString("CLEF_CHAT_ADDR", DefaultChatAddr),
			BotLogin:            strings.TrimSpace(os.Getenv("CLEF_BOT_LOGIN")),
			StreamerLogin:       strings.TrimSpace(os.Getenv("CLEF_STREAMER_LOGIN")),
			PingInterval:        DefaultPingInterval,
			PongTimeout:         DefaultPongTimeout,
			RateLimitPerSecond:  DefaultChatRateLimitPerSecond,
			RateLimitBurst:      DefaultChatRateLimitBurst,
			RoleRefreshInterval: DefaultRoleRefreshInterval,
			ReconnectBackoffMin: DefaultReconnectBackoffMin,
			ReconnectBackoffMax: DefaultReconnectBackoffMax,
			JoinMessage:         strings.TrimSpace(os.Getenv("CLEF_JOIN_MESSAGE")),
			LeaveMessage:        strings.TrimSpace(os.Getenv("CLEF_LEAVE_MESSAGE")),
		},
		OAuth: OAuthConfig{
			RedirectAddr:   getString("CLEF_OAUTH_ADDR", ":18000"),
			RedirectPath:   getString("CLEF_OAUTH_PATH", "/callback"),
			PlatformID:     strings.TrimSpace(os.Getenv("CLEF_PLATFORM_CLIENT_ID")),
			PlatformSecret: strings.TrimSpace(os.Getenv("CLEF_PLATFORM_CLIENT_SECRET")),
			SpotifyID:      strings.TrimSpace(os.Getenv("CLEF_SPOTIFY_CLIENT_ID")),
			SpotifySecret:  strings.TrimSpace(os.Getenv("CLEF_SPOTIFY_CLIENT_SECRET")),
			PendingTTL:     DefaultOAuthPendingTTL,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("CLEF_IDLE_THRESHOLD")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_IDLE_THRESHOLD must be a positive integer, got %q", raw))
		} else {
			cfg.IdleThreshold = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_CHAT_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_CHAT_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.Chat.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_CHAT_RATE_LIMIT_PER_SECOND")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_CHAT_RATE_LIMIT_PER_SECOND must be a positive number, got %q", raw))
		} else {
			cfg.Chat.RateLimitPerSecond = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_CHAT_RATE_LIMIT_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_CHAT_RATE_LIMIT_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.Chat.RateLimitBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_RECONNECT_BACKOFF_MAX")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_RECONNECT_BACKOFF_MAX must be a positive duration, got %q", raw))
		} else {
			cfg.Chat.ReconnectBackoffMax = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("CLEF_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("CLEF_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CLEF_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("CLEF_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "CLEF_TLS_CERT and CLEF_TLS_KEY must be provided together")
	}

	if cfg.DatabaseDSN == "" {
		problems = append(problems, "CLEF_DATABASE_DSN must be set")
	}

	if cfg.Chat.BotLogin == "" {
		problems = append(problems, "CLEF_BOT_LOGIN must be set")
	}

	if cfg.Chat.StreamerLogin == "" {
		problems = append(problems, "CLEF_STREAMER_LOGIN must be set")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
