package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the chat widget server.
type Config struct {
	Port        int
	Version     string
	Engine      string
	CORSOrigins []string
	Telemetry   TelemetryConfig
	Chat        ChatConfig
	Widget      WidgetFileConfig
	Retention   RetentionConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	SampleRatio  float64 // fraction of root traces kept; 1 keeps all
	Insecure     bool    // plaintext gRPC to the collector
}

// ChatConfig controls the simulated typing latency of bot replies.
type ChatConfig struct {
	TypingDelayMin   time.Duration
	TypingDelayMax   time.Duration
	ButtonReplyDelay time.Duration
}

// WidgetFileConfig points at an optional YAML widget configuration that
// seeds the default session.
type WidgetFileConfig struct {
	Path  string
	Watch bool
}

// RetentionConfig controls eviction of idle sessions.
type RetentionConfig struct {
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        envInt("CHATWIDGET_PORT", 8080),
		Version:     envStr("CHATWIDGET_VERSION", "0.1.0"),
		Engine:      envStr("CHATWIDGET_ENGINE", "local"),
		CORSOrigins: envList("CHATWIDGET_CORS_ORIGINS", []string{"*"}),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "chatwidget"),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
			Insecure:     envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Chat: ChatConfig{
			TypingDelayMin:   envDuration("CHATWIDGET_TYPING_DELAY_MIN", time.Second),
			TypingDelayMax:   envDuration("CHATWIDGET_TYPING_DELAY_MAX", 2*time.Second),
			ButtonReplyDelay: envDuration("CHATWIDGET_BUTTON_REPLY_DELAY", time.Second),
		},
		Widget: WidgetFileConfig{
			Path:  envStr("CHATWIDGET_WIDGET_FILE", ""),
			Watch: envBool("CHATWIDGET_WATCH", true),
		},
		Retention: RetentionConfig{
			SessionTTL:    envDuration("CHATWIDGET_SESSION_TTL", 24*time.Hour),
			SweepInterval: envDuration("CHATWIDGET_SESSION_SWEEP_INTERVAL", 10*time.Minute),
		},
	}
}

// LoadWidget reads a widget configuration from a YAML file and applies
// NormalizeWidget to it. A file that breaks the configuration rules is an
// error.
func LoadWidget(path string) (models.WidgetConfig, error) {
	cfg, err := ReadWidget(path)
	if err != nil {
		return cfg, err
	}
	cfg, err = NormalizeWidget(cfg)
	if err != nil {
		return cfg, fmt.Errorf("invalid widget config %s: %w", path, err)
	}
	return cfg, nil
}

// ReadWidget parses a widget YAML file without checking it.
func ReadWidget(path string) (models.WidgetConfig, error) {
	var cfg models.WidgetConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read widget config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse widget config %s: %w", path, err)
	}
	return cfg, nil
}

// NormalizeWidget fills in the default personality and knowledge type,
// rejects unknown personalities and invalid or duplicate buttons, and gives
// every button without an id a fresh one. The input is not modified.
func NormalizeWidget(cfg models.WidgetConfig) (models.WidgetConfig, error) {
	cfg = cfg.Clone()
	if cfg.Personality == "" {
		cfg.Personality = models.PersonalityFriendly
	}
	if !cfg.Personality.Valid() {
		return cfg, fmt.Errorf("unknown personality %q", cfg.Personality)
	}
	if cfg.KnowledgeBase.Type == "" {
		cfg.KnowledgeBase.Type = models.KnowledgeText
	}

	seen := make(map[string]bool, len(cfg.ResponseButtons))
	for i := range cfg.ResponseButtons {
		b := &cfg.ResponseButtons[i]
		if err := buttons.Validate(*b); err != nil {
			return cfg, fmt.Errorf("button %d: %w", i, err)
		}
		if b.ID == "" {
			b.ID = buttons.NewID()
		}
		if seen[b.ID] {
			return cfg, fmt.Errorf("button %d: %w: %s", i, buttons.ErrDuplicateID, b.ID)
		}
		seen[b.ID] = true
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
