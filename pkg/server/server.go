// Package server provides the public entry point for initializing the chat
// widget server.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/agentoven/chatwidget/internal/api"
	"github.com/agentoven/chatwidget/internal/api/handlers"
	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/agentoven/chatwidget/internal/config"
	"github.com/agentoven/chatwidget/internal/engine"
	"github.com/agentoven/chatwidget/internal/retention"
	"github.com/agentoven/chatwidget/internal/sessions"
	"github.com/agentoven/chatwidget/internal/telemetry"
	"github.com/agentoven/chatwidget/internal/watch"

	"github.com/rs/zerolog/log"
)

// DefaultSessionID is the session seeded from the widget config file.
const DefaultSessionID = "default"

// Config is the public configuration for the chat widget server.
type Config struct {
	Port         int
	Version      string
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
	Engine       string
	WidgetFile   string
	WatchWidget  bool
}

// Server holds the initialized chat widget server.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Sessions holds every live chat session.
	Sessions *sessions.MemorySessionStore

	// Engines is the provider registry the active engine was selected from.
	Engines *engine.Registry

	// Watcher reloads the widget file into the default session; nil when
	// no file is configured or watching is disabled.
	Watcher *watch.Watcher

	// Janitor evicts idle sessions; run it alongside the HTTP server.
	Janitor *retention.Janitor

	// Config is the server configuration.
	Config *Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Port,
		Version:      cfg.Version,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Engine:       cfg.Engine,
		WidgetFile:   cfg.Widget.Path,
		WatchWidget:  cfg.Widget.Watch,
	}
}

// New initializes all components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}
	if pubCfg.Version != "" {
		cfg.Version = pubCfg.Version
	}
	if pubCfg.Engine != "" {
		cfg.Engine = pubCfg.Engine
	}
	cfg.Telemetry.Enabled = pubCfg.OTELEnabled
	cfg.Telemetry.OTLPEndpoint = pubCfg.OTELEndpoint
	cfg.Telemetry.ServiceName = pubCfg.ServiceName
	cfg.Widget = config.WidgetFileConfig{Path: pubCfg.WidgetFile, Watch: pubCfg.WatchWidget}

	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	registry := engine.NewRegistry()
	eng, err := registry.Get(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("select response engine: %w", err)
	}
	log.Info().Str("engine", eng.Name()).Msg("✅ Response engine initialized")

	delays := chat.Delays{
		ReplyMin: cfg.Chat.TypingDelayMin,
		ReplyMax: cfg.Chat.TypingDelayMax,
		Button:   cfg.Chat.ButtonReplyDelay,
	}
	store := sessions.NewMemorySessionStore(eng, chat.Options{Delays: &delays})
	log.Info().Msg("✅ In-memory session store initialized")

	watcher, err := seedDefaultSession(ctx, store, cfg.Widget)
	if err != nil {
		store.Close()
		return nil, err
	}

	h := handlers.New(store, eng, cfg.CORSOrigins)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Sessions:     store,
		Engines:      registry,
		Watcher:      watcher,
		Janitor:      retention.NewJanitor(store, cfg.Retention.SessionTTL, cfg.Retention.SweepInterval, DefaultSessionID),
		Config:       pubCfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// seedDefaultSession loads the widget file, if any, into the default session
// and starts watching it for changes.
func seedDefaultSession(ctx context.Context, store *sessions.MemorySessionStore, wf config.WidgetFileConfig) (*watch.Watcher, error) {
	if wf.Path == "" {
		return nil, nil
	}

	widget, err := config.LoadWidget(wf.Path)
	if err != nil {
		return nil, fmt.Errorf("load widget file: %w", err)
	}
	o, err := store.Create(ctx, DefaultSessionID, widget)
	if err != nil {
		return nil, fmt.Errorf("seed default session: %w", err)
	}
	log.Info().Str("file", wf.Path).Str("business", widget.Business.Name).Msg("✅ Default session seeded")

	if !wf.Watch {
		return nil, nil
	}
	w, err := watch.New(wf.Path, o)
	if err != nil {
		return nil, fmt.Errorf("watch widget file: %w", err)
	}
	return w, nil
}
