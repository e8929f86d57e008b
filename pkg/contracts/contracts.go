// Package contracts defines the service interfaces of the chat widget engine.
//
// The HTTP handlers and the conversation orchestrator depend on these
// interfaces, so a different reply backend or scheduling model is a single
// line change in the wiring code (pkg/server).
package contracts

import (
	"context"
	"time"

	"github.com/agentoven/chatwidget/pkg/models"
)

// ── Response Engine ─────────────────────────────────────────

// TurnContext carries everything a ResponseEngine needs for one reply.
// Knowledge is the already compiled knowledge base; nil means none.
type TurnContext struct {
	Config    models.WidgetConfig
	Knowledge models.CompiledKnowledge
}

// ResponseEngine produces bot replies.
// Built-in implementation: internal/engine.LocalEngine (deterministic rules).
type ResponseEngine interface {
	// Name returns the provider name the engine is registered under.
	Name() string

	// ProcessKnowledgeBase compiles raw knowledge-base input.
	// A nil result with a nil error means "no knowledge".
	ProcessKnowledgeBase(ctx context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error)

	// GenerateResponse produces the styled reply and matched buttons for one utterance.
	GenerateResponse(ctx context.Context, utterance string, turn TurnContext) (*models.TurnResult, error)
}

// ── Scheduler ───────────────────────────────────────────────

// Scheduler runs a task after a delay without blocking the caller.
// Implementations must never run the task before Schedule has returned.
type Scheduler interface {
	// Schedule arranges for task to run after delay. The returned function
	// cancels the task and reports whether it was stopped before running.
	Schedule(delay time.Duration, task func()) (cancel func() bool)
}
