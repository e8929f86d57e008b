// Package engine provides the response-engine registry and the built-in
// deterministic engine.
package engine

import (
	"context"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/internal/knowledge"
	"github.com/agentoven/chatwidget/internal/personality"
	"github.com/agentoven/chatwidget/internal/resolver"
	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/agentoven/chatwidget/pkg/models"
)

// LocalName is the provider name of LocalEngine.
const LocalName = "local"

// LocalEngine answers from the widget configuration alone: rule-based
// resolution, personality suffixes and keyword-triggered buttons.
// It is stateless and safe for concurrent use.
type LocalEngine struct{}

var _ contracts.ResponseEngine = LocalEngine{}

func (LocalEngine) Name() string { return LocalName }

func (LocalEngine) ProcessKnowledgeBase(_ context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error) {
	return knowledge.Compile(src)
}

// GenerateResponse runs button matching and reply resolution against the
// same utterance. The two are independent: matched buttons never change
// the reply text.
func (LocalEngine) GenerateResponse(_ context.Context, utterance string, turn contracts.TurnContext) (*models.TurnResult, error) {
	base := resolver.Resolve(utterance, turn.Knowledge, turn.Config.Business)
	return &models.TurnResult{
		Base:    base,
		Reply:   personality.Format(base, turn.Config.Personality),
		Buttons: buttons.Match(utterance, turn.Config.ResponseButtons),
	}, nil
}

// Reply compiles cfg's knowledge base and answers a single utterance.
// A knowledge-base compile error is returned alongside a valid result,
// since the reply degrades to "no knowledge" rather than failing.
func Reply(ctx context.Context, e contracts.ResponseEngine, cfg models.WidgetConfig, utterance string) (*models.TurnResult, error) {
	k, kerr := e.ProcessKnowledgeBase(ctx, cfg.KnowledgeBase)
	if kerr != nil {
		k = nil
	}
	res, err := e.GenerateResponse(ctx, utterance, contracts.TurnContext{Config: cfg, Knowledge: k})
	if err != nil {
		return nil, err
	}
	return res, kerr
}
