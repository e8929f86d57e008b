package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentoven/chatwidget/internal/engine"
	"github.com/agentoven/chatwidget/internal/knowledge"
	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/google/go-cmp/cmp"
)

// mockEngine is a test ResponseEngine.
type mockEngine struct {
	name string
}

func (m *mockEngine) Name() string { return m.name }
func (m *mockEngine) ProcessKnowledgeBase(ctx context.Context, src models.KnowledgeSource) (models.CompiledKnowledge, error) {
	return nil, nil
}
func (m *mockEngine) GenerateResponse(ctx context.Context, utterance string, turn contracts.TurnContext) (*models.TurnResult, error) {
	return &models.TurnResult{Base: "mock", Reply: "mock response from " + m.name}, nil
}

func TestReply_FriendlyGreeting(t *testing.T) {
	cfg := models.WidgetConfig{
		Business:    models.BusinessProfile{Name: "Acme"},
		Personality: models.PersonalityFriendly,
	}
	res, err := engine.Reply(context.Background(), engine.LocalEngine{}, cfg, "hello")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if want := "How can I help you today? 😊 Let me know if you need anything else!"; res.Reply != want {
		t.Errorf("Reply().Reply = %q, want %q", res.Reply, want)
	}
	if len(res.Buttons) != 0 {
		t.Errorf("Reply().Buttons = %v, want none", res.Buttons)
	}
}

func TestReply_JSONFAQProfessional(t *testing.T) {
	cfg := models.WidgetConfig{
		Business:    models.BusinessProfile{Name: "Acme"},
		Personality: models.PersonalityProfessional,
		KnowledgeBase: models.KnowledgeSource{
			Type:    models.KnowledgeJSON,
			Content: `{"faqs":[{"question":"what are your hours","answer":"9-5 M-F"}]}`,
		},
	}
	res, err := engine.Reply(context.Background(), engine.LocalEngine{}, cfg, "what are your hours")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if res.Base != "9-5 M-F" {
		t.Errorf("Reply().Base = %q, want %q", res.Base, "9-5 M-F")
	}
	if want := "9-5 M-F Please don't hesitate to ask if you require further assistance."; res.Reply != want {
		t.Errorf("Reply().Reply = %q, want %q", res.Reply, want)
	}
}

func TestReply_ButtonsIndependentOfReply(t *testing.T) {
	demo := models.ResponseButton{ID: "b1", Text: "Book a Demo", TriggerKeywords: []string{"demo", "schedule"}}
	cfg := models.WidgetConfig{
		Business:        models.BusinessProfile{Name: "Acme"},
		ResponseButtons: []models.ResponseButton{demo},
	}
	withButtons, err := engine.Reply(context.Background(), engine.LocalEngine{}, cfg, "can I schedule a demo")
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if diff := cmp.Diff([]models.ResponseButton{demo}, withButtons.Buttons); diff != "" {
		t.Errorf("Buttons mismatch (-want +got):\n%s", diff)
	}

	cfg.ResponseButtons = nil
	without, _ := engine.Reply(context.Background(), engine.LocalEngine{}, cfg, "can I schedule a demo")
	if without.Reply != withButtons.Reply {
		t.Errorf("Reply text changed with buttons: %q vs %q", withButtons.Reply, without.Reply)
	}
}

func TestReply_MalformedKnowledgeDegrades(t *testing.T) {
	cfg := models.WidgetConfig{
		KnowledgeBase: models.KnowledgeSource{Type: models.KnowledgeJSON, Content: `{"faqs": [`},
	}
	res, err := engine.Reply(context.Background(), engine.LocalEngine{}, cfg, "faqs")
	if !errors.Is(err, knowledge.ErrInvalidKnowledgeFormat) {
		t.Errorf("Reply() error = %v, want ErrInvalidKnowledgeFormat", err)
	}
	if res == nil {
		t.Fatal("Reply() result is nil, want fallback reply")
	}
	if res.Base != "I don't have specific information about that yet. Is there something else I can help with?" {
		t.Errorf("Reply().Base = %q, want fallback", res.Base)
	}
}

func TestRegistry_BuiltinLocal(t *testing.T) {
	r := engine.NewRegistry()
	e, err := r.Get("LOCAL")
	if err != nil {
		t.Fatalf("Get(LOCAL) error = %v", err)
	}
	if e.Name() != engine.LocalName {
		t.Errorf("Get().Name() = %q, want %q", e.Name(), engine.LocalName)
	}
	if diff := cmp.Diff([]string{"local"}, r.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_RegisterAndOverride(t *testing.T) {
	r := engine.NewRegistry()
	r.Register(&mockEngine{name: "custom"})
	r.Register(&mockEngine{name: "local"})

	for _, name := range []string{"custom", "local"} {
		e, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", name, err)
		}
		res, _ := e.GenerateResponse(context.Background(), "x", contracts.TurnContext{})
		if res.Reply != "mock response from "+name {
			t.Errorf("Get(%q) returned wrong engine: %q", name, res.Reply)
		}
	}
}

func TestRegistry_Unsupported(t *testing.T) {
	r := engine.NewRegistry()
	e, err := r.Get("openai")
	if e != nil {
		t.Errorf("Get(openai) = %v, want nil", e)
	}
	if !errors.Is(err, engine.ErrUnsupportedProvider) {
		t.Errorf("Get(openai) error = %v, want ErrUnsupportedProvider", err)
	}
}
