// Package models defines the data types shared by the chat widget engine,
// the HTTP API and the CLI.
package models

import (
	"time"
)

// ── Personality ──────────────────────────────────────────────

// Personality is the tone profile applied to every bot reply.
type Personality string

const (
	PersonalityFriendly     Personality = "friendly"
	PersonalityProfessional Personality = "professional"
	PersonalityHumorous     Personality = "humorous"
	PersonalityCasual       Personality = "casual"
	PersonalityFormal       Personality = "formal"
)

// Personalities lists the known personalities in display order.
var Personalities = []Personality{
	PersonalityFriendly,
	PersonalityProfessional,
	PersonalityHumorous,
	PersonalityCasual,
	PersonalityFormal,
}

// Valid reports whether p is one of the known personalities.
func (p Personality) Valid() bool {
	for _, known := range Personalities {
		if p == known {
			return true
		}
	}
	return false
}

// PersonalityOption describes a personality for selection UIs.
type PersonalityOption struct {
	ID          Personality `json:"id"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
}

// ── Business ─────────────────────────────────────────────────

// BusinessProfile identifies the business the widget speaks for.
type BusinessProfile struct {
	Name        string `json:"name" yaml:"name"`
	Industry    string `json:"industry" yaml:"industry"`
	Description string `json:"description" yaml:"description"`
}

// ── Knowledge Base ───────────────────────────────────────────

// KnowledgeType selects how raw knowledge-base content is interpreted.
type KnowledgeType string

const (
	KnowledgeText KnowledgeType = "text"
	KnowledgeURL  KnowledgeType = "url"
	KnowledgeJSON KnowledgeType = "json"
)

// KnowledgeSource is the raw knowledge-base input as configured by the user.
type KnowledgeSource struct {
	Content string        `json:"content" yaml:"content"`
	Type    KnowledgeType `json:"type" yaml:"type"`
}

// CompiledKnowledge is the queryable form of a KnowledgeSource.
// Exactly one of TextKnowledge, URLKnowledge or JSONKnowledge implements it
// for a given compile, so fields of an inactive type are never consulted.
type CompiledKnowledge interface {
	KnowledgeType() KnowledgeType
	sealed()
}

// TextKnowledge holds plain text split on blank lines.
type TextKnowledge struct {
	Raw    string   `json:"raw"`
	Chunks []string `json:"chunks"`
}

// URLKnowledge holds the (simulated) content fetched from a URL.
type URLKnowledge struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// JSONKnowledge holds a strictly parsed JSON document.
type JSONKnowledge struct {
	Raw  string   `json:"raw"`
	Data any      `json:"data"`
	Keys []string `json:"keys"` // top-level keys, for introspection only
}

func (*TextKnowledge) KnowledgeType() KnowledgeType { return KnowledgeText }
func (*URLKnowledge) KnowledgeType() KnowledgeType  { return KnowledgeURL }
func (*JSONKnowledge) KnowledgeType() KnowledgeType { return KnowledgeJSON }

func (*TextKnowledge) sealed() {}
func (*URLKnowledge) sealed()  {}
func (*JSONKnowledge) sealed() {}

// KnowledgeStatus summarizes the last compile for display next to the editor.
type KnowledgeStatus struct {
	Available bool          `json:"available"`
	Type      KnowledgeType `json:"type,omitempty"`
	Chunks    int           `json:"chunks,omitempty"`
	Keys      []string      `json:"keys,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ── Response Buttons ─────────────────────────────────────────

// ButtonStyle controls how a response button is rendered.
type ButtonStyle string

const (
	ButtonPrimary   ButtonStyle = "primary"
	ButtonSecondary ButtonStyle = "secondary"
	ButtonText      ButtonStyle = "text"
)

// ResponseButton is surfaced under a bot reply when one of its trigger
// keywords appears in the user's message.
type ResponseButton struct {
	ID              string      `json:"id" yaml:"id"`
	Text            string      `json:"text" yaml:"text"`
	TriggerKeywords []string    `json:"trigger_keywords" yaml:"trigger_keywords"`
	Action          string      `json:"action,omitempty" yaml:"action"` // URL or opaque token; empty means no action
	Style           ButtonStyle `json:"style,omitempty" yaml:"style"`
}

// EffectiveStyle returns the button style, defaulting to primary.
func (b ResponseButton) EffectiveStyle() ButtonStyle {
	if b.Style == "" {
		return ButtonPrimary
	}
	return b.Style
}

// ── Widget Configuration ─────────────────────────────────────

// DefaultTitle is shown in the chat header when no business name is set.
const DefaultTitle = "AI Chatbot"

// WidgetConfig is the full configuration snapshot of one chat widget.
// It is replaced wholesale on every edit and never mutated by the engine.
type WidgetConfig struct {
	Business        BusinessProfile  `json:"business" yaml:"business"`
	Personality     Personality      `json:"personality" yaml:"personality"`
	KnowledgeBase   KnowledgeSource  `json:"knowledge_base" yaml:"knowledge_base"`
	ResponseButtons []ResponseButton `json:"response_buttons" yaml:"response_buttons"`
}

// Title returns the chat header title.
func (c WidgetConfig) Title() string {
	if c.Business.Name != "" {
		return c.Business.Name
	}
	return DefaultTitle
}

// Clone returns a copy that shares no slices with c.
func (c WidgetConfig) Clone() WidgetConfig {
	out := c
	out.ResponseButtons = CloneButtons(c.ResponseButtons)
	return out
}

// CloneButtons deep-copies a button list.
func CloneButtons(in []ResponseButton) []ResponseButton {
	if in == nil {
		return nil
	}
	out := make([]ResponseButton, len(in))
	for i, b := range in {
		b.TriggerKeywords = append([]string(nil), b.TriggerKeywords...)
		out[i] = b
	}
	return out
}

// ── Messages ─────────────────────────────────────────────────

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// WelcomeMessageID is the fixed id of the welcome message.
const WelcomeMessageID = "welcome"

// TypingMessageID is the id of the transient typing placeholder.
const TypingMessageID = "typing"

// Message is one entry of a chat transcript.
type Message struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	Sender    Sender           `json:"sender"`
	Timestamp time.Time        `json:"timestamp"`
	Buttons   []ResponseButton `json:"buttons,omitempty"` // bot messages only, only when at least one matched
	Typing    bool             `json:"typing,omitempty"`
}

// TurnResult is the outcome of generating one bot reply.
type TurnResult struct {
	Base    string           `json:"base"`
	Reply   string           `json:"reply"`
	Buttons []ResponseButton `json:"buttons,omitempty"`
}

// ── Sessions ─────────────────────────────────────────────────

// SessionState tracks where a chat session is in its conversation cycle.
type SessionState string

const (
	SessionIdle          SessionState = "idle"
	SessionWelcomeShown  SessionState = "welcome_shown"
	SessionAwaitingReply SessionState = "awaiting_reply"
)

// Session is a point-in-time view of one chat session.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	State     SessionState    `json:"state"`
	Config    WidgetConfig    `json:"config"`
	Messages  []Message       `json:"messages"`
	Knowledge KnowledgeStatus `json:"knowledge"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
