// Package chat runs live chat sessions: it owns the transcript, keeps the
// compiled knowledge base current and delivers delayed bot replies.
package chat

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/internal/knowledge"
	"github.com/agentoven/chatwidget/internal/personality"
	"github.com/agentoven/chatwidget/internal/resolver"
	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("chatwidget/chat")

// Delays controls the simulated typing latency.
type Delays struct {
	ReplyMin time.Duration // lower bound of the randomized reply delay
	ReplyMax time.Duration // upper bound of the randomized reply delay
	Button   time.Duration // fixed delay of the button acknowledgement
}

// DefaultDelays returns 1-2s reply latency and a 1s button acknowledgement.
func DefaultDelays() Delays {
	return Delays{ReplyMin: time.Second, ReplyMax: 2 * time.Second, Button: time.Second}
}

func (d Delays) reply(rnd func() float64) time.Duration {
	if d.ReplyMax <= d.ReplyMin {
		return d.ReplyMin
	}
	return d.ReplyMin + time.Duration(rnd()*float64(d.ReplyMax-d.ReplyMin))
}

// Options configures an Orchestrator. Zero fields take defaults.
type Options struct {
	Scheduler contracts.Scheduler
	Delays    *Delays
	Now       func() time.Time
	Rand      func() float64 // in [0,1); drives the reply delay
	NewID     func() string
}

// EventType classifies transcript events pushed to subscribers.
type EventType string

const (
	EventMessage EventType = "message" // a message was appended
	EventTyping  EventType = "typing"  // the typing indicator changed
	EventReset   EventType = "reset"   // the transcript was replaced
)

// Event is a transcript change pushed to subscribers.
type Event struct {
	Type     EventType        `json:"type"`
	Message  *models.Message  `json:"message,omitempty"`
	Typing   bool             `json:"typing,omitempty"`
	Messages []models.Message `json:"messages,omitempty"`
}

type delivery struct {
	epoch uint64
	msg   *models.Message // nil when the reply was cancelled
}

// Orchestrator is one chat session. Methods are safe for concurrent use.
//
// Replies are released in submission order: each scheduled reply takes a
// sequence number and is held back until every earlier reply has been
// released, whatever order the delays elapse in.
type Orchestrator struct {
	mu sync.Mutex

	id     string
	engine contracts.ResponseEngine
	sched  contracts.Scheduler
	delays Delays
	now    func() time.Time
	rnd    func() float64
	newID  func() string
	logger zerolog.Logger

	cfg        models.WidgetConfig
	knowledge  *knowledge.Cache
	compiled   models.CompiledKnowledge // knowledge for cfg, read by every turn
	welcomeFor *welcomeKey

	transcript []models.Message
	epoch      uint64 // bumped whenever the transcript is replaced
	nextSeq    uint64
	releaseSeq uint64
	ready      map[uint64]delivery
	cancels    map[uint64]func() bool
	awaiting   int // scheduled replies of the current epoch not yet released

	subs   []chan Event
	closed bool

	createdAt time.Time
	updatedAt time.Time
}

type welcomeKey struct {
	name        string
	personality models.Personality
}

// New creates a session for cfg. If cfg names a business the transcript
// starts with the welcome message.
func New(ctx context.Context, id string, engine contracts.ResponseEngine, cfg models.WidgetConfig, opts Options) *Orchestrator {
	o := &Orchestrator{
		id:        id,
		engine:    engine,
		sched:     opts.Scheduler,
		now:       opts.Now,
		rnd:       opts.Rand,
		newID:     opts.NewID,
		knowledge: knowledge.NewCache(engine.ProcessKnowledgeBase),
		ready:     make(map[uint64]delivery),
		cancels:   make(map[uint64]func() bool),
		logger:    log.With().Str("session", id).Logger(),
	}
	if o.sched == nil {
		o.sched = TimerScheduler{}
	}
	if opts.Delays != nil {
		o.delays = *opts.Delays
	} else {
		o.delays = DefaultDelays()
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.rnd == nil {
		o.rnd = rand.Float64
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	o.createdAt = o.now()
	o.updatedAt = o.createdAt

	o.mu.Lock()
	o.applyConfig(ctx, cfg)
	o.mu.Unlock()
	return o
}

// ID returns the session id.
func (o *Orchestrator) ID() string { return o.id }

// ── Configuration ────────────────────────────────────────────

// UpdateConfig replaces the configuration snapshot. The knowledge base is
// recompiled when its type or content changed, and the transcript is reset
// to a fresh welcome when the business name or personality changed.
func (o *Orchestrator) UpdateConfig(ctx context.Context, cfg models.WidgetConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.applyConfig(ctx, cfg)
}

// UpdateButtons replaces the response buttons with the result of edit,
// holding the session lock for the whole read-modify-write. edit receives a
// copy of the current list. When it returns an error nothing changes.
func (o *Orchestrator) UpdateButtons(ctx context.Context, edit func([]models.ResponseButton) ([]models.ResponseButton, error)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := edit(models.CloneButtons(o.cfg.ResponseButtons))
	if err != nil {
		return err
	}
	cfg := o.cfg.Clone()
	cfg.ResponseButtons = next
	o.applyConfig(ctx, cfg)
	return nil
}

func (o *Orchestrator) applyConfig(ctx context.Context, cfg models.WidgetConfig) {
	o.cfg = cfg.Clone()
	o.updatedAt = o.now()

	// Recompiles only when the knowledge source changed.
	o.compiled, _ = o.knowledge.Get(ctx, cfg.KnowledgeBase)

	if cfg.Business.Name == "" {
		return
	}
	key := welcomeKey{name: cfg.Business.Name, personality: cfg.Personality}
	if o.welcomeFor != nil && *o.welcomeFor == key {
		return
	}
	o.welcomeFor = &key
	o.resetLocked(models.Message{
		ID:        models.WelcomeMessageID,
		Text:      personality.Welcome(cfg.Business.Name, cfg.Personality),
		Sender:    models.SenderBot,
		Timestamp: o.now(),
	})
}

// resetLocked replaces the transcript with a single message and drops every
// reply still in flight.
func (o *Orchestrator) resetLocked(first models.Message) {
	o.epoch++
	for seq, cancel := range o.cancels {
		if cancel() {
			delete(o.cancels, seq)
			o.ready[seq] = delivery{epoch: o.epoch - 1}
		}
	}
	o.awaiting = 0
	o.transcript = []models.Message{first}
	o.releaseLocked()
	o.publishLocked(Event{Type: EventReset, Messages: o.messagesLocked()})
	o.logger.Info().Str("business", o.cfg.Business.Name).Str("personality", string(o.cfg.Personality)).Msg("Welcome message shown")
}

// Config returns the current configuration snapshot.
func (o *Orchestrator) Config() models.WidgetConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.Clone()
}

// KnowledgeStatus reports the result of the last knowledge-base compile.
func (o *Orchestrator) KnowledgeStatus() models.KnowledgeStatus {
	return o.knowledge.Status()
}

// ── Turns ────────────────────────────────────────────────────

// Submit appends the user's message and schedules the bot reply. Empty or
// whitespace-only text is ignored and Submit reports false.
//
// The reply is computed from the configuration and knowledge in effect at
// submission time, even if the configuration changes before it is delivered.
func (o *Orchestrator) Submit(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}

	o.appendLocked(models.Message{
		ID:        "user-" + o.newID(),
		Text:      text,
		Sender:    models.SenderUser,
		Timestamp: o.now(),
	})

	turn := contracts.TurnContext{Config: o.cfg.Clone(), Knowledge: o.compiled}
	replyCtx := context.WithoutCancel(ctx)
	o.scheduleLocked(o.delays.reply(o.rnd), func() *models.Message {
		return o.buildReply(replyCtx, text, turn)
	})
	return true
}

func (o *Orchestrator) buildReply(ctx context.Context, text string, turn contracts.TurnContext) *models.Message {
	ctx, span := tracer.Start(ctx, "chat.reply",
		trace.WithAttributes(
			attribute.String("chat.session", o.id),
			attribute.String("chat.personality", string(turn.Config.Personality)),
		),
	)
	defer span.End()

	msg := &models.Message{ID: "bot-" + o.newID(), Sender: models.SenderBot}
	res, err := o.engine.GenerateResponse(ctx, text, turn)
	if err != nil {
		span.RecordError(err)
		o.logger.Error().Err(err).Msg("Response engine failed")
		msg.Text = personality.Format(resolver.FallbackReply, turn.Config.Personality)
	} else {
		msg.Text = res.Reply
		if len(res.Buttons) > 0 {
			msg.Buttons = res.Buttons
		}
		span.SetAttributes(attribute.Int("chat.buttons", len(res.Buttons)))
	}
	return msg
}

// ClickButton echoes the button as a user message and schedules a fixed
// acknowledgement. The resolver is not consulted.
func (o *Orchestrator) ClickButton(_ context.Context, b models.ResponseButton) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.appendLocked(models.Message{
		ID:        "user-" + o.newID(),
		Text:      "You clicked: " + b.Text,
		Sender:    models.SenderUser,
		Timestamp: o.now(),
	})

	text := "I'll help you with \"" + b.Text + "\" right away!"
	o.scheduleLocked(o.delays.Button, func() *models.Message {
		return &models.Message{ID: "bot-" + o.newID(), Text: text, Sender: models.SenderBot}
	})
}

// FindButton looks a button up by id in the current configuration, then in
// buttons already shown in the transcript.
func (o *Orchestrator) FindButton(id string) (models.ResponseButton, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if b, ok := buttons.Find(o.cfg.ResponseButtons, id); ok {
		return b, true
	}
	for i := len(o.transcript) - 1; i >= 0; i-- {
		if b, ok := buttons.Find(o.transcript[i].Buttons, id); ok {
			return b, true
		}
	}
	return models.ResponseButton{}, false
}

func (o *Orchestrator) scheduleLocked(delay time.Duration, build func() *models.Message) {
	seq, epoch := o.nextSeq, o.epoch
	o.nextSeq++
	o.cancels[seq] = o.sched.Schedule(delay, func() {
		o.deliver(seq, epoch, build)
	})
	// The task is already pending once subscribers see the typing event.
	o.awaiting++
	if o.awaiting == 1 {
		o.publishLocked(Event{Type: EventTyping, Typing: true})
	}
}

func (o *Orchestrator) deliver(seq, epoch uint64, build func() *models.Message) {
	o.mu.Lock()
	stale := epoch != o.epoch || o.closed
	o.mu.Unlock()

	var msg *models.Message
	if !stale {
		msg = build()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, seq)
	o.ready[seq] = delivery{epoch: epoch, msg: msg}
	o.releaseLocked()
}

// releaseLocked appends ready replies in sequence order, stopping at the
// first reply that is still in flight.
func (o *Orchestrator) releaseLocked() {
	for {
		d, ok := o.ready[o.releaseSeq]
		if !ok {
			return
		}
		delete(o.ready, o.releaseSeq)
		o.releaseSeq++

		if d.epoch != o.epoch || d.msg == nil || o.closed {
			continue
		}
		d.msg.Timestamp = o.now()
		o.awaiting--
		o.appendLocked(*d.msg)
		if o.awaiting == 0 {
			o.publishLocked(Event{Type: EventTyping, Typing: false})
		}
	}
}

func (o *Orchestrator) appendLocked(m models.Message) {
	o.transcript = append(o.transcript, m)
	o.updatedAt = o.now()
	msg := m
	o.publishLocked(Event{Type: EventMessage, Message: &msg})
}

// ── Views ────────────────────────────────────────────────────

// Messages returns the transcript, followed by a typing placeholder while a
// reply is pending.
func (o *Orchestrator) Messages() []models.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messagesLocked()
}

func (o *Orchestrator) messagesLocked() []models.Message {
	out := make([]models.Message, len(o.transcript), len(o.transcript)+1)
	copy(out, o.transcript)
	if o.awaiting > 0 {
		out = append(out, models.Message{
			ID:        models.TypingMessageID,
			Sender:    models.SenderBot,
			Timestamp: o.now(),
			Typing:    true,
		})
	}
	return out
}

// State returns the current conversation state.
func (o *Orchestrator) State() models.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() models.SessionState {
	switch {
	case o.awaiting > 0:
		return models.SessionAwaitingReply
	case len(o.transcript) == 0:
		return models.SessionIdle
	default:
		return models.SessionWelcomeShown
	}
}

// Snapshot returns a point-in-time view of the session.
func (o *Orchestrator) Snapshot() models.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return models.Session{
		ID:        o.id,
		Title:     o.cfg.Title(),
		State:     o.stateLocked(),
		Config:    o.cfg.Clone(),
		Messages:  o.messagesLocked(),
		Knowledge: o.knowledge.Status(),
		CreatedAt: o.createdAt,
		UpdatedAt: o.updatedAt,
	}
}

// ── Subscriptions ────────────────────────────────────────────

// Subscribe returns a channel receiving transcript events. Slow subscribers
// miss events rather than block the session.
func (o *Orchestrator) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		close(ch)
		return ch
	}
	o.subs = append(o.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription.
func (o *Orchestrator) Unsubscribe(ch <-chan Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s == ch {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			close(s)
			return
		}
	}
}

func (o *Orchestrator) publishLocked(ev Event) {
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is too slow
		}
	}
}

// Close cancels pending replies and closes all subscriptions.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	for seq, cancel := range o.cancels {
		cancel()
		delete(o.cancels, seq)
	}
	o.awaiting = 0
	for _, ch := range o.subs {
		close(ch)
	}
	o.subs = nil
}
