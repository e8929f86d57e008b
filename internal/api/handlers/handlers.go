// Package handlers implements the HTTP handlers for the chat widget API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/agentoven/chatwidget/internal/config"
	"github.com/agentoven/chatwidget/internal/embed"
	"github.com/agentoven/chatwidget/internal/knowledge"
	"github.com/agentoven/chatwidget/internal/personality"
	"github.com/agentoven/chatwidget/internal/sessions"
	"github.com/agentoven/chatwidget/pkg/contracts"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Sessions *sessions.MemorySessionStore
	Engine   contracts.ResponseEngine

	// AllowedOrigins restricts WebSocket upgrades; empty or "*" allows all.
	AllowedOrigins []string
}

// New creates a new Handlers instance.
func New(sess *sessions.MemorySessionStore, e contracts.ResponseEngine, allowedOrigins []string) *Handlers {
	return &Handlers{Sessions: sess, Engine: e, AllowedOrigins: allowedOrigins}
}

// ── Catalog ─────────────────────────────────────────────────

func (h *Handlers) ListPersonalities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, personality.Options())
}

// ── Preview ─────────────────────────────────────────────────

type previewRequest struct {
	Config    models.WidgetConfig `json:"config"`
	Utterance string              `json:"utterance"`
}

type previewResponse struct {
	Reply     string                  `json:"reply"`
	Base      string                  `json:"base"`
	Buttons   []models.ResponseButton `json:"buttons"`
	Knowledge models.KnowledgeStatus  `json:"knowledge"`
}

// PreviewReply answers one utterance against a configuration without
// creating a session.
func (h *Handlers) PreviewReply(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	cfg, err := config.NormalizeWidget(req.Config)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	k, kerr := h.Engine.ProcessKnowledgeBase(r.Context(), cfg.KnowledgeBase)
	if kerr != nil {
		k = nil
	}
	res, err := h.Engine.GenerateResponse(r.Context(), req.Utterance, contracts.TurnContext{Config: cfg, Knowledge: k})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	btns := res.Buttons
	if btns == nil {
		btns = []models.ResponseButton{}
	}
	respondJSON(w, http.StatusOK, previewResponse{
		Reply:     res.Reply,
		Base:      res.Base,
		Buttons:   btns,
		Knowledge: knowledge.Status(k, kerr),
	})
}

// ── Widgets ─────────────────────────────────────────────────

type createWidgetRequest struct {
	ID     string              `json:"id"`
	Config models.WidgetConfig `json:"config"`
}

func (h *Handlers) ListWidgets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Sessions.List(r.Context()))
}

func (h *Handlers) CreateWidget(w http.ResponseWriter, r *http.Request) {
	var req createWidgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := config.NormalizeWidget(req.Config)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.Sessions.Create(r.Context(), req.ID, cfg)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, o.Snapshot())
}

func (h *Handlers) GetWidget(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, o.Snapshot())
}

// UpdateWidgetConfig replaces the widget configuration wholesale.
func (h *Handlers) UpdateWidgetConfig(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}

	var cfg models.WidgetConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := config.NormalizeWidget(cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	o.UpdateConfig(r.Context(), cfg)
	respondJSON(w, http.StatusOK, o.Snapshot())
}

func (h *Handlers) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Delete(r.Context(), id); err != nil {
		respondSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetEmbed(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	cfg := o.Config()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(embed.Render(cfg.Business.Name, cfg.Personality)))
}

// ── Messages ────────────────────────────────────────────────

type messageRequest struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	State    models.SessionState `json:"state"`
	Messages []models.Message    `json:"messages"`
}

// PostMessage submits a user message. Blank text is a no-op (204).
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !o.Submit(r.Context(), req.Text) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusAccepted, transcript(o))
}

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, transcript(o))
}

// ── Buttons ─────────────────────────────────────────────────

var errButtonNotFound = errors.New("button not found")

type buttonRequest struct {
	Text            string             `json:"text"`
	TriggerKeywords []string           `json:"trigger_keywords"`
	Action          string             `json:"action"`
	Style           models.ButtonStyle `json:"style"`
}

func (h *Handlers) AddButton(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}

	var req buttonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	b, err := buttons.NewButton(req.Text, req.TriggerKeywords, req.Action, req.Style)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	o.UpdateButtons(r.Context(), func(list []models.ResponseButton) ([]models.ResponseButton, error) {
		return buttons.Add(list, b), nil
	})

	log.Info().Str("session", o.ID()).Str("button", b.ID).Msg("Response button added")
	respondJSON(w, http.StatusCreated, b)
}

func (h *Handlers) RemoveButton(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	buttonID := chi.URLParam(r, "buttonId")

	err := o.UpdateButtons(r.Context(), func(list []models.ResponseButton) ([]models.ResponseButton, error) {
		if _, found := buttons.Find(list, buttonID); !found {
			return nil, errButtonNotFound
		}
		return buttons.Remove(list, buttonID), nil
	})
	if err != nil {
		respondError(w, http.StatusNotFound, "button not found: "+buttonID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ClickButton(w http.ResponseWriter, r *http.Request) {
	o, ok := h.session(w, r)
	if !ok {
		return
	}
	buttonID := chi.URLParam(r, "buttonId")

	b, found := o.FindButton(buttonID)
	if !found {
		respondError(w, http.StatusNotFound, "button not found: "+buttonID)
		return
	}
	o.ClickButton(r.Context(), b)
	respondJSON(w, http.StatusAccepted, transcript(o))
}

// ── Helpers ─────────────────────────────────────────────────

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*chat.Orchestrator, bool) {
	o, err := h.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return nil, false
	}
	return o, true
}

func transcript(o *chat.Orchestrator) transcriptResponse {
	return transcriptResponse{State: o.State(), Messages: o.Messages()}
}

func respondSessionError(w http.ResponseWriter, err error) {
	var nf *sessions.NotFoundError
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
