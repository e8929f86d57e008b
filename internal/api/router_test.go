package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentoven/chatwidget/internal/api"
	"github.com/agentoven/chatwidget/internal/api/handlers"
	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/agentoven/chatwidget/internal/config"
	"github.com/agentoven/chatwidget/internal/engine"
	"github.com/agentoven/chatwidget/internal/sessions"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
)

type testEnv struct {
	srv   *httptest.Server
	sched *chat.ManualScheduler
	store *sessions.MemorySessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sched := chat.NewManualScheduler()
	store := sessions.NewMemorySessionStore(engine.LocalEngine{}, chat.Options{Scheduler: sched})
	h := handlers.New(store, engine.LocalEngine{}, nil)
	cfg := &config.Config{Version: "test", CORSOrigins: []string{"*"}}

	srv := httptest.NewServer(api.NewRouter(cfg, h))
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return &testEnv{srv: srv, sched: sched, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func acme() models.WidgetConfig {
	return models.WidgetConfig{
		Business:    models.BusinessProfile{Name: "Acme", Industry: "retail"},
		Personality: models.PersonalityFriendly,
		ResponseButtons: []models.ResponseButton{
			{ID: "demo", Text: "Book a Demo", TriggerKeywords: []string{"demo"}},
		},
	}
}

func (e *testEnv) createWidget(t *testing.T, id string) models.Session {
	t.Helper()
	var s models.Session
	if code := e.do(t, http.MethodPost, "/api/v1/widgets", map[string]any{"id": id, "config": acme()}, &s); code != http.StatusCreated {
		t.Fatalf("create widget status = %d, want %d", code, http.StatusCreated)
	}
	return s
}

func TestHealthAndVersion(t *testing.T) {
	e := newTestEnv(t)

	var health map[string]string
	if code := e.do(t, http.MethodGet, "/health", nil, &health); code != http.StatusOK || health["status"] != "healthy" {
		t.Errorf("GET /health = %d %v", code, health)
	}
	var version map[string]string
	e.do(t, http.MethodGet, "/version", nil, &version)
	if version["version"] != "test" {
		t.Errorf("version = %q, want %q", version["version"], "test")
	}
}

func TestListPersonalities(t *testing.T) {
	e := newTestEnv(t)
	var opts []models.PersonalityOption
	e.do(t, http.MethodGet, "/api/v1/personalities", nil, &opts)
	if len(opts) != 5 || opts[0].ID != models.PersonalityFriendly {
		t.Errorf("personalities = %+v", opts)
	}
}

func TestPreviewReply(t *testing.T) {
	e := newTestEnv(t)

	var got struct {
		Reply   string                  `json:"reply"`
		Base    string                  `json:"base"`
		Buttons []models.ResponseButton `json:"buttons"`
	}
	code := e.do(t, http.MethodPost, "/api/v1/preview/reply", map[string]any{
		"config":    acme(),
		"utterance": "hello, can I get a demo",
	}, &got)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if got.Base != "How can I help you today?" {
		t.Errorf("base = %q", got.Base)
	}
	if got.Reply != "How can I help you today? 😊 Let me know if you need anything else!" {
		t.Errorf("reply = %q", got.Reply)
	}
	if len(got.Buttons) != 1 || got.Buttons[0].ID != "demo" {
		t.Errorf("buttons = %+v", got.Buttons)
	}
}

func TestPreviewReply_MalformedKnowledge(t *testing.T) {
	e := newTestEnv(t)
	cfg := acme()
	cfg.KnowledgeBase = models.KnowledgeSource{Type: models.KnowledgeJSON, Content: "{"}

	var got struct {
		Reply     string                 `json:"reply"`
		Knowledge models.KnowledgeStatus `json:"knowledge"`
	}
	e.do(t, http.MethodPost, "/api/v1/preview/reply", map[string]any{"config": cfg, "utterance": "returns"}, &got)
	if got.Knowledge.Error != "Invalid JSON format. Please check your syntax." {
		t.Errorf("knowledge = %+v", got.Knowledge)
	}
	if !strings.HasPrefix(got.Reply, "I don't have specific information") {
		t.Errorf("reply = %q, want fallback", got.Reply)
	}
}

func TestWidgetLifecycle(t *testing.T) {
	e := newTestEnv(t)

	s := e.createWidget(t, "w1")
	if s.State != models.SessionWelcomeShown || len(s.Messages) != 1 || s.Title != "Acme" {
		t.Errorf("created session = %+v", s)
	}

	if code := e.do(t, http.MethodPost, "/api/v1/widgets", map[string]any{"id": "w1", "config": acme()}, nil); code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want %d", code, http.StatusConflict)
	}

	var list []models.Session
	e.do(t, http.MethodGet, "/api/v1/widgets", nil, &list)
	if len(list) != 1 {
		t.Errorf("list len = %d, want 1", len(list))
	}

	cfg := acme()
	cfg.Personality = models.PersonalityFormal
	var updated models.Session
	if code := e.do(t, http.MethodPut, "/api/v1/widgets/w1/config", cfg, &updated); code != http.StatusOK {
		t.Fatalf("update status = %d", code)
	}
	if want := "Good day. I am the virtual assistant for Acme. I would be pleased to assist you with any inquiries you may have."; updated.Messages[0].Text != want {
		t.Errorf("welcome after update = %q, want %q", updated.Messages[0].Text, want)
	}

	if code := e.do(t, http.MethodDelete, "/api/v1/widgets/w1", nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", code)
	}
	if code := e.do(t, http.MethodGet, "/api/v1/widgets/w1", nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", code)
	}
}

func TestCreateWidget_Validation(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		cfg  models.WidgetConfig
	}{
		{"unknown personality", models.WidgetConfig{Personality: "grumpy"}},
		{"button without keywords", models.WidgetConfig{ResponseButtons: []models.ResponseButton{{Text: "Go"}}}},
		{"button without text", models.WidgetConfig{ResponseButtons: []models.ResponseButton{{TriggerKeywords: []string{"go"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := e.do(t, http.MethodPost, "/api/v1/widgets", map[string]any{"config": tt.cfg}, nil); code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", code)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	e := newTestEnv(t)
	e.createWidget(t, "w1")

	if code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/messages", map[string]string{"text": "   "}, nil); code != http.StatusNoContent {
		t.Errorf("blank message status = %d, want 204", code)
	}

	var pending struct {
		State    models.SessionState `json:"state"`
		Messages []models.Message    `json:"messages"`
	}
	if code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/messages", map[string]string{"text": "thanks"}, &pending); code != http.StatusAccepted {
		t.Fatalf("message status = %d, want 202", code)
	}
	if pending.State != models.SessionAwaitingReply || !pending.Messages[len(pending.Messages)-1].Typing {
		t.Errorf("pending transcript = %+v", pending)
	}

	e.sched.Flush()

	var done struct {
		State    models.SessionState `json:"state"`
		Messages []models.Message    `json:"messages"`
	}
	e.do(t, http.MethodGet, "/api/v1/widgets/w1/messages", nil, &done)
	var senders []models.Sender
	for _, m := range done.Messages {
		senders = append(senders, m.Sender)
	}
	if diff := cmp.Diff([]models.Sender{models.SenderBot, models.SenderUser, models.SenderBot}, senders); diff != "" {
		t.Errorf("senders (-want +got):\n%s", diff)
	}
	if done.State != models.SessionWelcomeShown {
		t.Errorf("state = %q", done.State)
	}
}

func TestButtons(t *testing.T) {
	e := newTestEnv(t)
	e.createWidget(t, "w1")

	var b models.ResponseButton
	code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/buttons", map[string]any{
		"text":             "Pricing",
		"trigger_keywords": []string{" price ", "", "cost"},
	}, &b)
	if code != http.StatusCreated {
		t.Fatalf("add button status = %d", code)
	}
	if !strings.HasPrefix(b.ID, "button-") || b.Style != models.ButtonPrimary {
		t.Errorf("button = %+v", b)
	}
	if diff := cmp.Diff([]string{"price", "cost"}, b.TriggerKeywords); diff != "" {
		t.Errorf("keywords (-want +got):\n%s", diff)
	}

	if code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/buttons", map[string]any{"text": "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid button status = %d, want 400", code)
	}

	if code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/buttons/"+b.ID+"/click", nil, nil); code != http.StatusAccepted {
		t.Fatalf("click status = %d", code)
	}
	e.sched.Flush()

	var tr struct {
		Messages []models.Message `json:"messages"`
	}
	e.do(t, http.MethodGet, "/api/v1/widgets/w1/messages", nil, &tr)
	n := len(tr.Messages)
	if tr.Messages[n-2].Text != "You clicked: Pricing" || tr.Messages[n-1].Text != `I'll help you with "Pricing" right away!` {
		t.Errorf("transcript tail = %+v", tr.Messages[n-2:])
	}

	if code := e.do(t, http.MethodDelete, "/api/v1/widgets/w1/buttons/"+b.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("remove status = %d, want 204", code)
	}
	if code := e.do(t, http.MethodDelete, "/api/v1/widgets/w1/buttons/"+b.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", code)
	}
	if code := e.do(t, http.MethodPost, "/api/v1/widgets/w1/buttons/nope/click", nil, nil); code != http.StatusNotFound {
		t.Errorf("click unknown status = %d, want 404", code)
	}
}

func TestEmbed(t *testing.T) {
	e := newTestEnv(t)
	e.createWidget(t, "w1")

	resp, err := http.Get(e.srv.URL + "/api/v1/widgets/w1/embed")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(body), `businessName: "Acme"`) {
		t.Errorf("embed body = %s", body)
	}
}

func TestLiveChat(t *testing.T) {
	e := newTestEnv(t)
	e.createWidget(t, "w1")

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/widgets/w1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() chat.Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev chat.Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return ev
	}

	if ev := read(); ev.Type != chat.EventReset || len(ev.Messages) != 1 {
		t.Fatalf("first event = %+v, want transcript", ev)
	}

	if err := conn.WriteJSON(map[string]string{"text": "hello"}); err != nil {
		t.Fatal(err)
	}
	if ev := read(); ev.Type != chat.EventMessage || ev.Message.Text != "hello" {
		t.Errorf("event = %+v, want user message", ev)
	}
	if ev := read(); ev.Type != chat.EventTyping || !ev.Typing {
		t.Errorf("event = %+v, want typing on", ev)
	}

	e.sched.Flush()
	if ev := read(); ev.Type != chat.EventMessage || ev.Message.Sender != models.SenderBot {
		t.Errorf("event = %+v, want bot reply", ev)
	}
	if ev := read(); ev.Type != chat.EventTyping || ev.Typing {
		t.Errorf("event = %+v, want typing off", ev)
	}

	if err := conn.WriteJSON(map[string]string{"button_id": "missing"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var errFrame map[string]string
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatal(err)
	}
	if errFrame["type"] != "error" {
		t.Errorf("frame = %v, want error", errFrame)
	}

	// Deleting the session closes the socket.
	e.do(t, http.MethodDelete, "/api/v1/widgets/w1", nil, nil)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("socket still open after session delete")
	}
}

func TestLiveChat_UnknownWidget(t *testing.T) {
	e := newTestEnv(t)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/v1/widgets/none/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() to unknown widget should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}

func TestButtons_ConcurrentAdds(t *testing.T) {
	e := newTestEnv(t)
	e.createWidget(t, "w1")

	const n = 20
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := strings.NewReader(`{"text":"Pricing","trigger_keywords":["price"]}`)
			resp, err := http.Post(e.srv.URL+"/api/v1/widgets/w1/buttons", "application/json", body)
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	for code := range codes {
		if code != http.StatusCreated {
			t.Errorf("add button status = %d, want 201", code)
		}
	}

	o, err := e.store.Get(t.Context(), "w1")
	if err != nil {
		t.Fatal(err)
	}
	// createWidget seeds one button.
	if got := len(o.Config().ResponseButtons); got != n+1 {
		t.Errorf("buttons = %d, want %d", got, n+1)
	}
}
