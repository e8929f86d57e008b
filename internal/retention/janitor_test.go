package retention_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentoven/chatwidget/internal/chat"
	"github.com/agentoven/chatwidget/internal/engine"
	"github.com/agentoven/chatwidget/internal/retention"
	"github.com/agentoven/chatwidget/internal/sessions"
	"github.com/agentoven/chatwidget/pkg/models"
	"go.uber.org/goleak"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSweep(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := sessions.NewMemorySessionStore(engine.LocalEngine{}, chat.Options{
		Scheduler: chat.NewManualScheduler(),
		Now:       clk.Now,
	})
	t.Cleanup(store.Close)
	ctx := context.Background()

	cfg := models.WidgetConfig{Business: models.BusinessProfile{Name: "Acme"}}
	for _, id := range []string{"default", "old", "fresh"} {
		if _, err := store.Create(ctx, id, cfg); err != nil {
			t.Fatal(err)
		}
	}

	clk.Advance(2 * time.Hour)
	fresh, _ := store.Get(ctx, "fresh")
	fresh.Submit(ctx, "hello")

	j := retention.NewJanitor(store, time.Hour, time.Minute, "default")
	j.Now = clk.Now

	if got := j.Sweep(ctx); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
	if _, err := store.Get(ctx, "old"); err == nil {
		t.Error("idle session was not evicted")
	}
	for _, id := range []string{"default", "fresh"} {
		if _, err := store.Get(ctx, id); err != nil {
			t.Errorf("session %q evicted: %v", id, err)
		}
	}

	if got := j.Sweep(ctx); got != 0 {
		t.Errorf("second Sweep() = %d, want 0", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := sessions.NewMemorySessionStore(engine.LocalEngine{}, chat.Options{Scheduler: chat.NewManualScheduler()})
	defer store.Close()
	j := retention.NewJanitor(store, time.Hour, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop")
	}
}
