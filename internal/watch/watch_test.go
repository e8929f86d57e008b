package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentoven/chatwidget/internal/buttons"
	"github.com/agentoven/chatwidget/internal/watch"
	"github.com/agentoven/chatwidget/pkg/models"
	"go.uber.org/goleak"
)

type recorder struct {
	configs chan models.WidgetConfig
}

func (r *recorder) UpdateConfig(_ context.Context, cfg models.WidgetConfig) {
	select {
	case r.configs <- cfg:
	default:
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "widget.yaml")
	writeFile(t, path, "business:\n  name: Alpha\n")

	rec := &recorder{configs: make(chan models.WidgetConfig, 16)}
	w, err := watch.New(path, rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "business:\n  name: Other\n")
	writeFile(t, path, "business:\n  name: Beta\npersonality: formal\n")

	timeout := time.After(5 * time.Second)
	for {
		var cfg models.WidgetConfig
		select {
		case cfg = <-rec.configs:
		case <-timeout:
			t.Fatal("timed out waiting for reload")
		}
		if cfg.Business.Name == "Other" {
			t.Fatal("reloaded an unrelated file")
		}
		// A write may surface as several events; wait for the complete one.
		if cfg.Business.Name == "Beta" && cfg.Personality == models.PersonalityFormal {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWatcher_SkipsInvalidButtons(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "widget.yaml")
	writeFile(t, path, "business:\n  name: Alpha\n")

	rec := &recorder{configs: make(chan models.WidgetConfig, 16)}
	w, err := watch.New(path, rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, path, "response_buttons:\n  - text: \"\"\n    trigger_keywords: [\"\"]\nbusiness:\n  name: Bad\n")
	writeFile(t, path, "response_buttons:\n  - text: Book\n    trigger_keywords: [demo]\nbusiness:\n  name: Good\n")

	timeout := time.After(5 * time.Second)
	for {
		var cfg models.WidgetConfig
		select {
		case cfg = <-rec.configs:
		case <-timeout:
			t.Fatal("timed out waiting for reload")
		}
		for _, b := range cfg.ResponseButtons {
			if b.ID == "" || buttons.Validate(b) != nil {
				t.Fatalf("reloaded invalid button %+v", b)
			}
		}
		if cfg.Business.Name == "Good" && len(cfg.ResponseButtons) == 1 {
			break
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	_, err := watch.New(filepath.Join(t.TempDir(), "nope", "widget.yaml"), &recorder{})
	if err == nil {
		t.Error("New() on a missing directory should fail")
	}
}
