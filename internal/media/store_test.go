package media_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChileCris2011/Walkie-Server/internal/media"
)

func newTestStore(t *testing.T, retention time.Duration) *media.Store {
	t.Helper()
	logger := zerolog.Nop()
	s, err := media.NewStore(t.TempDir(), retention, &logger)
	if err != nil {
		t.Fatalf("store init failed: %v", err)
	}
	return s
}

func TestSave_AssignsNameAndKeepsExtension(t *testing.T) {
	s := newTestStore(t, time.Hour)

	name, err := s.Save("voice message.webm", strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasSuffix(name, ".webm") {
		t.Fatalf("expected .webm suffix, got %q", name)
	}
	if s.URL(name) != media.URLPrefix+"/"+name {
		t.Fatalf("unexpected public url %q", s.URL(name))
	}

	b, err := os.ReadFile(filepath.Join(s.Dir(), name))
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if string(b) != "audio-bytes" {
		t.Fatalf("stored content mismatch: %q", b)
	}
}

func TestSave_WeirdExtensionDropped(t *testing.T) {
	s := newTestStore(t, time.Hour)

	name, err := s.Save("../../etc/passwd.this-is-not-ok!", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		t.Fatalf("stored name must not carry path components, got %q", name)
	}
	if ext := filepath.Ext(name); ext != "" {
		t.Fatalf("expected hostile extension to be dropped, got %q", ext)
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(t, time.Hour)

	oldName, err := s.Save("old.ogg", strings.NewReader("old"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	freshName, err := s.Save("fresh.ogg", strings.NewReader("fresh"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	stale := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.Dir(), oldName), stale, stale); err != nil {
		t.Fatalf("chtimes failed: %v", err)
	}

	if removed := s.SweepExpired(); removed != 1 {
		t.Fatalf("expected 1 removed clip, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), oldName)); !os.IsNotExist(err) {
		t.Fatalf("expired clip should be gone, stat err: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), freshName)); err != nil {
		t.Fatalf("fresh clip must survive: %v", err)
	}

	// redundant sweep removes nothing
	if removed := s.SweepExpired(); removed != 0 {
		t.Fatalf("expected redundant sweep to remove 0, got %d", removed)
	}
}
