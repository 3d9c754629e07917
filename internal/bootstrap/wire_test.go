package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"sttbridge/internal/domain"
)

func TestBuildDeepgram(t *testing.T) {
	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
	if services.Config.Provider != "deepgram" {
		t.Fatalf("unexpected provider: %q", services.Config.Provider)
	}
}

func TestBuildGoogle(t *testing.T) {
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "test-project")
	t.Setenv("GOOGLE_CLOUD_CREDENTIALS_JSON", `{"type":"service_account"}`)
	t.Setenv("STT_AUDIO_BACKEND", "ffmpeg")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	t.Setenv("STT_PROVIDER", "carrier-pigeon")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error for unknown provider")
	}
}

func TestBuildFailsOnBadLocalesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locales.yaml")
	if err := os.WriteFile(path, []byte("locales:\n  - name: missing id\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("STT_PROVIDER", "deepgram")
	t.Setenv("STT_LOCALES_FILE", path)

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error for invalid locales file")
	}
}

type noopEventSink struct{}

func (noopEventSink) Status(_ domain.Status)                     {}
func (noopEventSink) Transcript(_ domain.TranscriptSnapshot)     {}
func (noopEventSink) RecognitionError(_ domain.RecognitionError) {}
func (noopEventSink) SoundLevel(_ float64)                       {}
