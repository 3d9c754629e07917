package ports

import (
	"context"
	"io"

	"sttbridge/internal/domain"
)

// AudioFormat describes a raw PCM stream.
type AudioFormat struct {
	SampleRate int
	Channels   int
	Encoding   string // "s16le" or "f32le"
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
	InputFormat     string // capture backend input hint, e.g. "pulse" for ffmpeg
	InputDevice     string
}

// AudioSession is a live capture session delivering raw PCM bytes.
type AudioSession interface {
	io.ReadCloser
	Format() AudioFormat
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SessionID      string
	Locale         string
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active transcription session bound to one locale.
// CloseSend followed by Wait is the graceful finalize path: no events arrive
// after the Events channel closes. Close abandons in-flight analysis.
// Rebinding to a new locale requires a new session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// ModelCatalog exposes a provider's locale/model inventory.
type ModelCatalog interface {
	SupportedLocales(ctx context.Context) ([]domain.LocaleDescriptor, error)
	InstalledLocales(ctx context.Context) ([]string, error)

	// Install downloads and installs the model for a locale. progress, when
	// non-nil, receives an opaque 0-100 counter.
	Install(ctx context.Context, localeID string, progress func(percent int)) error
}

// PermissionGate abstracts the platform microphone authorization check.
type PermissionGate interface {
	Status(ctx context.Context) domain.PermissionStatus

	// Request prompts for authorization when undetermined and reports the
	// resulting grant.
	Request(ctx context.Context) (bool, error)
}

// EventSink emits boundary-facing events. Implementations must tolerate
// being called from multiple goroutines.
type EventSink interface {
	Status(status domain.Status)
	Transcript(snapshot domain.TranscriptSnapshot)
	RecognitionError(recErr domain.RecognitionError)
	SoundLevel(db float64)
}
