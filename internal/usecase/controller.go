package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sttbridge/internal/audio"
	"sttbridge/internal/domain"
	"sttbridge/internal/models"
	"sttbridge/internal/ports"
)

// Config controls session behavior.
type Config struct {
	DefaultLocale string
	Audio         ports.AudioConfig
	DrainTimeout  time.Duration
}

// SessionController orchestrates the listen-to-transcript lifecycle. At most
// one session is live at a time; a second listen call is refused rather than
// queued. All boundary events flow through one serialized sink so callbacks
// never overlap.
type SessionController struct {
	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	models   *models.Manager
	gate     ports.PermissionGate
	events   ports.EventSink
	cfg      Config
	log      *slog.Logger

	mu          sync.Mutex
	state       domain.SessionState
	current     *activeSession
	initialized bool
}

func NewSessionController(
	capture ports.AudioCapture,
	provider ports.TranscriptionProvider,
	modelManager *models.Manager,
	gate ports.PermissionGate,
	events ports.EventSink,
	cfg Config,
) *SessionController {
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en-US"
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 4 * time.Second
	}
	return &SessionController{
		capture:  capture,
		provider: provider,
		models:   modelManager,
		gate:     gate,
		events:   newSerialSink(events),
		cfg:      cfg,
		log:      slog.Default(),
		state:    domain.SessionStateIdle,
	}
}

// HasPermission reports whether microphone access is currently granted. It
// never prompts.
func (c *SessionController) HasPermission(ctx context.Context) bool {
	return c.gate.Status(ctx) == domain.PermissionGranted
}

// Initialize prepares the recognizer: resolves microphone authorization
// (prompting when undetermined), readies the default locale's model, and
// announces availability. Repeat calls after a successful initialize are
// cheap no-ops returning true.
func (c *SessionController) Initialize(ctx context.Context) bool {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	switch c.gate.Status(ctx) {
	case domain.PermissionGranted:
	case domain.PermissionUndetermined:
		granted, err := c.gate.Request(ctx)
		if err != nil {
			c.events.RecognitionError(domain.RecognitionError{Message: "microphone permission request failed: " + err.Error()})
			c.events.Status(domain.StatusUnavailable)
			return false
		}
		if !granted {
			c.events.Status(domain.StatusUnavailable)
			return false
		}
	default:
		c.events.Status(domain.StatusUnavailable)
		return false
	}

	if err := c.models.EnsureReady(ctx, c.cfg.DefaultLocale); err != nil {
		c.events.RecognitionError(recognitionError(err))
		c.events.Status(domain.StatusUnavailable)
		return false
	}

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()

	c.events.Status(domain.StatusAvailable)
	return true
}

// Listen starts a capture/transcription session for the locale, or the
// default locale when empty. interimEnabled controls whether volatile
// snapshots reach the boundary; final snapshots always do. A listen while a
// session is live, or before a successful initialize, returns false without
// emitting anything.
func (c *SessionController) Listen(ctx context.Context, localeID string, interimEnabled bool) bool {
	c.mu.Lock()
	if !c.initialized || c.state != domain.SessionStateIdle {
		c.mu.Unlock()
		return false
	}
	c.state = domain.SessionStateStarting
	c.mu.Unlock()

	locale := localeID
	if locale == "" {
		locale = c.cfg.DefaultLocale
	}

	if err := c.models.EnsureReady(ctx, locale); err != nil {
		c.rollbackStart(err)
		return false
	}

	// The session must outlive the listen call itself: the caller's
	// context is scoped to the boundary method, not the recording.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	audioSession, err := c.capture.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		c.rollbackStart(err)
		return false
	}

	engineFormat := ports.AudioFormat{
		SampleRate: c.cfg.Audio.SampleRate,
		Channels:   1,
		Encoding:   audio.EncodingS16LE,
	}
	converter, err := audio.NewConverter(audioSession.Format(), engineFormat)
	if err != nil {
		_ = audioSession.Stop()
		cancel()
		c.rollbackStart(err)
		return false
	}

	sessionID := uuid.NewString()
	stream, err := c.provider.StartStreaming(sessionCtx, ports.StreamingConfig{
		SessionID:      sessionID,
		Locale:         locale,
		SampleRate:     engineFormat.SampleRate,
		Channels:       engineFormat.Channels,
		Encoding:       "linear16",
		InterimResults: interimEnabled,
	})
	if err != nil {
		_ = audioSession.Stop()
		cancel()
		c.rollbackStart(err)
		return false
	}

	active := newActiveSession(sessionID, locale, cancel, audioSession, stream, converter, interimEnabled)

	c.mu.Lock()
	c.current = active
	c.state = domain.SessionStateListening
	c.mu.Unlock()

	// Listening is announced before the consumers start so no snapshot
	// can precede the status change.
	c.events.Status(domain.StatusListening)
	go consumeTranscriptionEvents(active, c.events, c.onStreamEnd)
	go pumpAudioBuffers(active, chunkBytes(c.cfg.Audio, audioSession.Format()), c.events, c.log)

	c.log.Info("listening", "session_id", active.id, "locale", locale)
	return true
}

// Stop gracefully ends the live session: capture stops first, buffered audio
// drains into the engine, and remaining results are delivered before the
// terminal status. Returns false when nothing is listening.
func (c *SessionController) Stop(ctx context.Context) bool {
	active, ok := c.beginTeardown()
	if !ok {
		return false
	}

	if err := active.audio.Stop(); err != nil {
		c.log.Warn("audio capture stop failed", "session_id", active.id, "error", err)
	}
	<-active.audioDone

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, c.cfg.DrainTimeout)
	<-active.eventsDone

	if streamErr != nil {
		c.events.RecognitionError(recognitionError(streamErr))
	}

	hadFinal := active.reconciler.hasFinal()
	c.finishSession(active)

	if hadFinal {
		c.events.Status(domain.StatusDone)
	} else {
		c.events.Status(domain.StatusDoneNoResult)
	}
	c.log.Info("session stopped", "session_id", active.id, "had_final", hadFinal)
	return true
}

// Cancel abandons the live session. In-flight engine output is discarded; a
// single notListening status marks the end. Returns false when nothing is
// listening.
func (c *SessionController) Cancel(ctx context.Context) bool {
	active, ok := c.beginTeardown()
	if !ok {
		return false
	}

	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.audioDone
	<-active.eventsDone

	c.finishSession(active)
	c.events.Status(domain.StatusNotListening)
	c.log.Info("session canceled", "session_id", active.id)
	return true
}

// Locales lists every locale the active provider supports, including
// configured overlay entries, regardless of installation state.
func (c *SessionController) Locales(ctx context.Context) ([]domain.LocaleDescriptor, error) {
	return c.models.Locales(ctx)
}

// State reports the current lifecycle state.
func (c *SessionController) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SessionController) beginTeardown() (*activeSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateListening || c.current == nil {
		return nil, false
	}
	c.state = domain.SessionStateStopping
	return c.current, true
}

// onStreamEnd handles a stream that died while the session was still
// listening: the boundary sees one error and one notListening. During a
// stop or cancel the teardown path owns the terminal events, so this is a
// no-op then.
func (c *SessionController) onStreamEnd(active *activeSession, streamErr error) {
	if streamErr == nil {
		return
	}

	c.mu.Lock()
	if c.current != active || c.state != domain.SessionStateListening {
		c.mu.Unlock()
		return
	}
	c.state = domain.SessionStateStopping
	c.mu.Unlock()

	c.log.Warn("stream failed mid-session", "session_id", active.id, "error", streamErr)
	c.events.RecognitionError(recognitionError(streamErr))

	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.audioDone

	c.finishSession(active)
	c.events.Status(domain.StatusNotListening)
}

func (c *SessionController) rollbackStart(err error) {
	c.mu.Lock()
	c.state = domain.SessionStateIdle
	c.mu.Unlock()

	c.log.Warn("listen failed", "error", err)
	c.events.RecognitionError(recognitionError(err))
}

func (c *SessionController) finishSession(active *activeSession) {
	active.cancel()

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.state = domain.SessionStateIdle
	c.mu.Unlock()
}

// recognitionError maps an internal failure onto the boundary error payload.
// Unsupported locales are permanent; everything else is worth retrying.
func recognitionError(err error) domain.RecognitionError {
	return domain.RecognitionError{
		Message:   err.Error(),
		Permanent: errors.Is(err, domain.ErrLocaleNotSupported),
	}
}

// chunkBytes sizes the pump buffer so one read spans the configured frame
// count at the capture format.
func chunkBytes(cfg ports.AudioConfig, format ports.AudioFormat) int {
	frames := cfg.FramesPerBuffer
	if frames <= 0 {
		frames = 4096
	}
	sampleBytes := 2
	if format.Encoding == audio.EncodingF32LE {
		sampleBytes = 4
	}
	channels := format.Channels
	if channels <= 0 {
		channels = 1
	}
	return frames * channels * sampleBytes
}
