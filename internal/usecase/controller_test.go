package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"sttbridge/internal/audio"
	"sttbridge/internal/domain"
	"sttbridge/internal/models"
	"sttbridge/internal/permission"
	"sttbridge/internal/ports"
)

func newTestController(
	capture ports.AudioCapture,
	provider ports.TranscriptionProvider,
	catalog ports.ModelCatalog,
	gate ports.PermissionGate,
	events ports.EventSink,
) *SessionController {
	return NewSessionController(
		capture,
		provider,
		models.NewManager(catalog, time.Second, nil),
		gate,
		events,
		Config{
			DefaultLocale: "en-US",
			Audio:         ports.AudioConfig{SampleRate: 16000, Channels: 1, FramesPerBuffer: 4},
			DrainTimeout:  time.Second,
		},
	)
}

func grantedGate() *permission.StaticGate {
	return &permission.StaticGate{Result: domain.PermissionGranted}
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{supported: []domain.LocaleDescriptor{
		{ID: "en-US", Name: "English (United States)"},
		{ID: "de-DE", Name: "German (Germany)"},
	}}
}

func TestSessionControllerListenStopDeliversTranscripts(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindVolatile, Text: "hello"}
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "hello world"}
	audioSession := newFakeAudioSession([]byte{0x00, 0x40, 0x00, 0x40, 0x00, 0x40, 0x00, 0x40})
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	if !controller.Initialize(context.Background()) {
		t.Fatalf("initialize failed")
	}
	if !controller.Listen(context.Background(), "", true) {
		t.Fatalf("listen failed")
	}
	if !controller.Stop(context.Background()) {
		t.Fatalf("stop failed")
	}

	statuses := events.snapshotStatuses()
	want := []domain.Status{domain.StatusAvailable, domain.StatusListening, domain.StatusDone}
	if len(statuses) != len(want) {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
	for i, s := range want {
		if statuses[i] != s {
			t.Fatalf("status[%d] = %s, want %s", i, statuses[i], s)
		}
	}

	snapshots := events.snapshotTranscripts()
	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d: %v", len(snapshots), snapshots)
	}
	if snapshots[0].VolatileText != "hello" || snapshots[0].IsFinal {
		t.Fatalf("unexpected interim snapshot: %+v", snapshots[0])
	}
	if snapshots[1].FinalText != "hello world" || !snapshots[1].IsFinal {
		t.Fatalf("unexpected final snapshot: %+v", snapshots[1])
	}

	if len(events.snapshotLevels()) == 0 {
		t.Fatalf("expected sound level events")
	}
	if streamSession.sendCalls() == 0 {
		t.Fatalf("expected audio to reach the stream")
	}
}

func TestSessionControllerInterimSuppressed(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindVolatile, Text: "hello"}
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "hello world"}
	events := &fakeEventSink{}

	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{newFakeAudioSession(nil)}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	if !controller.Listen(context.Background(), "", false) {
		t.Fatalf("listen failed")
	}
	if !controller.Stop(context.Background()) {
		t.Fatalf("stop failed")
	}

	snapshots := events.snapshotTranscripts()
	if len(snapshots) != 1 || !snapshots[0].IsFinal {
		t.Fatalf("expected only the final snapshot, got %v", snapshots)
	}
}

func TestSessionControllerStopWithoutResultEmitsDoneNoResult(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{newFakeAudioSession(nil)}},
		&fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	controller.Listen(context.Background(), "", true)
	if !controller.Stop(context.Background()) {
		t.Fatalf("stop failed")
	}

	statuses := events.snapshotStatuses()
	if statuses[len(statuses)-1] != domain.StatusDoneNoResult {
		t.Fatalf("expected doneNoResult, got %v", statuses)
	}
}

func TestSessionControllerListenWhileListeningIsRefused(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{newFakeAudioSession(nil)}},
		&fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	if !controller.Listen(context.Background(), "", true) {
		t.Fatalf("first listen failed")
	}

	before := len(events.snapshotStatuses()) + len(events.snapshotErrors())
	if controller.Listen(context.Background(), "", true) {
		t.Fatalf("second listen must be refused")
	}
	after := len(events.snapshotStatuses()) + len(events.snapshotErrors())
	if before != after {
		t.Fatalf("refused listen must not emit events")
	}
}

func TestSessionControllerListenBeforeInitializeIsRefused(t *testing.T) {
	t.Parallel()

	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{},
		defaultCatalog(),
		grantedGate(),
		&fakeEventSink{},
	)

	if controller.Listen(context.Background(), "", true) {
		t.Fatalf("listen must be refused before initialize")
	}
}

func TestSessionControllerStopAndCancelWithoutSession(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	if controller.Stop(context.Background()) {
		t.Fatalf("stop without session must return false")
	}
	if controller.Cancel(context.Background()) {
		t.Fatalf("cancel without session must return false")
	}
	if n := len(events.snapshotStatuses()); n != 0 {
		t.Fatalf("expected no status events, got %d", n)
	}
}

func TestSessionControllerUnsupportedLocaleIsPermanent(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	capture := &fakeAudioCapture{sessions: []ports.AudioSession{newFakeAudioSession(nil)}}
	provider := &fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}}
	controller := newTestController(capture, provider, defaultCatalog(), grantedGate(), events)

	controller.Initialize(context.Background())
	if controller.Listen(context.Background(), "xx-XX", true) {
		t.Fatalf("listen with unsupported locale must fail")
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || !errs[0].Permanent {
		t.Fatalf("expected one permanent error, got %v", errs)
	}
	if capture.calls != 0 {
		t.Fatalf("capture must not start for an unsupported locale")
	}

	// The failed listen must leave the controller usable.
	if !controller.Listen(context.Background(), "de-DE", true) {
		t.Fatalf("listen after rollback failed")
	}
}

func TestSessionControllerCaptureFailureRollsBack(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{err: domain.ErrNoAudioInput},
		&fakeProvider{},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	if controller.Listen(context.Background(), "", true) {
		t.Fatalf("listen must fail when capture cannot start")
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].Permanent {
		t.Fatalf("expected one transient error, got %v", errs)
	}
	if got := controller.State(); got != domain.SessionStateIdle {
		t.Fatalf("expected idle after rollback, got %s", got)
	}
}

func TestSessionControllerProviderFailureStopsCapture(t *testing.T) {
	t.Parallel()

	audioSession := newFakeAudioSession(nil)
	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{err: errors.New("engine offline")},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	if controller.Listen(context.Background(), "", true) {
		t.Fatalf("listen must fail when the provider cannot start")
	}
	if audioSession.stopCount() == 0 {
		t.Fatalf("capture must be stopped on provider failure")
	}
}

func TestSessionControllerCancelEmitsSingleNotListening(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	audioSession := newFakeAudioSession(nil)
	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	controller.Listen(context.Background(), "", true)
	if !controller.Cancel(context.Background()) {
		t.Fatalf("cancel failed")
	}

	statuses := events.snapshotStatuses()
	notListening := 0
	for _, s := range statuses {
		if s == domain.StatusNotListening {
			notListening++
		}
	}
	if notListening != 1 {
		t.Fatalf("expected exactly one notListening, got %v", statuses)
	}
	if streamSession.closeCount() == 0 {
		t.Fatalf("cancel must close the stream")
	}
	if audioSession.stopCount() == 0 {
		t.Fatalf("cancel must stop capture")
	}
}

func TestSessionControllerStreamFailureMidSession(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{sessions: []ports.AudioSession{newFakeAudioSession(nil)}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		defaultCatalog(),
		grantedGate(),
		events,
	)

	controller.Initialize(context.Background())
	if !controller.Listen(context.Background(), "", true) {
		t.Fatalf("listen failed")
	}

	streamSession.fail(errors.New("engine connection lost"))

	deadline := time.After(2 * time.Second)
	for controller.State() != domain.SessionStateIdle {
		select {
		case <-deadline:
			t.Fatalf("controller did not recover from the stream failure")
		case <-time.After(5 * time.Millisecond):
		}
	}

	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].Permanent {
		t.Fatalf("expected one transient error, got %v", errs)
	}
	statuses := events.snapshotStatuses()
	if statuses[len(statuses)-1] != domain.StatusNotListening {
		t.Fatalf("expected trailing notListening, got %v", statuses)
	}
}

func TestSessionControllerInitializeDenied(t *testing.T) {
	t.Parallel()

	events := &fakeEventSink{}
	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{},
		defaultCatalog(),
		&permission.StaticGate{Result: domain.PermissionDenied},
		events,
	)

	if controller.Initialize(context.Background()) {
		t.Fatalf("initialize must fail when permission is denied")
	}
	statuses := events.snapshotStatuses()
	if len(statuses) != 1 || statuses[0] != domain.StatusUnavailable {
		t.Fatalf("expected unavailable, got %v", statuses)
	}
	if controller.HasPermission(context.Background()) {
		t.Fatalf("permission must report denied")
	}
}

func TestSessionControllerInitializePromptsWhenUndetermined(t *testing.T) {
	t.Parallel()

	gate := &permission.StaticGate{Result: domain.PermissionUndetermined, GrantOnRequest: true}
	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{},
		defaultCatalog(),
		gate,
		&fakeEventSink{},
	)

	if !controller.Initialize(context.Background()) {
		t.Fatalf("initialize must succeed after the prompt grants")
	}
	if !controller.HasPermission(context.Background()) {
		t.Fatalf("permission must report granted after the prompt")
	}
}

func TestSessionControllerLocales(t *testing.T) {
	t.Parallel()

	controller := newTestController(
		&fakeAudioCapture{},
		&fakeProvider{},
		defaultCatalog(),
		grantedGate(),
		&fakeEventSink{},
	)

	locales, err := controller.Locales(context.Background())
	if err != nil {
		t.Fatalf("locales failed: %v", err)
	}
	if len(locales) != 2 || locales[0].String() != "en-US:English (United States)" {
		t.Fatalf("unexpected locales: %v", locales)
	}
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
}

func newFakeAudioSession(pcm []byte) *fakeAudioSession {
	session := &fakeAudioSession{}
	if len(pcm) > 0 {
		session.chunks = [][]byte{pcm}
	}
	return session
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Format() ports.AudioFormat {
	return ports.AudioFormat{SampleRate: 16000, Channels: 1, Encoding: audio.EncodingS16LE}
}

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events chan domain.TranscriptEvent

	mu         sync.Mutex
	waitErr    error
	sendErr    error
	sends      int
	sentBytes  int
	closeCalls int
	closed     bool
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends++
	f.sentBytes += len(chunk)
	return nil
}

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

// fail simulates the engine dropping the stream mid-session.
func (f *fakeStreamingSession) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitErr = err
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStreamingSession) sendCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

func (f *fakeStreamingSession) sentByteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentBytes
}

func (f *fakeStreamingSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeCatalog struct {
	mu        sync.Mutex
	supported []domain.LocaleDescriptor
	installed []string
	installs  []string
}

func (f *fakeCatalog) SupportedLocales(_ context.Context) ([]domain.LocaleDescriptor, error) {
	return f.supported, nil
}

func (f *fakeCatalog) InstalledLocales(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.installed))
	copy(out, f.installed)
	return out, nil
}

func (f *fakeCatalog) Install(_ context.Context, localeID string, progress func(percent int)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, localeID)
	f.installed = append(f.installed, localeID)
	if progress != nil {
		progress(100)
	}
	return nil
}

type fakeEventSink struct {
	mu sync.Mutex

	statuses    []domain.Status
	transcripts []domain.TranscriptSnapshot
	errs        []domain.RecognitionError
	levels      []float64
}

func (f *fakeEventSink) Status(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeEventSink) Transcript(snapshot domain.TranscriptSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, snapshot)
}

func (f *fakeEventSink) RecognitionError(recErr domain.RecognitionError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, recErr)
}

func (f *fakeEventSink) SoundLevel(db float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels = append(f.levels, db)
}

func (f *fakeEventSink) snapshotStatuses() []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Status, len(f.statuses))
	copy(out, f.statuses)
	return out
}

func (f *fakeEventSink) snapshotTranscripts() []domain.TranscriptSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.TranscriptSnapshot, len(f.transcripts))
	copy(out, f.transcripts)
	return out
}

func (f *fakeEventSink) snapshotErrors() []domain.RecognitionError {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecognitionError, len(f.errs))
	copy(out, f.errs)
	return out
}

func (f *fakeEventSink) snapshotLevels() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.levels))
	copy(out, f.levels)
	return out
}
