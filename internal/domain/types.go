package domain

import "errors"

// SessionState models the listen-to-stop lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateStarting  SessionState = "starting"
	SessionStateListening SessionState = "listening"
	SessionStateStopping  SessionState = "stopping"
)

// Status identifies boundary status notifications.
type Status string

const (
	StatusListening    Status = "listening"
	StatusNotListening Status = "notListening"
	StatusUnavailable  Status = "unavailable"
	StatusAvailable    Status = "available"
	StatusDone         Status = "done"
	StatusDoneNoResult Status = "doneNoResult"
)

// TranscriptKind identifies whether a stream event is volatile or final text.
type TranscriptKind string

const (
	TranscriptKindVolatile TranscriptKind = "volatile"
	TranscriptKindFinal    TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
// Volatile text is the engine's full current best guess for the in-progress
// utterance and supersedes the previous volatile value; final text is a
// committed segment that will not be revised.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// IsFinal reports whether the event commits a transcript segment.
func (e TranscriptEvent) IsFinal() bool {
	return e.Kind == TranscriptKindFinal
}

// TranscriptSnapshot is the immutable result value emitted to the boundary.
// FinalText is cumulative; VolatileText is the full current interim fragment
// and is empty whenever IsFinal is true.
type TranscriptSnapshot struct {
	FinalText    string `json:"finalResult"`
	VolatileText string `json:"volatileResult"`
	IsFinal      bool   `json:"isFinal"`
}

// RecognitionError is the boundary error payload. Permanent marks failures
// where retrying without outside intervention is futile (unsupported locale,
// unsupported platform) as opposed to one-off engine failures.
type RecognitionError struct {
	Message   string `json:"errorMsg"`
	Permanent bool   `json:"permanent"`
}

func (e RecognitionError) Error() string {
	return e.Message
}

// LocaleDescriptor pairs a locale identifier with its localized display name.
type LocaleDescriptor struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// String renders the boundary wire form.
func (d LocaleDescriptor) String() string {
	return d.ID + ":" + d.Name
}

var (
	// ErrLocaleNotSupported is returned when the requested locale is not in
	// the provider's supported set.
	ErrLocaleNotSupported = errors.New("locale is not supported")

	// ErrNoAudioInput is returned when the capture device reports no usable
	// input channels before a session starts.
	ErrNoAudioInput = errors.New("no audio input device available")
)

// PermissionStatus reflects the microphone authorization state.
type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)
