// Package sttbridge exposes the speech-to-text session controller over a
// method/event boundary: a host embeds a Bridge, forwards method calls into
// HandleMethod, and registers handlers for the event channels flowing back.
package sttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"sttbridge/internal/domain"
)

const (
	MethodHasPermission = "has_permission"
	MethodInitialize    = "initialize"
	MethodListen        = "listen"
	MethodStop          = "stop"
	MethodCancel        = "cancel"
	MethodLocales       = "locales"
)

// Recognizer is the controller surface the bridge drives.
type Recognizer interface {
	HasPermission(ctx context.Context) bool
	Initialize(ctx context.Context) bool
	Listen(ctx context.Context, localeID string, interimEnabled bool) bool
	Stop(ctx context.Context) bool
	Cancel(ctx context.Context) bool
	Locales(ctx context.Context) ([]domain.LocaleDescriptor, error)
}

// TranscriptHandler receives the JSON-encoded snapshot for each result.
type TranscriptHandler func(payload string)

// StatusHandler receives the status name for each lifecycle change.
type StatusHandler func(status string)

// ErrorHandler receives the JSON-encoded recognition error.
type ErrorHandler func(payload string)

// SoundLevelHandler receives the capture sound level in dBFS.
type SoundLevelHandler func(db float64)

// Bridge adapts a Recognizer to the boundary. It implements ports.EventSink;
// unset handlers silently drop their events, so a host may subscribe to any
// subset of the channels.
//
// The recognizer is late-bound via Bind: the bridge itself is the event sink
// handed to bootstrap, so it must exist before the controller does.
type Bridge struct {
	log *slog.Logger

	mu           sync.Mutex
	recognizer   Recognizer
	onTranscript TranscriptHandler
	onStatus     StatusHandler
	onError      ErrorHandler
	onSoundLevel SoundLevelHandler
}

func NewBridge() *Bridge {
	return &Bridge{log: slog.Default()}
}

// Bind attaches the recognizer the bridge dispatches to.
func (b *Bridge) Bind(recognizer Recognizer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recognizer = recognizer
}

func (b *Bridge) SetTranscriptHandler(h TranscriptHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTranscript = h
}

func (b *Bridge) SetStatusHandler(h StatusHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStatus = h
}

func (b *Bridge) SetErrorHandler(h ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = h
}

func (b *Bridge) SetSoundLevelHandler(h SoundLevelHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSoundLevel = h
}

type listenArgs struct {
	LocaleID       string `json:"localeId"`
	PartialResults bool   `json:"partialResults"`
}

// HandleMethod dispatches one boundary method call. Lifecycle methods return
// bool; locales returns the wire-form string list. An unknown method or
// undecodable arguments return an error; lifecycle refusals do not.
func (b *Bridge) HandleMethod(ctx context.Context, method string, args json.RawMessage) (any, error) {
	b.mu.Lock()
	recognizer := b.recognizer
	b.mu.Unlock()
	if recognizer == nil {
		return nil, errors.New("bridge is not bound to a recognizer")
	}

	switch method {
	case MethodHasPermission:
		return recognizer.HasPermission(ctx), nil
	case MethodInitialize:
		return recognizer.Initialize(ctx), nil
	case MethodListen:
		// Interim delivery defaults to on; absent fields keep the preset.
		parsed := listenArgs{PartialResults: true}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, fmt.Errorf("decode listen args: %w", err)
			}
		}
		return recognizer.Listen(ctx, parsed.LocaleID, parsed.PartialResults), nil
	case MethodStop:
		return recognizer.Stop(ctx), nil
	case MethodCancel:
		return recognizer.Cancel(ctx), nil
	case MethodLocales:
		locales, err := recognizer.Locales(ctx)
		if err != nil {
			return nil, fmt.Errorf("list locales: %w", err)
		}
		out := make([]string, len(locales))
		for i, d := range locales {
			out[i] = d.String()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown method %q", method)
	}
}

// Status emits a lifecycle change to the host.
func (b *Bridge) Status(status domain.Status) {
	b.mu.Lock()
	handler := b.onStatus
	b.mu.Unlock()
	if handler == nil {
		return
	}
	handler(string(status))
}

// Transcript emits a result snapshot to the host.
func (b *Bridge) Transcript(snapshot domain.TranscriptSnapshot) {
	b.mu.Lock()
	handler := b.onTranscript
	b.mu.Unlock()
	if handler == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		b.log.Error("encode transcript snapshot failed", "error", err)
		return
	}
	handler(string(payload))
}

// RecognitionError emits a recognition failure to the host.
func (b *Bridge) RecognitionError(recErr domain.RecognitionError) {
	b.mu.Lock()
	handler := b.onError
	b.mu.Unlock()
	if handler == nil {
		return
	}
	payload, err := json.Marshal(recErr)
	if err != nil {
		b.log.Error("encode recognition error failed", "error", err)
		return
	}
	handler(string(payload))
}

// SoundLevel emits the capture level to the host.
func (b *Bridge) SoundLevel(db float64) {
	b.mu.Lock()
	handler := b.onSoundLevel
	b.mu.Unlock()
	if handler == nil {
		return
	}
	handler(db)
}
