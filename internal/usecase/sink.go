package usecase

import (
	"sync"

	"sttbridge/internal/domain"
	"sttbridge/internal/ports"
)

// serialSink delivers events one at a time. Session goroutines and the
// controller all emit through it, so boundary callbacks never overlap even
// when the underlying sink is not thread safe.
type serialSink struct {
	mu   sync.Mutex
	next ports.EventSink
}

func newSerialSink(next ports.EventSink) *serialSink {
	return &serialSink{next: next}
}

func (s *serialSink) Status(status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.Status(status)
}

func (s *serialSink) Transcript(snapshot domain.TranscriptSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.Transcript(snapshot)
}

func (s *serialSink) RecognitionError(recErr domain.RecognitionError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.RecognitionError(recErr)
}

func (s *serialSink) SoundLevel(db float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next.SoundLevel(db)
}
