package usecase

import (
	"sttbridge/internal/audio"
	"sttbridge/internal/ports"
)

type activeSession struct {
	id     string
	locale string
	cancel func()

	audio     ports.AudioSession
	stream    ports.StreamingSession
	converter *audio.Converter

	reconciler     *transcriptReconciler
	interimEnabled bool

	eventsDone chan struct{}
	audioDone  chan struct{}
}

func newActiveSession(
	id string,
	locale string,
	cancel func(),
	audioSession ports.AudioSession,
	stream ports.StreamingSession,
	converter *audio.Converter,
	interimEnabled bool,
) *activeSession {
	return &activeSession{
		id:             id,
		locale:         locale,
		cancel:         cancel,
		audio:          audioSession,
		stream:         stream,
		converter:      converter,
		reconciler:     newTranscriptReconciler(),
		interimEnabled: interimEnabled,
		eventsDone:     make(chan struct{}),
		audioDone:      make(chan struct{}),
	}
}
