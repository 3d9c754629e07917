package usecase

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"sttbridge/internal/audio"
	"sttbridge/internal/ports"
)

// pumpAudioBuffers moves capture buffers through the converter into the
// streaming session, reporting a sound level per delivered buffer. Buffers
// that fail conversion are logged and dropped; capture keeps running. A read
// error or EOF (capture stopped) ends the pump.
func pumpAudioBuffers(
	active *activeSession,
	chunkSize int,
	events ports.EventSink,
	log *slog.Logger,
) {
	defer close(active.audioDone)

	if chunkSize < 256 {
		chunkSize = 4096
	}
	frameBytes := active.converter.FrameBytes()
	if rem := chunkSize % frameBytes; rem != 0 {
		chunkSize += frameBytes - rem
	}

	buf := make([]byte, chunkSize)
	// Capture backends piped through a subprocess deliver reads at
	// arbitrary byte offsets, so partial frames are carried over to the
	// next iteration instead of being handed to the converter misaligned.
	var pending []byte

	for {
		n, err := active.audio.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			aligned := len(pending) - len(pending)%frameBytes
			if aligned > 0 {
				if sendErr := deliverBuffer(active, pending[:aligned], events, log); sendErr != nil {
					// The stream is going down; its consumer surfaces
					// the failure.
					log.Debug("audio send failed", "session_id", active.id, "error", sendErr)
					return
				}
				pending = pending[aligned:]
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("audio capture read failed", "session_id", active.id, "error", err)
			}
			return
		}
	}
}

// deliverBuffer converts and forwards one aligned buffer. Conversion
// failures drop the buffer and return nil; only a send failure is returned.
func deliverBuffer(active *activeSession, raw []byte, events ports.EventSink, log *slog.Logger) error {
	pcm, err := active.converter.Convert(raw)
	if err != nil {
		var convErr *audio.ConversionError
		if errors.As(err, &convErr) {
			log.Warn("dropping unconvertible audio buffer", "session_id", active.id, "reason", convErr.Reason)
		} else {
			log.Warn("dropping audio buffer", "session_id", active.id, "error", err)
		}
		return nil
	}
	if len(pcm) == 0 {
		return nil
	}

	if err := active.stream.SendAudio(pcm); err != nil {
		return err
	}
	events.SoundLevel(audio.LevelDB(pcm))
	return nil
}

// consumeTranscriptionEvents folds stream events into snapshots until the
// stream closes, then reports how the stream ended. onStreamEnd runs after
// eventsDone is closed so it may rejoin the controller without deadlocking.
func consumeTranscriptionEvents(
	active *activeSession,
	events ports.EventSink,
	onStreamEnd func(active *activeSession, err error),
) {
	for event := range active.stream.Events() {
		if snapshot, emit := active.reconciler.apply(event, active.interimEnabled); emit {
			events.Transcript(snapshot)
		}
	}

	err := active.stream.Wait()
	close(active.eventsDone)
	if onStreamEnd != nil {
		onStreamEnd(active, err)
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
