package usecase

import (
	"strings"
	"sync"

	"sttbridge/internal/domain"
)

// transcriptReconciler folds the provider's event stream into boundary
// snapshots. Final segments accumulate; volatile text is wholesale replaced
// by each interim event and cleared when a segment finalizes.
type transcriptReconciler struct {
	mu        sync.Mutex
	finalized strings.Builder
	volatile  string
	lastFinal string
	finals    int
}

func newTranscriptReconciler() *transcriptReconciler {
	return &transcriptReconciler{}
}

// apply folds one event and reports the snapshot to deliver. The second
// return is false when nothing should reach the boundary: blank text,
// a repeated final segment, or an interim update while interim delivery
// is disabled.
func (r *transcriptReconciler) apply(event domain.TranscriptEvent, interimEnabled bool) (domain.TranscriptSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return r.snapshotLocked(false), false
	}

	if event.IsFinal() {
		// Engines occasionally re-emit the segment they just committed.
		// Appending it would double the text, so the repeat is dropped.
		if text == r.lastFinal {
			return r.snapshotLocked(false), false
		}
		// Finalized text is the plain concatenation of committed segments;
		// any spacing between them is the engine's to provide.
		r.finalized.WriteString(text)
		r.lastFinal = text
		r.volatile = ""
		r.finals++
		return r.snapshotLocked(true), true
	}

	r.volatile = text
	return r.snapshotLocked(false), interimEnabled
}

func (r *transcriptReconciler) snapshotLocked(isFinal bool) domain.TranscriptSnapshot {
	return domain.TranscriptSnapshot{
		FinalText:    r.finalized.String(),
		VolatileText: r.volatile,
		IsFinal:      isFinal,
	}
}

// hasFinal reports whether at least one segment was committed.
func (r *transcriptReconciler) hasFinal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finals > 0
}
