package session

import (
	"github.com/BenWeekes/ai-therapist/internal/transcript"
	"github.com/BenWeekes/ai-therapist/internal/vad"
)

// Event is a typed notification delivered to the rendering collaborator.
// The set of implementations is closed; payload shapes are checked at
// compile time rather than flowing through an untyped emitter.
type Event interface {
	isEvent()
}

// TranscriptEvent reports a transcript mutation: a newly finalized turn
// and/or the current in-progress message.
type TranscriptEvent struct {
	Finalized  *transcript.FinalizedMessage  `json:"finalized,omitempty"`
	InProgress *transcript.InProgressMessage `json:"in_progress,omitempty"`
}

// VoiceStateEvent reports a speaking/listening transition.
type VoiceStateEvent struct {
	State vad.State `json:"state"`
}

// BarsEvent carries a published visualization bar array.
type BarsEvent struct {
	Bars []float64 `json:"bars"`
}

func (TranscriptEvent) isEvent() {}
func (VoiceStateEvent) isEvent() {}
func (BarsEvent) isEvent()       {}
