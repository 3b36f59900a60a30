package transcript

import (
	"io"
	"log/slog"
	"testing"

	"github.com/BenWeekes/ai-therapist/internal/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchEmptyTextRejected(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "spaces", text: "   "},
		{name: "tabs and newlines", text: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notified := false
			d := NewDispatcher(testLogger(), func(Update) { notified = true })

			record := &protocol.TranscriptRecord{IsFinal: true, Text: tt.text, TextTS: 1}
			if d.Dispatch(record) {
				t.Errorf("Dispatch accepted record with text %q", tt.text)
			}
			if notified {
				t.Errorf("notify invoked for rejected record")
			}
			if d.TurnCount() != 0 {
				t.Errorf("TurnCount = %d, want 0", d.TurnCount())
			}
			if _, ok := d.InProgress(); ok {
				t.Errorf("in-progress slot populated by rejected record")
			}
		})
	}
}

func TestDispatchFinalAppendsAndClearsSlot(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)

	partial := &protocol.TranscriptRecord{IsFinal: false, Text: "typing...", TextTS: 10}
	if !d.Dispatch(partial) {
		t.Fatal("partial record rejected")
	}
	if _, ok := d.InProgress(); !ok {
		t.Fatal("in-progress slot empty after partial record")
	}

	final := &protocol.TranscriptRecord{IsFinal: true, Text: "typed.", TextTS: 20, Role: "assistant"}
	if !d.Dispatch(final) {
		t.Fatal("final record rejected")
	}

	finalized := d.Finalized()
	if len(finalized) != 1 {
		t.Fatalf("finalized count = %d, want 1", len(finalized))
	}
	if finalized[0].Text != "typed." {
		t.Errorf("Text = %q, want %q", finalized[0].Text, "typed.")
	}
	if finalized[0].Participant != ParticipantAgent {
		t.Errorf("Participant = %v, want agent", finalized[0].Participant)
	}
	if finalized[0].Timestamp != 20 {
		t.Errorf("Timestamp = %d, want 20", finalized[0].Timestamp)
	}

	// Finalization clears the in-progress slot.
	if _, ok := d.InProgress(); ok {
		t.Errorf("in-progress slot still populated after finalization")
	}
}

func TestDispatchInProgressLastWriteWins(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)

	first := &protocol.TranscriptRecord{IsFinal: false, Text: "hel", TextTS: 1}
	second := &protocol.TranscriptRecord{IsFinal: false, Text: "hello wor", TextTS: 2, Role: "assistant"}

	d.Dispatch(first)
	d.Dispatch(second)

	inProgress, ok := d.InProgress()
	if !ok {
		t.Fatal("in-progress slot empty")
	}
	if inProgress.Text != "hello wor" {
		t.Errorf("Text = %q, want %q (last write wins)", inProgress.Text, "hello wor")
	}
	if inProgress.Participant != ParticipantAgent {
		t.Errorf("Participant = %v, want agent", inProgress.Participant)
	}
	if d.TurnCount() != 0 {
		t.Errorf("TurnCount = %d, want 0", d.TurnCount())
	}
}

func TestTurnIDsMonotonic(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)

	for i := 0; i < 5; i++ {
		record := &protocol.TranscriptRecord{IsFinal: true, Text: "turn", TextTS: int64(i)}
		if !d.Dispatch(record) {
			t.Fatalf("record %d rejected", i)
		}
	}

	finalized := d.Finalized()
	if len(finalized) != 5 {
		t.Fatalf("finalized count = %d, want 5", len(finalized))
	}
	for i, msg := range finalized {
		if msg.TurnID != i {
			t.Errorf("turn %d has TurnID %d", i, msg.TurnID)
		}
	}
}

func TestParticipantMapping(t *testing.T) {
	tests := []struct {
		role        string
		participant Participant
	}{
		{role: "assistant", participant: ParticipantAgent},
		{role: "user", participant: ParticipantUser},
		{role: "", participant: ParticipantUser},
		{role: "system", participant: ParticipantUser},
	}

	for _, tt := range tests {
		t.Run("role_"+tt.role, func(t *testing.T) {
			d := NewDispatcher(testLogger(), nil)
			record := &protocol.TranscriptRecord{IsFinal: true, Text: "x", Role: tt.role}
			d.Dispatch(record)

			finalized := d.Finalized()
			if len(finalized) != 1 {
				t.Fatalf("finalized count = %d, want 1", len(finalized))
			}
			if finalized[0].Participant != tt.participant {
				t.Errorf("Participant = %v, want %v", finalized[0].Participant, tt.participant)
			}
		})
	}
}

func TestNotifyCarriesUpdate(t *testing.T) {
	var updates []Update
	d := NewDispatcher(testLogger(), func(u Update) { updates = append(updates, u) })

	d.Dispatch(&protocol.TranscriptRecord{IsFinal: false, Text: "partial", TextTS: 1})
	d.Dispatch(&protocol.TranscriptRecord{IsFinal: true, Text: "done", TextTS: 2})

	if len(updates) != 2 {
		t.Fatalf("notify invoked %d times, want 2", len(updates))
	}

	if updates[0].Finalized != nil {
		t.Errorf("first update carries a finalized turn")
	}
	if updates[0].InProgress == nil || updates[0].InProgress.Text != "partial" {
		t.Errorf("first update in-progress = %+v", updates[0].InProgress)
	}

	if updates[1].Finalized == nil || updates[1].Finalized.Text != "done" {
		t.Errorf("second update finalized = %+v", updates[1].Finalized)
	}
	if updates[1].InProgress != nil {
		t.Errorf("second update still carries in-progress text")
	}
}

func TestGetSnapshotIsCopy(t *testing.T) {
	d := NewDispatcher(testLogger(), nil)
	d.Dispatch(&protocol.TranscriptRecord{IsFinal: true, Text: "one", TextTS: 1})
	d.Dispatch(&protocol.TranscriptRecord{IsFinal: false, Text: "two", TextTS: 2})

	snapshot := d.GetSnapshot()
	if len(snapshot.Finalized) != 1 {
		t.Fatalf("snapshot finalized count = %d, want 1", len(snapshot.Finalized))
	}
	if snapshot.InProgress == nil || snapshot.InProgress.Text != "two" {
		t.Fatalf("snapshot in-progress = %+v", snapshot.InProgress)
	}

	// Mutating the snapshot must not affect the dispatcher.
	snapshot.Finalized[0].Text = "mutated"
	snapshot.InProgress.Text = "mutated"

	if d.Finalized()[0].Text != "one" {
		t.Errorf("dispatcher finalized text changed through snapshot")
	}
	if inProgress, _ := d.InProgress(); inProgress.Text != "two" {
		t.Errorf("dispatcher in-progress text changed through snapshot")
	}
}
