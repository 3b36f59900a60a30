// Package transcript maintains the dialogue transcript for a session: an
// ordered, append-only list of finalized turns attributed to exactly two
// participants, plus a single overwritable in-progress slot.
package transcript
