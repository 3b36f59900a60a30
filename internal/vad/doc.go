// Package vad infers the remote speaker's voice-activity state from
// periodic amplitude samples. It applies hysteresis over a short sliding
// window so that a single stray reading never flips the state.
package vad
