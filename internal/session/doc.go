// Package session provides session management and lifecycle handling for
// live support sessions. Each session owns a chunk reassembler, transcript
// dispatcher, voice-activity estimator and amplitude visualizer, and exposes
// a typed event stream to the serving layer. The manager handles concurrent
// sessions and automatic cleanup of idle ones based on configurable timeouts.
package session
