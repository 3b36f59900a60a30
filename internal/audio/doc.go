// Package audio connects a live audio level source to the voice-activity
// estimator and the amplitude visualizer. It owns the sampling and render
// tick loops and the teardown discipline for source swaps.
package audio
