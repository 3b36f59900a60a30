// Package metrics defines the Prometheus instrumentation for the session
// service: reassembly, transcript, voice-activity, visualizer, session
// lifecycle, webhook, and transport counters.
package metrics
