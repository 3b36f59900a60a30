// Package visualizer converts a continuous audio energy measure into a
// smoothed, discrete bar-count signal for display. It applies an
// asymmetric fast-attack/slow-decay law twice, once to the normalized
// level and once to the lit-bar count, and caps the outward publish rate.
package visualizer
