// Package reassembly reconstructs transcript messages from fragments
// delivered over a size-limited, lossy side-channel. It buffers chunks by
// message id, completes messages once every declared part has arrived,
// and evicts incomplete entries after a fixed timeout.
package reassembly
