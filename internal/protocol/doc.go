// Package protocol implements parsing and validation of the side-channel
// chunk format. It handles the pipe-delimited fragment envelope, the
// unknown-total sentinel, and decoding of reassembled payloads into
// structured transcript records.
package protocol
