package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Protocol constants for the side-channel message format
const (
	// Field layout: message_id|part_index|total_parts|content
	FieldCount     = 4
	FieldSeparator = "|"

	// Sentinel tokens for an unknown total part count. Senders that cannot
	// size the payload up front emit one of these; such chunks are
	// unconditionally discarded.
	SentinelUndefined = "undefined"
	SentinelUnknown   = "unknown"

	// Role value that marks an agent-authored transcript record. Any other
	// role (including absent) is attributed to the user.
	RoleAssistant = "assistant"
)

// Chunk represents one fragment of an encoded transcript message,
// tagged with its position and the declared total fragment count.
type Chunk struct {
	MessageID    string // Groups fragments of the same message
	PartIndex    int    // Zero-based position within the message
	TotalParts   int    // Declared fragment count (valid when !TotalUnknown)
	TotalUnknown bool   // Sender could not declare a total; chunk must be dropped
	Content      string // One slice of the base64-encoded payload
}

// TranscriptRecord is the structured record carried by a fully
// reassembled message payload.
type TranscriptRecord struct {
	StreamID uint64 `json:"stream_id"`
	IsFinal  bool   `json:"is_final"`
	Text     string `json:"text"`
	TextTS   int64  `json:"text_ts"`
	DataType string `json:"data_type"`
	Role     string `json:"role,omitempty"`
}

// IsAgent reports whether the record was authored by the agent.
func (r *TranscriptRecord) IsAgent() bool {
	return r.Role == RoleAssistant
}

// ParseChunk parses one raw side-channel message into a Chunk.
// The wire format is four |-delimited ASCII fields:
// message_id | part_index | total_parts | content.
func ParseChunk(raw string) (*Chunk, error) {
	fields := strings.SplitN(raw, FieldSeparator, FieldCount)
	if len(fields) != FieldCount {
		return nil, fmt.Errorf("malformed chunk: expected %d fields, got %d", FieldCount, len(fields))
	}

	messageID := fields[0]
	if messageID == "" {
		return nil, fmt.Errorf("malformed chunk: empty message id")
	}

	partIndex, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("malformed chunk: invalid part index %q: %w", fields[1], err)
	}
	if partIndex < 0 {
		return nil, fmt.Errorf("malformed chunk: negative part index %d", partIndex)
	}

	chunk := &Chunk{
		MessageID: messageID,
		PartIndex: partIndex,
		Content:   fields[3],
	}

	switch fields[2] {
	case SentinelUndefined, SentinelUnknown:
		chunk.TotalUnknown = true
	default:
		total, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("malformed chunk: invalid total parts %q: %w", fields[2], err)
		}
		if total < 1 {
			return nil, fmt.Errorf("malformed chunk: total parts must be positive, got %d", total)
		}
		chunk.TotalParts = total
	}

	return chunk, nil
}

// DecodeRecord decodes a reassembled base64 payload and parses the
// contained JSON transcript record.
func DecodeRecord(encoded string) (*TranscriptRecord, error) {
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	var record TranscriptRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to parse transcript record: %w", err)
	}

	return &record, nil
}

// EncodeRecord marshals a transcript record and base64-encodes it.
// It is the inverse of DecodeRecord and exists for senders and tests
// that simulate the remote side of the channel.
func EncodeRecord(record *TranscriptRecord) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript record: %w", err)
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// SplitPayload slices an encoded payload into n chunk contents of roughly
// equal size, for senders constrained by a per-message size limit.
func SplitPayload(encoded string, n int) []string {
	if n < 1 {
		n = 1
	}
	if n > len(encoded) && len(encoded) > 0 {
		n = len(encoded)
	}

	size := (len(encoded) + n - 1) / n
	parts := make([]string, 0, n)
	for start := 0; start < len(encoded); start += size {
		end := start + size
		if end > len(encoded) {
			end = len(encoded)
		}
		parts = append(parts, encoded[start:end])
	}
	if len(parts) == 0 {
		parts = append(parts, "")
	}
	return parts
}

// String returns a human-readable representation of the chunk.
func (c *Chunk) String() string {
	total := strconv.Itoa(c.TotalParts)
	if c.TotalUnknown {
		total = SentinelUnknown
	}
	return fmt.Sprintf("Chunk{MessageID:%q, Part:%d/%s, ContentLen:%d}",
		c.MessageID, c.PartIndex, total, len(c.Content))
}

// String returns a human-readable representation of the record.
func (r *TranscriptRecord) String() string {
	return fmt.Sprintf("TranscriptRecord{StreamID:%d, Final:%t, Role:%q, TextLen:%d}",
		r.StreamID, r.IsFinal, r.Role, len(r.Text))
}
