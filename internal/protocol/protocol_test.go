package protocol

import (
	"strings"
	"testing"
)

func TestParseChunk(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		expectError  bool
		messageID    string
		partIndex    int
		totalParts   int
		totalUnknown bool
		content      string
	}{
		{
			name:       "single part message",
			raw:        "msg-1|0|1|SGVsbG8=",
			messageID:  "msg-1",
			partIndex:  0,
			totalParts: 1,
			content:    "SGVsbG8=",
		},
		{
			name:       "middle part of multi-part message",
			raw:        "msg-42|2|5|YWJjZGVm",
			messageID:  "msg-42",
			partIndex:  2,
			totalParts: 5,
			content:    "YWJjZGVm",
		},
		{
			name:         "undefined total sentinel",
			raw:          "msg-7|0|undefined|AAAA",
			messageID:    "msg-7",
			partIndex:    0,
			totalUnknown: true,
			content:      "AAAA",
		},
		{
			name:         "unknown total sentinel",
			raw:          "msg-8|1|unknown|BBBB",
			messageID:    "msg-8",
			partIndex:    1,
			totalUnknown: true,
			content:      "BBBB",
		},
		{
			name:       "content containing separator characters",
			raw:        "msg-9|0|1|YWJ8Y2Q=|extra",
			messageID:  "msg-9",
			partIndex:  0,
			totalParts: 1,
			content:    "YWJ8Y2Q=|extra",
		},
		{
			name:       "empty content",
			raw:        "msg-10|0|1|",
			messageID:  "msg-10",
			partIndex:  0,
			totalParts: 1,
			content:    "",
		},
		{
			name:        "too few fields",
			raw:         "msg-1|0|1",
			expectError: true,
		},
		{
			name:        "empty message id",
			raw:         "|0|1|AAAA",
			expectError: true,
		},
		{
			name:        "non-numeric part index",
			raw:         "msg-1|abc|1|AAAA",
			expectError: true,
		},
		{
			name:        "negative part index",
			raw:         "msg-1|-1|1|AAAA",
			expectError: true,
		},
		{
			name:        "non-numeric total parts",
			raw:         "msg-1|0|many|AAAA",
			expectError: true,
		},
		{
			name:        "zero total parts",
			raw:         "msg-1|0|0|AAAA",
			expectError: true,
		},
		{
			name:        "empty string",
			raw:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, err := ParseChunk(tt.raw)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if chunk.MessageID != tt.messageID {
				t.Errorf("MessageID = %q, want %q", chunk.MessageID, tt.messageID)
			}
			if chunk.PartIndex != tt.partIndex {
				t.Errorf("PartIndex = %d, want %d", chunk.PartIndex, tt.partIndex)
			}
			if chunk.TotalParts != tt.totalParts {
				t.Errorf("TotalParts = %d, want %d", chunk.TotalParts, tt.totalParts)
			}
			if chunk.TotalUnknown != tt.totalUnknown {
				t.Errorf("TotalUnknown = %t, want %t", chunk.TotalUnknown, tt.totalUnknown)
			}
			if chunk.Content != tt.content {
				t.Errorf("Content = %q, want %q", chunk.Content, tt.content)
			}
		})
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	record := &TranscriptRecord{
		StreamID: 12345678901234,
		IsFinal:  true,
		Text:     "hello there",
		TextTS:   1724630400000,
		DataType: "transcribe",
		Role:     "assistant",
	}

	encoded, err := EncodeRecord(record)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	decoded, err := DecodeRecord(encoded)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}

	if decoded.StreamID != record.StreamID {
		t.Errorf("StreamID = %d, want %d", decoded.StreamID, record.StreamID)
	}
	if decoded.IsFinal != record.IsFinal {
		t.Errorf("IsFinal = %t, want %t", decoded.IsFinal, record.IsFinal)
	}
	if decoded.Text != record.Text {
		t.Errorf("Text = %q, want %q", decoded.Text, record.Text)
	}
	if decoded.TextTS != record.TextTS {
		t.Errorf("TextTS = %d, want %d", decoded.TextTS, record.TextTS)
	}
	if !decoded.IsAgent() {
		t.Errorf("IsAgent() = false, want true for role %q", decoded.Role)
	}
}

func TestDecodeRecordErrors(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "invalid base64", encoded: "not base64 at all!!!"},
		{name: "valid base64 invalid json", encoded: "aGVsbG8gd29ybGQ="},
		{
			name: "concatenation with mid-stream padding",
			// Two independently encoded fragments glued together do not
			// form a decodable payload.
			encoded: "SGVsbG8sQg==d29ybGQh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeRecord(tt.encoded); err == nil {
				t.Errorf("Expected error decoding %q", tt.encoded)
			}
		})
	}
}

func TestIsAgent(t *testing.T) {
	tests := []struct {
		role  string
		agent bool
	}{
		{role: "assistant", agent: true},
		{role: "user", agent: false},
		{role: "", agent: false},
		{role: "Assistant", agent: false},
	}

	for _, tt := range tests {
		record := &TranscriptRecord{Role: tt.role}
		if got := record.IsAgent(); got != tt.agent {
			t.Errorf("IsAgent() with role %q = %t, want %t", tt.role, got, tt.agent)
		}
	}
}

func TestSplitPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		n       int
		want    int
	}{
		{name: "even split", payload: "abcdef", n: 3, want: 3},
		{name: "uneven split", payload: "abcdefg", n: 3, want: 3},
		{name: "more parts than characters", payload: "ab", n: 5, want: 2},
		{name: "single part", payload: "abcdef", n: 1, want: 1},
		{name: "zero parts clamps to one", payload: "abc", n: 0, want: 1},
		{name: "empty payload", payload: "", n: 3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts := SplitPayload(tt.payload, tt.n)
			if len(parts) != tt.want {
				t.Fatalf("got %d parts, want %d", len(parts), tt.want)
			}
			if joined := strings.Join(parts, ""); joined != tt.payload {
				t.Errorf("joined parts = %q, want %q", joined, tt.payload)
			}
		})
	}
}
