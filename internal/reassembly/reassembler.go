package reassembly

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BenWeekes/ai-therapist/internal/protocol"
)

// Result classifies the outcome of ingesting a single chunk.
type Result int

const (
	ResultBuffered      Result = iota // Chunk stored, message still incomplete
	ResultCompleted                   // Chunk completed the message; record returned
	ResultDroppedUnknown              // Unknown total part count, never buffered
	ResultDuplicate                   // Part index already collected for this message
	ResultInvalidIndex                // Part index outside the declared range
	ResultDecodeError                 // Message completed but payload failed to decode
	ResultCapacity                    // Pending map full, chunk refused
)

// String returns a human-readable name for the result.
func (r Result) String() string {
	switch r {
	case ResultBuffered:
		return "buffered"
	case ResultCompleted:
		return "completed"
	case ResultDroppedUnknown:
		return "dropped_unknown"
	case ResultDuplicate:
		return "duplicate"
	case ResultInvalidIndex:
		return "invalid_index"
	case ResultDecodeError:
		return "decode_error"
	case ResultCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// pendingMessage holds the chunks collected so far for one message id.
// Chunks are keyed by part index so duplicates cannot count toward
// completion with a corrupted concatenation.
type pendingMessage struct {
	totalParts int
	parts      map[int]string
	deadline   time.Time
	firstSeen  time.Time
}

// Config contains reassembler configuration.
type Config struct {
	Timeout    time.Duration // Eviction delay measured from first-chunk arrival
	MaxPending int           // Upper bound on concurrently pending messages
}

// Stats is a snapshot of reassembler counters.
type Stats struct {
	Pending        int    `json:"pending"`
	Completed      uint64 `json:"completed"`
	Evicted        uint64 `json:"evicted"`
	DroppedUnknown uint64 `json:"dropped_unknown"`
	Duplicates     uint64 `json:"duplicates"`
	DecodeErrors   uint64 `json:"decode_errors"`
	CapacityDrops  uint64 `json:"capacity_drops"`
}

// Reassembler reconstructs transcript records from message fragments that
// arrive out of order over a lossy side-channel. Entries that do not
// complete within the configured timeout are evicted; a chunk arriving for
// an evicted id starts a fresh, independent entry.
type Reassembler struct {
	config  Config
	pending map[string]*pendingMessage
	logger  *slog.Logger

	// now is replaceable so eviction behavior is testable without
	// a real clock.
	now func() time.Time

	completed      uint64
	evicted        uint64
	droppedUnknown uint64
	duplicates     uint64
	decodeErrors   uint64
	capacityDrops  uint64

	mu sync.Mutex
}

// NewReassembler creates a reassembler with the given configuration.
func NewReassembler(config Config, logger *slog.Logger) *Reassembler {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxPending <= 0 {
		config.MaxPending = 256
	}

	return &Reassembler{
		config:  config,
		pending: make(map[string]*pendingMessage),
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest processes one chunk. It returns the decoded transcript record
// when the chunk completes its message, together with a Result describing
// what happened. Decode and parse failures are logged and reported as
// ResultDecodeError; no error escapes to the caller.
func (r *Reassembler) Ingest(chunk *protocol.Chunk) (*protocol.TranscriptRecord, Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictExpired(now)

	// A chunk whose total part count is unknown is never buffered.
	if chunk.TotalUnknown {
		r.droppedUnknown++
		r.logger.Debug("Dropping chunk with unknown total parts",
			slog.String("message_id", chunk.MessageID),
			slog.Int("part_index", chunk.PartIndex),
		)
		return nil, ResultDroppedUnknown
	}

	if chunk.PartIndex >= chunk.TotalParts {
		r.logger.Warn("Dropping chunk with out-of-range part index",
			slog.String("message_id", chunk.MessageID),
			slog.Int("part_index", chunk.PartIndex),
			slog.Int("total_parts", chunk.TotalParts),
		)
		return nil, ResultInvalidIndex
	}

	entry, exists := r.pending[chunk.MessageID]
	if !exists {
		if len(r.pending) >= r.config.MaxPending {
			r.capacityDrops++
			r.logger.Warn("Pending message map full, refusing chunk",
				slog.String("message_id", chunk.MessageID),
				slog.Int("max_pending", r.config.MaxPending),
			)
			return nil, ResultCapacity
		}

		entry = &pendingMessage{
			totalParts: chunk.TotalParts,
			parts:      make(map[int]string, chunk.TotalParts),
			deadline:   now.Add(r.config.Timeout),
			firstSeen:  now,
		}
		r.pending[chunk.MessageID] = entry
	}

	// A chunk must agree with the total declared by the entry's first
	// chunk. A mismatched total could otherwise satisfy the completion
	// count with declared parts still missing.
	if chunk.TotalParts != entry.totalParts {
		r.logger.Warn("Dropping chunk inconsistent with pending message",
			slog.String("message_id", chunk.MessageID),
			slog.Int("part_index", chunk.PartIndex),
			slog.Int("total_parts", chunk.TotalParts),
			slog.Int("expected_total", entry.totalParts),
		)
		return nil, ResultInvalidIndex
	}

	if _, dup := entry.parts[chunk.PartIndex]; dup {
		r.duplicates++
		r.logger.Debug("Ignoring duplicate chunk",
			slog.String("message_id", chunk.MessageID),
			slog.Int("part_index", chunk.PartIndex),
		)
		return nil, ResultDuplicate
	}
	entry.parts[chunk.PartIndex] = chunk.Content

	// Completion requires every declared part, counted by distinct index.
	if len(entry.parts) < entry.totalParts {
		return nil, ResultBuffered
	}

	delete(r.pending, chunk.MessageID)

	record, err := decodeParts(entry.parts)
	if err != nil {
		r.decodeErrors++
		r.logger.Warn("Failed to decode reassembled message",
			slog.String("message_id", chunk.MessageID),
			slog.Int("total_parts", entry.totalParts),
			slog.String("error", err.Error()),
		)
		return nil, ResultDecodeError
	}

	r.completed++
	r.logger.Debug("Message reassembled",
		slog.String("message_id", chunk.MessageID),
		slog.Int("total_parts", entry.totalParts),
		slog.Duration("assembly_time", now.Sub(entry.firstSeen)),
	)

	return record, ResultCompleted
}

// Sweep removes pending entries whose eviction deadline has passed and
// returns the number evicted. Eviction also happens lazily on every
// Ingest; Sweep covers quiet periods with no arrivals.
func (r *Reassembler) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.evictExpired(r.now())
}

// PendingCount returns the number of messages currently awaiting parts.
func (r *Reassembler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// GetStats returns a snapshot of reassembler counters.
func (r *Reassembler) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Pending:        len(r.pending),
		Completed:      r.completed,
		Evicted:        r.evicted,
		DroppedUnknown: r.droppedUnknown,
		Duplicates:     r.duplicates,
		DecodeErrors:   r.decodeErrors,
		CapacityDrops:  r.capacityDrops,
	}
}

// Reset discards all pending entries.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = make(map[string]*pendingMessage)
}

// SetNowFunc replaces the time source. Intended for tests.
func (r *Reassembler) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = now
}

// evictExpired removes expired entries. Caller must hold r.mu.
func (r *Reassembler) evictExpired(now time.Time) int {
	evicted := 0
	for id, entry := range r.pending {
		if now.Before(entry.deadline) {
			continue
		}
		delete(r.pending, id)
		r.evicted++
		evicted++
		r.logger.Debug("Evicted incomplete message",
			slog.String("message_id", id),
			slog.Int("collected", len(entry.parts)),
			slog.Int("total_parts", entry.totalParts),
		)
	}
	return evicted
}

// decodeParts concatenates collected parts in ascending part-index order
// and decodes the result, making output independent of arrival order.
func decodeParts(parts map[int]string) (*protocol.TranscriptRecord, error) {
	indices := make([]int, 0, len(parts))
	for idx := range parts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	var payload strings.Builder
	for _, idx := range indices {
		payload.WriteString(parts[idx])
	}

	return protocol.DecodeRecord(payload.String())
}
