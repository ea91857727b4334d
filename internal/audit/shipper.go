package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trend-edge-lab/internal/domain"
)

// Shipper defaults.
const (
	DefaultBatchSize  = 100
	DefaultBufferCap  = 2000
	DefaultFlushEvery = 8 * time.Second
)

// Sink persists a batch of audit records.
type Sink interface {
	InsertBulk(ctx context.Context, records []*domain.AuditRecord) error
}

// ShipperOption configures a Shipper.
type ShipperOption func(*Shipper)

// WithBatchSize sets the maximum records per flush.
func WithBatchSize(n int) ShipperOption {
	return func(s *Shipper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBufferCap sets the queue bound; the oldest records are dropped past it.
func WithBufferCap(n int) ShipperOption {
	return func(s *Shipper) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithFlushEvery sets the periodic flush interval of Run.
func WithFlushEvery(d time.Duration) ShipperOption {
	return func(s *Shipper) {
		if d > 0 {
			s.flushEvery = d
		}
	}
}

// WithLogger sets the logger used for flush failures.
func WithLogger(l *zap.Logger) ShipperOption {
	return func(s *Shipper) {
		if l != nil {
			s.logger = l
		}
	}
}

// Shipper buffers events and writes them to a Sink in batches. A failed
// batch is put back at the front of the queue. Safe for concurrent use.
type Shipper struct {
	sink       Sink
	batchSize  int
	capacity   int
	flushEvery time.Duration
	logger     *zap.Logger
	newID      func() string

	mu      sync.Mutex
	queue   []*domain.AuditRecord
	dropped int64
}

// NewShipper creates a shipper writing to sink.
func NewShipper(sink Sink, opts ...ShipperOption) *Shipper {
	s := &Shipper{
		sink:       sink,
		batchSize:  DefaultBatchSize,
		capacity:   DefaultBufferCap,
		flushEvery: DefaultFlushEvery,
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record implements Recorder.
func (s *Shipper) Record(e Event) {
	rec := e.Record(s.newID())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, rec)
	if over := len(s.queue) - s.capacity; over > 0 {
		s.queue = append([]*domain.AuditRecord(nil), s.queue[over:]...)
		s.dropped += int64(over)
	}
}

// Pending returns the number of queued records.
func (s *Shipper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Dropped returns the number of records discarded by the buffer bound.
func (s *Shipper) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Flush writes at most one batch. On failure the batch is re-queued ahead of
// records that arrived meanwhile and the error is returned.
func (s *Shipper) Flush(ctx context.Context) error {
	s.mu.Lock()
	n := min(s.batchSize, len(s.queue))
	if n == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := append([]*domain.AuditRecord(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	s.mu.Unlock()

	if err := s.sink.InsertBulk(ctx, batch); err != nil {
		s.mu.Lock()
		s.queue = append(batch, s.queue...)
		if over := len(s.queue) - s.capacity; over > 0 {
			s.queue = s.queue[:s.capacity]
			s.dropped += int64(over)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// FlushAll drains the queue batch by batch, stopping at the first failure.
func (s *Shipper) FlushAll(ctx context.Context) error {
	for s.Pending() > 0 {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Run flushes periodically until ctx is done, then drains with a short
// grace period.
func (s *Shipper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.FlushAll(drainCtx); err != nil {
				s.logger.Warn("audit drain failed", zap.Int("pending", s.Pending()), zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("audit flush failed", zap.Int("pending", s.Pending()), zap.Error(err))
			}
		}
	}
}

var _ Recorder = (*Shipper)(nil)
