package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/failover"
)

// Config contains configuration for the event recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1024
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// Clock stamps RecordedAt. Default: time.Now
	Clock func() time.Time
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		AsyncBuffer:  1024,
		WriteTimeout: 5 * time.Second,
		Clock:        time.Now,
	}
}

// Recorder persists failover events asynchronously. It implements
// failover.EventSink; HandleEvent never blocks the failover service; when the
// buffer is full the event is dropped and counted.
type Recorder struct {
	store      events.Store
	config     *Config
	recordChan chan *events.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates a recorder writing to store and starts its worker.
func NewRecorder(store events.Store, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = 1024
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	r := &Recorder{
		store:      store,
		config:     config,
		recordChan: make(chan *events.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "events.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("event recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// HandleEvent enqueues ev for writing. It implements failover.EventSink.
func (r *Recorder) HandleEvent(ev failover.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	record := &events.Record{Event: ev}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		r.logger.Warn("recorder closed, dropping event",
			"event_id", ev.ID,
			"type", ev.Type,
		)
		return
	}

	select {
	case r.recordChan <- record:
	default:
		r.dropped.Add(1)
		r.logger.Error("event channel full, dropping event",
			"event_id", ev.ID,
			"type", ev.Type,
			"rule_id", ev.RuleID,
			"channel_capacity", r.config.AsyncBuffer,
		)
	}
}

// Dropped returns how many events were discarded.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns how many events reached the store.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Close stops accepting events, drains the buffer and waits for pending
// writes. It does not close the store.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("shutting down event recorder")

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()

		r.logger.Info("event recorder shut down complete",
			"written", r.Written(),
			"dropped", r.Dropped(),
		)
	})
	return nil
}

// worker drains the channel and writes records to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining event channel before shutdown",
				"pending_count", len(r.recordChan),
			)
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record to storage.
func (r *Recorder) writeRecord(record *events.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	record.RecordedAt = r.config.Clock()
	start := time.Now()

	if err := r.store.Store(ctx, record); err != nil {
		r.logger.Error("failed to store event",
			"event_id", record.ID,
			"type", record.Type,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	duration := time.Since(start)
	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow event write",
			"event_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
