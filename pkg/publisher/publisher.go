package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/failover"
)

// ErrNotConnected is returned when publishing without a live connection.
var ErrNotConnected = errors.New("nats client not connected")

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

const flushTimeout = 2 * time.Second

// Publisher publishes failover events to NATS. It implements
// failover.EventSink.
type Publisher struct {
	prefix string
	conn   Conn
	queue  chan failover.Event
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// Connect dials the configured servers and returns a running publisher.
// The connection retries in the background when the servers are unreachable
// at startup, so an error here means the options themselves were rejected.
func Connect(cfg config.NATSConfig) (*Publisher, error) {
	logger := slog.Default().With("component", "publisher")

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connection failed: %w", err)
	}

	if nc.IsConnected() {
		logger.Info("connected to NATS", "url", nc.ConnectedUrl())
	} else {
		logger.Warn("NATS unreachable, retrying in background", "servers", cfg.Servers)
	}

	return New(nc, cfg.SubjectPrefix, cfg.BufferSize), nil
}

// New creates a publisher over an existing connection and starts its worker.
func New(conn Conn, prefix string, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = config.DefaultNATSBufferSize
	}
	if prefix == "" {
		prefix = config.DefaultNATSSubjectPrefix
	}

	p := &Publisher{
		prefix: prefix,
		conn:   conn,
		queue:  make(chan failover.Event, bufferSize),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "publisher"),
	}

	p.wg.Add(1)
	go p.worker()

	return p
}

// HandleEvent enqueues ev for publication.
func (p *Publisher) HandleEvent(ev failover.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.dropped.Add(1)
		p.logger.Warn("publish queue full, dropping event",
			"event_id", ev.ID,
			"type", ev.Type,
		)
	}
}

// IsConnected reports whether the NATS connection is live.
func (p *Publisher) IsConnected() bool {
	return p.conn.IsConnected()
}

// Published returns the number of events handed to NATS.
func (p *Publisher) Published() uint64 { return p.published.Load() }

// Dropped returns the number of events discarded before publication.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Failed returns the number of events NATS rejected.
func (p *Publisher) Failed() uint64 { return p.failed.Load() }

// Close drains the queue, flushes and closes the connection.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		close(p.done)
		p.wg.Wait()

		if p.conn.IsConnected() {
			if ferr := p.conn.FlushTimeout(flushTimeout); ferr != nil {
				err = fmt.Errorf("flush NATS connection: %w", ferr)
			}
		}
		p.conn.Close()

		p.logger.Info("publisher closed",
			"published", p.Published(),
			"dropped", p.Dropped(),
			"failed", p.Failed(),
		)
	})
	return err
}

func (p *Publisher) worker() {
	defer p.wg.Done()

	for {
		select {
		case ev := <-p.queue:
			p.publish(ev)
		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) publish(ev failover.Event) {
	if !p.conn.IsConnected() {
		p.dropped.Add(1)
		p.logger.Debug("not connected, dropping event", "event_id", ev.ID, "type", ev.Type)
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to marshal event", "event_id", ev.ID, "error", err)
		return
	}

	subject := Subject(p.prefix, ev)
	if err := p.conn.Publish(subject, data); err != nil {
		p.failed.Add(1)
		p.logger.Error("failed to publish event",
			"subject", subject,
			"event_id", ev.ID,
			"error", err,
		)
		return
	}
	p.published.Add(1)
}

// Subject returns the subject ev is published on.
func Subject(prefix string, ev failover.Event) string {
	scope := ev.RuleID
	if scope == "" {
		scope = string(ev.ProviderID)
	}
	if scope == "" {
		scope = "_"
	}
	return prefix + "." + token(string(ev.Type)) + "." + token(scope)
}

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

func token(s string) string {
	return tokenReplacer.Replace(s)
}
