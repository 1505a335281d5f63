package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"meridian-hq/feedwatch/pkg/failover"
)

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
)

const (
	defaultClientBuffer = 64
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxClientMessage    = 512
)

// StreamMessage is one websocket frame sent to stream clients.
type StreamMessage struct {
	Type        string                  `json:"type"`
	IsSimulated bool                    `json:"isSimulated,omitempty"`
	Rules       []failover.RuleSnapshot `json:"rules,omitempty"`
	Event       *failover.Event         `json:"event,omitempty"`
}

// StreamConfig configures a StreamHub.
type StreamConfig struct {
	// AllowedOrigins lists accepted Origin headers. Empty accepts same-origin
	// requests only; "*" accepts any origin.
	AllowedOrigins []string

	// ClientBuffer is the per-client event queue length.
	ClientBuffer int

	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is how long a client may stay silent before it is dropped.
	// Pings are sent at 9/10 of this interval.
	PongWait time.Duration
}

// StreamHub fans failover events out to websocket clients. It implements
// failover.EventSink; a client that cannot keep up loses events rather than
// slowing the service.
type StreamHub struct {
	registry *failover.Registry
	upgrader websocket.Upgrader
	cfg      StreamConfig
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	closed  bool

	dropped atomic.Uint64
}

type streamClient struct {
	conn     *websocket.Conn
	addr     string
	send     chan failover.Event
	done     chan struct{}
	once     sync.Once
	rule     string
	provider failover.ProviderID
}

func (c *streamClient) stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *streamClient) wants(ev failover.Event) bool {
	if c.rule != "" && ev.RuleID != c.rule {
		return false
	}
	if c.provider != "" && ev.ProviderID != c.provider &&
		ev.FromProvider != c.provider && ev.ToProvider != c.provider {
		return false
	}
	return true
}

// NewStreamHub creates a hub. The registry supplies the rule snapshot sent to
// each new client.
func NewStreamHub(registry *failover.Registry, cfg StreamConfig) *StreamHub {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = defaultClientBuffer
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	h := &StreamHub{
		registry: registry,
		cfg:      cfg,
		logger:   slog.Default().With("component", "api.stream"),
		clients:  make(map[*streamClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts requests without an Origin header, same-host origins
// and the configured ones.
func (h *StreamHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleEvent queues ev for every interested client.
func (h *StreamHub) HandleEvent(ev failover.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			h.dropped.Add(1)
			h.logger.Warn("stream client too slow, dropping event",
				"remote_addr", c.addr,
				"event_id", ev.ID,
			)
		}
	}
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many events were discarded for slow clients.
func (h *StreamHub) Dropped() uint64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects. Optional ?rule= and ?provider= parameters filter the stream.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		WriteError(w, r, http.StatusServiceUnavailable, CodeInternal, "event stream is shutting down")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := &streamClient{
		conn:     conn,
		addr:     r.RemoteAddr,
		send:     make(chan failover.Event, h.cfg.ClientBuffer),
		done:     make(chan struct{}),
		rule:     r.URL.Query().Get("rule"),
		provider: failover.ProviderID(r.URL.Query().Get("provider")),
	}

	// Events raised while the snapshot is written queue up behind it.
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteWait))
		conn.Close()
		return
	}
	if err := h.writeFrame(c, h.snapshotMessage(c)); err != nil {
		h.unregister(c)
		conn.Close()
		return
	}
	h.logger.Info("stream client connected",
		"remote_addr", r.RemoteAddr,
		"rule", c.rule,
		"provider", c.provider,
	)

	go h.readLoop(c)
	h.writeLoop(c)

	h.unregister(c)
	conn.Close()
	h.logger.Info("stream client disconnected", "remote_addr", r.RemoteAddr)
}

func (h *StreamHub) snapshotMessage(c *streamClient) StreamMessage {
	msg := StreamMessage{Type: MessageSnapshot}

	svc, ok := h.registry.Service()
	if !ok {
		msg.IsSimulated = true
		return msg
	}
	for _, snap := range svc.GetRuleSnapshots() {
		if c.rule == "" || snap.RuleID == c.rule {
			msg.Rules = append(msg.Rules, snap)
		}
	}
	return msg
}

func (h *StreamHub) register(c *streamClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *StreamHub) unregister(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
}

// readLoop consumes client frames so control messages are processed. It
// stops the client on any read error, including a missed pong.
func (h *StreamHub) readLoop(c *streamClient) {
	defer c.stop()

	c.conn.SetReadLimit(maxClientMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(c *streamClient) {
	ping := time.NewTicker(h.cfg.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		case ev := <-c.send:
			if err := h.writeFrame(c, StreamMessage{Type: MessageEvent, Event: &ev}); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHub) writeFrame(c *streamClient, msg StreamMessage) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return c.conn.WriteJSON(msg)
}

// Close disconnects every client and rejects new ones.
func (h *StreamHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
}
