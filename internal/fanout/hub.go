// Package fanout delivers lead lifecycle events to live connections joined to
// sector channels. Delivery is at-most-once with no replay: a connection whose
// buffer is full misses the event.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leadmarket_backend/platform/config"
	"leadmarket_backend/platform/logger"

	"github.com/google/uuid"
)

// Event kinds sent to subscribers.
const (
	KindLeadNew      = "lead:new"
	KindLeadReserved = "lead:reserved"
	KindLeadSold     = "lead:sold"
)

const (
	defaultBuffer         = 32
	defaultPublishTimeout = 2 * time.Second
)

// Message is the frame written to a connection.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// envelope is what travels between instances over a relay.
type envelope struct {
	Origin    string   `json:"origin"`
	SectorIDs []string `json:"sectorIds"`
	Message   Message  `json:"message"`
}

// Relay forwards published events to other API instances.
type Relay interface {
	Publish(ctx context.Context, data []byte) error
	// Run delivers frames published by any instance until ctx is done.
	Run(ctx context.Context, deliver func([]byte)) error
	Close() error
}

// Conn is a single live subscriber.
type Conn struct {
	id     string
	userID uuid.UUID
	send   chan Message
	done   chan struct{}
	once   sync.Once
}

// ID returns the connection id used in logs.
func (c *Conn) ID() string { return c.id }

// UserID returns the authenticated user behind the connection.
func (c *Conn) UserID() uuid.UUID { return c.userID }

// Messages returns the connection's outbound queue.
func (c *Conn) Messages() <-chan Message { return c.send }

// Done is closed when the hub drops the connection.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub tracks connections per sector and fans published events out to them.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*Conn]map[string]struct{} // conn -> joined sectors
	sectors map[string]map[*Conn]struct{} // sector -> conns

	instance       string
	buffer         int
	publishTimeout time.Duration
	relay          Relay
	log            *logger.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHub creates a hub. relay may be nil for single-instance deployments.
func NewHub(cfg config.FanoutConfig, relay Relay, log *logger.Logger) *Hub {
	buffer := defaultBuffer
	timeout := defaultPublishTimeout
	if cfg != nil {
		if cfg.GetFanoutBuffer() > 0 {
			buffer = cfg.GetFanoutBuffer()
		}
		if cfg.GetFanoutPublishTimeout() > 0 {
			timeout = cfg.GetFanoutPublishTimeout()
		}
	}
	return &Hub{
		conns:          make(map[*Conn]map[string]struct{}),
		sectors:        make(map[string]map[*Conn]struct{}),
		instance:       uuid.NewString(),
		buffer:         buffer,
		publishTimeout: timeout,
		relay:          relay,
		log:            log,
	}
}

// Start begins consuming the relay, if any.
func (h *Hub) Start(ctx context.Context) {
	if h.relay == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.relay.Run(ctx, h.receive); err != nil && ctx.Err() == nil {
			h.log.Error("fanout relay stopped", "error", err)
		}
	}()
}

// Stop halts the relay consumer and drops every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(h.stop)
}

func (h *Hub) stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
	if h.relay != nil {
		if err := h.relay.Close(); err != nil {
			h.log.Warn("fanout relay close failed", "error", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.close()
	}
	h.conns = make(map[*Conn]map[string]struct{})
	h.sectors = make(map[string]map[*Conn]struct{})
}

// Register adds an authenticated connection that has not joined any sector yet.
func (h *Hub) Register(userID uuid.UUID) *Conn {
	c := &Conn{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan Message, h.buffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	h.mu.Unlock()
	return c
}

// Unregister removes the connection from every sector.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.conns[c]
	if !ok {
		return
	}
	for sector := range joined {
		h.detach(sector, c)
	}
	delete(h.conns, c)
	c.close()
}

// Join subscribes the connection to the given sectors. Unknown connections are ignored.
func (h *Hub) Join(c *Conn, sectorIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.conns[c]
	if !ok {
		return
	}
	for _, sector := range sectorIDs {
		if sector == "" {
			continue
		}
		joined[sector] = struct{}{}
		members := h.sectors[sector]
		if members == nil {
			members = make(map[*Conn]struct{})
			h.sectors[sector] = members
		}
		members[c] = struct{}{}
	}
}

// Leave unsubscribes the connection from the given sectors.
func (h *Hub) Leave(c *Conn, sectorIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.conns[c]
	if !ok {
		return
	}
	for _, sector := range sectorIDs {
		delete(joined, sector)
		h.detach(sector, c)
	}
}

// caller holds h.mu
func (h *Hub) detach(sector string, c *Conn) {
	members := h.sectors[sector]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.sectors, sector)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Publish delivers kind/payload to every local connection joined to any of
// sectorIDs, then forwards it to the relay. It never blocks on a slow reader.
func (h *Hub) Publish(ctx context.Context, sectorIDs []string, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("fanout: marshal %s payload: %w", kind, err)
	}
	msg := Message{Type: kind, Payload: data}

	h.deliver(sectorIDs, msg)

	if h.relay == nil {
		return nil
	}
	frame, err := json.Marshal(envelope{Origin: h.instance, SectorIDs: sectorIDs, Message: msg})
	if err != nil {
		return fmt.Errorf("fanout: marshal envelope: %w", err)
	}
	rctx, cancel := context.WithTimeout(ctx, h.publishTimeout)
	defer cancel()
	if err := h.relay.Publish(rctx, frame); err != nil {
		return fmt.Errorf("fanout: relay publish %s: %w", kind, err)
	}
	return nil
}

func (h *Hub) receive(frame []byte) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		h.log.Warn("fanout relay frame rejected", "error", err)
		return
	}
	if env.Origin == h.instance {
		return
	}
	h.deliver(env.SectorIDs, env.Message)
}

func (h *Hub) deliver(sectorIDs []string, msg Message) {
	h.mu.RLock()
	targets := make(map[*Conn]struct{})
	for _, sector := range sectorIDs {
		for c := range h.sectors[sector] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			h.log.FanoutDropped(msg.Type, c.id, "buffer full")
		}
	}
}
