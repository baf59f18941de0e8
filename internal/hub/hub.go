// Package hub tracks the open peer connections and fans messages out to them.
package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/toolrelay/toolrelay/internal/protocol"
)

var (
	ErrClosed       = errors.New("hub: closed")
	ErrPeerNotFound = errors.New("hub: peer not connected")
	ErrSlowConsumer = errors.New("hub: peer send buffer full")
)

// DefaultSendBuffer is the per-peer outbound buffer used when none is configured.
const DefaultSendBuffer = 256

// Peer is one connected client. Its outbound channel is drained by the
// connection's write pump and closed when the peer is removed.
type Peer struct {
	id string
	ch chan []byte

	mu     sync.Mutex
	closed bool
}

// NewPeer returns a peer with an outbound buffer of size buf.
func NewPeer(id string, buf int) *Peer {
	if buf <= 0 {
		buf = DefaultSendBuffer
	}
	return &Peer{id: id, ch: make(chan []byte, buf)}
}

func (p *Peer) ID() string { return p.id }

// Outbound returns the encoded messages waiting to be written.
func (p *Peer) Outbound() <-chan []byte { return p.ch }

// enqueue never blocks. A full buffer drops the message.
func (p *Peer) enqueue(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPeerNotFound
	}
	select {
	case p.ch <- b:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (p *Peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// Hub is the set of connected peers.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	closed bool

	onDrop func(peerID string)
}

func New() *Hub {
	return &Hub{peers: make(map[string]*Peer)}
}

// OnDrop registers a callback invoked when a message is dropped for a slow
// peer. Must be set before peers are added.
func (h *Hub) OnDrop(fn func(peerID string)) { h.onDrop = fn }

// Add registers p. A peer with the same ID is replaced and closed.
func (h *Hub) Add(p *Peer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if old, ok := h.peers[p.id]; ok {
		old.close()
	}
	h.peers[p.id] = p
	return nil
}

// Remove unregisters the peer and closes its outbound channel.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	p, ok := h.peers[id]
	delete(h.peers, id)
	h.mu.Unlock()

	if ok {
		p.close()
	}
	return ok
}

// Connected reports whether id is currently registered.
func (h *Hub) Connected(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.peers[id]
	return ok
}

// Send delivers msg to a single peer.
func (h *Hub) Send(id string, msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("hub: encode %s: %w", msg.Type, err)
	}

	h.mu.RLock()
	p, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return ErrPeerNotFound
	}

	if err := p.enqueue(b); err != nil {
		h.dropped(id, msg.Type, err)
		return err
	}
	return nil
}

// Broadcast delivers msg to every peer not listed in except and returns the
// number of peers that accepted it.
func (h *Hub) Broadcast(msg protocol.Message, except ...string) int {
	b, err := protocol.Encode(msg)
	if err != nil {
		slog.Error("hub: encode broadcast failed", "type", msg.Type, "err", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if !contains(except, id) {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, p := range targets {
		if err := p.enqueue(b); err != nil {
			h.dropped(p.id, msg.Type, err)
			continue
		}
		n++
	}
	return n
}

func (h *Hub) dropped(id string, t protocol.Type, err error) {
	if !errors.Is(err, ErrSlowConsumer) {
		return
	}
	slog.Warn("hub: dropping message for slow peer", "peer", id, "type", t)
	if h.onDrop != nil {
		h.onDrop(id)
	}
}

// Len returns the number of connected peers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// IDs returns the connected peer IDs, sorted.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close removes every peer and rejects further Adds.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, p := range h.peers {
		p.close()
		delete(h.peers, id)
	}
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}
