package transport

import (
	"fmt"
	"sync"
)

// MemoryTransport is an in-process transport for tests.
// Call Connect(otherTransport.ID()) to wire two transports together.
// A global registry maps string IDs to MemoryTransport instances.
type MemoryTransport struct {
	id       string
	incoming chan Frame

	mu     sync.RWMutex
	peers  map[string]*MemoryTransport
	closed bool
}

var (
	registryMu sync.Mutex
	registry   = map[string]*MemoryTransport{}
	nextID     int
)

// NewMemory creates a MemoryTransport with a unique ID.
func NewMemory() *MemoryTransport {
	registryMu.Lock()
	nextID++
	id := fmt.Sprintf("mem-%d", nextID)
	t := &MemoryTransport{
		id:       id,
		incoming: make(chan Frame, 1024),
		peers:    make(map[string]*MemoryTransport),
	}
	registry[id] = t
	registryMu.Unlock()
	return t
}

func (t *MemoryTransport) ID() string { return t.id }

func (t *MemoryTransport) Start() error { return nil }

func (t *MemoryTransport) Connect(addr string) error {
	registryMu.Lock()
	other, ok := registry[addr]
	registryMu.Unlock()
	if !ok {
		return fmt.Errorf("memory transport: no peer with id %q", addr)
	}

	t.mu.Lock()
	t.peers[addr] = other
	t.mu.Unlock()

	// Also wire the reverse so the other side can send back
	other.mu.Lock()
	other.peers[t.id] = t
	other.mu.Unlock()

	return nil
}

func (t *MemoryTransport) Send(addr string, frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return ErrFrameSize
	}
	t.mu.RLock()
	closed := t.closed
	p, ok := t.peers[addr]
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		if err := t.Connect(addr); err != nil {
			return err
		}
		t.mu.RLock()
		p = t.peers[addr]
		t.mu.RUnlock()
	}

	// Copy so the receiver never shares memory with the sender.
	data := append([]byte(nil), frame...)
	select {
	case p.incoming <- Frame{From: t.id, Data: data}:
		return nil
	default:
		return fmt.Errorf("memory transport: %s inbox full", addr)
	}
}

func (t *MemoryTransport) Incoming() <-chan Frame {
	return t.incoming
}

func (t *MemoryTransport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

func (t *MemoryTransport) Close() error {
	registryMu.Lock()
	delete(registry, t.id)
	registryMu.Unlock()

	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
