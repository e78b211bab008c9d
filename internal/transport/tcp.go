package transport

import (
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

const dialTimeout = 5 * time.Second

// TCPTransport implements Transport over raw TCP connections.
// Framing: each frame is preceded by a 4-byte big-endian length.
type TCPTransport struct {
	listenAddr string
	listener   net.Listener
	incoming   chan Frame
	log        *slog.Logger

	mu     sync.RWMutex
	peers  map[string]*tcpPeer // addr → conn
	closed bool
}

type tcpPeer struct {
	conn net.Conn
	wmu  sync.Mutex
}

func (p *tcpPeer) write(frame []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if _, err := p.conn.Write(hdr[:]); err != nil {
		return err
	}
	_, err := p.conn.Write(frame)
	return err
}

// NewTCP creates a TCPTransport listening on listenAddr.
func NewTCP(listenAddr string, logger *slog.Logger) *TCPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPTransport{
		listenAddr: listenAddr,
		incoming:   make(chan Frame, 512),
		log:        logger.With("component", "transport"),
		peers:      make(map[string]*tcpPeer),
	}
}

func (t *TCPTransport) Start() error {
	ln, err := net.Listen("tcp", t.listenAddr)
	if err != nil {
		return err
	}
	t.listener = ln
	go t.acceptLoop()
	return nil
}

// Addr returns the bound listen address, useful when listening on port 0.
func (t *TCPTransport) Addr() string {
	if t.listener == nil {
		return t.listenAddr
	}
	return t.listener.Addr().String()
}

func (t *TCPTransport) Connect(addr string) error {
	_, err := t.peer(addr)
	return err
}

func (t *TCPTransport) peer(addr string) (*tcpPeer, error) {
	t.mu.RLock()
	p, already := t.peers[addr]
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if already {
		return p, nil
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, err
	}
	p = t.addPeer(addr, conn)
	if p == nil {
		return nil, ErrClosed
	}
	return p, nil
}

func (t *TCPTransport) Send(addr string, frame []byte) error {
	if len(frame) == 0 || len(frame) > MaxFrameSize {
		return ErrFrameSize
	}
	p, err := t.peer(addr)
	if err != nil {
		return err
	}
	if err := p.write(frame); err != nil {
		t.dropPeer(addr, p)
		return err
	}
	return nil
}

func (t *TCPTransport) Incoming() <-chan Frame {
	return t.incoming
}

func (t *TCPTransport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

func (t *TCPTransport) Close() error {
	if t.listener != nil {
		t.listener.Close()
	}
	t.mu.Lock()
	t.closed = true
	for _, p := range t.peers {
		p.conn.Close()
	}
	t.mu.Unlock()
	return nil
}

func (t *TCPTransport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		addr := conn.RemoteAddr().String()
		t.addPeer(addr, conn)
	}
}

// addPeer registers conn and starts its read loop. It returns nil and closes
// conn if the transport is already closed.
func (t *TCPTransport) addPeer(addr string, conn net.Conn) *tcpPeer {
	p := &tcpPeer{conn: conn}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	if existing, ok := t.peers[addr]; ok {
		t.mu.Unlock()
		conn.Close()
		return existing
	}
	t.peers[addr] = p
	t.mu.Unlock()
	go t.readLoop(addr, p)
	return p
}

func (t *TCPTransport) dropPeer(addr string, p *tcpPeer) {
	p.conn.Close()
	t.mu.Lock()
	if t.peers[addr] == p {
		delete(t.peers, addr)
	}
	t.mu.Unlock()
}

func (t *TCPTransport) readLoop(addr string, p *tcpPeer) {
	defer t.dropPeer(addr, p)

	for {
		var hdr [4]byte
		if _, err := io.ReadFull(p.conn, hdr[:]); err != nil {
			return
		}
		sz := binary.BigEndian.Uint32(hdr[:])
		if sz == 0 || sz > MaxFrameSize {
			t.log.Warn("unexpected frame size", "size", sz, "peer", addr)
			return
		}
		buf := make([]byte, sz)
		if _, err := io.ReadFull(p.conn, buf); err != nil {
			return
		}
		select {
		case t.incoming <- Frame{From: addr, Data: buf}:
		default:
			// Drop if incoming buffer is full (backpressure)
			t.log.Debug("incoming buffer full, dropping frame", "peer", addr)
		}
	}
}
