// Package node implements the chord message engine.
//
// Design:
//   - One goroutine reads frames from the transport and parses them.
//   - Requests (GetPeers, FindNode, GetData, StoreData) are answered from the
//     local directory and data store; the replies go back to the sender.
//   - Replies (PeerList, DataResponse, DataPresence, DataStored,
//     StorageInterest) update local state where that makes sense and are then
//     delivered on the Responses channel.
//   - A Relay is handled by handling each nested packet as if it had arrived
//     directly and wrapping every reply into one Relay with the same index.
//     Relay frames are deduplicated so one arriving over two paths is handled
//     once. A repeat from the peer that sent it first is a retry and gets the
//     remembered replies again.
//
// Deciding whom to ask and what a reply means for the ring is left to the
// caller.
package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sahabi/morphis/internal/crypto"
	"github.com/sahabi/morphis/internal/datastore"
	"github.com/sahabi/morphis/internal/directory"
	"github.com/sahabi/morphis/internal/protocol"
	"github.com/sahabi/morphis/internal/seen"
	"github.com/sahabi/morphis/internal/transport"
)

const (
	defaultListen    = "0.0.0.0:4250"
	responseQueueLen = 64
)

var ErrNoKey = errors.New("node: config has no node key")

// Config configures a Node.
type Config struct {
	Key        *crypto.NodeKey
	Transport  transport.Transport
	Directory  *directory.Directory
	Store      *datastore.Store
	Logger     *slog.Logger
	Listen     string        // TCP listen address (ignored when Transport is provided)
	Address    string        // address advertised to peers; defaults to Listen
	Bootstrap  []string      // peer addresses to contact on start
	SeenExpiry time.Duration // how long a relay frame is remembered
}

// Response is a reply message received from a peer.
type Response struct {
	From    string
	Message protocol.Message
}

// Node is the chord protocol engine.
type Node struct {
	cfg       Config
	tr        transport.Transport
	log       *slog.Logger
	seen      *seen.Cache
	dir       *directory.Directory
	store     *datastore.Store
	self      LocalPeer
	responses chan Response

	mu       sync.RWMutex // guards closed and sends on responses
	closed   bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a Node. If cfg.Transport is nil, a TCP transport is created
// using cfg.Listen.
func New(cfg Config) (*Node, error) {
	if cfg.Key == nil {
		return nil, ErrNoKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.Address == "" {
		cfg.Address = cfg.Listen
	}
	tr := cfg.Transport
	if tr == nil {
		tr = transport.NewTCP(cfg.Listen, cfg.Logger)
	}
	n := &Node{
		cfg:       cfg,
		tr:        tr,
		log:       cfg.Logger.With("component", "node", "node_id", hex.EncodeToString(cfg.Key.NodeID())[:8]),
		seen:      seen.New(cfg.SeenExpiry),
		dir:       cfg.Directory,
		store:     cfg.Store,
		self:      LocalPeer{Address: cfg.Address, Key: cfg.Key},
		responses: make(chan Response, responseQueueLen),
		stopCh:    make(chan struct{}),
	}
	return n, nil
}

// Start starts the transport, launches the receive loop and introduces this
// node to the bootstrap peers.
func (n *Node) Start() error {
	if err := n.tr.Start(); err != nil {
		return fmt.Errorf("node: transport start: %w", err)
	}
	go n.receiveLoop()

	for _, addr := range n.cfg.Bootstrap {
		if err := n.Introduce(addr); err != nil {
			n.log.Warn("bootstrap failed", "peer", addr, "err", err)
		}
	}
	return nil
}

// Stop shuts down the node and closes the Responses channel.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.stopCh)
		n.seen.Close()
		n.tr.Close() //nolint:errcheck

		n.mu.Lock()
		n.closed = true
		close(n.responses)
		n.mu.Unlock()
	})
}

// Self returns the local peer as it is advertised to others.
func (n *Node) Self() LocalPeer {
	return n.self
}

// Responses returns a channel of replies received from peers. It is closed
// by Stop.
func (n *Node) Responses() <-chan Response {
	return n.responses
}

// Send encodes msg and transmits it to addr.
func (n *Node) Send(addr string, msg protocol.Message) error {
	buf, err := msg.Encode()
	if err != nil {
		return err
	}
	return n.tr.Send(addr, buf)
}

// Introduce sends NodeInfo and GetPeers to addr.
func (n *Node) Introduce(addr string) error {
	if err := n.tr.Connect(addr); err != nil {
		return err
	}
	if err := n.Send(addr, &protocol.NodeInfo{SenderAddress: n.cfg.Address}); err != nil {
		return err
	}
	return n.Send(addr, &protocol.GetPeers{SenderPort: advertisedPort(n.cfg.Address)})
}

func advertisedPort(addr string) uint32 {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	p, err := strconv.ParseUint(port, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(p)
}

func (n *Node) receiveLoop() {
	for {
		select {
		case <-n.stopCh:
			return
		case f := <-n.tr.Incoming():
			n.handleFrame(f)
		}
	}
}

func (n *Node) handleFrame(f transport.Frame) {
	typ, err := protocol.PeekType(f.Data)
	if err != nil {
		return
	}
	if typ != protocol.TypeRelay {
		n.sendReplies(f.From, n.process(f.From, typ, f.Data))
		return
	}

	d := seen.Sum(f.Data)
	prev, fresh := n.seen.Claim(d, f.From)
	if !fresh {
		if prev.From != f.From {
			n.log.Debug("duplicate relay dropped", "peer", f.From, "first", prev.From)
			return
		}
		// Same requester again: its reply was probably lost.
		n.log.Debug("relay retry, resending replies", "peer", f.From, "replies", len(prev.Replies))
		n.sendReplies(f.From, prev.Replies)
		return
	}
	frames := n.process(f.From, typ, f.Data)
	n.seen.SetReplies(d, frames)
	n.sendReplies(f.From, frames)
}

// process decodes and handles one frame and returns the encoded replies.
func (n *Node) process(from string, typ protocol.Type, data []byte) [][]byte {
	msg, err := protocol.Parse(data)
	if err != nil {
		n.log.Warn("undecodable frame", "peer", from, "type", typ, "err", err)
		return nil
	}
	n.log.Debug("received", "peer", from, "msg", protocol.Describe(msg))

	replies, err := n.Handle(from, msg)
	if err != nil {
		n.log.Warn("handle failed", "peer", from, "type", typ, "err", err)
		return nil
	}
	frames := make([][]byte, 0, len(replies))
	for _, r := range replies {
		buf, err := r.Encode()
		if err != nil {
			n.log.Warn("encode reply", "peer", from, "type", r.Type(), "err", err)
			continue
		}
		frames = append(frames, buf)
	}
	return frames
}

func (n *Node) sendReplies(to string, frames [][]byte) {
	for _, buf := range frames {
		if err := n.tr.Send(to, buf); err != nil {
			n.log.Warn("reply failed", "peer", to, "err", err)
		}
	}
}

// Handle processes one message from a peer and returns the replies to send
// back to it.
func (n *Node) Handle(from string, msg protocol.Message) ([]protocol.Message, error) {
	switch m := msg.(type) {
	case *protocol.Relay:
		return n.handleRelay(from, m)

	case *protocol.NodeInfo:
		n.log.Info("peer announced", "peer", from, "address", m.SenderAddress)
		return nil, nil

	case *protocol.GetPeers:
		return []protocol.Message{n.peerList()}, nil

	case *protocol.PeerList:
		n.learnPeers(from, m)
		n.deliver(from, m)
		return nil, nil

	case *protocol.FindNode:
		switch m.DataMode {
		case protocol.DataModeGet:
			return []protocol.Message{&protocol.DataPresence{DataPresent: n.hasData(m.NodeID)}}, nil
		case protocol.DataModeStore:
			return []protocol.Message{&protocol.StorageInterest{WillStore: n.store != nil && !n.hasData(m.NodeID)}}, nil
		default:
			return []protocol.Message{n.peerList()}, nil
		}

	case *protocol.GetData:
		if n.store != nil {
			if data, ok := n.store.Get(m.DataID); ok {
				return []protocol.Message{&protocol.DataResponse{DataID: m.DataID, Data: data}}, nil
			}
		}
		return []protocol.Message{&protocol.DataPresence{DataPresent: false}}, nil

	case *protocol.StoreData:
		stored := false
		if n.store != nil {
			if err := n.store.Put(m.DataID, m.Data); err != nil {
				n.log.Warn("store rejected", "peer", from, "err", err)
			} else {
				stored = true
			}
		}
		return []protocol.Message{&protocol.DataStored{Stored: stored}}, nil

	case *protocol.DataResponse:
		if n.store != nil {
			if err := n.store.Put(m.DataID, m.Data); err != nil {
				n.log.Warn("data response rejected", "peer", from, "err", err)
				return nil, nil
			}
		}
		n.deliver(from, m)
		return nil, nil

	case *protocol.DataPresence, *protocol.DataStored, *protocol.StorageInterest:
		n.deliver(from, m)
		return nil, nil

	default:
		return nil, fmt.Errorf("node: unhandled message %T", msg)
	}
}

// handleRelay answers every nested packet locally, as if each had arrived on
// its own, and wraps the replies into one Relay carrying the same index. The
// index is echoed unchanged; choosing a next hop and forwarding the inner
// packets unread is the caller's job.
func (n *Node) handleRelay(from string, m *protocol.Relay) ([]protocol.Message, error) {
	out := &protocol.Relay{Index: m.Index}
	for i, pkt := range m.Packets {
		inner, err := protocol.Parse(pkt)
		if err != nil {
			n.log.Warn("bad relay packet", "peer", from, "packet", i, "err", err)
			continue
		}
		replies, err := n.Handle(from, inner)
		if err != nil {
			return nil, err
		}
		for _, r := range replies {
			if err := out.Add(r); err != nil {
				return nil, err
			}
		}
	}
	if len(out.Packets) == 0 {
		return nil, nil
	}
	return []protocol.Message{out}, nil
}

func (n *Node) peerList() *protocol.PeerList {
	peers := []protocol.Peer{n.self}
	if n.dir != nil {
		selfID := n.cfg.Key.NodeID()
		for _, rec := range n.dir.All() {
			if string(rec.NodeID) == string(selfID) {
				continue
			}
			peers = append(peers, rec)
		}
	}
	return &protocol.PeerList{Peers: peers}
}

func (n *Node) learnPeers(from string, m *protocol.PeerList) {
	if n.dir == nil {
		return
	}
	recs, err := m.Records()
	if err != nil {
		n.log.Warn("peer list", "peer", from, "err", err)
		return
	}
	selfID := n.cfg.Key.NodeID()
	for _, rec := range recs {
		if string(rec.NodeID) == string(selfID) {
			continue
		}
		if err := n.dir.Add(rec); err != nil {
			n.log.Debug("peer record rejected", "peer", from, "address", rec.Address, "err", err)
		}
	}
}

func (n *Node) hasData(id []byte) bool {
	return n.store != nil && n.store.Has(id)
}

func (n *Node) deliver(from string, m protocol.Message) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.responses <- Response{From: from, Message: m}:
	default:
		n.log.Debug("response queue full, dropping", "type", m.Type())
	}
}
