package protocol

import (
	"fmt"
	"math"

	"golang.org/x/crypto/cryptobyte"

	"github.com/sahabi/morphis/internal/sshtype"
)

const maxCount = math.MaxUint32

// Relay wraps already-encoded messages so intermediate nodes can forward
// them without decoding them. Each packet is a complete message buffer,
// including its own tag byte, and may itself be a Relay.
//
//	[1 byte]  TypeRelay
//	[4 bytes] index (uint32)
//	[4 bytes] count (uint32)
//	count x   length-prefixed packet
type Relay struct {
	Index   uint32
	Packets [][]byte
}

func ParseRelay(buf []byte) (*Relay, error) { return parseAs[Relay](buf) }

func (m *Relay) Type() Type              { return TypeRelay }
func (m *Relay) Encode() ([]byte, error) { return encode(m) }

// Add encodes inner and appends it to the packet list.
func (m *Relay) Add(inner Message) error {
	buf, err := inner.Encode()
	if err != nil {
		return err
	}
	m.Packets = append(m.Packets, buf)
	return nil
}

// Messages decodes each packet one level deep. Nested relays are returned
// as *Relay with their own packets still opaque.
func (m *Relay) Messages() ([]Message, error) {
	out := make([]Message, 0, len(m.Packets))
	for i, pkt := range m.Packets {
		inner, err := Parse(pkt)
		if err != nil {
			return nil, fmt.Errorf("protocol: relay packet %d: %w", i, err)
		}
		out = append(out, inner)
	}
	return out, nil
}

func (m *Relay) encodeBody(b *cryptobyte.Builder) {
	if uint64(len(m.Packets)) > maxCount {
		b.SetError(fmt.Errorf("%w: %d packets", ErrTooManyEntries, len(m.Packets)))
		return
	}
	b.AddUint32(m.Index)
	b.AddUint32(uint32(len(m.Packets)))
	for _, pkt := range m.Packets {
		sshtype.AddBinary(b, pkt)
	}
}

func (m *Relay) decodeBody(r *sshtype.Reader) {
	m.Index = r.Uint32()
	n := r.Uint32()
	if r.Err() != nil {
		return
	}
	m.Packets = make([][]byte, 0, min(uint64(n), uint64(r.Remaining()/4)))
	for i := uint32(0); i < n; i++ {
		pkt := r.Blob()
		if r.Err() != nil {
			m.Packets = nil
			return
		}
		m.Packets = append(m.Packets, pkt)
	}
}

// WalkFunc is called for every message found under a relay. depth is 1 for
// the relay's direct packets. path holds the packet index at each level.
type WalkFunc func(depth int, path []int, msg Message) error

// Walk decodes a relay tree depth-first, descending into nested relays.
// Nothing in the format bounds the depth; the input size does.
func Walk(m *Relay, fn WalkFunc) error {
	return walk(m, nil, fn)
}

func walk(m *Relay, path []int, fn WalkFunc) error {
	for i, pkt := range m.Packets {
		p := append(path[:len(path):len(path)], i)
		inner, err := Parse(pkt)
		if err != nil {
			return fmt.Errorf("protocol: relay packet %v: %w", p, err)
		}
		if err := fn(len(p), p, inner); err != nil {
			return err
		}
		if nested, ok := inner.(*Relay); ok {
			if err := walk(nested, p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
