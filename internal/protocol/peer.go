package protocol

import (
	stdcrypto "crypto"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/sahabi/morphis/internal/crypto"
	"github.com/sahabi/morphis/internal/sshtype"
)

// Peer is anything that can be written as a peer record. On its own it is
// not enough: the value must also be a SigningPeer or a StoredKeyPeer so the
// encoder knows where the public key bytes come from.
type Peer interface {
	PeerAddress() string
	PeerNodeID() []byte
}

// SigningPeer is a peer whose private key is held locally. Its public key is
// written in SSH wire format.
type SigningPeer interface {
	Peer
	SigningKey() stdcrypto.Signer
}

// StoredKeyPeer is a peer known only through stored public key bytes, which
// are written as-is.
type StoredKeyPeer interface {
	Peer
	StoredPublicKey() []byte
}

// PeerRecord is the directory form of a peer and what every decoded peer
// record becomes.
type PeerRecord struct {
	Address string `json:"address"`
	NodeID  []byte `json:"node_id"`
	PubKey  []byte `json:"pubkey"`
}

func (p PeerRecord) PeerAddress() string     { return p.Address }
func (p PeerRecord) PeerNodeID() []byte      { return p.NodeID }
func (p PeerRecord) StoredPublicKey() []byte { return p.PubKey }

// PeerPublicKey resolves the public key bytes for p. A value offering both
// capabilities is treated as a signing peer.
func PeerPublicKey(p Peer) ([]byte, error) {
	switch p := p.(type) {
	case SigningPeer:
		signer := p.SigningKey()
		if signer == nil {
			return nil, fmt.Errorf("%w: %T has no signing key", ErrUnsupportedPeer, p)
		}
		b, err := crypto.PublicBytes(signer.Public())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedPeer, err)
		}
		return b, nil
	case StoredKeyPeer:
		return p.StoredPublicKey(), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPeer, p)
	}
}

// ToRecord converts any supported peer into its directory form.
func ToRecord(p Peer) (PeerRecord, error) {
	pub, err := PeerPublicKey(p)
	if err != nil {
		return PeerRecord{}, err
	}
	return PeerRecord{Address: p.PeerAddress(), NodeID: p.PeerNodeID(), PubKey: pub}, nil
}

func addPeer(b *cryptobyte.Builder, p Peer) {
	if p == nil {
		b.SetError(fmt.Errorf("%w: nil", ErrUnsupportedPeer))
		return
	}
	pub, err := PeerPublicKey(p)
	if err != nil {
		b.SetError(err)
		return
	}
	sshtype.AddString(b, p.PeerAddress())
	sshtype.AddBinary(b, p.PeerNodeID())
	sshtype.AddBinary(b, pub)
}

func readPeer(r *sshtype.Reader) PeerRecord {
	var p PeerRecord
	p.Address = r.Text()
	p.NodeID = r.Blob()
	p.PubKey = r.Blob()
	return p
}

// minPeerRecordSize is three empty length prefixes.
const minPeerRecordSize = 12

// PeerList carries peer records. Encoding accepts any supported Peer;
// decoding always yields PeerRecord values.
type PeerList struct {
	Peers []Peer
}

func ParsePeerList(buf []byte) (*PeerList, error) { return parseAs[PeerList](buf) }

func (m *PeerList) Type() Type              { return TypePeerList }
func (m *PeerList) Encode() ([]byte, error) { return encode(m) }

// Records returns the list in directory form.
func (m *PeerList) Records() ([]PeerRecord, error) {
	out := make([]PeerRecord, 0, len(m.Peers))
	for _, p := range m.Peers {
		if p == nil {
			return nil, fmt.Errorf("%w: nil", ErrUnsupportedPeer)
		}
		rec, err := ToRecord(p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *PeerList) encodeBody(b *cryptobyte.Builder) {
	if uint64(len(m.Peers)) > maxCount {
		b.SetError(fmt.Errorf("%w: %d peers", ErrTooManyEntries, len(m.Peers)))
		return
	}
	b.AddUint32(uint32(len(m.Peers)))
	for _, p := range m.Peers {
		addPeer(b, p)
	}
}

func (m *PeerList) decodeBody(r *sshtype.Reader) {
	n := r.Uint32()
	if r.Err() != nil {
		return
	}
	// The count is untrusted; never allocate more than the buffer can hold.
	m.Peers = make([]Peer, 0, min(uint64(n), uint64(r.Remaining()/minPeerRecordSize)))
	for i := uint32(0); i < n; i++ {
		p := readPeer(r)
		if r.Err() != nil {
			m.Peers = nil
			return
		}
		m.Peers = append(m.Peers, p)
	}
}
