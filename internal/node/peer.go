package node

import (
	stdcrypto "crypto"

	"github.com/sahabi/morphis/internal/crypto"
)

// LocalPeer is this node as a peer record. It holds the signing key, so it is
// written to peer lists through the signing path of the protocol encoder.
type LocalPeer struct {
	Address string
	Key     *crypto.NodeKey
}

func (p LocalPeer) PeerAddress() string          { return p.Address }
func (p LocalPeer) PeerNodeID() []byte           { return p.Key.NodeID() }
func (p LocalPeer) SigningKey() stdcrypto.Signer { return p.Key.Signer() }
