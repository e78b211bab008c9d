// Package crypto holds the node's signing identity and the hash functions
// that derive node and data identifiers.
//
// A node is identified on the ring by SHA-512 of its public key in SSH wire
// format. Stored data is addressed by SHA-512(SHA-512(data)) so the id alone
// does not reveal the content hash a reader would need to find it.
package crypto

import (
	"bytes"
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// IDSize is the length of node and data identifiers.
const IDSize = sha512.Size

var ErrInvalidKey = errors.New("crypto: invalid node key")

// NodeKey is the local node's Ed25519 signing keypair.
type NodeKey struct {
	Priv ed25519.PrivateKey `json:"-"`
	Pub  ed25519.PublicKey  `json:"-"`

	PrivHex string `json:"priv"`
	PubHex  string `json:"pub"`
}

func GenerateNodeKey() (*NodeKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	k := &NodeKey{Priv: priv, Pub: pub}
	k.syncHex()
	return k, nil
}

func (k *NodeKey) syncHex() {
	k.PrivHex = hex.EncodeToString(k.Priv)
	k.PubHex = hex.EncodeToString(k.Pub)
}

func (k *NodeKey) syncFromHex() error {
	b, err := hex.DecodeString(k.PrivHex)
	if err != nil || len(b) != ed25519.PrivateKeySize {
		return ErrInvalidKey
	}
	k.Priv = ed25519.PrivateKey(b)
	k.Pub = k.Priv.Public().(ed25519.PublicKey)

	if k.PubHex != "" {
		b, err = hex.DecodeString(k.PubHex)
		if err != nil || !bytes.Equal(b, k.Pub) {
			return ErrInvalidKey
		}
	}
	return nil
}

// Signer exposes the private key through the standard signing interface.
func (k *NodeKey) Signer() stdcrypto.Signer {
	return k.Priv
}

func (k *NodeKey) Sign(data []byte) []byte {
	return ed25519.Sign(k.Priv, data)
}

// PublicBytes returns the public key in SSH wire format, the form peers
// exchange and hash into node ids.
func (k *NodeKey) PublicBytes() []byte {
	b, err := PublicBytes(k.Pub)
	if err != nil {
		// ed25519 keys are always representable.
		panic(err)
	}
	return b
}

func (k *NodeKey) NodeID() []byte {
	return NodeIDFromPublicBytes(k.PublicBytes())
}

func (k *NodeKey) Save(path string) error {
	k.syncHex()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(k)
}

func LoadNodeKey(path string) (*NodeKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	k := &NodeKey{}
	if err := json.NewDecoder(f).Decode(k); err != nil {
		return nil, err
	}
	return k, k.syncFromHex()
}

// PublicBytes converts any public key supported by x/crypto/ssh (ed25519,
// RSA, ECDSA) into SSH wire format.
func PublicBytes(pub stdcrypto.PublicKey) ([]byte, error) {
	sk, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return sk.Marshal(), nil
}

// ParsePublicBytes validates SSH wire-format public key bytes.
func ParsePublicBytes(b []byte) (ssh.PublicKey, error) {
	return ssh.ParsePublicKey(b)
}

func NodeIDFromPublicBytes(pub []byte) []byte {
	sum := sha512.Sum512(pub)
	return sum[:]
}

// VerifyNodeID reports whether nodeID was derived from pub.
func VerifyNodeID(nodeID, pub []byte) bool {
	return bytes.Equal(nodeID, NodeIDFromPublicBytes(pub))
}

// DataID returns the storage key for data.
func DataID(data []byte) []byte {
	inner := sha512.Sum512(data)
	outer := sha512.Sum512(inner[:])
	return outer[:]
}
