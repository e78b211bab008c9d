// Package protocol defines the chord wire format.
//
// Every message is a single tag byte followed by the fields of its variant,
// written left to right with no padding:
//
//	[1 byte]  packet type (see Type)
//	[N bytes] variant payload, fixed-width integers big-endian, blobs and
//	          strings length-prefixed (see package sshtype)
//
// The set of variants is closed. Message can only be implemented inside this
// package, and Parse dispatches on the tag with an exhaustive switch.
package protocol

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"

	"github.com/sahabi/morphis/internal/sshtype"
)

// Type is the leading tag byte of every message.
type Type byte

// Tag values are part of the wire format and must never change.
const (
	TypeRelay           Type = 100
	TypeNodeInfo        Type = 110
	TypeGetPeers        Type = 115
	TypePeerList        Type = 120
	TypeFindNode        Type = 150
	TypeGetData         Type = 160
	TypeDataResponse    Type = 162
	TypeDataPresence    Type = 165
	TypeStoreData       Type = 170
	TypeDataStored      Type = 172
	TypeStorageInterest Type = 175
)

var typeNames = map[Type]string{
	TypeRelay:           "Relay",
	TypeNodeInfo:        "NodeInfo",
	TypeGetPeers:        "GetPeers",
	TypePeerList:        "PeerList",
	TypeFindNode:        "FindNode",
	TypeGetData:         "GetData",
	TypeDataResponse:    "DataResponse",
	TypeDataPresence:    "DataPresence",
	TypeStoreData:       "StoreData",
	TypeDataStored:      "DataStored",
	TypeStorageInterest: "StorageInterest",
}

// Types returns every registered tag in ascending order.
func Types() []Type {
	return []Type{
		TypeRelay,
		TypeNodeInfo,
		TypeGetPeers,
		TypePeerList,
		TypeFindNode,
		TypeGetData,
		TypeDataResponse,
		TypeDataPresence,
		TypeStoreData,
		TypeDataStored,
		TypeStorageInterest,
	}
}

func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

var (
	ErrTruncated       = sshtype.ErrTruncated
	ErrTrailingData    = sshtype.ErrTrailingData
	ErrInvalidUTF8     = sshtype.ErrInvalidUTF8
	ErrTypeMismatch    = errors.New("protocol: packet type mismatch")
	ErrUnknownType     = errors.New("protocol: unknown packet type")
	ErrUnsupportedPeer = errors.New("protocol: unsupported peer")
	ErrInvalidDataMode = errors.New("protocol: invalid data mode")
	ErrTooManyEntries  = errors.New("protocol: too many entries")
)

// TypeMismatchError is returned when a buffer carries a different tag than
// the caller asked to parse. It matches ErrTypeMismatch with errors.Is.
type TypeMismatchError struct {
	Expected Type
	Got      Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("protocol: expecting packet type [%s] but got [%s]", e.Expected, e.Got)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Message is one of the chord message variants.
type Message interface {
	Type() Type
	// Encode returns the full wire form, tag byte first.
	Encode() ([]byte, error)

	encodeBody(b *cryptobyte.Builder)
	decodeBody(r *sshtype.Reader)
}

// PeekType returns the tag of buf without decoding the rest.
func PeekType(buf []byte) (Type, error) {
	_, v, err := sshtype.ParseByte(buf)
	if err != nil {
		return 0, err
	}
	return Type(v), nil
}

// New returns an empty message for t.
func New(t Type) (Message, error) {
	switch t {
	case TypeRelay:
		return &Relay{}, nil
	case TypeNodeInfo:
		return &NodeInfo{}, nil
	case TypeGetPeers:
		return &GetPeers{}, nil
	case TypePeerList:
		return &PeerList{}, nil
	case TypeFindNode:
		return &FindNode{}, nil
	case TypeGetData:
		return &GetData{}, nil
	case TypeDataResponse:
		return &DataResponse{}, nil
	case TypeDataPresence:
		return &DataPresence{}, nil
	case TypeStoreData:
		return &StoreData{}, nil
	case TypeDataStored:
		return &DataStored{}, nil
	case TypeStorageInterest:
		return &StorageInterest{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, byte(t))
	}
}

// Parse decodes buf as whichever variant its tag names.
func Parse(buf []byte) (Message, error) {
	t, err := PeekType(buf)
	if err != nil {
		return nil, err
	}
	m, err := New(t)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(buf, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseExpect decodes buf and fails with a *TypeMismatchError unless its tag
// is expected.
func ParseExpect(buf []byte, expected Type) (Message, error) {
	m, err := New(expected)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(buf, m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInto(buf []byte, m Message) error {
	r := sshtype.NewReader(buf)
	got := Type(r.Uint8())
	if err := r.Err(); err != nil {
		return err
	}
	if got != m.Type() {
		return &TypeMismatchError{Expected: m.Type(), Got: got}
	}
	m.decodeBody(r)
	if err := r.Finish(); err != nil {
		return fmt.Errorf("protocol: parse %s: %w", m.Type(), err)
	}
	return nil
}

// parseAs is the body of the typed ParseX constructors.
func parseAs[T any, PT interface {
	*T
	Message
}](buf []byte) (*T, error) {
	m := PT(new(T))
	if err := decodeInto(buf, m); err != nil {
		return nil, err
	}
	return (*T)(m), nil
}

func encode(m Message) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint8(byte(m.Type()))
	m.encodeBody(b)
	out, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type(), err)
	}
	return out, nil
}
