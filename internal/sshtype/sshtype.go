// Package sshtype implements the primitive field encoding shared by every
// chord message: SSH-style length-prefixed blobs and strings plus the
// fixed-width integers and booleans that sit between them.
//
//	blob/string: [4 bytes] length (uint32, big-endian) [N bytes] raw bytes
//	uint32:      [4 bytes] big-endian
//	bool:        [1 byte]  0x00 = false, anything else = true
//
// Decoders report how many bytes they consumed so a caller can walk a buffer
// strictly left to right.
package sshtype

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/cryptobyte"
)

var (
	ErrTruncated    = errors.New("sshtype: truncated input")
	ErrInvalidUTF8  = errors.New("sshtype: string is not valid utf-8")
	ErrTrailingData = errors.New("sshtype: trailing bytes after last field")
)

// EncodeBinary returns b with its 4-byte length prefix.
func EncodeBinary(b []byte) []byte {
	var bld cryptobyte.Builder
	AddBinary(&bld, b)
	return bld.BytesOrPanic()
}

// EncodeString returns s with its 4-byte length prefix.
func EncodeString(s string) []byte {
	return EncodeBinary([]byte(s))
}

// AddBinary appends a length-prefixed blob to bld.
func AddBinary(bld *cryptobyte.Builder, b []byte) {
	bld.AddUint32LengthPrefixed(func(child *cryptobyte.Builder) {
		child.AddBytes(b)
	})
}

// AddString appends a length-prefixed UTF-8 string to bld. A string that is
// not valid UTF-8 sets ErrInvalidUTF8 on bld, since ParseString would refuse
// it.
func AddString(bld *cryptobyte.Builder, s string) {
	if !utf8.ValidString(s) {
		bld.SetError(ErrInvalidUTF8)
		return
	}
	AddBinary(bld, []byte(s))
}

// AddBool appends a single canonical boolean byte (0x00 or 0x01).
func AddBool(bld *cryptobyte.Builder, v bool) {
	if v {
		bld.AddUint8(1)
		return
	}
	bld.AddUint8(0)
}

// ParseBinary decodes a length-prefixed blob from the front of buf. The
// returned slice is a copy and does not alias buf.
func ParseBinary(buf []byte) (int, []byte, error) {
	s := cryptobyte.String(buf)
	var n uint32
	if !s.ReadUint32(&n) {
		return 0, nil, ErrTruncated
	}
	if uint64(n) > uint64(len(s)) {
		return 0, nil, ErrTruncated
	}
	out := make([]byte, n)
	copy(out, s[:n])
	return 4 + int(n), out, nil
}

// ParseString decodes a length-prefixed UTF-8 string from the front of buf.
func ParseString(buf []byte) (int, string, error) {
	n, b, err := ParseBinary(buf)
	if err != nil {
		return 0, "", err
	}
	if !utf8.Valid(b) {
		return 0, "", ErrInvalidUTF8
	}
	return n, string(b), nil
}

// ParseUint32 decodes a big-endian uint32 from the front of buf.
func ParseUint32(buf []byte) (int, uint32, error) {
	s := cryptobyte.String(buf)
	var v uint32
	if !s.ReadUint32(&v) {
		return 0, 0, ErrTruncated
	}
	return 4, v, nil
}

// ParseByte decodes a single byte from the front of buf.
func ParseByte(buf []byte) (int, byte, error) {
	s := cryptobyte.String(buf)
	var v uint8
	if !s.ReadUint8(&v) {
		return 0, 0, ErrTruncated
	}
	return 1, v, nil
}

// ParseBool decodes a boolean byte; any non-zero value is true.
func ParseBool(buf []byte) (int, bool, error) {
	n, v, err := ParseByte(buf)
	if err != nil {
		return 0, false, err
	}
	return n, v != 0, nil
}
