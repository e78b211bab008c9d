package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func id(fill byte, n int) []byte {
	return bytes.Repeat([]byte{fill}, n)
}

// samples returns one populated value per registered type, keyed by tag.
func samples() map[Type][]Message {
	return map[Type][]Message{
		TypeRelay: {
			&Relay{Index: 0, Packets: [][]byte{}},
			&Relay{Index: 7, Packets: [][]byte{{byte(TypeDataStored), 1}, {}}},
		},
		TypeNodeInfo: {
			&NodeInfo{SenderAddress: ""},
			&NodeInfo{SenderAddress: "10.0.0.1:4250"},
		},
		TypeGetPeers: {
			&GetPeers{SenderPort: 0},
			&GetPeers{SenderPort: 4000},
			&GetPeers{SenderPort: 0xffffffff},
		},
		TypePeerList: {
			&PeerList{Peers: []Peer{}},
			&PeerList{Peers: []Peer{
				PeerRecord{Address: "a:1", NodeID: id(1, 64), PubKey: id(2, 51)},
				PeerRecord{Address: "", NodeID: []byte{}, PubKey: []byte{}},
			}},
		},
		TypeFindNode: {
			&FindNode{NodeID: []byte{}, DataMode: DataModeNone},
			&FindNode{NodeID: id(3, 20), DataMode: DataModeGet},
			&FindNode{NodeID: id(4, 64), DataMode: DataModeStore},
		},
		TypeGetData: {
			&GetData{DataID: []byte{}},
			&GetData{DataID: id(5, 64)},
		},
		TypeDataResponse: {
			&DataResponse{DataID: []byte{}, Data: []byte{}},
			&DataResponse{DataID: id(6, 64), Data: []byte("payload")},
		},
		TypeDataPresence: {
			&DataPresence{DataPresent: false},
			&DataPresence{DataPresent: true},
		},
		TypeStoreData: {
			&StoreData{DataID: []byte{}, Data: []byte{}},
			&StoreData{DataID: id(7, 64), Data: id(8, 1000)},
		},
		TypeDataStored: {
			&DataStored{Stored: false},
			&DataStored{Stored: true},
		},
		TypeStorageInterest: {
			&StorageInterest{WillStore: false},
			&StorageInterest{WillStore: true},
		},
	}
}

func TestSamplesCoverRegistry(t *testing.T) {
	s := samples()
	require.Len(t, s, len(Types()))
	for _, typ := range Types() {
		require.NotEmpty(t, s[typ], "no sample for %s", typ)
	}
}

func TestRegistryValues(t *testing.T) {
	want := []byte{100, 110, 115, 120, 150, 160, 162, 165, 170, 172, 175}
	got := make([]byte, 0, len(want))
	for _, typ := range Types() {
		require.True(t, typ.Valid())
		got = append(got, byte(typ))
	}
	require.Equal(t, want, got)
	require.False(t, Type(0).Valid())
	require.Equal(t, "Type(1)", Type(1).String())
}

func TestRoundtrip(t *testing.T) {
	for typ, msgs := range samples() {
		for _, m := range msgs {
			t.Run(typ.String(), func(t *testing.T) {
				buf, err := m.Encode()
				require.NoError(t, err)

				got, err := Parse(buf)
				require.NoError(t, err)
				require.Equal(t, m, got)

				got, err = ParseExpect(buf, typ)
				require.NoError(t, err)
				require.Equal(t, m, got)

				again, err := got.Encode()
				require.NoError(t, err)
				require.Equal(t, buf, again)
			})
		}
	}
}

func TestTagIntegrity(t *testing.T) {
	for typ, msgs := range samples() {
		for _, m := range msgs {
			buf, err := m.Encode()
			require.NoError(t, err)
			peeked, err := PeekType(buf)
			require.NoError(t, err)
			require.Equal(t, typ, peeked)
			require.Equal(t, typ, m.Type())
		}
	}
}

func TestTypeMismatch(t *testing.T) {
	for typ, msgs := range samples() {
		buf, err := msgs[0].Encode()
		require.NoError(t, err)
		for _, other := range Types() {
			if other == typ {
				continue
			}
			_, err := ParseExpect(buf, other)
			require.ErrorIs(t, err, ErrTypeMismatch, "%s parsed as %s", typ, other)

			var tm *TypeMismatchError
			require.True(t, errors.As(err, &tm))
			require.Equal(t, other, tm.Expected)
			require.Equal(t, typ, tm.Got)
		}
	}
}

func TestTypedParseMismatch(t *testing.T) {
	buf, err := (&GetPeers{SenderPort: 1}).Encode()
	require.NoError(t, err)

	m, err := ParseNodeInfo(buf)
	require.Nil(t, m)
	require.ErrorIs(t, err, ErrTypeMismatch)

	_, err = ParseRelay(buf)
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestTruncation(t *testing.T) {
	for typ, msgs := range samples() {
		for _, m := range msgs {
			buf, err := m.Encode()
			require.NoError(t, err)
			for i := 0; i < len(buf); i++ {
				got, err := Parse(buf[:i])
				require.ErrorIs(t, err, ErrTruncated, "%s cut at %d of %d", typ, i, len(buf))
				require.Nil(t, got)

				got, err = ParseExpect(buf[:i], typ)
				require.ErrorIs(t, err, ErrTruncated, "%s cut at %d of %d", typ, i, len(buf))
				require.Nil(t, got)
			}
		}
	}
}

func TestTrailingDataRejected(t *testing.T) {
	buf, err := (&DataStored{Stored: true}).Encode()
	require.NoError(t, err)
	_, err = Parse(append(buf, 0))
	require.ErrorIs(t, err, ErrTrailingData)
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	_, err := (&NodeInfo{SenderAddress: "\xff\xfe"}).Encode()
	require.ErrorIs(t, err, ErrInvalidUTF8)

	pl := &PeerList{Peers: []Peer{
		PeerRecord{Address: "a:1", NodeID: id(1, 64), PubKey: id(2, 51)},
		PeerRecord{Address: "\xc3", NodeID: id(3, 64), PubKey: id(4, 51)},
	}}
	_, err = pl.Encode()
	require.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestPeekTypeEmpty(t *testing.T) {
	_, err := PeekType(nil)
	require.ErrorIs(t, err, ErrTruncated)
	_, err = PeekType([]byte{})
	require.ErrorIs(t, err, ErrTruncated)
}

func TestPeekTypeDoesNotConsume(t *testing.T) {
	buf, err := (&GetPeers{SenderPort: 4000}).Encode()
	require.NoError(t, err)
	orig := append([]byte(nil), buf...)
	typ, err := PeekType(buf)
	require.NoError(t, err)
	require.Equal(t, TypeGetPeers, typ)
	require.Equal(t, orig, buf)
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte{42, 0, 0})
	require.ErrorIs(t, err, ErrUnknownType)
	_, err = New(Type(1))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestBooleanCanonicalization(t *testing.T) {
	for _, typ := range []Type{TypeDataPresence, TypeDataStored, TypeStorageInterest} {
		for b := 0; b < 256; b++ {
			m, err := Parse([]byte{byte(typ), byte(b)})
			require.NoError(t, err)

			var v bool
			switch m := m.(type) {
			case *DataPresence:
				v = m.DataPresent
			case *DataStored:
				v = m.Stored
			case *StorageInterest:
				v = m.WillStore
			}
			require.Equal(t, b != 0, v, "%s byte %#x", typ, b)

			out, err := m.Encode()
			require.NoError(t, err)
			if b == 0 {
				require.Equal(t, []byte{byte(typ), 0}, out)
			} else {
				require.Equal(t, []byte{byte(typ), 1}, out)
			}
		}
	}
}

func TestWireLayout(t *testing.T) {
	buf, err := (&GetPeers{SenderPort: 4000}).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{115, 0, 0, 0x0f, 0xa0}, buf)

	buf, err = (&FindNode{NodeID: []byte{0xaa, 0xbb}, DataMode: DataModeGet}).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{150, 0, 0, 0, 2, 0xaa, 0xbb, 10}, buf)

	buf, err = (&NodeInfo{SenderAddress: "ab"}).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{110, 0, 0, 0, 2, 'a', 'b'}, buf)
}

func TestDataModeRejectsUnknownByte(t *testing.T) {
	for _, b := range []byte{1, 2, 11, 19, 21, 255} {
		_, err := Parse([]byte{byte(TypeFindNode), 0, 0, 0, 0, b})
		require.ErrorIs(t, err, ErrInvalidDataMode, "byte %d", b)
	}

	_, err := (&FindNode{NodeID: []byte{1}, DataMode: DataMode(1)}).Encode()
	require.ErrorIs(t, err, ErrInvalidDataMode)
}

func TestDataModeString(t *testing.T) {
	require.Equal(t, "none", DataModeNone.String())
	require.Equal(t, "get", DataModeGet.String())
	require.Equal(t, "store", DataModeStore.String())
	require.Equal(t, "DataMode(3)", DataMode(3).String())
}

func TestDescribe(t *testing.T) {
	for _, msgs := range samples() {
		for _, m := range msgs {
			require.Contains(t, Describe(m), m.Type().String())
		}
	}
}
