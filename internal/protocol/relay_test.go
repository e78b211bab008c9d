package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelayNesting(t *testing.T) {
	r := &Relay{Index: 7}
	require.NoError(t, r.Add(&GetPeers{SenderPort: 4000}))
	require.NoError(t, r.Add(&FindNode{NodeID: id(0xab, 20), DataMode: DataModeGet}))

	buf, err := r.Encode()
	require.NoError(t, err)

	got, err := ParseRelay(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(7), got.Index)
	require.Len(t, got.Packets, 2)

	gp, err := ParseGetPeers(got.Packets[0])
	require.NoError(t, err)
	require.Equal(t, uint32(4000), gp.SenderPort)

	fn, err := ParseFindNode(got.Packets[1])
	require.NoError(t, err)
	require.Equal(t, id(0xab, 20), fn.NodeID)
	require.Equal(t, DataModeGet, fn.DataMode)

	msgs, err := got.Messages()
	require.NoError(t, err)
	require.Equal(t, []Message{gp, fn}, msgs)
}

func TestRelayEmpty(t *testing.T) {
	buf, err := (&Relay{Index: 3}).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte{100, 0, 0, 0, 3, 0, 0, 0, 0}, buf)

	got, err := ParseRelay(buf)
	require.NoError(t, err)
	require.Empty(t, got.Packets)
}

func TestRelayCountExceedsBuffer(t *testing.T) {
	buf := []byte{100, 0, 0, 0, 0, 0, 0, 0, 2}
	buf = append(buf, 0, 0, 0, 1, 0xaa)
	_, err := ParseRelay(buf)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestRelayPacketsAreOpaque(t *testing.T) {
	// Garbage inside a packet does not stop the relay itself from parsing.
	r := &Relay{Packets: [][]byte{{0x01, 0x02}}}
	buf, err := r.Encode()
	require.NoError(t, err)
	got, err := ParseRelay(buf)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x01, 0x02}}, got.Packets)

	_, err = got.Messages()
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestWalkNested(t *testing.T) {
	inner := &Relay{Index: 1}
	require.NoError(t, inner.Add(&GetData{DataID: id(1, 64)}))
	require.NoError(t, inner.Add(&DataStored{Stored: true}))

	mid := &Relay{Index: 2}
	require.NoError(t, mid.Add(inner))

	outer := &Relay{Index: 3}
	require.NoError(t, outer.Add(&NodeInfo{SenderAddress: "n:1"}))
	require.NoError(t, outer.Add(mid))

	buf, err := outer.Encode()
	require.NoError(t, err)
	parsed, err := ParseRelay(buf)
	require.NoError(t, err)

	type visit struct {
		depth int
		path  []int
		typ   Type
	}
	var seen []visit
	err = Walk(parsed, func(depth int, path []int, m Message) error {
		seen = append(seen, visit{depth, append([]int(nil), path...), m.Type()})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []visit{
		{1, []int{0}, TypeNodeInfo},
		{1, []int{1}, TypeRelay},
		{2, []int{1, 0}, TypeRelay},
		{3, []int{1, 0, 0}, TypeGetData},
		{3, []int{1, 0, 1}, TypeDataStored},
	}, seen)
}

func TestWalkStopsOnError(t *testing.T) {
	r := &Relay{}
	require.NoError(t, r.Add(&DataStored{}))
	require.NoError(t, r.Add(&DataStored{}))

	stop := errors.New("stop")
	calls := 0
	err := Walk(r, func(int, []int, Message) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}

func TestWalkReportsBadPacket(t *testing.T) {
	r := &Relay{Packets: [][]byte{{byte(TypeGetPeers), 0}}}
	err := Walk(r, func(int, []int, Message) error { return nil })
	require.ErrorIs(t, err, ErrTruncated)
}
