package protocol

import (
	"golang.org/x/crypto/cryptobyte"

	"github.com/sahabi/morphis/internal/sshtype"
)

// NodeInfo announces the address the sender accepts connections on.
type NodeInfo struct {
	SenderAddress string
}

func ParseNodeInfo(buf []byte) (*NodeInfo, error) { return parseAs[NodeInfo](buf) }

func (m *NodeInfo) Type() Type              { return TypeNodeInfo }
func (m *NodeInfo) Encode() ([]byte, error) { return encode(m) }

func (m *NodeInfo) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddString(b, m.SenderAddress)
}

func (m *NodeInfo) decodeBody(r *sshtype.Reader) {
	m.SenderAddress = r.Text()
}

// GetPeers asks for the receiver's peer list. SenderPort is the port the
// sender listens on. It is informational; peers are only learned from
// PeerList records, which carry the node id and key.
type GetPeers struct {
	SenderPort uint32
}

func ParseGetPeers(buf []byte) (*GetPeers, error) { return parseAs[GetPeers](buf) }

func (m *GetPeers) Type() Type              { return TypeGetPeers }
func (m *GetPeers) Encode() ([]byte, error) { return encode(m) }

func (m *GetPeers) encodeBody(b *cryptobyte.Builder) {
	b.AddUint32(m.SenderPort)
}

func (m *GetPeers) decodeBody(r *sshtype.Reader) {
	m.SenderPort = r.Uint32()
}

// FindNode looks up the peers responsible for NodeID. DataMode tells the
// receiver what the caller intends to do with the id once found.
type FindNode struct {
	NodeID   []byte
	DataMode DataMode
}

func ParseFindNode(buf []byte) (*FindNode, error) { return parseAs[FindNode](buf) }

func (m *FindNode) Type() Type              { return TypeFindNode }
func (m *FindNode) Encode() ([]byte, error) { return encode(m) }

func (m *FindNode) encodeBody(b *cryptobyte.Builder) {
	if !m.DataMode.Valid() {
		b.SetError(invalidDataMode(byte(m.DataMode)))
		return
	}
	sshtype.AddBinary(b, m.NodeID)
	b.AddUint8(byte(m.DataMode))
}

func (m *FindNode) decodeBody(r *sshtype.Reader) {
	m.NodeID = r.Blob()
	raw := r.Uint8()
	if r.Err() != nil {
		return
	}
	mode, err := ParseDataMode(raw)
	if err != nil {
		r.Fail(err)
		return
	}
	m.DataMode = mode
}

// GetData requests the block stored under DataID.
type GetData struct {
	DataID []byte
}

func ParseGetData(buf []byte) (*GetData, error) { return parseAs[GetData](buf) }

func (m *GetData) Type() Type              { return TypeGetData }
func (m *GetData) Encode() ([]byte, error) { return encode(m) }

func (m *GetData) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBinary(b, m.DataID)
}

func (m *GetData) decodeBody(r *sshtype.Reader) {
	m.DataID = r.Blob()
}

// DataResponse answers GetData with the stored block.
type DataResponse struct {
	DataID []byte
	Data   []byte
}

func ParseDataResponse(buf []byte) (*DataResponse, error) { return parseAs[DataResponse](buf) }

func (m *DataResponse) Type() Type              { return TypeDataResponse }
func (m *DataResponse) Encode() ([]byte, error) { return encode(m) }

func (m *DataResponse) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBinary(b, m.DataID)
	sshtype.AddBinary(b, m.Data)
}

func (m *DataResponse) decodeBody(r *sshtype.Reader) {
	m.DataID = r.Blob()
	m.Data = r.Blob()
}

// DataPresence reports whether the receiver holds the requested block.
type DataPresence struct {
	DataPresent bool
}

func ParseDataPresence(buf []byte) (*DataPresence, error) { return parseAs[DataPresence](buf) }

func (m *DataPresence) Type() Type              { return TypeDataPresence }
func (m *DataPresence) Encode() ([]byte, error) { return encode(m) }

func (m *DataPresence) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBool(b, m.DataPresent)
}

func (m *DataPresence) decodeBody(r *sshtype.Reader) {
	m.DataPresent = r.Bool()
}

// StoreData asks the receiver to store Data under DataID.
type StoreData struct {
	DataID []byte
	Data   []byte
}

func ParseStoreData(buf []byte) (*StoreData, error) { return parseAs[StoreData](buf) }

func (m *StoreData) Type() Type              { return TypeStoreData }
func (m *StoreData) Encode() ([]byte, error) { return encode(m) }

func (m *StoreData) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBinary(b, m.DataID)
	sshtype.AddBinary(b, m.Data)
}

func (m *StoreData) decodeBody(r *sshtype.Reader) {
	m.DataID = r.Blob()
	m.Data = r.Blob()
}

// DataStored acknowledges a StoreData.
type DataStored struct {
	Stored bool
}

func ParseDataStored(buf []byte) (*DataStored, error) { return parseAs[DataStored](buf) }

func (m *DataStored) Type() Type              { return TypeDataStored }
func (m *DataStored) Encode() ([]byte, error) { return encode(m) }

func (m *DataStored) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBool(b, m.Stored)
}

func (m *DataStored) decodeBody(r *sshtype.Reader) {
	m.Stored = r.Bool()
}

// StorageInterest answers a FindNode in store mode: whether the receiver is
// willing to hold the block.
type StorageInterest struct {
	WillStore bool
}

func ParseStorageInterest(buf []byte) (*StorageInterest, error) {
	return parseAs[StorageInterest](buf)
}

func (m *StorageInterest) Type() Type              { return TypeStorageInterest }
func (m *StorageInterest) Encode() ([]byte, error) { return encode(m) }

func (m *StorageInterest) encodeBody(b *cryptobyte.Builder) {
	sshtype.AddBool(b, m.WillStore)
}

func (m *StorageInterest) decodeBody(r *sshtype.Reader) {
	m.WillStore = r.Bool()
}
