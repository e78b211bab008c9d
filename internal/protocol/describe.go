package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Describe renders m on one line for logs and the CLI.
func Describe(m Message) string {
	switch m := m.(type) {
	case *Relay:
		return fmt.Sprintf("Relay index=%d packets=%d", m.Index, len(m.Packets))
	case *NodeInfo:
		return fmt.Sprintf("NodeInfo sender_address=%q", m.SenderAddress)
	case *GetPeers:
		return fmt.Sprintf("GetPeers sender_port=%d", m.SenderPort)
	case *PeerList:
		var sb strings.Builder
		fmt.Fprintf(&sb, "PeerList count=%d", len(m.Peers))
		for _, p := range m.Peers {
			if p == nil {
				continue
			}
			fmt.Fprintf(&sb, " [%s %s]", p.PeerAddress(), shortHex(p.PeerNodeID()))
		}
		return sb.String()
	case *FindNode:
		return fmt.Sprintf("FindNode node_id=%s data_mode=%s", shortHex(m.NodeID), m.DataMode)
	case *GetData:
		return fmt.Sprintf("GetData data_id=%s", shortHex(m.DataID))
	case *DataResponse:
		return fmt.Sprintf("DataResponse data_id=%s data=%d bytes", shortHex(m.DataID), len(m.Data))
	case *DataPresence:
		return fmt.Sprintf("DataPresence data_present=%t", m.DataPresent)
	case *StoreData:
		return fmt.Sprintf("StoreData data_id=%s data=%d bytes", shortHex(m.DataID), len(m.Data))
	case *DataStored:
		return fmt.Sprintf("DataStored stored=%t", m.Stored)
	case *StorageInterest:
		return fmt.Sprintf("StorageInterest will_store=%t", m.WillStore)
	default:
		return fmt.Sprintf("%T", m)
	}
}

func shortHex(b []byte) string {
	s := hex.EncodeToString(b)
	if len(s) > 16 {
		return s[:16] + "..."
	}
	return s
}
