package protocol

import "fmt"

// DataMode is the intent carried by FindNode. It occupies one byte on the
// wire; bytes outside the three defined values are rejected.
type DataMode byte

const (
	DataModeNone  DataMode = 0
	DataModeGet   DataMode = 10
	DataModeStore DataMode = 20
)

func (d DataMode) Valid() bool {
	switch d {
	case DataModeNone, DataModeGet, DataModeStore:
		return true
	}
	return false
}

func (d DataMode) String() string {
	switch d {
	case DataModeNone:
		return "none"
	case DataModeGet:
		return "get"
	case DataModeStore:
		return "store"
	}
	return fmt.Sprintf("DataMode(%d)", byte(d))
}

// ParseDataMode validates a data mode byte read off the wire.
func ParseDataMode(b byte) (DataMode, error) {
	d := DataMode(b)
	if !d.Valid() {
		return 0, invalidDataMode(b)
	}
	return d, nil
}

func invalidDataMode(b byte) error {
	return fmt.Errorf("%w: %d", ErrInvalidDataMode, b)
}
