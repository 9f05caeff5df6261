// Package filter selects and applies per-resolution image filter chains.
//
// The package has three cooperating layers:
//
//   - Instance: one configured filter occurrence, identified by the
//     permanent uuid of its filter type plus a fixed-size parameter blob.
//   - Set: an ordered pre/post filter chain plus the resolution-matching
//     rule (activation mask) that decides when it applies to a frame.
//   - Graph: an editable node graph of gates and filters that compiles
//     into ordered chains, one per input gate.
//
// The engine orders and selects filters; the per-type interpretation of a
// parameter blob is confined to the type's apply function.
package filter

import (
	"fmt"

	"github.com/google/uuid"
)

// DataLength is the fixed size of a filter instance's parameter blob.
// Persisted filter rows always carry exactly this many parameter bytes.
const DataLength = 256

// Instance is one configured occurrence of a filter type. The type uuid is
// a permanent identity across versions; legacy files that identified filters
// by display name are translated on load via ResolveTypeString.
type Instance struct {
	Type uuid.UUID
	Data [DataLength]byte
}

// NewInstance creates an instance of the given filter type with the leading
// parameter bytes set from data. Excess bytes are rejected rather than
// silently truncated.
func NewInstance(typeID uuid.UUID, data []byte) (Instance, error) {
	if _, ok := TypeForID(typeID); !ok {
		return Instance{}, fmt.Errorf("unknown filter type: %s", typeID)
	}
	if len(data) > DataLength {
		return Instance{}, fmt.Errorf("filter parameter data too long: %d bytes (max %d)",
			len(data), DataLength)
	}

	inst := Instance{Type: typeID}
	copy(inst.Data[:], data)
	return inst, nil
}

// Name returns the display name of the instance's filter type, or the uuid
// string if the type is not registered.
func (in Instance) Name() string {
	if t, ok := TypeForID(in.Type); ok {
		return t.Name
	}
	return in.Type.String()
}
