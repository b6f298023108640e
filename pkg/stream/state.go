package stream

import (
	"fmt"

	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

// State is the combined session and stream state.
type State int

const (
	Disconnected State = iota
	ConnectedNoSettings
	ConnectedSettled
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedNoSettings:
		return "connected_no_settings"
	case ConnectedSettled:
		return "connected_settled"
	case Streaming:
		return "streaming"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText makes State readable in JSON status documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Components returns the stream components selected by the toggles, in
// wire order. 3D is requested when it is either printed or rendered.
func Components(opts config.StreamConfig) []qtm.ComponentType {
	var comps []qtm.ComponentType
	if opts.Print2D {
		comps = append(comps, qtm.Component2D)
	}
	if opts.Print3D || opts.Render3D {
		comps = append(comps, qtm.Component3DResidual)
	}
	if opts.Render6D {
		comps = append(comps, qtm.Component6DResidual)
	}
	return comps
}
