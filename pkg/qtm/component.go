package qtm

import (
	"fmt"
	"strings"
)

// ComponentType identifies a data layer inside a data packet. The numeric
// values are the component ids used on the wire.
type ComponentType uint32

const (
	Component3D              ComponentType = 1
	Component3DNoLabels      ComponentType = 2
	ComponentAnalog          ComponentType = 3
	ComponentForce           ComponentType = 4
	Component6D              ComponentType = 5
	Component6DEuler         ComponentType = 6
	Component2D              ComponentType = 7
	Component2DLinearized    ComponentType = 8
	Component3DResidual      ComponentType = 9
	Component3DNoLabelsRes   ComponentType = 10
	Component6DResidual      ComponentType = 11
	Component6DEulerResidual ComponentType = 12
)

var componentNames = map[ComponentType]string{
	Component3D:              "3D",
	Component3DNoLabels:      "3DNoLabels",
	ComponentAnalog:          "Analog",
	ComponentForce:           "Force",
	Component6D:              "6D",
	Component6DEuler:         "6DEuler",
	Component2D:              "2D",
	Component2DLinearized:    "2DLin",
	Component3DResidual:      "3DRes",
	Component3DNoLabelsRes:   "3DNoLabelsRes",
	Component6DResidual:      "6DRes",
	Component6DEulerResidual: "6DEulerRes",
}

// String returns the token used in StreamFrames/GetCurrentFrame commands.
func (c ComponentType) String() string {
	if name, ok := componentNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Component(%d)", uint32(c))
}

// StreamRate selects how the server paces a frame stream.
type StreamRate int

const (
	RateAllFrames StreamRate = iota
	RateFrequency
	RateFrequencyDivisor
)

// streamFramesCommand builds the StreamFrames command text.
func streamFramesCommand(rate StreamRate, value int, components []ComponentType) (string, error) {
	if len(components) == 0 {
		return "", fmt.Errorf("no components selected for streaming")
	}

	var b strings.Builder
	b.WriteString("StreamFrames")
	switch rate {
	case RateAllFrames:
		b.WriteString(" AllFrames")
	case RateFrequency:
		if value <= 0 {
			return "", fmt.Errorf("invalid stream frequency %d", value)
		}
		fmt.Fprintf(&b, " Frequency:%d", value)
	case RateFrequencyDivisor:
		if value <= 0 {
			return "", fmt.Errorf("invalid stream frequency divisor %d", value)
		}
		fmt.Fprintf(&b, " FrequencyDivisor:%d", value)
	default:
		return "", fmt.Errorf("unknown stream rate %d", rate)
	}
	for _, c := range components {
		b.WriteByte(' ')
		b.WriteString(c.String())
	}
	return b.String(), nil
}
