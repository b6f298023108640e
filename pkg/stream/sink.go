package stream

import "github.com/golang/geo/r3"

// Primitive is the shape spawned for a render handle.
type Primitive int

const (
	Sphere Primitive = iota
	Cube
)

func (p Primitive) String() string {
	if p == Cube {
		return "cube"
	}
	return "sphere"
}

// Handle scales used for markers and rigid bodies.
const (
	MarkerScale = 0.03
	BodyScale   = 0.1
)

// Handle is one render object parented under the anchor.
type Handle interface {
	SetLocalPosition(r3.Vector)
	LocalPosition() r3.Vector
}

// Anchor owns the render objects. It is implemented by the embedding
// application.
type Anchor interface {
	// Clear destroys every handle previously spawned under the anchor.
	Clear()
	// Spawn creates a new handle. name is the marker label or body name.
	Spawn(kind Primitive, name string, scale float64) Handle
}
