// Package mapping converts capture-system positions into render space.
package mapping

import (
	"github.com/golang/geo/r3"

	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

// Scale converts millimetres to metres.
const Scale = 0.001

// ToRenderSpace maps a capture position (Z up, millimetres) to the render
// convention (Y up, metres) by swapping Y and Z and scaling. It returns false
// for an untracked position, in which case the caller must keep whatever it
// rendered last.
func ToRenderSpace(p qtm.Position) (r3.Vector, bool) {
	if !p.Tracked() {
		return r3.Vector{}, false
	}
	v := r3.Vector{X: float64(p.X), Y: float64(p.Z), Z: float64(p.Y)}
	return v.Mul(Scale), true
}
