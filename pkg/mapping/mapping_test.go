package mapping

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"

	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

func TestToRenderSpace(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		in   qtm.Position
		want r3.Vector
		ok   bool
	}{
		{"swaps and scales", qtm.Position{X: 1000, Y: 2000, Z: 3000}, r3.Vector{X: 1, Y: 3, Z: 2}, true},
		{"origin", qtm.Position{}, r3.Vector{}, true},
		{"negative", qtm.Position{X: -500, Y: 0, Z: 1500}, r3.Vector{X: -0.5, Y: 1.5, Z: 0}, true},
		{"untracked", qtm.Position{X: nan, Y: 2000, Z: 3000}, r3.Vector{}, false},
		// only X decides
		{"nan in y", qtm.Position{X: 1000, Y: nan, Z: 3000}, r3.Vector{X: 1, Y: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToRenderSpace(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.want.X, got.X)
			assert.Equal(t, tt.want.Y, got.Y)
			if math.IsNaN(float64(tt.in.Y)) {
				assert.True(t, math.IsNaN(got.Z))
			} else {
				assert.Equal(t, tt.want.Z, got.Z)
			}
		})
	}
}
