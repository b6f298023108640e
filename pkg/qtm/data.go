package qtm

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Position is a marker or body position in capture-system millimetres.
// A NaN coordinate means the point was not tracked in this frame.
type Position struct {
	X, Y, Z float32
}

// Tracked reports whether the position carries data. The server marks
// occluded points by setting every coordinate to NaN, so X alone decides.
func (p Position) Tracked() bool {
	return !math.IsNaN(float64(p.X))
}

// Marker2D is one camera-space marker.
type Marker2D struct {
	X, Y                 int32
	DiameterX, DiameterY uint16
}

// Camera2D holds the 2D markers seen by one camera.
type Camera2D struct {
	StatusFlags uint8
	Markers     []Marker2D
}

// MarkerCount returns the number of 2D markers the camera reported.
func (c Camera2D) MarkerCount() int {
	return len(c.Markers)
}

// TwoDData is the 2D component of a frame.
type TwoDData struct {
	DropRate      uint16
	OutOfSyncRate uint16
	Cameras       []Camera2D
}

// Marker3DResidual is one labelled 3D marker with its fit residual.
type Marker3DResidual struct {
	Position Position
	Residual float32
}

// ThreeDData is the 3D-residual component of a frame. Markers are index
// aligned with the labels returned by Settings3D.
type ThreeDData struct {
	DropRate      uint16
	OutOfSyncRate uint16
	Markers       []Marker3DResidual
}

// Rotation is a 3x3 rotation matrix stored column-major, as sent on the wire.
type Rotation [9]float32

// At returns the element at row r, column c.
func (m Rotation) At(r, c int) float64 {
	return float64(m[c*3+r])
}

// Quaternion converts the rotation matrix to a unit quaternion.
func (m Rotation) Quaternion() quat.Number {
	trace := m.At(0, 0) + m.At(1, 1) + m.At(2, 2)
	var q quat.Number
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: s / 4,
			Imag: (m.At(2, 1) - m.At(1, 2)) / s,
			Jmag: (m.At(0, 2) - m.At(2, 0)) / s,
			Kmag: (m.At(1, 0) - m.At(0, 1)) / s,
		}
	case m.At(0, 0) > m.At(1, 1) && m.At(0, 0) > m.At(2, 2):
		s := math.Sqrt(1+m.At(0, 0)-m.At(1, 1)-m.At(2, 2)) * 2
		q = quat.Number{
			Real: (m.At(2, 1) - m.At(1, 2)) / s,
			Imag: s / 4,
			Jmag: (m.At(0, 1) + m.At(1, 0)) / s,
			Kmag: (m.At(0, 2) + m.At(2, 0)) / s,
		}
	case m.At(1, 1) > m.At(2, 2):
		s := math.Sqrt(1+m.At(1, 1)-m.At(0, 0)-m.At(2, 2)) * 2
		q = quat.Number{
			Real: (m.At(0, 2) - m.At(2, 0)) / s,
			Imag: (m.At(0, 1) + m.At(1, 0)) / s,
			Jmag: s / 4,
			Kmag: (m.At(1, 2) + m.At(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1+m.At(2, 2)-m.At(0, 0)-m.At(1, 1)) * 2
		q = quat.Number{
			Real: (m.At(1, 0) - m.At(0, 1)) / s,
			Imag: (m.At(0, 2) + m.At(2, 0)) / s,
			Jmag: (m.At(1, 2) + m.At(2, 1)) / s,
			Kmag: s / 4,
		}
	}
	return quat.Scale(1/quat.Abs(q), q)
}

// Body6DResidual is one rigid body pose with its fit residual. Bodies are
// index aligned with Settings6D.Bodies.
type Body6DResidual struct {
	Position Position
	Rotation Rotation
	Residual float32
}

// SixDData is the 6DOF-residual component of a frame.
type SixDData struct {
	DropRate      uint16
	OutOfSyncRate uint16
	Bodies        []Body6DResidual
}

// Frame is the decoded content of one data packet. A component that was not
// in the packet is nil.
type Frame struct {
	Timestamp uint64
	Number    uint32
	TwoD      *TwoDData
	ThreeD    *ThreeDData
	SixD      *SixDData
}

// Markers3D returns the 3D markers or nil when the component is absent.
func (f *Frame) Markers3D() []Marker3DResidual {
	if f == nil || f.ThreeD == nil {
		return nil
	}
	return f.ThreeD.Markers
}

// Bodies6D returns the rigid bodies or nil when the component is absent.
func (f *Frame) Bodies6D() []Body6DResidual {
	if f == nil || f.SixD == nil {
		return nil
	}
	return f.SixD.Bodies
}

// Cameras2D returns the 2D cameras or nil when the component is absent.
func (f *Frame) Cameras2D() []Camera2D {
	if f == nil || f.TwoD == nil {
		return nil
	}
	return f.TwoD.Cameras
}

// cursor is a bounds-checked little-endian reader over a component body.
type cursor struct {
	b   []byte
	off int
	err error
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.off+n > len(c.b) {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedPacket, n, c.off, len(c.b))
		return false
	}
	return true
}

func (c *cursor) u8() uint8 {
	if !c.need(1) {
		return 0
	}
	v := c.b[c.off]
	c.off++
	return v
}

func (c *cursor) u16() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(c.b[c.off:])
	c.off += 2
	return v
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.b[c.off:])
	c.off += 4
	return v
}

func (c *cursor) u64() uint64 {
	if !c.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(c.b[c.off:])
	c.off += 8
	return v
}

func (c *cursor) f32() float32 {
	return math.Float32frombits(c.u32())
}

func (c *cursor) position() Position {
	return Position{X: c.f32(), Y: c.f32(), Z: c.f32()}
}

// count reads an element count and checks that elemSize*count bytes can
// still follow, so a corrupt count cannot trigger a huge allocation.
func (c *cursor) count(elemSize int) int {
	n := int(c.u32())
	if c.err == nil && n*elemSize > len(c.b)-c.off {
		c.err = fmt.Errorf("%w: count %d exceeds component size", ErrMalformedPacket, n)
		return 0
	}
	return n
}

const (
	marker2DSize      = 12
	marker3DResSize   = 16
	body6DResSize     = 12 + 36 + 4
	componentHeader   = 8
	frameHeaderLength = 16
)

func decodeFrame(payload []byte) (*Frame, error) {
	c := &cursor{b: payload}
	f := &Frame{
		Timestamp: c.u64(),
		Number:    c.u32(),
	}
	componentCount := c.u32()
	if c.err != nil {
		return nil, c.err
	}

	for i := uint32(0); i < componentCount; i++ {
		if !c.need(componentHeader) {
			return nil, c.err
		}
		size := int(binary.LittleEndian.Uint32(payload[c.off:]))
		ctype := ComponentType(binary.LittleEndian.Uint32(payload[c.off+4:]))
		if size < componentHeader || c.off+size > len(payload) {
			return nil, fmt.Errorf("%w: component %s size %d", ErrMalformedPacket, ctype, size)
		}
		body := &cursor{b: payload[c.off+componentHeader : c.off+size]}
		c.off += size

		var err error
		switch ctype {
		case Component2D:
			f.TwoD, err = decode2D(body)
		case Component3DResidual:
			f.ThreeD, err = decode3DResidual(body)
		case Component6DResidual:
			f.SixD, err = decode6DResidual(body)
		default:
			// not subscribed by this client
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s component: %w", ctype, err)
		}
	}
	return f, nil
}

func decode2D(c *cursor) (*TwoDData, error) {
	cameraCount := c.count(5)
	d := &TwoDData{DropRate: c.u16(), OutOfSyncRate: c.u16()}
	d.Cameras = make([]Camera2D, 0, cameraCount)
	for i := 0; i < cameraCount && c.err == nil; i++ {
		markerCount := int(c.u32())
		cam := Camera2D{StatusFlags: c.u8()}
		if c.err == nil && markerCount*marker2DSize > len(c.b)-c.off {
			return nil, fmt.Errorf("%w: camera %d marker count %d", ErrMalformedPacket, i, markerCount)
		}
		cam.Markers = make([]Marker2D, markerCount)
		for j := range cam.Markers {
			cam.Markers[j] = Marker2D{
				X:         int32(c.u32()),
				Y:         int32(c.u32()),
				DiameterX: c.u16(),
				DiameterY: c.u16(),
			}
		}
		d.Cameras = append(d.Cameras, cam)
	}
	return d, c.err
}

func decode3DResidual(c *cursor) (*ThreeDData, error) {
	n := c.count(marker3DResSize)
	d := &ThreeDData{DropRate: c.u16(), OutOfSyncRate: c.u16()}
	d.Markers = make([]Marker3DResidual, n)
	for i := range d.Markers {
		d.Markers[i] = Marker3DResidual{Position: c.position(), Residual: c.f32()}
	}
	return d, c.err
}

func decode6DResidual(c *cursor) (*SixDData, error) {
	n := c.count(body6DResSize)
	d := &SixDData{DropRate: c.u16(), OutOfSyncRate: c.u16()}
	d.Bodies = make([]Body6DResidual, n)
	for i := range d.Bodies {
		b := Body6DResidual{Position: c.position()}
		for k := range b.Rotation {
			b.Rotation[k] = c.f32()
		}
		b.Residual = c.f32()
		d.Bodies[i] = b
	}
	return d, c.err
}
