package qtm

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func TestFrameWithAllComponents(t *testing.T) {
	in := &Frame{
		Timestamp: 1_000_000,
		Number:    7,
		TwoD: &TwoDData{Cameras: []Camera2D{
			{StatusFlags: 1, Markers: []Marker2D{{X: -5, Y: 10, DiameterX: 3, DiameterY: 4}, {X: 1, Y: 2}}},
			{Markers: []Marker2D{}},
		}},
		ThreeD: &ThreeDData{DropRate: 2, Markers: []Marker3DResidual{{Position: Position{X: 1, Y: 2, Z: 3}, Residual: 0.1}}},
		SixD: &SixDData{Bodies: []Body6DResidual{
			{Position: Position{X: 10, Y: 20, Z: 30}, Rotation: Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}, Residual: 2},
		}},
	}

	p, err := ReadPacket(bytes.NewReader(EncodeFrame(in)))
	require.NoError(t, err)
	out, err := p.Frame()
	require.NoError(t, err)

	assert.Equal(t, in, out)
	require.Len(t, out.Cameras2D(), 2)
	assert.Equal(t, 2, out.Cameras2D()[0].MarkerCount())
	assert.Equal(t, 0, out.Cameras2D()[1].MarkerCount())
}

func TestDecodeSkipsUnknownComponents(t *testing.T) {
	payload := binary.LittleEndian.AppendUint64(nil, 5)
	payload = binary.LittleEndian.AppendUint32(payload, 9)
	payload = binary.LittleEndian.AppendUint32(payload, 2)
	// an analog component this client never asked for
	payload = append(payload, componentFrame(ComponentAnalog, []byte{1, 2, 3, 4})...)
	payload = append(payload, encode3DResidual(&ThreeDData{Markers: []Marker3DResidual{{Position: Position{X: 4, Y: 5, Z: 6}}}})...)

	f, err := decodeFrame(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), f.Number)
	require.Len(t, f.Markers3D(), 1)
	assert.Nil(t, f.Bodies6D())
	assert.Nil(t, f.Cameras2D())
}

func TestDecodeMalformed(t *testing.T) {
	good := EncodeFrame(&Frame{ThreeD: &ThreeDData{Markers: make([]Marker3DResidual, 3)}})[headerSize:]

	tests := []struct {
		name    string
		payload []byte
	}{
		{"short header", []byte{1, 2, 3}},
		{"truncated component", good[:len(good)-4]},
		{"component size past end", func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b[frameHeaderLength:], uint32(len(b)))
			return b
		}()},
		{"marker count too large", func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b[frameHeaderLength+componentHeader:], 1<<30)
			return b
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeFrame(tt.payload)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestFrameOnNonDataPacket(t *testing.T) {
	_, err := Packet{Type: PacketXML}.Frame()
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestReadPacketRejectsBadSize(t *testing.T) {
	hdr := binary.LittleEndian.AppendUint32(nil, 4)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(PacketCommand))
	_, err := ReadPacket(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestPositionTracked(t *testing.T) {
	nan := float32(math.NaN())
	assert.True(t, Position{X: 0, Y: 0, Z: 0}.Tracked())
	assert.False(t, Position{X: nan, Y: 1, Z: 1}.Tracked())
}

func TestRotationQuaternion(t *testing.T) {
	identity := Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}
	assert.InDelta(t, 1, identity.Quaternion().Real, 1e-9)

	// 90 degrees about Z, column-major: first column is (0, 1, 0).
	rz := Rotation{0, 1, 0, -1, 0, 0, 0, 0, 1}
	q := rz.Quaternion()
	want := quat.Number{Real: math.Sqrt2 / 2, Kmag: math.Sqrt2 / 2}
	assert.InDelta(t, want.Real, q.Real, 1e-6)
	assert.InDelta(t, want.Imag, q.Imag, 1e-6)
	assert.InDelta(t, want.Jmag, q.Jmag, 1e-6)
	assert.InDelta(t, want.Kmag, q.Kmag, 1e-6)

	// 180 degrees about X exercises the non-positive trace branch.
	rx := Rotation{1, 0, 0, 0, -1, 0, 0, 0, -1}
	q = rx.Quaternion()
	assert.InDelta(t, 1, math.Abs(q.Imag), 1e-6)
	assert.InDelta(t, 0, q.Real, 1e-6)
}
