package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame() *RenderFrame {
	return &RenderFrame{
		SessionID:   "5b0f6c1e-3f7e-4b8e-9a53-0d1c2b3a4f5e",
		Frame:       1234,
		TimestampUs: 987654321,
		Nodes: []Node{
			{Kind: KindSphere, Index: 0, Name: "head", Scale: 0.03, Position: [3]float64{1, 3, 2}, Valid: true},
			{Kind: KindSphere, Index: 1, Name: "left_hand", Scale: 0.03},
			{Kind: KindCube, Index: 0, Name: "wand", Scale: 0.1, Position: [3]float64{-0.25, 1.5, 0.125}, Valid: true},
		},
	}
}

func TestCodecs(t *testing.T) {
	for _, encoding := range []string{EncodingFlatbuffers, EncodingCBOR, EncodingJSON} {
		t.Run(encoding, func(t *testing.T) {
			codec, err := NewCodec(encoding)
			require.NoError(t, err)
			assert.Equal(t, encoding, codec.Name())

			in := sampleFrame()
			b, err := codec.Encode(in)
			require.NoError(t, err)
			require.NotEmpty(t, b)

			out, err := codec.Decode(b)
			require.NoError(t, err)
			// flatbuffers carries the scale as a float32
			if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
				t.Errorf("frame mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewCodecUnknown(t *testing.T) {
	_, err := NewCodec("protobuf")
	assert.Error(t, err)
}

func TestFlatbuffersEmptyFrame(t *testing.T) {
	codec := FlatbuffersCodec{}
	b, err := codec.Encode(&RenderFrame{Frame: 1})
	require.NoError(t, err)

	out, err := codec.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), out.Frame)
	assert.Empty(t, out.Nodes)
	assert.Empty(t, out.SessionID)
}

func TestFlatbuffersRejectsCorruptInput(t *testing.T) {
	codec := FlatbuffersCodec{}
	_, err := codec.Decode([]byte{1})
	assert.Error(t, err)

	_, err = codec.Decode([]byte{0xff, 0xff, 0xff, 0x7f, 0, 0, 0, 0})
	assert.Error(t, err)

	_, err = codec.Encode(&RenderFrame{Nodes: []Node{{Index: 70000}}})
	assert.Error(t, err)
}

func TestCBORIsCompact(t *testing.T) {
	cborCodec, err := NewCodec(EncodingCBOR)
	require.NoError(t, err)
	jsonCodec, err := NewCodec(EncodingJSON)
	require.NoError(t, err)

	cb, err := cborCodec.Encode(sampleFrame())
	require.NoError(t, err)
	jb, err := jsonCodec.Encode(sampleFrame())
	require.NoError(t, err)
	assert.Less(t, len(cb), len(jb))
}
