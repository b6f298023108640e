// Package wire encodes render frames for the outbound transports: ZeroMQ
// subscribers get flatbuffers or CBOR, websocket clients get JSON.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

//go:generate flatc --go -o ../flatbuffers ../../schemas/render_frame.fbs

// Node kinds.
const (
	KindSphere = "sphere"
	KindCube   = "cube"
)

// Node is one render handle.
type Node struct {
	Kind     string     `json:"kind" cbor:"1,keyasint"`
	Index    int        `json:"index" cbor:"2,keyasint"`
	Name     string     `json:"name" cbor:"3,keyasint"`
	Scale    float64    `json:"scale" cbor:"4,keyasint"`
	Position [3]float64 `json:"position" cbor:"5,keyasint"`
	// Valid is false until the handle received its first tracked position.
	Valid bool `json:"valid" cbor:"6,keyasint"`
}

// RenderFrame is the state of every handle after one frame was applied.
type RenderFrame struct {
	SessionID   string `json:"session_id" cbor:"1,keyasint"`
	Frame       uint32 `json:"frame" cbor:"2,keyasint"`
	TimestampUs uint64 `json:"timestamp_us" cbor:"3,keyasint"`
	Nodes       []Node `json:"nodes" cbor:"4,keyasint"`
}

// Encodings understood by NewCodec.
const (
	EncodingFlatbuffers = "flatbuffers"
	EncodingCBOR        = "cbor"
	EncodingJSON        = "json"
)

// Codec converts render frames to and from bytes.
type Codec interface {
	Name() string
	Encode(*RenderFrame) ([]byte, error)
	Decode([]byte) (*RenderFrame, error)
}

// NewCodec returns the codec for encoding.
func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case EncodingFlatbuffers:
		return FlatbuffersCodec{}, nil
	case EncodingCBOR:
		return newCBORCodec()
	case EncodingJSON:
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported frame encoding %q", encoding)
	}
}

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() (Codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{MaxArrayElements: 1 << 16}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return cborCodec{enc: enc, dec: dec}, nil
}

func (cborCodec) Name() string { return EncodingCBOR }

func (c cborCodec) Encode(f *RenderFrame) ([]byte, error) {
	return c.enc.Marshal(f)
}

func (c cborCodec) Decode(b []byte) (*RenderFrame, error) {
	var f RenderFrame
	if err := c.dec.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode cbor render frame: %w", err)
	}
	return &f, nil
}

// JSONCodec is used for websocket clients.
type JSONCodec struct{}

func (JSONCodec) Name() string { return EncodingJSON }

func (JSONCodec) Encode(f *RenderFrame) ([]byte, error) {
	return json.Marshal(f)
}

func (JSONCodec) Decode(b []byte) (*RenderFrame, error) {
	var f RenderFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode json render frame: %w", err)
	}
	return &f, nil
}
