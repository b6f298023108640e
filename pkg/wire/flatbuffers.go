package wire

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/open-teleop/mocap-ar/pkg/flatbuffers/mocap"
)

// FlatbuffersCodec encodes the mocap.RenderFrame table.
type FlatbuffersCodec struct{}

func (FlatbuffersCodec) Name() string { return EncodingFlatbuffers }

func kindToPrimitive(kind string) mocap.Primitive {
	if kind == KindCube {
		return mocap.PrimitiveCube
	}
	return mocap.PrimitiveSphere
}

func primitiveToKind(p mocap.Primitive) string {
	if p == mocap.PrimitiveCube {
		return KindCube
	}
	return KindSphere
}

func (FlatbuffersCodec) Encode(f *RenderFrame) ([]byte, error) {
	builder := flatbuffers.NewBuilder(256 + 64*len(f.Nodes))

	nodeOffsets := make([]flatbuffers.UOffsetT, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.Index < 0 || n.Index > 0xffff {
			return nil, fmt.Errorf("node %q index %d out of range", n.Name, n.Index)
		}
		name := builder.CreateString(n.Name)
		mocap.NodeStart(builder)
		mocap.NodeAddKind(builder, kindToPrimitive(n.Kind))
		mocap.NodeAddIndex(builder, uint16(n.Index))
		mocap.NodeAddName(builder, name)
		mocap.NodeAddScale(builder, float32(n.Scale))
		mocap.NodeAddPosition(builder, mocap.CreateVec3(builder, n.Position[0], n.Position[1], n.Position[2]))
		mocap.NodeAddValid(builder, n.Valid)
		nodeOffsets[i] = mocap.NodeEnd(builder)
	}

	mocap.RenderFrameStartNodesVector(builder, len(nodeOffsets))
	for i := len(nodeOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(nodeOffsets[i])
	}
	nodes := builder.EndVector(len(nodeOffsets))
	session := builder.CreateString(f.SessionID)

	mocap.RenderFrameStart(builder)
	mocap.RenderFrameAddSessionId(builder, session)
	mocap.RenderFrameAddFrame(builder, f.Frame)
	mocap.RenderFrameAddTimestampUs(builder, f.TimestampUs)
	mocap.RenderFrameAddNodes(builder, nodes)
	builder.Finish(mocap.RenderFrameEnd(builder))
	return builder.FinishedBytes(), nil
}

func (FlatbuffersCodec) Decode(b []byte) (f *RenderFrame, err error) {
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("flatbuffer render frame too short: %d bytes", len(b))
	}
	// The accessors index straight into b and panic on a corrupt buffer.
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("corrupt flatbuffer render frame: %v", r)
		}
	}()

	root := mocap.GetRootAsRenderFrame(b, 0)
	f = &RenderFrame{
		SessionID:   string(root.SessionId()),
		Frame:       root.Frame(),
		TimestampUs: root.TimestampUs(),
		Nodes:       make([]Node, root.NodesLength()),
	}
	var (
		n   mocap.Node
		pos mocap.Vec3
	)
	for i := range f.Nodes {
		root.Nodes(&n, i)
		node := Node{
			Kind:  primitiveToKind(n.Kind()),
			Index: int(n.Index()),
			Name:  string(n.Name()),
			Scale: float64(n.Scale()),
			Valid: n.Valid(),
		}
		if p := n.Position(&pos); p != nil {
			node.Position = [3]float64{p.X(), p.Y(), p.Z()}
		}
		f.Nodes[i] = node
	}
	return f, nil
}
