package stream

import (
	"bytes"
	"context"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

type streamCall struct {
	Rate       qtm.StreamRate
	Value      int
	Components []qtm.ComponentType
}

type fakeClient struct {
	connected bool

	general    *qtm.GeneralSettings
	generalErr error
	settings3D *qtm.Settings3D
	err3D      error
	settings6D *qtm.Settings6D
	err6D      error
	streamErr  error
	receiveErr error

	calls       []string
	streamCalls []streamCall
	packets     []qtm.Packet
	closed      bool
}

func newFakeClient(labels ...string) *fakeClient {
	s3 := &qtm.Settings3D{AxisUpwards: "+Z"}
	for _, l := range labels {
		s3.Labels = append(s3.Labels, qtm.Label{Name: l})
	}
	return &fakeClient{
		connected: true,
		general: &qtm.GeneralSettings{
			CaptureFrequency: 100,
			Cameras:          []qtm.CameraSettings{{ID: 1, Model: "Miqus M3"}, {ID: 2, Model: "Oqus 700+"}},
		},
		settings3D: s3,
		settings6D: &qtm.Settings6D{},
	}
}

func (c *fakeClient) Connected() bool { return c.connected }

func (c *fakeClient) GeneralSettings() (*qtm.GeneralSettings, error) {
	c.calls = append(c.calls, "General")
	if c.generalErr != nil {
		return nil, c.generalErr
	}
	return c.general, nil
}

func (c *fakeClient) Settings3D() (*qtm.Settings3D, error) {
	c.calls = append(c.calls, "3D")
	if c.err3D != nil {
		return nil, c.err3D
	}
	return c.settings3D, nil
}

func (c *fakeClient) Settings6D() (*qtm.Settings6D, error) {
	c.calls = append(c.calls, "6D")
	if c.err6D != nil {
		return nil, c.err6D
	}
	return c.settings6D, nil
}

func (c *fakeClient) StreamFrames(rate qtm.StreamRate, value int, comps []qtm.ComponentType) error {
	c.calls = append(c.calls, "StreamFrames")
	c.streamCalls = append(c.streamCalls, streamCall{Rate: rate, Value: value, Components: comps})
	return c.streamErr
}

func (c *fakeClient) Receive(block bool) (qtm.Packet, error) {
	if c.receiveErr != nil {
		c.connected = false
		return qtm.Packet{}, c.receiveErr
	}
	if len(c.packets) == 0 {
		return qtm.Packet{Type: qtm.PacketNone}, nil
	}
	p := c.packets[0]
	c.packets = c.packets[1:]
	return p, nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	c.connected = false
	return nil
}

type dialResult struct {
	client *fakeClient
	err    error
}

// fakeDialer hands out results in order and records the addresses dialled.
type fakeDialer struct {
	results []dialResult
	dialled []string
}

func dialerFor(clients ...*fakeClient) *fakeDialer {
	d := &fakeDialer{}
	for _, c := range clients {
		d.results = append(d.results, dialResult{client: c})
	}
	return d
}

func (d *fakeDialer) Dial(_ context.Context, address string) (Client, error) {
	d.dialled = append(d.dialled, address)
	if len(d.results) == 0 {
		return nil, qtm.ErrConnection
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.client, nil
}

type fakeHandle struct {
	kind  Primitive
	name  string
	scale float64
	pos   r3.Vector
	sets  int
}

func (h *fakeHandle) SetLocalPosition(v r3.Vector) {
	h.pos = v
	h.sets++
}

func (h *fakeHandle) LocalPosition() r3.Vector { return h.pos }

type fakeAnchor struct {
	clears  int
	spawned []*fakeHandle
	live    []*fakeHandle
}

func (a *fakeAnchor) Clear() {
	a.clears++
	a.live = nil
}

func (a *fakeAnchor) Spawn(kind Primitive, name string, scale float64) Handle {
	h := &fakeHandle{kind: kind, name: name, scale: scale}
	a.spawned = append(a.spawned, h)
	a.live = append(a.live, h)
	return h
}

func dataPacket(t *testing.T, f *qtm.Frame) qtm.Packet {
	t.Helper()
	p, err := qtm.ReadPacket(bytes.NewReader(qtm.EncodeFrame(f)))
	if err != nil {
		t.Fatalf("encode frame: %v", err)
	}
	return p
}
