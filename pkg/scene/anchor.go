// Package scene keeps the render handles the stream controller spawns and
// turns them into wire frames for the headset engine, which owns the actual
// scene graph.
package scene

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/open-teleop/mocap-ar/pkg/stream"
	"github.com/open-teleop/mocap-ar/pkg/wire"
)

// Anchor is a stream.Anchor that records handle state.
type Anchor struct {
	mu      sync.RWMutex
	handles []*handle
	// generation increases on every Clear so stale handles stop writing.
	generation uint64
}

var _ stream.Anchor = (*Anchor)(nil)

// NewAnchor returns an empty anchor.
func NewAnchor() *Anchor {
	return &Anchor{}
}

type handle struct {
	anchor     *Anchor
	generation uint64
	kind       stream.Primitive
	index      int
	name       string
	scale      float64
	pos        r3.Vector
	valid      bool
}

// Clear drops every handle.
func (a *Anchor) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handles = nil
	a.generation++
}

// Spawn adds a handle. Index counts handles of the same kind.
func (a *Anchor) Spawn(kind stream.Primitive, name string, scale float64) stream.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	index := 0
	for _, h := range a.handles {
		if h.kind == kind {
			index++
		}
	}
	h := &handle{anchor: a, generation: a.generation, kind: kind, index: index, name: name, scale: scale}
	a.handles = append(a.handles, h)
	return h
}

func (h *handle) SetLocalPosition(v r3.Vector) {
	h.anchor.mu.Lock()
	defer h.anchor.mu.Unlock()
	if h.generation != h.anchor.generation {
		return
	}
	h.pos = v
	h.valid = true
}

func (h *handle) LocalPosition() r3.Vector {
	h.anchor.mu.RLock()
	defer h.anchor.mu.RUnlock()
	return h.pos
}

// Len returns the number of live handles.
func (a *Anchor) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.handles)
}

// Snapshot captures every live handle, markers first, in spawn order.
func (a *Anchor) Snapshot(sessionID string, frame uint32, timestampUs uint64) *wire.RenderFrame {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f := &wire.RenderFrame{
		SessionID:   sessionID,
		Frame:       frame,
		TimestampUs: timestampUs,
		Nodes:       make([]wire.Node, 0, len(a.handles)),
	}
	for _, kind := range []stream.Primitive{stream.Sphere, stream.Cube} {
		for _, h := range a.handles {
			if h.kind != kind {
				continue
			}
			f.Nodes = append(f.Nodes, wire.Node{
				Kind:     h.kind.String(),
				Index:    h.index,
				Name:     h.name,
				Scale:    h.scale,
				Position: [3]float64{h.pos.X, h.pos.Y, h.pos.Z},
				Valid:    h.valid,
			})
		}
	}
	return f
}
