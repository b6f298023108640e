// Package stream drives one RT streaming session: it runs the start sequence
// against the server, polls one packet per tick and moves render handles to
// the decoded positions.
package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/open-teleop/mocap-ar/pkg/config"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/mapping"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

var (
	ErrAlreadyStreaming = errors.New("stream: already streaming")
	ErrNoComponents     = errors.New("stream: no components selected")
)

// Client is the part of a qtm.Conn the controller uses.
type Client interface {
	Connected() bool
	GeneralSettings() (*qtm.GeneralSettings, error)
	Settings3D() (*qtm.Settings3D, error)
	Settings6D() (*qtm.Settings6D, error)
	StreamFrames(rate qtm.StreamRate, value int, components []qtm.ComponentType) error
	Receive(block bool) (qtm.Packet, error)
	Close() error
}

// Dialer opens a session to address.
type Dialer func(ctx context.Context, address string) (Client, error)

// QTMDialer dials real RT servers with opts.
func QTMDialer(opts qtm.Options) Dialer {
	return func(ctx context.Context, address string) (Client, error) {
		return qtm.Dial(ctx, address, opts)
	}
}

// Counters track packet traffic for the current process.
type Counters struct {
	Packets      uint64 `json:"packets"`
	Frames       uint64 `json:"frames"`
	DecodeErrors uint64 `json:"decode_errors"`
	ServerErrors uint64 `json:"server_errors"`
	LastFrame    uint32 `json:"last_frame"`
}

// Status is a point-in-time copy of the controller state.
type Status struct {
	State      State    `json:"state"`
	SessionID  string   `json:"session_id,omitempty"`
	Address    string   `json:"address,omitempty"`
	Frequency  int      `json:"frequency"`
	Components []string `json:"components,omitempty"`
	Capture    int      `json:"capture_frequency,omitempty"`
	Cameras    []string `json:"cameras,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Bodies     []string `json:"bodies,omitempty"`
	Counters   Counters `json:"counters"`
}

// Controller owns one session at a time. It is not safe for concurrent use.
type Controller struct {
	dial   Dialer
	anchor Anchor
	logger customlog.Logger
	opts   config.StreamConfig

	client  Client
	state   State
	address string
	session uuid.UUID

	general *qtm.GeneralSettings
	labels  []qtm.Label
	bodies  []qtm.Body
	balls   []Handle
	cubes   []Handle

	counters Counters
}

// NewController creates a controller that spawns handles under anchor.
func NewController(dial Dialer, anchor Anchor, opts config.StreamConfig, logger customlog.Logger) *Controller {
	if logger == nil {
		logger = customlog.NewDiscardLogger()
	}
	return &Controller{
		dial:   dial,
		anchor: anchor,
		opts:   opts,
		logger: logger.WithField(customlog.ComponentField, "stream"),
	}
}

// SetOptions replaces the stream options. They take effect on the next Start.
func (c *Controller) SetOptions(opts config.StreamConfig) {
	c.opts = opts
}

// Options returns the options the next Start will use.
func (c *Controller) Options() config.StreamConfig {
	return c.opts
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// SessionID identifies the current streaming session. It is the zero UUID
// until a stream has started.
func (c *Controller) SessionID() uuid.UUID {
	return c.session
}

// Markers returns the marker handles, index aligned with the 3D labels.
func (c *Controller) Markers() []Handle {
	return c.balls
}

// Bodies returns the body handles, index aligned with the 6D bodies.
func (c *Controller) Bodies() []Handle {
	return c.cubes
}

// Start runs the start sequence against address: connect, fetch settings,
// reset the anchor, allocate handles and subscribe. Any failure leaves the
// controller in the state it reached and returns the error; calling Start
// again resumes from there.
func (c *Controller) Start(ctx context.Context, address string) error {
	if c.state == Streaming {
		c.logger.Warnf("Start ignored, already streaming from %s (session %s)", c.address, c.session)
		return ErrAlreadyStreaming
	}
	if address == "" {
		address = c.opts.Address
	}
	c.logger.Infof("Starting stream from %s...", address)

	if err := c.connect(ctx, address); err != nil {
		c.logger.Warnf("Trying to connect... %v", err)
		return err
	}

	g, err := c.client.GeneralSettings()
	if err != nil {
		c.logger.Warnf("Trying to get General settings... %v", err)
		c.syncConnection()
		return err
	}
	c.general = g
	c.state = ConnectedSettled
	c.logger.Infof("General settings available.")
	c.logger.Infof("Frequency: %d", g.CaptureFrequency)
	c.logger.Infof("Cameras:")
	for _, cam := range g.Cameras {
		c.logger.Infof("\t%s", cam.Model)
	}

	components := Components(c.opts)
	if len(components) == 0 {
		c.logger.Warnf("Nothing to stream, enable 2D print, 3D print/render or 6D render")
		return ErrNoComponents
	}

	// Label and body sets are fetched before the anchor is touched, so a
	// failed fetch leaves the previous handles in place.
	var (
		labels []qtm.Label
		bodies []qtm.Body
	)
	if c.opts.Print3D || c.opts.Render3D {
		s3, err := c.client.Settings3D()
		if err != nil {
			c.logger.Warnf("Trying to get 3D settings... %v", err)
			c.syncConnection()
			return err
		}
		labels = s3.Labels
	}
	if c.opts.Render6D {
		s6, err := c.client.Settings6D()
		if err != nil {
			c.logger.Warnf("Trying to get 6D settings... %v", err)
			c.syncConnection()
			return err
		}
		bodies = s6.Bodies
	}

	c.anchor.Clear()
	c.labels, c.bodies = labels, bodies
	c.balls, c.cubes = nil, nil

	if c.opts.Print2D {
		c.logger.Infof("Starting to stream 2D data, printing to console.")
	}
	if c.opts.Print3D || c.opts.Render3D {
		c.logger.Infof("Starting to stream 3D data.")
		if c.opts.Print3D {
			c.logger.Infof("3D data stream will print to console.")
		}
		if c.opts.Render3D {
			c.logger.Infof("3D data stream will render in world.")
			c.balls = make([]Handle, len(labels))
			for i, l := range labels {
				c.balls[i] = c.anchor.Spawn(Sphere, l.Name, MarkerScale)
			}
		}
	}
	if c.opts.Render6D {
		for _, b := range bodies {
			c.logger.Infof("Found 6DOF body: %s", b.Name)
		}
		c.cubes = make([]Handle, len(bodies))
		for i, b := range bodies {
			c.cubes[i] = c.anchor.Spawn(Cube, b.Name, BodyScale)
		}
		c.logger.Infof("Starting to stream 6D data, rendering in world.")
	}

	if err := c.client.StreamFrames(qtm.RateFrequency, c.opts.Frequency, components); err != nil {
		c.logger.Errorf("StreamFrames failed: %v", err)
		c.syncConnection()
		return fmt.Errorf("subscribe: %w", err)
	}

	c.state = Streaming
	c.session = uuid.New()
	c.logger.WithField("session", c.session.String()).Infof("Streaming %v at %d Hz", components, c.opts.Frequency)
	return nil
}

// connect reuses a live session and otherwise replaces it with a new one.
func (c *Controller) connect(ctx context.Context, address string) error {
	if c.client != nil && c.client.Connected() && address == c.address {
		return nil
	}
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	c.state = Disconnected
	c.general = nil

	client, err := c.dial(ctx, address)
	if err != nil {
		return err
	}
	c.client = client
	c.address = address
	c.state = ConnectedNoSettings
	c.logger.Infof("Connected!")
	return nil
}

// syncConnection drops to Disconnected when the client lost its transport.
func (c *Controller) syncConnection() {
	if c.client != nil && !c.client.Connected() && c.state != Disconnected {
		c.logger.Warnf("Connection to %s lost", c.address)
		c.state = Disconnected
	}
}

// Poll takes at most one packet from the session and applies it. It returns
// the decoded frame when a data packet was handled, and nil otherwise.
func (c *Controller) Poll() (*qtm.Frame, error) {
	if c.client == nil || !c.client.Connected() {
		c.syncConnection()
		return nil, nil
	}

	p, err := c.client.Receive(false)
	if err != nil {
		c.syncConnection()
		return nil, err
	}

	switch p.Type {
	case qtm.PacketNone:
		return nil, nil
	case qtm.PacketData:
	case qtm.PacketError:
		c.counters.Packets++
		c.counters.ServerErrors++
		c.logger.Warnf("Server error: %s", p.Text())
		return nil, nil
	default:
		c.counters.Packets++
		return nil, nil
	}
	c.counters.Packets++

	f, err := p.Frame()
	if err != nil {
		c.counters.DecodeErrors++
		return nil, err
	}
	c.counters.Frames++
	c.counters.LastFrame = f.Number

	c.apply(f)
	return f, nil
}

func (c *Controller) apply(f *qtm.Frame) {
	if c.opts.Print2D {
		if cams := f.Cameras2D(); len(cams) > 0 {
			c.logger.Infof("Frame:%05d Markers:%d Status:%d", f.Number, cams[0].MarkerCount(), cams[0].StatusFlags)
		}
	}

	markers := f.Markers3D()
	if c.opts.Print3D {
		for i, m := range markers {
			name := c.labelName(i)
			if m.Position.Tracked() {
				c.logger.Infof("Frame:%05d Name:%16s X:%7.1f Y:%7.1f Z:%7.1f Residual:%5.1f",
					f.Number, name, m.Position.X, m.Position.Y, m.Position.Z, m.Residual)
			} else {
				c.logger.Infof("Frame:%05d Name:%20s -----------------------------------", f.Number, name)
			}
		}
	}
	if c.opts.Render3D {
		// Markers beyond the handle count belong to labels added after the
		// settings were fetched and are ignored until the next start.
		for i := 0; i < len(markers) && i < len(c.balls); i++ {
			if v, ok := mapping.ToRenderSpace(markers[i].Position); ok {
				c.balls[i].SetLocalPosition(v)
			}
		}
	}

	if c.opts.Render6D {
		bodies := f.Bodies6D()
		for i := 0; i < len(bodies) && i < len(c.cubes); i++ {
			if v, ok := mapping.ToRenderSpace(bodies[i].Position); ok {
				c.cubes[i].SetLocalPosition(v)
			}
		}
	}
}

func (c *Controller) labelName(i int) string {
	if i < len(c.labels) {
		return c.labels[i].Name
	}
	return fmt.Sprintf("#%d", i)
}

// Status returns a snapshot for reporting.
// Counters returns the packet counters without building a full Status.
func (c *Controller) Counters() Counters {
	return c.counters
}

func (c *Controller) Status() Status {
	s := Status{
		State:     c.state,
		Address:   c.address,
		Frequency: c.opts.Frequency,
		Counters:  c.counters,
	}
	if c.session != uuid.Nil {
		s.SessionID = c.session.String()
	}
	for _, comp := range Components(c.opts) {
		s.Components = append(s.Components, comp.String())
	}
	if c.general != nil {
		s.Capture = c.general.CaptureFrequency
		for _, cam := range c.general.Cameras {
			s.Cameras = append(s.Cameras, cam.Model)
		}
	}
	for _, l := range c.labels {
		s.Labels = append(s.Labels, l.Name)
	}
	for _, b := range c.bodies {
		s.Bodies = append(s.Bodies, b.Name)
	}
	return s
}

// Close ends the session.
func (c *Controller) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	c.state = Disconnected
	return err
}
