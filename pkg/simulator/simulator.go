// Package simulator serves synthetic mocap data over the RT protocol so the
// client can be exercised without a tracking server.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
)

// Scene describes what the simulated server reports.
type Scene struct {
	Frequency int
	Cameras   []qtm.CameraSettings
	Labels    []qtm.Label
	Bodies    []qtm.Body
	// OccludeEvery makes marker 0 untracked on every Nth frame. Zero disables it.
	OccludeEvery int
}

// DefaultScene is a two-camera rig with four labelled markers and one body.
func DefaultScene() Scene {
	return Scene{
		Frequency: 100,
		Cameras: []qtm.CameraSettings{
			{ID: 1, Model: "Miqus M3"},
			{ID: 2, Model: "Miqus M3"},
		},
		Labels: []qtm.Label{
			{Name: "head"}, {Name: "left_hand"}, {Name: "right_hand"}, {Name: "pelvis"},
		},
		Bodies: []qtm.Body{
			{Name: "wand", Points: []qtm.BodyPoint{{X: 0, Y: 0, Z: 0}, {X: 100, Y: 0, Z: 0}, {X: 0, Y: 50, Z: 0}}},
		},
		OccludeEvery: 50,
	}
}

// Server is a minimal RT server.
type Server struct {
	scene  Scene
	logger customlog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server for scene.
func NewServer(scene Scene, logger customlog.Logger) *Server {
	if logger == nil {
		logger = customlog.NewDiscardLogger()
	}
	return &Server{
		scene:  scene,
		logger: logger.WithField(customlog.ComponentField, "simulator"),
	}
}

// Listen binds the server to address ("127.0.0.1:0" picks a free port).
func (s *Server) Listen(address string) (net.Addr, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return l.Addr(), nil
}

// Serve accepts clients until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("simulator: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()

	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handle(ctx, nc)
	}
}

// session serialises writes from the command loop and the frame streamer.
type session struct {
	mu sync.Mutex
	nc net.Conn
}

func (ss *session) write(b []byte) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	_, err := ss.nc.Write(b)
	return err
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	s.logger.Infof("Client connected from %s", nc.RemoteAddr())

	ss := &session{nc: nc}
	if err := ss.write(qtm.EncodeText(qtm.PacketCommand, "QTM RT Interface connected")); err != nil {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var stopStream context.CancelFunc
	version := qtm.DefaultProtocolVersion

	for {
		p, err := qtm.ReadPacket(nc)
		if err != nil {
			s.logger.Infof("Client %s disconnected: %v", nc.RemoteAddr(), err)
			return
		}
		if p.Type != qtm.PacketCommand {
			continue
		}
		cmd := p.Text()
		fields := strings.Fields(cmd)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "version":
			if len(fields) > 1 {
				version = fields[1]
			}
			err = ss.write(qtm.EncodeText(qtm.PacketCommand, "Version set to "+version))
		case "getparameters":
			err = s.writeParameters(ss, version, fields[1:])
		case "streamframes":
			if stopStream != nil {
				stopStream()
				stopStream = nil
			}
			if len(fields) > 1 && strings.EqualFold(fields[1], "stop") {
				continue
			}
			var streamCtx context.Context
			streamCtx, stopStream = context.WithCancel(connCtx)
			var interval time.Duration
			interval, err = s.streamInterval(fields[1:])
			if err == nil {
				go s.stream(streamCtx, ss, interval, fields[2:])
			}
		default:
			err = ss.write(qtm.EncodeText(qtm.PacketError, "Parse error"))
		}
		if err != nil {
			s.logger.Warnf("Command %q failed: %v", cmd, err)
			if werr := ss.write(qtm.EncodeText(qtm.PacketError, err.Error())); werr != nil {
				return
			}
		}
	}
}

func (s *Server) writeParameters(ss *session, version string, sections []string) error {
	if len(sections) == 0 {
		return errors.New("Parameters not available")
	}
	var (
		doc string
		err error
	)
	switch strings.ToLower(sections[0]) {
	case "general":
		doc, err = qtm.MarshalGeneralSettings(version, &qtm.GeneralSettings{
			CaptureFrequency: s.scene.Frequency,
			Cameras:          s.scene.Cameras,
		})
	case "3d":
		doc, err = qtm.MarshalSettings3D(version, &qtm.Settings3D{AxisUpwards: "+Z", Labels: s.scene.Labels})
	case "6d":
		doc, err = qtm.MarshalSettings6D(version, &qtm.Settings6D{Bodies: s.scene.Bodies})
	default:
		return fmt.Errorf("Parameters not available: %s", sections[0])
	}
	if err != nil {
		return err
	}
	return ss.write(qtm.EncodeText(qtm.PacketXML, doc))
}

func (s *Server) streamInterval(args []string) (time.Duration, error) {
	if len(args) == 0 {
		return 0, errors.New("missing stream rate")
	}
	rate := args[0]
	switch {
	case strings.EqualFold(rate, "AllFrames"):
		return time.Second / time.Duration(s.scene.Frequency), nil
	case strings.HasPrefix(rate, "Frequency:"):
		hz, err := strconv.Atoi(strings.TrimPrefix(rate, "Frequency:"))
		if err != nil || hz <= 0 {
			return 0, fmt.Errorf("invalid frequency %q", rate)
		}
		return time.Second / time.Duration(hz), nil
	case strings.HasPrefix(rate, "FrequencyDivisor:"):
		div, err := strconv.Atoi(strings.TrimPrefix(rate, "FrequencyDivisor:"))
		if err != nil || div <= 0 {
			return 0, fmt.Errorf("invalid frequency divisor %q", rate)
		}
		return time.Second * time.Duration(div) / time.Duration(s.scene.Frequency), nil
	default:
		return 0, fmt.Errorf("unknown stream rate %q", rate)
	}
}

func (s *Server) stream(ctx context.Context, ss *session, interval time.Duration, components []string) {
	want := make(map[string]bool, len(components))
	for _, c := range components {
		want[strings.ToLower(c)] = true
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()
	var frameNumber uint32

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frameNumber++
			f := s.Frame(frameNumber, now.Sub(start), want)
			if err := ss.write(qtm.EncodeFrame(f)); err != nil {
				return
			}
		}
	}
}

// Frame builds frame n at elapsed time t. Markers circle the origin at
// 1.5 m height; the body slides along X.
func (s *Server) Frame(n uint32, t time.Duration, components map[string]bool) *qtm.Frame {
	f := &qtm.Frame{Number: n, Timestamp: uint64(t.Microseconds())}
	phase := t.Seconds()

	if components["2d"] {
		d := &qtm.TwoDData{}
		for range s.scene.Cameras {
			cam := qtm.Camera2D{}
			for i := range s.scene.Labels {
				cam.Markers = append(cam.Markers, qtm.Marker2D{
					X: int32(32000 + 1000*i), Y: int32(16000 + 500*i), DiameterX: 120, DiameterY: 120,
				})
			}
			d.Cameras = append(d.Cameras, cam)
		}
		f.TwoD = d
	}

	if components["3dres"] {
		d := &qtm.ThreeDData{}
		for i := range s.scene.Labels {
			angle := phase + float64(i)*math.Pi/2
			m := qtm.Marker3DResidual{
				Position: qtm.Position{
					X: float32(500 * math.Cos(angle)),
					Y: float32(500 * math.Sin(angle)),
					Z: 1500,
				},
				Residual: 0.8,
			}
			if i == 0 && s.scene.OccludeEvery > 0 && int(n)%s.scene.OccludeEvery == 0 {
				nan := float32(math.NaN())
				m.Position = qtm.Position{X: nan, Y: nan, Z: nan}
			}
			d.Markers = append(d.Markers, m)
		}
		f.ThreeD = d
	}

	if components["6dres"] {
		d := &qtm.SixDData{}
		for i := range s.scene.Bodies {
			d.Bodies = append(d.Bodies, qtm.Body6DResidual{
				Position: qtm.Position{X: float32(300 * math.Sin(phase)), Y: float32(200 * i), Z: 1000},
				Rotation: qtm.Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1},
				Residual: 1.2,
			})
		}
		f.SixD = d
	}
	return f
}
