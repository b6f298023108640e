// Package qtm implements the client side of the Qualisys Track Manager
// real-time (RT) protocol over TCP: session handshake, parameter queries,
// frame streaming and packet decoding.
package qtm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// Common errors
var (
	ErrConnection          = errors.New("qtm: connection failed")
	ErrSettingsUnavailable = errors.New("qtm: settings unavailable")
	ErrNotConnected        = errors.New("qtm: not connected")
	ErrServer              = errors.New("qtm: server error")
	ErrMalformedPacket     = errors.New("qtm: malformed packet")
)

// Defaults for Options fields left at zero.
const (
	DefaultPort            = 22223
	DefaultProtocolVersion = "1.19"
	DefaultDialTimeout     = 5 * time.Second
	DefaultCommandTimeout  = 5 * time.Second
	DefaultPollWait        = time.Millisecond
)

// welcomeMessage is the first command packet a server sends after accept.
const welcomeMessage = "QTM RT Interface connected"

// Options configures a Conn.
type Options struct {
	// Port is used when the address has no explicit port. 22223 is the
	// little-endian RT port.
	Port            int
	ProtocolVersion string
	DialTimeout     time.Duration
	CommandTimeout  time.Duration
	// PollWait bounds how long a non-blocking Receive waits for a header.
	PollWait time.Duration
	Logger   customlog.Logger
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.ProtocolVersion == "" {
		o.ProtocolVersion = DefaultProtocolVersion
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.CommandTimeout == 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.PollWait == 0 {
		o.PollWait = DefaultPollWait
	}
	if o.Logger == nil {
		o.Logger = customlog.NewDiscardLogger()
	}
	return o
}

// Conn is one RT session. It is not safe for concurrent use; a single owner
// sends commands and polls packets.
type Conn struct {
	nc        net.Conn
	br        *bufio.Reader
	opts      Options
	logger    customlog.Logger
	connected bool

	general    *GeneralSettings
	settings3D *Settings3D
	settings6D *Settings6D
}

// Dial connects to an RT server and performs the version handshake.
// address may be "host" or "host:port".
func Dial(ctx context.Context, address string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()
	target := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		target = net.JoinHostPort(address, strconv.Itoa(opts.Port))
	}

	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, target, err)
	}

	c := NewConn(nc, opts)
	if err := c.handshake(); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return c, nil
}

// NewConn wraps an established transport. The caller must still run the
// handshake, which Dial does.
func NewConn(nc net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		nc:        nc,
		br:        bufio.NewReaderSize(nc, 64*1024),
		opts:      opts,
		logger:    opts.Logger.WithField(customlog.ComponentField, "qtm"),
		connected: true,
	}
}

func (c *Conn) handshake() error {
	welcome, err := c.awaitResponse(PacketCommand)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !strings.HasPrefix(welcome.Text(), welcomeMessage) {
		return fmt.Errorf("%w: unexpected welcome %q", ErrConnection, welcome.Text())
	}

	reply, err := c.command("Version "+c.opts.ProtocolVersion, PacketCommand)
	if err != nil {
		return fmt.Errorf("%w: version negotiation: %v", ErrConnection, err)
	}
	c.logger.Debugf("Protocol negotiated: %s", reply.Text())
	return nil
}

// Connected reports whether the transport is still usable.
func (c *Conn) Connected() bool {
	return c != nil && c.connected
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

// Close tears the session down. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.nc.Close()
}

// fail marks the session dead after a transport error.
func (c *Conn) fail(err error) error {
	if c.connected {
		c.logger.Warnf("Transport error, closing session: %v", err)
		c.connected = false
		_ = c.nc.Close()
	}
	return fmt.Errorf("%w: %v", ErrNotConnected, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Conn) send(cmd string) error {
	if !c.connected {
		return ErrNotConnected
	}
	_ = c.nc.SetWriteDeadline(time.Now().Add(c.opts.CommandTimeout))
	defer func() { _ = c.nc.SetWriteDeadline(time.Time{}) }()

	c.logger.Debugf("Sending command: %s", cmd)
	if _, err := c.nc.Write(EncodeText(PacketCommand, cmd)); err != nil {
		return c.fail(err)
	}
	return nil
}

// awaitResponse reads packets until one of the wanted type arrives. Events
// and stray data packets are skipped; an Error packet becomes ErrServer.
// Read errors, timeouts included, close the session.
func (c *Conn) awaitResponse(want PacketType) (Packet, error) {
	if !c.connected {
		return Packet{}, ErrNotConnected
	}
	_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.CommandTimeout))
	defer func() { _ = c.nc.SetReadDeadline(time.Time{}) }()

	for {
		p, err := ReadPacket(c.br)
		if err != nil {
			if isTimeout(err) {
				err = fmt.Errorf("timed out waiting for %s packet: %w", want, err)
			}
			return Packet{}, c.fail(err)
		}
		switch p.Type {
		case want:
			return p, nil
		case PacketError:
			return Packet{}, fmt.Errorf("%w: %s", ErrServer, p.Text())
		case PacketEvent, PacketData, PacketNoMoreData:
			c.logger.Debugf("Skipping %s packet while waiting for %s", p.Type, want)
		default:
			return Packet{}, fmt.Errorf("%w: expected %s packet, got %s", ErrMalformedPacket, want, p.Type)
		}
	}
}

func (c *Conn) command(cmd string, want PacketType) (Packet, error) {
	if err := c.send(cmd); err != nil {
		return Packet{}, err
	}
	return c.awaitResponse(want)
}

func (c *Conn) parameters(section string) (string, error) {
	p, err := c.command("GetParameters "+section, PacketXML)
	if err != nil {
		return "", fmt.Errorf("%w: GetParameters %s: %v", ErrSettingsUnavailable, section, err)
	}
	return p.Text(), nil
}

// GeneralSettings fetches the General parameters once per session.
func (c *Conn) GeneralSettings() (*GeneralSettings, error) {
	if c.general != nil {
		return c.general, nil
	}
	doc, err := c.parameters("General")
	if err != nil {
		return nil, err
	}
	g, err := ParseGeneralSettings(doc)
	if err != nil {
		return nil, err
	}
	c.general = g
	return g, nil
}

// Settings3D fetches the 3D label set once per session.
func (c *Conn) Settings3D() (*Settings3D, error) {
	if c.settings3D != nil {
		return c.settings3D, nil
	}
	doc, err := c.parameters("3D")
	if err != nil {
		return nil, err
	}
	s, err := ParseSettings3D(doc)
	if err != nil {
		return nil, err
	}
	c.settings3D = s
	return s, nil
}

// Settings6D fetches the rigid body definitions once per session.
func (c *Conn) Settings6D() (*Settings6D, error) {
	if c.settings6D != nil {
		return c.settings6D, nil
	}
	doc, err := c.parameters("6D")
	if err != nil {
		return nil, err
	}
	s, err := ParseSettings6D(doc)
	if err != nil {
		return nil, err
	}
	c.settings6D = s
	return s, nil
}

// StreamFrames subscribes to the given components. The server answers with
// data packets, which the caller collects through Receive.
func (c *Conn) StreamFrames(rate StreamRate, value int, components []ComponentType) error {
	cmd, err := streamFramesCommand(rate, value, components)
	if err != nil {
		return err
	}
	return c.send(cmd)
}

// Receive returns the next packet. With block false it waits at most
// PollWait for a packet header and returns a PacketNone packet when nothing
// arrived; once a header is seen the rest of the packet is read in full.
func (c *Conn) Receive(block bool) (Packet, error) {
	if !c.connected {
		return Packet{}, ErrNotConnected
	}

	if !block {
		_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.PollWait))
		if _, err := c.br.Peek(headerSize); err != nil {
			_ = c.nc.SetReadDeadline(time.Time{})
			if isTimeout(err) {
				return Packet{Type: PacketNone}, nil
			}
			return Packet{}, c.fail(err)
		}
		_ = c.nc.SetReadDeadline(time.Now().Add(c.opts.CommandTimeout))
	} else {
		_ = c.nc.SetReadDeadline(time.Time{})
	}
	defer func() { _ = c.nc.SetReadDeadline(time.Time{}) }()

	p, err := ReadPacket(c.br)
	if err != nil {
		return Packet{}, c.fail(err)
	}
	return p, nil
}
