package qtm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType is the packet kind carried in every RT packet header.
type PacketType uint32

const (
	PacketError      PacketType = 0
	PacketCommand    PacketType = 1
	PacketXML        PacketType = 2
	PacketData       PacketType = 3
	PacketNoMoreData PacketType = 4
	PacketC3DFile    PacketType = 5
	PacketEvent      PacketType = 6
	PacketDiscover   PacketType = 7
	PacketQTMFile    PacketType = 8
	// PacketNone is never sent by a server. Receive returns it when no
	// packet was available.
	PacketNone PacketType = 0xffffffff
)

func (t PacketType) String() string {
	switch t {
	case PacketError:
		return "Error"
	case PacketCommand:
		return "Command"
	case PacketXML:
		return "XML"
	case PacketData:
		return "Data"
	case PacketNoMoreData:
		return "NoMoreData"
	case PacketC3DFile:
		return "C3DFile"
	case PacketEvent:
		return "Event"
	case PacketDiscover:
		return "Discover"
	case PacketQTMFile:
		return "QTMFile"
	case PacketNone:
		return "None"
	default:
		return fmt.Sprintf("PacketType(%d)", uint32(t))
	}
}

// headerSize is the size of the length + type prefix.
const headerSize = 8

// maxPacketSize bounds allocations for a single packet.
const maxPacketSize = 16 << 20

// Packet is one framed RT packet. Payload excludes the header.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// Text returns the payload of a Command, Error or XML packet without the
// trailing NUL terminator.
func (p Packet) Text() string {
	b := p.Payload
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Frame decodes a data packet. It fails for any other packet type.
func (p Packet) Frame() (*Frame, error) {
	if p.Type != PacketData {
		return nil, fmt.Errorf("%w: %s packet has no frame", ErrMalformedPacket, p.Type)
	}
	return decodeFrame(p.Payload)
}

// EventCode returns the event id of an Event packet.
func (p Packet) EventCode() (byte, bool) {
	if p.Type != PacketEvent || len(p.Payload) < 1 {
		return 0, false
	}
	return p.Payload[0], true
}

// EncodePacket frames payload with an RT header.
func EncodePacket(t PacketType, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(out)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(t))
	copy(out[headerSize:], payload)
	return out
}

// EncodeText frames a NUL-terminated string payload.
func EncodeText(t PacketType, text string) []byte {
	payload := make([]byte, len(text)+1)
	copy(payload, text)
	return EncodePacket(t, payload)
}

// parseHeader validates a packet header and returns the payload length.
func parseHeader(hdr []byte) (PacketType, int, error) {
	size := binary.LittleEndian.Uint32(hdr[0:4])
	t := PacketType(binary.LittleEndian.Uint32(hdr[4:8]))
	if size < headerSize || size > maxPacketSize {
		return t, 0, fmt.Errorf("%w: packet size %d", ErrMalformedPacket, size)
	}
	return t, int(size) - headerSize, nil
}

// ReadPacket reads one packet from r, blocking until it is complete.
func ReadPacket(r io.Reader) (Packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Packet{}, err
	}
	t, n, err := parseHeader(hdr[:])
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Packet{}, err
	}
	return Packet{Type: t, Payload: payload}, nil
}
