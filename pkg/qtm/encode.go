package qtm

import (
	"encoding/binary"
	"math"
)

// EncodeFrame serialises f as a data packet, including the RT header.
// Components are written in 2D, 3DRes, 6DRes order and only when non-nil.
func EncodeFrame(f *Frame) []byte {
	var components [][]byte
	if f.TwoD != nil {
		components = append(components, encode2D(f.TwoD))
	}
	if f.ThreeD != nil {
		components = append(components, encode3DResidual(f.ThreeD))
	}
	if f.SixD != nil {
		components = append(components, encode6DResidual(f.SixD))
	}

	payload := make([]byte, 0, frameHeaderLength)
	payload = binary.LittleEndian.AppendUint64(payload, f.Timestamp)
	payload = binary.LittleEndian.AppendUint32(payload, f.Number)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(components)))
	for _, c := range components {
		payload = append(payload, c...)
	}
	return EncodePacket(PacketData, payload)
}

func componentFrame(t ComponentType, body []byte) []byte {
	out := make([]byte, 0, componentHeader+len(body))
	out = binary.LittleEndian.AppendUint32(out, uint32(componentHeader+len(body)))
	out = binary.LittleEndian.AppendUint32(out, uint32(t))
	return append(out, body...)
}

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func appendPosition(b []byte, p Position) []byte {
	b = appendF32(b, p.X)
	b = appendF32(b, p.Y)
	return appendF32(b, p.Z)
}

func encode2D(d *TwoDData) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, uint32(len(d.Cameras)))
	b = binary.LittleEndian.AppendUint16(b, d.DropRate)
	b = binary.LittleEndian.AppendUint16(b, d.OutOfSyncRate)
	for _, cam := range d.Cameras {
		b = binary.LittleEndian.AppendUint32(b, uint32(len(cam.Markers)))
		b = append(b, cam.StatusFlags)
		for _, m := range cam.Markers {
			b = binary.LittleEndian.AppendUint32(b, uint32(m.X))
			b = binary.LittleEndian.AppendUint32(b, uint32(m.Y))
			b = binary.LittleEndian.AppendUint16(b, m.DiameterX)
			b = binary.LittleEndian.AppendUint16(b, m.DiameterY)
		}
	}
	return componentFrame(Component2D, b)
}

func encode3DResidual(d *ThreeDData) []byte {
	b := make([]byte, 0, 8+len(d.Markers)*marker3DResSize)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(d.Markers)))
	b = binary.LittleEndian.AppendUint16(b, d.DropRate)
	b = binary.LittleEndian.AppendUint16(b, d.OutOfSyncRate)
	for _, m := range d.Markers {
		b = appendPosition(b, m.Position)
		b = appendF32(b, m.Residual)
	}
	return componentFrame(Component3DResidual, b)
}

func encode6DResidual(d *SixDData) []byte {
	b := make([]byte, 0, 8+len(d.Bodies)*body6DResSize)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(d.Bodies)))
	b = binary.LittleEndian.AppendUint16(b, d.DropRate)
	b = binary.LittleEndian.AppendUint16(b, d.OutOfSyncRate)
	for _, body := range d.Bodies {
		b = appendPosition(b, body.Position)
		for _, r := range body.Rotation {
			b = appendF32(b, r)
		}
		b = appendF32(b, body.Residual)
	}
	return componentFrame(Component6DResidual, b)
}
