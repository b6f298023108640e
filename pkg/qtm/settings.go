package qtm

import (
	"encoding/xml"
	"fmt"
)

// CameraSettings describes one camera from the General parameters.
type CameraSettings struct {
	ID    int
	Model string
}

// GeneralSettings is the subset of General parameters the client uses.
type GeneralSettings struct {
	CaptureFrequency int
	Cameras          []CameraSettings
}

// Label is one named 3D marker.
type Label struct {
	Name  string
	Color uint32
}

// Settings3D holds the 3D label set. Labels are index aligned with the
// markers of every 3D component.
type Settings3D struct {
	AxisUpwards string
	Labels      []Label
}

// BodyPoint is one defining point of a rigid body, in body coordinates.
type BodyPoint struct {
	X, Y, Z float64
}

// Body is one rigid body definition.
type Body struct {
	Name   string
	Color  uint32
	Points []BodyPoint
}

// Settings6D holds the rigid body definitions. Bodies are index aligned with
// the bodies of every 6DOF component.
type Settings6D struct {
	Bodies []Body
}

// The root element carries the protocol version in its name, so it is left
// unnamed when decoding and set explicitly when encoding.
type parametersXML struct {
	XMLName xml.Name
	General *generalXML    `xml:"General,omitempty"`
	The3D   *settings3DXML `xml:"The_3D,omitempty"`
	The6D   *settings6DXML `xml:"The_6D,omitempty"`
}

type generalXML struct {
	Frequency int         `xml:"Frequency"`
	Cameras   []cameraXML `xml:"Camera"`
}

type cameraXML struct {
	ID    int    `xml:"ID"`
	Model string `xml:"Model"`
}

type settings3DXML struct {
	AxisUpwards string     `xml:"AxisUpwards"`
	LabelCount  int        `xml:"Labels"`
	Labels      []labelXML `xml:"Label"`
}

type labelXML struct {
	Name     string `xml:"Name"`
	RGBColor uint32 `xml:"RGBColor"`
}

type settings6DXML struct {
	BodyCount int       `xml:"Bodies"`
	Bodies    []bodyXML `xml:"Body"`
}

type bodyXML struct {
	Name     string     `xml:"Name"`
	RGBColor uint32     `xml:"RGBColor"`
	Points   []pointXML `xml:"Point"`
}

type pointXML struct {
	X float64 `xml:"X"`
	Y float64 `xml:"Y"`
	Z float64 `xml:"Z"`
}

func parseParameters(doc string) (*parametersXML, error) {
	var p parametersXML
	if err := xml.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("%w: parse parameters xml: %v", ErrSettingsUnavailable, err)
	}
	return &p, nil
}

// ParseGeneralSettings decodes a GetParameters General response.
func ParseGeneralSettings(doc string) (*GeneralSettings, error) {
	p, err := parseParameters(doc)
	if err != nil {
		return nil, err
	}
	if p.General == nil {
		return nil, fmt.Errorf("%w: no General section", ErrSettingsUnavailable)
	}
	g := &GeneralSettings{CaptureFrequency: p.General.Frequency}
	for _, c := range p.General.Cameras {
		g.Cameras = append(g.Cameras, CameraSettings{ID: c.ID, Model: c.Model})
	}
	return g, nil
}

// ParseSettings3D decodes a GetParameters 3D response.
func ParseSettings3D(doc string) (*Settings3D, error) {
	p, err := parseParameters(doc)
	if err != nil {
		return nil, err
	}
	if p.The3D == nil {
		return nil, fmt.Errorf("%w: no The_3D section", ErrSettingsUnavailable)
	}
	s := &Settings3D{AxisUpwards: p.The3D.AxisUpwards, Labels: make([]Label, 0, len(p.The3D.Labels))}
	for _, l := range p.The3D.Labels {
		s.Labels = append(s.Labels, Label{Name: l.Name, Color: l.RGBColor})
	}
	return s, nil
}

// ParseSettings6D decodes a GetParameters 6D response.
func ParseSettings6D(doc string) (*Settings6D, error) {
	p, err := parseParameters(doc)
	if err != nil {
		return nil, err
	}
	if p.The6D == nil {
		return nil, fmt.Errorf("%w: no The_6D section", ErrSettingsUnavailable)
	}
	s := &Settings6D{Bodies: make([]Body, 0, len(p.The6D.Bodies))}
	for _, b := range p.The6D.Bodies {
		body := Body{Name: b.Name, Color: b.RGBColor}
		for _, pt := range b.Points {
			body.Points = append(body.Points, BodyPoint{X: pt.X, Y: pt.Y, Z: pt.Z})
		}
		s.Bodies = append(s.Bodies, body)
	}
	return s, nil
}

func marshalParameters(version string, p *parametersXML) (string, error) {
	p.XMLName = xml.Name{Local: "QTM_Parameters_Ver_" + version}
	out, err := xml.Marshal(p)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

// MarshalGeneralSettings renders g the way a server answers GetParameters General.
func MarshalGeneralSettings(version string, g *GeneralSettings) (string, error) {
	x := &generalXML{Frequency: g.CaptureFrequency}
	for _, c := range g.Cameras {
		x.Cameras = append(x.Cameras, cameraXML{ID: c.ID, Model: c.Model})
	}
	return marshalParameters(version, &parametersXML{General: x})
}

// MarshalSettings3D renders s the way a server answers GetParameters 3D.
func MarshalSettings3D(version string, s *Settings3D) (string, error) {
	x := &settings3DXML{AxisUpwards: s.AxisUpwards, LabelCount: len(s.Labels)}
	for _, l := range s.Labels {
		x.Labels = append(x.Labels, labelXML{Name: l.Name, RGBColor: l.Color})
	}
	return marshalParameters(version, &parametersXML{The3D: x})
}

// MarshalSettings6D renders s the way a server answers GetParameters 6D.
func MarshalSettings6D(version string, s *Settings6D) (string, error) {
	x := &settings6DXML{BodyCount: len(s.Bodies)}
	for _, b := range s.Bodies {
		bx := bodyXML{Name: b.Name, RGBColor: b.Color}
		for _, pt := range b.Points {
			bx.Points = append(bx.Points, pointXML{X: pt.X, Y: pt.Y, Z: pt.Z})
		}
		x.Bodies = append(x.Bodies, bx)
	}
	return marshalParameters(version, &parametersXML{The6D: x})
}
