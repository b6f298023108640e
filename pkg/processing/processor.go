package processing

import (
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
	"github.com/open-teleop/mocap-ar/pkg/stream"
	"github.com/open-teleop/mocap-ar/pkg/wire"
)

// Snapshotter captures the current render handles.
type Snapshotter interface {
	Snapshot(sessionID string, frame uint32, timestampUs uint64) *wire.RenderFrame
}

// FrameProcessor turns every applied mocap frame into a publish job. It runs
// on the stream runner goroutine and only snapshots and enqueues.
type FrameProcessor struct {
	logger   customlog.Logger
	scene    Snapshotter
	director *MessageDirector
}

// NewFrameProcessor creates a new frame processor
func NewFrameProcessor(logger customlog.Logger, scene Snapshotter, director *MessageDirector) *FrameProcessor {
	return &FrameProcessor{logger: logger, scene: scene, director: director}
}

// ObserveFrame implements stream.FrameObserver.
func (p *FrameProcessor) ObserveFrame(sessionID string, f *qtm.Frame) {
	job := &Job{
		Topic: TopicFrame,
		Frame: p.scene.Snapshot(sessionID, f.Number, f.Timestamp),
	}
	if err := p.director.RouteMessage(job); err != nil {
		p.logger.Debugf("Frame %d not published: %v", f.Number, err)
	}
}

// Notify queues a JSON notice such as a settings change on topic.
func (p *FrameProcessor) Notify(topic string, data interface{}) error {
	return p.director.RouteMessage(&Job{Topic: topic, Data: data})
}

// SettingsNotice summarises the settings a new session streams with.
type SettingsNotice struct {
	SessionID  string   `json:"session_id"`
	Address    string   `json:"address"`
	Frequency  int      `json:"frequency"`
	Components []string `json:"components"`
	Cameras    []string `json:"cameras,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	Bodies     []string `json:"bodies,omitempty"`
}

// ObserveStatus implements stream.StatusObserver. Every transition goes
// out on the status topic; entering streaming also announces the settings.
func (p *FrameProcessor) ObserveStatus(st stream.RunnerStatus) {
	if err := p.Notify(TopicStatus, st); err != nil {
		p.logger.Warnf("Status notice not published: %v", err)
	}
	if st.State != stream.Streaming {
		return
	}
	notice := SettingsNotice{
		SessionID:  st.SessionID,
		Address:    st.Address,
		Frequency:  st.Frequency,
		Components: st.Components,
		Cameras:    st.Cameras,
		Labels:     st.Labels,
		Bodies:     st.Bodies,
	}
	if err := p.Notify(TopicSettings, notice); err != nil {
		p.logger.Warnf("Settings notice not published: %v", err)
	}
}
