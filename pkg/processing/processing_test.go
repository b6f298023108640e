package processing

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
	"github.com/open-teleop/mocap-ar/pkg/stream"
	"github.com/open-teleop/mocap-ar/pkg/wire"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
	err      error
}

func (p *recordingPublisher) PublishMessage(topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[topic] = append(p.messages[topic], data)
	return p.err
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []uint32
}

func (b *recordingBroadcaster) BroadcastFrame(f *wire.RenderFrame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, f.Frame)
}

type staticScene struct{}

func (staticScene) Snapshot(sessionID string, frame uint32, ts uint64) *wire.RenderFrame {
	return &wire.RenderFrame{SessionID: sessionID, Frame: frame, TimestampUs: ts,
		Nodes: []wire.Node{{Kind: wire.KindSphere, Name: "head", Scale: 0.03, Valid: true}}}
}

func TestPoolDropsWhenQueueFull(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	pool := NewProcessingPool("test", 1, 1, logger)

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	pool.SetProcessor(func(job *Job) (int, error) {
		started <- struct{}{}
		<-release
		return 1, nil
	})
	pool.Start()

	require.True(t, pool.Submit(&Job{Topic: TopicFrame}))
	<-started // the worker holds the first job
	require.True(t, pool.Submit(&Job{Topic: TopicFrame}))
	assert.False(t, pool.Submit(&Job{Topic: TopicFrame}))

	close(release)
	pool.Stop()

	m := pool.GetMetrics()
	assert.Equal(t, int64(2), m.ProcessedCount)
	assert.Equal(t, int64(1), m.DroppedCount)
	assert.False(t, pool.Submit(&Job{Topic: TopicFrame}))
}

func TestDirectorRoutesByPriority(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	registry := NewTopicRegistry(logger)
	registry.Register(TopicFrame, wire.EncodingCBOR, PriorityStandard)
	registry.Register(TopicSettings, wire.EncodingJSON, PriorityHigh)

	director := NewMessageDirector(logger, registry, &DirectorOptions{DefaultQueueSize: 4})
	assert.Error(t, director.RouteMessage(&Job{Topic: TopicFrame}))

	director.Initialize(1, 1)
	codec, err := wire.NewCodec(wire.EncodingCBOR)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	bc := &recordingBroadcaster{}
	director.SetProcessor(NewPublishProcessor(codec, pub, bc).CreateProcessorFunc())
	director.SetResultHandler(NewLoggingResultHandler(logger).CreateHandlerFunc())
	director.Start()

	frames := NewFrameProcessor(logger, staticScene{}, director)
	frames.ObserveFrame("s1", &qtm.Frame{Number: 3, Timestamp: 99})
	require.NoError(t, frames.Notify(TopicSettings, map[string]int{"frequency": 30}))
	director.Stop()

	require.Equal(t, 1, pub.count(TopicFrame))
	decoded, err := codec.Decode(pub.messages[TopicFrame][0])
	require.NoError(t, err)
	assert.Equal(t, "s1", decoded.SessionID)
	assert.Equal(t, uint32(3), decoded.Frame)
	assert.Equal(t, uint64(99), decoded.TimestampUs)
	assert.JSONEq(t, `{"frequency":30}`, string(pub.messages[TopicSettings][0]))
	assert.Equal(t, []uint32{3}, bc.frames)

	metrics := director.GetPoolMetrics()
	assert.Equal(t, int64(1), metrics[PriorityHigh].ProcessedCount)
	assert.Equal(t, int64(1), metrics[PriorityStandard].ProcessedCount)

	info, ok := registry.GetTopicInfo(TopicFrame)
	require.True(t, ok)
	assert.Equal(t, int64(1), info.StatCount)
	assert.Equal(t, []string{TopicFrame, TopicSettings}, registry.GetAllTopics())
}

func TestPublishProcessorReportsErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("socket closed")}
	p := NewPublishProcessor(wire.JSONCodec{}, pub, nil)

	n, err := p.Process(&Job{Topic: TopicFrame, Frame: &wire.RenderFrame{Frame: 1}})
	assert.Error(t, err)
	assert.Greater(t, n, 0)

	_, err = p.Process(&Job{Topic: TopicStatus, Data: func() {}})
	assert.Error(t, err)
}

func TestRegistryCountsDrops(t *testing.T) {
	registry := NewTopicRegistry(customlog.NewDiscardLogger())
	registry.RecordDrop("mocap.unknown")
	registry.UpdateTopicStats("mocap.unknown", time.Now().UnixNano())

	stats := registry.GetTopicStats()
	assert.Equal(t, int64(1), stats["mocap.unknown"].DropCount)
	assert.Equal(t, int64(1), stats["mocap.unknown"].StatCount)
	assert.Equal(t, PriorityStandard, stats["mocap.unknown"].Priority)
}

func TestObserveStatusAnnouncesSettings(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	registry := NewTopicRegistry(logger)
	registry.Register(TopicStatus, wire.EncodingJSON, PriorityHigh)
	registry.Register(TopicSettings, wire.EncodingJSON, PriorityHigh)
	director := NewMessageDirector(logger, registry, nil)
	director.Initialize(1, 1)
	pub := &recordingPublisher{}
	director.SetProcessor(NewPublishProcessor(wire.JSONCodec{}, pub, nil).CreateProcessorFunc())
	director.Start()

	frames := NewFrameProcessor(logger, staticScene{}, director)
	frames.ObserveStatus(stream.RunnerStatus{Status: stream.Status{
		State:      stream.Streaming,
		SessionID:  "abc",
		Address:    "127.0.0.1",
		Frequency:  30,
		Components: []string{"3DRes"},
		Labels:     []string{"head"},
	}})
	frames.ObserveStatus(stream.RunnerStatus{Status: stream.Status{State: stream.Disconnected}})
	director.Stop()

	require.Equal(t, 2, pub.count(TopicStatus))
	require.Equal(t, 1, pub.count(TopicSettings))
	assert.JSONEq(t, `{"session_id":"abc","address":"127.0.0.1","frequency":30,"components":["3DRes"],"labels":["head"]}`,
		string(pub.messages[TopicSettings][0]))
	assert.Contains(t, string(pub.messages[TopicStatus][1]), `"state":"disconnected"`)
}
