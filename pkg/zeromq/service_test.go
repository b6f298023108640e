package zeromq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

type reply struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func decodeReply(t *testing.T, b []byte) reply {
	t.Helper()
	var r reply
	require.NoError(t, json.Unmarshal(b, &r))
	return r
}

func testDispatcher(queue events.Queue) *MessageDispatcher {
	logger := customlog.NewDiscardLogger()
	d := NewMessageDispatcher(logger)
	d.RegisterHandler(MsgTypeControlEvent, NewControlEventHandler(queue, logger))
	d.RegisterHandler(MsgTypeStatusRequest, NewStatusHandler(func() interface{} {
		return map[string]string{"state": "streaming"}
	}))
	d.RegisterHandler(MsgTypeConfigRequest, NewConfigHandler(func() config.StreamConfig {
		return config.StreamConfig{Address: "10.0.0.5", Frequency: 30, Render3D: true}
	}, logger))
	return d
}

func TestDispatchControlEvent(t *testing.T) {
	queue := events.NewQueue(1)
	d := testDispatcher(queue)

	out, err := d.Dispatch([]byte(`{"type":"CONTROL_EVENT","data":{"type":"home_tap","address":"10.0.0.9"}}`))
	require.NoError(t, err)
	r := decodeReply(t, out)
	assert.Equal(t, MsgTypeAck, r.Type)
	assert.JSONEq(t, `{"status":"OK","event":"HOME_TAP"}`, string(r.Data))

	ev := <-queue
	assert.Equal(t, events.HomeTap, ev.Kind)
	assert.Equal(t, "10.0.0.9", ev.Address)
	assert.Equal(t, EventSource, ev.Source)
	assert.False(t, ev.At.IsZero())
}

func TestDispatchControlEventQueueFull(t *testing.T) {
	queue := events.NewQueue(1)
	require.NoError(t, queue.Submit(events.Event{Kind: events.StartStream}))
	d := testDispatcher(queue)

	_, err := d.Dispatch([]byte(`{"type":"CONTROL_EVENT","data":{"type":"START_STREAM"}}`))
	assert.ErrorIs(t, err, events.ErrQueueFull)
}

func TestDispatchRejectsBadRequests(t *testing.T) {
	queue := events.NewQueue(1)
	d := testDispatcher(queue)

	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"not json", `\x01\x02`, ErrInvalidMessage},
		{"missing type", `{"data":{}}`, ErrInvalidMessage},
		{"unknown type", `{"type":"REBOOT"}`, ErrUnknownMessageType},
		{"event without data", `{"type":"CONTROL_EVENT"}`, ErrInvalidMessage},
		{"unknown event", `{"type":"CONTROL_EVENT","data":{"type":"TRIGGER"}}`, ErrInvalidMessage},
		{"event without type", `{"type":"CONTROL_EVENT","data":{"address":"10.0.0.9"}}`, ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch([]byte(tt.payload))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, queue)

	r := decodeReply(t, errorReply(ErrUnknownMessageType))
	assert.Equal(t, MsgTypeError, r.Type)
	assert.JSONEq(t, `{"message":"unknown message type","code":400}`, string(r.Data))
}

func TestDispatchStatusAndConfig(t *testing.T) {
	d := testDispatcher(events.NewQueue(1))

	out, err := d.Dispatch([]byte(`{"type":"STATUS_REQUEST"}`))
	require.NoError(t, err)
	r := decodeReply(t, out)
	assert.Equal(t, MsgTypeStatusResponse, r.Type)
	assert.JSONEq(t, `{"state":"streaming"}`, string(r.Data))

	out, err = d.Dispatch([]byte(`{"type":"CONFIG_REQUEST"}`))
	require.NoError(t, err)
	r = decodeReply(t, out)
	assert.Equal(t, MsgTypeConfigResponse, r.Type)
	var cfg config.StreamConfig
	require.NoError(t, json.Unmarshal(r.Data, &cfg))
	assert.Equal(t, "10.0.0.5", cfg.Address)
	assert.True(t, cfg.Render3D)
}

type recordingJSONPublisher struct {
	topic, msgType string
	data           interface{}
}

func (p *recordingJSONPublisher) PublishJSON(topic, msgType string, data interface{}) error {
	p.topic, p.msgType, p.data = topic, msgType, data
	return nil
}

func TestConfigPublisher(t *testing.T) {
	pub := &recordingJSONPublisher{}
	cfg := config.StreamConfig{Address: "qtm.local", Frequency: 60}
	NewConfigPublisher(pub, customlog.NewDiscardLogger()).PublishConfigUpdate(cfg)

	assert.Equal(t, TopicConfig, pub.topic)
	assert.Equal(t, MsgTypeConfigUpdated, pub.msgType)
	assert.Equal(t, cfg, pub.data)
}

func TestServiceRequestReplyAndPublish(t *testing.T) {
	logger := customlog.NewDiscardLogger()
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{
		CommandBindAddress:  "tcp://127.0.0.1:*",
		FramePublishAddress: "tcp://127.0.0.1:*",
	}, logger)
	require.NoError(t, err)

	queue := events.NewQueue(4)
	RegisterHandlers(svc, queue, func() interface{} { return "ok" }, config.DefaultStreamConfig, logger)
	require.NoError(t, svc.Start())
	defer func() { assert.NoError(t, svc.Stop()) }()

	ctx, err := zmq4.NewContext()
	require.NoError(t, err)
	defer ctx.Term()

	req, err := ctx.NewSocket(zmq4.REQ)
	require.NoError(t, err)
	defer req.Close()
	require.NoError(t, req.SetLinger(0))
	require.NoError(t, req.SetRcvtimeo(5*time.Second))
	require.NoError(t, req.Connect(svc.CommandEndpoint()))

	_, err = req.SendBytes([]byte(`{"type":"CONTROL_EVENT","data":{"type":"START_STREAM"}}`), 0)
	require.NoError(t, err)
	out, err := req.RecvBytes(0)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeAck, decodeReply(t, out).Type)
	assert.Equal(t, events.StartStream, (<-queue).Kind)

	_, err = req.SendBytes([]byte(`{"type":"NOPE"}`), 0)
	require.NoError(t, err)
	out, err = req.RecvBytes(0)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeError, decodeReply(t, out).Type)

	sub, err := ctx.NewSocket(zmq4.SUB)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.SetLinger(0))
	require.NoError(t, sub.SetRcvtimeo(50*time.Millisecond))
	require.NoError(t, sub.SetSubscribe("mocap.frame"))
	require.NoError(t, sub.Connect(svc.PublishEndpoint()))

	// PUB drops messages until the subscription has propagated.
	var parts [][]byte
	require.Eventually(t, func() bool {
		if err := svc.PublishMessage("mocap.frame", []byte{1, 2, 3}); err != nil {
			return false
		}
		got, recvErr := sub.RecvMessageBytes(0)
		if recvErr != nil {
			return false
		}
		parts = got
		return true
	}, 5*time.Second, 20*time.Millisecond)
	require.Len(t, parts, 2)
	assert.Equal(t, "mocap.frame", string(parts[0]))
	assert.Equal(t, []byte{1, 2, 3}, parts[1])
}

func TestPublishAfterStop(t *testing.T) {
	svc, err := NewZeroMQService(config.ZeroMQBootstrap{
		CommandBindAddress:  "tcp://127.0.0.1:*",
		FramePublishAddress: "tcp://127.0.0.1:*",
	}, customlog.NewDiscardLogger())
	require.NoError(t, err)

	// Never started: Stop still releases the sockets.
	require.NoError(t, svc.Stop())
	assert.ErrorIs(t, svc.PublishMessage("mocap.frame", nil), ErrServiceClosed)
	assert.NoError(t, svc.Stop())
}
