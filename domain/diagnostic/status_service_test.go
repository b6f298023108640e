package diagnostic

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/mocap-ar/pkg/processing"
	"github.com/open-teleop/mocap-ar/pkg/stream"
)

type fixedRunner struct{ stream.RunnerStatus }

func (f fixedRunner) Status() stream.RunnerStatus { return f.RunnerStatus }

type fixedPools map[string]processing.PoolMetrics

func (f fixedPools) GetPoolMetrics() map[string]processing.PoolMetrics { return f }

func TestGetStatus(t *testing.T) {
	runner := fixedRunner{stream.RunnerStatus{Status: stream.Status{State: stream.Streaming, Frequency: 30}, Rotating: true}}
	pools := fixedPools{processing.PriorityStandard: {ProcessedCount: 7, DroppedCount: 2}}
	svc := NewDiagnosticService(runner, pools, nil)
	start := svc.started
	svc.now = func() time.Time { return start.Add(90*time.Second + 300*time.Millisecond) }

	st := svc.GetStatus()
	assert.Equal(t, "1m30s", st.Uptime)
	assert.Equal(t, stream.Streaming, st.Stream.State)
	assert.True(t, st.Stream.Rotating)
	assert.Equal(t, int64(2), st.Pools[processing.PriorityStandard].DroppedCount)
	assert.Nil(t, st.Topics)
}

func TestGetStatusHandler(t *testing.T) {
	svc := NewDiagnosticService(fixedRunner{stream.RunnerStatus{Status: stream.Status{State: stream.ConnectedSettled}}}, nil, nil)
	app := fiber.New()
	app.Get("/status", svc.GetStatusHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var doc struct {
		Status string `json:"status"`
		Data   struct {
			Stream struct {
				State string `json:"state"`
			} `json:"stream"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &doc))
	assert.Equal(t, "success", doc.Status)
	assert.Equal(t, "connected_settled", doc.Data.Stream.State)
}
