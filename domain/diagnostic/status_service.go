package diagnostic

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/mocap-ar/pkg/processing"
	"github.com/open-teleop/mocap-ar/pkg/stream"
)

// RunnerSource reports the stream runner's state.
type RunnerSource interface {
	Status() stream.RunnerStatus
}

// PipelineSource reports output pool and topic counters.
type PipelineSource interface {
	GetPoolMetrics() map[string]processing.PoolMetrics
}

// TopicSource reports per-topic counters.
type TopicSource interface {
	GetTopicStats() map[string]processing.TopicInfo
}

// SystemStatus represents the service status document
type SystemStatus struct {
	Timestamp time.Time                         `json:"timestamp"`
	Uptime    string                            `json:"uptime"`
	Stream    stream.RunnerStatus               `json:"stream"`
	Pools     map[string]processing.PoolMetrics `json:"pools,omitempty"`
	Topics    map[string]processing.TopicInfo   `json:"topics,omitempty"`
}

// DiagnosticService assembles the status document served over HTTP and the
// command socket. Any source may be nil.
type DiagnosticService struct {
	runner  RunnerSource
	pools   PipelineSource
	topics  TopicSource
	started time.Time
	now     func() time.Time
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService(runner RunnerSource, pools PipelineSource, topics TopicSource) *DiagnosticService {
	return &DiagnosticService{
		runner:  runner,
		pools:   pools,
		topics:  topics,
		started: time.Now(),
		now:     time.Now,
	}
}

// GetStatus returns the current status
func (s *DiagnosticService) GetStatus() SystemStatus {
	now := s.now()
	st := SystemStatus{
		Timestamp: now,
		Uptime:    now.Sub(s.started).Truncate(time.Second).String(),
	}
	if s.runner != nil {
		st.Stream = s.runner.Status()
	}
	if s.pools != nil {
		st.Pools = s.pools.GetPoolMetrics()
	}
	if s.topics != nil {
		st.Topics = s.topics.GetTopicStats()
	}
	return st
}

// StatusDocument adapts GetStatus for the command socket.
func (s *DiagnosticService) StatusDocument() interface{} {
	return s.GetStatus()
}

// GetStatusHandler handles API requests for the status document
func (s *DiagnosticService) GetStatusHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   s.GetStatus(),
	})
}
