package processing

import (
	"fmt"
	"sync"
	"time"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// GetCurrentTimestamp gets the current timestamp in nanoseconds
func GetCurrentTimestamp() int64 {
	return time.Now().UnixNano()
}

// MessageDirector routes outbound jobs to a processing pool by topic
// priority. Frames go through the STANDARD pool, where they are dropped when
// publishing falls behind; settings and status notices use the HIGH pool.
type MessageDirector struct {
	logger           customlog.Logger
	highPriorityPool *ProcessingPool
	standardPool     *ProcessingPool
	topicRegistry    *TopicRegistry
	running          bool
	mu               sync.RWMutex

	defaultQueueSize int
}

// DirectorOptions holds configuration options for the MessageDirector
type DirectorOptions struct {
	DefaultQueueSize int
}

// NewMessageDirector creates a new message director
func NewMessageDirector(
	logger customlog.Logger,
	topicRegistry *TopicRegistry,
	options *DirectorOptions,
) *MessageDirector {
	if options == nil {
		options = &DirectorOptions{DefaultQueueSize: 8}
	}
	return &MessageDirector{
		logger:           logger,
		topicRegistry:    topicRegistry,
		defaultQueueSize: options.DefaultQueueSize,
	}
}

// Initialize creates the processing pools
func (d *MessageDirector) Initialize(highWorkers, standardWorkers int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.highPriorityPool = NewProcessingPool(PriorityHigh, highWorkers, d.defaultQueueSize, d.logger)
	d.standardPool = NewProcessingPool(PriorityStandard, standardWorkers, d.defaultQueueSize, d.logger)

	d.logger.Infof("Message Director initialized with pools: HIGH(%d), STANDARD(%d), queue %d",
		highWorkers, standardWorkers, d.defaultQueueSize)
}

// SetProcessor sets the job processor for all pools
func (d *MessageDirector) SetProcessor(processor JobProcessor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.highPriorityPool != nil {
		d.highPriorityPool.SetProcessor(processor)
	}
	if d.standardPool != nil {
		d.standardPool.SetProcessor(processor)
	}
}

// SetResultHandler sets the result handler function for all pools
func (d *MessageDirector) SetResultHandler(handler ResultHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.highPriorityPool != nil {
		d.highPriorityPool.SetResultHandler(handler)
	}
	if d.standardPool != nil {
		d.standardPool.SetResultHandler(handler)
	}
}

// RouteMessage queues job on the pool for its topic priority. It never
// blocks; a full queue is reported as an error and counted as a drop.
func (d *MessageDirector) RouteMessage(job *Job) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		return fmt.Errorf("message director is not running")
	}
	if job.TimestampNs == 0 {
		job.TimestampNs = GetCurrentTimestamp()
	}

	priority, exists := d.topicRegistry.GetTopicPriority(job.Topic)
	if !exists {
		d.logger.Warnf("No priority found for topic '%s', using STANDARD", job.Topic)
		priority = PriorityStandard
	}

	var successful bool
	switch priority {
	case PriorityHigh:
		successful = d.highPriorityPool.Submit(job)
	default:
		successful = d.standardPool.Submit(job)
	}

	if !successful {
		d.topicRegistry.RecordDrop(job.Topic)
		return fmt.Errorf("failed to enqueue message for topic '%s' (priority: %s)", job.Topic, priority)
	}
	d.topicRegistry.UpdateTopicStats(job.Topic, job.TimestampNs)
	return nil
}

// Start starts all processing pools
func (d *MessageDirector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	if d.highPriorityPool == nil || d.standardPool == nil {
		d.logger.Errorf("Message Director started before Initialize")
		return
	}

	d.running = true
	d.logger.Infof("Starting Message Director")
	d.highPriorityPool.Start()
	d.standardPool.Start()
}

// Stop stops all processing pools after they drained their queues
func (d *MessageDirector) Stop() {
	d.mu.Lock()
	running := d.running
	d.running = false
	d.mu.Unlock()

	if !running {
		return
	}

	d.logger.Infof("Stopping Message Director")
	d.highPriorityPool.Stop()
	d.standardPool.Stop()
	d.logger.Infof("Message Director stopped")
}

// GetPoolMetrics returns metrics for all pools
func (d *MessageDirector) GetPoolMetrics() map[string]PoolMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	metrics := make(map[string]PoolMetrics)
	if d.highPriorityPool != nil {
		metrics[PriorityHigh] = d.highPriorityPool.GetMetrics()
	}
	if d.standardPool != nil {
		metrics[PriorityStandard] = d.standardPool.GetMetrics()
	}
	return metrics
}
