package processing

import (
	"sort"
	"sync"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
)

// Outbound topics.
const (
	TopicFrame    = "mocap.frame"
	TopicSettings = "mocap.settings"
	TopicStatus   = "mocap.status"
)

// Constants for priority levels
const (
	PriorityHigh     = "HIGH"
	PriorityStandard = "STANDARD"
)

// TopicInfo holds metadata and counters for one topic
type TopicInfo struct {
	Topic         string `json:"topic"`
	Encoding      string `json:"encoding"`
	Priority      string `json:"priority"`
	StatCount     int64  `json:"count"`
	DropCount     int64  `json:"dropped"`
	LastPublished int64  `json:"last_published_ns"`
}

// TopicRegistry maintains information about outbound topics
type TopicRegistry struct {
	logger customlog.Logger
	topics map[string]*TopicInfo
	mu     sync.RWMutex
}

// NewTopicRegistry creates a new topic registry
func NewTopicRegistry(logger customlog.Logger) *TopicRegistry {
	return &TopicRegistry{
		logger: logger,
		topics: make(map[string]*TopicInfo),
	}
}

// Register declares a topic. Registering again replaces encoding and
// priority but keeps the counters.
func (r *TopicRegistry) Register(topic, encoding, priority string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if priority == "" {
		priority = PriorityStandard
	}
	if info, ok := r.topics[topic]; ok {
		info.Encoding = encoding
		info.Priority = priority
		return
	}
	r.topics[topic] = &TopicInfo{Topic: topic, Encoding: encoding, Priority: priority}
	r.logger.Debugf("Registered topic %s (%s, %s)", topic, encoding, priority)
}

// GetTopicPriority gets the priority for a topic
func (r *TopicRegistry) GetTopicPriority(topic string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return "", false
	}
	return info.Priority, true
}

// GetTopicInfo returns a copy of the topic information
func (r *TopicRegistry) GetTopicInfo(topic string) (TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.topics[topic]
	if !exists {
		return TopicInfo{}, false
	}
	return *info, true
}

func (r *TopicRegistry) lookup(topic string) *TopicInfo {
	info, exists := r.topics[topic]
	if !exists {
		info = &TopicInfo{Topic: topic, Priority: PriorityStandard}
		r.topics[topic] = info
	}
	return info
}

// UpdateTopicStats counts one routed message
func (r *TopicRegistry) UpdateTopicStats(topic string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.lookup(topic)
	info.StatCount++
	info.LastPublished = timestamp
}

// RecordDrop counts one message that could not be queued
func (r *TopicRegistry) RecordDrop(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookup(topic).DropCount++
}

// GetAllTopics returns the registered topics, sorted
func (r *TopicRegistry) GetAllTopics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// GetTopicStats returns a copy of every topic's information
func (r *TopicRegistry) GetTopicStats() map[string]TopicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]TopicInfo, len(r.topics))
	for topic, info := range r.topics {
		stats[topic] = *info
	}
	return stats
}
