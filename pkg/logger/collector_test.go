package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesAndFlushes(t *testing.T) {
	pub := &recordingPublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	defer l.RemoveCollector()

	for i := 0; i < 3; i++ {
		l.Error("stage failed", String("stage", "merge"), Error(errors.New("boom")))
	}
	l.Error("stage failed", String("stage", "archive"))
	l.Warn("not collected")

	require.NoError(t, l.Flush(context.Background()))

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topics[0])
	require.Len(t, pub.batches[0], 2)

	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["stage"].(string)] = e.Count
	}
	assert.Equal(t, 3, counts["merge"])
	assert.Equal(t, 1, counts["archive"])
}

func TestFlushWithoutCollector(t *testing.T) {
	require.NoError(t, NewNop().Flush(context.Background()))
}

func TestWithKeepsCollector(t *testing.T) {
	pub := &recordingPublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	defer l.RemoveCollector()

	child := l.With(String("run_id", "abc"))
	child.Error("child error")
	assert.Equal(t, 1, l.collector.Pending())
}
