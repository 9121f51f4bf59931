package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultChannel is the Redis pub/sub channel progress events are published to.
const DefaultChannel = "workflow:progress"

const publishTimeout = 2 * time.Second

// RedisPublisher publishes progress events to a Redis channel so detached
// clients (widgets, other devices) can follow a run without holding an open
// connection to this process.
type RedisPublisher struct {
	client  *redis.Client
	channel string

	mu          sync.Mutex
	workflow    string
	executionID string
	totalSteps  int
}

// NewRedisPublisher connects to Redis at addr and returns a publisher for
// the given channel (DefaultChannel if empty).
func NewRedisPublisher(addr, password, channel string) (*RedisPublisher, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal progress event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		slog.Debug("Progress publish failed", "channel", p.channel, "error", err)
	}
}

func (p *RedisPublisher) Start(workflowName, executionID string, totalSteps int) {
	p.mu.Lock()
	p.workflow = workflowName
	p.executionID = executionID
	p.totalSteps = totalSteps
	p.mu.Unlock()

	p.publish(Event{
		Kind:         EventStarted,
		WorkflowName: workflowName,
		ExecutionID:  executionID,
		TotalSteps:   totalSteps,
	})
}

func (p *RedisPublisher) Update(stepIndex int, stepName, output string, progress float64, elapsed time.Duration) {
	p.mu.Lock()
	name, id, total := p.workflow, p.executionID, p.totalSteps
	p.mu.Unlock()

	p.publish(Event{
		Kind:         EventProgress,
		WorkflowName: name,
		ExecutionID:  id,
		TotalSteps:   total,
		StepIndex:    stepIndex,
		StepName:     stepName,
		Output:       output,
		Progress:     progress,
		ElapsedMS:    elapsed.Milliseconds(),
	})
}

func (p *RedisPublisher) End(finalOutput, status string, elapsed time.Duration) {
	p.mu.Lock()
	name, id := p.workflow, p.executionID
	p.mu.Unlock()

	p.publish(Event{
		Kind:         EventEnded,
		WorkflowName: name,
		ExecutionID:  id,
		Output:       finalOutput,
		Status:       status,
		Progress:     1,
		ElapsedMS:    elapsed.Milliseconds(),
	})
}

func (p *RedisPublisher) Cancel() {
	p.mu.Lock()
	name, id := p.workflow, p.executionID
	p.mu.Unlock()

	p.publish(Event{
		Kind:         EventCancelled,
		WorkflowName: name,
		ExecutionID:  id,
		Status:       "cancelled",
	})
}
