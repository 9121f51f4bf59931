package notify

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event kinds published to progress subscribers.
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventEnded     = "ended"
	EventCancelled = "cancelled"
)

// Event is one progress update pushed to subscribers.
type Event struct {
	Kind         string  `json:"kind"`
	WorkflowName string  `json:"workflowName,omitempty"`
	ExecutionID  string  `json:"executionId,omitempty"`
	TotalSteps   int     `json:"totalSteps,omitempty"`
	StepIndex    int     `json:"stepIndex"`
	StepName     string  `json:"stepName,omitempty"`
	Output       string  `json:"output,omitempty"`
	Progress     float64 `json:"progress"`
	Status       string  `json:"status,omitempty"`
	ElapsedMS    int64   `json:"elapsedMs"`
}

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// client wraps a connection with a write lock. gorilla/websocket allows only
// one concurrent writer per connection, and sink events can arrive from more
// than one goroutine.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

// Hub broadcasts progress events to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ServeHTTP upgrades the request to a WebSocket subscription. The connection
// stays registered until the client closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("Progress subscription upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	// Read loop exists only to observe the close; inbound messages are ignored.
	go func() {
		defer h.remove(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

// Broadcast sends the event to every connected client, dropping clients
// whose writes fail. Safe for concurrent use; writes to each connection are
// serialized through the client's write lock.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(event); err != nil {
			slog.Debug("Progress broadcast failed, dropping client", "error", err)
			h.remove(c)
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HubSink adapts a Hub to the Sink interface, carrying the identity of the
// run that started most recently.
type HubSink struct {
	hub *Hub

	mu          sync.Mutex
	workflow    string
	executionID string
	totalSteps  int
}

// NewHubSink creates a Sink that broadcasts through the given hub.
func NewHubSink(hub *Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Start(workflowName, executionID string, totalSteps int) {
	s.mu.Lock()
	s.workflow = workflowName
	s.executionID = executionID
	s.totalSteps = totalSteps
	s.mu.Unlock()

	s.hub.Broadcast(Event{
		Kind:         EventStarted,
		WorkflowName: workflowName,
		ExecutionID:  executionID,
		TotalSteps:   totalSteps,
	})
}

func (s *HubSink) Update(stepIndex int, stepName, output string, progress float64, elapsed time.Duration) {
	s.mu.Lock()
	name, id, total := s.workflow, s.executionID, s.totalSteps
	s.mu.Unlock()

	s.hub.Broadcast(Event{
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

func (s *HubSink) End(finalOutput, status string, elapsed time.Duration) {
	s.mu.Lock()
	name, id := s.workflow, s.executionID
	s.mu.Unlock()

	s.hub.Broadcast(Event{
		Kind:         EventEnded,
		WorkflowName: name,
		ExecutionID:  id,
		Output:       finalOutput,
		Status:       status,
		Progress:     1,
		ElapsedMS:    elapsed.Milliseconds(),
	})
}

func (s *HubSink) Cancel() {
	s.mu.Lock()
	name, id := s.workflow, s.executionID
	s.mu.Unlock()

	s.hub.Broadcast(Event{
		Kind:         EventCancelled,
		WorkflowName: name,
		ExecutionID:  id,
		Status:       "cancelled",
	})
}
