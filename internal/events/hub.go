// Package events broadcasts transformation progress to websocket
// subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ghibli-stylizer/internal/logger"
)

// Event types published over the hub.
const (
	TypeTransformStarted   = "transform_started"
	TypeStageOutcome       = "stage_outcome"
	TypeTransformCompleted = "transform_completed"
	TypeTransformFailed    = "transform_failed"
)

// Event is one progress notification. Stage is only set on stage outcome
// events; Level and Duration on stage and completion events; Error whenever
// the reported step failed.
type Event struct {
	Type       string    `json:"type"`
	Name       string    `json:"name,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Level      string    `json:"level,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Hub fans events out to connected websocket clients. Registration and
// broadcast flow through channels consumed by Run; the clients map is only
// touched from that loop plus the read-locked accessors.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	stop       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		stop:       make(chan struct{}),
		logger:     log,
	}
}

// Run processes registrations and broadcasts until Stop is called. Meant to
// run on its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("events", "Client connected", map[string]interface{}{
				"total": count,
			})

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("events", "Client disconnected", map[string]interface{}{
				"total": count,
			})

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("events", "Dropping unresponsive client", map[string]interface{}{
						"error": err.Error(),
					})
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()

		case <-h.stop:
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Stop shuts the loop down and closes every client connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Register and Unregister hand the connection to the loop. Both return
// immediately once the hub has stopped so handler goroutines never hang on
// a dead loop during shutdown.
func (h *Hub) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.stop:
	}
}

func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// Publish serializes the event and queues it for broadcast. Events are
// dropped rather than blocking the caller when the queue is full.
func (h *Hub) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("events", err, map[string]interface{}{
			"event_type": event.Type,
		})
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warning("events", "Broadcast queue full, event dropped", map[string]interface{}{
			"event_type": event.Type,
		})
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
