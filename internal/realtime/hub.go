// Package realtime fans session events out to subscribed clients over Server-Sent Events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType names a real-time event
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionUpdated   EventType = "session_updated"
	EventSessionEnded     EventType = "session_ended"
	EventCoachResponse    EventType = "coach_response"
	EventStepGuidance     EventType = "step_guidance"
	EventTipSuggestion    EventType = "tip_suggestion"
	EventTroubleshooting  EventType = "troubleshooting"
	EventSubstitutionHelp EventType = "substitution_help"
	EventTimerStarted     EventType = "timer_started"
	EventTimerCancelled   EventType = "timer_cancelled"
)

const (
	outboundBuffer    = 10
	heartbeatInterval = 15 * time.Second
)

// Event is one notification delivered on a topic
type Event struct {
	Topic     string         `json:"topic"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SessionTopic returns the topic for one cooking session
func SessionTopic(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// Publisher delivers events to every subscriber of a topic.
// Publishing is best effort: a failure must never fail the operation that produced the event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Client is one open subscription stream
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan Event

	topics    map[string]bool
	done      chan struct{}
	closeOnce sync.Once
}

// Hub is the in-process subscriber registry
type Hub struct {
	mu            sync.RWMutex
	log           *zap.Logger
	subscriptions map[string]map[*Client]bool
}

// NewHub creates an empty hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:           log,
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// NewClient allocates a client with a bounded outbound buffer
func (h *Hub) NewClient(userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Outbound: make(chan Event, outboundBuffer),
		topics:   make(map[string]bool),
		done:     make(chan struct{}),
	}
}

// Subscribe adds the client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.topics[topic] = true
	clients, ok := h.subscriptions[topic]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[topic] = clients
	}
	clients[client] = true

	h.log.Debug("realtime_client_subscribed",
		zap.String("client_id", client.ID.String()),
		zap.String("topic", topic),
	)
}

// Unsubscribe removes the client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, topic)
}

func (h *Hub) unsubscribeLocked(client *Client, topic string) {
	delete(client.topics, topic)
	if clients, ok := h.subscriptions[topic]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscriptions, topic)
		}
	}
}

// SubscriberCount returns the number of clients on a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[topic])
}

// Broadcast delivers ev to the local subscribers of its topic.
// A subscriber whose buffer is full misses the event.
func (h *Hub) Broadcast(ev Event) {
	if ev.Topic == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.subscriptions[ev.Topic] {
		select {
		case c.Outbound <- ev:
		default:
			h.log.Warn("realtime_event_dropped_buffer_full",
				zap.String("client_id", c.ID.String()),
				zap.String("topic", ev.Topic),
				zap.String("event", string(ev.Type)),
			)
		}
	}
}

// Publish implements Publisher for single-instance deployments
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.Broadcast(ev)
	return nil
}

// CloseClient unsubscribes the client from every topic and closes its channels
func (h *Hub) CloseClient(client *Client) {
	client.closeOnce.Do(func() {
		h.mu.Lock()
		for topic := range client.topics {
			h.unsubscribeLocked(client, topic)
		}
		h.mu.Unlock()

		close(client.done)
		close(client.Outbound)
	})
}

// ServeSSE streams the client's events until the request context ends or the client is closed
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, client *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-client.Outbound:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("realtime_event_marshal_failed", zap.Error(err))
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}
