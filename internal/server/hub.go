package server

import (
	"context"
	"regexp"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/gyokuro/filewatch/internal/watcher"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultSendBuffer = 64

// subscriber is one connected stream client and its filters.
type subscriber struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	subscription *regexp.Regexp
	event        *regexp.Regexp
}

func (s *subscriber) wants(rec watcher.Record) bool {
	return s.subscription.MatchString(rec.Name) && s.event.MatchString(rec.Op)
}

func (s *subscriber) writePump() {
	defer s.conn.Close()
	for msg := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// Hub fans change records out to subscribers whose filters match.
type Hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]bool
	buffer  int
	logger  zerolog.Logger
}

// NewHub creates a hub. buffer is the per-client send queue length; a client
// whose queue is full is disconnected.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Hub{
		clients: make(map[*subscriber]bool),
		buffer:  buffer,
		logger:  logger,
	}
}

// Add registers conn with its filters and starts its write pump.
func (h *Hub) Add(conn *websocket.Conn, subscription, event *regexp.Regexp) *subscriber {
	s := &subscriber{
		id:           uuid.NewString(),
		conn:         conn,
		send:         make(chan []byte, h.buffer),
		subscription: subscription,
		event:        event,
	}
	go s.writePump()

	h.mu.Lock()
	h.clients[s] = true
	h.mu.Unlock()

	h.logger.Info().Str("client", s.id).Str("subscription", subscription.String()).Str("event", event.String()).Msg("client subscribed")
	return s
}

// Remove unregisters s and stops its write pump. Removing twice is a no-op.
func (h *Hub) Remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[s]; ok {
		delete(h.clients, s)
		close(s.send)
		h.logger.Info().Str("client", s.id).Msg("client removed")
	}
}

// Broadcast queues payload for every subscriber interested in rec. Sends
// happen under the read lock so Remove cannot close a queue mid-send.
func (h *Hub) Broadcast(rec watcher.Record, payload []byte) {
	var slow []*subscriber
	h.mu.RLock()
	for s := range h.clients {
		if !s.wants(rec) {
			continue
		}
		select {
		case s.send <- payload:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.logger.Warn().Str("client", s.id).Msg("client too slow, disconnecting")
		h.Remove(s)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run consumes change records from sub and broadcasts them until ctx is
// cancelled. All subscribers are closed on return.
func (h *Hub) Run(ctx context.Context, sub message.Subscriber) error {
	msgs, err := sub.Subscribe(ctx, watcher.Topic)
	if err != nil {
		return errors.Wrap(err, "subscribe to changes")
	}
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			rec, err := watcher.Decode(msg)
			if err != nil {
				h.logger.Warn().Err(err).Msg("dropping undecodable change")
			} else {
				h.Broadcast(rec, msg.Payload)
			}
			msg.Ack()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.clients {
		delete(h.clients, s)
		close(s.send)
	}
}
