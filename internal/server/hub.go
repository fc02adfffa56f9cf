package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/automation/pkg/errors"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Hub fans published messages out to websocket subscribers grouped by topic.
// Slow subscribers lose messages rather than block publishers.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu     sync.Mutex
	topics map[string]map[uuid.UUID]*subscriber
	closed bool
}

type subscriber struct {
	id    uuid.UUID
	topic string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (s *subscriber) stop() { s.once.Do(func() { close(s.send) }) }

// NewHub creates a hub that offers protocols during the websocket handshake.
func NewHub(logger *log.Logger, protocols ...string) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			Subprotocols: protocols,
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		logger: logger,
		topics: make(map[string]map[uuid.UUID]*subscriber),
	}
}

// Serve upgrades the request and subscribes the connection to topic. It
// blocks until the peer disconnects or the hub is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	if err := errors.ValidateTopic(topic); err != nil {
		return err
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the error response.
		return errors.Wrap(errors.ErrCodeChannelTransport, err, "upgrade")
	}

	s := &subscriber{id: uuid.New(), topic: topic, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(s) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return nil
	}
	h.logger.Debug("subscribed", "topic", topic, "id", s.id)

	go h.writeLoop(s)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(s)
	h.logger.Debug("unsubscribed", "topic", topic, "id", s.id)
	return nil
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	subs := h.topics[s.topic]
	if subs == nil {
		subs = make(map[uuid.UUID]*subscriber)
		h.topics[s.topic] = subs
	}
	subs[s.id] = s
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.topics[s.topic]; subs != nil {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(h.topics, s.topic)
		}
	}
	s.stop()
}

func (h *Hub) writeLoop(s *subscriber) {
	defer s.conn.Close()
	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("write failed", "topic", s.topic, "id", s.id, "err", err)
			return
		}
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Publish queues msg for every subscriber of topic and returns how many
// accepted it.
func (h *Hub) Publish(topic string, msg []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	n := 0
	for id, s := range h.topics[topic] {
		select {
		case s.send <- msg:
			n++
		default:
			h.logger.Warn("dropped message for slow subscriber", "topic", topic, "id", id)
		}
	}
	return n
}

// Subscribers returns the number of live subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}

// Topics returns the number of topics with at least one subscriber.
func (h *Hub) Topics() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}

// Close disconnects every subscriber. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, subs := range h.topics {
		for _, s := range subs {
			s.stop()
		}
	}
}
