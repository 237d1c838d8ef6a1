package notify

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains poll_id -> set of connections and broadcasts poll events
// (vote_submitted, poll_finalized, poll_reopened, ...). Uses Redis pub/sub for
// horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// pollID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per poll
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishPollEvent(pollID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to poll channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribePoll(pollID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a poll room. Starts Redis subscription for this
// poll if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.PollID] == nil {
		h.rooms[c.PollID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribePoll(c.PollID, func(event string, payload []byte) {
				h.BroadcastToPoll(c.PollID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.PollID] = cancel
			}
		}
	}
	h.rooms[c.PollID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined poll room", zap.String("client_id", c.ID), zap.String("poll_id", c.PollID.String()))
}

// Unregister removes a client from a poll room. Cancels Redis subscription
// when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.PollID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.PollID)
			if cancel, ok := h.subs[c.PollID]; ok {
				cancel()
				delete(h.subs, c.PollID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left poll room", zap.String("client_id", c.ID), zap.String("poll_id", c.PollID.String()))
}

// BroadcastToPoll sends a message to all clients watching a poll (local only).
func (h *Hub) BroadcastToPoll(pollID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[pollID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToPollAndPublish sends to local clients and publishes to Redis for
// other instances.
func (h *Hub) BroadcastToPollAndPublish(pollID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToPoll(pollID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishPollEvent(pollID, event, data)
	}
}

// WatcherCount returns the number of connected clients watching a poll.
func (h *Hub) WatcherCount(pollID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pollID])
}
