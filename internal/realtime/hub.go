package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60
)

// Event names broadcast to organization rooms.
const (
	EventCreated = "event_created"
	EventUpdated = "event_updated"
	EventDeleted = "event_deleted"
)

// Hub maintains organization_id -> set of connections and broadcasts
// event lifecycle notifications. Uses Redis pub/sub for horizontal
// scaling: local broadcast + publish to Redis.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per organization
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishOrganizationEvent(orgID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to organization channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeOrganization(orgID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
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

// Register adds a client to an organization room. Starts the Redis
// subscription for that organization when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.OrganizationID] == nil {
		h.rooms[c.OrganizationID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeOrganization(c.OrganizationID, func(event string, payload []byte) {
				h.Broadcast(c.OrganizationID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OrganizationID] = cancel
			}
		}
	}
	h.rooms[c.OrganizationID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined organization room",
		zap.String("client_id", c.ID),
		zap.String("organization_id", c.OrganizationID.String()))
}

// Unregister removes a client from its room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.OrganizationID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.OrganizationID)
			if cancel, ok := h.subs[c.OrganizationID]; ok {
				cancel()
				delete(h.subs, c.OrganizationID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left organization room",
		zap.String("client_id", c.ID),
		zap.String("organization_id", c.OrganizationID.String()))
}

// Broadcast sends a message to all local clients in an organization room.
func (h *Hub) Broadcast(orgID uuid.UUID, event string, payload interface{}) {
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
	clients := h.rooms[orgID]
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Notify sends to local clients and publishes to Redis for other instances.
func (h *Hub) Notify(orgID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.Broadcast(orgID, event, json.RawMessage(data))
	if h.redis != nil {
		_ = h.redis.PublishOrganizationEvent(orgID, event, data)
	}
}

// RoomSize returns the number of connected clients in an organization room.
func (h *Hub) RoomSize(orgID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orgID])
}
