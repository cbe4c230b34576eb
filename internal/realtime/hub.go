package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/neurolearn/backend/internal/faults"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains operation_id -> set of connections and broadcasts progress
// events. Uses Redis pub/sub for horizontal scaling: local broadcast plus
// publish to Redis, so subscribers on other instances see worker progress.
type Hub struct {
	// operationID -> map[clientID]*Client
	operations map[string]map[string]*Client
	subs       map[string]func() // cancel Redis subscription per operation
	mu         sync.RWMutex
	logger     *zap.Logger
	redis      RedisPublisher
	redisSub   RedisSubscriber
}

// RedisPublisher publishes events to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishOperationEvent(operationID, event string, payload []byte) error
}

// RedisSubscriber subscribes to operation channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeOperation(operationID string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		operations: make(map[string]map[string]*Client),
		subs:       make(map[string]func()),
		logger:     logger,
		redis:      redisPub,
		redisSub:   redisSub,
	}
}

// Register adds a client to an operation room. Starts the Redis subscription
// for this operation if it is the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.operations[c.OperationID] == nil {
		h.operations[c.OperationID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeOperation(c.OperationID, func(event string, payload []byte) {
				h.Broadcast(c.OperationID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.OperationID] = cancel
			}
		}
	}
	h.operations[c.OperationID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client subscribed to operation", zap.String("client_id", c.ID), zap.String("operation_id", c.OperationID))
}

// Unregister removes a client from an operation room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.operations[c.OperationID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.operations, c.OperationID)
			if cancel, ok := h.subs[c.OperationID]; ok {
				cancel()
				delete(h.subs, c.OperationID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left operation", zap.String("client_id", c.ID), zap.String("operation_id", c.OperationID))
}

// Broadcast sends a message to all local clients watching an operation.
func (h *Hub) Broadcast(operationID, event string, payload interface{}) {
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
	clients := h.operations[operationID]
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

// BroadcastAndPublish sends to local clients and publishes to Redis for other
// instances.
func (h *Hub) BroadcastAndPublish(operationID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.Broadcast(operationID, event, json.RawMessage(data))
	if h.redis != nil {
		_ = h.redis.PublishOperationEvent(operationID, event, data)
	}
}

// WatcherCount returns the number of connected clients for an operation.
func (h *Hub) WatcherCount(operationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.operations[operationID])
}

// PublishProgress forwards a faults progress update to the operation's
// watchers. Satisfies faults.Publisher; must not block.
func (h *Hub) PublishProgress(update faults.ProgressUpdate) {
	h.BroadcastAndPublish(update.OperationID, "progress", update)
}
