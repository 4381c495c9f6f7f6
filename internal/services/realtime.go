package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
)

const notificationChannelPrefix = "notifications:"

// NotificationEvent is the payload sent over Redis and the WebSocket.
type NotificationEvent struct {
	Type         string              `json:"type"`
	UserID       string              `json:"user_id"`
	Notification models.Notification `json:"notification"`
}

// PushConn is the minimal interface our WebSocket implementation must satisfy.
type PushConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Connection is one open socket of a signed-in user. A user may hold several.
type Connection struct {
	ID     uuid.UUID
	UserID string
	conn   PushConn
	mu     sync.Mutex // serialises writes
}

func (c *Connection) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// NotificationHub tracks local connections and fans notifications out to
// them. With a Redis client every instance receives every notification;
// without one delivery stays in process.
type NotificationHub struct {
	mu          sync.RWMutex
	connections map[string]map[uuid.UUID]*Connection
	redis       *redis.Client
	logger      logrus.FieldLogger
	started     sync.Once
}

func NewNotificationHub(client *redis.Client, logger logrus.FieldLogger) *NotificationHub {
	return &NotificationHub{
		connections: make(map[string]map[uuid.UUID]*Connection),
		redis:       client,
		logger:      logger,
	}
}

// Register adds a connection for userID.
func (h *NotificationHub) Register(userID string, conn PushConn) *Connection {
	c := &Connection{ID: uuid.New(), UserID: userID, conn: conn}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[userID] == nil {
		h.connections[userID] = make(map[uuid.UUID]*Connection)
	}
	h.connections[userID][c.ID] = c
	return c
}

func (h *NotificationHub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[c.UserID]
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.connections, c.UserID)
	}
}

// ConnectionCount returns how many sockets userID has open on this instance.
func (h *NotificationHub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// FanOut writes event to every local connection of its user and waits for the writes.
func (h *NotificationHub) FanOut(event NotificationEvent) {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections[event.UserID]))
	for _, c := range h.connections[event.UserID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			if err := c.write(event); err != nil {
				h.logger.WithFields(logrus.Fields{
					"user_id": c.UserID,
					"conn_id": c.ID.String(),
					"error":   err.Error(),
				}).Debug("push notification failed")
			}
		}(c)
	}
	wg.Wait()
}

// Publish delivers n to userID's sockets on every instance.
func (h *NotificationHub) Publish(ctx context.Context, userID string, n models.Notification) error {
	event := NotificationEvent{Type: "notification", UserID: userID, Notification: n}
	if h.redis == nil {
		h.FanOut(event)
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, notificationChannelPrefix+userID, data).Err()
}

// Start launches the shared Redis listener once per hub. No-op without Redis.
func (h *NotificationHub) Start(ctx context.Context) {
	if h.redis == nil {
		return
	}
	h.started.Do(func() {
		go h.runSubscriber(ctx)
	})
}

func (h *NotificationHub) runSubscriber(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := h.redis.PSubscribe(ctx, notificationChannelPrefix+"*")
			defer pubsub.Close()

			h.logger.WithField("pattern", notificationChannelPrefix+"*").Info("notification subscriber started")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.WithField("error", err.Error()).Warn("notification subscriber error")
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event NotificationEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					h.logger.WithField("error", err.Error()).Warn("bad notification event")
					continue
				}
				if event.UserID == "" {
					event.UserID = strings.TrimPrefix(msg.Channel, notificationChannelPrefix)
				}
				h.FanOut(event)
			}
		}()
	}
}
