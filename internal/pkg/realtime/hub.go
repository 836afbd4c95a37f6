// Package realtime pushes project progress to connected websocket clients.
// Messages are scoped to the owning user and fan out across instances over
// Redis pub/sub when a client is configured.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// Channel is the Redis pub/sub channel progress envelopes travel on.
const Channel = "videogen:progress"

const sendBuffer = 16

// TextMessage mirrors the websocket text frame opcode.
const TextMessage = 1

// Message is what a client receives.
type Message struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId"`
	Data      interface{} `json:"data"`
}

type envelope struct {
	UserID  uint    `json:"user_id"`
	Message Message `json:"message"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	userID uint
	conn   Conn
	send   chan []byte
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// close stops the writer. send is never closed so a concurrent deliver
// cannot panic on it.
func (c *client) close() {
	c.once.Do(func() {
		close(c.quit)
	})
}

// Hub tracks sockets per user.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}
	rdb     *redis.Client
}

// NewHub creates a hub. rdb may be nil for single-instance delivery.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		clients: make(map[uint]map[*client]struct{}),
		rdb:     rdb,
	}
}

// Register attaches a socket for userID and starts its writer. The returned
// func detaches it and waits for the writer to stop touching conn.
func (h *Hub) Register(userID uint, conn Conn) func() {
	c := &client{userID: userID, conn: conn, send: make(chan []byte, sendBuffer), quit: make(chan struct{}), done: make(chan struct{})}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	go h.writer(c)
	log.Debugf("[Realtime] Client registered for user %d", userID)

	return func() {
		h.remove(c)
		<-c.done
	}
}

// Connections returns the number of sockets open for userID.
func (h *Hub) Connections(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// PublishProgress sends a progress message to userID's sockets on every
// instance. Delivery is best effort.
func (h *Hub) PublishProgress(ctx context.Context, userID uint, projectID string, data interface{}) {
	h.Publish(ctx, userID, Message{Type: "progress", ProjectID: projectID, Data: data})
}

func (h *Hub) Publish(ctx context.Context, userID uint, msg Message) {
	if h.rdb != nil {
		raw, err := json.Marshal(envelope{UserID: userID, Message: msg})
		if err == nil {
			if err = h.rdb.Publish(ctx, Channel, raw).Err(); err == nil {
				return
			}
		}
		log.Warnf("[Realtime] Redis publish failed, delivering locally: %v", err)
	}
	h.deliver(userID, msg)
}

// Run relays envelopes from Redis to local sockets until ctx is done.
// Without Redis it only waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}
	sub := h.rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	ch := sub.Channel()
	log.Infof("[Realtime] Subscribed to %s", Channel)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				log.Warnf("[Realtime] Dropping malformed envelope: %v", err)
				continue
			}
			h.deliver(env.UserID, env.Message)
		}
	}
}

func (h *Hub) deliver(userID uint, msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("[Realtime] Encode message for project %s: %v", msg.ProjectID, err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case <-c.quit:
			continue
		default:
		}
		select {
		case c.send <- raw:
		case <-c.quit:
		default:
			log.Warnf("[Realtime] Dropping slow client of user %d", userID)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	set := h.clients[c.userID]
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) writer(c *client) {
	defer close(c.done)
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-c.quit:
			return
		case raw := <-c.send:
			if err := c.conn.WriteMessage(TextMessage, raw); err != nil {
				log.Debugf("[Realtime] Write to user %d failed: %v", c.userID, err)
				h.remove(c)
				return
			}
		}
	}
}
