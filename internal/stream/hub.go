package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/auth"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the outbound wire envelope.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// envelope rides the redis channel between instances. Origin lets an
// instance skip its own publications.
type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one connected principal. Send is drained by the connection's
// writer; a full buffer drops the event (at-most-once, no replay).
type Client struct {
	ID       string
	Identity auth.Identity
	Send     chan []byte
}

// Hub manages per-beat-plan rooms and fans events out to their watchers.
// With a redis client attached, broadcasts also reach watchers on other
// instances; nil redis keeps the hub process-local.
type Hub struct {
	id    string
	redis *redis.Client

	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:     uuid.NewString(),
		redis:  redisClient,
		rooms:  map[string]map[*Client]struct{}{},
		joined: map[*Client]map[string]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(ident auth.Identity) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		Identity: ident,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined[client] = map[string]struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.joined[client] {
		h.removeLocked(client, room)
	}
	delete(h.joined, client)
	close(client.Send)
}

// Join subscribes a client to a beat plan's room.
func (h *Hub) Join(client *Client, beatPlanID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[beatPlanID] == nil {
		h.rooms[beatPlanID] = map[*Client]struct{}{}
	}
	h.rooms[beatPlanID][client] = struct{}{}
	if h.joined[client] == nil {
		h.joined[client] = map[string]struct{}{}
	}
	h.joined[client][beatPlanID] = struct{}{}
}

func (h *Hub) Leave(client *Client, beatPlanID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, beatPlanID)
}

func (h *Hub) removeLocked(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.joined[client]; ok {
		delete(joined, room)
	}
}

// Broadcast fans an event out to every watcher of a beat plan. Delivery is
// best-effort: a slow watcher drops the event, and failures never propagate
// to the caller.
func (h *Hub) Broadcast(beatPlanID, event string, payload any) {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("broadcast encode error: %v", err)
		return
	}

	h.deliver(beatPlanID, data)

	if h.redis != nil {
		wrapped, _ := json.Marshal(envelope{Origin: h.id, Payload: data})
		if err := h.redis.Publish(context.Background(), roomChannel(beatPlanID), wrapped).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

// Unicast queues an event for a single client. A client that has already
// unregistered is skipped; its Send channel is closed.
func (h *Hub) Unicast(client *Client, event string, payload any) {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		log.Printf("unicast encode error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.joined[client]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// deliver sends while holding the read lock. Unregister closes Send under the
// write lock, so a send here can never race the close.
func (h *Hub) deliver(beatPlanID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[beatPlanID] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "beatplan:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			continue
		}
		if env.Origin == h.id {
			continue
		}
		h.deliver(roomFromChannel(msg.Channel), env.Payload)
	}
}

func roomChannel(beatPlanID string) string {
	return "beatplan:" + beatPlanID + ":events"
}

func roomFromChannel(ch string) string {
	const prefix = "beatplan:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) || !strings.HasPrefix(ch, prefix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
