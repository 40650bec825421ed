package stream

import (
	"context"
	"encoding/json"
	"sync"

	"backend-hikepal/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "hikepal:"
	channelSuffix = ":broadcast"
)

// Hub fans payloads out to the clients registered on a topic. With redis
// configured every broadcast is mirrored to the other nodes.
type Hub struct {
	redis   *redis.Client
	nodeID  string
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

type Client struct {
	Topic string
	Send  chan []byte
}

// envelope tags redis messages with the publishing node so that node does
// not deliver its own broadcast twice.
type envelope struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client, l ...*zap.Logger) *Hub {
	h := &Hub{
		redis:   redisClient,
		nodeID:  uuid.NewString(),
		clients: map[string]map[*Client]struct{}{},
		log:     zap.NewNop(),
		done:    make(chan struct{}),
	}
	if len(l) > 0 {
		h.log = logger.OrNop(l[0]).Named("stream")
	}

	if redisClient == nil {
		close(h.done)
		return h
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	ready := make(chan struct{})
	go h.subscribeRedis(ctx, ready)
	<-ready
	return h
}

func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicClients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := topicClients[client]; !ok {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	h.deliver(topic, payload)

	if h.redis != nil {
		msg, _ := json.Marshal(envelope{Origin: h.nodeID, Payload: payload})
		err := h.redis.Publish(context.Background(), redisChannel(topic), msg).Err()
		if err != nil {
			h.log.Warn("redis publish error", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// Publish wraps data in a typed Event and broadcasts it.
func (h *Hub) Publish(topic, eventType string, data any) error {
	payload, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}
	h.Broadcast(topic, payload)
	return nil
}

// Close stops the redis subscription.
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	<-h.done
}

// deliver never blocks: a client with a full buffer misses the payload.
func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	defer close(h.done)
	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()
	ch := pubsub.Channel()
	close(ready)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.log.Debug("dropping malformed redis message", zap.String("channel", msg.Channel))
				continue
			}
			if env.Origin == h.nodeID {
				continue
			}
			h.deliver(topicFromChannel(msg.Channel), env.Payload)
		}
	}
}

func redisChannel(topic string) string {
	return channelPrefix + topic + channelSuffix
}

func topicFromChannel(ch string) string {
	// hikepal:{topic}:broadcast
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
