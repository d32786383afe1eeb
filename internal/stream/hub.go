package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"backend-birdtours/internal/logging"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisPrefix  = "realtime:"
	redisSuffix  = ":broadcast"
	redisPattern = redisPrefix + "*" + redisSuffix
)

// Hub fans change events out to websocket clients grouped by topic. With a
// redis client every event goes through redis so all API instances see it.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	logger  *logrus.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Topic string
	Send  chan []byte
}

func NewHub(redisClient *redis.Client, logger *logrus.Logger) *Hub {
	h := &Hub{
		logger:  logging.OrDiscard(logger),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		pubsub := redisClient.PSubscribe(context.Background(), redisPattern)
		if _, err := pubsub.Receive(context.Background()); err != nil {
			h.logger.WithError(err).Warn("redis subscribe failed, realtime stays local")
			_ = pubsub.Close()
		} else {
			h.redis = redisClient
			h.pubsub = pubsub
			go h.forwardRedis(pubsub.Channel())
		}
	}
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
	if _, registered := topicClients[client]; !registered {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// Subscribers returns the number of clients registered on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Broadcast delivers payload to every client on topic. Slow clients whose
// buffer is full miss the message.
func (h *Hub) Broadcast(ctx context.Context, topic string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(topic), payload).Err()
		if err == nil {
			return
		}
		h.logger.WithError(err).WithField("topic", topic).Warn("redis publish failed, delivering locally")
	}
	h.deliver(topic, payload)
}

// PublishEvent encodes ev and broadcasts it on the owning user's topic.
func (h *Hub) PublishEvent(ctx context.Context, ev ChangeEvent) {
	if ev.UserID == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Error("encode change event")
		return
	}
	h.Broadcast(ctx, UserTopic(ev.UserID), payload)
}

// Ping checks the redis mirror when one is configured.
func (h *Hub) Ping(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}
	return h.redis.Ping(ctx).Err()
}

// Distributed reports whether events travel through redis.
func (h *Hub) Distributed() bool {
	return h.redis != nil
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

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

func (h *Hub) forwardRedis(messages <-chan *redis.Message) {
	for msg := range messages {
		topic := topicFromChannel(msg.Channel)
		if topic == "" {
			continue
		}
		h.deliver(topic, []byte(msg.Payload))
	}
}

func redisChannel(topic string) string {
	return redisPrefix + topic + redisSuffix
}

func topicFromChannel(ch string) string {
	// realtime:{topic}:broadcast
	if len(ch) <= len(redisPrefix)+len(redisSuffix) {
		return ""
	}
	if !strings.HasPrefix(ch, redisPrefix) || !strings.HasSuffix(ch, redisSuffix) {
		return ""
	}
	return ch[len(redisPrefix) : len(ch)-len(redisSuffix)]
}
