// Package broker implements request/reply calls with correlation ids on top
// of Redis pub/sub.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wisdom-oss/service-water-usage-history/pkg/logger"
	"github.com/wisdom-oss/service-water-usage-history/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrClosed = errors.New("broker transport closed")
	// ErrNoResponder is returned when nobody is subscribed to the destination.
	ErrNoResponder = errors.New("no responder subscribed")
)

// RedisTransport publishes requests to a destination channel and receives
// replies on a channel private to this instance. Every outstanding call owns
// a single-shot channel keyed by its correlation id.
type RedisTransport struct {
	client       *redis.Client
	pubsub       *redis.PubSub
	replyChannel string

	mu      sync.Mutex
	pending map[uuid.UUID]chan []byte
	closed  bool

	done chan struct{}
}

func NewRedisClient(url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewRedisTransport subscribes to a fresh reply channel below replyPrefix and
// starts dispatching replies. The subscription is confirmed before returning
// so no reply can be published before anyone listens.
func NewRedisTransport(ctx context.Context, client *redis.Client, replyPrefix string) (*RedisTransport, error) {
	replyChannel := fmt.Sprintf("%s.%s", replyPrefix, uuid.NewString())

	pubsub := client.Subscribe(ctx, replyChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to reply channel: %w", err)
	}

	t := &RedisTransport{
		client:       client,
		pubsub:       pubsub,
		replyChannel: replyChannel,
		pending:      make(map[uuid.UUID]chan []byte),
		done:         make(chan struct{}),
	}

	go t.dispatch(pubsub.Channel())

	return t, nil
}

// ReplyChannel is the channel responders publish replies to.
func (t *RedisTransport) ReplyChannel() string {
	return t.replyChannel
}

// Call publishes payload, a JSON document, to destination and waits for the
// correlated reply until ctx is done. It fails at once with ErrNoResponder
// when nobody receives the request. The wait entry is removed on every
// return path, so a reply arriving later is dropped by dispatch.
func (t *RedisTransport) Call(ctx context.Context, destination string, payload []byte) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "infra.broker.Call")
	defer span.End()

	id := uuid.New()
	span.SetAttributes(
		attribute.String("messaging.destination", destination),
		attribute.String("messaging.correlation_id", id.String()),
	)

	replies, err := t.register(id)
	if err != nil {
		return nil, err
	}
	defer t.forget(id)

	env := Envelope{
		CorrelationID: id,
		ReplyTo:       t.replyChannel,
		Payload:       payload,
	}
	if deadline, ok := ctx.Deadline(); ok {
		env.Deadline = deadline.UnixMilli()
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	receivers, err := t.client.Publish(ctx, destination, data).Result()
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to publish to %s: %w", destination, err)
	}
	if receivers == 0 {
		span.RecordError(ErrNoResponder)
		return nil, fmt.Errorf("failed to publish to %s: %w", destination, ErrNoResponder)
	}

	select {
	case reply := <-replies:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, ErrClosed
	}
}

// Outstanding returns the number of calls waiting for a reply.
func (t *RedisTransport) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *RedisTransport) register(id uuid.UUID) (chan []byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}

	ch := make(chan []byte, 1)
	t.pending[id] = ch
	return ch, nil
}

func (t *RedisTransport) forget(id uuid.UUID) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// resolve hands payload to the waiting call, if there still is one.
func (t *RedisTransport) resolve(id uuid.UUID, payload []byte) bool {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	// buffered with capacity one and only ever written once
	ch <- payload
	return true
}

func (t *RedisTransport) dispatch(messages <-chan *redis.Message) {
	ctx := context.Background()
	for msg := range messages {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			logger.WarnContext(ctx, "dropping unreadable reply", logger.Err(err))
			continue
		}
		if !t.resolve(env.CorrelationID, env.Payload) {
			logger.DebugContext(ctx, "dropping reply without waiting call",
				slog.String("correlation_id", env.CorrelationID.String()),
			)
		}
	}
}

// Close unsubscribes and fails all outstanding calls with ErrClosed. The
// redis client itself is owned by the caller.
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)
	return t.pubsub.Close()
}
