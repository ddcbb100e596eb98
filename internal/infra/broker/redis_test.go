package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDestination = "authorization-service"

func setupTransport(t *testing.T) (*RedisTransport, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	transport, err := NewRedisTransport(context.Background(), client, "test.replies")
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	return transport, client
}

// startResponder answers every request on testDestination with handle's
// result. A nil result leaves the request unanswered.
func startResponder(t *testing.T, client *redis.Client, handle func(env Envelope) []byte) <-chan Envelope {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	pubsub := client.Subscribe(ctx, testDestination)
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	seen := make(chan Envelope, 64)
	go func() {
		for msg := range pubsub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			seen <- env
			go func(env Envelope) {
				reply := handle(env)
				if reply == nil {
					return
				}
				data, _ := json.Marshal(Envelope{CorrelationID: env.CorrelationID, Payload: reply})
				client.Publish(ctx, env.ReplyTo, data)
			}(env)
		}
	}()

	t.Cleanup(func() {
		cancel()
		_ = pubsub.Close()
	})
	return seen
}

func TestRedisTransport_Call(t *testing.T) {
	transport, client := setupTransport(t)
	seen := startResponder(t, client, func(env Envelope) []byte {
		return []byte(`{"echo":` + string(env.Payload) + `}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := transport.Call(ctx, testDestination, []byte(`{"ping":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":{"ping":true}}`, string(reply))

	env := <-seen
	assert.Equal(t, transport.ReplyChannel(), env.ReplyTo)
	assert.NotZero(t, env.Deadline)
	assert.Zero(t, transport.Outstanding())
}

func TestRedisTransport_ConcurrentCallsResolveIndependently(t *testing.T) {
	transport, client := setupTransport(t)
	// answer the first request last
	startResponder(t, client, func(env Envelope) []byte {
		if string(env.Payload) == `"0"` {
			time.Sleep(100 * time.Millisecond)
		}
		return env.Payload
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	const calls = 8
	var wg sync.WaitGroup
	results := make([]string, calls)
	errs := make([]error, calls)
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := transport.Call(ctx, testDestination, []byte(strconv.Quote(fmt.Sprint(i))))
			results[i] = string(reply)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := range calls {
		require.NoError(t, errs[i])
		assert.Equal(t, strconv.Quote(fmt.Sprint(i)), results[i])
	}
	assert.Zero(t, transport.Outstanding())
}

func TestRedisTransport_TimeoutAndLateReply(t *testing.T) {
	transport, client := setupTransport(t)
	// only "fresh" requests are answered
	seen := startResponder(t, client, func(env Envelope) []byte {
		if string(env.Payload) != `"fresh"` {
			return nil
		}
		return []byte(`{"reply":"fresh"}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	reply, err := transport.Call(ctx, testDestination, []byte(`"slow"`))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, reply)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Zero(t, transport.Outstanding())

	// a reply for the abandoned call must not leak into the next one
	stale := <-seen
	data, err := json.Marshal(Envelope{CorrelationID: stale.CorrelationID, Payload: json.RawMessage(`{"reply":"stale"}`)})
	require.NoError(t, err)
	require.NoError(t, client.Publish(context.Background(), transport.ReplyChannel(), data).Err())

	next, cancelNext := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelNext()

	reply, err = transport.Call(next, testDestination, []byte(`"fresh"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"fresh"}`, string(reply))
	assert.Zero(t, transport.Outstanding())
}

func TestRedisTransport_NoResponder(t *testing.T) {
	transport, _ := setupTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	reply, err := transport.Call(ctx, testDestination, []byte(`{}`))
	require.ErrorIs(t, err, ErrNoResponder)
	assert.Nil(t, reply)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, transport.Outstanding())
}

func TestEnvelope_PayloadIsEmbedded(t *testing.T) {
	data, err := json.Marshal(Envelope{Payload: json.RawMessage(`{"token":"abc"}`)})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"token":"abc"}`, string(raw["payload"]))
}

func TestRedisTransport_Close(t *testing.T) {
	transport, _ := setupTransport(t)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	_, err := transport.Call(context.Background(), testDestination, []byte(`"x"`))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEnvelope_Expired(t *testing.T) {
	now := time.Now()

	assert.False(t, (&Envelope{}).Expired(now))
	assert.False(t, (&Envelope{Deadline: now.Add(time.Second).UnixMilli()}).Expired(now))
	assert.True(t, (&Envelope{Deadline: now.Add(-time.Second).UnixMilli()}).Expired(now))
}
