package main

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestServe_ReturnsWhenSubscriptionCloses(t *testing.T) {
	messages := make(chan *redis.Message, 2)
	messages <- &redis.Message{Payload: `{"correlation_id":"x"}`}
	close(messages)

	var handled []string
	done := make(chan struct{})
	go func() {
		serve(context.Background(), messages, func(raw string) { handled = append(handled, raw) })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after the channel closed")
	}
	assert.Equal(t, []string{`{"correlation_id":"x"}`}, handled)
}

func TestServe_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		serve(ctx, make(chan *redis.Message), func(string) { t.Error("unexpected message") })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
