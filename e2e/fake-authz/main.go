package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wisdom-oss/service-water-usage-history/internal/infra/broker"
	"github.com/wisdom-oss/service-water-usage-history/internal/infra/introspection"
)

// fake-authz answers token introspection requests for local runs. Tokens
// listed in -tokens are active; "expired", "disabled" and "slow" trigger the
// matching denial or a missed deadline, everything else is invalid.
func main() {
	redisURL := flag.String("redis", "redis://localhost:6379/0", "redis url")
	destination := flag.String("destination", "authorization-service", "channel to answer on")
	tokens := flag.String("tokens", "dev-token", "comma separated list of active tokens")
	flag.Parse()

	active := map[string]bool{}
	for _, t := range strings.Split(*tokens, ",") {
		active[strings.TrimSpace(t)] = true
	}

	opt, err := redis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Invalid redis url: %v", err)
	}
	client := redis.NewClient(opt)
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pubsub := client.Subscribe(ctx, *destination)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	log.Printf("Answering introspection requests on %q", *destination)

	serve(ctx, pubsub.Channel(), func(raw string) {
		go answer(ctx, client, raw, active)
	})
}

// serve hands every message to handle until ctx is done or the subscription
// channel closes.
func serve(ctx context.Context, messages <-chan *redis.Message, handle func(raw string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			handle(msg.Payload)
		}
	}
}

func answer(ctx context.Context, client *redis.Client, raw string, active map[string]bool) {
	var env broker.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Printf("Dropping unreadable request: %v", err)
		return
	}
	req, err := introspection.DecodeRequest(env.Payload)
	if err != nil {
		log.Printf("Dropping unreadable payload: %v", err)
		return
	}

	resp := introspection.Response{Active: new(bool)}
	switch {
	case active[req.Token]:
		*resp.Active = true
		resp.Scope = introspection.Scopes{req.Scope}
		resp.User = &introspection.User{ID: 1, FirstName: "Local", LastName: "Developer", Username: "dev"}
	case req.Token == "slow":
		return
	case req.Token == "expired":
		resp.Reason = reason(introspection.ReasonExpired)
	case req.Token == "disabled":
		resp.Reason = reason(introspection.ReasonUserDisabled)
	default:
		resp.Reason = reason(introspection.ReasonInvalidToken)
	}

	if env.Expired(time.Now()) {
		log.Printf("Request %s expired before it was answered", env.CorrelationID)
		return
	}

	payload, err := introspection.EncodeResponse(&resp)
	if err != nil {
		log.Printf("Failed to encode response: %v", err)
		return
	}
	data, err := json.Marshal(broker.Envelope{CorrelationID: env.CorrelationID, Payload: payload})
	if err != nil {
		log.Printf("Failed to encode envelope: %v", err)
		return
	}
	if err := client.Publish(ctx, env.ReplyTo, data).Err(); err != nil {
		log.Printf("Failed to publish reply: %v", err)
	}
}

func reason(code string) *string {
	return &code
}
