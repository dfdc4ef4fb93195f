package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/warp/attendance-engine/attendance"
)

// DefaultChannel is the Redis channel changes are published on.
const DefaultChannel = "attendance:changes"

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Redis publishes and receives changes over Redis pub/sub. Prefix filtering
// happens on receipt; every process sees every change.
type Redis struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

func NewRedis(client *redis.Client, channel string, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, channel: channel, logger: logger}
}

func (r *Redis) Publish(ctx context.Context, ch attendance.Change) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	return nil
}

// Subscribe confirms the Redis subscription before returning, so that no
// change published after Subscribe returns is missed.
func (r *Redis) Subscribe(ctx context.Context, prefix string) (<-chan attendance.Change, error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	out := make(chan attendance.Change)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ch, err := decodeChange(msg.Payload)
				if err != nil {
					r.logger.WarnContext(ctx, "undecodable change", "channel", msg.Channel, "error", err)
					continue
				}
				if !strings.HasPrefix(ch.Path, prefix) {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- ch:
				}
			}
		}
	}()
	return out, nil
}

func decodeChange(payload string) (attendance.Change, error) {
	var ch attendance.Change
	if err := json.Unmarshal([]byte(payload), &ch); err != nil {
		return attendance.Change{}, err
	}
	if ch.Path == "" {
		return attendance.Change{}, fmt.Errorf("change without path")
	}
	return ch, nil
}
