package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"resume-editor/internal/shared/telemetry"
)

const (
	redisBuffer       = 64
	redisRetryBackoff = 500 * time.Millisecond
)

// RedisChannel implements Channel with Redis Pub/Sub.
type RedisChannel struct {
	client *redis.Client
}

// NewRedisChannel connects to Redis and verifies the connection.
func NewRedisChannel(redisURL string) (*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisChannel{client: client}, nil
}

// NewRedisChannelWithClient wraps an existing client.
func NewRedisChannelWithClient(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

// Publish sends ev to the resume's topic.
func (c *RedisChannel) Publish(ctx context.Context, ev Event) error {
	payload, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, ChannelName(ev.ResumeID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe listens on the resume's topic. A Resync delivery is emitted each
// time the underlying connection is re-established.
func (c *RedisChannel) Subscribe(ctx context.Context, resumeID string) (Subscription, error) {
	ps := c.client.Subscribe(ctx, ChannelName(resumeID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := &redisSub{
		ps:       ps,
		resumeID: resumeID,
		ch:       make(chan Delivery, redisBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go sub.run(subCtx)
	return sub, nil
}

// Ping checks if Redis is reachable.
func (c *RedisChannel) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisChannel) Close() error {
	return c.client.Close()
}

type redisSub struct {
	ps       *redis.PubSub
	resumeID string
	ch       chan Delivery
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (s *redisSub) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.ch)

	disconnected := false
	for {
		msg, err := s.ps.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !disconnected {
				telemetry.Warn("realtime.disconnected", map[string]any{
					"resume_id": s.resumeID,
					"error":     err.Error(),
				})
			}
			disconnected = true
			select {
			case <-ctx.Done():
				return
			case <-time.After(redisRetryBackoff):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" && disconnected {
				disconnected = false
				telemetry.Info("realtime.reconnected", map[string]any{"resume_id": s.resumeID})
				if !s.send(ctx, Delivery{Resync: true}) {
					return
				}
			}
		case *redis.Message:
			ev, err := DecodeEvent([]byte(m.Payload))
			if err != nil {
				telemetry.Warn("realtime.bad_payload", map[string]any{
					"resume_id": s.resumeID,
					"error":     err.Error(),
				})
				continue
			}
			if !s.send(ctx, Delivery{Event: &ev}) {
				return
			}
		}
	}
}

func (s *redisSub) send(ctx context.Context, d Delivery) bool {
	select {
	case s.ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *redisSub) Deliveries() <-chan Delivery {
	return s.ch
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.ps.Close()
		<-s.done
	})
	return err
}

var _ Channel = (*RedisChannel)(nil)
