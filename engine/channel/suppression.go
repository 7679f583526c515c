package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/sequentry/sequentry/pkg/logger"
)

const suppressionKeyPrefix = "suppress"

// Suppressor is the unified suppression service. A hit on any channel blocks
// delivery on every channel, so the coordinator checks all channels of a
// flow before the first agent runs.
type Suppressor struct {
	client cache.RedisInterface
}

// NewSuppressor wires the redis-backed suppression store.
func NewSuppressor(client cache.RedisInterface) (*Suppressor, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Suppressor{client: client}, nil
}

func suppressionKey(c Channel, identity string) string {
	return fmt.Sprintf("%s:%s:%s", suppressionKeyPrefix, c, identity)
}

// Suppress records a suppression for the identity on one channel. A zero ttl
// suppresses until lifted.
func (s *Suppressor) Suppress(ctx context.Context, c Channel, identity, reason string, ttl time.Duration) error {
	if !c.Valid() {
		return fmt.Errorf("unknown channel: %q", c)
	}
	if identity == "" {
		return fmt.Errorf("identity is required")
	}
	if err := s.client.Set(ctx, suppressionKey(c, identity), reason, ttl).Err(); err != nil {
		return fmt.Errorf("recording suppression: %w", err)
	}
	logger.FromContext(ctx).Info("identity suppressed",
		"channel", c,
		"identity", identity,
		"reason", reason,
	)
	return nil
}

// Lift removes a suppression.
func (s *Suppressor) Lift(ctx context.Context, c Channel, identity string) error {
	if err := s.client.Del(ctx, suppressionKey(c, identity)).Err(); err != nil {
		return fmt.Errorf("lifting suppression: %w", err)
	}
	return nil
}

// Lookup returns the suppression for one channel identity, or nil when the
// identity is not suppressed there.
func (s *Suppressor) Lookup(ctx context.Context, c Channel, identity string) (*Suppression, error) {
	reason, err := s.client.Get(ctx, suppressionKey(c, identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading suppression: %w", err)
	}
	return &Suppression{Channel: c, Identity: identity, Reason: reason}, nil
}

// Check runs the unified suppression check for the recipient across the
// given channels and returns the first hit. Channels on which the recipient
// has no identity are skipped.
func (s *Suppressor) Check(ctx context.Context, recipient Recipient, channels []Channel) (*Suppression, error) {
	for _, c := range channels {
		identity := recipient.Identity(c)
		if identity == "" {
			continue
		}
		hit, err := s.Lookup(ctx, c, identity)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			return hit, nil
		}
	}
	return nil, nil
}
