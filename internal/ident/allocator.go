package ident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/hospital-billing/internal/obs"
)

// ErrExhausted is returned when every allocation attempt collided with an existing claim.
var ErrExhausted = errors.New("ident: allocation attempts exhausted")

// Allocator hands out identifiers that are unique for the lifetime of their
// claim by reserving each generated value in Redis before returning it.
type Allocator struct {
	R           *redis.Client
	Generator   Generator
	Prefix      string
	TTL         time.Duration
	MaxAttempts int
}

func (a Allocator) ttl() time.Duration {
	if a.TTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return a.TTL
}

func (a Allocator) attempts() int {
	if a.MaxAttempts <= 0 {
		return 16
	}
	return a.MaxAttempts
}

func (a Allocator) key(id Identifier) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "ident:"
	}
	return prefix + id.String()
}

// Allocate generates an identifier for prefix and claims it.
func (a Allocator) Allocate(ctx context.Context, prefix Prefix) (Identifier, error) {
	if a.R == nil {
		return Identifier{}, errors.New("ident: redis client not configured")
	}
	if !prefix.Valid() {
		return Identifier{}, fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
	for i := 0; i < a.attempts(); i++ {
		id := a.Generator.Generate(prefix)
		ok, err := a.R.SetNX(ctx, a.key(id), time.Now().UTC().Format(time.RFC3339), a.ttl()).Result()
		if err != nil {
			return Identifier{}, fmt.Errorf("ident: claim %s: %w", id, err)
		}
		if ok {
			return id, nil
		}
		if obs.IdentifierCollisionsTotal != nil {
			obs.IdentifierCollisionsTotal.WithLabelValues(string(prefix)).Inc()
		}
	}
	return Identifier{}, fmt.Errorf("%w: prefix %s after %d attempts", ErrExhausted, prefix, a.attempts())
}

// Release drops the claim on id so it can be handed out again.
func (a Allocator) Release(ctx context.Context, id Identifier) error {
	if a.R == nil {
		return errors.New("ident: redis client not configured")
	}
	return a.R.Del(ctx, a.key(id)).Err()
}
