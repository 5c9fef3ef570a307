package stay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/hospital-billing/internal/resilience"
)

const (
	markBilledRetries = 8
	markBilledBackoff = 2 * time.Millisecond
)

// insertPendingScript writes the charge and its pending index entry together,
// or neither when the charge key already exists. The index goes first since
// it is the write that can fail on a mistyped key.
var insertPendingScript = redis.NewScript(`if redis.call("exists", KEYS[1]) == 1 then
  return 0
end
redis.call("sadd", KEYS[2], ARGV[2])
redis.call("set", KEYS[1], ARGV[1])
return 1`)

// RedisStore keeps each charge as a JSON value plus a per-subject set of
// pending ids. Status changes run under WATCH so concurrent billers race on
// an optimistic transaction instead of overwriting each other.
type RedisStore struct {
	R      *redis.Client
	Prefix string
}

var _ Store = RedisStore{}

func (s RedisStore) prefix() string {
	if s.Prefix == "" {
		return "stay:"
	}
	return s.Prefix
}

func (s RedisStore) chargeKey(id string) string { return s.prefix() + "charge:" + id }

func (s RedisStore) pendingKey(subjectID string) string { return s.prefix() + "pending:" + subjectID }

// InsertPending stores a new pending charge and indexes it under its subject
// in one atomic script.
func (s RedisStore) InsertPending(ctx context.Context, c *Charge) error {
	if s.R == nil {
		return errors.New("stay: redis client not configured")
	}
	if c == nil || c.ID() == "" {
		return fmt.Errorf("%w: charge without id", ErrInvalidInput)
	}
	if !c.Pending() {
		return fmt.Errorf("%w: charge %s is not pending", ErrInvalidInput, c.ID())
	}
	payload, err := json.Marshal(c.Record())
	if err != nil {
		return fmt.Errorf("stay: encode charge: %w", err)
	}
	keys := []string{s.chargeKey(c.ID()), s.pendingKey(c.SubjectID())}
	inserted, err := insertPendingScript.Run(ctx, s.R, keys, payload, c.ID()).Int()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return fmt.Errorf("%w: duplicate charge %s", ErrInvalidInput, c.ID())
	}
	return nil
}

// ListPending returns the subject's pending charges ordered by transfer date.
func (s RedisStore) ListPending(ctx context.Context, subjectID string) ([]*Charge, error) {
	if s.R == nil {
		return nil, errors.New("stay: redis client not configured")
	}
	ids, err := s.R.SMembers(ctx, s.pendingKey(subjectID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Charge, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.chargeKey(id)
	}
	values, err := s.R.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		c, err := decodeCharge([]byte(raw))
		if err != nil {
			return nil, err
		}
		if c.Pending() {
			out = append(out, c)
		}
	}
	sortCharges(out)
	return out, nil
}

// Get loads a charge by id.
func (s RedisStore) Get(ctx context.Context, id string) (*Charge, error) {
	if s.R == nil {
		return nil, errors.New("stay: redis client not configured")
	}
	raw, err := s.R.Get(ctx, s.chargeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeCharge(raw)
}

// MarkBilled flips a pending charge to billed inside a WATCH transaction.
func (s RedisStore) MarkBilled(ctx context.Context, id string, at time.Time) (bool, error) {
	if s.R == nil {
		return false, errors.New("stay: redis client not configured")
	}
	key := s.chargeKey(id)
	var changed bool
	txf := func(tx *redis.Tx) error {
		changed = false
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c, err := decodeCharge(raw)
		if err != nil {
			return err
		}
		if !c.MarkBilled(at) {
			return nil
		}
		payload, err := json.Marshal(c.Record())
		if err != nil {
			return fmt.Errorf("stay: encode charge: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			pipe.SRem(ctx, s.pendingKey(c.SubjectID()), c.ID())
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}
	for i := 0; i < markBilledRetries; i++ {
		err := s.R.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(resilience.Backoff(markBilledBackoff, i+1, 0.5)):
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return changed, nil
	}
	return false, fmt.Errorf("stay: mark billed %s: too much contention", id)
}

func decodeCharge(raw []byte) (*Charge, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("stay: decode charge: %w", err)
	}
	return FromRecord(rec)
}
