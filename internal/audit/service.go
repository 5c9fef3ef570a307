// Package audit keeps an append-only trail of billing writes: stay charges,
// issued invoices and allocated identifiers.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hospital-billing/internal/common"
	"github.com/noah-isme/hospital-billing/internal/obs"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindOperator is a named clerk or integration identified by header.
	ActorKindOperator ActorKind = "operator"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents callers that did not identify themselves.
	ActorKindAnonymous ActorKind = "anonymous"
)

// OperatorHeader carries the caller's operator id.
const OperatorHeader = "X-Operator-ID"

// Actor describes the entity performing the action.
type Actor struct {
	Kind ActorKind
	ID   string
}

// Entry is one audited request.
type Entry struct {
	ID           string         `json:"id,omitempty"`
	At           time.Time      `json:"at"`
	ActorKind    ActorKind      `json:"actorKind"`
	ActorID      string         `json:"actorId,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId,omitempty"`
	Method       string         `json:"method"`
	Path         string         `json:"path"`
	Route        string         `json:"route,omitempty"`
	Status       int            `json:"status"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Sink stores audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// RedisStreamSink appends entries to a capped Redis stream.
type RedisStreamSink struct {
	R      *redis.Client
	Stream string
	MaxLen int64
}

const entryField = "entry"

func (s RedisStreamSink) stream() string {
	if s.Stream == "" {
		return "audit:billing"
	}
	return s.Stream
}

// Append adds e to the stream, trimming it approximately to MaxLen.
func (s RedisStreamSink) Append(ctx context.Context, e Entry) error {
	if s.R == nil {
		return errors.New("audit: redis client not configured")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	args := &redis.XAddArgs{Stream: s.stream(), Values: map[string]any{entryField: payload}}
	if s.MaxLen > 0 {
		args.MaxLen = s.MaxLen
		args.Approx = true
	}
	return s.R.XAdd(ctx, args).Err()
}

// Recent returns up to limit entries, newest first.
func (s RedisStreamSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.R == nil {
		return nil, errors.New("audit: redis client not configured")
	}
	msgs, err := s.R.XRevRangeN(ctx, s.stream(), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		raw, ok := m.Values[entryField].(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("audit: decode entry %s: %w", m.ID, err)
		}
		e.ID = m.ID
		out = append(out, e)
	}
	return out, nil
}

// Service normalises and persists audit entries.
type Service struct {
	Sink         Sink
	Enabled      bool
	SamplingRate float64
	Now          func() time.Time
}

// Record stores an entry for req when auditing is enabled and the request is
// sampled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata map[string]any) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Sink == nil {
		return errors.New("audit: sink not configured")
	}

	route := obs.RouteOf(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	if metadata == nil && strings.TrimSpace(req.URL.RawQuery) != "" {
		metadata = map[string]any{"query": req.URL.RawQuery}
	}
	requestID := middleware.GetReqID(req.Context())
	if requestID == "" {
		requestID = strings.TrimSpace(req.Header.Get("X-Request-ID"))
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return s.Sink.Append(ctx, Entry{
		At:           now().UTC(),
		ActorKind:    normalizeActorKind(actor.Kind),
		ActorID:      strings.TrimSpace(actor.ID),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        route,
		Status:       status,
		IP:           common.ClientIP(req),
		UserAgent:    strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID:    requestID,
		Metadata:     metadata,
	})
}

// LogErrors returns an error hook for HTTPRecorder that logs failed writes.
func LogErrors(logger zerolog.Logger) func(error) {
	return func(err error) {
		logger.Warn().Err(err).Msg("audit_write_failed")
	}
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindOperator, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}
