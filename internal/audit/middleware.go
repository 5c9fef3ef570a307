package audit

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/hospital-billing/internal/obs"
)

// HTTPRecorder records HTTP requests after they have been handled.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
	// ResourceIDHeader names a response header holding the created resource id.
	ResourceIDHeader string
	MetadataFunc     func(*http.Request, int) map[string]any
}

// Middleware returns a chi-compatible middleware that records audit entries.
// Requests rejected before reaching the handler (rate limit, replay) are
// recorded too, with their status.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if resourceID == "" && cfg.ResourceIDHeader != "" {
				resourceID = recorder.Header().Get(cfg.ResourceIDHeader)
			}

			var metadata map[string]any
			if cfg.MetadataFunc != nil {
				metadata = cfg.MetadataFunc(req, recorder.Status())
			}

			err := r.Service.Record(req.Context(), r.actor(req), cfg.Action, cfg.ResourceType, resourceID, req, recorder.Status(), metadata)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func (r HTTPRecorder) actor(req *http.Request) Actor {
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if id := strings.TrimSpace(req.Header.Get(OperatorHeader)); id != "" {
		return Actor{Kind: ActorKindOperator, ID: id}
	}
	return Actor{Kind: ActorKindAnonymous}
}
