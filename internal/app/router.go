package app

import (
	"context"
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/hospital-billing/internal/audit"
	"github.com/noah-isme/hospital-billing/internal/billing"
	"github.com/noah-isme/hospital-billing/internal/cart"
	"github.com/noah-isme/hospital-billing/internal/common"
	"github.com/noah-isme/hospital-billing/internal/health"
	"github.com/noah-isme/hospital-billing/internal/ident"
	"github.com/noah-isme/hospital-billing/internal/lock"
	"github.com/noah-isme/hospital-billing/internal/obs"
	"github.com/noah-isme/hospital-billing/internal/pricing"
	"github.com/noah-isme/hospital-billing/internal/ratelimit"
	"github.com/noah-isme/hospital-billing/internal/security"
	"github.com/noah-isme/hospital-billing/internal/stay"
)

// NewRouter mounts every billing endpoint plus health, metrics and optional
// pprof on a chi router.
func NewRouter(d *Dependencies) http.Handler {
	cfg := d.Config
	logger := d.Logger

	stayService := stay.NewService(d.Stays, logger.With().Str("component", "stay").Logger())
	stayHandler := &stay.Handler{Service: stayService}
	pricingHandler := &pricing.Handler{}
	cartHandler := &cart.Handler{Mode: cfg.DiscountMode}
	identHandler := &ident.Handler{Issuer: d.IDs}
	billingHandler := &billing.Handler{Service: &billing.Service{
		Stays:   d.Stays,
		IDs:     d.IDs,
		Mode:    cfg.DiscountMode,
		Logger:  logger.With().Str("component", "billing").Logger(),
		Now:     time.Now,
		Lock:    lock.Locker{R: d.Redis},
		LockTTL: cfg.InvoiceLockTTL,
	}}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	limit := ratelimit.Handler{
		Limiter: d.Limiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	auditRec := audit.HTTPRecorder{
		Service: &audit.Service{Sink: d.Audit, Enabled: cfg.Audit.Enabled, SamplingRate: cfg.Audit.SamplingRate},
		OnError: audit.LogErrors(logger),
	}
	audited := func(action string) func(http.Handler) http.Handler {
		return auditRec.Middleware(audit.HTTPConfig{Action: action, ResourceIDHeader: common.ResourceIDHeader})
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Obs.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecureHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader, audit.OperatorHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", common.ResourceIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Probes: d.probes()}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Post("/pricing/quote", pricingHandler.Quote)
		v.Post("/pricing/tiers", pricingHandler.Tiers)
		v.Post("/carts/totals", cartHandler.Totals)

		v.Route("/stays", func(s chi.Router) {
			s.With(audited("stay.transfer"), idem.Middleware).Post("/transfers", stayHandler.RecordTransfer)
			s.Get("/pending", stayHandler.Pending)
			s.Get("/{id}", stayHandler.Get)
		})

		v.Route("/invoices", func(inv chi.Router) {
			inv.Post("/preview", billingHandler.Preview)
			inv.With(audited("invoice.issue"), idem.Middleware).Post("/", billingHandler.Issue)
		})

		v.Route("/identifiers", func(id chi.Router) {
			id.With(audited("identifier.allocate"), idem.Middleware).Post("/{prefix}", identHandler.Allocate)
			id.Get("/{text}", identHandler.Parse)
		})

		v.Get("/audit", audit.Handler{Sink: d.Audit}.List)
	})

	return r
}

func (d *Dependencies) probes() []health.Probe {
	var probes []health.Probe
	if d.DB != nil {
		probes = append(probes, health.Probe{Name: "db", Timeout: d.Config.HealthDBTimeout, Check: d.DB.Ping})
	}
	if d.Redis != nil {
		probes = append(probes, health.Probe{Name: "redis", Timeout: d.Config.HealthRedisTimeout, Check: func(ctx context.Context) error {
			return d.Redis.Ping(ctx).Err()
		}})
	}
	return probes
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
