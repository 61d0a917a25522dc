// Package handler provides the HTTP planning API.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Bidon15/popbatch/internal/batch"
)

// maxBodyBytes bounds plan request bodies.
const maxBodyBytes = 1 << 16

// Planner builds plans. *batch.Builder implements it.
type Planner interface {
	Plan(ctx context.Context, intent batch.Intent) (*batch.Plan, error)
}

// PlanRequest is the body of POST /v1/plans: an intent tagged with its kind.
type PlanRequest struct {
	Kind   batch.Kind      `json:"kind"`
	Intent json.RawMessage `json:"intent"`
}

// PlanResponse wraps a plan with the request ID.
type PlanResponse struct {
	RequestID string      `json:"request_id"`
	Plan      *batch.Plan `json:"plan"`
}

// PlanHandler serves the planning API.
type PlanHandler struct {
	planner  Planner
	metrics  *Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewPlanHandler creates a PlanHandler. Metrics are registered with reg.
func NewPlanHandler(planner Planner, reg *prometheus.Registry, logger *slog.Logger) *PlanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanHandler{
		planner:  planner,
		metrics:  NewMetrics(reg),
		gatherer: reg,
		logger:   logger,
	}
}

// ServerOptions configures the middleware around the planning routes.
type ServerOptions struct {
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
	// Limiter rate limits POST /v1/plans per client when set.
	Limiter   WindowCounter
	RateLimit RateLimitConfig
}

// Routes returns a chi router with the planning routes.
func (h *PlanHandler) Routes() chi.Router {
	return h.router(ServerOptions{})
}

// Handler returns the full server handler: the planning routes with CORS,
// rate limiting and gzip responses as configured.
func (h *PlanHandler) Handler(opts ServerOptions) http.Handler {
	return gzhttp.GzipHandler(h.router(opts))
}

func (h *PlanHandler) router(opts ServerOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	create := http.Handler(http.HandlerFunc(h.Create))
	if opts.Limiter != nil {
		create = RateLimit(opts.Limiter, opts.RateLimit, h.logger)(create)
	}
	r.Method(http.MethodPost, "/v1/plans", create)

	return r
}

// Health handles GET /healthz.
func (h *PlanHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Create handles POST /v1/plans.
// Returns the plan for the intent; an already satisfied intent yields an
// empty step list.
func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestIDFrom(r.Context())

	var req PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, &APIError{Code: CodeBadRequest, Message: "Invalid request body", Status: http.StatusBadRequest})
		return
	}

	intent, err := decodeIntent(req)
	if err != nil {
		h.metrics.observe(kindLabel(req.Kind), "rejected", time.Since(start).Seconds())
		writeError(w, &APIError{Code: CodeInvalidIntent, Message: err.Error(), Status: http.StatusBadRequest})
		return
	}

	plan, err := h.planner.Plan(r.Context(), intent)
	if err != nil {
		apiErr := errorFor(err)
		h.metrics.observe(string(req.Kind), apiErr.Code, time.Since(start).Seconds())
		h.logger.Warn("plan failed",
			slog.String("request_id", reqID),
			slog.String("kind", string(req.Kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, apiErr)
		return
	}

	outcome := "planned"
	if plan.Empty() {
		outcome = "satisfied"
	}
	h.metrics.observe(string(req.Kind), outcome, time.Since(start).Seconds())
	h.logger.Info("plan served",
		slog.String("request_id", reqID),
		slog.String("kind", string(req.Kind)),
		slog.Int("steps", len(plan.Steps)),
	)

	writeJSON(w, http.StatusOK, PlanResponse{RequestID: reqID, Plan: plan})
}

// decodeIntent decodes the tagged intent body into its concrete type.
func decodeIntent(req PlanRequest) (batch.Intent, error) {
	if len(req.Intent) == 0 {
		return nil, fmt.Errorf("intent is required")
	}

	var (
		intent batch.Intent
		err    error
	)
	switch req.Kind {
	case batch.KindBridgeERC20:
		var i batch.BridgeERC20Intent
		err = json.Unmarshal(req.Intent, &i)
		intent = i
	case batch.KindTopUp:
		var i batch.TopUpIntent
		err = json.Unmarshal(req.Intent, &i)
		intent = i
	case batch.KindSwap:
		var i batch.SwapIntent
		err = json.Unmarshal(req.Intent, &i)
		intent = i
	case batch.KindRebalance:
		var i batch.RebalanceIntent
		err = json.Unmarshal(req.Intent, &i)
		intent = i
	default:
		return nil, fmt.Errorf("unknown intent kind %q", req.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s intent: %w", req.Kind, err)
	}
	return intent, nil
}

func kindLabel(k batch.Kind) string {
	switch k {
	case batch.KindBridgeERC20, batch.KindTopUp, batch.KindSwap, batch.KindRebalance:
		return string(k)
	}
	return "unknown"
}

type ctxKey struct{}

// requestID tags each request with an X-Request-ID, keeping one supplied
// by the caller.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
