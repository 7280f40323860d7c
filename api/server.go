/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
 1. RequestID:  Unique ID per request for tracing
 2. AccessLog:  zerolog line per request (method, path, status, duration)
 3. Recoverer:  Panic recovery (500 instead of crash)
 4. CORS:       Cross-origin requests for the portal frontend
 5. Identity:   X-User-ID / X-User-Name headers into the request context

ROUTE GROUPS:
  /api/vouchers/*   Issuance, lookup, documents, redemption, export
  /api/employees/*  Directory
  /api/benefits/*   Catalog
  /api/requests/*   Self-service requests and reviews
  /api/audit        Audit trail
  /api/scenarios/*  Demo scenarios
  /metrics          Prometheus (when enabled)
  /healthz          Liveness plus a database ping

SECURITY NOTE:
  Identity is taken from headers set by the upstream portal gateway. The
  service itself does not authenticate; a missing X-User-ID is treated as
  "no session".

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/benefit-engine/logging"
)

// RouterOptions tunes NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(AccessLog(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", HeaderUserID, HeaderUserName},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))
	r.Use(Identify)

	r.Route("/api", func(r chi.Router) {
		// Voucher routes
		r.Route("/vouchers", func(r chi.Router) {
			r.Post("/issue", h.IssueVouchers)
			r.Get("/export", h.ExportVouchers)
			r.Get("/{code}", h.GetVoucher)
			r.Get("/{code}/document", h.GetVoucherDocument)
			r.Post("/{code}/redeem", h.RedeemVoucher)
		})

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/vouchers", h.ListEmployeeVouchers)
		})

		// Catalog routes
		r.Route("/benefits", func(r chi.Router) {
			r.Get("/", h.ListBenefits)
			r.Post("/", h.SaveBenefit)
		})

		// Self-service routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.SubmitRequest)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
		})

		r.Get("/audit", h.ListAudit)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	r.Get("/healthz", h.Health)

	return r
}

// =============================================================================
// ACCESS LOG
// =============================================================================

// AccessLog writes one zerolog event per request and attaches a
// request-scoped logger to the context.
func AccessLog(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := base.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(logging.WithContext(r.Context(), reqLog))

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				ev := reqLog.Info()
				switch {
				case status >= 500:
					ev = reqLog.Error()
				case status >= 400:
					ev = reqLog.Warn()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Identity is the caller as reported by the portal gateway.
type Identity struct {
	ID   string
	Name string
}

// Anonymous reports whether no session identity was supplied.
func (i Identity) Anonymous() bool {
	return i.ID == ""
}

type identityKey struct{}

// Identify reads the identity headers into the request context.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			ID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
			Name: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		}
		if id.Name == "" {
			id.Name = id.ID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// IdentityFrom returns the caller identity, or the zero Identity.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}
