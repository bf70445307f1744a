package service

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/tripledger/internal/audit"
	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/billing"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/middleware"
)

// RouterConfig holds everything the HTTP surface is built from.
type RouterConfig struct {
	Engine        *billing.Engine
	Authenticator auth.Authenticator
	JWTManager    *auth.JWTManager

	// Events and Metrics are optional.
	Events  audit.EventLogger
	Metrics *metrics.Metrics
}

// NewRouter mounts the Connect services, document downloads, health check
// and metrics endpoint on one chi router.
func NewRouter(cfg RouterConfig) http.Handler {
	interceptors := []connect.Interceptor{middleware.LoggingInterceptor()}
	if cfg.Metrics != nil {
		interceptors = append(interceptors, middleware.MetricsInterceptor(cfg.Metrics))
	}
	interceptors = append(interceptors, middleware.RequireAdmin(cfg.JWTManager, cfg.Authenticator, RequiresAdmin))

	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(interceptors...),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	r.Mount(NewTripServiceHandler(NewTripService(cfg.Engine), opts...))
	r.Mount(NewBillingServiceHandler(NewBillingService(cfg.Engine), opts...))
	r.Mount(NewAdminServiceHandler(NewAdminService(cfg.Engine, cfg.Authenticator, cfg.JWTManager, cfg.Events), opts...))

	r.Group(func(r chi.Router) {
		r.Use(loggingMiddleware)
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		})
		if cfg.Metrics != nil {
			r.Handle("/metrics", cfg.Metrics.Handler())
		}

		docs := &documentHandler{engine: cfg.Engine}
		r.Get("/trips/{tripID}/invoices/{id}.pdf", docs.serve(billing.KindInvoice))
		r.Get("/trips/{tripID}/receipts/{id}.pdf", docs.serve(billing.KindReceipt))
		r.Get("/trips/{tripID}/participants/{id}/refund.pdf", docs.serve(billing.KindRefund))
	})

	return r
}

type documentHandler struct {
	engine *billing.Engine
}

// serve streams a rendered document as an attachment.
func (h *documentHandler) serve(kind billing.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tripID := chi.URLParam(r, "tripID")
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		doc, err := h.engine.RenderDocument(r.Context(), tripID, kind, id)
		if err != nil {
			status := httpStatus(err)
			if status == http.StatusInternalServerError {
				slog.Error("Document download failed", "trip_id", tripID, "kind", kind, "id", id, "error", err)
			}
			http.Error(w, err.Error(), status)
			return
		}

		w.Header().Set("Content-Type", doc.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(doc.Body)))
		w.Write(doc.Body)
	}
}

// loggingMiddleware logs plain HTTP requests. RPCs are logged by the
// Connect interceptor instead.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, Content-Disposition")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
