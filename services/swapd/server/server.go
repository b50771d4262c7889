package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/observability"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/advisor"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/quotes"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress     string
	RequestsPerMinute int
	Burst             int
	Version           string
	TLS               TLSConfig
}

// TLSConfig describes optional TLS settings. TLS is off unless both files are
// supplied.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	Config   *tls.Config
}

// Deps bundles the collaborators served over HTTP.
type Deps struct {
	Ledger  *swapledger.Ledger
	Storage *storage.Storage
	Quotes  quotes.Cache
	Advisor *advisor.Advisor
	Events  *events.Log
	Auth    *Authenticator
	Logger  *slog.Logger
	Now     func() time.Time
}

// Server exposes the swap ledger over a JSON API.
type Server struct {
	cfg       Config
	ledger    *swapledger.Ledger
	storage   *storage.Storage
	quotes    quotes.Cache
	advisor   *advisor.Advisor
	events    *events.Log
	auth      *Authenticator
	limiter   *RateLimiter
	idemLocks keyLocks
	logger    *slog.Logger
	now       func() time.Time
	started   time.Time
	handler   http.Handler
}

// New constructs a new HTTP server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Quotes == nil {
		deps.Quotes = quotes.NewMemory(deps.Now)
	}
	if deps.Advisor == nil {
		deps.Advisor = advisor.New(advisor.Config{}, advisor.WithLogger(deps.Logger))
	}
	srv := &Server{
		cfg:     cfg,
		ledger:  deps.Ledger,
		storage: deps.Storage,
		quotes:  deps.Quotes,
		advisor: deps.Advisor,
		events:  deps.Events,
		auth:    deps.Auth,
		logger:  deps.Logger,
		now:     deps.Now,
		started: deps.Now(),
	}
	srv.limiter = NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst, srv.now)
	srv.handler = srv.routes()
	return srv, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/livez", s.handleLive)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(s.rateLimit)

		api.Route("/health", func(h chi.Router) {
			h.Get("/", s.handleHealth)
			h.Get("/ready", s.handleReady)
			h.Get("/live", s.handleLive)
		})

		api.Route("/swap", func(sw chi.Router) {
			sw.Get("/tokens", s.handleListTokens)
			sw.Post("/quote", s.handleQuote)
			sw.Get("/quote/{id}", s.handleGetQuote)
			sw.Get("/status/{id}", s.handleSwapStatus)
			sw.Get("/history/{address}", s.handleSwapHistory)
			sw.Get("/stats/{address}", s.handleUserStats)
			sw.Get("/state", s.handleState)
			sw.Get("/stream", s.handleStream)
			sw.With(s.requireCaller, s.idempotent).Post("/execute", s.handleExecute)
		})

		api.Route("/tokens/{token}", func(tr chi.Router) {
			tr.Get("/balances/{address}", s.handleBalance)
			tr.Get("/allowances/{owner}/{spender}", s.handleAllowance)
			tr.Get("/minters", s.handleMinters)
			tr.Group(func(auth chi.Router) {
				auth.Use(s.requireCaller)
				auth.Post("/approve", s.handleApprove)
				auth.Post("/transfer", s.handleTransfer)
				auth.Post("/burn", s.handleBurn)
			})
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(s.requireCaller)
			admin.Post("/tokens", s.handleRegisterToken)
			admin.Put("/tokens/{token}/supported", s.handleSetSupported)
			admin.Post("/tokens/{token}/minters", s.handleAddMinter)
			admin.Delete("/tokens/{token}/minters/{account}", s.handleRemoveMinter)
			admin.Post("/tokens/{token}/mint", s.handleMint)
			admin.Post("/pause", s.handlePause)
			admin.Post("/unpause", s.handleUnpause)
			admin.Put("/owner", s.handleTransferOwnership)
			admin.Put("/fee-recipient", s.handleSetFeeRecipient)
			admin.Put("/fee", s.handleSetFee)
		})

		api.Route("/ai", func(ai chi.Router) {
			ai.Get("/recommend", s.handleRecommend)
			ai.Post("/analyze", s.handleAnalyze)
			ai.Post("/explain", s.handleExplain)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return otelhttp.NewHandler(r, "swapd.http")
}

// observe records per-route latency using the matched chi pattern. Requests
// that match no route share one label.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().Observe(route, status, time.Since(start))
	})
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.handler,
		TLSConfig:         s.cfg.TLS.Config,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "listen", s.cfg.ListenAddress)
	var err error
	certFile := strings.TrimSpace(s.cfg.TLS.CertFile)
	keyFile := strings.TrimSpace(s.cfg.TLS.KeyFile)
	if certFile != "" && keyFile != "" {
		err = srv.ListenAndServeTLS(certFile, keyFile)
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, err := s.ledger.State(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"paused":  state.Paused,
		"uptime":  s.now().Sub(s.started).Round(time.Second).String(),
		"version": s.version(),
	})
}

// handleReady reports whether the store and the ledger state are reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		if err := s.storage.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			s.writeError(w, http.StatusServiceUnavailable, "not_ready", "storage unavailable")
			return
		}
	}
	if _, err := s.ledger.State(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "not_ready", "ledger state unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) version() string {
	if v := strings.TrimSpace(s.cfg.Version); v != "" {
		return v
	}
	return "dev"
}
