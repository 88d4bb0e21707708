package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"clubfin/internal/docstore"
	"clubfin/internal/forecast"
	applog "clubfin/internal/log"
	"clubfin/internal/middleware/ratelimit"
	"clubfin/internal/middleware/security"
	"clubfin/internal/middleware/trace"
	"clubfin/internal/services"
)

// Deps are the collaborators the API serves from.
type Deps struct {
	Store        docstore.Reader
	Transactions *services.TransactionService
	Alerts       *services.AlertService
	Policy       forecast.Policy
	Logger       *applog.Logger
	RateLimit    ratelimit.Config
	// Ready reports whether dependencies can serve traffic. Nil means always ready.
	Ready func(ctx context.Context) error
	// Now is the clock used for alerts and forecasts.
	Now func() time.Time
}

type Server struct {
	http.Server
	deps    Deps
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	stopLimiter  context.CancelFunc
	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	clientIP := security.NewClientIP()
	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(deps.RateLimit),
		tracer:  trace.NewMiddleware(deps.Logger.WithComponent(applog.ComponentHTTP), clientIP.Extract),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopLimiter = cancel
	go s.limiter.Run(ctx)
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	write := s.limiter.Middleware(writeLimitKey, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	mux.Handle("POST /api/transactions", write(http.HandlerFunc(s.handleCreateTransaction)))
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.Handle("PUT /api/transactions/{id}", write(http.HandlerFunc(s.handleUpdateTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", write(http.HandlerFunc(s.handleDeleteTransaction)))

	mux.HandleFunc("GET /api/budgets/{fy}", s.handleGetBudget)
	mux.HandleFunc("GET /api/maintenance", s.handleListMaintenance)
	mux.HandleFunc("GET /api/maintenance/{id}", s.handleGetMaintenance)
	mux.HandleFunc("GET /api/capex", s.handleListCapex)
	mux.HandleFunc("GET /api/capex/{id}", s.handleGetCapex)
	mux.HandleFunc("GET /api/items/{kind}/{id}/journal", s.handleItemJournal)

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/fiscal-month", s.handleFiscalMonth)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
}

// writeLimitKey throttles per user, falling back to the peer address for
// anonymous calls (which are rejected later anyway).
func writeLimitKey(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get(HeaderUserID)); id != "" {
		return "user:" + id
	}
	return "addr:" + r.RemoteAddr
}

// Shutdown stops the limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopLimiter()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
