package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"babywallet/internal/log"
	"babywallet/internal/metrics"
	"babywallet/internal/middleware/ratelimit"
	"babywallet/internal/middleware/security"
	"babywallet/internal/middleware/trace"
	"babywallet/internal/services"
)

// Options configures the optional collaborators of a Server.
type Options struct {
	Metrics *metrics.Collector
	Logger  *log.Logger
	// RateLimit is the number of write requests a client may make per
	// minute. Zero uses the limiter's default.
	RateLimit int
}

type Server struct {
	http.Server
	svc      *services.LedgerService
	logger   *log.Logger
	events   *log.StructuredLogger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// accountHandlerFunc is a handler scoped to the caller's account.
type accountHandlerFunc func(w http.ResponseWriter, r *http.Request, accountID string)

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimit > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimit
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:      svc,
		logger:   logger,
		events:   log.NewStructuredLogger(logger),
		limiter:  ratelimit.NewLimiter(rlConfig),
		detector: security.NewDetector(),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	mux.HandleFunc("POST /api/children", s.withAccount(s.handleCreateChild))
	mux.HandleFunc("GET /api/children", s.withAccount(s.handleListChildren))
	mux.HandleFunc("GET /api/children/{id}", s.withAccount(s.handleGetChild))
	mux.HandleFunc("PATCH /api/children/{id}", s.withAccount(s.handleUpdateChild))
	mux.HandleFunc("DELETE /api/children/{id}", s.withAccount(s.handleDeleteChild))

	mux.HandleFunc("POST /api/investments", s.withAccount(s.handleCreateInvestment))
	mux.HandleFunc("GET /api/investments", s.withAccount(s.handleListInvestments))
	mux.HandleFunc("POST /api/investments/{id}/pause", s.withAccount(s.handlePauseInvestment))
	mux.HandleFunc("POST /api/investments/{id}/resume", s.withAccount(s.handleResumeInvestment))
	mux.HandleFunc("POST /api/investments/{id}/cancel", s.withAccount(s.handleCancelInvestment))

	mux.HandleFunc("GET /api/transactions", s.withAccount(s.handleListTransactions))
	mux.HandleFunc("POST /api/withdrawals", s.withAccount(s.handleRecordWithdrawal))
	mux.HandleFunc("POST /api/fees", s.withAccount(s.handleRecordFee))
	mux.HandleFunc("POST /api/interest", s.withAccount(s.handleRecordInterest))
	mux.HandleFunc("POST /api/refunds", s.withAccount(s.handleRecordRefund))

	mux.HandleFunc("GET /api/dashboard-stats", s.withAccount(s.handleDashboardStats))
	mux.HandleFunc("GET /api/transaction-stats", s.withAccount(s.handleTransactionStats))
	mux.HandleFunc("GET /api/statements/{year}", s.withAccount(s.handleAnnualStatement))

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}
	// Public and CPU-bound, so it is limited like a write.
	mux.Handle("GET /api/projection",
		s.limiter.LimitAll(s.detector.ExtractClientIP, onLimit)(http.HandlerFunc(s.handleProjection)))

	// Outermost first: tracing sees the final status of every request and
	// must wrap the mux directly enough to read the matched pattern.
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit)(h)
	h = s.detector.Middleware(logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(logger, s.detector.ExtractClientIP, opts.Metrics).Middleware(h)
	s.Handler = h

	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withAccount resolves the caller's account before running h.
func (s *Server) withAccount(h accountHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := AccountID(r)
		if err != nil {
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldAccountID, accountID))
		h(w, r.WithContext(ctx), accountID)
	}
}

// writeError maps err onto a response. Unexpected errors are logged with
// their cause; the client only sees a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().
				WithErrorType(log.ErrorTypeInternal).
				WithRequestID(trace.GetRequestID(r.Context())))
	}
	resp.Write(w)
}
