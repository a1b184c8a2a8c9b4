// Package http serves the trip REST API and the settlement pages.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"tripsplit/internal/core"
	"tripsplit/internal/log"
	"tripsplit/internal/middleware/ratelimit"
	"tripsplit/internal/middleware/security"
	"tripsplit/internal/middleware/trace"
	"tripsplit/internal/services"
	"tripsplit/internal/settle"
	appweb "tripsplit/web"
)

// TripAPI is the service surface the handlers use.
type TripAPI interface {
	CreateTrip(ctx context.Context, name, currency string, members []string) (core.Trip, error)
	GetTrip(ctx context.Context, id string) (core.Trip, error)
	ListTrips(ctx context.Context) ([]core.Trip, error)
	UpdateCurrency(ctx context.Context, id, code string) (core.Currency, error)
	DeleteTrip(ctx context.Context, id string) error
	AddMember(ctx context.Context, tripID, name string) (string, error)
	RemoveMember(ctx context.Context, tripID, name string) error
	AddExpense(ctx context.Context, tripID, payer string, amount core.Money, note string) (core.Expense, error)
	ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, tripID string, id int64) error
	ClearExpenses(ctx context.Context, tripID string) (int64, error)
	ClearAll(ctx context.Context, tripID string) error
	Summary(ctx context.Context, tripID string) (services.Summary, error)
	Calculate(expenses []settle.Expense, members []string) settle.Result
	Ping(ctx context.Context) error
}

type Options struct {
	Logger *log.Logger
	// CORSOrigins enables CORS for the listed origins; empty disables it.
	CORSOrigins []string
	RateLimit   ratelimit.Config
}

type Server struct {
	http.Server
	router    *mux.Router
	trips     TripAPI
	templates *template.Template
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	logger    *log.Logger
}

// NewServer configures routes, middleware and templates.
func NewServer(addr string, trips TripAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		router:  mux.NewRouter(),
		trips:   trips,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:  trace.NewMiddleware(logger, security.ExtractClientIP),
		logger:  logger,
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.routes()

	var handler http.Handler = s.router
	handler = log.Middleware(logger, trace.RequestIDFromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	if len(opts.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID},
		}).Handler(handler)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/", s.handleIndexPage).Methods(http.MethodGet)
	r.HandleFunc("/trips/{id}", s.handleTripPage).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.limiter.Middleware(security.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}))

	api.HandleFunc("/currencies", handleCurrencies).Methods(http.MethodGet)
	api.HandleFunc("/settle", s.handleSettle).Methods(http.MethodPost)

	api.HandleFunc("/trips", s.handleCreateTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips", s.handleListTrips).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}", s.handleGetTrip).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}", s.handleDeleteTrip).Methods(http.MethodDelete)
	api.HandleFunc("/trips/{id}/currency", s.handleUpdateCurrency).Methods(http.MethodPut)
	api.HandleFunc("/trips/{id}/data", s.handleClearAll).Methods(http.MethodDelete)

	api.HandleFunc("/trips/{id}/members", s.handleAddMember).Methods(http.MethodPost)
	api.HandleFunc("/trips/{id}/members/{name}", s.handleRemoveMember).Methods(http.MethodDelete)

	api.HandleFunc("/trips/{id}/expenses", s.handleAddExpense).Methods(http.MethodPost)
	api.HandleFunc("/trips/{id}/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/trips/{id}/expenses", s.handleClearExpenses).Methods(http.MethodDelete)
	api.HandleFunc("/trips/{id}/expenses/{expenseID}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/trips/{id}/settlements", s.handleSettlements).Methods(http.MethodGet)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// Metrics exposes request counters from the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.trips.Ping(ctx); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

func handleCurrencies(w http.ResponseWriter, r *http.Request) {
	cs := core.Currencies()
	out := make([]currencyDTO, len(cs))
	for i, c := range cs {
		out[i] = toCurrencyDTO(c)
	}
	NewJSONResponse().Body(out).Write(w)
}
