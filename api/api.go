package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/ledger"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/metrics"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/token"
)

// RequestIDHeader carries the id assigned to every API request.
const RequestIDHeader = "X-Request-Id"

// APIConfig type represents the configuration for the API HTTP server.
// It includes the host, port and the components it serves.
type APIConfig struct {
	Host    string
	Port    int
	Storage *storage.Storage
	Ledger  *ledger.Ledger
	Gateway *fhe.Gateway
}

// API type represents the API HTTP server of the node.
type API struct {
	router   *chi.Mux
	storage  *storage.Storage
	ledger   *ledger.Ledger
	token    *token.Token
	gateway  *fhe.Gateway
	server   *http.Server
	listener net.Listener
	closed   sync.Once
}

// New creates a new API instance with the given configuration and starts
// the HTTP server. Port 0 lets the system pick a free port, see Addr.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if conf.Ledger == nil || conf.Gateway == nil {
		return nil, fmt.Errorf("missing ledger or gateway instance")
	}
	a := &API{
		storage: conf.Storage,
		ledger:  conf.Ledger,
		token:   conf.Ledger.Token(),
		gateway: conf.Gateway,
	}
	a.initRouter()

	listener, err := net.Listen("tcp", net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)))
	if err != nil {
		return nil, fmt.Errorf("cannot listen: %w", err)
	}
	a.listener = listener
	a.server = &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "address", listener.Addr().String())
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// Addr returns the address the server listens on.
func (a *API) Addr() net.Addr {
	return a.listener.Addr()
}

// Close stops the HTTP server, waiting for in-flight requests until ctx
// is done. Calls after the first one are no-ops.
func (a *API) Close(ctx context.Context) error {
	var err error
	a.closed.Do(func() {
		err = a.server.Shutdown(ctx)
	})
	return err
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	get := func(endpoint string, h http.HandlerFunc) {
		log.Debugw("register handler", "endpoint", endpoint, "method", "GET")
		a.router.Get(endpoint, h)
	}
	post := func(endpoint string, h http.HandlerFunc) {
		log.Debugw("register handler", "endpoint", endpoint, "method", "POST")
		a.router.Post(endpoint, h)
	}

	get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	a.router.Handle(MetricsEndpoint, metrics.Handler())
	get(InfoEndpoint, a.info)

	get(NetworkKeyEndpoint, a.networkKey)
	post(UserDecryptEndpoint, a.userDecrypt)
	get(NonceEndpoint, a.nonce)

	get(CampaignEndpoint, a.campaign)
	post(ConfigureEndpoint, a.configure)
	post(ContributeEndpoint, a.contribute)
	post(CloseEndpoint, a.closeCampaign)
	get(ActiveCampaignEndpoint, a.activeCampaign)
	get(CampaignStatusEndpoint, a.campaignStatus)
	get(ContributionEndpoint, a.contribution)

	post(MintEndpoint, a.mint)
	post(OperatorEndpoint, a.setOperator)
	get(BalanceEndpoint, a.balance)

	get(EventsEndpoint, a.events)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(requestID)
	a.router.Use(countRequests)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}

// requestID tags every response with a random request id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

// countRequests feeds the API request counter.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	})
}
