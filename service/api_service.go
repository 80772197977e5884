package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/confidential-fundraiser/api"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/ledger"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
)

const apiShutdownTimeout = 5 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	storage *storage.Storage
	ledger  *ledger.Ledger
	gateway *fhe.Gateway
	api     *api.API
	mu      sync.Mutex
	cancel  context.CancelFunc
	host    string
	port    int
}

// NewAPI creates a new APIService instance serving the ledger and the
// decryption gateway.
func NewAPI(stg *storage.Storage, l *ledger.Ledger, gw *fhe.Gateway, host string, port int) *APIService {
	return &APIService{
		storage: stg,
		ledger:  l,
		gateway: gw,
		host:    host,
		port:    port,
	}
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to start.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		return fmt.Errorf("service already running")
	}

	var err error
	as.api, err = api.New(&api.APIConfig{
		Host:    as.host,
		Port:    as.port,
		Storage: as.storage,
		Ledger:  as.ledger,
		Gateway: as.gateway,
	})
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	ctx, as.cancel = context.WithCancel(ctx)
	go func(a *api.API) {
		<-ctx.Done()
		closeAPI(a)
	}(as.api)
	return nil
}

// Stop halts the API server. The storage is left open.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.cancel != nil {
		as.cancel()
		as.cancel = nil
		closeAPI(as.api)
	}
}

func closeAPI(a *api.API) {
	ctx, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	return as.host, as.port
}

// URL returns the base URL of the running API server, empty if the
// service never started.
func (as *APIService) URL() string {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.api == nil {
		return ""
	}
	return "http://" + as.api.Addr().String()
}
