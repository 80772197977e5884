package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/vocdoni/confidential-fundraiser/config"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/ledger"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/metrics"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/token"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

// DefaultMonitorInterval is the period of the campaign monitor of a Node.
const DefaultMonitorInterval = 5 * time.Second

// Node runs a complete fundraiser: storage, coprocessor, payment token,
// campaign ledger, decryption gateway, API and campaign monitor.
type Node struct {
	conf  *config.Config
	clock util.Clock

	mu      sync.Mutex
	storage *storage.Storage
	ledger  *ledger.Ledger
	gateway *fhe.Gateway
	api     *APIService
	monitor *CampaignMonitor
}

// NewNode returns a node for the configuration. A nil clock reads the
// system time.
func NewNode(conf *config.Config, clock util.Clock) *Node {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Node{conf: conf, clock: clock}
}

// Start opens the storage, builds the components and starts the API and
// the campaign monitor.
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.storage != nil {
		return fmt.Errorf("service already running")
	}
	if err := n.conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	metrics.Register()

	stg, err := storage.Open(n.conf.DBType, filepath.Join(n.conf.DataDir, "db"))
	if err != nil {
		return err
	}
	key, err := fhe.NetworkKey(stg, n.conf.NetworkKey)
	if err != nil {
		stg.Close()
		return fmt.Errorf("cannot load network key: %w", err)
	}
	cop := fhe.New(key, n.conf.MaxPlaintext)
	tok := token.New(n.conf.TokenAddress, cop, n.clock)
	l, err := ledger.New(stg, cop, tok, ledger.Config{
		Owner:    n.conf.OwnerAddress,
		Address:  n.conf.LedgerAddress,
		Clock:    n.clock,
		Observer: ledger.ObserverFunc(publish),
	})
	if err != nil {
		stg.Close()
		return err
	}
	gw := fhe.NewGateway(stg, cop, n.conf.GatewayChainID, n.conf.LedgerAddress, n.clock)

	apiService := NewAPI(stg, l, gw, n.conf.Host, n.conf.Port)
	if err := apiService.Start(ctx); err != nil {
		stg.Close()
		return err
	}
	monitor := NewCampaignMonitor(l, DefaultMonitorInterval)
	if err := monitor.Start(ctx); err != nil {
		apiService.Stop()
		stg.Close()
		return err
	}

	n.storage, n.ledger, n.gateway = stg, l, gw
	n.api, n.monitor = apiService, monitor
	log.Infow("node started",
		"ledger", n.conf.LedgerAddress.Hex(),
		"token", n.conf.TokenAddress.Hex(),
		"owner", n.conf.OwnerAddress.Hex(),
		"api", apiService.URL())
	return nil
}

// Stop halts the services and closes the storage.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.storage == nil {
		return
	}
	n.monitor.Stop()
	n.api.Stop()
	n.storage.Close()
	n.storage = nil
	log.Infow("node stopped")
}

// URL returns the base URL of the API, empty if the node is not running.
func (n *Node) URL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api == nil {
		return ""
	}
	return n.api.URL()
}

// Ledger returns the campaign ledger, nil if the node is not running.
func (n *Node) Ledger() *ledger.Ledger {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ledger
}

// publish is the ledger observer of the node.
func publish(ev *types.Event) {
	metrics.ObserveEvent(ev)
	log.Infow("event", "seq", ev.Seq, "kind", string(ev.Kind), "campaign", ev.CampaignID)
}
