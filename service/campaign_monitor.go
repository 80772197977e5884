package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vocdoni/confidential-fundraiser/ledger"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/metrics"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// CampaignStatus is a transition observed by the CampaignMonitor.
type CampaignStatus struct {
	CampaignID uint64
	Active     bool
	Finalized  bool
}

// CampaignMonitor represents a service that polls the ledger and reports
// when the current campaign opens or stops accepting contributions, which
// happens without any transaction once the deadline passes.
type CampaignMonitor struct {
	ledger   *ledger.Ledger
	interval time.Duration
	updates  chan CampaignStatus
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	last     *CampaignStatus
}

// NewCampaignMonitor creates a new CampaignMonitor service.
func NewCampaignMonitor(l *ledger.Ledger, interval time.Duration) *CampaignMonitor {
	return &CampaignMonitor{
		ledger:   l,
		interval: interval,
		updates:  make(chan CampaignStatus, 16),
	}
}

// Updates returns the channel of observed transitions. Updates are dropped
// if nobody reads them.
func (cm *CampaignMonitor) Updates() <-chan CampaignStatus {
	return cm.updates
}

// Start begins monitoring. It returns an error if the service is already
// running.
func (cm *CampaignMonitor) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	ctx, cm.cancel = context.WithCancel(ctx)
	done := make(chan struct{})
	cm.done = done
	go func() {
		defer close(done)
		cm.monitor(ctx)
	}()
	return nil
}

// Stop halts the monitoring service and waits until the last poll is over,
// so the ledger storage can be closed right after.
func (cm *CampaignMonitor) Stop() {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel = nil
	cm.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (cm *CampaignMonitor) monitor(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()
	for {
		cm.check()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// check compares the current campaign with the last observed status.
func (cm *CampaignMonitor) check() {
	snap, err := cm.ledger.Campaign()
	if errors.Is(err, ledger.ErrNotConfigured) {
		return
	}
	if err != nil {
		log.Warnw("failed to read campaign", "error", err.Error())
		return
	}
	status := statusOf(snap)

	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.last != nil && *cm.last == status {
		return
	}
	cm.last = &status
	if status.Active {
		metrics.CampaignActive.Set(1)
	} else {
		metrics.CampaignActive.Set(0)
	}
	switch {
	case status.Active:
		log.Infow("campaign open", "id", status.CampaignID, "ends", snap.End().UTC().String())
	case status.Finalized:
		log.Infow("campaign finalized", "id", status.CampaignID)
	default:
		log.Infow("campaign deadline passed, waiting for the owner to close it", "id", status.CampaignID)
	}
	select {
	case cm.updates <- status:
	default:
	}
}

func statusOf(snap *types.CampaignSnapshot) CampaignStatus {
	return CampaignStatus{
		CampaignID: snap.ID,
		Active:     snap.Active,
		Finalized:  snap.Finalized,
	}
}
