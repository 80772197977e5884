// Package metrics holds the prometheus collectors of the node.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vocdoni/confidential-fundraiser/types"
)

const namespace = "fundraiser"

var (
	CampaignsConfigured = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "campaigns_configured_total",
		Help:      "Number of campaigns configured.",
	})
	CampaignsClosed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "campaigns_closed_total",
		Help:      "Number of campaigns closed.",
	})
	Contributions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contributions_total",
		Help:      "Number of accepted contributions.",
	})
	Transfers = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_transfers_total",
		Help:      "Number of confidential token transfers.",
	})
	LastEventSeq = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_event_seq",
		Help:      "Sequence number of the last published event.",
	})
	CampaignActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "campaign_active",
		Help:      "1 while the current campaign accepts contributions.",
	})
	DecryptionRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decryption_requests_total",
		Help:      "User decryption requests served by the gateway, by outcome.",
	}, []string{"outcome"})
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "HTTP API requests, by method and status code.",
	}, []string{"method", "code"})
)

var registerOnce sync.Once

// Register adds the collectors to the default prometheus registry. It can
// be called any number of times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CampaignsConfigured,
			CampaignsClosed,
			Contributions,
			Transfers,
			LastEventSeq,
			CampaignActive,
			DecryptionRequests,
			APIRequests,
		)
	})
}

// Handler serves the default registry in the prometheus text format.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// ObserveEvent updates the counters for a committed event.
func ObserveEvent(ev *types.Event) {
	switch ev.Kind {
	case types.EventCampaignConfigured:
		CampaignsConfigured.Inc()
	case types.EventCampaignClosed:
		CampaignsClosed.Inc()
	case types.EventContributionReceived:
		Contributions.Inc()
	case types.EventTransfer:
		Transfers.Inc()
	}
	LastEventSeq.Set(float64(ev.Seq))
}

// ObserveDecryption counts a gateway decryption request.
func ObserveDecryption(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "denied"
	}
	DecryptionRequests.WithLabelValues(outcome).Inc()
}
