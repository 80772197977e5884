package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the type of a ledger or token event.
type EventKind string

const (
	EventCampaignConfigured   EventKind = "CampaignConfigured"
	EventContributionReceived EventKind = "ContributionReceived"
	EventCampaignClosed       EventKind = "CampaignClosed"
	EventTransfer             EventKind = "ConfidentialTransfer"
	EventOperatorSet          EventKind = "OperatorSet"
	EventMint                 EventKind = "Mint"
)

// Event is a notification emitted by a committed state transition. Only the
// fields relevant to the Kind are set. Amounts of contributions and transfers
// travel as handles, never as plaintext.
type Event struct {
	Seq         uint64          `json:"seq"                   cbor:"0,keyasint,omitempty"`
	Kind        EventKind       `json:"kind"                  cbor:"1,keyasint,omitempty"`
	Timestamp   uint64          `json:"timestamp"             cbor:"2,keyasint,omitempty"`
	CampaignID  uint64          `json:"campaignId,omitempty"  cbor:"3,keyasint,omitempty"`
	Name        string          `json:"name,omitempty"        cbor:"4,keyasint,omitempty"`
	Target      uint64          `json:"target,omitempty"      cbor:"5,keyasint,omitempty"`
	EndTime     uint64          `json:"endTime,omitempty"     cbor:"6,keyasint,omitempty"`
	From        *common.Address `json:"from,omitempty"        cbor:"7,keyasint,omitempty"`
	To          *common.Address `json:"to,omitempty"          cbor:"8,keyasint,omitempty"`
	Handle      *Handle         `json:"handle,omitempty"      cbor:"9,keyasint,omitempty"`
	Amount      uint64          `json:"amount,omitempty"      cbor:"10,keyasint,omitempty"`
	Until       uint64          `json:"until,omitempty"       cbor:"11,keyasint,omitempty"`
}

func (e *Event) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}
