package types

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Campaign is a fundraising round. The ID 0 is never a valid campaign.
type Campaign struct {
	ID        uint64 `json:"id"        cbor:"0,keyasint,omitempty"`
	Name      string `json:"name"      cbor:"1,keyasint,omitempty"`
	Target    uint64 `json:"target"    cbor:"2,keyasint,omitempty"`
	EndTime   uint64 `json:"endTime"   cbor:"3,keyasint,omitempty"`
	Finalized bool   `json:"finalized" cbor:"4,keyasint,omitempty"`
	Total     Handle `json:"total"     cbor:"5,keyasint"`
}

// End returns the end timestamp as a time.Time.
func (c *Campaign) End() time.Time {
	return time.Unix(int64(c.EndTime), 0)
}

// AcceptsContributions reports whether the campaign is open at the given
// time: not finalized and strictly before the end timestamp.
func (c *Campaign) AcceptsContributions(now time.Time) bool {
	return c != nil && c.ID != 0 && !c.Finalized && uint64(now.Unix()) < c.EndTime
}

func (c *Campaign) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

// Contribution is the ledger entry of a contributor in a campaign: the
// encrypted running sum of all the amounts contributed.
type Contribution struct {
	CampaignID  uint64         `json:"campaignId"  cbor:"0,keyasint,omitempty"`
	Contributor common.Address `json:"contributor" cbor:"1,keyasint"`
	Total       Handle         `json:"total"       cbor:"2,keyasint"`
}

// EncryptedInput is a client-side encrypted amount together with the proof
// that binds it to a target contract and a caller.
type EncryptedInput struct {
	Ciphertext HexBytes `json:"ciphertext"`
	Proof      HexBytes `json:"proof"`
}

// CampaignSnapshot is the public view of the current campaign: its record,
// whether it currently accepts contributions and the root of the
// contributions state tree.
type CampaignSnapshot struct {
	*Campaign
	Active    bool     `json:"active"`
	StateRoot HexBytes `json:"stateRoot"`
}
