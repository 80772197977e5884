package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// SignedRequest is the envelope of every mutation. Payload is the JSON
// encoded request of the method and Signature the EIP-191 signature of
// From over SignatureMessage(method, Payload, Nonce).
type SignedRequest struct {
	From      common.Address  `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Payload   json.RawMessage `json:"payload"`
	Signature types.HexBytes  `json:"signature"`
}

// InfoResponse describes the contracts served by the node.
type InfoResponse struct {
	Ledger  common.Address `json:"ledgerAddress"`
	Token   common.Address `json:"tokenAddress"`
	Owner   common.Address `json:"ownerAddress"`
	ChainID uint64         `json:"chainId"`
}

// NonceResponse carries the nonce the next request of an account must use.
type NonceResponse struct {
	Nonce uint64 `json:"nonce"`
}

// ConfigureRequest is the payload of MethodConfigure. Target is expressed
// in token units.
type ConfigureRequest struct {
	Name    string `json:"name"`
	Target  uint64 `json:"target"`
	EndTime uint64 `json:"endTime"`
}

// ContributeRequest is the payload of MethodContribute.
type ContributeRequest struct {
	Input *types.EncryptedInput `json:"input"`
}

// ContributeResponse returns the running total of the contributor.
type ContributeResponse struct {
	CampaignID uint64       `json:"campaignId"`
	Handle     types.Handle `json:"handle"`
}

// CloseResponse returns the finalized campaign and the handle of the
// amount paid out to the owner.
type CloseResponse struct {
	Campaign *types.Campaign `json:"campaign"`
	Payout   types.Handle    `json:"payout"`
}

// MintRequest is the payload of MethodMint. Tokens go to the sender.
type MintRequest struct {
	Amount uint64 `json:"amount"`
}

// OperatorRequest is the payload of MethodOperator.
type OperatorRequest struct {
	Operator common.Address `json:"operator"`
	Until    uint64         `json:"until"`
}

// HandleResponse carries a single ciphertext handle.
type HandleResponse struct {
	Handle types.Handle `json:"handle"`
}

// ActiveCampaignResponse carries the id of the current campaign.
type ActiveCampaignResponse struct {
	CampaignID uint64 `json:"campaignId"`
}

// CampaignStatusResponse reports whether the current campaign accepts
// contributions.
type CampaignStatusResponse struct {
	Active bool `json:"active"`
}

// EventsResponse is a page of the event log. Last is the sequence number
// of the newest event stored.
type EventsResponse struct {
	Events []*types.Event `json:"events"`
	Last   uint64         `json:"last"`
}
