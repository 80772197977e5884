package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/api"
	"github.com/vocdoni/confidential-fundraiser/crypto/ethereum"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/types"
)

// Info returns the addresses served by the node.
func (c *HTTPclient) Info(ctx context.Context) (*api.InfoResponse, error) {
	info := &api.InfoResponse{}
	return info, c.call(ctx, HTTPGET, nil, info, nil, api.InfoEndpoint)
}

// Nonce returns the nonce the next signed request of addr must use.
func (c *HTTPclient) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	resp := &api.NonceResponse{}
	if err := c.call(ctx, HTTPGET, nil, resp, nil, "accounts", addr.Hex(), "nonce"); err != nil {
		return 0, err
	}
	return resp.Nonce, nil
}

// signed fetches the nonce of the signer, signs the payload for method
// and posts it to endpoint.
func (c *HTTPclient) signed(ctx context.Context, signer *ethereum.SignKeys, endpoint, method string, payload, out any) error {
	nonce, err := c.Nonce(ctx, signer.Address())
	if err != nil {
		return fmt.Errorf("cannot get nonce: %w", err)
	}
	req, err := api.NewSignedRequest(signer, method, nonce, payload)
	if err != nil {
		return err
	}
	return c.call(ctx, HTTPPOST, req, out, nil, endpoint)
}

// Configure starts a new campaign. The signer must be the ledger owner.
func (c *HTTPclient) Configure(ctx context.Context, signer *ethereum.SignKeys, name string, target, endTime uint64) (*types.Campaign, error) {
	campaign := &types.Campaign{}
	err := c.signed(ctx, signer, api.ConfigureEndpoint, api.MethodConfigure, &api.ConfigureRequest{
		Name:    name,
		Target:  target,
		EndTime: endTime,
	}, campaign)
	return campaign, err
}

// Contribute submits an encrypted contribution to the current campaign.
func (c *HTTPclient) Contribute(ctx context.Context, signer *ethereum.SignKeys, input *types.EncryptedInput) (*api.ContributeResponse, error) {
	resp := &api.ContributeResponse{}
	err := c.signed(ctx, signer, api.ContributeEndpoint, api.MethodContribute, &api.ContributeRequest{Input: input}, resp)
	return resp, err
}

// CloseCampaign finalizes the current campaign. The signer must be the
// ledger owner.
func (c *HTTPclient) CloseCampaign(ctx context.Context, signer *ethereum.SignKeys) (*api.CloseResponse, error) {
	resp := &api.CloseResponse{}
	err := c.signed(ctx, signer, api.CloseEndpoint, api.MethodClose, &struct{}{}, resp)
	return resp, err
}

// Campaign returns the snapshot of the current campaign.
func (c *HTTPclient) Campaign(ctx context.Context) (*types.CampaignSnapshot, error) {
	snap := &types.CampaignSnapshot{}
	return snap, c.call(ctx, HTTPGET, nil, snap, nil, api.CampaignEndpoint)
}

// ActiveCampaignID returns the id of the current campaign.
func (c *HTTPclient) ActiveCampaignID(ctx context.Context) (uint64, error) {
	resp := &api.ActiveCampaignResponse{}
	if err := c.call(ctx, HTTPGET, nil, resp, nil, api.ActiveCampaignEndpoint); err != nil {
		return 0, err
	}
	return resp.CampaignID, nil
}

// IsActive reports whether the current campaign accepts contributions.
func (c *HTTPclient) IsActive(ctx context.Context) (bool, error) {
	resp := &api.CampaignStatusResponse{}
	if err := c.call(ctx, HTTPGET, nil, resp, nil, api.CampaignStatusEndpoint); err != nil {
		return false, err
	}
	return resp.Active, nil
}

// Contribution returns the running total handle of contributor.
func (c *HTTPclient) Contribution(ctx context.Context, campaignID uint64, contributor common.Address) (types.Handle, error) {
	resp := &types.Contribution{}
	err := c.call(ctx, HTTPGET, nil, resp, nil,
		"campaigns", strconv.FormatUint(campaignID, 10), "contributions", contributor.Hex())
	return resp.Total, err
}

// Mint credits amount token units to the signer.
func (c *HTTPclient) Mint(ctx context.Context, signer *ethereum.SignKeys, amount uint64) (types.Handle, error) {
	resp := &api.HandleResponse{}
	err := c.signed(ctx, signer, api.MintEndpoint, api.MethodMint, &api.MintRequest{Amount: amount}, resp)
	return resp.Handle, err
}

// SetOperator approves operator over the funds of the signer until the
// given unix timestamp.
func (c *HTTPclient) SetOperator(ctx context.Context, signer *ethereum.SignKeys, operator common.Address, until uint64) error {
	return c.signed(ctx, signer, api.OperatorEndpoint, api.MethodOperator, &api.OperatorRequest{
		Operator: operator,
		Until:    until,
	}, nil)
}

// Balance returns the token balance handle of holder.
func (c *HTTPclient) Balance(ctx context.Context, holder common.Address) (types.Handle, error) {
	resp := &api.HandleResponse{}
	err := c.call(ctx, HTTPGET, nil, resp, nil, "token", "balances", holder.Hex())
	return resp.Handle, err
}

// NetworkInfo returns the coprocessor public key and the decryption
// authorization domain.
func (c *HTTPclient) NetworkInfo(ctx context.Context) (*fhe.NetworkInfo, error) {
	info := &fhe.NetworkInfo{}
	return info, c.call(ctx, HTTPGET, nil, info, nil, api.NetworkKeyEndpoint)
}

// UserDecrypt forwards a signed decryption request to the gateway of the
// node.
func (c *HTTPclient) UserDecrypt(ctx context.Context, req *fhe.UserDecryptRequest) (*fhe.UserDecryptResponse, error) {
	resp := &fhe.UserDecryptResponse{}
	return resp, c.call(ctx, HTTPPOST, req, resp, nil, api.UserDecryptEndpoint)
}

// Events returns up to limit events starting at sequence number from.
func (c *HTTPclient) Events(ctx context.Context, from uint64, limit int) (*api.EventsResponse, error) {
	resp := &api.EventsResponse{}
	err := c.call(ctx, HTTPGET, nil, resp,
		[]string{"from", strconv.FormatUint(from, 10), "limit", strconv.Itoa(limit)},
		api.EventsEndpoint)
	return resp, err
}
