package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// MetricsEndpoint serves the prometheus metrics
	MetricsEndpoint = "/metrics"
	// InfoEndpoint returns the addresses the node serves
	InfoEndpoint = "/info"

	// NetworkKeyEndpoint returns the coprocessor public key and the
	// decryption authorization domain
	NetworkKeyEndpoint = "/fhe/pubkey"
	// UserDecryptEndpoint is the gateway user decryption endpoint
	UserDecryptEndpoint = "/fhe/decrypt"

	AddressURLParam = "address"
	// NonceEndpoint returns the next nonce of an account
	NonceEndpoint = "/accounts/{" + AddressURLParam + "}/nonce"

	// CampaignEndpoint returns the current campaign
	CampaignEndpoint = "/campaign"
	// ConfigureEndpoint starts a new campaign (owner only)
	ConfigureEndpoint = "/campaign/configure"
	// ContributeEndpoint submits an encrypted contribution
	ContributeEndpoint = "/campaign/contribute"
	// CloseEndpoint finalizes the current campaign (owner only)
	CloseEndpoint = "/campaign/close"
	// ActiveCampaignEndpoint returns the id of the current campaign
	ActiveCampaignEndpoint = "/campaign/active"
	// CampaignStatusEndpoint reports whether the current campaign accepts
	// contributions
	CampaignStatusEndpoint = "/campaign/status"

	CampaignURLParam = "campaignId"
	// ContributionEndpoint returns the contribution record of an address
	ContributionEndpoint = "/campaigns/{" + CampaignURLParam + "}/contributions/{" + AddressURLParam + "}"

	// MintEndpoint mints tokens to the sender
	MintEndpoint = "/token/mint"
	// OperatorEndpoint authorizes an operator over the sender balance
	OperatorEndpoint = "/token/operator"
	// BalanceEndpoint returns the balance handle of an address
	BalanceEndpoint = "/token/balances/{" + AddressURLParam + "}"

	// EventsEndpoint returns a page of the event log. Query parameters:
	// from (first sequence number) and limit.
	EventsEndpoint = "/events"
)

// Methods signed inside the request envelope of each mutation.
const (
	MethodConfigure  = "configure"
	MethodContribute = "contribute"
	MethodClose      = "close"
	MethodMint       = "mint"
	MethodOperator   = "operator"
)
