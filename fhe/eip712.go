package fhe

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// DecryptionDomainName and DecryptionDomainVersion identify the EIP-712
	// domain of user decryption authorizations.
	DecryptionDomainName    = "Decryption"
	DecryptionDomainVersion = "1"

	userDecryptPrimaryType = "UserDecryptRequestVerification"
)

// UserDecryptAuthorization is the content a user signs to authorize the
// gateway to reencrypt values for an ephemeral public key.
type UserDecryptAuthorization struct {
	PublicKey         []byte
	ContractAddresses []common.Address
	StartTimestamp    uint64
	DurationDays      uint64
	ExtraData         []byte
}

// TypedData returns the EIP-712 typed data of the authorization for the
// given chain and verifying contract.
func (a *UserDecryptAuthorization) TypedData(chainID uint64, verifyingContract common.Address) apitypes.TypedData {
	contracts := make([]interface{}, len(a.ContractAddresses))
	for i, addr := range a.ContractAddresses {
		contracts[i] = addr.Hex()
	}
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			userDecryptPrimaryType: {
				{Name: "publicKey", Type: "bytes"},
				{Name: "contractAddresses", Type: "address[]"},
				{Name: "startTimestamp", Type: "uint256"},
				{Name: "durationDays", Type: "uint256"},
				{Name: "extraData", Type: "bytes"},
			},
		},
		PrimaryType: userDecryptPrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DecryptionDomainName,
			Version:           DecryptionDomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey":         hexutil.Encode(a.PublicKey),
			"contractAddresses": contracts,
			"startTimestamp":    strconv.FormatUint(a.StartTimestamp, 10),
			"durationDays":      strconv.FormatUint(a.DurationDays, 10),
			"extraData":         hexutil.Encode(a.ExtraData),
		},
	}
}
