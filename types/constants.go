package types

const (
	// AmountDecimals is the number of fractional digits of every plaintext
	// amount handled by the token and the ledger.
	AmountDecimals = 6
	// HandleSize is the size in bytes of a ciphertext handle.
	HandleSize = 32
	// StateTreeMaxLevels is the maximum number of levels in the contributions
	// state merkle tree.
	StateTreeMaxLevels = 160
	// StateKeyMaxLen is the maximum length of a state tree key in bytes.
	StateKeyMaxLen = StateTreeMaxLevels / 8
	// MaxDecryptionDays is the longest validity window accepted for a user
	// decryption authorization.
	MaxDecryptionDays = 365
)
