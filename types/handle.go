package types

import (
	"encoding/hex"
	"fmt"

	"github.com/vocdoni/confidential-fundraiser/util"
)

// Handle is the opaque reference to a ciphertext registered in the FHE
// coprocessor. The zero handle means "no ciphertext" (an uninitialized
// encrypted value).
type Handle [HandleSize]byte

// HandleFromBytes copies b into a Handle. It fails if b is not exactly
// HandleSize bytes long.
func HandleFromBytes(b []byte) (Handle, error) {
	var h Handle
	if len(b) != HandleSize {
		return h, fmt.Errorf("invalid handle length: got %d bytes, expected %d", len(b), HandleSize)
	}
	copy(h[:], b)
	return h, nil
}

// HandleFromHex parses a hex encoded handle, with or without 0x prefix.
func HandleFromHex(s string) (Handle, error) {
	b, err := hex.DecodeString(util.TrimHex(s))
	if err != nil {
		return Handle{}, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	return HandleFromBytes(b)
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Bytes returns the handle as a byte slice.
func (h Handle) Bytes() []byte {
	return h[:]
}

// String returns the 0x prefixed hex representation of the handle.
func (h Handle) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Handle) UnmarshalText(data []byte) error {
	parsed, err := HandleFromHex(string(data))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
