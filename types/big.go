package types

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt is a big.Int wrapper which marshals JSON to a string representation
// of the big number.
type BigInt big.Int

// MarshalText returns the decimal representation of the number.
func (i BigInt) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses a decimal number.
func (i *BigInt) UnmarshalText(data []byte) error {
	if _, ok := i.MathBigInt().SetString(string(data), 0); !ok {
		return fmt.Errorf("wrong format for bigInt: %q", data)
	}
	return nil
}

// UnmarshalJSON accepts both a JSON string and a JSON number.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	return i.UnmarshalText([]byte(s))
}

// MarshalCBOR encodes the number as a CBOR bignum.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(i.MathBigInt())
}

// UnmarshalCBOR decodes a CBOR bignum.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	bi := new(big.Int)
	if err := cbor.Unmarshal(data, bi); err != nil {
		return err
	}
	i.MathBigInt().Set(bi)
	return nil
}

func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// MathBigInt converts the BigInt to a *big.Int, sharing its memory.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}
