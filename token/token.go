// Package token implements the confidential payment token: balances are
// ciphertext handles, transfers never reveal amounts, and holders may
// approve time-boxed operators to move funds on their behalf.
//
// The total supply is capped to the largest plaintext the coprocessor can
// decrypt. Every balance is bounded by the supply, so no credit can ever
// push a balance out of the decodable range.
package token

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/confidential-fundraiser/fhe"
	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/storage"
	"github.com/vocdoni/confidential-fundraiser/types"
	"github.com/vocdoni/confidential-fundraiser/util"
)

var (
	// ErrNotOperator is returned when a spender moves funds of a holder
	// without a valid operator approval.
	ErrNotOperator = errors.New("spender is not an operator of the holder")
	// ErrZeroAddress is returned when the zero address is used as holder.
	ErrZeroAddress = errors.New("zero address")
	// ErrSupplyExceeded is returned when a mint would take the total supply
	// above the largest decryptable plaintext.
	ErrSupplyExceeded = errors.New("total supply exceeded")
)

// Token is a confidential balance ledger living at address.
type Token struct {
	address common.Address
	cop     *fhe.Coprocessor
	clock   util.Clock
}

// New returns the token at address, evaluating balances with the
// coprocessor.
func New(address common.Address, cop *fhe.Coprocessor, clock util.Clock) *Token {
	if clock == nil {
		clock = util.SystemClock{}
	}
	return &Token{address: address, cop: cop, clock: clock}
}

// Address returns the token identity.
func (t *Token) Address() common.Address {
	return t.address
}

// Mint credits a plaintext amount to the encrypted balance of to and
// returns the new balance handle.
func (t *Token) Mint(tx *storage.Tx, to common.Address, amount uint64) (types.Handle, error) {
	if to == (common.Address{}) {
		return types.Handle{}, ErrZeroAddress
	}
	supply, err := tx.TotalSupply(t.address)
	if err != nil {
		return types.Handle{}, err
	}
	if max := t.cop.MaxPlaintext(); amount > max || supply > max-amount {
		return types.Handle{}, fmt.Errorf("%w: %d minted, %d requested, cap %d", ErrSupplyExceeded, supply, amount, max)
	}
	if err := tx.SetTotalSupply(t.address, supply+amount); err != nil {
		return types.Handle{}, err
	}
	minted, err := t.cop.TrivialEncrypt(tx, amount, t.address)
	if err != nil {
		return types.Handle{}, err
	}
	balance, err := tx.Balance(t.address, to)
	if err != nil {
		return types.Handle{}, err
	}
	newBalance, err := t.cop.Add(tx, balance, minted, t.address)
	if err != nil {
		return types.Handle{}, err
	}
	if err := t.setBalance(tx, to, newBalance); err != nil {
		return types.Handle{}, err
	}
	tx.Emit(&types.Event{
		Kind:      types.EventMint,
		Timestamp: t.now(),
		To:        &to,
		Amount:    amount,
		Handle:    &newBalance,
	})
	log.Debugw("minted", "to", to.Hex(), "amount", amount)
	return newBalance, nil
}

// TotalSupply returns the plaintext amount minted so far.
func (t *Token) TotalSupply(tx *storage.Tx) (uint64, error) {
	return tx.TotalSupply(t.address)
}

// SetOperator approves operator to move the funds of holder until the
// given unix timestamp (inclusive). A past timestamp revokes the approval.
func (t *Token) SetOperator(tx *storage.Tx, holder, operator common.Address, until uint64) error {
	if holder == (common.Address{}) || operator == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := tx.SetOperator(t.address, holder, operator, until); err != nil {
		return err
	}
	tx.Emit(&types.Event{
		Kind:      types.EventOperatorSet,
		Timestamp: t.now(),
		From:      &holder,
		To:        &operator,
		Until:     until,
	})
	return nil
}

// IsOperator reports whether spender may move the funds of holder now. A
// holder is always an operator of itself.
func (t *Token) IsOperator(tx *storage.Tx, holder, spender common.Address) (bool, error) {
	if holder == spender {
		return true, nil
	}
	until, err := tx.Operator(t.address, holder, spender)
	if err != nil {
		return false, err
	}
	return t.now() <= until, nil
}

// ConfidentialBalanceOf returns the encrypted balance handle of holder, the
// zero handle if it never held funds.
func (t *Token) ConfidentialBalanceOf(tx *storage.Tx, holder common.Address) (types.Handle, error) {
	return tx.Balance(t.address, holder)
}

// ConfidentialTransfer moves the encrypted amount from the caller to to.
// The amount handle must be usable by both the caller and the token. It
// returns the handle of the amount actually transferred.
func (t *Token) ConfidentialTransfer(tx *storage.Tx, from, to common.Address, amount types.Handle) (types.Handle, error) {
	if err := t.checkAmount(tx, amount, from); err != nil {
		return types.Handle{}, err
	}
	return t.transfer(tx, from, to, amount, from)
}

// ConfidentialTransferFrom moves the encrypted amount from from to to on
// behalf of spender, which must be an operator of from.
func (t *Token) ConfidentialTransferFrom(tx *storage.Tx, spender, from, to common.Address, amount types.Handle) (types.Handle, error) {
	ok, err := t.IsOperator(tx, from, spender)
	if err != nil {
		return types.Handle{}, err
	}
	if !ok {
		return types.Handle{}, fmt.Errorf("%w: %s for %s", ErrNotOperator, spender.Hex(), from.Hex())
	}
	if err := t.checkAmount(tx, amount, spender); err != nil {
		return types.Handle{}, err
	}
	return t.transfer(tx, from, to, amount, spender)
}

// ConfidentialTransferAll moves the whole balance of from to to. It never
// decrypts the balance and returns the handle of the moved amount,
// transiently usable by from.
func (t *Token) ConfidentialTransferAll(tx *storage.Tx, from, to common.Address) (types.Handle, error) {
	if from == (common.Address{}) || to == (common.Address{}) {
		return types.Handle{}, ErrZeroAddress
	}
	fromBalance, err := tx.Balance(t.address, from)
	if err != nil {
		return types.Handle{}, err
	}
	newFrom, moved, err := t.cop.Drain(tx, fromBalance, t.address)
	if err != nil {
		return types.Handle{}, err
	}
	if err := t.setBalance(tx, from, newFrom); err != nil {
		return types.Handle{}, err
	}
	if err := t.credit(tx, from, to, moved, from); err != nil {
		return types.Handle{}, err
	}
	return moved, nil
}

// transfer moves amount if the balance of from covers it, an encrypted
// zero otherwise. The moved handle is readable by both parties and
// transiently usable by caller.
func (t *Token) transfer(tx *storage.Tx, from, to common.Address, amount types.Handle, caller common.Address) (types.Handle, error) {
	if from == (common.Address{}) || to == (common.Address{}) {
		return types.Handle{}, ErrZeroAddress
	}
	fromBalance, err := tx.Balance(t.address, from)
	if err != nil {
		return types.Handle{}, err
	}
	newFrom, moved, err := t.cop.TryDecrease(tx, fromBalance, amount, t.address)
	if err != nil {
		return types.Handle{}, err
	}
	if err := t.setBalance(tx, from, newFrom); err != nil {
		return types.Handle{}, err
	}
	if err := t.credit(tx, from, to, moved, caller); err != nil {
		return types.Handle{}, err
	}
	return moved, nil
}

// credit adds moved to the balance of to. The moved handle becomes readable
// by both parties and transiently usable by caller.
func (t *Token) credit(tx *storage.Tx, from, to common.Address, moved types.Handle, caller common.Address) error {
	toBalance, err := tx.Balance(t.address, to)
	if err != nil {
		return err
	}
	newTo, err := t.cop.Add(tx, toBalance, moved, t.address)
	if err != nil {
		return err
	}
	if err := t.setBalance(tx, to, newTo); err != nil {
		return err
	}
	for _, addr := range []common.Address{t.address, from, to} {
		if err := t.cop.Allow(tx, moved, addr); err != nil {
			return err
		}
	}
	t.cop.AllowTransient(tx, moved, caller)
	tx.Emit(&types.Event{
		Kind:      types.EventTransfer,
		Timestamp: t.now(),
		From:      &from,
		To:        &to,
		Handle:    &moved,
	})
	return nil
}

// checkAmount ensures both the caller and the token may use the amount.
func (t *Token) checkAmount(tx *storage.Tx, amount types.Handle, caller common.Address) error {
	for _, addr := range []common.Address{caller, t.address} {
		ok, err := t.cop.IsAllowed(tx, amount, addr)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s on %s", fhe.ErrNotAllowed, addr.Hex(), amount)
		}
	}
	return nil
}

// setBalance stores the new balance and grants the token and the holder
// persistent access to it.
func (t *Token) setBalance(tx *storage.Tx, holder common.Address, h types.Handle) error {
	if err := t.cop.Allow(tx, h, t.address); err != nil {
		return err
	}
	if err := t.cop.Allow(tx, h, holder); err != nil {
		return err
	}
	return tx.SetBalance(t.address, holder, h)
}

func (t *Token) now() uint64 {
	return uint64(t.clock.Now().Unix())
}
