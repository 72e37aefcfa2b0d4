package database

import "errors"

// Set of error variables the callers of this package can check against.
var (
	// ErrNotFound is returned when an account or transaction is absent.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an account name or address is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAmount is returned when a transfer amount is not positive.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrBadPassphrase is returned when a signing key fails to decrypt or
	// authenticate under the provided passphrase.
	ErrBadPassphrase = errors.New("wrong passphrase or corrupt key material")

	// ErrInsufficientBalance is returned when the sender balance can't
	// cover the transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyExecuted is returned when a transaction that already moved
	// funds is submitted for verification again.
	ErrAlreadyExecuted = errors.New("transaction already executed")

	// ErrChainIntegrity is returned when a persisted block fails its hash,
	// linkage, or proof of work check. Mining must stop when this is seen.
	ErrChainIntegrity = errors.New("chain integrity violation")
)
