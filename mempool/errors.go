package mempool

import "errors"

var (
	// ErrDuplicateTransaction is returned when a transaction with the same
	// signature is already pooled (spec.md §4.5 admission gate).
	ErrDuplicateTransaction = errors.New("mempool: transaction already pooled")

	// ErrUnknownSender is returned when from is neither the mint account nor
	// a known world-state account (spec.md §4.5 admission gate).
	ErrUnknownSender = errors.New("mempool: unknown sender account")
)
