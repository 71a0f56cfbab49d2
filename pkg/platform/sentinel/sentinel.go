package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, vaults, and the
// capability fabric return these (optionally wrapped) so services can
// translate them into coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store or container
// - ErrExpired: name rental period has lapsed
// - ErrInsufficientFunds: vault balance below requested withdrawal
// - ErrRevoked: capability grant has been revoked
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors
// directly.
var (
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("expired")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRevoked           = errors.New("revoked")
	ErrInvalidState      = errors.New("invalid state")
	ErrUnavailable       = errors.New("unavailable")
)
