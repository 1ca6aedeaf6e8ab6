package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and gateways return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record does not exist in the ledger
// - ErrDuplicate: idempotency key already submitted
// - ErrAlreadyVoid: contribution already voided
// - ErrCapExceeded: conditional append rejected; post-append total would breach the cap
// - ErrInvalidState: record in wrong status for the requested transition
// - ErrUnavailable: external collaborator declared failure
// - ErrTimeout: external collaborator outcome unknown
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("duplicate")
	ErrAlreadyVoid  = errors.New("already void")
	ErrCapExceeded  = errors.New("cap exceeded")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrTimeout      = errors.New("timeout")
)
