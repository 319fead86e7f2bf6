package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store or workspace
//   - ErrExpired: a session or cached entry outlived its expiry
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrUnavailable: remote service or backing store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
