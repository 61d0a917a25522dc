package batch

import "errors"

// Sentinel errors. Every failure returned by the Builder wraps exactly one
// of these; match with errors.Is.
var (
	ErrInsufficientBalance = errors.New("popbatch: insufficient balance")
	ErrUnsupportedRoute    = errors.New("popbatch: unsupported route")
	ErrReadFailure         = errors.New("popbatch: ledger read failed")
	ErrEncoding            = errors.New("popbatch: call encoding failed")
	ErrInvalidIntent       = errors.New("popbatch: invalid intent")

	// ErrChainNotConfigured is wrapped by Ledger implementations when they
	// have no endpoint for the requested chain. The Builder reports it as
	// ErrUnsupportedRoute rather than ErrReadFailure.
	ErrChainNotConfigured = errors.New("popbatch: no client for chain")

	// Submission side.
	ErrEmptyPlan = errors.New("popbatch: plan has no steps")
	ErrReverted  = errors.New("popbatch: user operation reverted")
)
