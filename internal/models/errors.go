package models

import "errors"

// ErrAssetMismatch is returned when an operation would mix positions or
// option pairs with different underlying symbols.
var ErrAssetMismatch = errors.New("underlying asset mismatch")

// ErrUnwindExceedsPosition is returned when a requested unwind quantity is
// larger than the corresponding held leg.
var ErrUnwindExceedsPosition = errors.New("unwind quantity exceeds held position")

// ErrInvalidInput is returned when user-supplied quantities or prices do
// not parse or violate their sign constraints.
var ErrInvalidInput = errors.New("invalid input")
