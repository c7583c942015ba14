package storage

import "errors"

// ErrUnknownSlot is returned for a slot name outside the two books.
var ErrUnknownSlot = errors.New("unknown position slot")

// ErrCombinedReadOnly is returned when a write targets the combined view.
var ErrCombinedReadOnly = errors.New("combined view is read-only")
