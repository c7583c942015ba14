package storage

import "github.com/vectorprofit/collarroll/internal/models"

// Slot names one of the persisted position books. "M" is the main book,
// "R" the rollover book; "T" is the read-only combined view of both and
// is never stored.
type Slot string

const (
	SlotMain     Slot = "M"
	SlotRollover Slot = "R"
	SlotCombined Slot = "T"
)

// Valid reports whether s names a persisted slot.
func (s Slot) Valid() bool {
	return s == SlotMain || s == SlotRollover
}

// Interface defines the contract for position persistence.
//
// Implementations must be safe for concurrent use - callers can assume all
// methods are goroutine-safe and can safely call these methods from
// multiple goroutines.
//
// The provided JSONStorage implementation uses sync.RWMutex to serialize
// access, ensuring all Interface methods are protected for concurrent
// readers and writers.
type Interface interface {
	// LoadSlot returns the position held in a slot; an empty position
	// when the slot has never been written. SlotCombined resolves to the
	// merge of both books.
	LoadSlot(slot Slot) (models.Position, error)

	// SaveSlot persists a position into a slot. SlotCombined is refused.
	SaveSlot(slot Slot, pos models.Position) error

	// ResetSlot empties a slot. SlotCombined is refused.
	ResetSlot(slot Slot) error

	// Combined returns the merged view of both books.
	Combined() (models.Position, error)
}

// NewStorage creates a new storage implementation (currently JSON-based).
func NewStorage(path string) (Interface, error) {
	return NewJSONStorage(path)
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)
