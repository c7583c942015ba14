package storage

import (
	"fmt"

	"github.com/vectorprofit/collarroll/internal/models"
)

// MockStorage implements Interface for testing.
type MockStorage struct {
	positions     map[Slot]models.Position
	saveError     error
	loadError     error
	saveCallCount int
}

// NewMockStorage creates a new mock storage for testing.
func NewMockStorage() *MockStorage {
	return &MockStorage{positions: make(map[Slot]models.Position)}
}

func (m *MockStorage) LoadSlot(slot Slot) (models.Position, error) {
	if m.loadError != nil {
		return models.Position{}, m.loadError
	}
	if slot == SlotCombined {
		return m.Combined()
	}
	if !slot.Valid() {
		return models.Position{}, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	return m.positions[slot], nil
}

func (m *MockStorage) SaveSlot(slot Slot, pos models.Position) error {
	m.saveCallCount++
	if m.saveError != nil {
		return m.saveError
	}
	if slot == SlotCombined {
		return ErrCombinedReadOnly
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	m.positions[slot] = pos
	return nil
}

func (m *MockStorage) ResetSlot(slot Slot) error {
	if m.saveError != nil {
		return m.saveError
	}
	if slot == SlotCombined {
		return ErrCombinedReadOnly
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	delete(m.positions, slot)
	return nil
}

func (m *MockStorage) Combined() (models.Position, error) {
	return models.Combine(m.positions[SlotMain], m.positions[SlotRollover]), nil
}

// Mock control methods for testing

func (m *MockStorage) SetSaveError(err error) { m.saveError = err }
func (m *MockStorage) SetLoadError(err error) { m.loadError = err }
func (m *MockStorage) SaveCallCount() int     { return m.saveCallCount }

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)
