// Package storage persists the two position books as a single JSON file.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vectorprofit/collarroll/internal/models"
)

// JSONStorage keeps both books in memory and mirrors every mutation to
// disk with a temp-file write followed by an atomic rename.
type JSONStorage struct {
	mu   sync.RWMutex
	path string
	data *storageData
}

type storageData struct {
	Main        *models.Position `json:"main_position,omitempty"`
	Rollover    *models.Position `json:"rollover_position,omitempty"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NewJSONStorage opens the store at path, loading existing data when the
// file is present.
func NewJSONStorage(path string) (*JSONStorage, error) {
	s := &JSONStorage{
		path: path,
		data: &storageData{},
	}
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}
	return s, nil
}

func (s *JSONStorage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, s.data)
}

// save writes the store to disk. Callers must hold the write lock.
func (s *JSONStorage) save() error {
	s.data.LastUpdated = time.Now()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONStorage) slotRef(slot Slot) **models.Position {
	if slot == SlotMain {
		return &s.data.Main
	}
	return &s.data.Rollover
}

// LoadSlot returns the position in a slot, or an empty position when the
// slot holds nothing. SlotCombined resolves to the merged view.
func (s *JSONStorage) LoadSlot(slot Slot) (models.Position, error) {
	if slot == SlotCombined {
		return s.Combined()
	}
	if !slot.Valid() {
		return models.Position{}, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref := *s.slotRef(slot); ref != nil {
		return *ref, nil
	}
	return models.Position{}, nil
}

// SaveSlot persists a position into a slot and flushes to disk.
func (s *JSONStorage) SaveSlot(slot Slot, pos models.Position) error {
	if slot == SlotCombined {
		return ErrCombinedReadOnly
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*s.slotRef(slot) = &pos
	return s.save()
}

// ResetSlot empties a slot and flushes to disk.
func (s *JSONStorage) ResetSlot(slot Slot) error {
	if slot == SlotCombined {
		return ErrCombinedReadOnly
	}
	if !slot.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*s.slotRef(slot) = nil
	return s.save()
}

// Combined returns the merged view of both books.
func (s *JSONStorage) Combined() (models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var main, roll models.Position
	if s.data.Main != nil {
		main = *s.data.Main
	}
	if s.data.Rollover != nil {
		roll = *s.data.Rollover
	}
	return models.Combine(main, roll), nil
}
