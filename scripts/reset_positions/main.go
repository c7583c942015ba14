// reset_positions - Inspect or wipe position slots in positions.json
// Useful after an expiration passes or when starting a rollover cycle
// from a clean slate.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/vectorprofit/collarroll/internal/storage"
)

func main() {
	storagePath := flag.String("storage", "positions.json", "Path to positions file")
	slotName := flag.String("slot", "", "Slot to reset: M, R, or 'all' (empty just prints)")
	flag.Parse()

	store, err := storage.NewStorage(*storagePath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	switch strings.ToUpper(*slotName) {
	case "":
		// Inspection only.
	case "ALL":
		for _, slot := range []storage.Slot{storage.SlotMain, storage.SlotRollover} {
			if err := store.ResetSlot(slot); err != nil {
				log.Fatalf("Failed to reset slot %s: %v", slot, err)
			}
			fmt.Printf("Slot %s reset\n", slot)
		}
	default:
		slot := storage.Slot(strings.ToUpper(*slotName))
		if err := store.ResetSlot(slot); err != nil {
			log.Fatalf("Failed to reset slot %s: %v", slot, err)
		}
		fmt.Printf("Slot %s reset\n", slot)
	}

	for _, slot := range []storage.Slot{storage.SlotMain, storage.SlotRollover} {
		pos, err := store.LoadSlot(slot)
		if err != nil {
			log.Fatalf("Failed to load slot %s: %v", slot, err)
		}
		if pos.Empty() {
			fmt.Printf("Slot %s: empty\n", slot)
			continue
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		fmt.Printf("Slot %s:\n", slot)
		if err := enc.Encode(pos); err != nil {
			log.Fatalf("Failed to encode position: %v", err)
		}
	}
}
