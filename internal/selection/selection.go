// Package selection holds the operator's currently chosen watering options.
// It is written by the operator panel and the MQTT settings subscriber and
// read by the watering controller once per tick.
package selection

import (
	"fmt"
	"sync"

	"github.com/sweeney/plant-nanny/internal/logic"
)

// Holder is a thread-safe selection snapshot.
type Holder struct {
	mu  sync.RWMutex
	sel logic.Selection
}

// NewHolder creates a Holder seeded from the persisted selection.
func NewHolder(initial logic.Selection) *Holder {
	return &Holder{sel: initial.Clamp()}
}

// Selection returns the current snapshot.
func (h *Holder) Selection() logic.Selection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sel
}

// Set replaces both indices. Out-of-range indices are rejected.
func (h *Holder) Set(sel logic.Selection) error {
	if err := Validate(sel); err != nil {
		return err
	}
	h.mu.Lock()
	h.sel = sel
	h.mu.Unlock()
	return nil
}

// NextDelay advances the delay option, wrapping to the first.
func (h *Holder) NextDelay() logic.Selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sel.DelayIndex = (h.sel.DelayIndex + 1) % len(logic.DelayCatalog)
	return h.sel
}

// NextMoisture advances the moisture target, wrapping to the first.
func (h *Holder) NextMoisture() logic.Selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sel.MoistureIndex = (h.sel.MoistureIndex + 1) % len(logic.MoistureCatalog)
	return h.sel
}

// Validate reports whether both indices are inside their catalogs.
func Validate(sel logic.Selection) error {
	if sel.DelayIndex < 0 || sel.DelayIndex >= len(logic.DelayCatalog) {
		return fmt.Errorf("delay index %d out of range 0..%d", sel.DelayIndex, len(logic.DelayCatalog)-1)
	}
	if sel.MoistureIndex < 0 || sel.MoistureIndex >= len(logic.MoistureCatalog) {
		return fmt.Errorf("moisture index %d out of range 0..%d", sel.MoistureIndex, len(logic.MoistureCatalog)-1)
	}
	return nil
}
