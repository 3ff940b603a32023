package heiretsu

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAccessConflict is returned when a checked iteration pass requests
// component access that overlaps mutably with another pass already in flight.
var ErrAccessConflict = errors.New("heiretsu: conflicting component access")

// accessRegistry is a runtime stand-in for compile-time aliasing checks: it
// tracks, per component ID, how many iteration passes currently hold read
// access and whether one holds write access. Checked passes (Each, Fold, the
// parallel dispatchers) acquire their access set at entry and release it
// when done. Two passes conflict when either writes a component the other
// touches.
//
// Manual cursor loops (Next/Get) are not registered here; they are an
// internal-style escape hatch documented for single-goroutine use.
type accessRegistry struct {
	mu      sync.Mutex
	readers [MaxComponentTypes]int32
	writers [MaxComponentTypes]int32
}

// acquire reserves the given read and write sets, or reports the first
// conflicting component without reserving anything.
func (r *accessRegistry) acquire(read, write bitmask256) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conflict int16 = -1
	write.eachBit(func(bit uint8) {
		if conflict >= 0 {
			return
		}
		if r.writers[bit] > 0 || r.readers[bit] > 0 {
			conflict = int16(bit)
		}
	})
	if conflict < 0 {
		read.eachBit(func(bit uint8) {
			if conflict >= 0 {
				return
			}
			if r.writers[bit] > 0 {
				conflict = int16(bit)
			}
		})
	}
	if conflict >= 0 {
		return fmt.Errorf("%w: component id %d", ErrAccessConflict, conflict)
	}
	write.eachBit(func(bit uint8) { r.writers[bit]++ })
	read.eachBit(func(bit uint8) { r.readers[bit]++ })
	return nil
}

// release returns a previously acquired access set.
func (r *accessRegistry) release(read, write bitmask256) {
	r.mu.Lock()
	defer r.mu.Unlock()
	write.eachBit(func(bit uint8) { r.writers[bit]-- })
	read.eachBit(func(bit uint8) { r.readers[bit]-- })
}
