package heiretsu

import (
	"reflect"
	"unsafe"
)

// sparseColumn stores one sparse component type for the whole world: a packed
// data array indexed by slot, plus an entity-ID-to-slot map. Archetype masks
// still record which entities hold the component, but the values live here
// instead of in chunk arrays. Suited to components held by few entities,
// where chunk columns would waste memory.
type sparseColumn struct {
	slots    map[uint32]int // entity ID -> slot
	data     []byte         // packed values, slot*size bytes each
	ticks    []componentTicks
	entities []uint32 // slot -> entity ID, for swap-remove bookkeeping
	size     uintptr
}

func newSparseColumn(typ reflect.Type) *sparseColumn {
	return &sparseColumn{
		slots: make(map[uint32]int, 16),
		size:  typ.Size(),
	}
}

// add inserts a zeroed value for the entity and stamps its ticks. Existing
// slots are reused as-is.
func (c *sparseColumn) add(entID uint32, tick Tick) unsafe.Pointer {
	if slot, ok := c.slots[entID]; ok {
		return c.at(slot)
	}
	slot := len(c.entities)
	c.entities = append(c.entities, entID)
	c.ticks = append(c.ticks, componentTicks{added: tick, changed: tick})
	c.data = append(c.data, make([]byte, c.size)...)
	c.slots[entID] = slot
	return c.at(slot)
}

// remove deletes the entity's value using swap-remove, keeping the data
// packed.
func (c *sparseColumn) remove(entID uint32) {
	slot, ok := c.slots[entID]
	if !ok {
		return
	}
	last := len(c.entities) - 1
	if slot < last {
		copy(c.data[uintptr(slot)*c.size:], c.data[uintptr(last)*c.size:uintptr(last+1)*c.size])
		c.ticks[slot] = c.ticks[last]
		moved := c.entities[last]
		c.entities[slot] = moved
		c.slots[moved] = slot
	}
	c.entities = c.entities[:last]
	c.ticks = c.ticks[:last]
	c.data = c.data[:uintptr(last)*c.size]
	delete(c.slots, entID)
}

// get returns a pointer to the entity's value, or nil if absent.
func (c *sparseColumn) get(entID uint32) unsafe.Pointer {
	slot, ok := c.slots[entID]
	if !ok {
		return nil
	}
	return c.at(slot)
}

// getTicks returns the tick record for the entity, or nil if absent.
func (c *sparseColumn) getTicks(entID uint32) *componentTicks {
	slot, ok := c.slots[entID]
	if !ok {
		return nil
	}
	return &c.ticks[slot]
}

func (c *sparseColumn) at(slot int) unsafe.Pointer {
	if c.size == 0 {
		// zero-sized components share a single static location
		return unsafe.Pointer(&zeroSized)
	}
	return unsafe.Pointer(&c.data[uintptr(slot)*c.size])
}

// clear drops all values while keeping allocated capacity.
func (c *sparseColumn) clear() {
	c.data = c.data[:0]
	c.ticks = c.ticks[:0]
	c.entities = c.entities[:0]
	clear(c.slots)
}

var zeroSized struct{}
