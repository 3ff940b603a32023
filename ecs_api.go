package heiretsu

import (
	"reflect"
	"unsafe"
)

// GetComponent retrieves a pointer to the component of type `T` for the given
// entity. It provides a direct, type-safe way to access component data.
//
// If the entity is invalid, does not have the component, or if the entity ID is
// out of bounds, this function returns nil.
//
// Parameters:
//   - w: The World containing the entity.
//   - e: The Entity from which to retrieve the component.
//
// Returns:
//   - A pointer to the component data (*T), or nil if not found.
func GetComponent[T any](w *World, e Entity) *T {
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeFor[T]())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return nil
	}
	if w.isSparse(id) {
		return (*T)(w.sparse[id].get(e.ID))
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return (*T)(ptr)
}

// HasComponent reports whether the entity currently has a component of type `T`.
func HasComponent[T any](w *World, e Entity) bool {
	if !w.IsValid(e) {
		return false
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeFor[T]())
	return w.archetypes.archetypes[meta.archetypeIndex].mask.containsBit(id)
}

// SetComponent adds a component of type `T` with the given value to an entity,
// or updates it if the component already exists.
//
// If the entity does not already have the component, adding it will cause the
// entity to move to a different archetype. This is a relatively expensive
// operation compared to updating an existing component. If the entity is
// invalid, this function does nothing.
//
// Updates stamp the component's changed tick; additions stamp both added and
// changed with the world's current change tick.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - val: The component data of type `T` to set.
func SetComponent[T any](w *World, e Entity, val T) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeFor[T]()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	tick := w.changeTick
	if a.mask.containsBit(id) {
		// already has, just set
		if w.isSparse(id) {
			col := w.sparse[id]
			*(*T)(col.get(e.ID)) = val
			col.getTicks(e.ID).changed = tick
			return
		}
		chunk := a.chunks[meta.chunkIndex]
		ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
		*(*T)(ptr) = val
		chunk.tickColumns[id][meta.index].changed = tick
		return
	}
	// add new: move to the archetype with the extended mask
	newMask := a.mask
	newMask.set(id)
	var targetA *archetype
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		targetA = w.archetypes.archetypes[idx]
	} else {
		var tempSpecs [MaxComponentTypes]compSpec
		count := 0
		for _, cid := range a.compOrder {
			tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
			count++
		}
		if !w.isSparse(id) {
			tempSpecs[count] = compSpec{id: id, typ: w.components.compIDToType[id], size: w.components.compIDToSize[id]}
			count++
		}
		targetA = w.getOrCreateArchetype(newMask, tempSpecs[:count])
	}
	dstChunk, newIdx := w.moveToArchetype(meta, e, a, targetA)
	if w.isSparse(id) {
		col := w.sparse[id]
		*(*T)(col.add(e.ID, tick)) = val
		ct := col.getTicks(e.ID)
		ct.added = tick
		ct.changed = tick
		return
	}
	dst := unsafe.Pointer(uintptr(dstChunk.compPointers[id]) + uintptr(newIdx)*targetA.compSizes[id])
	*(*T)(dst) = val
	dstChunk.tickColumns[id][newIdx] = componentTicks{added: tick, changed: tick}
}

// RemoveComponent removes the component of type `T` from the specified entity.
//
// This operation will cause the entity to move to a new archetype that does not
// include the removed component. This can be an expensive operation. If the
// entity is invalid or does not have the component, this function does nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
func RemoveComponent[T any](w *World, e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeFor[T]()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return
	}
	newMask := a.mask
	newMask.unset(id)
	var targetA *archetype
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		targetA = w.archetypes.archetypes[idx]
	} else {
		var tempSpecs [MaxComponentTypes]compSpec
		count := 0
		for _, cid := range a.compOrder {
			if cid == id {
				continue
			}
			tempSpecs[count] = compSpec{id: cid, typ: w.components.compIDToType[cid], size: w.components.compIDToSize[cid]}
			count++
		}
		targetA = w.getOrCreateArchetype(newMask, tempSpecs[:count])
	}
	w.moveToArchetype(meta, e, a, targetA)
	if w.isSparse(id) {
		w.sparse[id].remove(e.ID)
	}
}

// MarkChanged stamps the changed tick of the entity's `T` component with the
// world's current change tick without writing the value. Useful after
// mutating through a pointer obtained from a read-only pass.
func MarkChanged[T any](w *World, e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeFor[T]())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return
	}
	if w.isSparse(id) {
		w.sparse[id].getTicks(e.ID).changed = w.changeTick
		return
	}
	a.chunks[meta.chunkIndex].tickColumns[id][meta.index].changed = w.changeTick
}

// moveToArchetype transfers the entity's dense component data and ticks from
// archetype a to targetA, updates its meta, and returns the destination chunk
// and slot. Components present only in targetA are left zeroed for the caller
// to fill.
func (w *World) moveToArchetype(meta *entityMeta, e Entity, a, targetA *archetype) (*chunk, int) {
	if len(targetA.chunks) == 0 || targetA.chunks[len(targetA.chunks)-1].size == ChunkSize {
		targetA.chunks = append(targetA.chunks, w.newChunk(targetA))
	}
	dstChunk := targetA.chunks[len(targetA.chunks)-1]
	newIdx := dstChunk.size
	srcChunk := a.chunks[meta.chunkIndex]
	for _, cid := range targetA.compOrder {
		if !a.mask.containsBit(cid) {
			continue
		}
		size := targetA.compSizes[cid]
		src := unsafe.Pointer(uintptr(srcChunk.compPointers[cid]) + uintptr(meta.index)*size)
		dst := unsafe.Pointer(uintptr(dstChunk.compPointers[cid]) + uintptr(newIdx)*size)
		memCopy(dst, src, size)
		dstChunk.tickColumns[cid][newIdx] = srcChunk.tickColumns[cid][meta.index]
	}
	dstChunk.entityIDs[newIdx] = e
	dstChunk.size++
	targetA.size++
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = targetA.index
	meta.chunkIndex = len(targetA.chunks) - 1
	meta.index = newIdx
	return dstChunk, newIdx
}
