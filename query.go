package heiretsu

import "reflect"

// termKind discriminates the filter term variants.
type termKind uint8

const (
	termWith termKind = iota
	termWithout
	termRead
	termAdded
	termChanged
)

// FilterTerm refines which entities a filter matches and how it may access
// their components. Terms are built with With, Without, Read, Added and
// Changed and passed to the filter constructors.
type FilterTerm struct {
	kind termKind
	id   uint8
}

// With requires the component `T` to be present without accessing its value.
func With[T any](w *World) FilterTerm {
	return FilterTerm{kind: termWith, id: w.getCompTypeID(reflect.TypeFor[T]())}
}

// Without excludes entities that have the component `T`.
func Without[T any](w *World) FilterTerm {
	return FilterTerm{kind: termWithout, id: w.getCompTypeID(reflect.TypeFor[T]())}
}

// Read marks the component `T` as read-only for this filter. When `T` is one
// of the filter's component parameters its pointers are handed out without
// stamping change ticks, and the access registry records a shared rather
// than exclusive reservation, letting read passes overlap.
func Read[T any](w *World) FilterTerm {
	return FilterTerm{kind: termRead, id: w.getCompTypeID(reflect.TypeFor[T]())}
}

// Added matches only entities whose `T` component was added inside the
// filter's change-detection window.
func Added[T any](w *World) FilterTerm {
	return FilterTerm{kind: termAdded, id: w.getCompTypeID(reflect.TypeFor[T]())}
}

// Changed matches only entities whose `T` component was written inside the
// filter's change-detection window.
func Changed[T any](w *World) FilterTerm {
	return FilterTerm{kind: termChanged, id: w.getCompTypeID(reflect.TypeFor[T]())}
}

// queryState is the cached, shareable description of a query: its component
// requirements, access sets, change-detection terms and the list of matched
// archetypes. The matched list extends lazily as new archetypes appear in
// the world and never shrinks.
type queryState struct {
	world       *World
	includeMask bitmask256
	excludeMask bitmask256
	readMask    bitmask256 // components accessed read-only
	writeMask   bitmask256 // components accessed mutably
	addedIDs    []uint8    // Added-filtered component IDs
	changedIDs  []uint8    // Changed-filtered component IDs
	matched     []int      // matched archetype indices, in discovery order
	scanned     int        // archetypes examined so far
	archVersion uint32     // archetypeVersion at last refresh
	manualTicks bool       // window pinned by SetTickWindow
	lastRun     Tick
	thisRun     Tick
}

func newQueryState(w *World, compIDs []uint8, terms []FilterTerm) queryState {
	qs := queryState{world: w}
	for _, id := range compIDs {
		qs.includeMask.set(id)
		qs.writeMask.set(id)
	}
	for _, t := range terms {
		switch t.kind {
		case termWith:
			qs.includeMask.set(t.id)
		case termWithout:
			qs.excludeMask.set(t.id)
		case termRead:
			qs.includeMask.set(t.id)
			qs.writeMask.unset(t.id)
			qs.readMask.set(t.id)
		case termAdded:
			qs.includeMask.set(t.id)
			qs.addedIDs = append(qs.addedIDs, t.id)
		case termChanged:
			qs.includeMask.set(t.id)
			qs.changedIDs = append(qs.changedIDs, t.id)
		}
	}
	if qs.includeMask.intersects(qs.excludeMask) {
		panic("ecs: component both required and excluded")
	}
	return qs
}

// isStale reports whether archetypes were created since the last refresh.
func (qs *queryState) isStale() bool {
	return qs.archVersion != qs.world.archetypes.archetypeVersion
}

// refresh extends the matched archetype list with archetypes created since
// the last call. It is the storage locator: called before every iteration
// pass, it keeps the cache current without ever rescanning known archetypes.
func (qs *queryState) refresh() {
	arches := qs.world.archetypes.archetypes
	for ; qs.scanned < len(arches); qs.scanned++ {
		a := arches[qs.scanned]
		if a.mask.contains(qs.includeMask) && !a.mask.intersects(qs.excludeMask) {
			qs.matched = append(qs.matched, a.index)
		}
	}
	qs.archVersion = qs.world.archetypes.archetypeVersion
}

// isDense reports whether every component the query touches lives in dense
// chunk storage. Dense queries batch at chunk granularity; queries touching
// a sparse component batch at archetype granularity.
func (qs *queryState) isDense() bool {
	touched := qs.includeMask
	return !touched.intersects(qs.world.components.sparseMask)
}

// beginPass snapshots the change-detection window for one iteration pass.
// All tasks of a parallel dispatch share the same snapshot.
func (qs *queryState) beginPass() {
	if !qs.manualTicks {
		qs.thisRun = qs.world.changeTick
	}
}

// endPass advances the window so the next pass only sees newer changes.
func (qs *queryState) endPass() {
	if !qs.manualTicks {
		qs.lastRun = qs.thisRun
	}
}

// setTickWindow pins an explicit (lastRun, thisRun] window.
func (qs *queryState) setTickWindow(lastRun, thisRun Tick) {
	qs.manualTicks = true
	qs.lastRun = lastRun
	qs.thisRun = thisRun
}

// passes applies the Added/Changed terms to one entity slot.
func (qs *queryState) passes(ch *chunk, slot int, entID uint32) bool {
	for _, id := range qs.addedIDs {
		if !qs.compTicks(ch, slot, entID, id).added.isNewerThan(qs.lastRun, qs.thisRun) {
			return false
		}
	}
	for _, id := range qs.changedIDs {
		if !qs.compTicks(ch, slot, entID, id).changed.isNewerThan(qs.lastRun, qs.thisRun) {
			return false
		}
	}
	return true
}

func (qs *queryState) compTicks(ch *chunk, slot int, entID uint32, id uint8) *componentTicks {
	if qs.world.isSparse(id) {
		return qs.world.sparse[id].getTicks(entID)
	}
	return &ch.tickColumns[id][slot]
}

// span is one contiguous run of entity slots inside a single chunk. Batches
// are lists of spans; spans never cross chunk boundaries, which is what
// keeps task batches disjoint in entity identity.
type span struct {
	arch  *archetype
	chunk *chunk
	start int
	end   int
}

// collectSpans materializes the matched storage as spans, in archetype
// discovery order then chunk order. refresh must run first.
func (qs *queryState) collectSpans(dst []span) []span {
	arches := qs.world.archetypes.archetypes
	for _, ai := range qs.matched {
		a := arches[ai]
		for _, ch := range a.chunks {
			if ch.size == 0 {
				continue
			}
			dst = append(dst, span{arch: a, chunk: ch, start: 0, end: ch.size})
		}
	}
	return dst
}

// maxChunkEntities returns the largest entity count of any matched chunk.
// Used as the batch-size estimate for dense queries, where the chunk is the
// storage unit batches are drawn from.
func (qs *queryState) maxChunkEntities() int {
	maxItems := 0
	arches := qs.world.archetypes.archetypes
	for _, ai := range qs.matched {
		for _, ch := range arches[ai].chunks {
			if ch.size > maxItems {
				maxItems = ch.size
			}
		}
	}
	return maxItems
}

// maxArchetypeEntities returns the largest entity count of any matched
// archetype. Used as the batch-size estimate for sparse-touching queries.
func (qs *queryState) maxArchetypeEntities() int {
	maxItems := 0
	arches := qs.world.archetypes.archetypes
	for _, ai := range qs.matched {
		if s := arches[ai].size; s > maxItems {
			maxItems = s
		}
	}
	return maxItems
}

// cursor walks a span list, applying change-detection terms. It is the
// single-pass engine under every sequential and per-task iteration; a fresh
// cursor can always be rebuilt from the same queryState.
type cursor struct {
	qs    *queryState
	spans []span
	si    int
	idx   int
	ent   Entity
}

func newCursor(qs *queryState, spans []span) cursor {
	c := cursor{qs: qs, spans: spans, si: 0, idx: -1}
	if len(spans) > 0 {
		c.idx = spans[0].start - 1
	}
	return c
}

// next advances to the next entity passing the query's terms. Items are
// visited in span order then slot order, which is deterministic for a given
// world layout.
func (c *cursor) next() bool {
	for c.si < len(c.spans) {
		sp := &c.spans[c.si]
		for c.idx+1 < sp.end {
			c.idx++
			ent := sp.chunk.entityIDs[c.idx]
			if c.qs.passes(sp.chunk, c.idx, ent.ID) {
				c.ent = ent
				return true
			}
		}
		c.si++
		if c.si < len(c.spans) {
			c.idx = c.spans[c.si].start - 1
		}
	}
	return false
}

// current returns the span and slot of the cursor position.
func (c *cursor) current() (*span, int) {
	return &c.spans[c.si], c.idx
}
