package heiretsu

import "fmt"

// Entity represents a unique identifier for an object in the World. It
// combines a 32-bit ID with a 32-bit version to ensure that recycled IDs are
// not confused with new entities.
type Entity struct {
	// ID is the unique, recyclable identifier for the entity.
	ID uint32
	// Version is a generation counter to protect against stale entity
	// references. It is incremented each time an entity ID is reused.
	Version uint32
}

// entityMeta holds the internal location and state of an entity.
type entityMeta struct {
	archetypeIndex int    // index in World.archetypes
	chunkIndex     int    // index in archetype.chunks
	index          int    // position inside the chunk's component array
	version        uint32 // current version, 0 if the entity is dead
}

// ErrDuplicateEntity is returned by NewUniqueEntityList when the input
// contains the same entity ID more than once.
var ErrDuplicateEntity = fmt.Errorf("heiretsu: duplicate entity in unique list")

// UniqueEntityList is an ordered collection of entities guaranteed to be free
// of duplicate IDs. The guarantee is what makes it safe for parallel
// iteration to hand out mutable component pointers across concurrent tasks:
// no two tasks can ever receive a view of the same entity.
//
// The zero value is an empty list.
type UniqueEntityList struct {
	ents []Entity
}

// NewUniqueEntityList builds a UniqueEntityList from the given entities,
// preserving their order. It returns ErrDuplicateEntity (wrapped with the
// offending ID) if any entity ID appears twice.
func NewUniqueEntityList(ents ...Entity) (UniqueEntityList, error) {
	seen := make(map[uint32]struct{}, len(ents))
	out := make([]Entity, len(ents))
	for i, e := range ents {
		if _, dup := seen[e.ID]; dup {
			return UniqueEntityList{}, fmt.Errorf("%w: id %d", ErrDuplicateEntity, e.ID)
		}
		seen[e.ID] = struct{}{}
		out[i] = e
	}
	return UniqueEntityList{ents: out}, nil
}

// UniqueEntityListFrom builds a UniqueEntityList from the given entities,
// silently dropping later duplicates instead of failing. Order of the first
// occurrences is preserved.
func UniqueEntityListFrom(ents []Entity) UniqueEntityList {
	seen := make(map[uint32]struct{}, len(ents))
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return UniqueEntityList{ents: out}
}

// Len returns the number of entities in the list.
func (l UniqueEntityList) Len() int {
	return len(l.ents)
}

// Entities returns the entities in list order. The returned slice is owned by
// the list and must not be modified.
func (l UniqueEntityList) Entities() []Entity {
	return l.ents
}
