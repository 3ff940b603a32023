package heiretsu

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUniqueEntityListRejectsDuplicates(t *testing.T) {
	e1 := Entity{ID: 1, Version: 1}
	e2 := Entity{ID: 2, Version: 1}

	_, err := NewUniqueEntityList(e1, e2, e1)
	require.ErrorIs(t, err, ErrDuplicateEntity)

	list, err := NewUniqueEntityList(e1, e2)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())
	assert.Equal(t, []Entity{e1, e2}, list.Entities())
}

func TestUniqueEntityListFromDedups(t *testing.T) {
	e1 := Entity{ID: 1, Version: 1}
	e2 := Entity{ID: 2, Version: 1}
	list := UniqueEntityListFrom([]Entity{e1, e2, e1, e2, e1})
	assert.Equal(t, []Entity{e1, e2}, list.Entities())
}

func TestParForEachManyUniqueMutation(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(3, nil)
	for i, e := range ents {
		SetComponent(&w, e, Position{X: float32(i + 1)})
	}
	list, err := NewUniqueEntityList(ents...)
	require.NoError(t, err)

	f := NewFilter[Position](&w)
	pool := NewTaskPool(4)
	// batch size 2 splits the three entities across two concurrent tasks
	pf := f.Par(pool).WithBatching(FixedBatchSize(2))
	require.NoError(t, ParForEachManyUnique(pf, list, func(_ Entity, p *Position) {
		p.X *= 10
	}))

	want := []float32{10, 20, 30}
	for i, e := range ents {
		assert.Equal(t, want[i], GetComponent[Position](&w, e).X)
	}
}

func TestParForEachManyUniqueMatchesSequential(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(500, nil)
	list, err := NewUniqueEntityList(ents...)
	require.NoError(t, err)

	f := NewFilter[Position](&w)
	require.NoError(t, f.EachManyUnique(list, func(_ Entity, p *Position) {
		p.X++
	}))

	pool := NewTaskPool(4)
	require.NoError(t, ParForEachManyUnique(f.Par(pool), list, func(_ Entity, p *Position) {
		p.X++
	}))

	// both passes touched every entity exactly once
	for _, e := range ents {
		require.Equal(t, float32(2), GetComponent[Position](&w, e).X)
	}
}

func TestParForEachManyByValue(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(100, nil)
	for _, e := range ents {
		SetComponent(&w, e, Position{X: 3})
	}

	// duplicates are fine: items are copies, no task can write through them
	list := append(append([]Entity{}, ents...), ents...)
	f := NewFilter[Position](&w)
	pool := NewTaskPool(4)
	var sum atomic.Int64
	require.NoError(t, ParForEachMany(f.Par(pool), list, func(_ Entity, p Position) {
		sum.Add(int64(p.X))
	}))
	assert.Equal(t, int64(3*200), sum.Load())
}

func TestParForEachManySkipsDeadAndNonMatching(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(10, nil)
	dead := ents[0]
	w.RemoveEntity(dead)
	bare := w.CreateEntity() // no Position, fails the filter

	list := append(append([]Entity{}, ents...), bare)
	f := NewFilter[Position](&w)
	pool := NewTaskPool(4)
	var visited atomic.Int32
	require.NoError(t, ParForEachMany(f.Par(pool), list, func(Entity, Position) {
		visited.Add(1)
	}))
	assert.Equal(t, int32(9), visited.Load())
}

func TestParForEachManyNilPool(t *testing.T) {
	w := NewWorld(8)
	f := NewFilter[Position](&w)
	err := ParForEachMany(f.Par(nil), []Entity{{ID: 1, Version: 1}}, func(Entity, Position) {})
	require.ErrorIs(t, err, ErrNoTaskPool)

	err = ParForEachManyUnique(f.Par(nil), UniqueEntityList{}, func(Entity, *Position) {})
	require.ErrorIs(t, err, ErrNoTaskPool)
}

func TestParForEachManyEmptyList(t *testing.T) {
	w := NewWorld(8)
	f := NewFilter[Position](&w)
	pool := NewTaskPool(4)
	require.NoError(t, ParForEachMany(f.Par(pool), nil, func(Entity, Position) {
		t.Error("callback must not run for an empty list")
	}))
}

func TestParForEachManyUniqueSequentialFallback(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(50, nil)
	list, err := NewUniqueEntityList(ents...)
	require.NoError(t, err)

	f := NewFilter[Position](&w)
	pool := NewTaskPool(1)
	var initCalls atomic.Int32
	require.NoError(t, ParForEachManyUniqueInit(f.Par(pool), list,
		func() int { initCalls.Add(1); return 0 },
		func(acc int, _ Entity, _ *Position) int { return acc + 1 }))
	assert.Equal(t, int32(1), initCalls.Load())
}

func TestParForEachManyPanicOnSequentialFallback(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(10, nil)
	list, err := NewUniqueEntityList(ents...)
	require.NoError(t, err)

	f := NewFilter[Position](&w)
	pool := NewTaskPool(1)
	perr := ParForEachManyUnique(f.Par(pool), list, func(Entity, *Position) { panic("list boom") })
	var tpe *TaskPanicError
	require.ErrorAs(t, perr, &tpe)
	assert.Contains(t, tpe.Error(), "list boom")

	// access was released and the filter stays usable
	require.NoError(t, f.EachManyUnique(list, func(Entity, *Position) {}))
}

func TestEachManyPreservesOrderAndDuplicates(t *testing.T) {
	w := NewWorld(8)
	b := NewBuilder[Position](&w)
	ents := b.NewEntitiesTo(3, nil)

	list := []Entity{ents[2], ents[0], ents[2]}
	f := NewFilter[Position](&w)
	var got []Entity
	require.NoError(t, f.EachMany(list, func(e Entity, _ *Position) {
		got = append(got, e)
	}))
	assert.Equal(t, list, got, "sequential list iteration preserves order and duplicates")
}
