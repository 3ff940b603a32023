package heiretsu

import "reflect"

// Resources manages a collection of world-scoped singletons, ensuring no
// duplicate types are present at the same time. It uses a slice for storage,
// a map for quick type to ID mapping, and a free list for ID reuse.
type Resources struct {
	types   map[reflect.Type]int
	items   []any
	freeIds []int
}

// Add adds a resource and returns its ID. Panics if a resource of the same
// type already exists. Reuses free IDs if available to avoid growing the
// slice unnecessarily.
func (r *Resources) Add(res any) int {
	if res == nil {
		panic("cannot add nil resource")
	}
	t := reflect.TypeOf(res)
	if r.types == nil {
		r.types = make(map[reflect.Type]int)
	}
	if _, ok := r.types[t]; ok {
		panic("resource of the same type already exists")
	}
	var id int
	if len(r.freeIds) > 0 {
		id = r.freeIds[len(r.freeIds)-1]
		r.freeIds = r.freeIds[:len(r.freeIds)-1]
		r.items[id] = res
	} else {
		r.items = append(r.items, res)
		id = len(r.items) - 1
	}
	r.types[t] = id
	return id
}

// Has checks if a resource with the given ID exists.
func (r *Resources) Has(id int) bool {
	return id >= 0 && id < len(r.items) && r.items[id] != nil
}

// Get retrieves the resource by ID, or nil if it doesn't exist.
func (r *Resources) Get(id int) any {
	if !r.Has(id) {
		return nil
	}
	return r.items[id]
}

// Remove removes the resource by ID if it exists, marking the ID as free for
// reuse.
func (r *Resources) Remove(id int) {
	if !r.Has(id) {
		return
	}
	t := reflect.TypeOf(r.items[id])
	delete(r.types, t)
	r.items[id] = nil
	r.freeIds = append(r.freeIds, id)
}

// GetResource retrieves the resource of type `T` from the world, or the zero
// value and false when absent. Resources are stored by concrete type.
func GetResource[T any](w *World) (T, bool) {
	var zero T
	r := w.resources
	if r.types == nil {
		return zero, false
	}
	id, ok := r.types[reflect.TypeFor[T]()]
	if !ok {
		return zero, false
	}
	v, ok := r.items[id].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// SetResource stores the resource of type `T` in the world, replacing any
// existing value of the same type.
func SetResource[T any](w *World, res T) {
	r := w.resources
	t := reflect.TypeFor[T]()
	if r.types != nil {
		if id, ok := r.types[t]; ok {
			r.items[id] = res
			return
		}
	}
	r.Add(res)
}