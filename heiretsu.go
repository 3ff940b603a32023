// Package heiretsu implements a high-performance, archetype-based Entity
// Component System for Go with safe parallel query iteration.
//
// Features:
// - Chunked archetype storage with max 256 component types.
// - Bitmask for fast archetype lookup.
// - Unsafe pointers for zero-GC overhead on component access.
// - Optional sparse-set storage for rarely-held components.
// - Change detection through per-component tick columns.
// - Generic Filter APIs for 1 or 2 components, sequential or parallel.
// - Parallel dispatch over an injected fixed-size task pool, with
//   per-task accumulators and a runtime component-access registry.
package heiretsu
