// Package indexes defines how secondary-index keys are derived from packed
// rows, and how those derivation rules are persisted and validated across
// process restarts.
//
// # Overview
//
// A table carries one Definition per index. There are three kinds:
//
//  1. Field-range index (FieldRangeDef)
//     The key is the concatenation of `count` consecutive row fields starting
//     at `start`. With a single field the key is a zero-copy borrow of the
//     row's own memory; spans allocate exactly one arena buffer.
//
//  2. Computed-key index (ComputedDef)
//     The key is produced by a registered, stateless KeyGenerator. Because
//     executable code cannot be persisted, the definition stores a symbolic
//     (scope, name) reference and re-resolves it against the process-wide
//     registry on reload. A reference that does not resolve, or resolves to
//     something without the KeyGenerator marker, fails the reload hard.
//
//  3. Fixed-size index (FixedSizeDef)
//     The key is always one 64-bit integer taken from an 8-byte field,
//     stored byte-swapped to big-endian so that raw lexicographic comparison
//     of stored keys matches numeric ordering. These keys live in a
//     structurally distinct fixed-key tree.
//
// # Persistence
//
// Every definition serializes as a packed row (package rows), using the same
// encoding as table data:
//
//   - field-range: kind(i64), start(i32), count(i32), global(bool), name
//   - computed:    kind(i64), global(bool), name, generator-name, scope
//   - fixed-size:  start(i32), global(bool), name — no kind tag; the schema
//     container frames fixed-size records distinctly
//
// The kind tag is a deliberately wide integer so new kinds can be added
// without changing the on-disk format.
//
// # Validation
//
// Definitions are immutable after construction and shared read-only by
// concurrent row operations. At table-open time the persisted set is compared
// field-by-field against the in-code set via EnsureIdentical; any mismatch
// names the differing field and both values and refuses the open. A silent
// mismatch would make the engine write and read keys under wrong assumptions
// with no other safeguard.
package indexes
