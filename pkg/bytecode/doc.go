// Package bytecode lowers type-checked Glint functions, standalone
// expressions, and process step bodies to stack-machine instruction
// sequences for the bytecode interpreter.
//
// The instruction format is designed for:
//   - A uniform stack discipline (every expression nets exactly one
//     pushed value)
//   - Stable textual disassembly that round-trips through Parse
//   - Easy serialization (sequences encode to canonical CBOR for
//     storage or cross-process transport)
//
// # Architecture Overview
//
// The package consists of several components:
//
//   - Op / Instruction: ~40 stack-based instructions covering
//     arithmetic, comparisons, aggregate construction and access,
//     control flow, local slots, calls, and channel operations. An
//     instruction carries at most one operand; which operand kind an
//     op takes is fixed by a metadata table.
//
//   - Sequence: an immutable compiled unit holding the instruction
//     list and the number of local slots the interpreter must
//     allocate.
//
//   - Emitter: walks the typed AST in post order, consulting the sema
//     oracle for concrete types, precomputed constants, and
//     parametric bindings. Control flow lowers to relative jumps
//     patched after both branch lengths are known; every jump lands
//     on an explicit jump_dest marker.
//
//   - Disassembly: Format renders one instruction per line with a
//     zero-padded index, and Parse reassembles the suffix-free form
//     exactly.
//
//   - Wire: Marshal/Unmarshal move sequences through a versioned
//     canonical-CBOR image, revalidating structural invariants on
//     decode.
//
// # Slot Discipline
//
// Named bindings live in numbered local slots. Slots are assigned in
// first-binding order and never reused; shadowing a name allocates a
// fresh slot so earlier loads keep observing the earlier value.
// Process step emission seeds member bindings into the lowest slots
// before parameters.
//
// # Error Taxonomy
//
// Unsupported constructs and malformed input report ordinary errors.
// Conditions that indicate a bug in the emitter itself (operand/op
// mismatches, jumps landing off a jump_dest) are reported with an
// "internal error:" prefix so callers can distinguish them from bad
// input.
package bytecode
