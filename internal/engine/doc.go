// Package engine implements the transactional host-call buffering engine.
//
// The engine receives trace entries one at a time, asks a policy about
// every host-call step, and seals the buffer into slices that fit one
// circuit. A seal never cuts inside a host-call group.
//
// ARCHITECTURE:
//
// Buffer and safe cut:
// Entries accumulate in a buffer of at most capacity entries. A cursor
// tracks the highest offset known to contain no incomplete group. When the
// buffer fills, or the policy asks for a boundary, the prefix up to the
// cursor becomes a slice and the suffix is replayed into a fresh state.
//
// Ledger:
// Open groups are recorded with their start offset. A lazy commit keeps
// its group rollback-able until the next commit of the same id confirms
// it; until then a seal cuts before the lazy group.
//
// Single-threaded:
// Insert and Finalize run to completion on the caller's goroutine. Replay
// after a seal re-enters insert synchronously.
//
// Contract violations (a double start, a commit without start, a Reset
// answered with anything but Noop, a cursor moving backward) are returned
// as *ContractError and stop the engine.
package engine
