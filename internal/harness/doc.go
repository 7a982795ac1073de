// Package harness runs slicing scenarios as executable contract tests.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: exhausted_round
//	description: "A finished group that used its only round forces a cut"
//	capacity: 10
//	k: 18
//	families:
//	  - name: hash
//	    id: 1
//	    ops: [9]
//	    group_size: 3
//	    rounds: 1
//	steps:
//	  - host: 9
//	    repeat: 3
//	  - plain: 10
//	assertions:
//	  - type: slice_sizes
//	    sizes: [10, 3]
//	  - type: atomic
//
// A step is exactly one of plain (a count of ordinary instructions), host
// (an op code, repeated repeat times), call (a callee function id) or
// return. Families may also name a standard host family with standard.
//
// # Assertion Types
//
//   - slice_sizes: the sealed slices have exactly these entry counts
//   - error: the run stops with this contract error code
//   - atomic: no slice boundary falls inside a host-call group
//   - stats: engine counters match (subset)
//
// Every successful run is also checked for the round-trip law: the
// concatenated slices equal the input trace.
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory sink and a fixed run id (run_id, or
// "test-run-default"), so slice commitments are stable across reruns and
// can be compared against golden files.
package harness
