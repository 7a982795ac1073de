// Package trace defines the execution trace entries produced by the VM
// interpreter and consumed by the slicing engine.
//
// # Wire Format
//
// Traces travel as JSON lines, one Entry per line:
//
//	{"eid":7,"fid":2,"iid":14,"sp":3,"pages":1,"last_jump_eid":5,"step":{"kind":"host_call","op":32,"value":9,"sig":"argument"}}
//
// The step object is tagged by "kind" (plain, call, return, host_call).
//
// # Canonical Form
//
// MarshalCanonical produces sorted-key, NFC-normalized JSON. It is the only
// serialization used for content digests, so two runs over the same trace
// always produce the same slice identities.
package trace
