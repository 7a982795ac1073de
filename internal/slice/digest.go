package slice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"golang.org/x/crypto/sha3"

	"github.com/roach88/zkslice/internal/trace"
)

// Domain separation prefixes. Changing either invalidates every stored id.
const (
	sliceIDDomain = "zkslice/slice/v1\x00"
	sliceKeccakV  = "zkslice/keccak/v1\x00"
)

// Commitment identifies the content of a slice three ways.
//
// ID is a content address over canonical JSON. Keccak is what an on-chain
// verifier recomputes. MiMC commits the entry EIDs and host-call values as
// bn254 scalar field elements, the form the circuit consumes.
type Commitment struct {
	ID     string `json:"id"`
	Keccak string `json:"keccak"`
	MiMC   string `json:"mimc"`
}

// Commit computes the commitment of s. RunID and Index do not contribute:
// identical entry runs commit identically across runs.
func Commit(s Slice) (Commitment, error) {
	canon, err := CanonicalEntries(s.Entries)
	if err != nil {
		return Commitment{}, err
	}

	id := sha256.New()
	id.Write([]byte(sliceIDDomain))
	id.Write(canon)

	kh := sha3.NewLegacyKeccak256()
	kh.Write([]byte(sliceKeccakV))
	kh.Write(canon)

	m, err := mimcCommit(s.Entries)
	if err != nil {
		return Commitment{}, err
	}

	return Commitment{
		ID:     hex.EncodeToString(id.Sum(nil)),
		Keccak: hex.EncodeToString(kh.Sum(nil)),
		MiMC:   hex.EncodeToString(m),
	}, nil
}

// CanonicalEntries returns the canonical JSON array of entries.
func CanonicalEntries(entries []trace.Entry) ([]byte, error) {
	arr := make([]any, len(entries))
	for i, e := range entries {
		arr[i] = trace.CanonicalEntry(e)
	}
	out, err := trace.MarshalCanonical(arr)
	if err != nil {
		return nil, fmt.Errorf("canonical entries: %w", err)
	}
	return out, nil
}

// mimcCommit absorbs, per entry, the EID and for host calls the op code
// and value. Every absorbed word is a canonical field element.
func mimcCommit(entries []trace.Entry) ([]byte, error) {
	h := mimc.NewMiMC()
	var el fr.Element
	absorb := func(v uint64) error {
		el.SetUint64(v)
		b := el.Bytes()
		_, err := h.Write(b[:])
		return err
	}

	for _, e := range entries {
		if err := absorb(e.EID); err != nil {
			return nil, fmt.Errorf("mimc: entry %d: %w", e.EID, err)
		}
		hc, ok := e.Step.(trace.HostCall)
		if !ok {
			continue
		}
		if err := absorb(uint64(hc.Op)); err != nil {
			return nil, fmt.Errorf("mimc: entry %d: %w", e.EID, err)
		}
		if hc.Value != nil {
			if err := absorb(*hc.Value); err != nil {
				return nil, fmt.Errorf("mimc: entry %d: %w", e.EID, err)
			}
		}
	}
	return h.Sum(nil), nil
}
