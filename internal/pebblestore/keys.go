package pebblestore

import (
	"encoding/binary"
	"errors"
)

// Keyspace (byte-wise, lexicographically sortable):
// - run/{id}/slice/{idx_be8}

var (
	runPrefix = []byte("run/")
	sliceSeg  = []byte("/slice/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keySlicePrefix is the common prefix of every slice key of a run.
func keySlicePrefix(runID string) []byte {
	k := make([]byte, 0, len(runID)+16)
	k = append(k, runPrefix...)
	k = append(k, runID...)
	k = append(k, sliceSeg...)
	return k
}

// keySlice builds the key of slice idx of a run.
func keySlice(runID string, idx uint64) []byte {
	return appendBE8(keySlicePrefix(runID), idx)
}

// sliceIndex extracts the index from a slice key.
func sliceIndex(runID string, key []byte) (uint64, error) {
	p := keySlicePrefix(runID)
	if len(key) != len(p)+8 {
		return 0, errors.New("pebblestore: malformed slice key")
	}
	return binary.BigEndian.Uint64(key[len(p):]), nil
}

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix.
func prefixUpperBound(prefix []byte) []byte {
	hi := append([]byte(nil), prefix...)
	for i := len(hi) - 1; i >= 0; i-- {
		if hi[i] < 0xff {
			hi[i]++
			return hi[:i+1]
		}
	}
	return nil
}
