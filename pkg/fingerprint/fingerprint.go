// Package fingerprint derives deterministic identities for dataset states.
// A fingerprint is the xxhash of the parent fingerprint plus a description
// of the operation that produced the new state, so equal operation trails
// over equal inputs always agree. Fingerprints key the shuffle cache and are
// persisted alongside saved datasets.
package fingerprint

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint identifies one dataset state.
type Fingerprint uint64

// String renders the fingerprint as fixed-width hex.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// Root derives the fingerprint of a freshly loaded dataset from its schema
// description and row count.
func Root(schemaDesc string, rows int) Fingerprint {
	d := xxhash.New()
	_, _ = d.WriteString(schemaDesc)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(rows))
	_, _ = d.Write(buf[:])
	return Fingerprint(d.Sum64())
}

// Update derives a child fingerprint from a parent and an operation
// description. Args must fully determine the operation (seeds included).
func Update(parent Fingerprint, op string, args ...interface{}) Fingerprint {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(parent))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(op)
	for _, a := range args {
		_, _ = d.WriteString(fmt.Sprintf("|%v", a))
	}
	return Fingerprint(d.Sum64())
}

// Combine merges the fingerprints of several inputs, order-sensitively, for
// multi-dataset operations such as concatenate and interleave.
func Combine(op string, parents ...Fingerprint) Fingerprint {
	d := xxhash.New()
	_, _ = d.WriteString(op)
	var buf [8]byte
	for _, p := range parents {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		_, _ = d.Write(buf[:])
	}
	return Fingerprint(d.Sum64())
}
