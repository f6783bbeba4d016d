package chainhash

import (
	"bytes"
	"encoding/binary"
)

// Encoder builds the canonical, length-prefixed, little-endian binary
// encoding used for every signing digest and header hash in the system.
// It is the single source of truth: the signer, the miner, and the
// verifier all call these methods rather than reusing a cached buffer.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns a fresh Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// PutUint32 appends a little-endian uint32.
func (e *Encoder) PutUint32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
	return e
}

// PutUint64 appends a little-endian uint64.
func (e *Encoder) PutUint64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

// PutUint128 appends a little-endian 128-bit value represented as two
// uint64 halves (low, high). Used for millisecond timestamps.
func (e *Encoder) PutUint128(low, high uint64) *Encoder {
	e.PutUint64(low)
	e.PutUint64(high)
	return e
}

// PutBytes appends a length-prefixed byte slice: a uint32 length followed
// by the raw bytes. Every variable-length field (script kind markers,
// signatures) goes through this so the encoding is unambiguous.
func (e *Encoder) PutBytes(b []byte) *Encoder {
	e.PutUint32(uint32(len(b)))
	e.buf.Write(b)
	return e
}

// PutFixed appends raw bytes with no length prefix, for fields whose size
// is already fixed by the type system (a ChainHash, an AddressHash).
func (e *Encoder) PutFixed(b []byte) *Encoder {
	e.buf.Write(b)
	return e
}

// Hash returns the double-SHA-256 digest of the accumulated bytes.
func (e *Encoder) Hash() ChainHash {
	return DoubleSHA256(e.buf.Bytes())
}
