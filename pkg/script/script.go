// Package script defines the locking-script tagged union. New script
// kinds must be addable without touching existing callers; Kind plus one
// pointer field per variant (nil unless selected) gives every caller a
// single switch to extend instead of a type hierarchy to subclass.
package script

import (
	"fmt"

	"github.com/gochain/gochain/pkg/chainhash"
)

// Kind identifies which variant of Script is populated.
type Kind uint8

const (
	// PayToPubKeyHash locks an output to whoever can prove control of the
	// private key behind Addr. It is the only variant this system
	// implements (non-P2PKH script types are out of scope).
	PayToPubKeyHash Kind = iota
)

// Script is the tagged locking-script variant attached to every output.
type Script struct {
	Kind  Kind
	P2PKH *PayToPubKeyHashScript
}

// PayToPubKeyHashScript locks an output to an address hash.
type PayToPubKeyHashScript struct {
	Addr chainhash.AddressHash
}

// NewPayToPubKeyHash builds a P2PKH locking script for addr.
func NewPayToPubKeyHash(addr chainhash.AddressHash) Script {
	return Script{
		Kind:  PayToPubKeyHash,
		P2PKH: &PayToPubKeyHashScript{Addr: addr},
	}
}

// Address returns the locked address for a P2PKH script, or an error for
// any other (currently nonexistent) kind.
func (s Script) Address() (chainhash.AddressHash, error) {
	switch s.Kind {
	case PayToPubKeyHash:
		if s.P2PKH == nil {
			return chainhash.AddressHash{}, fmt.Errorf("script: P2PKH script missing payload")
		}
		return s.P2PKH.Addr, nil
	default:
		return chainhash.AddressHash{}, fmt.Errorf("script: unknown script kind %d", s.Kind)
	}
}

// Encode appends the script's wire representation to enc: a kind byte
// followed by the kind-specific payload. Used by the canonical
// transaction encoder so a script contributes deterministic bytes to
// signing digests and transaction ids.
func (s Script) Encode(enc *chainhash.Encoder) {
	enc.PutBytes([]byte{byte(s.Kind)})
	switch s.Kind {
	case PayToPubKeyHash:
		if s.P2PKH != nil {
			enc.PutFixed(s.P2PKH.Addr[:])
		}
	}
}

// Decode parses a script-kind byte plus payload from raw bytes produced by
// Encode's PutBytes-wrapped kind marker followed by raw payload bytes.
func Decode(kind byte, payload []byte) (Script, error) {
	switch Kind(kind) {
	case PayToPubKeyHash:
		addr, err := chainhash.NewAddressHash(payload)
		if err != nil {
			return Script{}, fmt.Errorf("script: decode P2PKH: %w", err)
		}
		return NewPayToPubKeyHash(addr), nil
	default:
		return Script{}, fmt.Errorf("script: unknown script kind %d", kind)
	}
}
