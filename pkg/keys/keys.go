// Package keys provides the secp256k1 key pairs, ECDSA signing/verification,
// and P2PKH address derivation shared by every signer and verifier in the
// system. It is deliberately thin: no encrypted storage, no key derivation
// paths, no wallet accounts — those are embedder concerns.
package keys

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // intentional: P2PKH address derivation requires RIPEMD-160

	"github.com/gochain/gochain/pkg/chainhash"
)

// Errors surfaced by signing and script-sig parsing.
var (
	ErrInvalidPublicKey     = errors.New("keys: invalid public key")
	ErrInvalidSignature     = errors.New("keys: invalid signature format")
	ErrScriptParse          = errors.New("keys: script-sig too short to contain a public key")
	ErrSignatureVerifyFails = errors.New("keys: signature does not verify")
)

// CompressedPubKeyLen is the length of a SEC1-compressed secp256k1 public key.
const CompressedPubKeyLen = 33

// KeyPair is a secp256k1 private scalar and its derived public point.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// Generate creates a new random key pair.
func Generate() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: failed to generate private key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// FromPrivateKeyBytes reconstructs a KeyPair from a 32-byte scalar.
func FromPrivateKeyBytes(b []byte) (*KeyPair, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("keys: private key must be 32 bytes, got %d", len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return &KeyPair{priv: priv}, nil
}

// PublicKeyCompressed returns the 33-byte SEC1-compressed public key.
func (k *KeyPair) PublicKeyCompressed() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// PrivateKeyBytes returns the 32-byte scalar backing this key pair, for
// embedders that need to persist a generated key (e.g. a CLI's local
// miner identity). There is no at-rest encryption here by design; callers
// that need it apply their own before writing these bytes to disk.
func (k *KeyPair) PrivateKeyBytes() []byte {
	return k.priv.Serialize()
}

// Address derives the P2PKH address hash for this key pair's public key.
func (k *KeyPair) Address() chainhash.AddressHash {
	return DeriveAddress(k.PublicKeyCompressed())
}

// Sign produces a DER-encoded ECDSA signature over digest.
func (k *KeyPair) Sign(digest chainhash.ChainHash) []byte {
	sig := btcecdsa.Sign(k.priv, digest[:])
	return sig.Serialize()
}

// DeriveAddress computes RIPEMD-160(SHA-256(pubkey)), the P2PKH address
// hash, from a compressed public key.
func DeriveAddress(pubCompressed []byte) chainhash.AddressHash {
	sha := sha256.Sum256(pubCompressed)
	r := ripemd160.New()
	r.Write(sha[:])
	sum := r.Sum(nil)
	var addr chainhash.AddressHash
	copy(addr[:], sum)
	return addr
}

// BuildScriptSig concatenates a DER signature and a compressed public key
// into the wire layout used for P2PKH script-sigs.
func BuildScriptSig(sigDER, pubCompressed []byte) []byte {
	out := make([]byte, 0, len(sigDER)+len(pubCompressed))
	out = append(out, sigDER...)
	out = append(out, pubCompressed...)
	return out
}

// ParseScriptSig splits a script-sig into its DER signature and compressed
// public key. The last CompressedPubKeyLen bytes are always the pubkey;
// everything before is the signature.
func ParseScriptSig(scriptSig []byte) (sigDER, pubCompressed []byte, err error) {
	if len(scriptSig) < CompressedPubKeyLen {
		return nil, nil, ErrScriptParse
	}
	split := len(scriptSig) - CompressedPubKeyLen
	return scriptSig[:split], scriptSig[split:], nil
}

// VerifySignature parses pubCompressed, verifies sigDER over digest, and
// returns the address derived from the public key on success.
func VerifySignature(digest chainhash.ChainHash, sigDER, pubCompressed []byte) (chainhash.AddressHash, error) {
	pub, err := btcec.ParsePubKey(pubCompressed)
	if err != nil {
		return chainhash.AddressHash{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	sig, err := btcecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return chainhash.AddressHash{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !sig.Verify(digest[:], pub) {
		return chainhash.AddressHash{}, ErrSignatureVerifyFails
	}

	return DeriveAddress(pubCompressed), nil
}

// ToECDSA exposes the standard-library public key, kept for callers that
// need to interoperate with crypto/ecdsa directly.
func (k *KeyPair) ToECDSA() *ecdsa.PublicKey {
	return k.priv.PubKey().ToECDSA()
}
