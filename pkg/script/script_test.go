package script

import (
	"testing"

	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayToPubKeyHashAddress(t *testing.T) {
	addr := chainhash.AddressHash{1, 2, 3, 4, 5}
	s := NewPayToPubKeyHash(addr)

	got, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func TestAddressRejectsUnknownKind(t *testing.T) {
	s := Script{Kind: Kind(99)}
	_, err := s.Address()
	assert.Error(t, err)
}

func TestAddressRejectsMissingPayload(t *testing.T) {
	s := Script{Kind: PayToPubKeyHash}
	_, err := s.Address()
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	addr := chainhash.AddressHash{9, 8, 7}
	s := NewPayToPubKeyHash(addr)

	enc := chainhash.NewEncoder()
	s.Encode(enc)
	raw := enc.Bytes()

	// Encode writes a length-prefixed kind byte (4-byte len + 1 byte kind)
	// followed by the raw address payload, matching PutBytes/PutFixed.
	kind := raw[4]
	payload := raw[5:]

	decoded, err := Decode(kind, payload)
	require.NoError(t, err)
	gotAddr, err := decoded.Address()
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode(99, make([]byte, chainhash.AddressSize))
	assert.Error(t, err)
}

func TestDecodeRejectsBadPayloadLength(t *testing.T) {
	_, err := Decode(byte(PayToPubKeyHash), []byte{1, 2, 3})
	assert.Error(t, err)
}
