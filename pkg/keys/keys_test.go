package keys

import (
	"testing"

	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctKeys(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), b.Address())
}

func TestFromPrivateKeyBytesRoundTrips(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	reconstructed, err := FromPrivateKeyBytes(kp.PrivateKeyBytes())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), reconstructed.Address())
	assert.Equal(t, kp.PublicKeyCompressed(), reconstructed.PublicKeyCompressed())
}

func TestFromPrivateKeyBytesRejectsWrongLength(t *testing.T) {
	_, err := FromPrivateKeyBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSignAndVerifySignatureRoundTrips(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	digest := chainhash.DoubleSHA256([]byte("some transaction bytes"))
	sig := kp.Sign(digest)

	addr, err := VerifySignature(digest, sig, kp.PublicKeyCompressed())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), addr)
}

func TestVerifySignatureRejectsTamperedDigest(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	digest := chainhash.DoubleSHA256([]byte("original"))
	sig := kp.Sign(digest)

	tampered := chainhash.DoubleSHA256([]byte("tampered"))
	_, err = VerifySignature(tampered, sig, kp.PublicKeyCompressed())
	assert.Error(t, err)
}

func TestVerifySignatureRejectsWrongPublicKey(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	digest := chainhash.DoubleSHA256([]byte("payload"))
	sig := kp.Sign(digest)

	_, err = VerifySignature(digest, sig, other.PublicKeyCompressed())
	assert.Error(t, err)
}

func TestBuildAndParseScriptSig(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	digest := chainhash.DoubleSHA256([]byte("payload"))
	sig := kp.Sign(digest)

	scriptSig := BuildScriptSig(sig, kp.PublicKeyCompressed())
	gotSig, gotPub, err := ParseScriptSig(scriptSig)
	require.NoError(t, err)
	assert.Equal(t, sig, gotSig)
	assert.Equal(t, kp.PublicKeyCompressed(), gotPub)
}

func TestParseScriptSigRejectsTooShort(t *testing.T) {
	_, _, err := ParseScriptSig(make([]byte, CompressedPubKeyLen-1))
	assert.ErrorIs(t, err, ErrScriptParse)
}

func TestDeriveAddressIsDeterministic(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	a1 := DeriveAddress(kp.PublicKeyCompressed())
	a2 := DeriveAddress(kp.PublicKeyCompressed())
	assert.Equal(t, a1, a2)
	assert.Equal(t, kp.Address(), a1)
}
