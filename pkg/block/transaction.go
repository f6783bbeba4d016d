package block

import (
	"fmt"

	"github.com/gochain/gochain/pkg/chainhash"
	"github.com/gochain/gochain/pkg/keys"
	"github.com/gochain/gochain/pkg/script"
)

// CoinbasePrevVout is the sentinel previous-output index marking a
// coinbase input; a coinbase input's previous txid is always the zero hash.
const CoinbasePrevVout uint32 = 0xFFFFFFFF

// Output is a value locked to a script. Any output accepted into a block,
// coinbase included, must have Value > 0.
type Output struct {
	Value        uint64
	ScriptPubKey script.Script
}

// DraftInput is an input before signing: everything a script-sig would
// reference except the script-sig itself, so the signing digest is
// independent of any signature bytes.
type DraftInput struct {
	PrevTxID chainhash.ChainHash
	PrevVout uint32
	Sequence uint32
}

// Input is a signed transaction input.
type Input struct {
	PrevTxID  chainhash.ChainHash
	PrevVout  uint32
	ScriptSig []byte
	Sequence  uint32
}

// IsCoinbaseSentinel reports whether in is the coinbase sentinel input
// (zero previous txid, 0xFFFFFFFF previous vout).
func (in Input) IsCoinbaseSentinel() bool {
	return in.PrevTxID.IsZero() && in.PrevVout == CoinbasePrevVout
}

// Draft converts in back to its unsigned draft form (drops ScriptSig).
func (in Input) Draft() DraftInput {
	return DraftInput{PrevTxID: in.PrevTxID, PrevVout: in.PrevVout, Sequence: in.Sequence}
}

// DraftTransaction is an unsigned transaction: the shape that gets signed.
type DraftTransaction struct {
	Inputs    []DraftInput
	Outputs   []Output
	Timestamp uint64 // milliseconds since epoch
}

// Transaction is a signed transaction. ID is the double-SHA-256 of the
// canonical encoding of {Inputs, Outputs, Timestamp} and therefore binds
// to every input's signature.
type Transaction struct {
	ID        chainhash.ChainHash
	Inputs    []Input
	Outputs   []Output
	Timestamp uint64
}

// Draft builds an unsigned draft transaction, stamping Timestamp. No
// cryptography happens here.
func Draft(inputs []DraftInput, outputs []Output, timestampMillis uint64) DraftTransaction {
	return DraftTransaction{Inputs: inputs, Outputs: outputs, Timestamp: timestampMillis}
}

func encodeOutputs(enc *chainhash.Encoder, outputs []Output) {
	enc.PutUint32(uint32(len(outputs)))
	for _, o := range outputs {
		enc.PutUint64(o.Value)
		o.ScriptPubKey.Encode(enc)
	}
}

func encodeDraftInputs(enc *chainhash.Encoder, inputs []DraftInput) {
	enc.PutUint32(uint32(len(inputs)))
	for _, in := range inputs {
		enc.PutFixed(in.PrevTxID[:])
		enc.PutUint32(in.PrevVout)
		enc.PutUint32(in.Sequence)
	}
}

func encodeSignedInputs(enc *chainhash.Encoder, inputs []Input) {
	enc.PutUint32(uint32(len(inputs)))
	for _, in := range inputs {
		enc.PutFixed(in.PrevTxID[:])
		enc.PutUint32(in.PrevVout)
		enc.PutBytes(in.ScriptSig)
		enc.PutUint32(in.Sequence)
	}
}

// signingDigest computes double_sha256(encode({draftInputs, outputs, timestamp})).
// This is the exact byte sequence both Sign and VerifySignatures must
// reproduce; it is never cached, always recomputed.
func signingDigest(draftInputs []DraftInput, outputs []Output, timestamp uint64) chainhash.ChainHash {
	enc := chainhash.NewEncoder()
	encodeDraftInputs(enc, draftInputs)
	encodeOutputs(enc, outputs)
	enc.PutUint128(timestamp, 0)
	return enc.Hash()
}

// transactionID computes double_sha256(encode({inputs, outputs, timestamp}))
// over the *signed* inputs, so the id binds to every signature.
func transactionID(inputs []Input, outputs []Output, timestamp uint64) chainhash.ChainHash {
	enc := chainhash.NewEncoder()
	encodeSignedInputs(enc, inputs)
	encodeOutputs(enc, outputs)
	enc.PutUint128(timestamp, 0)
	return enc.Hash()
}

// Sign produces a fully signed Transaction from a draft. Every input
// shares the same signing digest and is signed with the same key pair —
// multi-key wallets sign per-input drafts individually and merge the
// results, a use case this core leaves to embedders.
func Sign(draft DraftTransaction, key *keys.KeyPair) Transaction {
	digest := signingDigest(draft.Inputs, draft.Outputs, draft.Timestamp)
	pub := key.PublicKeyCompressed()
	sigDER := key.Sign(digest)
	scriptSig := keys.BuildScriptSig(sigDER, pub)

	signed := make([]Input, len(draft.Inputs))
	for i, di := range draft.Inputs {
		signed[i] = Input{
			PrevTxID:  di.PrevTxID,
			PrevVout:  di.PrevVout,
			ScriptSig: scriptSig,
			Sequence:  di.Sequence,
		}
	}

	id := transactionID(signed, draft.Outputs, draft.Timestamp)
	return Transaction{ID: id, Inputs: signed, Outputs: draft.Outputs, Timestamp: draft.Timestamp}
}

// SigningDigest recomputes the digest tx's inputs were signed over, by
// stripping each input's script-sig back to its draft form. Callers that
// need to re-derive a signer's address (the ledger engine, matching an
// input against the output it spends) use this instead of re-deriving
// the digest by hand.
func SigningDigest(tx Transaction) chainhash.ChainHash {
	draftInputs := make([]DraftInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		draftInputs[i] = in.Draft()
	}
	return signingDigest(draftInputs, tx.Outputs, tx.Timestamp)
}

// VerifySignatures recomputes the signing digest from tx (stripping each
// input's script-sig) and checks every input's signature against it. It
// does not check that the recovered address matches the output being
// spent — the ledger engine does that once it has the UTXO.
func VerifySignatures(tx Transaction) error {
	digest := SigningDigest(tx)

	for i, in := range tx.Inputs {
		if in.IsCoinbaseSentinel() && len(tx.Inputs) == 1 {
			continue
		}
		sigDER, pub, err := keys.ParseScriptSig(in.ScriptSig)
		if err != nil {
			return fmt.Errorf("input %d: %w: %v", i, ErrScriptParse, err)
		}
		if _, err := keys.VerifySignature(digest, sigDER, pub); err != nil {
			return fmt.Errorf("input %d: %w: %v", i, ErrInvalidScript, err)
		}
	}
	return nil
}

// IsCoinbase reports whether tx is a coinbase transaction: a single
// coinbase-sentinel input, or (kept for historical compatibility) no
// inputs at all.
func IsCoinbase(tx Transaction) bool {
	if len(tx.Inputs) == 0 {
		return true
	}
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbaseSentinel()
}

// Coinbase builds the deterministic coinbase transaction paying reward to
// minerAddr. Its timestamp is pinned to 0 so its id is fully deterministic
// given (minerAddr, reward) — useful for genesis and for tests that need
// reproducible block hashes.
func Coinbase(minerAddr chainhash.AddressHash, reward uint64) Transaction {
	sentinel := Input{
		PrevTxID: chainhash.ChainHash{},
		PrevVout: CoinbasePrevVout,
		Sequence: 0,
	}
	outputs := []Output{{Value: reward, ScriptPubKey: script.NewPayToPubKeyHash(minerAddr)}}
	id := transactionID([]Input{sentinel}, outputs, 0)
	return Transaction{ID: id, Inputs: []Input{sentinel}, Outputs: outputs, Timestamp: 0}
}
