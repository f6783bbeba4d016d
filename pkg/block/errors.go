package block

import "errors"

// Errors surfaced by transaction and block construction/verification.
var (
	ErrInvalidPublicKey      = errors.New("block: invalid public key in script-sig")
	ErrInvalidSignatureForm  = errors.New("block: malformed signature")
	ErrScriptParse           = errors.New("block: could not parse script-sig")
	ErrInvalidScript         = errors.New("block: signature verification failed")
	ErrEmptyTransactions     = errors.New("block: block must contain at least one transaction")
	ErrNotCoinbase           = errors.New("block: first transaction must be coinbase")
	ErrMerkleMismatch        = errors.New("block: merkle root does not match transactions")
	ErrHeaderHashMismatch    = errors.New("block: header hash does not match recomputed hash")
	ErrProofOfWork           = errors.New("block: header hash does not meet difficulty target")
	ErrZeroHash              = errors.New("block: header hash must not be the zero hash")
	ErrTimestampTooFarFuture = errors.New("block: timestamp too far in the future")
)
