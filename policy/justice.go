package policy

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
)

// allowedJusticeSweepSequences is the set of sequence values a justice sweep
// input may use: 0, the opt-in RBF value 0xfffffffd, or the fully final
// 0xffffffff.
var allowedJusticeSweepSequences = map[uint32]bool{
	0:                       true,
	0xFFFFFFFD:              true,
	wire.MaxTxInSequenceNum: true,
}

// ValidateJusticeSweep enforces the tightest policy in the engine: a
// justice transaction moves funds that were only ever supposed to be swept
// by the honest party after a breach, so the destination must be on the
// node's allowlist (normally a wallet-controlled address) or regenerable
// from a wallet derivation path the caller supplied, the transaction must
// be a simple single-input sweep, and the fee must sit inside the normal
// range observed for justice transactions.
//
// walletPathScript is the output script the signer's own key ring derives
// from a caller-supplied wallet path, or nil if the caller supplied none;
// it is accepted as an alternative to an allowlisted destination address.
func (v *Validator) ValidateJusticeSweep(tx *wire.MsgTx, inputValueSat int64,
	allowlist map[string]bool, destAddr string, walletPathScript []byte) error {

	if tx.Version != 2 {
		return NewError(TagJusticeSweepVersion, "justice sweep tx version %d != 2", tx.Version)
	}
	if tx.LockTime != 0 {
		return NewError(TagJusticeSweepLocktime, "justice sweep tx locktime %d != 0", tx.LockTime)
	}
	if len(tx.TxIn) != 1 {
		return NewError(TagJusticeSweepInputOutputOne, "justice sweep tx has %d inputs, want 1", len(tx.TxIn))
	}
	if len(tx.TxOut) != 1 {
		return NewError(TagJusticeSweepInputOutputOne, "justice sweep tx has %d outputs, want 1", len(tx.TxOut))
	}
	if !allowedJusticeSweepSequences[tx.TxIn[0].Sequence] {
		return NewError(TagJusticeSweepSequence, "justice sweep tx sequence %#x not in {0, 0xfffffffd, 0xffffffff}", tx.TxIn[0].Sequence)
	}

	destAllowed := allowlist[destAddr]
	if !destAllowed && walletPathScript != nil {
		destAllowed = bytes.Equal(tx.TxOut[0].PkScript, walletPathScript)
	}
	if !destAllowed {
		return NewError(TagJusticeSweepDestAllowlisted, "justice sweep destination %s is not allowlisted", destAddr)
	}

	feeSat := inputValueSat - tx.TxOut[0].Value
	if feeSat < MinJusticeSweepFeeSat || feeSat > MaxJusticeSweepFeeSat {
		return NewError(TagJusticeSweepFeeRange, "justice sweep fee %d sat outside [%d, %d]", feeSat, MinJusticeSweepFeeSat, MaxJusticeSweepFeeSat)
	}

	return nil
}
