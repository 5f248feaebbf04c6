package policy

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// justiceTx builds a minimal single-input, single-output justice sweep
// transaction paying outputValueSat, with the shape ValidateJusticeSweep
// requires: version 2, locktime 0, final sequence. The first argument is
// unused by the tx itself; callers pass it alongside for readability at the
// call site, matching it against the inputValueSat argument to
// ValidateJusticeSweep.
func justiceTx(_, outputValueSat int64) *wire.MsgTx {
	tx := wire.NewMsgTx(2)

	prevOut := wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: 0}
	in := wire.NewTxIn(&prevOut, nil, nil)
	in.Sequence = wire.MaxTxInSequenceNum
	tx.AddTxIn(in)

	pkScript := []byte{0x00, 0x14}
	for i := 0; i < 20; i++ {
		pkScript = append(pkScript, byte(i))
	}
	tx.AddTxOut(wire.NewTxOut(outputValueSat, pkScript))

	return tx
}
