package policy

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// DecodeAndValidateHTLCTx checks the shape of a proposed second-level HTLC
// transaction (offered or received) against the HTLC it claims to spend,
// then returns the fee it pays so the caller can check it against policy.
func (v *Validator) DecodeAndValidateHTLCTx(tx *wire.MsgTx, htlc *txbuilder.HTLCInfo,
	toSelfDelay uint16, feerateSatPerKw uint32, hasAnchors bool) (feeSat int64, err error) {

	if tx.Version != 2 {
		return 0, NewError(TagHTLCDelay, "htlc tx version %d != 2", tx.Version)
	}
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		return 0, NewError(TagHTLCDelay, "htlc tx must have exactly one input and one output")
	}

	if !htlc.Offered {
		if tx.LockTime != htlc.CltvExpiry {
			return 0, NewError(TagHTLCDelay, "received-htlc tx locktime %d != htlc cltv_expiry %d", tx.LockTime, htlc.CltvExpiry)
		}
	} else if tx.LockTime != 0 {
		return 0, NewError(TagHTLCDelay, "offered-htlc tx locktime %d != 0", tx.LockTime)
	}

	wantSequence := uint32(0)
	if hasAnchors {
		wantSequence = 1
	}
	if tx.TxIn[0].Sequence != wantSequence {
		return 0, NewError(TagHTLCDelay, "htlc tx sequence %d != %d", tx.TxIn[0].Sequence, wantSequence)
	}

	feeSat = htlc.ValueSat - tx.TxOut[0].Value
	if feeSat < 0 {
		return 0, NewError(TagHTLCAmount, "htlc tx output %d sat exceeds htlc value %d sat", tx.TxOut[0].Value, htlc.ValueSat)
	}

	htlcTxWeight := int64(663)
	if hasAnchors {
		htlcTxWeight = 718
	}
	expectedFee := (int64(feerateSatPerKw) * htlcTxWeight) / 1000
	if !withinFeeTolerance(feeSat, expectedFee) {
		return 0, NewError(TagHTLCFeerate, "htlc tx fee %d sat too far from expected %d sat at feerate %d", feeSat, expectedFee, feerateSatPerKw)
	}

	return feeSat, nil
}

// withinFeeTolerance allows the observed fee to differ from the naively
// expected one by up to half, guarding against off-by-weight-estimate
// false rejections while still catching grossly wrong fees.
func withinFeeTolerance(observed, expected int64) bool {
	if expected <= 0 {
		return observed >= 0
	}
	lower := expected / 2
	upper := expected * 2
	return observed >= lower && observed <= upper
}

// ValidateHTLCTx validates a second-level HTLC transaction and, on success,
// has no state effect: HTLC transactions do not advance the commitment
// counters, they only spend commitments already accepted.
func (v *Validator) ValidateHTLCTx(setup *ChannelSetup, tx *wire.MsgTx, htlc *txbuilder.HTLCInfo,
	toSelfDelay uint16, feerateSatPerKw uint32) error {

	hasAnchors := setup.CommitmentType == txbuilder.CommitmentTypeAnchors
	_, err := v.DecodeAndValidateHTLCTx(tx, htlc, toSelfDelay, feerateSatPerKw, hasAnchors)
	return err
}
