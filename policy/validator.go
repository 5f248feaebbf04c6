package policy

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// Validator is a capability-typed policy engine parameterised on a network.
// It holds no channel-specific state; every method takes the state it needs
// as an explicit argument and returns either a proposed new state or a
// policy/internal error. A single Validator is safe to share across every
// channel on a node.
type Validator struct {
	params *chaincfg.Params
}

// NewValidator builds a Validator for the given network.
func NewValidator(params *chaincfg.Params) *Validator {
	return &Validator{params: params}
}

// ValidateChannelOpen checks a proposed ChannelSetup for internal sanity
// before the channel is allowed to leave the Stub state: bounds on channel
// value, delays, dust limit, and shutdown-script standardness.
func (v *Validator) ValidateChannelOpen(setup *ChannelSetup) error {
	if setup.ChannelValueSat < MinChannelValueSat || setup.ChannelValueSat > MaxChannelValueSat {
		return NewError(TagChannelValueRange,
			"channel value %d sat outside [%d, %d]",
			setup.ChannelValueSat, MinChannelValueSat, MaxChannelValueSat)
	}

	for _, delay := range []uint16{setup.HolderSelectedContestDelay, setup.CounterpartySelectedContestDelay} {
		if delay < MinContestDelay || delay > MaxContestDelay {
			return NewError(TagDelayRange,
				"contest delay %d outside [%d, %d]", delay, MinContestDelay, MaxContestDelay)
		}
	}

	if setup.DustLimitSat < MinDustLimitSat || setup.DustLimitSat > MaxDustLimitSat {
		return NewError(TagDustLimitRange,
			"dust limit %d sat outside [%d, %d]", setup.DustLimitSat, MinDustLimitSat, MaxDustLimitSat)
	}

	for _, script := range [][]byte{setup.HolderShutdownScript, setup.CounterpartyShutdownScript} {
		if len(script) == 0 {
			continue
		}
		if !isStandardShutdownScript(script) {
			return NewError(TagShutdownScript, "shutdown script %x is not a standard form", script)
		}
	}

	return nil
}

// isStandardShutdownScript recognizes P2WPKH, P2WSH, P2PKH, P2SH and
// (single-key) P2TR output scripts, the forms BOLT-2 requires a shutdown
// script to take.
func isStandardShutdownScript(script []byte) bool {
	switch {
	case len(script) == 22 && script[0] == 0x00 && script[1] == 0x14: // P2WPKH
		return true
	case len(script) == 34 && script[0] == 0x00 && script[1] == 0x20: // P2WSH
		return true
	case len(script) == 34 && script[0] == 0x51 && script[1] == 0x20: // P2TR
		return true
	case len(script) == 25 && script[0] == 0x76 && script[1] == 0xa9: // P2PKH
		return true
	case len(script) == 23 && script[0] == 0xa9: // P2SH
		return true
	default:
		return false
	}
}

// ChannelKeys derives the four/five per-commitment-derived keys needed to
// build or recompose one side's view of a commitment transaction; exported
// so the signer package can reconstruct the same keys used by MakeInfo when
// building the candidate transaction in step 1 of the signing pipeline.
func ChannelKeys(setup *ChannelSetup, holderBasepoints *keyderiv.ChannelBasepoints,
	isCounterpartyBroadcaster bool, perCommitmentPoint *btcec.PublicKey) txbuilder.CommitmentKeys {

	cp := setup.CounterpartyBasepoints

	var broadcasterDelayBase, broadcasterHtlcBase, broadcasterRevocationBase *btcec.PublicKey
	var countersignerHtlcBase, countersignerPayBase *btcec.PublicKey

	if isCounterpartyBroadcaster {
		broadcasterDelayBase = cp.DelayBasePoint
		broadcasterHtlcBase = cp.HtlcBasePoint
		broadcasterRevocationBase = holderBasepoints.RevocationBasePoint
		countersignerHtlcBase = holderBasepoints.HtlcBasePoint
		countersignerPayBase = holderBasepoints.PaymentBasePoint
	} else {
		broadcasterDelayBase = holderBasepoints.DelayBasePoint
		broadcasterHtlcBase = holderBasepoints.HtlcBasePoint
		broadcasterRevocationBase = cp.RevocationBasePoint
		countersignerHtlcBase = cp.HtlcBasePoint
		countersignerPayBase = cp.PaymentBasePoint
	}

	keys := txbuilder.CommitmentKeys{
		RevocationPubKey:      keyderiv.DeriveRevocationPubKey(broadcasterRevocationBase, perCommitmentPoint),
		BroadcasterDelayedKey: keyderiv.DerivePubKey(broadcasterDelayBase, perCommitmentPoint),
		BroadcasterHtlcKey:    keyderiv.DerivePubKey(broadcasterHtlcBase, perCommitmentPoint),
		CountersignerHtlcKey:  keyderiv.DerivePubKey(countersignerHtlcBase, perCommitmentPoint),
	}

	switch setup.CommitmentType {
	case txbuilder.CommitmentTypeStaticRemoteKey, txbuilder.CommitmentTypeAnchors:
		keys.CountersignerPayKey = countersignerPayBase
	default:
		keys.CountersignerPayKey = keyderiv.DerivePubKey(countersignerPayBase, perCommitmentPoint)
	}

	return keys
}

// MakeInfo checks a raw commitment transaction's fixed shape (version,
// encoded commitment number, single funding input) against what the setup
// and commitment number imply, each failure tagged with its own stable
// identifier, then parses its outputs against the witness scripts the
// caller claims go with them to yield the semantic CommitmentInfo view.
func (v *Validator) MakeInfo(setup *ChannelSetup, holderBasepoints *keyderiv.ChannelBasepoints,
	isCounterpartyBroadcaster bool, perCommitmentPoint *btcec.PublicKey,
	tx *wire.MsgTx, outputWitScripts [][]byte, toSelfDelay uint16,
	commitNum uint64, obscureFactor uint64) (*txbuilder.CommitmentInfo, error) {

	if tx.Version != 2 {
		return nil, NewError(TagCommitmentVersion, "commitment tx version %d != 2", tx.Version)
	}
	if len(tx.TxIn) != 1 {
		return nil, NewError(TagCommitmentInputSingle, "commitment tx has %d inputs, want 1", len(tx.TxIn))
	}
	if tx.TxIn[0].PreviousOutPoint != setup.FundingOutpoint {
		return nil, NewError(TagCommitmentInputMatchFund,
			"commitment tx input %s does not match funding outpoint %s",
			tx.TxIn[0].PreviousOutPoint, setup.FundingOutpoint)
	}

	decoded, err := txbuilder.DecodeCommitmentNumber(tx.LockTime, tx.TxIn[0].Sequence, obscureFactor)
	if err != nil {
		return nil, NewError(TagCommitmentLocktime, "commitment tx locktime/sequence do not encode a valid commitment number: %v", err)
	}
	if decoded != commitNum {
		return nil, NewError(TagCommitmentNSequence,
			"commitment tx encodes commitment number %d, want %d", decoded, commitNum)
	}

	keys := ChannelKeys(setup, holderBasepoints, isCounterpartyBroadcaster, perCommitmentPoint)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: isCounterpartyBroadcaster,
		ToSelfDelay:               toSelfDelay,
	}

	toLocalScript, err := txbuilder.ToLocalScript(toSelfDelay, keys.RevocationPubKey, keys.BroadcasterDelayedKey)
	if err != nil {
		return nil, NewInternalError("building to_local script: %v", err)
	}
	toRemoteScript, err := txbuilder.ToRemoteScript(setup.CommitmentType, keys.CountersignerPayKey)
	if err != nil {
		return nil, NewInternalError("building to_remote script: %v", err)
	}

	for i, txOut := range tx.TxOut {
		if i >= len(outputWitScripts) {
			break
		}
		script := outputWitScripts[i]
		if script == nil {
			continue
		}

		pkScript, err := txbuilder.WitnessScriptHash(script)
		if err != nil {
			return nil, NewInternalError("hashing witness script for output %d: %v", i, err)
		}
		if !bytes.Equal(pkScript, txOut.PkScript) {
			return nil, NewError(TagCommitmentRecomposition,
				"output %d witness script does not hash to its claimed pkScript", i)
		}

		// Anchor and HTLC outputs also carry a non-nil witness script here
		// but match neither template; only to_local/to_remote are tracked
		// on CommitmentInfo, so anything else is left unclassified.
		switch {
		case bytes.Equal(script, toLocalScript):
			info.ToBroadcasterValueSat = txOut.Value
		case bytes.Equal(script, toRemoteScript):
			info.ToCountersignerValueSat = txOut.Value
		}
	}

	return info, nil
}

// ValidateHolderCommitmentState checks that it is permissible to be asked to
// sign or verify a holder commitment at all — i.e. the channel has not
// already latched into mutual close.
func (v *Validator) ValidateHolderCommitmentState(state *EnforcementState) error {
	if state.MutualCloseSigned {
		return NewError(TagMutualCloseAlreadySigned, "mutual close already signed, no further commitment signing permitted")
	}
	return nil
}

// ValidateSignHolderCommitmentTx restricts signing-for-broadcast to the
// current or immediately previous holder commitment number.
func (v *Validator) ValidateSignHolderCommitmentTx(state *EnforcementState, commitNum uint64) error {
	if err := v.ValidateHolderCommitmentState(state); err != nil {
		return err
	}

	current := state.NextHolderCommitNum
	if current == 0 {
		return NewError(TagCommitNumMonotonic, "no holder commitment has been validated yet")
	}
	latest := current - 1
	if commitNum != latest && (latest == 0 || commitNum != latest-1) {
		return NewError(TagCommitNumMonotonic,
			"can only sign the current (%d) or previous (%d) holder commitment, got %d",
			latest, latest-1, commitNum)
	}
	return nil
}
