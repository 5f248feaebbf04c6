package policy

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// ValidateCommitmentTx is the heart of the validator: given the proposed
// semantic view of a new commitment (as produced by MakeInfo), it checks
// monotonicity of the commitment index, conservation of value across the
// two sides plus fee, the fee is within policy bounds, and HTLC-set
// consistency with the previous commitment on the same side. On success it
// returns the EnforcementState the caller should persist before releasing
// any signature.
func (v *Validator) ValidateCommitmentTx(state *EnforcementState, setup *ChannelSetup,
	info *txbuilder.CommitmentInfo, commitNum uint64, feeSat int64) (*EnforcementState, error) {

	next := state.Clone()

	if info.IsCounterpartyBroadcaster {
		if next.NextCounterpartyCommitNum > 0 && commitNum == next.NextCounterpartyCommitNum-1 {
			// Retransmission of the current pending commitment: the caller
			// must be proposing exactly what was already accepted, and
			// state does not advance again.
			if !sameCommitmentInfo(next.CurrentCounterpartyCommitInfo, info) {
				return nil, NewError(TagCommitNumMonotonic,
					"retransmitted counterparty commitment %d does not match the one on record", commitNum)
			}
			return next, nil
		}
		if commitNum != next.NextCounterpartyCommitNum {
			return nil, NewError(TagCommitNumMonotonic,
				"counterparty commitment number %d != expected %d", commitNum, next.NextCounterpartyCommitNum)
		}
	} else {
		if commitNum != next.NextHolderCommitNum {
			return nil, NewError(TagCommitNumMonotonic,
				"holder commitment number %d != expected %d", commitNum, next.NextHolderCommitNum)
		}
	}

	total := info.ToBroadcasterValueSat + info.ToCountersignerValueSat + feeSat + sumHTLCs(info.OfferedHTLCs) + sumHTLCs(info.ReceivedHTLCs)
	if total != setup.ChannelValueSat {
		return nil, NewError(TagValueConservation,
			"commitment outputs+fee %d sat != channel value %d sat", total, setup.ChannelValueSat)
	}

	if feeSat < MinCommitFeeSat || feeSat > MaxCommitFeeSat {
		return nil, NewError(TagFeeRange, "commitment fee %d sat outside [%d, %d]", feeSat, MinCommitFeeSat, MaxCommitFeeSat)
	}

	var previous *txbuilder.CommitmentInfo
	if info.IsCounterpartyBroadcaster {
		previous = next.CurrentCounterpartyCommitInfo
	} else {
		previous = next.CurrentHolderCommitInfo
	}
	if err := validateHTLCDelta(previous, info); err != nil {
		return nil, err
	}

	if info.IsCounterpartyBroadcaster {
		next.PreviousCounterpartyCommitInfo = next.CurrentCounterpartyCommitInfo
		next.CurrentCounterpartyCommitInfo = info
		next.NextCounterpartyCommitNum++
	} else {
		next.PreviousHolderCommitInfo = next.CurrentHolderCommitInfo
		next.CurrentHolderCommitInfo = info
		next.NextHolderCommitNum++
	}

	return next, nil
}

// sumHTLCs totals the value of a set of HTLCs, for inclusion in the
// conserved value check alongside the broadcaster/countersigner outputs and
// fee.
func sumHTLCs(htlcs []txbuilder.HTLCInfo) int64 {
	var sum int64
	for _, h := range htlcs {
		sum += h.ValueSat
	}
	return sum
}

// index keys a set of HTLCs by payment hash for set comparison.
func index(htlcs []txbuilder.HTLCInfo) map[[32]byte]txbuilder.HTLCInfo {
	m := make(map[[32]byte]txbuilder.HTLCInfo, len(htlcs))
	for _, h := range htlcs {
		m[h.PaymentHash] = h
	}
	return m
}

// sameCommitmentInfo reports whether two commitment views describe the same
// proposed state, used to recognise a retransmission of the currently
// pending commitment rather than a new one.
func sameCommitmentInfo(a, b *txbuilder.CommitmentInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ToBroadcasterValueSat != b.ToBroadcasterValueSat ||
		a.ToCountersignerValueSat != b.ToCountersignerValueSat ||
		a.ToSelfDelay != b.ToSelfDelay ||
		len(a.OfferedHTLCs) != len(b.OfferedHTLCs) ||
		len(a.ReceivedHTLCs) != len(b.ReceivedHTLCs) {
		return false
	}
	aOffered, bOffered := index(a.OfferedHTLCs), index(b.OfferedHTLCs)
	aReceived, bReceived := index(a.ReceivedHTLCs), index(b.ReceivedHTLCs)
	return sameHTLCSet(aOffered, bOffered) && sameHTLCSet(aReceived, bReceived)
}

func sameHTLCSet(a, b map[[32]byte]txbuilder.HTLCInfo) bool {
	if len(a) != len(b) {
		return false
	}
	for hash, ha := range a {
		hb, ok := b[hash]
		if !ok || ha.ValueSat != hb.ValueSat || ha.CltvExpiry != hb.CltvExpiry {
			return false
		}
	}
	return true
}

// validateHTLCDelta checks that every HTLC present in the previous
// commitment on this side is either still present, unchanged, in the new
// one, or has legitimately been removed — the validator cannot observe
// resolution directly so it only enforces that no HTLC is ever silently
// mutated (same id, different amount/hash/expiry).
func validateHTLCDelta(previous, next *txbuilder.CommitmentInfo) error {
	if previous == nil {
		return nil
	}

	prevOffered := index(previous.OfferedHTLCs)
	nextOffered := index(next.OfferedHTLCs)
	prevReceived := index(previous.ReceivedHTLCs)
	nextReceived := index(next.ReceivedHTLCs)

	for hash, p := range prevOffered {
		if n, ok := nextOffered[hash]; ok {
			if n.ValueSat != p.ValueSat || n.CltvExpiry != p.CltvExpiry {
				return NewError(TagHTLCConsistency, "offered htlc %x changed shape across commitments", hash)
			}
		}
	}
	for hash, p := range prevReceived {
		if n, ok := nextReceived[hash]; ok {
			if n.ValueSat != p.ValueSat || n.CltvExpiry != p.CltvExpiry {
				return NewError(TagHTLCConsistency, "received htlc %x changed shape across commitments", hash)
			}
		}
	}

	return nil
}

// ValidateCounterpartyRevocation checks a revocation secret against the
// point the counterparty previously committed to for that commitment
// index, and that the revoked commitment is not the counterparty's most
// recent — a signer must never reveal the secret for its own latest state.
func (v *Validator) ValidateCounterpartyRevocation(state *EnforcementState,
	revokedCommitNum uint64, perCommitmentSecret *btcec.PrivateKey) (*EnforcementState, error) {

	next := state.Clone()

	if revokedCommitNum != next.NextCounterpartyRevokeNum {
		return nil, NewError(TagCommitNumMonotonic,
			"revocation for commitment %d, expected %d", revokedCommitNum, next.NextCounterpartyRevokeNum)
	}
	if next.NextCounterpartyCommitNum <= revokedCommitNum+1 {
		return nil, NewError(TagRevokeNewCommitmentSigned,
			"cannot revoke commitment %d before a newer one has been signed", revokedCommitNum)
	}

	if next.PreviousCounterpartyPoint == nil {
		return nil, NewInternalError("no recorded counterparty per-commitment point to check revocation against")
	}

	derived := perCommitmentSecret.PubKey()
	expected, err := btcec.ParsePubKey(next.PreviousCounterpartyPoint)
	if err != nil {
		return nil, NewInternalError("parsing recorded counterparty point: %v", err)
	}
	if !derived.IsEqual(expected) {
		return nil, NewError(TagRevokeNewCommitmentValid, "revealed secret does not match the per-commitment point on record")
	}

	next.NextCounterpartyRevokeNum++
	return next, nil
}

// RecordCounterpartyPoint updates the rolling current/previous
// per-commitment-point pair the validator checks revocations against. It is
// called whenever the signer learns a new counterparty per-commitment
// point, independent of revocation.
func RecordCounterpartyPoint(state *EnforcementState, point *btcec.PublicKey) *EnforcementState {
	next := state.Clone()
	next.PreviousCounterpartyPoint = next.CurrentCounterpartyPoint
	next.CurrentCounterpartyPoint = point.SerializeCompressed()
	return next
}
