package policy

import "github.com/lightningnetwork/validating-signer/txbuilder"

// EnforcementState is the authoritative per-channel progress record: the
// only state the validator consults (read-only) and proposes updates to. It
// holds no secrets — only counters, points and the semantic shape of the
// last two commitments on each side.
type EnforcementState struct {
	// NextHolderCommitNum is the index of the next holder commitment
	// expected to be signed by the counterparty.
	NextHolderCommitNum uint64

	// NextCounterpartyCommitNum is the index of the next counterparty
	// commitment this signer expects to be asked to sign.
	NextCounterpartyCommitNum uint64

	// NextCounterpartyRevokeNum is the index of the next counterparty
	// commitment this signer expects a revocation secret for.
	NextCounterpartyRevokeNum uint64

	CurrentCounterpartyPoint  []byte // 33-byte compressed pubkey, nil if unset
	PreviousCounterpartyPoint []byte

	CurrentHolderCommitInfo        *txbuilder.CommitmentInfo
	PreviousHolderCommitInfo       *txbuilder.CommitmentInfo
	CurrentCounterpartyCommitInfo  *txbuilder.CommitmentInfo
	PreviousCounterpartyCommitInfo *txbuilder.CommitmentInfo

	MutualCloseSigned bool
}

// Clone returns a deep-enough copy of the state suitable for validating a
// proposed transition onto: the channel mutex is held across validate and
// persist, but the caller is expected to validate onto a clone and only
// swap the live state in after a successful persist (see signer.Channel).
func (s *EnforcementState) Clone() *EnforcementState {
	if s == nil {
		return &EnforcementState{}
	}

	clone := *s

	if s.CurrentCounterpartyPoint != nil {
		clone.CurrentCounterpartyPoint = append([]byte(nil), s.CurrentCounterpartyPoint...)
	}
	if s.PreviousCounterpartyPoint != nil {
		clone.PreviousCounterpartyPoint = append([]byte(nil), s.PreviousCounterpartyPoint...)
	}
	if s.CurrentHolderCommitInfo != nil {
		info := *s.CurrentHolderCommitInfo
		clone.CurrentHolderCommitInfo = &info
	}
	if s.PreviousHolderCommitInfo != nil {
		info := *s.PreviousHolderCommitInfo
		clone.PreviousHolderCommitInfo = &info
	}
	if s.CurrentCounterpartyCommitInfo != nil {
		info := *s.CurrentCounterpartyCommitInfo
		clone.CurrentCounterpartyCommitInfo = &info
	}
	if s.PreviousCounterpartyCommitInfo != nil {
		info := *s.PreviousCounterpartyCommitInfo
		clone.PreviousCounterpartyCommitInfo = &info
	}

	return &clone
}
