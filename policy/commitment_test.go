package policy

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

func testSetup(channelValueSat int64) *ChannelSetup {
	return &ChannelSetup{
		IsOutbound:                       true,
		ChannelValueSat:                  channelValueSat,
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 144,
		CommitmentType:                   txbuilder.CommitmentTypeStaticRemoteKey,
		DustLimitSat:                     330,
	}
}

// TestValidateCommitmentTxHappyPath mirrors scenario 1 from the
// specification: a fresh channel signing its first counterparty commitment
// at N=0 with a 3,000,000 sat channel value and a fee that conserves value.
func TestValidateCommitmentTxHappyPath(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	state := &EnforcementState{}
	setup := testSetup(3_000_000)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
	}
	feeSat := setup.ChannelValueSat - info.ToBroadcasterValueSat - info.ToCountersignerValueSat

	next, err := v.ValidateCommitmentTx(state, setup, info, 0, feeSat)
	if err != nil {
		t.Fatalf("expected happy-path commitment to validate, got: %v", err)
	}
	if next.NextCounterpartyCommitNum != 1 {
		t.Fatalf("next_counterparty_commit_num = %d, want 1", next.NextCounterpartyCommitNum)
	}
}

// TestValidateCommitmentTxRejectsWrongCommitNum checks the monotonicity
// invariant: a commitment number other than the expected next one is
// rejected.
func TestValidateCommitmentTxRejectsWrongCommitNum(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	state := &EnforcementState{NextCounterpartyCommitNum: 0}
	setup := testSetup(3_000_000)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
	}

	_, err := v.ValidateCommitmentTx(state, setup, info, 1, 20_003)
	if err == nil {
		t.Fatalf("expected monotonicity violation to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagCommitNumMonotonic {
		t.Fatalf("expected tag %s, got %v", TagCommitNumMonotonic, err)
	}
}

// TestValidateCommitmentTxRejectsValueMismatch checks value conservation:
// outputs plus fee must equal the channel value exactly.
func TestValidateCommitmentTxRejectsValueMismatch(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	state := &EnforcementState{}
	setup := testSetup(3_000_000)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     2_000_000,
		ToCountersignerValueSat:   1_000_000,
	}

	_, err := v.ValidateCommitmentTx(state, setup, info, 0, 20_000)
	if err == nil {
		t.Fatalf("expected value conservation violation to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagValueConservation {
		t.Fatalf("expected tag %s, got %v", TagValueConservation, err)
	}
}

// TestValidateCommitmentTxRejectsFeeOutOfRange checks the fee-range bound.
func TestValidateCommitmentTxRejectsFeeOutOfRange(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	state := &EnforcementState{}
	setup := testSetup(3_000_000)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     2_000_000,
		ToCountersignerValueSat:   800_000,
	}
	feeSat := setup.ChannelValueSat - info.ToBroadcasterValueSat - info.ToCountersignerValueSat

	_, err := v.ValidateCommitmentTx(state, setup, info, 0, feeSat)
	if err == nil {
		t.Fatalf("expected out-of-range fee to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagFeeRange {
		t.Fatalf("expected tag %s, got %v", TagFeeRange, err)
	}
}

// TestValidateCommitmentTxRejectsHTLCMutation checks that an HTLC present in
// the previous commitment on the same side cannot silently change shape in
// the next one.
func TestValidateCommitmentTxRejectsHTLCMutation(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	setup := testSetup(3_000_000)

	hash := [32]byte{1, 2, 3}
	firstInfo := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_479_997,
		ToCountersignerValueSat:   1_000_000,
		OfferedHTLCs: []txbuilder.HTLCInfo{
			{ValueSat: 500_000, CltvExpiry: 500, PaymentHash: hash, Offered: true},
		},
	}
	feeSat := setup.ChannelValueSat - firstInfo.ToBroadcasterValueSat - firstInfo.ToCountersignerValueSat - 500_000

	state, err := v.ValidateCommitmentTx(&EnforcementState{}, setup, firstInfo, 0, feeSat)
	if err != nil {
		t.Fatalf("expected first commitment to validate, got: %v", err)
	}

	// The HTLC shrinks by 100,000 sat; that value moves to the broadcaster's
	// output so the fee (and therefore fee-range check) stays unchanged,
	// isolating the HTLC-consistency check as the one that should fire.
	mutatedInfo := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_579_997,
		ToCountersignerValueSat:   1_000_000,
		OfferedHTLCs: []txbuilder.HTLCInfo{
			{ValueSat: 400_000, CltvExpiry: 500, PaymentHash: hash, Offered: true},
		},
	}
	feeSat2 := setup.ChannelValueSat - mutatedInfo.ToBroadcasterValueSat - mutatedInfo.ToCountersignerValueSat - 400_000

	_, err = v.ValidateCommitmentTx(state, setup, mutatedInfo, 1, feeSat2)
	if err == nil {
		t.Fatalf("expected htlc mutation to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagHTLCConsistency {
		t.Fatalf("expected tag %s, got %v", TagHTLCConsistency, err)
	}
}

// TestValidateJusticeSweepAllowlisted mirrors scenario 2: a destination on
// the allowlist is accepted.
func TestValidateJusticeSweepAllowlisted(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	addr := "tb1qg975h6gdx5mryeac72h6lj2nzygugxhyk6dnhr"
	allowlist := map[string]bool{addr: true}

	tx := justiceTx(1_000_000, 999_000)

	if err := v.ValidateJusticeSweep(tx, 1_000_000, allowlist, addr, nil); err != nil {
		t.Fatalf("expected allowlisted justice sweep to validate, got: %v", err)
	}
}

// TestValidateJusticeSweepNotAllowlisted mirrors scenario 3: the same
// transaction without the allowlist entry is rejected.
func TestValidateJusticeSweepNotAllowlisted(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	addr := "tb1qg975h6gdx5mryeac72h6lj2nzygugxhyk6dnhr"

	tx := justiceTx(1_000_000, 999_000)

	err := v.ValidateJusticeSweep(tx, 1_000_000, map[string]bool{}, addr, nil)
	if err == nil {
		t.Fatalf("expected unallowlisted destination to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagJusticeSweepDestAllowlisted {
		t.Fatalf("expected tag %s, got %v", TagJusticeSweepDestAllowlisted, err)
	}
}

// TestValidateJusticeSweepWalletPath checks the wallet-derivation-path
// alternative to an allowlist entry.
func TestValidateJusticeSweepWalletPath(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	tx := justiceTx(1_000_000, 999_000)

	err := v.ValidateJusticeSweep(tx, 1_000_000, map[string]bool{}, "unused", tx.TxOut[0].PkScript)
	if err != nil {
		t.Fatalf("expected wallet-path destination to validate, got: %v", err)
	}
}

// TestValidateJusticeSweepFeeOutOfRange checks the fee bound on a justice
// sweep.
func TestValidateJusticeSweepFeeOutOfRange(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	tx := justiceTx(1_000_000, 1_000_000-200_000)

	err := v.ValidateJusticeSweep(tx, 1_000_000, map[string]bool{}, "unused", tx.TxOut[0].PkScript)
	if err == nil {
		t.Fatalf("expected out-of-range justice sweep fee to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagJusticeSweepFeeRange {
		t.Fatalf("expected tag %s, got %v", TagJusticeSweepFeeRange, err)
	}
}

// TestValidateJusticeSweepRBFSequence checks that an RBF-signaling sequence
// is accepted alongside the fully-final one.
func TestValidateJusticeSweepRBFSequence(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	addr := "tb1qg975h6gdx5mryeac72h6lj2nzygugxhyk6dnhr"
	allowlist := map[string]bool{addr: true}

	tx := justiceTx(1_000_000, 999_000)
	tx.TxIn[0].Sequence = 0xFFFFFFFD

	if err := v.ValidateJusticeSweep(tx, 1_000_000, allowlist, addr, nil); err != nil {
		t.Fatalf("expected RBF-sequence justice sweep to validate, got: %v", err)
	}
}

// TestValidateJusticeSweepBadSequence checks that a sequence outside
// {0, 0xfffffffd, 0xffffffff} is rejected.
func TestValidateJusticeSweepBadSequence(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	addr := "tb1qg975h6gdx5mryeac72h6lj2nzygugxhyk6dnhr"
	allowlist := map[string]bool{addr: true}

	tx := justiceTx(1_000_000, 999_000)
	tx.TxIn[0].Sequence = 5

	err := v.ValidateJusticeSweep(tx, 1_000_000, allowlist, addr, nil)
	if err == nil {
		t.Fatalf("expected non-standard sequence to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagJusticeSweepSequence {
		t.Fatalf("expected tag %s, got %v", TagJusticeSweepSequence, err)
	}
}

// TestValidateCommitmentTxRetransmission checks that re-proposing the
// currently pending counterparty commitment (N = next-1) is accepted without
// advancing state, and that a mismatched retransmission is rejected.
func TestValidateCommitmentTxRetransmission(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	setup := testSetup(3_000_000)

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
	}
	feeSat := setup.ChannelValueSat - info.ToBroadcasterValueSat - info.ToCountersignerValueSat

	state, err := v.ValidateCommitmentTx(&EnforcementState{}, setup, info, 0, feeSat)
	if err != nil {
		t.Fatalf("expected first commitment to validate, got: %v", err)
	}
	if state.NextCounterpartyCommitNum != 1 {
		t.Fatalf("next_counterparty_commit_num = %d, want 1", state.NextCounterpartyCommitNum)
	}

	retransmitted := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
	}
	again, err := v.ValidateCommitmentTx(state, setup, retransmitted, 0, feeSat)
	if err != nil {
		t.Fatalf("expected retransmission of the pending commitment to validate, got: %v", err)
	}
	if again.NextCounterpartyCommitNum != 1 {
		t.Fatalf("retransmission must not advance next_counterparty_commit_num, got %d", again.NextCounterpartyCommitNum)
	}

	mismatched := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_879_997,
		ToCountersignerValueSat:   1_100_000,
	}
	_, err = v.ValidateCommitmentTx(state, setup, mismatched, 0, feeSat)
	if err == nil {
		t.Fatalf("expected mismatched retransmission to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagCommitNumMonotonic {
		t.Fatalf("expected tag %s, got %v", TagCommitNumMonotonic, err)
	}
}

// TestValidateJusticeSweepBadVersion checks the fixed-shape checks reject a
// non-standard transaction version.
func TestValidateJusticeSweepBadVersion(t *testing.T) {
	t.Parallel()

	v := NewValidator(&chaincfg.RegressionNetParams)
	tx := justiceTx(1_000_000, 999_000)
	tx.Version = 3

	err := v.ValidateJusticeSweep(tx, 1_000_000, map[string]bool{}, "unused", tx.TxOut[0].PkScript)
	if err == nil {
		t.Fatalf("expected bad version to be rejected")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Tag != TagJusticeSweepVersion {
		t.Fatalf("expected tag %s, got %v", TagJusticeSweepVersion, err)
	}
}
