package signer_test

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/policy"
	"github.com/lightningnetwork/validating-signer/signer/testutil"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// TestSignCounterpartyCommitmentTxHappyPath mirrors scenario 1 from the
// specification: a fresh outbound 3,000,000 sat StaticRemoteKey channel
// signs its first counterparty commitment at N=0.
func TestSignCounterpartyCommitmentTxHappyPath(t *testing.T) {
	t.Parallel()

	s, err := testutil.NewScenario()
	if err != nil {
		t.Fatalf("creating scenario: %v", err)
	}

	ch, err := s.ReadyChannel(testutil.DefaultReadyChannelOpts())
	if err != nil {
		t.Fatalf("readying channel: %v", err)
	}

	setup := ch.Setup()
	remotePCP := s.Counterparty.CommitmentPoint(0)

	keys := policy.ChannelKeys(setup, ch.Basepoints(), true, remotePCP)
	// setup.IsOutbound == true means the holder is the opener, so the
	// opener/acceptor order for the obscure factor is holder-then-counterparty.
	obscureFactor := txbuilder.ObscureCommitmentNumber(ch.Basepoints().PaymentBasePoint, setup.CounterpartyBasepoints.PaymentBasePoint)

	info := txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
		ToSelfDelay:               setup.CounterpartySelectedContestDelay,
	}

	tx, witScripts, err := txbuilder.BuildCommitmentTx(
		setup.CommitmentType, keys, info, 0, obscureFactor,
		setup.FundingOutpoint, ch.Basepoints().FundingKey, setup.CounterpartyBasepoints.FundingKey,
		setup.DustLimitSat,
	)
	if err != nil {
		t.Fatalf("building counterparty commitment tx: %v", err)
	}

	sig, err := ch.SignCounterpartyCommitmentTx(tx, witScripts, remotePCP, 0, 5000, nil, nil, 1_979_997, 1_000_000)
	if err != nil {
		t.Fatalf("expected happy-path signature, got error: %v", err)
	}
	if sig == nil {
		t.Fatalf("expected non-nil signature")
	}
}

// TestSignCounterpartyCommitmentTxBadVersion mirrors scenario 4: a
// structurally wrong commitment version is rejected with the version tag
// specifically, not a generic recomposition mismatch.
func TestSignCounterpartyCommitmentTxBadVersion(t *testing.T) {
	t.Parallel()

	s, err := testutil.NewScenario()
	if err != nil {
		t.Fatalf("creating scenario: %v", err)
	}

	ch, err := s.ReadyChannel(testutil.DefaultReadyChannelOpts())
	if err != nil {
		t.Fatalf("readying channel: %v", err)
	}

	setup := ch.Setup()
	remotePCP := s.Counterparty.CommitmentPoint(0)

	keys := policy.ChannelKeys(setup, ch.Basepoints(), true, remotePCP)
	obscureFactor := txbuilder.ObscureCommitmentNumber(ch.Basepoints().PaymentBasePoint, setup.CounterpartyBasepoints.PaymentBasePoint)

	info := txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
		ToSelfDelay:               setup.CounterpartySelectedContestDelay,
	}

	tx, witScripts, err := txbuilder.BuildCommitmentTx(
		setup.CommitmentType, keys, info, 0, obscureFactor,
		setup.FundingOutpoint, ch.Basepoints().FundingKey, setup.CounterpartyBasepoints.FundingKey,
		setup.DustLimitSat,
	)
	if err != nil {
		t.Fatalf("building counterparty commitment tx: %v", err)
	}
	tx.Version = 3

	_, err = ch.SignCounterpartyCommitmentTx(tx, witScripts, remotePCP, 0, 5000, nil, nil, 1_979_997, 1_000_000)
	if err == nil {
		t.Fatalf("expected bad commitment version to be rejected")
	}
	perr, ok := err.(*policy.Error)
	if !ok || perr.Tag != policy.TagCommitmentVersion {
		t.Fatalf("expected tag %s, got %v", policy.TagCommitmentVersion, err)
	}
}

// TestSignMutualCloseLatchesChannel mirrors scenario 6: after a mutual
// close is signed, a subsequent counterparty commitment sign is refused.
func TestSignMutualCloseLatchesChannel(t *testing.T) {
	t.Parallel()

	s, err := testutil.NewScenario()
	if err != nil {
		t.Fatalf("creating scenario: %v", err)
	}

	ch, err := s.ReadyChannel(testutil.DefaultReadyChannelOpts())
	if err != nil {
		t.Fatalf("readying channel: %v", err)
	}

	setup := ch.Setup()

	closeTx := wire.NewMsgTx(2)
	closeTx.AddTxIn(wire.NewTxIn(&setup.FundingOutpoint, nil, nil))
	closeTx.AddTxOut(wire.NewTxOut(setup.ChannelValueSat-500, []byte{0x00, 0x14, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}))

	if _, err := ch.SignMutualCloseTx(closeTx, setup.ChannelValueSat); err != nil {
		t.Fatalf("expected mutual close to sign cleanly, got: %v", err)
	}

	remotePCP := s.Counterparty.CommitmentPoint(0)
	keys := policy.ChannelKeys(setup, ch.Basepoints(), true, remotePCP)
	obscureFactor := txbuilder.ObscureCommitmentNumber(ch.Basepoints().PaymentBasePoint, setup.CounterpartyBasepoints.PaymentBasePoint)
	info := txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: true,
		ToBroadcasterValueSat:     1_979_997,
		ToCountersignerValueSat:   1_000_000,
		ToSelfDelay:               setup.CounterpartySelectedContestDelay,
	}
	tx, witScripts, err := txbuilder.BuildCommitmentTx(
		setup.CommitmentType, keys, info, 0, obscureFactor,
		setup.FundingOutpoint, ch.Basepoints().FundingKey, setup.CounterpartyBasepoints.FundingKey,
		setup.DustLimitSat,
	)
	if err != nil {
		t.Fatalf("building counterparty commitment tx: %v", err)
	}

	_, err = ch.SignCounterpartyCommitmentTx(tx, witScripts, remotePCP, 0, 5000, nil, nil, 1_979_997, 1_000_000)
	if err == nil {
		t.Fatalf("expected commitment sign to be refused after mutual close")
	}
	perr, ok := err.(*policy.Error)
	if !ok || perr.Tag != policy.TagMutualCloseAlreadySigned {
		t.Fatalf("expected tag %s, got %v", policy.TagMutualCloseAlreadySigned, err)
	}
}
