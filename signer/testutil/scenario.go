// Package testutil builds small in-memory signer scenarios for tests,
// mirroring the teacher's createTestWallet/createTestChannel helpers: a
// scenario owns a Node backed by a MemPersister and a fixed counterparty key
// set, so a test can go straight from "new node" to a Ready channel without
// repeating the BOLT-2 open dance by hand.
package testutil

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/persist"
	"github.com/lightningnetwork/validating-signer/policy"
	"github.com/lightningnetwork/validating-signer/signer"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// Counterparty is a throwaway key set standing in for the remote peer's
// announced basepoints plus the private keys needed to exercise the
// signer's Validate* entry points end to end in a test.
type Counterparty struct {
	FundingPriv          *btcec.PrivateKey
	RevocationBasePriv   *btcec.PrivateKey
	PaymentBasePriv      *btcec.PrivateKey
	DelayBasePriv        *btcec.PrivateKey
	HtlcBasePriv         *btcec.PrivateKey
	CommitmentSeed       [32]byte
}

// NewCounterparty generates a fresh set of counterparty keys.
func NewCounterparty() (*Counterparty, error) {
	priv := func() (*btcec.PrivateKey, error) { return btcec.NewPrivateKey() }

	fk, err := priv()
	if err != nil {
		return nil, err
	}
	rk, err := priv()
	if err != nil {
		return nil, err
	}
	pk, err := priv()
	if err != nil {
		return nil, err
	}
	dk, err := priv()
	if err != nil {
		return nil, err
	}
	hk, err := priv()
	if err != nil {
		return nil, err
	}
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}

	return &Counterparty{
		FundingPriv:        fk,
		RevocationBasePriv: rk,
		PaymentBasePriv:    pk,
		DelayBasePriv:      dk,
		HtlcBasePriv:       hk,
		CommitmentSeed:     seed,
	}, nil
}

// Basepoints returns the public half of the counterparty's key set, as
// announced in open_channel/accept_channel on the wire.
func (c *Counterparty) Basepoints() policy.CounterpartyBasepoints {
	return policy.CounterpartyBasepoints{
		FundingKey:          c.FundingPriv.PubKey(),
		RevocationBasePoint: c.RevocationBasePriv.PubKey(),
		PaymentBasePoint:    c.PaymentBasePriv.PubKey(),
		DelayBasePoint:      c.DelayBasePriv.PubKey(),
		HtlcBasePoint:       c.HtlcBasePriv.PubKey(),
	}
}

// CommitmentPoint derives the counterparty's per-commitment point for
// commitNum from its commitment seed, the same way a real counterparty's
// shachain-backed signer would.
func (c *Counterparty) CommitmentPoint(commitNum uint64) *btcec.PublicKey {
	return keyderiv.PerCommitmentPoint(c.CommitmentSeed, commitNum)
}

// Scenario bundles a signer.Node with an in-memory store and the
// counterparty key material used to drive it in tests.
type Scenario struct {
	Node          *signer.Node
	Store         *persist.MemPersister
	Counterparty  *Counterparty
	Params        *chaincfg.Params
}

// NewScenario constructs a fresh Node over an empty MemPersister on
// regtest, with a randomly generated counterparty key set.
func NewScenario() (*Scenario, error) {
	store := persist.NewMemPersister()

	node, err := signer.NewNode(&chaincfg.RegressionNetParams, store)
	if err != nil {
		return nil, fmt.Errorf("testutil: creating node: %w", err)
	}

	cp, err := NewCounterparty()
	if err != nil {
		return nil, fmt.Errorf("testutil: creating counterparty: %w", err)
	}

	return &Scenario{
		Node:         node,
		Store:        store,
		Counterparty: cp,
		Params:       &chaincfg.RegressionNetParams,
	}, nil
}

// ReadyChannelOpts carries the handful of open-time parameters the six
// concrete scenarios in the specification vary.
type ReadyChannelOpts struct {
	Nonce                            []byte
	ChannelValueSat                  int64
	PushValueMsat                    uint64
	IsOutbound                       bool
	HolderSelectedContestDelay       uint16
	CounterpartySelectedContestDelay uint16
	CommitmentType                   txbuilder.CommitmentType
	DustLimitSat                     int64
	FundingOutpoint                  wire.OutPoint
}

// DefaultReadyChannelOpts returns the literal values used by the
// "happy path commit at N=0" scenario: nonce "nonce0", a 3,000,000 sat
// outbound StaticRemoteKey channel with a 144-block contest delay on both
// sides.
func DefaultReadyChannelOpts() ReadyChannelOpts {
	return ReadyChannelOpts{
		Nonce:                            []byte("nonce0"),
		ChannelValueSat:                  3_000_000,
		IsOutbound:                       true,
		HolderSelectedContestDelay:       144,
		CounterpartySelectedContestDelay: 144,
		CommitmentType:                   txbuilder.CommitmentTypeStaticRemoteKey,
		DustLimitSat:                     330,
		FundingOutpoint:                  wire.OutPoint{Index: 0},
	}
}

// ReadyChannel drives a Stub channel through NewChannel/ReadyChannel using
// the scenario's counterparty basepoints, returning the resulting Channel.
func (s *Scenario) ReadyChannel(opts ReadyChannelOpts) (*signer.Channel, error) {
	if _, err := s.Node.NewChannel(opts.Nonce); err != nil {
		return nil, fmt.Errorf("testutil: creating stub channel: %w", err)
	}

	setup := policy.ChannelSetup{
		IsOutbound:                       opts.IsOutbound,
		ChannelValueSat:                  opts.ChannelValueSat,
		PushValueMsat:                    opts.PushValueMsat,
		FundingOutpoint:                  opts.FundingOutpoint,
		HolderSelectedContestDelay:       opts.HolderSelectedContestDelay,
		CounterpartySelectedContestDelay: opts.CounterpartySelectedContestDelay,
		CounterpartyBasepoints:           s.Counterparty.Basepoints(),
		CommitmentType:                   opts.CommitmentType,
		DustLimitSat:                     opts.DustLimitSat,
	}

	return s.Node.ReadyChannel(opts.Nonce, setup)
}
