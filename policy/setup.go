package policy

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// CounterpartyBasepoints bundles the five basepoints the counterparty
// announced during channel open.
type CounterpartyBasepoints struct {
	FundingKey          *btcec.PublicKey
	RevocationBasePoint *btcec.PublicKey
	PaymentBasePoint    *btcec.PublicKey
	DelayBasePoint      *btcec.PublicKey
	HtlcBasePoint       *btcec.PublicKey
}

// ChannelSetup is the immutable-once-ready channel configuration negotiated
// at open time.
type ChannelSetup struct {
	IsOutbound                      bool
	ChannelValueSat                 int64
	PushValueMsat                   uint64
	FundingOutpoint                 wire.OutPoint
	HolderSelectedContestDelay      uint16
	CounterpartySelectedContestDelay uint16
	HolderShutdownScript            []byte
	CounterpartyShutdownScript      []byte
	CounterpartyBasepoints          CounterpartyBasepoints
	CommitmentType                  txbuilder.CommitmentType
	DustLimitSat                    int64
}

// Policy-level numeric bounds. These mirror the conservative ranges an
// honest implementation of BOLT-2/3 operates within; a real deployment may
// make these configurable per network, but the defaults below are safe for
// mainnet and testnet alike.
const (
	MinChannelValueSat = 1_000
	MaxChannelValueSat = 1_000_000_000_000 // 10,000 BTC, comfortably above any wumbo channel seen in practice

	MinContestDelay = 4
	MaxContestDelay = 2016

	MinDustLimitSat = 330
	MaxDustLimitSat = 10_000

	MinCommitFeeSat = 1
	MaxCommitFeeSat = 100_000

	MinJusticeSweepFeeSat = 1
	MaxJusticeSweepFeeSat = 100_000

	MaxHTLCCount = 966
)
