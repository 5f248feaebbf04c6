package txbuilder

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// HTLCInfo is the semantic description of one HTLC, carried into a
// commitment transaction.
type HTLCInfo struct {
	ValueSat    int64
	CltvExpiry  uint32
	PaymentHash [32]byte
	Offered     bool
}

// CommitmentKeys bundles the per-commitment-derived keys needed to build or
// parse one side's version of a commitment transaction.
type CommitmentKeys struct {
	RevocationPubKey     *btcec.PublicKey
	BroadcasterDelayedKey *btcec.PublicKey
	BroadcasterHtlcKey   *btcec.PublicKey
	CountersignerHtlcKey *btcec.PublicKey
	CountersignerPayKey  *btcec.PublicKey
}

// CommitmentInfo is the semantic view of a built or parsed commitment
// transaction, independent of its exact byte encoding.
type CommitmentInfo struct {
	IsCounterpartyBroadcaster bool
	ToBroadcasterValueSat     int64
	ToCountersignerValueSat   int64
	ToSelfDelay               uint16
	OfferedHTLCs              []HTLCInfo
	ReceivedHTLCs             []HTLCInfo
}

// ObscureCommitmentNumber computes the standard BOLT-3 obscuring factor from
// the two parties' payment basepoints: the low 48 bits of
// SHA256(payment_basepoint_a || payment_basepoint_b), with the points
// ordered opener-then-acceptor.
func ObscureCommitmentNumber(openerPaymentBasePoint, acceptorPaymentBasePoint *btcec.PublicKey) uint64 {
	h := sha256.New()
	h.Write(openerPaymentBasePoint.SerializeCompressed())
	h.Write(acceptorPaymentBasePoint.SerializeCompressed())
	sum := h.Sum(nil)

	var last6 [8]byte
	copy(last6[2:], sum[26:32])
	return binary.BigEndian.Uint64(last6[:])
}

// EncodeCommitmentNumber packs the obscured commitment number into the
// locktime and sequence fields of a commitment transaction per BOLT-3.
func EncodeCommitmentNumber(commitNum, obscureFactor uint64) (locktime, sequence uint32) {
	obscured := commitNum ^ obscureFactor
	locktime = uint32(0x20000000 | (obscured >> 24))
	sequence = uint32(0x80000000 | (obscured & 0xffffff))
	return locktime, sequence
}

// DecodeCommitmentNumber inverts EncodeCommitmentNumber.
func DecodeCommitmentNumber(locktime, sequence uint32, obscureFactor uint64) (uint64, error) {
	if locktime&0xff000000 != 0x20000000 {
		return 0, fmt.Errorf("txbuilder: locktime %#x is not a valid obscured commitment locktime", locktime)
	}
	if sequence&0xff000000 != 0x80000000 {
		return 0, fmt.Errorf("txbuilder: sequence %#x is not a valid obscured commitment sequence", sequence)
	}
	obscured := (uint64(locktime&0xffffff) << 24) | uint64(sequence&0xffffff)
	return obscured ^ obscureFactor, nil
}

// BuildCommitmentTx rebuilds the commitment transaction for one side of the
// channel from its semantic parameters. It returns the transaction and the
// script of each output in txOut order. Balance and HTLC outputs below
// dustLimitSat are left out; the list of HTLCs that did get an output is not
// returned.
func BuildCommitmentTx(commitType CommitmentType, keys CommitmentKeys,
	info CommitmentInfo, commitNum uint64, obscureFactor uint64,
	fundingOutpoint wire.OutPoint, localFundingPK, remoteFundingPK *btcec.PublicKey,
	dustLimitSat int64) (*wire.MsgTx, [][]byte, error) {

	locktime, sequence := EncodeCommitmentNumber(commitNum, obscureFactor)

	tx := wire.NewMsgTx(2)
	tx.LockTime = locktime
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundingOutpoint,
		Sequence:         sequence,
	})

	var witScripts [][]byte

	if info.ToBroadcasterValueSat >= dustLimitSat {
		script, err := ToLocalScript(info.ToSelfDelay, keys.RevocationPubKey, keys.BroadcasterDelayedKey)
		if err != nil {
			return nil, nil, err
		}
		pkScript, err := WitnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(&wire.TxOut{Value: info.ToBroadcasterValueSat, PkScript: pkScript})
		witScripts = append(witScripts, script)
	}

	if info.ToCountersignerValueSat >= dustLimitSat {
		script, err := ToRemoteScript(commitType, keys.CountersignerPayKey)
		if err != nil {
			return nil, nil, err
		}
		var pkScript []byte
		if commitType == CommitmentTypeLegacy {
			pkScript = script
		} else {
			pkScript, err = WitnessScriptHash(script)
			if err != nil {
				return nil, nil, err
			}
		}
		tx.AddTxOut(&wire.TxOut{Value: info.ToCountersignerValueSat, PkScript: pkScript})
		witScripts = append(witScripts, script)
	}

	if commitType == CommitmentTypeAnchors {
		for _, fundingPK := range []*btcec.PublicKey{localFundingPK, remoteFundingPK} {
			script, err := AnchorScript(fundingPK)
			if err != nil {
				return nil, nil, err
			}
			pkScript, err := WitnessScriptHash(script)
			if err != nil {
				return nil, nil, err
			}
			tx.AddTxOut(&wire.TxOut{Value: 330, PkScript: pkScript})
			witScripts = append(witScripts, script)
		}
	}

	hasAnchors := commitType == CommitmentTypeAnchors
	htlcs := append(append([]HTLCInfo{}, info.OfferedHTLCs...), info.ReceivedHTLCs...)
	sort.SliceStable(htlcs, func(i, j int) bool {
		return htlcs[i].CltvExpiry < htlcs[j].CltvExpiry
	})

	for _, htlc := range htlcs {
		if htlc.ValueSat < dustLimitSat {
			continue
		}

		var (
			script []byte
			err    error
		)
		if htlc.Offered {
			script, err = OfferedHTLCScript(
				keys.RevocationPubKey, keys.CountersignerHtlcKey,
				keys.BroadcasterHtlcKey, htlc.PaymentHash[:], hasAnchors,
			)
		} else {
			script, err = ReceivedHTLCScript(
				keys.RevocationPubKey, keys.BroadcasterHtlcKey,
				keys.CountersignerHtlcKey, htlc.PaymentHash[:],
				htlc.CltvExpiry, hasAnchors,
			)
		}
		if err != nil {
			return nil, nil, err
		}

		pkScript, err := WitnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(&wire.TxOut{Value: htlc.ValueSat, PkScript: pkScript})
		witScripts = append(witScripts, script)
	}

	return tx, witScripts, nil
}

// BuildHTLCTx builds the second-stage transaction that spends one HTLC
// output of a commitment transaction into a delayed-claimable output
// controlled by the broadcaster's delayed key / the revocation key.
func BuildHTLCTx(commitmentTxid chainhash.Hash, commitOutputIndex uint32,
	feerateSatPerKw uint32, toSelfDelay uint16, htlc HTLCInfo,
	broadcasterDelayedKey, revocationKey *btcec.PublicKey, hasAnchors bool) (*wire.MsgTx, []byte, error) {

	redeemScript, err := SecondLevelHTLCScript(revocationKey, broadcasterDelayedKey, toSelfDelay)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	tx := wire.NewMsgTx(2)
	var sequence uint32
	if hasAnchors {
		sequence = 1
	}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: commitmentTxid, Index: commitOutputIndex},
		Sequence:         sequence,
	})
	if !htlc.Offered {
		tx.LockTime = htlc.CltvExpiry
	}

	htlcTxWeight := int64(663)
	if hasAnchors {
		htlcTxWeight = 718
	}
	fee := (int64(feerateSatPerKw) * htlcTxWeight) / 1000

	tx.AddTxOut(&wire.TxOut{
		Value:    htlc.ValueSat - fee,
		PkScript: pkScript,
	})

	return tx, redeemScript, nil
}

// BuildCloseTx builds the two-output mutual-close transaction. Either output
// may be omitted if its value is below the dust limit.
func BuildCloseTx(toHolderSat, toCounterpartySat int64, holderScript,
	counterpartyScript []byte, fundingOutpoint wire.OutPoint, dustLimitSat int64) *wire.MsgTx {

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: fundingOutpoint,
		Sequence:         wire.MaxTxInSequenceNum,
	})

	type out struct {
		script []byte
		value  int64
	}
	outs := []out{
		{holderScript, toHolderSat},
		{counterpartyScript, toCounterpartySat},
	}
	sort.SliceStable(outs, func(i, j int) bool {
		if outs[i].value != outs[j].value {
			return outs[i].value < outs[j].value
		}
		return compareBytes(outs[i].script, outs[j].script) < 0
	})

	for _, o := range outs {
		if o.value < dustLimitSat {
			continue
		}
		tx.AddTxOut(&wire.TxOut{Value: o.value, PkScript: o.script})
	}

	return tx
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

// SigHash computes the BIP-143 witness-program sighash for inputIndex of tx,
// given the prior output's value and witness script.
func SigHash(tx *wire.MsgTx, hashType txscript.SigHashType, inputIndex int,
	amtSat int64, witnessScript []byte) ([]byte, error) {

	prevPkScript, err := WitnessScriptHash(witnessScript)
	if err != nil {
		return nil, err
	}
	fetcher := txscript.NewCannedPrevOutputFetcher(prevPkScript, amtSat)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	return txscript.CalcWitnessSigHash(witnessScript, sigHashes, hashType, tx, inputIndex, amtSat)
}

// FindOutputIndex returns the index of the first output whose pkScript
// equals script.
func FindOutputIndex(tx *wire.MsgTx, script []byte) (uint32, bool) {
	for i, txOut := range tx.TxOut {
		if bytesEqual(txOut.PkScript, script) {
			return uint32(i), true
		}
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
