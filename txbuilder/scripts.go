// Package txbuilder rebuilds Lightning commitment, HTLC, mutual-close and
// justice/sweep transactions from their semantic parameters, and computes
// the BIP-143 sighashes needed to sign them. Every function here is pure:
// no network access, no persistence, no implicit state. This mirrors the
// teacher's lnwallet/script_utils.go witness-script builders, generalized
// from its pre-segwit HTLC shapes to the current BOLT-3 script forms.
package txbuilder

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

// CommitmentType enumerates the three channel output formats this signer
// understands.
type CommitmentType int

const (
	CommitmentTypeLegacy CommitmentType = iota
	CommitmentTypeStaticRemoteKey
	CommitmentTypeAnchors
)

// MaxWitnessScriptSize bounds the HTLC/commitment scripts this package will
// ever build; used as a cheap sanity check against malformed inputs.
const MaxWitnessScriptSize = 201

// WitnessScriptHash returns the P2WSH output script paying to redeemScript.
func WitnessScriptHash(redeemScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	sum := sha256.Sum256(redeemScript)
	bldr.AddData(sum[:])
	return bldr.Script()
}

// ripemd160Hash returns RIPEMD160(b), used by the HTLC scripts which compare
// against RIPEMD160 of the already-SHA256'd payment hash.
func ripemd160Hash(b []byte) []byte {
	h := ripemd160.New()
	h.Write(b)
	return h.Sum(nil)
}

// FundingScript builds the 2-of-2 funding redeem script and its P2WSH
// output, with keys sorted lexicographically per BOLT-3.
func FundingScript(localFundingPK, remoteFundingPK *btcec.PublicKey, amt int64) ([]byte, []byte, error) {
	if amt <= 0 {
		return nil, nil, fmt.Errorf("txbuilder: non-positive funding amount %d", amt)
	}

	aPub := localFundingPK.SerializeCompressed()
	bPub := remoteFundingPK.SerializeCompressed()
	if bytes.Compare(aPub, bPub) == 1 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	redeemScript, err := bldr.Script()
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}
	return redeemScript, pkScript, nil
}

// ToLocalScript builds the "commitment to self" script: spendable
// immediately by the revocation key, or by the local delayed key after
// toSelfDelay confirmations.
//
//	OP_IF
//	    <revocationPubKey>
//	OP_ELSE
//	    <toSelfDelay>
//	    OP_CHECKSEQUENCEVERIFY
//	    OP_DROP
//	    <localDelayedPubKey>
//	OP_ENDIF
//	OP_CHECKSIG
func ToLocalScript(toSelfDelay uint16, revocationPubKey, localDelayedPubKey *btcec.PublicKey) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_IF)
	bldr.AddData(revocationPubKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddInt64(int64(toSelfDelay))
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddData(localDelayedPubKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	return bldr.Script()
}

// ToRemoteScript builds the output paying the counterparty's settled
// balance. For StaticRemoteKey and Anchors channels this is a simple
// CHECKSIG (optionally behind a 1-block CSV for anchors, to force the
// spender through a P2WSH path so anchor outputs remain malleable-fee
// friendly); for Legacy channels it's an unencumbered P2WPKH.
func ToRemoteScript(commitType CommitmentType, remotePubKey *btcec.PublicKey) ([]byte, error) {
	switch commitType {
	case CommitmentTypeLegacy:
		bldr := txscript.NewScriptBuilder()
		bldr.AddOp(txscript.OP_0)
		bldr.AddData(btcutil.Hash160(remotePubKey.SerializeCompressed()))
		return bldr.Script()

	case CommitmentTypeStaticRemoteKey, CommitmentTypeAnchors:
		bldr := txscript.NewScriptBuilder()
		bldr.AddData(remotePubKey.SerializeCompressed())
		bldr.AddOp(txscript.OP_CHECKSIG)
		if commitType == CommitmentTypeAnchors {
			bldr.AddOp(txscript.OP_1)
			bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
			bldr.AddOp(txscript.OP_DROP)
		}
		return bldr.Script()

	default:
		return nil, fmt.Errorf("txbuilder: unknown commitment type %d", commitType)
	}
}

// AnchorScript builds a channel anchor output script: spendable by its owner
// immediately, or by anyone after 16 confirmations (CPFP carve-out).
func AnchorScript(fundingPubKey *btcec.PublicKey) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddData(fundingPubKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_IFDUP)
	bldr.AddOp(txscript.OP_NOTIF)
	bldr.AddOp(txscript.OP_16)
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_ENDIF)
	return bldr.Script()
}

// OfferedHTLCScript builds the output script for an HTLC offered by the
// local broadcaster of this commitment: redeemable by the receiver with the
// payment preimage, by the receiver's revocation key if this commitment was
// revoked, or by the sender after the absolute CLTV expiry.
func OfferedHTLCScript(revocationPubKey, receiverHtlcPubKey,
	senderHtlcPubKey *btcec.PublicKey, paymentHash []byte, hasAnchors bool) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_DUP)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(btcutil.Hash160(revocationPubKey.SerializeCompressed()))
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddData(receiverHtlcPubKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddOp(txscript.OP_SIZE)
	bldr.AddInt64(32)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_NOTIF)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddInt64(2)
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddData(senderHtlcPubKey.SerializeCompressed())
	bldr.AddInt64(2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(ripemd160Hash(paymentHash))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ENDIF)
	if hasAnchors {
		bldr.AddOp(txscript.OP_1)
		bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
		bldr.AddOp(txscript.OP_DROP)
	}
	bldr.AddOp(txscript.OP_ENDIF)
	return bldr.Script()
}

// ReceivedHTLCScript builds the output script for an HTLC received by the
// local broadcaster of this commitment: redeemable by the receiver with the
// preimage before the CLTV expiry, by the sender's revocation key if this
// commitment was revoked, or by the sender after the absolute CLTV expiry.
func ReceivedHTLCScript(revocationPubKey, receiverHtlcPubKey,
	senderHtlcPubKey *btcec.PublicKey, paymentHash []byte, cltvExpiry uint32,
	hasAnchors bool) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_DUP)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(btcutil.Hash160(revocationPubKey.SerializeCompressed()))
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddData(senderHtlcPubKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddOp(txscript.OP_SIZE)
	bldr.AddInt64(32)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(ripemd160Hash(paymentHash))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddInt64(2)
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddData(receiverHtlcPubKey.SerializeCompressed())
	bldr.AddInt64(2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddInt64(int64(cltvExpiry))
	bldr.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ENDIF)
	if hasAnchors {
		bldr.AddOp(txscript.OP_1)
		bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
		bldr.AddOp(txscript.OP_DROP)
	}
	bldr.AddOp(txscript.OP_ENDIF)
	return bldr.Script()
}

// SecondLevelHTLCScript builds the script for the second-stage HTLC-success
// / HTLC-timeout transaction output: spendable by the revocation key
// immediately, or by the delayed key after toSelfDelay.
func SecondLevelHTLCScript(revocationPubKey, delayedPubKey *btcec.PublicKey, toSelfDelay uint16) ([]byte, error) {
	return ToLocalScript(toSelfDelay, revocationPubKey, delayedPubKey)
}
