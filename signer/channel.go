package signer

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/metrics"
	"github.com/lightningnetwork/validating-signer/policy"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

type slotKind int

const (
	slotStub slotKind = iota
	slotReady
)

// ChannelSlot is the sum type Node stores per channel: a Stub before
// ready_channel, a Ready Channel after. The transition from Stub to Ready
// happens exactly once, in Node.ReadyChannel.
type ChannelSlot struct {
	kind slotKind

	nodeID     string
	nonce      []byte
	basepoints *keyderiv.ChannelBasepoints

	channel *Channel // non-nil only when kind == slotReady
}

// IsReady reports whether this slot has completed the Stub→Ready
// transition.
func (s *ChannelSlot) IsReady() bool {
	return s.kind == slotReady
}

// Channel returns the underlying Ready channel, or nil for a Stub.
func (s *ChannelSlot) Channel() *Channel {
	return s.channel
}

// GetPerCommitmentPoint is one of the three operations a Stub answers; a
// Stub answers only index 0. For a Ready channel it defers to the Channel
// implementation, which returns the point for any index.
func (s *ChannelSlot) GetPerCommitmentPoint(commitNum uint64) (*btcec.PublicKey, error) {
	if s.kind == slotStub {
		if commitNum != 0 {
			return nil, &policy.Error{Tag: policy.TagStubOperationNotAllowed, Message: "stub channel only answers commitment index 0"}
		}
		return keyderiv.PerCommitmentPoint(s.basepoints.CommitmentSeed, 0), nil
	}
	return s.channel.GetPerCommitmentPoint(commitNum)
}

// CheckFutureSecret is the second Stub-answerable operation.
func (s *ChannelSlot) CheckFutureSecret(commitNum uint64, secret *btcec.PrivateKey) (bool, error) {
	expected := keyderiv.PerCommitmentSecret(s.basepoints.CommitmentSeed, commitNum)
	var candidate [32]byte
	copy(candidate[:], secret.Serialize())
	return bytes.Equal(expected[:], candidate[:]), nil
}

// Channel is a fully ready channel: its setup is immutable and its
// enforcement state advances only through validated transitions.
type Channel struct {
	nodeID string
	nonce  []byte
	id0    [32]byte

	basepoints *keyderiv.ChannelBasepoints
	setup      *policy.ChannelSetup
	state      *policy.EnforcementState
}

func (c *Channel) node() (*Node, error) {
	return resolveNode(c.nodeID)
}

// obscureFactor computes the obscure factor over the two sides' payment
// basepoints, ordered opener-then-acceptor.
func (c *Channel) obscureFactor() (uint64, error) {
	localBasepoints := c.basepoints
	var opener, acceptor *btcec.PublicKey
	if c.setup.IsOutbound {
		opener = localBasepoints.PaymentBasePoint
		acceptor = c.setup.CounterpartyBasepoints.PaymentBasePoint
	} else {
		opener = c.setup.CounterpartyBasepoints.PaymentBasePoint
		acceptor = localBasepoints.PaymentBasePoint
	}
	return txbuilder.ObscureCommitmentNumber(opener, acceptor), nil
}

// recomposeCommitment runs step 1 (Reconstruct) of the four-step pipeline
// shared by every commitment-signing/validating operation: derive the
// per-commitment keys, rebuild the transaction from the semantic
// parameters, and return it alongside its witness scripts so the caller can
// run step 2 (Compare) against a caller-supplied raw transaction.
func (c *Channel) recomposeCommitment(isCounterpartyBroadcaster bool,
	commitNum uint64, perCommitmentPoint *btcec.PublicKey,
	offered, received []txbuilder.HTLCInfo, toBroadcasterSat, toCountersignerSat int64) (*wire.MsgTx, [][]byte, *txbuilder.CommitmentInfo, error) {

	keys := policy.ChannelKeys(c.setup, c.basepoints, isCounterpartyBroadcaster, perCommitmentPoint)

	toSelfDelay := c.setup.HolderSelectedContestDelay
	if isCounterpartyBroadcaster {
		toSelfDelay = c.setup.CounterpartySelectedContestDelay
	}

	info := &txbuilder.CommitmentInfo{
		IsCounterpartyBroadcaster: isCounterpartyBroadcaster,
		ToBroadcasterValueSat:     toBroadcasterSat,
		ToCountersignerValueSat:   toCountersignerSat,
		ToSelfDelay:               toSelfDelay,
		OfferedHTLCs:              offered,
		ReceivedHTLCs:             received,
	}

	obscureFactor, err := c.obscureFactor()
	if err != nil {
		return nil, nil, nil, policy.NewInternalError("computing commitment obscure factor: %v", err)
	}

	tx, witScripts, err := txbuilder.BuildCommitmentTx(
		c.setup.CommitmentType, keys, *info, commitNum, obscureFactor,
		c.setup.FundingOutpoint, c.basepoints.FundingKey, c.setup.CounterpartyBasepoints.FundingKey,
		c.setup.DustLimitSat,
	)
	if err != nil {
		return nil, nil, nil, policy.NewInternalError("building commitment tx: %v", err)
	}

	return tx, witScripts, info, nil
}

// checkSuppliedShape runs MakeInfo against the caller-supplied raw
// transaction, which raises a specific tag (wrong version, malformed
// encoded commitment number, wrong funding input) before step 2 falls back
// to a generic recomposition-mismatch verdict for anything else that
// differs.
func (c *Channel) checkSuppliedShape(n *Node, isCounterpartyBroadcaster bool, commitNum uint64,
	perCommitmentPoint *btcec.PublicKey, toSelfDelay uint16, tx *wire.MsgTx, witScripts [][]byte) error {

	obscureFactor, err := c.obscureFactor()
	if err != nil {
		return policy.NewInternalError("computing commitment obscure factor: %v", err)
	}

	_, err = n.validator.MakeInfo(c.setup, c.basepoints, isCounterpartyBroadcaster,
		perCommitmentPoint, tx, witScripts, toSelfDelay, commitNum, obscureFactor)
	return err
}

// compareTx implements step 2 (Compare): bitwise equality between the
// caller-supplied raw transaction and the reconstruction.
func compareTx(want, got *wire.MsgTx, wantScripts, gotScripts [][]byte) error {
	var wantBuf, gotBuf bytes.Buffer
	if err := want.Serialize(&wantBuf); err != nil {
		return policy.NewInternalError("serializing reconstructed tx: %v", err)
	}
	if err := got.Serialize(&gotBuf); err != nil {
		return policy.NewInternalError("serializing supplied tx: %v", err)
	}
	if !bytes.Equal(wantBuf.Bytes(), gotBuf.Bytes()) {
		return policy.NewError(policy.TagCommitmentRecomposition, "supplied commitment tx does not match reconstruction")
	}

	if len(wantScripts) != len(gotScripts) {
		return policy.NewError(policy.TagCommitmentRecomposition, "supplied witness script count %d != reconstructed %d", len(gotScripts), len(wantScripts))
	}
	for i := range wantScripts {
		if !bytes.Equal(wantScripts[i], gotScripts[i]) {
			return policy.NewError(policy.TagCommitmentRecomposition, "supplied witness script %d does not match reconstruction", i)
		}
	}

	return nil
}

func sumHTLCs(htlcs []txbuilder.HTLCInfo) int64 {
	var total int64
	for _, h := range htlcs {
		total += h.ValueSat
	}
	return total
}

// SignCounterpartyCommitmentTx rebuilds and signs the counterparty's
// version of the commitment transaction for index commitNum. The supplied
// tx/witScripts are the counterparty's proposal; they must match the
// reconstruction bitwise.
func (c *Channel) SignCounterpartyCommitmentTx(tx *wire.MsgTx, witScripts [][]byte,
	remotePCP *btcec.PublicKey, commitNum uint64, feerateSatPerKw uint32,
	offered, received []txbuilder.HTLCInfo, toBroadcasterSat, toCountersignerSat int64) (*ecdsa.Signature, error) {

	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}

	if err := n.validator.ValidateHolderCommitmentState(c.state); err != nil {
		return nil, err
	}

	rebuilt, rebuiltScripts, info, err := c.recomposeCommitment(
		true, commitNum, remotePCP, offered, received, toBroadcasterSat, toCountersignerSat)
	if err != nil {
		return nil, err
	}

	if err := c.checkSuppliedShape(n, true, commitNum, remotePCP, info.ToSelfDelay, tx, witScripts); err != nil {
		return nil, err
	}

	if err := compareTx(rebuilt, tx, rebuiltScripts, witScripts); err != nil {
		return nil, err
	}

	feeSat := c.setup.ChannelValueSat - toBroadcasterSat - toCountersignerSat - sumHTLCs(offered) - sumHTLCs(received)

	next, err := n.validator.ValidateCommitmentTx(c.state, c.setup, info, commitNum, feeSat)
	if err != nil {
		return nil, err
	}

	sig, err := c.signFundingSpend(n, rebuilt)
	if err != nil {
		return nil, err
	}

	if err := c.commit(n, next); err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("counterparty_commitment").Inc()
	return sig, nil
}

// SignHolderCommitmentTx signs the holder's own commitment transaction for
// broadcast; only the current or previous commitment number is permitted.
func (c *Channel) SignHolderCommitmentTx(tx *wire.MsgTx, witScripts [][]byte, commitNum uint64,
	feerateSatPerKw uint32, offered, received []txbuilder.HTLCInfo,
	toBroadcasterSat, toCountersignerSat int64) (*ecdsa.Signature, error) {

	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}

	if err := n.validator.ValidateSignHolderCommitmentTx(c.state, commitNum); err != nil {
		return nil, err
	}

	pcp := keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum)

	rebuilt, rebuiltScripts, info, err := c.recomposeCommitment(
		false, commitNum, pcp, offered, received, toBroadcasterSat, toCountersignerSat)
	if err != nil {
		return nil, err
	}

	if err := c.checkSuppliedShape(n, false, commitNum, pcp, info.ToSelfDelay, tx, witScripts); err != nil {
		return nil, err
	}

	if err := compareTx(rebuilt, tx, rebuiltScripts, witScripts); err != nil {
		return nil, err
	}

	sig, err := c.signFundingSpend(n, rebuilt)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("holder_commitment").Inc()
	return sig, nil
}

// ValidateHolderCommitmentTx verifies the counterparty's signature over the
// rebuilt holder commitment, advances next_holder_commit_num on success, and
// returns the per-commitment point for the next index plus the revocable
// secret for commitNum-1 when available. The HTLC transaction signatures in
// ctpHtlcSigs are not verified.
func (c *Channel) ValidateHolderCommitmentTx(tx *wire.MsgTx, witScripts [][]byte, commitNum uint64,
	feerateSatPerKw uint32, offered, received []txbuilder.HTLCInfo,
	toBroadcasterSat, toCountersignerSat int64,
	ctpCommitSig *ecdsa.Signature, ctpHtlcSigs []*ecdsa.Signature) (*btcec.PublicKey, *btcec.PrivateKey, error) {

	n, err := c.node()
	if err != nil {
		return nil, nil, policy.NewInternalError("resolving node: %v", err)
	}

	if err := n.validator.ValidateHolderCommitmentState(c.state); err != nil {
		return nil, nil, err
	}

	pcp := keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum)

	rebuilt, rebuiltScripts, info, err := c.recomposeCommitment(
		false, commitNum, pcp, offered, received, toBroadcasterSat, toCountersignerSat)
	if err != nil {
		return nil, nil, err
	}

	if err := c.checkSuppliedShape(n, false, commitNum, pcp, info.ToSelfDelay, tx, witScripts); err != nil {
		return nil, nil, err
	}

	if err := compareTx(rebuilt, tx, rebuiltScripts, witScripts); err != nil {
		return nil, nil, err
	}

	fundingScript, _, err := txbuilder.FundingScript(
		c.basepoints.FundingKey, c.setup.CounterpartyBasepoints.FundingKey, c.setup.ChannelValueSat)
	if err != nil {
		return nil, nil, policy.NewInternalError("building funding script: %v", err)
	}
	sigHash, err := txbuilder.SigHash(rebuilt, txscript.SigHashAll, 0, c.setup.ChannelValueSat, fundingScript)
	if err != nil {
		return nil, nil, policy.NewInternalError("computing funding sighash: %v", err)
	}
	if !ctpCommitSig.Verify(sigHash, c.setup.CounterpartyBasepoints.FundingKey) {
		return nil, nil, policy.NewError(policy.TagCommitmentRecomposition, "counterparty commitment signature does not verify")
	}

	feeSat := c.setup.ChannelValueSat - toBroadcasterSat - toCountersignerSat - sumHTLCs(offered) - sumHTLCs(received)
	next, err := n.validator.ValidateCommitmentTx(c.state, c.setup, info, commitNum, feeSat)
	if err != nil {
		return nil, nil, err
	}

	if err := c.commit(n, next); err != nil {
		return nil, nil, err
	}

	nextPCP := keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum+1)

	var oldSecret *btcec.PrivateKey
	if commitNum >= 1 {
		oldSecret = keyderiv.PerCommitmentPrivateKey(c.basepoints.CommitmentSeed, commitNum-1)
	}

	metrics.SignaturesIssued.WithLabelValues("holder_commitment_validated").Inc()
	return nextPCP, oldSecret, nil
}

// ValidateCounterpartyRevocation checks a revealed revocation secret
// against the counterparty per-commitment point on record, and on success
// advances next_counterparty_revoke_num.
func (c *Channel) ValidateCounterpartyRevocation(revokeNum uint64, oldSecret *btcec.PrivateKey) error {
	n, err := c.node()
	if err != nil {
		return policy.NewInternalError("resolving node: %v", err)
	}

	next, err := n.validator.ValidateCounterpartyRevocation(c.state, revokeNum, oldSecret)
	if err != nil {
		return err
	}

	return c.commit(n, next)
}

// RecordCounterpartyPoint updates the rolling counterparty per-commitment
// point pair, independent of revocation. Called whenever the signer learns
// a new counterparty point (e.g. alongside ValidateHolderCommitmentTx's
// response on the wire protocol side).
func (c *Channel) RecordCounterpartyPoint(point *btcec.PublicKey) error {
	n, err := c.node()
	if err != nil {
		return policy.NewInternalError("resolving node: %v", err)
	}
	next := policy.RecordCounterpartyPoint(c.state, point)
	return c.commit(n, next)
}

// SignMutualCloseTx signs the supplied mutual-close transaction's funding
// input and latches mutual_close_signed. The transaction's outputs are not
// checked.
func (c *Channel) SignMutualCloseTx(tx *wire.MsgTx, fundingAmountSat int64) (*ecdsa.Signature, error) {
	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}

	if err := n.validator.ValidateHolderCommitmentState(c.state); err != nil {
		return nil, err
	}

	sig, err := c.signFundingSpend(n, tx)
	if err != nil {
		return nil, err
	}

	next := c.state.Clone()
	next.MutualCloseSigned = true
	if err := c.commit(n, next); err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("mutual_close").Inc()
	return sig, nil
}

// SignHolderHtlcTx signs a second-level HTLC transaction spending the
// holder's own commitment, using the per-commitment point for commitNum
// unless an explicit point is supplied (used when signing ahead of
// advancing the commitment number).
func (c *Channel) SignHolderHtlcTx(tx *wire.MsgTx, commitNum uint64, perCommitmentPoint *btcec.PublicKey,
	redeemScript []byte, amountSat int64) (*ecdsa.Signature, error) {

	pcp := perCommitmentPoint
	if pcp == nil {
		pcp = keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum)
	}

	htlcBase := c.basepoints.HtlcBasePoint
	priv, err := keyderivPrivFor(c, htlcBase, pcp)
	if err != nil {
		return nil, err
	}

	sig, err := c.signWitnessInput(tx, 0, amountSat, redeemScript, priv)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("holder_htlc").Inc()
	return sig, nil
}

// SignCounterpartyHtlcTx signs a second-level HTLC transaction spending the
// counterparty's commitment.
func (c *Channel) SignCounterpartyHtlcTx(tx *wire.MsgTx, remotePCP *btcec.PublicKey,
	redeemScript []byte, amountSat int64) (*ecdsa.Signature, error) {

	htlcBase := c.basepoints.HtlcBasePoint
	priv, err := keyderivPrivFor(c, htlcBase, remotePCP)
	if err != nil {
		return nil, err
	}

	sig, err := c.signWitnessInput(tx, 0, amountSat, redeemScript, priv)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("counterparty_htlc").Inc()
	return sig, nil
}

// SignDelayedSweep signs the delayed-claim input of a second-level HTLC
// transaction, sweeping it to the holder's own wallet after to_self_delay.
func (c *Channel) SignDelayedSweep(tx *wire.MsgTx, inputIndex int, commitNum uint64,
	redeemScript []byte, amountSat int64) (*ecdsa.Signature, error) {

	pcp := keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum)
	priv, err := keyderivPrivFor(c, c.basepoints.DelayBasePoint, pcp)
	if err != nil {
		return nil, err
	}

	sig, err := c.signWitnessInput(tx, inputIndex, amountSat, redeemScript, priv)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("delayed_sweep").Inc()
	return sig, nil
}

// SignCounterpartyHtlcSweep signs the preimage/timeout spend of a
// counterparty-commitment HTLC output directly (first-level sweep, no
// second-stage transaction).
func (c *Channel) SignCounterpartyHtlcSweep(tx *wire.MsgTx, inputIndex int, remotePCP *btcec.PublicKey,
	redeemScript []byte, amountSat int64) (*ecdsa.Signature, error) {

	priv, err := keyderivPrivFor(c, c.basepoints.HtlcBasePoint, remotePCP)
	if err != nil {
		return nil, err
	}

	sig, err := c.signWitnessInput(tx, inputIndex, amountSat, redeemScript, priv)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("counterparty_htlc_sweep").Inc()
	return sig, nil
}

// SignJusticeSweep signs a breach-remedy transaction using the revocation
// private key derived from the revealed per-commitment secret. destAddr and
// walletPathScript are validated against the node's allowlist/wallet-path
// policy before any signature is produced.
func (c *Channel) SignJusticeSweep(tx *wire.MsgTx, inputIndex int, revocationSecret *btcec.PrivateKey,
	redeemScript []byte, amountSat int64, destAddr string, walletPathScript []byte) (*ecdsa.Signature, error) {

	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}

	allowlist := n.allowlistSet()
	if err := n.validator.ValidateJusticeSweep(tx, amountSat, allowlist, destAddr, walletPathScript); err != nil {
		return nil, err
	}

	revocationBaseSecret, err := revocationBasePrivateKey(c)
	if err != nil {
		return nil, err
	}
	priv := keyderiv.DeriveRevocationPrivKey(revocationBaseSecret, revocationSecret)

	sig, err := c.signWitnessInput(tx, inputIndex, amountSat, redeemScript, priv)
	if err != nil {
		return nil, err
	}

	metrics.SignaturesIssued.WithLabelValues("justice_sweep").Inc()
	return sig, nil
}

// SignChannelAnnouncement double-SHA256es msg and signs it with both the
// node key and this channel's funding key, as BOLT-7 requires.
func (c *Channel) SignChannelAnnouncement(msg []byte) (nodeSig, fundingSig *ecdsa.Signature, err error) {
	n, err := c.node()
	if err != nil {
		return nil, nil, policy.NewInternalError("resolving node: %v", err)
	}

	digest := sha256.Sum256(msg)
	digest = sha256.Sum256(digest[:])

	nodeSig = ecdsa.Sign(n.nodeKey, digest[:])

	fundingPriv, err := n.keyRing.ChannelPrivateKey(keyderiv.KeyFamilyFunding, c.nonce)
	if err != nil {
		return nil, nil, policy.NewInternalError("deriving funding key: %v", err)
	}
	fundingSig = ecdsa.Sign(fundingPriv, digest[:])

	return nodeSig, fundingSig, nil
}

// GetPerCommitmentPoint returns the per-commitment point for commitNum.
func (c *Channel) GetPerCommitmentPoint(commitNum uint64) (*btcec.PublicKey, error) {
	return keyderiv.PerCommitmentPoint(c.basepoints.CommitmentSeed, commitNum), nil
}

// Basepoints returns this channel's own announced basepoints, the public
// half of the key material a counterparty needs to build the commitment
// transaction this signer will later be asked to co-sign.
func (c *Channel) Basepoints() *keyderiv.ChannelBasepoints {
	return c.basepoints
}

// Setup returns the immutable channel configuration negotiated at open
// time.
func (c *Channel) Setup() *policy.ChannelSetup {
	return c.setup
}

// GetPerCommitmentSecret releases the per-commitment secret for commitNum,
// gated by invariant 3: only releasable once the holder commitment has
// advanced at least two past it.
func (c *Channel) GetPerCommitmentSecret(commitNum uint64) (*btcec.PrivateKey, error) {
	if commitNum+2 > c.state.NextHolderCommitNum {
		return nil, policy.NewError(policy.TagCommitNumMonotonic,
			"commitment %d not yet revocable (next holder commit num %d)", commitNum, c.state.NextHolderCommitNum)
	}
	return keyderiv.PerCommitmentPrivateKey(c.basepoints.CommitmentSeed, commitNum), nil
}

// CheckFutureSecret idempotently compares a caller-supplied secret against
// the deterministic per-commitment secret for commitNum.
func (c *Channel) CheckFutureSecret(commitNum uint64, secret *btcec.PrivateKey) (bool, error) {
	expected := keyderiv.PerCommitmentSecret(c.basepoints.CommitmentSeed, commitNum)
	var candidate [32]byte
	copy(candidate[:], secret.Serialize())
	return bytes.Equal(expected[:], candidate[:]), nil
}

// commit swaps the proposed next state into the live channel, persists it,
// and restores the previous state if the persist fails, implementing step
// 4's atomicity: a failed persist leaves the in-memory state as it was.
func (c *Channel) commit(n *Node, next *policy.EnforcementState) error {
	prev := c.state
	c.state = next

	if err := n.persistChannel(c); err != nil {
		c.state = prev
		return err
	}

	return nil
}

func (c *Channel) fundingWitnessProgram() ([]byte, error) {
	_, pkScript, err := txbuilder.FundingScript(
		c.basepoints.FundingKey, c.setup.CounterpartyBasepoints.FundingKey, c.setup.ChannelValueSat)
	if err != nil {
		return nil, err
	}
	return pkScript, nil
}

func (c *Channel) signFundingSpend(n *Node, tx *wire.MsgTx) (*ecdsa.Signature, error) {
	redeemScript, _, err := txbuilder.FundingScript(
		c.basepoints.FundingKey, c.setup.CounterpartyBasepoints.FundingKey, c.setup.ChannelValueSat)
	if err != nil {
		return nil, policy.NewInternalError("building funding script: %v", err)
	}

	sigHash, err := txbuilder.SigHash(tx, txscript.SigHashAll, 0, c.setup.ChannelValueSat, redeemScript)
	if err != nil {
		return nil, policy.NewInternalError("computing funding sighash: %v", err)
	}

	fundingPriv, err := n.keyRing.ChannelPrivateKey(keyderiv.KeyFamilyFunding, c.nonce)
	if err != nil {
		return nil, policy.NewInternalError("deriving funding private key: %v", err)
	}

	return ecdsa.Sign(fundingPriv, sigHash), nil
}

func (c *Channel) signWitnessInput(tx *wire.MsgTx, inputIndex int, amountSat int64,
	witnessScript []byte, priv *btcec.PrivateKey) (*ecdsa.Signature, error) {

	sigHash, err := txbuilder.SigHash(tx, txscript.SigHashAll, inputIndex, amountSat, witnessScript)
	if err != nil {
		return nil, policy.NewInternalError("computing sighash for input %d: %v", inputIndex, err)
	}
	return ecdsa.Sign(priv, sigHash), nil
}

// revocationBasePrivateKey derives this channel's own revocation basepoint
// private key, needed as one of the two terms of the revocation privkey
// formula (the other being the per-commitment secret the counterparty
// revealed).
func revocationBasePrivateKey(c *Channel) (*btcec.PrivateKey, error) {
	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}
	return n.keyRing.ChannelPrivateKey(keyderiv.KeyFamilyRevocationBase, c.nonce)
}

// keyderivPrivFor derives the per-commitment-tweaked private key for the
// given basepoint family's private key and a counterparty-or-own
// per-commitment point, dispatching on which basepoint was supplied.
func keyderivPrivFor(c *Channel, basepoint *btcec.PublicKey, perCommitmentPoint *btcec.PublicKey) (*btcec.PrivateKey, error) {
	n, err := c.node()
	if err != nil {
		return nil, policy.NewInternalError("resolving node: %v", err)
	}

	var family keyderiv.KeyFamily
	switch {
	case basepoint.IsEqual(c.basepoints.HtlcBasePoint):
		family = keyderiv.KeyFamilyHtlcBase
	case basepoint.IsEqual(c.basepoints.DelayBasePoint):
		family = keyderiv.KeyFamilyDelayBase
	default:
		return nil, policy.NewInternalError("unrecognized basepoint for per-commitment derivation")
	}

	baseSecret, err := n.keyRing.ChannelPrivateKey(family, c.nonce)
	if err != nil {
		return nil, policy.NewInternalError("deriving basepoint secret: %v", err)
	}

	return keyderiv.DerivePrivKey(baseSecret, perCommitmentPoint), nil
}
