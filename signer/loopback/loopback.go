// Package loopback adapts a signer.Node to the shape a wallet/peer
// implementation expects from its local key source: a thing that hands out
// a signer handle per channel and forwards signing calls to it. It exists so
// a host that embeds this module in-process (rather than over a remote
// signer wire protocol) never needs to touch signer.Node/signer.Channel
// directly, mirroring the teacher's pattern of a thin adapter type sitting
// between an external interface and the module's own object model.
package loopback

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/policy"
	"github.com/lightningnetwork/validating-signer/signer"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

// KeySource adapts a signer.Node to a wallet's local key source: a single
// entry point that opens channels and returns a handle through which every
// subsequent signing operation is dispatched under that channel's lock.
type KeySource struct {
	node *signer.Node
}

// NewKeySource wraps node for in-process use.
func NewKeySource(node *signer.Node) *KeySource {
	return &KeySource{node: node}
}

// NodePubKey returns the node's compressed identity public key.
func (k *KeySource) NodePubKey() []byte {
	return k.node.ID()
}

// ECDH forwards to the underlying node's ECDH operation, used to derive
// onion shared secrets without ever handing the node's private key to the
// caller.
func (k *KeySource) ECDH(remotePub *btcec.PublicKey) ([32]byte, error) {
	return k.node.ECDH(remotePub)
}

// ChannelSigner is the per-channel handle a KeySource hands back: every
// method locks the channel for the duration of the call and forwards to the
// corresponding signer.Channel operation, so the caller never needs to know
// about signer.Node's channel table or locking discipline.
type ChannelSigner struct {
	node  *signer.Node
	id0   [32]byte
	nonce []byte
}

// NewChannel creates a Stub channel for nonce and returns a handle bound to
// it. Call ReadyChannel on the returned handle once BOLT-2 open negotiation
// has produced the counterparty's announced basepoints.
func (k *KeySource) NewChannel(nonce []byte) (*ChannelSigner, error) {
	if _, err := k.node.NewChannel(nonce); err != nil {
		return nil, err
	}
	return &ChannelSigner{
		node:  k.node,
		id0:   keyderiv.ChannelID0(nonce),
		nonce: append([]byte(nil), nonce...),
	}, nil
}

// ReadyChannel advances this handle's Stub to Ready with the given setup.
func (h *ChannelSigner) ReadyChannel(setup policy.ChannelSetup) error {
	_, err := h.node.ReadyChannel(h.nonce, setup)
	return err
}

// withReady runs fn against the underlying Ready Channel, refusing to
// proceed while the slot is still a Stub.
func (h *ChannelSigner) withReady(fn func(*signer.Channel) error) error {
	return h.node.WithChannel(h.id0, func(slot *signer.ChannelSlot) error {
		if !slot.IsReady() {
			return &policy.Error{Tag: policy.TagStubOperationNotAllowed, Message: "channel not yet ready"}
		}
		return fn(slot.Channel())
	})
}

// GetPerCommitmentPoint answers either a Stub or a Ready channel, matching
// the specification's requirement that this one query survive the
// Stub→Ready transition.
func (h *ChannelSigner) GetPerCommitmentPoint(commitNum uint64) (*btcec.PublicKey, error) {
	var pt *btcec.PublicKey
	err := h.node.WithChannel(h.id0, func(slot *signer.ChannelSlot) error {
		p, err := slot.GetPerCommitmentPoint(commitNum)
		pt = p
		return err
	})
	return pt, err
}

// SignCounterpartyCommitmentTx forwards to the Ready channel's
// reconstruct/compare/validate/sign pipeline.
func (h *ChannelSigner) SignCounterpartyCommitmentTx(tx *wire.MsgTx, witScripts [][]byte,
	remotePCP *btcec.PublicKey, commitNum uint64, feerateSatPerKw uint32,
	offered, received []txbuilder.HTLCInfo, toBroadcasterSat, toCountersignerSat int64) (*ecdsa.Signature, error) {

	var sig *ecdsa.Signature
	err := h.withReady(func(c *signer.Channel) error {
		s, err := c.SignCounterpartyCommitmentTx(tx, witScripts, remotePCP, commitNum,
			feerateSatPerKw, offered, received, toBroadcasterSat, toCountersignerSat)
		sig = s
		return err
	})
	return sig, err
}

// SignHolderCommitmentTx forwards to the Ready channel.
func (h *ChannelSigner) SignHolderCommitmentTx(tx *wire.MsgTx, witScripts [][]byte, commitNum uint64,
	feerateSatPerKw uint32, offered, received []txbuilder.HTLCInfo,
	toBroadcasterSat, toCountersignerSat int64) (*ecdsa.Signature, error) {

	var sig *ecdsa.Signature
	err := h.withReady(func(c *signer.Channel) error {
		s, err := c.SignHolderCommitmentTx(tx, witScripts, commitNum, feerateSatPerKw,
			offered, received, toBroadcasterSat, toCountersignerSat)
		sig = s
		return err
	})
	return sig, err
}

// SignJusticeSweep forwards to the Ready channel.
func (h *ChannelSigner) SignJusticeSweep(tx *wire.MsgTx, inputIndex int, revocationSecret *btcec.PrivateKey,
	redeemScript []byte, amountSat int64, destAddr string, walletPathScript []byte) (*ecdsa.Signature, error) {

	var sig *ecdsa.Signature
	err := h.withReady(func(c *signer.Channel) error {
		s, err := c.SignJusticeSweep(tx, inputIndex, revocationSecret, redeemScript, amountSat, destAddr, walletPathScript)
		sig = s
		return err
	})
	return sig, err
}

// SignChannelAnnouncement forwards to the Ready channel.
func (h *ChannelSigner) SignChannelAnnouncement(msg []byte) (nodeSig, fundingSig *ecdsa.Signature, err error) {
	err = h.withReady(func(c *signer.Channel) error {
		ns, fs, e := c.SignChannelAnnouncement(msg)
		nodeSig, fundingSig = ns, fs
		return e
	})
	return nodeSig, fundingSig, err
}

// String implements fmt.Stringer for log lines, matching the teacher's
// habit of giving adapter types a terse identity string.
func (h *ChannelSigner) String() string {
	return fmt.Sprintf("channel-signer(%x)", h.id0[:8])
}
