// Package signer implements the node/channel object model that sits on
// top of keyderiv, txbuilder and policy: Node owns node-wide key material
// and the channel table, Channel carries out the four-step
// reconstruct/compare/validate/commit-and-sign pipeline for every signing
// operation.
package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/validating-signer/chain"
	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/metrics"
	"github.com/lightningnetwork/validating-signer/persist"
	"github.com/lightningnetwork/validating-signer/policy"
)

// Node owns node-wide key material, the channel table, and the allowlist
// of justice-sweep destinations. A single process may host several Nodes.
type Node struct {
	params    *chaincfg.Params
	keyRing   *keyderiv.KeyRing
	validator *policy.Validator
	store     persist.Persister
	tracker   chain.Tracker

	nodeKey *btcec.PrivateKey
	id      string // hex-encoded compressed node pubkey, used as persister key and registry id

	mapMu    sync.Mutex
	channels map[[32]byte]*channelEntry

	allowMu   sync.Mutex
	allowlist map[string]bool
}

type channelEntry struct {
	mu   sync.Mutex
	slot *ChannelSlot
}

// NewNode constructs a Node, deriving or loading its seed from store and
// bringing any previously persisted channels back into memory as Ready
// slots.
func NewNode(params *chaincfg.Params, store persist.Persister) (*Node, error) {
	seed, err := store.NodeSeed(nil)
	if err != nil {
		return nil, fmt.Errorf("signer: loading node seed: %w", err)
	}

	keyRing, err := keyderiv.NewKeyRing(seed, params)
	if err != nil {
		return nil, fmt.Errorf("signer: building key ring: %w", err)
	}

	nodeKey, err := keyRing.NodeKey()
	if err != nil {
		return nil, fmt.Errorf("signer: deriving node key: %w", err)
	}

	n := &Node{
		params:    params,
		keyRing:   keyRing,
		validator: policy.NewValidator(params),
		store:     store,
		nodeKey:   nodeKey,
		id:        hex.EncodeToString(nodeKey.PubKey().SerializeCompressed()),
		channels:  make(map[[32]byte]*channelEntry),
		allowlist: make(map[string]bool),
	}

	if err := n.loadAllowlist(); err != nil {
		return nil, err
	}
	if err := n.loadChannels(); err != nil {
		return nil, err
	}

	registerNode(n)
	return n, nil
}

// SetTracker stores a chain tracker handle on the node; optional, and may be
// set after construction. No signing operation reads it.
func (n *Node) SetTracker(t chain.Tracker) {
	n.tracker = t
}

// ID returns the node's compressed public key.
func (n *Node) ID() []byte {
	return n.nodeKey.PubKey().SerializeCompressed()
}

func (n *Node) loadAllowlist() error {
	addrs, err := n.store.GetAllowlist(n.id)
	if err != nil {
		return fmt.Errorf("signer: loading allowlist: %w", err)
	}
	n.allowMu.Lock()
	defer n.allowMu.Unlock()
	for _, a := range addrs {
		n.allowlist[a] = true
	}
	return nil
}

func (n *Node) loadChannels() error {
	recs, err := n.store.ListChannels(n.id)
	if err != nil {
		return fmt.Errorf("signer: loading channels: %w", err)
	}

	n.mapMu.Lock()
	defer n.mapMu.Unlock()

	for _, rec := range recs {
		basepoints, err := n.keyRing.ChannelBasepoints(rec.Nonce)
		if err != nil {
			return fmt.Errorf("signer: rederiving basepoints for persisted channel: %w", err)
		}

		setup := rec.Setup
		state := rec.State
		ch := &Channel{
			nodeID:     n.id,
			nonce:      rec.Nonce,
			id0:        keyderiv.ChannelID0(rec.Nonce),
			basepoints: basepoints,
			setup:      &setup,
			state:      &state,
		}

		n.channels[ch.id0] = &channelEntry{slot: &ChannelSlot{kind: slotReady, channel: ch}}
		metrics.ChannelsActive.Inc()
	}

	return nil
}

// NewChannel creates a Stub channel for the given nonce. The Stub is held in
// memory only and is not persisted; a channel is first written to the store
// by ReadyChannel.
func (n *Node) NewChannel(nonce []byte) (*ChannelSlot, error) {
	basepoints, err := n.keyRing.ChannelBasepoints(nonce)
	if err != nil {
		return nil, fmt.Errorf("signer: deriving channel basepoints: %w", err)
	}

	id0 := keyderiv.ChannelID0(nonce)

	slot := &ChannelSlot{
		kind:       slotStub,
		nodeID:     n.id,
		nonce:      append([]byte(nil), nonce...),
		basepoints: basepoints,
	}

	n.mapMu.Lock()
	defer n.mapMu.Unlock()
	if _, exists := n.channels[id0]; exists {
		return nil, fmt.Errorf("signer: channel for this nonce already exists")
	}
	n.channels[id0] = &channelEntry{slot: slot}

	return slot, nil
}

// ReadyChannel advances the Stub for nonce to a Ready Channel with the given
// setup, after validating the setup against policy, and persists the
// result. This transition is irreversible.
func (n *Node) ReadyChannel(nonce []byte, setup policy.ChannelSetup) (*Channel, error) {
	id0 := keyderiv.ChannelID0(nonce)

	n.mapMu.Lock()
	entry, ok := n.channels[id0]
	n.mapMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("signer: no stub channel for this nonce")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.slot.kind == slotReady {
		return nil, &policy.Error{Tag: policy.TagStubOperationNotAllowed, Message: "channel is already ready"}
	}

	if err := n.validator.ValidateChannelOpen(&setup); err != nil {
		return nil, err
	}

	ch := &Channel{
		nodeID:     n.id,
		nonce:      append([]byte(nil), nonce...),
		id0:        id0,
		basepoints: entry.slot.basepoints,
		setup:      &setup,
		state:      &policy.EnforcementState{},
	}

	if err := n.persistChannel(ch); err != nil {
		return nil, err
	}

	entry.slot = &ChannelSlot{kind: slotReady, channel: ch}
	metrics.ChannelsActive.Inc()

	return ch, nil
}

// WithChannel runs fn with the per-channel lock for id0 held, mirroring the
// teacher's convention of a single accessor method that serialises all
// operations on one channel while letting other channels proceed
// concurrently.
func (n *Node) WithChannel(id0 [32]byte, fn func(*ChannelSlot) error) error {
	n.mapMu.Lock()
	entry, ok := n.channels[id0]
	n.mapMu.Unlock()
	if !ok {
		return fmt.Errorf("signer: no channel with id %x", id0)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return fn(entry.slot)
}

func (n *Node) persistChannel(ch *Channel) error {
	rec := &persist.ChannelRecord{
		Nonce: ch.nonce,
		Setup: *ch.setup,
		State: *ch.state,
	}
	if err := n.store.PutChannel(n.id, rec); err != nil {
		return policy.NewInternalError("persisting channel: %v", err)
	}
	return nil
}

// AddAllowlist adds addresses to the set of permitted justice-sweep
// destinations and persists the updated list.
func (n *Node) AddAllowlist(addresses []string) error {
	n.allowMu.Lock()
	for _, a := range addresses {
		n.allowlist[a] = true
	}
	snapshot := n.allowlistSnapshotLocked()
	n.allowMu.Unlock()

	return n.store.PutAllowlist(n.id, snapshot)
}

// RemoveAllowlist removes addresses from the allowlist and persists the
// updated list.
func (n *Node) RemoveAllowlist(addresses []string) error {
	n.allowMu.Lock()
	for _, a := range addresses {
		delete(n.allowlist, a)
	}
	snapshot := n.allowlistSnapshotLocked()
	n.allowMu.Unlock()

	return n.store.PutAllowlist(n.id, snapshot)
}

// ListAllowlist returns the current allowlisted addresses.
func (n *Node) ListAllowlist() []string {
	n.allowMu.Lock()
	defer n.allowMu.Unlock()
	return n.allowlistSnapshotLocked()
}

func (n *Node) allowlistSnapshotLocked() []string {
	out := make([]string, 0, len(n.allowlist))
	for a := range n.allowlist {
		out = append(out, a)
	}
	return out
}

func (n *Node) allowlistSet() map[string]bool {
	n.allowMu.Lock()
	defer n.allowMu.Unlock()
	out := make(map[string]bool, len(n.allowlist))
	for a := range n.allowlist {
		out[a] = true
	}
	return out
}

// SignInvoice signs the double-SHA256 digest of a BOLT-11 invoice's
// signable preimage with the node key.
func (n *Node) SignInvoice(preimage []byte) (*ecdsa.Signature, error) {
	digest := sha256.Sum256(preimage)
	digest = sha256.Sum256(digest[:])
	return ecdsa.Sign(n.nodeKey, digest[:]), nil
}

// SignNodeAnnouncement signs the double-SHA256 digest of a node
// announcement message with the node key.
func (n *Node) SignNodeAnnouncement(msg []byte) (*ecdsa.Signature, error) {
	digest := sha256.Sum256(msg)
	digest = sha256.Sum256(digest[:])
	return ecdsa.Sign(n.nodeKey, digest[:]), nil
}

// ECDH performs elliptic-curve Diffie-Hellman between the node key and a
// counterparty public key, returning the SHA256 of the compressed shared
// point as the lnd "ECDH" convention requires.
func (n *Node) ECDH(remotePub *btcec.PublicKey) ([32]byte, error) {
	var sharedKey [32]byte

	var point btcec.JacobianPoint
	remotePub.AsJacobian(&point)

	var scalar btcec.ModNScalar
	scalar.Set(&n.nodeKey.Key)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&scalar, &point, &result)
	result.ToAffine()

	sharedPub := btcec.NewPublicKey(&result.X, &result.Y)
	sharedKey = sha256.Sum256(sharedPub.SerializeCompressed())

	return sharedKey, nil
}
