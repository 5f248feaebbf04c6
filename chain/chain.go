// Package chain tracks the best chain tip the signer has been shown, so the
// core can reason about confirmation depth and CLTV expiries without
// trusting the node it is paired with any further than a Merkle proof
// allows. This package ships only an in-memory tracker; a production
// deployment would bridge Tracker to a full node or a Neutrino instance.
package chain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Watch describes one thing the tracker is being asked to prove inclusion
// or non-inclusion for as blocks are added: either a specific txid, or an
// outpoint (so a spend of a not-yet-confirmed output can be tracked through
// the block that creates it).
type Watch struct {
	Txid     *chainhash.Hash
	Outpoint *wire.OutPoint
}

// Tracker is the chain-state contract the core validator depends on. All
// methods except AddBlock/RemoveBlock are read-only queries against the
// current tip.
type Tracker interface {
	// Height returns the height of the current tip.
	Height() uint32

	// Tip returns the hash of the current best block.
	Tip() chainhash.Hash

	// ForwardWatches returns the set of watches that should be checked as
	// new blocks are connected to the tip.
	ForwardWatches() []Watch

	// ReverseWatches returns the set of watches that should be checked as
	// blocks are disconnected during a reorg.
	ReverseWatches() []Watch

	// AddBlock connects header to the tip. header.PrevBlock must equal
	// the current tip hash. matchedTxs/proof are the Merkle proof that
	// the given transactions, and only those, from the watch set are
	// present in this block.
	AddBlock(header *wire.BlockHeader, matchedTxs []*wire.MsgTx, proof *btcutil.MerkleBlock) error

	// RemoveBlock disconnects the current tip during a reorg.
	// matchedTxs/proof is the same proof supplied to the corresponding
	// AddBlock call, supplied again so the tracker can undo its effects.
	RemoveBlock(matchedTxs []*wire.MsgTx, proof *btcutil.MerkleBlock) error
}

// ErrReorgRequired is returned by AddBlock when header does not connect to
// the current tip; the caller must call RemoveBlock to unwind to a common
// ancestor before retrying.
type ErrReorgRequired struct {
	Tip      chainhash.Hash
	PrevHash chainhash.Hash
}

func (e *ErrReorgRequired) Error() string {
	return fmt.Sprintf("chain: block prev_block %s does not match tip %s, reorg required",
		e.PrevHash, e.Tip)
}
