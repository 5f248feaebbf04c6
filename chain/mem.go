package chain

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type blockRecord struct {
	hash       chainhash.Hash
	header     wire.BlockHeader
	matchedTxs []*wire.MsgTx
}

// MemTracker is an in-memory Tracker. It keeps the full chain of block
// records seen so far so RemoveBlock can restore the previous tip's
// matched-transaction set.
type MemTracker struct {
	mu sync.Mutex

	forward []Watch
	reverse []Watch

	// chain holds every block connected since the base; chain[0] is a
	// synthetic base record carrying only baseTip/baseHeight, chain[len-1]
	// is the current tip.
	chain  []blockRecord
	height uint32
}

// NewMemTracker creates a tracker rooted at the given base height and tip
// hash, with no blocks added yet.
func NewMemTracker(baseHeight uint32, baseTip chainhash.Hash) *MemTracker {
	return &MemTracker{
		height: baseHeight,
		chain:  []blockRecord{{hash: baseTip}},
	}
}

func (t *MemTracker) Height() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

func (t *MemTracker) Tip() chainhash.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chain[len(t.chain)-1].hash
}

func (t *MemTracker) ForwardWatches() []Watch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Watch(nil), t.forward...)
}

func (t *MemTracker) ReverseWatches() []Watch {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Watch(nil), t.reverse...)
}

// AddWatch registers a new watch to be checked on future blocks.
func (t *MemTracker) AddWatch(w Watch) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forward = append(t.forward, w)
	t.reverse = append(t.reverse, w)
}

func (t *MemTracker) AddBlock(header *wire.BlockHeader, matchedTxs []*wire.MsgTx, proof *btcutil.MerkleBlock) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tip := t.chain[len(t.chain)-1].hash
	if header.PrevBlock != tip {
		return &ErrReorgRequired{Tip: tip, PrevHash: header.PrevBlock}
	}

	if err := verifyMerkleProof(header, matchedTxs, proof); err != nil {
		return err
	}

	t.chain = append(t.chain, blockRecord{
		hash:       header.BlockHash(),
		header:     *header,
		matchedTxs: matchedTxs,
	})
	t.height++
	return nil
}

func (t *MemTracker) RemoveBlock(matchedTxs []*wire.MsgTx, proof *btcutil.MerkleBlock) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.chain) <= 1 {
		return fmt.Errorf("chain: cannot remove the base block")
	}

	last := t.chain[len(t.chain)-1]
	if err := verifyMerkleProof(&last.header, matchedTxs, proof); err != nil {
		return fmt.Errorf("chain: removed block's proof does not match recorded block: %w", err)
	}

	t.chain = t.chain[:len(t.chain)-1]
	t.height--
	return nil
}

// verifyMerkleProof checks that proof's header carries header's merkle root
// and that the number of matchedTxs equals proof.Transactions. It does not
// walk the partial Merkle tree, so it does not check that the proof reveals
// these particular transactions.
func verifyMerkleProof(header *wire.BlockHeader, matchedTxs []*wire.MsgTx, proof *btcutil.MerkleBlock) error {
	if proof == nil {
		if len(matchedTxs) != 0 {
			return fmt.Errorf("chain: matched transactions supplied with no proof")
		}
		return nil
	}

	if proof.Header.MerkleRoot != header.MerkleRoot {
		return fmt.Errorf("chain: merkle proof root %s does not match block header root %s",
			proof.Header.MerkleRoot, header.MerkleRoot)
	}

	if uint32(len(matchedTxs)) != proof.Transactions {
		return fmt.Errorf("chain: proof claims %d matched transactions, %d supplied",
			proof.Transactions, len(matchedTxs))
	}

	return nil
}
