// Package organizer implements the chain organizer described in spec
// §4.7: it decides whether an incoming block extends the main chain,
// sits in the orphan pool awaiting its parent, or triggers a
// reorganization onto a heavier competing branch. It is the one
// component that holds the write lock across the full
// check/accept/connect pipeline and the UTXO/tx/block store mutations
// that follow a successful validation.
package organizer

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dario-ramos/bitprim-blockchain/blockstore"
	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/event"
	"github.com/dario-ramos/bitprim-blockchain/kvstore"
	"github.com/dario-ramos/bitprim-blockchain/orphanpool"
	"github.com/dario-ramos/bitprim-blockchain/txstore"
	"github.com/dario-ramos/bitprim-blockchain/utxoindex"
	"github.com/dario-ramos/bitprim-blockchain/validator"
)

// ReorgTopic is published on Organizer.Bus whenever a reorganization
// completes, carrying a ReorgEvent.
const ReorgTopic event.Topic = "chain.reorganized"

// ReorgEvent reports a completed reorganization: the height the two
// branches diverged at, the main-chain blocks disconnected (fork point
// first, ascending height), and the new branch's blocks connected (fork
// point first, ascending height).
type ReorgEvent struct {
	ForkHeight   int32
	Disconnected []chainhash.Hash
	Connected    []chainhash.Hash
}

// reorgWindow bounds how many recently connected blocks the organizer
// retains in memory for rollback during a reorganization. blockstore and
// txstore persist headers and transactions indefinitely, but neither
// indexes "every transaction hash confirmed at height H" directly, so a
// disconnect needs the block body itself to know which transactions and
// outputs to unwind; retaining it only for the reorg-practical recent
// window avoids a third durable store for full block bodies.
const reorgWindow = 2016

// ErrAlreadyConnected is returned by ProcessBlock when the given block's
// hash is already present in the block store.
var ErrAlreadyConnected = errors.New("block already connected")

// Organizer coordinates the orphan pool, the three-stage validator, and
// the block/tx/UTXO stores into a single chain-selection decision per
// incoming block.
type Organizer struct {
	mu      sync.Mutex
	seqlock uint64 // even once stable; bumped odd->even around a mutation

	blocks  *blockstore.Store
	txs     *txstore.Store
	utxo    *utxoindex.Index
	orphans *orphanpool.Pool
	params  *validator.ConsensusParams
	bus     *event.Bus

	checkpoints map[int32]chainhash.Hash

	recent      map[int32]*core.Block
	recentOrder []int32
}

// New constructs an Organizer wired to the given stores.
func New(blocks *blockstore.Store, txs *txstore.Store, utxo *utxoindex.Index, orphans *orphanpool.Pool, params *validator.ConsensusParams, bus *event.Bus, checkpoints map[int32]chainhash.Hash) *Organizer {
	return &Organizer{
		blocks:      blocks,
		txs:         txs,
		utxo:        utxo,
		orphans:     orphans,
		params:      params,
		bus:         bus,
		checkpoints: checkpoints,
		recent:      make(map[int32]*core.Block),
	}
}

// SeqNumber returns the current sequence number. Readers can snapshot it
// before and after an unlocked read to detect a concurrent mutation
// (even before, even after, unchanged value => no mutation interleaved).
func (o *Organizer) SeqNumber() uint64 {
	return atomic.LoadUint64(&o.seqlock)
}

func (o *Organizer) beginMutation() {
	atomic.AddUint64(&o.seqlock, 1)
}

func (o *Organizer) endMutation() {
	atomic.AddUint64(&o.seqlock, 1)
}

// ProcessBlock is the organizer's single entry point: it runs Stage A,
// then either files block as an orphan, extends the main chain, or
// triggers a reorganization onto block's branch, per spec §4.7.
func (o *Organizer) ProcessBlock(block *core.Block, now time.Time, stopped validator.StoppedFunc) (accepted bool, isOrphan bool, err error) {
	if err := validator.CheckBlock(block, o.params, now, stopped); err != nil {
		return false, false, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	hash := block.Hash()
	if _, _, err := o.blocks.HeaderByHash(*hash); err == nil {
		return false, false, fmt.Errorf("organizer: block %s: %w", hash, ErrAlreadyConnected)
	}

	header := &block.MsgBlock().Header
	var zero chainhash.Hash
	if header.PrevBlock == zero {
		accepted, isOrphan, err := o.connectGenesis(block, stopped)
		if err == nil {
			o.drainOrphans(*hash, stopped)
		}
		return accepted, isOrphan, err
	}

	tipHeight, err := o.blocks.LastHeight()
	if err != nil {
		if _, genErr := o.blocks.HashAtHeight(0); errors.Is(genErr, kvstore.ErrNotFound) {
			// Empty chain: the parent cannot be connected yet.
			o.orphans.Add(&orphanpool.Detail{Block: block, Status: orphanpool.StatusOrphan})
			return false, true, nil
		}
		return false, false, err
	}
	tipHash, err := o.blocks.HashAtHeight(tipHeight)
	if err != nil {
		return false, false, err
	}

	if header.PrevBlock == tipHash {
		if err := o.connectTip(block, tipHeight+1, stopped); err != nil {
			return false, false, err
		}
		o.drainOrphans(*hash, stopped)
		return true, false, nil
	}

	// Competing branch: file it and walk back through however much of
	// its ancestry is itself still sitting in the orphan pool, to find
	// where it forks off the main chain and re-evaluate cumulative work
	// from there. This lets a branch extended one orphan at a time still
	// trigger a reorg once it finally outweighs the main chain, not only
	// when its very first block arrives.
	o.orphans.Add(&orphanpool.Detail{Block: block, Status: orphanpool.StatusOrphan})
	forkHash, forkHeight, found := o.findMainChainAncestor(header.PrevBlock)
	if !found {
		return false, true, nil
	}
	if err := o.maybeReorg(forkHash, forkHeight, stopped); err != nil {
		return false, false, err
	}
	return false, true, nil
}

// ImportBlock commits block directly at height, skipping Stage A/B's
// proof-of-work, timestamp, and checkpoint checks: it is for bulk-loading
// blocks already known valid, such as replaying a checkpointed chain dump,
// where re-running full consensus validation on every block would be
// wasted work. height must be exactly the current tip plus one; Import
// never files an orphan or triggers a reorg, since a trusted import is
// assumed to already be on the best chain.
func (o *Organizer) ImportBlock(block *core.Block, height int32) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	hash := block.Hash()
	if _, _, err := o.blocks.HeaderByHash(*hash); err == nil {
		return fmt.Errorf("organizer: block %s: %w", hash, ErrAlreadyConnected)
	}

	header := &block.MsgBlock().Header
	var zero chainhash.Hash
	ctx := validator.ActivationContext{MinimumVersion: header.Version}

	if header.PrevBlock == zero {
		if height != 0 {
			return fmt.Errorf("organizer: import height %d for a genesis-shaped block, want 0", height)
		}
		return o.applyConnect(block, height, ctx, func() bool { return false })
	}

	tipHeight, err := o.blocks.LastHeight()
	if err != nil {
		return err
	}
	if height != tipHeight+1 {
		return fmt.Errorf("organizer: import height %d does not extend tip %d", height, tipHeight)
	}
	tipHash, err := o.blocks.HashAtHeight(tipHeight)
	if err != nil {
		return err
	}
	if header.PrevBlock != tipHash {
		return fmt.Errorf("organizer: import block %s does not extend current tip", hash)
	}

	return o.applyConnect(block, height, ctx, func() bool { return false })
}

// TransactionHashesAt returns the ordered transaction hashes of the block
// cached at height and true, if it is still within the reorg window.
// Past that window it returns false: callers must not mistake this for
// an empty block, since this module maintains no body index to answer
// for heights older than the cache.
func (o *Organizer) TransactionHashesAt(height int32) ([]chainhash.Hash, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	block, ok := o.recent[height]
	if !ok {
		return nil, false
	}
	hashes := make([]chainhash.Hash, len(block.MsgBlock().Transactions))
	for i, tx := range block.MsgBlock().Transactions {
		hashes[i] = tx.TxHash()
	}
	return hashes, true
}

// findMainChainAncestor walks from hash back through the orphan pool's
// parent links until it reaches a block already connected to the main
// chain, returning that block's hash and height.
func (o *Organizer) findMainChainAncestor(hash chainhash.Hash) (chainhash.Hash, int32, bool) {
	for {
		if _, height, err := o.blocks.HeaderByHash(hash); err == nil {
			return hash, height, true
		}
		detail, ok := o.orphans.Get(hash)
		if !ok {
			return chainhash.Hash{}, 0, false
		}
		hash = detail.Block.MsgBlock().Header.PrevBlock
	}
}

func (o *Organizer) connectGenesis(block *core.Block, stopped validator.StoppedFunc) (bool, bool, error) {
	ctx := validator.ActivationContext{MinimumVersion: 1}
	if err := o.applyConnect(block, 0, ctx, stopped); err != nil {
		return false, false, err
	}
	return true, false, nil
}

// connectTip runs Stage B/C for block (already known to extend the
// current tip) and commits it.
func (o *Organizer) connectTip(block *core.Block, height int32, stopped validator.StoppedFunc) error {
	chain := &storeTimestamper{o.blocks}
	sample, err := o.versionSample(height, o.params.VersionSampleSize)
	if err != nil {
		return err
	}
	ctx, err := validator.AcceptBlock(block, height, o.params, chain, sample, o.checkpoints, stopped)
	if err != nil {
		return err
	}
	return o.applyConnect(block, height, ctx, stopped)
}

// applyConnect runs Stage C and, on success, writes the block's header,
// transactions, and UTXO spends/insertions, then advances the tip.
func (o *Organizer) applyConnect(block *core.Block, height int32, ctx validator.ActivationContext, stopped validator.StoppedFunc) error {
	o.beginMutation()
	defer o.endMutation()

	prevOuts := &storePrevOutSource{o.txs}
	spent := &storeSpentChecker{o.utxo}
	txExists := &storeTxExists{o.txs, o.utxo}

	if _, err := validator.ConnectBlock(block, height, o.params, ctx, prevOuts, spent, txExists, nil, stopped); err != nil {
		return err
	}

	for i, msgTx := range block.MsgBlock().Transactions {
		if i > 0 {
			for inIdx, in := range msgTx.TxIn {
				spender := core.InputPoint{Hash: msgTx.TxHash(), Index: uint32(inIdx)}
				if err := o.utxo.Store(in.PreviousOutPoint, spender); err != nil {
					return fmt.Errorf("organizer: record spend: %w", err)
				}
			}
		}
		if err := o.txs.Put(msgTx, txstore.Position{Height: height, Index: uint32(i)}); err != nil {
			return fmt.Errorf("organizer: store tx: %w", err)
		}
	}

	if err := o.blocks.Put(&block.MsgBlock().Header, height); err != nil {
		return fmt.Errorf("organizer: store header: %w", err)
	}

	o.cacheRecent(height, block)
	return nil
}

// disconnectTip reverses applyConnect's effects for the block currently
// stored at height: it re-marks every input's prevout unspent (removes
// the spend record) and deletes the block's own transactions and header.
func (o *Organizer) disconnectTip(height int32) error {
	o.beginMutation()
	defer o.endMutation()

	block, ok := o.recent[height]
	if !ok {
		return fmt.Errorf("organizer: no cached block at height %d to disconnect (beyond reorg window)", height)
	}

	for i, msgTx := range block.MsgBlock().Transactions {
		hash := msgTx.TxHash()
		if i > 0 {
			for _, in := range msgTx.TxIn {
				o.utxo.Remove(in.PreviousOutPoint)
			}
		}
		if err := o.txs.Delete(hash); err != nil {
			return fmt.Errorf("organizer: delete tx: %w", err)
		}
	}

	if err := o.blocks.Delete(*block.Hash(), height); err != nil {
		return fmt.Errorf("organizer: delete header: %w", err)
	}
	if err := o.blocks.SetLastHeight(height - 1); err != nil {
		return fmt.Errorf("organizer: set last height: %w", err)
	}
	delete(o.recent, height)
	return nil
}

func (o *Organizer) cacheRecent(height int32, block *core.Block) {
	o.recent[height] = block
	o.recentOrder = append(o.recentOrder, height)
	for len(o.recentOrder) > reorgWindow {
		delete(o.recent, o.recentOrder[0])
		o.recentOrder = o.recentOrder[1:]
	}
}

// maybeReorg checks whether the orphan chain rooted at a child of the
// block at forkHeight now carries more cumulative work than the main
// chain does over the same span, and if so performs the reorg.
func (o *Organizer) maybeReorg(forkHash chainhash.Hash, forkHeight int32, stopped validator.StoppedFunc) error {
	candidates := o.walkOrphanChain(forkHash)
	if len(candidates) == 0 {
		return nil
	}

	tipHeight, err := o.blocks.LastHeight()
	if err != nil {
		return err
	}
	mainWork, err := o.branchWork(forkHeight+1, tipHeight)
	if err != nil {
		return err
	}
	candidateWork := big.NewInt(0)
	for _, b := range candidates {
		candidateWork.Add(candidateWork, validator.CalcWork(b.Bits()))
	}
	if candidateWork.Cmp(mainWork) <= 0 {
		return nil
	}

	return o.reorganize(forkHeight, tipHeight, candidates, stopped)
}

// walkOrphanChain returns the contiguous run of orphan-pool blocks
// descending from parentHash, in chain order, stopping at the first gap.
func (o *Organizer) walkOrphanChain(parentHash chainhash.Hash) []*core.Block {
	var chain []*core.Block
	current := parentHash
	for {
		children := o.orphans.Children(current)
		if len(children) == 0 {
			return chain
		}
		detail, ok := o.orphans.Get(children[0])
		if !ok {
			return chain
		}
		chain = append(chain, detail.Block)
		current = *detail.Block.Hash()
	}
}

func (o *Organizer) branchWork(fromHeight, toHeight int32) (*big.Int, error) {
	total := big.NewInt(0)
	for h := fromHeight; h <= toHeight; h++ {
		header, err := o.blocks.HeaderByHeight(h)
		if err != nil {
			return nil, err
		}
		total.Add(total, validator.CalcWork(header.Bits))
	}
	return total, nil
}

// reorganize disconnects the main chain from tipHeight down to
// forkHeight+1, then connects candidates in order. On any connect
// failure it reconnects the original blocks from its in-memory cache and
// returns the error, leaving the chain exactly as it was.
func (o *Organizer) reorganize(forkHeight, tipHeight int32, candidates []*core.Block, stopped validator.StoppedFunc) error {
	var disconnected []*core.Block
	for h := tipHeight; h > forkHeight; h-- {
		block, ok := o.recent[h]
		if !ok {
			return fmt.Errorf("organizer: cannot reorg past height %d: block not cached", h)
		}
		if err := o.disconnectTip(h); err != nil {
			return err
		}
		disconnected = append(disconnected, block)
	}

	height := forkHeight
	var connected []*core.Block
	for _, candidate := range candidates {
		height++
		if err := o.connectTip(candidate, height, stopped); err != nil {
			for h := height - 1; h > forkHeight; h-- {
				if discErr := o.disconnectTip(h); discErr != nil {
					return fmt.Errorf("organizer: reorg aborted at height %d (%v) and revert failed, chain state inconsistent: %w", height, err, discErr)
				}
			}
			if revertErr := o.revertFailedReorg(disconnected, forkHeight); revertErr != nil {
				return fmt.Errorf("organizer: reorg aborted at height %d (%v) and revert failed, chain state inconsistent: %w", height, err, revertErr)
			}
			return fmt.Errorf("organizer: reorg aborted at height %d: %w", height, err)
		}
		connected = append(connected, candidate)
		o.orphans.Remove(*candidate.Hash())
	}

	// disconnected was accumulated tip-first (height descending); the
	// published event reports it fork-point-first (height ascending), per
	// the scenario's [old8..old10] ordering.
	disconnectedHashes := make([]chainhash.Hash, len(disconnected))
	for i, b := range disconnected {
		disconnectedHashes[len(disconnected)-1-i] = *b.Hash()
	}
	connectedHashes := make([]chainhash.Hash, len(connected))
	for i, b := range connected {
		connectedHashes[i] = *b.Hash()
	}
	if o.bus != nil {
		o.bus.Pub(ReorgTopic, ReorgEvent{ForkHeight: forkHeight, Disconnected: disconnectedHashes, Connected: connectedHashes})
	}
	return nil
}

// revertFailedReorg restores disconnected (tip-first order) back onto
// the chain after a mid-reorg connect failure, replaying the same
// accept/connect path used the first time these blocks were confirmed.
func (o *Organizer) revertFailedReorg(disconnected []*core.Block, forkHeight int32) error {
	height := forkHeight
	never := func() bool { return false }
	for i := len(disconnected) - 1; i >= 0; i-- {
		height++
		if err := o.connectTip(disconnected[i], height, never); err != nil {
			return err
		}
	}
	return nil
}

func (o *Organizer) drainOrphans(parent chainhash.Hash, stopped validator.StoppedFunc) {
	queue := []chainhash.Hash{parent}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, childHash := range o.orphans.Children(current) {
			detail, ok := o.orphans.Get(childHash)
			if !ok {
				continue
			}
			_, parentHeight, err := o.blocks.HeaderByHash(current)
			if err != nil {
				continue
			}
			if err := o.connectTip(detail.Block, parentHeight+1, stopped); err != nil {
				o.orphans.Remove(childHash)
				continue
			}
			o.orphans.Remove(childHash)
			queue = append(queue, childHash)
		}
	}
}

func (o *Organizer) versionSample(height int32, n int32) (validator.VersionSample, error) {
	count := n
	if height < count {
		count = height
	}
	sample := make(validator.VersionSample, 0, count)
	for h := height - 1; h > height-1-count && h >= 0; h-- {
		header, err := o.blocks.HeaderByHeight(h)
		if err != nil {
			return nil, err
		}
		sample = append(sample, header.Version)
	}
	return sample, nil
}

type storeTimestamper struct {
	blocks *blockstore.Store
}

func (t *storeTimestamper) TimestampAt(height int32) (int64, error) {
	header, err := t.blocks.HeaderByHeight(height)
	if err != nil {
		return 0, err
	}
	return header.Timestamp, nil
}

func (t *storeTimestamper) BitsAt(height int32) (uint32, error) {
	header, err := t.blocks.HeaderByHeight(height)
	if err != nil {
		return 0, err
	}
	return header.Bits, nil
}

type storePrevOutSource struct {
	txs *txstore.Store
}

func (p *storePrevOutSource) PrevOut(outpoint core.OutPoint) (*core.TxOut, int32, bool, bool) {
	tx, pos, err := p.txs.Get(outpoint.Hash)
	if err != nil {
		return nil, 0, false, false
	}
	if int(outpoint.Index) >= len(tx.TxOut) {
		return nil, 0, false, false
	}
	return tx.TxOut[outpoint.Index], pos.Height, core.IsCoinBaseTx(tx), true
}

type storeSpentChecker struct {
	utxo *utxoindex.Index
}

func (s *storeSpentChecker) IsSpent(outpoint core.OutPoint) bool {
	_, found := s.utxo.Get(outpoint)
	return found
}

type storeTxExists struct {
	txs  *txstore.Store
	utxo *utxoindex.Index
}

func (t *storeTxExists) ExistsFullySpent(hash chainhash.Hash) (bool, bool) {
	tx, _, err := t.txs.Get(hash)
	if err != nil {
		return false, false
	}
	for i := range tx.TxOut {
		if _, found := t.utxo.Get(core.OutPoint{Hash: hash, Index: uint32(i)}); !found {
			return true, false
		}
	}
	return true, true
}
