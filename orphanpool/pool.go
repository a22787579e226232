// Package orphanpool implements the bounded, FIFO-eviction orphan pool
// described in spec §4.6: a registry of not-yet-connected block details,
// indexed by hash and by previous-block-hash so the organizer can walk
// from a known ancestor down through waiting children.
package orphanpool

import (
	"container/list"
	"sync"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/decred/dcrd/lru"
)

// Status is a block detail's position in its lifecycle, per spec §3's
// "Block detail" entity: monotone orphan -> (confirmed | rejected).
type Status int

const (
	StatusOrphan Status = iota
	StatusConfirmed
	StatusRejected
)

// Detail is a block-detail: the raw block plus its lifecycle status.
// Details live in a map keyed by hash, not inside a shared_ptr graph
// (spec §9's redesign note). The organizer only adds details with
// StatusOrphan and removes them; it does not update Status, Height or
// Err afterwards.
type Detail struct {
	Block  *core.Block
	Status Status
	Height int32 // valid iff Status == StatusConfirmed
	Err    error // set iff Status == StatusRejected
}

// Pool is a bounded FIFO registry of orphan block details. Capacity C is
// fixed at construction; once full, Add evicts the oldest entry to make
// room for the new one.
type Pool struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = oldest
	byHash   map[chainhash.Hash]*list.Element
	children map[chainhash.Hash][]chainhash.Hash // previous-block-hash -> waiting children

	// membership mirrors byHash's key set through an LRU cache so Add's
	// duplicate check is a single Contains call instead of a map probe;
	// every insertion and removal below keeps the two in lockstep.
	membership lru.Cache
}

type entry struct {
	hash   chainhash.Hash
	detail *Detail
}

// New creates a pool bounded to capacity entries.
func New(capacity int) *Pool {
	return &Pool{
		capacity:   capacity,
		order:      list.New(),
		byHash:     make(map[chainhash.Hash]*list.Element),
		children:   make(map[chainhash.Hash][]chainhash.Hash),
		membership: lru.NewCache(uint(capacity)),
	}
}

// Add inserts detail into the pool, keyed by its block's hash. It returns
// false if a detail with that hash is already present, in which case the
// pool is unchanged. On overflow, the oldest entry is evicted first.
func (p *Pool) Add(detail *Detail) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := detail.Block.Hash()
	if p.membership.Contains(*hash) {
		return false
	}

	if p.order.Len() >= p.capacity {
		p.evictOldestLocked()
	}

	elem := p.order.PushBack(&entry{hash: *hash, detail: detail})
	p.byHash[*hash] = elem
	p.membership.Add(*hash)

	parent := *detail.Block.MsgBlock().Header.ParentHash()
	p.children[parent] = append(p.children[parent], *hash)

	return true
}

func (p *Pool) evictOldestLocked() {
	front := p.order.Front()
	if front == nil {
		return
	}
	e := front.Value.(*entry)
	p.order.Remove(front)
	delete(p.byHash, e.hash)
	p.membership.Delete(e.hash)

	parent := *e.detail.Block.MsgBlock().Header.ParentHash()
	p.removeChildLocked(parent, e.hash)
}

func (p *Pool) removeChildLocked(parent, child chainhash.Hash) {
	kids := p.children[parent]
	for i, h := range kids {
		if h == child {
			p.children[parent] = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	if len(p.children[parent]) == 0 {
		delete(p.children, parent)
	}
}

// Get looks up a detail by its block hash.
func (p *Pool) Get(hash chainhash.Hash) (*Detail, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.byHash[hash]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry).detail, true
}

// Children returns the hashes of orphans whose previous-block-hash is
// parent — blocks waiting on parent to arrive or be connected.
func (p *Pool) Children(parent chainhash.Hash) []chainhash.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()

	kids := p.children[parent]
	out := make([]chainhash.Hash, len(kids))
	copy(out, kids)
	return out
}

// Remove deletes detail's entry from the pool outright, used by the
// organizer once a block is promoted to confirmed or permanently
// rejected and no longer needs to sit in the orphan registry.
func (p *Pool) Remove(hash chainhash.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.byHash[hash]
	if !ok {
		return false
	}
	e := elem.Value.(*entry)
	p.order.Remove(elem)
	delete(p.byHash, hash)
	p.membership.Delete(hash)
	parent := *e.detail.Block.MsgBlock().Header.ParentHash()
	p.removeChildLocked(parent, hash)
	return true
}

// Len returns the number of details currently held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
