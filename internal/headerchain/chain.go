// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package headerchain is the block-header chain engine of spec.md §4.1:
// an append-only headers store plus an in-memory index that tracks every
// branch tip, elects the best chain by cumulative work, and resolves
// reorgs.
package headerchain

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/bitc-go/bitc/internal/chaincfg"
	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/decred/slog"
)

// log is THE CORE's per-subsystem logger, wired by SetLogger at startup.
var log = slog.Disabled

// SetLogger installs the logger this package uses.
func SetLogger(logger slog.Logger) { log = logger }

// AcceptResult reports the outcome of AcceptHeader.
type AcceptResult int

// AcceptHeader outcomes, matching the steps enumerated in spec.md §4.1.
const (
	ResultAccepted AcceptResult = iota
	ResultDuplicate
	ResultDeferred // buffered as an orphan, parent requested
)

// Sentinel errors surfaced by AcceptHeader; each is a peer-misbehavior
// signal per spec.md §4.1/§7, never fatal to the daemon.
var (
	ErrInvalidProofOfWork = fmt.Errorf("headerchain: hash exceeds target implied by bits")
	ErrBadDifficultyBits  = fmt.Errorf("headerchain: bits disagrees with retarget rule")
	ErrOrphanBufferFull   = fmt.Errorf("headerchain: orphan buffer full, dropping oldest")
)

// defaultMaxOrphanHeaders is the bounded FIFO cap of spec.md §4.1 step 4, made
// explicit and configurable per the design note in spec.md §9.
const defaultMaxOrphanHeaders = 64

// blockNode is the in-memory representation of one header in the index.
type blockNode struct {
	hash      chainhash.Hash
	parent    *blockNode
	children  []*blockNode
	header    wire.BlockHeader
	height    int64
	bits      uint32
	timestamp time.Time
	workSum   *big.Int // this node's own cumulative work total
	isBest    bool
}

// ReorgEvent carries the hashes disconnected and connected by a reorg, per
// spec.md §4.1 step 7 and the chain_events collaborator interface of §6.
type ReorgEvent struct {
	DisconnectedHashes []chainhash.Hash
	ConnectedHashes    []chainhash.Hash
	NewTipHeight        int64
	NewTipHash          chainhash.Hash
}

// Events is the chain_events collaborator interface consumed by the UI/RPC
// glue named in spec.md §6. Any field left nil is simply not invoked.
type Events struct {
	OnNewTip  func(hash chainhash.Hash, height int64)
	OnReorg   func(ev ReorgEvent)
	OnOrphan  func(hash chainhash.Hash)
}

// Chain is the block-header chain engine: store + index + orphan buffer.
// Every method must be called from the single reactor thread that owns
// this component (spec.md §5) — there is no internal locking beyond the
// mutex guarding status snapshot reads from other goroutines.
type Chain struct {
	mu sync.RWMutex

	params *chaincfg.Params
	store  *store
	events Events

	nodes map[chainhash.Hash]*blockNode
	tips  map[chainhash.Hash]*blockNode // branch tips: nodes with no children
	best  *blockNode

	maxOrphans   int
	orphans      map[chainhash.Hash]*wire.BlockHeader
	orphanOrder  []chainhash.Hash // FIFO eviction order
	orphanParent map[chainhash.Hash][]chainhash.Hash
}

// Open loads (or creates) headers.dat at path, bootstraps from the
// network's embedded genesis header if the store is empty, and rebuilds
// the in-memory index from whatever records survive.
func Open(path string, params *chaincfg.Params, events Events) (*Chain, error) {
	st, err := openStore(path)
	if err != nil {
		return nil, err
	}

	c := &Chain{
		params:       params,
		store:        st,
		events:       events,
		nodes:        make(map[chainhash.Hash]*blockNode),
		tips:         make(map[chainhash.Hash]*blockNode),
		maxOrphans:   defaultMaxOrphanHeaders,
		orphans:      make(map[chainhash.Hash]*wire.BlockHeader),
		orphanParent: make(map[chainhash.Hash][]chainhash.Hash),
	}

	records, err := st.loadAll()
	if err != nil {
		return nil, err
	}

	bootstrapGenesis := func() (*Chain, error) {
		genesis := &blockNode{
			hash:      params.GenesisHash,
			header:    params.GenesisHeader,
			height:    0,
			bits:      params.GenesisHeader.Bits,
			timestamp: time.Unix(int64(params.GenesisHeader.Timestamp), 0),
			workSum:   CalcWork(params.GenesisHeader.Bits),
			isBest:    true,
		}
		c.nodes[genesis.hash] = genesis
		c.tips[genesis.hash] = genesis
		c.best = genesis
		if err := st.append(record{
			Header: genesis.header,
			Height: 0,
			Work:   genesis.workSum,
		}); err != nil {
			return nil, err
		}
		return c, nil
	}

	if len(records) == 0 {
		return bootstrapGenesis()
	}

	var best *blockNode
	valid := 0
	for i, rec := range records {
		hash := rec.Header.BlockHash()

		// Revalidate each record against its parent record rather than
		// trusting a structurally well-formed but tampered entry
		// (spec.md §4.1: "every record is revalidated against its
		// predecessor"). The parent may be any earlier record, since
		// side-branch headers are appended too. A record that fails any
		// of these checks, and everything after it, is dropped; the
		// caller resumes sync from the last good tip and refetches the
		// remainder from peers.
		var parent *blockNode
		var expectWork *big.Int
		if i == 0 {
			if hash != params.GenesisHash {
				log.Warnf("headerchain: record 0 is not genesis, truncating store at record %d", i)
				break
			}
			expectWork = CalcWork(rec.Header.Bits)
		} else {
			parent = c.nodes[rec.Header.PrevBlock]
			if parent == nil {
				log.Warnf("headerchain: record %d does not chain to an earlier record, truncating store", i)
				break
			}
			expectWork = new(big.Int).Add(parent.workSum, CalcWork(rec.Header.Bits))
		}
		if !checkProofOfWork(hash, rec.Header.Bits, params.PowLimit) {
			log.Warnf("headerchain: record %d fails proof of work, truncating store", i)
			break
		}
		if rec.Work.Cmp(expectWork) != 0 {
			log.Warnf("headerchain: record %d cumulative work mismatch, truncating store", i)
			break
		}

		node := &blockNode{
			hash:      hash,
			parent:    parent,
			header:    rec.Header,
			height:    int64(rec.Height),
			bits:      rec.Header.Bits,
			timestamp: time.Unix(int64(rec.Header.Timestamp), 0),
			workSum:   expectWork,
		}
		c.nodes[hash] = node
		if parent != nil {
			parent.children = append(parent.children, node)
			delete(c.tips, parent.hash)
		}
		c.tips[hash] = node
		// Strictly greater: on equal work the earlier record stays best,
		// the same first-seen rule connectNode applies.
		if best == nil || node.workSum.Cmp(best.workSum) > 0 {
			best = node
		}
		valid++
	}
	if valid < len(records) {
		if err := st.truncateAt(int64(valid)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
	}
	if valid == 0 {
		// Nothing in the store survived revalidation; start over from
		// genesis and let the reactor refetch everything from peers.
		return bootstrapGenesis()
	}
	for n := best; n != nil; n = n.parent {
		n.isBest = true
	}
	c.best = best

	return c, nil
}

// Close releases the underlying store file.
func (c *Chain) Close() error {
	return c.store.close()
}

// SetMaxOrphans overrides the orphan buffer cap (default 64).
func (c *Chain) SetMaxOrphans(n int) { c.maxOrphans = n }

// BestHeight returns the canonical chain tip's height.
func (c *Chain) BestHeight() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.best.height
}

// BestHash returns the canonical chain tip's hash.
func (c *Chain) BestHash() chainhash.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.best.hash
}

// HaveHeader reports whether hash is already indexed.
func (c *Chain) HaveHeader(hash chainhash.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.nodes[hash]
	return ok
}

// HeaderHeight returns the indexed height of hash, and whether it is
// known at all (spec.md §6: the wallet needs a block's height to compute
// a newly confirmed output's confirmation depth).
func (c *Chain) HeaderHeight(hash chainhash.Hash) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[hash]
	if !ok {
		return 0, false
	}
	return n.height, true
}

// LocatorHashes builds a getheaders locator starting at the best chain tip:
// the tip, then exponentially sparser ancestors (step doubles after each
// of the first 10), ending with genesis (spec.md §4.3).
func (c *Chain) LocatorHashes() []chainhash.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var hashes []chainhash.Hash
	node := c.best
	step := int64(1)
	for node != nil {
		hashes = append(hashes, node.hash)
		if node.height == 0 {
			break
		}
		for i := int64(0); i < step && node.parent != nil; i++ {
			node = node.parent
		}
		if len(hashes) >= 10 {
			step *= 2
		}
	}
	return hashes
}

// AcceptHeader validates and indexes a single candidate header, following
// the numbered steps of spec.md §4.1.
func (c *Chain) AcceptHeader(h *wire.BlockHeader) (AcceptResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := h.BlockHash()

	// Step 1: duplicate check (idempotent).
	if _, ok := c.nodes[hash]; ok {
		return ResultDuplicate, nil
	}
	if _, ok := c.orphans[hash]; ok {
		return ResultDuplicate, nil
	}

	// Step 2: proof-of-work check.
	if !checkProofOfWork(hash, h.Bits, c.params.PowLimit) {
		return ResultAccepted, ErrInvalidProofOfWork
	}

	// Step 4: locate parent; buffer as orphan if absent.
	parent, ok := c.nodes[h.PrevBlock]
	if !ok {
		c.bufferOrphan(h)
		return ResultDeferred, nil
	}

	// Step 3: difficulty-rule check, now that we know the parent/height.
	wantBits := c.calcNextRequiredDifficulty(parent, time.Unix(int64(h.Timestamp), 0))
	if h.Bits != wantBits {
		return ResultAccepted, ErrBadDifficultyBits
	}

	node, err := c.connectNode(h, hash, parent)
	if err != nil {
		return ResultAccepted, err
	}

	// Step 8: drain any orphans now parented by this header.
	c.drainOrphans(node)

	return ResultAccepted, nil
}

// connectNode assigns height/work, appends to the store, updates tips, and
// performs a reorg if the new node's branch now has more cumulative work
// than the previous best tip (spec.md §4.1 steps 5-7).
func (c *Chain) connectNode(h *wire.BlockHeader, hash chainhash.Hash, parent *blockNode) (*blockNode, error) {
	node := &blockNode{
		hash:      hash,
		parent:    parent,
		header:    *h,
		height:    parent.height + 1,
		bits:      h.Bits,
		timestamp: time.Unix(int64(h.Timestamp), 0),
		workSum:   new(big.Int).Add(parent.workSum, CalcWork(h.Bits)),
	}

	if err := c.store.append(record{Header: *h, Height: uint32(node.height), Work: node.workSum}); err != nil {
		return nil, err
	}

	c.nodes[hash] = node
	parent.children = append(parent.children, node)
	delete(c.tips, parent.hash)
	c.tips[hash] = node

	if node.workSum.Cmp(c.best.workSum) > 0 {
		c.reorgTo(node)
	} else if log != nil {
		log.Debugf("accepted side-branch header %s at height %d", hash, node.height)
	}

	return node, nil
}

// reorgTo makes newTip the best chain, per spec.md §4.1 step 7: walk back
// from both tips to their lowest common ancestor, demote the old branch,
// promote the new one, and emit a reorg event. When newTip simply extends
// the current best chain (the common case), this degenerates to marking
// one new node best with empty disconnected/connected lists beyond the tip.
func (c *Chain) reorgTo(newTip *blockNode) {
	oldTip := c.best
	lca := lowestCommonAncestor(oldTip, newTip)

	var disconnected, connected []chainhash.Hash
	for n := oldTip; n != nil && n != lca; n = n.parent {
		n.isBest = false
		disconnected = append(disconnected, n.hash)
	}
	var connectPath []*blockNode
	for n := newTip; n != nil && n != lca; n = n.parent {
		connectPath = append(connectPath, n)
	}
	for i := len(connectPath) - 1; i >= 0; i-- {
		connectPath[i].isBest = true
		connected = append(connected, connectPath[i].hash)
	}

	c.best = newTip

	if len(disconnected) > 0 && c.events.OnReorg != nil {
		c.events.OnReorg(ReorgEvent{
			DisconnectedHashes: disconnected,
			ConnectedHashes:    connected,
			NewTipHeight:       newTip.height,
			NewTipHash:         newTip.hash,
		})
	}
	if c.events.OnNewTip != nil {
		c.events.OnNewTip(newTip.hash, newTip.height)
	}
}

func lowestCommonAncestor(a, b *blockNode) *blockNode {
	ancestorsA := make(map[*blockNode]bool)
	for n := a; n != nil; n = n.parent {
		ancestorsA[n] = true
	}
	for n := b; n != nil; n = n.parent {
		if ancestorsA[n] {
			return n
		}
	}
	return nil
}

func (c *Chain) bufferOrphan(h *wire.BlockHeader) {
	hash := h.BlockHash()
	if len(c.orphanOrder) >= c.maxOrphans {
		oldest := c.orphanOrder[0]
		c.orphanOrder = c.orphanOrder[1:]
		oldHdr := c.orphans[oldest]
		delete(c.orphans, oldest)
		if oldHdr != nil {
			delete(c.orphanParent, oldHdr.PrevBlock)
		}
		if log != nil {
			log.Debugf("orphan buffer full, evicted %s", oldest)
		}
	}
	c.orphans[hash] = h
	c.orphanOrder = append(c.orphanOrder, hash)
	c.orphanParent[h.PrevBlock] = append(c.orphanParent[h.PrevBlock], hash)
	if c.events.OnOrphan != nil {
		c.events.OnOrphan(hash)
	}
}

func (c *Chain) drainOrphans(parent *blockNode) {
	queue := []chainhash.Hash{parent.hash}
	for len(queue) > 0 {
		ph := queue[0]
		queue = queue[1:]
		children := c.orphanParent[ph]
		delete(c.orphanParent, ph)
		for _, childHash := range children {
			h, ok := c.orphans[childHash]
			if !ok {
				continue
			}
			delete(c.orphans, childHash)
			c.removeFromOrphanOrder(childHash)

			p := c.nodes[h.PrevBlock]
			if p == nil {
				continue
			}
			wantBits := c.calcNextRequiredDifficulty(p, time.Unix(int64(h.Timestamp), 0))
			if h.Bits != wantBits {
				continue
			}
			node, err := c.connectNode(h, childHash, p)
			if err != nil {
				continue
			}
			queue = append(queue, node.hash)
		}
	}
}

func (c *Chain) removeFromOrphanOrder(hash chainhash.Hash) {
	for i, h := range c.orphanOrder {
		if h == hash {
			c.orphanOrder = append(c.orphanOrder[:i], c.orphanOrder[i+1:]...)
			return
		}
	}
}

// PendingOrphanParents returns the prev-hash of every buffered orphan,
// each distinct parent once and in no particular order: the headers THE
// CORE should request from the sourcing peer. It is empty when no orphan
// is buffered.
func (c *Chain) PendingOrphanParents() []chainhash.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[chainhash.Hash]bool)
	var out []chainhash.Hash
	for parentHash := range c.orphanParent {
		if !seen[parentHash] {
			seen[parentHash] = true
			out = append(out, parentHash)
		}
	}
	return out
}
