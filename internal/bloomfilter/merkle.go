// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloomfilter

import (
	"errors"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
)

// ErrMerkleRootMismatch is returned by VerifyMerkleBlock when the
// reconstructed root does not match the header's MerkleRoot field.
var ErrMerkleRootMismatch = errors.New("bloomfilter: reconstructed merkle root does not match header")

// partialMerkleBuilder depth-first-walks a full transaction tree, emitting
// the bit-stream and hash list BIP37 partial merkle blocks use: an
// interior node is pruned to its own hash unless it (or a descendant)
// matches the filter, in which case its children are recursed into.
type partialMerkleBuilder struct {
	allHashes []chainhash.Hash
	matched   []bool
	bits      []byte
	hashes    []*chainhash.Hash
	bitPos    int
}

func (b *partialMerkleBuilder) setBit(pos int) {
	for pos >= len(b.bits)*8 {
		b.bits = append(b.bits, 0)
	}
	b.bits[pos/8] |= 1 << uint(pos%8)
}

// treeWidth returns the number of nodes at a given height of a merkle tree
// over n leaves (height 0 is the leaves).
func treeWidth(n int, height uint) int {
	return (n + (1 << height) - 1) >> height
}

// calcHash returns the hash of node `pos` at tree `height`, recomputing
// interior nodes from the leaf level up (duplicating an odd last child,
// per Bitcoin's merkle-tree convention).
func calcHash(height uint, pos int, leaves []chainhash.Hash) chainhash.Hash {
	if height == 0 {
		return leaves[pos]
	}
	left := calcHash(height-1, pos*2, leaves)
	width := treeWidth(len(leaves), height-1)
	var right chainhash.Hash
	if pos*2+1 < width {
		right = calcHash(height-1, pos*2+1, leaves)
	} else {
		right = left
	}
	return hashPair(left, right)
}

func hashPair(left, right chainhash.Hash) chainhash.Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return chainhash.HashH(buf[:])
}

func treeHeight(n int) uint {
	h := uint(0)
	for treeWidth(n, h) > 1 {
		h++
	}
	return h
}

// traverse implements the recursive descent of BIP37's TraverseAndBuild:
// one flag bit per visited node, and a hash is emitted for every pruned
// (leaf of the partial tree) node.
func (b *partialMerkleBuilder) traverse(height uint, pos int) {
	anyMatch := false
	from := pos << height
	to := from + (1 << height)
	if to > len(b.allHashes) {
		to = len(b.allHashes)
	}
	for i := from; i < to; i++ {
		if b.matched[i] {
			anyMatch = true
			break
		}
	}

	if anyMatch {
		b.setBit(b.bitPos)
	}
	b.bitPos++

	if height == 0 || !anyMatch {
		h := calcHash(height, pos, b.allHashes)
		b.hashes = append(b.hashes, &h)
		return
	}

	b.traverse(height-1, pos*2)
	if pos*2+1 < treeWidth(len(b.allHashes), height-1) {
		b.traverse(height-1, pos*2+1)
	}
}

// BuildMerkleBlock constructs a merkleblock message for blk's transactions,
// matching them against f, per spec.md §3 ("merkleblock reply") and §9's
// instruction to factor the partial-merkle-tree walk as its own tested
// primitive.
func BuildMerkleBlock(header wire.BlockHeader, txs []*wire.MsgTx, f *Filter) *wire.MsgMerkleBlock {
	b := &partialMerkleBuilder{
		allHashes: make([]chainhash.Hash, len(txs)),
		matched:   make([]bool, len(txs)),
	}
	for i, tx := range txs {
		b.allHashes[i] = tx.TxHash()
		b.matched[i] = txMatchesFilter(tx, f)
	}

	height := treeHeight(len(txs))
	b.traverse(height, 0)

	return &wire.MsgMerkleBlock{
		Header:       header,
		Transactions: uint32(len(txs)),
		Hashes:       b.hashes,
		Flags:        b.bits,
	}
}

// txMatchesFilter reports whether any of tx's outpoints, output scripts,
// or its own hash match f.
func txMatchesFilter(tx *wire.MsgTx, f *Filter) bool {
	txHash := tx.TxHash()
	if f.Matches(txHash[:]) {
		return true
	}
	for _, out := range tx.TxOut {
		if f.Matches(out.PkScript) {
			return true
		}
	}
	for _, in := range tx.TxIn {
		if f.Matches(in.PreviousOutPoint.Hash[:]) {
			return true
		}
		if f.Matches(in.SignatureScript) {
			return true
		}
	}
	return false
}

// partialMerkleReader mirrors partialMerkleBuilder for the receiving side:
// it walks the same bit-stream/hash-list shape to recompute the merkle
// root and collect the matched transaction hashes.
type partialMerkleReader struct {
	numTx   int
	hashes  []*chainhash.Hash
	bits    []byte
	hashIdx int
	bitIdx  int
	matched []chainhash.Hash
}

func (r *partialMerkleReader) getBit() bool {
	byteIdx := r.bitIdx / 8
	if byteIdx >= len(r.bits) {
		return false
	}
	bit := r.bits[byteIdx]&(1<<uint(r.bitIdx%8)) != 0
	r.bitIdx++
	return bit
}

func (r *partialMerkleReader) getHash() (chainhash.Hash, error) {
	if r.hashIdx >= len(r.hashes) {
		return chainhash.Hash{}, errors.New("bloomfilter: merkle hash list exhausted")
	}
	h := *r.hashes[r.hashIdx]
	r.hashIdx++
	return h, nil
}

func (r *partialMerkleReader) traverse(height uint, pos int) (chainhash.Hash, error) {
	match := r.getBit()

	if height == 0 || !match {
		h, err := r.getHash()
		if err != nil {
			return chainhash.Hash{}, err
		}
		if height == 0 && match {
			r.matched = append(r.matched, h)
		}
		return h, nil
	}

	left, err := r.traverse(height-1, pos*2)
	if err != nil {
		return chainhash.Hash{}, err
	}
	width := treeWidth(r.numTx, height-1)
	right := left
	if pos*2+1 < width {
		right, err = r.traverse(height-1, pos*2+1)
		if err != nil {
			return chainhash.Hash{}, err
		}
	}
	return hashPair(left, right), nil
}

// VerifyMerkleBlock recomputes the merkle root implied by msg's hash list
// and flag bits and checks it against msg.Header.MerkleRoot, returning the
// transaction hashes the sending peer claims matched the filter it was
// given. Callers must still re-check each returned hash against their own
// filter; a malicious peer can claim extra matches (spec.md §4.1 footgun
// list: "a merkleblock's matched set is a peer's claim, not a proof of
// wallet relevance").
func VerifyMerkleBlock(msg *wire.MsgMerkleBlock) ([]chainhash.Hash, error) {
	if msg.Transactions == 0 {
		return nil, nil
	}
	r := &partialMerkleReader{
		numTx:  int(msg.Transactions),
		hashes: msg.Hashes,
		bits:   msg.Flags,
	}
	height := treeHeight(int(msg.Transactions))
	root, err := r.traverse(height, 0)
	if err != nil {
		return nil, err
	}
	if !root.IsEqual(&msg.Header.MerkleRoot) {
		return nil, ErrMerkleRootMismatch
	}
	return r.matched, nil
}
