// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloomfilter

import (
	"testing"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
)

func makeTx(lockTime uint32, scriptTag byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{scriptTag, 0x01, 0x02}})
	tx.LockTime = lockTime
	return tx
}

func TestMerkleBlockRoundTripNoMatch(t *testing.T) {
	header := wire.BlockHeader{Version: 1}
	txs := []*wire.MsgTx{makeTx(1, 0xAA), makeTx(2, 0xBB), makeTx(3, 0xCC)}

	root := calcMerkleRootForTest(txs)
	header.MerkleRoot = root

	f := NewFilter(1, 0, 0.0001)
	mb := BuildMerkleBlock(header, txs, f)

	matched, err := VerifyMerkleBlock(mb)
	if err != nil {
		t.Fatalf("VerifyMerkleBlock: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("expected no matches, got %d", len(matched))
	}
}

func TestMerkleBlockRoundTripWithMatch(t *testing.T) {
	header := wire.BlockHeader{Version: 1}
	txs := []*wire.MsgTx{makeTx(1, 0xAA), makeTx(2, 0xBB), makeTx(3, 0xCC), makeTx(4, 0xDD)}
	root := calcMerkleRootForTest(txs)
	header.MerkleRoot = root

	f := NewFilter(5, 0, 0.0001)
	wantHash := txs[2].TxHash()
	f.AddHash(&wantHash)

	mb := BuildMerkleBlock(header, txs, f)
	matched, err := VerifyMerkleBlock(mb)
	if err != nil {
		t.Fatalf("VerifyMerkleBlock: %v", err)
	}
	if len(matched) != 1 || !matched[0].IsEqual(&wantHash) {
		t.Fatalf("expected single match %s, got %v", wantHash, matched)
	}
}

func TestMerkleBlockCorruptRootDetected(t *testing.T) {
	header := wire.BlockHeader{Version: 1}
	txs := []*wire.MsgTx{makeTx(1, 0xAA), makeTx(2, 0xBB)}
	header.MerkleRoot = calcMerkleRootForTest(txs)

	f := NewFilter(1, 0, 0.0001)
	h0 := txs[0].TxHash()
	f.AddHash(&h0)

	mb := BuildMerkleBlock(header, txs, f)
	mb.Header.MerkleRoot[0] ^= 0xFF

	if _, err := VerifyMerkleBlock(mb); err != ErrMerkleRootMismatch {
		t.Fatalf("expected ErrMerkleRootMismatch, got %v", err)
	}
}

// calcMerkleRootForTest computes the full merkle root the same way
// BuildMerkleBlock does internally, used only to stand in for a block's
// stored MerkleRoot field in these tests.
func calcMerkleRootForTest(txs []*wire.MsgTx) chainhash.Hash {
	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.TxHash()
	}
	return calcHash(treeHeight(len(leaves)), 0, leaves)
}
