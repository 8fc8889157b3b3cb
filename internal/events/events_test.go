// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package events

import (
	"testing"

	"github.com/bitc-go/bitc/internal/chainhash"
)

func TestChainEventsFireInvokesSetCallbacks(t *testing.T) {
	var gotHash chainhash.Hash
	var gotHeight int64
	var gotReorg ReorgEvent
	var gotOrphan chainhash.Hash

	c := ChainEvents{
		OnNewTip: func(hash chainhash.Hash, height int64) { gotHash, gotHeight = hash, height },
		OnReorg:  func(ev ReorgEvent) { gotReorg = ev },
		OnOrphan: func(hash chainhash.Hash) { gotOrphan = hash },
	}

	want := chainhash.HashH([]byte("tip"))
	c.FireNewTip(want, 100)
	if gotHash != want || gotHeight != 100 {
		t.Fatal("FireNewTip did not reach OnNewTip with the right arguments")
	}

	reorg := ReorgEvent{NewTipHeight: 200}
	c.FireReorg(reorg)
	if gotReorg.NewTipHeight != 200 {
		t.Fatal("FireReorg did not reach OnReorg")
	}

	orphanHash := chainhash.HashH([]byte("orphan"))
	c.FireOrphan(orphanHash)
	if gotOrphan != orphanHash {
		t.Fatal("FireOrphan did not reach OnOrphan")
	}
}

func TestChainEventsFireIsNoopWhenUnset(t *testing.T) {
	var c ChainEvents
	// None of these must panic when the corresponding callback is nil.
	c.FireNewTip(chainhash.Hash{}, 0)
	c.FireReorg(ReorgEvent{})
	c.FireOrphan(chainhash.Hash{})
}

func TestWalletEventsFireInvokesSetCallbacks(t *testing.T) {
	var gotBalance int64 = -1
	var gotObserved chainhash.Hash
	var gotConfirmedTxid chainhash.Hash
	var gotDepth int64
	var gotFailedTxid chainhash.Hash
	var gotFailReason string

	w := WalletEvents{
		OnBalanceChange:      func(n int64) { gotBalance = n },
		OnNewObservation:     func(txid chainhash.Hash) { gotObserved = txid },
		OnConfirmationChange: func(txid chainhash.Hash, depth int64) { gotConfirmedTxid, gotDepth = txid, depth },
		OnBroadcastFailure:   func(txid chainhash.Hash, reason string) { gotFailedTxid, gotFailReason = txid, reason },
	}

	w.FireBalanceChange(5000)
	if gotBalance != 5000 {
		t.Fatal("FireBalanceChange did not reach OnBalanceChange")
	}

	txid := chainhash.HashH([]byte("tx"))
	w.FireNewObservation(txid)
	if gotObserved != txid {
		t.Fatal("FireNewObservation did not reach OnNewObservation")
	}

	w.FireConfirmationChange(txid, 6)
	if gotConfirmedTxid != txid || gotDepth != 6 {
		t.Fatal("FireConfirmationChange did not reach OnConfirmationChange with the right arguments")
	}

	w.FireBroadcastFailure(txid, "rejected by 2/3 of peers")
	if gotFailedTxid != txid || gotFailReason != "rejected by 2/3 of peers" {
		t.Fatal("FireBroadcastFailure did not reach OnBroadcastFailure with the right arguments")
	}
}

func TestWalletEventsFireIsNoopWhenUnset(t *testing.T) {
	var w WalletEvents
	w.FireBalanceChange(0)
	w.FireNewObservation(chainhash.Hash{})
	w.FireConfirmationChange(chainhash.Hash{}, 0)
	w.FireBroadcastFailure(chainhash.Hash{}, "")
}

func TestPeerEventsFireInvokesSetCallbacks(t *testing.T) {
	var connected, disconnected, banned string
	var banReason string

	p := PeerEvents{
		OnConnect:    func(addr string) { connected = addr },
		OnDisconnect: func(addr string) { disconnected = addr },
		OnBan:        func(addr, reason string) { banned, banReason = addr, reason },
	}

	p.FireConnect("1.2.3.4:8333")
	if connected != "1.2.3.4:8333" {
		t.Fatal("FireConnect did not reach OnConnect")
	}
	p.FireDisconnect("1.2.3.4:8333")
	if disconnected != "1.2.3.4:8333" {
		t.Fatal("FireDisconnect did not reach OnDisconnect")
	}
	p.FireBan("5.6.7.8:8333", "misbehavior")
	if banned != "5.6.7.8:8333" || banReason != "misbehavior" {
		t.Fatal("FireBan did not reach OnBan with the right arguments")
	}
}

func TestPeerEventsFireIsNoopWhenUnset(t *testing.T) {
	var p PeerEvents
	p.FireConnect("")
	p.FireDisconnect("")
	p.FireBan("", "")
}
