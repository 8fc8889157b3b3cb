// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/events"
	"github.com/bitc-go/bitc/internal/peer"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/bitc-go/bitc/internal/workerpool"
)

// fixedAddr is a net.Addr with a caller-chosen string, used to give
// otherwise-identical test peer.Peer instances distinguishable Addr()
// values without opening real sockets.
type fixedAddr string

func (a fixedAddr) Network() string { return "tcp" }
func (a fixedAddr) String() string  { return string(a) }

type addrConn struct {
	net.Conn
	addr fixedAddr
}

func (c *addrConn) RemoteAddr() net.Addr { return c.addr }

// fakePeerAt returns a peer.Peer reporting addr from Addr(), for tests
// that only need a distinguishable peer identity, not live traffic.
func fakePeerAt(addr string) *peer.Peer {
	client, _ := net.Pipe()
	return peer.New(&addrConn{Conn: client, addr: fixedAddr(addr)}, peer.Config{})
}

type fakeChain struct {
	heights map[chainhash.Hash]int64
	best    int64
}

func (f *fakeChain) HeaderHeight(hash chainhash.Hash) (int64, bool) {
	h, ok := f.heights[hash]
	return h, ok
}
func (f *fakeChain) BestHeight() int64 { return f.best }

type fakeBroadcaster struct {
	sent  []*wire.MsgTx
	ready int
}

func (f *fakeBroadcaster) Broadcast(tx *wire.MsgTx) { f.sent = append(f.sent, tx) }
func (f *fakeBroadcaster) ReadyCount() int          { return f.ready }

func newTestWallet(t *testing.T, chain HeightLookup) *Wallet {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "wallet.cfg"))
	return New(store, 0x00, chain, nil, events.WalletEvents{})
}

func TestWalletNewAddressIsWatched(t *testing.T) {
	w := newTestWallet(t, &fakeChain{})
	addr, err := w.NewAddress("primary")
	if err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	if addr == "" {
		t.Fatal("NewAddress returned empty string")
	}
	if len(w.WatchedScripts()) != 1 {
		t.Fatalf("len(WatchedScripts) = %d, want 1", len(w.WatchedScripts()))
	}
}

func TestWalletOnTxRecordsOwnedOutput(t *testing.T) {
	w := newTestWallet(t, &fakeChain{})
	var balanceNotified int64 = -1
	w.events = events.WalletEvents{
		OnBalanceChange: func(bal int64) { balanceNotified = bal },
	}
	if _, err := w.NewAddress("primary"); err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	script := w.WatchedScripts()[0]

	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: script})
	w.OnTx(tx)

	if got := w.UnconfirmedBalance(); got != 5000 {
		t.Fatalf("UnconfirmedBalance = %d, want 5000", got)
	}
	if balanceNotified != 5000 {
		t.Fatalf("OnBalanceChange fired with %d, want 5000", balanceNotified)
	}
}

func TestWalletOnTxIgnoresUnownedOutput(t *testing.T) {
	w := newTestWallet(t, &fakeChain{})
	other, err := NewRandomKey("someone else")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: other.PubKeyHashScript()})
	w.OnTx(tx)

	if got := w.UnconfirmedBalance(); got != 0 {
		t.Fatalf("UnconfirmedBalance = %d, want 0 for an output this wallet doesn't own", got)
	}
}

func TestWalletMerkleBlockThenTxConfirms(t *testing.T) {
	chain := &fakeChain{heights: make(map[chainhash.Hash]int64), best: 150}
	w := newTestWallet(t, chain)
	if _, err := w.NewAddress("primary"); err != nil {
		t.Fatalf("NewAddress: %v", err)
	}
	script := w.WatchedScripts()[0]

	tx := wire.NewMsgTx(1)
	tx.AddTxOut(&wire.TxOut{Value: 5000, PkScript: script})
	txid := tx.TxHash()

	header := wire.BlockHeader{Bits: 0x1d00ffff, Nonce: 42}
	blockHash := header.BlockHash()
	chain.heights[blockHash] = 100

	mb := &wire.MsgMerkleBlock{Header: header}
	w.OnMerkleBlock(mb, []chainhash.Hash{txid})
	w.OnTx(tx)

	op := wire.OutPoint{Hash: txid, Index: 0}
	out, ok := w.ledger.Get(op)
	if !ok {
		t.Fatal("ledger has no record of the confirmed output")
	}
	if !out.IsConfirmed() {
		t.Fatal("output not marked confirmed after merkleblock + tx arrived")
	}
	if out.Height != 100 {
		t.Fatalf("Height = %d, want 100", out.Height)
	}
}

func TestWalletSendRequiresBroadcaster(t *testing.T) {
	w := newTestWallet(t, &fakeChain{})
	_, err := w.Send(nil, 0, nil)
	if err != ErrNotReady {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestWalletSendBroadcastsSignedTx(t *testing.T) {
	chain := &fakeChain{best: 10}
	w := newTestWallet(t, chain)
	bc := &fakeBroadcaster{}
	w.SetBroadcaster(bc)

	k, err := w.newKey("primary")
	if err != nil {
		t.Fatalf("newKey: %v", err)
	}
	var txid chainhash.Hash
	txid[0] = 3
	w.ledger.AddOutput(&Output{Txid: txid, Vout: 0, Value: 100_000, PkScript: k.PubKeyHashScript(), Height: -1})

	payee, err := NewRandomKey("payee")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	payments := []PaymentRequest{{PkScript: payee.PubKeyHashScript(), Value: 1000}}
	sign := func(key *Key, hash []byte) []byte { return []byte("fake-signature") }

	if _, err := w.Send(payments, 2000, sign); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bc.sent) != 1 {
		t.Fatalf("len(bc.sent) = %d, want 1", len(bc.sent))
	}
}

func TestWalletSendUsesDefaultFeeRateWhenZero(t *testing.T) {
	chain := &fakeChain{best: 10}
	w := newTestWallet(t, chain)
	bc := &fakeBroadcaster{}
	w.SetBroadcaster(bc)

	k, err := w.newKey("primary")
	if err != nil {
		t.Fatalf("newKey: %v", err)
	}
	var txid chainhash.Hash
	txid[0] = 7
	w.ledger.AddOutput(&Output{Txid: txid, Vout: 0, Value: 100_000, PkScript: k.PubKeyHashScript(), Height: -1})

	payee, err := NewRandomKey("payee")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	payments := []PaymentRequest{{PkScript: payee.PubKeyHashScript(), Value: 1000}}
	sign := func(key *Key, hash []byte) []byte { return []byte("fake-signature") }

	tx, err := w.Send(payments, 0, sign)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if tx == nil {
		t.Fatal("Send returned a nil transaction")
	}
}

func TestSubmitTxSignsThroughWorkerPool(t *testing.T) {
	chain := &fakeChain{best: 10}
	w := newTestWallet(t, chain)
	bc := &fakeBroadcaster{ready: 3}
	w.SetBroadcaster(bc)
	pool := workerpool.New(2)
	defer pool.Wait()
	defer pool.Shutdown()
	w.SetWorkerPool(pool)

	k, err := w.newKey("primary")
	if err != nil {
		t.Fatalf("newKey: %v", err)
	}
	var txid chainhash.Hash
	txid[0] = 9
	w.ledger.AddOutput(&Output{Txid: txid, Vout: 0, Value: 100_000, PkScript: k.PubKeyHashScript(), Height: -1})

	payee, err := NewRandomKey("payee")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	addr := payee.Address(0x00)

	gotTxid, err := w.SubmitTx(addr, 1000, 2000)
	if err != nil {
		t.Fatalf("SubmitTx: %v", err)
	}
	if gotTxid == (chainhash.Hash{}) {
		t.Fatal("SubmitTx returned a zero txid")
	}
	if len(bc.sent) != 1 {
		t.Fatalf("len(bc.sent) = %d, want 1", len(bc.sent))
	}
}

func TestOnRejectFiresBroadcastFailureAtTwoThirds(t *testing.T) {
	w := newTestWallet(t, &fakeChain{})
	bc := &fakeBroadcaster{ready: 3}
	w.SetBroadcaster(bc)

	var failedTxid chainhash.Hash
	var failReason string
	w.events = events.WalletEvents{
		OnBroadcastFailure: func(txid chainhash.Hash, reason string) { failedTxid, failReason = txid, reason },
	}

	txid := chainhash.HashH([]byte("pending tx"))
	msg := &wire.MsgReject{Cmd: wire.CmdTx, Reason: "insufficient fee", Hash: txid}

	w.OnReject(fakePeerAt("1.1.1.1:8333"), msg)
	if failedTxid != (chainhash.Hash{}) {
		t.Fatal("OnBroadcastFailure fired after only 1 of 3 peers rejected")
	}

	w.OnReject(fakePeerAt("2.2.2.2:8333"), msg)
	if failedTxid != txid || failReason != "insufficient fee" {
		t.Fatalf("OnBroadcastFailure did not fire once 2/3 ready peers rejected %s", txid)
	}
}

