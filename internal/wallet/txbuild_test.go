// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"testing"

	"github.com/bitc-go/bitc/internal/bcrypto"
	"github.com/bitc-go/bitc/internal/chainhash"
)

func mustKey(t *testing.T) *Key {
	t.Helper()
	k, err := NewRandomKey("test")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	return k
}

func outputAt(txid chainhash.Hash, vout uint32, value int64, pkScript []byte) *Output {
	return &Output{Txid: txid, Vout: vout, Value: value, PkScript: pkScript, Height: -1}
}

func TestSelectCoinsGreedyLargestFirst(t *testing.T) {
	var h1, h2, h3 chainhash.Hash
	h1[0], h2[0], h3[0] = 1, 2, 3
	outs := []*Output{
		outputAt(h1, 0, 1000, nil),
		outputAt(h2, 0, 5000, nil),
		outputAt(h3, 0, 2000, nil),
	}
	chosen, sum, err := selectCoins(outs, 6000)
	if err != nil {
		t.Fatalf("selectCoins: %v", err)
	}
	if len(chosen) != 2 || chosen[0].Value != 5000 || chosen[1].Value != 2000 {
		t.Fatalf("selectCoins chose %v, want [5000, 2000] largest-first", chosen)
	}
	if sum != 7000 {
		t.Fatalf("sum = %d, want 7000", sum)
	}
}

func TestSelectCoinsInsufficientFunds(t *testing.T) {
	var h1 chainhash.Hash
	outs := []*Output{outputAt(h1, 0, 100, nil)}
	if _, _, err := selectCoins(outs, 1000); err != ErrInsufficientFunds {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestBuildTxNoOutputs(t *testing.T) {
	ledger := NewLedger()
	if _, err := BuildTx(ledger, nil, nil, 0); err != ErrNoOutputs {
		t.Fatalf("err = %v, want ErrNoOutputs", err)
	}
}

func TestBuildTxFoldsChangeBelowDust(t *testing.T) {
	ledger := NewLedger()
	var txid chainhash.Hash
	txid[0] = 7
	key := mustKey(t)
	ledger.AddOutput(outputAt(txid, 0, 2000, key.PubKeyHashScript()))

	payments := []PaymentRequest{{PkScript: key.PubKeyHashScript(), Value: 1500}}
	tx, err := BuildTx(ledger, payments, key.PubKeyHashScript(), 0)
	if err != nil {
		t.Fatalf("BuildTx: %v", err)
	}
	// 2000 selected - 1500 paid leaves 500, below the 546 dust threshold,
	// so it must be folded into the fee and no change output created.
	if len(tx.TxOut) != 1 {
		t.Fatalf("len(tx.TxOut) = %d, want 1 (no change output)", len(tx.TxOut))
	}
}

func TestBuildTxAddsChangeAboveDust(t *testing.T) {
	ledger := NewLedger()
	var txid chainhash.Hash
	txid[0] = 8
	key := mustKey(t)
	ledger.AddOutput(outputAt(txid, 0, 1_000_000, key.PubKeyHashScript()))

	payments := []PaymentRequest{{PkScript: key.PubKeyHashScript(), Value: 1000}}
	tx, err := BuildTx(ledger, payments, key.PubKeyHashScript(), 0)
	if err != nil {
		t.Fatalf("BuildTx: %v", err)
	}
	if len(tx.TxOut) != 2 {
		t.Fatalf("len(tx.TxOut) = %d, want 2 (payment + change)", len(tx.TxOut))
	}
	if tx.TxOut[1].Value < DustThreshold {
		t.Fatalf("change output %d below dust threshold %d", tx.TxOut[1].Value, DustThreshold)
	}
}

func TestBuildTxHonorsFeeRateParameter(t *testing.T) {
	key := mustKey(t)

	cheap := NewLedger()
	var txidCheap chainhash.Hash
	txidCheap[0] = 11
	cheap.AddOutput(outputAt(txidCheap, 0, 1_000_000, key.PubKeyHashScript()))
	payments := []PaymentRequest{{PkScript: key.PubKeyHashScript(), Value: 1000}}
	txCheap, err := BuildTx(cheap, payments, key.PubKeyHashScript(), 1000)
	if err != nil {
		t.Fatalf("BuildTx at 1000 sat/KB: %v", err)
	}

	pricey := NewLedger()
	var txidPricey chainhash.Hash
	txidPricey[0] = 12
	pricey.AddOutput(outputAt(txidPricey, 0, 1_000_000, key.PubKeyHashScript()))
	txPricey, err := BuildTx(pricey, payments, key.PubKeyHashScript(), 50000)
	if err != nil {
		t.Fatalf("BuildTx at 50000 sat/KB: %v", err)
	}

	changeCheap := txCheap.TxOut[len(txCheap.TxOut)-1].Value
	changePricey := txPricey.TxOut[len(txPricey.TxOut)-1].Value
	if changePricey >= changeCheap {
		t.Fatalf("change at 50000 sat/KB (%d) should be smaller than at 1000 sat/KB (%d): a higher fee_rate must increase the fee paid", changePricey, changeCheap)
	}
}

func TestSignTxRoundTrip(t *testing.T) {
	ledger := NewLedger()
	var txid chainhash.Hash
	txid[0] = 9
	key := mustKey(t)
	ledger.AddOutput(outputAt(txid, 0, 100_000, key.PubKeyHashScript()))

	payee := mustKey(t)
	payments := []PaymentRequest{{PkScript: payee.PubKeyHashScript(), Value: 1000}}
	tx, err := BuildTx(ledger, payments, key.PubKeyHashScript(), 0)
	if err != nil {
		t.Fatalf("BuildTx: %v", err)
	}

	prevScripts := make([][]byte, len(tx.TxIn))
	for i := range tx.TxIn {
		prevScripts[i] = key.PubKeyHashScript()
	}
	keyForScript := func(pkScript []byte) (*Key, bool) {
		return key, true
	}
	var signCalls int
	sign := func(k *Key, hash []byte) []byte {
		signCalls++
		return bcrypto.Sign(k.Priv, hash)
	}
	if err := SignTx(tx, prevScripts, keyForScript, sign); err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	if signCalls != len(tx.TxIn) {
		t.Fatalf("sign called %d times, want %d", signCalls, len(tx.TxIn))
	}
	for i, in := range tx.TxIn {
		if len(in.SignatureScript) == 0 {
			t.Fatalf("input %d has empty SignatureScript after SignTx", i)
		}
	}
}

func TestSignTxWatchOnlyFails(t *testing.T) {
	ledger := NewLedger()
	var txid chainhash.Hash
	txid[0] = 10
	key := mustKey(t)
	watchOnly := &Key{Pub: key.Pub, Label: "watch"}
	ledger.AddOutput(outputAt(txid, 0, 100_000, watchOnly.PubKeyHashScript()))

	payments := []PaymentRequest{{PkScript: key.PubKeyHashScript(), Value: 1000}}
	tx, err := BuildTx(ledger, payments, watchOnly.PubKeyHashScript(), 0)
	if err != nil {
		t.Fatalf("BuildTx: %v", err)
	}
	prevScripts := [][]byte{watchOnly.PubKeyHashScript()}
	keyForScript := func(pkScript []byte) (*Key, bool) { return watchOnly, true }
	err = SignTx(tx, prevScripts, keyForScript, func(k *Key, hash []byte) []byte { return nil })
	if err != ErrWatchOnly {
		t.Fatalf("err = %v, want ErrWatchOnly", err)
	}
}

