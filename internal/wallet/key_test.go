// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import "testing"

func TestKeyAddressRoundTrip(t *testing.T) {
	k, err := NewRandomKey("primary")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	addr := k.Address(0x00)
	if addr == "" {
		t.Fatal("Address returned empty string")
	}

	script := k.PubKeyHashScript()
	h160, ok := ExtractPubKeyHash(script)
	if !ok {
		t.Fatal("ExtractPubKeyHash failed on a script this package built")
	}
	if string(h160) != string(k.Hash160()) {
		t.Fatal("ExtractPubKeyHash did not round-trip Hash160")
	}
}

func TestPubKeyHashScriptShape(t *testing.T) {
	k, err := NewRandomKey("")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	script := k.PubKeyHashScript()
	if len(script) != 25 {
		t.Fatalf("len(script) = %d, want 25", len(script))
	}
	if script[0] != opDup || script[1] != opHash160 || script[2] != opData20 {
		t.Fatalf("script prefix = %x, want OP_DUP OP_HASH160 OP_DATA_20", script[:3])
	}
	if script[23] != opEqualVerify || script[24] != opCheckSig {
		t.Fatalf("script suffix = %x, want OP_EQUALVERIFY OP_CHECKSIG", script[23:])
	}
}

func TestExtractPubKeyHashRejectsWrongShape(t *testing.T) {
	if _, ok := ExtractPubKeyHash([]byte{0x51}); ok {
		t.Fatal("ExtractPubKeyHash accepted a non-P2PKH script")
	}
}

func TestTwoKeysDifferentAddresses(t *testing.T) {
	k1, _ := NewRandomKey("a")
	k2, _ := NewRandomKey("b")
	if k1.Address(0x00) == k2.Address(0x00) {
		t.Fatal("two independently generated keys produced the same address")
	}
}
