// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import "testing"

func TestMainNetGenesisHashMatchesHeader(t *testing.T) {
	p := MainNetParams()
	if p.GenesisHash != p.GenesisHeader.BlockHash() {
		t.Fatal("GenesisHash does not match the hash of GenesisHeader")
	}
}

func TestTestNet3GenesisHashMatchesHeader(t *testing.T) {
	p := TestNet3Params()
	if p.GenesisHash != p.GenesisHeader.BlockHash() {
		t.Fatal("GenesisHash does not match the hash of GenesisHeader")
	}
}

func TestBlocksPerRetarget(t *testing.T) {
	p := MainNetParams()
	if got := p.BlocksPerRetarget(); got != 2016 {
		t.Fatalf("BlocksPerRetarget = %d, want 2016", got)
	}
}

func TestMainNetAndTestNet3Differ(t *testing.T) {
	main := MainNetParams()
	test := TestNet3Params()
	if main.Net == test.Net {
		t.Fatal("mainnet and testnet3 share the same wire magic")
	}
	if main.PubKeyHashAddrID == test.PubKeyHashAddrID {
		t.Fatal("mainnet and testnet3 share the same P2PKH address version byte")
	}
	if main.GenesisHash == test.GenesisHash {
		t.Fatal("mainnet and testnet3 share the same genesis hash")
	}
}

func TestTestNet3ReducedDifficultyException(t *testing.T) {
	p := TestNet3Params()
	if !p.ReduceMinDifficulty {
		t.Fatal("testnet3 params should enable the minimum-difficulty exception")
	}
	if p.MinDiffReductionTime <= 0 {
		t.Fatal("testnet3 params should set a positive MinDiffReductionTime")
	}
	m := MainNetParams()
	if m.ReduceMinDifficulty {
		t.Fatal("mainnet params should not enable the minimum-difficulty exception")
	}
}
