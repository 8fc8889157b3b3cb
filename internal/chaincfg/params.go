// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the network parameters THE CORE needs to
// bootstrap and validate a chain: the genesis header, wire magic, default
// port, address version byte, and difficulty-retarget constants for
// mainnet and testnet3 (spec.md §4.1, §6).
package chaincfg

import (
	"math/big"
	"time"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
)

var bigOne = big.NewInt(1)

// Params groups the constants that distinguish one Bitcoin-style network
// from another.
type Params struct {
	Name        string
	Net         wire.BitcoinNet
	DefaultPort string

	GenesisHeader wire.BlockHeader
	GenesisHash   chainhash.Hash

	// PowLimit is the highest proof-of-work target value (lowest
	// difficulty) a block may have.
	PowLimit     *big.Int
	PowLimitBits uint32

	// Retarget parameters for the every-2016-block difficulty rule of
	// spec.md §4.1.
	TargetTimespan          time.Duration
	TargetTimePerBlock      time.Duration
	RetargetAdjustmentFactor int64

	// ReduceMinDifficulty enables testnet3's "20 minutes without a block"
	// minimum-difficulty exception; see DESIGN.md for how the source's
	// implicit bit-comparison was made an explicit predicate here.
	ReduceMinDifficulty  bool
	MinDiffReductionTime time.Duration

	// PubKeyHashAddrID is the Base58Check version byte for a P2PKH
	// address on this network.
	PubKeyHashAddrID byte

	// DNSSeeds are hostnames external address_seeder collaborators may
	// resolve to discover initial peers; THE CORE treats them as opaque
	// strings.
	DNSSeeds []string
}

// BlocksPerRetarget returns the number of blocks between difficulty
// retargets, derived from the target timespan and per-block spacing.
func (p *Params) BlocksPerRetarget() int64 {
	return int64(p.TargetTimespan / p.TargetTimePerBlock)
}

func hexHash(s string) chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic(err)
	}
	return *h
}

// MainNetParams returns the network parameters for Bitcoin mainnet.
func MainNetParams() *Params {
	// mainPowLimit is 2^224 - 1, the lowest-difficulty target mainnet
	// permits.
	mainPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	genesis := wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: hexHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Timestamp:  1231006505,
		Bits:       0x1d00ffff,
		Nonce:      2083236893,
	}

	return &Params{
		Name:        "mainnet",
		Net:         wire.MainNet,
		DefaultPort: "8333",

		GenesisHeader: genesis,
		GenesisHash:   genesis.BlockHash(),

		PowLimit:     mainPowLimit,
		PowLimitBits: 0x1d00ffff,

		TargetTimespan:           time.Hour * 24 * 14,
		TargetTimePerBlock:       time.Minute * 10,
		RetargetAdjustmentFactor: 4,

		ReduceMinDifficulty:  false,
		MinDiffReductionTime: 0,

		PubKeyHashAddrID: 0x00,

		DNSSeeds: []string{
			"seed.bitcoin.sipa.be",
			"dnsseed.bluematt.me",
			"dnsseed.bitcoin.dashjr.org",
			"seed.bitcoinstats.com",
		},
	}
}

// TestNet3Params returns the network parameters for Bitcoin testnet3.
func TestNet3Params() *Params {
	testPowLimit := new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)

	genesis := wire.BlockHeader{
		Version:    1,
		PrevBlock:  chainhash.Hash{},
		MerkleRoot: hexHash("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"),
		Timestamp:  1296688602,
		Bits:       0x1d00ffff,
		Nonce:      414098458,
	}

	return &Params{
		Name:        "testnet3",
		Net:         wire.TestNet3,
		DefaultPort: "18333",

		GenesisHeader: genesis,
		GenesisHash:   genesis.BlockHash(),

		PowLimit:     testPowLimit,
		PowLimitBits: 0x1d00ffff,

		TargetTimespan:           time.Hour * 24 * 14,
		TargetTimePerBlock:       time.Minute * 10,
		RetargetAdjustmentFactor: 4,

		// The 20-minute minimum-difficulty exception of spec.md §9: if
		// more than twice the target spacing elapses without a block,
		// the next block may be mined at minimum difficulty.
		ReduceMinDifficulty:  true,
		MinDiffReductionTime: time.Minute * 20,

		PubKeyHashAddrID: 0x6f,

		DNSSeeds: []string{
			"testnet-seed.bitcoin.jonasschnelli.ch",
			"seed.tbtc.petertodd.org",
		},
	}
}
