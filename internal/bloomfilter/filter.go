// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloomfilter implements the Bloom filter descriptor of spec.md
// §3/§4.3 and the partial-Merkle-tree codec a merkleblock reply is
// verified against.
package bloomfilter

import (
	"math"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/jrick/bitset"
)

// ln2Squared and ln2 are used to size a filter for a target element count
// and false-positive rate, following BIP37's formulas.
const (
	ln2Squared = 0.4804530139182014246671025263266649717305529515945455
	ln2        = 0.6931471805599453094172321214581765680755001343602552
)

// maxFilterSize mirrors wire.MaxFilterLoadFilterSize; filters never exceed
// it regardless of the requested element count.
const maxFilterSize = wire.MaxFilterLoadFilterSize

// maxHashFuncs mirrors wire.MaxFilterLoadHashFuncs.
const maxHashFuncs = wire.MaxFilterLoadHashFuncs

// Filter is the probabilistic set THE CORE announces to peers via
// filterload so they can relay only wallet-relevant transactions and
// merkleblocks (spec.md §3 "Bloom filter descriptor").
type Filter struct {
	bits      bitset.Bitset
	nBits     uint32
	hashFuncs uint32
	tweak     uint32
}

// NewFilter sizes a filter for n elements at false-positive rate fp, with
// a random tweak to avoid cross-peer filter correlation (spec.md §4.3:
// "FPR 1e-4").
func NewFilter(n uint32, tweak uint32, fp float64) *Filter {
	bitsCount := uint32(math.Min(float64(-1*int64(n)*int64(math.Log(fp)))/ln2Squared,
		maxFilterSize*8))
	// Round down to whole bytes: the filter travels as a byte array in
	// filterload, and LoadFilter sizes its bit array as len(bytes)*8.
	bitsCount -= bitsCount % 8
	if bitsCount == 0 {
		bitsCount = 8
	}
	hashFuncs := uint32(math.Min(
		float64(bitsCount)/float64(n)*ln2,
		maxHashFuncs))
	if hashFuncs == 0 {
		hashFuncs = 1
	}

	return &Filter{
		bits:      bitset.NewBitset(bitsCount),
		nBits:     bitsCount,
		hashFuncs: hashFuncs,
		tweak:     tweak,
	}
}

// LoadFilter reconstructs a Filter from a received filterload message.
func LoadFilter(msg *wire.MsgFilterLoad) *Filter {
	nBits := uint32(len(msg.Filter)) * 8
	bs := bitset.NewBitset(nBits)
	for i, b := range msg.Filter {
		for bit := uint32(0); bit < 8; bit++ {
			if b&(1<<bit) != 0 {
				bs.Set(uint32(i)*8 + bit)
			}
		}
	}
	return &Filter{bits: bs, nBits: nBits, hashFuncs: msg.HashFuncs, tweak: msg.Tweak}
}

// murmurHash3 is BIP37's seeded MurmurHash3 (32-bit), used to map an
// element to bitCount bit positions.
func murmurHash3(seed uint32, data []byte) uint32 {
	const c1, c2 = 0xcc9e2d51, 0x1b873593
	h := seed
	var i int
	for ; i+4 <= len(data); i += 4 {
		k := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
		h = (h << 13) | (h >> 19)
		h = h*5 + 0xe6546b64
	}
	var k uint32
	rem := data[i:]
	switch len(rem) {
	case 3:
		k ^= uint32(rem[2]) << 16
		fallthrough
	case 2:
		k ^= uint32(rem[1]) << 8
		fallthrough
	case 1:
		k ^= uint32(rem[0])
		k *= c1
		k = (k << 15) | (k >> 17)
		k *= c2
		h ^= k
	}
	h ^= uint32(len(data))
	h ^= h >> 16
	h *= 0x85ebca6b
	h ^= h >> 13
	h *= 0xc2b2ae35
	h ^= h >> 16
	return h
}

func (f *Filter) hash(hashNum uint32, data []byte) uint32 {
	seed := hashNum*0xfba4c795 + f.tweak
	return murmurHash3(seed, data) % f.nBits
}

// Add inserts data into the filter.
func (f *Filter) Add(data []byte) {
	for i := uint32(0); i < f.hashFuncs; i++ {
		f.bits.Set(f.hash(i, data))
	}
}

// AddHash inserts a chainhash.Hash (outpoint or txid) into the filter.
func (f *Filter) AddHash(hash *chainhash.Hash) {
	f.Add(hash[:])
}

// Matches reports whether data may be a filter member (false positives are
// expected at the configured rate; false negatives never occur).
func (f *Filter) Matches(data []byte) bool {
	for i := uint32(0); i < f.hashFuncs; i++ {
		if !f.bits.Get(f.hash(i, data)) {
			return false
		}
	}
	return true
}

// MsgFilterLoad serializes the filter into a filterload message.
func (f *Filter) MsgFilterLoad() *wire.MsgFilterLoad {
	nBytes := (f.nBits + 7) / 8
	raw := make([]byte, nBytes)
	for i := uint32(0); i < f.nBits; i++ {
		if f.bits.Get(i) {
			raw[i/8] |= 1 << uint(i%8)
		}
	}
	return &wire.MsgFilterLoad{
		Filter:    raw,
		HashFuncs: f.hashFuncs,
		Tweak:     f.tweak,
		Flags:     wire.BloomUpdateNone,
	}
}
