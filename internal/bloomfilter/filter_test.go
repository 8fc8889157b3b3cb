// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloomfilter

import (
	"testing"

	"github.com/bitc-go/bitc/internal/chainhash"
)

func TestFilterAddMatch(t *testing.T) {
	f := NewFilter(10, 0, 0.0001)

	h := chainhash.HashH([]byte("outpoint-1"))
	if f.Matches(h[:]) {
		t.Fatal("unadded hash unexpectedly matched")
	}

	f.AddHash(&h)
	if !f.Matches(h[:]) {
		t.Fatal("added hash did not match")
	}

	other := chainhash.HashH([]byte("outpoint-2"))
	if f.Matches(other[:]) {
		t.Fatal("unrelated hash unexpectedly matched (acceptable only probabilistically, not for this fixed input)")
	}
}

func TestFilterLoadRoundTrip(t *testing.T) {
	f := NewFilter(5, 12345, 0.0001)
	h := chainhash.HashH([]byte("watched-address-script"))
	f.AddHash(&h)

	msg := f.MsgFilterLoad()
	loaded := LoadFilter(msg)

	if !loaded.Matches(h[:]) {
		t.Fatal("round-tripped filter lost a matching element")
	}
	if loaded.hashFuncs != f.hashFuncs || loaded.tweak != f.tweak {
		t.Fatal("round-tripped filter parameters changed")
	}
}

func TestFilterSizeCaps(t *testing.T) {
	f := NewFilter(1<<20, 0, 1e-9)
	if f.nBits > maxFilterSize*8 {
		t.Fatalf("filter exceeded max size: %d bits", f.nBits)
	}
	if f.hashFuncs > maxHashFuncs {
		t.Fatalf("filter exceeded max hash funcs: %d", f.hashFuncs)
	}
}
