// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainhash

import "testing"

func TestHashStringDecodeRoundTrip(t *testing.T) {
	h := HashH([]byte("round trip me"))
	s := h.String()

	decoded, err := NewHashFromStr(s)
	if err != nil {
		t.Fatalf("NewHashFromStr: %v", err)
	}
	if !decoded.IsEqual(&h) {
		t.Fatal("decoded hash does not match the original")
	}
}

func TestHashHMatchesHashB(t *testing.T) {
	data := []byte("some data")
	h := HashH(data)
	b := HashB(data)
	if string(h[:]) != string(b) {
		t.Fatal("HashH and HashB disagree on the same input")
	}
}

func TestSetBytesRejectsWrongLength(t *testing.T) {
	var h Hash
	if err := h.SetBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("SetBytes accepted a short slice")
	}
}

func TestNewHashRejectsWrongLength(t *testing.T) {
	if _, err := NewHash(make([]byte, 10)); err == nil {
		t.Fatal("NewHash accepted a 10-byte slice")
	}
}

func TestIsEqualNilHandling(t *testing.T) {
	var a, b *Hash
	if !a.IsEqual(b) {
		t.Fatal("two nil hashes should be equal")
	}
	h := HashH([]byte("x"))
	if h.IsEqual(nil) {
		t.Fatal("non-nil hash compared equal to nil")
	}
}

func TestLessOrdersByBigEndianMagnitude(t *testing.T) {
	small := Hash{}
	big := Hash{}
	big[HashSize-1] = 1 // most-significant byte for big-endian interpretation
	if !small.Less(&big) {
		t.Fatal("all-zero hash should sort before a hash with a high byte set")
	}
	if big.Less(&small) {
		t.Fatal("Less is not antisymmetric")
	}
}

func TestDecodeRejectsOversizedString(t *testing.T) {
	oversized := make([]byte, MaxHashStringSize+2)
	for i := range oversized {
		oversized[i] = 'a'
	}
	var dst Hash
	if err := Decode(&dst, string(oversized)); err != ErrHashStrSize {
		t.Fatalf("err = %v, want ErrHashStrSize", err)
	}
}

func TestCloneBytesIsIndependentCopy(t *testing.T) {
	h := HashH([]byte("clone me"))
	clone := h.CloneBytes()
	clone[0] ^= 0xff
	if h[0] == clone[0] {
		t.Fatal("CloneBytes shares backing storage with the original hash")
	}
}
