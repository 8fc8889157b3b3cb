// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !windows

package statedir

import "testing"

func TestLockRejectsSecondHolder(t *testing.T) {
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	unlock, err := d.Lock()
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}

	if _, err := d.Lock(); err == nil {
		t.Fatal("second Lock on an already-locked directory succeeded, want error")
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	unlock2, err := d.Lock()
	if err != nil {
		t.Fatalf("Lock after unlock: %v", err)
	}
	if err := unlock2(); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
}
