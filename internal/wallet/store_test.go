// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"path/filepath"
	"testing"
)

func TestStoreSaveLoadPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.cfg")
	store := NewStore(path)

	k, err := NewRandomKey("primary")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	if err := store.Save([]*Key{k}, 0x00); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len(loaded) = %d, want 1", len(loaded))
	}
	if loaded[0].Priv == nil {
		t.Fatal("loaded plain key has no private scalar")
	}
	if string(loaded[0].Priv.Serialize()) != string(k.Priv.Serialize()) {
		t.Fatal("loaded private key does not match the saved one")
	}
}

func TestStoreSaveLoadEncrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.cfg")
	store := NewStore(path)
	store.SetPassphrase([]byte("correct horse battery staple"))

	k, err := NewRandomKey("primary")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	if err := store.Save([]*Key{k}, 0x00); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Priv == nil {
		t.Fatal("encrypted key did not round-trip with the correct passphrase")
	}
	if string(loaded[0].Priv.Serialize()) != string(k.Priv.Serialize()) {
		t.Fatal("decrypted private key does not match the saved one")
	}
}

func TestStoreLoadWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.cfg")
	store := NewStore(path)
	store.SetPassphrase([]byte("right passphrase"))

	k, err := NewRandomKey("primary")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	if err := store.Save([]*Key{k}, 0x00); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened := NewStore(path)
	reopened.SetPassphrase([]byte("wrong passphrase"))
	if _, err := reopened.Load(); err != ErrBadPassphrase {
		t.Fatalf("err = %v, want ErrBadPassphrase", err)
	}
}

func TestStoreSaveLoadWatchOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.cfg")
	store := NewStore(path)

	full, err := NewRandomKey("spendable")
	if err != nil {
		t.Fatalf("NewRandomKey: %v", err)
	}
	watchOnly := &Key{Pub: full.Pub, Label: "watch"}

	if err := store.Save([]*Key{watchOnly}, 0x00); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("len(loaded) = %d, want 1", len(loaded))
	}
	if loaded[0].Priv != nil {
		t.Fatal("loaded watch-only key unexpectedly has a private scalar")
	}
}

func TestStoreLoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.cfg"))
	keys, err := store.Load()
	if err != nil {
		t.Fatalf("Load of a missing file returned an error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("len(keys) = %d, want 0", len(keys))
	}
}
