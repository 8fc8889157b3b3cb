// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package statedir manages THE CORE's on-disk state directory: the
// headers.dat / peers.dat / txdb / wallet.cfg / main.cfg layout of
// spec.md §6, inherited from the original C client's ~/.bitc convention
// (see original_source/src/main.c).
package statedir

import (
	"os"
	"path/filepath"
)

// Dir is an opened, created-if-needed state directory.
type Dir struct {
	path string
}

// defaultDirName is the original client's directory name; spec.md keeps
// it unchanged in meaning (a single per-user state directory), so the
// name is preserved verbatim for config-file compatibility with the
// original client's documented layout.
const defaultDirName = ".bitc"

// Default returns the state directory at $HOME/.bitc, creating the
// directory at 0700 if necessary. Files inside it are created by the
// packages that own them, not here.
func Default() (*Dir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(home, defaultDirName))
}

// Open opens (creating if necessary) the state directory at path.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}
	return &Dir{path: path}, nil
}

// Path returns the state directory's root path.
func (d *Dir) Path() string { return d.path }

// HeadersPath returns the path of the append-only header-chain store.
func (d *Dir) HeadersPath() string { return filepath.Join(d.path, "headers.dat") }

// PeersPath returns the path of the persisted peer address book.
func (d *Dir) PeersPath() string { return filepath.Join(d.path, "peers.dat") }

// TxDBPath returns the path of the wallet's transaction/UTXO database
// directory (a goleveldb database directory, not a single file).
func (d *Dir) TxDBPath() string { return filepath.Join(d.path, "txdb") }

// WalletPath returns the path of the encrypted wallet key file.
func (d *Dir) WalletPath() string { return filepath.Join(d.path, "wallet.cfg") }

// MainConfigPath returns the default path of the main configuration file.
func (d *Dir) MainConfigPath() string { return filepath.Join(d.path, "main.cfg") }

// ContactsPath and TxLabelsPath round out the original layout; THE CORE
// itself never reads or writes them (they're used only by the original
// client's CLI contact-book / label features, which are out of scope per
// spec.md's Non-goals), but the paths are kept so a future contact/label
// feature would slot into the same directory layout rather than invent a
// new one.
func (d *Dir) ContactsPath() string { return filepath.Join(d.path, "contacts.cfg") }
func (d *Dir) TxLabelsPath() string { return filepath.Join(d.path, "tx-labels.cfg") }
