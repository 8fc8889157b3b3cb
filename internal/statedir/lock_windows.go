// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build windows

package statedir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock acquires the state directory's lockfile using an exclusive
// create, the portable fallback for platforms without flock (spec.md
// §6). See lock_unix.go for the advisory-lock version used elsewhere.
func (d *Dir) Lock() (unlock func() error, err error) {
	path := filepath.Join(d.path, "lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("statedir: state directory %s is locked by another process", d.path)
		}
		return nil, err
	}
	return func() error {
		f.Close()
		return os.Remove(path)
	}, nil
}
