// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/bitc-go/bitc/internal/chainhash"
	"github.com/bitc-go/bitc/internal/wire"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// TxDB persists the wallet's UTXO ledger across restarts in a goleveldb
// database directory (statedir.Dir.TxDBPath), keyed by outpoint so a
// restart doesn't need to rescan from genesis to recover known outputs
// (spec.md §6 "txdb").
type TxDB struct {
	db *leveldb.DB
}

// OpenTxDB opens (creating if necessary) the leveldb database at path.
func OpenTxDB(path string) (*TxDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &TxDB{db: db}, nil
}

// Close releases the underlying leveldb handles.
func (t *TxDB) Close() error {
	return t.db.Close()
}

func outpointKey(op wire.OutPoint) []byte {
	key := make([]byte, chainhash.HashSize+4)
	copy(key, op.Hash[:])
	binary.LittleEndian.PutUint32(key[chainhash.HashSize:], op.Index)
	return key
}

func decodeOutpointKey(key []byte) (wire.OutPoint, error) {
	if len(key) != chainhash.HashSize+4 {
		return wire.OutPoint{}, errors.New("wallet: txdb bad key length")
	}
	var op wire.OutPoint
	copy(op.Hash[:], key[:chainhash.HashSize])
	op.Index = binary.LittleEndian.Uint32(key[chainhash.HashSize:])
	return op, nil
}

// Put writes or overwrites the record for o's outpoint.
func (t *TxDB) Put(o *Output) error {
	op := wire.OutPoint{Hash: o.Txid, Index: o.Vout}
	return t.db.Put(outpointKey(op), encodeOutput(o), nil)
}

// Delete removes op's record, used once an output is pruned (spec.md §6
// never requires pruning spent outputs, so callers currently only use
// this from tests, but the data layer supports it).
func (t *TxDB) Delete(op wire.OutPoint) error {
	return t.db.Delete(outpointKey(op), nil)
}

// LoadAll returns every output persisted in the database, in undefined
// order, for a Wallet to fold into a fresh in-memory Ledger on startup.
func (t *TxDB) LoadAll() ([]*Output, error) {
	var outs []*Output
	var iter iterator.Iterator = t.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		op, err := decodeOutpointKey(iter.Key())
		if err != nil {
			return nil, err
		}
		o, err := decodeOutput(iter.Value())
		if err != nil {
			return nil, err
		}
		o.Txid, o.Vout = op.Hash, op.Index
		outs = append(outs, o)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return outs, nil
}

// encodeOutput/decodeOutput use a flat binary layout: value, height
// (int64 each), a block hash, a spent flag followed by the spending txid
// only when the flag is 1, then the variable-length pkScript trailing.
func encodeOutput(o *Output) []byte {
	var buf bytes.Buffer
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], uint64(o.Value))
	buf.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], uint64(o.Height))
	buf.Write(scratch[:])
	buf.Write(o.BlockHash[:])

	if o.SpentBy != nil {
		buf.WriteByte(1)
		buf.Write(o.SpentBy[:])
	} else {
		buf.WriteByte(0)
	}
	buf.Write(o.PkScript)
	return buf.Bytes()
}

func decodeOutput(buf []byte) (*Output, error) {
	const fixedLen = 8 + 8 + chainhash.HashSize + 1
	if len(buf) < fixedLen {
		return nil, errors.New("wallet: txdb record too short")
	}
	o := &Output{}
	o.Value = int64(binary.LittleEndian.Uint64(buf[0:8]))
	o.Height = int64(binary.LittleEndian.Uint64(buf[8:16]))
	copy(o.BlockHash[:], buf[16:16+chainhash.HashSize])
	off := 16 + chainhash.HashSize
	if buf[off] == 1 {
		var spentBy chainhash.Hash
		copy(spentBy[:], buf[off+1:off+1+chainhash.HashSize])
		o.SpentBy = &spentBy
		off += 1 + chainhash.HashSize
	} else {
		off++
	}
	o.PkScript = append([]byte{}, buf[off:]...)
	return o, nil
}
