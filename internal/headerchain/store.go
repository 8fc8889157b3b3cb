// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/bitc-go/bitc/internal/wire"
)

var littleEndian = binary.LittleEndian

// recordSize is the fixed on-disk size of a headers.dat record: an
// 80-byte header, a 4-byte little-endian height, and a 32-byte
// little-endian cumulative work value (spec.md §6).
const recordSize = wire.BlockHeaderSize + 4 + 32

// ErrStoreCorrupt is returned when a record fails to revalidate against
// its predecessor and the store could not be repaired by truncation.
var ErrStoreCorrupt = errors.New("headerchain: store corrupt beyond recovery")

// store is the append-only headers.dat file. It never deletes records;
// branches that lose a reorg stay on disk, only the in-memory index's
// "is this the best chain" bit changes.
type store struct {
	f *os.File
}

func openStore(path string) (*store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	return &store{f: f}, nil
}

func (s *store) close() error {
	return s.f.Close()
}

// record is the decoded form of one headers.dat entry.
type record struct {
	Header wire.BlockHeader
	Height uint32
	Work   *big.Int
}

func encodeRecord(rec record) []byte {
	buf := make([]byte, 0, recordSize)
	var hdrBuf bytes.Buffer
	_ = rec.Header.Serialize(&hdrBuf)
	buf = append(buf, hdrBuf.Bytes()...)

	var heightBytes [4]byte
	littleEndian.PutUint32(heightBytes[:], rec.Height)
	buf = append(buf, heightBytes[:]...)

	workBytes := make([]byte, 32)
	rec.Work.FillBytes(workBytes) // big-endian within the 32-byte field
	reverse32(workBytes)          // store little-endian, like the rest of the record
	buf = append(buf, workBytes...)
	return buf
}

func decodeRecord(buf []byte) (record, error) {
	if len(buf) != recordSize {
		return record{}, fmt.Errorf("headerchain: bad record size %d", len(buf))
	}
	var rec record
	r := bytes.NewReader(buf[:wire.BlockHeaderSize])
	if err := rec.Header.Deserialize(r); err != nil {
		return record{}, err
	}
	rec.Height = littleEndian.Uint32(buf[wire.BlockHeaderSize : wire.BlockHeaderSize+4])

	workBytes := make([]byte, 32)
	copy(workBytes, buf[wire.BlockHeaderSize+4:])
	reverse32(workBytes)
	rec.Work = new(big.Int).SetBytes(workBytes)
	return rec, nil
}

func reverse32(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// truncateAt drops every record from n onward, used when reload-time
// revalidation finds the tail no longer agrees with its predecessor.
func (s *store) truncateAt(n int64) error {
	return s.f.Truncate(n * recordSize)
}

// append writes rec to the end of the store and fsyncs it.
func (s *store) append(rec record) error {
	buf := encodeRecord(rec)
	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := s.f.Write(buf); err != nil {
		return err
	}
	return s.f.Sync()
}

// loadAll reads every record from the store in order. A corrupt tail
// (an incomplete final record, or one whose size isn't a multiple of
// recordSize) is truncated to the last complete record rather than
// treated as fatal, per spec.md §7 kind 3.
func (s *store) loadAll() ([]record, error) {
	info, err := s.f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	validSize := (size / recordSize) * recordSize
	if validSize != size {
		if err := s.f.Truncate(validSize); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
	}

	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	count := validSize / recordSize
	records := make([]record, 0, count)
	buf := make([]byte, recordSize)
	for i := int64(0); i < count; i++ {
		if _, err := io.ReadFull(s.f, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
		}
		rec, err := decodeRecord(buf)
		if err != nil {
			// Truncate at the last good record and stop; the caller
			// re-requests the remainder from peers.
			goodSize := i * recordSize
			if terr := s.f.Truncate(goodSize); terr != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreCorrupt, terr)
			}
			break
		}
		records = append(records, rec)
	}
	return records, nil
}
