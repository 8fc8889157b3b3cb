// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr is the address book: a persisted, scored set of
// candidate peer endpoints the peer group dials to fill out its target
// connection count (spec.md §4.3 "Peer group responsibilities").
package addrmgr

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bitc-go/bitc/internal/wire"
	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/slog"
)

var log = slog.Disabled

// SetLogger sets the package-level logger used by addrmgr.
func SetLogger(logger slog.Logger) { log = logger }

// peersMagic is the 4-byte tag at the start of peers.dat (spec.md §6).
var peersMagic = [4]byte{'P', 'E', 'E', 'R'}

// ErrBadMagic is returned by Load when peers.dat doesn't start with the
// expected magic.
var ErrBadMagic = errors.New("addrmgr: bad peers.dat magic")

// recordSize is the fixed on-disk size of one peers.dat entry: u32
// last-success, u32 attempts, 16-byte v6 address, u16 port BE, u64
// services (spec.md §6).
const recordSize = 4 + 4 + 16 + 2 + 8

// Manager is the in-memory, periodically-persisted address book.
type Manager struct {
	mu      sync.Mutex
	path    string
	addrs   map[string]*KnownAddress
	tried   *apbf.Filter
	maxSize int
}

// New returns an empty address manager that persists to path.
func New(path string, maxSize int) *Manager {
	return &Manager{
		path: path,
		addrs: make(map[string]*KnownAddress),
		// tried tracks recently-dialed endpoints with a decaying
		// membership filter so GetAddress deprioritizes them without
		// keeping an unbounded exact set (mirrors the teacher's use
		// of apbf for "recently announced inv" tracking).
		tried:   apbf.NewFilter(4096, 0.0001),
		maxSize: maxSize,
	}
}

func key(na *wire.NetAddress) string {
	return net.JoinHostPort(na.IP.String(), fmt.Sprintf("%d", na.Port))
}

// AddAddress records a candidate endpoint learned from a peer's `addr`
// message or from the address_seeder collaborator, if not already known
// and capacity allows.
func (m *Manager) AddAddress(na *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(na)
	if _, ok := m.addrs[k]; ok {
		return
	}
	if len(m.addrs) >= m.maxSize {
		m.pruneLocked()
		if len(m.addrs) >= m.maxSize {
			return
		}
	}
	m.addrs[k] = &KnownAddress{na: na}
}

// MarkAttempt records a dial attempt against an address, regardless of
// outcome.
func (m *Manager) MarkAttempt(na *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ka, ok := m.addrs[key(na)]
	if !ok {
		return
	}
	ka.attempts++
	ka.lastattempt = time.Now()
	m.tried.Add([]byte(key(na)))
}

// MarkSuccess records a successful handshake against an address.
func (m *Manager) MarkSuccess(na *wire.NetAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ka, ok := m.addrs[key(na)]
	if !ok {
		return
	}
	ka.attempts = 0
	ka.lastsuccess = time.Now()
	ka.tried = true
}

// recentlyTried reports whether an address was attempted recently enough
// that GetAddress should deprioritize it, using the APBF "age-partitioned
// Bloom filter" the teacher's container package provides for exactly this
// kind of decaying-membership check.
func (m *Manager) recentlyTried(na *wire.NetAddress) bool {
	return m.tried.Contains([]byte(key(na)))
}

// GetAddress selects a candidate to dial next, preferring addresses that
// are not known-bad and not recently tried, weighted by chance().
func (m *Manager) GetAddress() *wire.NetAddress {
	m.mu.Lock()
	defer m.mu.Unlock()

	var candidates []*KnownAddress
	for _, ka := range m.addrs {
		if ka.isBad() {
			continue
		}
		if m.recentlyTried(ka.na) {
			continue
		}
		candidates = append(candidates, ka)
	}
	if len(candidates) == 0 {
		// Fall back to any non-bad address, ignoring recency, rather
		// than starving the peer group when everything was tried
		// recently.
		for _, ka := range m.addrs {
			if !ka.isBad() {
				candidates = append(candidates, ka)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	total := 0.0
	for _, ka := range candidates {
		total += ka.chance()
	}
	if total <= 0 {
		return candidates[rand.Intn(len(candidates))].na
	}
	pick := rand.Float64() * total
	for _, ka := range candidates {
		pick -= ka.chance()
		if pick <= 0 {
			return ka.na
		}
	}
	return candidates[len(candidates)-1].na
}

// Count returns the number of known addresses.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.addrs)
}

// pruneLocked evicts the worst-scoring addresses until the book is back
// under capacity. Caller must hold m.mu.
func (m *Manager) pruneLocked() {
	type scored struct {
		k string
		c float64
	}
	var all []scored
	for k, ka := range m.addrs {
		all = append(all, scored{k, ka.chance()})
	}
	for len(m.addrs) >= m.maxSize && len(all) > 0 {
		worst := 0
		for i := range all {
			if all[i].c < all[worst].c {
				worst = i
			}
		}
		delete(m.addrs, all[worst].k)
		all = append(all[:worst], all[worst+1:]...)
	}
}

// Save persists the address book to its backing file in the peers.dat
// format of spec.md §6.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.Create(m.path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.Write(peersMagic[:]); err != nil {
		return err
	}
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.addrs)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return err
	}

	for _, ka := range m.addrs {
		if err := writeRecord(w, ka); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeRecord(w io.Writer, ka *KnownAddress) error {
	buf := make([]byte, recordSize)
	// 0 marks "never succeeded", which readRecord relies on.
	var lastSuccess uint32
	if !ka.lastsuccess.IsZero() {
		lastSuccess = uint32(ka.lastsuccess.Unix())
	}
	binary.LittleEndian.PutUint32(buf[0:4], lastSuccess)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(ka.attempts))

	ip16 := ka.na.IP.To16()
	if ip16 == nil {
		ip16 = make(net.IP, 16)
	}
	copy(buf[8:24], ip16)
	binary.BigEndian.PutUint16(buf[24:26], ka.na.Port)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(ka.na.Services))

	_, err := w.Write(buf)
	return err
}

// Load reads a previously-persisted address book from path. A missing
// file is treated as an empty book, not an error.
func Load(path string, maxSize int) (*Manager, error) {
	m := New(path, maxSize)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return m, nil
		}
		return nil, err
	}
	if magic != peersMagic {
		return nil, ErrBadMagic
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBuf[:])

	buf := make([]byte, recordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			log.Warnf("addrmgr: truncating peers.dat after %d/%d records: %v", i, count, err)
			break
		}
		ka := readRecord(buf)
		m.addrs[key(ka.na)] = ka
	}
	return m, nil
}

func readRecord(buf []byte) *KnownAddress {
	lastSuccess := time.Unix(int64(binary.LittleEndian.Uint32(buf[0:4])), 0)
	attempts := int(binary.LittleEndian.Uint32(buf[4:8]))
	ip := make(net.IP, 16)
	copy(ip, buf[8:24])
	port := binary.BigEndian.Uint16(buf[24:26])
	services := wire.ServiceFlag(binary.LittleEndian.Uint64(buf[26:34]))

	na := &wire.NetAddress{IP: ip, Port: port, Services: services, Timestamp: time.Now()}
	ka := &KnownAddress{na: na, attempts: attempts}
	if lastSuccess.Unix() != 0 {
		ka.lastsuccess = lastSuccess
		ka.tried = true
	}
	return ka
}
