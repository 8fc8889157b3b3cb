// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements a single Bitcoin peer connection's protocol
// state machine (spec.md §4.3). Each Peer owns exactly one net.Conn and
// reports everything it does back to its owner (the peer group) via the
// reactor's event queue; it never touches chain or wallet state itself.
package peer

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitc-go/bitc/internal/wire"
	"github.com/decred/slog"
)

var log = slog.Disabled

// SetLogger sets the package-level logger used by peer.
func SetLogger(logger slog.Logger) { log = logger }

// State is one of the seven states of spec.md §4.3's peer state machine.
type State int

const (
	StateInit State = iota
	StateConnecting
	StateHandshakeSent
	StateHandshakeAck
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateHandshakeSent:
		return "HANDSHAKE_SENT"
	case StateHandshakeAck:
		return "HANDSHAKE_ACK"
	case StateReady:
		return "READY"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// HandshakeTimeout and PingInterval/PingTimeout are the fixed timeouts of
// spec.md §5.
const (
	HandshakeTimeout = 30 * time.Second
	PingInterval     = 90 * time.Second
	PingTimeout      = 90 * time.Second
)

// Misbehavior point values and the ban threshold (spec.md §4.3).
const (
	ScoreInvalidHeader   = 20
	ScoreBadChecksum     = 20
	ScoreOversizeMessage = 100
	ScoreStateViolation  = 50
	ScoreMerkleMismatch  = 20
	BanThreshold         = 100
	BanDuration          = 24 * time.Hour
)

var (
	ErrBanned        = errors.New("peer: banned")
	ErrWrongState    = errors.New("peer: message received in wrong state")
	ErrHandshakeTime = errors.New("peer: handshake timed out")
)

// Events routes a peer's lifecycle and message arrivals back to its
// owner. Callbacks triggered by an incoming message run wherever handle
// runs: on the goroutine cfg.PostToReactor dispatches to, or on the
// ReadLoop goroutine when PostToReactor is nil. Callbacks triggered by
// Score or Disconnect run on the goroutine that called them, which is
// ReadLoop's own on a read error.
type Events struct {
	OnStateChange func(p *Peer, from, to State)
	OnMessage     func(p *Peer, msg wire.Message)
	OnMisbehavior func(p *Peer, points, total int, reason string)
	OnDisconnect  func(p *Peer)
}

// Config bundles the fixed parameters a Peer is constructed with.
type Config struct {
	Net           wire.BitcoinNet
	UserAgent     string
	ProtocolVer   uint32
	Services      wire.ServiceFlag
	BestHeight    int32
	Events        Events
	PostToReactor func(func())
}

// Peer is one connection's protocol state machine.
type Peer struct {
	conn   net.Conn
	addr   string
	cfg    Config
	writer *bufio.Writer

	mu            sync.Mutex
	state         State
	score         int
	lastPingNonce uint64
	lastPingSent  time.Time
	handshakeDone bool

	negotiatedVer uint32
	theirServices wire.ServiceFlag
	theirHeight   int32
	userAgent     string

	inflight int32

	writeMu sync.Mutex
}

// New wraps an already-established TCP connection as a Peer in state
// INIT, ready to begin the handshake via Start.
func New(conn net.Conn, cfg Config) *Peer {
	return &Peer{
		conn:   conn,
		addr:   conn.RemoteAddr().String(),
		cfg:    cfg,
		writer: bufio.NewWriter(conn),
		state:  StateInit,
	}
}

// Addr returns the peer's remote address string.
func (p *Peer) Addr() string { return p.addr }

// State returns the peer's current protocol state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Inflight returns the number of outstanding getdata requests, used by
// the peer group to enforce the per-peer inflight cap (spec.md §4.3:
// "round-robin with a per-peer inflight cap (16)").
func (p *Peer) Inflight() int32 { return atomic.LoadInt32(&p.inflight) }

// IncInflight and DecInflight track outstanding getdata requests.
func (p *Peer) IncInflight() { atomic.AddInt32(&p.inflight, 1) }
func (p *Peer) DecInflight() {
	if atomic.AddInt32(&p.inflight, -1) < 0 {
		atomic.StoreInt32(&p.inflight, 0)
	}
}

func (p *Peer) setState(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	if from != to && p.cfg.Events.OnStateChange != nil {
		p.cfg.Events.OnStateChange(p, from, to)
	}
}

// Score adds points to the peer's misbehavior score, disconnecting and
// requesting a ban if the threshold is crossed (spec.md §4.3).
func (p *Peer) Score(points int, reason string) {
	p.mu.Lock()
	p.score += points
	total := p.score
	p.mu.Unlock()

	if p.cfg.Events.OnMisbehavior != nil {
		p.cfg.Events.OnMisbehavior(p, points, total, reason)
	}
	if total >= BanThreshold {
		log.Warnf("peer %s: misbehavior score %d >= %d, disconnecting: %s",
			p.addr, total, BanThreshold, reason)
		p.Disconnect()
	}
}

// Start begins the handshake: send `version`, transition to
// HANDSHAKE_SENT, and arm the handshake timer via scheduleTimeout
// (supplied by the caller, normally the reactor).
func (p *Peer) Start(scheduleTimeout func(d time.Duration, fn func())) error {
	p.setState(StateConnecting)

	ver := &wire.MsgVersion{
		ProtocolVersion: int32(p.cfg.ProtocolVer),
		Services:        p.cfg.Services,
		Timestamp:       time.Now().Unix(),
		Nonce:           randomNonce(),
		UserAgent:       p.cfg.UserAgent,
		LastBlock:       p.cfg.BestHeight,
	}
	if err := p.Send(ver); err != nil {
		return err
	}
	p.setState(StateHandshakeSent)

	if scheduleTimeout != nil {
		scheduleTimeout(HandshakeTimeout, func() {
			if p.State() != StateReady {
				log.Warnf("peer %s: %v", p.addr, ErrHandshakeTime)
				p.Disconnect()
			}
		})
	}
	return nil
}

func randomNonce() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// Send serializes and writes msg to the connection.
func (p *Peer) Send(msg wire.Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := wire.WriteMessageN(p.writer, msg, p.cfg.ProtocolVer, p.cfg.Net)
	if err != nil {
		return err
	}
	return p.writer.Flush()
}

// ReadLoop blocks reading and dispatching messages until the connection
// closes or a protocol violation disconnects the peer. It is meant to
// run on its own goroutine (the only per-peer goroutine besides the
// reactor callbacks), posting every dispatch onto the reactor via
// cfg.PostToReactor so peer state mutation happens on the single owning
// goroutine as spec.md §5 requires.
func (p *Peer) ReadLoop() {
	r := bufio.NewReader(p.conn)
	for {
		_, msg, _, err := wire.ReadMessageN(r, p.cfg.ProtocolVer, p.cfg.Net)
		if errors.Is(err, wire.ErrUnknownCommand) {
			// Logged and discarded, not fatal: ReadMessageN has already
			// consumed the whole frame, so the stream stays in sync.
			log.Debugf("peer %s: discarding message: %v", p.addr, err)
			continue
		}
		if err != nil {
			if p.State() != StateClosing && p.State() != StateClosed {
				log.Debugf("peer %s: read error: %v", p.addr, err)
				if points, reason, ok := classifyReadError(err); ok {
					p.Score(points, reason)
				}
			}
			p.Disconnect()
			return
		}
		if p.State() == StateClosing || p.State() == StateClosed {
			// Draining: inbound data arriving during CLOSING is
			// dropped (spec.md §5).
			continue
		}
		post := p.cfg.PostToReactor
		if post == nil {
			p.handle(msg)
		} else {
			post(func() { p.handle(msg) })
		}
	}
}

// classifyReadError maps a wire-level framing error to its misbehavior
// score, distinguishing an oversize payload from bad magic/checksum/
// command framing (spec.md §4.3). Plain I/O errors (EOF, reset
// connections) are not scored.
func classifyReadError(err error) (points int, reason string, ok bool) {
	var merr *wire.MessageError
	if !errors.As(err, &merr) {
		return 0, "", false
	}
	if strings.Contains(merr.Description, "too large") {
		return ScoreOversizeMessage, "oversize message", true
	}
	return ScoreBadChecksum, "bad checksum or framing", true
}

// handle applies one incoming message's effect on the state machine and
// forwards it to the owner via Events.OnMessage. Runs on the reactor
// goroutine.
func (p *Peer) handle(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgVersion:
		if p.State() != StateHandshakeSent && p.State() != StateConnecting {
			p.Score(ScoreStateViolation, "unexpected version")
			return
		}
		p.mu.Lock()
		p.negotiatedVer = uint32(m.ProtocolVersion)
		p.theirServices = m.Services
		p.theirHeight = m.LastBlock
		p.userAgent = m.UserAgent
		p.mu.Unlock()
		p.setState(StateHandshakeAck)
		if err := p.Send(&wire.MsgVerAck{}); err != nil {
			p.Disconnect()
			return
		}
	case *wire.MsgVerAck:
		if p.State() != StateHandshakeAck && p.State() != StateHandshakeSent {
			p.Score(ScoreStateViolation, "unexpected verack")
			return
		}
		p.setState(StateReady)
	case *wire.MsgPing:
		_ = p.Send(&wire.MsgPong{Nonce: m.Nonce})
	case *wire.MsgPong:
		p.mu.Lock()
		matched := m.Nonce == p.lastPingNonce
		p.mu.Unlock()
		if !matched {
			log.Debugf("peer %s: pong nonce mismatch", p.addr)
		}
	}

	if p.cfg.Events.OnMessage != nil {
		p.cfg.Events.OnMessage(p, msg)
	}
}

// SendPing issues a ping with a fresh random nonce, recording it so a
// matching Pong can be checked against it. The caller (peer group) is
// responsible for scheduling the PingTimeout disconnect.
func (p *Peer) SendPing() error {
	nonce := randomNonce()
	p.mu.Lock()
	p.lastPingNonce = nonce
	p.lastPingSent = time.Now()
	p.mu.Unlock()
	return p.Send(&wire.MsgPing{Nonce: nonce})
}

// LastPingSent returns when the most recent ping was sent, the zero
// value if none has been sent yet.
func (p *Peer) LastPingSent() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPingSent
}

// NegotiatedInfo returns the handshake-negotiated protocol version,
// services, advertised height, and user agent.
func (p *Peer) NegotiatedInfo() (ver uint32, services wire.ServiceFlag, height int32, ua string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.negotiatedVer, p.theirServices, p.theirHeight, p.userAgent
}

// Disconnect transitions the peer to CLOSING then CLOSED, closing the
// underlying connection. Idempotent.
func (p *Peer) Disconnect() {
	p.mu.Lock()
	if p.state == StateClosing || p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	from := p.state
	p.state = StateClosing
	p.mu.Unlock()
	if p.cfg.Events.OnStateChange != nil {
		p.cfg.Events.OnStateChange(p, from, StateClosing)
	}

	_ = p.conn.Close()

	p.mu.Lock()
	p.state = StateClosed
	p.mu.Unlock()
	if p.cfg.Events.OnStateChange != nil {
		p.cfg.Events.OnStateChange(p, StateClosing, StateClosed)
	}
	if p.cfg.Events.OnDisconnect != nil {
		p.cfg.Events.OnDisconnect(p)
	}
}
