// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package socksdialer wraps decred/go-socks to provide the optional
// SOCKS5 outbound tunnel spec.md §6 lists among the interfaces THE CORE
// consumes ("socks5_dialer(host, port)"). THE CORE only ever needs a
// plain net.Conn back, so this package adapts go-socks's proxy type to
// the standard dialer shape the peer package expects.
package socksdialer

import (
	"net"
	"time"

	"github.com/decred/go-socks/socks"
)

// Dialer dials TCP connections through a SOCKS5 proxy.
type Dialer struct {
	proxy *socks.Proxy
}

// New returns a Dialer that tunnels through the SOCKS5 proxy at addr
// (host:port), with optional username/password authentication.
func New(addr, username, password string) *Dialer {
	return &Dialer{proxy: &socks.Proxy{Addr: addr, Username: username, Password: password}}
}

// Dial opens a TCP connection to hostPort via the proxy. It applies no
// timeout of its own; see DialTimeout.
func (d *Dialer) Dial(network, hostPort string) (net.Conn, error) {
	return d.proxy.Dial(network, hostPort)
}

// DialTimeout is a convenience wrapper matching net.DialTimeout's shape.
// On timeout it returns an error while the proxied dial keeps running in
// the background.
func (d *Dialer) DialTimeout(network, hostPort string, timeout time.Duration) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := d.proxy.Dial(network, hostPort)
		ch <- result{c, err}
	}()
	select {
	case res := <-ch:
		return res.conn, res.err
	case <-time.After(timeout):
		return nil, errTimeout{}
	}
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "socksdialer: dial timed out" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
