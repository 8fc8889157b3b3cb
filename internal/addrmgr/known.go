// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"time"

	"github.com/bitc-go/bitc/internal/wire"
)

// KnownAddress tracks a candidate peer endpoint and the scoring data the
// address book uses to decide who is worth dialing next (spec.md §3
// "Address book entry").
type KnownAddress struct {
	na          *wire.NetAddress
	attempts    int
	lastattempt time.Time
	lastsuccess time.Time
	tried       bool
}

// NetAddress returns the underlying network address.
func (ka *KnownAddress) NetAddress() *wire.NetAddress { return ka.na }

// missingSuccessDays scales how long a never-successful address is kept:
// once it has at least 3 attempts, isBad reports it bad when its last
// attempt is more than missingSuccessDays/10 (3 days) old.
const missingSuccessDays = 30 * 24 * time.Hour

// recentFailureWindow and maxRecentAttempts bound how many back-to-back
// failures within a short window mark an address bad, distinct from a
// long history of occasional failures.
const (
	recentFailureWindow = time.Hour
	maxRecentAttempts   = 3
)

// isBad reports whether ka should be excluded from dialing: never
// succeeded after at least 3 attempts and last tried too long ago, or
// failed too many times in a short recent window. An address attempted
// within the last 10 minutes is never reported bad.
func (ka *KnownAddress) isBad() bool {
	if ka.lastattempt.After(time.Now().Add(-10 * time.Minute)) {
		return false
	}
	if ka.lastsuccess.IsZero() && ka.attempts >= 3 {
		if time.Since(ka.lastattempt) > missingSuccessDays/10 {
			return true
		}
	}
	if !ka.lastattempt.IsZero() && ka.lastsuccess.Before(ka.lastattempt) &&
		time.Since(ka.lastattempt) < recentFailureWindow && ka.attempts >= maxRecentAttempts {
		return true
	}
	return false
}

// chance returns a (0,1] relative dial-selection weight for ka: each
// attempt since the last success (up to 8) multiplies it by 0.66, and an
// attempt within the last 10 minutes multiplies it by a further 0.01. How
// recently the address last succeeded does not change the weight.
func (ka *KnownAddress) chance() float64 {
	c := 1.0
	sinceLastAttempt := time.Since(ka.lastattempt)
	if sinceLastAttempt < 10*time.Minute {
		c *= 0.01
	}
	for i := 0; i < ka.attempts && i < 8; i++ {
		c *= 0.66
	}
	return c
}
