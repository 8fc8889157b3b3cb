// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package headerchain

import (
	"math/big"
	"time"
)

var (
	bigOne  = big.NewInt(1)
	bigZero = big.NewInt(0)

	// oneLsh256 is 1 shifted left 256 bits, used to compute work from a
	// target (spec.md §4.1: cumulative-work += 2^256 / (target+1)).
	oneLsh256 = new(big.Int).Lsh(bigOne, 256)
)

// CompactToBig converts a compact "bits" representation to a big.Int
// target, using the same mantissa/exponent encoding Bitcoin's consensus
// rules use.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target to the compact "bits"
// representation used on the wire.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork returns the amount of work represented by a block with the
// given difficulty bits: 2^256 / (target+1), matching spec.md §4.1.
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}

// HashToBig reinterprets a hash, which is stored as a little-endian byte
// array, as a big-endian big.Int for comparison against a target.
func HashToBig(hash [32]byte) *big.Int {
	buf := make([]byte, len(hash))
	for i := 0; i < len(hash); i++ {
		buf[i] = hash[len(hash)-1-i]
	}
	return new(big.Int).SetBytes(buf)
}

// checkProofOfWork reports whether hash satisfies the target implied by
// bits (spec.md §4.1 step 2 and the "hash(header) <= target(bits)"
// invariant of §8).
func checkProofOfWork(hash [32]byte, bits uint32, powLimit *big.Int) bool {
	target := CompactToBig(bits)
	if target.Sign() <= 0 || target.Cmp(powLimit) > 0 {
		return false
	}
	return HashToBig(hash).Cmp(target) <= 0
}

// findPrevNonMinDifficultyNode walks backward from node, skipping blocks
// that used the testnet3 minimum-difficulty exception, to find the last
// "real" difficulty value to resume from once the exception lapses.
func (c *Chain) findPrevNonMinDifficultyNode(node *blockNode, blocksPerRetarget int64) uint32 {
	iter := node
	for iter != nil && iter.height%blocksPerRetarget != 0 &&
		iter.bits == c.params.PowLimitBits {
		iter = iter.parent
	}
	if iter == nil {
		return c.params.PowLimitBits
	}
	return iter.bits
}

// calcNextRequiredDifficulty implements the retarget rule of spec.md §4.1:
// difficulty changes only every 2016 blocks (BlocksPerRetarget), clamped
// to RetargetAdjustmentFactor in either direction, plus testnet3's
// explicit 20-minute minimum-difficulty predicate (§9 open question,
// resolved here rather than inherited as an implicit bit comparison).
func (c *Chain) calcNextRequiredDifficulty(prev *blockNode, newBlockTime time.Time) uint32 {
	if prev == nil {
		return c.params.PowLimitBits
	}

	blocksPerRetarget := c.params.BlocksPerRetarget()
	nextHeight := prev.height + 1

	if nextHeight%blocksPerRetarget != 0 {
		if c.params.ReduceMinDifficulty {
			allowMinTime := prev.timestamp.Add(2 * c.params.TargetTimePerBlock)
			if newBlockTime.After(allowMinTime) {
				return c.params.PowLimitBits
			}
			return c.findPrevNonMinDifficultyNode(prev, blocksPerRetarget)
		}
		return prev.bits
	}

	// Walk back to the first block of the retarget window.
	firstNode := prev
	for i := int64(0); i < blocksPerRetarget-1 && firstNode.parent != nil; i++ {
		firstNode = firstNode.parent
	}

	actualTimespan := prev.timestamp.Sub(firstNode.timestamp)
	adjustedTimespan := actualTimespan
	minTimespan := c.params.TargetTimespan / time.Duration(c.params.RetargetAdjustmentFactor)
	maxTimespan := c.params.TargetTimespan * time.Duration(c.params.RetargetAdjustmentFactor)
	switch {
	case actualTimespan < minTimespan:
		adjustedTimespan = minTimespan
	case actualTimespan > maxTimespan:
		adjustedTimespan = maxTimespan
	}

	oldTarget := CompactToBig(prev.bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(adjustedTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(c.params.TargetTimespan)))
	if newTarget.Cmp(c.params.PowLimit) > 0 {
		newTarget.Set(c.params.PowLimit)
	}
	return BigToCompact(newTarget)
}
