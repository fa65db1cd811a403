// Prime selection for the SS backend's twin-prime sizing (§4.2.6).
//
// nextPrime mirrors the original module's vGetPrime: scan odd integers
// from n in the requested direction until one passes a probabilistic
// primality test with the spec's 25 witnesses. Go's standard library
// already implements Miller-Rabin plus a Baillie-PSW check via
// math/big.Int.ProbablyPrime, so that is used directly rather than
// hand-rolling modular exponentiation and a witness loop.
package recidx

import "math/big"

// fermatWitnesses is the witness count spec §4.2.6/§8 P10 calls for.
const fermatWitnesses = 25

// isProbablePrime reports whether n passes fermatWitnesses rounds of
// Miller-Rabin (via math/big, which also folds in a Baillie-PSW check).
func isProbablePrime(n uint64) bool {
	if n < 2 {
		return false
	}
	return new(big.Int).SetUint64(n).ProbablyPrime(fermatWitnesses)
}

// direction controls which way nextPrime searches from n.
type direction int

const (
	upward direction = iota
	downward
)

// nextPrime returns the nearest prime to n in the given direction
// (inclusive of n itself). n must be >= 2.
func nextPrime(n uint64, dir direction) uint64 {
	if n < 2 {
		n = 2
	}
	if isProbablePrime(n) {
		return n
	}

	// Only even number that is prime is 2; start the odd search
	// adjacent to n in the requested direction.
	candidate := n
	if candidate%2 == 0 {
		if dir == upward {
			candidate++
		} else if candidate > 2 {
			candidate--
		} else {
			return 2
		}
	}

	for {
		if isProbablePrime(candidate) {
			return candidate
		}
		if dir == upward {
			candidate += 2
		} else {
			if candidate <= 3 {
				return 2
			}
			candidate -= 2
		}
	}
}

// twinPrime returns the smallest totalSlots >= floor such that totalSlots
// is prime and totalSlots-2 is also prime (§3.4, §4.2.6). If floor < 5,
// the pair (5, 3) is returned — the smallest twin-prime pair — per
// spec §9's decision for a zero/too-small initialCapacity request.
func twinPrime(floor uint64) uint64 {
	if floor < 5 {
		return 5
	}

	candidate := nextPrime(floor, upward)
	for {
		if candidate >= 2 && isProbablePrime(candidate-2) {
			return candidate
		}
		candidate = nextPrime(candidate+1, upward)
	}
}
