// Hash and rehash functions for the Scatter Storage backend (§4.2.1,
// §4.2.2). Ported from the original module's dwHashFunc/dwRehashFunc:
// PJW, ADD and FLL are bit-for-bit translations of the three named
// algorithms; XXH3 and Blake2b are additional selectable algorithms
// wired from the rest of the example pack for callers who want a
// faster or better-distributed primary hash.
package recidx

import (
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// primaryHash maps key to a slot in [0, maxSlot) using the configured
// algorithm.
func primaryHash(algorithm HashAlgorithm, key []byte, maxSlot uint64) uint64 {
	switch algorithm {
	case HashADD:
		return hashADD(key, maxSlot)
	case HashFLL:
		return hashFLL(key, maxSlot)
	case HashXXH3:
		return xxh3.Hash(key) % maxSlot
	case HashBlake2b:
		sum := blake2b.Sum256(key)
		return sum64(sum[:]) % maxSlot
	default:
		return hashPJW(key, maxSlot)
	}
}

// hashPJW is Peter J. Weinberger's hash function, the spec's default
// (HF_PJW in the original): a shift-xor fold over a 32-bit accumulator,
// reduced mod maxSlot.
func hashPJW(key []byte, maxSlot uint64) uint64 {
	const (
		bits   = 32
		eighth = bits / 8
		highBits = uint32(1<<eighth-1) << (bits - eighth)
	)
	var h uint32
	for _, b := range key {
		h = (h << eighth) + uint32(b)
		if g := h & highBits; g != 0 {
			h = (h ^ (g >> (bits - 2*eighth))) &^ highBits
		}
	}
	return uint64(h) % maxSlot
}

// hashADD is the shift-and-add sum-of-chars hash (HF_ADD).
func hashADD(key []byte, maxSlot uint64) uint64 {
	if len(key) == 0 {
		return 0
	}
	h := uint64(key[0])
	for _, b := range key {
		h = ((h << 8) + uint64(b)) % maxSlot
	}
	return h
}

// hashFLL is Cichelli's First+Last+Length hash (HF_FLL). Unsuited to
// fixed-length keys where length never varies, but offered for parity
// with the original module's selectable trio.
func hashFLL(key []byte, maxSlot uint64) uint64 {
	if len(key) == 0 {
		return 0
	}
	first := uint64(key[0])
	last := uint64(key[len(key)-1])
	length := uint64(len(key))
	return ((first << 8) + last + length) % maxSlot
}

func sum64(b []byte) uint64 {
	var h uint64
	for _, c := range b {
		h = h<<8 | uint64(c)
	}
	return h
}

// rehashIncrement computes the double-hashing step size (§4.2.2): the
// primary hash of key reduced mod prime1 (the twin-prime partner of
// totalSlots), plus one so the increment is never zero.
func rehashIncrement(algorithm HashAlgorithm, key []byte, prime1 uint64) uint64 {
	return primaryHash(algorithm, key, prime1) + 1
}

// rehash advances curSlot by the double-hashing increment, wrapping mod
// maxSlot.
func rehash(curSlot, increment, maxSlot uint64) uint64 {
	return (curSlot + increment) % maxSlot
}
