package dedupe

import (
	"hash/fnv"
	"strings"
)

// Signature is a MinHash sketch: NumHashes minimum values, one per
// independent hash function, over the shingle set of a document.
type Signature []uint64

// shingle splits canonicalized text into overlapping k-word shingles.
func shingle(canonical string, k int) []string {
	words := strings.Fields(canonical)
	if len(words) < k {
		if len(words) == 0 {
			return nil
		}
		return []string{strings.Join(words, " ")}
	}
	out := make([]string, 0, len(words)-k+1)
	for i := 0; i+k <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+k], " "))
	}
	return out
}

// hashFamily derives numHashes independent 64-bit hash functions from a
// single FNV base hash by salting the input, avoiding a dependency on a
// universal-hashing library for what is, at this scale, a handful of
// multiply-xor passes.
func hashFamily(shingle string, numHashes int) []uint64 {
	out := make([]uint64, numHashes)
	for i := 0; i < numHashes; i++ {
		h := fnv.New64a()
		_, _ = h.Write([]byte(shingle))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		v := h.Sum64()
		// Splitmix64-style finalizer, salted per hash index, to decorrelate
		// the numHashes outputs beyond what appending the salt byte alone
		// would give a linear-ish FNV accumulator.
		v ^= v >> 33
		v *= 0xff51afd7ed558ccd ^ uint64(i)*0x9E3779B97F4A7C15
		v ^= v >> 33
		out[i] = v
	}
	return out
}

// ComputeSignature builds a MinHash signature over canonical text's
// k-word shingles using numHashes independent hash functions.
func ComputeSignature(canonical string, k, numHashes int) Signature {
	shingles := shingle(canonical, k)
	sig := make(Signature, numHashes)
	for i := range sig {
		sig[i] = ^uint64(0)
	}
	for _, s := range shingles {
		hashes := hashFamily(s, numHashes)
		for i, h := range hashes {
			if h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// EstimateJaccard returns the fraction of matching components between two
// equal-length signatures, the standard MinHash Jaccard-similarity estimator.
func EstimateJaccard(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
