package minhash

import (
	"hash/fnv"

	"github.com/media-luna/sonora/utils/apierrors"
)

// Signature is a K-integer MinHash sketch of one fingerprint.
type Signature []int

// ComputeSignature computes the MinHash signature of a fingerprint bit
// vector: for each permutation row p, sig[p] is the smallest scan
// position i such that bits[P[p][i]] == 1, with F (len(bits)) as the
// sentinel when no bit is set along that permutation.
func ComputeSignature(bits []byte, table *Table) Signature {
	F := len(bits)
	sig := make(Signature, table.K)

	for p := 0; p < table.K; p++ {
		perm := table.Row(p)
		sig[p] = F
		for i := 0; i < F; i++ {
			if bits[perm[i]] == 1 {
				sig[p] = i
				break
			}
		}
	}
	return sig
}

// GroupToBands partitions a signature of length K = L*B into L band
// keys. Each band concatenates B consecutive signature components
// and mixes them into a 64-bit key with FNV-1a over their byte image, the
// same mixing scheme used by the LSH band indexes elsewhere in the
// ecosystem (plagiarism-service / ccsignals style banding), chosen so it
// works uniformly for any B instead of being capped at B<=4 like the
// low-bits-concatenation shortcut.
func GroupToBands(sig Signature, l, b int) (map[int]int64, error) {
	if l*b != len(sig) {
		return nil, apierrors.InvalidConfigf("groupToBands: L*B (%d*%d=%d) must equal signature length (%d)", l, b, l*b, len(sig))
	}

	bands := make(map[int]int64, l)
	for t := 0; t < l; t++ {
		start := t * b
		bands[t] = hashBand(sig[start : start+b])
	}
	return bands, nil
}

// hashBand mixes B signature components into a single 64-bit band key
// using FNV-1a over each component's 8-byte big-endian image. This is
// deterministic across processes and stable regardless of B.
func hashBand(components []int) int64 {
	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, c := range components {
		u := uint64(int64(c))
		for i := 0; i < 8; i++ {
			buf[i] = byte(u >> (56 - 8*i))
		}
		h.Write(buf)
	}
	return int64(h.Sum64())
}
