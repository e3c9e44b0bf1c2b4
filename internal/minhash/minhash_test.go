package minhash

import (
	"math/rand"
	"testing"
)

func randomBits(f int, density float64, rng *rand.Rand) []byte {
	bits := make([]byte, f)
	for i := range bits {
		if rng.Float64() < density {
			bits[i] = 1
		}
	}
	return bits
}

func jaccard(a, b []byte) float64 {
	var inter, union int
	for i := range a {
		if a[i] == 1 || b[i] == 1 {
			union++
		}
		if a[i] == 1 && b[i] == 1 {
			inter++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func TestBandKeyDeterminism(t *testing.T) {
	table := Generate(100, 512, 42)
	rng := rand.New(rand.NewSource(7))
	bits := randomBits(512, 0.1, rng)

	sig1 := ComputeSignature(bits, table)
	sig2 := ComputeSignature(bits, table)
	bands1, err := GroupToBands(sig1, 25, 4)
	if err != nil {
		t.Fatal(err)
	}
	bands2, err := GroupToBands(sig2, 25, 4)
	if err != nil {
		t.Fatal(err)
	}

	if len(bands1) != 25 {
		t.Fatalf("expected 25 bands, got %d", len(bands1))
	}
	for k, v := range bands1 {
		if bands2[k] != v {
			t.Errorf("band %d not deterministic: %v != %v", k, v, bands2[k])
		}
	}
}

func TestMinHashMonotonicity(t *testing.T) {
	const F = 256
	const K = 200
	table := Generate(K, F, 1)
	rng := rand.New(rand.NewSource(99))

	const pairs = 1000
	var totalErr float64
	for i := 0; i < pairs; i++ {
		a := randomBits(F, 0.2, rng)
		b := randomBits(F, 0.2, rng)

		sigA := ComputeSignature(a, table)
		sigB := ComputeSignature(b, table)

		equal := 0
		for j := range sigA {
			if sigA[j] == sigB[j] {
				equal++
			}
		}
		estimate := float64(equal) / float64(K)
		actual := jaccard(a, b)
		totalErr += abs(estimate - actual)
	}

	meanErr := totalErr / pairs
	if meanErr > 0.05 {
		t.Errorf("mean |estimate-actual| jaccard error too high: %v", meanErr)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGroupToBandsRejectsMismatchedLayout(t *testing.T) {
	sig := Signature(make([]int, 100))
	if _, err := GroupToBands(sig, 25, 5); err == nil {
		t.Fatal("expected error when L*B != len(sig)")
	}
}
