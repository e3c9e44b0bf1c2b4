package query

import (
	"testing"

	"github.com/media-luna/sonora/internal/store"
)

func TestHammingDistance(t *testing.T) {
	a := []byte{1, 0, 1, 0, 1}
	b := []byte{1, 0, 0, 0, 1}
	if d := hammingDistance(a, b); d != 1 {
		t.Errorf("expected distance 1, got %d", d)
	}
}

func TestAggregateSequentialMatchesParallel(t *testing.T) {
	perFingerprint := make([][]candidateVote, 0)
	for i := 0; i < 10; i++ {
		votes := []candidateVote{
			{trackID: 1, votes: 5, hamming: i, bitLen: 100},
			{trackID: 2, votes: 3, hamming: i + 1, bitLen: 100},
		}
		perFingerprint = append(perFingerprint, votes)
	}

	// Force the parallel path by padding with enough total votes.
	for i := 0; i < 300; i++ {
		perFingerprint = append(perFingerprint, []candidateVote{{trackID: 3, votes: 1, hamming: 2, bitLen: 100}})
	}

	seq := foldSequential(perFingerprint)
	par := aggregate(perFingerprint)

	for trackID, s := range seq {
		p, ok := par[trackID]
		if !ok {
			t.Fatalf("track %d missing from parallel aggregation", trackID)
		}
		if *p != *s {
			t.Errorf("track %d: sequential %+v != parallel %+v", trackID, *s, *p)
		}
	}
}

func TestCountDistinctBandsCapsAtL(t *testing.T) {
	bins := []store.HashBin{{HashTable: 0}, {HashTable: 0}, {HashTable: 1}, {HashTable: 2}}
	if got := countDistinctBands(bins, 25); got != 3 {
		t.Errorf("expected 3 distinct bands, got %d", got)
	}
	if got := countDistinctBands(bins, 2); got != 2 {
		t.Errorf("expected cap at L=2, got %d", got)
	}
}
