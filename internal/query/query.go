// Package query implements the similarity query engine: per-band
// candidate lookup, Hamming scoring, and composite-score ranking of
// tracks against a set of query fingerprints.
package query

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/media-luna/sonora/internal/fingerprint"
	"github.com/media-luna/sonora/internal/minhash"
	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/utils/apierrors"
)

// Stats accumulates a track's match quality across all query
// fingerprints: a track moves from absent to seen to scored as votes
// arrive.
type Stats struct {
	TrackID           int64
	TotalTableVotes   int
	HammingDistance   int
	MinHammingDistance int
	CandidateCount    int
	MaxSimilarity     float64
	OrderingValue     float64
}

// Match pairs a track with its accumulated query statistics, ready for
// metadata resolution by the caller.
type Match struct {
	Track store.Track
	Stats Stats
}

// Options parameterizes one query.
type Options struct {
	L             int // hash tables, must match the database's indexed layout
	B             int // keys per table
	Threshold     int // minimum shared bands to keep a candidate
	SearchAll     bool
	TopCandidates int
	HammingBlend  float64 // alpha
}

// Engine runs queries against a Store using a shared permutation table.
type Engine struct {
	Store       store.Store
	Permutations *minhash.Table
}

// New builds a query Engine over st using the given permutation table.
func New(st store.Store, permutations *minhash.Table) *Engine {
	return &Engine{Store: st, Permutations: permutations}
}

// Query performs the per-band lookup/aggregate/rank pipeline for a list
// of query fingerprints, returning tracks ordered by ascending
// composite score (best match first), truncated to opts.TopCandidates.
func (e *Engine) Query(ctx context.Context, queryFingerprints []fingerprint.Bits, opts Options) ([]Match, error) {
	if opts.Threshold > opts.L {
		return nil, apierrors.InvalidConfigf("threshold (%d) cannot exceed L (%d)", opts.Threshold, opts.L)
	}

	perFingerprint := make([][]candidateVote, len(queryFingerprints))

	for i, qBits := range queryFingerprints {
		select {
		case <-ctx.Done():
			return nil, apierrors.Cancelled
		default:
		}

		votes, err := e.gatherCandidates(ctx, qBits, opts)
		if err != nil {
			return nil, err
		}
		perFingerprint[i] = votes
	}

	select {
	case <-ctx.Done():
		return nil, apierrors.Cancelled
	default:
	}

	statsByTrack := aggregate(perFingerprint)
	matches, err := e.rank(ctx, statsByTrack, opts)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// candidateVote is one (fingerprint, query fingerprint) pairing that
// survived the band-vote threshold, carrying everything needed for
// per-track aggregation.
type candidateVote struct {
	trackID  int64
	votes    int
	hamming  int
	bitLen   int
}

// gatherCandidates performs per-band candidate gathering for a single
// query fingerprint: compute its signature/band keys, fetch candidates
// (via LSH lookup or full scan), count per-fingerprint band votes, drop
// anything under threshold, and compute Hamming distance for survivors.
func (e *Engine) gatherCandidates(ctx context.Context, qBits fingerprint.Bits, opts Options) ([]candidateVote, error) {
	sig := minhash.ComputeSignature(qBits, e.Permutations)
	bands, err := minhash.GroupToBands(sig, opts.L, opts.B)
	if err != nil {
		return nil, err
	}

	var grouped map[int64][]store.HashBin
	if opts.SearchAll {
		grouped, err = e.Store.ReadAllHashBins(ctx)
	} else {
		keys := make([]int64, 0, len(bands))
		for _, k := range bands {
			keys = append(keys, k)
		}
		grouped, err = e.Store.LookupByHashBins(ctx, keys)
	}
	if err != nil {
		return nil, err
	}
	if len(grouped) == 0 {
		return nil, nil
	}

	fpIDs := make([]int64, 0, len(grouped))
	for id := range grouped {
		fpIDs = append(fpIDs, id)
	}
	candidates, err := e.Store.ReadFingerprintsByID(ctx, fpIDs)
	if err != nil {
		return nil, err
	}

	candidateByID := make(map[int64]store.Fingerprint, len(candidates))
	for _, c := range candidates {
		candidateByID[c.ID] = c
	}

	votes := make([]candidateVote, 0, len(grouped))
	for fpID, bins := range grouped {
		tableVotes := countDistinctBands(bins, opts.L)
		if tableVotes < opts.Threshold {
			continue
		}
		cand, ok := candidateByID[fpID]
		if !ok {
			continue
		}
		h := hammingDistance(cand.Signature, []byte(qBits))
		votes = append(votes, candidateVote{
			trackID: cand.TrackID,
			votes:   tableVotes,
			hamming: h,
			bitLen:  len(cand.Signature),
		})
	}
	return votes, nil
}

func countDistinctBands(bins []store.HashBin, l int) int {
	seen := make(map[int]struct{}, len(bins))
	for _, b := range bins {
		seen[b.HashTable] = struct{}{}
	}
	if len(seen) > l {
		return l
	}
	return len(seen)
}

func hammingDistance(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	d := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// aggregate folds every per-fingerprint vote list into per-track Stats.
// Aggregation is associative and commutative: it is split across
// goroutines by query-fingerprint when there are enough votes to make
// that worthwhile, with a deterministic final merge so the result is
// bit-identical to a sequential fold regardless of worker count.
func aggregate(perFingerprint [][]candidateVote) map[int64]*Stats {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(perFingerprint) {
		workers = len(perFingerprint)
	}
	if workers < 1 {
		workers = 1
	}

	totalVotes := 0
	for _, votes := range perFingerprint {
		totalVotes += len(votes)
	}

	if totalVotes < 256 || workers == 1 {
		return foldSequential(perFingerprint)
	}

	partials := make([]map[int64]*Stats, workers)
	var wg sync.WaitGroup
	chunk := (len(perFingerprint) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= len(perFingerprint) {
			partials[w] = map[int64]*Stats{}
			continue
		}
		if end > len(perFingerprint) {
			end = len(perFingerprint)
		}
		wg.Add(1)
		go func(w, start, end int) {
			defer wg.Done()
			partials[w] = foldSequential(perFingerprint[start:end])
		}(w, start, end)
	}
	wg.Wait()

	merged := map[int64]*Stats{}
	for _, partial := range partials {
		mergeInto(merged, partial)
	}
	return merged
}

func foldSequential(perFingerprint [][]candidateVote) map[int64]*Stats {
	statsByTrack := map[int64]*Stats{}
	for _, votes := range perFingerprint {
		for _, v := range votes {
			st, ok := statsByTrack[v.trackID]
			if !ok {
				st = &Stats{TrackID: v.trackID, MinHammingDistance: v.hamming}
				statsByTrack[v.trackID] = st
			}
			st.TotalTableVotes += v.votes
			st.HammingDistance += v.hamming
			st.CandidateCount++
			if v.hamming < st.MinHammingDistance {
				st.MinHammingDistance = v.hamming
			}
			if v.bitLen > 0 {
				similarity := 1 - float64(v.hamming)/float64(v.bitLen)
				if similarity > st.MaxSimilarity {
					st.MaxSimilarity = similarity
				}
			}
		}
	}
	return statsByTrack
}

func mergeInto(dst map[int64]*Stats, src map[int64]*Stats) {
	for trackID, s := range src {
		d, ok := dst[trackID]
		if !ok {
			cp := *s
			dst[trackID] = &cp
			continue
		}
		d.TotalTableVotes += s.TotalTableVotes
		d.HammingDistance += s.HammingDistance
		d.CandidateCount += s.CandidateCount
		if s.MinHammingDistance < d.MinHammingDistance {
			d.MinHammingDistance = s.MinHammingDistance
		}
		if s.MaxSimilarity > d.MaxSimilarity {
			d.MaxSimilarity = s.MaxSimilarity
		}
	}
}

// rank computes the composite ordering value for each track, sorts
// ascending (lower is better) with the documented tie-break rule,
// truncates to opts.TopCandidates, and resolves track metadata via the
// store.
func (e *Engine) rank(ctx context.Context, statsByTrack map[int64]*Stats, opts Options) ([]Match, error) {
	select {
	case <-ctx.Done():
		return nil, apierrors.Cancelled
	default:
	}

	trackIDs := make([]int64, 0, len(statsByTrack))
	for id, st := range statsByTrack {
		if st.TotalTableVotes > 0 {
			st.OrderingValue = float64(st.HammingDistance)/float64(st.TotalTableVotes) + opts.HammingBlend*float64(st.MinHammingDistance)
		} else {
			st.OrderingValue = opts.HammingBlend * float64(st.MinHammingDistance)
		}
		trackIDs = append(trackIDs, id)
	}

	sort.Slice(trackIDs, func(i, j int) bool {
		a, b := statsByTrack[trackIDs[i]], statsByTrack[trackIDs[j]]
		if a.OrderingValue != b.OrderingValue {
			return a.OrderingValue < b.OrderingValue
		}
		if a.MinHammingDistance != b.MinHammingDistance {
			return a.MinHammingDistance < b.MinHammingDistance
		}
		return trackIDs[i] < trackIDs[j]
	})

	if opts.TopCandidates > 0 && len(trackIDs) > opts.TopCandidates {
		trackIDs = trackIDs[:opts.TopCandidates]
	}
	if len(trackIDs) == 0 {
		return nil, nil
	}

	tracks, err := e.Store.ReadTrackByID(ctx, trackIDs)
	if err != nil {
		return nil, err
	}
	trackByID := make(map[int64]store.Track, len(tracks))
	for _, t := range tracks {
		trackByID[t.ID] = t
	}

	matches := make([]Match, 0, len(trackIDs))
	for _, id := range trackIDs {
		t, ok := trackByID[id]
		if !ok {
			continue
		}
		matches = append(matches, Match{Track: t, Stats: *statsByTrack[id]})
	}
	return matches, nil
}
