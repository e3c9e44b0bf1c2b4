package engine

import (
	"context"
	"math"
	"sync"
	"testing"

	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/minhash"
	"github.com/media-luna/sonora/internal/query"
	"github.com/media-luna/sonora/internal/store"
)

// memStore is a map-backed Store used only to exercise the facade and
// query engine end-to-end without a real SQL backend: it implements
// the same atomic-batch/grouped-lookup contract as sqlstore, just
// against in-memory maps guarded by one mutex.
type memStore struct {
	mu sync.Mutex

	nextTrackID int64
	nextFpID    int64
	nextBinID   int64

	tracks       map[int64]store.Track
	fingerprints map[int64]store.Fingerprint
	bins         map[int64]store.HashBin
}

func newMemStore() *memStore {
	return &memStore{
		tracks:       make(map[int64]store.Track),
		fingerprints: make(map[int64]store.Fingerprint),
		bins:         make(map[int64]store.HashBin),
	}
}

func (m *memStore) InsertTrack(_ context.Context, t store.Track) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTrackID++
	t.ID = m.nextTrackID
	m.tracks[t.ID] = t
	return t.ID, nil
}

func (m *memStore) ReadTrackByID(_ context.Context, ids []int64) ([]store.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Track
	for _, id := range ids {
		if t, ok := m.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ReadTracks(_ context.Context, filter *store.TrackFilter) ([]store.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Track
	for _, t := range m.tracks {
		if filter != nil {
			if filter.Artist != "" && t.Artist != filter.Artist {
				continue
			}
			if filter.Title != "" && t.Title != filter.Title {
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) CountTracks(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks), nil
}

func (m *memStore) DeleteTrack(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracks, id)
	for fpID, fp := range m.fingerprints {
		if fp.TrackID == id {
			delete(m.fingerprints, fpID)
		}
	}
	for binID, b := range m.bins {
		if b.TrackID == id {
			delete(m.bins, binID)
		}
	}
	return nil
}

func (m *memStore) InsertFingerprints(_ context.Context, fps []store.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(fps)
	for i := range fps {
		m.nextFpID++
		fps[i].ID = m.nextFpID
		fps[i].TotalPerTrack = total
		m.fingerprints[fps[i].ID] = fps[i]
	}
	return nil
}

func (m *memStore) ReadFingerprintsByID(_ context.Context, ids []int64) ([]store.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Fingerprint
	for _, id := range ids {
		if fp, ok := m.fingerprints[id]; ok {
			out = append(out, fp)
		}
	}
	return out, nil
}

func (m *memStore) ReadFingerprintsByTrackIDs(_ context.Context, trackIDs []int64) (map[int64][]store.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(trackIDs))
	for _, id := range trackIDs {
		want[id] = true
	}
	grouped := make(map[int64][]store.Fingerprint)
	for _, fp := range m.fingerprints {
		if want[fp.TrackID] {
			grouped[fp.TrackID] = append(grouped[fp.TrackID], fp)
		}
	}
	return grouped, nil
}

func (m *memStore) InsertHashBins(_ context.Context, bins []store.HashBin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bins {
		m.nextBinID++
		b.ID = m.nextBinID
		m.bins[b.ID] = b
	}
	return nil
}

func (m *memStore) LookupByHashBins(_ context.Context, bandKeys []int64) (map[int64][]store.HashBin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(bandKeys))
	for _, k := range bandKeys {
		want[k] = true
	}
	grouped := make(map[int64][]store.HashBin)
	for _, b := range m.bins {
		if want[b.Bin] {
			grouped[b.FingerprintID] = append(grouped[b.FingerprintID], b)
		}
	}
	return grouped, nil
}

func (m *memStore) ReadAllHashBins(context.Context) (map[int64][]store.HashBin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grouped := make(map[int64][]store.HashBin)
	for _, b := range m.bins {
		grouped[b.FingerprintID] = append(grouped[b.FingerprintID], b)
	}
	return grouped, nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = make(map[int64]store.Track)
	m.fingerprints = make(map[int64]store.Fingerprint)
	m.bins = make(map[int64]store.HashBin)
	return nil
}

func (m *memStore) Close() error { return nil }

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Fingerprint.WindowSize = 1024
	cfg.Fingerprint.Overlap = 512
	cfg.Fingerprint.FingerprintSize = 32
	cfg.Fingerprint.TopWavelets = 20
	cfg.LSH.SignatureLength = 100
	cfg.LSH.HashTables = 25
	cfg.LSH.HashKeysPerTable = 4
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config should validate: %v", err)
	}

	st := newMemStore()
	table := minhash.Generate(cfg.LSH.SignatureLength, cfg.FingerprintBits(), 42)

	return &Engine{
		store:        st,
		permutations: table,
		cfg:          cfg,
		queryEngine:  query.New(st, table),
	}
}

func sineWave(freq float64, sampleRate, samples int) []float64 {
	pcm := make([]float64, samples)
	for i := range pcm {
		pcm[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return pcm
}

func TestQueryOnEmptyDatabaseReturnsNoMatches(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	pcm := sineWave(440, e.cfg.Fingerprint.SampleRate, e.cfg.Fingerprint.SampleRate*5)
	matches, err := e.FindSimilarFromSamples(ctx, pcm, FindSimilarOptions{Threshold: e.cfg.LSH.ThresholdTables})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches against an empty database, got %d", len(matches))
	}
}

func TestSelfMatchIsBestAndExact(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	pcm := sineWave(440, e.cfg.Fingerprint.SampleRate, e.cfg.Fingerprint.SampleRate*10)

	trackID, err := e.IngestTrack(ctx, TrackInput{Path: "clipA.wav", Artist: "A", Title: "Clip A"}, pcm)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	// A second, unrelated track so self-match has to win against
	// something, not just be the only candidate.
	noise := sineWave(2000, e.cfg.Fingerprint.SampleRate, e.cfg.Fingerprint.SampleRate*10)
	if _, err := e.IngestTrack(ctx, TrackInput{Path: "clipB.wav", Artist: "B", Title: "Clip B"}, noise); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	matches, err := e.FindSimilarFromSamples(ctx, pcm, FindSimilarOptions{Threshold: 1})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}

	best := matches[0]
	if best.Track.ID != trackID {
		t.Errorf("expected self-match track %d to rank first, got %d", trackID, best.Track.ID)
	}
	if best.Stats.MinHammingDistance != 0 {
		t.Errorf("expected minHamming 0 for an exact self-match, got %d", best.Stats.MinHammingDistance)
	}
}

func TestThresholdMonotonicityNeverEnlargesCandidates(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	pcm := sineWave(440, e.cfg.Fingerprint.SampleRate, e.cfg.Fingerprint.SampleRate*10)
	if _, err := e.IngestTrack(ctx, TrackInput{Path: "clipA.wav", Artist: "A", Title: "Clip A"}, pcm); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	low, err := e.FindSimilarFromSamples(ctx, pcm, FindSimilarOptions{Threshold: 1})
	if err != nil {
		t.Fatal(err)
	}
	high, err := e.FindSimilarFromSamples(ctx, pcm, FindSimilarOptions{Threshold: 10})
	if err != nil {
		t.Fatal(err)
	}

	if len(high) > len(low) {
		t.Errorf("raising the threshold enlarged the candidate set: low=%d high=%d", len(low), len(high))
	}
}

func TestResetIsIdempotent(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	pcm := sineWave(440, e.cfg.Fingerprint.SampleRate, e.cfg.Fingerprint.SampleRate*10)

	run := func() []query.Match {
		if err := e.ResetDatabase(ctx); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
		if _, err := e.IngestTrack(ctx, TrackInput{Path: "clipA.wav", Artist: "A", Title: "Clip A"}, pcm); err != nil {
			t.Fatalf("ingest failed: %v", err)
		}
		matches, err := e.FindSimilarFromSamples(ctx, pcm, FindSimilarOptions{Threshold: 1})
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		return matches
	}

	first := run()
	if err := e.ResetDatabase(ctx); err != nil {
		t.Fatalf("second reset failed: %v", err)
	}
	second := run()

	if len(first) != len(second) {
		t.Fatalf("match count differs across reset+reingest: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Stats.MinHammingDistance != second[i].Stats.MinHammingDistance {
			t.Errorf("match %d minHamming differs: %d vs %d", i, first[i].Stats.MinHammingDistance, second[i].Stats.MinHammingDistance)
		}
	}
}

func TestShortClipIsInsertedButUnqueryable(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	shortPCM := sineWave(440, e.cfg.Fingerprint.SampleRate, 50)
	trackID, err := e.IngestTrack(ctx, TrackInput{Path: "silence.wav", Artist: "X", Title: "Silence"}, shortPCM)
	if err != nil {
		t.Fatalf("unexpected error ingesting a short clip: %v", err)
	}
	if trackID == 0 {
		t.Fatal("expected the track to still be inserted")
	}

	count, err := e.CountTracks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 track in the store, got %d", count)
	}

	matches, err := e.FindSimilarFromSamples(ctx, shortPCM, FindSimilarOptions{Threshold: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for an unindexable clip, got %d", len(matches))
	}
}
