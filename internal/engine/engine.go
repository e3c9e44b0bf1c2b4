// Package engine is the repository facade: the public ingestion and
// query operations that tie together fingerprint extraction, MinHash
// sketching, and the index store under single-writer, multi-reader
// semantics.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/media-luna/sonora/internal/audio"
	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/fingerprint"
	"github.com/media-luna/sonora/internal/minhash"
	"github.com/media-luna/sonora/internal/query"
	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/internal/storeopen"
	"github.com/media-luna/sonora/utils/apierrors"
	"github.com/media-luna/sonora/utils/logger"
)

// Engine is the sonora library handle: the store, the process-wide
// permutation table, and the fingerprinting/LSH configuration, passed
// explicitly rather than held in globals.
type Engine struct {
	store        store.Store
	permutations *minhash.Table
	cfg          *config.Config
	queryEngine  *query.Engine

	writeMu sync.Mutex // single-writer: insertTrack never races itself
}

// New opens the configured store and loads (or generates) the
// permutation table, returning a ready Engine.
func New(cfg *config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := storeopen.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	table, err := minhash.LoadOrGenerate(
		cfg.LSH.PermutationFilePath,
		cfg.LSH.SignatureLength,
		cfg.FingerprintBits(),
		cfg.LSH.PermutationSeed,
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Engine{
		store:        st,
		permutations: table,
		cfg:          cfg,
		queryEngine:  query.New(st, table),
	}, nil
}

// Close releases the underlying store's resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// TrackInput describes a track to ingest: its PCM samples plus metadata.
type TrackInput struct {
	Path       string
	Artist     string
	Title      string
	DurationMs int64
	AlbumID    *int64
	Tags       map[string]string
}

// IngestTrack fingerprints pcm, persists the track row, its
// fingerprints, and their hash-bins as one logical transaction: if any
// step fails, the track is left out of the queryable set. Progress over
// the fingerprint batch is reported via a progress bar; the hash-bin
// batch is not reported.
func (e *Engine) IngestTrack(ctx context.Context, input TrackInput, pcm []float64) (int64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	result, err := fingerprint.Create(pcm, &e.cfg.Fingerprint)
	if err != nil {
		return 0, err
	}

	trackID, err := e.store.InsertTrack(ctx, store.Track{
		AlbumID:    input.AlbumID,
		DurationMs: input.DurationMs,
		Artist:     input.Artist,
		Title:      input.Title,
		Path:       input.Path,
		Tags:       input.Tags,
	})
	if err != nil {
		return 0, err
	}

	if len(result.Fingerprints) == 0 {
		// Short clip: track is inserted but stays unqueryable. Not an
		// error, just not indexable.
		logger.Info("track " + input.Path + " too short to fingerprint; inserted without fingerprints")
		return trackID, nil
	}

	fps := make([]store.Fingerprint, len(result.Fingerprints))
	for i, bits := range result.Fingerprints {
		fps[i] = store.Fingerprint{
			TrackID:   trackID,
			SongOrder: i,
			Signature: []byte(bits),
		}
	}

	bar := progressbar.Default(int64(len(fps)), "fingerprinting "+input.Path)
	if err := e.store.InsertFingerprints(ctx, fps); err != nil {
		return 0, err
	}
	bar.Add(len(fps))

	var bins []store.HashBin
	for _, fp := range fps {
		sig := minhash.ComputeSignature(fp.Signature, e.permutations)
		bands, err := minhash.GroupToBands(sig, e.cfg.LSH.HashTables, e.cfg.LSH.HashKeysPerTable)
		if err != nil {
			return 0, err
		}
		for table, key := range bands {
			bins = append(bins, store.HashBin{
				Bin:           key,
				HashTable:     table,
				TrackID:       trackID,
				FingerprintID: fp.ID,
			})
		}
	}

	if err := e.store.InsertHashBins(ctx, bins); err != nil {
		return 0, err
	}

	logger.Info("ingested track " + input.Path)
	return trackID, nil
}

// IngestFile decodes an audio file with internal/audio, then ingests it.
func (e *Engine) IngestFile(ctx context.Context, path, artist, title string, tags map[string]string) (int64, error) {
	pcm, err := audio.Decode(path, e.cfg.Fingerprint.SampleRate)
	if err != nil {
		return 0, err
	}
	durationMs := int64(float64(len(pcm)) / float64(e.cfg.Fingerprint.SampleRate) * 1000)

	return e.IngestTrack(ctx, TrackInput{
		Path:       path,
		Artist:     artist,
		Title:      title,
		DurationMs: durationMs,
		Tags:       tags,
	}, pcm)
}

// FindSimilarOptions parameterizes a query beyond the band layout
// already fixed by the database.
type FindSimilarOptions struct {
	Threshold              int
	SearchAll              bool
	OptimizeSignatureCount bool
}

// FindSimilarFromSamples fingerprints pcm and ranks the store's tracks
// by similarity. If OptimizeSignatureCount is set and the clip produced
// more than MaxSignatureCount fingerprints, only the first
// MaxSignatureCount are queried, bounding query cost for long clips at
// the expense of recall.
func (e *Engine) FindSimilarFromSamples(ctx context.Context, pcm []float64, opts FindSimilarOptions) ([]query.Match, error) {
	result, err := fingerprint.Create(pcm, &e.cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	if len(result.Fingerprints) == 0 {
		return nil, nil
	}

	queryFPs := result.Fingerprints
	if opts.OptimizeSignatureCount && len(queryFPs) > e.cfg.LSH.MaxSignatureCount {
		queryFPs = queryFPs[:e.cfg.LSH.MaxSignatureCount]
	}

	return e.queryEngine.Query(ctx, queryFPs, query.Options{
		L:             e.cfg.LSH.HashTables,
		B:             e.cfg.LSH.HashKeysPerTable,
		Threshold:     opts.Threshold,
		SearchAll:     opts.SearchAll,
		TopCandidates: e.cfg.LSH.TopCandidates,
		HammingBlend:  e.cfg.LSH.HammingBlend,
	})
}

// FindSimilarFromFile decodes path and calls FindSimilarFromSamples.
func (e *Engine) FindSimilarFromFile(ctx context.Context, path string, opts FindSimilarOptions) ([]query.Match, error) {
	pcm, err := audio.Decode(path, e.cfg.Fingerprint.SampleRate)
	if err != nil {
		return nil, err
	}
	return e.FindSimilarFromSamples(ctx, pcm, opts)
}

// ResetDatabase truncates all three tables as one transaction, leaving
// the store empty.
func (e *Engine) ResetDatabase(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.store.Reset(ctx)
}

// CountTracks returns the number of tracks currently stored.
func (e *Engine) CountTracks(ctx context.Context) (int, error) {
	return e.store.CountTracks(ctx)
}

// ListTracks returns all tracks matching filter.
func (e *Engine) ListTracks(ctx context.Context, filter *store.TrackFilter) ([]store.Track, error) {
	return e.store.ReadTracks(ctx, filter)
}

// DeleteTrack removes a single track and everything it owns.
func (e *Engine) DeleteTrack(ctx context.Context, id int64) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.store.DeleteTrack(ctx, id)
}

// CleanupDuplicates drops tracks that share a file-content hash with an
// earlier-inserted track, keeping the oldest (lowest ID) of each group.
func (e *Engine) CleanupDuplicates(ctx context.Context) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	tracks, err := e.store.ReadTracks(ctx, nil)
	if err != nil {
		return 0, err
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

	seen := make(map[string]bool)
	removed := 0
	for _, t := range tracks {
		hash, err := audio.FileHash(t.Path)
		if err != nil {
			logger.Error(apierrors.StoreReadf(err, "hashing track %d path %s during cleanup", t.ID, t.Path))
			continue
		}
		if seen[hash] {
			if err := e.store.DeleteTrack(ctx, t.ID); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		seen[hash] = true
	}
	return removed, nil
}
