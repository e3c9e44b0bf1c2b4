// Package store defines the abstract index store contract: tracks,
// fingerprints, and LSH hash-bin rows over a relational backend.
// Concrete backends live in the mysql and postgres subpackages; both
// satisfy the same Store interface so the facade and query engine never
// depend on a specific driver.
package store

import "context"

// Track is a persistent row owning a sequence of fingerprints.
type Track struct {
	ID         int64
	AlbumID    *int64
	DurationMs int64
	Artist     string
	Title      string
	Path       string
	Tags       map[string]string
}

// Fingerprint is one F-bit perceptual signature of a short audio tile.
// Signature is stored one byte per bit, each 0 or 1.
type Fingerprint struct {
	ID            int64
	TrackID       int64
	SongOrder     int
	TotalPerTrack int
	Signature     []byte
}

// HashBin is one persisted LSH band -> fingerprint mapping.
type HashBin struct {
	ID            int64
	Bin           int64
	HashTable     int
	TrackID       int64
	FingerprintID int64
}

// TrackFilter narrows ReadTracks. A zero-value filter matches everything.
type TrackFilter struct {
	Artist string
	Title  string
}

// Store is the abstract persistence contract every backend implements.
// All multi-row writes are atomic; reads are consistent with the last
// committed write they serialize after.
type Store interface {
	// InsertTrack adds track and returns its assigned ID.
	InsertTrack(ctx context.Context, track Track) (int64, error)
	// ReadTrackByID returns the tracks matching ids, in no particular order.
	ReadTrackByID(ctx context.Context, ids []int64) ([]Track, error)
	// ReadTracks lists tracks optionally narrowed by filter.
	ReadTracks(ctx context.Context, filter *TrackFilter) ([]Track, error)
	// CountTracks returns the number of tracks currently stored.
	CountTracks(ctx context.Context) (int, error)
	// DeleteTrack removes a track and its owned fingerprints/hash-bins.
	DeleteTrack(ctx context.Context, id int64) error

	// InsertFingerprints batches an atomic insert, stamping TotalPerTrack
	// to len(fingerprints) for every row in the batch.
	InsertFingerprints(ctx context.Context, fingerprints []Fingerprint) error
	// ReadFingerprintsByID returns fingerprints matching ids.
	ReadFingerprintsByID(ctx context.Context, ids []int64) ([]Fingerprint, error)
	// ReadFingerprintsByTrackIDs groups fingerprints by trackId
	// regardless of physical row order.
	ReadFingerprintsByTrackIDs(ctx context.Context, trackIDs []int64) (map[int64][]Fingerprint, error)

	// InsertHashBins batches an atomic insert of LSH band rows.
	InsertHashBins(ctx context.Context, bins []HashBin) error
	// LookupByHashBins returns, for each matching row across all given
	// band keys, the HashBin rows grouped by fingerprint ID. Duplicate
	// keys in bandKeys are deduplicated in the result.
	LookupByHashBins(ctx context.Context, bandKeys []int64) (map[int64][]HashBin, error)
	// ReadAllHashBins scans every hash-bin row, grouped by fingerprint
	// ID, with no LIMIT: the search-everything escape hatch must never
	// truncate.
	ReadAllHashBins(ctx context.Context) (map[int64][]HashBin, error)

	// Reset truncates all three tables, leaving the store empty.
	Reset(ctx context.Context) error
	// Close releases backend resources (connection pool, etc).
	Close() error
}
