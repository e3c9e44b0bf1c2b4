// Package sqlstore implements the Store contract once, over
// database/sql, parameterized by a small Dialect so the mysql and
// postgres backends can share the same query logic and differ only in
// placeholder syntax, auto-increment and binary column DDL, and how an
// inserted row's ID is returned.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/media-luna/sonora/internal/store"
	"github.com/media-luna/sonora/utils/apierrors"
)

// Dialect isolates the handful of SQL differences between backends.
type Dialect interface {
	// Placeholder returns the parameter marker for the nth (1-based)
	// bound argument ("$1" for postgres, "?" for mysql).
	Placeholder(n int) string
	// AutoIncrementPK returns the column DDL fragment for a 64-bit
	// auto-assigned primary key.
	AutoIncrementPK() string
	// Name identifies the dialect and selects SQL variants: "postgres"
	// reads inserted IDs with RETURNING id (others use LastInsertId), and
	// "mysql" stores signatures as BLOB (others use BYTEA).
	Name() string
}

// Store is a dialect-parameterized Store implementation shared by the
// mysql and postgres backends.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-open *sql.DB with the Store contract. The schema
// is created if it does not already exist.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS tracks (
			id %s,
			album_id BIGINT NULL,
			duration_ms BIGINT NOT NULL,
			artist VARCHAR(512) NOT NULL DEFAULT '',
			title VARCHAR(512) NOT NULL DEFAULT '',
			path VARCHAR(2048) NOT NULL DEFAULT '',
			tags VARCHAR(4096) NOT NULL DEFAULT ''
		)`, s.dialect.AutoIncrementPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS fingerprints (
			id %s,
			track_id BIGINT NOT NULL,
			song_order INTEGER NOT NULL,
			total_per_track INTEGER NOT NULL,
			signature BYTEA_OR_BLOB
		)`, s.dialect.AutoIncrementPK()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS hash_bins (
			id %s,
			bin BIGINT NOT NULL,
			hash_table INTEGER NOT NULL,
			track_id BIGINT NOT NULL,
			fingerprint_id BIGINT NOT NULL
		)`, s.dialect.AutoIncrementPK()),
		`CREATE INDEX idx_hash_bins_bin ON hash_bins (bin)`,
		`CREATE INDEX idx_hash_bins_fingerprint ON hash_bins (fingerprint_id)`,
		`CREATE INDEX idx_fingerprints_track ON fingerprints (track_id)`,
	}

	binaryCol := "BYTEA"
	if s.dialect.Name() == "mysql" {
		binaryCol = "BLOB"
	}
	for i, stmt := range stmts {
		stmts[i] = strings.ReplaceAll(stmt, "BYTEA_OR_BLOB", binaryCol)
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			// Index-already-exists errors are common across re-opens of
			// a database that lacks IF NOT EXISTS for indexes in some
			// dialects; ignore them, fail on anything touching a table.
			if strings.Contains(stmt, "CREATE TABLE") {
				return apierrors.StoreWritef(err, "creating schema")
			}
		}
	}
	return nil
}

func (s *Store) ph(n int) string { return s.dialect.Placeholder(n) }

func serializeTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(tags))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ";")
}

func deserializeTags(s string) map[string]string {
	if s == "" {
		return nil
	}
	tags := make(map[string]string)
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			tags[parts[0]] = parts[1]
		}
	}
	return tags
}

func (s *Store) InsertTrack(ctx context.Context, t store.Track) (int64, error) {
	query := fmt.Sprintf(
		`INSERT INTO tracks (album_id, duration_ms, artist, title, path, tags) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))

	tags := serializeTags(t.Tags)

	if s.dialect.Name() == "postgres" {
		query += " RETURNING id"
		var id int64
		err := s.db.QueryRowContext(ctx, query, t.AlbumID, t.DurationMs, t.Artist, t.Title, t.Path, tags).Scan(&id)
		if err != nil {
			return 0, apierrors.StoreWritef(err, "inserting track")
		}
		return id, nil
	}

	res, err := s.db.ExecContext(ctx, query, t.AlbumID, t.DurationMs, t.Artist, t.Title, t.Path, tags)
	if err != nil {
		return 0, apierrors.StoreWritef(err, "inserting track")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apierrors.StoreWritef(err, "reading inserted track id")
	}
	return id, nil
}

func (s *Store) ReadTrackByID(ctx context.Context, ids []int64) ([]store.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.ph(i + 1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, album_id, duration_ms, artist, title, path, tags FROM tracks WHERE id IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "reading tracks by id")
	}
	defer rows.Close()
	return scanTracks(rows)
}

func (s *Store) ReadTracks(ctx context.Context, filter *store.TrackFilter) ([]store.Track, error) {
	query := `SELECT id, album_id, duration_ms, artist, title, path, tags FROM tracks`
	var args []any
	var conds []string
	if filter != nil {
		if filter.Artist != "" {
			conds = append(conds, fmt.Sprintf("artist = %s", s.ph(len(args)+1)))
			args = append(args, filter.Artist)
		}
		if filter.Title != "" {
			conds = append(conds, fmt.Sprintf("title = %s", s.ph(len(args)+1)))
			args = append(args, filter.Title)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "reading tracks")
	}
	defer rows.Close()
	return scanTracks(rows)
}

func scanTracks(rows *sql.Rows) ([]store.Track, error) {
	var out []store.Track
	for rows.Next() {
		var t store.Track
		var albumID sql.NullInt64
		var tags string
		if err := rows.Scan(&t.ID, &albumID, &t.DurationMs, &t.Artist, &t.Title, &t.Path, &tags); err != nil {
			return nil, apierrors.StoreReadf(err, "scanning track row")
		}
		if albumID.Valid {
			v := albumID.Int64
			t.AlbumID = &v
		}
		t.Tags = deserializeTags(tags)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.StoreReadf(err, "iterating track rows")
	}
	return out, nil
}

func (s *Store) CountTracks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n)
	if err != nil {
		return 0, apierrors.StoreReadf(err, "counting tracks")
	}
	return n, nil
}

func (s *Store) DeleteTrack(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.StoreWritef(err, "beginning delete transaction")
	}
	defer tx.Rollback()

	stmts := []string{
		fmt.Sprintf(`DELETE FROM hash_bins WHERE track_id = %s`, s.ph(1)),
		fmt.Sprintf(`DELETE FROM fingerprints WHERE track_id = %s`, s.ph(1)),
		fmt.Sprintf(`DELETE FROM tracks WHERE id = %s`, s.ph(1)),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return apierrors.StoreWritef(err, "deleting track %d", id)
		}
	}
	if err := tx.Commit(); err != nil {
		return apierrors.StoreWritef(err, "committing delete of track %d", id)
	}
	return nil
}

func (s *Store) InsertFingerprints(ctx context.Context, fingerprints []store.Fingerprint) error {
	if len(fingerprints) == 0 {
		return nil
	}
	total := len(fingerprints)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.StoreWritef(err, "beginning fingerprint insert transaction")
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO fingerprints (track_id, song_order, total_per_track, signature) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if s.dialect.Name() == "postgres" {
		query += " RETURNING id"
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return apierrors.StoreWritef(err, "preparing fingerprint insert")
	}
	defer stmt.Close()

	for i := range fingerprints {
		fp := &fingerprints[i]
		fp.TotalPerTrack = total
		if s.dialect.Name() == "postgres" {
			if err := stmt.QueryRowContext(ctx, fp.TrackID, fp.SongOrder, fp.TotalPerTrack, fp.Signature).Scan(&fp.ID); err != nil {
				return apierrors.StoreWritef(err, "inserting fingerprint %d", i)
			}
			continue
		}
		res, err := stmt.ExecContext(ctx, fp.TrackID, fp.SongOrder, fp.TotalPerTrack, fp.Signature)
		if err != nil {
			return apierrors.StoreWritef(err, "inserting fingerprint %d", i)
		}
		if id, err := res.LastInsertId(); err == nil {
			fp.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return apierrors.StoreWritef(err, "committing fingerprint batch")
	}
	return nil
}

func (s *Store) ReadFingerprintsByID(ctx context.Context, ids []int64) ([]store.Fingerprint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = s.ph(i + 1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, track_id, song_order, total_per_track, signature FROM fingerprints WHERE id IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "reading fingerprints by id")
	}
	defer rows.Close()
	return scanFingerprints(rows)
}

func (s *Store) ReadFingerprintsByTrackIDs(ctx context.Context, trackIDs []int64) (map[int64][]store.Fingerprint, error) {
	if len(trackIDs) == 0 {
		return map[int64][]store.Fingerprint{}, nil
	}
	placeholders := make([]string, len(trackIDs))
	args := make([]any, len(trackIDs))
	for i, id := range trackIDs {
		placeholders[i] = s.ph(i + 1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, track_id, song_order, total_per_track, signature FROM fingerprints WHERE track_id IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "reading fingerprints by track id")
	}
	defer rows.Close()

	fps, err := scanFingerprints(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64][]store.Fingerprint)
	for _, fp := range fps {
		grouped[fp.TrackID] = append(grouped[fp.TrackID], fp)
	}
	return grouped, nil
}

func scanFingerprints(rows *sql.Rows) ([]store.Fingerprint, error) {
	var out []store.Fingerprint
	for rows.Next() {
		var fp store.Fingerprint
		if err := rows.Scan(&fp.ID, &fp.TrackID, &fp.SongOrder, &fp.TotalPerTrack, &fp.Signature); err != nil {
			return nil, apierrors.StoreReadf(err, "scanning fingerprint row")
		}
		out = append(out, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.StoreReadf(err, "iterating fingerprint rows")
	}
	return out, nil
}

func (s *Store) InsertHashBins(ctx context.Context, bins []store.HashBin) error {
	if len(bins) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.StoreWritef(err, "beginning hash-bin insert transaction")
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO hash_bins (bin, hash_table, track_id, fingerprint_id) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return apierrors.StoreWritef(err, "preparing hash-bin insert")
	}
	defer stmt.Close()

	for _, b := range bins {
		if _, err := stmt.ExecContext(ctx, b.Bin, b.HashTable, b.TrackID, b.FingerprintID); err != nil {
			return apierrors.StoreWritef(err, "inserting hash bin")
		}
	}

	if err := tx.Commit(); err != nil {
		return apierrors.StoreWritef(err, "committing hash-bin batch")
	}
	return nil
}

func (s *Store) LookupByHashBins(ctx context.Context, bandKeys []int64) (map[int64][]store.HashBin, error) {
	if len(bandKeys) == 0 {
		return map[int64][]store.HashBin{}, nil
	}

	dedup := make(map[int64]struct{}, len(bandKeys))
	unique := make([]int64, 0, len(bandKeys))
	for _, k := range bandKeys {
		if _, ok := dedup[k]; !ok {
			dedup[k] = struct{}{}
			unique = append(unique, k)
		}
	}

	placeholders := make([]string, len(unique))
	args := make([]any, len(unique))
	for i, k := range unique {
		placeholders[i] = s.ph(i + 1)
		args[i] = k
	}
	query := fmt.Sprintf(`SELECT id, bin, hash_table, track_id, fingerprint_id FROM hash_bins WHERE bin IN (%s)`,
		strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "looking up hash bins")
	}
	defer rows.Close()
	return scanHashBinsGrouped(rows)
}

// ReadAllHashBins scans the whole table, unbounded, for the
// search-everything bypass: it never emits a LIMIT, so a full scan
// always sees every stored hash bin regardless of table size.
func (s *Store) ReadAllHashBins(ctx context.Context) (map[int64][]store.HashBin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, bin, hash_table, track_id, fingerprint_id FROM hash_bins`)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "reading all hash bins")
	}
	defer rows.Close()
	return scanHashBinsGrouped(rows)
}

func scanHashBinsGrouped(rows *sql.Rows) (map[int64][]store.HashBin, error) {
	grouped := make(map[int64][]store.HashBin)
	for rows.Next() {
		var hb store.HashBin
		if err := rows.Scan(&hb.ID, &hb.Bin, &hb.HashTable, &hb.TrackID, &hb.FingerprintID); err != nil {
			return nil, apierrors.StoreReadf(err, "scanning hash bin row")
		}
		grouped[hb.FingerprintID] = append(grouped[hb.FingerprintID], hb)
	}
	if err := rows.Err(); err != nil {
		return nil, apierrors.StoreReadf(err, "iterating hash bin rows")
	}
	return grouped, nil
}

func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apierrors.StoreWritef(err, "beginning reset transaction")
	}
	defer tx.Rollback()

	for _, table := range []string{"hash_bins", "fingerprints", "tracks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return apierrors.StoreWritef(err, "clearing table %s", table)
		}
	}
	if err := tx.Commit(); err != nil {
		return apierrors.StoreWritef(err, "committing reset")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
