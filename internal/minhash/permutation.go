// Package minhash implements the permutation store and the MinHash
// sketcher with LSH band grouping.
package minhash

import (
	"encoding/csv"
	"math/rand"
	"os"
	"strconv"

	"github.com/media-luna/sonora/utils/apierrors"
)

// Table is the process-wide permutation table P[p][i], p in [0,K), i in
// [0,F). It is generated once and is invariant for the lifetime of a
// database; regenerating it invalidates every stored signature.
type Table struct {
	K int
	F int
	P [][]int
}

// Generate produces a fresh K x F permutation table. If seed is nonzero
// the generation is deterministic; seed == 0 uses the process-global
// math/rand source, which is adequate here because these are LSH hash
// families, not secrets.
func Generate(k, f int, seed int64) *Table {
	rng := rand.New(rand.NewSource(seed))
	if seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	p := make([][]int, k)
	for row := 0; row < k; row++ {
		perm := rng.Perm(f)
		p[row] = perm
	}
	return &Table{K: k, F: f, P: p}
}

// Save persists the table as a row-per-line CSV format: K rows of F
// space-separated integers.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return apierrors.StoreWritef(err, "creating permutation file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ' '
	for _, row := range t.P {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = strconv.Itoa(v)
		}
		if err := w.Write(record); err != nil {
			return apierrors.StoreWritef(err, "writing permutation row to %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apierrors.StoreWritef(err, "flushing permutation file %s", path)
	}
	return nil
}

// Load reads a permutation table previously written by Save. The caller
// is responsible for checking the resulting K/F against the database's
// expected layout (SchemaMismatch if they differ).
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.StoreReadf(err, "opening permutation file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = ' '
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, apierrors.StoreReadf(err, "parsing permutation file %s", path)
	}

	p := make([][]int, len(records))
	f_ := 0
	for i, record := range records {
		row := make([]int, len(record))
		for j, s := range record {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, apierrors.StoreReadf(err, "permutation file %s: row %d col %d not an integer", path, i, j)
			}
			row[j] = v
		}
		p[i] = row
		f_ = len(row)
	}

	return &Table{K: len(p), F: f_, P: p}, nil
}

// LoadOrGenerate loads the permutation table at path, generating and
// persisting a fresh K x F table if none exists yet.
func LoadOrGenerate(path string, k, f int, seed int64) (*Table, error) {
	if _, err := os.Stat(path); err == nil {
		table, err := Load(path)
		if err != nil {
			return nil, err
		}
		if table.K != k || table.F != f {
			return nil, apierrors.SchemaMismatchf(
				"permutation file %s has K=%d F=%d, configuration expects K=%d F=%d",
				path, table.K, table.F, k, f)
		}
		return table, nil
	}

	table := Generate(k, f, seed)
	if err := table.Save(path); err != nil {
		return nil, err
	}
	return table, nil
}

// Row returns permutation row p: Row(p)[i] is the source index placed at
// output position i.
func (t *Table) Row(p int) []int { return t.P[p] }
