// Package wavelet implements the standard 2D Haar decomposition and the
// top-wavelet ternary-sign encoder.
//
// The spectrogram pipeline (package spectrogram) uses go-dsp for FFT and
// windowing, but the Haar step here is hand-rolled against the exact
// orthonormal formula, a' = (a+b)/sqrt(2), d' = (a-b)/sqrt(2), because
// that specific normalization is what makes the energy-preservation
// invariant hold exactly; go-dsp's own wavelet package does not document
// the same normalization convention, so depending on it would risk a
// silent mismatch in a property the test suite checks precisely.
package wavelet

import "math"

const sqrt2 = math.Sqrt2

// Tile is a square T x T matrix stored row-major, T a power of two.
type Tile struct {
	Size int
	Data []float64 // Size*Size, row-major
}

// NewTile allocates a zeroed Size x Size tile.
func NewTile(size int) *Tile {
	return &Tile{Size: size, Data: make([]float64, size*size)}
}

func (t *Tile) at(r, c int) float64 { return t.Data[r*t.Size+c] }

// Set writes the value at row r, column c.
func (t *Tile) Set(r, c int, v float64) { t.Data[r*t.Size+c] = v }

// At reads the value at row r, column c.
func (t *Tile) At(r, c int) float64 { return t.at(r, c) }

// Transform performs the standard (full-pyramid) 2D Haar decomposition of
// t in place: row-wise decomposition first, halving the active length
// each level until length 1, then the same column-wise.
func Transform(t *Tile) {
	row := make([]float64, t.Size)
	for r := 0; r < t.Size; r++ {
		for c := 0; c < t.Size; c++ {
			row[c] = t.at(r, c)
		}
		haar1D(row)
		for c := 0; c < t.Size; c++ {
			t.Set(r, c, row[c])
		}
	}

	col := make([]float64, t.Size)
	for c := 0; c < t.Size; c++ {
		for r := 0; r < t.Size; r++ {
			col[r] = t.at(r, c)
		}
		haar1D(col)
		for r := 0; r < t.Size; r++ {
			t.Set(r, c, col[r])
		}
	}
}

// haar1D performs the full-pyramid, in-place, orthonormal 1D Haar
// transform on data (length a power of two). At each level, the active
// prefix of length n is paired (data[2i], data[2i+1]) into an average and
// a difference, written back as [avg_0..avg_{n/2-1}, diff_0..diff_{n/2-1}],
// and the next level operates only on the new avg prefix.
func haar1D(data []float64) {
	n := len(data)
	tmp := make([]float64, n)

	for length := n; length > 1; length /= 2 {
		half := length / 2
		for i := 0; i < half; i++ {
			a := data[2*i]
			b := data[2*i+1]
			tmp[i] = (a + b) / sqrt2
			tmp[half+i] = (a - b) / sqrt2
		}
		copy(data[:length], tmp[:length])
	}
}
