package wavelet

import (
	"math"
	"sort"
)

// EncodeTopWavelets selects the `top` largest-magnitude coefficients of a
// decomposed tile and packs them into a binary vector of length 2*T*T:
// each selected coefficient emits (1,0) if positive, (0,1) if negative;
// non-selected coefficients emit (0,0). Ties in magnitude are broken by
// lower index, matching sort.SliceStable over ascending index order.
func EncodeTopWavelets(t *Tile, top int) []byte {
	n := len(t.Data)
	if top > n {
		top = n
	}

	type coeff struct {
		index int
		abs   float64
	}
	coeffs := make([]coeff, n)
	for i, v := range t.Data {
		coeffs[i] = coeff{index: i, abs: math.Abs(v)}
	}

	sort.SliceStable(coeffs, func(i, j int) bool {
		return coeffs[i].abs > coeffs[j].abs
	})

	selected := make(map[int]bool, top)
	for i := 0; i < top; i++ {
		selected[coeffs[i].index] = true
	}

	bits := make([]byte, 2*n)
	for i, v := range t.Data {
		if !selected[i] {
			continue
		}
		if v > 0 {
			bits[2*i] = 1
		} else {
			bits[2*i+1] = 1
		}
	}
	return bits
}
