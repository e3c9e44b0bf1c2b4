// Package fingerprint orchestrates the spectrogram, Haar, and
// top-wavelet stages into one fingerprinting pipeline:
// audio -> spectrogram -> tiled Haar decomposition -> top-wavelet
// encoding -> fingerprint bit vectors.
package fingerprint

import (
	"errors"
	"math"

	config "github.com/media-luna/sonora/configs"
	"github.com/media-luna/sonora/internal/spectrogram"
	"github.com/media-luna/sonora/internal/wavelet"
	"github.com/media-luna/sonora/utils/apierrors"
)

// Bits is one fingerprint's fixed-length binary vector (F = 2*T*T bits,
// one byte per bit, each 0 or 1).
type Bits []byte

// Result bundles the spectrogram (useful to debugging callers outside
// the core) with the extracted fingerprint bit vectors.
type Result struct {
	Spectrogram  spectrogram.Matrix
	Fingerprints []Bits
}

// Create builds the spectrogram for pcm and slides a non-overlapping
// T-frame window across time, Haar-decomposing and top-wavelet-encoding
// each full tile. A clip shorter than one tile returns an empty
// fingerprint list, not an error: callers must treat that as "not
// indexable".
func Create(pcm []float64, cfg *config.FingerprintConfig) (*Result, error) {
	T := cfg.FingerprintSize

	specOpts := spectrogram.Options{
		SampleRate:     cfg.SampleRate,
		WindowSize:     cfg.WindowSize,
		Overlap:        cfg.Overlap,
		Bins:           T, // square tile: W == T
		StartFrequency: cfg.StartFrequency,
		EndFrequency:   cfg.EndFrequency,
		LogBase:        cfg.LogBase,
	}

	spect, err := spectrogram.Build(pcm, specOpts)
	if err != nil {
		if errors.Is(err, apierrors.AudioTooShort) {
			return &Result{}, nil // empty list, not an error
		}
		return nil, err
	}

	tileCount := len(spect) / T
	fingerprints := make([]Bits, 0, tileCount)

	for i := 0; i < tileCount; i++ {
		tile := wavelet.NewTile(T)
		base := i * T
		for r := 0; r < T; r++ {
			row := spect[base+r]
			for c := 0; c < T; c++ {
				tile.Set(r, c, row[c])
			}
		}

		normalizeTile(tile)
		wavelet.Transform(tile)
		bits := wavelet.EncodeTopWavelets(tile, cfg.TopWavelets)
		fingerprints = append(fingerprints, Bits(bits))
	}

	return &Result{Spectrogram: spect, Fingerprints: fingerprints}, nil
}

// normalizeTile zero-means and unit-scales a tile's log-magnitude values
// before Haar decomposition, the same amplitude-normalization step the
// spectrogram/fingerprint pipelines in this space apply before any
// transform: it keeps the top-wavelet coefficients comparable across
// clips recorded at different gain levels instead of letting absolute
// loudness dominate which coefficients rank as "top".
func normalizeTile(t *wavelet.Tile) {
	n := len(t.Data)
	if n == 0 {
		return
	}

	var mean float64
	for _, v := range t.Data {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	for i, v := range t.Data {
		d := v - mean
		t.Data[i] = d
		variance += d * d
	}
	variance /= float64(n)

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return
	}
	for i, v := range t.Data {
		t.Data[i] = v / stddev
	}
}
