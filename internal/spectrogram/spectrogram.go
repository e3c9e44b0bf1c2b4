// Package spectrogram builds the log-magnitude, log-frequency spectrogram
// that feeds the Haar/top-wavelet fingerprint pipeline.
//
// Frequencies are windowed with a Hann window and transformed per-frame
// with github.com/maddyblue/go-dsp/fft, then remapped from linear FFT
// bins onto a logarithmically spaced frequency grid.
package spectrogram

import (
	"math"

	"github.com/maddyblue/go-dsp/fft"
	"github.com/maddyblue/go-dsp/window"

	"github.com/media-luna/sonora/utils/apierrors"
)

// Options configures the STFT and log-frequency remapping.
type Options struct {
	SampleRate     int
	WindowSize     int
	Overlap        int // hop = WindowSize - Overlap
	Bins           int // W, number of output frequency bins per frame
	StartFrequency float64
	EndFrequency   float64
	LogBase        float64
}

// Matrix is a 2D log-magnitude spectrogram, S[t][b], rows contiguous in
// time, one row per STFT frame, Bins columns per row.
type Matrix [][]float64

// Build computes the STFT-based log-magnitude spectrogram of pcm on a
// logarithmic frequency grid with opts.Bins bins between
// opts.StartFrequency and opts.EndFrequency.
func Build(pcm []float64, opts Options) (Matrix, error) {
	hop := opts.WindowSize - opts.Overlap
	if hop <= 0 {
		return nil, apierrors.InvalidConfigf("overlap (%d) must be smaller than window_size (%d)", opts.Overlap, opts.WindowSize)
	}
	if len(pcm) < opts.WindowSize {
		return nil, apierrors.AudioTooShort
	}

	frameCount := 1 + (len(pcm)-opts.WindowSize)/hop
	win := window.Hann(opts.WindowSize)
	bands := logBands(opts)

	out := make(Matrix, frameCount)
	frame := make([]float64, opts.WindowSize)

	for t := 0; t < frameCount; t++ {
		start := t * hop
		for i := 0; i < opts.WindowSize; i++ {
			frame[i] = pcm[start+i] * win[i]
		}

		spectrum := fft.FFTReal(frame)
		mags := magnitudes(spectrum)

		row := make([]float64, opts.Bins)
		for b, band := range bands {
			row[b] = meanMagnitude(mags, band)
		}
		out[t] = row
	}

	return out, nil
}

// band is a half-open range of FFT bin indices [Start, End).
type band struct {
	Start, End int
}

// logBands maps opts.Bins bins logarithmically between StartFrequency and
// EndFrequency onto FFT bin index ranges: bin i boundaries are
// startFreq * base^(i*delta), delta = (log_base end - log_base start)/W.
func logBands(opts Options) []band {
	nyquist := float64(opts.SampleRate) / 2
	fftBins := opts.WindowSize / 2

	logStart := logBase(opts.StartFrequency, opts.LogBase)
	logEnd := logBase(opts.EndFrequency, opts.LogBase)
	delta := (logEnd - logStart) / float64(opts.Bins)

	freqToBin := func(f float64) int {
		if f >= nyquist {
			return fftBins - 1
		}
		idx := int(f / nyquist * float64(fftBins))
		if idx < 0 {
			idx = 0
		}
		if idx >= fftBins {
			idx = fftBins - 1
		}
		return idx
	}

	bands := make([]band, opts.Bins)
	for i := 0; i < opts.Bins; i++ {
		lo := opts.StartFrequency * math.Pow(opts.LogBase, float64(i)*delta)
		hi := opts.StartFrequency * math.Pow(opts.LogBase, float64(i+1)*delta)
		bands[i] = band{Start: freqToBin(lo), End: freqToBin(hi)}
		if bands[i].End <= bands[i].Start {
			bands[i].End = bands[i].Start + 1
		}
	}
	return bands
}

func logBase(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}

func magnitudes(spectrum []complex128) []float64 {
	out := make([]float64, len(spectrum)/2+1)
	for i := range out {
		re := real(spectrum[i])
		im := imag(spectrum[i])
		out[i] = math.Sqrt(re*re + im*im)
	}
	return out
}

// meanMagnitude averages the magnitudes over the FFT indices in b, then
// log-compresses the result.
func meanMagnitude(mags []float64, b band) float64 {
	end := b.End
	if end > len(mags) {
		end = len(mags)
	}
	if b.Start >= end {
		return logMag(0)
	}
	sum := 0.0
	for i := b.Start; i < end; i++ {
		sum += mags[i]
	}
	mean := sum / float64(end-b.Start)
	return logMag(mean)
}

func logMag(m float64) float64 {
	const eps = 1e-10
	return math.Log(m + eps)
}
