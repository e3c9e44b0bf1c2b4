// Package audio is the PCM-producing I/O layer: decoding and resampling
// compressed audio files into the mono float64 PCM stream the
// fingerprint service consumes, delegating actual decode/resample work
// to github.com/faiface/beep and its format-specific decoders.
package audio

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	"github.com/media-luna/sonora/utils/apierrors"
)

// Decode opens the audio file at path, decodes it with the
// format-appropriate beep decoder (selected by extension), resamples to
// sampleRate, and returns a single mono float64 PCM slice.
func Decode(path string, sampleRate int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.TagStoreRead, err, "opening audio file %s", path)
	}
	defer f.Close()

	streamer, format, err := decodeByExtension(path, f)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	resampled := beep.Resample(4, format.SampleRate, beep.SampleRate(sampleRate), streamer)
	return toMonoPCM(resampled), nil
}

func decodeByExtension(path string, f io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		s, format, err := wav.Decode(f)
		return s, format, wrapDecodeErr(err, path)
	case ".mp3":
		s, format, err := mp3.Decode(f)
		return s, format, wrapDecodeErr(err, path)
	case ".flac":
		s, format, err := flac.Decode(f)
		return s, format, wrapDecodeErr(err, path)
	default:
		return nil, beep.Format{}, apierrors.InvalidConfigf("unsupported audio file extension: %s", path)
	}
}

func wrapDecodeErr(err error, path string) error {
	if err == nil {
		return nil
	}
	return apierrors.Wrap(apierrors.TagStoreRead, err, "decoding audio file %s", path)
}

// monoStreamer adapts an already-decoded mono float64 slice into a
// beep.Streamer, letting Resample reuse the same beep.Resample path
// Decode uses for files on PCM that arrived without a beep.Format, such
// as a live microphone capture.
type monoStreamer struct {
	data []float64
	pos  int
}

func (s *monoStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if s.pos >= len(s.data) {
			return i, i > 0
		}
		v := s.data[s.pos]
		samples[i][0] = v
		samples[i][1] = v
		s.pos++
		n++
	}
	return n, true
}

func (s *monoStreamer) Err() error { return nil }

// Resample converts mono float64 PCM captured at "from" Hz to "to" Hz,
// using the same beep.Resample quality Decode applies to decoded files.
// Callers feeding live-captured audio into the fingerprinting pipeline
// need this: the pipeline assumes PCM already arrives at
// cfg.Fingerprint.SampleRate, which rarely matches a capture device's
// native rate.
func Resample(pcm []float64, from, to int) []float64 {
	if from == to || len(pcm) == 0 {
		return pcm
	}
	resampled := beep.Resample(4, beep.SampleRate(from), beep.SampleRate(to), &monoStreamer{data: pcm})
	return toMonoPCM(resampled)
}

// toMonoPCM drains a beep streamer into a single-channel float64 slice,
// averaging stereo channels down to mono.
func toMonoPCM(streamer beep.Streamer) []float64 {
	const chunk = 4096
	buf := make([][2]float64, chunk)
	var out []float64

	for {
		n, ok := streamer.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	return out
}

// FileHash returns the hex-encoded SHA-1 digest of a file's contents,
// used by the facade's duplicate-detection cleanup.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apierrors.Wrap(apierrors.TagStoreRead, err, "opening file for hashing %s", path)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", apierrors.Wrap(apierrors.TagStoreRead, err, "hashing file %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
