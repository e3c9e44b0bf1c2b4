package fingerprint

import (
	"math"
	"testing"

	config "github.com/media-luna/sonora/configs"
)

func sineWave(freq float64, sampleRate, samples int) []float64 {
	pcm := make([]float64, samples)
	for i := range pcm {
		pcm[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return pcm
}

func testConfig() *config.FingerprintConfig {
	return &config.FingerprintConfig{
		SampleRate:      5512,
		WindowSize:      1024,
		Overlap:         512,
		FingerprintSize: 32,
		StartFrequency:  318,
		EndFrequency:    2000,
		TopWavelets:     20,
		LogBase:         2,
	}
}

func TestCreateProducesFingerprintsForLongClip(t *testing.T) {
	cfg := testConfig()
	pcm := sineWave(440, cfg.SampleRate, cfg.SampleRate*10) // 10 seconds

	result, err := Create(pcm, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fingerprints) == 0 {
		t.Fatal("expected at least one fingerprint for a 10s clip")
	}

	expectedBits := 2 * cfg.FingerprintSize * cfg.FingerprintSize
	for i, fp := range result.Fingerprints {
		if len(fp) != expectedBits {
			t.Errorf("fingerprint %d: expected %d bits, got %d", i, expectedBits, len(fp))
		}
	}
}

func TestCreateReturnsEmptyForShortClip(t *testing.T) {
	cfg := testConfig()
	pcm := sineWave(440, cfg.SampleRate, 100) // far shorter than one STFT window

	result, err := Create(pcm, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Fingerprints) != 0 {
		t.Errorf("expected empty fingerprint list, got %d", len(result.Fingerprints))
	}
}

func TestCreateIsDeterministic(t *testing.T) {
	cfg := testConfig()
	pcm := sineWave(440, cfg.SampleRate, cfg.SampleRate*5)

	r1, err := Create(pcm, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Create(pcm, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(r1.Fingerprints) != len(r2.Fingerprints) {
		t.Fatalf("fingerprint counts differ: %d vs %d", len(r1.Fingerprints), len(r2.Fingerprints))
	}
	for i := range r1.Fingerprints {
		a, b := r1.Fingerprints[i], r2.Fingerprints[i]
		for j := range a {
			if a[j] != b[j] {
				t.Fatalf("fingerprint %d differs at bit %d", i, j)
			}
		}
	}
}
