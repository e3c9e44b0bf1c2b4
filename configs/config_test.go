package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoFingerprintSize(t *testing.T) {
	cfg := Default()
	cfg.Fingerprint.FingerprintSize = 63
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two fingerprint_size")
	}
}

func TestValidateRejectsMismatchedSignatureLayout(t *testing.T) {
	cfg := Default()
	cfg.LSH.SignatureLength = 99
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when signature_length != hash_tables*hash_keys_per_table")
	}
}

func TestValidateRejectsThresholdAboveHashTables(t *testing.T) {
	cfg := Default()
	cfg.LSH.ThresholdTables = cfg.LSH.HashTables + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when threshold_tables exceeds hash_tables")
	}
}

func TestValidateRejectsBadFrequencyRange(t *testing.T) {
	cfg := Default()
	cfg.Fingerprint.StartFrequency = 2000
	cfg.Fingerprint.EndFrequency = 318
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when start_frequency >= end_frequency")
	}
}

func TestFingerprintBits(t *testing.T) {
	cfg := Default()
	got := cfg.FingerprintBits()
	want := 2 * cfg.Fingerprint.FingerprintSize * cfg.Fingerprint.FingerprintSize
	if got != want {
		t.Errorf("FingerprintBits() = %d, want %d", got, want)
	}
}

func TestLoadConfigRejectsMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
