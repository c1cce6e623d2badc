package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "transcription") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(0, "transcription") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "transcription") {
		t.Error("same stage and bucket should not log again")
	}
	if !s.ShouldLog(0, "translation") {
		t.Error("different stage should log")
	}
	if s.lastStage != "translation" {
		t.Errorf("lastStage = %q, want translation", s.lastStage)
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(0, "transcription")
	if s.ShouldLog(7, "transcription") {
		t.Error("7% should not log (same bucket)")
	}
	if !s.ShouldLog(12, "transcription") {
		t.Error("12% should log (new bucket)")
	}
	if !s.ShouldLog(100, "transcription") {
		t.Error("100% should log")
	}
	if s.ShouldLog(140, "transcription") {
		t.Error("values over 100% share the final bucket")
	}
}

func TestProgressSamplerUnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(-1, "transcription") {
		t.Error("first call should log on stage change")
	}
	if s.ShouldLog(-1, "transcription") {
		t.Error("negative percent should not trigger bucket logging")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "transcription")
	s.Reset()
	if !s.ShouldLog(50, "transcription") {
		t.Error("expected log after reset")
	}
}
