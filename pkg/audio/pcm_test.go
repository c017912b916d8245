package audio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}

	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 48kHz -> 16kHz (3:1 ratio)
	samples := make([]int16, 960) // 20ms at 48kHz
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 48000, 16000)

	expectedLen := 320
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 24kHz -> 48kHz (1:2 ratio)
	samples := make([]int16, 480) // 20ms at 24kHz
	for i := range samples {
		samples[i] = int16(i * 10)
	}

	result := Resample(samples, 24000, 48000)

	expectedLen := 960
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Empty(t *testing.T) {
	result := Resample(nil, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}

	result = Resample([]int16{}, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for empty input")
	}
}

func TestBytesToSamples(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03}
	samples := BytesToSamples(data)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	if samples[0] != 0x0102 {
		t.Errorf("Sample 0: expected 0x0102, got 0x%04x", samples[0])
	}

	if samples[1] != 0x0304 {
		t.Errorf("Sample 1: expected 0x0304, got 0x%04x", samples[1])
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0x0102, 0x0304}
	data := SamplesToBytes(samples)

	if len(data) != 4 {
		t.Fatalf("Expected 4 bytes, got %d", len(data))
	}

	expected := []byte{0x02, 0x01, 0x04, 0x03}
	for i, b := range expected {
		if data[i] != b {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, 300, 400}
	mono := StereoToMono(stereo)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(mono))
	}

	// (100+200)/2 = 150, (300+400)/2 = 350
	expected := []int16{150, 350}
	for i, s := range expected {
		if mono[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, mono[i])
		}
	}
}

func TestEnergy(t *testing.T) {
	// Silence
	e := Energy([]int16{0, 0, 0})
	if e != 0 {
		t.Errorf("Expected energy 0 for silence, got %f", e)
	}

	// Full scale
	samples := []int16{32767, 32767, 32767}
	e = Energy(samples)
	if e < 0.99 || e > 1.01 {
		t.Errorf("Expected energy ~1.0 for full scale, got %f", e)
	}

	// Half scale is a quarter of the energy, not half: the scale is
	// mean-square, not RMS amplitude.
	e = Energy([]int16{16384, 16384, 16384})
	if e < 0.24 || e > 0.26 {
		t.Errorf("Expected energy ~0.25 for half scale, got %f", e)
	}

	// Empty
	e = Energy(nil)
	if e != 0 {
		t.Errorf("Expected energy 0 for empty, got %f", e)
	}
}

func TestResampleBytes(t *testing.T) {
	// Create 20ms of 48kHz audio (960 samples)
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	data := SamplesToBytes(samples)

	// Resample to 16kHz
	result := ResampleBytes(data, 48000, 16000)

	expectedBytes := 320 * 2
	if len(result) != expectedBytes {
		t.Errorf("Expected %d bytes, got %d", expectedBytes, len(result))
	}
}

func BenchmarkResample_3x(b *testing.B) {
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = int16(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Resample(samples, 48000, 16000)
	}
}
