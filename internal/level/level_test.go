package level

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		SilenceThreshold: 0.01,
		LowThreshold:     0.05,
		ClipThreshold:    0.99,
		SilenceHold:      3 * time.Second,
		Throttle:         5 * time.Second,
	}
}

func TestNewMonitorValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:        "silence threshold above 1",
			mutate:      func(c *Config) { c.SilenceThreshold = 1.5 },
			expectError: true,
		},
		{
			name:        "silence threshold above low threshold",
			mutate:      func(c *Config) { c.SilenceThreshold = 0.2 },
			expectError: true,
		},
		{
			name:        "zero clip threshold",
			mutate:      func(c *Config) { c.ClipThreshold = 0 },
			expectError: true,
		},
		{
			name:        "zero silence hold",
			mutate:      func(c *Config) { c.SilenceHold = 0 },
			expectError: true,
		},
		{
			name:        "negative throttle",
			mutate:      func(c *Config) { c.Throttle = -time.Second },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewMonitor(cfg)
			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name         string
		pcm          []byte
		expectedRMS  float64
		expectedPeak float64
	}{
		{
			name:         "empty frame",
			pcm:          nil,
			expectedRMS:  0,
			expectedPeak: 0,
		},
		{
			name:         "digital silence",
			pcm:          make([]byte, 320),
			expectedRMS:  0,
			expectedPeak: 0,
		},
		{
			name:         "full scale square wave",
			pcm:          constantPCM(16000, 160),
			expectedRMS:  16000.0 / 32768.0,
			expectedPeak: 16000.0 / 32768.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Measure(tt.pcm)
			if math.Abs(m.RMS-tt.expectedRMS) > 1e-9 {
				t.Errorf("Expected RMS %f, got %f", tt.expectedRMS, m.RMS)
			}
			if math.Abs(m.Peak-tt.expectedPeak) > 1e-9 {
				t.Errorf("Expected peak %f, got %f", tt.expectedPeak, m.Peak)
			}
		})
	}
}

func TestMeasureIgnoresTrailingByte(t *testing.T) {
	even := constantPCM(8000, 10)
	odd := append(constantPCM(8000, 10), 0x7F)

	if Measure(even) != Measure(odd) {
		t.Errorf("Expected trailing odd byte to be ignored")
	}
}

// Silence sustained past the hold fires exactly one alert, and the next one
// only after the throttle window elapses.
func TestSilenceSustainedFiresOncePerWindow(t *testing.T) {
	monitor, err := NewMonitor(testConfig())
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	quiet := Measurement{RMS: 0.001, Peak: 0.002}

	var fired []Alert
	// 8 seconds of silent frames at 100ms cadence.
	for i := 0; i <= 80; i++ {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		fired = append(fired, monitor.Observe(quiet, at)...)
	}

	if len(fired) != 2 {
		t.Fatalf("Expected 2 silence alerts over 8s (hold 3s, throttle 5s), got %d", len(fired))
	}

	first, second := fired[0], fired[1]
	if first.Kind != KindSilence || second.Kind != KindSilence {
		t.Errorf("Expected silence alerts, got %s and %s", first.Kind, second.Kind)
	}
	if first.Sustained < 3*time.Second {
		t.Errorf("Expected first alert sustained >= 3s, got %s", first.Sustained)
	}
	if gap := second.At.Sub(first.At); gap < 5*time.Second {
		t.Errorf("Expected throttle gap >= 5s between alerts, got %s", gap)
	}
}

func TestSilenceOnsetResetsOnVoice(t *testing.T) {
	monitor, err := NewMonitor(testConfig())
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	quiet := Measurement{RMS: 0.001}
	voice := Measurement{RMS: 0.3}

	// 2.9s of silence, a voiced frame, then 2.9s of silence again. Neither
	// run reaches the 3s hold so no alert may fire.
	at := base
	for i := 0; i < 29; i++ {
		if got := monitor.Observe(quiet, at); len(got) != 0 {
			t.Fatalf("Unexpected alert before hold elapsed: %v", got)
		}
		at = at.Add(100 * time.Millisecond)
	}
	monitor.Observe(voice, at)
	at = at.Add(100 * time.Millisecond)
	for i := 0; i < 29; i++ {
		if got := monitor.Observe(quiet, at); len(got) != 0 {
			t.Fatalf("Unexpected alert after voice reset: %v", got)
		}
		at = at.Add(100 * time.Millisecond)
	}
}

func TestThrottleIsIndependentPerKind(t *testing.T) {
	monitor, err := NewMonitor(testConfig())
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	// A clipping alert first.
	got := monitor.Observe(Measurement{RMS: 0.5, Peak: 1.0}, base)
	if len(got) != 1 || got[0].Kind != KindClipping {
		t.Fatalf("Expected a clipping alert, got %v", got)
	}

	// A low-level frame right after: the clipping throttle must not
	// suppress the low-level alert.
	got = monitor.Observe(Measurement{RMS: 0.02, Peak: 0.03}, base.Add(100*time.Millisecond))
	if len(got) != 1 || got[0].Kind != KindLowLevel {
		t.Fatalf("Expected a low level alert despite recent clipping alert, got %v", got)
	}

	// Another clipping frame inside the clipping throttle window stays quiet.
	got = monitor.Observe(Measurement{RMS: 0.5, Peak: 1.0}, base.Add(200*time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("Expected clipping alert to be throttled, got %v", got)
	}
}

func TestClippingFiresImmediately(t *testing.T) {
	monitor, err := NewMonitor(testConfig())
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	got := monitor.Observe(Measurement{RMS: 0.7, Peak: 0.995}, time.Now())
	if len(got) != 1 {
		t.Fatalf("Expected exactly one alert, got %d", len(got))
	}
	if got[0].Kind != KindClipping {
		t.Errorf("Expected clipping alert, got %s", got[0].Kind)
	}
	if got[0].Sustained != 0 {
		t.Errorf("Expected no sustained duration on clipping alert, got %s", got[0].Sustained)
	}
}

func TestGetStatsCountsByKind(t *testing.T) {
	monitor, err := NewMonitor(testConfig())
	if err != nil {
		t.Fatalf("NewMonitor failed: %v", err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	monitor.Observe(Measurement{RMS: 0.5, Peak: 1.0}, base)
	monitor.Observe(Measurement{RMS: 0.02, Peak: 0.03}, base.Add(time.Second))

	stats := monitor.GetStats()
	if stats.Observations != 2 {
		t.Errorf("Expected 2 observations, got %d", stats.Observations)
	}
	if stats.ClipAlerts != 1 {
		t.Errorf("Expected 1 clipping alert, got %d", stats.ClipAlerts)
	}
	if stats.LowAlerts != 1 {
		t.Errorf("Expected 1 low level alert, got %d", stats.LowAlerts)
	}
	if stats.SilenceAlerts != 0 {
		t.Errorf("Expected 0 silence alerts, got %d", stats.SilenceAlerts)
	}

	monitor.Reset()
	stats = monitor.GetStats()
	if stats.Observations != 0 || stats.ClipAlerts != 0 {
		t.Errorf("Expected zeroed stats after reset, got %+v", stats)
	}
}

// constantPCM builds little-endian PCM16 with every sample set to value.
func constantPCM(value int16, samples int) []byte {
	pcm := make([]byte, 2*samples)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(value))
	}
	return pcm
}
