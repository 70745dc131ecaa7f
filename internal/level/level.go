package level

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Kind identifies an input-level warning category.
type Kind int

const (
	KindSilence Kind = iota
	KindLowLevel
	KindClipping
)

// String returns the warning category name.
func (k Kind) String() string {
	switch k {
	case KindSilence:
		return "silence"
	case KindLowLevel:
		return "low_level"
	case KindClipping:
		return "clipping"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Measurement holds normalized level readings for one audio frame.
// Both values are in the 0.0-1.0 range where 1.0 is full scale.
type Measurement struct {
	RMS  float64 `json:"rms"`
	Peak float64 `json:"peak"`
}

// Alert is a single input-level warning. Sustained is only set for silence
// alerts and reports how long the input has been below the silence floor.
type Alert struct {
	Kind      Kind          `json:"kind"`
	Level     float64       `json:"level"`
	Sustained time.Duration `json:"sustained,omitempty"`
	At        time.Time     `json:"at"`
}

// String returns a human-readable representation of the alert.
func (a Alert) String() string {
	if a.Kind == KindSilence {
		return fmt.Sprintf("Alert{Kind:%s, Level:%.4f, Sustained:%s}", a.Kind, a.Level, a.Sustained)
	}
	return fmt.Sprintf("Alert{Kind:%s, Level:%.4f}", a.Kind, a.Level)
}

// Config holds the monitor thresholds. Thresholds are normalized levels;
// SilenceHold is how long the input must stay below the silence floor before
// a silence alert fires; Throttle is the minimum gap between two alerts of
// the same kind.
type Config struct {
	SilenceThreshold float64
	LowThreshold     float64
	ClipThreshold    float64
	SilenceHold      time.Duration
	Throttle         time.Duration
}

// DefaultConfig returns the monitor defaults: silence floor at -40 dBFS
// equivalent, 3s silence hold, 5s per-kind throttle.
func DefaultConfig() Config {
	return Config{
		SilenceThreshold: 0.01,
		LowThreshold:     0.05,
		ClipThreshold:    0.99,
		SilenceHold:      3 * time.Second,
		Throttle:         5 * time.Second,
	}
}

// Monitor tracks input levels across frames and raises alerts. Each warning
// kind throttles independently, so a clipping alert never suppresses a
// pending silence alert.
type Monitor struct {
	cfg Config

	// Detection state
	silenceStart time.Time
	lastFired    map[Kind]time.Time

	// Statistics
	observations   uint64
	alertCounts    map[Kind]uint64
	lastAlert      time.Time
	lastObserved   Measurement
	lastObservedAt time.Time

	mu sync.Mutex
}

// MonitorStats is a snapshot of monitor activity.
type MonitorStats struct {
	Observations  uint64    `json:"observations"`
	SilenceAlerts uint64    `json:"silence_alerts"`
	LowAlerts     uint64    `json:"low_alerts"`
	ClipAlerts    uint64    `json:"clip_alerts"`
	LastAlert     time.Time `json:"last_alert"`
	LastRMS       float64   `json:"last_rms"`
	LastPeak      float64   `json:"last_peak"`
}

// NewMonitor creates a level monitor with validated thresholds.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > 1 {
		return nil, fmt.Errorf("silence threshold must be between 0 and 1, got %f", cfg.SilenceThreshold)
	}
	if cfg.LowThreshold < 0 || cfg.LowThreshold > 1 {
		return nil, fmt.Errorf("low threshold must be between 0 and 1, got %f", cfg.LowThreshold)
	}
	if cfg.ClipThreshold <= 0 || cfg.ClipThreshold > 1 {
		return nil, fmt.Errorf("clip threshold must be between 0 and 1, got %f", cfg.ClipThreshold)
	}
	if cfg.SilenceThreshold > cfg.LowThreshold {
		return nil, fmt.Errorf("silence threshold %f exceeds low threshold %f", cfg.SilenceThreshold, cfg.LowThreshold)
	}
	if cfg.SilenceHold <= 0 {
		return nil, fmt.Errorf("silence hold must be positive, got %s", cfg.SilenceHold)
	}
	if cfg.Throttle <= 0 {
		return nil, fmt.Errorf("throttle must be positive, got %s", cfg.Throttle)
	}

	return &Monitor{
		cfg:         cfg,
		lastFired:   make(map[Kind]time.Time),
		alertCounts: make(map[Kind]uint64),
	}, nil
}

// Measure computes normalized RMS and peak levels from little-endian PCM16
// audio. A trailing odd byte is ignored.
func Measure(pcm []byte) Measurement {
	sampleCount := len(pcm) / 2
	if sampleCount == 0 {
		return Measurement{}
	}

	var sumSquares float64
	var peak float64
	for i := 0; i < sampleCount; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		v := float64(s) / 32768.0
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	return Measurement{
		RMS:  math.Sqrt(sumSquares / float64(sampleCount)),
		Peak: peak,
	}
}

// Observe feeds one frame's measurement into the monitor and returns any
// alerts it raises. Passing timestamps explicitly keeps detection and
// throttling deterministic under test.
func (m *Monitor) Observe(meas Measurement, at time.Time) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.observations++
	m.lastObserved = meas
	m.lastObservedAt = at

	var alerts []Alert

	// Silence requires the level to stay below the floor for the full hold
	// duration before the first alert fires.
	if meas.RMS < m.cfg.SilenceThreshold {
		if m.silenceStart.IsZero() {
			m.silenceStart = at
		} else if sustained := at.Sub(m.silenceStart); sustained >= m.cfg.SilenceHold {
			if alert, ok := m.fire(KindSilence, meas.RMS, sustained, at); ok {
				alerts = append(alerts, alert)
			}
		}
	} else {
		m.silenceStart = time.Time{}

		if meas.RMS < m.cfg.LowThreshold {
			if alert, ok := m.fire(KindLowLevel, meas.RMS, 0, at); ok {
				alerts = append(alerts, alert)
			}
		}
	}

	if meas.Peak >= m.cfg.ClipThreshold {
		if alert, ok := m.fire(KindClipping, meas.Peak, 0, at); ok {
			alerts = append(alerts, alert)
		}
	}

	return alerts
}

// fire applies the per-kind throttle. Caller holds the lock.
func (m *Monitor) fire(kind Kind, level float64, sustained time.Duration, at time.Time) (Alert, bool) {
	last, fired := m.lastFired[kind]
	if fired && at.Sub(last) < m.cfg.Throttle {
		return Alert{}, false
	}

	m.lastFired[kind] = at
	m.alertCounts[kind]++
	m.lastAlert = at

	return Alert{Kind: kind, Level: level, Sustained: sustained, At: at}, true
}

// Reset clears detection state and statistics, keeping the configuration.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.silenceStart = time.Time{}
	m.lastFired = make(map[Kind]time.Time)
	m.alertCounts = make(map[Kind]uint64)
	m.observations = 0
	m.lastAlert = time.Time{}
	m.lastObserved = Measurement{}
	m.lastObservedAt = time.Time{}
}

// GetStats returns a snapshot of monitor activity.
func (m *Monitor) GetStats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MonitorStats{
		Observations:  m.observations,
		SilenceAlerts: m.alertCounts[KindSilence],
		LowAlerts:     m.alertCounts[KindLowLevel],
		ClipAlerts:    m.alertCounts[KindClipping],
		LastAlert:     m.lastAlert,
		LastRMS:       m.lastObserved.RMS,
		LastPeak:      m.lastObserved.Peak,
	}
}
