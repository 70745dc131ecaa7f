package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice capture pipeline
type Metrics struct {
	// Capture metrics
	ChunksCaptured prometheus.Counter
	BytesCaptured  prometheus.Counter
	LevelAlerts    *prometheus.CounterVec

	// Session channel metrics
	SessionsStarted    prometheus.Counter
	SessionDuration    prometheus.Histogram
	ChunksSent         prometheus.Counter
	BytesSent          prometheus.Counter
	ChunksBuffered     prometheus.Counter
	BufferBytes        prometheus.Gauge
	BufferEvictions    prometheus.Counter
	BufferOverflows    prometheus.Counter
	ReconnectAttempts  prometheus.Counter
	ReconnectExhausted prometheus.Counter
	DecodeErrors       prometheus.Counter

	// Transcript metrics
	InterimFragments prometheus.Counter
	FinalFragments   prometheus.Counter

	// Enrichment metrics
	SuggestionsReceived prometheus.Counter
	SuggestionsDeduped  prometheus.Counter

	// Fallback persistence metrics
	UploadRequests  prometheus.Counter
	UploadSuccesses prometheus.Counter
	UploadFailures  prometheus.Counter
	UploadRetries   prometheus.Counter
	UploadDuration  prometheus.Histogram
	NotesPending    prometheus.Gauge

	// Status endpoint metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Capture metrics
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_chunks_captured_total",
			Help: "Total number of audio chunks produced by capture",
		}),
		BytesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_bytes_captured_total",
			Help: "Total PCM bytes recorded",
		}),
		LevelAlerts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catchup_voice_level_alerts_total",
			Help: "Total input level alerts by kind",
		}, []string{"kind"}),

		// Session channel metrics
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_sessions_started_total",
			Help: "Total number of transcription sessions established",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catchup_voice_session_duration_seconds",
			Help:    "Duration of recording sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68 minutes
		}),
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_chunks_sent_total",
			Help: "Total number of audio chunks written to the session channel",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_bytes_sent_total",
			Help: "Total audio bytes written to the session channel",
		}),
		ChunksBuffered: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_chunks_buffered_total",
			Help: "Total number of audio chunks queued while disconnected",
		}),
		BufferBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "catchup_voice_buffer_bytes",
			Help: "Current bytes held in the chunk buffer",
		}),
		BufferEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_buffer_evictions_total",
			Help: "Total number of buffered chunks evicted oldest-first",
		}),
		BufferOverflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_buffer_overflows_total",
			Help: "Total number of chunks dropped for exceeding the buffer cap",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_reconnect_attempts_total",
			Help: "Total number of session reconnect attempts",
		}),
		ReconnectExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_reconnect_exhausted_total",
			Help: "Total number of sessions that gave up reconnecting",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_decode_errors_total",
			Help: "Total number of inbound frames that failed to decode",
		}),

		// Transcript metrics
		InterimFragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_interim_fragments_total",
			Help: "Total number of interim transcript fragments received",
		}),
		FinalFragments: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_final_fragments_total",
			Help: "Total number of final transcript fragments received",
		}),

		// Enrichment metrics
		SuggestionsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_suggestions_received_total",
			Help: "Total number of enrichment suggestions received",
		}),
		SuggestionsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_suggestions_deduped_total",
			Help: "Total number of duplicate suggestions discarded",
		}),

		// Fallback persistence metrics
		UploadRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_upload_requests_total",
			Help: "Total number of fallback upload requests",
		}),
		UploadSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_upload_successes_total",
			Help: "Total number of successful fallback uploads",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_upload_failures_total",
			Help: "Total number of failed fallback uploads",
		}),
		UploadRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "catchup_voice_upload_retries_total",
			Help: "Total number of fallback upload retries",
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "catchup_voice_upload_duration_seconds",
			Help:    "Duration of fallback upload requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		NotesPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "catchup_voice_notes_pending",
			Help: "Current number of notes awaiting upload retry",
		}),

		// Status endpoint metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catchup_voice_http_requests_total",
			Help: "Total number of status endpoint requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catchup_voice_http_request_duration_seconds",
			Help:    "Duration of status endpoint requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordChunkCaptured records one captured chunk and its size
func (m *Metrics) RecordChunkCaptured(sizeBytes int) {
	m.ChunksCaptured.Inc()
	m.BytesCaptured.Add(float64(sizeBytes))
}

// RecordLevelAlert increments the alert counter for a warning kind
func (m *Metrics) RecordLevelAlert(kind string) {
	m.LevelAlerts.WithLabelValues(kind).Inc()
}

// RecordSessionStarted increments the established sessions counter
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// ObserveSessionDuration records the duration of a finished session
func (m *Metrics) ObserveSessionDuration(seconds float64) {
	m.SessionDuration.Observe(seconds)
}

// RecordChunkSent records one chunk written to the channel
func (m *Metrics) RecordChunkSent(sizeBytes int) {
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(sizeBytes))
}

// RecordChunkBuffered records one chunk queued while disconnected
func (m *Metrics) RecordChunkBuffered() {
	m.ChunksBuffered.Inc()
}

// SetBufferBytes sets the current chunk buffer size
func (m *Metrics) SetBufferBytes(bytes int64) {
	m.BufferBytes.Set(float64(bytes))
}

// RecordBufferEvictions records chunks evicted to make room
func (m *Metrics) RecordBufferEvictions(count int) {
	m.BufferEvictions.Add(float64(count))
}

// RecordBufferOverflow records a chunk dropped for exceeding the cap
func (m *Metrics) RecordBufferOverflow() {
	m.BufferOverflows.Inc()
}

// RecordReconnectAttempt increments the reconnect attempts counter
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordReconnectExhausted increments the gave-up counter
func (m *Metrics) RecordReconnectExhausted() {
	m.ReconnectExhausted.Inc()
}

// RecordDecodeError increments the inbound decode error counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordInterimFragment increments the interim fragment counter
func (m *Metrics) RecordInterimFragment() {
	m.InterimFragments.Inc()
}

// RecordFinalFragment increments the final fragment counter
func (m *Metrics) RecordFinalFragment() {
	m.FinalFragments.Inc()
}

// RecordSuggestions records received and deduplicated suggestion counts
func (m *Metrics) RecordSuggestions(received, deduped int) {
	m.SuggestionsReceived.Add(float64(received))
	m.SuggestionsDeduped.Add(float64(deduped))
}

// RecordUploadRequest increments the upload requests counter
func (m *Metrics) RecordUploadRequest() {
	m.UploadRequests.Inc()
}

// RecordUploadSuccess records a successful upload
func (m *Metrics) RecordUploadSuccess(durationSeconds float64) {
	m.UploadSuccesses.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordUploadFailure records a failed upload
func (m *Metrics) RecordUploadFailure(durationSeconds float64) {
	m.UploadFailures.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordUploadRetry increments the upload retry counter
func (m *Metrics) RecordUploadRetry() {
	m.UploadRetries.Inc()
}

// SetNotesPending sets the pending notes gauge
func (m *Metrics) SetNotesPending(count int) {
	m.NotesPending.Set(float64(count))
}

// RecordHTTPRequest records a status endpoint request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
