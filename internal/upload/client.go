package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/version"
)

const maxBackoff = 30 * time.Second

// Config contains upload client configuration.
type Config struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Request is one voice note to persist: the WAV artifact plus the locally
// assembled transcript and its metadata.
type Request struct {
	NoteID     string
	Transcript string
	Audio      []byte // WAV-encoded artifact
	Duration   time.Duration
	CreatedAt  time.Time
	Language   string
}

// Receipt is the persistence API's acknowledgement of a stored note.
type Receipt struct {
	NoteID   string    `json:"noteId"`
	StoredAt time.Time `json:"storedAt"`
}

// ClientStats represents upload client statistics.
type ClientStats struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	SuccessRate     float64 `json:"success_rate"`
	TotalRetries    uint64  `json:"total_retries"`
}

// Client posts voice notes to the persistence endpoint with bounded retries.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	metrics     *metrics.Metrics
	logger      *slog.Logger
	backoffBase time.Duration

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64

	mu sync.RWMutex
}

// NewClient creates an upload client. An empty API key sends no
// Authorization header, matching the session dialer.
func NewClient(cfg Config, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("upload endpoint cannot be empty")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		cfg:         cfg,
		httpClient:  httpClient,
		metrics:     m,
		logger:      logger,
		backoffBase: time.Second,
	}, nil
}

// Upload persists one note, retrying transient failures with exponential
// backoff. It returns the server receipt on success and the last error once
// retries are exhausted or a non-retryable failure occurs.
func (c *Client) Upload(ctx context.Context, req *Request) (*Receipt, error) {
	if req == nil {
		return nil, fmt.Errorf("upload request must not be nil")
	}
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("upload request has no audio")
	}

	startTime := time.Now()
	c.incrementTotalRequests()
	c.metrics.RecordUploadRequest()

	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()
			c.metrics.RecordUploadRetry()

			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * c.backoffBase
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			c.logger.Warn("Upload retrying",
				slog.String("note_id", req.NoteID),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.incrementFailedRequests()
				c.metrics.RecordUploadFailure(time.Since(startTime).Seconds())
				return nil, ctx.Err()
			}
		}

		receipt, err := c.doRequest(ctx, req)
		if err == nil {
			c.incrementSuccessRequests()
			c.metrics.RecordUploadSuccess(time.Since(startTime).Seconds())
			c.logger.Info("Voice note uploaded",
				slog.String("note_id", req.NoteID),
				slog.Int("audio_bytes", len(req.Audio)),
				slog.Duration("took", time.Since(startTime)),
			)
			return receipt, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	c.metrics.RecordUploadFailure(time.Since(startTime).Seconds())
	return nil, fmt.Errorf("upload failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// doRequest performs a single HTTP POST to the persistence API.
func (c *Client) doRequest(ctx context.Context, req *Request) (*Receipt, error) {
	body, contentType, err := createMultipartRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "catchup-voice/"+version.Version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var receipt Receipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if receipt.NoteID == "" {
		receipt.NoteID = req.NoteID
	}

	return &receipt, nil
}

// createMultipartRequest builds the multipart/form-data body: the WAV file
// part plus transcript and metadata fields.
func createMultipartRequest(req *Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", req.NoteID+".wav")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"note_id":    req.NoteID,
		"transcript": req.Transcript,
		"duration":   fmt.Sprintf("%.3f", req.Duration.Seconds()),
		"created_at": req.CreatedAt.Format(time.RFC3339),
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// isRetryableError reports whether the upload should be attempted again:
// timeouts, connection-level failures, and 5xx/429 responses.
func isRetryableError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := err.Error()

	// 5xx server errors are retryable.
	if strings.Contains(errStr, "HTTP error 5") {
		return true
	}

	// Rate limiting (429) is retryable.
	if strings.Contains(errStr, "HTTP error 429") {
		return true
	}

	// Network/connection errors are typically retryable.
	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// GetStats returns current client statistics.
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
	}
}
