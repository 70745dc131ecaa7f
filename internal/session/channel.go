package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kaivalyagandhi/catchup-app-sub002/internal/metrics"
	"github.com/kaivalyagandhi/catchup-app-sub002/internal/wire"
)

// Session channel errors.
var (
	ErrHandshakeTimeout = errors.New("session handshake timed out")
	ErrChannelStopped   = errors.New("session channel stopped")
)

// State represents the channel connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Conn is the subset of a WebSocket connection the channel needs.
// *websocket.Conn satisfies it directly; tests inject fakes.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens a connection to the session endpoint.
type Dialer interface {
	DialContext(ctx context.Context, endpoint string) (Conn, error)
}

type wsDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

func (d *wsDialer) DialContext(ctx context.Context, endpoint string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, endpoint, d.header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewWebSocketDialer returns the production dialer. A non-empty apiKey is
// sent as a bearer token on the upgrade request.
func NewWebSocketDialer(apiKey string) Dialer {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	return &wsDialer{
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		header: header,
	}
}

// TranscriptSink consumes transcript fragments in arrival order.
type TranscriptSink interface {
	AddInterim(text string, confidence float64)
	Finalize(text string, confidence float64)
}

// EnrichmentSink consumes enrichment suggestions and the authoritative
// end-of-session proposal.
type EnrichmentSink interface {
	ApplyUpdate(suggestions []wire.Suggestion)
	AdoptAuthoritative(proposal []wire.ContactProposal)
}

// Event is implemented by everything the channel emits on Events().
type Event interface {
	isSessionEvent()
}

// StateChangedEvent reports a connection state transition. Attempt is only
// set while reconnecting.
type StateChangedEvent struct {
	State   State
	Attempt int
}

// BufferOverflowEvent reports a chunk too large for the buffer cap. The
// buffer was cleared; recording continues without streaming that audio.
type BufferOverflowEvent struct {
	ChunkBytes int64
	Limit      int64
}

// ReconnectExhaustedEvent reports that automatic reconnection gave up. The
// channel stays permanently disconnected; capture is unaffected.
type ReconnectExhaustedEvent struct {
	Attempts int
}

// StatusEvent passes through a server-side connection status report.
type StatusEvent struct {
	Status  string
	Attempt int
}

// ServerErrorEvent carries a server error message for the UI.
type ServerErrorEvent struct {
	Message string
}

func (StateChangedEvent) isSessionEvent()       {}
func (BufferOverflowEvent) isSessionEvent()     {}
func (ReconnectExhaustedEvent) isSessionEvent() {}
func (StatusEvent) isSessionEvent()             {}
func (ServerErrorEvent) isSessionEvent()        {}

// Config holds session channel settings.
type Config struct {
	Endpoint         string
	APIKey           string
	LanguageCode     string
	ContextContacts  []wire.ContactRef
	HandshakeTimeout time.Duration
	StopTimeout      time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	MaxAttempts      int
	BufferLimit      int64
}

// DefaultConfig returns the production defaults: 10s handshake, 1s initial
// backoff doubling to a 10s cap over 3 attempts, 100MB chunk buffer.
func DefaultConfig() Config {
	return Config{
		LanguageCode:     "en-US",
		HandshakeTimeout: 10 * time.Second,
		StopTimeout:      5 * time.Second,
		InitialBackoff:   time.Second,
		MaxBackoff:       10 * time.Second,
		MaxAttempts:      3,
		BufferLimit:      100 * 1024 * 1024,
	}
}

// Validate checks the channel settings.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.LanguageCode == "" {
		return fmt.Errorf("language code must not be empty")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive, got %s", c.HandshakeTimeout)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be positive, got %s", c.StopTimeout)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial backoff must be positive, got %s", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max backoff %s below initial backoff %s", c.MaxBackoff, c.InitialBackoff)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BufferLimit <= 0 {
		return fmt.Errorf("buffer limit must be positive, got %d", c.BufferLimit)
	}
	return nil
}

// Channel owns the duplex connection for one recording session. Chunks sent
// before the handshake completes, or while reconnecting, queue in the chunk
// buffer and flush in capture order once the channel is established.
type Channel struct {
	cfg         Config
	dialer      Dialer
	transcripts TranscriptSink
	enrichments EnrichmentSink
	metrics     *metrics.Metrics
	logger      *slog.Logger

	buffer *ChunkBuffer
	events chan Event

	// Connection state, guarded by mu.
	state       State
	attempt     int
	conn        Conn
	sessionID   string
	established bool
	stopped     bool
	finalized   *wire.SessionFinalized
	chunksSent  uint64
	bytesSent   uint64
	reconnects  uint64
	mu          sync.Mutex

	// writeMu serializes writes to the active connection.
	writeMu sync.Mutex

	stopCh      chan struct{}
	finalizedCh chan struct{}
	readWG      sync.WaitGroup

	eventsClosed bool
	emitMu       sync.Mutex
}

// ChannelStats is a snapshot of channel activity for monitoring.
type ChannelStats struct {
	State      string           `json:"state"`
	Attempt    int              `json:"attempt,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	ChunksSent uint64           `json:"chunks_sent"`
	BytesSent  uint64           `json:"bytes_sent"`
	Reconnects uint64           `json:"reconnects"`
	Buffer     ChunkBufferStats `json:"buffer"`
}

// New creates a session channel. A nil dialer selects the production
// WebSocket dialer.
func New(cfg Config, transcripts TranscriptSink, enrichments EnrichmentSink, dialer Dialer, m *metrics.Metrics, logger *slog.Logger) (*Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	if transcripts == nil {
		return nil, fmt.Errorf("transcript sink must not be nil")
	}
	if enrichments == nil {
		return nil, fmt.Errorf("enrichment sink must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dialer == nil {
		dialer = NewWebSocketDialer(cfg.APIKey)
	}

	buffer, err := NewChunkBuffer(cfg.BufferLimit)
	if err != nil {
		return nil, err
	}

	return &Channel{
		cfg:         cfg,
		dialer:      dialer,
		transcripts: transcripts,
		enrichments: enrichments,
		metrics:     m,
		logger:      logger,
		buffer:      buffer,
		events:      make(chan Event, 64),
		state:       StateDisconnected,
		stopCh:      make(chan struct{}),
		finalizedCh: make(chan struct{}),
	}, nil
}

// Events returns the channel's advisory event stream: state changes,
// warnings, and server status. Transcript and enrichment payloads go to the
// sinks, never here.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// State returns the connection state and, while reconnecting, the attempt
// number.
func (c *Channel) State() (State, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.attempt
}

// SessionID returns the server-assigned session identifier, if established.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// GetStats returns a snapshot of channel activity.
func (c *Channel) GetStats() ChannelStats {
	c.mu.Lock()
	stats := ChannelStats{
		State:      c.state.String(),
		Attempt:    c.attempt,
		SessionID:  c.sessionID,
		ChunksSent: c.chunksSent,
		BytesSent:  c.bytesSent,
		Reconnects: c.reconnects,
	}
	c.mu.Unlock()

	stats.Buffer = c.buffer.GetStats()
	return stats
}

// Connect dials the endpoint and performs the session handshake. Until it
// succeeds the channel stays disconnected and chunks keep buffering; callers
// may retry. Returns ErrHandshakeTimeout when the server never acks.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrChannelStopped
	}
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot connect while %s", state)
	}
	c.setStateLocked(StateConnecting, 0)
	c.mu.Unlock()

	conn, sessionID, err := c.dialAndHandshake(ctx)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateDisconnected, 0)
		c.mu.Unlock()
		return err
	}

	if !c.adopt(conn, sessionID) {
		return ErrChannelStopped
	}

	c.logger.Info("Session established", slog.String("session_id", sessionID))
	return nil
}

// Send delivers one audio chunk, or buffers it while the channel is not
// established. Send never fails from the caller's perspective: worst case
// the chunk ages out of the buffer.
func (c *Channel) Send(chunk Chunk) {
	for {
		c.mu.Lock()
		if !c.established || c.conn == nil || c.stopped {
			evicted, ok := c.buffer.Push(chunk)
			c.mu.Unlock()
			c.afterBuffer(chunk, evicted, ok)
			return
		}
		conn := c.conn
		c.mu.Unlock()

		err := c.writeBinary(conn, chunk.Data)
		if err == nil {
			c.mu.Lock()
			c.chunksSent++
			c.bytesSent += uint64(len(chunk.Data))
			c.mu.Unlock()
			c.metrics.RecordChunkSent(len(chunk.Data))
			return
		}

		c.logger.Warn("Chunk write failed",
			slog.Uint64("seq", chunk.Seq),
			slog.String("error", err.Error()))

		c.mu.Lock()
		if c.conn == conn {
			// Connection is dying but not yet replaced; queue the chunk
			// for the reconnect flush so it is not stranded behind it.
			evicted, ok := c.buffer.Push(chunk)
			c.mu.Unlock()
			c.afterBuffer(chunk, evicted, ok)
			return
		}
		c.mu.Unlock()
		// A reconnect already installed a new connection; retry there.
	}
}

// Pause tells the server the speaker paused. Best effort: silently skipped
// while disconnected.
func (c *Channel) Pause() {
	c.sendControl(wire.NewPauseSession())
}

// Resume tells the server the speaker resumed.
func (c *Channel) Resume() {
	c.sendControl(wire.NewResumeSession())
}

// Stop ends the session: sends end_session, waits up to StopTimeout for the
// server's finalization, and closes the connection. It is idempotent and
// safe to call mid-reconnect; an in-flight attempt that loses the race is
// discarded. The returned finalization is nil when the server never sent
// one.
func (c *Channel) Stop(ctx context.Context) (*wire.SessionFinalized, error) {
	c.mu.Lock()
	if c.stopped {
		fin := c.finalized
		c.mu.Unlock()
		return fin, nil
	}
	c.stopped = true
	close(c.stopCh)
	conn := c.conn
	established := c.established
	c.mu.Unlock()

	if conn != nil && established {
		if err := c.writeText(conn, wire.NewEndSession(c.cfg.ContextContacts)); err != nil {
			c.logger.Warn("Failed to send session end", slog.String("error", err.Error()))
		} else {
			select {
			case <-c.finalizedCh:
			case <-time.After(c.cfg.StopTimeout):
				c.logger.Warn("Timed out waiting for session finalization")
			case <-ctx.Done():
			}
		}
	}

	c.mu.Lock()
	conn = c.conn
	c.conn = nil
	c.established = false
	c.setStateLocked(StateDisconnected, 0)
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	c.readWG.Wait()

	c.mu.Lock()
	fin := c.finalized
	c.mu.Unlock()

	c.closeEvents()
	return fin, nil
}

// dialAndHandshake opens a connection, sends start_session, and waits for
// the server's ack within HandshakeTimeout.
func (c *Channel) dialAndHandshake(ctx context.Context) (Conn, string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, c.cfg.Endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("failed to dial session endpoint: %w", err)
	}

	start, err := wire.Encode(wire.NewStartSession(c.cfg.LanguageCode, c.cfg.ContextContacts))
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	if err := c.writeRaw(conn, websocket.TextMessage, start); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to send session start: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout)); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("failed to arm handshake deadline: %w", err)
	}

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, "", ErrHandshakeTimeout
			}
			return nil, "", fmt.Errorf("handshake read failed: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		msg, err := wire.Decode(payload)
		if err != nil {
			c.metrics.RecordDecodeError()
			c.logger.Warn("Undecodable frame during handshake", slog.String("error", err.Error()))
			continue
		}

		switch v := msg.(type) {
		case *wire.SessionStarted:
			if err := conn.SetReadDeadline(time.Time{}); err != nil {
				conn.Close()
				return nil, "", fmt.Errorf("failed to clear handshake deadline: %w", err)
			}
			return conn, v.SessionID, nil
		case *wire.ErrorMessage:
			conn.Close()
			return nil, "", fmt.Errorf("session rejected: %s", v.Error)
		default:
			// Nothing before the ack is actionable.
		}
	}
}

// adopt installs an established connection, starts its read loop, and
// flushes buffered chunks before enabling direct sends. Returns false when
// Stop won the race.
func (c *Channel) adopt(conn Conn, sessionID string) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		conn.Close()
		return false
	}
	c.conn = conn
	c.sessionID = sessionID
	c.setStateLocked(StateConnected, 0)
	c.mu.Unlock()

	c.metrics.RecordSessionStarted()

	c.readWG.Add(1)
	go c.readLoop(conn)

	c.flush(conn)
	return true
}

// flush drains the chunk buffer onto the connection. Direct sends stay
// disabled until the buffer is verifiably empty so buffered chunks always
// precede new ones.
func (c *Channel) flush(conn Conn) {
	for {
		c.mu.Lock()
		chunks := c.buffer.Drain()
		if len(chunks) == 0 {
			c.established = true
			c.mu.Unlock()
			c.metrics.SetBufferBytes(0)
			return
		}
		c.mu.Unlock()

		c.logger.Info("Flushing buffered chunks", slog.Int("count", len(chunks)))
		for i, chunk := range chunks {
			if err := c.writeBinary(conn, chunk.Data); err != nil {
				c.logger.Warn("Flush interrupted, requeueing remainder",
					slog.Int("remaining", len(chunks)-i),
					slog.String("error", err.Error()))
				if evicted := c.requeue(chunks[i:]); evicted > 0 {
					c.metrics.RecordBufferEvictions(evicted)
				}
				c.metrics.SetBufferBytes(c.buffer.Bytes())
				return
			}
			c.mu.Lock()
			c.chunksSent++
			c.bytesSent += uint64(len(chunk.Data))
			c.mu.Unlock()
			c.metrics.RecordChunkSent(len(chunk.Data))
		}
	}
}

func (c *Channel) requeue(chunks []Chunk) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Requeue(chunks)
}

// afterBuffer handles logging, metrics, and overflow surfacing for a Push
// outcome.
func (c *Channel) afterBuffer(chunk Chunk, evicted int, ok bool) {
	if evicted > 0 {
		c.logger.Warn("Buffer cap reached, evicted oldest chunks",
			slog.Int("evicted", evicted))
		c.metrics.RecordBufferEvictions(evicted)
	}
	c.metrics.SetBufferBytes(c.buffer.Bytes())

	if !ok {
		c.logger.Warn("Chunk exceeds buffer cap, dropped with buffer cleared",
			slog.Uint64("seq", chunk.Seq),
			slog.Int("bytes", len(chunk.Data)))
		c.metrics.RecordBufferOverflow()
		c.emit(BufferOverflowEvent{ChunkBytes: int64(len(chunk.Data)), Limit: c.cfg.BufferLimit})
		return
	}
	c.metrics.RecordChunkBuffered()
}

// readLoop dispatches inbound frames in arrival order until the connection
// fails or is closed.
func (c *Channel) readLoop(conn Conn) {
	defer c.readWG.Done()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleConnectionLoss(conn, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		c.dispatch(data)
	}
}

// handleConnectionLoss starts reconnection for an unexpected closure of the
// active connection. Closures after Stop, and stale connections already
// replaced by a reconnect, are ignored.
func (c *Channel) handleConnectionLoss(conn Conn, cause error) {
	c.mu.Lock()
	if c.stopped || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.established = false
	c.mu.Unlock()
	conn.Close()

	c.logger.Warn("Session connection lost", slog.String("error", cause.Error()))
	go c.reconnect()
}

// reconnect retries the connection with capped exponential backoff. After
// MaxAttempts failures the channel disconnects permanently; capture and
// local assembly continue unaffected.
func (c *Channel) reconnect() {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		delay := backoffDelay(attempt, c.cfg.InitialBackoff, c.cfg.MaxBackoff)

		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			return
		}
		c.attempt = attempt
		c.reconnects++
		c.setStateLocked(StateReconnecting, attempt)
		c.mu.Unlock()

		c.metrics.RecordReconnectAttempt()
		c.logger.Info("Reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay))

		select {
		case <-time.After(delay):
		case <-c.stopCh:
			return
		}

		conn, sessionID, err := c.dialAndHandshake(context.Background())
		if err != nil {
			c.logger.Warn("Reconnect attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}

		if c.adopt(conn, sessionID) {
			c.logger.Info("Session re-established", slog.String("session_id", sessionID))
		}
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.attempt = 0
	c.setStateLocked(StateDisconnected, 0)
	c.mu.Unlock()

	c.metrics.RecordReconnectExhausted()
	c.logger.Error("Reconnect attempts exhausted, streaming disabled",
		slog.Int("attempts", c.cfg.MaxAttempts))
	c.emit(ReconnectExhaustedEvent{Attempts: c.cfg.MaxAttempts})
}

// dispatch routes one inbound frame to its consumer. Runs on the read loop
// goroutine so delivery order matches arrival order.
func (c *Channel) dispatch(data []byte) {
	msg, err := wire.Decode(data)
	if err != nil {
		c.metrics.RecordDecodeError()
		c.logger.Warn("Failed to decode inbound frame", slog.String("error", err.Error()))
		return
	}

	switch v := msg.(type) {
	case *wire.InterimTranscript:
		c.metrics.RecordInterimFragment()
		c.transcripts.AddInterim(v.Transcript, v.Confidence)
	case *wire.FinalTranscript:
		c.metrics.RecordFinalFragment()
		c.transcripts.Finalize(v.Transcript, v.Confidence)
	case *wire.EnrichmentUpdate:
		c.enrichments.ApplyUpdate(v.Suggestions)
	case *wire.ConnectionStatus:
		c.emit(StatusEvent{Status: v.Status, Attempt: v.Attempt})
	case *wire.ErrorMessage:
		c.logger.Error("Server reported error", slog.String("error", v.Error))
		c.emit(ServerErrorEvent{Message: v.Error})
	case *wire.SessionFinalized:
		c.handleFinalized(v)
	case *wire.SessionStarted:
		c.logger.Debug("Duplicate session ack ignored", slog.String("session_id", v.SessionID))
	default:
		c.logger.Debug("Ignoring client-bound frame", slog.String("type", msg.MessageType()))
	}
}

func (c *Channel) handleFinalized(v *wire.SessionFinalized) {
	c.enrichments.AdoptAuthoritative(v.Proposal)

	c.mu.Lock()
	first := c.finalized == nil
	if first {
		c.finalized = v
	}
	c.mu.Unlock()

	if first {
		close(c.finalizedCh)
		c.logger.Info("Session finalized", slog.String("detail", v.String()))
	}
}

func (c *Channel) sendControl(msg wire.Message) {
	c.mu.Lock()
	conn := c.conn
	ready := c.established && !c.stopped
	c.mu.Unlock()

	if conn == nil || !ready {
		c.logger.Debug("Skipping control frame while disconnected",
			slog.String("type", msg.MessageType()))
		return
	}
	if err := c.writeText(conn, msg); err != nil {
		c.logger.Warn("Failed to send control frame",
			slog.String("type", msg.MessageType()),
			slog.String("error", err.Error()))
	}
}

func (c *Channel) writeText(conn Conn, msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return c.writeRaw(conn, websocket.TextMessage, data)
}

func (c *Channel) writeBinary(conn Conn, data []byte) error {
	return c.writeRaw(conn, websocket.BinaryMessage, data)
}

func (c *Channel) writeRaw(conn Conn, messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(messageType, data)
}

// setStateLocked updates the state and notifies observers. Caller holds mu.
func (c *Channel) setStateLocked(state State, attempt int) {
	if c.state == state && c.attempt == attempt {
		return
	}
	c.state = state
	if state != StateReconnecting {
		c.attempt = 0
		attempt = 0
	}
	c.logger.Debug("Connection state changed",
		slog.String("state", state.String()),
		slog.Int("attempt", attempt))
	c.emit(StateChangedEvent{State: state, Attempt: attempt})
}

// emit delivers an advisory event without blocking the caller.
func (c *Channel) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.eventsClosed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("Event dropped, consumer not keeping up",
			slog.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (c *Channel) closeEvents() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if !c.eventsClosed {
		c.eventsClosed = true
		close(c.events)
	}
}

// backoffDelay returns min(initial * 2^(attempt-1), max).
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift > 32 {
		return max
	}
	delay := initial << shift
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
