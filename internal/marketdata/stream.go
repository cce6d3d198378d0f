package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"krx-scalp-lab/internal/domain"
)

// trRealtimePrice is the real-time execution-price topic.
const trRealtimePrice = "H0STCNT0"

// StreamConfig configures the quote streamer's connection behavior.
type StreamConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// DefaultStreamConfig returns the default streamer configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Streamer subscribes to per-instrument real-time quote topics and keeps a
// last-quote cache. The cache implements QuoteSource, so the poller reads
// from it exactly as it would from the REST client. Reconnects with capped
// exponential backoff and resubscribes the full code list.
type Streamer struct {
	endpoint    string
	approvalKey string
	config      StreamConfig
	logger      *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	mu    sync.RWMutex
	codes []string
	cache map[string]*domain.MarketSnapshot
}

// NewStreamer creates a streamer for the given instruments. Start must be
// called before the cache fills.
func NewStreamer(endpoint, approvalKey string, codes []string, config *StreamConfig, logger *log.Logger) *Streamer {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}
	return &Streamer{
		endpoint:    endpoint,
		approvalKey: approvalKey,
		config:      cfg,
		logger:      logger,
		done:        make(chan struct{}),
		codes:       append([]string(nil), codes...),
		cache:       make(map[string]*domain.MarketSnapshot),
	}
}

// Start connects, subscribes, and launches the read loop.
func (s *Streamer) Start(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.subscribeAll(); err != nil {
		return err
	}
	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// Close shuts the stream down and waits for the read loop to exit.
func (s *Streamer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// GetQuotes returns the cached last quote for each requested instrument.
// Instruments without a tick yet are omitted, matching the REST client's
// contract for instruments the API skips.
func (s *Streamer) GetQuotes(_ context.Context, codes []string) ([]*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.MarketSnapshot, 0, len(codes))
	for _, code := range codes {
		if snap, ok := s.cache[code]; ok {
			copy := *snap
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (s *Streamer) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	s.conn = conn
	return nil
}

type streamRequest struct {
	Header streamHeader `json:"header"`
	Body   streamBody   `json:"body"`
}

type streamHeader struct {
	ApprovalKey string `json:"approval_key,omitempty"`
	CustType    string `json:"custtype,omitempty"`
	TrType      string `json:"tr_type,omitempty"`
	ContentType string `json:"content-type,omitempty"`
	TrID        string `json:"tr_id,omitempty"`
	DateTime    string `json:"datetime,omitempty"`
}

type streamBody struct {
	Input streamInput `json:"input"`
}

type streamInput struct {
	TrID  string `json:"tr_id"`
	TrKey string `json:"tr_key"`
}

// subscribeAll registers every tracked instrument on the quote topic.
func (s *Streamer) subscribeAll() error {
	s.mu.RLock()
	codes := append([]string(nil), s.codes...)
	s.mu.RUnlock()

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}

	for _, code := range codes {
		req := streamRequest{
			Header: streamHeader{
				ApprovalKey: s.approvalKey,
				CustType:    "P",
				TrType:      "1",
				ContentType: "utf-8",
			},
			Body: streamBody{Input: streamInput{TrID: trRealtimePrice, TrKey: code}},
		}
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := s.conn.WriteJSON(req); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", code, err)
		}
	}
	return nil
}

func (s *Streamer) readLoop() {
	defer s.wg.Done()

	delay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(delay) {
				return
			}
			delay = delay * 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if s.logger != nil {
				s.logger.Printf("stream read failed: %v", err)
			}
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		delay = s.config.ReconnectDelay
		s.handleFrame(message)
	}
}

// reconnect waits the backoff delay, then dials and resubscribes. Returns
// false when the streamer is shutting down.
func (s *Streamer) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.connect(ctx); err != nil {
		if s.logger != nil {
			s.logger.Printf("stream reconnect failed: %v", err)
		}
		return true
	}
	if err := s.subscribeAll(); err != nil && s.logger != nil {
		s.logger.Printf("stream resubscribe failed: %v", err)
	}
	if s.logger != nil {
		s.logger.Printf("stream reconnected")
	}
	return true
}

// handleFrame dispatches one websocket frame. Tick frames are pipe-delimited
// and start with a digit; everything else is a JSON control message.
func (s *Streamer) handleFrame(message []byte) {
	if len(message) == 0 {
		return
	}
	if message[0] == '0' || message[0] == '1' {
		parts := strings.SplitN(string(message), "|", 4)
		if len(parts) == 4 && parts[1] == trRealtimePrice {
			s.applyTick(parts[3])
		}
		return
	}

	var ctrl struct {
		Header struct {
			TrID string `json:"tr_id"`
		} `json:"header"`
	}
	if err := json.Unmarshal(message, &ctrl); err != nil {
		return
	}
	if ctrl.Header.TrID == "PINGPONG" {
		s.connMu.Lock()
		if s.conn != nil {
			s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			s.conn.WriteMessage(websocket.TextMessage, message)
		}
		s.connMu.Unlock()
	}
}

// Realtime price payload field positions.
const (
	tickFieldCode       = 0
	tickFieldLast       = 2
	tickFieldChangeRate = 5
	tickFieldOpen       = 7
	tickFieldHigh       = 8
	tickFieldLow        = 9
	tickFieldVolume     = 13
)

// applyTick parses one caret-delimited tick record into the quote cache.
func (s *Streamer) applyTick(payload string) {
	fields := strings.Split(payload, "^")
	if len(fields) <= tickFieldVolume {
		return
	}
	code := fields[tickFieldCode]
	if code == "" {
		return
	}

	snap := &domain.MarketSnapshot{
		Code:        code,
		Last:        parseField(fields[tickFieldLast]),
		ChangeRate:  parseField(fields[tickFieldChangeRate]),
		Open:        parseField(fields[tickFieldOpen]),
		High:        parseField(fields[tickFieldHigh]),
		Low:         parseField(fields[tickFieldLow]),
		Volume:      int64(parseField(fields[tickFieldVolume])),
		TimestampMs: time.Now().UnixMilli(),
	}

	s.mu.Lock()
	if prev, ok := s.cache[code]; ok && snap.Name == "" {
		snap.Name = prev.Name
	}
	s.cache[code] = snap
	s.mu.Unlock()
}

func parseField(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

var _ QuoteSource = (*Streamer)(nil)
