package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mathisarends/voiceorchestrator/internal/obslog"
	"github.com/mathisarends/voiceorchestrator/internal/orcherr"
)

const (
	dialTimeout      = 10 * time.Second
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	maxMessageSize   = 16 * 1024 * 1024
	maxDialRetries   = 3
	retryBackoffBase = time.Second
	retryBackoffMax  = 10 * time.Second
	closeGracePeriod = 5 * time.Second
	heartbeatPeriod  = pongWait * 9 / 10
)

// Client is the duplex connection to the remote realtime API. It owns a
// single writer path (serialized by mu) and a receive pump that the caller
// drains via ReceiveLoop.
type Client struct {
	url    string
	apiKey string

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	closeChan chan struct{}
}

// New creates a Client for the given URL and bearer API key. Connect must be
// called before Send/Receive.
func New(url, apiKey string) *Client {
	return &Client{
		url:       url,
		apiKey:    apiKey,
		closeChan: make(chan struct{}),
	}
}

// Connect dials the remote endpoint, retrying with exponential backoff up to
// maxDialRetries times. Must complete within the session-establishment
// bound; the caller is expected to wrap ctx with that deadline.
func (c *Client) Connect(ctx context.Context) error {
	// A client closed at the end of a previous session is reusable: the next
	// wake word reconnects on the same Client so collaborators holding a
	// reference keep working.
	c.mu.Lock()
	if c.closed {
		c.closed = false
		c.closeChan = make(chan struct{})
	}
	c.mu.Unlock()

	var lastErr error
	backoff := retryBackoffBase

	for attempt := 1; attempt <= maxDialRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.dial(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		obslog.Warn("transport: dial attempt failed", "attempt", attempt, "max", maxDialRetries, "error", err)

		if attempt < maxDialRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > retryBackoffMax {
				backoff = retryBackoffMax
			}
		}
	}

	return orcherr.New("transport", "Connect", orcherr.KindTransport,
		fmt.Errorf("failed to connect after %d attempts: %w", maxDialRetries, lastErr))
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("transport closed")
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}

	obslog.Debug("transport: dialing", "url", obslog.Redact(c.url))
	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	obslog.Info("transport: connected")
	return nil
}

// SendJSON serializes obj and emits it as a single text frame. Ordering
// guarantee: outbound messages from a single caller are transmitted in call
// order because the write path is serialized under mu.
func (c *Client) SendJSON(obj any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		return orcherr.New("transport", "SendJSON", orcherr.KindTransport, orcherr.ErrSessionClosed)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return orcherr.New("transport", "SendJSON", orcherr.KindTransport, err)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return orcherr.New("transport", "SendJSON", orcherr.KindTransport, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return orcherr.New("transport", "SendJSON", orcherr.KindTransport, err)
	}
	return nil
}

// SendBinary base64-encodes pcm and wraps it in the protocol's
// input_audio_buffer.append envelope.
func (c *Client) SendBinary(pcm []byte) error {
	return c.SendJSON(InputAudioBufferAppendEvent{
		ClientEvent: NewClientEvent("input_audio_buffer.append"),
		Audio:       base64.StdEncoding.EncodeToString(pcm),
	})
}

// ReceiveLoop reads frames until ctx is canceled, the connection closes, or
// an error occurs, forwarding each frame's raw bytes to msgCh.
func (c *Client) ReceiveLoop(ctx context.Context, msgCh chan<- []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeChan:
			return nil
		default:
		}

		data, err := c.receive(ctx)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		select {
		case msgCh <- data:
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeChan:
			return nil
		}
	}
}

func (c *Client) receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.mu.Unlock()
		return nil, orcherr.ErrSessionClosed
	}
	conn := c.conn
	c.mu.Unlock()

	type result struct {
		data []byte
		err  error
	}
	// If ctx cancels before a frame arrives, this goroutine stays blocked in
	// ReadMessage until the connection closes; the coordinator always follows
	// cancellation with Close, which unblocks it.
	resultCh := make(chan result, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		resultCh <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.data, r.err
	}
}

// StartHeartbeat launches a goroutine pinging the connection periodically
// until ctx is canceled or Close is called.
func (c *Client) StartHeartbeat(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(heartbeatPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closeChan:
				return
			case <-ticker.C:
				if !c.ping() {
					return
				}
			}
		}
	}()
}

func (c *Client) ping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return false
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		obslog.Warn("transport: failed to set ping deadline", "error", err)
		return true
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		obslog.Warn("transport: ping failed", "error", err)
		return false
	}
	return true
}

// Close gracefully closes the connection. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeChan)

	if c.conn == nil {
		return nil
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	return c.conn.Close()
}

// IsClosed reports whether Close has been called.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
