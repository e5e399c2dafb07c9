package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opd-ai/go-gbuf/internal/command"
)

// DefaultReconnectDelay is the pause between connection attempts.
const DefaultReconnectDelay = 2 * time.Second

// ClientOptions configures a dserv Client.
type ClientOptions struct {
	// URL is the WebSocket endpoint, e.g. ws://localhost:2565/ws.
	URL string
	// Stream is the datapoint name to render. It may be a path.Match
	// pattern; empty accepts every datapoint.
	Stream string
	// Match is the subscription pattern. Empty subscribes to Stream.
	Match string
	// Every asks dserv to forward only every nth update. Values below 1 mean 1.
	Every int
	// ReconnectDelay is the pause after a dropped connection.
	ReconnectDelay time.Duration
	// ChunkTimeout bounds how long partial chunked messages are kept.
	ChunkTimeout time.Duration
	// MaxChunks caps the chunk count a message may announce. Zero means
	// DefaultMaxChunks.
	MaxChunks int
	// Breaker guards dial attempts.
	Breaker BreakerConfig
	// Dialer overrides the WebSocket dialer.
	Dialer *websocket.Dialer
	// Logger receives connection events. Nil discards them.
	Logger *slog.Logger
	// OnConnect is called with true after a subscription is sent and with
	// false when that connection ends.
	OnConnect func(connected bool)
}

// ClientStats counts traffic seen by a Client.
type ClientStats struct {
	Connected   bool
	Connects    int64
	Messages    int64
	Datapoints  int64
	Delivered   int64
	Chunked     int64
	Malformed   int64
	ChunksTimed int
}

// Client subscribes to a dserv datapoint stream over WebSocket and
// forwards matching datapoints to a Mailbox, reconnecting when the
// connection drops.
type Client struct {
	opts      ClientOptions
	logger    *slog.Logger
	dialer    *websocket.Dialer
	breaker   *Breaker
	assembler *Assembler

	connected  atomic.Bool
	connects   atomic.Int64
	messages   atomic.Int64
	datapoints atomic.Int64
	delivered  atomic.Int64
	chunked    atomic.Int64
	malformed  atomic.Int64
}

// subscribeRequest is the dserv subscription command.
type subscribeRequest struct {
	Cmd   string `json:"cmd"`
	Match string `json:"match"`
	Every int    `json:"every"`
}

// wireMessage covers both plain datapoints and chunk envelopes.
type wireMessage struct {
	Type             string          `json:"type"`
	Name             string          `json:"name"`
	Data             json.RawMessage `json:"data"`
	IsChunkedMessage bool            `json:"isChunkedMessage"`
	MessageID        json.RawMessage `json:"messageId"`
	ChunkIndex       int             `json:"chunkIndex"`
	TotalChunks      int             `json:"totalChunks"`
}

// NewClient validates opts and returns an idle client.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.URL == "" {
		return nil, ErrNoURL
	}
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Client{
		opts:      opts,
		logger:    logger.With("feed", "dserv", "url", opts.URL),
		dialer:    dialer,
		breaker:   NewBreaker(opts.Breaker),
		assembler: NewAssembler(opts.ChunkTimeout, opts.MaxChunks),
	}, nil
}

// Run connects and streams datapoints into out until ctx is cancelled.
// Connection failures are logged and retried; Run returns nil once ctx
// is done.
func (c *Client) Run(ctx context.Context, out *Mailbox) error {
	for {
		var conn *websocket.Conn
		err := c.breaker.Do(func() error {
			var dialErr error
			conn, dialErr = c.connect(ctx)
			return dialErr
		})
		if err == nil {
			err = c.serve(ctx, conn, out)
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			c.logger.Debug("dial suppressed", "state", c.breaker.State())
		} else {
			c.logger.Warn("dserv connection lost", "error", err, "retry_in", c.opts.ReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

// connect dials dserv and sends the subscription.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	req := subscribeRequest{Cmd: "subscribe", Match: c.subscribeMatch(), Every: c.opts.Every}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %q: %w", req.Match, err)
	}
	c.connects.Add(1)
	c.logger.Info("subscribed", "match", req.Match, "every", req.Every)
	return conn, nil
}

func (c *Client) subscribeMatch() string {
	if c.opts.Match != "" {
		return c.opts.Match
	}
	if c.opts.Stream != "" {
		return c.opts.Stream
	}
	return "*"
}

// serve reads messages until the connection fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, out *Mailbox) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setConnected(true)
	defer c.setConnected(false)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.messages.Add(1)
		if err := c.handle(msg, out); err != nil {
			c.malformed.Add(1)
			c.logger.Debug("ignoring message", "error", err)
		}
	}
}

// handle processes one WebSocket text message.
func (c *Client) handle(msg []byte, out *Mailbox) error {
	var wm wireMessage
	if err := json.Unmarshal(msg, &wm); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	if wm.IsChunkedMessage {
		c.chunked.Add(1)
		chunk := Chunk{
			MessageID: string(bytes.Trim(wm.MessageID, `"`)),
			Index:     wm.ChunkIndex,
			Total:     wm.TotalChunks,
		}
		if err := json.Unmarshal(wm.Data, &chunk.Data); err != nil {
			return fmt.Errorf("chunk data: %w", err)
		}
		whole, done, err := c.assembler.Add(chunk)
		if err != nil || !done {
			return err
		}
		return c.handle([]byte(whole), out)
	}

	if wm.Type != "datapoint" {
		return nil
	}
	c.datapoints.Add(1)
	if !c.wants(wm.Name) {
		return nil
	}
	out.Put(command.Envelope{Name: wm.Name, Data: payload(wm.Data)})
	c.delivered.Add(1)
	return nil
}

// wants reports whether a datapoint belongs to the rendered stream.
func (c *Client) wants(name string) bool {
	if c.opts.Stream == "" || name == c.opts.Stream {
		return true
	}
	ok, err := path.Match(c.opts.Stream, name)
	return err == nil && ok
}

// payload unwraps string-valued datapoints, which is how dserv delivers
// gbuf JSON, and passes anything else through as raw JSON.
func payload(raw json.RawMessage) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return json.RawMessage(append([]byte(nil), trimmed...))
}

func (c *Client) setConnected(on bool) {
	c.connected.Store(on)
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(on)
	}
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Breaker returns the dial breaker.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Stats returns a snapshot of the traffic counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Connected:   c.connected.Load(),
		Connects:    c.connects.Load(),
		Messages:    c.messages.Load(),
		Datapoints:  c.datapoints.Load(),
		Delivered:   c.delivered.Load(),
		Chunked:     c.chunked.Load(),
		Malformed:   c.malformed.Load(),
		ChunksTimed: c.assembler.Expired(),
	}
}
