package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gorilla/websocket"
)

// RejectedError is a handshake the server refused outright (bad token,
// unknown collection, no read permission). Retrying cannot help.
type RejectedError struct {
	Status int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected connection: HTTP %d", e.Status)
}

func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

var ErrNotConnected = errors.New("not connected")

// Client follows one collection through the gateway, reconnecting after
// transient failures. Each reconnect starts from a fresh full snapshot.
type Client struct {
	URL        string
	Token      string
	Collection string
	Parent     string
	Window     int
	Logger     *slog.Logger
	Dialer     *websocket.Dialer

	// ReconnectDelay is the pause between dropped connections.
	ReconnectDelay time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// Run connects and calls onFrame for every frame until ctx is cancelled or
// the server rejects the connection.
func (c *Client) Run(ctx context.Context, onFrame func(Frame)) error {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if _, err := c.buildURL(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.follow(ctx, onFrame)
		if IsRejected(err) {
			return err
		}
		if err != nil {
			c.Logger.Error("gateway connection error, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.ReconnectDelay):
			// backoff before reconnecting
		}
	}
}

// More asks the server to grow the window by one step.
func (c *Client) More() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(Command{Op: OpMore})
}

func (c *Client) follow(ctx context.Context, onFrame func(Frame)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Unblock ReadJSON when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.Logger.Info("connected to gateway", "collection", c.Collection)
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		onFrame(frame)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	target, err := c.buildURL()
	if err != nil {
		return nil, err
	}

	var conn *websocket.Conn
	var rejected *RejectedError
	err = retry.Do(
		func() error {
			var resp *http.Response
			var dialErr error
			conn, resp, dialErr = dialer.DialContext(ctx, target, nil)
			if dialErr != nil {
				if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
					rejected = &RejectedError{Status: resp.StatusCode}
					return rejected
				}
				return fmt.Errorf("dial gateway: %w", dialErr)
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.Logger.Info("retrying gateway dial after error", "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !IsRejected(err)
		}),
	)
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	return conn, nil
}

func (c *Client) buildURL() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("collection", c.Collection)
	if c.Parent != "" {
		q.Set("parent", c.Parent)
	}
	if c.Window > 0 {
		q.Set("window", strconv.Itoa(c.Window))
	}
	if c.Token != "" {
		q.Set("token", c.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
