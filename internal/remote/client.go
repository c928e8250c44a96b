package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/btscout/internal/logging"
	"github.com/muurk/btscout/internal/server"
)

// Client reads the event stream of one server.
type Client struct {
	conn *websocket.Conn
	url  string
}

// EventsURL turns "host", "host:port" or a full ws:// URL into the
// event-stream URL.
func EventsURL(target string) (string, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid server url %q: %w", target, err)
		}
		if u.Path == "" || u.Path == "/" {
			u.Path = server.EventsPath
		}
		return u.String(), nil
	}
	host, port, err := net.SplitHostPort(target)
	if err != nil {
		host, port = target, strconv.Itoa(server.DefaultPort)
	}
	if host == "" {
		return "", fmt.Errorf("invalid server address %q", target)
	}
	return "ws://" + net.JoinHostPort(host, port) + server.EventsPath, nil
}

// Dial connects to the event stream at rawURL.
func Dial(ctx context.Context, rawURL string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s: %w", rawURL, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", rawURL, err)
	}
	logging.LogClientEvent(rawURL, "connected")
	return &Client{conn: conn, url: rawURL}, nil
}

// Next blocks for the next message.
func (c *Client) Next() (server.Message, error) {
	var m server.Message
	if err := c.conn.ReadJSON(&m); err != nil {
		return m, err
	}
	return m, nil
}

// Stream calls fn for every message until ctx is canceled or the server
// closes the connection. A normal close returns nil.
func (c *Client) Stream(ctx context.Context, fn func(server.Message)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		m, err := c.Next()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("server closed the stream: %w", err)
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		fn(m)
	}
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	logging.Debug("Disconnected from server", zap.String("url", c.url))
	return c.conn.Close()
}
