package deviceconfig

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/logging"
)

const (
	// statusReadTimeout is how long the watcher waits for a frame or pong
	statusReadTimeout = 60 * time.Second

	// statusPingPeriod must be shorter than statusReadTimeout
	statusPingPeriod = 50 * time.Second
)

// StatusWatcher streams live node status from the config server's
// /ws/status/{ip} endpoint.
type StatusWatcher struct {
	// BaseURL is the config server's HTTP base URL; the scheme is switched
	// to ws or wss.
	BaseURL string

	Username string
	Password string

	Dialer *websocket.Dialer
}

// NewStatusWatcher creates a watcher sharing the client's server and
// credentials.
func NewStatusWatcher(c *Client) *StatusWatcher {
	return &StatusWatcher{
		BaseURL:  c.BaseURL,
		Username: c.Username,
		Password: c.Password,
		Dialer:   websocket.DefaultDialer,
	}
}

func (w *StatusWatcher) endpoint(ip string) (string, error) {
	u, err := url.Parse(w.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/status/" + url.PathEscape(ip)
	return u.String(), nil
}

// Watch calls fn with every status frame until ctx is cancelled or the
// connection drops. Malformed frames are logged and skipped. A cancelled
// context returns nil.
func (w *StatusWatcher) Watch(ctx context.Context, ip string, fn func(*NodeStatus)) error {
	target, err := w.endpoint(ip)
	if err != nil {
		return NewValidationError("invalid server URL: " + err.Error())
	}

	header := http.Header{}
	if w.Username != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(w.Username, w.Password)
	}

	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return ErrorForStatus(resp.StatusCode, "")
		}
		return NewNetworkError("status stream unavailable", err)
	}
	defer func() { _ = conn.Close() }()

	logging.Info("Watching node status", zap.String("node", ip))

	done := make(chan struct{})
	defer close(done)
	go w.keepAlive(ctx, conn, done)

	_ = conn.SetReadDeadline(time.Now().Add(statusReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(statusReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return NewNetworkError("status stream closed", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(statusReadTimeout))

		status, err := ParseNodeStatus(data)
		if err != nil {
			logging.Warn("Skipping malformed status frame",
				zap.String("node", ip),
				zap.Error(err))
			continue
		}
		status.Address = ip
		status.Received = time.Now()
		fn(status)
	}
}

// keepAlive pings the server and closes the connection when ctx ends, which
// unblocks the reader.
func (w *StatusWatcher) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(statusPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
