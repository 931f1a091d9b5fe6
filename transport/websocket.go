// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/auth"
	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/eventor"
	transevent "github.com/xmidt-org/connobserve/transport/event"
	"github.com/xmidt-org/retry"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// WebSocket is the cloud-facing Transport, grounded directly on the
// teacher's internal/websocket/ws.go: dial, read loop, periodic ping
// published as a Heartbeat event, and retry-policy-driven reconnection on
// every drop.
type WebSocket struct {
	mu      sync.Mutex
	oc      *connection.ObservableConnection
	conn    *websocket.Conn
	url     string
	decorator auth.Decorator
	policy  retry.Config
	pingInterval time.Duration
	log     *zap.Logger
	name    string
	cancel  context.CancelFunc
	stopped chan struct{}

	connectListeners    eventor.Eventor[transevent.ConnectListener]
	disconnectListeners eventor.Eventor[transevent.DisconnectListener]
	heartbeatListeners  eventor.Eventor[transevent.HeartbeatListener]
}

// WebSocketOption configures a WebSocket transport at construction time.
type WebSocketOption func(*WebSocket)

// WithWebSocketAuth attaches a decorator that adds an outbound
// Authorization header to the dial request, e.g. auth.Bearer.
func WithWebSocketAuth(d auth.Decorator) WebSocketOption {
	return func(w *WebSocket) { w.decorator = d }
}

// WithWebSocketRetry overrides the default reconnect backoff policy.
func WithWebSocketRetry(cfg retry.Config) WebSocketOption {
	return func(w *WebSocket) { w.policy = cfg }
}

// WithWebSocketPingInterval overrides the default 30s heartbeat interval.
func WithWebSocketPingInterval(d time.Duration) WebSocketOption {
	return func(w *WebSocket) { w.pingInterval = d }
}

// WithWebSocketLogger overrides the default no-op logger.
func WithWebSocketLogger(log *zap.Logger) WebSocketOption {
	return func(w *WebSocket) { w.log = log }
}

// NewWebSocket constructs a WebSocket transport dialing url.
func NewWebSocket(name, url string, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		name:         name,
		url:          url,
		log:          zap.NewNop(),
		pingInterval: 30 * time.Second,
		policy: retry.Config{
			Interval:    time.Second,
			Multiplier:  1.5,
			Jitter:      1.0 / 3.0,
			MaxInterval: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Bind implements Binder.
func (w *WebSocket) Bind(oc *connection.ObservableConnection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.oc = oc
}

// Start dials url, retrying with the configured backoff policy until the
// first connection succeeds or ctx is done, then runs the read and
// heartbeat loops in the background.
func (w *WebSocket) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	conn, err := w.dialWithRetry(runCtx)
	if err != nil {
		close(w.stopped)
		return err
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	w.connectListeners.Visit(func(ln transevent.ConnectListener) {
		ln.Connect(transevent.Connect{Name: w.name, At: time.Now()})
	})

	go w.readLoop(runCtx)
	go w.heartbeatLoop(runCtx)
	return nil
}

func (w *WebSocket) dialWithRetry(ctx context.Context) (*websocket.Conn, error) {
	policy := w.policy.NewPolicy(ctx)

	for {
		opts := &websocket.DialOptions{}
		if w.decorator != nil {
			header := http.Header{}
			if err := w.decorator.Decorate(ctx, header); err != nil {
				return nil, fmt.Errorf("%w: %w", errs.ErrTransport, err)
			}
			opts.HTTPHeader = header
		}

		conn, _, err := websocket.Dial(ctx, w.url, opts)
		if err == nil {
			conn.SetReadLimit(-1)
			return conn, nil
		}

		w.log.Warn("dial failed", zap.String("url", w.url), zap.Error(err))

		wait, retryable := policy.Next()
		if !retryable {
			return nil, fmt.Errorf("%w: %w", errs.ErrTransport, err)
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", errs.ErrTransport, ctx.Err())
		}
	}
}

func (w *WebSocket) readLoop(ctx context.Context) {
	defer close(w.stopped)

	for {
		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()

		if conn == nil {
			return
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				w.disconnectListeners.Visit(func(ln transevent.DisconnectListener) {
					ln.Disconnect(transevent.Disconnect{Name: w.name, Err: err, At: time.Now()})
				})
				break
			}

			w.mu.Lock()
			oc := w.oc
			w.mu.Unlock()
			if oc != nil {
				oc.DataReceived(data)
			}
		}

		if ctx.Err() != nil {
			return
		}

		next, err := w.dialWithRetry(ctx)
		if err != nil {
			w.log.Error("reconnect failed, giving up", zap.Error(err))
			return
		}

		w.mu.Lock()
		w.conn = next
		w.mu.Unlock()

		w.connectListeners.Visit(func(ln transevent.ConnectListener) {
			ln.Connect(transevent.Connect{Name: w.name, At: time.Now()})
		})
	}
}

func (w *WebSocket) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			w.mu.Unlock()
			if conn == nil {
				continue
			}

			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				w.log.Warn("heartbeat ping failed", zap.Error(err))
				continue
			}

			w.heartbeatListeners.Visit(func(ln transevent.HeartbeatListener) {
				ln.Heartbeat(transevent.Heartbeat{Name: w.name, At: time.Now()})
			})
		}
	}
}

// Stop cancels the read/heartbeat loops and closes the underlying
// connection.
func (w *WebSocket) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "stopping")
	}
	return nil
}

// Send writes data as a single binary message.
func (w *WebSocket) Send(data []byte) error {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: not connected", errs.ErrTransport)
	}

	if err := conn.Write(context.Background(), websocket.MessageBinary, data); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}
	return nil
}

// OnConnect registers fn for Connect notifications.
func (w *WebSocket) OnConnect(fn func(transevent.Connect)) eventor.CancelFunc {
	return w.connectListeners.Add(transevent.ConnectFunc(fn))
}

// OnDisconnect registers fn for Disconnect notifications.
func (w *WebSocket) OnDisconnect(fn func(transevent.Disconnect)) eventor.CancelFunc {
	return w.disconnectListeners.Add(transevent.DisconnectFunc(fn))
}

// OnHeartbeat registers fn for Heartbeat notifications.
func (w *WebSocket) OnHeartbeat(fn func(transevent.Heartbeat)) eventor.CancelFunc {
	return w.heartbeatListeners.Add(transevent.HeartbeatFunc(fn))
}
