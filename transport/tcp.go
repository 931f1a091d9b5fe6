// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/eventor"
	transevent "github.com/xmidt-org/connobserve/transport/event"
	"github.com/xmidt-org/retry"
	"go.uber.org/zap"
)

// TCP is a plain net.Conn transport with xmidt-org/retry-driven
// reconnection, grounded on the teacher's own dial/reconnect loop in
// internal/websocket/ws.go - a TCP link to a device's console port is the
// one piece of that transport not tied to the websocket/HTTP handshake.
type TCP struct {
	mu       sync.Mutex
	oc       *connection.ObservableConnection
	conn     net.Conn
	addr     string
	dialer   net.Dialer
	policy   retry.Config
	log      *zap.Logger
	name     string
	cancel   context.CancelFunc
	stopped  chan struct{}

	connectListeners    eventor.Eventor[transevent.ConnectListener]
	disconnectListeners eventor.Eventor[transevent.DisconnectListener]
}

// TCPOption configures a TCP transport at construction time.
type TCPOption func(*TCP)

// WithTCPRetry overrides the default reconnect backoff policy.
func WithTCPRetry(cfg retry.Config) TCPOption {
	return func(t *TCP) { t.policy = cfg }
}

// WithTCPLogger overrides the default no-op logger.
func WithTCPLogger(log *zap.Logger) TCPOption {
	return func(t *TCP) { t.log = log }
}

// NewTCP constructs a TCP transport dialing addr.
func NewTCP(name, addr string, opts ...TCPOption) *TCP {
	t := &TCP{
		name: name,
		addr: addr,
		log:  zap.NewNop(),
		policy: retry.Config{
			Interval:    time.Second,
			Multiplier:  1.5,
			Jitter:      1.0 / 3.0,
			MaxInterval: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bind implements Binder.
func (t *TCP) Bind(oc *connection.ObservableConnection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.oc = oc
}

// Start dials addr, retrying with the configured backoff policy until the
// first connection succeeds or ctx is done, then keeps a read loop running
// in the background that re-dials on every drop.
func (t *TCP) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancel = cancel
	t.stopped = make(chan struct{})
	t.mu.Unlock()

	conn, err := t.dialWithRetry(runCtx)
	if err != nil {
		close(t.stopped)
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.connectListeners.Visit(func(ln transevent.ConnectListener) {
		ln.Connect(transevent.Connect{Name: t.name, At: time.Now()})
	})

	go t.readLoop(runCtx)
	return nil
}

func (t *TCP) dialWithRetry(ctx context.Context) (net.Conn, error) {
	policy := t.policy.NewPolicy(ctx)

	for {
		conn, err := t.dialer.DialContext(ctx, "tcp", t.addr)
		if err == nil {
			return conn, nil
		}

		t.log.Warn("dial failed", zap.String("addr", t.addr), zap.Error(err))

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

func (t *TCP) readLoop(ctx context.Context) {
	defer close(t.stopped)

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if conn == nil {
			return
		}

		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			t.mu.Lock()
			oc := t.oc
			t.mu.Unlock()
			if oc != nil {
				oc.DataReceived(append(scanner.Bytes(), '\n'))
			}
		}

		t.disconnectListeners.Visit(func(ln transevent.DisconnectListener) {
			ln.Disconnect(transevent.Disconnect{Name: t.name, Err: scanner.Err(), At: time.Now()})
		})

		if ctx.Err() != nil {
			return
		}

		next, err := t.dialWithRetry(ctx)
		if err != nil {
			t.log.Error("reconnect failed, giving up", zap.Error(err))
			return
		}

		t.mu.Lock()
		t.conn = next
		t.mu.Unlock()

		t.connectListeners.Visit(func(ln transevent.ConnectListener) {
			ln.Connect(transevent.Connect{Name: t.name, At: time.Now()})
		})
	}
}

// Stop cancels the read loop and closes the underlying connection.
func (t *TCP) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send writes data to the underlying connection.
func (t *TCP) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("%w: not connected", errs.ErrTransport)
	}

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}
	return nil
}

// OnConnect registers fn for Connect notifications.
func (t *TCP) OnConnect(fn func(transevent.Connect)) eventor.CancelFunc {
	return t.connectListeners.Add(transevent.ConnectFunc(fn))
}

// OnDisconnect registers fn for Disconnect notifications.
func (t *TCP) OnDisconnect(fn func(transevent.Disconnect)) eventor.CancelFunc {
	return t.disconnectListeners.Add(transevent.DisconnectFunc(fn))
}

// OnHeartbeat registers fn for Heartbeat notifications. TCP has none of
// its own; the registration is accepted for interface compliance.
func (t *TCP) OnHeartbeat(fn func(transevent.Heartbeat)) eventor.CancelFunc {
	return func() {}
}
