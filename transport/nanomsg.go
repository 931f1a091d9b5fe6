// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xmidt-org/connobserve/connection"
	"github.com/xmidt-org/connobserve/errs"
	"github.com/xmidt-org/eventor"
	transevent "github.com/xmidt-org/connobserve/transport/event"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"
	_ "go.nanomsg.org/mangos/v3/transport/all"
	"go.uber.org/zap"
)

// Nanomsg is a mangos PAIR-socket Transport, grounded on the teacher's
// libparodus adapter (which listens on a mangos socket for a local IPC
// peer) - adapted here to the symmetric single-socket PAIR pattern rather
// than libparodus's split pull/push pair, since one ObservableConnection
// only ever needs one bidirectional local peer.
type Nanomsg struct {
	mu          sync.Mutex
	oc          *connection.ObservableConnection
	sock        mangos.Socket
	url         string
	recvTimeout time.Duration
	log         *zap.Logger
	name        string
	cancel      context.CancelFunc
	stopped     chan struct{}

	connectListeners    eventor.Eventor[transevent.ConnectListener]
	disconnectListeners eventor.Eventor[transevent.DisconnectListener]
}

// NanomsgOption configures a Nanomsg transport at construction time.
type NanomsgOption func(*Nanomsg)

// WithNanomsgRecvTimeout overrides the default 1s receive deadline used to
// keep the read loop responsive to Stop.
func WithNanomsgRecvTimeout(d time.Duration) NanomsgOption {
	return func(n *Nanomsg) { n.recvTimeout = d }
}

// WithNanomsgLogger overrides the default no-op logger.
func WithNanomsgLogger(log *zap.Logger) NanomsgOption {
	return func(n *Nanomsg) { n.log = log }
}

// NewNanomsg constructs a Nanomsg transport listening on url (e.g.
// "ipc:///tmp/connobserve.sock").
func NewNanomsg(name, url string, opts ...NanomsgOption) *Nanomsg {
	n := &Nanomsg{
		name:        name,
		url:         url,
		recvTimeout: time.Second,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Bind implements Binder.
func (n *Nanomsg) Bind(oc *connection.ObservableConnection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.oc = oc
}

// Start opens the PAIR socket and begins listening on url.
func (n *Nanomsg) Start(ctx context.Context) error {
	sock, err := pair.NewSocket()
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	if err := sock.SetOption(mangos.OptionRecvDeadline, n.recvTimeout); err != nil {
		sock.Close()
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	if err := sock.Listen(n.url); err != nil {
		sock.Close()
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.sock = sock
	n.cancel = cancel
	n.stopped = make(chan struct{})
	n.mu.Unlock()

	n.connectListeners.Visit(func(ln transevent.ConnectListener) {
		ln.Connect(transevent.Connect{Name: n.name, At: time.Now()})
	})

	go n.readLoop(runCtx)
	return nil
}

func (n *Nanomsg) readLoop(ctx context.Context) {
	defer close(n.stopped)

	for {
		if ctx.Err() != nil {
			return
		}

		n.mu.Lock()
		sock := n.sock
		n.mu.Unlock()
		if sock == nil {
			return
		}

		data, err := sock.Recv()
		switch {
		case err == nil:
			n.mu.Lock()
			oc := n.oc
			n.mu.Unlock()
			if oc != nil {
				oc.DataReceived(data)
			}
		case errors.Is(err, mangos.ErrRecvTimeout):
			// just a poll interval, check ctx and loop
		case errors.Is(err, mangos.ErrClosed):
			n.disconnectListeners.Visit(func(ln transevent.DisconnectListener) {
				ln.Disconnect(transevent.Disconnect{Name: n.name, Err: err, At: time.Now()})
			})
			return
		default:
			n.log.Warn("recv failed", zap.Error(err))
		}
	}
}

// Stop closes the socket and stops the read loop.
func (n *Nanomsg) Stop() error {
	n.mu.Lock()
	cancel := n.cancel
	sock := n.sock
	n.sock = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sock != nil {
		return sock.Close()
	}
	return nil
}

// Send writes data to the socket.
func (n *Nanomsg) Send(data []byte) error {
	n.mu.Lock()
	sock := n.sock
	n.mu.Unlock()

	if sock == nil {
		return fmt.Errorf("%w: not connected", errs.ErrTransport)
	}

	if err := sock.Send(data); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}
	return nil
}

// OnConnect registers fn for Connect notifications.
func (n *Nanomsg) OnConnect(fn func(transevent.Connect)) eventor.CancelFunc {
	return n.connectListeners.Add(transevent.ConnectFunc(fn))
}

// OnDisconnect registers fn for Disconnect notifications.
func (n *Nanomsg) OnDisconnect(fn func(transevent.Disconnect)) eventor.CancelFunc {
	return n.disconnectListeners.Add(transevent.DisconnectFunc(fn))
}

// OnHeartbeat registers fn for Heartbeat notifications. Nanomsg has none
// of its own; the registration is accepted for interface compliance.
func (n *Nanomsg) OnHeartbeat(fn func(transevent.Heartbeat)) eventor.CancelFunc {
	return func() {}
}
