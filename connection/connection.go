// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package connection implements the observable connection: the inbound
// data fan-out and outbound send gateway described in spec §4.B. It owns
// the subscriber registry (weak-reference semantics, §3) and the shutdown
// notification barrier.
package connection

import (
	"fmt"
	"reflect"
	"sync"
	"weak"

	"github.com/xmidt-org/connobserve/codec"
	"github.com/xmidt-org/connobserve/diagnostics"
	"github.com/xmidt-org/connobserve/errs"
	"go.uber.org/zap"
)

// subKey is the (subject identity, callback identity) pair from spec §3.
// The zero subjectID is the sentinel used by free callbacks.
type subKey struct {
	subjectID uintptr
	funcID    uintptr
}

// subscription is what the registry actually stores: a closure that
// transiently resolves a weak subject reference (or none, for free
// callbacks) and delivers one chunk of text, plus the close handler
// supplied at subscribe time.
type subscription struct {
	deliver func(text string) (delivered bool)
	onClose func()
}

// ObservableConnection is the bidirectional text-stream endpoint with
// fan-out of inbound data (spec §4.B). Construct with New; the zero value
// is not usable.
type ObservableConnection struct {
	mu      sync.Mutex
	subs    map[subKey]subscription
	closed  bool
	open    bool
	sendFn  func([]byte) error
	codec   codec.Codec
	newline string
	name    string
	log     *zap.Logger
}

// Option configures an ObservableConnection at construction time.
type Option func(*ObservableConnection)

// WithCodec overrides the default identity codec.
func WithCodec(c codec.Codec) Option {
	return func(oc *ObservableConnection) { oc.codec = c }
}

// WithNewline overrides the default "\n" newline sequence advertised to
// parsers built on top of this connection.
func WithNewline(newline string) Option {
	return func(oc *ObservableConnection) { oc.newline = newline }
}

// WithLogger overrides the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(oc *ObservableConnection) { oc.log = log }
}

// New constructs an ObservableConnection bound to send, the outbound
// callable a transport provides (spec §6, "Transport binding").
func New(name string, send func([]byte) error, opts ...Option) *ObservableConnection {
	oc := &ObservableConnection{
		subs:    make(map[subKey]subscription),
		open:    true,
		sendFn:  send,
		codec:   codec.Identity(),
		newline: "\n",
		name:    name,
		log:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(oc)
	}

	return oc
}

// Name returns the name this connection was constructed with.
func (oc *ObservableConnection) Name() string { return oc.name }

// Newline returns the newline sequence parsers on top of this connection
// should split on.
func (oc *ObservableConnection) Newline() string { return oc.newline }

// IsOpen reports whether the connection still accepts inbound data.
func (oc *ObservableConnection) IsOpen() bool {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.open
}

// Send encodes data via this connection's codec and hands the bytes to the
// outbound callable. A transport failure is wrapped in errs.ErrTransport
// and surfaced synchronously; it has no effect on any observer.
func (oc *ObservableConnection) Send(data string) error {
	b, err := oc.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", errs.ErrTransport, err)
	}

	if err := oc.sendFn(b); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrTransport, err)
	}

	return nil
}

// DataReceived is the incoming-IO entrypoint: the transport calls this for
// every inbound chunk. A closed connection silently drops the call.
func (oc *ObservableConnection) DataReceived(raw []byte) {
	oc.mu.Lock()
	if !oc.open {
		oc.mu.Unlock()
		return
	}
	oc.mu.Unlock()

	oc.log.Log(diagnostics.RawData, "raw data received", zap.ByteString("data", raw))

	text, err := oc.codec.Decode(raw)
	if err != nil {
		oc.log.Warn("decode failed", zap.Error(err))
		return
	}

	oc.log.Info("data received", zap.String("data", text))

	oc.notify(text)
}

func (oc *ObservableConnection) notify(text string) {
	oc.mu.Lock()
	keys := make([]subKey, 0, len(oc.subs))
	snapshot := make([]subscription, 0, len(oc.subs))
	for k, s := range oc.subs {
		keys = append(keys, k)
		snapshot = append(snapshot, s)
	}
	oc.mu.Unlock()

	var gone []subKey
	for i, s := range snapshot {
		if !s.deliver(text) {
			gone = append(gone, keys[i])
		}
	}

	// Entries whose weak subject has been collected are dropped.
	if len(gone) > 0 {
		oc.mu.Lock()
		for _, k := range gone {
			delete(oc.subs, k)
		}
		oc.mu.Unlock()
	}
}

func (oc *ObservableConnection) subscribe(key subKey, deliver func(string) bool, onClose func()) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.log.Log(diagnostics.Trace, "subscribe", zap.Uintptr("subject", key.subjectID), zap.Uintptr("func", key.funcID))

	if _, found := oc.subs[key]; found {
		return
	}

	oc.subs[key] = subscription{deliver: deliver, onClose: onClose}
}

func (oc *ObservableConnection) unsubscribe(key subKey) {
	oc.mu.Lock()
	defer oc.mu.Unlock()

	oc.log.Log(diagnostics.Trace, "unsubscribe", zap.Uintptr("subject", key.subjectID), zap.Uintptr("func", key.funcID))

	if _, found := oc.subs[key]; !found {
		oc.log.Warn("unsubscribe of unknown subscription", zap.Uintptr("subject", key.subjectID), zap.Uintptr("func", key.funcID))
		return
	}

	delete(oc.subs, key)
}

// Shutdown invokes every registered close handler exactly once, then clears
// the subscriber registry and marks the connection closed. Re-entrant calls
// are a no-op.
func (oc *ObservableConnection) Shutdown() {
	oc.mu.Lock()
	if oc.closed {
		oc.mu.Unlock()
		return
	}
	oc.closed = true

	handlers := make([]func(), 0, len(oc.subs))
	for _, s := range oc.subs {
		if s.onClose != nil {
			handlers = append(handlers, s.onClose)
		}
	}
	oc.mu.Unlock()

	for _, h := range handlers {
		h()
	}

	oc.mu.Lock()
	oc.subs = make(map[subKey]subscription)
	oc.open = false
	oc.mu.Unlock()
}

// subscriberCount reports the number of live registry entries; exported via
// Len for tests that assert the shutdown barrier (spec S4/invariant 4).
func (oc *ObservableConnection) subscriberCount() int {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return len(oc.subs)
}

// Len exposes subscriberCount to callers outside this package (tests in
// other packages need it to assert shutdown unsubscribes everything).
func (oc *ObservableConnection) Len() int { return oc.subscriberCount() }

// Receiver is the one method the generic Subscribe/Unsubscribe pair needs
// from a subject. observer.Observer always satisfies it.
type Receiver interface {
	DataReceived(text string)
}

// dataReceivedFuncID is the fixed function identity used for every bound
// Subscribe: every subject in this package registers at most one data
// subscription (its own DataReceived), so distinguishing "which method"
// the way spec §3 describes for a general bound-method registry is
// unnecessary here - only "which subject" varies.
const dataReceivedFuncID = ^uintptr(0)

// Subscribe registers subject for data-received notification. S is the
// concrete observer struct and P its pointer type (inferred from subject,
// e.g. *NetworkDownDetector); the two-type-parameter shape is Go's stand-in
// for spec §9's "explicit two-registration" guidance for languages that
// can't unwind a bound method on their own - it is also exactly what lets
// the registry hold a genuine weak.Pointer[S] instead of a strong
// closure. Once subject is no longer reachable from anywhere else,
// deliveries to it silently stop without the connection needing to be
// told. onClose is invoked at most once, when Shutdown runs.
//
// Subscribe is idempotent: subscribing the same subject twice only installs
// one subscription.
func Subscribe[S any, P interface {
	*S
	Receiver
}](oc *ObservableConnection, subject P, onClose func()) {
	ptr := (*S)(subject)
	key := subKey{
		subjectID: reflect.ValueOf(ptr).Pointer(),
		funcID:    dataReceivedFuncID,
	}

	wp := weak.Make(ptr)
	deliver := func(text string) bool {
		strong := wp.Value()
		if strong == nil {
			return false
		}
		P(strong).DataReceived(text)
		return true
	}

	oc.subscribe(key, deliver, onClose)
}

// Unsubscribe removes the subscription Subscribe installed for subject. An
// absent key is logged and ignored.
func Unsubscribe[S any, P interface {
	*S
	Receiver
}](oc *ObservableConnection, subject P) {
	ptr := (*S)(subject)
	key := subKey{
		subjectID: reflect.ValueOf(ptr).Pointer(),
		funcID:    dataReceivedFuncID,
	}
	oc.unsubscribe(key)
}

// SubscribeFree registers a free function (the sentinel subject identity is
// 0) for data-received notification. Unlike Subscribe, fn is held strongly
// for as long as the subscription lives - there is no receiver to collect.
func SubscribeFree(oc *ObservableConnection, fn func(string), onClose func()) {
	key := subKey{
		subjectID: 0,
		funcID:    reflect.ValueOf(fn).Pointer(),
	}

	deliver := func(text string) bool {
		fn(text)
		return true
	}

	oc.subscribe(key, deliver, onClose)
}

// UnsubscribeFree removes the subscription installed by SubscribeFree.
func UnsubscribeFree(oc *ObservableConnection, fn func(string)) {
	key := subKey{
		subjectID: 0,
		funcID:    reflect.ValueOf(fn).Pointer(),
	}
	oc.unsubscribe(key)
}
