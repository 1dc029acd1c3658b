// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package broker implements the broker abstraction:
// a context-scoped client contract, lifecycle state machine, and
// scheme-based lookup registry that every concrete transport
// (Kafka, TCP/UDP, HTTP/NTRIP, GPSD, Net-SNMP, NATS) plugs into.
//
// The Context type is an explicit,
// multi-instance object carrying three locks and three condition
// variables, since TMX needs many
// concurrent broker connections rather than one process-wide
// singleton.
package broker

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// State is the broker context lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateConnected
	StateDisconnected
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Handler receives envelopes delivered to a (context, topic) pair.
type Handler func(env any)

// NotificationKind names the completion notifications:
// on_initialized, on_connected, on_published, on_subscribed,
// on_error, plus on_disconnected and on_destroyed to round out every
// state transition symmetrically.
type NotificationKind string

const (
	OnInitialized  NotificationKind = "on_initialized"
	OnConnected    NotificationKind = "on_connected"
	OnDisconnected NotificationKind = "on_disconnected"
	OnPublished    NotificationKind = "on_published"
	OnSubscribed   NotificationKind = "on_subscribed"
	OnDestroyed    NotificationKind = "on_destroyed"
	OnError        NotificationKind = "on_error"
)

// Notification is delivered to a Context's NotifyFunc on every state
// transition and on every operation failure.
type Notification struct {
	Kind NotificationKind
	Err  *tmxerr.TmxError
}

// NotifyFunc is the completion-notification callback.
type NotifyFunc func(ctx *Context, n Notification)

// Context is the broker connection handle: scheme/user/
// secret/host/port/path/parameters/defaults/id/state plus the three
// locks and three condition variables guarding concurrent access, and
// a per-context handler registry keyed by topic.
type Context struct {
	Scheme string
	User   string
	Secret string
	Host   string
	Port   int
	Path   string

	Parameters *value.Value
	Defaults   *value.Value

	ID string

	stateMu sync.RWMutex
	state   State

	threadLock  sync.Mutex
	threadCond  *sync.Cond
	publishLock sync.Mutex
	publishCond *sync.Cond
	receiveLock sync.Mutex
	receiveCond *sync.Cond

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	limiter *rate.Limiter

	notify NotifyFunc
}

// NewContext builds an uninitialized Context for scheme. publishRate
// and burst configure the token-bucket limiter applied to publish;
// zero publishRate disables it.
func NewContext(scheme string, publishRate rate.Limit, burst int, notify NotifyFunc) *Context {
	c := &Context{
		Scheme:     scheme,
		Parameters: value.Map(),
		Defaults:   value.Map(),
		ID:         uuid.NewString(),
		handlers:   make(map[string][]Handler),
		notify:     notify,
	}
	c.threadCond = sync.NewCond(&c.threadLock)
	c.publishCond = sync.NewCond(&c.publishLock)
	c.receiveCond = sync.NewCond(&c.receiveLock)
	if publishRate > 0 {
		c.limiter = rate.NewLimiter(publishRate, burst)
	}
	return c
}

// State returns the context's current lifecycle state.
func (c *Context) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Context) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()

	c.threadLock.Lock()
	c.threadCond.Broadcast()
	c.threadLock.Unlock()
}

func (c *Context) emit(kind NotificationKind, err *tmxerr.Error) {
	if c.notify == nil {
		return
	}
	var wire *tmxerr.TmxError
	if err != nil {
		w := err.ToWire()
		wire = &w
	}
	c.notify(c, Notification{Kind: kind, Err: wire})
}

// Initialize transitions uninitialized → initialized.
func (c *Context) Initialize() *tmxerr.Error {
	if c.State() != StateUninitialized {
		return tmxerr.New(tmxerr.InvalidArgument, "broker: context already initialized")
	}
	c.setState(StateInitialized)
	c.emit(OnInitialized, nil)
	return nil
}

// MarkConnected transitions initialized/disconnected → connected.
// Concrete brokers call this after a successful Connect.
func (c *Context) MarkConnected() {
	c.setState(StateConnected)
	c.emit(OnConnected, nil)
}

// MarkDisconnected transitions connected → disconnected.
func (c *Context) MarkDisconnected(cause *tmxerr.Error) {
	c.setState(StateDisconnected)
	if cause != nil {
		c.emit(OnError, cause)
	}
	c.emit(OnDisconnected, nil)
}

// MarkRegistered transitions connected → registered, once the
// context's handlers have been wired to a plugin/channel.
func (c *Context) MarkRegistered() {
	c.setState(StateRegistered)
}

// Destroy transitions any state back to uninitialized.
func (c *Context) Destroy() {
	c.handlersMu.Lock()
	c.handlers = make(map[string][]Handler)
	c.handlersMu.Unlock()
	c.setState(StateUninitialized)
	c.emit(OnDestroyed, nil)
}

// IsConnected reports whether the context is connected or registered
// (registered implies an active connection with bound handlers).
func (c *Context) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateRegistered
}

// AwaitState blocks on the context's thread condition variable until
// the state becomes one of want.
func (c *Context) AwaitState(want ...State) {
	c.threadLock.Lock()
	defer c.threadLock.Unlock()
	for {
		cur := c.State()
		for _, w := range want {
			if cur == w {
				return
			}
		}
		c.threadCond.Wait()
	}
}

// AddHandler registers handler under topic: identity-based handler
// lists per (context, topic) pair. The plugin layer performs codec
// lookup, not this layer.
func (c *Context) AddHandler(topic string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[topic] = append(c.handlers[topic], h)
}

// RemoveHandler drops every handler instance registered for topic;
// per-handler removal granularity lives in the plugin layer's
// (DAO, Tag) keying, so Unsubscribe clears the whole topic.
func (c *Context) RemoveHandler(topic string) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	delete(c.handlers, topic)
}

// Dispatch invokes every handler registered for topic, in
// registration order, preserving per-(context, topic) delivery order.
func (c *Context) Dispatch(topic string, env any) {
	c.handlersMu.RLock()
	hs := append([]Handler(nil), c.handlers[topic]...)
	c.handlersMu.RUnlock()
	for _, h := range hs {
		h(env)
	}
}

// Allow applies the publish token bucket without blocking: it reports
// false only when the limiter is configured and currently exhausted.
func (c *Context) Allow() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}

// PublishNotify emits on_published (or on_error) after a publish
// attempt.
func (c *Context) PublishNotify(err *tmxerr.Error) {
	if err != nil {
		c.emit(OnError, err)
		return
	}
	c.emit(OnPublished, nil)
}

// SubscribeNotify emits on_subscribed (or on_error) after a subscribe
// attempt.
func (c *Context) SubscribeNotify(err *tmxerr.Error) {
	if err != nil {
		c.emit(OnError, err)
		return
	}
	c.emit(OnSubscribed, nil)
}
