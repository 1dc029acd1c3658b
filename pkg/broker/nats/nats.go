// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nats implements a NATS-backed
// broker.Client that can run many independent connections, one per
// broker.Context, since TMX wires a separate context per plugin
// channel rather than sharing one process-wide connection.
package nats

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
)

// Scheme is the URI scheme this client registers under.
const Scheme = "nats"

type connState struct {
	conn *nats.Conn
	subs map[string]*nats.Subscription
	mu   sync.Mutex
}

// Client is a broker.Client backed by nats.go, one *nats.Conn per
// Context (keyed by Context.ID) rather than a single
// package-level singleton.
type Client struct {
	mu    sync.Mutex
	conns map[string]*connState
}

// New returns an empty multi-connection NATS client.
func New() *Client {
	return &Client{conns: make(map[string]*connState)}
}

func (c *Client) get(ctx *broker.Context) (*connState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.conns[ctx.ID]
	return s, ok
}

// Initialize records ctx without opening a connection yet; the
// uninitialized→initialized transition is address validation only.
func (c *Client) Initialize(ctx *broker.Context) *tmxerr.Error {
	if ctx.Host == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "nats: context has no host")
	}
	return ctx.Initialize()
}

// Connect opens the underlying *nats.Conn with the usual
// option-building (UserInfo, UserCredentials, reconnect/
// error handlers) but scoped to this one context instead of the
// global Keys config.
func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	addr := fmt.Sprintf("nats://%s:%d", ctx.Host, ctx.Port)

	var opts []nats.Option
	if ctx.User != "" && ctx.Secret != "" {
		opts = append(opts, nats.UserInfo(ctx.User, ctx.Secret))
	}
	if credsPath, ok := stringParam(ctx, "creds-file-path"); ok {
		opts = append(opts, nats.UserCredentials(credsPath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			tmxlog.Warnf("nats[%s]: disconnected: %v", ctx.ID, err)
			ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "nats disconnected"))
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		tmxlog.Infof("nats[%s]: reconnected to %s", ctx.ID, nc.ConnectedUrl())
		ctx.MarkConnected()
	}))
	opts = append(opts, nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		if err != nil {
			tmxlog.Errorf("nats[%s]: %v", ctx.ID, err)
		}
	}))

	nc, err := nats.Connect(addr, opts...)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.NotConnected, err, "nats connect to %s failed", addr)
		ctx.MarkDisconnected(e)
		return e
	}

	c.mu.Lock()
	c.conns[ctx.ID] = &connState{conn: nc, subs: make(map[string]*nats.Subscription)}
	c.mu.Unlock()

	ctx.MarkConnected()
	return nil
}

// Disconnect drains subscriptions and closes the connection.
func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	s.mu.Lock()
	for topic, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			tmxlog.Warnf("nats[%s]: unsubscribe %s failed: %v", ctx.ID, topic, err)
		}
	}
	s.subs = make(map[string]*nats.Subscription)
	s.conn.Close()
	s.mu.Unlock()

	c.mu.Lock()
	delete(c.conns, ctx.ID)
	c.mu.Unlock()

	ctx.MarkDisconnected(nil)
	return nil
}

// Destroy disconnects (if still connected) and resets ctx to
// uninitialized.
func (c *Client) Destroy(ctx *broker.Context) *tmxerr.Error {
	if ctx.IsConnected() {
		c.Disconnect(ctx)
	}
	ctx.Destroy()
	return nil
}

// Subscribe wraps the handler in a nats.MsgHandler that rebuilds an
// *envelope.Envelope from the raw message and dispatches it through
// ctx's own topic handler list — the per-(context, topic) callback
// registry — rather than going straight to the caller's h.
func (c *Client) Subscribe(ctx *broker.Context, topic string, h broker.Handler) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return tmxerr.New(tmxerr.NotConnected, "nats: context not connected")
	}

	ctx.AddHandler(topic, h)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[topic]; exists {
		return nil
	}

	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) {
		env := envelope.New(msg.Subject, Scheme, "", msg.Data)
		ctx.Dispatch(msg.Subject, env)
	})
	if err != nil {
		e := tmxerr.Wrap(tmxerr.ProtocolError, err, "nats subscribe to %s failed", topic)
		ctx.SubscribeNotify(e)
		return e
	}
	s.subs[topic] = sub
	ctx.SubscribeNotify(nil)
	return nil
}

// Unsubscribe removes every handler and the underlying NATS
// subscription for topic.
func (c *Client) Unsubscribe(ctx *broker.Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, exists := s.subs[topic]
	if !exists {
		return nil
	}
	delete(s.subs, topic)
	if err := sub.Unsubscribe(); err != nil {
		return tmxerr.Wrap(tmxerr.ProtocolError, err, "nats unsubscribe from %s failed", topic)
	}
	return nil
}

// Publish applies ctx's backpressure limiter, then publishes
// env.Payload to env.Topic.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		e := tmxerr.New(tmxerr.NotConnected, "nats: context not connected")
		ctx.PublishNotify(e)
		return e
	}
	if !ctx.Allow() {
		e := tmxerr.New(tmxerr.OperationAborted, "nats: publish rate limit exceeded")
		ctx.PublishNotify(e)
		return e
	}
	if err := s.conn.Publish(env.Topic, env.Payload); err != nil {
		e := tmxerr.Wrap(tmxerr.ProtocolError, err, "nats publish to %s failed", env.Topic)
		ctx.PublishNotify(e)
		return e
	}
	ctx.PublishNotify(nil)
	return nil
}

// GetBrokerInfo exposes the connected server's URL and connection
// status, the NATS analogue of the broker-info query.
func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	info := map[string]string{"scheme": Scheme}
	if s, ok := c.get(ctx); ok {
		info["connected_url"] = s.conn.ConnectedUrl()
		info["connected"] = fmt.Sprintf("%v", s.conn.IsConnected())
	}
	return info
}

// IsConnected reports whether ctx currently has a live *nats.Conn.
func (c *Client) IsConnected(ctx *broker.Context) bool {
	s, ok := c.get(ctx)
	return ok && s.conn.IsConnected()
}

func stringParam(ctx *broker.Context, key string) (string, bool) {
	if ctx.Parameters == nil {
		return "", false
	}
	f := ctx.Parameters.Field(key)
	if f.IsNull() {
		return "", false
	}
	return f.AsString(), true
}
