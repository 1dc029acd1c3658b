// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package channel implements the channel layer: a live
// binding between a plugin and a broker context. A channel records
// which topics are subscribed with which handlers, tracks which
// outbound topics it is willing to carry, and mediates publish calls
// so that payload encoding is delegated to the codec registry using
// the channel's preferred encoding rather than hard-coded per broker.
//
// Subscription tracking is a per-topic map guarded by one mutex,
// mirroring the broker Context's own handler map.
package channel

import (
	"strings"
	"sync"
	"time"

	"github.com/v2xhub/tmxcore/internal/metrics"
	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// Channel binds a broker.Context (and the broker.Client that drives it)
// to one plugin.
type Channel struct {
	Name            string
	Context         *broker.Context
	Client          broker.Client
	DefaultEncoding string

	mu            sync.RWMutex
	subscriptions map[string][]broker.Handler // topic -> in-process handlers registered through this channel
	outbound      []string                    // topic patterns this channel is willing to publish; empty means "any"
}

// New returns a Channel bound to ctx/client, with the given default
// outbound encoding (a canonical codec name; empty means raw).
func New(name string, ctx *broker.Context, client broker.Client, defaultEncoding string) *Channel {
	return &Channel{
		Name:            name,
		Context:         ctx,
		Client:          client,
		DefaultEncoding: defaultEncoding,
		subscriptions:   make(map[string][]broker.Handler),
	}
}

// AllowOutbound declares that this channel carries topic (or a
// pattern ending in "/*") on broadcast. A channel with no
// declared outbound topics matches every topic, the unrestricted
// broadcast default.
func (c *Channel) AllowOutbound(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbound = append(c.outbound, pattern)
}

// MatchesOutbound reports whether topic is carried by this channel.
func (c *Channel) MatchesOutbound(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.outbound) == 0 {
		return true
	}
	for _, pattern := range c.outbound {
		if topicMatches(pattern, topic) {
			return true
		}
	}
	return false
}

func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(topic, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Subscribe records h under topic and asks the broker client to
// subscribe the underlying context.
func (c *Channel) Subscribe(topic string, h broker.Handler) *tmxerr.Error {
	if err := c.Client.Subscribe(c.Context, topic, h); err != nil {
		return err
	}
	c.mu.Lock()
	c.subscriptions[topic] = append(c.subscriptions[topic], h)
	c.mu.Unlock()
	return nil
}

// Unsubscribe drops every handler recorded for topic on this channel
// and asks the broker client to unsubscribe.
func (c *Channel) Unsubscribe(topic string) *tmxerr.Error {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	return c.Client.Unsubscribe(c.Context, topic)
}

// Topics returns the topics this channel currently has subscriptions for.
func (c *Channel) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subscriptions))
	for t := range c.subscriptions {
		out = append(out, t)
	}
	return out
}

// Publish encodes v with the codec named by encoding (falling back to
// the channel's DefaultEncoding when encoding is empty), builds an
// envelope, stamps its timestamp, and hands it to the broker client.
func (c *Channel) Publish(codecs *codec.Registry, topic, source, encoding string, v *value.Value) *tmxerr.Error {
	if encoding == "" {
		encoding = c.DefaultEncoding
	}
	payload, err := codecs.Encode(encoding, v)
	if err != nil {
		metrics.EncodeTotal.WithLabelValues(encoding, metrics.OutcomeError).Inc()
		return err
	}
	metrics.EncodeTotal.WithLabelValues(encoding, metrics.OutcomeOK).Inc()

	env := envelope.New(topic, source, encoding, payload)
	env.Timestamp = time.Now().UnixNano()
	if err := c.Client.Publish(c.Context, env); err != nil {
		metrics.PublishTotal.WithLabelValues(topic, metrics.OutcomeError).Inc()
		return err
	}
	metrics.PublishTotal.WithLabelValues(topic, metrics.OutcomeOK).Inc()
	return nil
}

// PublishEnvelope hands an already-built envelope straight to the
// broker client, for callers (e.g. a relay handler) that already hold
// encoded bytes and don't need the codec round trip Publish performs.
func (c *Channel) PublishEnvelope(env *envelope.Envelope) *tmxerr.Error {
	return c.Client.Publish(c.Context, env)
}

// Close disconnects and destroys the channel's broker context, the
// plugin-stop half of the channel lifecycle.
func (c *Channel) Close() *tmxerr.Error {
	if err := c.Client.Disconnect(c.Context); err != nil {
		return err
	}
	return c.Client.Destroy(c.Context)
}
