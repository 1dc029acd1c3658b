// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package kafka implements the Kafka broker
// over github.com/twmb/franz-go/pkg/kgo: topic names are translated
// between TMX's '/'-separated form and Kafka's '.'-separated form,
// content-type/content-source/content-encoding travel as record
// headers, and each connected context runs a single background poll
// goroutine feeding its own topic handler list — Kafka gets
// a dedicated consumer goroutine, never the shared read loops the
// socket brokers use.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
)

// Scheme is the URI scheme this client registers under.
const Scheme = "kafka"

const (
	headerContentType     = "content-type"
	headerContentSource   = "content-source"
	headerContentEncoding = "content-encoding"
)

type conn struct {
	cl     *kgo.Client
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[string]bool
}

// Client is a broker.Client over kgo, one *kgo.Client (and one poll
// goroutine) per connected Context.
type Client struct {
	mu    sync.Mutex
	conns map[string]*conn
}

func New() *Client {
	return &Client{conns: make(map[string]*conn)}
}

func (c *Client) get(ctx *broker.Context) (*conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.conns[ctx.ID]
	return s, ok
}

// topicToKafka translates TMX's '/'-separated topic into Kafka's
// '.'-separated form.
func topicToKafka(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

// topicFromKafka is the inverse translation applied to inbound
// records.
func topicFromKafka(topic string) string {
	return strings.ReplaceAll(topic, ".", "/")
}

func (c *Client) Initialize(ctx *broker.Context) *tmxerr.Error {
	if ctx.Host == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "kafka: context has no seed broker host")
	}
	return ctx.Initialize()
}

func groupParam(ctx *broker.Context) string {
	if ctx.Parameters == nil {
		return ""
	}
	f := ctx.Parameters.Field("group")
	if f.IsNull() {
		return ""
	}
	return f.AsString()
}

// Connect constructs the kgo.Client against ctx's seed broker (plus
// any additional brokers in ctx.Parameters["brokers"], a comma
// separated list) using eager+cooperative rebalance,
// then starts the single background poll goroutine.
func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	seeds := []string{fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)}
	if ctx.Parameters != nil {
		if f := ctx.Parameters.Field("brokers"); !f.IsNull() {
			for _, b := range strings.Split(f.AsString(), ",") {
				if b = strings.TrimSpace(b); b != "" {
					seeds = append(seeds, b)
				}
			}
		}
	}

	opts := []kgo.Opt{kgo.SeedBrokers(seeds...)}
	if group := groupParam(ctx); group != "" {
		opts = append(opts, kgo.ConsumerGroup(group),
			kgo.Balancers(kgo.CooperativeStickyBalancer()))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.NotConnected, err, "kafka: client construction failed")
		ctx.MarkDisconnected(e)
		return e
	}

	pctx, cancel := context.WithCancel(context.Background())
	s := &conn{cl: cl, cancel: cancel, topics: make(map[string]bool)}

	c.mu.Lock()
	c.conns[ctx.ID] = s
	c.mu.Unlock()

	go c.pollLoop(pctx, ctx, s)

	ctx.MarkConnected()
	return nil
}

// pollLoop is the dedicated consumer goroutine, distinct from the
// per-socket read loops the socket brokers use.
func (c *Client) pollLoop(pctx context.Context, ctx *broker.Context, s *conn) {
	for {
		fetches := s.cl.PollFetches(pctx)
		if pctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			tmxlog.Warnf("kafka[%s]: fetch error on %s/%d: %v", ctx.ID, topic, partition, err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			c.deliver(ctx, r)
		})
	}
}

func (c *Client) deliver(ctx *broker.Context, r *kgo.Record) {
	topic := topicFromKafka(r.Topic)
	env := envelope.New(topic, Scheme, "", r.Value)
	for _, h := range r.Headers {
		switch h.Key {
		case headerContentType:
			env.ID = string(h.Value)
		case headerContentSource:
			env.Source = string(h.Value)
		case headerContentEncoding:
			env.Encoding = string(h.Value)
		}
	}
	ctx.Dispatch(topic, env)
}

func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	s.cancel()
	s.cl.Close()

	c.mu.Lock()
	delete(c.conns, ctx.ID)
	c.mu.Unlock()

	ctx.MarkDisconnected(nil)
	return nil
}

func (c *Client) Destroy(ctx *broker.Context) *tmxerr.Error {
	if ctx.IsConnected() {
		c.Disconnect(ctx)
	}
	ctx.Destroy()
	return nil
}

// Subscribe adds topic (translated to Kafka form) to the client's
// consumed set and registers h under ctx's topic handler list.
func (c *Client) Subscribe(ctx *broker.Context, topic string, h broker.Handler) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return tmxerr.New(tmxerr.NotConnected, "kafka: context not connected")
	}
	ctx.AddHandler(topic, h)

	kt := topicToKafka(topic)
	s.mu.Lock()
	alreadyConsuming := s.topics[kt]
	s.topics[kt] = true
	s.mu.Unlock()

	if !alreadyConsuming {
		s.cl.AddConsumeTopics(kt)
	}
	ctx.SubscribeNotify(nil)
	return nil
}

// Unsubscribe drops topic's handlers; it does not stop consuming the
// Kafka topic (another handler on the same context may still want
// it), matching the async socket bridge's equally conservative
// Unsubscribe.
func (c *Client) Unsubscribe(ctx *broker.Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	return nil
}

// Publish translates env.Topic to Kafka form, attaches the
// content-type/content-source/content-encoding headers, and produces
// asynchronously, surfacing the result via ctx's publish notification.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		e := tmxerr.New(tmxerr.NotConnected, "kafka: context not connected")
		ctx.PublishNotify(e)
		return e
	}
	if !ctx.Allow() {
		e := tmxerr.New(tmxerr.OperationAborted, "kafka: publish rate limit exceeded")
		ctx.PublishNotify(e)
		return e
	}

	rec := &kgo.Record{
		Topic: topicToKafka(env.Topic),
		Value: env.Payload,
		Headers: []kgo.RecordHeader{
			{Key: headerContentType, Value: []byte(env.ID)},
			{Key: headerContentSource, Value: []byte(env.Source)},
			{Key: headerContentEncoding, Value: []byte(env.Encoding)},
		},
	}

	s.cl.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			ctx.PublishNotify(tmxerr.Wrap(tmxerr.ProtocolError, err, "kafka produce failed"))
			return
		}
		ctx.PublishNotify(nil)
	})
	return nil
}

func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	info := map[string]string{"scheme": Scheme, "seed": fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)}
	return info
}

func (c *Client) IsConnected(ctx *broker.Context) bool {
	_, ok := c.get(ctx)
	return ok
}
