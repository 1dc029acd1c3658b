// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plugin implements the plugin host: the
// config/status cache pair, (DAO, Tag)-keyed handler registration and
// dispatch, broadcast to every bound channel, and the
// process_args -> init -> main -> stop lifecycle.
//
// The executor is a small fixed worker pool with at
// least two workers so a blocking main loop cannot starve asynchronous
// broker callbacks. Graceful stop is a context.CancelFunc
// called at most once through a sync.Once, awaited via sync.WaitGroup.
package plugin

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/v2xhub/tmxcore/internal/metrics"
	"github.com/v2xhub/tmxcore/pkg/channel"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/registry"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
	"github.com/v2xhub/tmxcore/pkg/value"
)

const handlerNamespacePrefix = "plugin-registry"

// ConfigUpdate is the TmxPluginDataUpdate payload broadcast on
// <plugin-id>/config/<key> and <plugin-id>/status/<key>.
type ConfigUpdate struct {
	Key      string
	OldValue *value.Value
	NewValue *value.Value
}

// ToValue renders u as the Value tree broadcast on the wire.
func (u ConfigUpdate) ToValue() *value.Value {
	out := value.Map()
	out.SetField("key", value.String(u.Key, value.Width8))
	if u.OldValue != nil {
		out.SetField("old_value", u.OldValue)
	} else {
		out.SetField("old_value", value.Null())
	}
	out.SetField("new_value", u.NewValue)
	return out
}

// rawHandler is the type-erased form every registered handler is
// stored as: decode the dispatched Value into a DAO, then invoke.
type rawHandler func(v *value.Value, env *envelope.Envelope) *tmxerr.Error

// Plugin is the runtime host: one per TMX plugin
// process, owning its config/status caches, its handler registry, its
// bound channels, and its executor.
type Plugin struct {
	ID      string
	name    string
	version string

	Codecs *codec.Registry

	handlers *registry.Registry

	configMu     sync.Mutex
	config       *value.Value
	configSchema *jsonschema.Schema

	statusMu sync.Mutex
	status   *value.Value

	channelsMu sync.RWMutex
	channels   []*channel.Channel

	exec *executor

	scheduler gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// New returns a Plugin identified by id (used as the <plugin-id>
// prefix of every status/config/error topic) with name/version as
// reported by Name()/Version(). workers sizes the executor pool
// (clamped to a minimum of 2).
func New(id, name, version string, codecs *codec.Registry, workers int) *Plugin {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Plugin{
		ID:       id,
		name:     name,
		version:  version,
		Codecs:   codecs,
		handlers: registry.New(),
		config:   value.Map(),
		status:   value.Map(),
		exec:     newExecutor(workers),
		ctx:      ctx,
		cancel:   cancel,
	}
	return p
}

// Name reports the plugin's declared name.
func (p *Plugin) Name() string { return p.name }

// Version reports the plugin's declared version.
func (p *Plugin) Version() string { return p.version }

// BindChannel attaches ch to this plugin; Broadcast and Stop act on
// every bound channel.
func (p *Plugin) BindChannel(ch *channel.Channel) {
	p.channelsMu.Lock()
	defer p.channelsMu.Unlock()
	p.channels = append(p.channels, ch)
}

// GetConfig returns the cached value for key, or nil if unset.
func (p *Plugin) GetConfig(key string) *value.Value {
	p.configMu.Lock()
	defer p.configMu.Unlock()
	if !p.hasField(p.config, key) {
		return nil
	}
	return p.config.Field(key).Clone()
}

func (p *Plugin) hasField(m *value.Value, key string) bool {
	for _, k := range m.MapKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// SetConfig stores value under key; if the value changed, it
// broadcasts a ConfigUpdate on <plugin-id>/config/<key>.
// When a config schema has been declared (DeclareConfig), the
// resulting cache is validated before being accepted.
func (p *Plugin) SetConfig(key string, v *value.Value) *tmxerr.Error {
	p.configMu.Lock()
	candidate := p.config.Clone()
	candidate.SetField(key, v)
	p.configMu.Unlock()
	if err := p.validateConfig(candidate); err != nil {
		return err
	}
	return p.setCached(&p.configMu, p.config, "config", key, v)
}

// GetStatus returns the cached status value for key, or nil if unset.
func (p *Plugin) GetStatus(key string) *value.Value {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	if !p.hasField(p.status, key) {
		return nil
	}
	return p.status.Field(key).Clone()
}

// SetStatus stores value under key; if changed, broadcasts a
// ConfigUpdate on <plugin-id>/status/<key>.
func (p *Plugin) SetStatus(key string, v *value.Value) *tmxerr.Error {
	return p.setCached(&p.statusMu, p.status, "status", key, v)
}

func (p *Plugin) setCached(mu *sync.Mutex, cache *value.Value, section, key string, v *value.Value) *tmxerr.Error {
	mu.Lock()
	var old *value.Value
	if p.hasField(cache, key) {
		old = cache.Field(key).Clone()
	}
	changed := old == nil || !old.Equal(v)
	cache.SetField(key, v)
	mu.Unlock()

	if !changed {
		return nil
	}
	topic := fmt.Sprintf("%s/%s/%s", p.ID, section, key)
	update := ConfigUpdate{Key: key, OldValue: old, NewValue: v}
	return p.Broadcast(update.ToValue(), topic, p.ID, codec.JSON)
}

// fqname renders tag's dynamic type name for the composite handler
// key: reflect.Type.String (package name plus type name, e.g.
// "plugin.Foo") stands in for a fully-qualified
// type name.
func fqname(tag any) string {
	t := reflect.TypeOf(tag)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// RegisterHandler binds a callable of signature
// func(*value.Value, *envelope.Envelope) *tmxerr.Error under the
// composite key fqname(tag)+"|handle|"+daoName in the namespace
// plugin-registry::<topic>. tag disambiguates multiple
// listeners on the same topic; decode converts the dispatched Value
// into the handler's DAO shape before h runs (a DAO here is just
// another
// *value.Value view — structured DAOs are expressed as decode
// closures that extract and validate the fields a handler needs).
func (p *Plugin) RegisterHandler(topic string, tag any, daoName string, h rawHandler) *tmxerr.Error {
	key := fqname(tag) + "|handle|" + daoName
	ns := handlerNamespacePrefix + "::" + topic
	return p.handlers.RegisterHandler(ns, registry.TypeID(key), key, h)
}

// UnregisterHandler removes the handler registered under (topic, tag, daoName).
func (p *Plugin) UnregisterHandler(topic string, tag any, daoName string) {
	key := fqname(tag) + "|handle|" + daoName
	ns := handlerNamespacePrefix + "::" + topic
	p.handlers.Unregister(ns, registry.TypeID(key), key)
}

// Dispatch decodes env's payload with the codec named by env.Encoding
// and invokes every handler registered for env.Topic asynchronously
// through the executor.
// A handler error, or panic, is converted to a TmxError and broadcast
// on <plugin-id>/error rather than propagated.
func (p *Plugin) Dispatch(env *envelope.Envelope) {
	decoded, err := p.Codecs.Decode(env.Encoding, env.Payload)
	if err != nil {
		metrics.DecodeTotal.WithLabelValues(env.Encoding, metrics.OutcomeError).Inc()
		p.reportError(err)
		return
	}
	metrics.DecodeTotal.WithLabelValues(env.Encoding, metrics.OutcomeOK).Inc()

	ns := handlerNamespacePrefix + "::" + env.Topic
	descs := p.handlers.GetAll(ns, nil)
	if wildcard := wildcardTopic(env.Topic); wildcard != "" {
		descs = append(descs, p.handlers.GetAll(handlerNamespacePrefix+"::"+wildcard, nil)...)
	}
	for _, d := range descs {
		h, ok := d.Instance.(rawHandler)
		if !ok {
			continue
		}
		topic := env.Topic
		p.exec.submit(func() {
			start := time.Now()
			defer func() {
				metrics.DispatchLatencySeconds.WithLabelValues(topic).Observe(time.Since(start).Seconds())
				if r := recover(); r != nil {
					metrics.DispatchTotal.WithLabelValues(topic, metrics.OutcomeError).Inc()
					p.reportError(tmxerr.New(tmxerr.ProtocolError, fmt.Sprintf("plugin: handler panicked: %v", r)))
				}
			}()
			if herr := h(decoded, env); herr != nil {
				metrics.DispatchTotal.WithLabelValues(topic, metrics.OutcomeError).Inc()
				p.reportError(herr)
				return
			}
			metrics.DispatchTotal.WithLabelValues(topic, metrics.OutcomeOK).Inc()
		})
	}
}

// wildcardTopic renders topic's parent-path wildcard form
// ("plugin/config/key" -> "plugin/config/*"), the form a default
// handler registers under to catch every key of a section.
func wildcardTopic(topic string) string {
	i := strings.LastIndex(topic, "/")
	if i < 0 {
		return ""
	}
	return topic[:i] + "/*"
}

func (p *Plugin) reportError(err *tmxerr.Error) {
	tmxlog.Warnf("plugin %s: %s", p.ID, err.Message)
	wire := err.ToWire()
	payload := value.Map()
	payload.SetField("code", value.Int(int64(wire.Code), 32))
	payload.SetField("message", value.String(wire.Message, value.Width8))
	if berr := p.Broadcast(payload, p.ID+"/error", p.ID, codec.JSON); berr != nil {
		tmxlog.Errorf("plugin %s: failed to broadcast error: %s", p.ID, berr.Message)
	}
}

// Broadcast encodes v with the named (or default, if encoding is
// empty) codec, stamps the envelope timestamp, and forwards it to
// every bound channel whose context allows topic; it also invokes any
// in-process handlers registered for topic directly, enabling loopback
// without a broker round trip.
func (p *Plugin) Broadcast(v *value.Value, topic, source, encoding string) *tmxerr.Error {
	if encoding == "" {
		encoding = codec.JSON
	}
	payload, err := p.Codecs.Encode(encoding, v)
	if err != nil {
		return err
	}
	env := envelope.New(topic, source, encoding, payload)
	env.Timestamp = time.Now().UnixNano()

	p.channelsMu.RLock()
	channels := append([]*channel.Channel(nil), p.channels...)
	p.channelsMu.RUnlock()

	var firstErr *tmxerr.Error
	for _, ch := range channels {
		if !ch.MatchesOutbound(topic) {
			continue
		}
		if perr := ch.PublishEnvelope(env); perr != nil && firstErr == nil {
			firstErr = perr
		}
	}

	p.Dispatch(env)
	return firstErr
}

// Init creates the scheduler backing periodic broadcasts (e.g. a
// status-cache ticker registered via ScheduleStatusBroadcast; Main
// starts it), then wires the default handlers (config update,
// status update, error) onto their canonical topics.
func (p *Plugin) Init() *tmxerr.Error {
	s, gerr := gocron.NewScheduler()
	if gerr != nil {
		return tmxerr.Wrap(tmxerr.ProtocolError, gerr, "plugin: create scheduler")
	}
	p.scheduler = s

	p.RegisterHandler(p.ID+"/config/*", "default", "ConfigUpdate", func(v *value.Value, env *envelope.Envelope) *tmxerr.Error {
		tmxlog.Infof("plugin %s: config update on %s", p.ID, env.Topic)
		return nil
	})
	p.RegisterHandler(p.ID+"/status/*", "default", "ConfigUpdate", func(v *value.Value, env *envelope.Envelope) *tmxerr.Error {
		tmxlog.Infof("plugin %s: status update on %s", p.ID, env.Topic)
		return nil
	})
	p.RegisterHandler(p.ID+"/error", "default", "TmxError", func(v *value.Value, env *envelope.Envelope) *tmxerr.Error {
		tmxlog.Warnf("plugin %s: error %v", p.ID, v.Field("message").AsString())
		return nil
	})
	return nil
}

// ScheduleStatusBroadcast runs fn on a gocron DurationJob every
// interval until Stop is called; used to periodically rebroadcast the
// status cache at a fixed rate.
func (p *Plugin) ScheduleStatusBroadcast(interval time.Duration, fn func()) *tmxerr.Error {
	if p.scheduler == nil {
		return tmxerr.New(tmxerr.InvalidArgument, "plugin: Init must run before scheduling jobs")
	}
	_, gerr := p.scheduler.NewJob(gocron.DurationJob(interval), gocron.NewTask(fn))
	if gerr != nil {
		return tmxerr.Wrap(tmxerr.ProtocolError, gerr, "plugin: schedule status broadcast")
	}
	return nil
}

// Main starts the scheduler and blocks until the plugin's context is
// cancelled by Stop.
func (p *Plugin) Main() {
	if p.scheduler != nil {
		p.scheduler.Start()
	}
	<-p.ctx.Done()
}

// Stop disconnects each bound channel, destroys each broker context,
// and awaits executor quiescence. Idempotent.
func (p *Plugin) Stop() *tmxerr.Error {
	var stopErr *tmxerr.Error
	p.stopOnce.Do(func() {
		p.cancel()
		if p.scheduler != nil {
			_ = p.scheduler.Shutdown()
		}

		p.channelsMu.RLock()
		channels := append([]*channel.Channel(nil), p.channels...)
		p.channelsMu.RUnlock()

		for _, ch := range channels {
			if err := ch.Close(); err != nil && stopErr == nil {
				stopErr = err
			}
		}
		p.exec.quiesce()
	})
	return stopErr
}
