// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package broker

import (
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/registry"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

// Client is the broker transport contract:
// initialize/destroy/connect/disconnect/subscribe/unsubscribe/publish/
// get_broker_info/is_connected. Every concrete broker (Kafka, TCP/UDP,
// HTTP/NTRIP, GPSD, Net-SNMP, NATS) implements this against a Context
// it does not own the lifecycle of — the channel/plugin layer creates
// and destroys contexts; a Client only acts on the one it's handed.
//
// Connect and Publish failures are not returned to the immediate
// caller as the sole signal: the concrete brokers also emit the
// matching Context notification (on_error alongside, or instead of,
// on_connected/on_published) so that asynchronous completions and
// synchronous call failures look the same to a plugin. Subscribe does
// the same when the transport's subscribe call fails. Initialize
// failures, Unsubscribe failures, and a Subscribe on a context the
// kafka or nats client has not connected are reported only through
// the returned error.
type Client interface {
	Initialize(ctx *Context) *tmxerr.Error
	Destroy(ctx *Context) *tmxerr.Error
	Connect(ctx *Context) *tmxerr.Error
	Disconnect(ctx *Context) *tmxerr.Error
	Subscribe(ctx *Context, topic string, h Handler) *tmxerr.Error
	Unsubscribe(ctx *Context, topic string) *tmxerr.Error
	Publish(ctx *Context, env *envelope.Envelope) *tmxerr.Error
	GetBrokerInfo(ctx *Context) map[string]string
	IsConnected(ctx *Context) bool
}

const clientNamespace = "tmx::broker::client"

// Registry resolves a Client implementation by URI scheme (kafka, tcp,
// udp, http, gpsd, nmea, gnss, ntrip, snmpv1, snmpv2c, snmpv3, ntcip),
// reusing pkg/registry the same way pkg/codec's Registry does.
type Registry struct {
	reg *registry.Registry
}

// NewRegistry returns an empty scheme registry; concrete broker
// packages register themselves into it via RegisterClient during
// process wiring (no built-ins here, unlike pkg/codec, since every
// broker scheme needs a hand-off to its own external dependency).
func NewRegistry() *Registry {
	return &Registry{reg: registry.New()}
}

// RegisterClient binds c under scheme.
func (r *Registry) RegisterClient(scheme string, c Client) *tmxerr.Error {
	if scheme == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "broker: cannot register under the empty scheme")
	}
	return r.reg.RegisterType(clientNamespace, registry.TypeID(scheme), scheme, c)
}

// GetClient looks up the Client registered for scheme.
func (r *Registry) GetClient(scheme string) (Client, bool) {
	d, ok := r.reg.GetByName(clientNamespace, scheme)
	if !ok {
		return nil, false
	}
	c, ok := d.Instance.(Client)
	return c, ok
}
