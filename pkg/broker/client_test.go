// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

// memClient is an in-process Client used only to exercise the scheme
// registry and the Client contract's shape; the concrete network
// brokers (nats, kafka, socket, httpntrip, gpsd, snmp) each get their
// own package-level tests.
type memClient struct {
	published []*envelope.Envelope
}

func (m *memClient) Initialize(ctx *Context) *tmxerr.Error { return ctx.Initialize() }
func (m *memClient) Destroy(ctx *Context) *tmxerr.Error     { ctx.Destroy(); return nil }
func (m *memClient) Connect(ctx *Context) *tmxerr.Error     { ctx.MarkConnected(); return nil }
func (m *memClient) Disconnect(ctx *Context) *tmxerr.Error  { ctx.MarkDisconnected(nil); return nil }
func (m *memClient) Subscribe(ctx *Context, topic string, h Handler) *tmxerr.Error {
	ctx.AddHandler(topic, h)
	ctx.SubscribeNotify(nil)
	return nil
}
func (m *memClient) Unsubscribe(ctx *Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	return nil
}
func (m *memClient) Publish(ctx *Context, env *envelope.Envelope) *tmxerr.Error {
	m.published = append(m.published, env)
	ctx.Dispatch(env.Topic, env)
	ctx.PublishNotify(nil)
	return nil
}
func (m *memClient) GetBrokerInfo(ctx *Context) map[string]string { return map[string]string{"scheme": ctx.Scheme} }
func (m *memClient) IsConnected(ctx *Context) bool                 { return ctx.IsConnected() }

func TestSchemeRegistryLookup(t *testing.T) {
	r := NewRegistry()
	c := &memClient{}
	require.Nil(t, r.RegisterClient("mem", c))

	got, ok := r.GetClient("mem")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.GetClient("missing")
	assert.False(t, ok)
}

func TestRegisterUnderEmptySchemeFails(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterClient("", &memClient{})
	require.NotNil(t, err)
}

func TestClientContractEndToEndLoopback(t *testing.T) {
	r := NewRegistry()
	c := &memClient{}
	require.Nil(t, r.RegisterClient("mem", c))

	client, ok := r.GetClient("mem")
	require.True(t, ok)

	ctx := NewContext("mem", 0, 0, nil)
	require.Nil(t, client.Initialize(ctx))
	require.Nil(t, client.Connect(ctx))
	assert.True(t, client.IsConnected(ctx))

	var received *envelope.Envelope
	require.Nil(t, client.Subscribe(ctx, "telemetry/gps", func(env any) {
		received = env.(*envelope.Envelope)
	}))

	env := envelope.New("telemetry/gps", "test", "json", []byte(`{}`))
	require.Nil(t, client.Publish(ctx, env))

	require.NotNil(t, received)
	assert.Equal(t, "telemetry/gps", received.Topic)
	assert.Len(t, c.published, 1)
}
