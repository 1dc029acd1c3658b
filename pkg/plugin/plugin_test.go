// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package plugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/channel"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

type fakeClient struct {
	published []*envelope.Envelope
	connected bool
}

func (f *fakeClient) Initialize(ctx *broker.Context) *tmxerr.Error { return ctx.Initialize() }
func (f *fakeClient) Destroy(ctx *broker.Context) *tmxerr.Error {
	ctx.Destroy()
	return nil
}
func (f *fakeClient) Connect(ctx *broker.Context) *tmxerr.Error {
	f.connected = true
	ctx.MarkConnected()
	return nil
}
func (f *fakeClient) Disconnect(ctx *broker.Context) *tmxerr.Error {
	f.connected = false
	ctx.MarkDisconnected(nil)
	return nil
}
func (f *fakeClient) Subscribe(ctx *broker.Context, topic string, h broker.Handler) *tmxerr.Error {
	ctx.AddHandler(topic, h)
	return nil
}
func (f *fakeClient) Unsubscribe(ctx *broker.Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	return nil
}
func (f *fakeClient) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	f.published = append(f.published, env)
	return nil
}
func (f *fakeClient) GetBrokerInfo(ctx *broker.Context) map[string]string { return nil }
func (f *fakeClient) IsConnected(ctx *broker.Context) bool                { return f.connected }

func newTestPlugin(t *testing.T) (*Plugin, *channel.Channel, *fakeClient) {
	t.Helper()
	codecs := codec.NewRegistry()
	p := New("TestPlugin", "test", "1.0", codecs, 2)
	client := &fakeClient{}
	ctx := broker.NewContext("tcp", 0, 0, nil)
	require.Nil(t, client.Initialize(ctx))
	require.Nil(t, client.Connect(ctx))
	ch := channel.New("main", ctx, client, codec.JSON)
	p.BindChannel(ch)
	require.Nil(t, p.Init())
	return p, ch, client
}

func TestRegisterAndDispatchInvokesHandler(t *testing.T) {
	p, _, _ := newTestPlugin(t)
	done := make(chan *value.Value, 1)
	require.Nil(t, p.RegisterHandler("V2X/Location", "listener-a", "Value", func(v *value.Value, env *envelope.Envelope) *tmxerr.Error {
		done <- v
		return nil
	}))

	payload, err := codec.NewRegistry().Encode(codec.JSON, mustLocation())
	require.Nil(t, err)
	p.Dispatch(envelope.New("V2X/Location", "gps", codec.JSON, payload))

	select {
	case v := <-done:
		assert.Equal(t, int64(42), v.Field("lat").AsInt64())
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	require.Nil(t, p.Stop())
}

func mustLocation() *value.Value {
	v := value.Map()
	v.SetField("lat", value.Int(42, 32))
	return v
}

func TestSetConfigBroadcastsUpdateOnChange(t *testing.T) {
	p, ch, client := newTestPlugin(t)
	ch.AllowOutbound("TestPlugin/*")

	require.Nil(t, p.SetConfig("interval", value.Int(5, 32)))
	require.Len(t, client.published, 1)
	assert.Equal(t, "TestPlugin/config/interval", client.published[0].Topic)

	client.published = nil
	require.Nil(t, p.SetConfig("interval", value.Int(5, 32)))
	assert.Empty(t, client.published, "unchanged config must not rebroadcast")

	require.Nil(t, p.Stop())
}

func TestDeclareConfigRejectsWrongType(t *testing.T) {
	p, _, _ := newTestPlugin(t)
	err := p.DeclareConfig([]ConfigDescriptor{
		{Key: "interval", Default: value.Int(5, 32), Description: "poll interval"},
	})
	require.Nil(t, err)

	err = p.SetConfig("interval", value.String("not-a-number", value.Width8))
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.InvalidArgument, err.Kind)

	require.Nil(t, p.Stop())
}

func TestBroadcastInvokesLoopbackHandler(t *testing.T) {
	p, ch, _ := newTestPlugin(t)
	ch.AllowOutbound("V2X/*")
	called := make(chan struct{}, 1)
	require.Nil(t, p.RegisterHandler("V2X/Location", "loopback", "Value", func(v *value.Value, env *envelope.Envelope) *tmxerr.Error {
		called <- struct{}{}
		return nil
	}))

	require.Nil(t, p.Broadcast(mustLocation(), "V2X/Location", "TestPlugin", codec.JSON))
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("loopback handler was not invoked")
	}
	require.Nil(t, p.Stop())
}

func TestStopIsIdempotentAndQuiescesExecutor(t *testing.T) {
	p, _, client := newTestPlugin(t)
	require.Nil(t, p.Stop())
	require.Nil(t, p.Stop())
	assert.False(t, client.connected)
}
