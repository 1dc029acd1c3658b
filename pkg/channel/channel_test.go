// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// fakeClient is an in-process broker.Client for exercising the channel
// layer without a real transport, following the broker package's own
// test style of driving Context state transitions directly.
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

func newTestChannel(t *testing.T) (*Channel, *fakeClient) {
	t.Helper()
	client := &fakeClient{}
	ctx := broker.NewContext("tcp", 0, 0, nil)
	require.Nil(t, client.Initialize(ctx))
	require.Nil(t, client.Connect(ctx))
	return New("test", ctx, client, codec.JSON), client
}

func TestSubscribeRecordsTopicAndDelegatesToClient(t *testing.T) {
	ch, _ := newTestChannel(t)
	var got any
	require.Nil(t, ch.Subscribe("V2X/Location", func(env any) { got = env }))
	assert.Contains(t, ch.Topics(), "V2X/Location")

	ch.Context.Dispatch("V2X/Location", "payload")
	assert.Equal(t, "payload", got)
}

func TestUnsubscribeDropsTopic(t *testing.T) {
	ch, _ := newTestChannel(t)
	require.Nil(t, ch.Subscribe("a/b", func(any) {}))
	require.Nil(t, ch.Unsubscribe("a/b"))
	assert.NotContains(t, ch.Topics(), "a/b")
}

func TestPublishEncodesThroughCodecRegistry(t *testing.T) {
	ch, client := newTestChannel(t)
	codecs := codec.NewRegistry()
	v := value.Map()
	v.SetField("x", value.Int(42, 32))

	require.Nil(t, ch.Publish(codecs, "V2X/Location", "test", codec.JSON, v))
	require.Len(t, client.published, 1)
	assert.Equal(t, "V2X/Location", client.published[0].Topic)
	assert.JSONEq(t, `{"x":42}`, string(client.published[0].Payload))
}

func TestMatchesOutboundDefaultsToAny(t *testing.T) {
	ch, _ := newTestChannel(t)
	assert.True(t, ch.MatchesOutbound("anything/goes"))
	ch.AllowOutbound("V2X/*")
	assert.True(t, ch.MatchesOutbound("V2X/Location"))
	assert.False(t, ch.MatchesOutbound("J2735/RTCM"))
}

func TestCloseDisconnectsAndDestroys(t *testing.T) {
	ch, client := newTestChannel(t)
	require.Nil(t, ch.Close())
	assert.False(t, client.connected)
}
