// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

func TestInitializeRequiresHost(t *testing.T) {
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, nil)

	err := c.Initialize(ctx)
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.InvalidArgument, err.Kind)

	ctx.Host = "localhost"
	require.Nil(t, c.Initialize(ctx))
	assert.Equal(t, broker.StateInitialized, ctx.State())
}

func TestSubscribeBeforeConnectFails(t *testing.T) {
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, nil)
	ctx.Host = "localhost"
	require.Nil(t, c.Initialize(ctx))

	err := c.Subscribe(ctx, "V2X/Location", func(any) {})
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.NotConnected, err.Kind)
}

func TestPublishBeforeConnectNotifiesError(t *testing.T) {
	var notes []broker.Notification
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, func(_ *broker.Context, n broker.Notification) {
		notes = append(notes, n)
	})
	ctx.Host = "localhost"
	require.Nil(t, c.Initialize(ctx))

	err := c.Publish(ctx, envelope.New("V2X/Location", "test", "json", []byte(`{}`)))
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.NotConnected, err.Kind)

	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	assert.Equal(t, broker.OnError, last.Kind)
	require.NotNil(t, last.Err)
	assert.Equal(t, tmxerr.NotConnected.Code(), last.Err.Code)
}

func TestUnsubscribeWithoutConnectionIsANoOp(t *testing.T) {
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, nil)
	ctx.Host = "localhost"
	require.Nil(t, c.Initialize(ctx))
	require.Nil(t, c.Unsubscribe(ctx, "V2X/Location"))
}

func TestGetBrokerInfoWithoutConnection(t *testing.T) {
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, nil)
	info := c.GetBrokerInfo(ctx)
	assert.Equal(t, Scheme, info["scheme"])
	_, hasURL := info["connected_url"]
	assert.False(t, hasURL)
}

func TestDestroyResetsContext(t *testing.T) {
	c := New()
	ctx := broker.NewContext(Scheme, 0, 0, nil)
	ctx.Host = "localhost"
	require.Nil(t, c.Initialize(ctx))
	require.Nil(t, c.Destroy(ctx))
	assert.Equal(t, broker.StateUninitialized, ctx.State())
}
