// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
)

func TestLifecycleTransitions(t *testing.T) {
	var notes []NotificationKind
	ctx := NewContext("tcp", 0, 0, func(_ *Context, n Notification) {
		notes = append(notes, n.Kind)
	})

	assert.Equal(t, StateUninitialized, ctx.State())
	require.Nil(t, ctx.Initialize())
	assert.Equal(t, StateInitialized, ctx.State())

	ctx.MarkConnected()
	assert.True(t, ctx.IsConnected())

	ctx.MarkRegistered()
	assert.True(t, ctx.IsConnected())
	assert.Equal(t, StateRegistered, ctx.State())

	ctx.Destroy()
	assert.Equal(t, StateUninitialized, ctx.State())
	assert.False(t, ctx.IsConnected())

	assert.Equal(t, []NotificationKind{OnInitialized, OnConnected, OnDestroyed}, notes)
}

func TestInitializeTwiceFails(t *testing.T) {
	ctx := NewContext("tcp", 0, 0, nil)
	require.Nil(t, ctx.Initialize())
	err := ctx.Initialize()
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.InvalidArgument, err.Kind)
}

func TestDisconnectEmitsErrorThenDisconnected(t *testing.T) {
	var notes []NotificationKind
	ctx := NewContext("tcp", 0, 0, func(_ *Context, n Notification) { notes = append(notes, n.Kind) })
	ctx.MarkConnected()
	ctx.MarkDisconnected(tmxerr.New(tmxerr.ConnectionReset, "peer closed"))
	assert.Equal(t, []NotificationKind{OnConnected, OnError, OnDisconnected}, notes)
}

func TestDispatchInvokesHandlersInRegistrationOrder(t *testing.T) {
	ctx := NewContext("tcp", 0, 0, nil)
	var order []int
	ctx.AddHandler("a/b", func(any) { order = append(order, 1) })
	ctx.AddHandler("a/b", func(any) { order = append(order, 2) })
	ctx.AddHandler("other", func(any) { order = append(order, 99) })

	ctx.Dispatch("a/b", nil)
	assert.Equal(t, []int{1, 2}, order)
}

func TestRemoveHandlerClearsTopic(t *testing.T) {
	ctx := NewContext("tcp", 0, 0, nil)
	called := false
	ctx.AddHandler("x", func(any) { called = true })
	ctx.RemoveHandler("x")
	ctx.Dispatch("x", nil)
	assert.False(t, called)
}

func TestAllowWithoutLimiterAlwaysTrue(t *testing.T) {
	ctx := NewContext("tcp", 0, 0, nil)
	for i := 0; i < 100; i++ {
		assert.True(t, ctx.Allow())
	}
}

func TestAllowWithLimiterEventuallyDenies(t *testing.T) {
	ctx := NewContext("tcp", rate.Limit(1), 1, nil)
	assert.True(t, ctx.Allow())
	assert.False(t, ctx.Allow())
}

func TestAwaitStateUnblocksOnTransition(t *testing.T) {
	ctx := NewContext("tcp", 0, 0, nil)
	done := make(chan struct{})
	go func() {
		ctx.AwaitState(StateConnected)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	ctx.MarkConnected()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitState did not unblock")
	}
}

func TestEachContextGetsAUniqueID(t *testing.T) {
	a := NewContext("tcp", 0, 0, nil)
	b := NewContext("tcp", 0, 0, nil)
	assert.NotEqual(t, a.ID, b.ID)
}
