// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package httpntrip

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
)

func fakeCaster(t *testing.T, status string, body []byte) (string, int) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)

	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()

		r := bufio.NewReader(nc)
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}

		nc.Write([]byte("ICY " + status + "\r\n"))
		nc.Write([]byte("Server: tmxcore-test\r\n\r\n"))
		nc.Write(body)
	}()

	return addr.IP.String(), addr.Port
}

func TestConnectParsesStatusAndStreamsBody(t *testing.T) {
	host, port := fakeCaster(t, "200 OK", []byte("RTCM-BYTES"))

	ctx := broker.NewContext(Scheme, 0, 0, nil)
	ctx.Host, ctx.Port, ctx.Path = host, port, "/MOUNT1"

	var received []byte
	done := make(chan struct{})

	cli := New()
	require.Nil(t, cli.Initialize(ctx))

	require.Nil(t, cli.Subscribe(ctx, "/MOUNT1", func(env any) {
		received = env.(*envelope.Envelope).Payload
		close(done)
	}))

	require.Nil(t, cli.Connect(ctx))
	assert.True(t, cli.IsConnected(ctx))

	info := cli.GetBrokerInfo(ctx)
	assert.Equal(t, "200", info["status"])

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("never received the caster body")
	}
	assert.Equal(t, []byte("RTCM-BYTES"), received)
}

func TestConnectFailsOnNon200Status(t *testing.T) {
	host, port := fakeCaster(t, "401 Unauthorized", nil)

	ctx := broker.NewContext(Scheme, 0, 0, nil)
	ctx.Host, ctx.Port, ctx.Path = host, port, "/MOUNT1"

	cli := New()
	require.Nil(t, cli.Initialize(ctx))
	err := cli.Connect(ctx)
	require.NotNil(t, err)
	assert.False(t, cli.IsConnected(ctx))
}
