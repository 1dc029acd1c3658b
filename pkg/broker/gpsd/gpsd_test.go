// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package gpsd

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

func fakeGpsd(t *testing.T, lines ...string) (string, int) {
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
		watchCmd, _ := r.ReadString('\n')
		_ = watchCmd

		for _, line := range lines {
			nc.Write([]byte(line + "\n"))
		}
	}()

	return addr.IP.String(), addr.Port
}

func TestTopicDerivedFromReportClass(t *testing.T) {
	topic, class := topicFor(SchemeGPSD, `{"class":"TPV","lat":1.0,"lon":2.0}`)
	assert.Equal(t, "gpsd/TPV", topic)
	assert.Equal(t, "TPV", class)
}

func TestTopicForNmeaSchemeUsesSentenceType(t *testing.T) {
	topic, class := topicFor(SchemeNMEA, "$GPGGA,172814.00,3412.3456,N,...")
	assert.Equal(t, "nmea/GGA", topic)
	assert.Equal(t, "", class)

	topic, _ = topicFor(SchemeNMEA, "garbage")
	assert.Equal(t, "nmea/UNKNOWN", topic)
}

func TestTopicForGnssSchemeClassifiesFrames(t *testing.T) {
	topic, _ := topicFor(SchemeGNSS, string([]byte{0xD3, 0x00, 0x13}))
	assert.Equal(t, "gnss/RTCM3", topic)

	topic, _ = topicFor(SchemeGNSS, string([]byte{0x66, 0x42}))
	assert.Equal(t, "gnss/RTCM2", topic)

	topic, _ = topicFor(SchemeGNSS, string([]byte{0xB5, 0x62, 0x01}))
	assert.Equal(t, "gnss/UBX", topic)

	topic, _ = topicFor(SchemeGNSS, "plain text")
	assert.Equal(t, "gnss/UNKNOWN", topic)
}

func TestConnectDispatchesTPVReport(t *testing.T) {
	host, port := fakeGpsd(t, `{"class":"TPV","lat":39.9,"lon":-83.0}`)

	ctx := broker.NewContext(SchemeGPSD, 0, 0, nil)
	ctx.Host, ctx.Port = host, port

	var received *envelope.Envelope
	done := make(chan struct{})

	cli := New()
	require.Nil(t, cli.Initialize(ctx))
	require.Nil(t, cli.Subscribe(ctx, "gpsd/TPV", func(env any) {
		received = env.(*envelope.Envelope)
		close(done)
	}))
	require.Nil(t, cli.Connect(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("never received the TPV report")
	}
	assert.Equal(t, "gpsd/TPV", received.Topic)
	assert.Equal(t, "TPV", received.ID)
}

func TestPublishIsNotSupported(t *testing.T) {
	ctx := broker.NewContext(SchemeGPSD, 0, 0, nil)
	cli := New()
	err := cli.Publish(ctx, envelope.New("x", "y", "", nil))
	require.NotNil(t, err)
}
