// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snmp

import (
	"net"
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

func TestOidFromTopicSplitsVerbAndOid(t *testing.T) {
	verb, oid, ok := oidFromTopic("snmpget/1.3.6.1.2.1.1.1.0")
	require.True(t, ok)
	assert.Equal(t, "snmpget", verb)
	assert.Equal(t, "1.3.6.1.2.1.1.1.0", oid)
}

func TestOidFromTopicRejectsBareTopic(t *testing.T) {
	_, _, ok := oidFromTopic("snmpget")
	assert.False(t, ok)
}

func TestVersionOfSelectsPerScheme(t *testing.T) {
	assert.EqualValues(t, versionV1, versionOf(SchemeV1))
	assert.EqualValues(t, versionV2C, versionOf(SchemeV2C))
	assert.EqualValues(t, versionV2C, versionOf(SchemeNTCIP))
	assert.EqualValues(t, versionV3, versionOf(SchemeV3))
}

func TestMibValueFromPayloadSelectsByEncoding(t *testing.T) {
	assert.Equal(t, int64(42), mibValueFromPayload(&envelope.Envelope{Encoding: "INTEGER", Payload: []byte("42")}).AsInt64())
	assert.True(t, mibValueFromPayload(&envelope.Envelope{Encoding: "BOOLEAN", Payload: []byte("true")}).AsBool())
	assert.Equal(t, "hello", mibValueFromPayload(&envelope.Envelope{Encoding: "", Payload: []byte("hello")}).AsString())
	assert.Equal(t, uint64(7), mibValueFromPayload(&envelope.Envelope{Encoding: "COUNTER", Payload: []byte("7")}).AsUint64())
}

func TestBindsFromJSONPreservesKeyOrder(t *testing.T) {
	binds := bindsFromJSON([]byte(`{"RSU-MIB::rsuMibVersion.0":true,"RSU-MIB::rsuID.0":true}`), false)
	require.Len(t, binds, 2)
	assert.Equal(t, "RSU-MIB::rsuMibVersion.0", binds[0].OID)
	assert.Equal(t, "RSU-MIB::rsuID.0", binds[1].OID)
	assert.True(t, binds[0].Val.IsNull())

	setBinds := bindsFromJSON([]byte(`{"RSU-MIB::rsuID.0":"rsu-7"}`), true)
	require.Len(t, setBinds, 1)
	assert.Equal(t, "rsu-7", setBinds[0].Val.AsString())

	assert.Nil(t, bindsFromJSON(nil, false))
	assert.Nil(t, bindsFromJSON([]byte("not json"), false))
	assert.Nil(t, bindsFromJSON([]byte(`{}`), false))
}

func TestEncodeMessageBuildsOneVarBindPerOID(t *testing.T) {
	binds := []varBind{
		{OID: "1.3.6.1.2.1.1.1.0", Val: value.Null()},
		{OID: "1.3.6.1.2.1.1.5.0", Val: value.Null()},
	}
	raw := encodeMessage(versionV2C, "public", pduGetRequest, 5, binds)
	pkt := ber.DecodePacket(raw)
	require.NotNil(t, pkt)
	require.Len(t, pkt.Children, 3)
	assert.EqualValues(t, versionV2C, asInt(pkt.Children[0]))
	assert.Equal(t, "public", pkt.Children[1].Value)

	pdu := pkt.Children[2]
	require.Len(t, pdu.Children, 4)
	assert.EqualValues(t, 5, asInt(pdu.Children[0]))

	varbinds := pdu.Children[3]
	require.Len(t, varbinds.Children, 2)
	assert.Equal(t, "1.3.6.1.2.1.1.1.0", oidOf(varbinds.Children[0].Children[0]))
	assert.Equal(t, "1.3.6.1.2.1.1.5.0", oidOf(varbinds.Children[1].Children[0]))
}

// fakeAgent answers exactly one request on a UDP socket: it echoes the
// request-id back in a GetResponse PDU whose VarBindList carries every
// OID the request named, each resolved through the answers table, so
// Publish's correlation and result-map paths can be exercised without
// a real SNMP agent.
func fakeAgent(t *testing.T, answers map[string]string) (string, int) {
	uc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 4096)
		n, peer, err := uc.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req := ber.DecodePacket(buf[:n])
		pdu := req.Children[2]
		reqID := asInt(firstChild(pdu))

		var binds []varBind
		for _, vb := range pdu.Children[3].Children {
			oid := oidOf(vb.Children[0])
			binds = append(binds, varBind{OID: oid, Val: value.String(answers[oid], value.Width8)})
		}

		resp := encodeMessage(versionV2C, "public", pduGetResponse, int32(reqID), binds)
		uc.WriteToUDP(resp, peer)
	}()

	addr := uc.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), addr.Port
}

// TestPublishGetMultiOIDFillsResultMap drives the RSU bootstrap shape:
// a snmpget topic with a two-key JSON payload must produce a single
// GET PDU naming both OIDs, and the response must come back on the
// request topic as a JSON properties map with one entry per OID.
func TestPublishGetMultiOIDFillsResultMap(t *testing.T) {
	host, port := fakeAgent(t, map[string]string{
		"RSU-MIB::rsuMibVersion.0": "4.1",
		"RSU-MIB::rsuID.0":         "rsu-1",
	})

	ctx := broker.NewContext(SchemeV2C, 0, 0, nil)
	ctx.Host, ctx.Port = host, port

	var received *envelope.Envelope
	done := make(chan struct{})

	cli := New()
	require.Nil(t, cli.Initialize(ctx))
	require.Nil(t, cli.Subscribe(ctx, "snmpget/RSU-MIB/rsuMIB", func(env any) {
		received = env.(*envelope.Envelope)
		close(done)
	}))
	require.Nil(t, cli.Connect(ctx))

	perr := cli.Publish(ctx, envelope.New("snmpget/RSU-MIB/rsuMIB", ctx.Scheme, "json",
		[]byte(`{"RSU-MIB::rsuMibVersion.0":true,"RSU-MIB::rsuID.0":true}`)))
	require.Nil(t, perr)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("never received a response to the GetRequest")
	}
	assert.Equal(t, "snmpget/RSU-MIB/rsuMIB", received.Topic)
	assert.Equal(t, "json", received.Encoding)
	assert.JSONEq(t, `{"RSU-MIB::rsuMibVersion.0":"4.1","RSU-MIB::rsuID.0":"rsu-1"}`, string(received.Payload))

	result, derr := codec.DecodeJSON(received.Payload)
	require.Nil(t, derr)
	assert.Equal(t, "4.1", result.Field("RSU-MIB::rsuMibVersion.0").AsString())
	assert.Equal(t, "rsu-1", result.Field("RSU-MIB::rsuID.0").AsString())
}

// TestPublishGetFallsBackToTopicOID covers the no-payload form: the
// topic suffix itself is the single OID queried.
func TestPublishGetFallsBackToTopicOID(t *testing.T) {
	host, port := fakeAgent(t, map[string]string{"1.3.6.1.2.1.1.1.0": "TMX RSU"})

	ctx := broker.NewContext(SchemeV2C, 0, 0, nil)
	ctx.Host, ctx.Port = host, port

	var received *envelope.Envelope
	done := make(chan struct{})

	cli := New()
	require.Nil(t, cli.Initialize(ctx))
	require.Nil(t, cli.Subscribe(ctx, "snmpget/1.3.6.1.2.1.1.1.0", func(env any) {
		received = env.(*envelope.Envelope)
		close(done)
	}))
	require.Nil(t, cli.Connect(ctx))

	perr := cli.Publish(ctx, envelope.New("snmpget/1.3.6.1.2.1.1.1.0", ctx.Scheme, "", nil))
	require.Nil(t, perr)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("never received a response to the GetRequest")
	}
	assert.Equal(t, "snmpget/1.3.6.1.2.1.1.1.0", received.Topic)
	assert.JSONEq(t, `{"1.3.6.1.2.1.1.1.0":"TMX RSU"}`, string(received.Payload))
}

func TestPublishRejectsMalformedTopic(t *testing.T) {
	ctx := broker.NewContext(SchemeV2C, 0, 0, nil)
	ctx.Host, ctx.Port = "127.0.0.1", 1 // a UDP dial needs no listening peer; nothing is sent

	cli := New()
	require.Nil(t, cli.Initialize(ctx))
	require.Nil(t, cli.Connect(ctx))
	defer cli.Destroy(ctx)
	err := cli.Publish(ctx, envelope.New("not-an-oid-topic", ctx.Scheme, "", nil))
	require.NotNil(t, err)
	assert.Equal(t, tmxerr.InvalidArgument, err.Kind)
}
