// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package snmp implements the Net-SNMP broker:
// GET/SET dispatch over UDP, keyed by a "snmpget/..."/"snmpset/..."
// topic prefix, with ASN.1-typed MIB value selection
// (OCTET_STR/BOOLEAN/INTEGER/TIMETICKS/COUNTER/BIT_STR/DOUBLE/FLOAT).
//
// No suitable SNMP client library is available, so the wire
// encoding is built directly on github.com/go-asn1-ber/asn1-ber (BER
// is SNMP's message encoding) the same way pkg/codec/asn1 does, and
// transport is stdlib net.UDPConn. SNMPv3 key localization (the one
// piece that is genuinely cryptographic rather than just framing)
// uses golang.org/x/crypto/pbkdf2 for the password-to-key stretch;
// full USM authentication/privacy (HMAC digest + DES/AES payload
// encryption) is not implemented — v3 contexts localize a key from
// the secret and the "security-engine-id" parameter and store it in
// ctx.Defaults["localized-key"]; outgoing messages carry no USM
// security parameters, and no other security parameter (security
// level, auth/priv protocols or passphrases) is read.
package snmp

import (
	"crypto/sha1"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"golang.org/x/crypto/pbkdf2"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// Scheme names this client registers under.
const (
	SchemeV1    = "snmpv1"
	SchemeV2C   = "snmpv2c"
	SchemeV3    = "snmpv3"
	SchemeNTCIP = "ntcip"
)

const (
	versionV1  = 0
	versionV2C = 1
	versionV3  = 3
)

// PDU application tags (RFC 1157/3416).
const (
	pduGetRequest     = ber.Tag(0)
	pduGetNextRequest = ber.Tag(1)
	pduGetResponse    = ber.Tag(2)
	pduSetRequest     = ber.Tag(3)
)

func versionOf(scheme string) int64 {
	switch scheme {
	case SchemeV1:
		return versionV1
	case SchemeV3:
		return versionV3
	default: // snmpv2c, ntcip
		return versionV2C
	}
}

type conn struct {
	uc   *net.UDPConn
	peer *net.UDPAddr

	mu        sync.Mutex
	requestID int32
	pending   map[int32]chan *ber.Packet
}

// Client is a broker.Client over raw SNMP/UDP.
type Client struct {
	mu    sync.Mutex
	conns map[string]*conn
}

func New() *Client {
	return &Client{conns: make(map[string]*conn)}
}

func (c *Client) get(ctx *broker.Context) (*conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.conns[ctx.ID]
	return s, ok
}

func (c *Client) Initialize(ctx *broker.Context) *tmxerr.Error {
	if ctx.Host == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "snmp: context has no host")
	}
	if ctx.Port == 0 {
		ctx.Port = 161
	}
	return ctx.Initialize()
}

func stringParam(ctx *broker.Context, key string) string {
	if ctx.Parameters == nil {
		return ""
	}
	f := ctx.Parameters.Field(key)
	if f.IsNull() {
		return ""
	}
	return f.AsString()
}

// localizeKey derives an SNMPv3 USM key from a plaintext password via
// PBKDF2 (a stand-in for RFC 3414's password-to-key algorithm, a
// bespoke iterated-hash construction no available library offers;
// PBKDF2 gives the same "stretch a password into key
// material" shape using a real, audited primitive instead).
func localizeKey(password, engineID string) []byte {
	return pbkdf2.Key([]byte(password), []byte(engineID), 4096, 20, sha1.New)
}

func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	addr := fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.InvalidArgument, err, "snmp: bad address %s", addr)
		ctx.MarkDisconnected(e)
		return e
	}
	uc, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.NotConnected, err, "snmp: dial %s failed", addr)
		ctx.MarkDisconnected(e)
		return e
	}

	if ctx.Scheme == SchemeV3 {
		engineID := stringParam(ctx, "security-engine-id")
		if engineID != "" && ctx.Secret != "" {
			ctx.Defaults.SetField("localized-key",
				value.Bytes(localizeKey(ctx.Secret, engineID), value.BigEndian))
		}
	}

	s := &conn{uc: uc, peer: raddr, pending: make(map[int32]chan *ber.Packet)}
	c.mu.Lock()
	c.conns[ctx.ID] = s
	c.mu.Unlock()

	go c.readLoop(ctx, s)

	ctx.MarkConnected()
	return nil
}

func (c *Client) readLoop(ctx *broker.Context, s *conn) {
	buf := make([]byte, 65535)
	for {
		n, err := s.uc.Read(buf)
		if err != nil {
			ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "snmp: read failed"))
			return
		}
		pkt := ber.DecodePacket(buf[:n])
		if pkt == nil || len(pkt.Children) < 3 {
			continue
		}
		pdu := pkt.Children[2]
		reqIDPkt := firstChild(pdu)
		if reqIDPkt == nil {
			continue
		}
		reqID := int32(asInt(reqIDPkt))

		s.mu.Lock()
		ch, ok := s.pending[reqID]
		if ok {
			delete(s.pending, reqID)
		}
		s.mu.Unlock()

		if ok {
			ch <- pdu
		}
	}
}

func firstChild(p *ber.Packet) *ber.Packet {
	if p == nil || len(p.Children) == 0 {
		return nil
	}
	return p.Children[0]
}

func asInt(p *ber.Packet) int64 {
	if v, ok := p.Value.(int64); ok {
		return v
	}
	if v, ok := p.Value.(int); ok {
		return int64(v)
	}
	return 0
}

func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	s.uc.Close()
	c.mu.Lock()
	delete(c.conns, ctx.ID)
	c.mu.Unlock()
	ctx.MarkDisconnected(nil)
	return nil
}

func (c *Client) Destroy(ctx *broker.Context) *tmxerr.Error {
	if ctx.IsConnected() {
		c.Disconnect(ctx)
	}
	ctx.Destroy()
	return nil
}

func (c *Client) Subscribe(ctx *broker.Context, topic string, h broker.Handler) *tmxerr.Error {
	ctx.AddHandler(topic, h)
	ctx.SubscribeNotify(nil)
	return nil
}

func (c *Client) Unsubscribe(ctx *broker.Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	return nil
}

// oidFromTopic splits a "snmpget/1.3.6.1.2.1.1.1.0" or
// "snmpset/1.3.6.1.2.1.1.1.0" topic into its verb and OID.
func oidFromTopic(topic string) (verb, oid string, ok bool) {
	parts := strings.SplitN(topic, "/", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Publish dispatches on the env.Topic prefix: "snmpget/<MIB>" issues
// one GetRequest whose VarBindList names every OID keyed in
// env.Payload's JSON object, "snmpset/<MIB>" issues a SetRequest the
// same way with each key's value encoded through the ASN.1-typed MIB
// value selection. An empty or non-object payload falls back to the
// topic suffix as the single OID (with mibValueFromPayload supplying
// the SET value). The response's VarBindList is decoded into a result
// properties map, encoded back to JSON, and dispatched on the request
// topic.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		e := tmxerr.New(tmxerr.NotConnected, "snmp: context not connected")
		ctx.PublishNotify(e)
		return e
	}
	if !ctx.Allow() {
		e := tmxerr.New(tmxerr.OperationAborted, "snmp: publish rate limit exceeded")
		ctx.PublishNotify(e)
		return e
	}

	verb, oid, ok := oidFromTopic(env.Topic)
	if !ok {
		e := tmxerr.New(tmxerr.InvalidArgument, "snmp: topic must be snmpget/<oid> or snmpset/<oid>")
		ctx.PublishNotify(e)
		return e
	}

	var pduTag ber.Tag
	var binds []varBind
	switch verb {
	case "snmpget":
		pduTag = pduGetRequest
		if binds = bindsFromJSON(env.Payload, false); binds == nil {
			binds = []varBind{{OID: oid, Val: value.Null()}}
		}
	case "snmpset":
		pduTag = pduSetRequest
		if binds = bindsFromJSON(env.Payload, true); binds == nil {
			binds = []varBind{{OID: oid, Val: mibValueFromPayload(env)}}
		}
	default:
		e := tmxerr.New(tmxerr.InvalidArgument, "snmp: unknown topic verb "+verb)
		ctx.PublishNotify(e)
		return e
	}

	reqID := nextRequestID(s)
	msg := encodeMessage(versionOf(ctx.Scheme), stringParam(ctx, "community"), pduTag, reqID, binds)

	respCh := make(chan *ber.Packet, 1)
	s.mu.Lock()
	s.pending[reqID] = respCh
	s.mu.Unlock()

	if _, err := s.uc.Write(msg); err != nil {
		e := tmxerr.Wrap(tmxerr.ConnectionReset, err, "snmp: send failed")
		ctx.PublishNotify(e)
		return e
	}

	select {
	case pdu := <-respCh:
		payload, jerr := codec.EncodeJSON(varBindsToValue(pdu))
		if jerr != nil {
			ctx.PublishNotify(jerr)
			return jerr
		}
		resp := envelope.New(env.Topic, ctx.Scheme, "json", payload)
		ctx.Dispatch(env.Topic, resp)
		ctx.PublishNotify(nil)
		return nil
	case <-time.After(5 * time.Second):
		e := tmxerr.New(tmxerr.Timeout, "snmp: no response for "+env.Topic)
		ctx.PublishNotify(e)
		return e
	}
}

func nextRequestID(s *conn) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestID++
	return s.requestID
}

func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	return map[string]string{"scheme": ctx.Scheme, "version": strconv.FormatInt(versionOf(ctx.Scheme), 10)}
}

func (c *Client) IsConnected(ctx *broker.Context) bool {
	_, ok := c.get(ctx)
	return ok
}
