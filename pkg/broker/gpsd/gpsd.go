// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gpsd implements the GPSD/GNSS/NMEA broker:
// it dials the gpsd daemon's line-oriented TCP/JSON
// protocol directly (no CGo libgps binding, and no suitable pure-Go
// gpsd client exists, so this is a hand-rolled stdlib
// client over the wire protocol gpsd documents), issuing a `?WATCH`
// command whose mask depends on the connecting scheme.
package gpsd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
)

// Scheme names this client registers under: "gpsd" for decoded JSON
// reports (TPV/SKY/...), "gnss" for the raw receiver byte stream,
// "nmea" for (pseudo-)NMEA sentences gpsd reformats.
const (
	SchemeGPSD = "gpsd"
	SchemeGNSS = "gnss"
	SchemeNMEA = "nmea"
)

func watchCommand(scheme string) string {
	switch scheme {
	case SchemeNMEA:
		return `?WATCH={"enable":true,"nmea":true}` + "\n"
	case SchemeGNSS:
		return `?WATCH={"enable":true,"raw":1}` + "\n"
	default:
		return `?WATCH={"enable":true,"json":true}` + "\n"
	}
}

type conn struct {
	nc   net.Conn
	stop chan struct{}
}

// Client bridges gpsd's TCP/JSON protocol onto broker.Client.
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
		return tmxerr.New(tmxerr.InvalidArgument, "gpsd: context has no host")
	}
	if ctx.Port == 0 {
		ctx.Port = 2947
	}
	return ctx.Initialize()
}

// Connect dials gpsd and issues the watch command matching ctx.Scheme
// (the watch mask is derived from the scheme).
func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	addr := fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.NotConnected, err, "gpsd: dial %s failed", addr)
		ctx.MarkDisconnected(e)
		return e
	}
	if _, werr := nc.Write([]byte(watchCommand(ctx.Scheme))); werr != nil {
		nc.Close()
		e := tmxerr.Wrap(tmxerr.ProtocolError, werr, "gpsd: watch command failed")
		ctx.MarkDisconnected(e)
		return e
	}

	s := &conn{nc: nc, stop: make(chan struct{})}
	c.mu.Lock()
	c.conns[ctx.ID] = s
	c.mu.Unlock()

	go c.readLoop(ctx, s)

	ctx.MarkConnected()
	return nil
}

// readLoop splits the stream on '\n' and derives the dispatch topic
// from the line: the "gpsd" scheme uses the decoded report's "class"
// field (gpsd/TPV, gpsd/SKY, ...), "nmea" uses the sentence type
// (nmea/GGA, nmea/RMC, ...), and "gnss" classifies the leading frame
// bytes (gnss/RTCM2, gnss/RTCM3, gnss/UBX, gnss/UNKNOWN).
func (c *Client) readLoop(ctx *broker.Context, s *conn) {
	scanner := bufio.NewScanner(s.nc)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		topic, class := topicFor(ctx.Scheme, line)
		enc := ""
		if ctx.Scheme == SchemeGPSD {
			enc = "json"
		}
		env := envelope.New(topic, SchemeGPSD, enc, []byte(line))
		if class != "" {
			env.ID = class
		}
		ctx.Dispatch(topic, env)
	}
	if err := scanner.Err(); err != nil {
		tmxlog.Warnf("gpsd[%s]: read failed: %v", ctx.ID, err)
		ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "gpsd: stream closed"))
		return
	}
	ctx.MarkDisconnected(nil)
}

func topicFor(scheme, line string) (topic string, class string) {
	switch scheme {
	case SchemeNMEA:
		return SchemeNMEA + "/" + nmeaSentence(line), ""
	case SchemeGNSS:
		return SchemeGNSS + "/" + gnssFrameType(line), ""
	}
	if !strings.HasPrefix(line, "{") {
		return scheme, ""
	}
	var head struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(line), &head); err != nil || head.Class == "" {
		return scheme, ""
	}
	return scheme + "/" + strings.ToUpper(head.Class), head.Class
}

// nmeaSentence extracts the three-letter sentence type from a standard
// "$GPGGA,..."-style line (talker id GP + sentence GGA); proprietary
// or malformed sentences fall back to UNKNOWN.
func nmeaSentence(line string) string {
	if len(line) >= 6 && line[0] == '$' {
		return strings.ToUpper(line[3:6])
	}
	return "UNKNOWN"
}

// gnssFrameType classifies a raw receiver chunk by its leading bytes.
func gnssFrameType(line string) string {
	switch {
	case len(line) > 0 && line[0] == 0xD3:
		return "RTCM3"
	case len(line) > 0 && line[0] == 0x66:
		return "RTCM2"
	case len(line) > 1 && line[0] == 0xB5 && line[1] == 0x62:
		return "UBX"
	default:
		return "UNKNOWN"
	}
}

func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	close(s.stop)
	s.nc.Close()

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

// Publish is not meaningful for a gpsd read-only feed; gpsd does
// accept some control commands (e.g. `?POLL;`) but TMX has no use for
// writing telemetry back to a GNSS receiver, so this always fails
// with NotSupported through the usual notification path.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	e := tmxerr.New(tmxerr.NotSupported, "gpsd: publish is not supported on a read-only feed")
	ctx.PublishNotify(e)
	return e
}

func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	return map[string]string{"scheme": ctx.Scheme}
}

func (c *Client) IsConnected(ctx *broker.Context) bool {
	_, ok := c.get(ctx)
	return ok
}
