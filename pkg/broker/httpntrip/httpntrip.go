// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpntrip implements the HTTP/NTRIP broker:
// it dials a TCP connection the same way pkg/broker/
// socket does, synthesizes a raw HTTP/1.1 GET request with Basic
// auth, and parses the response status + header lines before handing
// the remainder of the stream over to the same byte-oriented read
// loop a plain socket bridge uses.
//
// Request/response framing is built by hand rather than with
// net/http's client, because the NTRIP handshake needs the connection
// left open afterward as a raw byte stream (the RTCM corrections
// feed), which net/http's RoundTripper does not model.
package httpntrip

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// Scheme is the URI scheme this client registers under.
const Scheme = "ntrip"

const defaultReadBytes = 65535

type conn struct {
	nc     net.Conn
	topic  string
	status int
	header map[string]string
	mu     sync.Mutex
}

// Client bridges the NTRIP handshake + raw stream onto broker.Client.
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
	if ctx.Host == "" || ctx.Path == "" {
		return tmxerr.New(tmxerr.InvalidArgument, "ntrip: context needs host and mountpoint path")
	}
	return ctx.Initialize()
}

func stringParam(ctx *broker.Context, key, def string) string {
	if ctx.Parameters != nil {
		if f := ctx.Parameters.Field(key); !f.IsNull() {
			return f.AsString()
		}
	}
	return def
}

// Connect dials the caster, issues the GET request for ctx.Path, and
// parses the status line + headers into the context's "headers"
// property bag.
func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	addr := fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		e := tmxerr.Wrap(tmxerr.NotConnected, err, "ntrip: dial %s failed", addr)
		ctx.MarkDisconnected(e)
		return e
	}

	if werr := writeRequest(nc, ctx); werr != nil {
		nc.Close()
		e := tmxerr.Wrap(tmxerr.ProtocolError, werr, "ntrip: request write failed")
		ctx.MarkDisconnected(e)
		return e
	}

	r := bufio.NewReader(nc)
	status, headers, perr := readResponse(r)
	if perr != nil {
		nc.Close()
		e := tmxerr.Wrap(tmxerr.ProtocolError, perr, "ntrip: response parse failed")
		ctx.MarkDisconnected(e)
		return e
	}
	if status != 200 {
		nc.Close()
		e := tmxerr.New(tmxerr.ProtocolError, fmt.Sprintf("ntrip: caster returned status %d", status))
		ctx.MarkDisconnected(e)
		return e
	}

	hv := value.Map()
	for k, v := range headers {
		hv.SetField(k, value.String(v, value.Width8))
	}
	ctx.Defaults.SetField("headers", hv)

	topic := stringParam(ctx, "topic", ctx.Path)
	s := &conn{nc: nc, topic: topic, status: status, header: headers}

	c.mu.Lock()
	c.conns[ctx.ID] = s
	c.mu.Unlock()

	go c.readLoop(ctx, s, r)

	ctx.MarkConnected()
	return nil
}

func writeRequest(nc net.Conn, ctx *broker.Context) error {
	path := ctx.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/%s\r\n", path, stringParam(ctx, "http-version", "1.1"))
	fmt.Fprintf(&b, "Host: %s\r\n", ctx.Host)
	fmt.Fprintf(&b, "Ntrip-Version: %s\r\n", stringParam(ctx, "ntrip-version", "Ntrip/2.0"))
	fmt.Fprintf(&b, "User-Agent: %s\r\n", stringParam(ctx, "user-agent", "NTRIP tmxcore/1.0"))
	if ctx.User != "" {
		userpass := base64.StdEncoding.EncodeToString([]byte(ctx.User + ":" + ctx.Secret))
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", userpass)
	}
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Connection: close\r\n")
	if gga := stringParam(ctx, "gga", ""); gga != "" {
		fmt.Fprintf(&b, "Ntrip-GGA: %s\r\n", gga)
	}
	// additional-headers carries extra "Name: value" lines joined by '|'.
	if extra := stringParam(ctx, "additional-headers", ""); extra != "" {
		for _, line := range strings.Split(extra, "|") {
			line = strings.TrimSpace(line)
			if line != "" {
				b.WriteString(line + "\r\n")
			}
		}
	}
	b.WriteString("\r\n")

	_, err := nc.Write([]byte(b.String()))
	return err
}

func readResponse(r *bufio.Reader) (int, map[string]string, error) {
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return 0, nil, err
	}
	status := parseStatus(statusLine)

	headers := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return status, headers, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if idx := strings.Index(line, ":"); idx >= 0 {
			headers[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
		}
	}
	return status, headers, nil
}

func parseStatus(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		if strings.HasPrefix(line, "ICY 200") || strings.Contains(line, "OK") {
			return 200
		}
		return 0
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return n
}

func (c *Client) readLoop(ctx *broker.Context, s *conn, r *bufio.Reader) {
	buf := make([]byte, defaultReadBytes)
	for {
		n, err := r.Read(buf)
		if err != nil {
			tmxlog.Warnf("ntrip[%s]: stream ended: %v", ctx.ID, err)
			ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "ntrip: stream closed"))
			return
		}
		data := append([]byte(nil), buf[:n]...)
		env := envelope.New(s.topic, Scheme, codecOf(ctx), data)
		ctx.Dispatch(s.topic, env)
	}
}

func codecOf(ctx *broker.Context) string {
	return stringParam(ctx, "encoding", "RTCM-SC10403.3")
}

func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
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

// Publish writes env.Payload back up the caster connection; this is
// the NTRIP *server* role (posting base-station observations) rather
// than the rover/client role Connect's GET request establishes. Most
// deployments only read from a caster, so this simply forwards bytes
// if the connection happens to accept them.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		e := tmxerr.New(tmxerr.NotConnected, "ntrip: context not connected")
		ctx.PublishNotify(e)
		return e
	}
	if !ctx.Allow() {
		e := tmxerr.New(tmxerr.OperationAborted, "ntrip: publish rate limit exceeded")
		ctx.PublishNotify(e)
		return e
	}
	if _, err := s.nc.Write(env.Payload); err != nil {
		e := tmxerr.Wrap(tmxerr.ConnectionReset, err, "ntrip: write failed")
		ctx.PublishNotify(e)
		return e
	}
	ctx.PublishNotify(nil)
	return nil
}

func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	info := map[string]string{"scheme": Scheme}
	if s, ok := c.get(ctx); ok {
		info["status"] = strconv.Itoa(s.status)
		info["mountpoint"] = ctx.Path
	}
	return info
}

func (c *Client) IsConnected(ctx *broker.Context) bool {
	_, ok := c.get(ctx)
	return ok
}
