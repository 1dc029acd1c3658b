// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package socket implements the async TCP/UDP bridge:
// a broker.Client over raw sockets with four schemes —
// "tcp"/"udp" dial a remote peer, "tcp-d"/"udp-d" bind and serve one.
// Framing uses an optional "message-break" parameter (a delimiter
// string); without one, TCP delivers whatever bytes a single read
// returns and UDP always delivers one full datagram per message.
//
// Stdlib net/bufio only: no third-party library offers anything
// beyond what net.Conn/net.PacketConn already give a raw socket
// bridge.
package socket

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/v2xhub/tmxcore/pkg/broker"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/tmxlog"
)

// Scheme names this client registers under.
const (
	SchemeTCP        = "tcp"
	SchemeUDP        = "udp"
	SchemeTCPServer  = "tcp-d"
	SchemeUDPServer  = "udp-d"
	defaultReadBytes = 65535
)

type peer struct {
	conn net.Conn
	w    *bufio.Writer
}

type conn struct {
	mu       sync.Mutex
	dialed   net.Conn
	listener net.Listener
	packet   net.PacketConn
	peers    map[string]*peer
	topic    string
	stop     chan struct{}
}

// Client bridges raw sockets onto the broker.Client contract.
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

func isServerScheme(scheme string) bool {
	return scheme == SchemeTCPServer || scheme == SchemeUDPServer
}

func networkOf(scheme string) string {
	switch scheme {
	case SchemeTCP, SchemeTCPServer:
		return "tcp"
	default:
		return "udp"
	}
}

func (c *Client) Initialize(ctx *broker.Context) *tmxerr.Error {
	if ctx.Host == "" || ctx.Port == 0 {
		return tmxerr.New(tmxerr.InvalidArgument, "socket: context needs host and port")
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

// Connect dials (tcp/udp) or binds (tcp-d/udp-d) depending on
// ctx.Scheme, and starts the read loop(s) feeding ctx's topic handler
// list, one read goroutine per socket.
func (c *Client) Connect(ctx *broker.Context) *tmxerr.Error {
	network := networkOf(ctx.Scheme)
	addr := fmt.Sprintf("%s:%d", ctx.Host, ctx.Port)
	topic := stringParam(ctx, "topic")
	brk := stringParam(ctx, "message-break")

	s := &conn{peers: make(map[string]*peer), topic: topic, stop: make(chan struct{})}

	if !isServerScheme(ctx.Scheme) {
		nc, err := net.Dial(network, addr)
		if err != nil {
			e := tmxerr.Wrap(tmxerr.NotConnected, err, "socket: dial %s failed", addr)
			ctx.MarkDisconnected(e)
			return e
		}
		s.dialed = nc
		s.peers[nc.RemoteAddr().String()] = &peer{conn: nc, w: bufio.NewWriter(nc)}
		go c.readStream(ctx, s, nc, brk)
	} else if network == "tcp" {
		ln, err := net.Listen(network, addr)
		if err != nil {
			e := tmxerr.Wrap(tmxerr.NotConnected, err, "socket: listen %s failed", addr)
			ctx.MarkDisconnected(e)
			return e
		}
		s.listener = ln
		go c.acceptLoop(ctx, s, brk)
	} else {
		pc, err := net.ListenPacket(network, addr)
		if err != nil {
			e := tmxerr.Wrap(tmxerr.NotConnected, err, "socket: listen %s failed", addr)
			ctx.MarkDisconnected(e)
			return e
		}
		s.packet = pc
		go c.readPacket(ctx, s)
	}

	c.mu.Lock()
	c.conns[ctx.ID] = s
	c.mu.Unlock()

	ctx.MarkConnected()
	return nil
}

func (c *Client) acceptLoop(ctx *broker.Context, s *conn, brk string) {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "socket: accept failed"))
				return
			}
		}
		s.mu.Lock()
		s.peers[nc.RemoteAddr().String()] = &peer{conn: nc, w: bufio.NewWriter(nc)}
		s.mu.Unlock()
		go c.readStream(ctx, s, nc, brk)
	}
}

func (c *Client) readStream(ctx *broker.Context, s *conn, nc net.Conn, brk string) {
	r := bufio.NewReader(nc)
	for {
		var data []byte
		var err error
		if brk != "" {
			data, err = r.ReadBytes(brk[len(brk)-1])
		} else {
			buf := make([]byte, defaultReadBytes)
			var n int
			n, err = r.Read(buf)
			data = buf[:n]
		}
		if err != nil {
			s.mu.Lock()
			delete(s.peers, nc.RemoteAddr().String())
			s.mu.Unlock()
			if err != io.EOF {
				tmxlog.Warnf("socket[%s]: read from %s failed: %v", ctx.ID, nc.RemoteAddr(), err)
			}
			if s.dialed == nc {
				select {
				case <-s.stop:
				default:
					var cause *tmxerr.Error
					if err != io.EOF {
						cause = tmxerr.Wrap(tmxerr.ConnectionReset, err, "socket: stream closed")
					}
					ctx.MarkDisconnected(cause)
				}
			}
			return
		}
		env := envelope.New(s.topic, ctx.Scheme, "", data)
		ctx.Dispatch(s.topic, env)
	}
}

func (c *Client) readPacket(ctx *broker.Context, s *conn) {
	buf := make([]byte, defaultReadBytes)
	for {
		n, addr, err := s.packet.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
				ctx.MarkDisconnected(tmxerr.Wrap(tmxerr.ConnectionReset, err, "socket: udp read failed"))
				return
			}
		}
		data := append([]byte(nil), buf[:n]...)
		env := envelope.New(s.topic, ctx.Scheme, "", data)
		ctx.Dispatch(s.topic, env)
		_ = addr
	}
}

func (c *Client) Disconnect(ctx *broker.Context) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		return nil
	}
	close(s.stop)
	s.mu.Lock()
	for _, p := range s.peers {
		p.conn.Close()
	}
	s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	if s.packet != nil {
		s.packet.Close()
	}

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

// Subscribe registers h for topic; raw sockets have no protocol-level
// topics, so every message delivered on this context's single
// configured topic (ctx.Parameters["topic"]) reaches every subscriber.
func (c *Client) Subscribe(ctx *broker.Context, topic string, h broker.Handler) *tmxerr.Error {
	ctx.AddHandler(topic, h)
	ctx.SubscribeNotify(nil)
	return nil
}

func (c *Client) Unsubscribe(ctx *broker.Context, topic string) *tmxerr.Error {
	ctx.RemoveHandler(topic)
	return nil
}

// Publish writes env.Payload to every connected peer (the dialed peer
// in client mode, every accepted connection in tcp-d server mode). A
// bound udp-d socket records no peers (the sender of each datagram is
// not kept), so Publish on it fails with ConnectionReset.
func (c *Client) Publish(ctx *broker.Context, env *envelope.Envelope) *tmxerr.Error {
	s, ok := c.get(ctx)
	if !ok {
		e := tmxerr.New(tmxerr.NotConnected, "socket: context not connected")
		ctx.PublishNotify(e)
		return e
	}
	if !ctx.Allow() {
		e := tmxerr.New(tmxerr.OperationAborted, "socket: publish rate limit exceeded")
		ctx.PublishNotify(e)
		return e
	}

	payload := env.Payload
	if brk := stringParam(ctx, "message-break"); brk != "" && !strings.HasSuffix(string(payload), brk) {
		payload = append(append([]byte(nil), payload...), []byte(brk)...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.peers) == 0 {
		e := tmxerr.New(tmxerr.ConnectionReset, "socket: no connected peer to publish to")
		ctx.PublishNotify(e)
		return e
	}
	for _, p := range s.peers {
		if _, err := p.conn.Write(payload); err != nil {
			e := tmxerr.Wrap(tmxerr.ConnectionReset, err, "socket: write failed")
			ctx.PublishNotify(e)
			return e
		}
	}
	ctx.PublishNotify(nil)
	return nil
}

func (c *Client) GetBrokerInfo(ctx *broker.Context) map[string]string {
	info := map[string]string{"scheme": ctx.Scheme}
	if s, ok := c.get(ctx); ok {
		s.mu.Lock()
		info["peers"] = fmt.Sprintf("%d", len(s.peers))
		s.mu.Unlock()
	}
	return info
}

func (c *Client) IsConnected(ctx *broker.Context) bool {
	s, ok := c.get(ctx)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers) > 0 || s.listener != nil || s.packet != nil
}
