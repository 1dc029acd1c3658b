// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package envelope implements the fixed-shape message header carried
// across the bus. It is the only structure that
// crosses broker boundaries: every broker's publish/receive path moves
// an *Envelope, and codecs operate strictly on its Payload.
//
// The shape is a single flat record of
// TMX's six wire fields plus the packed metadata bitfield; the topic
// travels alongside the payload so a broker can route without
// decoding.
package envelope

import "github.com/v2xhub/tmxcore/pkg/value"

// Preamble is the three 5-bit encodings of the letters T, M, X,
// counting A as 0: 0b10011_01100_10111 = 0x4D97. It is never stored in an
// Envelope; transports that need an on-wire sync pattern (framed
// socket brokers) may prepend it to a serialized envelope.
const Preamble uint16 = 0x4D97

// Envelope is the message header + payload pair.
type Envelope struct {
	// ID is the fully-qualified type name of the payload, or empty.
	ID string
	// Topic is the '/'-separated routing key.
	Topic string
	// Source is an informational origin string.
	Source string
	// Encoding is the canonical codec name selecting how Payload is
	// decoded; empty permits advisory auto-detection (DetectEncoding).
	Encoding string
	// Timestamp is an integer count, units by convention nanoseconds
	// since the Unix epoch.
	Timestamp int64
	// Metadata is the 64-bit packed bitfield (see Metadata/Pack/Unpack
	// in metadata.go).
	Metadata uint64
	// Payload is the opaque byte string; Length is always derived from
	// it rather than stored separately.
	Payload []byte
}

// New builds an envelope with the given topic/source/encoding and
// payload; Timestamp is left zero for the caller to stamp (broker and
// plugin layers stamp it at publish/broadcast time).
func New(topic, source, encoding string, payload []byte) *Envelope {
	return &Envelope{Topic: topic, Source: source, Encoding: encoding, Payload: payload}
}

// Length returns len(Payload); the field is always derived, never
// independently stored.
func (e *Envelope) Length() int {
	if e == nil {
		return 0
	}
	return len(e.Payload)
}

// Clone returns a deep copy; mutating the clone's Payload never
// affects the original, matching Value's deep-copy-for-scalars
// convention applied here to the payload byte string.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	out := *e
	if e.Payload != nil {
		out.Payload = append([]byte(nil), e.Payload...)
	}
	return &out
}

// DetectEncoding applies advisory auto-detection
// when Encoding is empty: skipping leading whitespace, a '{' or '['
// suggests JSON, a
// leading '<' suggests XML. It never overrides an explicit Encoding
// and never mutates e; callers decide whether to act on the result.
func (e *Envelope) DetectEncoding() string {
	if e == nil || e.Encoding != "" {
		return e.encodingOrEmpty()
	}
	for _, b := range e.Payload {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return "json"
		case '<':
			return "xml"
		default:
			return ""
		}
	}
	return ""
}

func (e *Envelope) encodingOrEmpty() string {
	if e == nil {
		return ""
	}
	return e.Encoding
}

// AsValue renders the envelope's addressable fields (everything but
// the opaque payload) as a Value map, for handlers or diagnostics that
// want to inspect headers uniformly through the typed-value model.
func (e *Envelope) AsValue() *value.Value {
	v := value.Map()
	v.SetField("id", value.String(e.ID, value.Width8))
	v.SetField("topic", value.String(e.Topic, value.Width8))
	v.SetField("source", value.String(e.Source, value.Width8))
	v.SetField("encoding", value.String(e.Encoding, value.Width8))
	v.SetField("timestamp", value.Int(e.Timestamp, 64))
	v.SetField("metadata", value.Uint(e.Metadata, 64))
	v.SetField("length", value.Int(int64(e.Length()), 64))
	return v
}
