// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package j2735 implements SAE J2735 MessageFrame embedding:
// wrapping an RTCM v3 correction payload as an ASN.1
// UPER `RTCMcorrections` frame so it can travel the bus as an ordinary
// `asn.1-uper` envelope.
//
// There is no J2735 ASN.1 skeleton compiler available here, so
// MessageFrame/RTCMcorrections
// are represented the same way every other ASN.1 payload in this
// module is: a value.Value tree handed to pkg/codec/asn1's generic
// UPER bit-packer, which writes each node as a kind tag followed by
// its content (pkg/rtcm's framing uses pkg/value's PackBits instead).
package j2735

import (
	"time"

	"github.com/v2xhub/tmxcore/pkg/codec/asn1"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// MessageIDRTCMcorrections is the J2735 MessageFrame messageId for an
// embedded RTCM correction set.
const MessageIDRTCMcorrections = 0x1C

// RevRTCMv3 is the RTCMcorrections.rev enumerant for an RTCM v3 payload.
const RevRTCMv3 = "rtcmRev3"

// Topic is the canonical outbound topic for an embedded RTCM correction
// frame.
const Topic = "J2735/RTCM"

// Encoding is the codec name the embedded frame is broadcast under.
const Encoding = "asn.1-uper"

// counter is the process-local, mod-128 msgCnt sequence RTCMcorrections
// carries. It belongs to the embedder, not to any one
// broker context, since msgCnt increments across every correction
// relayed by this process regardless of source.
type counter struct{ n uint8 }

func (c *counter) next() uint8 {
	v := c.n
	c.n = (c.n + 1) % 128
	return v
}

// Embedder builds successive MessageFrame{RTCMcorrections} envelopes
// from RTCM v3 bytes, tracking the mod-128 msgCnt sequence across calls.
type Embedder struct {
	seq counter
}

// NewEmbedder returns an Embedder with msgCnt starting at 0.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// BuildMessageFrame constructs the MessageFrame{ messageId=0x1C,
// value=RTCMcorrections{ msgCnt, rev=rtcmRev3, timeStamp, msgs=[{buf}] } }
// tree for one RTCM v3 message, where timeStamp is the minute-of-year
// derived from timestampNanos.
func (e *Embedder) BuildMessageFrame(rtcmBytes []byte, timestampNanos int64) *value.Value {
	corrections := value.Map()
	corrections.SetField("msgCnt", value.Int(int64(e.seq.next()), 8))
	corrections.SetField("rev", value.Enum(3, RevRTCMv3))
	corrections.SetField("timeStamp", value.Int(minuteOfYear(timestampNanos), 20))

	msg := value.Map()
	msg.SetField("buf", value.Bytes(rtcmBytes, value.BigEndian))
	corrections.SetField("msgs", value.Array(msg))

	frame := value.Map()
	frame.SetField("messageId", value.Int(MessageIDRTCMcorrections, 8))
	frame.SetField("value", corrections)
	return frame
}

// EmbedRTCM builds the MessageFrame for an inbound RTCM v3 envelope,
// UPER-encodes it, and returns the outbound J2735/RTCM envelope
// ready for re-broadcast. env.Payload must already be the raw (non-hex) RTCM
// v3 bytes; rtcm.DecodeV3Value's "payload" field provides this.
func (e *Embedder) EmbedRTCM(env *envelope.Envelope) (*envelope.Envelope, *tmxerr.Error) {
	frame := e.BuildMessageFrame(env.Payload, env.Timestamp)
	encoded, err := asn1.EncodeUPER(frame)
	if err != nil {
		return nil, err
	}
	out := envelope.New(Topic, env.Source, Encoding, encoded)
	out.ID = "MessageFrame"
	out.Timestamp = env.Timestamp
	return out, nil
}

// DecodeMessageFrame is EmbedRTCM's inverse at the MessageFrame layer:
// UPER-decode the payload back into its value.Value tree so tests and
// diagnostics can inspect messageId/msgCnt/rev/msgs[0].buf without
// re-deriving the bit layout.
func DecodeMessageFrame(uperHex []byte) (*value.Value, *tmxerr.Error) {
	return asn1.DecodeUPER(uperHex)
}

// minuteOfYear derives the J2735 minute-of-year timestamp (UTC) from a
// nanoseconds-since-epoch envelope timestamp.
func minuteOfYear(timestampNanos int64) int64 {
	t := time.Unix(0, timestampNanos).UTC()
	return int64((t.YearDay()-1)*24*60 + t.Hour()*60 + t.Minute())
}
