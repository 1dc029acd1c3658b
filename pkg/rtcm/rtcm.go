// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rtcm implements the bit-exact RTCM v2/v3 frame codec:
// preamble/header/CRC framing and field unpacking for
// the DGNSS correction protocol family.
//
// Framing is built on pkg/value's generic bit packer (PackBits/
// UnpackBits/BitsToBytes), the same mechanism pkg/envelope uses for its
// metadata bitfield.
package rtcm

import (
	"encoding/hex"
	"math/big"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// PreambleV3 is the fixed first byte of every RTCM v3 frame.
const PreambleV3 = 0xD3

// PreambleV2 is the fixed 8-bit preamble of every RTCM v2 word-1.
const PreambleV2 = 0x66

// crc24qPoly is the canonical CRC-24Q polynomial, 0x1864CFB, seed 0.
const crc24qPoly = 0x1864CFB

var crc24qTable [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 16
		for bit := 0; bit < 8; bit++ {
			if crc&0x800000 != 0 {
				crc = (crc << 1) ^ crc24qPoly
			} else {
				crc <<= 1
			}
		}
		crc24qTable[i] = crc & 0xFFFFFF
	}
}

// CRC24Q computes the CRC-24Q checksum over b, seeded at 0.
func CRC24Q(b []byte) uint32 {
	var crc uint32
	for _, c := range b {
		crc = ((crc << 8) ^ crc24qTable[byte(crc>>16)^c]) & 0xFFFFFF
	}
	return crc
}

// FrameV3 is a decoded RTCM v3 message: the common
// two-word header plus the message-type-specific payload.
type FrameV3 struct {
	MessageNumber uint16
	StationID     uint16
	Payload       []byte // message-number+station-id excluded; CRC excluded
}

// EncodeV3 packs f into a bit-exact RTCM v3 frame: header word
// (preamble=0xD3, reserved=0, length), message-number+station-id word,
// the payload verbatim, and a trailing CRC-24Q computed over everything
// but the CRC itself.
func EncodeV3(f FrameV3) ([]byte, *tmxerr.Error) {
	length := 3 + len(f.Payload)
	if length > 1023 {
		return nil, tmxerr.New(tmxerr.MessageSize, "rtcm: v3 payload too large for 10-bit length")
	}
	headerWord, err := value.PackBits(
		value.BitField{Value: PreambleV3, Width: 8},
		value.BitField{Value: 0, Width: 6},
		value.BitField{Value: uint64(length), Width: 10},
	)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, err, "rtcm: pack v3 header")
	}
	headerBytes, berr := value.BitsToBytes(headerWord, 24)
	if berr != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, berr, "rtcm: frame v3 header")
	}
	msgWord, err := value.PackBits(
		value.BitField{Value: uint64(f.MessageNumber), Width: 12},
		value.BitField{Value: uint64(f.StationID), Width: 12},
	)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, err, "rtcm: pack v3 message/station word")
	}
	msgBytes, berr := value.BitsToBytes(msgWord, 24)
	if berr != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, berr, "rtcm: frame v3 message word")
	}

	body := make([]byte, 0, 3+3+len(f.Payload))
	body = append(body, headerBytes...)
	body = append(body, msgBytes...)
	body = append(body, f.Payload...)

	crc := CRC24Q(body)
	crcBytes, berr := value.BitsToBytes(new(big.Int).SetUint64(uint64(crc)), 24)
	if berr != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, berr, "rtcm: frame v3 crc")
	}
	return append(body, crcBytes...), nil
}

// DecodeV3 consumes optional leading bytes until the preamble is found,
// validates the header, and returns the frame plus the number of bytes
// consumed from b. Failures: MalformedInput (bad
// preamble/reserved), MessageSize (truncated), ProtocolError (bad CRC
// when a full trailing CRC is present), NotSupported (message number
// outside 1001..1230).
func DecodeV3(b []byte) (FrameV3, int, *tmxerr.Error) {
	start := -1
	for i, c := range b {
		if c == PreambleV3 {
			start = i
			break
		}
	}
	if start < 0 {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MalformedInput, "rtcm: no v3 preamble found")
	}
	b = b[start:]
	if len(b) < 3 {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MessageSize, "rtcm: truncated v3 header")
	}
	headerWord := value.BytesToBits(b[0:3])
	fields, err := value.UnpackBits(headerWord, 8, 6, 10)
	if err != nil {
		return FrameV3{}, 0, tmxerr.Wrap(tmxerr.MalformedInput, err, "rtcm: unpack v3 header")
	}
	if fields[0] != PreambleV3 {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MalformedInput, "rtcm: v3 preamble mismatch")
	}
	if fields[1] != 0 {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MalformedInput, "rtcm: v3 reserved bits nonzero")
	}
	length := int(fields[2])
	if length < 3 {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MalformedInput, "rtcm: v3 length shorter than common header")
	}
	need := 3 + length // header + (msgnum/station + payload)
	if len(b) < need {
		return FrameV3{}, 0, tmxerr.New(tmxerr.MessageSize, "rtcm: truncated v3 body")
	}
	msgWord := value.BytesToBits(b[3:6])
	msgFields, err := value.UnpackBits(msgWord, 12, 12)
	if err != nil {
		return FrameV3{}, 0, tmxerr.Wrap(tmxerr.MalformedInput, err, "rtcm: unpack v3 message word")
	}
	payload := append([]byte(nil), b[6:need]...)

	consumed := need
	if len(b) >= need+3 {
		gotCRC := value.BytesToBits(b[need : need+3]).Uint64()
		wantCRC := uint64(CRC24Q(b[:need]))
		if gotCRC != wantCRC {
			return FrameV3{}, 0, tmxerr.New(tmxerr.ProtocolError, "rtcm: v3 CRC-24Q mismatch")
		}
		consumed += 3
	}

	if !knownMessageNumber(uint16(msgFields[0])) {
		return FrameV3{}, 0, tmxerr.New(tmxerr.NotSupported, "rtcm: unsupported v3 message number")
	}

	return FrameV3{
		MessageNumber: uint16(msgFields[0]),
		StationID:     uint16(msgFields[1]),
		Payload:       payload,
	}, start + consumed, nil
}

// knownMessageNumber reports whether n falls in the documented RTCM v3
// message-number range (1001..1230).
func knownMessageNumber(n uint16) bool {
	return n >= 1001 && n <= 1230
}

// EncodeV3Value is the Value-facing codec entry point pkg/codec wires
// under RTCM-SC10403.3: it expects v to carry "message_number",
// "station_id", and either a raw "payload" byte string or, for message
// types this package understands natively (1005), the decoded field
// set built by EncodeType1005. The output is hex-encoded so it stays
// a printable byte string in the envelope.
func EncodeV3Value(v *value.Value) ([]byte, *tmxerr.Error) {
	msgNum := uint16(v.Field("message_number").AsInt64())
	if msgNum == 0 {
		msgNum = uint16(v.Field("type").AsInt64())
	}
	stationID := uint16(v.Field("station_id").AsInt64())

	var payload []byte
	if raw := v.Field("payload"); raw.Kind() == value.KindBytes {
		payload = raw.AsBytes()
	} else if msgNum == 1005 {
		encoded, err := EncodeType1005(v)
		if err != nil {
			return nil, err
		}
		payload = encoded
	} else {
		payload = v.Field("payload").AsBytes()
	}

	frame, err := EncodeV3(FrameV3{MessageNumber: msgNum, StationID: stationID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(frame)), nil
}

// DecodeV3Value is EncodeV3Value's inverse: hex-decode, frame-decode,
// and for message 1005 also expand the payload back into its typed
// fields so that decode(encode(v)) recovers the same field set.
func DecodeV3Value(b []byte) (*value.Value, *tmxerr.Error) {
	raw, herr := hex.DecodeString(string(b))
	if herr != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, herr, "rtcm: v3 payload is not hex")
	}
	frame, _, err := DecodeV3(raw)
	if err != nil {
		return nil, err
	}
	out := value.Map()
	out.SetField("message_number", value.Int(int64(frame.MessageNumber), 16))
	out.SetField("type", value.Int(int64(frame.MessageNumber), 16))
	out.SetField("station_id", value.Int(int64(frame.StationID), 16))
	out.SetField("payload", value.Bytes(frame.Payload, value.BigEndian))
	if frame.MessageNumber == 1005 {
		if fields, derr := DecodeType1005(frame.Payload); derr == nil {
			for _, k := range fields.MapKeys() {
				out.SetField(k, fields.Field(k))
			}
		}
	}
	return out, nil
}

// DecodeV2Value is the Value-facing decode entry point pkg/codec wires
// under RTCM-SC10402.3: it parses the v2 word framing (including
// parity validation) and surfaces the header fields plus the raw data
// words. Only v2 decode is needed on the bus-relay path, so
// EncodeV2Value reports NotSupported rather than
// guessing at a v2 word-parity encoder this implementation was never
// asked to build.
func DecodeV2Value(b []byte) (*value.Value, *tmxerr.Error) {
	frame, _, err := DecodeV2(b)
	if err != nil {
		return nil, err
	}
	out := value.Map()
	out.SetField("message_type", value.Int(int64(frame.MessageType), 8))
	out.SetField("station_id", value.Int(int64(frame.StationID), 16))
	out.SetField("z_count", value.Int(int64(frame.ZCount), 16))
	out.SetField("sequence_no", value.Int(int64(frame.SequenceNo), 8))
	words := value.Array()
	for i, w := range frame.Words {
		words.SetIndex(i, value.Uint(uint64(w), 24))
	}
	out.SetField("words", words)
	return out, nil
}

// EncodeV2Value always fails: see DecodeV2Value's doc comment.
func EncodeV2Value(v *value.Value) ([]byte, *tmxerr.Error) {
	return nil, tmxerr.New(tmxerr.NotSupported, "rtcm: v2 encode is not implemented")
}
