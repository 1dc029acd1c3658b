// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package rtcm

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/value"
)

func TestCRC24QKnownVector(t *testing.T) {
	// CRC-24Q of the empty string is 0 under a zero seed.
	assert.Equal(t, uint32(0), CRC24Q(nil))
}

func TestEncodeDecodeV3RoundTrip(t *testing.T) {
	f := FrameV3{MessageNumber: 1074, StationID: 42, Payload: []byte{0x01, 0x02, 0x03, 0x04}}
	enc, err := EncodeV3(f)
	require.Nil(t, err)
	assert.Equal(t, byte(PreambleV3), enc[0])

	dec, n, derr := DecodeV3(enc)
	require.Nil(t, derr)
	assert.Equal(t, len(enc), n)
	assert.Equal(t, f.MessageNumber, dec.MessageNumber)
	assert.Equal(t, f.StationID, dec.StationID)
	assert.Equal(t, f.Payload, dec.Payload)

	reenc, err := EncodeV3(dec)
	require.Nil(t, err)
	assert.Equal(t, enc, reenc)
}

func TestDecodeV3RejectsBadCRC(t *testing.T) {
	f := FrameV3{MessageNumber: 1005, StationID: 1, Payload: []byte{0xAA, 0xBB}}
	enc, err := EncodeV3(f)
	require.Nil(t, err)
	enc[len(enc)-1] ^= 0xFF

	_, _, derr := DecodeV3(enc)
	require.NotNil(t, derr)
	assert.Equal(t, "ProtocolError", derr.Kind.String())
}

func TestDecodeV3RejectsBadPreamble(t *testing.T) {
	_, _, err := DecodeV3([]byte{0x00, 0x01, 0x02})
	require.NotNil(t, err)
	assert.Equal(t, "MalformedInput", err.Kind.String())
}

func TestDecodeV3RejectsUnknownMessageNumber(t *testing.T) {
	f := FrameV3{MessageNumber: 1, StationID: 1, Payload: []byte{0x00}}
	enc, err := EncodeV3(f)
	require.Nil(t, err)
	_, _, derr := DecodeV3(enc)
	require.NotNil(t, derr)
	assert.Equal(t, "NotSupported", derr.Kind.String())
}

func TestDecodeV3LeadingGarbageSkipped(t *testing.T) {
	f := FrameV3{MessageNumber: 1005, StationID: 7, Payload: []byte{0x11, 0x22}}
	enc, err := EncodeV3(f)
	require.Nil(t, err)
	withGarbage := append([]byte{0x00, 0x00, 0x00}, enc...)

	dec, n, derr := DecodeV3(withGarbage)
	require.Nil(t, derr)
	assert.Equal(t, f.StationID, dec.StationID)
	assert.Equal(t, len(withGarbage), n)
}

// TestScenarioRTCM3Relay exercises the relay path: a gpsd/RTCM3 JSON
// decode of a type-1005 message must re-encode to a 25-byte RTCM v3
// frame with the documented preamble, message number, and station id.
func TestScenarioRTCM3Relay(t *testing.T) {
	in := value.Map()
	in.SetField("type", value.Int(1005, 16))
	in.SetField("length", value.Int(19, 16))
	in.SetField("station_id", value.Int(2003, 16))
	in.SetField("system", value.Array(value.String("GPS", value.Width8), value.String("GLONASS", value.Width8)))
	in.SetField("refstation", value.Bool(false))
	in.SetField("src", value.Bool(true))
	in.SetField("x", value.Float(1112161.9858, 64))
	in.SetField("y", value.Float(-4842856.0447, 64))
	in.SetField("z", value.Float(3985497.8739, 64))

	hexFrame, err := EncodeV3Value(in)
	require.Nil(t, err)

	frame, derr := DecodeV3Value(hexFrame)
	require.Nil(t, derr)
	assert.Equal(t, int64(1005), frame.Field("message_number").AsInt64())
	assert.Equal(t, int64(2003), frame.Field("station_id").AsInt64())
	assert.InDelta(t, 1112161.9858, frame.Field("x").AsFloat64(), 0.001)
	assert.InDelta(t, -4842856.0447, frame.Field("y").AsFloat64(), 0.001)
	assert.InDelta(t, 3985497.8739, frame.Field("z").AsFloat64(), 0.001)

	raw, herr := hex.DecodeString(string(hexFrame))
	require.Nil(t, herr)
	assert.Equal(t, 25, len(raw))
	assert.Equal(t, byte(PreambleV3), raw[0])
}
