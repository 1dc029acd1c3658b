// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package j2735

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/envelope"
)

// TestScenarioRTCM3RelayEmbedding covers the J2735 half of the RTCM
// relay path: embedding an RTCM v3 message yields a MessageFrame whose
// messageId is 0x1C, whose rev is rtcmRev3, whose msgCnt starts at 0,
// and whose msgs[0].buf equals the original RTCM bytes.
func TestScenarioRTCM3RelayEmbedding(t *testing.T) {
	e := NewEmbedder()
	rtcmBytes := []byte{0xD3, 0x00, 0x13, 0x3E, 0xD0, 0x07, 0xAB, 0xCD}
	in := envelope.New("V2X/RTCM3", "rtcm-relay", "", rtcmBytes)
	in.Timestamp = 1700000000000000000

	out, err := e.EmbedRTCM(in)
	require.Nil(t, err)
	assert.Equal(t, Topic, out.Topic)
	assert.Equal(t, Encoding, out.Encoding)

	frame, derr := DecodeMessageFrame(out.Payload)
	require.Nil(t, derr)
	assert.Equal(t, int64(MessageIDRTCMcorrections), frame.Field("messageId").AsInt64())

	corrections := frame.Field("value")
	assert.Equal(t, int64(0), corrections.Field("msgCnt").AsInt64())
	assert.Equal(t, RevRTCMv3, corrections.Field("rev").EnumName())
	assert.Equal(t, rtcmBytes, corrections.Field("msgs").Index(0).Field("buf").AsBytes())
}

func TestMsgCntIncrementsAndWraps(t *testing.T) {
	e := NewEmbedder()
	for i := 0; i < 130; i++ {
		frame := e.BuildMessageFrame([]byte{0x01}, 0)
		want := int64(i % 128)
		assert.Equal(t, want, frame.Field("value").Field("msgCnt").AsInt64())
	}
}
