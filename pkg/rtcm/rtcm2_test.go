// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package rtcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v2xhub/tmxcore/pkg/value"
)

// buildV2Word packs a 24-bit data field plus its computed parity into
// the 4-byte wire slot DecodeV2 expects, threading D29*/D30* from the
// previous word exactly as a real RTCM v2 stream would.
func buildV2Word(data uint32, prevD29, prevD30 *bool) []byte {
	parity := gpsWordParity(data, *prevD29, *prevD30)
	packed, err := value.PackBits(
		value.BitField{Value: uint64(data), Width: 24},
		value.BitField{Value: uint64(parity), Width: 6},
		value.BitField{Value: 0, Width: 2},
	)
	if err != nil {
		panic(err)
	}
	out, berr := value.BitsToBytes(packed, 32)
	if berr != nil {
		panic(berr)
	}
	*prevD29 = parity&2 != 0
	*prevD30 = parity&1 != 0
	return out
}

func TestDecodeV2ValidatesParityAndFraming(t *testing.T) {
	d29, d30 := false, false

	// Word 1: preamble (8 bits) + message type (6) + station id (10).
	word1 := uint32(PreambleV2)<<16 | uint32(18)<<10 | uint32(5)
	w1 := buildV2Word(word1, &d29, &d30)

	// Word 2: Z-count (13) + sequence (3) + length-in-words (5) + health (3).
	word2 := uint32(100)<<11 | uint32(1)<<8 | uint32(1)<<3
	w2 := buildV2Word(word2, &d29, &d30)

	// One data word.
	dataWord := uint32(0xABCDEF)
	w3 := buildV2Word(dataWord, &d29, &d30)

	buf := append(append(w1, w2...), w3...)

	frame, n, err := DecodeV2(buf)
	require.Nil(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, uint8(18), frame.MessageType)
	assert.Equal(t, uint16(5), frame.StationID)
	assert.Equal(t, uint8(1), frame.LengthWords)
	require.Len(t, frame.Words, 1)
	assert.Equal(t, dataWord, frame.Words[0])
}

func TestDecodeV2RejectsBadParity(t *testing.T) {
	d29, d30 := false, false
	word1 := uint32(PreambleV2)<<16 | uint32(1)<<10 | uint32(1)
	w1 := buildV2Word(word1, &d29, &d30)
	w1[3] ^= 0xFF

	word2 := uint32(1)<<11 | uint32(0)<<3
	w2 := buildV2Word(word2, &d29, &d30)

	_, _, err := DecodeV2(append(w1, w2...))
	require.NotNil(t, err)
	assert.Equal(t, "ProtocolError", err.Kind.String())
}
