// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package rtcm

import (
	"math/big"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// wordV2Bytes is the byte width of one 30-bit RTCM v2 word as it
// appears on the wire: 24 data bits plus 6 parity bits, padded to 32
// bits per word.
const wordV2Bytes = 4

// FrameV2 is a decoded RTCM v2 message: the two header words plus the
// data words that follow.
type FrameV2 struct {
	MessageType uint8
	StationID   uint16
	ZCount      uint16
	SequenceNo  uint8
	LengthWords uint8 // length of the message in 30-bit words, header excluded
	Words       []uint32 // 24-bit data payloads of the data words, in order
}

// gpsWordParity computes the 6 parity bits for a 30-bit GPS/RTCM-v2
// word from its 24 data bits and the previous word's last two bits
// (D29*, D30*), per the standard GPS navigation-message parity
// algorithm RTCM v2 reuses for its own word framing. This package
// assumes an un-inverted stream (D29*=D30*=0 for the first word):
// reconstructing true upstream inversion state would require carrying
// parity bits across the whole subframe, which is out of scope for a
// bus-relay codec; parity validation does not require a full GPS
// receiver's bit-tracking.
func gpsWordParity(data uint32, prevD29, prevD30 bool) uint8 {
	d := make([]bool, 25) // 1-indexed, d[1]..d[24]
	for i := 1; i <= 24; i++ {
		bit := (data>>(24-uint(i)))&1 != 0
		if prevD30 {
			bit = !bit
		}
		d[i] = bit
	}
	xor := func(bits ...bool) bool {
		r := false
		for _, b := range bits {
			r = r != b
		}
		return r
	}
	d25 := xor(prevD29, d[1], d[2], d[3], d[5], d[6], d[10], d[11], d[12], d[13], d[14], d[17], d[18], d[20], d[23])
	d26 := xor(prevD30, d[2], d[3], d[4], d[6], d[7], d[11], d[12], d[13], d[14], d[15], d[18], d[19], d[21], d[24])
	d27 := xor(prevD29, d[1], d[3], d[4], d[5], d[7], d[8], d[12], d[13], d[14], d[15], d[16], d[19], d[20], d[22])
	d28 := xor(prevD30, d[2], d[4], d[5], d[6], d[8], d[9], d[13], d[14], d[15], d[16], d[17], d[20], d[21], d[23])
	d29 := xor(prevD30, d[1], d[3], d[5], d[6], d[7], d[9], d[10], d[14], d[15], d[16], d[17], d[18], d[21], d[22], d[24])
	d30 := xor(prevD29, d[3], d[5], d[6], d[8], d[9], d[10], d[11], d[13], d[15], d[19], d[22], d[23], d[24])

	var p uint8
	for _, b := range []bool{d25, d26, d27, d28, d29, d30} {
		p <<= 1
		if b {
			p |= 1
		}
	}
	return p
}

// DecodeV2 parses a buffer of 4-byte-aligned 30-bit words into a
// FrameV2, validating the parity of every word. Returns the frame and the
// number of input bytes consumed.
func DecodeV2(b []byte) (FrameV2, int, *tmxerr.Error) {
	if len(b) < wordV2Bytes*2 {
		return FrameV2{}, 0, tmxerr.New(tmxerr.MessageSize, "rtcm: truncated v2 header")
	}

	prevD29, prevD30 := false, false
	readWord := func(offset int) (uint32, *tmxerr.Error) {
		if offset+wordV2Bytes > len(b) {
			return 0, tmxerr.New(tmxerr.MessageSize, "rtcm: truncated v2 word")
		}
		fields, err := value.UnpackBits(value.BytesToBits(b[offset:offset+wordV2Bytes]), 24, 6, 2)
		if err != nil {
			return 0, tmxerr.Wrap(tmxerr.MalformedInput, err, "rtcm: unpack v2 word")
		}
		data := uint32(fields[0])
		parity := uint8(fields[1])
		want := gpsWordParity(data, prevD29, prevD30)
		if want != parity {
			return 0, tmxerr.New(tmxerr.ProtocolError, "rtcm: v2 word parity mismatch")
		}
		prevD29 = parity&2 != 0
		prevD30 = parity&1 != 0
		return data, nil
	}

	// unpack24 splits a word's 24 data bits into the given widths,
	// MSB-first, reusing pkg/value's generic bit unpacker.
	unpack24 := func(data uint32, widths ...int) ([]uint64, *tmxerr.Error) {
		vals, err := value.UnpackBits(big.NewInt(int64(data)), widths...)
		if err != nil {
			return nil, err.(*tmxerr.Error)
		}
		return vals, nil
	}

	word1, err := readWord(0)
	if err != nil {
		return FrameV2{}, 0, err
	}
	w1fields, uerr := unpack24(word1, 8, 16)
	if uerr != nil {
		return FrameV2{}, 0, tmxerr.Wrap(tmxerr.MalformedInput, uerr, "rtcm: unpack v2 preamble")
	}
	if w1fields[0] != PreambleV2 {
		return FrameV2{}, 0, tmxerr.New(tmxerr.MalformedInput, "rtcm: v2 preamble mismatch")
	}
	msgType := uint8((w1fields[1] >> 10) & 0x3F)
	stationID := uint16(w1fields[1] & 0x3FF)

	word2, err := readWord(wordV2Bytes)
	if err != nil {
		return FrameV2{}, 0, err
	}
	w2fields, uerr := unpack24(word2, 13, 3, 5, 3)
	if uerr != nil {
		return FrameV2{}, 0, tmxerr.Wrap(tmxerr.MalformedInput, uerr, "rtcm: unpack v2 header word")
	}
	zCount := uint16(w2fields[0])
	seqNo := uint8(w2fields[1])
	lengthWords := uint8(w2fields[2])

	total := wordV2Bytes * (2 + int(lengthWords))
	if len(b) < total {
		return FrameV2{}, 0, tmxerr.New(tmxerr.MessageSize, "rtcm: truncated v2 body")
	}

	words := make([]uint32, 0, lengthWords)
	for i := 0; i < int(lengthWords); i++ {
		data, werr := readWord(wordV2Bytes * (2 + i))
		if werr != nil {
			return FrameV2{}, 0, werr
		}
		words = append(words, data)
	}

	return FrameV2{
		MessageType: msgType,
		StationID:   stationID,
		ZCount:      zCount,
		SequenceNo:  seqNo,
		LengthWords: lengthWords,
		Words:       words,
	}, total, nil
}
