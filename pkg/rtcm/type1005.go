// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package rtcm

import (
	"math"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// ecefScale is the 0.1 mm unit RTCM message 1005/1006 uses for the
// ECEF-X/Y/Z fields (DF025/DF026/DF027): the wire value is the meter
// value times 10000, stored in a 38-bit two's-complement field.
const ecefScale = 10000.0

// type1005BitWidths lists, MSB-first, the field widths of RTCM message
// 1005's content (the common header's message-number/station-id word
// is framed separately by EncodeV3/DecodeV3): ITRF realization year
// (DF021, 6 bits), GPS/GLONASS/Galileo indicators (DF022-DF024, 1 bit
// each), reference-station indicator (DF141, 1 bit), ECEF-X (DF025, 38
// bits), single-receiver-oscillator indicator (DF142, 1 bit), reserved
// (1 bit), ECEF-Y (DF026, 38 bits), quarter-cycle indicator (DF364, 2
// bits), ECEF-Z (DF027, 38 bits). Total 128 bits = 16 bytes, giving
// the familiar 25-byte on-wire frame (3 header + 3 message/station
// + 16 content + 3 CRC).
var type1005BitWidths = []int{6, 1, 1, 1, 1, 38, 1, 1, 38, 2, 38}

// EncodeType1005 packs the fields of an RTCM 1005 "Stationary RTK
// Reference Station ARP" message from a decoded Value: a gpsd/RTCM3
// JSON envelope carrying type,
// station_id, system, refstation, src, x, y, z.
func EncodeType1005(v *value.Value) ([]byte, *tmxerr.Error) {
	gps, glonass, galileo := systemIndicators(v.Field("system"))
	refStation := boolBit(v.Field("refstation").AsBool())
	singleOsc := boolBit(v.Field("src").AsBool())

	x := ecefField(v.Field("x").AsFloat64())
	y := ecefField(v.Field("y").AsFloat64())
	z := ecefField(v.Field("z").AsFloat64())

	packed, err := value.PackBits(
		value.BitField{Value: 0, Width: 6}, // ITRF realization year, not carried by the Value today
		value.BitField{Value: gps, Width: 1},
		value.BitField{Value: glonass, Width: 1},
		value.BitField{Value: galileo, Width: 1},
		value.BitField{Value: refStation, Width: 1},
		value.BitField{Value: x, Width: 38},
		value.BitField{Value: singleOsc, Width: 1},
		value.BitField{Value: 0, Width: 1},
		value.BitField{Value: y, Width: 38},
		value.BitField{Value: 0, Width: 2}, // quarter-cycle indicator, GPS-only stations always 0
		value.BitField{Value: z, Width: 38},
	)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, err, "rtcm: pack 1005 content")
	}
	out, berr := value.BitsToBytes(packed, 128)
	if berr != nil {
		return nil, tmxerr.Wrap(tmxerr.InvalidArgument, berr, "rtcm: frame 1005 content")
	}
	return out, nil
}

// DecodeType1005 is EncodeType1005's inverse, returning a Value map
// with the same field names the encoder accepts so that re-encoding
// round-trips.
func DecodeType1005(payload []byte) (*value.Value, *tmxerr.Error) {
	if len(payload) != 16 {
		return nil, tmxerr.New(tmxerr.MessageSize, "rtcm: 1005 content must be 16 bytes")
	}
	fields, err := value.UnpackBits(value.BytesToBits(payload), type1005BitWidths...)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "rtcm: unpack 1005 content")
	}
	gps, glonass, galileo := fields[1], fields[2], fields[3]
	refStation := fields[4] != 0
	x := fields[5]
	singleOsc := fields[6]
	y := fields[8]
	z := fields[10]

	systems := value.Array()
	if gps != 0 {
		systems.SetIndex(systems.Len(), value.String("GPS", value.Width8))
	}
	if glonass != 0 {
		systems.SetIndex(systems.Len(), value.String("GLONASS", value.Width8))
	}
	if galileo != 0 {
		systems.SetIndex(systems.Len(), value.String("Galileo", value.Width8))
	}

	out := value.Map()
	out.SetField("system", systems)
	out.SetField("refstation", value.Bool(refStation))
	out.SetField("src", value.Bool(singleOsc != 0))
	out.SetField("x", value.Float(ecefMeters(x), 64))
	out.SetField("y", value.Float(ecefMeters(y), 64))
	out.SetField("z", value.Float(ecefMeters(z), 64))
	return out, nil
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func systemIndicators(systems *value.Value) (gps, glonass, galileo uint64) {
	for i := 0; i < systems.Len(); i++ {
		switch systems.Index(i).AsString() {
		case "GPS":
			gps = 1
		case "GLONASS":
			glonass = 1
		case "Galileo":
			galileo = 1
		}
	}
	return
}

// ecefField converts a meter value into its 38-bit two's-complement
// wire representation at 0.1 mm resolution.
func ecefField(meters float64) uint64 {
	scaled := int64(math.Round(meters * ecefScale))
	mask := uint64(1)<<38 - 1
	return uint64(scaled) & mask
}

// ecefMeters is ecefField's inverse, sign-extending the 38-bit field.
func ecefMeters(raw uint64) float64 {
	signBit := uint64(1) << 37
	if raw&signBit != 0 {
		raw |= ^(uint64(1)<<38 - 1)
	}
	return float64(int64(raw)) / ecefScale
}
