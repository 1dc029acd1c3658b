// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package asn1

import (
	"encoding/hex"
	"math"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// EncodeOER/EncodeUPER and their decoders share one self-describing
// bit-packed tree format (encodeNode/decodeNode below); the only
// difference is OER's byte alignment after every node (Octet Encoding
// Rules are byte-aligned by definition) versus UPER's fully unaligned
// bit packing. Neither transfer syntax has a schema compiler behind
// it here — there is no fixed ASN.1 module to compile against — so
// each node carries its own 4-bit kind tag rather than relying on a
// caller-supplied type definition the way a real PER encoder would.
// Both outputs are hex-encoded, like every non-XER transfer syntax.
func EncodeOER(v *value.Value) ([]byte, *tmxerr.Error) {
	return encodeHex(v, true)
}

func DecodeOER(b []byte) (*value.Value, *tmxerr.Error) {
	return decodeHex(b, true)
}

func EncodeUPER(v *value.Value) ([]byte, *tmxerr.Error) {
	return encodeHex(v, false)
}

func DecodeUPER(b []byte) (*value.Value, *tmxerr.Error) {
	return decodeHex(b, false)
}

func encodeHex(v *value.Value, aligned bool) ([]byte, *tmxerr.Error) {
	w := &bitWriter{}
	encodeNode(w, v, aligned)
	return []byte(hex.EncodeToString(w.Bytes())), nil
}

func decodeHex(b []byte, aligned bool) (*value.Value, *tmxerr.Error) {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "asn1: not hex")
	}
	r := &bitReader{buf: raw}
	return decodeNode(r, aligned)
}

func encodeNode(w *bitWriter, v *value.Value, aligned bool) {
	kind := kindOf(v)
	w.WriteBits(uint64(kind), 4)
	if aligned {
		w.AlignByte()
	}
	switch kind {
	case kindNull:
	case kindBool:
		w.WriteBits(boolBit(v.AsBool()), 1)
	case kindInt:
		width := clampWidth(v.NumBits())
		w.WriteBits(uint64(width), 8)
		w.WriteBits(uint64(v.AsInt64())&mask(width), width)
	case kindUint:
		width := clampWidth(v.NumBits())
		w.WriteBits(uint64(width), 8)
		w.WriteBits(v.AsUint64()&mask(width), width)
	case kindFloat:
		w.WriteBits(math.Float64bits(v.AsFloat64()), 64)
	case kindString:
		writeCountedBytes(w, []byte(v.AsString()))
	case kindBytes:
		writeCountedBytes(w, v.AsBytes())
	case kindEnum:
		name := v.EnumName()
		hasName := name != ""
		w.WriteBits(boolBit(hasName), 1)
		if hasName {
			writeCountedBytes(w, []byte(name))
		}
		w.WriteBits(uint64(v.AsInt64())&mask(64), 64)
	case kindArray:
		w.WriteBits(uint64(v.Len()), 16)
		for i := 0; i < v.Len(); i++ {
			encodeNode(w, v.Index(i), aligned)
		}
	case kindMap:
		w.WriteBits(uint64(v.Len()), 16)
		for _, k := range v.MapKeys() {
			writeCountedBytes(w, []byte(k))
			encodeNode(w, v.Field(k), aligned)
		}
	}
	if aligned {
		w.AlignByte()
	}
}

func decodeNode(r *bitReader, aligned bool) (*value.Value, *tmxerr.Error) {
	kind, err := r.ReadBits(4)
	if err != nil {
		return nil, err
	}
	if aligned {
		r.AlignByte()
	}
	var out *value.Value
	switch int(kind) {
	case kindNull:
		out = value.Null()
	case kindBool:
		b, err := r.ReadBits(1)
		if err != nil {
			return nil, err
		}
		out = value.Bool(b != 0)
	case kindInt:
		width, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBits(int(width))
		if err != nil {
			return nil, err
		}
		out = value.Int(signExtend(raw, int(width)), 64)
	case kindUint:
		width, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		raw, err := r.ReadBits(int(width))
		if err != nil {
			return nil, err
		}
		out = value.Uint(raw, 64)
	case kindFloat:
		raw, err := r.ReadBits(64)
		if err != nil {
			return nil, err
		}
		out = value.Float(math.Float64frombits(raw), 64)
	case kindString:
		b, err := readCountedBytes(r)
		if err != nil {
			return nil, err
		}
		out = value.String(string(b), value.Width8)
	case kindBytes:
		b, err := readCountedBytes(r)
		if err != nil {
			return nil, err
		}
		out = value.Bytes(b, value.BigEndian)
	case kindEnum:
		hasName, err := r.ReadBits(1)
		if err != nil {
			return nil, err
		}
		name := ""
		if hasName != 0 {
			b, err := readCountedBytes(r)
			if err != nil {
				return nil, err
			}
			name = string(b)
		}
		raw, err := r.ReadBits(64)
		if err != nil {
			return nil, err
		}
		out = value.Enum(int64(raw), name)
	case kindArray:
		count, err := r.ReadBits(16)
		if err != nil {
			return nil, err
		}
		arr := value.Array()
		for i := uint64(0); i < count; i++ {
			elem, err := decodeNode(r, aligned)
			if err != nil {
				return nil, err
			}
			arr.SetIndex(int(i), elem)
		}
		out = arr
	case kindMap:
		count, err := r.ReadBits(16)
		if err != nil {
			return nil, err
		}
		m := value.Map()
		for i := uint64(0); i < count; i++ {
			key, err := readCountedBytes(r)
			if err != nil {
				return nil, err
			}
			val, err := decodeNode(r, aligned)
			if err != nil {
				return nil, err
			}
			m.SetField(string(key), val)
		}
		out = m
	default:
		return nil, tmxerr.New(tmxerr.MalformedInput, "asn1: unknown kind tag")
	}
	if aligned {
		r.AlignByte()
	}
	return out, nil
}

func writeCountedBytes(w *bitWriter, b []byte) {
	w.WriteBits(uint64(len(b)), 16)
	for _, c := range b {
		w.WriteBits(uint64(c), 8)
	}
}

func readCountedBytes(r *bitReader) ([]byte, *tmxerr.Error) {
	n, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		b, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}

func kindOf(v *value.Value) int {
	switch v.Kind() {
	case value.KindBool:
		return kindBool
	case value.KindInt:
		return kindInt
	case value.KindUint:
		return kindUint
	case value.KindFloat:
		return kindFloat
	case value.KindString:
		return kindString
	case value.KindBytes:
		return kindBytes
	case value.KindEnum:
		return kindEnum
	case value.KindArray:
		return kindArray
	case value.KindMap:
		return kindMap
	default:
		return kindNull
	}
}

func clampWidth(bits int) int {
	if bits <= 0 {
		return 64
	}
	if bits > 64 {
		return 64
	}
	return bits
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func signExtend(raw uint64, width int) int64 {
	if width >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << uint(width-1)
	if raw&signBit != 0 {
		return int64(raw) - int64(uint64(1)<<uint(width))
	}
	return int64(raw)
}
