// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package asn1

import (
	"encoding/hex"
	"strconv"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// TMX wraps every encoded node in a universal SEQUENCE whose first
// child is an INTEGER kind tag. This is not a textbook ASN.1 module —
// there is no fixed schema to compile against — but it lets decode
// dispatch unambiguously on the wire without guessing from BER class/
// tag heuristics alone, while still routing every scalar through the
// library's own Boolean/Integer/OctetString/Sequence encoders.
const (
	kindNull = iota
	kindBool
	kindInt
	kindUint
	kindFloat
	kindString
	kindBytes
	kindEnum
	kindArray
	kindMap
)

// EncodeBER renders v as a BER SEQUENCE. Like every non-XER transfer
// syntax here, the produced bytes are further hex-encoded so they
// remain a printable byte string in the envelope.
func EncodeBER(v *value.Value) ([]byte, *tmxerr.Error) {
	pkt := valueToBER(v)
	return []byte(hex.EncodeToString(pkt.Bytes())), nil
}

// DecodeBER is EncodeBER's inverse.
func DecodeBER(b []byte) (*value.Value, *tmxerr.Error) {
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "asn.1-ber: not hex")
	}
	pkt := ber.DecodePacket(raw)
	if pkt == nil {
		return nil, tmxerr.New(tmxerr.MalformedInput, "asn.1-ber: malformed packet")
	}
	return berToValue(pkt)
}

func seqKind(kind int) *ber.Packet {
	seq := ber.NewSequence("TMX")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(kind), "kind"))
	return seq
}

func valueToBER(v *value.Value) *ber.Packet {
	switch v.Kind() {
	case value.KindNull:
		return seqKind(kindNull)
	case value.KindBool:
		seq := seqKind(kindBool)
		seq.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, v.AsBool(), "value"))
		return seq
	case value.KindInt:
		seq := seqKind(kindInt)
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, v.AsInt64(), "value"))
		return seq
	case value.KindUint:
		seq := seqKind(kindUint)
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(v.AsUint64()), "value"))
		return seq
	case value.KindFloat:
		seq := seqKind(kindFloat)
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString,
			strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64), "value"))
		return seq
	case value.KindString:
		seq := seqKind(kindString)
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v.AsString(), "value"))
		return seq
	case value.KindBytes:
		seq := seqKind(kindBytes)
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(v.AsBytes()), "value"))
		return seq
	case value.KindEnum:
		seq := seqKind(kindEnum)
		seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, v.AsInt64(), "intValue"))
		seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v.EnumName(), "name"))
		return seq
	case value.KindArray:
		seq := seqKind(kindArray)
		for i := 0; i < v.Len(); i++ {
			seq.AppendChild(valueToBER(v.Index(i)))
		}
		return seq
	case value.KindMap:
		seq := seqKind(kindMap)
		for _, k := range v.MapKeys() {
			entry := ber.NewSequence("entry")
			entry.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, k, "key"))
			entry.AppendChild(valueToBER(v.Field(k)))
			seq.AppendChild(entry)
		}
		return seq
	default:
		return seqKind(kindNull)
	}
}

func berToValue(p *ber.Packet) (*value.Value, *tmxerr.Error) {
	if len(p.Children) == 0 {
		return nil, tmxerr.New(tmxerr.MalformedInput, "asn.1-ber: empty TMX sequence")
	}
	kind, ok := asInt(p.Children[0])
	if !ok {
		return nil, tmxerr.New(tmxerr.MalformedInput, "asn.1-ber: missing kind tag")
	}
	rest := p.Children[1:]

	switch int(kind) {
	case kindNull:
		return value.Null(), nil
	case kindBool:
		if len(rest) < 1 {
			return nil, tmxerr.New(tmxerr.MalformedInput, "asn.1-ber: missing bool value")
		}
		b, _ := rest[0].Value.(bool)
		return value.Bool(b), nil
	case kindInt:
		n, _ := asInt(rest[0])
		return value.Int(n, 64), nil
	case kindUint:
		n, _ := asInt(rest[0])
		return value.Uint(uint64(n), 64), nil
	case kindFloat:
		f, _ := strconv.ParseFloat(asString(rest[0]), 64)
		return value.Float(f, 64), nil
	case kindString:
		return value.String(asString(rest[0]), value.Width8), nil
	case kindBytes:
		return value.Bytes(asBytes(rest[0]), value.BigEndian), nil
	case kindEnum:
		n, _ := asInt(rest[0])
		name := ""
		if len(rest) > 1 {
			name = asString(rest[1])
		}
		return value.Enum(n, name), nil
	case kindArray:
		arr := value.Array()
		for i, c := range rest {
			elem, err := berToValue(c)
			if err != nil {
				return nil, err
			}
			arr.SetIndex(i, elem)
		}
		return arr, nil
	case kindMap:
		m := value.Map()
		for _, entry := range rest {
			if len(entry.Children) < 2 {
				continue
			}
			key := asString(entry.Children[0])
			val, err := berToValue(entry.Children[1])
			if err != nil {
				return nil, err
			}
			m.SetField(key, val)
		}
		return m, nil
	default:
		return nil, tmxerr.New(tmxerr.MalformedInput, "asn.1-ber: unknown kind tag")
	}
}

func asInt(p *ber.Packet) (int64, bool) {
	if n, ok := p.Value.(int64); ok {
		return n, true
	}
	if n, ok := p.Value.(int); ok {
		return int64(n), true
	}
	return 0, false
}

func asString(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok {
		return s
	}
	return string(asBytes(p))
}

func asBytes(p *ber.Packet) []byte {
	if b, ok := p.Value.([]byte); ok {
		return b
	}
	if p.Data != nil {
		return p.Data.Bytes()
	}
	return nil
}
