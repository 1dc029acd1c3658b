// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package snmp

import (
	"strconv"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/v2xhub/tmxcore/pkg/codec"
	"github.com/v2xhub/tmxcore/pkg/envelope"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// SNMP application-class ASN.1 tags (RFC 1155 §3.2.5) used by the MIB
// value selection: Counter, TimeTicks, and the
// vendor-extension Float/Double tags some NTCIP MIBs use.
const (
	tagCounter   = ber.Tag(1)
	tagTimeTicks = ber.Tag(3)
	tagFloat     = ber.Tag(8)
	tagDouble    = ber.Tag(9)
)

// mibTypeOf reads the declared MIB type name (OCTET_STR/BOOLEAN/
// INTEGER/TIMETICKS/COUNTER/BIT_STR/DOUBLE/FLOAT) off env.Encoding,
// defaulting to OCTET_STR when unset.
func mibTypeOf(env *envelope.Envelope) string {
	if env.Encoding == "" {
		return "OCTET_STR"
	}
	return env.Encoding
}

// mibValueFromPayload interprets env.Payload according to its
// declared MIB type. Numeric types are read as decimal ASCII text
// (the form a plugin would naturally produce via Value.AsString on an
// int/float), matching how the handler-facing DAO conversion
// already renders scalars for transport.
func mibValueFromPayload(env *envelope.Envelope) *value.Value {
	text := strings.TrimSpace(string(env.Payload))
	switch mibTypeOf(env) {
	case "BOOLEAN":
		return value.Bool(text == "1" || strings.EqualFold(text, "true"))
	case "INTEGER":
		n, _ := strconv.ParseInt(text, 10, 64)
		return value.Int(n, 32)
	case "TIMETICKS":
		n, _ := strconv.ParseUint(text, 10, 64)
		return value.Enum(int64(n), "TIMETICKS")
	case "COUNTER":
		n, _ := strconv.ParseUint(text, 10, 64)
		return value.Enum(int64(n), "COUNTER")
	case "BIT_STR":
		return value.Bytes(env.Payload, value.BigEndian)
	case "DOUBLE":
		f, _ := strconv.ParseFloat(text, 64)
		return value.Float(f, 64)
	case "FLOAT":
		f, _ := strconv.ParseFloat(text, 32)
		return value.Float(f, 32)
	default: // OCTET_STR
		return value.String(string(env.Payload), value.Width8)
	}
}

// snmpEncodeValue maps a Value (tagged per mibValueFromPayload's
// convention, or an Enum carrying "TIMETICKS"/"COUNTER") onto the BER
// packet its ASN.1 type requires.
func snmpEncodeValue(v *value.Value) *ber.Packet {
	switch v.Kind() {
	case value.KindBool:
		return ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, v.AsBool(), "value")
	case value.KindInt:
		return ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, v.AsInt64(), "value")
	case value.KindUint:
		return ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(v.AsUint64()), "value")
	case value.KindEnum:
		tag := tagCounter
		if v.EnumName() == "TIMETICKS" {
			tag = tagTimeTicks
		}
		return ber.NewInteger(ber.ClassApplication, ber.TypePrimitive, tag, v.AsInt64(), v.EnumName())
	case value.KindFloat:
		tag := tagFloat
		if v.NumBits() > 32 {
			tag = tagDouble
		}
		return ber.NewString(ber.ClassApplication, ber.TypePrimitive, tag,
			strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64), "value")
	case value.KindBytes:
		p := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagBitString, v.AsBytes(), "value")
		p.Data.Write(v.AsBytes())
		return p
	case value.KindNull:
		return ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagNULL, nil, "value")
	default: // string and anything else falls back to OCTET_STR
		return ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, v.AsString(), "value")
	}
}

// varBind pairs one OID (or MIB name) with the value carried in a
// request or response VarBind; GET requests carry a Null value.
type varBind struct {
	OID string
	Val *value.Value
}

// bindsFromJSON expands a JSON-object payload into one varBind per
// key, preserving key order. GET payloads use marker values
// ({"RSU-MIB::rsuID.0":true,...}) that are discarded; SET payloads
// carry the value to write per OID. Returns nil when the payload is
// not a non-empty JSON object, so callers can fall back to the
// topic-suffix OID.
func bindsFromJSON(payload []byte, forSet bool) []varBind {
	decoded, err := codec.DecodeJSON(payload)
	if err != nil || decoded.Kind() != value.KindMap || decoded.Len() == 0 {
		return nil
	}
	binds := make([]varBind, 0, decoded.Len())
	for _, k := range decoded.MapKeys() {
		v := value.Null()
		if forSet {
			v = decoded.Field(k)
		}
		binds = append(binds, varBind{OID: k, Val: v})
	}
	return binds
}

// encodeMessage builds the SNMP Message ::= SEQUENCE { version,
// community, PDU } wire form (RFC 1157 §4), with PDU ::= SEQUENCE {
// request-id, error-status, error-index, SEQUENCE OF VarBind } — one
// VarBind per entry of binds, all inside a single PDU.
func encodeMessage(version int64, community string, pduTag ber.Tag, requestID int32, binds []varBind) []byte {
	msg := ber.NewSequence("Message")
	msg.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, version, "version"))
	msg.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, community, "community"))

	pdu := ber.NewSequence("PDU")
	pdu.ClassType = ber.ClassContext
	pdu.Tag = pduTag
	pdu.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(requestID), "request-id"))
	pdu.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(0), "error-status"))
	pdu.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(0), "error-index"))

	varbinds := ber.NewSequence("VarBindList")
	for _, b := range binds {
		varbind := ber.NewSequence("VarBind")
		oidPkt := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagObjectIdentifier, b.OID, "oid")
		oidPkt.Data.Write([]byte(b.OID))
		varbind.AppendChild(oidPkt)
		varbind.AppendChild(snmpEncodeValue(b.Val))
		varbinds.AppendChild(varbind)
	}
	pdu.AppendChild(varbinds)

	msg.AppendChild(pdu)
	return msg.Bytes()
}

// varBindsToValue decodes a response PDU's VarBindList into a result
// properties map keyed by OID, each value rendered as its string form
// — the shape handlers receive back as JSON.
func varBindsToValue(pdu *ber.Packet) *value.Value {
	out := value.Map()
	if pdu == nil || len(pdu.Children) < 4 {
		return out
	}
	for _, vb := range pdu.Children[3].Children {
		if len(vb.Children) < 2 {
			continue
		}
		out.SetField(oidOf(vb.Children[0]), value.String(stringOf(vb.Children[1]), value.Width8))
	}
	return out
}

// oidOf reads the dotted OID text back out of a VarBind's first child.
// The content bytes are the dotted string verbatim (see the encoding
// note on the package's ObjectIdentifier handling), so the raw content
// is preferred over whatever the BER parser made of it.
func oidOf(p *ber.Packet) string {
	if p.Data != nil && p.Data.Len() > 0 {
		return string(p.Data.Bytes())
	}
	if len(p.ByteValue) > 0 {
		return string(p.ByteValue)
	}
	if s, ok := p.Value.(string); ok {
		return s
	}
	return ""
}

// stringOf renders a VarBind value packet as text for the JSON result
// map.
func stringOf(p *ber.Packet) string {
	switch v := p.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	if len(p.ByteValue) > 0 {
		return string(p.ByteValue)
	}
	return string(p.Data.Bytes())
}
