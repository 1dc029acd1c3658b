// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package asn1

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"strconv"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// EncodeXER renders v as XML Encoding Rules text (ITU-T X.693):
// tag names carry the TYPE_descriptor, element content the value.
// Unlike the other ASN.1 transfer syntaxes here, XER output is already
// printable XML and is not further hex-encoded.
func EncodeXER(v *value.Value) ([]byte, *tmxerr.Error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	writeXER(&buf, "TMX", v)
	return buf.Bytes(), nil
}

func writeXER(buf *bytes.Buffer, tag string, v *value.Value) {
	desc := TypeDescriptor(v)
	switch v.Kind() {
	case value.KindArray:
		buf.WriteString("<" + tag + " type=\"ARRAY\">")
		for i := 0; i < v.Len(); i++ {
			writeXER(buf, "item", v.Index(i))
		}
		buf.WriteString("</" + tag + ">")
	case value.KindMap:
		buf.WriteString("<" + tag + " type=\"PROPERTIES\">")
		for _, k := range v.MapKeys() {
			writeXER(buf, k, v.Field(k))
		}
		buf.WriteString("</" + tag + ">")
	case value.KindEnum:
		name := v.EnumName()
		buf.WriteString("<" + tag + " type=\"" + desc + "\"")
		if name != "" {
			buf.WriteString(" name=\"" + name + "\"")
		}
		buf.WriteString(">")
		xml.EscapeText(buf, []byte(v.AsString()))
		buf.WriteString("</" + tag + ">")
	case value.KindBytes:
		buf.WriteString("<" + tag + " type=\"" + desc + "\">")
		buf.WriteString(hex.EncodeToString(v.AsBytes()))
		buf.WriteString("</" + tag + ">")
	default:
		buf.WriteString("<" + tag + " type=\"" + desc + "\">")
		xml.EscapeText(buf, []byte(v.AsString()))
		buf.WriteString("</" + tag + ">")
	}
}

type xerNode struct {
	XMLName xml.Name
	Type    string    `xml:"type,attr"`
	Name    string    `xml:"name,attr"`
	Content string    `xml:",chardata"`
	Nodes   []xerNode `xml:",any"`
}

// DecodeXER is EncodeXER's inverse.
func DecodeXER(b []byte) (*value.Value, *tmxerr.Error) {
	var root xerNode
	if err := xml.Unmarshal(b, &root); err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "asn.1-xer: decode")
	}
	return xerNodeToValue(root), nil
}

func xerNodeToValue(n xerNode) *value.Value {
	switch n.Type {
	case "ARRAY":
		arr := value.Array()
		for i, c := range n.Nodes {
			arr.SetIndex(i, xerNodeToValue(c))
		}
		return arr
	case "PROPERTIES":
		m := value.Map()
		for _, c := range n.Nodes {
			m.SetField(c.XMLName.Local, xerNodeToValue(c))
		}
		return m
	case "BOOLEAN":
		return value.Bool(n.Content == "true")
	case "FLOAT32", "FLOAT64", "FLOAT128":
		f, _ := strconv.ParseFloat(n.Content, 64)
		return value.Float(f, 64)
	case "STRING8":
		// The scalar TYPE_descriptor set has no distinct BYTES
		// type: byte strings are STRING8 too (hex text on the wire for
		// the non-XER syntaxes), so decode always yields a String,
		// the same documented lossy-conversion class as
		// enum-name-vs-integer.
		return value.String(n.Content, value.Width8)
	case "INT64":
		if n.Name != "" {
			i, _ := strconv.ParseInt(n.Content, 10, 64)
			return value.Enum(i, n.Name)
		}
		i, _ := strconv.ParseInt(n.Content, 10, 64)
		return value.Int(i, 64)
	case "":
		return value.Null()
	default:
		i, err := strconv.ParseInt(n.Content, 10, 64)
		if err == nil {
			return value.Int(i, 64)
		}
		return value.String(n.Content, value.Width8)
	}
}

