// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package codec

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"strconv"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// EncodeXML mirrors EncodeJSON's structural rules (maps become
// elements, arrays become
// repeated elements) under a single <value> root, tagging each node's
// Kind as an attribute so DecodeXML can reconstruct the exact variant
// rather than guessing from the text content alone.
func EncodeXML(v *value.Value) ([]byte, *tmxerr.Error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := writeXMLElement(&buf, "value", v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXMLElement(buf *bytes.Buffer, tag string, v *value.Value) *tmxerr.Error {
	kind := v.Kind().String()
	switch v.Kind() {
	case value.KindArray:
		buf.WriteString("<" + tag + " kind=\"" + kind + "\">")
		for i := 0; i < v.Len(); i++ {
			if err := writeXMLElement(buf, "item", v.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteString("</" + tag + ">")
	case value.KindMap:
		buf.WriteString("<" + tag + " kind=\"" + kind + "\">")
		for _, k := range v.MapKeys() {
			if err := writeXMLElement(buf, k, v.Field(k)); err != nil {
				return err
			}
		}
		buf.WriteString("</" + tag + ">")
	case value.KindEnum:
		name := v.EnumName()
		text := v.AsString()
		attrs := " kind=\"enum\""
		if name != "" {
			attrs += " name=\"" + name + "\""
		}
		buf.WriteString("<" + tag + attrs + ">")
		xml.EscapeText(buf, []byte(text))
		buf.WriteString("</" + tag + ">")
	default:
		buf.WriteString("<" + tag + " kind=\"" + kind + "\">")
		xml.EscapeText(buf, []byte(v.AsString()))
		buf.WriteString("</" + tag + ">")
	}
	return nil
}

// xmlNode is a generic parse tree used only as DecodeXML's
// intermediate representation; xml.Unmarshal into a recursive struct
// with ,any content is the idiomatic way to consume an arbitrary
// element tree with encoding/xml.
type xmlNode struct {
	XMLName xml.Name
	Kind    string    `xml:"kind,attr"`
	Name    string    `xml:"name,attr"`
	Content string    `xml:",chardata"`
	Nodes   []xmlNode `xml:",any"`
}

// DecodeXML is EncodeXML's inverse.
func DecodeXML(b []byte) (*value.Value, *tmxerr.Error) {
	var root xmlNode
	if err := xml.Unmarshal(b, &root); err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "xml: decode")
	}
	return nodeToValue(root), nil
}

func nodeToValue(n xmlNode) *value.Value {
	switch n.Kind {
	case "array":
		arr := value.Array()
		for i, c := range n.Nodes {
			arr.SetIndex(i, nodeToValue(c))
		}
		return arr
	case "map":
		m := value.Map()
		for _, c := range n.Nodes {
			m.SetField(c.XMLName.Local, nodeToValue(c))
		}
		return m
	case "bool":
		return value.Bool(n.Content == "true")
	case "int":
		i, _ := strconv.ParseInt(n.Content, 10, 64)
		return value.Int(i, 64)
	case "uint":
		u, _ := strconv.ParseUint(n.Content, 10, 64)
		return value.Uint(u, 64)
	case "float":
		f, _ := strconv.ParseFloat(n.Content, 64)
		return value.Float(f, 64)
	case "bytes":
		raw, err := hex.DecodeString(n.Content)
		if err != nil {
			return value.Bytes(nil, value.BigEndian)
		}
		return value.Bytes(raw, value.BigEndian)
	case "enum":
		i, _ := strconv.ParseInt(n.Content, 10, 64)
		return value.Enum(i, n.Name)
	case "null":
		return value.Null()
	default:
		return value.String(n.Content, value.Width8)
	}
}
