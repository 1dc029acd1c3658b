// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/v2xhub/tmxcore/pkg/tmxerr"
	"github.com/v2xhub/tmxcore/pkg/value"
)

// EncodeCBOR/DecodeCBOR implement the RFC 8949 major-type subset this
// codec needs (unsigned/negative integers, byte strings, text strings,
// arrays, maps, and the false/true/null/float64 simple values), framed
// with the same length-prefix
// idiom pkg/rtcm uses for its header words, just applied to CBOR's
// major-type/additional-info byte instead of RTCM's bit fields.
const (
	majorUint byte = 0
	majorNeg  byte = 1
	majorByte byte = 2
	majorText byte = 3
	majorArr  byte = 4
	majorMap  byte = 5
	majorSimp byte = 7
)

func EncodeCBOR(v *value.Value) ([]byte, *tmxerr.Error) {
	var buf bytes.Buffer
	if err := writeCBOR(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCBORHead(buf *bytes.Buffer, major byte, n uint64) {
	switch {
	case n < 24:
		buf.WriteByte(major<<5 | byte(n))
	case n <= 0xFF:
		buf.WriteByte(major<<5 | 24)
		buf.WriteByte(byte(n))
	case n <= 0xFFFF:
		buf.WriteByte(major<<5 | 25)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case n <= 0xFFFFFFFF:
		buf.WriteByte(major<<5 | 26)
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(major<<5 | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	}
}

func writeCBOR(buf *bytes.Buffer, v *value.Value) *tmxerr.Error {
	switch v.Kind() {
	case value.KindNull:
		buf.WriteByte(majorSimp<<5 | 22)
	case value.KindBool:
		if v.AsBool() {
			buf.WriteByte(majorSimp<<5 | 21)
		} else {
			buf.WriteByte(majorSimp<<5 | 20)
		}
	case value.KindInt:
		n := v.AsInt64()
		if n >= 0 {
			writeCBORHead(buf, majorUint, uint64(n))
		} else {
			writeCBORHead(buf, majorNeg, uint64(-n-1))
		}
	case value.KindUint:
		writeCBORHead(buf, majorUint, v.AsUint64())
	case value.KindFloat:
		buf.WriteByte(majorSimp<<5 | 27)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.AsFloat64()))
		buf.Write(b[:])
	case value.KindString:
		s := v.AsString()
		writeCBORHead(buf, majorText, uint64(len(s)))
		buf.WriteString(s)
	case value.KindBytes:
		raw := v.AsBytes()
		writeCBORHead(buf, majorByte, uint64(len(raw)))
		buf.Write(raw)
	case value.KindEnum:
		if v.EnumName() != "" {
			s := v.EnumName()
			writeCBORHead(buf, majorText, uint64(len(s)))
			buf.WriteString(s)
		} else {
			n := v.AsInt64()
			if n >= 0 {
				writeCBORHead(buf, majorUint, uint64(n))
			} else {
				writeCBORHead(buf, majorNeg, uint64(-n-1))
			}
		}
	case value.KindArray:
		writeCBORHead(buf, majorArr, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			if err := writeCBOR(buf, v.Index(i)); err != nil {
				return err
			}
		}
	case value.KindMap:
		writeCBORHead(buf, majorMap, uint64(v.Len()))
		for _, k := range v.MapKeys() {
			writeCBORHead(buf, majorText, uint64(len(k)))
			buf.WriteString(k)
			if err := writeCBOR(buf, v.Field(k)); err != nil {
				return err
			}
		}
	default:
		return tmxerr.New(tmxerr.NotSupported, "cbor: unsupported value kind")
	}
	return nil
}

func DecodeCBOR(b []byte) (*value.Value, *tmxerr.Error) {
	r := bytes.NewReader(b)
	v, err := readCBOR(r)
	if err != nil {
		return nil, tmxerr.Wrap(tmxerr.MalformedInput, err, "cbor: decode")
	}
	return v, nil
}

func readCBORHead(r *bytes.Reader) (major byte, addl uint64, err error) {
	head, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	major = head >> 5
	info := head & 0x1F
	switch {
	case info < 24:
		return major, uint64(info), nil
	case info == 24:
		b, err := r.ReadByte()
		return major, uint64(b), err
	case info == 25:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return major, 0, err
		}
		return major, uint64(binary.BigEndian.Uint16(b[:])), nil
	case info == 26:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return major, 0, err
		}
		return major, uint64(binary.BigEndian.Uint32(b[:])), nil
	case info == 27:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return major, 0, err
		}
		return major, binary.BigEndian.Uint64(b[:]), nil
	default:
		return major, uint64(info), nil
	}
}

func readCBOR(r *bytes.Reader) (*value.Value, error) {
	major, addl, err := readCBORHead(r)
	if err != nil {
		return nil, err
	}
	switch major {
	case majorUint:
		return value.Uint(addl, 64), nil
	case majorNeg:
		return value.Int(-1-int64(addl), 64), nil
	case majorByte:
		buf := make([]byte, addl)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return value.Bytes(buf, value.BigEndian), nil
	case majorText:
		buf := make([]byte, addl)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return value.String(string(buf), value.Width8), nil
	case majorArr:
		arr := value.Array()
		for i := uint64(0); i < addl; i++ {
			elem, err := readCBOR(r)
			if err != nil {
				return nil, err
			}
			arr.SetIndex(int(i), elem)
		}
		return arr, nil
	case majorMap:
		m := value.Map()
		for i := uint64(0); i < addl; i++ {
			key, err := readCBOR(r)
			if err != nil {
				return nil, err
			}
			val, err := readCBOR(r)
			if err != nil {
				return nil, err
			}
			m.SetField(key.AsString(), val)
		}
		return m, nil
	case majorSimp:
		switch addl {
		case 20:
			return value.Bool(false), nil
		case 21:
			return value.Bool(true), nil
		case 22:
			return value.Null(), nil
		case 27:
			// additional-info 27 always means "8 bytes follow"; here
			// those bytes are an IEEE-754 bit pattern, not a count.
			return value.Float(math.Float64frombits(addl), 64), nil
		default:
			return value.Null(), nil
		}
	default:
		return nil, tmxerr.New(tmxerr.MalformedInput, "cbor: unknown major type")
	}
}

