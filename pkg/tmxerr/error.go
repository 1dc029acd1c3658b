// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tmxerr defines the TMX core's error taxonomy.
//
// Every fallible operation in the core reports a *tmxerr.Error instead of
// panicking; the pkg/value bit-packing helpers (PackBits, UnpackBits,
// BitsToBytes) return it typed as a plain error, every other operation
// returns *tmxerr.Error directly. This lets codecs and brokers be
// converted 1:1 into the TmxError{code,message} that crosses the bus on
// <plugin>/error.
package tmxerr

import "fmt"

// Kind enumerates the error taxonomy, with POSIX-style numeric aliases
// for wire compatibility.
type Kind int

const (
	// InvalidArgument: missing mandatory argument, bad URL, bad registry name.
	InvalidArgument Kind = iota + 1
	// NotSupported: no codec, no broker, no schema for the given type.
	NotSupported
	// MalformedInput: codec decode failure, bad preamble.
	MalformedInput
	// MessageSize: truncated frame.
	MessageSize
	// ProtocolError: RTCM CRC mismatch, SNMP timeout, HTTP status != 200.
	ProtocolError
	// ConnectionReset: transport reset mid-stream.
	ConnectionReset
	// NotConnected: operation attempted on a disconnected context.
	NotConnected
	// Timeout: a bounded wait exceeded its deadline.
	Timeout
	// OperationAborted: triggered by cancel/disconnect; never propagated to handlers.
	OperationAborted
)

// posixAlias mirrors the conventional numeric errno this Kind maps to.
var posixAlias = map[Kind]int{
	InvalidArgument:  22,  // EINVAL
	NotSupported:     95,  // ENOTSUP
	MalformedInput:   84,  // EILSEQ
	MessageSize:      90,  // EMSGSIZE
	ProtocolError:    71,  // EPROTO
	ConnectionReset:  104, // ECONNRESET
	NotConnected:     107, // ENOTCONN
	Timeout:          110, // ETIMEDOUT
	OperationAborted: 125, // ECANCELED
}

var names = map[Kind]string{
	InvalidArgument:  "InvalidArgument",
	NotSupported:     "NotSupported",
	MalformedInput:   "MalformedInput",
	MessageSize:      "MessageSize",
	ProtocolError:    "ProtocolError",
	ConnectionReset:  "ConnectionReset",
	NotConnected:     "NotConnected",
	Timeout:          "Timeout",
	OperationAborted: "OperationAborted",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "Unknown"
}

// Code returns the POSIX-style numeric alias for this kind.
func (k Kind) Code() int { return posixAlias[k] }

// Error is the TMX error value: a kind, a numeric code, a message, and
// an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%d): %s: %v", e.Kind, e.Kind.Code(), e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is supports errors.Is comparisons by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// TmxError is the wire-shape of an Error broadcast on <plugin>/error:
// a flat {code, message} pair with no Go-specific machinery, suitable
// for any codec.
type TmxError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToWire converts an Error into its bus-crossing {code, message} shape.
func (e *Error) ToWire() TmxError {
	if e == nil {
		return TmxError{}
	}
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return TmxError{Code: e.Kind.Code(), Message: msg}
}
