// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tmxlog provides leveled logging for the TMX plugin runtime.
//
// Time/date are omitted by default because the supervising process
// (systemd, or a plugin launcher) is expected to stamp them; numeric
// syslog-style prefixes are emitted instead so the output can be piped
// straight into journald. Call SetLogDateTime(true) to prepend
// timestamps when running under a supervisor that does not add them.
package tmxlog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var dateTime bool

var (
	debugWriter io.Writer = os.Stderr
	infoWriter  io.Writer = os.Stderr
	warnWriter  io.Writer = os.Stderr
	errWriter   io.Writer = os.Stderr
)

const (
	debugPrefix = "<7>[DEBUG]   "
	infoPrefix  = "<6>[INFO]    "
	warnPrefix  = "<4>[WARNING] "
	errPrefix   = "<3>[ERROR]   "
)

var (
	debugLog = log.New(debugWriter, debugPrefix, 0)
	infoLog  = log.New(infoWriter, infoPrefix, 0)
	warnLog  = log.New(warnWriter, warnPrefix, log.Lshortfile)
	errLog   = log.New(errWriter, errPrefix, log.Llongfile)

	debugTimeLog = log.New(debugWriter, debugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(infoWriter, infoPrefix, log.LstdFlags)
	warnTimeLog  = log.New(warnWriter, warnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(errWriter, errPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards output below lvl ("debug", "info", "warn", "err").
func SetLevel(lvl string) {
	switch lvl {
	case "err":
		warnWriter = io.Discard
		fallthrough
	case "warn":
		infoWriter = io.Discard
		fallthrough
	case "info":
		debugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "tmxlog: invalid level %q, using debug\n", lvl)
	}
}

// SetLogDateTime toggles timestamp prefixes on every line.
func SetLogDateTime(withDate bool) {
	dateTime = withDate
}

func emit(w io.Writer, plain, timed *log.Logger, s string) {
	if w == io.Discard {
		return
	}
	if dateTime {
		timed.Output(3, s)
	} else {
		plain.Output(3, s)
	}
}

func Debug(v ...any) { emit(debugWriter, debugLog, debugTimeLog, fmt.Sprint(v...)) }
func Info(v ...any)  { emit(infoWriter, infoLog, infoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...any)  { emit(warnWriter, warnLog, warnTimeLog, fmt.Sprint(v...)) }
func Error(v ...any) { emit(errWriter, errLog, errTimeLog, fmt.Sprint(v...)) }

func Debugf(format string, v ...any) { emit(debugWriter, debugLog, debugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { emit(infoWriter, infoLog, infoTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { emit(warnWriter, warnLog, warnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { emit(errWriter, errLog, errTimeLog, fmt.Sprintf(format, v...)) }
