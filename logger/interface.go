/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package logger

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options configures a Logger's formatting and trace behavior.
type Options struct {
	// EnableTrace adds the caller file/line to every entry.
	EnableTrace bool
	// DisableColor forces the text formatter to skip ANSI colors.
	DisableColor bool
	// JSON switches the formatter to structured JSON output.
	JSON bool
}

func (o *Options) Merge(other *Options) {
	if other == nil {
		return
	}

	o.EnableTrace = other.EnableTrace
	o.DisableColor = other.DisableColor
	o.JSON = other.JSON
}

// Logger is the structured, leveled logging contract used throughout the
// runtime. It wraps logrus with a four-level facade and an io.Writer escape
// hatch so it can be handed to code expecting a plain writer or a stdlib
// *log.Logger.
type Logger interface {
	io.Writer

	SetLevel(lvl Level)
	GetLevel() Level

	SetIOWriterLevel(lvl Level)
	GetIOWriterLevel() Level

	SetOptions(opt *Options) error
	GetOptions() *Options

	SetFields(field Fields)
	GetFields() Fields

	Clone() Logger

	Debug(message string, args ...interface{})
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})

	// LogDetails logs at an arbitrary level with an explicit error list and
	// one-off fields merged over the logger's default fields.
	LogDetails(lvl Level, message string, err []error, fields Fields, args ...interface{})

	// CheckError logs err at lvlKO if non-nil, otherwise at lvlOK (unless
	// lvlOK is NilLevel) and reports whether err was nil.
	CheckError(lvlKO, lvlOK Level, message string, err ...error) bool
}

type lgr struct {
	m sync.RWMutex
	e *logrus.Entry
	l Level
	w Level
	o Options
	f Fields
}

// New returns a Logger writing to logrus's standard logger at InfoLevel.
func New() Logger {
	l := &lgr{
		e: logrus.NewEntry(logrus.StandardLogger()),
		f: NewFields(),
	}

	l.SetLevel(InfoLevel)
	l.SetIOWriterLevel(InfoLevel)

	return l
}
