/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package logger

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

func (l *lgr) SetLevel(lvl Level) {
	l.m.Lock()
	defer l.m.Unlock()

	l.l = lvl
	l.e.Logger.SetLevel(lvl.Logrus())
}

func (l *lgr) GetLevel() Level {
	l.m.RLock()
	defer l.m.RUnlock()

	return l.l
}

func (l *lgr) SetIOWriterLevel(lvl Level) {
	l.m.Lock()
	defer l.m.Unlock()

	l.w = lvl
}

func (l *lgr) GetIOWriterLevel() Level {
	l.m.RLock()
	defer l.m.RUnlock()

	return l.w
}

func (l *lgr) SetOptions(opt *Options) error {
	l.m.Lock()
	defer l.m.Unlock()

	if opt == nil {
		return nil
	}

	l.o = *opt

	f := &logrus.TextFormatter{
		DisableColors:   opt.DisableColor,
		FullTimestamp:   true,
		DisableQuote:    true,
		CallerPrettyfmt: nil,
	}

	l.e.Logger.SetReportCaller(opt.EnableTrace)

	if opt.JSON {
		l.e.Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.e.Logger.SetFormatter(f)
	}

	return nil
}

func (l *lgr) GetOptions() *Options {
	l.m.RLock()
	defer l.m.RUnlock()

	o := l.o
	return &o
}

func (l *lgr) SetFields(field Fields) {
	l.m.Lock()
	defer l.m.Unlock()

	l.f = field
}

func (l *lgr) GetFields() Fields {
	l.m.RLock()
	defer l.m.RUnlock()

	return l.f
}

func (l *lgr) Clone() Logger {
	l.m.RLock()
	defer l.m.RUnlock()

	n := &lgr{
		e: logrus.NewEntry(l.e.Logger),
		l: l.l,
		w: l.w,
		o: l.o,
		f: l.f,
	}

	return n
}

func (l *lgr) entry(fields Fields) *logrus.Entry {
	merged := l.GetFields().Merge(fields)

	if len(merged) < 1 {
		return l.e
	}

	return l.e.WithFields(merged.Logrus())
}

func (l *lgr) Debug(message string, args ...interface{}) {
	l.LogDetails(DebugLevel, message, nil, nil, args...)
}

func (l *lgr) Info(message string, args ...interface{}) {
	l.LogDetails(InfoLevel, message, nil, nil, args...)
}

func (l *lgr) Warning(message string, args ...interface{}) {
	l.LogDetails(WarnLevel, message, nil, nil, args...)
}

func (l *lgr) Error(message string, args ...interface{}) {
	l.LogDetails(ErrorLevel, message, nil, nil, args...)
}

func (l *lgr) LogDetails(lvl Level, message string, err []error, fields Fields, args ...interface{}) {
	cur := l.GetLevel()
	if lvl == NilLevel || cur == NilLevel || lvl > cur {
		return
	}

	e := l.entry(fields)

	if len(err) > 0 {
		msgs := make([]string, 0, len(err))
		for _, er := range err {
			if er != nil {
				msgs = append(msgs, er.Error())
			}
		}
		if len(msgs) > 0 {
			e = e.WithField("errors", strings.Join(msgs, "; "))
		}
	}

	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	switch lvl {
	case DebugLevel:
		e.Debug(message)
	case InfoLevel:
		e.Info(message)
	case WarnLevel:
		e.Warn(message)
	case ErrorLevel:
		e.Error(message)
	}
}

func (l *lgr) CheckError(lvlKO, lvlOK Level, message string, err ...error) bool {
	var flat []error

	for _, e := range err {
		if e != nil {
			flat = append(flat, e)
		}
	}

	if len(flat) > 0 {
		l.LogDetails(lvlKO, message, flat, nil)
		return false
	}

	if lvlOK != NilLevel {
		l.LogDetails(lvlOK, message, nil, nil)
	}

	return true
}

// Write implements io.Writer so the logger can be handed to code (such as a
// bridged *log.Logger) that only knows how to write bytes.
func (l *lgr) Write(p []byte) (int, error) {
	lvl := l.GetIOWriterLevel()

	if lvl == NilLevel || lvl > l.GetLevel() {
		return len(p), nil
	}

	msg := strings.TrimRight(string(p), "\n")
	l.LogDetails(lvl, msg, nil, nil)

	return len(p), nil
}
