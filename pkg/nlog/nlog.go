// Package nlog is nimbusd's leveled logger: Info/Warning/Error severities,
// a caller file:line prefix, and a background flush so that a stream's
// hot path never blocks on an fsync. Adapted from the teacher's buffered,
// severity-split logger (aistore's cmn/nlog), trimmed down: one active
// output (file or stderr) instead of a rotating set of per-severity
// files, since nimbusd is a single small daemon rather than a cluster
// node with its own log-shipping conventions.
package nlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimbusd/nimbusd/pkg/mono"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{'I', 'W', 'E'}

type Logger struct {
	mu       sync.Mutex
	w        *bufio.Writer
	out      io.Writer
	lastFlus int64
	minSev   severity
}

var std = New(os.Stderr)

// New constructs a Logger writing to w, buffered.
func New(w io.Writer) *Logger {
	return &Logger{w: bufio.NewWriterSize(w, 32*1024), out: w}
}

// SetOutput redirects the default logger, e.g. to a daemon log file,
// after flushing whatever was buffered for the previous output.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.w.Flush()
	std.w = bufio.NewWriterSize(w, 32*1024)
	std.out = w
}

// SetVerbose lowers the minimum severity to Info (the default); passing
// false raises it to Warning, silencing routine stream-lifecycle logs.
func SetVerbose(v bool) {
	std.mu.Lock()
	defer std.mu.Unlock()
	if v {
		std.minSev = sevInfo
	} else {
		std.minSev = sevWarn
	}
}

func Infof(format string, args ...any)    { std.logf(sevInfo, format, args...) }
func Warningf(format string, args ...any) { std.logf(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { std.logf(sevErr, format, args...) }

func (l *Logger) Infof(format string, args ...any)    { l.logf(sevInfo, format, args...) }
func (l *Logger) Warningf(format string, args ...any) { l.logf(sevWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any)   { l.logf(sevErr, format, args...) }

func (l *Logger) logf(sev severity, format string, args ...any) {
	if sev < l.minSev {
		return
	}
	line := formatHdr(sev) + fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	l.mu.Lock()
	l.w.WriteString(line)
	if sev >= sevWarn || l.w.Buffered() >= 16*1024 {
		l.w.Flush()
		l.lastFlus = mono.NanoTime()
	}
	l.mu.Unlock()
}

// Flush drains any buffered log lines. Call on shutdown, or periodically
// from a background goroutine (see cmd/nimbusd's logFlush loop).
func Flush() { std.Flush() }

func (l *Logger) Flush() {
	l.mu.Lock()
	l.w.Flush()
	l.lastFlus = mono.NanoTime()
	l.mu.Unlock()
}

func formatHdr(sev severity) string {
	var fn string
	var ln int
	if _, file, line, ok := runtime.Caller(3); ok {
		fn, ln = filepath.Base(file), line
	}
	now := time.Now()
	return string(sevChar[sev]) + " " + now.Format("15:04:05.000000") + " " + fn + ":" + strconv.Itoa(ln) + " "
}
