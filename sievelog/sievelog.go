// Package sievelog provides optional structured protocol tracing for
// managesieve.Client, RFC5424-backed the same way the teacher's ingest/log
// package backs its own Logger.
package sievelog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	default:
		return rfc5424.User | rfc5424.Info
	}
}

const defaultMsgID = `sievekit@1`

// Logger is the structured-tracing interface managesieve.Client accepts. A
// nil Logger is valid everywhere it's accepted -- callers that don't want
// tracing simply never construct one.
type Logger interface {
	Debugf(f string, args ...interface{})
	Infof(f string, args ...interface{})
	Warnf(f string, args ...interface{})
	Errorf(f string, args ...interface{})

	Debug(msg string, sds ...rfc5424.SDParam)
	Info(msg string, sds ...rfc5424.SDParam)
	Warn(msg string, sds ...rfc5424.SDParam)
	Error(msg string, sds ...rfc5424.SDParam)

	Hostname() string
	Appname() string
}

// RFC5424Logger writes one structured RFC5424 line per call to an
// io.Writer. Unlike ingest/log.Logger it has no file rotation, no relay
// fan-out, and no level-string config parsing -- just a writer and a level
// floor.
type RFC5424Logger struct {
	mtx      sync.Mutex
	wtr      io.Writer
	lvl      Level
	hostname string
	appname  string
}

// New builds a Logger writing to wtr at the given minimum level.
func New(wtr io.Writer, lvl Level) *RFC5424Logger {
	l := &RFC5424Logger{wtr: wtr, lvl: lvl, appname: "sievekit"}
	if h, err := os.Hostname(); err == nil {
		l.hostname = h
	}
	return l
}

// NewDiscard builds a Logger that drops every line; useful as a non-nil
// default when callers want the Logger interface satisfied but no output.
func NewDiscard() *RFC5424Logger {
	return New(io.Discard, ERROR+1)
}

func (l *RFC5424Logger) Hostname() string { return l.hostname }
func (l *RFC5424Logger) Appname() string  { return l.appname }

func (l *RFC5424Logger) Debugf(f string, args ...interface{}) { l.outputf(DEBUG, f, args...) }
func (l *RFC5424Logger) Infof(f string, args ...interface{})  { l.outputf(INFO, f, args...) }
func (l *RFC5424Logger) Warnf(f string, args ...interface{})  { l.outputf(WARN, f, args...) }
func (l *RFC5424Logger) Errorf(f string, args ...interface{}) { l.outputf(ERROR, f, args...) }

func (l *RFC5424Logger) Debug(msg string, sds ...rfc5424.SDParam) { l.output(DEBUG, msg, sds...) }
func (l *RFC5424Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.output(INFO, msg, sds...) }
func (l *RFC5424Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.output(WARN, msg, sds...) }
func (l *RFC5424Logger) Error(msg string, sds ...rfc5424.SDParam) { l.output(ERROR, msg, sds...) }

func (l *RFC5424Logger) outputf(lvl Level, f string, args ...interface{}) {
	l.output(lvl, fmt.Sprintf(f, args...))
}

func (l *RFC5424Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) {
	if lvl < l.lvl {
		return
	}
	b, err := GenRFCMessage(time.Now(), lvl.priority(), l.hostname, l.appname, msg, sds...)
	if err != nil {
		return
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	io.WriteString(l.wtr, string(b))
	io.WriteString(l.wtr, "\n")
}

// GenRFCMessage builds a single RFC5424 syslog line, the same shape
// ingest/log.GenRFCMessage produces.
func GenRFCMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msg string, sds ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  hostname,
		AppName:   appname,
		MessageID: defaultMsgID,
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{
			{ID: "sieve@1", Parameters: sds},
		}
	}
	return m.MarshalBinary()
}
