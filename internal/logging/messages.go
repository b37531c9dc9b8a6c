package logging

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MessageLog is an append-only list of request messages. It is safe for
// concurrent use; each entry is also written to the backing zap logger.
type MessageLog struct {
	mu      sync.Mutex
	name    string
	level   zapcore.Level
	logger  *zap.Logger
	entries []string
	off     bool
}

// NewMessageLog returns a log whose entries are mirrored to logger at level.
func NewMessageLog(name string, level zapcore.Level, logger *zap.Logger) *MessageLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageLog{name: name, level: level, logger: logger.Named(name)}
}

// Discard returns a log that drops every entry.
func Discard() *MessageLog {
	return &MessageLog{off: true, logger: zap.NewNop()}
}

// Add appends msg.
func (l *MessageLog) Add(msg string) {
	if l == nil || l.off {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.mu.Unlock()
	if ce := l.logger.Check(l.level, msg); ce != nil {
		ce.Write()
	}
}

// Addf appends a formatted message.
func (l *MessageLog) Addf(format string, args ...any) {
	if l == nil || l.off {
		return
	}
	l.Add(fmt.Sprintf(format, args...))
}

// Messages returns a copy of the entries in append order.
func (l *MessageLog) Messages() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// WriteTo writes one entry per line.
func (l *MessageLog) WriteTo(w io.Writer) (int64, error) {
	var n int64
	for _, m := range l.Messages() {
		k, err := fmt.Fprintln(w, m)
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
