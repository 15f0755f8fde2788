package transport

import (
	"io"
	"strings"
	"sync"
)

// WriterSender writes each message to w on its own line, e.g. to stdout
// for piping into another tool.
type WriterSender struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewWriterSender wraps w. The sender never closes w.
func NewWriterSender(w io.Writer) *WriterSender {
	return &WriterSender{w: w}
}

func (s *WriterSender) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, err := io.WriteString(s.w, msg)
	return err
}

func (s *WriterSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
