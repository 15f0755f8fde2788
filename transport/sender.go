// Package transport delivers encoded position messages to their consumers.
package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: sender closed")

// Sender delivers one encoded message. Messages are sent exactly as
// encoded; NMEA sentences already carry their CRLF.
type Sender interface {
	Send(msg string) error
	Close() error
}

// Multi sends every message to all of its senders. A failing sender does
// not stop delivery to the others.
type Multi []Sender

func (m Multi) Send(msg string) error {
	var errs []error
	for i, s := range m {
		if err := s.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("sender %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
