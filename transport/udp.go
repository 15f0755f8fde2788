package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// DefaultUDPDest is where position reports are broadcast by default.
const DefaultUDPDest = "255.255.255.255:21000"

// UDPSender sends each message as one datagram. Broadcast destinations
// are allowed.
type UDPSender struct {
	dest string
	mu   sync.Mutex
	conn net.Conn
}

// NewUDPSender dials dest, a host:port pair.
func NewUDPSender(ctx context.Context, dest string) (*UDPSender, error) {
	dialer := net.Dialer{Control: enableBroadcast}
	conn, err := dialer.DialContext(ctx, "udp4", dest)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", dest, err)
	}
	return &UDPSender{dest: dest, conn: conn}, nil
}

// Dest returns the configured destination.
func (s *UDPSender) Dest() string { return s.dest }

func (s *UDPSender) Send(msg string) error {
	if msg == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrClosed
	}
	_, err := s.conn.Write([]byte(msg))
	return err
}

func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
