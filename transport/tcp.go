package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// DefaultTCPPort is the port tracking servers listen on for position reports.
const DefaultTCPPort = 9011

// TCPSender streams messages to a TCP server. A broken connection is
// dropped and redialed on the next send.
type TCPSender struct {
	dest    string
	timeout time.Duration
	logger  *log.Logger
	dial    func(ctx context.Context, network, address string) (net.Conn, error)

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewTCPSender connects to dest.
func NewTCPSender(ctx context.Context, dest string, logger *log.Logger) (*TCPSender, error) {
	if logger == nil {
		logger = log.Default()
	}
	d := &net.Dialer{Timeout: 5 * time.Second}
	s := &TCPSender{
		dest:    dest,
		timeout: 5 * time.Second,
		logger:  logger,
		dial:    d.DialContext,
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// connect must be called with mu held or before s is shared.
func (s *TCPSender) connect(ctx context.Context) error {
	conn, err := s.dial(ctx, "tcp", s.dest)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", s.dest, err)
	}
	s.conn = conn
	return nil
}

func (s *TCPSender) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		if err := s.connect(context.Background()); err != nil {
			return err
		}
		s.logger.Printf("Reconnected to %s", s.dest)
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	if _, err := s.conn.Write([]byte(msg)); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("write tcp %s: %w", s.dest, err)
	}
	return nil
}

func (s *TCPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
