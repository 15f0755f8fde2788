package transport

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// SerialSender writes messages to a serial line, as a GNSS receiver
// would.
type SerialSender struct {
	mu   sync.Mutex
	port io.WriteCloser
}

// NewSerialSender opens portName at baudRate, 8N1.
func NewSerialSender(portName string, baudRate int) (*SerialSender, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &SerialSender{port: port}, nil
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

func (s *SerialSender) Send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	_, err := io.WriteString(s.port, msg)
	return err
}

func (s *SerialSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
