// Package monitor reads benchmark reports printed by a board over its serial
// console.
package monitor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the firmware console.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the events channel buffer.
	DefaultBufferSize = 16
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Serial is a connection to a board running the benchmark firmware.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	// Echo receives every raw console line when set. Set before Connect.
	Echo io.Writer

	conn      serial.Port
	events    chan Event
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	started   bool
}

// New creates a monitor for the given port.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		events:   make(chan Event, bufSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Connect opens the serial port and starts parsing its output.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The events channel is closed when the reader exits, so a Serial
	// connects once.
	if s.started {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	s.conn = conn
	s.connected = true
	s.started = true

	go s.read(conn)

	return nil
}

// Close closes the port. The events channel is closed once the reader exits.
func (s *Serial) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.cancel()
	err := conn.Close()
	<-s.done
	return err
}

// Events returns the channel of parsed reports and board-side aborts.
func (s *Serial) Events() <-chan Event {
	return s.events
}

// IsConnected reports whether the port is open and its reader is running.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Serial) read(r io.Reader) {
	defer close(s.done)
	defer close(s.events)
	defer s.setConnected(false)

	if err := s.pump(r); err != nil && s.ctx.Err() == nil {
		slog.Error("serial read failed", "port", s.port, "err", err)
	}
}

func (s *Serial) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// pump parses r line by line until EOF, error or Close.
func (s *Serial) pump(r io.Reader) error {
	p := NewParser()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if s.Echo != nil {
			_, _ = io.WriteString(s.Echo, strings.TrimRight(line, "\r")+"\n")
		}

		ev := p.Feed(line)
		if ev == nil {
			continue
		}
		select {
		case s.events <- *ev:
		case <-s.ctx.Done():
			return nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
