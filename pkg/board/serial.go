// Package board talks to the sensor board that carries the soil probe, the
// climate sensor and the pump relay, either over a serial link or simulated.
package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/itohio/irrigo/pkg/clock"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the firmware's UART baud rate.
	DefaultBaudRate = 115200
	// MaxRaw is the largest 12-bit ADC code.
	MaxRaw = 4095
	// DefaultStaleAfter is how long a reading is served when the board goes silent.
	DefaultStaleAfter = 5 * time.Second
)

// Reading is one line reported by the board firmware.
type Reading struct {
	Timestamp    time.Time
	MoistureRaw  int     // 12-bit ADC code (0-4095)
	TemperatureC float32 // NaN when the climate sensor failed
	HumidityPct  float32 // NaN when the climate sensor failed
	Relay        bool    // Relay output as reported by the firmware
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a board connected over a serial port. It keeps the most recent
// reading; sensor reads never block on the link.
type Serial struct {
	port       string
	baudRate   int
	idleRaw    int
	staleAfter time.Duration
	clk        clock.Clock

	mu        sync.RWMutex
	conn      io.ReadWriteCloser
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
	last      Reading
	have      bool
	lines     uint64
}

// New creates a serial board. idleRaw is the moisture code reported until the
// first reading arrives and after the link goes silent; pass the calibrated wet
// code so an idle link never looks like dry soil.
func New(port string, baudRate int, idleRaw int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		port:       port,
		baudRate:   baudRate,
		idleRaw:    idleRaw,
		staleAfter: DefaultStaleAfter,
		clk:        clock.Real{},
	}
}

// SetStaleAfter sets how old the last reading may get before it is treated as
// unavailable. Zero keeps the default.
func (s *Serial) SetStaleAfter(d time.Duration) {
	if d <= 0 {
		d = DefaultStaleAfter
	}
	s.mu.Lock()
	s.staleAfter = d
	s.mu.Unlock()
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

// Connect opens the serial port and starts reading lines.
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	if err := s.attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.connected = true

	go s.readLines(ctx, conn, s.done)

	return nil
}

// Close closes the port and waits for the reader to stop.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	if err := s.conn.Close(); err != nil {
		log.Printf("Error closing serial port: %v", err)
	}
	s.conn = nil
	s.connected = false
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}

// IsConnected returns whether the board is currently connected.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Set sends the relay command to the firmware.
func (s *Serial) Set(high bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return ErrNotConnected
	}

	cmd := "0\n"
	if high {
		cmd = "1\n"
	}
	if _, err := io.WriteString(s.conn, cmd); err != nil {
		return fmt.Errorf("failed to send relay command: %w", err)
	}
	return nil
}

// Last returns the most recent reading and whether one has arrived yet.
func (s *Serial) Last() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.have
}

// Lines returns the number of readings parsed since creation.
func (s *Serial) Lines() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines
}

// ReadMoistureRaw returns the latest probe code, or the idle code when no fresh
// reading is available.
func (s *Serial) ReadMoistureRaw() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fresh() {
		return s.idleRaw
	}
	return s.last.MoistureRaw
}

// ReadTemperatureC returns the latest air temperature or NaN.
func (s *Serial) ReadTemperatureC() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fresh() {
		return float32(math.NaN())
	}
	return s.last.TemperatureC
}

// ReadHumidityPct returns the latest relative humidity or NaN.
func (s *Serial) ReadHumidityPct() float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.fresh() {
		return float32(math.NaN())
	}
	return s.last.HumidityPct
}

// fresh reports whether the last reading may be served. Callers hold mu.
func (s *Serial) fresh() bool {
	return s.have && s.clk.Now().Sub(s.last.Timestamp) <= s.staleAfter
}

// readLines parses lines from the board until the port closes.
func (s *Serial) readLines(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readLines: %v", r)
		}
	}()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		reading, err := parseLine(line)
		if err != nil {
			log.Printf("Failed to parse line '%s': %v", line, err)
			continue
		}
		reading.Timestamp = s.clk.Now()

		s.mu.Lock()
		s.last = reading
		s.have = true
		s.lines++
		s.mu.Unlock()
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Printf("Error reading from serial port: %v", err)
	}
}

// parseLine parses a line from the firmware into a Reading.
// Format: moisture_raw,temp_c,humidity_pct,relay
// Example: 2875,23.4,51.0,0 or 2875,nan,nan,1
func parseLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return Reading{}, fmt.Errorf("invalid line format: expected 4 comma-separated values, got %d", len(parts))
	}

	raw, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Reading{}, fmt.Errorf("invalid moisture reading: %w", err)
	}
	if raw < 0 || raw > MaxRaw {
		return Reading{}, fmt.Errorf("moisture reading out of range: %d (max %d)", raw, MaxRaw)
	}

	temp, err := parseClimate(parts[1])
	if err != nil {
		return Reading{}, fmt.Errorf("invalid temperature: %w", err)
	}
	hum, err := parseClimate(parts[2])
	if err != nil {
		return Reading{}, fmt.Errorf("invalid humidity: %w", err)
	}

	var relay bool
	switch strings.TrimSpace(parts[3]) {
	case "0":
	case "1":
		relay = true
	default:
		return Reading{}, fmt.Errorf("invalid relay state %q", parts[3])
	}

	return Reading{
		MoistureRaw:  raw,
		TemperatureC: temp,
		HumidityPct:  hum,
		Relay:        relay,
	}, nil
}

// parseClimate accepts a decimal value or nan.
func parseClimate(field string) (float32, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) {
		return float32(math.NaN()), nil
	}
	return float32(v), nil
}
