package board

import "errors"

// ErrNotConnected is returned when commanding a board that is not connected.
var ErrNotConnected = errors.New("board: not connected")

// Sensors provides the latest soil and climate readings. Climate values are NaN
// when the sensor could not be read.
type Sensors interface {
	ReadMoistureRaw() int
	ReadTemperatureC() float32
	ReadHumidityPct() float32
}

// Pin drives the relay output.
type Pin interface {
	Set(high bool) error
}

// Board defines the interface for sensor boards (real or mocked).
type Board interface {
	Sensors
	Pin
	Connect() error
	Close() error
	IsConnected() bool
}

// Ensure Serial implements Board.
var _ Board = (*Serial)(nil)

// Ensure Mock implements Board.
var _ Board = (*Mock)(nil)
