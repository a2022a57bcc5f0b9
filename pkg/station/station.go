// Package station assembles a board, the relay, the inference adapter and the
// control loop from a configuration.
package station

import (
	"context"
	"fmt"
	"log"

	"github.com/itohio/irrigo/pkg/board"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/control"
	"github.com/itohio/irrigo/pkg/inference"
	"github.com/itohio/irrigo/pkg/relay"
)

// Options select the board and time source.
type Options struct {
	Mock  bool        // Use the simulated board instead of the serial port
	Clock clock.Clock // Defaults to wall time
}

// Station is a connected irrigation controller.
type Station struct {
	Board   board.Board
	Relay   *relay.Controller
	Adapter *inference.Adapter
	Engine  *inference.Dense
	Loop    *control.Loop

	cfg *config.Config
	clk clock.Clock
}

// Open validates cfg, connects the board and wires the control loop. The model
// is not loaded until Start.
func Open(cfg *config.Config, opts Options) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	var dev board.Board
	if opts.Mock {
		dev = board.NewMock(&cfg.Mock, cfg.Calibration, clk)
	} else {
		serialDev := board.New(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.Calibration.Wet)
		serialDev.SetStaleAfter(cfg.Serial.StaleAfter)
		dev = serialDev
	}
	if err := dev.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect board: %w", err)
	}

	rel, err := relay.New(dev, clk, cfg.Relay.MinDwell)
	if err != nil {
		dev.Close()
		return nil, err
	}

	engine := inference.NewDense()
	adapter := inference.NewAdapter(engine,
		inference.WithClock(clk),
		inference.WithRetryDelay(cfg.Inference.RetryDelay),
		inference.WithMaxAttempts(cfg.Inference.MaxAttempts),
	)

	loop, err := control.New(cfg, control.Deps{
		Sensors:   dev,
		Relay:     rel,
		Inference: adapter,
		Clock:     clk,
	})
	if err != nil {
		dev.Close()
		return nil, err
	}

	return &Station{
		Board:   dev,
		Relay:   rel,
		Adapter: adapter,
		Engine:  engine,
		Loop:    loop,
		cfg:     cfg,
		clk:     clk,
	}, nil
}

// Start reads the model file and initialises the engine. A missing or broken
// model is retried every RetryDelay until it loads, MaxAttempts is spent or ctx
// is cancelled.
func (s *Station) Start(ctx context.Context) error {
	if err := s.Adapter.StartFrom(ctx, inference.File(s.cfg.Inference.ModelPath)); err != nil {
		return err
	}
	log.Printf("Model %q loaded, layer widths %v", s.Engine.Name(), s.Engine.Shape())
	return nil
}

// Run starts the model and runs the control loop until ctx is cancelled.
func (s *Station) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Loop.Run(ctx)
}

// Close switches the relay off and disconnects the board.
func (s *Station) Close() error {
	if s.Board.IsConnected() {
		if err := s.Relay.ForceOff(); err != nil {
			log.Printf("Failed to switch relay off: %v", err)
		}
	}
	return s.Board.Close()
}
