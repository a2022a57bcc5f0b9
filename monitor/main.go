package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/control"
	"github.com/itohio/irrigo/pkg/scope"
	"github.com/itohio/irrigo/pkg/station"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		portFlag   = flag.String("p", os.Getenv("IRRIGO_PORT"), "Serial port override (e.g., /dev/ttyACM0)")
		configFlag = flag.String("config", envOr("IRRIGO_CONFIG", "config.yaml"), "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated board instead of serial port")
		speedFlag  = flag.Float64("speed", 60, "Simulation speed factor for the mocked board")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	application := app.NewWithID("com.itohio.irrigo")

	window := application.NewWindow("Irrigation Monitor")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		useMock:    *mockFlag,
		speed:      *speedFlag,
		history:    scope.NewHistory(cfg.Monitor.History),
	}

	toolbar := createToolbar(state)

	state.scopeWidget = scope.New(cfg)
	state.statusLabel = widget.NewLabel("Disconnected")

	content := container.NewBorder(
		toolbar,
		state.statusLabel,
		nil,
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() { disconnect(state) })
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configPath  string
	window      fyne.Window
	scopeWidget *scope.ScopeWidget
	statusLabel *widget.Label
	connectBtn  *widget.Button
	relayBtn    *widget.Button
	modeSelect  *widget.Select
	useMock     bool
	speed       float64

	history *scope.History

	station *station.Station
	cancel  context.CancelFunc
	done    chan struct{}

	// Throttling for scope updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar with Connect, Settings, decision mode and the
// relay indicator.
func createToolbar(state *appState) fyne.CanvasObject {
	connectBtn := widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})
	state.connectBtn = connectBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	modeSelect := widget.NewSelect([]string{config.ModeThreshold, config.ModeInference}, func(mode string) {
		state.cfg.Decision.Mode = mode
	})
	modeSelect.SetSelected(state.cfg.Decision.Mode)
	state.modeSelect = modeSelect

	// Indicator only; the control loop owns the relay
	relayBtn := widget.NewButtonWithIcon("Pump", theme.MediaStopIcon(), nil)
	relayBtn.Disable()
	state.relayBtn = relayBtn

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(connectBtn, settingsBtn, modeSelect),
		relayBtn,
		nil,
	)
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.station != nil {
		disconnect(state)
		state.modeSelect.Enable()
		state.statusLabel.SetText("Disconnected")
		updateRelayIndicator(state.relayBtn, false)
		return
	}

	var clk clock.Clock = clock.Real{}
	if state.useMock && state.speed != 1 {
		clk = clock.NewScaled(state.speed, time.Now())
	}

	st, err := station.Open(state.cfg, station.Options{Mock: state.useMock, Clock: clk})
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect: %w", err), state.window)
		return
	}
	if state.useMock {
		log.Printf("Using mocked board at %gx speed", state.speed)
	} else {
		log.Printf("Connected to serial port: %s", state.cfg.Serial.Port)
	}

	// Throttle updates to ~30 FPS; at high simulation speeds reports arrive faster
	const updateInterval = 33 * time.Millisecond
	st.Loop.OnReport(state.history.Add)
	st.Loop.OnReport(control.LineSink(os.Stdout))
	st.Loop.OnReport(func(r control.Report) {
		state.updateMu.Lock()
		now := time.Now()
		if now.Sub(state.lastUpdateTime) < updateInterval {
			state.updateMu.Unlock()
			return
		}
		state.lastUpdateTime = now
		state.updateMu.Unlock()

		// Fresh copy; the UI goroutine reads it after this callback returns
		points := state.history.Points(nil)

		line := r.String()
		relayOn := r.Relay
		fyne.Do(func() {
			state.scopeWidget.UpdateData(points)
			state.statusLabel.SetText(line)
			updateRelayIndicator(state.relayBtn, relayOn)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	state.station = st
	state.cancel = cancel
	state.done = done
	state.modeSelect.Disable()
	state.statusLabel.SetText("Loading model " + state.cfg.Inference.ModelPath)

	go func() {
		defer close(done)
		if err := st.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fyne.Do(func() {
				dialog.ShowError(fmt.Errorf("controller stopped: %w", err), state.window)
			})
		}
	}()
}

// disconnect stops the control loop and closes the board.
func disconnect(state *appState) {
	if state.station == nil {
		return
	}
	state.cancel()
	<-state.done
	if err := state.station.Close(); err != nil {
		log.Printf("Error closing board: %v", err)
	}
	state.station = nil
	state.cancel = nil
	state.done = nil
	log.Printf("Disconnected")
}

// updateRelayIndicator shows the relay state on the pump button.
func updateRelayIndicator(btn *widget.Button, on bool) {
	if on {
		btn.Importance = widget.HighImportance
		btn.SetIcon(theme.MediaPlayIcon())
	} else {
		btn.Importance = widget.MediumImportance
		btn.SetIcon(theme.MediaStopIcon())
	}
	btn.Refresh()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
