package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itohio/irrigo/pkg/feature"
	"gopkg.in/yaml.v3"
)

// Decision modes understood by the control loop.
const (
	ModeThreshold = "threshold"
	ModeInference = "inference"
)

// Config represents the controller configuration.
type Config struct {
	Serial        SerialConfig        `yaml:"serial"`
	Calibration   feature.Calibration `yaml:"calibration"`
	Fallback      FallbackConfig      `yaml:"fallback"`
	Relay         RelayConfig         `yaml:"relay"`
	Loop          LoopConfig          `yaml:"loop"`
	Features      FeaturesConfig      `yaml:"features"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Inference     InferenceConfig     `yaml:"inference"`
	Decision      DecisionConfig      `yaml:"decision"`
	Mock          MockConfig          `yaml:"mock"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Monitor       MonitorConfig       `yaml:"monitor"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port       string        `yaml:"port"`
	BaudRate   int           `yaml:"baud_rate"`
	StaleAfter time.Duration `yaml:"stale_after"` // Readings older than this count as unavailable
}

// FallbackConfig holds the values substituted for unavailable climate readings.
type FallbackConfig struct {
	TemperatureC float64 `yaml:"temperature_c"`
	HumidityPct  float64 `yaml:"humidity_pct"`
}

// RelayConfig contains relay debounce configuration.
type RelayConfig struct {
	MinDwell time.Duration `yaml:"min_dwell"` // Minimum time between relay transitions
}

// LoopConfig contains control loop timing.
type LoopConfig struct {
	Period time.Duration `yaml:"period"`
}

// FeaturesConfig holds constant feature inputs.
type FeaturesConfig struct {
	BatteryPct float64 `yaml:"battery_pct"` // Placeholder until a battery gauge is read
}

// NormalizationConfig holds per-feature standardisation parameters in feature order.
type NormalizationConfig struct {
	Mean  []float32 `yaml:"mean"`
	Scale []float32 `yaml:"scale"`
}

// InferenceConfig contains model loading parameters.
type InferenceConfig struct {
	ModelPath   string        `yaml:"model_path"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxAttempts int           `yaml:"max_attempts"` // 0 = retry forever
}

// DecisionConfig selects how a cycle's relay request is derived.
type DecisionConfig struct {
	Mode                 string  `yaml:"mode"`                  // threshold or inference
	MoistureThreshold    float64 `yaml:"moisture_threshold"`    // Irrigate below this moisture (%)
	ProbabilityThreshold float64 `yaml:"probability_threshold"` // Irrigate at or above this probability
}

// MockConfig contains simulated board configuration.
type MockConfig struct {
	StartMoisture   float64 `yaml:"start_moisture"`   // Initial soil moisture (%)
	DryRate         float64 `yaml:"dry_rate"`         // Moisture lost per hour (%)
	PumpRate        float64 `yaml:"pump_rate"`        // Moisture gained per minute of pumping (%)
	Noise           float64 `yaml:"noise"`            // Probe noise amplitude (ADC codes)
	BaseTemperature float64 `yaml:"base_temperature"` // Daily mean air temperature (C)
	DropoutEvery    int     `yaml:"dropout_every"`    // Every Nth climate read fails (0 = never)
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	Listen string `yaml:"listen"` // Empty disables the endpoint
}

// MonitorConfig contains desktop monitor display settings.
type MonitorConfig struct {
	History   time.Duration `yaml:"history"`    // Time span shown on the chart
	MaxPoints int           `yaml:"max_points"` // Points drawn after downsampling
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:       "/dev/ttyACM0",
			BaudRate:   115200,
			StaleAfter: 5 * time.Second,
		},
		Calibration: feature.Calibration{
			Dry: 3200,
			Wet: 1400,
		},
		Fallback: FallbackConfig{
			TemperatureC: 25,
			HumidityPct:  50,
		},
		Relay: RelayConfig{
			MinDwell: time.Second,
		},
		Loop: LoopConfig{
			Period: 500 * time.Millisecond,
		},
		Features: FeaturesConfig{
			BatteryPct: 100,
		},
		Normalization: NormalizationConfig{
			Mean:  []float32{45.0, 0.0, 20.0, 0.479, 100.0},
			Scale: []float32{7.3, 0.62, 7.1, 0.288, 1.0},
		},
		Inference: InferenceConfig{
			ModelPath:   "model.yaml",
			RetryDelay:  500 * time.Millisecond,
			MaxAttempts: 0,
		},
		Decision: DecisionConfig{
			Mode:                 ModeThreshold,
			MoistureThreshold:    30,
			ProbabilityThreshold: 0.5,
		},
		Mock: MockConfig{
			StartMoisture:   45,
			DryRate:         4,
			PumpRate:        30,
			Noise:           8,
			BaseTemperature: 20,
			DropoutEvery:    25,
		},
		Monitor: MonitorConfig{
			History:   10 * time.Minute,
			MaxPoints: 1000,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports configuration values the controller cannot run with.
func (c *Config) Validate() error {
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	if len(c.Normalization.Mean) != feature.NumInputs || len(c.Normalization.Scale) != feature.NumInputs {
		return fmt.Errorf("normalization: %w: mean has %d values, scale has %d, want %d",
			feature.ErrLength, len(c.Normalization.Mean), len(c.Normalization.Scale), feature.NumInputs)
	}
	if c.Loop.Period <= 0 {
		return fmt.Errorf("loop period must be positive, got %v", c.Loop.Period)
	}
	if c.Serial.StaleAfter < 0 {
		return fmt.Errorf("serial stale_after must not be negative, got %v", c.Serial.StaleAfter)
	}
	if c.Relay.MinDwell < 0 {
		return fmt.Errorf("relay min_dwell must not be negative, got %v", c.Relay.MinDwell)
	}
	if c.Inference.MaxAttempts < 0 {
		return fmt.Errorf("inference max_attempts must not be negative, got %d", c.Inference.MaxAttempts)
	}
	switch c.Decision.Mode {
	case ModeThreshold, ModeInference:
	default:
		return fmt.Errorf("unknown decision mode %q", c.Decision.Mode)
	}
	if p := c.Decision.ProbabilityThreshold; p < 0 || p > 1 {
		return fmt.Errorf("probability threshold %v outside [0,1]", p)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.StaleAfter == 0 {
		c.Serial.StaleAfter = def.Serial.StaleAfter
	}

	if c.Calibration.Dry == 0 && c.Calibration.Wet == 0 {
		c.Calibration = def.Calibration
	}

	if c.Relay.MinDwell == 0 {
		c.Relay.MinDwell = def.Relay.MinDwell
	}
	if c.Loop.Period == 0 {
		c.Loop.Period = def.Loop.Period
	}

	if len(c.Normalization.Mean) == 0 {
		c.Normalization.Mean = def.Normalization.Mean
	}
	if len(c.Normalization.Scale) == 0 {
		c.Normalization.Scale = def.Normalization.Scale
	}

	if c.Inference.ModelPath == "" {
		c.Inference.ModelPath = def.Inference.ModelPath
	}
	if c.Inference.RetryDelay == 0 {
		c.Inference.RetryDelay = def.Inference.RetryDelay
	}

	if c.Decision.Mode == "" {
		c.Decision.Mode = def.Decision.Mode
	}
	if c.Decision.MoistureThreshold == 0 {
		c.Decision.MoistureThreshold = def.Decision.MoistureThreshold
	}
	if c.Decision.ProbabilityThreshold == 0 {
		c.Decision.ProbabilityThreshold = def.Decision.ProbabilityThreshold
	}

	if c.Mock.DryRate == 0 {
		c.Mock.DryRate = def.Mock.DryRate
	}
	if c.Mock.PumpRate == 0 {
		c.Mock.PumpRate = def.Mock.PumpRate
	}

	if c.Monitor.History == 0 {
		c.Monitor.History = def.Monitor.History
	}
	if c.Monitor.MaxPoints == 0 {
		c.Monitor.MaxPoints = def.Monitor.MaxPoints
	}
}
