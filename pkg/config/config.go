package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/mlbench/pkg/harness"
)

// Config represents the application configuration.
type Config struct {
	Harness  HarnessConfig  `yaml:"harness"`
	Scenario ScenarioConfig `yaml:"scenario"`
	Serial   SerialConfig   `yaml:"serial"`
	ONNX     ONNXConfig     `yaml:"onnx"`
	Mock     MockConfig     `yaml:"mock"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// HarnessConfig contains the benchmark loop parameters.
type HarnessConfig struct {
	Target        string        `yaml:"target"`
	Trials        int           `yaml:"trials"`
	YieldInterval time.Duration `yaml:"yield_interval"` // Watchdog yield after every trial
	IdleInterval  time.Duration `yaml:"idle_interval"`
	StartupDelay  time.Duration `yaml:"startup_delay"`
	Debug         bool          `yaml:"debug"`
	PrintProgress bool          `yaml:"print_progress"`
	FailurePolicy string        `yaml:"failure_policy"` // "exclude" or "abort"
	MaxAttempts   int           `yaml:"max_attempts"`   // 0 = 2 x trials
}

// ScenarioConfig selects the input frame.
type ScenarioConfig struct {
	Name         string `yaml:"name"`
	FeaturesFile string `yaml:"features_file"` // Empty = synthesized frame
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ONNXConfig configures the host ONNX Runtime classifier.
type ONNXConfig struct {
	ModelPath      string   `yaml:"model_path"`
	LibraryPath    string   `yaml:"library_path"` // Empty = libonnxruntime.so next to the model
	Labels         []string `yaml:"labels"`       // Empty = scenario labels
	IntraOpThreads int      `yaml:"intra_op_threads"`
	Scale          float32  `yaml:"scale"` // Input normalization: x*scale
}

// MockConfig contains simulated classifier configuration.
type MockConfig struct {
	DSP            time.Duration `yaml:"dsp"`
	Classification time.Duration `yaml:"classification"`
	Anomaly        time.Duration `yaml:"anomaly"`
	Jitter         time.Duration `yaml:"jitter"`     // Uniform +/- jitter added to every stage
	FailEvery      int           `yaml:"fail_every"` // Every Nth call fails (0 = never)
	HasAnomaly     bool          `yaml:"has_anomaly"`
	Seed           int64         `yaml:"seed"`
}

// StoreConfig configures the result history database.
type StoreConfig struct {
	Path string `yaml:"path"` // Empty = do not record
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	hc := harness.DefaultConfig()
	return &Config{
		Harness: HarnessConfig{
			Target:        "host",
			Trials:        hc.Trials,
			YieldInterval: hc.YieldInterval,
			IdleInterval:  hc.IdleInterval,
			StartupDelay:  hc.StartupDelay,
			PrintProgress: false,
			FailurePolicy: hc.FailurePolicy.String(),
			MaxAttempts:   0,
		},
		Scenario: ScenarioConfig{
			Name: "kws",
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		ONNX: ONNXConfig{
			IntraOpThreads: 1,
			Scale:          1,
		},
		Mock: MockConfig{
			DSP:            2 * time.Millisecond,
			Classification: 5 * time.Millisecond,
			Anomaly:        0,
			Jitter:         100 * time.Microsecond,
			Seed:           1,
		},
		Store: StoreConfig{
			Path: "mlbench.db",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

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

// Validate checks values a YAML file can get wrong.
func (c *Config) Validate() error {
	if c.Harness.Trials < 1 {
		return fmt.Errorf("harness.trials must be >= 1, got %d", c.Harness.Trials)
	}
	if _, err := c.HarnessConfig(); err != nil {
		return err
	}
	if c.Mock.FailEvery < 0 {
		return fmt.Errorf("mock.fail_every must not be negative")
	}
	return nil
}

// HarnessConfig converts the YAML section into a harness.Config.
func (c *Config) HarnessConfig() (harness.Config, error) {
	policy, err := harness.ParseFailurePolicy(c.Harness.FailurePolicy)
	if err != nil {
		return harness.Config{}, err
	}
	hc := harness.Config{
		Target:        c.Harness.Target,
		Scenario:      c.Scenario.Name,
		Trials:        c.Harness.Trials,
		YieldInterval: c.Harness.YieldInterval,
		IdleInterval:  c.Harness.IdleInterval,
		StartupDelay:  c.Harness.StartupDelay,
		Debug:         c.Harness.Debug,
		PrintProgress: c.Harness.PrintProgress,
		FailurePolicy: policy,
		MaxAttempts:   c.Harness.MaxAttempts,
	}
	return hc, hc.Validate()
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Harness.Target == "" {
		c.Harness.Target = def.Harness.Target
	}
	if c.Harness.Trials == 0 {
		c.Harness.Trials = def.Harness.Trials
	}
	if c.Harness.IdleInterval == 0 {
		c.Harness.IdleInterval = def.Harness.IdleInterval
	}
	if c.Harness.FailurePolicy == "" {
		c.Harness.FailurePolicy = def.Harness.FailurePolicy
	}

	if c.Scenario.Name == "" {
		c.Scenario.Name = def.Scenario.Name
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.ONNX.IntraOpThreads == 0 {
		c.ONNX.IntraOpThreads = def.ONNX.IntraOpThreads
	}
	if c.ONNX.Scale == 0 {
		c.ONNX.Scale = def.ONNX.Scale
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
