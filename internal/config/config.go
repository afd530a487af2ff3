// Package config loads and validates the kiosk configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the static configuration surface. It is loaded once at startup,
// validated, and never mutated afterwards.
type Config struct {
	UseLocalModels      bool     `yaml:"use_local_models"`
	UseAPIFallback      bool     `yaml:"use_api_fallback"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
	SupportedLanguages  []string `yaml:"supported_languages"`
	DefaultLanguage     string   `yaml:"default_language"`
	ScanResolution      int      `yaml:"scan_resolution"`
	AudioVolume         float64  `yaml:"audio_volume"`
	APIEndpoint         string   `yaml:"api_endpoint"`
	APIKey              string   `yaml:"api_key"`
	ServerMode          bool     `yaml:"server_mode"`

	Paths struct {
		Models  string `yaml:"models"`
		Temp    string `yaml:"temp"`
		Results string `yaml:"results"`
		DB      string `yaml:"db"`
	} `yaml:"paths"`

	Scanner struct {
		Device      string  `yaml:"device"`
		ColorMode   string  `yaml:"color_mode"`
		MaxWidthIn  float64 `yaml:"max_width_in"`
		MaxHeightIn float64 `yaml:"max_height_in"`
	} `yaml:"scanner"`

	GPIO struct {
		Enabled      bool   `yaml:"enabled"`
		Chip         string `yaml:"chip"`
		ButtonPin    int    `yaml:"button_pin"`
		StatusLEDPin int    `yaml:"status_led_pin"`
		ErrorLEDPin  int    `yaml:"error_led_pin"`
		LanguagePins []int  `yaml:"language_pins"`
	} `yaml:"gpio"`

	Audio struct {
		PlayerCommand string `yaml:"player_command"`
	} `yaml:"audio"`

	Models struct {
		Runner  string            `yaml:"runner"`
		Weights map[string]string `yaml:"weights"`
	} `yaml:"models"`

	Timeouts struct {
		ScanSeconds   int `yaml:"scan_seconds"`
		LocalSeconds  int `yaml:"local_seconds"`
		RemoteSeconds int `yaml:"remote_seconds"`
	} `yaml:"timeouts"`

	Monitor struct {
		Addr string `yaml:"addr"`
	} `yaml:"monitor"`

	Retention struct {
		ScanDays   int `yaml:"scan_days"`
		ResultDays int `yaml:"result_days"`
	} `yaml:"retention"`
}

// Default returns a Config populated with the kiosk defaults. Load applies
// the file on top of these, so an empty file is a valid configuration as
// long as the API settings are present when fallback is enabled.
func Default() *Config {
	cfg := &Config{
		UseLocalModels:      true,
		UseAPIFallback:      true,
		ConfidenceThreshold: 0.75,
		SupportedLanguages:  []string{"english", "tamil", "malayalam"},
		DefaultLanguage:     "english",
		ScanResolution:      300,
		AudioVolume:         0.8,
	}
	cfg.Paths.Models = "./models"
	cfg.Paths.Temp = "./temp"
	cfg.Paths.Results = "./results"
	cfg.Paths.DB = "./medscan.db"
	cfg.Scanner.ColorMode = "color"
	cfg.Scanner.MaxWidthIn = 8.5
	cfg.Scanner.MaxHeightIn = 14
	cfg.GPIO.Chip = "gpiochip0"
	cfg.GPIO.ButtonPin = 17
	cfg.GPIO.StatusLEDPin = 27
	cfg.GPIO.ErrorLEDPin = 22
	cfg.Audio.PlayerCommand = "mpg123"
	cfg.Models.Runner = "medscan-runner"
	cfg.Timeouts.ScanSeconds = 60
	cfg.Timeouts.LocalSeconds = 30
	cfg.Timeouts.RemoteSeconds = 30
	cfg.Monitor.Addr = ":8080"
	return cfg
}

// Load reads the YAML file at path on top of the defaults and validates the
// result. Any error here is fatal to startup, never to a running session.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the system relies on.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence_threshold %v outside [0,1]", c.ConfidenceThreshold)
	}
	if !c.UseLocalModels && !c.UseAPIFallback {
		return fmt.Errorf("config: no analysis path enabled (use_local_models and use_api_fallback both false)")
	}
	if c.UseAPIFallback {
		if c.APIEndpoint == "" {
			return fmt.Errorf("config: use_api_fallback is enabled but api_endpoint is empty")
		}
		if c.APIKey == "" {
			return fmt.Errorf("config: use_api_fallback is enabled but api_key is empty")
		}
	}
	if c.ScanResolution <= 0 {
		return fmt.Errorf("config: scan_resolution must be positive, got %d", c.ScanResolution)
	}
	if c.AudioVolume < 0 || c.AudioVolume > 1 {
		return fmt.Errorf("config: audio_volume %v outside [0,1]", c.AudioVolume)
	}
	if len(c.SupportedLanguages) == 0 {
		return fmt.Errorf("config: supported_languages is empty")
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = c.SupportedLanguages[0]
	}
	if !contains(c.SupportedLanguages, c.DefaultLanguage) {
		return fmt.Errorf("config: default_language %q not in supported_languages", c.DefaultLanguage)
	}
	if n := len(c.GPIO.LanguagePins); n != 0 && n != len(c.SupportedLanguages) {
		return fmt.Errorf("config: language_pins has %d entries for %d supported languages", n, len(c.SupportedLanguages))
	}
	if c.GPIO.Enabled {
		if err := c.validatePins(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePins() error {
	seen := map[int]string{}
	claim := func(pin int, name string) error {
		if pin < 0 {
			return fmt.Errorf("config: gpio %s pin %d is negative", name, pin)
		}
		if other, ok := seen[pin]; ok {
			return fmt.Errorf("config: gpio pin %d assigned to both %s and %s", pin, other, name)
		}
		seen[pin] = name
		return nil
	}
	if err := claim(c.GPIO.ButtonPin, "button"); err != nil {
		return err
	}
	if err := claim(c.GPIO.StatusLEDPin, "status_led"); err != nil {
		return err
	}
	if err := claim(c.GPIO.ErrorLEDPin, "error_led"); err != nil {
		return err
	}
	for i, pin := range c.GPIO.LanguagePins {
		if err := claim(pin, fmt.Sprintf("language[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// ScanTimeout bounds one scanner capture.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.Timeouts.ScanSeconds) * time.Second
}

// LocalTimeout bounds one local model invocation.
func (c *Config) LocalTimeout() time.Duration {
	return time.Duration(c.Timeouts.LocalSeconds) * time.Second
}

// RemoteTimeout bounds one remote API attempt.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Timeouts.RemoteSeconds) * time.Second
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
