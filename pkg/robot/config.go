package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gwillem/linetrace/pkg/tracer"
)

const DefaultConfigFile = "linetrace.json"

// DisplayI2CAddr is the only address the SSD1306 driver talks to.
const DisplayI2CAddr uint16 = 0x3C

// Config holds the robot configuration
type Config struct {
	Wheels WheelsConfig `json:"wheels"`
	Sensor SensorConfig `json:"sensor"`
	Panel  PanelConfig  `json:"panel"`
	MQTT   MQTTConfig   `json:"mqtt,omitempty"`
	// Tuning overrides applied on top of the selected level preset.
	Tuning *Tuning `json:"tuning,omitempty"`
}

// WheelsConfig holds configuration for the servo drive base
type WheelsConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
	// Geometry in mm.
	WheelDiameter float64 `json:"wheel_diameter"`
	AxleTrack     float64 `json:"axle_track"`
}

// IsCalibrated returns true if the wheel servos have been assigned
func (w *WheelsConfig) IsCalibrated() bool {
	return len(w.Calibration) == len(AllWheels())
}

// SensorConfig holds configuration for the ADS1115 reflectance sensor
type SensorConfig struct {
	I2CBus  string      `json:"i2c_bus"` // "" selects the first bus
	Address uint16      `json:"address"`
	Channel int         `json:"channel"`
	Range   SensorRange `json:"range"`
}

// PanelConfig holds GPIO pin names and the display address.
type PanelConfig struct {
	ConfirmPin  string `json:"confirm_pin"`
	StopPin     string `json:"stop_pin"`
	BuzzerPin   string `json:"buzzer_pin,omitempty"`
	DisplayAddr uint16 `json:"display_addr,omitempty"` // 0 disables the display, else 0x3C
}

// MQTTConfig enables tick telemetry over MQTT when Broker is set.
type MQTTConfig struct {
	Broker   string `json:"broker,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// Tuning holds the operator adjustable settings.
type Tuning struct {
	Level     int     `json:"level"`
	Kp        float64 `json:"kp"`
	BaseSpeed float64 `json:"base_speed"`
}

// DefaultConfig returns the stock robot wiring.
func DefaultConfig() *Config {
	return &Config{
		Wheels: WheelsConfig{
			Calibration:   DefaultCalibration(),
			WheelDiameter: 56,
			AxleTrack:     114,
		},
		Sensor: SensorConfig{
			Address: 0x48,
			Range:   SensorRange{RangeMin: 0, RangeMax: 26400},
		},
		Panel: PanelConfig{
			ConfirmPin:  "GPIO17",
			StopPin:     "GPIO27",
			BuzzerPin:   "GPIO22",
			DisplayAddr: DisplayI2CAddr,
		},
		MQTT: MQTTConfig{
			ClientID: "linetrace",
			Topic:    "linetrace/ticks",
		},
	}
}

// TracerConfig returns the controller configuration for the tuned level,
// or for level if it is non-zero.
func (c *Config) TracerConfig(level int) (tracer.Config, error) {
	if level == 0 {
		level = tracer.LevelFull
		if c.Tuning != nil && c.Tuning.Level != 0 {
			level = c.Tuning.Level
		}
	}
	cfg, err := tracer.Preset(level)
	if err != nil {
		return cfg, err
	}
	if c.Tuning != nil {
		if c.Tuning.Kp > 0 {
			cfg.Kp = c.Tuning.Kp
		}
		if c.Tuning.BaseSpeed > 0 {
			cfg.BaseSpeed = c.Tuning.BaseSpeed
		}
	}
	return cfg, nil
}

// Validate checks that the hardware wiring is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Wheels.Port == "" {
		errs = append(errs, errors.New("wheels: no serial port"))
	}
	if !c.Wheels.IsCalibrated() {
		errs = append(errs, errors.New("wheels: servo IDs not assigned"))
	}
	if c.Wheels.WheelDiameter <= 0 || c.Wheels.AxleTrack <= 0 {
		errs = append(errs, errors.New("wheels: geometry must be positive"))
	}
	if c.Sensor.Channel < 0 || c.Sensor.Channel > 3 {
		errs = append(errs, fmt.Errorf("sensor: channel %d out of range 0-3", c.Sensor.Channel))
	}
	if !c.Sensor.Range.Valid() {
		errs = append(errs, errors.New("sensor: empty raw range"))
	}
	if c.Panel.ConfirmPin == "" || c.Panel.StopPin == "" {
		errs = append(errs, errors.New("panel: confirm and stop pins are required"))
	}
	if a := c.Panel.DisplayAddr; a != 0 && a != DisplayI2CAddr {
		errs = append(errs, fmt.Errorf("panel: display at 0x%02X, must be 0x%02X or 0 to disable", a, DisplayI2CAddr))
	}
	return errors.Join(errs...)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if a config file exists at path
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
