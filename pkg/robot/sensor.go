package robot

import (
	"context"
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

var adcChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// analogPin is the part of ads1x15.PinADC the sensor reads from.
type analogPin interface {
	Read() (analog.Sample, error)
	Halt() error
}

// ReflectanceSensor reads a phototransistor through an ADS1115 and
// reports reflected light in percent of its configured raw range.
type ReflectanceSensor struct {
	bus   i2c.BusCloser
	pin   analogPin
	Range SensorRange
}

// NewReflectanceSensor opens the I2C bus and configures the ADC channel.
func NewReflectanceSensor(cfg SensorConfig) (*ReflectanceSensor, error) {
	if cfg.Channel < 0 || cfg.Channel >= len(adcChannels) {
		return nil, fmt.Errorf("sensor: channel %d out of range", cfg.Channel)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}

	opts := ads1x15.DefaultOpts
	if cfg.Address != 0 {
		opts.I2cAddress = cfg.Address
	}
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize ADS1115 at 0x%02X: %w", opts.I2cAddress, err)
	}
	pin, err := adc.PinForChannel(adcChannels[cfg.Channel], 5*physic.Volt, 860*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to configure channel %d: %w", cfg.Channel, err)
	}
	return &ReflectanceSensor{bus: bus, pin: pin, Range: cfg.Range}, nil
}

// Raw returns the last conversion in ADC counts.
func (s *ReflectanceSensor) Raw(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sample, err := s.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	return int(sample.Raw), nil
}

// Reflectance implements tracer.Sensor.
func (s *ReflectanceSensor) Reflectance(ctx context.Context) (float64, error) {
	raw, err := s.Raw(ctx)
	if err != nil {
		return 0, err
	}
	return s.Range.Normalize(raw), nil
}

// Close halts the ADC channel and releases the bus.
func (s *ReflectanceSensor) Close() error {
	if err := s.pin.Halt(); err != nil {
		s.bus.Close()
		return err
	}
	return s.bus.Close()
}
