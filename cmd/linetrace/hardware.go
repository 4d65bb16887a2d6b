package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/gwillem/linetrace/pkg/robot"
	"github.com/gwillem/linetrace/pkg/telemetry"
	"github.com/gwillem/linetrace/pkg/tracer"
)

// rig is the opened hardware of a configured robot.
type rig struct {
	wheels  *robot.WheelBase
	sensor  *robot.ReflectanceSensor
	confirm *robot.Button
	stop    *robot.Button
	panel   *robot.Panel
}

func loadConfig(path string) *robot.Config {
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No configuration found in %s. Run 'linetrace setup' first.\n", path)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration in %s:\n%v\n", path, err)
		os.Exit(1)
	}
	return cfg
}

// loadOrDefault starts from the stock wiring when path does not exist
// yet. A file that exists but cannot be read is fatal.
func loadOrDefault(path string) *robot.Config {
	if !robot.ConfigExists(path) {
		return robot.DefaultConfig()
	}
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}
	return cfg
}

// openRig opens every device named in cfg. withWheels is false for
// commands that never drive.
func openRig(cfg *robot.Config, withWheels bool) (*rig, error) {
	r := &rig{}
	var err error

	r.sensor, err = robot.NewReflectanceSensor(cfg.Sensor)
	if err != nil {
		return nil, err
	}
	if r.confirm, err = robot.NewButton(cfg.Panel.ConfirmPin); err != nil {
		r.Close()
		return nil, err
	}
	if r.stop, err = robot.NewButton(cfg.Panel.StopPin); err != nil {
		r.Close()
		return nil, err
	}
	if r.panel, err = robot.NewPanel(cfg.Panel); err != nil {
		r.Close()
		return nil, err
	}
	if withWheels {
		if r.wheels, err = robot.NewWheelBase(cfg.Wheels); err != nil {
			r.Close()
			return nil, err
		}
		if err := r.wheels.Enable(context.Background()); err != nil {
			r.Close()
			return nil, fmt.Errorf("enable wheels: %w", err)
		}
	}
	return r, nil
}

// hardware returns the tracer collaborators, with extra notifiers
// chained after the panel.
func (r *rig) hardware(extra ...tracer.Notifier) tracer.Hardware {
	return tracer.Hardware{
		Sensor:   r.sensor,
		Drive:    r.wheels,
		Stop:     r.stop,
		Notifier: append(tracer.Notifiers{r.panel}, extra...),
	}
}

func (r *rig) Close() error {
	var errs []error
	if r.wheels != nil {
		errs = append(errs, r.wheels.Disable(context.Background()), r.wheels.Close())
	}
	if r.panel != nil {
		errs = append(errs, r.panel.Close())
	}
	if r.sensor != nil {
		errs = append(errs, r.sensor.Close())
	}
	return errors.Join(errs...)
}

// logNotifier prints user-facing events that carry a signal.
type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) Notify(ev tracer.Event) {
	sig, ok := robot.SignalFor(ev.Kind)
	if !ok {
		return
	}
	switch ev.Kind {
	case tracer.EventCalibrateWhite:
		n.logger.Printf("[%s] place the sensor over the WHITE floor and press confirm", sig.Glyph)
	case tracer.EventCalibrateBlack:
		n.logger.Printf("[%s] place the sensor over the BLACK line and press confirm", sig.Glyph)
	case tracer.EventCalibrated:
		n.logger.Printf("[%s] calibrated, target %.1f%%", sig.Glyph, ev.Value)
	default:
		n.logger.Printf("[%s] %s", sig.Glyph, ev.Kind)
	}
}

// calibrate runs the two-phase calibration with the panel and n as
// operator feedback.
func calibrate(ctx context.Context, r *rig, cfg tracer.Config, n tracer.Notifier) (tracer.Profile, error) {
	return tracer.Calibrate(ctx, r.sensor, r.confirm, tracer.Notifiers{r.panel, n}, nil, cfg)
}

// mqttSink connects the optional telemetry sink. A broker that cannot
// be reached only disables telemetry.
func mqttSink(cfg robot.MQTTConfig) (*telemetry.MQTTSink, func()) {
	if cfg.Broker == "" {
		return nil, func() {}
	}
	client, err := telemetry.Dial(cfg.Broker, cfg.ClientID)
	if err != nil {
		log.Printf("telemetry: disabled: %v", err)
		return nil, func() {}
	}
	return telemetry.NewMQTTSink(client, cfg.Topic, 10), func() { client.Disconnect(250) }
}
