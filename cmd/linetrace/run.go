package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gwillem/linetrace/pkg/robot"
	"github.com/gwillem/linetrace/pkg/telemetry"
	"github.com/gwillem/linetrace/pkg/tracer"
)

// Ticks kept for the summary and plot, about ten minutes at 20 ms.
const recordLimit = 30_000

type RunCommand struct {
	Level int    `long:"level" short:"l" description:"Controller level 1-5, defaults to the tuned level"`
	Tune  bool   `long:"tune" description:"Calibrate, then adjust level, gain and speed before the run"`
	Wait  bool   `long:"wait" description:"Calibrate, then wait for the confirm button before the run"`
	Plot  string `long:"plot" description:"Write a PNG plot of the run to this file"`
	NoTUI bool   `long:"no-tui" description:"Log to the terminal instead of showing the dashboard"`
}

func (c *RunCommand) Execute(args []string) error {
	cfg := loadConfig(opts.Config)
	if !cfg.Wheels.IsCalibrated() {
		fmt.Fprintln(os.Stderr, "Wheels not identified. Run 'linetrace setup' first.")
		os.Exit(1)
	}

	r, err := openRig(cfg, true)
	if err != nil {
		log.Fatalf("Failed to open hardware: %v", err)
	}
	defer r.Close()
	r.panel.Notify(tracer.Event{Kind: tracer.EventReady})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	s := startup{
		sensor:  r.sensor,
		confirm: r.confirm,
		notify:  tracer.Notifiers{r.panel, logNotifier{log.Default()}},
		tune:    tune,
		onWait:  func() { fmt.Println("Press confirm to start.") },
	}
	tc, profile, err := s.prepare(ctx, cfg, c.Level, c.Tune, c.Wait)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Start-up failed: %v\n", err)
		return err
	}
	cancel()
	if c.Tune {
		if err := cfg.SaveTo(opts.Config); err != nil {
			log.Printf("Error saving tuning: %v", err)
		}
	}

	sink, disconnect := mqttSink(cfg.MQTT)
	defer disconnect()

	rec := telemetry.NewRecorder(recordLimit)
	var extra []tracer.Notifier
	if c.NoTUI {
		extra = append(extra, logNotifier{log.Default()})
	}
	tr, err := newTracer(tc, profile, r.hardware(extra...), rec, sink, !c.NoTUI)
	if err != nil {
		return err
	}

	fmt.Println("Press the stop button to end the run.")
	o := follow("linetrace run", tr, !c.NoTUI)
	report(o, rec, profile, sink, c.Plot, "linetrace run")
	return o.err
}

// startup is the operator sequence between opening the hardware and the
// first tick: calibration, then optional tuning, then an optional wait
// for the confirm button.
type startup struct {
	sensor  tracer.Sensor
	confirm tracer.Button
	notify  tracer.Notifier
	clock   tracer.Clock // nil is the wall clock
	tune    func(*robot.Config) error
	onWait  func()
}

// prepare returns the controller configuration and profile to run with.
// Tuning and waiting always calibrate first, whatever the level, and the
// measured profile is kept across a level change.
func (s startup) prepare(ctx context.Context, cfg *robot.Config, level int, withTune, wait bool) (tracer.Config, tracer.Profile, error) {
	tc, err := cfg.TracerConfig(level)
	if err != nil {
		return tc, tracer.Profile{}, err
	}

	profile := tracer.UncalibratedProfile(tc)
	if tc.Calibrate || withTune || wait {
		profile, err = tracer.Calibrate(ctx, s.sensor, s.confirm, s.notify, s.clock, tc)
		if err != nil {
			return tc, profile, err
		}
		printProfile(profile)
	}

	if withTune {
		if err := s.tune(cfg); err != nil {
			return tc, profile, fmt.Errorf("tune: %w", err)
		}
		if tc, err = cfg.TracerConfig(0); err != nil {
			return tc, profile, err
		}
		fmt.Printf("Level %d, Kp %.1f, base speed %.0f mm/s\n", cfg.Tuning.Level, tc.Kp, tc.BaseSpeed)
	}

	if wait {
		if s.onWait != nil {
			s.onWait()
		}
		if err := tracer.WaitForConfirm(ctx, s.sensor, s.confirm, s.notify, s.clock, tc); err != nil {
			return tc, profile, fmt.Errorf("wait for confirm: %w", err)
		}
	}
	return tc, profile, nil
}
