package main

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/linetrace/pkg/robot"
	"github.com/gwillem/linetrace/pkg/tracer"
)

// Lowest base speed the tuning form accepts, in mm/s.
const minBaseSpeed = 50

var levelOptions = []huh.Option[int]{
	huh.NewOption("1 - on/off", tracer.LevelOnOff),
	huh.NewOption("2 - on/off, calibrated", tracer.LevelCalibrated),
	huh.NewOption("3 - proportional", tracer.LevelProportional),
	huh.NewOption("4 - PID with curve handling and search", tracer.LevelPID),
	huh.NewOption("5 - full (damping, biased search)", tracer.LevelFull),
}

type TuneCommand struct{}

func (c *TuneCommand) Execute(args []string) error {
	cfg := loadOrDefault(opts.Config)

	if err := tune(cfg); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(successStyle.Render("Tuning saved."))
	fmt.Printf("  Level %d, Kp %.1f, base speed %.0f mm/s\n", cfg.Tuning.Level, cfg.Tuning.Kp, cfg.Tuning.BaseSpeed)
	return nil
}

// tune asks for level, gain and speed and stores them in cfg.Tuning.
func tune(cfg *robot.Config) error {
	current, err := cfg.TracerConfig(0)
	if err != nil {
		return err
	}
	level := tracer.LevelFull
	if cfg.Tuning != nil && cfg.Tuning.Level != 0 {
		level = cfg.Tuning.Level
	}
	kp := strconv.FormatFloat(current.Kp, 'f', 1, 64)
	speed := strconv.FormatFloat(current.BaseSpeed, 'f', 0, 64)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Controller level").
				Options(levelOptions...).
				Value(&level),
			huh.NewInput().
				Title("Proportional gain (Kp)").
				Description("deg/s of turn per percent of error, in steps of 0.1").
				Value(&kp).
				Validate(validateKp),
			huh.NewInput().
				Title("Base speed (mm/s)").
				Description(fmt.Sprintf("At least %d", minBaseSpeed)).
				Value(&speed).
				Validate(validateSpeed),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	t, err := parseTuning(level, kp, speed)
	if err != nil {
		return err
	}
	cfg.Tuning = &t
	return nil
}

func parseTuning(level int, kp, speed string) (robot.Tuning, error) {
	k, err := strconv.ParseFloat(kp, 64)
	if err != nil {
		return robot.Tuning{}, fmt.Errorf("gain: %w", err)
	}
	s, err := strconv.ParseFloat(speed, 64)
	if err != nil {
		return robot.Tuning{}, fmt.Errorf("speed: %w", err)
	}
	return robot.Tuning{
		Level:     level,
		Kp:        math.Round(k*10) / 10,
		BaseSpeed: math.Max(minBaseSpeed, s),
	}, nil
}

func validateKp(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v <= 0 {
		return fmt.Errorf("gain must be positive")
	}
	return nil
}

func validateSpeed(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < minBaseSpeed {
		return fmt.Errorf("speed must be at least %d mm/s", minBaseSpeed)
	}
	return nil
}
