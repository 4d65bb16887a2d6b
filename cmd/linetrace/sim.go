package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gwillem/linetrace/pkg/sim"
	"github.com/gwillem/linetrace/pkg/telemetry"
	"github.com/gwillem/linetrace/pkg/tracer"
)

const defaultSimDuration = 20 * time.Second

type SimCommand struct {
	Track    string        `long:"track" choice:"oval" choice:"line" default:"oval" description:"Track shape"`
	Straight float64       `long:"straight" default:"600" description:"Length of the straights in mm"`
	Radius   float64       `long:"radius" default:"200" description:"Curve radius of the oval in mm"`
	Width    float64       `long:"width" default:"20" description:"Line width in mm"`
	Level    int           `long:"level" short:"l" default:"5" description:"Controller level 1-5"`
	Duration time.Duration `long:"duration" short:"d" default:"20s" description:"Simulated time before the stop button is pressed"`
	Noise    float64       `long:"noise" description:"Sensor noise, standard deviation in percent"`
	Seed     int64         `long:"seed" default:"1" description:"Noise seed"`
	Lateral  float64       `long:"lateral" description:"Start this many mm left of the line edge"`
	TUI      bool          `long:"tui" description:"Show the dashboard and run in real time"`
	Plot     string        `long:"plot" description:"Write a PNG plot of the run to this file"`
}

func (c *SimCommand) Execute(args []string) error {
	tc, err := tracer.Preset(c.Level)
	if err != nil {
		return err
	}

	track := sim.Oval(c.Straight, c.Radius, c.Width)
	if c.Track == "line" {
		track = sim.Line(c.Straight, c.Width)
	}

	so := sim.DefaultOptions()
	so.Noise = c.Noise
	so.Seed = c.Seed
	so.Realtime = c.TUI
	bot := sim.New(track, so)
	bot.Place(c.Lateral)

	profile := tracer.UncalibratedProfile(tc)
	if tc.Calibrate {
		if profile, err = bot.Profile(tc.CalibrationMargin, tc.GrayZoneRatio); err != nil {
			return err
		}
	}

	var n tracer.Notifier = tracer.NopNotifier{}
	if !c.TUI {
		n = logNotifier{log.Default()}
	}

	rec := telemetry.NewRecorder(0)
	tr, err := newTracer(tc, profile, bot.Hardware(bot.StopAfter(c.Duration), n), rec, nil, c.TUI)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("linetrace sim - %s, level %d", c.Track, c.Level)
	o := follow(title, tr, c.TUI)
	report(o, rec, profile, nil, c.Plot, title)

	laps := bot.Odometer() / track.Length()
	fmt.Printf("Drove %.0f mm in %v (%.2f track lengths), %d in-place turns\n",
		bot.Odometer(), bot.Elapsed().Round(time.Millisecond), laps, bot.Turns())
	return o.err
}
