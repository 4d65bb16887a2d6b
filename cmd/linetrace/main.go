package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config string `long:"config" short:"c" default:"linetrace.json" description:"Robot configuration file"`

	Setup     SetupCommand     `command:"setup" description:"Find the wheel servos and record the sensor range"`
	Sensor    SensorCommand    `command:"sensor" description:"Show live sensor readings"`
	Calibrate CalibrateCommand `command:"calibrate" description:"Sample white and black and print the profile"`
	Tune      TuneCommand      `command:"tune" description:"Adjust level, gain and speed"`
	Run       RunCommand       `command:"run" description:"Calibrate and follow the line"`
	Sim       SimCommand       `command:"sim" description:"Follow a simulated track"`
	Menu      MenuCommand      `command:"menu" description:"Pick a mode interactively"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "linetrace - single-sensor line follower for feetech wheel robots"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
