package main

import (
	"fmt"
	"log"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/linetrace/pkg/robot"
	"github.com/gwillem/linetrace/pkg/tracer"
)

type MenuCommand struct{}

type menuEntry struct {
	label string
	cmd   interface{ Execute([]string) error }
}

func menuEntries() []menuEntry {
	return []menuEntry{
		{"Sensor test", &SensorCommand{}},
		{"Calibrate", &CalibrateCommand{}},
		{"Run", &RunCommand{}},
		{"Calibrate, tune and run", &RunCommand{Tune: true}},
		{"Calibrate, then run on confirm", &RunCommand{Wait: true}},
		{"Tune level, gain and speed", &TuneCommand{}},
		{"Simulate", &SimCommand{Track: "oval", Straight: 600, Radius: 200, Width: 20, Level: 5, Duration: defaultSimDuration, Seed: 1}},
	}
}

func (c *MenuCommand) Execute(args []string) error {
	announceReady(opts.Config)

	entries := menuEntries()
	options := make([]huh.Option[int], 0, len(entries)+1)
	for i, e := range entries {
		options = append(options, huh.NewOption(e.label, i))
	}
	options = append(options, huh.NewOption("Quit", -1))

	for {
		choice := -1
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[int]().
					Title("linetrace").
					Options(options...).
					Value(&choice),
			),
		)
		if err := form.Run(); err != nil || choice < 0 {
			return nil
		}

		e := entries[choice]
		fmt.Println(headerStyle.Render(e.label))
		if err := e.cmd.Execute(nil); err != nil {
			fmt.Printf("%s failed: %v\n", e.label, err)
		}
		fmt.Println()
	}
}

// announceReady plays the start-up chime on the panel of the robot
// configured at path. Without a configured robot it does nothing.
func announceReady(path string) {
	if !robot.ConfigExists(path) {
		return
	}
	cfg, err := robot.LoadConfigFrom(path)
	if err != nil {
		log.Printf("panel: %v", err)
		return
	}
	p, err := robot.NewPanel(cfg.Panel)
	if err != nil {
		log.Printf("panel: %v", err)
		return
	}
	p.Notify(tracer.Event{Kind: tracer.EventReady})
	// Close waits for the chime so the entries can reopen the pins.
	if err := p.Close(); err != nil {
		log.Printf("panel: %v", err)
	}
}
