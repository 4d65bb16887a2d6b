package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/linetrace/pkg/tracer"
)

type SensorCommand struct {
	Calibrate bool `long:"calibrate" description:"Calibrate first instead of using the default thresholds"`
}

func (c *SensorCommand) Execute(args []string) error {
	cfg := loadConfig(opts.Config)
	r, err := openRig(cfg, false)
	if err != nil {
		log.Fatalf("Failed to open hardware: %v", err)
	}
	defer r.Close()

	profile := tracer.DefaultProfile()
	if c.Calibrate {
		tc, err := cfg.TracerConfig(0)
		if err != nil {
			return err
		}
		profile, err = calibrate(context.Background(), r, tc, logNotifier{log.Default()})
		if err != nil {
			return err
		}
	}

	p := tea.NewProgram(newSensorModel(r, profile))
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}
	return nil
}

var surfaceStyles = map[tracer.Surface]lipgloss.Style{
	tracer.SurfaceBlack: lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("0")).Bold(true),
	tracer.SurfaceWhite: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("15")).Bold(true),
	tracer.SurfaceGray:  lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("245")).Bold(true),
}

var surfaceGlyphs = map[tracer.Surface]string{
	tracer.SurfaceBlack: "B",
	tracer.SurfaceWhite: "W",
	tracer.SurfaceGray:  "G",
}

// Sensor test TUI model
type sensorModel struct {
	rig      *rig
	profile  tracer.Profile
	raw      int
	value    float64
	err      error
	quitting bool
}

func newSensorModel(r *rig, p tracer.Profile) sensorModel {
	return sensorModel{rig: r, profile: p}
}

func (m sensorModel) Init() tea.Cmd {
	return tick()
}

func (m sensorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		m.raw, m.err = m.rig.sensor.Raw(context.Background())
		if m.err == nil {
			m.value = m.rig.sensor.Range.Normalize(m.raw)
			m.rig.panel.Notify(tracer.Event{Kind: tracer.EventSample, Value: m.value})
		}
		return m, tick()
	}

	return m, nil
}

func (m sensorModel) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return fmt.Sprintf("Error reading sensor: %v\n", m.err)
	}

	surface := m.profile.Classify(m.value)
	badge := surfaceStyles[surface].Render(" " + surfaceGlyphs[surface] + " ")

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Raw", "Reflectance", "Error", "Surface").
		Rows([]string{
			fmt.Sprintf("%d", m.raw),
			fmt.Sprintf("%5.1f%%", m.value),
			fmt.Sprintf("%+5.1f", m.value-m.profile.Target),
			string(surface),
		})

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Sensor test") + "  " + badge + "\n\n")
	sb.WriteString(reflectanceBar(m.value, m.profile, 50) + "\n")
	sb.WriteString(t.Render() + "\n")
	sb.WriteString(dimStyle.Render(m.profile.String()) + "\n\n")
	sb.WriteString(dimStyle.Render("Press q to quit"))
	return sb.String()
}

// reflectanceBar draws value on a 0-100% scale with the thresholds marked.
func reflectanceBar(value float64, p tracer.Profile, width int) string {
	pos := func(v float64) int {
		i := int(v / 100 * float64(width-1))
		return max(0, min(width-1, i))
	}
	bar := []rune(strings.Repeat("─", width))
	bar[pos(p.BlackThreshold)] = '┆'
	bar[pos(p.WhiteThreshold)] = '┆'
	bar[pos(p.Target)] = '┼'
	bar[pos(value)] = '●'
	return string(bar)
}

type CalibrateCommand struct {
	JSON bool `long:"json" description:"Print the profile as JSON"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	cfg := loadConfig(opts.Config)
	r, err := openRig(cfg, false)
	if err != nil {
		log.Fatalf("Failed to open hardware: %v", err)
	}
	defer r.Close()

	tc, err := cfg.TracerConfig(0)
	if err != nil {
		return err
	}

	profile, err := calibrate(context.Background(), r, tc, logNotifier{log.Default()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	}
	printProfile(profile)
	return nil
}

func printProfile(p tracer.Profile) {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Black <", "Target", "White >", "Gray zone").
		Rows([]string{
			fmt.Sprintf("%.1f%%", p.BlackThreshold),
			fmt.Sprintf("%.1f%%", p.Target),
			fmt.Sprintf("%.1f%%", p.WhiteThreshold),
			fmt.Sprintf("±%.1f", p.GrayZone),
		})
	fmt.Println(successStyle.Render("Calibrated"))
	fmt.Println(t.Render())
}
