package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/linetrace/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	SkipSensor bool `long:"skip-sensor" description:"Keep the recorded sensor range"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("linetrace Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━"))
	fmt.Println()

	config := loadOrDefault(opts.Config)

	// Step 1: Find the drive base
	scanForWheels(config)
	if err := config.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Panel wiring
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Panel ━━━"))
	fmt.Println()
	if err := askPanel(&config.Panel); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	// Step 3: Sensor range
	if !c.SkipSensor {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Recording Sensor Range ━━━"))
		fmt.Println()
		recordSensorRange(&config.Sensor)
	}

	if err := config.SaveTo(opts.Config); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Follow a line with: " + headerStyle.Render("linetrace run"))

	return nil
}

type baseInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func scanForWheels(config *robot.Config) {
	fmt.Println("Scanning for wheel servos...")
	fmt.Println()

	bases := findWheelBases()
	if len(bases) == 0 {
		fmt.Println("No drive base found.")
		fmt.Println("Make sure the servo board is connected and powered on.")
		os.Exit(1)
	}

	base := bases[0]
	for _, other := range bases[1:] {
		other.bus.Close()
	}
	defer base.bus.Close()

	fmt.Printf("Using drive base on %s. Let's identify the wheels...\n", base.port)
	config.Wheels.Port = base.port

	calibration := make(robot.Calibration)
	for _, s := range base.servos {
		name, mirrored := identifyWheelWithWiggle(base, s)
		if name == "" {
			continue
		}
		mc := robot.MotorCalibration{ID: s.ID}
		if mirrored {
			mc.DriveMode = 1
		}
		calibration[name] = mc
	}

	if len(calibration) != len(robot.AllWheels()) {
		fmt.Println()
		fmt.Println("Both wheels are required to drive.")
		os.Exit(1)
	}
	config.Wheels.Calibration = calibration

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Wheels identified:"))
	for _, name := range robot.AllWheels() {
		mc := calibration[name]
		fmt.Printf("  %-6s ID %d, drive mode %d\n", name, mc.ID, mc.DriveMode)
	}
}

func findWheelBases() []baseInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var bases []baseInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: 1_000_000,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			cancel()
			continue
		}

		servos, err := bus.Scan(ctx, 1, 10)
		cancel()

		if err != nil || len(servos) != len(robot.AllWheels()) {
			bus.Close()
			continue
		}

		fmt.Printf("  Found %d servos on %s\n", len(servos), port)
		bases = append(bases, baseInfo{
			port:   port,
			servos: servos,
			bus:    bus,
		})
	}

	return bases
}

// identifyWheelWithWiggle nudges one servo forward and back and asks
// which wheel moved and whether it rolled backward.
func identifyWheelWithWiggle(base baseInfo, found feetech.FoundServo) (robot.WheelName, bool) {
	ctx := context.Background()
	servo := feetech.NewServo(base.bus, found.ID, found.Model)

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return "", false
	}
	// A run leaves the wheels in position mode, but an aborted one may not.
	if err := servo.SetOperatingMode(ctx, feetech.ModePosition); err != nil {
		fmt.Printf("  Error setting position mode: %v\n", err)
		return "", false
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return "", false
	}

	fmt.Printf("\n  Turning servo %d a quarter turn...\n", found.ID)

	moveTimeMs := 500
	servo.SetPositionWithTime(ctx, originalPos+robot.StepsPerRev/4, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.Disable(ctx)

	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which wheel is servo %d?", found.ID)).
				Description("Watch the first move of the wheel that just turned").
				Options(
					huh.NewOption("Left, rolled forward", "left"),
					huh.NewOption("Left, rolled backward", "left-mirrored"),
					huh.NewOption("Right, rolled forward", "right"),
					huh.NewOption("Right, rolled backward", "right-mirrored"),
					huh.NewOption("Skip this servo", "skip"),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	name, mode, _ := strings.Cut(choice, "-")
	if name == "skip" {
		return "", false
	}
	return robot.WheelName(name), mode == "mirrored"
}

func askPanel(panel *robot.PanelConfig) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Confirm button pin").
				Value(&panel.ConfirmPin).
				Validate(requirePin),
			huh.NewInput().
				Title("Stop button pin").
				Value(&panel.StopPin).
				Validate(requirePin),
			huh.NewInput().
				Title("Buzzer pin").
				Description("Leave empty if there is no buzzer").
				Value(&panel.BuzzerPin),
		),
	)
	return form.Run()
}

func requirePin(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a GPIO pin name is required, e.g. GPIO17")
	}
	return nil
}

func recordSensorRange(sensorConfig *robot.SensorConfig) {
	sensor, err := robot.NewReflectanceSensor(*sensorConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening sensor: %v\n", err)
		os.Exit(1)
	}
	defer sensor.Close()

	fmt.Println("Slide the robot so the sensor crosses the line several times.")
	fmt.Println("Include the darkest part of the line and the brightest floor.")
	fmt.Println()

	raw, err := sensor.Raw(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading sensor: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(newRangeModel(sensor, raw))
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error recording sensor range: %v\n", err)
		os.Exit(1)
	}

	rm := finalModel.(rangeModel)
	sensorConfig.Range = robot.SensorRange{RangeMin: rm.min, RangeMax: rm.max}
	fmt.Printf("Sensor range recorded: %d - %d\n", rm.min, rm.max)
}

// Range recording TUI model
type rangeModel struct {
	sensor   *robot.ReflectanceSensor
	cur      int
	min      int
	max      int
	quitting bool
}

type tickMsg time.Time

func newRangeModel(sensor *robot.ReflectanceSensor, raw int) rangeModel {
	return rangeModel{sensor: sensor, cur: raw, min: raw, max: raw}
}

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m rangeModel) Init() tea.Cmd {
	return tick()
}

func (m rangeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		if raw, err := m.sensor.Raw(context.Background()); err == nil {
			m.cur = raw
			m.min = min(m.min, raw)
			m.max = max(m.max, raw)
		}
		return m, tick()
	}

	return m, nil
}

func (m rangeModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	span := m.max - m.min
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Current", "Min", "Max", "Range").
		Rows([]string{
			fmt.Sprintf("%d", m.cur),
			fmt.Sprintf("%d", m.min),
			fmt.Sprintf("%d", m.max),
			fmt.Sprintf("%d", span),
		}).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableCurrentStyle
			case 3:
				if span > 2000 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done")
}
