package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/linetrace/pkg/tracer"
)

const (
	headerHeight = 3 // title + status + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Series plotted on the dashboard, all scaled to [-100, 100].
var seriesColors = []struct {
	name  string
	color string
}{
	{"error", "51"},  // cyan
	{"turn", "196"},  // red
	{"speed", "46"},  // green
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	faultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

type dashboardModel struct {
	title    string
	tr       *tracer.Tracer
	run      *runner
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	last     tracer.Tick
	haveTick bool
	outcome  *runOutcome
	quitting bool
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the tracer
type tickStateMsg tracer.Tick
type logMsg string
type doneMsg runOutcome

func waitForTick(tr *tracer.Tracer) tea.Cmd {
	return func() tea.Msg {
		return tickStateMsg(<-tr.Ticks())
	}
}

func waitForLog(tr *tracer.Tracer) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-tr.Logs())
	}
}

func waitForDone(r *runner) tea.Cmd {
	return func() tea.Msg {
		return doneMsg(r.wait())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboardModel(title string, r *runner) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-100, 100),
	)

	for _, s := range seriesColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color))
		chart.SetDataSetStyles(s.name, runes.ThinLineStyle, style)
	}

	return dashboardModel{
		title: title,
		tr:    r.tr,
		run:   r,
		chart: &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	// Start listening for tick, log and completion updates
	return tea.Batch(
		waitForTick(m.tr),
		waitForLog(m.tr),
		waitForDone(m.run),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickStateMsg:
		t := tracer.Tick(msg)
		cfg := m.tr.Config()
		m.chart.PushDataSet("error", t.Error)
		m.chart.PushDataSet("turn", t.TurnRate/cfg.MaxTurnRate*100)
		m.chart.PushDataSet("speed", t.Speed/cfg.BaseSpeed*100)
		m.chart.DrawAll()
		m.last, m.haveTick = t, true
		return m, waitForTick(m.tr)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.tr)

	case doneMsg:
		o := runOutcome(msg)
		m.outcome = &o
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString(fmt.Sprintf(" - %v per tick", m.tr.Config().TickPeriod))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.status())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) status() string {
	if m.outcome != nil {
		line := fmt.Sprintf("Run %s after %d ticks, %d searches - press 'q' to exit",
			m.outcome.res.Outcome, m.outcome.res.Ticks, m.outcome.res.Searches)
		if m.outcome.err != nil {
			return faultStyle.Render(line + ": " + m.outcome.err.Error())
		}
		return successStyle.Render(line)
	}
	if !m.haveTick {
		return statusStyle.Render("waiting for first tick")
	}
	t := m.last
	return statusStyle.Render(fmt.Sprintf(
		"#%d  %5.1f%%  turn %+6.1f  speed %5.1f  %s  line %s  lost %d  %s",
		t.Index, t.Reflectance, t.TurnRate, t.Speed, t.Mode, t.Position, t.LostCount, t.Curve))
}

func renderLegend() string {
	var items []string
	for _, s := range seriesColors {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+s.name)
	}
	return strings.Join(items, "  ")
}
