package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/linetrace/pkg/telemetry"
	"github.com/gwillem/linetrace/pkg/tracer"
)

// runOutcome is what a background Run returned.
type runOutcome struct {
	res tracer.Result
	err error
}

// runner executes Tracer.Run in the background.
type runner struct {
	tr   *tracer.Tracer
	done chan struct{}
	out  runOutcome
}

func startRun(ctx context.Context, tr *tracer.Tracer) *runner {
	r := &runner{tr: tr, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.out.res, r.out.err = tr.Run(ctx)
	}()
	return r
}

// wait blocks until Run has returned.
func (r *runner) wait() runOutcome {
	<-r.done
	return r.out
}

// follow runs tr until it ends or the user interrupts. With tui set
// the dashboard is shown until the user quits it.
func follow(title string, tr *tracer.Tracer, tui bool) runOutcome {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r := startRun(ctx, tr)
	if !tui {
		return r.wait()
	}

	p := tea.NewProgram(newDashboardModel(title, r), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Printf("Error running dashboard: %v", err)
	}
	cancel()
	return r.wait()
}

// newTracer wires the recorder, the optional MQTT sink and, without a
// TUI, the standard logger into a tracer.
func newTracer(cfg tracer.Config, profile tracer.Profile, hw tracer.Hardware, rec *telemetry.Recorder, sink *telemetry.MQTTSink, tui bool) (*tracer.Tracer, error) {
	opts := []tracer.Option{tracer.WithSink(rec)}
	if sink != nil {
		opts = append(opts, tracer.WithSink(sink))
	}
	if !tui {
		opts = append(opts, tracer.WithLogger(log.New(os.Stderr, "tracer: ", log.Ltime)))
	}
	return tracer.New(cfg, profile, hw, opts...)
}

// report prints the outcome and the tracking summary of a run, then
// hands the summary to the optional sink and plot.
func report(o runOutcome, rec *telemetry.Recorder, profile tracer.Profile, sink *telemetry.MQTTSink, plotFile, title string) telemetry.Summary {
	ticks := rec.Ticks()
	sum := telemetry.Summarize(ticks)

	status := successStyle
	if o.err != nil || o.res.Outcome != tracer.OutcomeStopped {
		status = faultStyle
	}
	line := fmt.Sprintf("Run %s after %d ticks (%v), %d searches",
		o.res.Outcome, o.res.Ticks, o.res.Elapsed.Round(time.Millisecond), o.res.Searches)
	if o.err != nil {
		line += ": " + o.err.Error()
	}
	fmt.Println(status.Render(line))
	fmt.Println(summaryTable(sum).Render())

	if sink != nil {
		if err := sink.PublishSummary(sum); err != nil {
			log.Printf("telemetry: %v", err)
		}
		if n := sink.Failed(); n > 0 {
			log.Printf("telemetry: %d tick messages failed", n)
		}
	}
	if plotFile != "" {
		if err := telemetry.SavePlot(ticks, profile.Target, title, plotFile); err != nil {
			log.Printf("plot: %v", err)
		} else {
			fmt.Printf("Plot saved to %s\n", plotFile)
		}
	}
	return sum
}

func summaryTable(s telemetry.Summary) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Ticks", "Mean |err|", "RMS", "Max |err|", "Mean speed", "Max turn", "Sharp", "Search", "Oscillating").
		Rows([]string{
			fmt.Sprintf("%d", s.Ticks),
			fmt.Sprintf("%.1f", s.MeanAbsError),
			fmt.Sprintf("%.1f", s.RMSError),
			fmt.Sprintf("%.1f", s.MaxAbsError),
			fmt.Sprintf("%.0f mm/s", s.MeanSpeed),
			fmt.Sprintf("%.0f °/s", s.MaxTurnRate),
			fmt.Sprintf("%d", s.SharpTicks),
			fmt.Sprintf("%d", s.SearchTicks),
			fmt.Sprintf("%d", s.OscillatingTicks),
		})
}
