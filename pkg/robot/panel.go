package robot

import (
	"fmt"
	"image"
	"log"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/gwillem/linetrace/pkg/tracer"
)

// Button is an active-low push button on a GPIO pin with pull-up.
type Button struct {
	pin gpio.PinIn
}

// NewButton configures the named GPIO pin as a button input.
func NewButton(name string) (*Button, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown GPIO pin %q", name)
	}
	return newButton(p)
}

func newButton(p gpio.PinIn) (*Button, error) {
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %w", p, err)
	}
	return &Button{pin: p}, nil
}

// Pressed implements tracer.Button.
func (b *Button) Pressed() (bool, error) {
	return b.pin.Read() == gpio.Low, nil
}

// Signal is what the panel shows and plays for an event.
type Signal struct {
	Glyph    string
	Tone     physic.Frequency
	Duration time.Duration
	// Chime, when set, is played instead of Tone, one note per Duration
	// with an equal pause between notes.
	Chime []physic.Frequency
}

// readyChime is the rising start-up sequence.
var readyChime = []physic.Frequency{1000 * physic.Hertz, 1500 * physic.Hertz, 2000 * physic.Hertz}

var signals = map[tracer.EventKind]Signal{
	tracer.EventReady:             {Glyph: "M", Duration: 100 * time.Millisecond, Chime: readyChime},
	tracer.EventCalibrateWhite:    {"W", 1000 * physic.Hertz, 100 * time.Millisecond},
	tracer.EventCalibrateBlack:    {"B", 1000 * physic.Hertz, 100 * time.Millisecond},
	tracer.EventCalibrated:        {"R", 2000 * physic.Hertz, 200 * time.Millisecond},
	tracer.EventCalibrationFailed: {"X", 500 * physic.Hertz, 500 * time.Millisecond},
	tracer.EventStart:             {"G", 1500 * physic.Hertz, 100 * time.Millisecond},
	tracer.EventSearchStart:       {Glyph: "?"},
	tracer.EventLineFound:         {"R", 2000 * physic.Hertz, 100 * time.Millisecond},
	tracer.EventLineLost:          {"X", 500 * physic.Hertz, 500 * time.Millisecond},
	tracer.EventStopped:           {"S", 1000 * physic.Hertz, 200 * time.Millisecond},
	tracer.EventFault:             {"E", 500 * physic.Hertz, time.Second},
}

// SignalFor returns the glyph and tone for an event. Events without a
// signal (samples, sharp curves) return false.
func SignalFor(kind tracer.EventKind) (Signal, bool) {
	s, ok := signals[kind]
	return s, ok
}

type display interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Panel is the operator feedback: an optional SSD1306 display and an
// optional buzzer. Notify never blocks; events that arrive while the
// panel is busy are dropped.
type Panel struct {
	display display
	buzzer  gpio.PinOut
	bus     i2c.BusCloser

	events chan tracer.Event
	done   chan struct{}
	glyph  string
}

// NewPanel opens the display and buzzer named in cfg.
func NewPanel(cfg PanelConfig) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}

	var (
		bus i2c.BusCloser
		dev display
	)
	if cfg.DisplayAddr != 0 {
		b, err := i2creg.Open("")
		if err != nil {
			return nil, fmt.Errorf("failed to open I2C bus: %w", err)
		}
		d, err := ssd1306.NewI2C(b, &ssd1306.DefaultOpts)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize display: %w", err)
		}
		log.Printf("panel: display initialized at 0x%02X", cfg.DisplayAddr)
		bus, dev = b, d
	}

	var buzzer gpio.PinOut
	if cfg.BuzzerPin != "" {
		p := gpioreg.ByName(cfg.BuzzerPin)
		if p == nil {
			if bus != nil {
				bus.Close()
			}
			return nil, fmt.Errorf("unknown GPIO pin %q", cfg.BuzzerPin)
		}
		buzzer = p
	}

	panel := newPanel(dev, buzzer)
	panel.bus = bus
	return panel, nil
}

func newPanel(d display, buzzer gpio.PinOut) *Panel {
	p := &Panel{
		display: d,
		buzzer:  buzzer,
		events:  make(chan tracer.Event, 8),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify implements tracer.Notifier.
func (p *Panel) Notify(ev tracer.Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// Close drains pending events, silences the buzzer and releases the bus.
func (p *Panel) Close() error {
	close(p.events)
	<-p.done
	if p.buzzer != nil {
		p.buzzer.Out(gpio.Low)
	}
	if p.bus != nil {
		return p.bus.Close()
	}
	return nil
}

func (p *Panel) run() {
	defer close(p.done)
	for ev := range p.events {
		sig, ok := SignalFor(ev.Kind)
		switch {
		case ok:
			p.glyph = sig.Glyph
			p.draw(ev)
			p.beep(sig)
		case ev.Kind == tracer.EventSample:
			p.draw(ev)
		}
	}
}

func (p *Panel) draw(ev tracer.Event) {
	if p.display == nil {
		return
	}
	img := renderPanel(p.glyph, ev)
	if err := p.display.Draw(p.display.Bounds(), img, image.Point{}); err != nil {
		log.Printf("panel: draw: %v", err)
	}
}

func (p *Panel) beep(s Signal) {
	if p.buzzer == nil || s.Duration == 0 {
		return
	}
	notes := s.Chime
	if len(notes) == 0 {
		notes = []physic.Frequency{s.Tone}
	}
	for i, f := range notes {
		if i > 0 {
			time.Sleep(s.Duration)
		}
		if err := p.buzzer.PWM(gpio.DutyHalf, f); err != nil {
			log.Printf("panel: buzzer: %v", err)
			return
		}
		time.Sleep(s.Duration)
		p.buzzer.Out(gpio.Low)
	}
}

const glyphScale = 4

// renderPanel draws the glyph enlarged on the left and the event on the
// right of a 128x64 frame.
func renderPanel(glyph string, ev tracer.Event) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	if glyph != "" {
		small := image1bit.NewVerticalLSB(image.Rect(0, 0, 8, 16))
		d := &font.Drawer{
			Dst:  small,
			Src:  &image.Uniform{image1bit.On},
			Face: basicfont.Face7x13,
			Dot:  fixed.P(0, 11),
		}
		d.DrawString(glyph[:1])
		for y := 0; y < 16; y++ {
			for x := 0; x < 8; x++ {
				if small.At(x, y) != image1bit.On {
					continue
				}
				for dy := 0; dy < glyphScale; dy++ {
					for dx := 0; dx < glyphScale; dx++ {
						img.Set(x*glyphScale+dx, y*glyphScale+dy, image1bit.On)
					}
				}
			}
		}
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	drawer.Dot = fixed.P(40, 26)
	drawer.DrawString(ev.Kind.String())
	if ev.Kind == tracer.EventSample || ev.Value != 0 {
		drawer.Dot = fixed.P(40, 45)
		drawer.DrawString(fmt.Sprintf("%5.1f%%", ev.Value))
	}
	return img
}
