package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

// ButtonTrigger turns falling edges on a pulled-up GPIO line into trigger
// events. Debouncing happens in the kernel via the line request.
type ButtonTrigger struct {
	line   *gpiocdev.Line
	events chan time.Time
}

// NewButtonTrigger requests the button line on chip with the given debounce
// window.
func NewButtonTrigger(chip string, pin int, debounce time.Duration) (*ButtonTrigger, error) {
	t := &ButtonTrigger{events: make(chan time.Time, 1)}
	line, err := gpiocdev.RequestLine(chip, pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(t.handle))
	if err != nil {
		return nil, fmt.Errorf("failed to request button line %s:%d: %w", chip, pin, err)
	}
	t.line = line
	return t, nil
}

func (t *ButtonTrigger) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	select {
	case t.events <- time.Now():
	default:
		log.Debug().Msg("button press dropped, one already pending")
	}
}

func (t *ButtonTrigger) Events() <-chan time.Time { return t.events }

func (t *ButtonTrigger) Close() error { return t.line.Close() }

// LEDIndicator drives the status and error LEDs. Ready turns both off,
// processing lights the status LED, error lights the error LED.
type LEDIndicator struct {
	mu     sync.Mutex
	status *gpiocdev.Line
	errLED *gpiocdev.Line
}

// NewLEDIndicator requests both LED lines on chip, initially off.
func NewLEDIndicator(chip string, statusPin, errorPin int) (*LEDIndicator, error) {
	status, err := gpiocdev.RequestLine(chip, statusPin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("failed to request status led line %s:%d: %w", chip, statusPin, err)
	}
	errLED, err := gpiocdev.RequestLine(chip, errorPin, gpiocdev.AsOutput(0))
	if err != nil {
		status.Close()
		return nil, fmt.Errorf("failed to request error led line %s:%d: %w", chip, errorPin, err)
	}
	return &LEDIndicator{status: status, errLED: errLED}, nil
}

func (l *LEDIndicator) SetState(state IndicatorState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var statusVal, errVal int
	switch state {
	case StateReady:
	case StateProcessing:
		statusVal = 1
	case StateError:
		errVal = 1
	default:
		return fmt.Errorf("unknown indicator state: %q", state)
	}
	if err := l.status.SetValue(statusVal); err != nil {
		return fmt.Errorf("failed to set status led: %w", err)
	}
	if err := l.errLED.SetValue(errVal); err != nil {
		return fmt.Errorf("failed to set error led: %w", err)
	}
	return nil
}

// SelfTest flashes each LED once at power-on so a stuck or miswired LED is
// visible before the first session.
func (l *LEDIndicator) SelfTest() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, line := range []*gpiocdev.Line{l.status, l.errLED} {
		if err := line.SetValue(1); err != nil {
			return fmt.Errorf("led self-test failed: %w", err)
		}
		time.Sleep(500 * time.Millisecond)
		if err := line.SetValue(0); err != nil {
			return fmt.Errorf("led self-test failed: %w", err)
		}
	}
	return nil
}

// Close turns both LEDs off and releases the lines.
func (l *LEDIndicator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.status.SetValue(0)
	l.errLED.SetValue(0)
	err := l.status.Close()
	if cerr := l.errLED.Close(); err == nil {
		err = cerr
	}
	return err
}

// SwitchSource reads a multi-position language selector switch. Position i
// maps to names[i]; the selected position pulls its line to ground. No line
// pulled low reports an empty selection.
type SwitchSource struct {
	lines []*gpiocdev.Line
	names []string
}

// NewSwitchSource requests one pulled-up input line per selector position.
func NewSwitchSource(chip string, pins []int, names []string) (*SwitchSource, error) {
	if len(pins) != len(names) {
		return nil, fmt.Errorf("selector has %d pins for %d languages", len(pins), len(names))
	}
	s := &SwitchSource{names: names}
	for _, pin := range pins {
		line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to request selector line %s:%d: %w", chip, pin, err)
		}
		s.lines = append(s.lines, line)
	}
	return s, nil
}

func (s *SwitchSource) ActiveLanguage() (string, error) {
	for i, line := range s.lines {
		v, err := line.Value()
		if err != nil {
			return "", fmt.Errorf("failed to read selector line %d: %w", i, err)
		}
		if v == 0 {
			return s.names[i], nil
		}
	}
	return "", nil
}

func (s *SwitchSource) Close() error {
	var err error
	for _, line := range s.lines {
		if cerr := line.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
