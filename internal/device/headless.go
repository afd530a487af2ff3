package device

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// SignalTrigger delivers trigger events on SIGUSR1. It stands in for the
// hardware button when GPIO is disabled.
type SignalTrigger struct {
	events chan time.Time
	sigs   chan os.Signal
	done   chan struct{}
}

func NewSignalTrigger() *SignalTrigger {
	t := &SignalTrigger{
		events: make(chan time.Time, 1),
		sigs:   make(chan os.Signal, 1),
		done:   make(chan struct{}),
	}
	signal.Notify(t.sigs, syscall.SIGUSR1)
	go t.pump()
	return t
}

func (t *SignalTrigger) pump() {
	for {
		select {
		case <-t.done:
			return
		case <-t.sigs:
			select {
			case t.events <- time.Now():
			default:
				log.Debug().Msg("trigger signal dropped, one already pending")
			}
		}
	}
}

func (t *SignalTrigger) Events() <-chan time.Time { return t.events }

func (t *SignalTrigger) Close() error {
	signal.Stop(t.sigs)
	close(t.done)
	return nil
}

// LogIndicator reports indicator changes through the log only. It stands in
// for the LEDs when GPIO is disabled.
type LogIndicator struct{}

func (LogIndicator) SetState(state IndicatorState) error {
	log.Info().Str("state", string(state)).Msg("indicator")
	return nil
}
