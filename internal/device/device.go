// Package device abstracts the kiosk hardware behind small interfaces so
// the session controller can run against real peripherals or test doubles.
package device

import (
	"context"
	"errors"
	"time"
)

// ErrScanFailure reports that the scanner did not produce a usable
// artifact. Timeouts, backend errors and unreadable output all wrap it.
var ErrScanFailure = errors.New("scan failure")

// IndicatorState is what the front-panel indicators show the user.
type IndicatorState string

const (
	StateReady      IndicatorState = "ready"
	StateProcessing IndicatorState = "processing"
	StateError      IndicatorState = "error"
)

// ScanSettings configures a capture.
type ScanSettings struct {
	Resolution  int     // DPI
	ColorMode   string  // color, gray or lineart
	MaxWidthIn  float64 // inches, 0 leaves the device default
	MaxHeightIn float64
}

// Scanner captures one document per call.
type Scanner interface {
	Configure(settings ScanSettings) error
	Capture(ctx context.Context) (*CapturedArtifact, error)
}

// Trigger delivers debounced press events. At most one event is buffered;
// presses arriving while the buffer is full are dropped at the source.
type Trigger interface {
	Events() <-chan time.Time
	Close() error
}

// Indicator drives the front-panel state display.
type Indicator interface {
	SetState(state IndicatorState) error
}

// Player plays one audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}
