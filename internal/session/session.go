package session

import (
	"errors"
	"time"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/device"
	"github.com/arkumar/medscan/internal/language"
)

// State is the controller's position in the session lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateDetecting State = "detecting"
	StateAnalyzing State = "analyzing"
	StateNarrating State = "narrating"
	StateError     State = "error"
)

// ErrSessionActive reports a trigger rejected because a session is
// already running.
var ErrSessionActive = errors.New("a session is already active")

// Session is one capture-analyze-notify cycle. It is created when a
// trigger is accepted and archived when the controller returns to idle;
// Err is set when the cycle ended through the error state.
type Session struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	State        State
	Language     language.Language
	Artifact     *device.CapturedArtifact
	DocumentType analysis.DocumentType
	Finding      *analysis.Finding
	ResultPath   string
	Err          error
}
