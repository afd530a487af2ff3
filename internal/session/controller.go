// Package session owns the capture-analyze-notify state machine that
// turns one button press into one scanned, analyzed and narrated
// document. At most one session runs at a time.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/audio"
	"github.com/arkumar/medscan/internal/device"
	"github.com/arkumar/medscan/internal/language"
	"github.com/arkumar/medscan/internal/store"
)

// Scanner captures one document per call.
type Scanner interface {
	Capture(ctx context.Context) (*device.CapturedArtifact, error)
}

// TextExtractor pulls text off a captured image for document-type
// detection.
type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath, langCode string) (string, error)
}

// Analyzer produces a finding for a captured document.
type Analyzer interface {
	Analyze(ctx context.Context, docType analysis.DocumentType, imagePath string) (*analysis.Finding, error)
}

// Feedback is the audio surface the controller speaks through.
type Feedback interface {
	Enqueue(msg audio.Message)
	Drain(ctx context.Context) error
}

// ResultWriter persists one finding record per successful session.
type ResultWriter interface {
	Save(rec *store.ResultRecord) (string, error)
}

// Archiver records every finished session, success or failure.
type Archiver interface {
	Insert(rec *store.AuditRecord) error
}

// LanguageResolver picks the active language when a trigger is accepted.
type LanguageResolver interface {
	Resolve() language.Language
}

// Controller runs sessions end to end. A non-blocking session lock
// enforces single-flight execution: a trigger arriving while a session is
// active is dropped with a logged rejection, never queued.
type Controller struct {
	scanner   Scanner
	extractor TextExtractor
	analyzer  Analyzer
	indicator device.Indicator
	feedback  Feedback
	results   ResultWriter
	audit     Archiver
	languages LanguageResolver

	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

func NewController(
	scanner Scanner,
	extractor TextExtractor,
	analyzer Analyzer,
	indicator device.Indicator,
	feedback Feedback,
	results ResultWriter,
	audit Archiver,
	languages LanguageResolver,
) *Controller {
	return &Controller{
		scanner:   scanner,
		extractor: extractor,
		analyzer:  analyzer,
		indicator: indicator,
		feedback:  feedback,
		results:   results,
		audit:     audit,
		languages: languages,
		state:     StateIdle,
	}
}

// State reports the controller's current state for the status surface.
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Run pumps trigger events into sessions until ctx is done. Each event is
// dispatched on its own goroutine so a press during an active session
// hits the session lock and is rejected instead of waiting its turn.
func (c *Controller) Run(ctx context.Context, events <-chan time.Time) error {
	c.setIndicator(device.StateReady)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pressedAt, ok := <-events:
			if !ok {
				return nil
			}
			log.Debug().Time("pressed_at", pressedAt).Msg("trigger received")
			go func() {
				_, _ = c.Trigger(ctx)
			}()
		}
	}
}

// Trigger starts one session and runs it to completion, returning the
// archived session. It returns ErrSessionActive without side effects
// when a session is already running.
func (c *Controller) Trigger(ctx context.Context) (*Session, error) {
	if !c.mu.TryLock() {
		log.Warn().Msg("trigger rejected, session already active")
		return nil, ErrSessionActive
	}
	defer c.mu.Unlock()

	sess := &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
		State:     StateIdle,
		Language:  c.languages.Resolve(),
	}
	log.Info().Str("session_id", sess.ID).Str("language", sess.Language.Name).Msg("session started")

	c.runCycle(ctx, sess)
	c.closeCycle(ctx, sess)

	return sess, nil
}

func (c *Controller) runCycle(ctx context.Context, sess *Session) {
	c.transition(sess, StateCapturing)
	artifact, err := c.scanner.Capture(ctx)
	if err != nil {
		c.fail(sess, fmt.Errorf("failed to capture document: %w", err))
		return
	}
	sess.Artifact = artifact

	c.transition(sess, StateDetecting)
	text, err := c.extractor.ExtractText(ctx, artifact.Path, sess.Language.OCRCode)
	if err != nil {
		// Detection degrades to the generic analyzer instead of failing
		// the session.
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("text extraction failed, treating document type as unknown")
		text = ""
	}
	sess.DocumentType = analysis.DetectDocumentType(text)
	log.Info().Str("session_id", sess.ID).Str("document_type", string(sess.DocumentType)).Msg("document type detected")

	c.transition(sess, StateAnalyzing)
	finding, err := c.analyzer.Analyze(ctx, sess.DocumentType, artifact.Path)
	if err != nil {
		c.fail(sess, fmt.Errorf("failed to analyze document: %w", err))
		return
	}
	sess.Finding = finding

	path, err := c.results.Save(&store.ResultRecord{
		SessionID:    sess.ID,
		Language:     sess.Language.Name,
		CapturedAt:   artifact.CapturedAt,
		CompletedAt:  time.Now(),
		ArtifactPath: artifact.Path,
		Finding:      finding,
	})
	if err != nil {
		c.fail(sess, fmt.Errorf("failed to save result: %w", err))
		return
	}
	sess.ResultPath = path

	c.transition(sess, StateNarrating)
	// Prompts ship with translations; the finding narrative has none, so
	// it is always spoken in english.
	c.feedback.Enqueue(audio.Message{
		Text:     finding.SpokenText(),
		Language: language.English,
		Priority: audio.PriorityNarration,
	})
}

// closeCycle waits for queued audio, restores the ready indicator and
// archives the session. The processing indicator is never left set, no
// matter how the cycle ended.
func (c *Controller) closeCycle(ctx context.Context, sess *Session) {
	if err := c.feedback.Drain(ctx); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("audio drain interrupted")
	}

	c.setIndicator(device.StateReady)
	c.setState(sess, StateIdle)
	sess.FinishedAt = time.Now()

	rec := &store.AuditRecord{
		ID:         sess.ID,
		StartedAt:  sess.StartedAt,
		FinishedAt: sess.FinishedAt,
		Language:   sess.Language.Name,
		ResultPath: sess.ResultPath,
	}
	if sess.Artifact != nil {
		rec.ArtifactPath = sess.Artifact.Path
	}
	if sess.DocumentType != "" {
		rec.DocumentType = string(sess.DocumentType)
	}
	if sess.Finding != nil {
		rec.AnalyzerSource = string(sess.Finding.Source)
	}
	if sess.Err != nil {
		rec.Error = sess.Err.Error()
	}
	if err := c.audit.Insert(rec); err != nil {
		log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to archive session")
	}

	if sess.Err != nil {
		log.Info().Str("session_id", sess.ID).Dur("elapsed", time.Since(sess.StartedAt)).Msg("session closed after error")
		return
	}
	log.Info().Str("session_id", sess.ID).Dur("elapsed", time.Since(sess.StartedAt)).Str("result", sess.ResultPath).Msg("session closed")
}

// transition moves sess to next and performs the transition's side
// effects. The processing indicator is set once, on entering Capturing;
// later states keep it lit until closeCycle restores ready.
func (c *Controller) transition(sess *Session, next State) {
	log.Debug().Str("session_id", sess.ID).Str("from", string(sess.State)).Str("to", string(next)).Msg("state transition")
	c.setState(sess, next)

	switch next {
	case StateCapturing:
		c.setIndicator(device.StateProcessing)
		c.prompt(sess, language.PromptScanning)
	case StateAnalyzing:
		c.prompt(sess, language.PromptAnalyzing)
	case StateNarrating:
		c.prompt(sess, language.PromptComplete)
	}
}

// fail moves sess to the error state with the error indicator and an
// alert-tier notification. Errors never cross into a following session.
func (c *Controller) fail(sess *Session, err error) {
	log.Error().Err(err).Str("session_id", sess.ID).Str("state", string(sess.State)).Msg("session failed")
	sess.Err = err
	c.setState(sess, StateError)
	c.setIndicator(device.StateError)
	c.feedback.Enqueue(audio.Message{
		Text:     language.Prompt(sess.Language, language.PromptError),
		Language: sess.Language,
		Priority: audio.PriorityAlert,
	})
}

func (c *Controller) prompt(sess *Session, key string) {
	c.feedback.Enqueue(audio.Message{
		Text:     language.Prompt(sess.Language, key),
		Language: sess.Language,
		Priority: audio.PriorityNarration,
	})
}

func (c *Controller) setState(sess *Session, next State) {
	sess.State = next
	c.stateMu.Lock()
	c.state = next
	c.stateMu.Unlock()
}

func (c *Controller) setIndicator(state device.IndicatorState) {
	if err := c.indicator.SetState(state); err != nil {
		log.Error().Err(err).Str("state", string(state)).Msg("failed to set indicator")
	}
}
