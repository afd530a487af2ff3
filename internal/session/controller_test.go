package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/arkumar/medscan/internal/analysis"
	"github.com/arkumar/medscan/internal/audio"
	"github.com/arkumar/medscan/internal/device"
	"github.com/arkumar/medscan/internal/language"
	"github.com/arkumar/medscan/internal/store"
)

type fakeScanner struct {
	mu      sync.Mutex
	calls   int
	err     error
	path    string
	started chan struct{} // closed when Capture is first entered
	release chan struct{} // Capture blocks until closed, when set
}

func (s *fakeScanner) Capture(ctx context.Context) (*device.CapturedArtifact, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	s.mu.Unlock()

	if first && s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return &device.CapturedArtifact{
		Path:       s.path,
		Width:      2480,
		Height:     3508,
		ColorMode:  "color",
		CapturedAt: time.Now(),
	}, nil
}

type fakeExtractor struct {
	mu       sync.Mutex
	calls    int
	lastLang string
	text     string
	err      error
}

func (e *fakeExtractor) ExtractText(ctx context.Context, imagePath, langCode string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.lastLang = langCode
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	return e.text, nil
}

func (e *fakeExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    int
	lastType analysis.DocumentType
	finding  *analysis.Finding
	err      error
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, docType analysis.DocumentType, imagePath string) (*analysis.Finding, error) {
	a.mu.Lock()
	a.calls++
	a.lastType = docType
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.finding, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAnalyzer) lastDocType() analysis.DocumentType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastType
}

type fakeIndicator struct {
	mu     sync.Mutex
	states []device.IndicatorState
	err    error
}

func (i *fakeIndicator) SetState(state device.IndicatorState) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, state)
	return i.err
}

func (i *fakeIndicator) sequence() []device.IndicatorState {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]device.IndicatorState, len(i.states))
	copy(out, i.states)
	return out
}

type fakeFeedback struct {
	mu            sync.Mutex
	messages      []audio.Message
	drains        int
	indicator     *fakeIndicator
	statesAtDrain []device.IndicatorState
}

func (f *fakeFeedback) Enqueue(msg audio.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
}

func (f *fakeFeedback) Drain(ctx context.Context) error {
	states := f.indicator.sequence()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains++
	f.statesAtDrain = states
	return nil
}

func (f *fakeFeedback) list() []audio.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]audio.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeFeedback) drainSnapshot() []device.IndicatorState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]device.IndicatorState, len(f.statesAtDrain))
	copy(out, f.statesAtDrain)
	return out
}

type fakeResults struct {
	mu    sync.Mutex
	saved []*store.ResultRecord
	err   error
}

func (r *fakeResults) Save(rec *store.ResultRecord) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, rec)
	return "/results/result_1700000000.json", nil
}

func (r *fakeResults) list() []*store.ResultRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*store.ResultRecord, len(r.saved))
	copy(out, r.saved)
	return out
}

type fakeAudit struct {
	mu      sync.Mutex
	records []*store.AuditRecord
	err     error
}

func (a *fakeAudit) Insert(rec *store.AuditRecord) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeAudit) list() []*store.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*store.AuditRecord, len(a.records))
	copy(out, a.records)
	return out
}

type stubLanguage struct {
	lang language.Language
}

func (s *stubLanguage) Resolve() language.Language { return s.lang }

type fixture struct {
	scanner    *fakeScanner
	extractor  *fakeExtractor
	analyzer   *fakeAnalyzer
	indicator  *fakeIndicator
	feedback   *fakeFeedback
	results    *fakeResults
	audit      *fakeAudit
	languages  *stubLanguage
	controller *Controller
}

func newFixture() *fixture {
	indicator := &fakeIndicator{}
	f := &fixture{
		scanner:   &fakeScanner{path: "/tmp/scan_1700000000.png"},
		extractor: &fakeExtractor{text: "Chest X-Ray, PA view"},
		analyzer: &fakeAnalyzer{finding: &analysis.Finding{
			DocumentType: analysis.TypeXRay,
			Labels:       []analysis.Label{{Name: "normal", Confidence: 0.92}},
			Source:       analysis.SourceLocal,
			AnalyzedAt:   time.Now(),
		}},
		indicator: indicator,
		feedback:  &fakeFeedback{indicator: indicator},
		results:   &fakeResults{},
		audit:     &fakeAudit{},
		languages: &stubLanguage{lang: language.English},
	}
	f.controller = NewController(f.scanner, f.extractor, f.analyzer, f.indicator, f.feedback, f.results, f.audit, f.languages)
	return f
}

func compareStates(t *testing.T, got, want []device.IndicatorState) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("indicator sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indicator sequence = %v, want %v", got, want)
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHappyPathSession(t *testing.T) {
	f := newFixture()

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if sess.Err != nil {
		t.Fatalf("session error = %v, want nil", sess.Err)
	}
	if sess.State != StateIdle {
		t.Errorf("session state = %q, want %q", sess.State, StateIdle)
	}
	if sess.DocumentType != analysis.TypeXRay {
		t.Errorf("document type = %q, want %q", sess.DocumentType, analysis.TypeXRay)
	}
	if got := f.controller.State(); got != StateIdle {
		t.Errorf("controller state = %q, want %q", got, StateIdle)
	}

	msgs := f.feedback.list()
	if len(msgs) != 4 {
		t.Fatalf("enqueued %d messages, want 4", len(msgs))
	}
	wantTexts := []string{
		language.Prompt(language.English, language.PromptScanning),
		language.Prompt(language.English, language.PromptAnalyzing),
		language.Prompt(language.English, language.PromptComplete),
		"Findings: normal, 92 percent confidence.",
	}
	for i, want := range wantTexts {
		if msgs[i].Text != want {
			t.Errorf("message[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
		if msgs[i].Priority != audio.PriorityNarration {
			t.Errorf("message[%d].Priority = %d, want narration", i, msgs[i].Priority)
		}
	}

	compareStates(t, f.indicator.sequence(), []device.IndicatorState{device.StateProcessing, device.StateReady})
	// Ready is restored only after narration has drained.
	compareStates(t, f.feedback.drainSnapshot(), []device.IndicatorState{device.StateProcessing})

	saved := f.results.list()
	if len(saved) != 1 {
		t.Fatalf("saved %d results, want 1", len(saved))
	}
	if saved[0].SessionID != sess.ID {
		t.Errorf("result session id = %q, want %q", saved[0].SessionID, sess.ID)
	}
	if saved[0].Finding.Source != analysis.SourceLocal {
		t.Errorf("finding source = %q, want %q", saved[0].Finding.Source, analysis.SourceLocal)
	}
	if saved[0].ArtifactPath != "/tmp/scan_1700000000.png" {
		t.Errorf("artifact path = %q", saved[0].ArtifactPath)
	}

	recs := f.audit.list()
	if len(recs) != 1 {
		t.Fatalf("archived %d sessions, want 1", len(recs))
	}
	rec := recs[0]
	if rec.ID != sess.ID {
		t.Errorf("audit id = %q, want %q", rec.ID, sess.ID)
	}
	if rec.DocumentType != "xray" {
		t.Errorf("audit document type = %q, want xray", rec.DocumentType)
	}
	if rec.AnalyzerSource != "local" {
		t.Errorf("audit analyzer source = %q, want local", rec.AnalyzerSource)
	}
	if rec.ResultPath != sess.ResultPath {
		t.Errorf("audit result path = %q, want %q", rec.ResultPath, sess.ResultPath)
	}
	if rec.Error != "" {
		t.Errorf("audit error = %q, want empty", rec.Error)
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		t.Errorf("finished %v before started %v", rec.FinishedAt, rec.StartedAt)
	}
}

func TestScanFailureSession(t *testing.T) {
	f := newFixture()
	f.scanner.err = fmt.Errorf("%w: device timeout", device.ErrScanFailure)

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if !errors.Is(sess.Err, device.ErrScanFailure) {
		t.Fatalf("session error = %v, want scan failure", sess.Err)
	}

	if got := f.extractor.callCount(); got != 0 {
		t.Errorf("extractor called %d times, want 0", got)
	}
	if got := f.analyzer.callCount(); got != 0 {
		t.Errorf("analyzer called %d times, want 0", got)
	}
	if got := len(f.results.list()); got != 0 {
		t.Errorf("saved %d results, want 0", got)
	}

	msgs := f.feedback.list()
	if len(msgs) != 1 {
		t.Fatalf("enqueued %d messages, want 1", len(msgs))
	}
	if msgs[0].Priority != audio.PriorityAlert {
		t.Errorf("message priority = %d, want alert", msgs[0].Priority)
	}
	if want := language.Prompt(language.English, language.PromptError); msgs[0].Text != want {
		t.Errorf("message text = %q, want %q", msgs[0].Text, want)
	}

	compareStates(t, f.indicator.sequence(), []device.IndicatorState{device.StateProcessing, device.StateError, device.StateReady})
	// The error indicator stays lit while the alert plays out.
	compareStates(t, f.feedback.drainSnapshot(), []device.IndicatorState{device.StateProcessing, device.StateError})

	recs := f.audit.list()
	if len(recs) != 1 {
		t.Fatalf("archived %d sessions, want 1", len(recs))
	}
	if recs[0].Error == "" {
		t.Error("audit error empty, want recorded failure")
	}
	if recs[0].AnalyzerSource != "" {
		t.Errorf("audit analyzer source = %q, want empty", recs[0].AnalyzerSource)
	}
	if recs[0].ResultPath != "" {
		t.Errorf("audit result path = %q, want empty", recs[0].ResultPath)
	}
}

func TestTriggerRejectedWhileSessionActive(t *testing.T) {
	f := newFixture()
	f.scanner.started = make(chan struct{})
	f.scanner.release = make(chan struct{})

	done := make(chan *Session, 1)
	go func() {
		sess, _ := f.controller.Trigger(context.Background())
		done <- sess
	}()

	<-f.scanner.started
	if got := f.controller.State(); got != StateCapturing {
		t.Errorf("controller state = %q, want %q", got, StateCapturing)
	}
	if _, err := f.controller.Trigger(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Trigger() error = %v, want ErrSessionActive", err)
	}

	close(f.scanner.release)
	sess := <-done
	if sess.Err != nil {
		t.Fatalf("session error = %v, want nil", sess.Err)
	}

	// The rejected trigger produced no session record.
	if got := len(f.audit.list()); got != 1 {
		t.Errorf("archived %d sessions, want 1", got)
	}
	if got := len(f.results.list()); got != 1 {
		t.Errorf("saved %d results, want 1", got)
	}
}

func TestIndicatorRestoredOnEveryExit(t *testing.T) {
	processing := device.StateProcessing
	errored := device.StateError
	ready := device.StateReady

	tests := []struct {
		name   string
		mutate func(f *fixture)
		want   []device.IndicatorState
	}{
		{
			name:   "capture fails",
			mutate: func(f *fixture) { f.scanner.err = errors.New("scanner offline") },
			want:   []device.IndicatorState{processing, errored, ready},
		},
		{
			name:   "analysis fails",
			mutate: func(f *fixture) { f.analyzer.err = errors.New("inference crashed") },
			want:   []device.IndicatorState{processing, errored, ready},
		},
		{
			name:   "result save fails",
			mutate: func(f *fixture) { f.results.err = errors.New("disk full") },
			want:   []device.IndicatorState{processing, errored, ready},
		},
		{
			name:   "audit insert fails",
			mutate: func(f *fixture) { f.audit.err = errors.New("database locked") },
			want:   []device.IndicatorState{processing, ready},
		},
		{
			name:   "indicator keeps failing",
			mutate: func(f *fixture) { f.indicator.err = errors.New("gpio busy") },
			want:   []device.IndicatorState{processing, ready},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f)

			if _, err := f.controller.Trigger(context.Background()); err != nil {
				t.Fatalf("Trigger() error = %v", err)
			}

			got := f.indicator.sequence()
			compareStates(t, got, tt.want)
			if got[len(got)-1] != ready {
				t.Errorf("last indicator state = %q, want ready", got[len(got)-1])
			}
		})
	}
}

func TestExtractionFailureRoutesToUnknown(t *testing.T) {
	f := newFixture()
	f.extractor.err = errors.New("ocr crashed")

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if sess.Err != nil {
		t.Fatalf("session error = %v, want nil", sess.Err)
	}
	if sess.DocumentType != analysis.TypeUnknown {
		t.Errorf("document type = %q, want %q", sess.DocumentType, analysis.TypeUnknown)
	}
	if got := f.analyzer.lastDocType(); got != analysis.TypeUnknown {
		t.Errorf("analyzer document type = %q, want %q", got, analysis.TypeUnknown)
	}
	if got := len(f.feedback.list()); got != 4 {
		t.Errorf("enqueued %d messages, want 4", got)
	}
}

func TestDetectedTypeReachesAnalyzer(t *testing.T) {
	f := newFixture()
	f.extractor.text = "MRI of the brain, axial T2 sequence"

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if sess.DocumentType != analysis.TypeMRI {
		t.Errorf("document type = %q, want %q", sess.DocumentType, analysis.TypeMRI)
	}
	if got := f.analyzer.lastDocType(); got != analysis.TypeMRI {
		t.Errorf("analyzer document type = %q, want %q", got, analysis.TypeMRI)
	}
}

func TestSessionUsesResolvedLanguage(t *testing.T) {
	f := newFixture()
	tamil, ok := language.Lookup("tamil")
	if !ok {
		t.Fatal("tamil not registered")
	}
	f.languages.lang = tamil

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if sess.Language.Name != "tamil" {
		t.Errorf("session language = %q, want tamil", sess.Language.Name)
	}

	f.extractor.mu.Lock()
	lastLang := f.extractor.lastLang
	f.extractor.mu.Unlock()
	if lastLang != "tam" {
		t.Errorf("ocr language = %q, want tam", lastLang)
	}

	msgs := f.feedback.list()
	if len(msgs) != 4 {
		t.Fatalf("enqueued %d messages, want 4", len(msgs))
	}
	if want := language.Prompt(tamil, language.PromptScanning); msgs[0].Text != want {
		t.Errorf("message[0].Text = %q, want %q", msgs[0].Text, want)
	}
	if msgs[0].Language.Name != "tamil" {
		t.Errorf("message[0].Language = %q, want tamil", msgs[0].Language.Name)
	}
	// The dynamic narrative has no translation, so it is spoken in english.
	if msgs[3].Language.Name != "english" {
		t.Errorf("message[3].Language = %q, want english", msgs[3].Language.Name)
	}
}

func TestAnalysisUnavailableEndsInError(t *testing.T) {
	f := newFixture()
	f.analyzer.err = analysis.ErrAnalysisUnavailable

	sess, err := f.controller.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if !errors.Is(sess.Err, analysis.ErrAnalysisUnavailable) {
		t.Fatalf("session error = %v, want ErrAnalysisUnavailable", sess.Err)
	}

	if got := len(f.results.list()); got != 0 {
		t.Errorf("saved %d results, want 0", got)
	}

	msgs := f.feedback.list()
	if len(msgs) != 3 {
		t.Fatalf("enqueued %d messages, want 3", len(msgs))
	}
	if msgs[2].Priority != audio.PriorityAlert {
		t.Errorf("message[2].Priority = %d, want alert", msgs[2].Priority)
	}

	compareStates(t, f.indicator.sequence(), []device.IndicatorState{device.StateProcessing, device.StateError, device.StateReady})

	recs := f.audit.list()
	if len(recs) != 1 {
		t.Fatalf("archived %d sessions, want 1", len(recs))
	}
	if recs[0].Error == "" {
		t.Error("audit error empty, want recorded failure")
	}
}

func TestRunDispatchesTriggerEvents(t *testing.T) {
	f := newFixture()
	events := make(chan time.Time, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- f.controller.Run(ctx, events) }()

	events <- time.Now()
	waitFor(t, func() bool { return len(f.audit.list()) == 1 }, "session never archived")

	cancel()
	if err := <-runDone; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	compareStates(t, f.indicator.sequence(), []device.IndicatorState{device.StateReady, device.StateProcessing, device.StateReady})
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	f := newFixture()
	events := make(chan time.Time)
	close(events)

	if err := f.controller.Run(context.Background(), events); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}
