// Package language resolves the kiosk's active language and holds the
// localized prompt catalog.
package language

import (
	"github.com/rs/zerolog/log"
)

// Language binds a spoken-language name to the codes the TTS backend and
// the OCR engine expect for it.
type Language struct {
	Name    string
	TTSCode string
	OCRCode string
}

// English is the ultimate fallback when nothing else resolves.
var English = Language{Name: "english", TTSCode: "en", OCRCode: "eng"}

var languages = map[string]Language{
	"english":   English,
	"tamil":     {Name: "tamil", TTSCode: "ta", OCRCode: "tam"},
	"malayalam": {Name: "malayalam", TTSCode: "ml", OCRCode: "mal"},
}

// Lookup returns the Language registered under name.
func Lookup(name string) (Language, bool) {
	lang, ok := languages[name]
	return lang, ok
}

// Prompt keys for the pre-synthesized system messages.
const (
	PromptWelcome   = "welcome"
	PromptScanning  = "scanning"
	PromptAnalyzing = "analyzing"
	PromptError     = "error"
	PromptComplete  = "complete"
)

// PromptKeys lists every prompt in playback-relevant order.
var PromptKeys = []string{PromptWelcome, PromptScanning, PromptAnalyzing, PromptError, PromptComplete}

var prompts = map[string]map[string]string{
	"english": {
		PromptWelcome:   "Welcome to the Medical Imaging Analysis System. Please place your document on the scanner and press the button.",
		PromptScanning:  "Scanning your document. Please wait.",
		PromptAnalyzing: "Document scanned. Now analyzing the results.",
		PromptError:     "An error occurred. Please try again.",
		PromptComplete:  "Analysis complete. I will now read the results.",
	},
	"tamil": {
		PromptWelcome:   "மருத்துவ பட பகுப்பாய்வு அமைப்பிற்கு வரவேற்கிறோம். உங்கள் ஆவணத்தை ஸ்கேனரில் வைத்து பொத்தானை அழுத்தவும்.",
		PromptScanning:  "உங்கள் ஆவணம் ஸ்கேன் செய்யப்படுகிறது. காத்திருக்கவும்.",
		PromptAnalyzing: "ஆவணம் ஸ்கேன் செய்யப்பட்டது. இப்போது முடிவுகள் பகுப்பாய்வு செய்யப்படுகின்றன.",
		PromptError:     "பிழை ஏற்பட்டது. மீண்டும் முயற்சிக்கவும்.",
		PromptComplete:  "பகுப்பாய்வு முடிந்தது. இப்போது முடிவுகளை வாசிக்கிறேன்.",
	},
	"malayalam": {
		PromptWelcome:   "മെഡിക്കൽ ഇമേജ് വിശകലന സംവിധാനത്തിലേക്ക് സ്വാഗതം. നിങ്ങളുടെ രേഖ സ്കാനറിൽ വെച്ച് ബട്ടൺ അമർത്തുക.",
		PromptScanning:  "നിങ്ങളുടെ രേഖ സ്കാൻ ചെയ്യുന്നു. കാത്തിരിക്കുക.",
		PromptAnalyzing: "രേഖ സ്കാൻ ചെയ്തു. ഇപ്പോൾ ഫലങ്ങൾ വിശകലനം ചെയ്യുന്നു.",
		PromptError:     "ഒരു പിശക് സംഭവിച്ചു. വീണ്ടും ശ്രമിക്കുക.",
		PromptComplete:  "വിശകലനം പൂർത്തിയായി. ഇപ്പോൾ ഫലങ്ങൾ വായിക്കാം.",
	},
}

// Prompt returns the localized text for key in lang, falling back to the
// english text when the language has no catalog entry.
func Prompt(lang Language, key string) string {
	if catalog, ok := prompts[lang.Name]; ok {
		if text, ok := catalog[key]; ok {
			return text
		}
	}
	return prompts[English.Name][key]
}

// Source reports which language the user has selected. Implementations
// read a hardware selector switch or return a fixed configured value.
type Source interface {
	ActiveLanguage() (string, error)
}

// StaticSource always reports the same language name.
type StaticSource string

func (s StaticSource) ActiveLanguage() (string, error) { return string(s), nil }

// Selector resolves the active language once per session. Resolution never
// fails: an absent or invalid selection falls back to the configured
// default, and an unknown default falls back to english.
type Selector struct {
	source      Source
	supported   map[string]bool
	defaultLang Language
}

// NewSelector builds a Selector over source. Names in supported that have
// no registered Language are ignored with a warning.
func NewSelector(source Source, supported []string, defaultName string) *Selector {
	s := &Selector{
		source:      source,
		supported:   make(map[string]bool, len(supported)),
		defaultLang: English,
	}
	for _, name := range supported {
		if _, ok := Lookup(name); !ok {
			log.Warn().Str("language", name).Msg("unknown language in supported_languages, ignoring")
			continue
		}
		s.supported[name] = true
	}
	if lang, ok := Lookup(defaultName); ok && s.supported[defaultName] {
		s.defaultLang = lang
	}
	return s
}

// Resolve returns the session language for the current trigger.
func (s *Selector) Resolve() Language {
	name, err := s.source.ActiveLanguage()
	if err != nil {
		log.Warn().Err(err).Str("fallback", s.defaultLang.Name).Msg("language selector read failed")
		return s.defaultLang
	}
	if !s.supported[name] {
		if name != "" {
			log.Debug().Str("language", name).Str("fallback", s.defaultLang.Name).Msg("unsupported language selected")
		}
		return s.defaultLang
	}
	lang, ok := Lookup(name)
	if !ok {
		return s.defaultLang
	}
	return lang
}
