package audio

import (
	"context"
	"fmt"

	"github.com/arkumar/medscan/internal/language"
)

// PrebuildPrompts synthesizes every system prompt in every language in
// langs so sessions never wait on the network for a fixed message. Safe to
// rerun; cached prompts cost one stat each.
func PrebuildPrompts(ctx context.Context, synth Synthesizer, langs []language.Language) error {
	for _, lang := range langs {
		for _, key := range language.PromptKeys {
			text := language.Prompt(lang, key)
			if _, err := synth.Synthesize(ctx, text, lang.TTSCode); err != nil {
				return fmt.Errorf("failed to pre-synthesize %s prompt in %s: %w", key, lang.Name, err)
			}
		}
	}
	return nil
}
