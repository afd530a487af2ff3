package audio

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const googleTTSURL = "https://translate.google.com/translate_tts"

// GoogleTTS synthesizes speech through the Google Translate TTS endpoint
// and caches the MP3s on disk, keyed by language and text.
type GoogleTTS struct {
	cacheDir   string
	baseURL    string
	httpClient *http.Client
}

func NewGoogleTTS(cacheDir string) (*GoogleTTS, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tts cache directory: %w", err)
	}
	return &GoogleTTS{
		cacheDir: cacheDir,
		baseURL:  googleTTSURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Synthesize returns the path of an MP3 speaking text in langCode. Each
// language/text pair is fetched once and served from the cache afterwards.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, langCode string) (string, error) {
	sum := sha1.Sum([]byte(langCode + "|" + text))
	path := filepath.Join(g.cacheDir, fmt.Sprintf("tts_%s_%x.mp3", langCode, sum))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", langCode)
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach tts endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tts endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tts response: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("tts endpoint returned empty audio")
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write tts cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize tts cache file: %w", err)
	}
	return path, nil
}
