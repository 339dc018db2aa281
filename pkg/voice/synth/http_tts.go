package synth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AzureSynthesizer calls the Azure Cognitive Services REST endpoint and
// requests raw 16 kHz mono PCM. The REST surface does not stream word
// boundary events, so Words is always empty and callers fall back to
// estimated reveal timing.
type AzureSynthesizer struct {
	key    string
	region string
	lang   string
	client *http.Client
}

func NewAzureSynthesizer(key, region, lang string) *AzureSynthesizer {
	if lang == "" {
		lang = "en-US"
	}
	return &AzureSynthesizer{
		key:    key,
		region: region,
		lang:   lang,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *AzureSynthesizer) Synthesize(ctx context.Context, text, voice string) (*Synthesis, error) {
	ssml := fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		a.lang, voice, escapeSSML(text),
	)

	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", a.region)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "raw-16khz-16bit-mono-pcm")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, string(body))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts read: %w", err)
	}
	return &Synthesis{PCM: pcm, SampleRate: 16000}, nil
}

func escapeSSML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
