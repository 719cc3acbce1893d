package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNotConfigured = errors.New("missing ELEVENLABS_API_KEY")
	ErrEmptyText     = errors.New("empty text")
	ErrEmptyAudio    = errors.New("empty audio")
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Client synthesizes short utterances with the ElevenLabs REST API.
type Client struct {
	httpc   *http.Client
	baseURL string
	apiKey  string
	voiceID string
	modelID string
	mime    string
}

func NewClient(baseURL, apiKey, voiceID, modelID string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpc:   &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: modelID,
		mime:    "audio/mpeg",
	}
}

// Synthesize returns the encoded audio for text and its MIME type.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, "", ErrEmptyText
	}
	if c.apiKey == "" || c.voiceID == "" {
		ttsSynthesisTotal.WithLabelValues("config").Inc()
		return nil, "", ErrNotConfigured
	}
	start := time.Now()
	defer func() { ttsTotalDurationMS.Observe(float64(time.Since(start).Milliseconds())) }()

	body := map[string]any{"text": text}
	if c.modelID != "" {
		body["model_id"] = c.modelID
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, "", err
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("accept", c.mime)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("tts: %w", err)
	}
	defer resp.Body.Close()
	ttsElevenLabsLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		ttsSynthesisTotal.WithLabelValues("http").Inc()
		return nil, "", fmt.Errorf("tts: status=%d body=%s", resp.StatusCode, string(b))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		ttsSynthesisTotal.WithLabelValues("error").Inc()
		return nil, "", err
	}
	if len(audio) == 0 {
		ttsSynthesisTotal.WithLabelValues("empty").Inc()
		return nil, "", ErrEmptyAudio
	}
	mime := c.mime
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "audio/") {
		mime = ct
	}
	ttsSynthesisTotal.WithLabelValues("ok").Inc()
	ttsAudioBytes.Observe(float64(len(audio)))
	return audio, mime, nil
}
