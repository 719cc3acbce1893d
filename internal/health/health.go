package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"yuzu/souschef/internal/config"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all health checks and returns combined status
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkModel(ctx, cfg),
		checkElevenLabs(ctx, cfg),
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkModel(ctx context.Context, cfg config.Config) CheckResult {
	if cfg.Model.APIKey == "" {
		return CheckResult{Name: "model", Error: "LLM_API_KEY not set"}
	}
	url := strings.TrimRight(cfg.Model.BaseURL, "/") + "/v1/models/" + cfg.Model.Model
	return probe(ctx, "model", url, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+cfg.Model.APIKey)
	})
}

// checkElevenLabs looks up the configured voice, which also proves the key works.
func checkElevenLabs(ctx context.Context, cfg config.Config) CheckResult {
	if cfg.Eleven.APIKey == "" {
		return CheckResult{Name: "elevenlabs", Error: "ELEVENLABS_API_KEY not set"}
	}
	if cfg.Eleven.VoiceID == "" {
		return CheckResult{Name: "elevenlabs", Error: "ELEVENLABS_VOICE_ID not set"}
	}
	url := fmt.Sprintf("%s/v1/voices/%s", strings.TrimRight(cfg.Eleven.BaseURL, "/"), cfg.Eleven.VoiceID)
	res := probe(ctx, "elevenlabs", url, func(req *http.Request) {
		req.Header.Set("xi-api-key", cfg.Eleven.APIKey)
	})
	if strings.HasPrefix(res.Error, "not found") {
		res.Error = fmt.Sprintf("voice ID %q not found", cfg.Eleven.VoiceID)
	}
	return res
}

func probe(ctx context.Context, name, url string, decorate func(*http.Request)) CheckResult {
	start := time.Now()
	result := CheckResult{Name: name}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	decorate(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("invalid API key (401): %s", string(body))
	case resp.StatusCode == http.StatusNotFound:
		result.Error = "not found (404)"
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
	default:
		io.Copy(io.Discard, resp.Body)
		result.OK = true
	}
	return result
}
