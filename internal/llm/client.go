package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"yuzu/souschef/internal/tools"
)

var ErrNotConfigured = errors.New("model endpoint not configured")

// Request is one model turn: a user turn (text and/or image) and/or the
// outputs of the previous turn's function calls.
type Request struct {
	Instructions string
	PreviousID   string
	Text         string
	ImageJPEG    []byte
	Results      []ToolOutput
	Tools        []tools.Definition
}

// ToolOutput answers one function call by id.
type ToolOutput struct {
	CallID string
	Output string
}

// FunctionCall is a tool invocation requested by the model.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// Response is the parsed model turn.
type Response struct {
	ID    string
	Text  string
	Calls []FunctionCall
}

// Client talks to a Responses-style endpoint (POST {base}/v1/responses).
type Client struct {
	httpc       *http.Client
	baseURL     string
	apiKey      string
	model       string
	visionModel string
}

func NewClient(baseURL, apiKey, model, visionModel string, timeout time.Duration) *Client {
	if visionModel == "" {
		visionModel = model
	}
	return &Client{
		httpc:       &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
	}
}

type inputContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type inputItem struct {
	Type    string         `json:"type,omitempty"`
	Role    string         `json:"role,omitempty"`
	Content []inputContent `json:"content,omitempty"`
	CallID  string         `json:"call_id,omitempty"`
	Output  string         `json:"output,omitempty"`
}

type responsesRequest struct {
	Model              string             `json:"model"`
	Instructions       string             `json:"instructions,omitempty"`
	PreviousResponseID string             `json:"previous_response_id,omitempty"`
	Input              []inputItem        `json:"input"`
	Tools              []tools.Definition `json:"tools,omitempty"`
	Store              bool               `json:"store"`
}

type outputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outputItem struct {
	Type      string          `json:"type"`
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	Content   []outputContent `json:"content"`
}

type responsesResponse struct {
	ID     string       `json:"id"`
	Output []outputItem `json:"output"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Respond runs one tool-calling turn.
func (c *Client) Respond(ctx context.Context, req Request) (Response, error) {
	body := responsesRequest{
		Model:              c.model,
		Instructions:       req.Instructions,
		PreviousResponseID: req.PreviousID,
		Input:              buildInput(req),
		Tools:              req.Tools,
		Store:              true,
	}
	raw, err := c.post(ctx, "respond", body)
	if err != nil {
		return Response{}, err
	}
	return parseResponse(raw)
}

// Classify sends one frame with a text prompt and returns the model's raw text.
func (c *Client) Classify(ctx context.Context, prompt string, jpeg []byte) (string, error) {
	body := responsesRequest{
		Model: c.visionModel,
		Input: []inputItem{userItem(prompt, jpeg)},
	}
	raw, err := c.post(ctx, "classify", body)
	if err != nil {
		return "", err
	}
	resp, err := parseResponse(raw)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) post(ctx context.Context, kind string, body responsesRequest) ([]byte, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/responses", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		metricRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("llm %s: %w", kind, err)
	}
	defer resp.Body.Close()
	metricLatencyMS.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metricRequests.WithLabelValues(kind, "http").Inc()
		return nil, fmt.Errorf("llm %s: status=%d body=%s", kind, resp.StatusCode, string(b))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		metricRequests.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	metricRequests.WithLabelValues(kind, "ok").Inc()
	return b, nil
}

func buildInput(req Request) []inputItem {
	items := make([]inputItem, 0, len(req.Results)+1)
	for _, r := range req.Results {
		items = append(items, inputItem{Type: "function_call_output", CallID: r.CallID, Output: r.Output})
	}
	if req.Text != "" || len(req.ImageJPEG) > 0 {
		items = append(items, userItem(req.Text, req.ImageJPEG))
	}
	return items
}

func userItem(text string, jpeg []byte) inputItem {
	item := inputItem{Role: "user"}
	if text != "" {
		item.Content = append(item.Content, inputContent{Type: "input_text", Text: text})
	}
	if len(jpeg) > 0 {
		item.Content = append(item.Content, inputContent{
			Type:     "input_image",
			ImageURL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		})
	}
	return item
}

func parseResponse(raw []byte) (Response, error) {
	var rr responsesResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Response{}, fmt.Errorf("llm decode: %w", err)
	}
	if rr.Error != nil && rr.Error.Message != "" {
		return Response{}, fmt.Errorf("llm: %s", rr.Error.Message)
	}
	out := Response{ID: rr.ID}
	var text strings.Builder
	for _, item := range rr.Output {
		switch item.Type {
		case "function_call":
			out.Calls = append(out.Calls, FunctionCall{CallID: item.CallID, Name: item.Name, Arguments: item.Arguments})
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" && c.Text != "" {
					if text.Len() > 0 {
						text.WriteString("\n")
					}
					text.WriteString(c.Text)
				}
			}
		}
	}
	out.Text = strings.TrimSpace(text.String())
	return out, nil
}
