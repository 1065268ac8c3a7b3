package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"prediction-backend/internal/llm"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const systemPrompt = `You are a forecasting assistant for prediction markets.
Given a market question, its description, and optional research notes, estimate
the probability that the market resolves YES. Respond with a JSON object:
{"probability": <0.0-1.0>, "confidence": <0.0-1.0>, "reasoning": "<short explanation>"}`

// Generate asks the model for a probability estimate on the market question.
func (c *Client) Generate(ctx context.Context, input llm.GenerateInput) (llm.GenerateOutput, error) {
	if strings.TrimSpace(input.ModelID) == "" {
		return llm.GenerateOutput{}, fmt.Errorf("model id is required")
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Market question: %s\n", input.Question)
	if input.Description != "" {
		fmt.Fprintf(&user, "Description: %s\n", input.Description)
	}
	if input.ResearchContext != "" {
		fmt.Fprintf(&user, "\nResearch notes:\n%s\n", input.ResearchContext)
	}

	temperature := float32(0.2)
	reqBody := chatRequest{
		Model: input.ModelID,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user.String()},
		},
		Temperature:    &temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return llm.GenerateOutput{}, fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return llm.GenerateOutput{}, fmt.Errorf("openai error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return llm.GenerateOutput{}, fmt.Errorf("openai response has no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	var out llm.GenerateOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return llm.GenerateOutput{}, fmt.Errorf("model output invalid: %w", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return llm.GenerateOutput{}, fmt.Errorf("model output probability out of range: %f", out.Probability)
	}
	out.Raw = json.RawMessage(content)
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

var _ llm.Client = (*Client)(nil)
