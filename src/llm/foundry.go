package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// FoundryClient posts to a full Azure AI Foundry chat-completions URL.
type FoundryClient struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

type chatCompletionRequest struct {
	Model       string              `json:"model,omitempty"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float32             `json:"temperature"`
}

type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewFoundryClient(url, apiKey, model string, httpClient *http.Client) *FoundryClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &FoundryClient{client: httpClient, url: url, apiKey: apiKey, model: model}
}

func (c *FoundryClient) Name() string { return "azure-foundry" }

// Complete returns the first choice's content. A 2xx body that is not JSON, or
// JSON without a choice, is returned as-is.
func (c *FoundryClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", transportError("Azure AI Foundry", 0, err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError("Azure AI Foundry", resp.StatusCode, err.Error(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", transportError("Azure AI Foundry", resp.StatusCode, string(body), nil)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body), nil
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return string(body), nil
	}
	return *parsed.Choices[0].Message.Content, nil
}
