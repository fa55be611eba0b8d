package llm

import (
	"context"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIClient talks to api.openai.com or any API that mirrors it.
type OpenAIClient struct {
	model  string
	client *openai.Client
}

func NewOpenAIClient(apiKey, baseURL, model string, httpClient *http.Client) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	conf := openai.DefaultConfig(apiKey)
	conf.BaseURL = baseURL
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}
	return &OpenAIClient{model: model, client: openai.NewClientWithConfig(conf)}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	return completeWithOpenAI(ctx, c.client, c.model, req, "OpenAI")
}
