package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// AzureConfig addresses one Azure OpenAI deployment. An empty APIKey switches
// to bearer-token auth supplied by the HTTP client (see EntraHTTPClient).
type AzureConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// AzureOpenAIClient calls {endpoint}/openai/deployments/{deployment}/chat/completions.
type AzureOpenAIClient struct {
	deployment string
	client     *openai.Client
	name       string
}

func NewAzureOpenAIClient(cfg AzureConfig, httpClient *http.Client) *AzureOpenAIClient {
	conf := openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
	if cfg.APIVersion != "" {
		conf.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	conf.AzureModelMapperFunc = func(string) string { return deployment }

	name := "azure-openai"
	if cfg.APIKey == "" {
		conf.APIType = openai.APITypeAzureAD
		name = "azure-openai-entra"
	}
	if httpClient != nil {
		conf.HTTPClient = httpClient
	}

	return &AzureOpenAIClient{
		deployment: deployment,
		client:     openai.NewClientWithConfig(conf),
		name:       name,
	}
}

// EntraHTTPClient returns a client that attaches a cognitive-services bearer
// token obtained with the client-credentials flow.
func EntraHTTPClient(ctx context.Context, tenantID, clientID, clientSecret string, timeout time.Duration) *http.Client {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		Scopes:       []string{cognitiveServicesScope},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	client := cc.Client(ctx)
	client.Timeout = timeout
	return client
}

func (c *AzureOpenAIClient) Name() string { return c.name }

func (c *AzureOpenAIClient) Complete(ctx context.Context, req ChatRequest) (string, error) {
	return completeWithOpenAI(ctx, c.client, c.deployment, req, "Azure OpenAI")
}

// completeWithOpenAI runs one chat completion through a go-openai client.
func completeWithOpenAI(ctx context.Context, client *openai.Client, model string, req ChatRequest, provider string) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		// go-openai drops a zero temperature (omitempty).
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", transportError(provider, apiErr.HTTPStatusCode, apiErr.Message, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", transportError(provider, reqErr.HTTPStatusCode, reqErr.Error(), err)
		}
		return "", transportError(provider, 0, err.Error(), err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
