// Package llm talks to chat-completion backends.
package llm

//go:generate mockgen -source=client.go -destination=mocks/mock_chat_model.go -package=mock_llm

import (
	"context"
	"fmt"
	"net/http"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/username/commissioncalc/backend/src/apperrors"
	"github.com/username/commissioncalc/backend/src/config"
	"github.com/username/commissioncalc/backend/src/logger"
)

// ChatRequest is one system+user exchange.
type ChatRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// ChatModel returns the assistant text for a request.
type ChatModel interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
	Name() string
}

// NotConfiguredMessage lists the variables that select a backend.
const NotConfiguredMessage = "Azure model credentials not configured. Set AZURE_OPENAI_ENDPOINT + AZURE_OPENAI_API_KEY + AZURE_OPENAI_DEPLOYMENT. " +
	"(Optional fallback: AZURE_AI_FOUNDRY_CHAT_COMPLETIONS_URL + AZURE_AI_FOUNDRY_API_KEY, or OPENAI_API_KEY.)"

// maxErrorBodyLen bounds how much of a provider error body is echoed back.
const maxErrorBodyLen = 800

// Unconfigured fails every call.
type Unconfigured struct{}

func (Unconfigured) Complete(ctx context.Context, req ChatRequest) (string, error) {
	return "", apperrors.New(apperrors.KindModelNotConfigured, NotConfiguredMessage)
}

func (Unconfigured) Name() string { return "unconfigured" }

// Configured reports whether m can reach a backend.
func Configured(m ChatModel) bool {
	if m == nil {
		return false
	}
	switch m.(type) {
	case Unconfigured, *Unconfigured:
		return false
	}
	if rl, ok := m.(*RateLimited); ok {
		return Configured(rl.next)
	}
	return true
}

// NewFromConfig picks the first configured backend: Azure OpenAI (api-key, then
// Entra ID), Azure AI Foundry, then an OpenAI-compatible API.
func NewFromConfig(ctx context.Context, cfg config.ModelConfig) ChatModel {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var model ChatModel
	switch cfg.Backend() {
	case "azure-openai":
		model = NewAzureOpenAIClient(AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			APIKey:     cfg.AzureAPIKey,
			Deployment: cfg.AzureDeployment,
			APIVersion: cfg.AzureAPIVersion,
		}, httpClient)
	case "azure-openai-entra":
		model = NewAzureOpenAIClient(AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			Deployment: cfg.AzureDeployment,
			APIVersion: cfg.AzureAPIVersion,
		}, EntraHTTPClient(ctx, cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret, cfg.Timeout))
	case "azure-foundry":
		model = NewFoundryClient(cfg.FoundryURL, cfg.FoundryAPIKey, cfg.FoundryModel, httpClient)
	case "openai":
		model = NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, httpClient)
	default:
		logger.L.Warn("No chat model backend configured; commission calculations will fail until one is set")
		return Unconfigured{}
	}

	logger.L.Info("Chat model backend selected", "backend", model.Name())
	if cfg.RateLimitRPS > 0 {
		return NewRateLimited(model, rate.Limit(cfg.RateLimitRPS), 1)
	}
	return model
}

// RateLimited delays calls to the wrapped model to a fixed rate.
type RateLimited struct {
	next    ChatModel
	limiter *rate.Limiter
}

func NewRateLimited(next ChatModel, limit rate.Limit, burst int) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for model rate limiter: %w", err)
	}
	return r.next.Complete(ctx, req)
}

func (r *RateLimited) Name() string { return r.next.Name() }

func truncateBody(body string) string {
	if len(body) <= maxErrorBodyLen {
		return body
	}
	cut := maxErrorBodyLen
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

func transportError(provider string, status int, body string, cause error) error {
	if status > 0 {
		return apperrors.Wrap(apperrors.KindModelTransport, cause,
			fmt.Sprintf("%s request failed (%d): %s", provider, status, truncateBody(body)))
	}
	return apperrors.Wrap(apperrors.KindModelTransport, cause,
		fmt.Sprintf("%s request failed: %s", provider, truncateBody(body)))
}
