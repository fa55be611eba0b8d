package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port               string
	LogLevel           string
	DataDir            string
	RulesStore         string // "file" or "sqlite"
	DatabasePath       string
	MaxUploadSizeBytes int64
	AllowedOrigins     []string

	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int
	BatchResultTTL     time.Duration

	Model ModelConfig
}

// ModelConfig holds every supported chat-completion backend. The first fully
// configured one wins, in field order.
type ModelConfig struct {
	// Azure OpenAI: endpoint + deployment + api-version, authenticated with an
	// api-key or, without one, an Entra ID client credential.
	AzureEndpoint     string
	AzureAPIKey       string
	AzureDeployment   string
	AzureAPIVersion   string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// Azure AI Foundry: a full chat-completions URL.
	FoundryURL    string
	FoundryAPIKey string
	FoundryModel  string

	// Any OpenAI-compatible API.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	MaxTokens    int
	Timeout      time.Duration
	RateLimitRPS float64
}

const (
	RulesStoreFile   = "file"
	RulesStoreSQLite = "sqlite"
)

var Cfg *AppConfig

// LoadConfig reads .env (if any) and the environment into Cfg and returns it.
func LoadConfig() *AppConfig {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	dataDir := getEnv("DATA_DIR", "./data")

	Cfg = &AppConfig{
		Port:               getEnv("PORT", "3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DataDir:            dataDir,
		RulesStore:         strings.ToLower(getEnv("RULES_STORE", RulesStoreFile)),
		DatabasePath:       getEnv("DATABASE_PATH", filepath.Join(dataDir, "commission.db")),
		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 5*1024*1024),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		HTTPRateLimitRPS:   getEnvAsFloat("HTTP_RATE_LIMIT_RPS", 10),
		HTTPRateLimitBurst: getEnvAsInt("HTTP_RATE_LIMIT_BURST", 30),
		BatchResultTTL:     getEnvAsDuration("BATCH_RESULT_TTL", 15*time.Minute),

		Model: ModelConfig{
			AzureEndpoint:     strings.TrimRight(getEnv("AZURE_OPENAI_ENDPOINT", ""), "/"),
			AzureAPIKey:       getEnv("AZURE_OPENAI_API_KEY", ""),
			AzureDeployment:   getEnv("AZURE_OPENAI_DEPLOYMENT", ""),
			AzureAPIVersion:   getEnv("AZURE_OPENAI_API_VERSION", "2024-10-21"),
			AzureTenantID:     getEnv("AZURE_TENANT_ID", ""),
			AzureClientID:     getEnv("AZURE_CLIENT_ID", ""),
			AzureClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),

			FoundryURL:    getEnv("AZURE_AI_FOUNDRY_CHAT_COMPLETIONS_URL", ""),
			FoundryAPIKey: getEnv("AZURE_AI_FOUNDRY_API_KEY", ""),
			FoundryModel:  getEnv("AZURE_AI_FOUNDRY_MODEL", ""),

			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

			MaxTokens:    getEnvAsInt("MODEL_MAX_TOKENS", 700),
			Timeout:      getEnvAsDuration("MODEL_TIMEOUT", 120*time.Second),
			RateLimitRPS: getEnvAsFloat("MODEL_RATE_LIMIT_RPS", 0),
		},
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DataDir=%s, RulesStore=%s, ModelBackend=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DataDir, Cfg.RulesStore, Cfg.Model.Backend())
	return Cfg
}

// Validate reports settings the server cannot run with.
func (c *AppConfig) Validate() error {
	if c.RulesStore != RulesStoreFile && c.RulesStore != RulesStoreSQLite {
		return fmt.Errorf("RULES_STORE must be %q or %q, got %q", RulesStoreFile, RulesStoreSQLite, c.RulesStore)
	}
	if c.MaxUploadSizeBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE_BYTES must be positive, got %d", c.MaxUploadSizeBytes)
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be positive, got %d", c.Model.MaxTokens)
	}
	return nil
}

func (m ModelConfig) azureKeyReady() bool {
	return m.AzureEndpoint != "" && m.AzureDeployment != "" && m.AzureAPIKey != ""
}

func (m ModelConfig) azureADReady() bool {
	return m.AzureEndpoint != "" && m.AzureDeployment != "" &&
		m.AzureTenantID != "" && m.AzureClientID != "" && m.AzureClientSecret != ""
}

// Backend names the backend that will be used: "azure-openai", "azure-openai-entra",
// "azure-foundry", "openai" or "" when none is configured.
func (m ModelConfig) Backend() string {
	switch {
	case m.azureKeyReady():
		return "azure-openai"
	case m.azureADReady():
		return "azure-openai-entra"
	case m.FoundryURL != "" && m.FoundryAPIKey != "":
		return "azure-foundry"
	case m.OpenAIAPIKey != "":
		return "openai"
	default:
		return ""
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid number value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
