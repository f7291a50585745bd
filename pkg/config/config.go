package config

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	CompletionsAPIURL string
	CompletionsAPIKey string
	CompletionsModel  string
	EmbeddingsAPIURL  string
	EmbeddingsAPIKey  string
	EmbeddingsModel   string
	DBPath            string
	WeaviateHost      string
	WeaviateScheme    string
	WebSearchAPIURL   string
	WebSearchAPIKey   string
	NatsURL           string
	EmbeddedNats      bool
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadConfig reads the environment (after loading a .env file when present)
// and applies defaults. Missing web-search credentials are not an error; the
// web_search action reports the missing configuration instead.
func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		CompletionsAPIURL: getEnv("COMPLETIONS_API_URL", "https://api.openai.com/v1", printEnv),
		CompletionsAPIKey: getEnv("COMPLETIONS_API_KEY", "", printEnv),
		CompletionsModel:  getEnv("COMPLETIONS_MODEL", "gpt-4.1-mini", printEnv),
		EmbeddingsAPIURL:  getEnv("EMBEDDINGS_API_URL", "https://api.openai.com/v1", printEnv),
		EmbeddingsAPIKey:  getEnv("EMBEDDINGS_API_KEY", "", printEnv),
		EmbeddingsModel:   getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small", printEnv),
		DBPath:            getEnv("DB_PATH", "./output/sqlite/hindsight.db", printEnv),
		WeaviateHost:      getEnv("WEAVIATE_HOST", "localhost:8080", printEnv),
		WeaviateScheme:    getEnv("WEAVIATE_SCHEME", "http", printEnv),
		WebSearchAPIURL:   getEnv("WEB_SEARCH_API_URL", "https://api.tavily.com/search", printEnv),
		WebSearchAPIKey:   getEnv("WEB_SEARCH_API_KEY", "", printEnv),
		NatsURL:           getEnv("NATS_URL", "nats://127.0.0.1:4222", printEnv),
		EmbeddedNats:      getEnv("EMBEDDED_NATS", "true", printEnv) == "true",
	}
	if conf.EmbeddingsAPIKey == "" {
		conf.EmbeddingsAPIKey = conf.CompletionsAPIKey
	}

	return conf, nil
}
