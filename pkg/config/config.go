// Package config loads POCHINI settings: built-in defaults, then an optional
// YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every setting of the POCHINI binaries.
type Config struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`

	LLM    LLMConfig    `yaml:"llm"`
	News   NewsConfig   `yaml:"news"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
	Qdrant QdrantConfig `yaml:"qdrant"`
	NATS   NATSConfig   `yaml:"nats"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig selects and configures the model backend.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // gemini | ollama
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
	OllamaURL    string `yaml:"ollama_url"`
	ChatModel    string `yaml:"chat_model"`
	EmbedModel   string `yaml:"embed_model"`
}

// NewsConfig selects the feed backend.
type NewsConfig struct {
	Backend    string `yaml:"backend"` // neo4j | sqlite | file
	File       string `yaml:"file"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Neo4jConfig is the document store connection.
type Neo4jConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Pass     string `yaml:"pass"`
	Database string `yaml:"database"`
}

// QdrantConfig is the recall index connection. An empty URL disables recall.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	Dims       int    `yaml:"dims"`
}

// NATSConfig is the event bus. An empty URL disables publishing.
type NATSConfig struct {
	URL         string `yaml:"url"`
	NewsSubject string `yaml:"news_subject"`
}

// RateLimitConfig bounds requests per client IP. RPS <= 0 disables the
// limiter. TrustProxy keys clients by the first X-Forwarded-For hop and
// must only be set behind a proxy that overwrites that header.
type RateLimitConfig struct {
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	TrustProxy bool    `yaml:"trust_proxy"`
}

// LogConfig controls pkg/logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:       "8080",
		CORSOrigin: "*",
		LLM: LLMConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.0-flash",
			OllamaURL:   "http://localhost:11434",
			ChatModel:   "llama3.1",
			EmbedModel:  "nomic-embed-text",
		},
		News: NewsConfig{
			Backend:    "file",
			File:       "data/news.json",
			SQLitePath: "data/news.db",
		},
		Neo4j:     Neo4jConfig{User: "neo4j"},
		Qdrant:    QdrantConfig{Collection: "pochini_news", Dims: 768},
		NATS:      NATSConfig{NewsSubject: "pochini.news.created"},
		RateLimit: RateLimitConfig{RPS: 2, Burst: 10},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads path (when non-empty and present) over the defaults and then
// applies environment overrides. CONFIG_FILE replaces an empty path.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("CORS_ORIGIN", &c.CORSOrigin)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("GEMINI_API_KEY", &c.LLM.GeminiAPIKey)
	str("GEMINI_MODEL", &c.LLM.GeminiModel)
	str("OLLAMA_URL", &c.LLM.OllamaURL)
	str("CHAT_MODEL", &c.LLM.ChatModel)
	str("EMBED_MODEL", &c.LLM.EmbedModel)
	str("NEWS_BACKEND", &c.News.Backend)
	str("NEWS_FILE", &c.News.File)
	str("SQLITE_PATH", &c.News.SQLitePath)
	str("NEO4J_URL", &c.Neo4j.URL)
	str("NEO4J_USER", &c.Neo4j.User)
	str("NEO4J_PASS", &c.Neo4j.Pass)
	str("NEO4J_DATABASE", &c.Neo4j.Database)
	str("QDRANT_URL", &c.Qdrant.URL)
	str("QDRANT_COLLECTION", &c.Qdrant.Collection)
	str("NATS_URL", &c.NATS.URL)
	str("NEWS_SUBJECT", &c.NATS.NewsSubject)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	if v := getenv("QDRANT_DIMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: QDRANT_DIMS: %w", err)
		}
		c.Qdrant.Dims = n
	}
	if v := getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = f
	}
	if v := getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimit.Burst = n
	}
	if v := getenv("TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: TRUST_PROXY: %w", err)
		}
		c.RateLimit.TrustProxy = b
	}
	return nil
}

// Validate rejects unknown backends and impossible limits.
func (c *Config) Validate() error {
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	c.News.Backend = strings.ToLower(c.News.Backend)
	switch c.LLM.Provider {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	switch c.News.Backend {
	case "neo4j", "sqlite", "file":
	default:
		return fmt.Errorf("config: unknown news backend %q", c.News.Backend)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("config: rate limit burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	return nil
}

// DocumentStoreConfigured reports whether the Neo4j feed store has the
// connection settings it needs.
func (c *Config) DocumentStoreConfigured() bool {
	return c.Neo4j.URL != "" && c.Neo4j.User != ""
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
