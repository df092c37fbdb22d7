package config

import (
	"os"
	"strings"
)

// Provider names accepted in LLMConfig.Provider.
const (
	ProviderVertex = "vertex"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Backend names accepted in StoreConfig.Backend.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

type Config struct {
	LLM   LLMConfig   `mapstructure:"llm"`
	Store StoreConfig `mapstructure:"store"`
	Study StudyConfig `mapstructure:"study"`
	Log   LogConfig   `mapstructure:"log"`
}

// LLMConfig selects the hosted model. The credential itself is never stored
// here: it is looked up in the environment every time Credential is called.
type LLMConfig struct {
	Provider      string `mapstructure:"provider"`
	APIKeyEnv     string `mapstructure:"api_key_env"`
	BaseURL       string `mapstructure:"base_url"`
	FastModel     string `mapstructure:"fast_model"`
	VisionModel   string `mapstructure:"vision_model"`
	VertexProject string `mapstructure:"vertex_project_env"`
	VertexRegion  string `mapstructure:"vertex_region"`
}

// Credential returns the API key (or, for Vertex, the project id) currently set
// in the environment, or "" when it is missing. A value that still contains an
// unresolved "undefined" placeholder counts as missing.
func (c LLMConfig) Credential() string {
	envKey := c.APIKeyEnv
	if c.Provider == ProviderVertex {
		envKey = c.VertexProject
	}
	if envKey == "" {
		return ""
	}
	value := strings.TrimSpace(os.Getenv(envKey))
	if strings.Contains(value, "undefined") {
		return ""
	}
	return value
}

type StoreConfig struct {
	Backend             string `mapstructure:"backend"`
	DataDir             string `mapstructure:"data_dir"`
	RedisAddr           string `mapstructure:"redis_addr"`
	RedisPassword       string `mapstructure:"redis_password"`
	RedisDB             int    `mapstructure:"redis_db"`
	FirestoreProject    string `mapstructure:"firestore_project"`
	FirestoreDatabase   string `mapstructure:"firestore_database"`
	FirestoreCollection string `mapstructure:"firestore_collection"`
}

type StudyConfig struct {
	Bucket        string `mapstructure:"bucket"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
	DefaultPages  int    `mapstructure:"default_pages"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
