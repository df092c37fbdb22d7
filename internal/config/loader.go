package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.api_key_env", "GROQ_API_KEY")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.fast_model", "")
	v.SetDefault("llm.vision_model", "")
	v.SetDefault("llm.vertex_project_env", "PROJECT_ID")
	v.SetDefault("llm.vertex_region", "us-central1")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.data_dir", filepath.Join(os.TempDir(), "imigra"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.firestore_project", "")
	v.SetDefault("store.firestore_database", "")
	v.SetDefault("store.firestore_collection", "imigra_sessions")

	v.SetDefault("study.bucket", "")
	v.SetDefault("study.archive_bucket", "")
	v.SetDefault("study.default_pages", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// defaultModels fills endpoint and model names that depend on the chosen provider.
func defaultModels(cfg *LLMConfig) {
	if cfg.Provider == ProviderOpenAI && cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1/"
	}
	var fast, vision string
	switch cfg.Provider {
	case ProviderOpenAI:
		fast, vision = "llama-3.3-70b-versatile", "llama-3.2-11b-vision-preview"
	case ProviderGemini, ProviderVertex:
		fast, vision = "gemini-1.5-pro", "gemini-1.5-pro"
	}
	if cfg.FastModel == "" {
		cfg.FastModel = fast
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = vision
	}
}

// Load reads configuration from an optional imigra.yaml, a .env file and
// IMIGRA_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path; an empty path searches
// the working directory and ./configs.
func LoadFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("IMIGRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("imigra")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	defaultModels(&cfg.LLM)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case ProviderVertex, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm.provider %q", cfg.LLM.Provider)
	}
	switch cfg.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendFirestore:
		if cfg.Store.FirestoreProject == "" {
			return fmt.Errorf("store.firestore_project must be set for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == BackendFile && cfg.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must be set for the file backend")
	}
	if cfg.Study.DefaultPages < 1 {
		cfg.Study.DefaultPages = 5
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or the
// module root. A missing file is not an error.
func loadEnvFile() {
	paths := []string{".env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
