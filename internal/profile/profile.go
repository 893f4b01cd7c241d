package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the resolution server.
type Profile struct {
	// Embedding configuration (any OpenAI-compatible provider)
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	// Engine configuration
	CorpusPath        string  // path to the intent corpus JSON
	FallbackThreshold float64 // Stage 2 confidence floor before fallback
	MemoryAutosave    bool    // write confident resolutions back into fast memory
	NormalizeInput    bool    // run the slang normalizer before embedding

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string // "sqlite" | "postgres"
	DSN     string
	Version string
}

// Provider default base URLs for the embedding client.
// Used when EMBEDDING_BASE_URL is not explicitly set.
var embeddingProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "BAAI/bge-m3",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "nomic-embed-text",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbedderConfigured returns true when a real embedding provider can be used.
// Without it the server refuses to start; the engine never computes vectors itself.
func (p *Profile) IsEmbedderConfigured() bool {
	return p.EmbeddingAPIKey != "" || p.EmbeddingProvider == "ollama"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = getEnvOrDefault("INTENTD_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingModel = getEnvOrDefault("INTENTD_EMBEDDING_MODEL", "")
	p.EmbeddingAPIKey = getEnvOrDefault("INTENTD_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("INTENTD_EMBEDDING_BASE_URL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("INTENTD_EMBEDDING_DIMENSIONS", 1024)

	if _, ok := embeddingProviderDefaults[p.EmbeddingProvider]; !ok {
		slog.Warn("unknown embedding provider, using default: siliconflow", "provider", p.EmbeddingProvider)
		p.EmbeddingProvider = "siliconflow"
	}
	if defaults, ok := embeddingProviderDefaults[p.EmbeddingProvider]; ok {
		if p.EmbeddingBaseURL == "" {
			p.EmbeddingBaseURL = defaults.BaseURL
		}
		if p.EmbeddingModel == "" {
			p.EmbeddingModel = defaults.Model
		}
	}

	if v := os.Getenv("INTENTD_MEMORY_AUTOSAVE"); v != "" {
		p.MemoryAutosave = v == "true" || v == "1"
	}
	if v := os.Getenv("INTENTD_NORMALIZE_INPUT"); v != "" {
		p.NormalizeInput = v == "true" || v == "1"
	}
	if v := os.Getenv("INTENTD_CORPUS"); v != "" {
		p.CorpusPath = v
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported store driver: %s", p.Driver)
	}

	if p.FallbackThreshold <= 0 || p.FallbackThreshold > 1 {
		p.FallbackThreshold = 0.6
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.CorpusPath == "" {
		p.CorpusPath = filepath.Join(dataDir, "intents.json")
	}

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("intentd_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	return nil
}
