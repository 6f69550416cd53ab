package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Embedding provider configuration (OpenAI-compatible protocol).
	// An empty API key disables semantic retrieval; the service keeps
	// running in degraded mode with full-wardrobe fallback.
	EmbeddingAPIKey  string
	EmbeddingBaseURL string
	EmbeddingModel   string
	// EmbeddingTextDim and EmbeddingImageDim fix the two halves of the
	// fused vector. Absent modalities are zero-filled, so the stored
	// dimensionality is always TextDim+ImageDim.
	EmbeddingTextDim  int
	EmbeddingImageDim int

	// Generation provider configuration (outfit drafting and adjustment).
	GenerationAPIKey  string
	GenerationBaseURL string
	GenerationModel   string

	// Weather provider configuration.
	WeatherAPIKey  string
	WeatherBaseURL string

	// Session retention. SessionRetentionDays is the hard cutoff enforced
	// both by the periodic sweep and on every session access.
	SessionRetentionDays int

	UNIXSock string
	Mode     string
	DSN      string
	Driver   string
	Version  string
	Addr     string
	Data     string
	Port     int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if the embedding provider is configured.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != ""
}

// IsGenerationEnabled returns true if the generation provider is configured.
func (p *Profile) IsGenerationEnabled() bool {
	return p.GenerationAPIKey != ""
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
	p.EmbeddingAPIKey = getEnvOrDefault("STYLIST_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("STYLIST_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingModel = getEnvOrDefault("STYLIST_EMBEDDING_MODEL", "BAAI/bge-m3")
	p.EmbeddingTextDim = getEnvOrDefaultInt("STYLIST_EMBEDDING_TEXT_DIM", 768)
	p.EmbeddingImageDim = getEnvOrDefaultInt("STYLIST_EMBEDDING_IMAGE_DIM", 512)

	p.GenerationAPIKey = getEnvOrDefault("STYLIST_GENERATION_API_KEY", "")
	p.GenerationBaseURL = getEnvOrDefault("STYLIST_GENERATION_BASE_URL", "https://open.bigmodel.cn/api/paas/v4")
	p.GenerationModel = getEnvOrDefault("STYLIST_GENERATION_MODEL", "glm-4-flash")

	p.WeatherAPIKey = getEnvOrDefault("STYLIST_WEATHER_API_KEY", "")
	p.WeatherBaseURL = getEnvOrDefault("STYLIST_WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")

	p.SessionRetentionDays = getEnvOrDefaultInt("STYLIST_SESSION_RETENTION_DAYS", 3)
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

	// Trim trailing \ or / in case user supplies.
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

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}

	if p.SessionRetentionDays <= 0 {
		p.SessionRetentionDays = 3
	}
	if p.EmbeddingTextDim <= 0 || p.EmbeddingImageDim <= 0 {
		return errors.Errorf("invalid embedding dimensions: text=%d image=%d", p.EmbeddingTextDim, p.EmbeddingImageDim)
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/stylist"
	}
	if p.Driver == "sqlite" {
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			dbFile := fmt.Sprintf("stylist_%s.db", p.Mode)
			p.DSN = filepath.Join(dataDir, dbFile) + "?_loc=auto"
		}
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres driver requires a DSN")
	}

	return nil
}
