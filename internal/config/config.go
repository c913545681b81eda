package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Ingest    IngestConfig    `yaml:"ingest,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "volcengine" | "clip"

	APIKey   string `yaml:"api_key,omitempty"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`

	// Images whose longer side exceeds this are downscaled before upload.
	// Zero disables resizing.
	MaxImageSide int `yaml:"max_image_side,omitempty"`

	// Images declaring more pixels than this are rejected before decoding.
	MaxImagePixels int64 `yaml:"max_image_pixels,omitempty"`
}

// CatalogConfig holds vector catalog configuration
type CatalogConfig struct {
	Backend string `yaml:"backend"` // "qdrant" | "local"

	// Qdrant
	URL     string        `yaml:"url,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Local sqlite catalog directory
	Path string `yaml:"path,omitempty"`

	Collection string `yaml:"collection"`
	Distance   string `yaml:"distance"` // "Cosine" | "Dot" | "Euclid"

	// Fail when an existing collection's size or distance differs from the
	// configured ones instead of reusing it as-is.
	VerifySchema bool `yaml:"verify_schema,omitempty"`
}

// IngestConfig holds ingestion configuration
type IngestConfig struct {
	DataPath string   `yaml:"data_path"`
	Exclude  []string `yaml:"exclude,omitempty"` // doublestar patterns matched against item names

	// "random" mints a new id per image on every run; "content" derives it
	// from the image bytes so re-ingestion overwrites.
	PointIDs string `yaml:"point_ids,omitempty"`

	// Directory of the bleve item index. Empty disables it.
	ItemIndex string `yaml:"item_index,omitempty"`

	Progress string `yaml:"progress,omitempty"` // "auto" | "always" | "never"
}

// ServerConfig holds query service configuration
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	Mode           string `yaml:"mode,omitempty"` // "release" | "debug"
	MaxConcurrency int    `yaml:"max_concurrency,omitempty"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes,omitempty"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level,omitempty"` // "debug" | "info" | "warn" | "error"
	Dir   string `yaml:"dir,omitempty"`
}

const (
	ProviderVolcEngine = "volcengine"
	ProviderCLIP       = "clip"

	BackendQdrant = "qdrant"
	BackendLocal  = "local"

	PointIDsRandom  = "random"
	PointIDsContent = "content"
)

// DefaultPath returns ~/.equipid/config/equipid.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".equipid", "config", "equipid.yaml"), nil
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with --config\n"+
		"  3. Run 'equipid init' to write a template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	var target *ConfigNotFoundError
	return errors.As(err, &target)
}

// ExpandPath expands ~ and $HOME to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderVolcEngine
	}
	switch c.Embedding.Provider {
	case ProviderVolcEngine:
		if c.Embedding.Endpoint == "" {
			c.Embedding.Endpoint = "https://ark.cn-beijing.volces.com/api/v3/embeddings/multimodal"
		}
		if c.Embedding.Model == "" {
			c.Embedding.Model = "doubao-embedding-vision-250615"
		}
		if c.Embedding.Dimensions == 0 {
			c.Embedding.Dimensions = 2048
		}
	case ProviderCLIP:
		if c.Embedding.Endpoint == "" {
			c.Embedding.Endpoint = "http://127.0.0.1:7997/embeddings"
		}
		if c.Embedding.Model == "" {
			c.Embedding.Model = "clip-ViT-B-32"
		}
		if c.Embedding.Dimensions == 0 {
			c.Embedding.Dimensions = 512
		}
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 30 * time.Second
	}
	if c.Embedding.MaxImageSide == 0 {
		c.Embedding.MaxImageSide = 1024
	}
	if c.Embedding.MaxImagePixels == 0 {
		c.Embedding.MaxImagePixels = 89478485
	}

	if c.Catalog.Backend == "" {
		c.Catalog.Backend = BackendQdrant
	}
	if c.Catalog.URL == "" {
		c.Catalog.URL = "http://127.0.0.1:6333"
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = 20 * time.Second
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "~/.equipid/catalog"
	}
	c.Catalog.Path = ExpandPath(c.Catalog.Path)
	if c.Catalog.Collection == "" {
		c.Catalog.Collection = "industrial_equipment"
	}
	if c.Catalog.Distance == "" {
		c.Catalog.Distance = "Cosine"
	}

	if c.Ingest.DataPath == "" {
		c.Ingest.DataPath = "./data"
	}
	c.Ingest.DataPath = ExpandPath(c.Ingest.DataPath)
	if c.Ingest.PointIDs == "" {
		c.Ingest.PointIDs = PointIDsRandom
	}
	c.Ingest.ItemIndex = ExpandPath(c.Ingest.ItemIndex)
	if c.Ingest.Progress == "" {
		c.Ingest.Progress = "auto"
	}

	if c.Server.Addr == "" {
		c.Server.Addr = "0.0.0.0:5001"
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "release"
	}
	if c.Server.MaxConcurrency == 0 {
		c.Server.MaxConcurrency = 4
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 20 << 20
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "~/.equipid/logs"
	}
	c.Log.Dir = ExpandPath(c.Log.Dir)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case ProviderVolcEngine:
		if c.Embedding.Dimensions != 1024 && c.Embedding.Dimensions != 2048 {
			return fmt.Errorf("volcengine dimensions must be 1024 or 2048, got: %d", c.Embedding.Dimensions)
		}
	case ProviderCLIP:
		if c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("clip dimensions must be positive, got: %d", c.Embedding.Dimensions)
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.MaxImagePixels < 0 {
		return fmt.Errorf("max_image_pixels must not be negative, got: %d", c.Embedding.MaxImagePixels)
	}

	switch c.Catalog.Backend {
	case BackendQdrant, BackendLocal:
	default:
		return fmt.Errorf("unsupported catalog backend: %s", c.Catalog.Backend)
	}

	switch c.Catalog.Distance {
	case "Cosine", "Dot", "Euclid":
	default:
		return fmt.Errorf("unsupported distance: %s", c.Catalog.Distance)
	}

	if strings.TrimSpace(c.Catalog.Collection) == "" {
		return fmt.Errorf("catalog collection is required")
	}

	switch c.Ingest.PointIDs {
	case PointIDsRandom, PointIDsContent:
	default:
		return fmt.Errorf("point_ids must be %q or %q, got: %q", PointIDsRandom, PointIDsContent, c.Ingest.PointIDs)
	}

	switch c.Ingest.Progress {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("progress must be auto, always or never, got: %q", c.Ingest.Progress)
	}

	if c.Server.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative, got: %d", c.Server.MaxConcurrency)
	}

	switch c.Server.Mode {
	case "release", "debug":
	default:
		return fmt.Errorf("server mode must be release or debug, got: %q", c.Server.Mode)
	}

	return nil
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# equipid configuration
#
# Default location: $HOME/.equipid/config/equipid.yaml

embedding:
  # Provider: "volcengine" or "clip"
  provider: volcengine
  api_key: your-volcengine-api-key
  endpoint: https://ark.cn-beijing.volces.com/api/v3/embeddings/multimodal
  model: doubao-embedding-vision-250615
  dimensions: 2048
  max_image_side: 1024
  max_image_pixels: 89478485

  # Self-hosted CLIP server exposing an OpenAI-compatible /embeddings route
  # provider: clip
  # endpoint: http://127.0.0.1:7997/embeddings
  # model: clip-ViT-B-32
  # dimensions: 512

catalog:
  # Backend: "qdrant" or "local" (sqlite, brute-force search)
  backend: qdrant
  url: http://127.0.0.1:6333
  collection: industrial_equipment
  distance: Cosine
  # path: ~/.equipid/catalog
  # verify_schema: true

ingest:
  data_path: ./data
  point_ids: random
  # item_index: ~/.equipid/items.bleve
  # exclude: ["_*", ".*"]

server:
  addr: 0.0.0.0:5001
  max_concurrency: 4

log:
  level: info
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
