// Package config loads codeatlas configuration with layered
// precedence: built-in defaults, the user config under
// ~/.config/codeatlas, the project .codeatlas.yaml, then CODEATLAS_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete codeatlas configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Rules       RulesConfig       `yaml:"rules" json:"rules"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// PathsConfig configures which paths are scanned.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// RulesConfig configures the classification rules file.
type RulesConfig struct {
	// Path is the rules file location, relative to the project root.
	Path string `yaml:"path" json:"path"`
	// Watch reloads the rules file when it changes on disk.
	Watch bool `yaml:"watch" json:"watch"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is one of "ollama", "hash", or "auto".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// IndexConfig configures the embedding and keyword indexes.
type IndexConfig struct {
	// DBPath is the unit store location. Empty keeps units in memory.
	DBPath string `yaml:"db_path" json:"db_path"`
	// KeywordPath is the keyword index location. Empty keeps it in memory.
	KeywordPath string `yaml:"keyword_path" json:"keyword_path"`
	// UseHNSW enables the approximate-nearest-neighbor backend.
	UseHNSW bool `yaml:"use_hnsw" json:"use_hnsw"`
	// MinSimilarity filters search hits below this cosine similarity.
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
	// MaxResults caps the number of search hits returned.
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// PerformanceConfig configures scan parallelism.
type PerformanceConfig struct {
	Workers  int `yaml:"workers" json:"workers"`
	MaxFiles int `yaml:"max_files" json:"max_files"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// defaultExcludePatterns are always excluded from scans.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/coverage/**",
	"**/*.min.js",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Rules: RulesConfig{
			Path:  filepath.Join(".codeatlas", "rules.yaml"),
			Watch: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "auto",
			Model:      "nomic-embed-text",
			Dimensions: 0, // detected from the embedder
			BatchSize:  32,
			OllamaHost: "", // empty uses http://localhost:11434
			CacheSize:  1000,
		},
		Index: IndexConfig{
			DBPath:        filepath.Join(".codeatlas", "atlas.db"),
			KeywordPath:   filepath.Join(".codeatlas", "keyword.bleve"),
			UseHNSW:       false,
			MinSimilarity: 0,
			MaxResults:    20,
		},
		Performance: PerformanceConfig{
			Workers:  runtime.NumCPU(),
			MaxFiles: 100000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the user configuration path, honoring
// XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeatlas", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "codeatlas", "config.yaml")
	}
	return filepath.Join(home, ".config", "codeatlas", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for a project directory. Precedence,
// lowest to highest: defaults, user config, project config, CODEATLAS_*
// environment variables. The result is validated before return.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromProject(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromProject(dir string) error {
	for _, name := range []string{".codeatlas.yaml", ".codeatlas.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	// No project config is fine.
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c. Exclude
// patterns are appended to the defaults rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Rules.Path != "" {
		c.Rules.Path = other.Rules.Path
		c.Rules.Watch = other.Rules.Watch
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Index.DBPath != "" {
		c.Index.DBPath = other.Index.DBPath
	}
	if other.Index.KeywordPath != "" {
		c.Index.KeywordPath = other.Index.KeywordPath
	}
	if other.Index.UseHNSW {
		c.Index.UseHNSW = true
	}
	if other.Index.MinSimilarity != 0 {
		c.Index.MinSimilarity = other.Index.MinSimilarity
	}
	if other.Index.MaxResults != 0 {
		c.Index.MaxResults = other.Index.MaxResults
	}

	if other.Performance.Workers != 0 {
		c.Performance.Workers = other.Performance.Workers
	}
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODEATLAS_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("CODEATLAS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODEATLAS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("CODEATLAS_RULES_PATH"); v != "" {
		c.Rules.Path = v
	}
	if v := os.Getenv("CODEATLAS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CODEATLAS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.Workers = n
		}
	}
	if v := os.Getenv("CODEATLAS_USE_HNSW"); v != "" {
		c.Index.UseHNSW = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("CODEATLAS_MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Index.MinSimilarity = f
		}
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Embeddings.Provider != "" {
		valid := map[string]bool{"ollama": true, "hash": true, "auto": true}
		if !valid[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'hash', or 'auto', got %s", c.Embeddings.Provider)
		}
	}

	if c.Index.MinSimilarity < 0 || c.Index.MinSimilarity > 1 {
		return fmt.Errorf("index.min_similarity must be between 0 and 1, got %f", c.Index.MinSimilarity)
	}
	if c.Index.MaxResults < 0 {
		return fmt.Errorf("index.max_results must be non-negative, got %d", c.Index.MaxResults)
	}
	if c.Performance.Workers < 0 {
		return fmt.Errorf("performance.workers must be non-negative, got %d", c.Performance.Workers)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .codeatlas.yaml file. Falls back to startDir at the filesystem
// root.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if fileExists(filepath.Join(current, ".codeatlas.yaml")) ||
			fileExists(filepath.Join(current, ".codeatlas.yml")) {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
