package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every DIRRAG_* environment variable.
const EnvPrefix = "DIRRAG"

// DefaultConfigName is looked up as dirrag.yaml in the working directory.
const DefaultConfigName = "dirrag"

// DefaultEnvFiles are loaded in order; earlier files win.
var DefaultEnvFiles = []string{".env", ".env.params"}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. It must exist when set.
	ConfigFile string
	// EnvFiles are dotenv files loaded into the process environment before
	// anything else. Nil means DefaultEnvFiles; missing files are ignored.
	EnvFiles []string
	// Flags are bound by name; see FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"docs-paths":         "docs_paths",
	"docs-directory":     "docs_paths",
	"vector-db-path":     "vector_db_path",
	"backend":            "store.backend",
	"embedding-provider": "embedding.provider",
	"embedding-model":    "embedding.model",
	"chat-provider":      "chat.provider",
	"chat-model":         "chat.model",
	"chunk-size":         "chunking.size",
	"chunk-overlap":      "chunking.overlap",
	"k":                  "top_k",
	"log-level":          "log_level",
}

// legacyEnv lists unprefixed variables accepted in addition to DIRRAG_*.
var legacyEnv = map[string][]string{
	"docs_paths":        {"DOCS_PATH", "DOCS_DIRECTORY"},
	"vector_db_path":    {"VECTOR_DB_PATH"},
	"embedding.api_key": {"OPENAI_API_KEY"},
	"chat.api_key":      {"OPENAI_API_KEY"},
	"log_level":         {"LOG_LEVEL"},
}

// Load resolves the configuration with increasing priority: defaults, the
// YAML file, the environment, then changed flags.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default())

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		envNames := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.DocsPaths = docsPaths(v.Get("docs_paths"))
	cfg.Extensions = normalizeExtensions(cfg.Extensions)

	if strings.EqualFold(cfg.Embedding.Provider, "ollama") && cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	if strings.EqualFold(cfg.Chat.Provider, "ollama") && cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = os.Getenv("OLLAMA_HOST")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("docs_paths", d.DocsPaths)
	v.SetDefault("vector_db_path", d.VectorDBPath)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("chunking.size", d.Chunking.Size)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.concurrency", d.Embedding.Concurrency)
	v.SetDefault("chat.provider", d.Chat.Provider)
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.api_key", d.Chat.APIKey)
	v.SetDefault("chat.base_url", d.Chat.BaseURL)
	v.SetDefault("chat.temperature", d.Chat.Temperature)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("top_k", d.TopK)
	v.SetDefault("log_level", d.LogLevel)
}

// docsPaths accepts a YAML list or a single string holding an OS path list.
func docsPaths(raw any) []string {
	var out []string
	switch val := raw.(type) {
	case string:
		out = SplitPaths(val)
	case []string:
		for _, s := range val {
			out = append(out, SplitPaths(s)...)
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, SplitPaths(s)...)
			}
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
