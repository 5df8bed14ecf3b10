// Package config layers defaults, an optional TOML file, .env and the process
// environment into the settings for one invocation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/petasbytes/go-chat/internal/provider"
	"github.com/petasbytes/go-chat/memory"
)

// DefaultFile is read from the working directory when no config path is given.
const DefaultFile = "chat.toml"

// FileConfig is the on-disk TOML layout. Pointer fields distinguish "unset"
// from the zero value.
type FileConfig struct {
	Model     string `toml:"model"`
	WebSearch *bool  `toml:"web_search"`
	StateFile string `toml:"state_file"`
	BaseURL   string `toml:"base_url"`
	Markdown  *bool  `toml:"markdown"`
}

// Config is the resolved configuration.
type Config struct {
	Model     string
	WebSearch bool
	StateFile string
	BaseURL   string
	Markdown  bool
	// APIKey only ever comes from OPENAI_API_KEY.
	APIKey string
	// Source is the config file that was applied, empty when none.
	Source string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Model:     provider.DefaultModel,
		WebSearch: true,
		StateFile: memory.DefaultPath,
		Markdown:  true,
	}
}

// LoadDotEnv loads .env from the working directory. Variables already in the
// environment win. A missing file is not an error.
func LoadDotEnv() error {
	return LoadDotEnvFile(".env")
}

// LoadDotEnvFile is LoadDotEnv for an explicit path.
func LoadDotEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves the configuration. path is the --config flag value; when
// empty, CHAT_CONFIG and then DefaultFile are tried, and a missing default
// file is silently skipped.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if v := os.Getenv("CHAT_CONFIG"); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultFile
		}
	}

	fc, err := readFile(path)
	switch {
	case err == nil:
		cfg.apply(fc)
		cfg.Source = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StatePath resolves only the state file location, skipping every other
// setting. --clear falls back to it when Load fails. CHAT_STATE_FILE wins,
// then state_file from a config file that decodes, then memory.DefaultPath.
func StatePath(path string) string {
	if v := os.Getenv("CHAT_STATE_FILE"); v != "" {
		return v
	}
	if path == "" {
		path = os.Getenv("CHAT_CONFIG")
	}
	if path == "" {
		path = DefaultFile
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err == nil && fc.StateFile != "" {
		return fc.StateFile
	}
	return memory.DefaultPath
}

func readFile(path string) (FileConfig, error) {
	var fc FileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, err
		}
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fc, fmt.Errorf("parse config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return fc, nil
}

func (c *Config) apply(fc FileConfig) {
	if fc.Model != "" {
		c.Model = fc.Model
	}
	if fc.WebSearch != nil {
		c.WebSearch = *fc.WebSearch
	}
	if fc.StateFile != "" {
		c.StateFile = fc.StateFile
	}
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	if fc.Markdown != nil {
		c.Markdown = *fc.Markdown
	}
}

func (c *Config) applyEnvOverrides() error {
	c.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CHAT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CHAT_STATE_FILE"); v != "" {
		c.StateFile = v
	}
	if v := os.Getenv("CHAT_WEB_SEARCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHAT_WEB_SEARCH %q: %w", v, err)
		}
		c.WebSearch = b
	}
	return nil
}

// Validate reports configuration that makes a remote call impossible.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY environment variable is not set", provider.ErrMissingAPIKey)
	}
	return nil
}
