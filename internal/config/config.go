package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Advisors  []AdvisorConfig           `mapstructure:"advisors"`
	Council   CouncilConfig             `mapstructure:"council"`
	Persona   PersonaConfig             `mapstructure:"persona"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Server    ServerConfig              `mapstructure:"server"`
}

// ProviderConfig represents LLM provider configuration such as Ollama or OpenAI-compatible gateways.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // ollama, openai, openrouter, vllm, lmstudio, custom
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Default     bool    `mapstructure:"default"`
}

// AdvisorConfig describes one council seat: a persona bound to a logical model.
type AdvisorConfig struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	Model       string `mapstructure:"model" json:"model"`
	PromptFile  string `mapstructure:"prompt_file" json:"prompt_file"`
	Description string `mapstructure:"description" json:"description"`
}

// CouncilConfig describes deliberation pipeline parameters.
type CouncilConfig struct {
	Chairman           string `mapstructure:"chairman"`             // logical model id used for stage-3 synthesis
	TitleModel         string `mapstructure:"title_model"`          // logical model id for title generation (defaults to chairman)
	CallTimeoutSeconds int    `mapstructure:"call_timeout_seconds"` // per-advisor model call budget
	HistoryWindow      int    `mapstructure:"history_window"`       // group chat context messages
}

// PersonaConfig controls persona prompt files and Wikipedia-backed generation.
type PersonaConfig struct {
	PromptsDir       string `mapstructure:"prompts_dir"`
	WikipediaBaseURL string `mapstructure:"wikipedia_base_url"`
	UserAgent        string `mapstructure:"user_agent"`
}

// StorageConfig describes conversation persistence.
type StorageConfig struct {
	Path string `mapstructure:"path"` // sqlite database file
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// ServerConfig describes daemon settings.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// Load reads configuration from the provided path or defaults to configs/config.yaml.
// Environment variables override file values (prefix: QUORUM_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("QUORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("council.call_timeout_seconds", 300)
	v.SetDefault("council.history_window", 10)

	v.SetDefault("persona.prompts_dir", "prompts")
	v.SetDefault("persona.wikipedia_base_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("persona.user_agent", "quorum/0.1 (persona generator)")

	v.SetDefault("storage.path", "data/quorum.db")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if len(c.Advisors) == 0 {
		return errors.New("at least one advisor must be seated on the council")
	}

	seen := make(map[string]bool, len(c.Advisors))
	for i, a := range c.Advisors {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("advisor %d must define id", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("advisor id %q is duplicated", a.ID)
		}
		seen[a.ID] = true
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("advisor %q must define name", a.ID)
		}
		if _, ok := c.Models[a.Model]; !ok {
			return fmt.Errorf("advisor %q references unknown model %q", a.ID, a.Model)
		}
	}

	if strings.TrimSpace(c.Council.Chairman) == "" {
		return errors.New("council.chairman must be set")
	}
	if _, ok := c.Models[c.Council.Chairman]; !ok {
		return fmt.Errorf("council.chairman references unknown model %q", c.Council.Chairman)
	}
	if c.Council.TitleModel != "" {
		if _, ok := c.Models[c.Council.TitleModel]; !ok {
			return fmt.Errorf("council.title_model references unknown model %q", c.Council.TitleModel)
		}
	}

	if c.Council.CallTimeoutSeconds <= 0 {
		return errors.New("council.call_timeout_seconds must be > 0")
	}
	if c.Council.HistoryWindow < 0 {
		return errors.New("council.history_window must be >= 0")
	}

	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path must be set")
	}

	return nil
}

// CallTimeout returns the per-advisor call budget as a duration.
func (c *CouncilConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// TitleModelOrChairman resolves the model used for title generation.
func (c *CouncilConfig) TitleModelOrChairman() string {
	if strings.TrimSpace(c.TitleModel) != "" {
		return c.TitleModel
	}
	return c.Chairman
}
