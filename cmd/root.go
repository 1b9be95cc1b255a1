package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/profile-fusion/internal/filtering"
)

const (
	app       = "profile-fusion"
	envPrefix = "PROFILE_FUSION"
)

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Lock     LockConfig     `mapstructure:"lock"`
	AI       AIConfig       `mapstructure:"ai"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	LinkedIn LinkedInConfig `mapstructure:"linkedin"`
	CV       CVConfig       `mapstructure:"cv"`
	Skills   SkillsConfig   `mapstructure:"skills"`
	Server   ServerConfig   `mapstructure:"server"`
}

type StorageConfig struct {
	// Driver is "sqlite" or "memory".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type LockConfig struct {
	// Driver is "local" or "redis".
	Driver   string        `mapstructure:"driver"`
	Wait     time.Duration `mapstructure:"wait"`
	RedisURL string        `mapstructure:"redis-url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Provider     string        `mapstructure:"provider"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Instructions string        `mapstructure:"instructions"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type SourcesConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type GitHubConfig struct {
	APIURL            string  `mapstructure:"api-url"`
	Token             string  `mapstructure:"token" json:"-"`
	TokenFile         string  `mapstructure:"token-file"`
	RequestsPerSecond float64 `mapstructure:"rps"`
	ParseReadme       bool    `mapstructure:"parse-readme"`
}

type LinkedInConfig struct {
	UserAgent string `mapstructure:"user-agent"`
}

type CVConfig struct {
	MaxBytes int64 `mapstructure:"max-bytes"`
}

type SkillsConfig struct {
	ExcludeFile string   `mapstructure:"exclude-file"`
	MaxLength   int      `mapstructure:"max-length"`
	Sort        bool     `mapstructure:"sort"`
	Disable     []string `mapstructure:"disable"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	Token     string `mapstructure:"token" json:"-"`
	TokenFile string `mapstructure:"token-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:           app,
		Short:         "profile-fusion merges CV, LinkedIn and GitHub data into one profile and polishes it with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute executes the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	configure(viper.GetViper())

	envBindings := map[string]string{
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"github.token-file":      "GITHUB_TOKEN_FILE",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is profile-fusion.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func configure(v *viper.Viper) {
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", ".profile-fusion")
	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.wait", 10*time.Second)
	v.SetDefault("lock.redis-url", "")
	v.SetDefault("lock.ttl", 2*time.Minute)
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", 2*time.Minute)
	v.SetDefault("ai.instructions", "")
	v.SetDefault("ai.max-log-length", 512)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("sources.timeout", 30*time.Second)
	v.SetDefault("github.api-url", "https://api.github.com")
	v.SetDefault("github.token", "")
	v.SetDefault("github.rps", 5)
	v.SetDefault("github.parse-readme", true)
	v.SetDefault("linkedin.user-agent", "")
	v.SetDefault("cv.max-bytes", 10<<20)
	v.SetDefault("skills.exclude-file", "")
	v.SetDefault("skills.max-length", 60)
	v.SetDefault("skills.sort", false)
	v.SetDefault("skills.disable", []string{})
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("server.token", "")
	v.SetDefault("server.token-file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional; defaults and env cover a local setup.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case "local":
	case "redis":
		if strings.TrimSpace(c.Lock.RedisURL) == "" {
			return errors.New("lock.redis-url is required for the redis lock driver")
		}
	default:
		return fmt.Errorf("unsupported lock driver %q", c.Lock.Driver)
	}

	known := filtering.Names()
	for _, name := range c.Skills.Disable {
		if !slices.Contains(known, name) {
			return fmt.Errorf("unknown skill filter %q in skills.disable, known: %s", name, strings.Join(known, ", "))
		}
	}

	if c.AI.Enabled {
		if provider := strings.ToLower(strings.TrimSpace(c.AI.Provider)); provider != "" && provider != "gemini" {
			return fmt.Errorf("unsupported ai provider: %s", c.AI.Provider)
		}
	}

	return nil
}
