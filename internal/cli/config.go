package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel"
	"github.com/git-pkgs/pyintel/cache"
	"github.com/git-pkgs/pyintel/client"
	"github.com/git-pkgs/pyintel/fetch"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = ".pyintel"
	envPrefix  = "pyintel"
)

// Config holds the settings shared by every command.
type Config struct {
	PyPIURL     string        `mapstructure:"pypi-url"`
	StatsURL    string        `mapstructure:"stats-url"`
	OSVURL      string        `mapstructure:"osv-url"`
	GitHubURL   string        `mapstructure:"github-url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Attempts    int           `mapstructure:"attempts"`
	UserAgent   string        `mapstructure:"user-agent"`
	Concurrency int           `mapstructure:"concurrency"`
	CacheTTL    time.Duration `mapstructure:"cache-ttl"`
	CacheSize   int           `mapstructure:"cache-size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pypi-url", "")
	v.SetDefault("stats-url", "")
	v.SetDefault("osv-url", "")
	v.SetDefault("github-url", "")
	v.SetDefault("timeout", fetch.DefaultTimeout)
	v.SetDefault("attempts", fetch.DefaultMaxAttempts)
	v.SetDefault("user-agent", fetch.DefaultUserAgent)
	v.SetDefault("concurrency", 5)
	v.SetDefault("cache-ttl", cache.DefaultTTL)
	v.SetDefault("cache-size", cache.DefaultMaxSize)
}

// addConfigFlags registers the flags that override config file values.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("pypi-url", "", "PyPI base URL")
	fs.String("stats-url", "", "pypistats API base URL")
	fs.String("osv-url", "", "OSV API base URL")
	fs.String("github-url", "", "raw GitHub content base URL")
	fs.Duration("timeout", fetch.DefaultTimeout, "per-attempt request timeout")
	fs.Int("attempts", fetch.DefaultMaxAttempts, "attempts per request")
	fs.Int("concurrency", 5, "parallel fetches for dependency resolution and analyze")
}

// loadConfig reads path, or $HOME/.pyintel.yaml when path is empty, then
// layers PYINTEL_* environment variables and the flags in fs on top. A
// missing default config file is not an error.
func loadConfig(v *viper.Viper, path string, fs *pflag.FlagSet) (Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return Config{}, fmt.Errorf("locating home directory: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// newClient builds a pyintel client from cfg.
func newClient(cfg Config, logger *log.Logger) *pyintel.Client {
	opts := []client.Option{
		client.WithTimeout(cfg.Timeout),
		client.WithMaxAttempts(cfg.Attempts),
		client.WithLogger(logger),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, client.WithFetchOptions(fetch.WithUserAgent(cfg.UserAgent)))
	}
	httpClient := client.NewClient(opts...)
	return pyintel.New(
		pyintel.WithHTTPClient(httpClient),
		pyintel.WithCache(cache.New(cache.WithTTL(cfg.CacheTTL), cache.WithMaxSize(cfg.CacheSize))),
		pyintel.WithLogger(logger),
		pyintel.WithConcurrency(cfg.Concurrency),
		pyintel.WithEndpoints(pyintel.Endpoints{
			PyPI:   cfg.PyPIURL,
			Stats:  cfg.StatsURL,
			OSV:    cfg.OSVURL,
			GitHub: cfg.GitHubURL,
		}),
	)
}
