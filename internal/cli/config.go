package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"life.tape/internal/transcript"
)

const (
	configName = ".lifetape" // .yaml is implicit
	envPrefix  = "LIFETAPE"
)

// Config is the client configuration.
type Config struct {
	BackendURL string
	BackendKey string
	CachePath  string
	RulesPath  string
	LogLevel   string
	PINCost    int
	Phrases    transcript.Phrases
}

// LoadConfig reads .lifetape.yaml from file, or from the working directory
// and then $HOME, with LIFETAPE_* environment overrides. A missing config
// file is not an error.
func LoadConfig(v *viper.Viper, file string) (*Config, error) {
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.key", "")
	v.SetDefault("cache.path", "~/.lifetape")
	v.SetDefault("rules.path", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("pin.cost", 0)
	v.SetDefault("phrases.wake", transcript.DefaultWakePhrase)
	v.SetDefault("phrases.end", transcript.DefaultEndPhrase)
	v.SetDefault("phrases.triggers", transcript.DefaultTriggers)
	v.SetDefault("phrases.tags", transcript.DefaultTags)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		if override := os.Getenv(envPrefix + "_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath("./")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cache, err := homedir.Expand(v.GetString("cache.path"))
	if err != nil {
		return nil, fmt.Errorf("cache.path: %w", err)
	}
	rules, err := homedir.Expand(v.GetString("rules.path"))
	if err != nil {
		return nil, fmt.Errorf("rules.path: %w", err)
	}

	return &Config{
		BackendURL: v.GetString("backend.url"),
		BackendKey: v.GetString("backend.key"),
		CachePath:  cache,
		RulesPath:  rules,
		LogLevel:   v.GetString("log.level"),
		PINCost:    v.GetInt("pin.cost"),
		Phrases: transcript.Phrases{
			Wake:     v.GetString("phrases.wake"),
			End:      v.GetString("phrases.end"),
			Triggers: v.GetStringSlice("phrases.triggers"),
			Tags:     v.GetStringSlice("phrases.tags"),
		},
	}, nil
}
