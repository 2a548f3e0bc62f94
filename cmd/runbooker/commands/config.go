package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/cdprunbooker/runbooker/internal/app"
)

// envPrefix is stripped from environment variables during config loading
// (e.g., RUNBOOKER_CREDENTIALS__STORAGE → credentials.storage).
const envPrefix = "RUNBOOKER_"

// listKeys are config keys whose environment values are comma-separated lists.
var listKeys = map[string]bool{
	"legacy.files": true,
}

// defaultConfigFile is looked up in the user config directory when --config is not given.
var defaultConfigFile = filepath.Join("cdp-runbooker", "runbooker.toml")

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from the config file, explicit or discovered
	if configPath == "" {
		configPath = discoverConfigFile()
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	// 2. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		if err := k.Load(confmap.Provider(flagValues(cmd), "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// discoverConfigFile returns the default config file path if it exists.
func discoverConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, defaultConfigFile)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// transformEnv maps RUNBOOKER_API__BASE_URL to api.base_url and splits list values.
func transformEnv(key, value string) (string, any) {
	stripped := strings.TrimPrefix(key, envPrefix)
	nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))

	if listKeys[nested] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return nested, items
	}
	return nested, value
}

// flagValues collects explicitly set flags, parent flags included, keyed by
// config path: --credentials--max-retries → credentials.max_retries.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		// Unset flags would mask file and environment values
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
