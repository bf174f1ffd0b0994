// Package config loads the build and server configuration objects,
// viper-backed so values can come from a YAML file, environment
// variables, or defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// RepositoryConfig is one entry of BuildConfig.Repositories: a
// version-control root plus the revisions to ingest from it.
type RepositoryConfig struct {
	Path      string            `mapstructure:"path"`
	Name      string            `mapstructure:"name"`
	Metadata  map[string]string `mapstructure:"metadata"`
	Revisions []string          `mapstructure:"revisions"`
}

// BuildConfig is the build-time configuration object: the indexing
// engine never parses this itself, it only receives already-parsed
// walker invocations driven by it.
type BuildConfig struct {
	Name         string              `mapstructure:"name"`
	FSPaths      []string            `mapstructure:"fsPaths"`
	Repositories []RepositoryConfig  `mapstructure:"repositories"`
	ChunkBytes   int32               `mapstructure:"chunkBytes"`
	Workers      int                 `mapstructure:"workers"`
	DumpPath     string              `mapstructure:"dumpPath"`
	CatalogDSN   string              `mapstructure:"catalogDsn"`
	IgnoreFiles  []string            `mapstructure:"ignoreFiles"`
}

// ServerConfig configures a query-serving process.
type ServerConfig struct {
	ListenSocket string `mapstructure:"listenSocket"` // "" means stdio
	DefaultMax   int    `mapstructure:"defaultMaxMatches"`
	ContextLines int    `mapstructure:"contextLines"`
	LogLevel     string `mapstructure:"logLevel"`
	CatalogDSN   string `mapstructure:"catalogDsn"`
}

// LoadBuildConfig reads a BuildConfig from configPath, or from the
// current/parent directory's "csbuild.yaml"/env vars if configPath is
// empty, searching "." then ".." for that file.
func LoadBuildConfig(configPath string) (*BuildConfig, error) {
	v := newViper(configPath, "csbuild")

	v.SetDefault("chunkBytes", 4<<20)
	v.SetDefault("workers", 0)
	v.SetDefault("dumpPath", "index.csx")
	v.SetDefault("catalogDsn", "file:catalog.db")

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var cfg BuildConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding build config: %w", err)
	}
	return &cfg, nil
}

// LoadServerConfig reads a ServerConfig the same way.
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := newViper(configPath, "csserve")

	v.SetDefault("defaultMaxMatches", 1000)
	v.SetDefault("contextLines", 3)
	v.SetDefault("logLevel", "info")
	v.SetDefault("catalogDsn", "file:catalog.db")

	if err := readInConfig(v); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding server config: %w", err)
	}
	return &cfg, nil
}

func newViper(configPath, defaultName string) *viper.Viper {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("..")
		v.SetConfigName(defaultName)
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func readInConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // a missing config file is not fatal, defaults apply
		}
		return fmt.Errorf("config: reading config file: %w", err)
	}
	return nil
}
