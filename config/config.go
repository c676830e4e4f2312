// Package config handles TOML configuration loading and path resolution.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Tokens    TokensConfig    `toml:"tokens"`
	Keys      KeysConfig      `toml:"keys"`
	Databases DatabasesConfig `toml:"databases"`
	Webhooks  WebhooksConfig  `toml:"webhooks"`
	IDs       IDsConfig       `toml:"ids"`
	Downloads DownloadsConfig `toml:"downloads"`
	APIs      APIsConfig      `toml:"apis"`
	Web       WebConfig       `toml:"web"`
}

type TokensConfig struct {
	Bot        string `toml:"bot"`
	TestingBot string `toml:"testing_bot"`
}

type KeysConfig struct {
	LastFM string `toml:"lastfm"`
}

type DatabasesConfig struct {
	PSQL        string `toml:"psql"`
	PSQLTesting string `toml:"psql_testing"`
	LogsPath    string `toml:"logs_path"`
}

// WebhooksConfig holds webhook URLs. Images, Avatars and Icons are pools one
// of which is picked at random for each upload.
type WebhooksConfig struct {
	ErrorLogs string   `toml:"error_logs"`
	Images    []string `toml:"images"`
	Avatars   []string `toml:"avatars"`
	Icons     []string `toml:"icons"`
}

type IDsConfig struct {
	OwnerID   string `toml:"owner_id"`
	PoketwoID string `toml:"poketwo_id"`
}

type DownloadsConfig struct {
	Dir         string `toml:"dir"`
	ProxyURL    string `toml:"proxy_url"`
	Cookies     string `toml:"cookies"`
	YTDLP       string `toml:"ytdlp"`
	MaxFileSize int64  `toml:"max_file_size"`
}

// APIsConfig holds the base URLs of the third-party HTTP services.
type APIsConfig struct {
	ReviewDB   string `toml:"reviewdb"`
	Urban      string `toml:"urban"`
	LastFM     string `toml:"lastfm"`
	Litterbox  string `toml:"litterbox"`
	PokemonCSV string `toml:"pokemon_csv"`
}

type WebConfig struct {
	Addr string `toml:"addr"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Environment overrides for secrets
	if v := os.Getenv("FISHIE_BOT_TOKEN"); v != "" {
		cfg.Tokens.Bot = v
	}
	if v := os.Getenv("FISHIE_PSQL"); v != "" {
		cfg.Databases.PSQL = v
	}

	// Apply defaults
	if cfg.Databases.LogsPath == "" {
		cfg.Databases.LogsPath = "fishie-logs.db"
	}
	if cfg.Downloads.Dir == "" {
		cfg.Downloads.Dir = "files/downloads"
	}
	if cfg.Downloads.YTDLP == "" {
		cfg.Downloads.YTDLP = "yt-dlp"
	}
	if cfg.Downloads.MaxFileSize == 0 {
		cfg.Downloads.MaxFileSize = 100 << 20
	}
	if cfg.APIs.ReviewDB == "" {
		cfg.APIs.ReviewDB = "https://manti.vendicated.dev/api/reviewdb"
	}
	if cfg.APIs.Urban == "" {
		cfg.APIs.Urban = "https://api.urbandictionary.com/v0/define"
	}
	if cfg.APIs.LastFM == "" {
		cfg.APIs.LastFM = "https://ws.audioscrobbler.com/2.0/"
	}
	if cfg.APIs.Litterbox == "" {
		cfg.APIs.Litterbox = "https://litterbox.catbox.moe/resources/internals/api.php"
	}
	if cfg.APIs.PokemonCSV == "" {
		cfg.APIs.PokemonCSV = "https://raw.githubusercontent.com/poketwo/data/master/csv/pokemon.csv"
	}
	if cfg.Web.Addr == "" {
		cfg.Web.Addr = "127.0.0.1:8089"
	}

	// Validate required fields
	if cfg.Tokens.Bot == "" && cfg.Tokens.TestingBot == "" {
		return nil, fmt.Errorf("tokens.bot or tokens.testing_bot is required")
	}
	if cfg.Databases.PSQL == "" && cfg.Databases.PSQLTesting == "" {
		return nil, fmt.Errorf("databases.psql or databases.psql_testing is required")
	}
	if cfg.IDs.OwnerID == "" {
		return nil, fmt.Errorf("ids.owner_id is required")
	}

	return &cfg, nil
}

// Token returns the bot token of the selected credential set.
func (cfg *Config) Token(testing bool) (string, error) {
	if testing {
		if cfg.Tokens.TestingBot == "" {
			return "", fmt.Errorf("tokens.testing_bot is required with -testing")
		}
		return cfg.Tokens.TestingBot, nil
	}
	if cfg.Tokens.Bot == "" {
		return "", fmt.Errorf("tokens.bot is required")
	}
	return cfg.Tokens.Bot, nil
}

// DSN returns the Postgres connection string of the selected credential set.
func (cfg *Config) DSN(testing bool) (string, error) {
	if testing {
		if cfg.Databases.PSQLTesting == "" {
			return "", fmt.Errorf("databases.psql_testing is required with -testing")
		}
		return cfg.Databases.PSQLTesting, nil
	}
	if cfg.Databases.PSQL == "" {
		return "", fmt.Errorf("databases.psql is required")
	}
	return cfg.Databases.PSQL, nil
}

// DefaultPrefix is the prefix accepted everywhere, before custom guild prefixes.
func DefaultPrefix(testing bool) string {
	if testing {
		return ";"
	}
	return "fish "
}

// LoadEnv loads a .env file into the process environment when one exists.
// Variables already set are left untouched.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Resolve returns the config file path from FISHIE_CONFIG env var,
// falling back to config.toml in the working directory.
// The -config CLI flag is handled separately in main.go.
func Resolve() string {
	path := os.Getenv("FISHIE_CONFIG")
	if path == "" {
		path = "config.toml"
	}
	path = os.ExpandEnv(path)
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
