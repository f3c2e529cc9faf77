package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aperoland/aperoland-chat/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAddr               = "localhost:8000"
	defaultLogLevel           = "INFO"
	defaultHistorySize        = 50
	defaultHistoryCacheSize   = 128
	defaultPersistenceType    = "buntdb"
	defaultPersistenceDSN     = ":memory:"
	defaultPersistenceTimeout = 5 * time.Second
	defaultCookieName         = "aperolandTicket"
	defaultPurgeSpec          = "@daily"
)

// Config is the global configuration object which is filled via the configuration file, the environment
// (prefix APEROLAND_) and the command line.
type Config struct {
	Addr              string            `mapstructure:"addr"`
	LogLevel          string            `mapstructure:"log_level"`
	Timezone          string            `mapstructure:"timezone"`
	AllowedOrigins    []string          `mapstructure:"allowed_origins"`
	SSLCert           string            `mapstructure:"ssl_cert"`
	SSLKey            string            `mapstructure:"ssl_key"`
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	OIDCConfigs       []OIDCConfig      `mapstructure:"oidc"`
	FilterConfig      FilterConfig      `mapstructure:"filter"`
}

// HistoryConfig configures the history endpoint, its cache and the retention of stored chat messages.
// A zero Retention keeps messages forever.
type HistoryConfig struct {
	Size      int           `mapstructure:"size"`
	CacheSize int           `mapstructure:"cache_size"`
	Retention time.Duration `mapstructure:"retention"`
	PurgeSpec string        `mapstructure:"purge_spec"`
}

// PersistenceConfig selects the chat persistence backend. Type is one of "buntdb", "sqlite", "postgres" or
// "gorm"; for "gorm", Dialect selects "sqlite" or "postgres".
type PersistenceConfig struct {
	Type      string        `mapstructure:"type"`
	Dialect   string        `mapstructure:"dialect"`
	DSN       string        `mapstructure:"dsn"`
	FlockPath string        `mapstructure:"flock_path"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// AuthConfig configures the session ticket issued by the web application. Without a JWTSecret tickets are ignored.
type AuthConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret"`
	CookieName  string `mapstructure:"cookie_name"`
	AllowGuests bool   `mapstructure:"allow_guests"`
}

// An OIDCConfig object configures an OpenID Connect provider that is used to authenticate users. Users provide
// an ID token and the name of the provider, the authentication is then performed via verification of the token.
type OIDCConfig struct {
	Name        string `mapstructure:"name"`
	ClientId    string `mapstructure:"client_id"`
	ProviderUrl string `mapstructure:"provider_url"` // f.e. "https://accounts.google.com"
}

// FilterConfig holds the expression every chat message must satisfy, empty accepts everything.
type FilterConfig struct {
	Message string `mapstructure:"message"`
}

// Location returns the time zone used for the date and time of chat messages.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("addr", defaultAddr, "ws service address (including port)")
	flagSet.String("log-level", defaultLogLevel, "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flagSet.String("ssl-cert", "", "SSL cert for websocket (optional)")
	flagSet.String("ssl-key", "", "SSL key for websocket (optional)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.Replace(name, "-", "_", -1))
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. Flags in flagSet
// (may be nil) override the file, environment variables override both.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", defaultAddr)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("history.size", defaultHistorySize)
	v.SetDefault("history.cache_size", defaultHistoryCacheSize)
	v.SetDefault("history.purge_spec", defaultPurgeSpec)
	v.SetDefault("persistence.type", defaultPersistenceType)
	v.SetDefault("persistence.dsn", defaultPersistenceDSN)
	v.SetDefault("persistence.timeout", defaultPersistenceTimeout)
	v.SetDefault("auth.cookie_name", defaultCookieName)
	if flagSet != nil {
		flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
		err := v.BindPFlags(flagSet)
		if err != nil {
			globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
		}
	}
	v.SetEnvPrefix("APEROLAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		v.SetConfigType("toml")
		err = v.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}
	cfg := Config{}
	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg)
	return &cfg, nil
}
