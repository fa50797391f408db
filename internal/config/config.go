// Package config loads the rofi-reddit configuration file.
//
// The file is TOML:
//
//	[reddit]
//	client_name = "linux:rofi-reddit:0.1 by /u/someone"
//	client_id = "..."
//	client_secret = "..."
//
//	[cache]
//	token_path = "/custom/access_token"  # optional
//
//	[listings]
//	limit = 15                           # optional
//
// REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET and REDDIT_CLIENT_NAME override the
// values from the file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jamesprial/rofi-reddit/internal/tokencache"
	pkgerrs "github.com/jamesprial/rofi-reddit/pkg/errors"
	"github.com/jamesprial/rofi-reddit/pkg/types"
)

const (
	// PathEnv names a config file to use instead of the default location.
	PathEnv = "ROFI_REDDIT_CONFIG"

	envClientID     = "REDDIT_CLIENT_ID"
	envClientSecret = "REDDIT_CLIENT_SECRET"
	envClientName   = "REDDIT_CLIENT_NAME"

	fileName = "config.toml"
)

// File mirrors the on-disk layout.
type File struct {
	Reddit   RedditSection   `toml:"reddit"`
	Cache    CacheSection    `toml:"cache"`
	Listings ListingsSection `toml:"listings"`
}

type RedditSection struct {
	ClientName   string `toml:"client_name"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

type CacheSection struct {
	TokenPath string `toml:"token_path"`
}

type ListingsSection struct {
	Limit int `toml:"limit"`
}

// Settings is the resolved configuration handed to the session.
type Settings struct {
	Auth      types.AppAuth
	TokenPath string
	HotLimit  int
	// Source is the file the settings were read from, or "" when only the
	// environment was used.
	Source string
}

// DefaultPath returns $ROFI_REDDIT_CONFIG if set, otherwise
// <user config dir>/rofi-reddit/config.toml.
func DefaultPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", &pkgerrs.ConfigError{Field: "path", Message: "cannot determine config directory", Err: err}
	}
	return filepath.Join(dir, tokencache.AppDir, fileName), nil
}

// Load reads path, applies environment overrides and validates the result.
// A missing file is not an error as long as the environment supplies the
// credentials.
func Load(path string) (*Settings, error) {
	var file File
	source := ""

	if path != "" {
		_, err := toml.DecodeFile(path, &file)
		switch {
		case err == nil:
			source = path
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, &pkgerrs.ConfigError{Field: "file", Message: "failed to parse " + path, Err: err}
		}
	}

	return resolve(file, source)
}

// Parse decodes a TOML document, applies environment overrides and validates
// the result.
func Parse(data string) (*Settings, error) {
	var file File
	if _, err := toml.Decode(data, &file); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "file", Message: "failed to parse config", Err: err}
	}
	return resolve(file, "")
}

func resolve(file File, source string) (*Settings, error) {
	applyEnv(&file.Reddit)

	settings := &Settings{
		Auth: types.AppAuth{
			ClientID:     strings.TrimSpace(file.Reddit.ClientID),
			ClientSecret: strings.TrimSpace(file.Reddit.ClientSecret),
			ClientName:   strings.TrimSpace(file.Reddit.ClientName),
		},
		TokenPath: expandHome(strings.TrimSpace(file.Cache.TokenPath)),
		HotLimit:  file.Listings.Limit,
		Source:    source,
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if settings.TokenPath == "" {
		p, err := tokencache.DefaultPath()
		if err != nil {
			return nil, &pkgerrs.ConfigError{Field: "cache.token_path", Message: "cannot determine cache directory", Err: err}
		}
		settings.TokenPath = p
	}

	return settings, nil
}

// Validate checks the fields a session cannot run without.
func (s *Settings) Validate() error {
	if s.Auth.ClientID == "" {
		return &pkgerrs.ConfigError{Field: "reddit.client_id", Message: "is required"}
	}
	if s.Auth.ClientSecret == "" {
		return &pkgerrs.ConfigError{Field: "reddit.client_secret", Message: "is required"}
	}
	if strings.ContainsAny(s.Auth.ClientName, "\r\n") {
		return &pkgerrs.ConfigError{Field: "reddit.client_name", Message: "cannot contain newline characters"}
	}
	if s.HotLimit < 0 || s.HotLimit > 100 {
		return &pkgerrs.ConfigError{Field: "listings.limit", Message: "cannot be negative or exceed 100"}
	}
	return nil
}

func applyEnv(r *RedditSection) {
	if v := os.Getenv(envClientID); v != "" {
		r.ClientID = v
	}
	if v := os.Getenv(envClientSecret); v != "" {
		r.ClientSecret = v
	}
	if v := os.Getenv(envClientName); v != "" {
		r.ClientName = v
	}
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~/")
	if !ok {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}
