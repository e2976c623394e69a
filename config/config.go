// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gogama/requests"
	"github.com/gogama/requests/adapter"
	"github.com/gogama/requests/auth"
	"github.com/gogama/requests/timeout"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration. A key's dots become underscores, so session.max_redirects
// is read from REQUESTS_SESSION_MAX_REDIRECTS.
const EnvPrefix = "REQUESTS"

// Load reads the configuration from the file at path, which may be
// YAML, JSON, or TOML, applying defaults and environment overrides. If
// path is empty only defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic("requests/config: bad defaults: " + err.Error())
	}
	return &cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Session defaults
	v.SetDefault("session.max_redirects", requests.DefaultMaxRedirects)
	v.SetDefault("session.trust_env", true)
	v.SetDefault("session.stream", false)
	v.SetDefault("session.verify", true)
	v.SetDefault("session.ca_bundle", "")
	v.SetDefault("session.cert_file", "")
	v.SetDefault("session.key_file", "")
	v.SetDefault("session.timeout.connect", time.Duration(0))
	v.SetDefault("session.timeout.read", time.Duration(0))
	v.SetDefault("session.auth.type", "")
	v.SetDefault("session.auth.username", "")
	v.SetDefault("session.auth.password", "")
	v.SetDefault("session.auth.token", "")

	// Adapter defaults
	v.SetDefault("adapter.pool_connections", adapter.DefaultPoolConnections)
	v.SetDefault("adapter.pool_maxsize", adapter.DefaultPoolMaxSize)
	v.SetDefault("adapter.pool_block", false)
	v.SetDefault("adapter.max_retries", 0)
	v.SetDefault("adapter.retry_statuses", []int{})
	v.SetDefault("adapter.rate_limit", 0.0)
	v.SetDefault("adapter.rate_burst", 1)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// Validate checks if the configuration is valid.
func Validate(cfg *Config) error {
	s := &cfg.Session
	if s.MaxRedirects < 0 {
		return fmt.Errorf("session.max_redirects must not be negative: %d", s.MaxRedirects)
	}
	if s.Timeout.Connect < 0 || s.Timeout.Read < 0 {
		return errors.New("session.timeout values must not be negative")
	}
	if s.KeyFile != "" && s.CertFile == "" {
		return errors.New("session.key_file requires session.cert_file")
	}
	if !s.Verify && s.CABundle != "" {
		return errors.New("session.ca_bundle cannot be used with session.verify false")
	}
	for i, p := range s.Proxies {
		if p.Match == "" {
			return fmt.Errorf("session.proxies[%d].match is required", i)
		}
		if _, err := adapter.ParseProxyURL(p.URL); err != nil {
			return fmt.Errorf("session.proxies[%d].url: %w", i, err)
		}
	}
	for k := range s.Headers {
		if strings.TrimSpace(k) == "" {
			return errors.New("session.headers contains an empty name")
		}
	}

	switch strings.ToLower(s.Auth.Type) {
	case "":
	case "basic", "digest":
		if s.Auth.Username == "" {
			return fmt.Errorf("session.auth.username is required for %s auth", s.Auth.Type)
		}
	case "bearer":
		if s.Auth.Token == "" {
			return errors.New("session.auth.token is required for bearer auth")
		}
	default:
		return fmt.Errorf("invalid session.auth.type: %s", s.Auth.Type)
	}

	a := &cfg.Adapter
	if a.PoolConnections < 1 {
		return fmt.Errorf("adapter.pool_connections must be positive: %d", a.PoolConnections)
	}
	if a.PoolMaxSize < 1 {
		return fmt.Errorf("adapter.pool_maxsize must be positive: %d", a.PoolMaxSize)
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("adapter.max_retries must not be negative: %d", a.MaxRetries)
	}
	for _, code := range a.RetryStatuses {
		if code < 100 || code > 599 {
			return fmt.Errorf("invalid adapter.retry_statuses code: %d", code)
		}
	}
	if a.RateLimit < 0 {
		return fmt.Errorf("adapter.rate_limit must not be negative: %g", a.RateLimit)
	}
	if a.RateLimit > 0 && a.RateBurst < 1 {
		return fmt.Errorf("adapter.rate_burst must be positive: %d", a.RateBurst)
	}

	// Validate logging level
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level)); err != nil || cfg.Logging.Level == "" {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// Logger returns a logger writing to w in the configured level and
// format.
func (c *Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	if c.Logging.Format == "json" {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !c.Logging.Color,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

// AdapterOptions returns the options of the configured HTTP adapter,
// logging to logger.
func (c *Config) AdapterOptions(logger zerolog.Logger) []adapter.Option {
	a := &c.Adapter
	opts := []adapter.Option{
		adapter.WithPoolConnections(a.PoolConnections),
		adapter.WithPoolMaxSize(a.PoolMaxSize),
		adapter.WithPoolBlock(a.PoolBlock),
		adapter.WithLogger(logger),
	}
	if len(a.RetryStatuses) > 0 {
		opts = append(opts, adapter.WithRetryStatuses(a.MaxRetries, a.RetryStatuses...))
	} else if a.MaxRetries > 0 {
		opts = append(opts, adapter.WithMaxRetries(a.MaxRetries))
	}
	if a.RateLimit > 0 {
		opts = append(opts, adapter.WithRateLimit(a.RateLimit, a.RateBurst))
	}
	return opts
}

// NewSession validates the configuration and returns a Session built
// from it, logging to standard error.
func (c *Config) NewSession() (*requests.Session, error) {
	return c.NewSessionWithLogger(c.Logger(os.Stderr))
}

// NewSessionWithLogger is like NewSession but logs to logger.
func (c *Config) NewSessionWithLogger(logger zerolog.Logger) (*requests.Session, error) {
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sc := &c.Session
	s := requests.NewSessionWithAdapter(adapter.New(c.AdapterOptions(logger)...))
	s.Logger = logger
	s.MaxRedirects = sc.MaxRedirects
	s.TrustEnv = sc.TrustEnv
	s.Stream = sc.Stream

	for k, v := range sc.Headers {
		s.Header.Set(http.CanonicalHeaderKey(k), v)
	}
	if len(sc.Params) > 0 {
		s.Params = make(url.Values, len(sc.Params))
		for k, v := range sc.Params {
			s.Params.Set(k, v)
		}
	}
	if len(sc.Proxies) > 0 {
		s.Proxies = make(adapter.Proxies, len(sc.Proxies))
		for _, p := range sc.Proxies {
			s.Proxies[p.Match] = p.URL
		}
	}

	switch {
	case !sc.Verify:
		s.Verify = adapter.VerifyNone
	case sc.CABundle != "":
		s.Verify = adapter.VerifyCA(sc.CABundle)
	}
	s.Cert = adapter.Cert{CertFile: sc.CertFile, KeyFile: sc.KeyFile}

	if sc.Timeout.Connect > 0 || sc.Timeout.Read > 0 {
		s.Timeout = timeout.Pair(sc.Timeout.Connect, sc.Timeout.Read)
	}

	switch strings.ToLower(sc.Auth.Type) {
	case "basic":
		s.Auth = &auth.Basic{Username: sc.Auth.Username, Password: sc.Auth.Password}
	case "digest":
		s.Auth = auth.NewDigest(sc.Auth.Username, sc.Auth.Password)
	case "bearer":
		s.Auth = &auth.Bearer{Token: sc.Auth.Token}
	}

	return s, nil
}
