// Copyright 2021 The requests Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import "time"

// Config is the file and environment configuration of a Session.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Adapter AdapterConfig `mapstructure:"adapter"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SessionConfig holds the Session-wide request settings.
type SessionConfig struct {
	Headers      map[string]string `mapstructure:"headers"`
	Params       map[string]string `mapstructure:"params"`
	MaxRedirects int               `mapstructure:"max_redirects"`
	TrustEnv     bool              `mapstructure:"trust_env"`
	Stream       bool              `mapstructure:"stream"`
	Verify       bool              `mapstructure:"verify"`
	CABundle     string            `mapstructure:"ca_bundle"`
	CertFile     string            `mapstructure:"cert_file"`
	KeyFile      string            `mapstructure:"key_file"`
	Proxies      []ProxyConfig     `mapstructure:"proxies"`
	Timeout      TimeoutConfig     `mapstructure:"timeout"`
	Auth         AuthConfig        `mapstructure:"auth"`
}

// ProxyConfig maps one Proxies key, such as "https://api.example.com"
// or "all", to a proxy URL. Proxies are a list because viper splits
// map keys at dots.
type ProxyConfig struct {
	Match string `mapstructure:"match"`
	URL   string `mapstructure:"url"`
}

// TimeoutConfig holds the per-attempt timeouts. Zero means no timeout.
type TimeoutConfig struct {
	Connect time.Duration `mapstructure:"connect"`
	Read    time.Duration `mapstructure:"read"`
}

// AuthConfig selects the Session's authentication strategy.
type AuthConfig struct {
	// Type is one of "", "basic", "digest", or "bearer".
	Type     string `mapstructure:"type"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

// AdapterConfig holds the connection pool and retry settings of the
// Session's HTTP adapter.
type AdapterConfig struct {
	PoolConnections int     `mapstructure:"pool_connections"`
	PoolMaxSize     int     `mapstructure:"pool_maxsize"`
	PoolBlock       bool    `mapstructure:"pool_block"`
	MaxRetries      int     `mapstructure:"max_retries"`
	RetryStatuses   []int   `mapstructure:"retry_statuses"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	RateBurst       int     `mapstructure:"rate_burst"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
