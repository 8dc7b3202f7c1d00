package config

import "time"

// Config represents the complete hookgate configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Server     ServerConfig     `yaml:"server"`
	Validation ValidationConfig `yaml:"validation"`
	Allowlist  AllowlistConfig  `yaml:"allowlist"`

	// SourcePath is the absolute path the config was loaded from.
	SourcePath string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the webhook listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// Path is the route deliveries are POSTed to.
	Path string `yaml:"path"`
	// MaxBodySize accepts plain bytes or KB/MB/GB suffixes (e.g. "1MB").
	MaxBodySize  string        `yaml:"max_body_size,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// ValidationConfig defines the request checks.
type ValidationConfig struct {
	// Secret is the HMAC key. SecretEnv names an environment variable to
	// read it from instead and takes precedence.
	Secret    string `yaml:"secret,omitempty"`
	SecretEnv string `yaml:"secret_env,omitempty"`

	// Both checks default to on.
	ValidateIP        *bool `yaml:"validate_ip,omitempty"`
	ValidateSignature *bool `yaml:"validate_signature,omitempty"`

	TrustedProxyHops int `yaml:"trusted_proxy_hops"`
}

// AllowlistConfig defines where GitHub's ranges come from and how long they
// are trusted.
type AllowlistConfig struct {
	MetaURL      string        `yaml:"meta_url"`
	TTL          time.Duration `yaml:"ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// IPValidation reports whether origin checks are on.
func (v ValidationConfig) IPValidation() bool {
	return v.ValidateIP == nil || *v.ValidateIP
}

// SignatureValidation reports whether signature checks are on.
func (v ValidationConfig) SignatureValidation() bool {
	return v.ValidateSignature == nil || *v.ValidateSignature
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "hookgate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8081",
			Path:         "/hooks",
			MaxBodySize:  "1MB",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Allowlist: AllowlistConfig{
			MetaURL:      "https://api.github.com/meta",
			TTL:          60 * time.Second,
			FetchTimeout: 10 * time.Second,
		},
	}
}
