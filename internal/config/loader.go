package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/hookgate/internal/allowlist"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultFilename is looked up when a directory is given.
const DefaultFilename = "hookgate.yaml"

// Load reads, verifies and validates the configuration at configPath, which
// may be a file or a directory containing hookgate.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := resolvePath(configPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", absPath, err)
	}

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML after ${VAR} interpolation and applies defaults. It
// does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	return applyConfigDefaults(&cfg), nil
}

// ResolvePath returns the absolute config file path for configPath.
func ResolvePath(configPath string) (string, error) {
	return resolvePath(configPath)
}

func resolvePath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, DefaultFilename)
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but %s not found: %s", DefaultFilename, absPath)
		}
	}
	return absPath, nil
}

// verifyConfigHash checks the file against .checksums when one exists next
// to it.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		// If .checksums is missing, we skip verification.
		return nil
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: hookgate config lock --config %s", basename, dir, path)
	}
	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: hookgate config lock --config %s", path, err, path)
	}
	return nil
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.Path == "" {
		cfg.Server.Path = defaults.Server.Path
	}
	if cfg.Server.MaxBodySize == "" {
		cfg.Server.MaxBodySize = defaults.Server.MaxBodySize
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaults.Server.WriteTimeout
	}

	if cfg.Allowlist.MetaURL == "" {
		cfg.Allowlist.MetaURL = defaults.Allowlist.MetaURL
	}
	if cfg.Allowlist.TTL == 0 {
		cfg.Allowlist.TTL = defaults.Allowlist.TTL
	}
	if cfg.Allowlist.FetchTimeout == 0 {
		cfg.Allowlist.FetchTimeout = defaults.Allowlist.FetchTimeout
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left as-is so validation can report them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// ResolveSecret returns the HMAC key, reading SecretEnv when set.
func (v ValidationConfig) ResolveSecret() (string, error) {
	if v.SecretEnv != "" {
		secret, ok := os.LookupEnv(v.SecretEnv)
		if !ok || secret == "" {
			return "", fmt.Errorf("validation.secret_env: environment variable %s is not set", v.SecretEnv)
		}
		return secret, nil
	}
	if envVarPattern.MatchString(v.Secret) {
		return "", fmt.Errorf("validation.secret: unresolved environment variable in %q", v.Secret)
	}
	return v.Secret, nil
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		return fmt.Errorf("server.path must start with '/', got %q", cfg.Server.Path)
	}
	if cfg.Server.Path == "/healthz" {
		return fmt.Errorf("server.path cannot be /healthz")
	}
	if _, err := ParseByteSize(cfg.Server.MaxBodySize); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	if cfg.Validation.TrustedProxyHops < 0 {
		return fmt.Errorf("validation.trusted_proxy_hops must be >= 0, got %d", cfg.Validation.TrustedProxyHops)
	}
	if cfg.Validation.SignatureValidation() {
		secret, err := cfg.Validation.ResolveSecret()
		if err != nil {
			return err
		}
		if secret == "" {
			return fmt.Errorf("validation.secret or validation.secret_env is required when signature validation is enabled")
		}
	}

	if cfg.Allowlist.TTL < 0 {
		return fmt.Errorf("allowlist.ttl must not be negative")
	}
	if cfg.Allowlist.FetchTimeout < 0 {
		return fmt.Errorf("allowlist.fetch_timeout must not be negative")
	}
	if cfg.Validation.IPValidation() {
		if _, err := allowlist.APIBase(cfg.Allowlist.MetaURL); err != nil {
			return fmt.Errorf("allowlist.meta_url: %w", err)
		}
	}

	switch strings.ToLower(cfg.Service.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("service.log_format must be json or text, got %q", cfg.Service.LogFormat)
	}

	return nil
}
