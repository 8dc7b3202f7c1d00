// Package doctor validates hookgate configuration and reports risky settings.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mattjoyce/hookgate/internal/allowlist"
	"github.com/mattjoyce/hookgate/internal/config"
)

// minSafeTTL is the shortest refresh interval that stays inside GitHub's
// unauthenticated rate limit of 60 requests per hour.
const minSafeTTL = time.Minute

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a parsed configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a parsed (not necessarily valid) config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateServer(r)
	d.validateSignature(r)
	d.validateOrigin(r)
	d.validateAllowlist(r)
	d.warnMissingEnvVars(r)
	d.validateLock(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	switch strings.ToLower(d.cfg.Service.LogFormat) {
	case "json", "text":
	default:
		d.addError(r, "service", "service.log_format",
			fmt.Sprintf("log_format %q must be json or text", d.cfg.Service.LogFormat))
	}
	switch strings.ToUpper(d.cfg.Service.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		d.addWarning(r, "service", "service.log_level",
			fmt.Sprintf("unknown log_level %q, INFO will be used", d.cfg.Service.LogLevel))
	}
}

// validateServer checks the listener and hook route.
func (d *Doctor) validateServer(r *Result) {
	s := d.cfg.Server
	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		d.addError(r, "server", "server.listen", fmt.Sprintf("invalid listen address %q: %v", s.Listen, err))
	}
	if !strings.HasPrefix(s.Path, "/") {
		d.addError(r, "server", "server.path", fmt.Sprintf("path %q must start with '/'", s.Path))
	} else if strings.TrimSuffix(s.Path, "/") == "/healthz" {
		d.addError(r, "server", "server.path", "path conflicts with the /healthz route")
	}
	if _, err := config.ParseByteSize(s.MaxBodySize); err != nil {
		d.addError(r, "server", "server.max_body_size", err.Error())
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 {
		d.addError(r, "server", "server", "timeouts must not be negative")
	}
}

// validateSignature checks the shared secret when signatures are checked.
func (d *Doctor) validateSignature(r *Result) {
	v := d.cfg.Validation
	if !v.SignatureValidation() {
		d.addWarning(r, "validation", "validation.validate_signature",
			"signature validation disabled; payloads are not authenticated")
		return
	}

	secret, err := v.ResolveSecret()
	switch {
	case err != nil:
		d.addError(r, "validation", "validation.secret", err.Error())
	case secret == "":
		d.addError(r, "validation", "validation.secret",
			"secret or secret_env is required when signature validation is enabled")
	case v.SecretEnv == "" && !envVarRe.MatchString(v.Secret):
		d.addWarning(r, "validation", "validation.secret",
			"secret is stored inline; prefer secret_env")
	}
}

// validateOrigin checks the proxy hop count against the IP toggle.
func (d *Doctor) validateOrigin(r *Result) {
	v := d.cfg.Validation
	if v.TrustedProxyHops < 0 {
		d.addError(r, "validation", "validation.trusted_proxy_hops",
			fmt.Sprintf("trusted_proxy_hops must be >= 0, got %d", v.TrustedProxyHops))
	}
	if !v.IPValidation() {
		d.addWarning(r, "validation", "validation.validate_ip",
			"IP validation disabled; requests from any address are accepted")
		if v.TrustedProxyHops > 0 {
			d.addWarning(r, "validation", "validation.trusted_proxy_hops",
				"trusted_proxy_hops has no effect while validate_ip is off")
		}
	}
}

// validateAllowlist checks the metadata source and refresh timing.
func (d *Doctor) validateAllowlist(r *Result) {
	a := d.cfg.Allowlist
	if d.cfg.Validation.IPValidation() {
		u, err := url.Parse(a.MetaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			d.addError(r, "allowlist", "allowlist.meta_url",
				fmt.Sprintf("meta_url %q must be an http(s) URL", a.MetaURL))
		} else if _, err := allowlist.APIBase(a.MetaURL); err != nil {
			d.addError(r, "allowlist", "allowlist.meta_url",
				fmt.Sprintf("meta_url %q must end in /meta", a.MetaURL))
		} else if u.Scheme == "http" {
			d.addWarning(r, "allowlist", "allowlist.meta_url",
				"meta_url uses plain http; ranges could be tampered with in transit")
		}
	}
	if a.TTL < 0 {
		d.addError(r, "allowlist", "allowlist.ttl", "ttl must not be negative")
	} else if a.TTL < minSafeTTL {
		d.addWarning(r, "allowlist", "allowlist.ttl",
			fmt.Sprintf("ttl %s may exhaust GitHub's unauthenticated rate limit", a.TTL))
	}
	if a.FetchTimeout < 0 {
		d.addError(r, "allowlist", "allowlist.fetch_timeout", "fetch_timeout must not be negative")
	}
}

// warnMissingEnvVars warns about ${VAR} references where VAR is not set.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	check := func(field, value string) {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			if os.Getenv(m[1]) == "" {
				d.addWarning(r, "env_vars", field, fmt.Sprintf("environment variable ${%s} not set", m[1]))
			}
		}
	}
	check("server.listen", d.cfg.Server.Listen)
	check("server.path", d.cfg.Server.Path)
	check("allowlist.meta_url", d.cfg.Allowlist.MetaURL)
}

// validateLock compares the source file with .checksums when present.
func (d *Doctor) validateLock(r *Result) {
	if d.cfg.SourcePath == "" {
		return
	}
	manifest, err := config.LoadChecksums(filepath.Dir(d.cfg.SourcePath))
	if err != nil {
		d.addWarning(r, "integrity", "", "config is not locked (run 'hookgate config lock')")
		return
	}
	base := filepath.Base(d.cfg.SourcePath)
	expected, ok := manifest.Hashes[base]
	if !ok {
		d.addError(r, "integrity", "", fmt.Sprintf("%s has no hash in %s", base, config.ChecksumFilename))
		return
	}
	if err := config.VerifyFileHash(d.cfg.SourcePath, expected); err != nil {
		d.addError(r, "integrity", "", err.Error())
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
