package webhook

import (
	"fmt"

	"github.com/mattjoyce/hookgate/internal/config"
)

// FromGlobalConfig converts the server and validation sections of
// config.Config to webhook.Config. It resolves the secret and parses the body
// size limit.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	secret, err := cfg.Validation.ResolveSecret()
	if err != nil {
		return Config{}, err
	}

	maxBodySize := int64(DefaultMaxBodySize)
	if cfg.Server.MaxBodySize != "" {
		maxBodySize, err = config.ParseByteSize(cfg.Server.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Server.MaxBodySize, err)
		}
	}

	return Config{
		Listen:       cfg.Server.Listen,
		Path:         cfg.Server.Path,
		MaxBodySize:  maxBodySize,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Validation: ValidationConfig{
			Key:               []byte(secret),
			ValidateIP:        cfg.Validation.IPValidation(),
			ValidateSignature: cfg.Validation.SignatureValidation(),
			TrustedProxyHops:  cfg.Validation.TrustedProxyHops,
		},
	}, nil
}
