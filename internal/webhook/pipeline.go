package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"sync/atomic"

	"github.com/mattjoyce/hookgate/internal/hookerr"
)

//go:generate mockgen -destination=mocks/mock_origin.go -package=mocks github.com/mattjoyce/hookgate/internal/webhook OriginChecker

// OriginChecker tells whether an address belongs to GitHub.
type OriginChecker interface {
	Contains(ctx context.Context, addr netip.Addr) (bool, error)
}

// Validation failure messages.
const (
	MsgUntrustedOrigin  = "Requests must originate from GitHub"
	MsgMissingSignature = "Missing signature"
	MsgWrongSignature   = "Wrong signature"
)

// Request is the raw request metadata the validator needs.
type Request struct {
	RemoteAddr string
	Header     http.Header
	Body       []byte
}

// Validator runs the origin and signature checks in that order, stopping at
// the first failure. Both checks can be switched on and off at runtime.
type Validator struct {
	key     []byte
	hops    int
	origins OriginChecker
	logger  *slog.Logger

	validateIP        atomic.Bool
	validateSignature atomic.Bool
}

// NewValidator creates a validator. origins may be nil only if IP validation
// stays disabled.
func NewValidator(cfg ValidationConfig, origins OriginChecker, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		key:     append([]byte(nil), cfg.Key...),
		hops:    cfg.TrustedProxyHops,
		origins: origins,
		logger:  logger,
	}
	v.validateIP.Store(cfg.ValidateIP)
	v.validateSignature.Store(cfg.ValidateSignature)
	return v
}

// SetValidateIP turns the origin check on or off.
func (v *Validator) SetValidateIP(on bool) { v.validateIP.Store(on) }

// SetValidateSignature turns the signature check on or off.
func (v *Validator) SetValidateSignature(on bool) { v.validateSignature.Store(on) }

// ValidatesIP reports whether the origin check is on.
func (v *Validator) ValidatesIP() bool { return v.validateIP.Load() }

// ValidatesSignature reports whether the signature check is on.
func (v *Validator) ValidatesSignature() bool { return v.validateSignature.Load() }

// Validate returns nil if req passes every enabled check, or a classified
// hookerr envelope otherwise.
func (v *Validator) Validate(ctx context.Context, req Request) error {
	if v.validateIP.Load() {
		if err := v.checkOrigin(ctx, req); err != nil {
			return err
		}
	}
	if v.validateSignature.Load() {
		if err := v.checkSignature(req); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkOrigin(ctx context.Context, req Request) error {
	addr, err := ResolveClientAddr(req.RemoteAddr, req.Header, v.hops)
	if err != nil {
		v.logger.Warn("client address unresolvable",
			"remote_addr", req.RemoteAddr,
			"trusted_proxy_hops", v.hops,
		)
		return hookerr.Forbidden(MsgUntrustedOrigin)
	}

	if v.origins == nil {
		return hookerr.Unavailable("origin allowlist not configured", nil, nil)
	}
	ok, err := v.origins.Contains(ctx, addr)
	if err != nil {
		v.logger.Error("origin allowlist unavailable", "client_addr", addr.String(), "error", err)
		return err
	}
	if !ok {
		v.logger.Warn("request from untrusted origin", "client_addr", addr.String())
		return hookerr.Forbidden(MsgUntrustedOrigin)
	}
	return nil
}

func (v *Validator) checkSignature(req Request) error {
	signature := req.Header.Get(HeaderSignature)
	if signature == "" {
		return hookerr.BadRequest(MsgMissingSignature)
	}
	if !VerifySignature(signature, v.key, req.Body) {
		v.logger.Warn("webhook signature verification failed",
			"delivery_id", req.Header.Get(HeaderDelivery),
		)
		return hookerr.BadRequest(MsgWrongSignature)
	}
	return nil
}
