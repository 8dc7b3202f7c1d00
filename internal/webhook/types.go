package webhook

import (
	"encoding/json"
	"net/http"
	"time"
)

// GitHub delivery headers.
const (
	HeaderSignature = "X-Hub-Signature"
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
	HeaderForwarded = "X-Forwarded-For"
)

// Config holds webhook server configuration.
type Config struct {
	Listen string `yaml:"listen"`

	// Path is the URL path deliveries are POSTed to (default: "/hooks")
	Path string `yaml:"path"`

	// MaxBodySize is the maximum allowed request body size in bytes (default: 1MB)
	MaxBodySize int64 `yaml:"max_body_size,omitempty"`

	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	Validation ValidationConfig `yaml:"validation"`
}

// ValidationConfig controls the per-request checks.
type ValidationConfig struct {
	// Key is the shared secret used for the HMAC signature.
	Key []byte `yaml:"-"`

	ValidateIP        bool `yaml:"validate_ip"`
	ValidateSignature bool `yaml:"validate_signature"`

	// TrustedProxyHops is the number of reverse proxies in front of the
	// server whose X-Forwarded-For entries are believed.
	TrustedProxyHops int `yaml:"trusted_proxy_hops"`
}

// Delivery is one inbound webhook event.
type Delivery struct {
	Event string
	// ID is the X-GitHub-Delivery GUID.
	ID      string
	Body    []byte
	Payload any
}

// Decode unmarshals the raw body into v.
func (d Delivery) Decode(v any) error {
	return json.Unmarshal(d.Body, v)
}

// Response is what a handler sends back to GitHub.
type Response struct {
	// Status defaults to 200 when zero.
	Status int
	Header http.Header
	Body   []byte
}

// Text builds a plain text response.
func Text(status int, body string) Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return Response{Status: status, Header: h, Body: []byte(body)}
}

// JSON builds a JSON response. It fails only if v cannot be marshalled.
func JSON(status int, v any) (Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Response{}, err
	}
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return Response{Status: status, Header: h, Body: body}, nil
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is served on /healthz.
type HealthResponse struct {
	Status           string   `json:"status"`
	Hooks            []string `json:"hooks"`
	AllowlistBlocks  int      `json:"allowlist_blocks"`
	AllowlistAgeSecs *int64   `json:"allowlist_age_seconds,omitempty"`
}

// Default values
const (
	DefaultPath         = "/hooks"
	DefaultListen       = "127.0.0.1:8081"
	DefaultMaxBodySize  = 1048576 // 1 MB
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	notUsedBody = "Hook not used"
)
