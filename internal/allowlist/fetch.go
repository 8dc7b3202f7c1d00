package allowlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v81/github"

	"github.com/mattjoyce/hookgate/internal/hookerr"
)

// DefaultMetaURL is GitHub's metadata document listing webhook source ranges.
const DefaultMetaURL = "https://api.github.com/meta"

const (
	msgUnreachable = "Error reaching GitHub"
	msgRateLimited = "Rate limited from GitHub until "

	metaEndpoint = "meta"

	headerRateRemaining = "X-RateLimit-Remaining"
)

// Fetcher loads the current set of trusted CIDR blocks.
type Fetcher interface {
	Fetch(ctx context.Context) ([]netip.Prefix, error)
}

// MetaFetcher reads the "hooks" list of GitHub's metadata document through
// the go-github client.
type MetaFetcher struct {
	URL string

	client *gh.Client
	err    error
}

// NewMetaFetcher returns a fetcher for url, falling back to DefaultMetaURL.
// The API base is everything before the trailing "meta" path segment, so
// Enterprise hosts and test servers work the same way as api.github.com.
func NewMetaFetcher(metaURL string, httpClient *http.Client) *MetaFetcher {
	if metaURL == "" {
		metaURL = DefaultMetaURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}

	client := gh.NewClient(httpClient)
	client.UserAgent = "hookgate"

	f := &MetaFetcher{URL: metaURL, client: client}
	base, err := APIBase(metaURL)
	if err != nil {
		f.err = err
		return f
	}
	client.BaseURL = base
	return f
}

// APIBase derives the REST API root from a metadata URL ending in /meta.
func APIBase(metaURL string) (*url.URL, error) {
	u, err := url.Parse(metaURL)
	if err != nil {
		return nil, fmt.Errorf("parse meta url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("meta url %q must be an absolute http(s) URL", metaURL)
	}
	if !strings.HasSuffix(u.Path, "/"+metaEndpoint) {
		return nil, fmt.Errorf("meta url %q must end in /%s", metaURL, metaEndpoint)
	}
	base := *u
	base.Path = strings.TrimSuffix(u.Path, metaEndpoint)
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &base, nil
}

// RateLimitError is returned when GitHub refuses the request until Reset.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	return msgRateLimited + e.Reset.UTC().Format(http.TimeFormat)
}

// Fetch performs a single metadata request and validates the hooks list.
// Every failure is an upstream-unavailable envelope.
func (f *MetaFetcher) Fetch(ctx context.Context) ([]netip.Prefix, error) {
	if f.err != nil {
		return nil, hookerr.Unavailable(msgUnreachable, f.err, map[string]any{"url": f.URL})
	}

	meta, resp, err := f.client.Meta.Get(ctx)
	if err != nil {
		if rl := rateLimit(err, resp); rl != nil {
			return nil, hookerr.Unavailable(rl.Error(), rl, map[string]any{
				"url":      f.URL,
				"reset_at": rl.Reset.Format(time.RFC3339),
			})
		}
		md := map[string]any{"url": f.URL}
		if resp != nil && resp.Response != nil {
			md["status"] = resp.StatusCode
		}
		return nil, hookerr.Unavailable(msgUnreachable, err, md)
	}
	if meta == nil || meta.Hooks == nil {
		return nil, hookerr.Unavailable(msgUnreachable, errors.New("metadata has no hooks list"), map[string]any{"url": f.URL})
	}

	prefixes, err := parseHooks(meta.Hooks)
	if err != nil {
		return nil, hookerr.Unavailable(msgUnreachable, err, map[string]any{"url": f.URL})
	}
	return prefixes, nil
}

// rateLimit returns a RateLimitError when GitHub reported an exhausted quota
// with a usable reset epoch. go-github only types 403 and 429 answers, so other
// failed statuses are read from the parsed response rate.
func rateLimit(err error, resp *gh.Response) *RateLimitError {
	var ghLimit *gh.RateLimitError
	if errors.As(err, &ghLimit) && !ghLimit.Rate.Reset.Time.IsZero() {
		return &RateLimitError{Reset: ghLimit.Rate.Reset.Time.UTC()}
	}
	if resp == nil || resp.Response == nil {
		return nil
	}
	if strings.TrimSpace(resp.Header.Get(headerRateRemaining)) != "0" || resp.Rate.Reset.Time.IsZero() {
		return nil
	}
	return &RateLimitError{Reset: resp.Rate.Reset.Time.UTC()}
}

func parseHooks(blocks []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(blocks))
	for _, block := range blocks {
		p, err := netip.ParsePrefix(strings.TrimSpace(block))
		if err != nil {
			return nil, fmt.Errorf("invalid hooks block %q: %w", block, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return prefixes, nil
}
