package allowlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/hookerr"
)

func metaServer(t *testing.T, handler http.HandlerFunc) *MetaFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMetaFetcher(srv.URL+"/meta", srv.Client())
}

func TestMetaFetcher_Good(t *testing.T) {
	f := metaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/meta", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hooks": ["192.30.252.0/22", "2620:112:3000::/44"], "web": ["1.2.3.4/32"]}`))
	})

	prefixes, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("192.30.252.0/22"),
		netip.MustParsePrefix("2620:112:3000::/44"),
	}, prefixes)
}

func TestMetaFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		body    string
		wantMsg string
	}{
		{
			name:    "missing hooks field",
			status:  http.StatusOK,
			body:    `{}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>oops</html>`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "null hooks",
			status:  http.StatusOK,
			body:    `{"hooks": null}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "invalid block",
			status:  http.StatusOK,
			body:    `{"hooks": ["192.30.252.0/99"]}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "bad status",
			status:  http.StatusForbidden,
			body:    `{"hooks": ["192.30.252.0/22"]}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "remaining zero without reset",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0"},
			body:    `{"hooks": ["192.30.252.0/22"]}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "malformed reset",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "abc"},
			body:    `{"hooks": ["192.30.252.0/22"]}`,
			wantMsg: "Error reaching GitHub",
		},
		{
			name:    "rate limited",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1445929478"},
			body:    `{"hooks": ["192.30.252.0/22"]}`,
			wantMsg: "Rate limited from GitHub until Tue, 27 Oct 2015 07:04:38 GMT",
		},
		{
			name:    "server error with exhausted quota",
			status:  http.StatusBadGateway,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1445929478"},
			wantMsg: "Rate limited from GitHub until Tue, 27 Oct 2015 07:04:38 GMT",
		},
		{
			name:    "reset without exhausted quota",
			status:  http.StatusBadGateway,
			headers: map[string]string{"X-RateLimit-Remaining": "12", "X-RateLimit-Reset": "1445929478"},
			wantMsg: "Error reaching GitHub",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := metaServer(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			prefixes, err := f.Fetch(context.Background())
			require.Error(t, err)
			assert.Nil(t, prefixes)

			status, msg := hookerr.Status(err)
			assert.Equal(t, http.StatusServiceUnavailable, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestMetaFetcher_RateLimitCarriesReset(t *testing.T) {
	f := metaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1445929478")
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := f.Fetch(context.Background())
	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, time.Unix(1445929478, 0).UTC(), rl.Reset)
}

func TestMetaFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/meta"
	srv.Close()

	f := NewMetaFetcher(url, &http.Client{Timeout: time.Second})
	_, err := f.Fetch(context.Background())
	require.Error(t, err)

	status, msg := hookerr.Status(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Error reaching GitHub", msg)
}

func TestMetaFetcher_Defaults(t *testing.T) {
	f := NewMetaFetcher("", nil)
	assert.Equal(t, DefaultMetaURL, f.URL)
	require.NoError(t, f.err)
	assert.Equal(t, "https://api.github.com/", f.client.BaseURL.String())
	assert.Equal(t, "hookgate", f.client.UserAgent)
}

func TestAPIBase(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://api.github.com/meta", want: "https://api.github.com/"},
		{url: "https://ghe.example.com/api/v3/meta", want: "https://ghe.example.com/api/v3/"},
		{url: "http://127.0.0.1:9999/meta?x=1", want: "http://127.0.0.1:9999/"},
		{url: "https://api.github.com/", wantErr: true},
		{url: "https://api.github.com/metadata", wantErr: true},
		{url: "ftp://api.github.com/meta", wantErr: true},
		{url: "/meta", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			base, err := APIBase(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, base.String())
		})
	}
}

func TestMetaFetcher_BadMetaURL(t *testing.T) {
	f := NewMetaFetcher("https://api.github.com/hooks", nil)
	_, err := f.Fetch(context.Background())
	require.Error(t, err)

	status, msg := hookerr.Status(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "Error reaching GitHub", msg)
}
