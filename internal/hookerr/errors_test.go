package hookerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "bad request", err: BadRequest("Missing signature"), wantStatus: http.StatusBadRequest, wantMsg: "Missing signature"},
		{name: "forbidden", err: Forbidden("Requests must originate from GitHub"), wantStatus: http.StatusForbidden, wantMsg: "Requests must originate from GitHub"},
		{name: "too large", err: PayloadTooLarge("payload too large"), wantStatus: http.StatusRequestEntityTooLarge, wantMsg: "payload too large"},
		{name: "upstream", err: Unavailable("Error reaching GitHub", nil, nil), wantStatus: http.StatusServiceUnavailable, wantMsg: "Error reaching GitHub"},
		{name: "upstream with source", err: Unavailable("Error reaching GitHub", errors.New("dial tcp: refused"), nil), wantStatus: http.StatusServiceUnavailable, wantMsg: "Error reaching GitHub"},
		{name: "wrapped envelope", err: fmt.Errorf("validate: %w", Forbidden("nope")), wantStatus: http.StatusForbidden, wantMsg: "nope"},
		{name: "plain error", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: InternalMessage},
		{name: "configuration has no status", err: Configuration("ping hook already registered", nil), wantStatus: http.StatusInternalServerError, wantMsg: InternalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := Status(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestEnvelopeCategories(t *testing.T) {
	var rich *goerrors.Error

	require.True(t, goerrors.As(Unavailable("Error reaching GitHub", nil, map[string]any{"url": "x"}), &rich))
	assert.Equal(t, goerrors.CategoryExternal, rich.Category)
	assert.Equal(t, CodeUpstream, rich.TextCode)
	assert.Equal(t, "x", rich.Metadata["url"])

	require.True(t, goerrors.As(Configuration("dup", nil), &rich))
	assert.Equal(t, goerrors.CategoryConflict, rich.Category)
}

func TestIsAndMessage(t *testing.T) {
	err := Configuration("ping hook already registered", nil)
	assert.True(t, Is(err, CodeConfiguration))
	assert.False(t, Is(err, CodeBadRequest))
	assert.False(t, Is(errors.New("plain"), CodeConfiguration))

	assert.Equal(t, "ping hook already registered", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
}
