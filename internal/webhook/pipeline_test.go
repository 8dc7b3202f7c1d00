package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookgate/internal/hookerr"
	"github.com/mattjoyce/hookgate/internal/webhook/mocks"
)

var testKey = []byte("Some key")

func signedRequest(remote string, body string) Request {
	h := make(http.Header)
	h.Set(HeaderSignature, ComputeSignature(testKey, []byte(body)))
	return Request{RemoteAddr: remote, Header: h, Body: []byte(body)}
}

func TestValidator_OriginCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	origins := mocks.NewMockOriginChecker(ctrl)
	logger, logBuf := newTestLogger()
	v := NewValidator(ValidationConfig{Key: testKey, ValidateIP: true}, origins, logger)
	ctx := context.Background()

	t.Run("trusted", func(t *testing.T) {
		origins.EXPECT().Contains(gomock.Any(), netip.MustParseAddr("192.30.252.1")).Return(true, nil)
		assert.NoError(t, v.Validate(ctx, Request{RemoteAddr: "192.30.252.1:4000", Header: http.Header{}}))
	})

	t.Run("untrusted", func(t *testing.T) {
		origins.EXPECT().Contains(gomock.Any(), netip.MustParseAddr("192.30.251.255")).Return(false, nil)
		err := v.Validate(ctx, Request{RemoteAddr: "192.30.251.255:4000", Header: http.Header{}})
		status, msg := hookerr.Status(err)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, MsgUntrustedOrigin, msg)
		assert.Contains(t, logBuf.String(), "request from untrusted origin")
	})

	t.Run("upstream failure propagates", func(t *testing.T) {
		upstream := hookerr.Unavailable("Error reaching GitHub", errors.New("timeout"), nil)
		origins.EXPECT().Contains(gomock.Any(), gomock.Any()).Return(false, upstream)
		err := v.Validate(ctx, Request{RemoteAddr: "192.30.252.1:4000", Header: http.Header{}})
		status, msg := hookerr.Status(err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "Error reaching GitHub", msg)
	})
}

func TestValidator_ProxyHops(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	origins := mocks.NewMockOriginChecker(ctrl)
	logger, _ := newTestLogger()
	v := NewValidator(ValidationConfig{ValidateIP: true, TrustedProxyHops: 1}, origins, logger)
	ctx := context.Background()

	t.Run("forwarded address is checked", func(t *testing.T) {
		origins.EXPECT().Contains(gomock.Any(), netip.MustParseAddr("192.30.252.1")).Return(true, nil)
		h := http.Header{}
		h.Set(HeaderForwarded, "6.6.6.6, 192.30.252.1")
		assert.NoError(t, v.Validate(ctx, Request{RemoteAddr: "127.0.0.1:9000", Header: h}))
	})

	t.Run("missing forwarded header fails closed", func(t *testing.T) {
		// No Contains call expected.
		err := v.Validate(ctx, Request{RemoteAddr: "192.30.252.1:9000", Header: http.Header{}})
		status, _ := hookerr.Status(err)
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func TestValidator_SignatureCheck(t *testing.T) {
	logger, _ := newTestLogger()
	v := NewValidator(ValidationConfig{Key: testKey, ValidateSignature: true}, nil, logger)
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, signedRequest("1.2.3.4:1", "{}")))

	missing := Request{RemoteAddr: "1.2.3.4:1", Header: http.Header{}, Body: []byte("{}")}
	status, msg := hookerr.Status(v.Validate(ctx, missing))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, MsgMissingSignature, msg)

	wrong := signedRequest("1.2.3.4:1", "{}")
	wrong.Header.Set(HeaderSignature, "sha1=abc")
	status, msg = hookerr.Status(v.Validate(ctx, wrong))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, MsgWrongSignature, msg)

	tampered := signedRequest("1.2.3.4:1", "{}")
	tampered.Body = []byte(`{"a":1}`)
	status, _ = hookerr.Status(v.Validate(ctx, tampered))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestValidator_OriginCheckedBeforeSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	origins := mocks.NewMockOriginChecker(ctrl)
	origins.EXPECT().Contains(gomock.Any(), gomock.Any()).Return(false, nil)

	logger, _ := newTestLogger()
	v := NewValidator(ValidationConfig{Key: testKey, ValidateIP: true, ValidateSignature: true}, origins, logger)

	// No signature header: the origin failure must win.
	err := v.Validate(context.Background(), Request{RemoteAddr: "8.8.8.8:1", Header: http.Header{}})
	status, _ := hookerr.Status(err)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestValidator_Toggles(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Contains must never be called while IP validation is off.
	origins := mocks.NewMockOriginChecker(ctrl)
	logger, _ := newTestLogger()
	v := NewValidator(ValidationConfig{Key: testKey, ValidateIP: true, ValidateSignature: true}, origins, logger)
	ctx := context.Background()

	v.SetValidateIP(false)
	v.SetValidateSignature(false)
	assert.False(t, v.ValidatesIP())
	assert.False(t, v.ValidatesSignature())

	req := Request{RemoteAddr: "garbage", Header: http.Header{}}
	require.NoError(t, v.Validate(ctx, req))

	v.SetValidateSignature(true)
	status, _ := hookerr.Status(v.Validate(ctx, req))
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestValidator_NilOriginsFailsUnavailable(t *testing.T) {
	logger, _ := newTestLogger()
	v := NewValidator(ValidationConfig{ValidateIP: true}, nil, logger)
	status, _ := hookerr.Status(v.Validate(context.Background(), Request{RemoteAddr: "1.2.3.4:1", Header: http.Header{}}))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
