package jadeapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	pingFn        func(context.Context) (int, error)
	xpubFn        func(context.Context, string, []uint32) (string, error)
	fingerprintFn func(context.Context, string) (string, error)
	signFn        func(context.Context, string, []byte) ([]byte, error)
}

func (s *stubBackend) Ping(ctx context.Context) (int, error) {
	if s.pingFn != nil {
		return s.pingFn(ctx)
	}
	return 0, nil
}

func (s *stubBackend) GetVersionInfo(context.Context, bool) (map[string]any, error) {
	return map[string]any{"JADE_VERSION": "1.0.30", "JADE_NETWORKS": "ALL"}, nil
}

func (s *stubBackend) GetXpub(ctx context.Context, network string, path []uint32) (string, error) {
	if s.xpubFn != nil {
		return s.xpubFn(ctx, network, path)
	}
	return "xpub", nil
}

func (s *stubBackend) GetMasterFingerprint(ctx context.Context, network string) (string, error) {
	if s.fingerprintFn != nil {
		return s.fingerprintFn(ctx, network)
	}
	return "00000000", nil
}

func (s *stubBackend) SignPSBT(ctx context.Context, network string, psbt []byte) ([]byte, error) {
	if s.signFn != nil {
		return s.signFn(ctx, network, psbt)
	}
	return psbt, nil
}

func serve(t *testing.T, backend Backend, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewHTTPHandler(backend, "testnet").Register(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestHandlePing(t *testing.T) {
	rr := serve(t, &stubBackend{pingFn: func(context.Context) (int, error) { return 1, nil }}, http.MethodGet, "/v1/ping", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":1}`, rr.Body.String())

	rr = serve(t, &stubBackend{}, http.MethodPost, "/v1/ping", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleVersion(t *testing.T) {
	rr := serve(t, &stubBackend{}, http.MethodGet, "/v1/version", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "1.0.30")
}

func TestHandleXpubDefaultsNetwork(t *testing.T) {
	var gotNetwork string
	var gotPath []uint32
	backend := &stubBackend{xpubFn: func(_ context.Context, network string, path []uint32) (string, error) {
		gotNetwork, gotPath = network, path
		return "tpubXYZ", nil
	}}
	rr := serve(t, backend, http.MethodPost, "/v1/xpub", `{"path":[2147483732,1]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "testnet", gotNetwork)
	require.Equal(t, []uint32{2147483732, 1}, gotPath)
	require.JSONEq(t, `{"xpub":"tpubXYZ"}`, rr.Body.String())
}

func TestHandleFingerprint(t *testing.T) {
	rr := serve(t, &stubBackend{fingerprintFn: func(_ context.Context, network string) (string, error) {
		require.Equal(t, "mainnet", network)
		return "e3ebcc79", nil
	}}, http.MethodPost, "/v1/fingerprint", `{"network":"mainnet"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"fingerprint":"e3ebcc79"}`, rr.Body.String())
}

func TestHandleSignPSBT(t *testing.T) {
	backend := &stubBackend{signFn: func(_ context.Context, _ string, psbt []byte) ([]byte, error) {
		return append(psbt, 0x01), nil
	}}
	rr := serve(t, backend, http.MethodPost, "/v1/sign-psbt", `{"psbt":"70736274ff","encoding":"hex"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"psbt":"70736274ff01","encoding":"hex"}`, rr.Body.String())

	in := base64.StdEncoding.EncodeToString([]byte("psbt"))
	rr = serve(t, backend, http.MethodPost, "/v1/sign-psbt", `{"psbt":"`+in+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var body signPSBTResponseBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "base64", body.Encoding)
}

func TestHandleSignPSBTInvalid(t *testing.T) {
	for _, payload := range []string{`{}`, `{"psbt":"zz","encoding":"hex"}`, `{"psbt":"aa","encoding":"rot13"}`, `not json`} {
		rr := serve(t, &stubBackend{}, http.MethodPost, "/v1/sign-psbt", payload)
		require.Equal(t, http.StatusBadRequest, rr.Code, payload)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, string(rpcerrors.CodeValidation), body.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{rpcerrors.New(rpcerrors.CodeTimeout, "rpc call ping timed out"), http.StatusGatewayTimeout, "TIMEOUT"},
		{rpcerrors.Wrap(rpcerrors.CodeChannel, "channel closed", rpcerrors.ErrClosed), http.StatusServiceUnavailable, "CHANNEL"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		backend := &stubBackend{pingFn: func(context.Context) (int, error) { return 0, tc.err }}
		rr := serve(t, backend, http.MethodGet, "/v1/ping", "")
		require.Equal(t, tc.status, rr.Code)
		var body errorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.code, body.Code)
		require.Nil(t, body.DeviceCode)
	}

	backend := &stubBackend{pingFn: func(context.Context) (int, error) {
		return 0, rpcerrors.Protocol(-32000, "user declined", nil)
	}}
	rr := serve(t, backend, http.MethodGet, "/v1/ping", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotNil(t, body.DeviceCode)
	require.Equal(t, -32000, *body.DeviceCode)
	require.Equal(t, "RPC Error -32000: user declined", body.Message)
}
