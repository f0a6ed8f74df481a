package jadeapi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/aegis-sign/jadelink/pkg/validator"
)

// HTTPHandler 把设备命令暴露为本地 HTTP/JSON 接口。
type HTTPHandler struct {
	backend        Backend
	defaultNetwork string
}

// NewHTTPHandler 构造 HTTP handler，请求未指定 network 时使用 defaultNetwork。
func NewHTTPHandler(backend Backend, defaultNetwork string) *HTTPHandler {
	if backend == nil {
		panic("jade backend is required")
	}
	if defaultNetwork == "" {
		defaultNetwork = "mainnet"
	}
	return &HTTPHandler{backend: backend, defaultNetwork: defaultNetwork}
}

// Register 将 handler 注册到 mux。
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/ping", h.handlePing)
	mux.HandleFunc("/v1/version", h.handleVersion)
	mux.HandleFunc("/v1/xpub", h.handleXpub)
	mux.HandleFunc("/v1/fingerprint", h.handleFingerprint)
	mux.HandleFunc("/v1/sign-psbt", h.handleSignPSBT)
}

type pingResponseBody struct {
	Status int `json:"status"`
}

type xpubRequestBody struct {
	Network string   `json:"network"`
	Path    []uint32 `json:"path"`
}

type xpubResponseBody struct {
	Xpub string `json:"xpub"`
}

type fingerprintRequestBody struct {
	Network string `json:"network"`
}

type fingerprintResponseBody struct {
	Fingerprint string `json:"fingerprint"`
}

type signPSBTRequestBody struct {
	Network  string `json:"network"`
	PSBT     string `json:"psbt"`
	Encoding string `json:"encoding"`
}

type signPSBTResponseBody struct {
	PSBT     string `json:"psbt"`
	Encoding string `json:"encoding"`
}

type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	DeviceCode *int   `json:"deviceCode,omitempty"`
}

func (h *HTTPHandler) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, "GET required"))
		return
	}
	status, err := h.backend.Ping(r.Context())
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pingResponseBody{Status: status})
}

func (h *HTTPHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, "GET required"))
		return
	}
	info, err := h.backend.GetVersionInfo(r.Context(), r.URL.Query().Get("nonblocking") == "true")
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *HTTPHandler) handleXpub(w http.ResponseWriter, r *http.Request) {
	var body xpubRequestBody
	if !h.decodePost(w, r, &body) {
		return
	}
	xpub, err := h.backend.GetXpub(r.Context(), h.network(body.Network), body.Path)
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, xpubResponseBody{Xpub: xpub})
}

func (h *HTTPHandler) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var body fingerprintRequestBody
	if !h.decodePost(w, r, &body) {
		return
	}
	fp, err := h.backend.GetMasterFingerprint(r.Context(), h.network(body.Network))
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fingerprintResponseBody{Fingerprint: fp})
}

func (h *HTTPHandler) handleSignPSBT(w http.ResponseWriter, r *http.Request) {
	var body signPSBTRequestBody
	if !h.decodePost(w, r, &body) {
		return
	}
	if body.PSBT == "" {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, "psbt is required"))
		return
	}
	encoding, err := validator.NormalizeEncoding(body.Encoding)
	if err != nil {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, err.Error()))
		return
	}
	psbt, err := validator.DecodeBytes(body.PSBT, encoding)
	if err != nil {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, err.Error()))
		return
	}
	signed, err := h.backend.SignPSBT(r.Context(), h.network(body.Network), psbt)
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, signPSBTResponseBody{PSBT: encodeBytes(signed, encoding), Encoding: string(encoding)})
}

func (h *HTTPHandler) decodePost(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, "POST required"))
		return false
	}
	if r.Body == nil || r.Body == http.NoBody {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil && err != io.EOF {
		h.writeAPIError(w, rpcerrors.New(rpcerrors.CodeValidation, "invalid JSON body"))
		return false
	}
	return true
}

func (h *HTTPHandler) network(requested string) string {
	if requested != "" {
		return requested
	}
	return h.defaultNetwork
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *HTTPHandler) writeUnknownError(w http.ResponseWriter, err error) {
	if rpcErr, ok := rpcerrors.FromError(err); ok {
		h.writeAPIError(w, rpcErr)
		return
	}
	h.writeAPIError(w, rpcerrors.New(rpcerrors.Code("INTERNAL_ERROR"), "internal error"))
}

func (h *HTTPHandler) writeAPIError(w http.ResponseWriter, rpcErr *rpcerrors.Error) {
	if rpcErr == nil {
		rpcErr = rpcerrors.New(rpcerrors.Code("INTERNAL_ERROR"), "internal error")
	}
	resp := errorResponse{
		Code:    string(rpcErr.Code),
		Message: rpcErr.Error(),
	}
	if rpcErr.FromDevice() {
		code := rpcErr.DeviceCode
		resp.DeviceCode = &code
	}
	h.writeJSON(w, rpcerrors.HTTPStatus(rpcErr.Code), resp)
}

func encodeBytes(data []byte, enc validator.Encoding) string {
	if enc == validator.EncodingHex {
		return hex.EncodeToString(data)
	}
	return base64.StdEncoding.EncodeToString(data)
}
