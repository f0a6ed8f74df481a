package validator

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Encoding 描述二进制参数（psbt、entropy）的文本编码。
type Encoding string

const (
	EncodingHex    Encoding = "hex"
	EncodingBase64 Encoding = "base64"
)

// NormalizeEncoding 将用户输入转换为内部常量，默认 base64。
func NormalizeEncoding(raw string) (Encoding, error) {
	switch strings.ToLower(raw) {
	case "", string(EncodingBase64):
		return EncodingBase64, nil
	case string(EncodingHex):
		return EncodingHex, nil
	default:
		return "", fmt.Errorf("unsupported encoding %q", raw)
	}
}

// DecodeBytes 将文本解码为二进制，拒绝空结果。
func DecodeBytes(raw string, enc Encoding) ([]byte, error) {
	var (
		decoded []byte
		err     error
	)
	switch enc {
	case EncodingHex:
		decoded, err = hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid hex payload: %w", err)
		}
	case EncodingBase64:
		decoded, err = base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid base64 payload: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown encoding %q", enc)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}
	return decoded, nil
}
