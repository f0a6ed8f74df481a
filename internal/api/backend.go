package jadeapi

import "context"

// Backend 定义 HTTP handler 依赖的设备能力，由 *jade.Client 实现。
type Backend interface {
	Ping(ctx context.Context) (int, error)
	GetVersionInfo(ctx context.Context, nonblocking bool) (map[string]any, error)
	GetXpub(ctx context.Context, network string, path []uint32) (string, error)
	GetMasterFingerprint(ctx context.Context, network string) (string, error)
	SignPSBT(ctx context.Context, network string, psbt []byte) ([]byte, error)
}
