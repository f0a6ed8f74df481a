package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// NetworkTestnet 选择 tpub 版本字节，其余网络名按主网 xpub 处理。
const NetworkTestnet = "testnet"

// ErrNetworkMismatch 表示扩展公钥的版本字节与网络不符。
var ErrNetworkMismatch = errors.New("extended key does not match network")

// ParamsFor 返回网络名对应的链参数。
func ParamsFor(network string) *chaincfg.Params {
	if network == NetworkTestnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// FromXpub 计算 base58 扩展公钥的密钥指纹：hash160(压缩公钥) 的前 4 字节，小写十六进制。
func FromXpub(xpub, network string) (string, error) {
	key, err := hdkeychain.NewKeyFromString(xpub)
	if err != nil {
		return "", fmt.Errorf("parse extended key: %w", err)
	}
	if !key.IsForNet(ParamsFor(network)) {
		return "", fmt.Errorf("%w: %s", ErrNetworkMismatch, network)
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return hex.EncodeToString(btcutil.Hash160(pub.SerializeCompressed())[:4]), nil
}
