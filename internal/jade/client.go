package jade

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/aegis-sign/jadelink/internal/rpc"
	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/aegis-sign/jadelink/pkg/fingerprint"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
)

// Caller 是 Client 依赖的调用能力，由 rpc.Tracker 实现。
type Caller interface {
	Call(ctx context.Context, method string, params any, opts ...rpc.CallOption) (any, error)
	CallWithRelay(ctx context.Context, method string, params any, exec rpc.HTTPExecutor, opts ...rpc.CallOption) (any, error)
}

var _ Caller = (*rpc.Tracker)(nil)

// Client 是设备命令的薄封装，不包含独立的协议逻辑。
type Client struct {
	caller Caller
	now    func() time.Time
}

// NewClient 创建 Client。
func NewClient(caller Caller) *Client {
	return &Client{caller: caller, now: time.Now}
}

// Ping 返回设备状态 0/1/2。
func (c *Client) Ping(ctx context.Context) (int, error) {
	return call[int](ctx, c, "ping", nil)
}

// GetVersionInfo 返回固件版本信息。
func (c *Client) GetVersionInfo(ctx context.Context, nonblocking bool) (map[string]any, error) {
	var params any
	if nonblocking {
		params = map[string]any{"nonblocking": true}
	}
	return call[map[string]any](ctx, c, "get_version_info", params)
}

// CleanReset 清空设备（仅调试固件）。
func (c *Client) CleanReset(ctx context.Context) (bool, error) {
	return call[bool](ctx, c, "debug_clean_reset", nil)
}

// SetMnemonic 注入助记词（仅调试固件）。
func (c *Client) SetMnemonic(ctx context.Context, mnemonic string, passphrase *string, temporary bool) (bool, error) {
	params := map[string]any{"mnemonic": mnemonic, "temporary_wallet": temporary}
	if passphrase != nil {
		params["passphrase"] = *passphrase
	}
	return call[bool](ctx, c, "debug_set_mnemonic", params)
}

// AuthUser 解锁设备。设备可能要求经 exec 访问 PIN 服务器；调用不设超时。
func (c *Client) AuthUser(ctx context.Context, network string, exec rpc.HTTPExecutor, epoch *int64) (bool, error) {
	if network == "" {
		return false, rpcerrors.New(rpcerrors.CodeValidation, "authUser: network must be a non-empty string")
	}
	params := map[string]any{"network": network, "epoch": c.epoch(epoch)}
	result, err := c.caller.CallWithRelay(ctx, "auth_user", params, exec, rpc.WithLongWait())
	if err != nil {
		return false, err
	}
	return convert[bool]("auth_user", result)
}

// AddEntropy 向设备追加熵。
func (c *Client) AddEntropy(ctx context.Context, entropy []byte) (bool, error) {
	return call[bool](ctx, c, "add_entropy", map[string]any{"entropy": entropy})
}

// Logout 锁定设备。
func (c *Client) Logout(ctx context.Context) (bool, error) {
	return call[bool](ctx, c, "logout", nil)
}

// GetXpub 返回指定路径的扩展公钥。
func (c *Client) GetXpub(ctx context.Context, network string, path []uint32) (string, error) {
	if path == nil {
		path = []uint32{}
	}
	return call[string](ctx, c, "get_xpub", map[string]any{"network": network, "path": path})
}

// SetEpoch 设置设备时间，nil 表示当前时间。
func (c *Client) SetEpoch(ctx context.Context, epoch *int64) (bool, error) {
	return call[bool](ctx, c, "set_epoch", map[string]any{"epoch": c.epoch(epoch)})
}

// RegisterMultisig 注册多签钱包；name 为空时生成 "jade" + 8 位十六进制。
func (c *Client) RegisterMultisig(ctx context.Context, network, name string, desc MultisigDescriptor) (bool, error) {
	if name == "" {
		generated, err := defaultMultisigName()
		if err != nil {
			return false, err
		}
		name = generated
	}
	params := registerMultisigParams{Network: network, MultisigName: name, Descriptor: desc}
	return call[bool](ctx, c, "register_multisig", params)
}

// GetRegisteredMultisigs 返回按名称索引的多签摘要。
func (c *Client) GetRegisteredMultisigs(ctx context.Context) (map[string]MultisigSummary, error) {
	return call[map[string]MultisigSummary](ctx, c, "get_registered_multisigs", nil)
}

// GetRegisteredMultisig 返回单个多签的完整描述。
func (c *Client) GetRegisteredMultisig(ctx context.Context, name string, asFile bool) (RegisteredMultisig, error) {
	return call[RegisteredMultisig](ctx, c, "get_registered_multisig", map[string]any{"multisig_name": name, "as_file": asFile})
}

// GetMultisigName 查找与 target 一致的已注册多签，未找到时 ok=false。
func (c *Client) GetMultisigName(ctx context.Context, target MultisigDescriptor) (string, bool, error) {
	summaries, err := c.GetRegisteredMultisigs(ctx)
	if err != nil {
		return "", false, err
	}
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := summaries[name]
		if sum.Variant != target.Variant || sum.Sorted != target.Sorted ||
			sum.Threshold != target.Threshold || sum.NumSigners != len(target.Signers) {
			continue
		}
		full, err := c.GetRegisteredMultisig(ctx, name, false)
		if err != nil {
			return "", false, err
		}
		if signersEqual(full.Descriptor.Signers, target.Signers) {
			return name, true, nil
		}
	}
	return "", false, nil
}

// GetReceiveAddress 返回收款地址。
func (c *Client) GetReceiveAddress(ctx context.Context, network string, opts ReceiveOptions) (string, error) {
	return call[string](ctx, c, "get_receive_address", receiveParams{Network: network, ReceiveOptions: opts})
}

// SignMessage 对消息签名。Anti-Exfil 签名尚未支持。
func (c *Client) SignMessage(ctx context.Context, path []uint32, message string, useAE bool) (string, error) {
	if useAE {
		return "", rpcerrors.New(rpcerrors.CodeValidation, "ae signatures not implemented")
	}
	if path == nil {
		path = []uint32{}
	}
	return call[string](ctx, c, "sign_message", map[string]any{"path": path, "message": message})
}

// SignPSBT 签名 PSBT。该调用以长等待方式发送：不使用 5 秒默认超时，
// 一直等到用户在设备上确认或 ctx 结束。
func (c *Client) SignPSBT(ctx context.Context, network string, psbt []byte) ([]byte, error) {
	if len(psbt) == 0 {
		return nil, rpcerrors.New(rpcerrors.CodeValidation, "psbt must not be empty")
	}
	result, err := c.caller.Call(ctx, "sign_psbt", map[string]any{"network": network, "psbt": psbt}, rpc.WithLongWait())
	if err != nil {
		return nil, err
	}
	return convert[[]byte]("sign_psbt", result)
}

// GetMasterFingerprint 由根 xpub 计算主指纹。
func (c *Client) GetMasterFingerprint(ctx context.Context, network string) (string, error) {
	xpub, err := c.GetXpub(ctx, network, []uint32{})
	if err != nil {
		return "", err
	}
	fp, err := fingerprint.FromXpub(xpub, network)
	if err != nil {
		return "", rpcerrors.Wrap(rpcerrors.CodeProtocol, "invalid xpub from device", err)
	}
	return fp, nil
}

func (c *Client) epoch(epoch *int64) int64 {
	if epoch != nil {
		return *epoch
	}
	return c.now().Unix()
}

func call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	result, err := c.caller.Call(ctx, method, params)
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](method, result)
}

func convert[T any](method string, result any) (T, error) {
	if v, ok := result.(T); ok {
		return v, nil
	}
	var out T
	if result == nil {
		return out, rpcerrors.New(rpcerrors.CodeProtocol, fmt.Sprintf("unexpected result type for %s: empty result", method))
	}
	if err := wire.DecodeInto(result, &out); err != nil {
		return out, rpcerrors.Wrap(rpcerrors.CodeProtocol, fmt.Sprintf("unexpected result type for %s", method), err)
	}
	return out, nil
}

func signersEqual(got, want []SignerDescriptor) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !bytes.Equal(got[i].Fingerprint, want[i].Fingerprint) ||
			got[i].Xpub != want[i].Xpub ||
			!slices.Equal(got[i].Derivation, want[i].Derivation) {
			return false
		}
	}
	return true
}

func defaultMultisigName() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate multisig name: %w", err)
	}
	return "jade" + hex.EncodeToString(b[:]), nil
}
