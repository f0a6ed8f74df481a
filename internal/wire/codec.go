package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Time: cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: build cbor enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels:  64,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: build cbor dec mode: %v", err))
	}
}

// Encode 将任意值编码为单个 CBOR 数据项。
func Encode(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return data, nil
}

// Decode 将单个 CBOR 数据项解码到 out。
func Decode(data []byte, out any) error {
	if err := decMode.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cbor decode: %w", err)
	}
	return nil
}

// DecodeInto 把已解码的通用值（map[string]any、map[any]any、[]any 等）转换为具体类型。
func DecodeInto(v any, out any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("cbor re-encode: %w", err)
	}
	return Decode(data, out)
}

// Normalize 把键全为字符串的 map[any]any 递归转换为 map[string]any，
// 含非字符串键的 map 保持 map[any]any，仅转换其值。
func Normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		if keys, ok := stringKeys(val); ok {
			out := make(map[string]any, len(val))
			for i, k := range keys {
				out[k] = Normalize(val[i])
			}
			return out
		}
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

func stringKeys(m map[any]any) (map[any]string, bool) {
	keys := make(map[any]string, len(m))
	for k := range m {
		s, ok := k.(string)
		if !ok {
			return nil, false
		}
		keys[k] = s
	}
	return keys, true
}
