package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, v any) []byte {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	return data
}

func TestFeedBackToBackMessages(t *testing.T) {
	d := NewFrameDecoder()
	a := mustEncode(t, map[string]any{"id": "1", "result": 0})
	b := mustEncode(t, map[string]any{"id": "2", "result": "ok"})

	msgs := d.Feed(append(append([]byte{}, a...), b...))
	require.Len(t, msgs, 2)
	id, _ := msgs[0].ID()
	require.Equal(t, "1", id)
	id, _ = msgs[1].ID()
	require.Equal(t, "2", id)
	require.Equal(t, a, msgs[0].Raw)
	require.Zero(t, d.Buffered())
}

func TestFeedPartialMessage(t *testing.T) {
	d := NewFrameDecoder()
	full := mustEncode(t, map[string]any{"id": "abc", "result": map[string]any{"xpub": "tpub"}})

	for i := 0; i < len(full)-1; i++ {
		require.Empty(t, d.Feed(full[i:i+1]))
	}
	require.Equal(t, len(full)-1, d.Buffered())

	msgs := d.Feed(full[len(full)-1:])
	require.Len(t, msgs, 1)
	require.Zero(t, d.Buffered())
	resp := msgs[0].Response()
	require.Equal(t, "abc", resp.ID)
	require.Nil(t, resp.Error)
}

func TestFeedTrailingPartialIsKept(t *testing.T) {
	d := NewFrameDecoder()
	first := mustEncode(t, map[string]any{"id": "1", "result": true})
	second := mustEncode(t, map[string]any{"id": "2", "result": true})

	msgs := d.Feed(append(append([]byte{}, first...), second[:3]...))
	require.Len(t, msgs, 1)
	require.Equal(t, 3, d.Buffered())

	msgs = d.Feed(second[3:])
	require.Len(t, msgs, 1)
	id, _ := msgs[0].ID()
	require.Equal(t, "2", id)
}

func TestFeedCorruptInputClearsBuffer(t *testing.T) {
	var resets []ResetReason
	d := NewFrameDecoder(WithResetHook(func(reason ResetReason, _ int, _ error) {
		resets = append(resets, reason)
	}))

	// 0xff 单独出现是非法的 break 码
	require.Empty(t, d.Feed([]byte{0xff, 0x01, 0x02}))
	require.Zero(t, d.Buffered())
	require.Equal(t, []ResetReason{ResetCorrupt}, resets)

	// 之后的合法消息仍能被解析
	msgs := d.Feed(mustEncode(t, map[string]any{"id": "9", "result": 1}))
	require.Len(t, msgs, 1)
}

func TestFeedDropsNonProtocolItems(t *testing.T) {
	d := NewFrameDecoder()
	var stream []byte
	stream = append(stream, mustEncode(t, map[string]any{"foo": "bar"})...)
	stream = append(stream, mustEncode(t, []int{1, 2, 3})...)
	stream = append(stream, mustEncode(t, "just a string")...)
	stream = append(stream, mustEncode(t, map[string]any{"log": "booting"})...)

	msgs := d.Feed(stream)
	require.Len(t, msgs, 1)
	line, ok := msgs[0].Log()
	require.True(t, ok)
	require.Equal(t, "booting", line)
	require.Equal(t, "log", msgs[0].Kind())
	_, hasID := msgs[0].ID()
	require.False(t, hasID)
	require.Zero(t, d.Buffered())
}

func TestFeedNonCanonicalInteger(t *testing.T) {
	d := NewFrameDecoder()
	// {"id":"1","result":0}，其中 0 以 4 字节长度编码（0x1a 00000000）
	stream := []byte{
		0xa2,
		0x62, 'i', 'd', 0x61, '1',
		0x66, 'r', 'e', 's', 'u', 'l', 't', 0x1a, 0x00, 0x00, 0x00, 0x00,
	}
	msgs := d.Feed(stream)
	require.Len(t, msgs, 1)
	require.EqualValues(t, 0, msgs[0].Fields["result"])
	require.Len(t, msgs[0].Raw, len(stream))
	require.Zero(t, d.Buffered())
}

func TestFeedOverflowResetsBuffer(t *testing.T) {
	var dropped int
	d := NewFrameDecoder(WithMaxBuffer(8), WithResetHook(func(reason ResetReason, n int, _ error) {
		require.Equal(t, ResetOverflow, reason)
		dropped = n
	}))
	// 声明 100 字节的字节串但只提供部分内容
	chunk := append([]byte{0x58, 100}, make([]byte, 10)...)
	require.Empty(t, d.Feed(chunk))
	require.Zero(t, d.Buffered())
	require.Equal(t, len(chunk), dropped)
}

func TestDrain(t *testing.T) {
	d := NewFrameDecoder()
	full := mustEncode(t, map[string]any{"id": "1", "result": 0})
	d.Feed(full[:2])
	require.Equal(t, 2, d.Buffered())
	d.Drain()
	require.Zero(t, d.Buffered())
}

func TestFeedKeepsResponseWithIntegerKeys(t *testing.T) {
	d := NewFrameDecoder()
	data := mustEncode(t, map[any]any{
		"id":     "1",
		"result": map[any]any{uint64(1): "a", "nested": map[string]any{"k": "v"}},
		uint64(9): "extra",
	})

	msgs := d.Feed(data)
	require.Len(t, msgs, 1)
	require.Zero(t, d.Buffered())
	require.Equal(t, data, msgs[0].Raw)
	require.NotContains(t, msgs[0].Fields, "9")

	resp := msgs[0].Response()
	require.Equal(t, "1", resp.ID)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[any]any)
	require.True(t, ok, "result is %T", resp.Result)
	require.Equal(t, "a", result[uint64(1)])
	require.Equal(t, map[string]any{"k": "v"}, result["nested"])
}

func TestFeedStringKeyedMapsStayTyped(t *testing.T) {
	d := NewFrameDecoder()
	msgs := d.Feed(mustEncode(t, map[string]any{
		"id":    "2",
		"error": map[string]any{"code": -32000, "message": "denied"},
	}))
	require.Len(t, msgs, 1)
	resp := msgs[0].Response()
	require.NotNil(t, resp.Error)
	require.Equal(t, -32000, resp.Error.Code)
	require.Equal(t, "denied", resp.Error.Message)
}
