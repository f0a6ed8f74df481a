package channel

import (
	"errors"
	"sync"
	"testing"

	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/aegis-sign/jadelink/pkg/rpcerrors"
	"github.com/stretchr/testify/require"
)

func response(id string, result any) wire.Message {
	return wire.Message{Fields: map[string]any{"id": id, "result": result}}
}

func TestBusRoutesResponseToSubscriber(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe("a1")
	require.NoError(t, err)
	defer sub.Close()

	bus.Publish(response("a1", "ok"))

	res := <-sub.C()
	require.NoError(t, res.Err)
	require.Equal(t, "ok", res.Msg.Fields["result"])
	require.Zero(t, bus.Pending())
}

func TestBusUnmatchedResponseGoesToObservers(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	var seen []wire.Message
	bus.OnUnsolicited(func(m wire.Message) {
		mu.Lock()
		seen = append(seen, m)
		mu.Unlock()
	})
	sub, err := bus.Subscribe("mine")
	require.NoError(t, err)
	defer sub.Close()

	bus.Publish(response("other", 1))
	bus.Publish(wire.Message{Fields: map[string]any{"log": "hello"}})

	require.Len(t, seen, 2)
	require.Equal(t, 1, bus.Pending())
	select {
	case <-sub.C():
		t.Fatal("subscription should not be settled by another id")
	default:
	}
}

func TestBusDuplicateSubscribe(t *testing.T) {
	bus := NewBus()
	sub, err := bus.Subscribe("dup")
	require.NoError(t, err)

	_, err = bus.Subscribe("dup")
	require.ErrorIs(t, err, rpcerrors.ErrDuplicateID)
	require.True(t, rpcerrors.HasCode(err, rpcerrors.CodeValidation))

	sub.Close()
	sub.Close()
	_, err = bus.Subscribe("dup")
	require.NoError(t, err)
}

func TestBusFailAll(t *testing.T) {
	bus := NewBus()
	a, _ := bus.Subscribe("a")
	b, _ := bus.Subscribe("b")
	boom := errors.New("boom")

	bus.FailAll(boom)

	require.ErrorIs(t, (<-a.C()).Err, boom)
	require.ErrorIs(t, (<-b.C()).Err, boom)
	require.Zero(t, bus.Pending())

	// 结算后迟到的应答交给观察者
	var late int
	bus.OnUnsolicited(func(wire.Message) { late++ })
	bus.Publish(response("a", 0))
	require.Equal(t, 1, late)
}
