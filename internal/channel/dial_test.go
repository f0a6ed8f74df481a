package channel

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/aegis-sign/jadelink/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDialEndpointTCPAndUnix(t *testing.T) {
	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tcp.Close() })

	sock := filepath.Join(t.TempDir(), "jade.sock")
	unix, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close() })

	for _, lis := range []net.Listener{tcp, unix} {
		go func(l net.Listener) {
			for {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				_ = conn.Close()
			}
		}(lis)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, endpoint := range []string{tcp.Addr().String(), "tcp://" + tcp.Addr().String(), "unix:" + sock, "unix://" + sock} {
		conn, err := DialEndpoint(ctx, endpoint)
		require.NoError(t, err, endpoint)
		_ = conn.Close()
	}
}

func TestParseVsock(t *testing.T) {
	cid, port, err := parseVsock("3:30121")
	require.NoError(t, err)
	require.EqualValues(t, 3, cid)
	require.EqualValues(t, 30121, port)

	_, _, err = parseVsock("3")
	require.Error(t, err)
	_, _, err = parseVsock("x:1")
	require.Error(t, err)

	_, err = DialEndpoint(context.Background(), "vsock://bad")
	require.Error(t, err)
}

func TestOpenOverTCP(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lis.Close() })

	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		dec := wire.NewFrameDecoder()
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			for _, msg := range dec.Feed(buf[:n]) {
				id, _ := msg.ID()
				data, _ := wire.Encode(map[string]any{"id": id, "result": 0})
				_, _ = conn.Write(data)
			}
		}
	}()

	cfg := DefaultConfig()
	cfg.Endpoint = lis.Addr().String()
	cfg.ConnectAttempts = 1
	ch, err := Open(context.Background(), cfg, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Disconnect() })

	sub, err := ch.Bus().Subscribe("t1")
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, ch.Send(wire.Request{ID: "t1", Method: "ping"}))

	select {
	case res := <-sub.C():
		require.NoError(t, res.Err)
		require.EqualValues(t, 0, res.Msg.Fields["result"])
	case <-time.After(2 * time.Second):
		t.Fatal("no response over tcp")
	}
}

func TestResolveSerialPort(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() ([]string, error) { return []string{"/dev/ttyACM0", "/dev/ttyACM1"}, nil }
	name, err := resolveSerialPort(AutoSerialPort)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", name)

	name, err = resolveSerialPort("/dev/ttyUSB3")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB3", name)

	listPorts = func() ([]string, error) { return nil, nil }
	_, err = resolveSerialPort("")
	require.ErrorIs(t, err, ErrNoSerialPort)

	listPorts = func() ([]string, error) { return nil, errors.New("denied") }
	_, err = resolveSerialPort(AutoSerialPort)
	require.Error(t, err)
}
