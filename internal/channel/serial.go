package channel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// AutoSerialPort 表示使用第一个枚举到的串口。
const AutoSerialPort = "auto"

// ErrNoSerialPort 表示系统上没有可用串口。
var ErrNoSerialPort = errors.New("no serial port found")

// listPorts 便于测试替换。
var listPorts = serial.GetPortsList

// SerialOpener 返回以 8N1 打开串口的 Opener。
func SerialOpener(port string, baudRate int) Opener {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return OpenSerial(port, baudRate)
	}
}

// OpenSerial 打开串口设备。
func OpenSerial(port string, baudRate int) (serial.Port, error) {
	name, err := resolveSerialPort(port)
	if err != nil {
		return nil, err
	}
	if baudRate <= 0 {
		baudRate = 115200
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return p, nil
}

func resolveSerialPort(port string) (string, error) {
	if port != "" && port != AutoSerialPort {
		return port, nil
	}
	ports, err := listPorts()
	if err != nil {
		return "", fmt.Errorf("list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoSerialPort
	}
	return ports[0], nil
}
