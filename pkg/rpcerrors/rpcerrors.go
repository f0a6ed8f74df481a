package rpcerrors

import (
	"errors"
	"fmt"
)

// Code 表示客户端可区分的失败类别。
type Code string

const (
	CodeValidation Code = "VALIDATION"
	CodeProtocol   Code = "PROTOCOL"
	CodeTimeout    Code = "TIMEOUT"
	CodeChannel    Code = "CHANNEL"
	CodeRelay      Code = "RELAY"
)

var (
	// ErrNotConnected 表示通道尚未建立或已断开。
	ErrNotConnected = errors.New("channel not connected")
	// ErrClosed 表示通道被主动关闭，挂起调用随之失败。
	ErrClosed = errors.New("channel closed")
	// ErrDuplicateID 表示同一 id 已有未结束的调用。
	ErrDuplicateID = errors.New("duplicate request id")
)

var httpStatusMap = map[Code]int{
	CodeValidation: 400,
	CodeProtocol:   502,
	CodeTimeout:    504,
	CodeChannel:    503,
	CodeRelay:      502,
}

// Error 是所有对外暴露的 RPC 失败。
type Error struct {
	Code    Code
	Message string
	// DeviceCode/Data 仅在 CodeProtocol 时由设备返回。
	DeviceCode int
	Data       any

	fromDevice bool
	cause      error
}

// New 创建一个新的错误。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap 创建带底层原因的错误，支持 errors.Is/As 穿透。
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Protocol 将设备的 error 响应转换为 CodeProtocol 错误。
func Protocol(deviceCode int, message string, data any) *Error {
	return &Error{Code: CodeProtocol, Message: message, DeviceCode: deviceCode, Data: data, fromDevice: true}
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.fromDevice {
		msg = fmt.Sprintf("RPC Error %d: %s", e.DeviceCode, msg)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap 返回底层原因。
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// FromDevice 报告错误是否由设备的 error 应答产生。
func (e *Error) FromDevice() bool {
	return e != nil && e.fromDevice
}

// FromError 尝试从通用 error 中解析 RPC 错误。
func FromError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// HasCode 判断 err 链上是否存在指定类别的 RPC 错误。
func HasCode(err error, code Code) bool {
	rpcErr, ok := FromError(err)
	return ok && rpcErr.Code == code
}

// HTTPStatus 返回对应的 HTTP 状态码，未知错误默认 500。
func HTTPStatus(code Code) int {
	if status, ok := httpStatusMap[code]; ok {
		return status
	}
	return 500
}
