package validator

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	MaxIDLength     = 16
	MaxMethodLength = 32
)

var (
	ErrInvalidID     = errors.New("request id must be non-empty and at most 16 characters")
	ErrInvalidMethod = errors.New("request method must be non-empty and at most 32 characters")
)

// ValidateID 校验请求 id 长度（1–16 个字符）。
func ValidateID(id string) error {
	if n := utf8.RuneCountInString(id); n == 0 || n > MaxIDLength {
		return fmt.Errorf("%w: got %d", ErrInvalidID, n)
	}
	return nil
}

// ValidateMethod 校验方法名长度（1–32 个字符）。
func ValidateMethod(method string) error {
	if n := utf8.RuneCountInString(method); n == 0 || n > MaxMethodLength {
		return fmt.Errorf("%w: got %d", ErrInvalidMethod, n)
	}
	return nil
}

// ValidateRequest 在任何 I/O 之前校验 id 与 method。
func ValidateRequest(id, method string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return ValidateMethod(method)
}
