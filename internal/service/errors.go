package service

import (
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// 错误类别，handler 据此映射 HTTP 状态码
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error 带类别的业务错误，Msg 可直接返回给调用方
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

func invalidState(format string, args ...interface{}) error {
	return newError(ErrInvalidState, format, args...)
}

func forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

func validation(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func unauthorized(format string, args ...interface{}) error {
	return newError(ErrUnauthorized, format, args...)
}

// isNotFound 判断是否为记录不存在
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// storeErr 包装存储层错误，业务错误原样返回
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return errors.Wrap(err, op)
}
