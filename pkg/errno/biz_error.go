package errno

import (
	"errors"
	"fmt"
)

// BizError 携带错误码和底层原因的业务错误
type BizError struct {
	errno  *Errno
	detail string
	cause  error
}

// NewBizError 用错误码包装底层错误
func NewBizError(e *Errno, cause error) *BizError {
	return &BizError{errno: e, cause: cause}
}

// WithDetail 替换返回给调用方的提示信息，错误码不变
func WithDetail(e *Errno, format string, args ...interface{}) *BizError {
	return &BizError{errno: e, detail: fmt.Sprintf(format, args...)}
}

func (b *BizError) Error() string {
	msg := b.Message()
	if b.cause != nil {
		return msg + ": " + b.cause.Error()
	}
	return msg
}

// Message 返回对外展示的信息，不含底层原因
func (b *BizError) Message() string {
	if b.detail != "" {
		return b.detail
	}
	return b.errno.Message
}

func (b *BizError) Errno() *Errno { return b.errno }

func (b *BizError) Unwrap() error { return b.cause }

// Is 让 errors.Is(err, errno.ErrXxx) 对包装后的错误生效
func (b *BizError) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t == b.errno
}

// Decode 将任意错误还原为错误码和对外信息
func Decode(err error) (*Errno, string) {
	if err == nil {
		return OK, OK.Message
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.errno, biz.Message()
	}
	var e *Errno
	if errors.As(err, &e) {
		return e, e.Message
	}
	return ErrInternalServer, err.Error()
}
