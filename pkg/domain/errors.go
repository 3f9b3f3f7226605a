package domain

import (
	"errors"
	"fmt"
)

// エラー分類のセンチネルです。errors.Is で判定します。
var (
	ErrValidation = errors.New("validation error")
	ErrBlocked    = errors.New("blocked by provider")
	ErrNoImage    = errors.New("no image returned")
	ErrFormat     = errors.New("malformed data url")
	ErrDecode     = errors.New("image decode error")
	ErrTransport  = errors.New("transport error")
	ErrUnknown    = errors.New("unknown error")
)

// Error は利用者に表示する単一のメッセージと、分類 (Kind) を保持するエラーです。
// Error() は常に表示用メッセージを返します。
type Error struct {
	Kind    error
	Message string
	// Reason はブロック理由や AI が返したテキストなど、補足情報です。
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Message
}

// Is は Kind と一致するセンチネルに対して true を返します。
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// NewBlockedError は正規化済みのブロック理由から BlockedError を作成します。
func NewBlockedError(reason string) *Error {
	return &Error{
		Kind:    ErrBlocked,
		Reason:  reason,
		Message: fmt.Sprintf("Your request was blocked for safety reasons: %s. Please modify your prompt and try again.", reason),
	}
}

// NewNoImageError は AI が画像の代わりにテキストを返した場合のエラーです。
// text が空のときは fallback をそのまま使います。
func NewNoImageError(text, fallback string) *Error {
	if text == "" {
		return &Error{Kind: ErrNoImage, Message: fallback}
	}
	return &Error{
		Kind:    ErrNoImage,
		Reason:  text,
		Message: fmt.Sprintf("The AI didn't return an image. It said: \"%s\"", text),
	}
}

func NewFormatError(msg string) *Error {
	return &Error{Kind: ErrFormat, Message: msg}
}

func NewDecodeError(msg string, err error) *Error {
	return &Error{Kind: ErrDecode, Message: msg, Err: err}
}

// NewTransportError は通信・プロバイダ側のエラーをメッセージそのままで包みます。
func NewTransportError(err error) *Error {
	return &Error{Kind: ErrTransport, Message: err.Error(), Err: err}
}

func NewUnknownError(msg string) *Error {
	return &Error{Kind: ErrUnknown, Message: msg}
}
