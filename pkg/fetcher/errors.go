package fetcher

import (
	"errors"
	"fmt"

	"github.com/shouni/go-json-fetch/pkg/httpclient"
)

// Kind は Fetch が返すエラーの分類です。分類はこの4種類で閉じています。
type Kind int

const (
	// KindInvalidURL は URL の解析に失敗したことを示します。通信は行われません。
	KindInvalidURL Kind = iota + 1
	// KindNoData はレスポンスボディが空だったことを示します。
	KindNoData
	// KindDecoding はボディを要求された型へデコードできなかったことを示します。
	KindDecoding
	// KindOther は通信層のエラーをそのまま包んだものです。
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindNoData:
		return "no_data"
	case KindDecoding:
		return "decoding_error"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// errors.Is で分類を判定するための番兵エラー
var (
	ErrInvalidURL = &Error{Kind: KindInvalidURL}
	ErrNoData     = &Error{Kind: KindNoData}
	ErrDecoding   = &Error{Kind: KindDecoding}
	ErrOther      = &Error{Kind: KindOther}
)

// Error は Fetch の失敗を表します。Err には原因となったエラーが入ります (無い場合は nil)。
type Error struct {
	Kind Kind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidURL:
		msg = "無効なURLです"
	case KindNoData:
		msg = "レスポンスにデータがありません"
	case KindDecoding:
		msg = "JSONのデコードに失敗しました"
	case KindOther:
		msg = "通信エラーが発生しました"
	default:
		msg = "不明なエラーです"
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s (URL: %s)", msg, e.URL)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is は分類 (Kind) が一致する *Error を同一とみなします。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf は err に含まれる *Error の分類を返します。含まれない場合は 0 を返します。
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// IsRetryable は、呼び出し側がリトライを検討してよいエラーかどうかを判定します。
// Fetch 自身はリトライを行いません。通信エラーのうち 4xx 以外のものだけが対象です。
func IsRetryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindOther {
		return false
	}
	return httpclient.IsRetryableError(fe.Err)
}
