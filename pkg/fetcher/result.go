package fetcher

// Result は Fetch の結果です。Err が nil の場合のみ Value が有効です。
// Err が nil でない場合は常に *Error です。
type Result[T any] struct {
	Value T
	Err   error
}

// Ok は成功したかどうかを返します。
func (r Result[T]) Ok() bool { return r.Err == nil }

// Unwrap は (値, エラー) の組で結果を返します。
func (r Result[T]) Unwrap() (T, error) { return r.Value, r.Err }

func success[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failure[T any](kind Kind, url string, cause error) Result[T] {
	return Result[T]{Err: &Error{Kind: kind, URL: url, Err: cause}}
}
