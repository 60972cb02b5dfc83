package types

// URLResult は、特定のURLから取得・デコードされた結果、またはその処理中に発生したエラーを保持します。
// バッチ取得 (pipeline.RunAll) の出力として利用されます。
type URLResult[T any] struct {
	URL   string // 処理対象のURL
	Value T      // デコードされた値 (Error が nil の場合のみ有効)
	Error error  // 処理中に発生したエラー
}
