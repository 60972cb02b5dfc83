package fetcher

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// Validator を実装した型は、デコード直後に Validate が呼び出されます。
// nil 以外を返した場合、結果は KindDecoding になります。
type Validator interface {
	Validate() error
}

// Decoder はレスポンスボディを v (ポインタ) にデコードします。
type Decoder interface {
	Decode(data []byte, v any) error
}

// DecoderFunc は関数を Decoder として扱うためのアダプターです。
type DecoderFunc func(data []byte, v any) error

func (f DecoderFunc) Decode(data []byte, v any) error { return f(data, v) }

// JSONDecoder は json-iterator (標準ライブラリ互換設定) でデコードし、
// `validate` タグによる検証を行うデフォルトの Decoder です。
//
// 未知のフィールドは無視されます。タグの無いフィールドは任意扱いで、JSON に無ければゼロ値のままです。
// `validate:"required"` は「JSON にキーが存在し null でないこと」を意味し、0 や "" も有効な値です。
// 必須チェックはスライス・配列・マップの要素の構造体にも適用されます。
// required 以外のタグ (min, email など) は validator/v10 の規則で検証されます。
type JSONDecoder struct {
	api      jsoniter.API
	validate *validator.Validate
}

// NewJSONDecoder は JSONDecoder を生成します。複数のゴルーチンから同時に利用できます。
func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{
		api:      jsoniter.ConfigCompatibleWithStandardLibrary,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Decode は data を v (ポインタ) にデコードし、必須フィールドとタグを検証します。
func (d *JSONDecoder) Decode(data []byte, v any) error {
	if err := d.api.Unmarshal(data, v); err != nil {
		return fmt.Errorf("JSON解析エラー: %w", err)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Pointer && rv.Elem().IsNil() {
		return errors.New("値が null です")
	}
	if err := d.check(rv, data, "", true); err != nil {
		return fmt.Errorf("必須フィールドの検証エラー: %w", err)
	}
	return nil
}

// decodeInto は Decoder で T をデコードし、Validator フックを適用します。
func decodeInto[T any](dec Decoder, data []byte) (T, error) {
	var v T
	if err := dec.Decode(data, &v); err != nil {
		var zero T
		return zero, err
	}

	if val, ok := any(v).(Validator); ok && !isNilPointer(v) {
		if err := val.Validate(); err != nil {
			var zero T
			return zero, fmt.Errorf("値の検証エラー: %w", err)
		}
	} else if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			var zero T
			return zero, fmt.Errorf("値の検証エラー: %w", err)
		}
	}
	return v, nil
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
