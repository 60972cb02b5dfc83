package fetcher

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

const requiredTag = "required"

var jsonNull = []byte("null")

// check はデコード済みの rv と元の JSON (raw) を並べて辿り、必須フィールドの存在を確認します。
// validateStruct が true の構造体には validator のタグ検証も行います。
// 構造体の直下のフィールドは validator 自身が辿るため false で再帰します。
func (d *JSONDecoder) check(rv reflect.Value, raw []byte, path string, validateStruct bool) error {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if validateStruct {
			if err := d.validateTags(rv); err != nil {
				return err
			}
		}
		// 独自の UnmarshalJSON を持つ型 (time.Time など) はオブジェクトでないため対象外
		var obj map[string]jsoniter.RawMessage
		if err := d.api.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		return d.checkFields(rv, obj, path)

	case reflect.Slice, reflect.Array:
		var elems []jsoniter.RawMessage
		if err := d.api.Unmarshal(raw, &elems); err != nil {
			return nil
		}
		for i := 0; i < rv.Len() && i < len(elems); i++ {
			if err := d.check(rv.Index(i), elems[i], fmt.Sprintf("%s[%d]", path, i), true); err != nil {
				return err
			}
		}

	case reflect.Map:
		var obj map[string]jsoniter.RawMessage
		if err := d.api.Unmarshal(raw, &obj); err != nil {
			return nil
		}
		iter := rv.MapRange()
		for iter.Next() {
			key, ok := mapKeyString(iter.Key())
			if !ok {
				continue
			}
			elemRaw, ok := obj[key]
			if !ok {
				continue
			}
			if err := d.check(iter.Value(), elemRaw, joinPath(path, key), true); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkFields は構造体の各フィールドについて、必須キーの存在確認と子要素への再帰を行います。
func (d *JSONDecoder) checkFields(rv reflect.Value, obj map[string]jsoniter.RawMessage, path string) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}
		name, skip := jsonFieldName(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)

		// 埋め込み構造体のフィールドは親オブジェクトに展開されている
		if sf.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct {
				if err := d.checkFields(inner, obj, path); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		raw, ok := lookupKey(obj, name)
		present := ok && !bytes.Equal(bytes.TrimSpace(raw), jsonNull)
		if !present {
			if isRequired(sf) {
				return fmt.Errorf("必須フィールド %s がありません", joinPath(path, name))
			}
			continue
		}
		if err := d.check(fv, raw, joinPath(path, name), false); err != nil {
			return err
		}
	}
	return nil
}

// validateTags は validator でタグを検証します。required は存在確認で判定済みのため除外します。
func (d *JSONDecoder) validateTags(rv reflect.Value) error {
	if !rv.CanInterface() {
		return nil
	}
	err := d.validate.Struct(rv.Interface())
	if err == nil {
		return nil
	}

	// time.Time など validator が構造体として扱わない型
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var remaining validator.ValidationErrors
	for _, fe := range verrs {
		if fe.Tag() != requiredTag {
			remaining = append(remaining, fe)
		}
	}
	if len(remaining) == 0 {
		return nil
	}
	return remaining
}

// jsonFieldName は json タグの名前を返します。"-" の場合は skip が true になります。
func jsonFieldName(sf reflect.StructField) (name string, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ = strings.Cut(tag, ",")
	return name, false
}

// isRequired は validate タグ (dive より前) に required が含まれるかを返します。
func isRequired(sf reflect.StructField) bool {
	for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
		rule = strings.TrimSpace(rule)
		if rule == "dive" {
			return false
		}
		if rule == requiredTag {
			return true
		}
	}
	return false
}

// lookupKey は encoding/json と同様に、完全一致を優先し大文字小文字を無視してキーを探します。
func lookupKey(obj map[string]jsoniter.RawMessage, name string) (jsoniter.RawMessage, bool) {
	if raw, ok := obj[name]; ok {
		return raw, true
	}
	for k, raw := range obj {
		if strings.EqualFold(k, name) {
			return raw, true
		}
	}
	return nil, false
}

func mapKeyString(k reflect.Value) (string, bool) {
	switch k.Kind() {
	case reflect.String:
		return k.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), true
	default:
		return "", false
	}
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
