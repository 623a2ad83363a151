package store

import (
	"bytes"
	"encoding/gob"
	"reflect"
)

// EncodeValue serializes v with encoding/gob. Only exported fields survive,
// and values stored behind interfaces must be registered with gob.Register.
func EncodeValue(v any) ([]byte, error) {
	if isNil(v) {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isNil reports whether v is nil or a typed nil gob cannot encode.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// DecodeValue decodes data produced by EncodeValue into a T. Empty input
// yields the zero value.
func DecodeValue[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}
