package transport

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// NonceParam is the cache-busting query parameter.
const NonceParam = "_"

// BuildURL appends non-empty params and the nonce to endpoint.
func BuildURL(endpoint string, params Params, nonce string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}

	q := u.Query()
	for k, v := range params {
		s, ok := stringify(v)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		q.Set(k, s)
	}
	if nonce != "" {
		q.Set(NonceParam, nonce)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EncodeForm form-encodes body, dropping nil values.
func EncodeForm(body Params) string {
	v := url.Values{}
	for k, val := range body {
		s, ok := stringify(val)
		if !ok {
			continue
		}
		v.Set(k, s)
	}
	return v.Encode()
}

// EncodeJSON encodes body as a JSON object, dropping nil values.
func EncodeJSON(body Params) ([]byte, error) {
	clean := make(map[string]any, len(body))
	for k, v := range body {
		if isNil(v) {
			continue
		}
		clean[k] = v
	}
	return json.Marshal(clean)
}

// stringify renders a parameter value; ok is false for nil.
func stringify(v any) (string, bool) {
	if isNil(v) {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}

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
