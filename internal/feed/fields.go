package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return val, nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

// getOptionalStringField returns nil for a missing, null or blank field.
func getOptionalStringField(m map[string]interface{}, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want string or null", key, v)
	}
}

func getObjectField(m map[string]interface{}, key string) (map[string]interface{}, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing required field %q", key)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want object", key, v)
	}
	return obj, nil
}

// getDecimalField accepts both the quoted decimal strings the bank API
// sends and bare JSON numbers.
func getDecimalField(m map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("missing required field %q", key)
	}

	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	default:
		return decimal.Zero, fmt.Errorf("field %q has type %T, want decimal string or number", key, v)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q is not numeric: %q", key, s)
	}
	return d, nil
}

func getOptionalInt64Field(m map[string]interface{}, key string) (*int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return nil, fmt.Errorf("field %q has type %T, want integer or null", key, v)
	}
	i, err := num.Int64()
	if err != nil {
		return nil, fmt.Errorf("field %q is not an integer: %w", key, err)
	}
	return &i, nil
}
