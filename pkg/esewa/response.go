package esewa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// DecodeResponse turns the base64 JSON blob eSewa appends to its redirect URLs
// into a field mapping. It never fails: any decoding problem yields a single
// "error" entry describing it.
//
// Numbers keep their JSON literal ("1000.0" stays "1000.0") since the gateway
// signs that exact text.
func DecodeResponse(blob string) map[string]string {
	fields, err := decodeResponse(blob)
	if err != nil {
		return map[string]string{FieldError: fmt.Sprintf("Failed to decode response: %v", err)}
	}
	return fields
}

func decodeResponse(blob string) (map[string]string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, errInvalidUTF8
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}

	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		s, err := stringifyValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		fields[k] = s
	}
	return fields, nil
}

func stringifyValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		// the literal as sent; the gateway signs its own text, so 1e3 stays 1e3
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// EncodeResponse is the inverse of DecodeResponse for string mappings: it
// renders fields as a JSON object and base64 encodes it.
func EncodeResponse(fields map[string]string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
