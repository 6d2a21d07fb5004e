package utils

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// MarshalNoEscape marshals JSON without HTML escaping.
// This avoids inflating payloads by converting characters like '<' into \u003c.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder adds a trailing newline; remove it for parity with json.Marshal.
	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return out, nil
}

// CanonicalJSON returns a stable serialization of v: object keys are sorted
// at every depth, insignificant whitespace is dropped and numbers keep their
// original textual form. Logically equal values always produce equal bytes.
func CanonicalJSON(v any) ([]byte, error) {
	raw, ok := v.(json.RawMessage)
	if !ok {
		b, err := MarshalNoEscape(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("canonicalizing json: invalid JSON")
	}
	return pretty.Ugly(pretty.PrettyOptions(raw, &pretty.Options{SortKeys: true})), nil
}
