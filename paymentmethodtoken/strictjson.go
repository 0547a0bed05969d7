/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package paymentmethodtoken

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeStrictObject decodes a JSON object into its top-level key -> raw
// value pairs, rejecting documents that are not an object and rejecting
// duplicate keys (encoding/json's Unmarshal into a map silently keeps the
// last occurrence of a repeated key). The returned map's length also gives
// the exact key count envelope-shape checks need.
func decodeStrictObject(data []byte) (map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	result := make(map[string]json.RawMessage)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}

		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string object key")
		}

		if _, exists := result[key]; exists {
			return nil, fmt.Errorf("duplicate JSON key %q", key)
		}

		var raw json.RawMessage

		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON value for key %q: %w", key, err)
		}

		result[key] = raw
	}

	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return result, nil
}

func jsonString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a JSON string: %w", err)
	}

	return s, nil
}

func jsonStringArray(raw json.RawMessage) ([]string, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("expected a JSON array of strings: %w", err)
	}

	return arr, nil
}
