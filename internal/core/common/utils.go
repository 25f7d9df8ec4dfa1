package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrEmptyBody = errors.New("empty request body")

// ParseJSON unmarshals body into a T. Some clients send the payload as a JSON
// string whose content is itself the JSON object; that extra layer is peeled
// off first.
func ParseJSON[T any](body []byte) (T, error) {
	var zero T
	data := bytes.TrimSpace(body)
	if len(data) == 0 {
		return zero, ErrEmptyBody
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return zero, fmt.Errorf("failed to unwrap JSON string: %w", err)
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 {
			return zero, ErrEmptyBody
		}
	}

	if data[0] != '{' {
		return zero, fmt.Errorf("no JSON object found in body")
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}
