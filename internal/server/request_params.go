package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var errInvalidID = errors.New("invalid id")

// FlexibleIDs accepts `"1"`, `1` or `["1", 2]`. A single id becomes a one-element list.
type FlexibleIDs []string

func (f *FlexibleIDs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = nil
		return nil
	}

	if trimmed[0] != '[' {
		id, err := flexibleID(trimmed)
		if err != nil {
			return err
		}
		*f = nil
		if id != "" {
			*f = FlexibleIDs{id}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	ids := make(FlexibleIDs, 0, len(items))
	for _, item := range items {
		id, err := flexibleID(item)
		if err != nil {
			return err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	*f = ids
	return nil
}

func flexibleID(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err != nil {
		return "", errInvalidID
	}
	if _, err := strconv.ParseInt(number.String(), 10, 64); err != nil {
		return "", errInvalidID
	}
	return number.String(), nil
}

// parseOptionalBool reads the `verified` style filters. Empty means no filter.
func parseOptionalBool(value string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return nil, nil
	case "1", "true", "yes":
		parsed := true
		return &parsed, nil
	case "0", "false", "no":
		parsed := false
		return &parsed, nil
	default:
		return nil, strconv.ErrSyntax
	}
}
