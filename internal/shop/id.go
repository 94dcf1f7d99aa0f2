package shop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ID identifies a product, an order or a user on the wire.
//
// The backend emits ids as JSON integers in some payloads and as strings in
// others (Long values serialized with ToStringSerializer), and persisted
// client state mixes both. ID accepts either form and stores the trimmed,
// NFC-normalized string, so two ids are equal iff their strings are equal.
type ID string

// NewID returns the normalized form of s.
func NewID(s string) ID {
	return ID(norm.NFC.String(strings.TrimSpace(s)))
}

// IDFromInt returns the ID for an integer identifier.
func IDFromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// String returns the normalized string form.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return id == ""
}

// Int64 returns the id as an integer when it is a canonical decimal integer
// ("42", not "042" or "4.2").
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != string(id) {
		return 0, false
	}
	return n, true
}

// Equal compares two ids after normalization.
func (id ID) Equal(other ID) bool {
	return NewID(string(id)) == NewID(string(other))
}

// MarshalJSON emits canonical integers as JSON numbers and everything else
// as JSON strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int64(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = NewID(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = NewID(num.String())
		return nil
	default:
		return fmt.Errorf("id: unsupported JSON value %s", data)
	}
}

// ContainsID reports whether ids contains id, comparing normalized strings.
func ContainsID(ids []ID, id ID) bool {
	target := NewID(string(id))
	for _, candidate := range ids {
		if NewID(string(candidate)) == target {
			return true
		}
	}
	return false
}
