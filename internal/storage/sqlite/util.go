package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// placeholders builds a "?, ?, ?" clause and the matching args for an IN query.
func placeholders(ids []string) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

// toStringSlice converts an update value into a string slice. JSON decoding
// hands us []interface{}, typed callers hand us []string.
func toStringSlice(v interface{}) ([]string, error) {
	switch vv := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return vv, nil
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected string list, got %T", v)
}

// toNullableString unwraps string and *string update values; nil stays nil.
func toNullableString(v interface{}) *string {
	switch vv := v.(type) {
	case string:
		return &vv
	case *string:
		return vv
	}
	return nil
}

// toNullableTime converts a due_date update value into a time.Time the driver
// stores uniformly. Strings are already validated as RFC 3339 by this point.
func toNullableTime(v interface{}) interface{} {
	switch vv := v.(type) {
	case nil:
		return nil
	case time.Time:
		return vv.UTC()
	case *time.Time:
		if vv == nil {
			return nil
		}
		return vv.UTC()
	case string:
		t, err := time.Parse(time.RFC3339Nano, vv)
		if err != nil {
			return nil
		}
		return t.UTC()
	}
	return v
}

// normalizeArg flattens pointer wrappers so database/sql sees plain values.
func normalizeArg(v interface{}) interface{} {
	switch vv := v.(type) {
	case *string:
		if vv == nil {
			return nil
		}
		return *vv
	}
	return v
}
