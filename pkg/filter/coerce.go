package filter

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Null is the literal accepted by nullable fields.
const Null = "null"

// timeLayouts are the ISO-8601 forms accepted for TypeTime, most specific
// first. Layouts without an offset are read as UTC. Fractional seconds are
// accepted by time.Parse after the seconds field even when the layout omits
// them.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Coerce converts raw into the native value for t. Integers must parse
// exactly; there is no rounding or truncation.
func Coerce(t Type, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeInt64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				return nil, numErr.Err
			}
			return nil, err
		}
		return n, nil
	case TypeTime:
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, errors.New("not an ISO-8601 timestamp")
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

// Coerce converts raw for this field, wrapping failures in *ValueError.
func (f Field[T]) Coerce(raw string) (any, error) {
	if f.Nullable && raw == Null {
		return nil, nil
	}

	v, err := Coerce(f.Type, raw)
	if err != nil {
		return nil, &ValueError{Field: f.Name, Value: raw, Expected: f.Type, Err: err}
	}
	return v, nil
}
