package utils

import (
	"errors"
	"fmt"
)

var ErrInvalidFlag = errors.New("invalid boolean flag")

// ParseActivationFlag accepts a JSON boolean or one of the strings
// "true", "false", "1", "0". Anything else is rejected.
func ParseActivationFlag(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch x {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("%w: %q", ErrInvalidFlag, x)
	case nil:
		return false, fmt.Errorf("%w: missing value", ErrInvalidFlag)
	default:
		return false, fmt.Errorf("%w: unsupported type %T", ErrInvalidFlag, v)
	}
}
