package pipeline

import (
	"context"
	"strconv"
	"strings"
	"unicode"
)

// Transform derives the output value for a queued item.
type Transform func(ctx context.Context, item Item) (string, error)

// Scale returns the default transform: integers are multiplied by m and
// rendered in decimal, characters are upper-cased and repeated m times.
// Unknown kinds pass through as their raw payload.
func Scale(m int) Transform {
	return func(_ context.Context, item Item) (string, error) {
		switch item.Kind {
		case KindInt:
			return strconv.Itoa(item.Int * m), nil
		case KindChar:
			if m <= 0 {
				return "", nil
			}
			return strings.Repeat(string(unicode.ToUpper(item.Char)), m), nil
		default:
			return item.String(), nil
		}
	}
}

// Upper upper-cases characters and leaves every other kind unchanged.
func Upper() Transform {
	return func(_ context.Context, item Item) (string, error) {
		if item.Kind == KindChar {
			return string(unicode.ToUpper(item.Char)), nil
		}
		return item.String(), nil
	}
}

// transformFor returns the built-in transform named in cfg.
func transformFor(cfg Config) Transform {
	if cfg.Transform == TransformUpper {
		return Upper()
	}
	return Scale(cfg.Multiplier)
}
