package route

import (
	"fmt"
	"strings"
)

// ValidatePath checks that p is an absolute route path: it starts with a
// slash, has no empty segments, no trailing slash (except "/" itself) and no
// query or fragment characters.
func ValidatePath(p string) error {
	if p == "/" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPath, p)
	}
	if strings.ContainsAny(p, "?# \t\r\n") {
		return fmt.Errorf("%w: %q contains reserved characters", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p[1:], "/") {
		if seg == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, p)
		}
	}
	return nil
}

// Join concatenates a main route and a route path.
func Join(main, p string) string {
	main = strings.TrimSuffix(main, "/")
	if p == "/" {
		if main == "" {
			return "/"
		}
		return main
	}
	return main + p
}
