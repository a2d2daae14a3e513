package queue

import (
	"fmt"
	"strings"
)

// qualifiedStructName returns the package-qualified type name of v, pointer stars stripped.
func qualifiedStructName(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
