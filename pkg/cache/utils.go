package cache

import (
	"fmt"
	"path"
	"strings"
)

// GenerateKeyWithParams creates a cache key with multiple parameters.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		fmt.Fprintf(&b, ":%v", param)
	}
	return b.String()
}

// BuildPattern creates a glob pattern for key matching.
func BuildPattern(prefix string) string {
	return fmt.Sprintf("%s*", prefix)
}

// matchPattern reports whether key matches a Redis-style glob pattern.
func matchPattern(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
