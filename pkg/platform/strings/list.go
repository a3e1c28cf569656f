// Package strings holds small string helpers shared by config and the CLI.
package strings

import (
	"strings"
)

// SplitList splits s on sep, trims each element and drops empties and
// repeats. Order of first appearance is kept.
func SplitList(s, sep string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}
