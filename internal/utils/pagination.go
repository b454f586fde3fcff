// Package utils holds small helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 int and falls back to def when s is
// empty or not a valid integer. Handlers use it for optional numeric query
// parameters such as page and page_size, where absence and garbage both
// mean "use the default".
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
