package agent

import "strings"

func lower(s string) string {
	return strings.ToLower(s)
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
