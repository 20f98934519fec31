package contextutils

import (
	"strings"
)

// MaskAPIKey masks an API key so it can appear in log output. Keys longer
// than 8 characters keep their first and last 4 characters; shorter keys are
// masked entirely.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "[EMPTY]"
	}

	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}

	return apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
}
