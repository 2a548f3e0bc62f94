package credstore

import (
	"fmt"
	"strings"
)

// MinTokenLength is the shortest string accepted as a token.
const MinTokenLength = 30

// tokenSegments is the usual number of '|'-separated parts in a Quip token.
const tokenSegments = 3

func shapeValid(token string) bool {
	return len(token) >= MinTokenLength
}

func segmentCount(token string) int {
	if !strings.Contains(token, "|") {
		return 1
	}
	return len(strings.Split(token, "|"))
}

// redact renders a token for diagnostics without revealing it.
func redact(token string) string {
	if len(token) < 12 {
		return fmt.Sprintf("*** (length: %d)", len(token))
	}
	return fmt.Sprintf("%s...%s (length: %d)", token[:4], token[len(token)-4:], len(token))
}
