package utils

import "regexp"

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskKey returns a loggable preview of a credential: first and last two
// characters with the middle elided. Keys too short to preview safely are
// fully masked.
func MaskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:2] + "***" + key[len(key)-2:]
}
