package util

import "strings"

// SanitizeText strips invalid UTF-8 sequences and NUL bytes, neither
// of which Postgres text columns accept.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}
	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// TruncateRunesafe caps s at max bytes without splitting a rune.
func TruncateRunesafe(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
