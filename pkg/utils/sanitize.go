package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

// --- Filename Sanitization ---
var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
var consecutiveUnderscores = regexp.MustCompile(`_{2,}`)

const maxFilenameLength = 128

// SanitizeFilename cleans a basename so it is safe to create on Windows and Unix.
// Truncation keeps the extension, and an empty result becomes "download".
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ .")

	if len(sanitized) > maxFilenameLength {
		ext := filepath.Ext(sanitized)
		if len(ext) >= maxFilenameLength/2 {
			ext = ""
		}
		stem := strings.TrimSuffix(sanitized, ext)
		stem = truncateUTF8(stem, maxFilenameLength-len(ext))
		sanitized = strings.Trim(stem, "_ ") + ext
	}

	if sanitized == "" {
		sanitized = "download"
	}
	return sanitized
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
