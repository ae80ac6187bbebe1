package sanitize

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxFilenameBytes = 200

// Filename strips path separators, quotes and control characters from an
// uploaded name. Leading and trailing spaces and dots are trimmed, so a name
// like "run.exe. " keeps its real extension. The result may be empty.
func Filename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == '"', r == '\'':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)

	cleaned = strings.Trim(cleaned, " .")
	if len(cleaned) > maxFilenameBytes {
		cleaned = truncateUTF8(cleaned, maxFilenameBytes)
	}
	return cleaned
}

// FilenameOr is Filename with a fallback for names that clean to nothing.
func FilenameOr(name, fallback string) string {
	if cleaned := Filename(name); cleaned != "" {
		return cleaned
	}
	return fallback
}

// HeaderFilename makes a name safe for a quoted Content-Disposition value.
// Non-ASCII runes become underscores.
func HeaderFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '_'
		}
		return r
	}, FilenameOr(name, "download"))
}

// Extension returns the lowercased final extension of the cleaned name,
// including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(Filename(name)))
}

func truncateUTF8(s string, max int) string {
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
