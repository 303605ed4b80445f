package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SecureFilename strips path components and replaces anything outside a
// conservative character set, so user-supplied names cannot escape the
// upload directory.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}

	cleaned := strings.Trim(sb.String(), "._")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned
}

// TimestampedFilename prefixes the sanitized name with a unix timestamp to
// avoid collisions between uploads.
func TimestampedFilename(name string) string {
	cleaned := SecureFilename(name)
	ext := filepath.Ext(cleaned)
	base := strings.TrimSuffix(cleaned, ext)
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d_%s%s", time.Now().Unix(), base, ext)
}

// HumanReadableSize formats a byte count the way file listings expect.
func HumanReadableSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1048576:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/1048576)
	}
}
