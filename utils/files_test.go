package utils

import (
	"regexp"
	"strings"
	"testing"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32\config`, "config"},
		{"my file (final).pdf", "my_file__final_.pdf"},
		{"résumé.pdf", "r_sum_.pdf"},
		{"....", "file"},
		{"", "file"},
		{"__.hidden.__", "hidden"},
	}

	for _, tc := range tests {
		if got := SecureFilename(tc.in); got != tc.want {
			t.Errorf("SecureFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTimestampedFilename(t *testing.T) {
	got := TimestampedFilename("report.pdf")
	if !regexp.MustCompile(`^\d+_report\.pdf$`).MatchString(got) {
		t.Fatalf("unexpected format: %q", got)
	}

	if got := TimestampedFilename("../evil.pdf"); strings.Contains(got, "..") {
		t.Fatalf("path components survived sanitization: %q", got)
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{0, "0 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1048576, "5.0 MB"},
		{52428800, "50.0 MB"},
	}

	for _, tc := range tests {
		if got := HumanReadableSize(tc.size); got != tc.want {
			t.Errorf("HumanReadableSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}
