// Package validation sanitizes and checks untrusted input from the HTTP,
// MCP and CLI surfaces.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	clerrors "github.com/Aman-CERP/claridoc/internal/errors"
)

const (
	// DefaultMaxQueryLength caps queries, in characters.
	DefaultMaxQueryLength = 1000
	// MaxFilenameLength caps sanitized file names, in characters.
	MaxFilenameLength = 255
	// FallbackFilename replaces names that sanitize to nothing.
	FallbackFilename = "unnamed_file"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.-]`)

// SanitizeQuery removes NUL bytes, truncates to maxLen characters and trims
// surrounding whitespace. A result of "" means the query is unusable.
func SanitizeQuery(query string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}
	query = strings.ReplaceAll(query, "\x00", "")
	return strings.TrimSpace(TruncateRunes(query, maxLen))
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CheckQuery sanitizes query and returns EmptyQueryFailure when nothing is left.
func CheckQuery(query string, maxLen int) (string, error) {
	q := SanitizeQuery(query, maxLen)
	if q == "" {
		return "", clerrors.EmptyQueryFailure()
	}
	return q, nil
}

// SanitizeFilename keeps only the base name and safe characters. Long names
// are cut before the extension so the extension survives.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		name = ""
	}

	clean := unsafeFilenameChars.ReplaceAllString(name, "")
	clean = strings.Trim(clean, ". ")

	if utf8.RuneCountInString(clean) > MaxFilenameLength {
		ext := filepath.Ext(clean)
		stem := []rune(strings.TrimSuffix(clean, ext))
		keep := MaxFilenameLength - utf8.RuneCountInString(ext)
		if keep < 0 {
			keep = 0
			ext = string([]rune(ext)[:MaxFilenameLength])
		}
		clean = string(stem[:min(keep, len(stem))]) + ext
	}

	if clean == "" {
		return FallbackFilename
	}
	return clean
}

// ValidateExtension checks name's extension, case-insensitively, against allowed.
func ValidateExtension(name string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return nil
		}
	}
	return clerrors.New(clerrors.ErrCodeUnsupportedFileType,
		fmt.Sprintf("file type %q is not allowed, use one of %s", ext, strings.Join(allowed, ", ")), nil)
}

// ValidateSessionID accepts only canonical 36-character UUIDv4 strings.
func ValidateSessionID(id string) error {
	invalid := clerrors.New(clerrors.ErrCodeInvalidSession, "invalid session ID format", nil)
	if len(id) != 36 {
		return invalid
	}
	u, err := uuid.Parse(id)
	if err != nil || u.Version() != 4 || u.Variant() != uuid.RFC4122 {
		return invalid
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs whose host is a dotted
// domain, localhost or an IPv4 address.
func ValidateURL(raw string) error {
	invalid := clerrors.ValidationError("invalid URL, use an http or https address", nil)

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return invalid
	}
	host := u.Hostname()
	switch {
	case host == "":
		return invalid
	case host == "localhost":
	case net.ParseIP(host) != nil && net.ParseIP(host).To4() != nil:
	case strings.Contains(strings.Trim(host, "."), "."):
	default:
		return invalid
	}
	if strings.ContainsAny(raw, " \t\n") {
		return invalid
	}
	return nil
}
