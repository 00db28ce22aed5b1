package logger

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// emailShape finds the address whose redaction is computed. Neither part may
	// contain parentheses, spaces or '@'.
	emailShape = regexp.MustCompile(`([^() @]+)@([^() @]+)\.(\w{2,})`)

	// emailSites is looser than emailShape ('@' is allowed inside the parts) and
	// selects every span that gets overwritten with the redacted address.
	emailSites = regexp.MustCompile(`([^() ]+)@([^() ]+)\.(\w{2,})`)
)

// MaskEmailAddress redacts an email address embedded in a user agent string,
// so "abcd@defg.be" becomes "a***@d***.be".
//
// Only the first address is redacted and that single redacted form is written
// over every address-shaped span in the text. A user agent carrying two
// different addresses therefore ends up with the first one's redaction twice.
func MaskEmailAddress(userAgent string) string {
	m := emailShape.FindStringSubmatch(userAgent)
	if m == nil {
		return userAgent
	}

	redacted := maskKeepFirst(m[1]) + "@" + maskKeepFirst(m[2]) + "." + m[3]
	return emailSites.ReplaceAllLiteralString(userAgent, redacted)
}

// maskKeepFirst keeps the first character of s and stars out the rest.
func maskKeepFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(r) + strings.Repeat("*", utf8.RuneCountInString(s)-1)
}
