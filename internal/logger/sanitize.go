package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for logged fields
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength bounds prompts and responses logged in debug mode
	MaxDebugContentLength = 10000
)

// SanitizePath strips control characters from a URL path and caps its length.
func SanitizePath(path string) string {
	return truncate(filterRunes(path, false), MaxPathLength)
}

// SanitizeString strips control characters other than whitespace and caps s
// at maxLength bytes. A non-positive maxLength uses MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	return truncate(filterRunes(s, true), maxLength)
}

// SanitizeError renders err for a log field.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUserID masks the local part of an email user id so logs do not
// carry full addresses: "maria.lopez@example.com" becomes "m***z@example.com".
// Ids that are not emails are only cleaned and capped.
func SanitizeUserID(userID string) string {
	userID = truncate(filterRunes(userID, false), MaxUserIDLength)
	at := strings.LastIndexByte(userID, '@')
	if at <= 0 {
		return userID
	}
	local, domain := []rune(userID[:at]), userID[at:]
	if len(local) <= 2 {
		return string(local[:1]) + "***" + domain
	}
	return string(local[0]) + "***" + string(local[len(local)-1]) + domain
}

// filterRunes repairs UTF-8 and drops non-printable runes. Tabs and line
// breaks survive only when keepBreaks is set.
func filterRunes(s string, keepBreaks bool) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			if keepBreaks {
				return r
			}
			return -1
		case unicode.IsPrint(r) || r == ' ':
			return r
		default:
			return -1
		}
	}, s)
}

// truncate cuts s to at most max bytes on a rune boundary and marks the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
