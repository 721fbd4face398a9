package logging

import (
	"regexp"
)

// Sanitizer redacts credentials from log output. Evidence references are
// frequently pre-signed object-store URLs, so their signature parameters are
// redacted while the object path stays readable.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Google AI (Gemini) API keys
		`AIza[a-zA-Z0-9_-]{35}`,
		// AWS access key id
		`AKIA[0-9A-Z]{16}`,
		// AWS secret access key
		`(?i)aws[_-]?secret[_-]?access[_-]?key["'\s:=]+[A-Za-z0-9/+=]{40}`,
		// Pre-signed URL signatures and credentials (S3 SigV4, GCS)
		`(?i)X-(Amz|Goog)-(Signature|Credential|Security-Token)=[^&\s"']+`,
		// Internal API key header
		`(?i)x-api-key["'\s:=]+[^\s"']{8,}`,
		// Bearer tokens
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// Generic API keys
		`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		// Generic secrets
		`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		// Generic passwords
		`(?i)password["'\s:=]+[^\s"']{8,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts sensitive information from a string.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// AddPattern adds a custom pattern, e.g. the configured internal API key.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

// AddSecret redacts an exact secret value wherever it appears.
func (s *Sanitizer) AddSecret(secret string) {
	if len(secret) < 4 {
		return
	}
	s.patterns = append(s.patterns, regexp.MustCompile(regexp.QuoteMeta(secret)))
}
