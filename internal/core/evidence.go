package core

import (
	"fmt"
	"net/url"
	"regexp"
)

// EvidenceRef references a photograph supplied with a report.
type EvidenceRef string

// MaxEvidencePerReport bounds the evidence refs accepted with one report.
const MaxEvidencePerReport = 10

// Validate checks that the reference is an absolute http(s) URL.
func (r EvidenceRef) Validate() error {
	u, err := url.Parse(string(r))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrValidation(CodeInvalidEvidenceRef, fmt.Sprintf("invalid evidence reference: %q", string(r)))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrValidation(CodeInvalidEvidenceRef, fmt.Sprintf("unsupported evidence scheme: %s", u.Scheme))
	}
	return nil
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateID checks an externally supplied identifier.
func ValidateID(field, value string) error {
	if !idPattern.MatchString(value) {
		return ErrValidation(CodeInvalidID, fmt.Sprintf("invalid %s", field)).WithDetail("field", field)
	}
	return nil
}
