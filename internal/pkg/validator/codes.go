package validator

import (
	"errors"
	"strings"
)

const (
	minTrackingCodeLen = 6
	maxTrackingCodeLen = 40
)

var (
	ErrEmptyCode        = errors.New("tracking code is required")
	ErrCodeLength       = errors.New("tracking code has an invalid length")
	ErrCodeCharset      = errors.New("tracking code contains invalid characters")
	ErrReferencePrefix  = errors.New("external reference does not carry the reserved prefix")
	ErrReferenceCharset = errors.New("external reference contains invalid characters")
)

// TrackingCode checks the shape of a tracking code before it reaches the store: letters, digits and
// dashes, within length bounds. Case and surrounding spaces are ignored.
func TrackingCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	if len(code) < minTrackingCodeLen || len(code) > maxTrackingCodeLen {
		return ErrCodeLength
	}
	for _, r := range code {
		if !isAlnum(r) && r != '-' {
			return ErrCodeCharset
		}
	}
	return nil
}

// ExternalReference checks that ref was issued by us: it starts with prefix and has a
// non-empty suffix of letters, digits, dashes or underscores.
func ExternalReference(ref, prefix string) error {
	if prefix == "" || !strings.HasPrefix(ref, prefix) || len(ref) == len(prefix) {
		return ErrReferencePrefix
	}
	for _, r := range ref[len(prefix):] {
		if !isAlnum(r) && r != '-' && r != '_' {
			return ErrReferenceCharset
		}
	}
	return nil
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
