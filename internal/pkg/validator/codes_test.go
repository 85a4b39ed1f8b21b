package validator

import (
	"testing"
)

func TestTrackingCode(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"CFX123456BR", nil},
		{"  cfx-123456  ", nil},
		{"", ErrEmptyCode},
		{"   ", ErrEmptyCode},
		{"AB12", ErrCodeLength},
		{"A1234567890123456789012345678901234567890", ErrCodeLength},
		{"CFX123' OR 1=1", ErrCodeCharset},
		{"CFX%2012345", ErrCodeCharset},
	}

	for _, tt := range tests {
		if got := TrackingCode(tt.code); got != tt.want {
			t.Errorf("TrackingCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestExternalReference(t *testing.T) {
	tests := []struct {
		ref  string
		want error
	}{
		{"confix_abc123", nil},
		{"confix_a-b_c", nil},
		{"confix_", ErrReferencePrefix},
		{"order_123", ErrReferencePrefix},
		{"CONFIX_abc", ErrReferencePrefix},
		{"confix_abc 123", ErrReferenceCharset},
		{"confix_abc;drop", ErrReferenceCharset},
	}

	for _, tt := range tests {
		if got := ExternalReference(tt.ref, "confix_"); got != tt.want {
			t.Errorf("ExternalReference(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
	if err := ExternalReference("confix_abc", ""); err != ErrReferencePrefix {
		t.Errorf("empty prefix should reject, got %v", err)
	}
}
