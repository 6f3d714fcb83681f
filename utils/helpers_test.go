package utils

import (
	"regexp"
	"testing"
	"time"
)

func TestNewReceiptNumber(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^RCP-2026-\d{4}$`)

	for i := 0; i < 20; i++ {
		got := NewReceiptNumber(now)
		if !pattern.MatchString(got) {
			t.Fatalf("receipt number %q does not match RCP-<year>-<4 digits>", got)
		}
	}
}

func TestNewReferenceNumber(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		prefix  string
		pattern string
	}{
		{"PAY", `^PAY-20260315-\d{6}$`},
		{"REF", `^REF-20260315-\d{6}$`},
		{"BF", `^BF-20260315-\d{6}$`},
	}

	for _, tc := range tests {
		re := regexp.MustCompile(tc.pattern)
		got := NewReferenceNumber(tc.prefix, now)
		if !re.MatchString(got) {
			t.Errorf("reference number %q does not match %s", got, tc.pattern)
		}
	}
}

func TestGenerateRandomString(t *testing.T) {
	got, err := GenerateRandomString(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 characters, got %d (%q)", len(got), got)
	}
	if other, _ := GenerateRandomString(10); other == got {
		t.Fatalf("two generated strings are identical: %q", got)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckPassword("s3cret-pass", hash); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}
	if err := CheckPassword("wrong-pass", hash); err == nil {
		t.Fatal("wrong password accepted")
	}
}

func TestNullIfEmpty(t *testing.T) {
	if got := NullIfEmpty(""); got != nil {
		t.Fatalf("expected nil for empty string, got %q", *got)
	}
	got := NullIfEmpty("admin@greenvale.ac.ke")
	if got == nil || *got != "admin@greenvale.ac.ke" {
		t.Fatalf("expected pointer to the input, got %v", got)
	}
}

func TestIsValidRole(t *testing.T) {
	for _, role := range []string{"admin", "teacher", "student", "guardian"} {
		if !IsValidRole(role) {
			t.Errorf("expected %q to be valid", role)
		}
	}
	for _, role := range []string{"owner", "ADMIN", ""} {
		if IsValidRole(role) {
			t.Errorf("expected %q to be invalid", role)
		}
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"pdf", "jpg", "png"}

	tests := []struct {
		filename string
		expected bool
	}{
		{"statement.pdf", true},
		{"photo.JPG", true},
		{"archive.zip", false},
		{"noextension", false},
		{"", false},
	}

	for _, tc := range tests {
		if got := IsValidFileExtension(tc.filename, allowed); got != tc.expected {
			t.Errorf("IsValidFileExtension(%q) = %v, expected %v", tc.filename, got, tc.expected)
		}
	}
}
