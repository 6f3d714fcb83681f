package services

import (
	"strings"
	"testing"
	"time"

	"greenvale_go/models"
)

func TestReceiptFileName(t *testing.T) {
	got := ReceiptFileName("RCP-2026-0417")
	if got != "receipt-RCP-2026-0417.pdf" {
		t.Fatalf("unexpected receipt file name: %q", got)
	}
}

func TestStatementFileName(t *testing.T) {
	student := models.Student{FirstName: "Njeri", LastName: "Otieno"}
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		period   string
		expected string
	}{
		{name: "year period", period: "2026", expected: "Payment_Statement_Njeri_Otieno_2026_20260315.pdf"},
		{name: "term period", period: "2026-Term 1", expected: "Payment_Statement_Njeri_Otieno_2026-Term_1_20260315.pdf"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := StatementFileName(student, tc.period, date); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestStatementFileNameSanitizesSlashes(t *testing.T) {
	student := models.Student{FirstName: "A/B", LastName: "C"}
	got := StatementFileName(student, "2026/27", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	if strings.ContainsAny(got, "/\\") {
		t.Fatalf("file name %q contains a path separator", got)
	}
}
