package utils

import (
	"testing"
	"time"

	"greenvale_go/models"
)

func TestBuildFeeTimeline(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC)
	}

	txns := []models.PaymentTransaction{
		{BaseModel: models.BaseModel{ID: 1}, Type: models.TxnTypePayment, Amount: 2000, TransactionDate: day(1)},
		{BaseModel: models.BaseModel{ID: 2}, Type: models.TxnTypeRefund, Amount: 500, TransactionDate: day(3)},
		{BaseModel: models.BaseModel{ID: 3}, Type: models.TxnTypePayment, Amount: 4000, TransactionDate: day(5)},
		{BaseModel: models.BaseModel{ID: 4}, Type: models.TxnTypeOverpayment, Amount: 500, TransactionDate: day(5)},
	}

	entries := BuildFeeTimeline(5000, txns)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	expected := []struct {
		runningPaid    float64
		runningBalance float64
	}{
		{2000, 3000},
		{1500, 3500},
		{5500, 0},
		{5500, 0}, // overpayment marker has zero impact
	}

	for i, exp := range expected {
		if entries[i].RunningPaid != exp.runningPaid {
			t.Errorf("entry %d: running paid %.2f, expected %.2f", i, entries[i].RunningPaid, exp.runningPaid)
		}
		if entries[i].RunningBalance != exp.runningBalance {
			t.Errorf("entry %d: running balance %.2f, expected %.2f", i, entries[i].RunningBalance, exp.runningBalance)
		}
	}
}

func TestBuildFeeTimelineEmpty(t *testing.T) {
	entries := BuildFeeTimeline(5000, nil)
	if len(entries) != 0 {
		t.Fatalf("expected empty timeline, got %d entries", len(entries))
	}
}

func TestToStudentShort(t *testing.T) {
	s := models.Student{
		BaseModel:   models.BaseModel{ID: 7},
		AdmissionNo: "GV-0042",
		FirstName:   "Wanjiru",
		LastName:    "Kamau",
		Grade:       models.Grade{BaseModel: models.BaseModel{ID: 3}, Name: "Grade 3"},
	}

	short := ToStudentShort(s)
	if short.ID != 7 || short.AdmissionNo != "GV-0042" || short.Grade != "Grade 3" {
		t.Fatalf("unexpected DTO: %+v", short)
	}
	if short.Section != "" {
		t.Fatalf("expected empty section, got %q", short.Section)
	}
}
