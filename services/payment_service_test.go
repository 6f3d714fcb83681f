package services

import (
	"testing"

	"greenvale_go/models"
)

func TestOverpaidCrossing(t *testing.T) {
	tests := []struct {
		name          string
		before, after float64
		total         float64
		want          bool
	}{
		{"first crossing", 4000, 6000, 5000, true},
		{"starts at zero and overshoots", 0, 9000, 5000, true},
		{"from exactly paid to overpaid", 5000, 5500, 5000, true},
		{"already overpaid", 6000, 7000, 5000, false},
		{"lands exactly on total", 2000, 5000, 5000, false},
		{"stays partial", 1000, 2000, 5000, false},
		{"refund back under total", 6000, 4000, 5000, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := overpaidCrossing(tc.before, tc.after, tc.total)
			if got != tc.want {
				t.Fatalf("overpaidCrossing(%v, %v, %v) = %v, expected %v",
					tc.before, tc.after, tc.total, got, tc.want)
			}
		})
	}
}

// Resubmitting an identical payment counts it twice, and the overpaid
// threshold triggers a carry-forward only on the payment that crosses it.
func TestRepeatedPaymentsCountTwice(t *testing.T) {
	const total = 5000.0
	var fee models.StudentFee

	crossings := 0
	pay := func(amount float64) {
		before := fee.AmountPaid
		fee.Apply(amount, total)
		if overpaidCrossing(before, fee.AmountPaid, total) {
			crossings++
		}
	}

	pay(3000)
	pay(3000)

	if fee.AmountPaid != 6000 {
		t.Fatalf("duplicate submission should double the paid figure, got %v", fee.AmountPaid)
	}
	if fee.PaymentStatus != models.FeeStatusOverpaid {
		t.Fatalf("expected status overpaid, got %s", fee.PaymentStatus)
	}
	if crossings != 1 {
		t.Fatalf("expected exactly one overpaid crossing, got %d", crossings)
	}

	pay(500)
	if crossings != 1 {
		t.Fatalf("a payment on an already overpaid fee forwarded again (%d crossings)", crossings)
	}

	pay(-3000)
	pay(2000)
	if crossings != 2 {
		t.Fatalf("re-crossing after a refund should forward once more, got %d crossings", crossings)
	}
}
