package models

import (
	"encoding/json"
	"testing"
)

func TestComputePaymentStatus(t *testing.T) {
	tests := []struct {
		name     string
		paid     float64
		total    float64
		expected string
	}{
		{name: "nothing paid", paid: 0, total: 5000, expected: FeeStatusUnpaid},
		{name: "negative after refund", paid: -200, total: 5000, expected: FeeStatusUnpaid},
		{name: "part paid", paid: 2500, total: 5000, expected: FeeStatusPartial},
		{name: "one shilling short", paid: 4999, total: 5000, expected: FeeStatusPartial},
		{name: "exactly paid", paid: 5000, total: 5000, expected: FeeStatusPaid},
		{name: "overpaid", paid: 5001, total: 5000, expected: FeeStatusOverpaid},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputePaymentStatus(tc.paid, tc.total); got != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name     string
		paid     float64
		total    float64
		expected float64
	}{
		{name: "unpaid", paid: 0, total: 5000, expected: 5000},
		{name: "partial", paid: 1500, total: 5000, expected: 3500},
		{name: "paid", paid: 5000, total: 5000, expected: 0},
		{name: "overpaid clamps to zero", paid: 6000, total: 5000, expected: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeBalance(tc.paid, tc.total); got != tc.expected {
				t.Fatalf("expected %.2f, got %.2f", tc.expected, got)
			}
		})
	}
}

func TestStudentFeeApply(t *testing.T) {
	fee := StudentFee{}

	fee.Apply(2000, 5000)
	if fee.AmountPaid != 2000 || fee.Balance != 3000 || fee.PaymentStatus != FeeStatusPartial {
		t.Fatalf("after first payment: paid=%.2f balance=%.2f status=%s",
			fee.AmountPaid, fee.Balance, fee.PaymentStatus)
	}

	fee.Apply(3000, 5000)
	if fee.AmountPaid != 5000 || fee.Balance != 0 || fee.PaymentStatus != FeeStatusPaid {
		t.Fatalf("after settling: paid=%.2f balance=%.2f status=%s",
			fee.AmountPaid, fee.Balance, fee.PaymentStatus)
	}

	fee.Apply(700, 5000)
	if fee.PaymentStatus != FeeStatusOverpaid || fee.Balance != 0 {
		t.Fatalf("after overpaying: balance=%.2f status=%s", fee.Balance, fee.PaymentStatus)
	}
	if got := fee.Overpayment(5000); got != 700 {
		t.Fatalf("expected overpayment 700, got %.2f", got)
	}

	fee.Apply(-1700, 5000)
	if fee.AmountPaid != 4000 || fee.Balance != 1000 || fee.PaymentStatus != FeeStatusPartial {
		t.Fatalf("after refund: paid=%.2f balance=%.2f status=%s",
			fee.AmountPaid, fee.Balance, fee.PaymentStatus)
	}
	if got := fee.Overpayment(5000); got != 0 {
		t.Fatalf("expected no overpayment, got %.2f", got)
	}
}

// Freshly assigned fees must carry a NULL receipt number, not the empty
// string, or the unique index rejects every fan-out after the first row.
func TestStudentFeeReceipt(t *testing.T) {
	var fee StudentFee
	if fee.ReceiptNumber != nil {
		t.Fatalf("fresh fee should have no receipt number, got %q", *fee.ReceiptNumber)
	}
	if got := fee.Receipt(); got != "" {
		t.Fatalf("expected empty receipt accessor, got %q", got)
	}

	minted := "RCP-2026-0042"
	fee.ReceiptNumber = &minted
	if got := fee.Receipt(); got != minted {
		t.Fatalf("expected %q, got %q", minted, got)
	}
}

func TestReferencePrefix(t *testing.T) {
	tests := []struct {
		txnType  string
		expected string
	}{
		{TxnTypePayment, "PAY"},
		{TxnTypeRefund, "REF"},
		{TxnTypeAdjustment, "ADJ"},
		{TxnTypeBalanceForward, "BF"},
		{TxnTypeOverpayment, "OVP"},
		{TxnTypeCreditApplied, "CRD"},
		{"something_else", "TXN"},
	}

	for _, tc := range tests {
		if got := ReferencePrefix(tc.txnType); got != tc.expected {
			t.Errorf("ReferencePrefix(%q) = %q, expected %q", tc.txnType, got, tc.expected)
		}
	}
}

func TestTransactionImpact(t *testing.T) {
	tests := []struct {
		txnType  string
		amount   float64
		expected float64
	}{
		{TxnTypePayment, 1000, 1000},
		{TxnTypeBalanceForward, 300, 300},
		{TxnTypeCreditApplied, 250, 250},
		{TxnTypeRefund, 400, -400},
		{TxnTypeAdjustment, 150, -150},
		{TxnTypeOverpayment, 300, 0},
	}

	for _, tc := range tests {
		txn := PaymentTransaction{Type: tc.txnType, Amount: tc.amount}
		if got := txn.Impact(); got != tc.expected {
			t.Errorf("Impact of %s(%.2f) = %.2f, expected %.2f", tc.txnType, tc.amount, got, tc.expected)
		}
	}
}

func TestFeeStructureCharges(t *testing.T) {
	charges := []FeeCharge{
		{Description: "Transport", Amount: 1200},
		{Description: "Lunch", Amount: 800},
	}
	raw, _ := json.Marshal(charges)

	fs := FeeStructure{BasicFee: 3000, AdditionalCharges: raw, TotalFee: 5000}
	if got := fs.ChargesTotal(); got != 2000 {
		t.Fatalf("expected charges total 2000, got %.2f", got)
	}
	if got := len(fs.Charges()); got != 2 {
		t.Fatalf("expected 2 charges, got %d", got)
	}

	empty := FeeStructure{}
	if empty.Charges() != nil {
		t.Fatal("expected nil charges for empty blob")
	}
	if got := empty.ChargesTotal(); got != 0 {
		t.Fatalf("expected 0 charges total, got %.2f", got)
	}

	malformed := FeeStructure{AdditionalCharges: JSON(`{"not":"a list"`)}
	if malformed.Charges() != nil {
		t.Fatal("expected nil charges for malformed blob")
	}
}
