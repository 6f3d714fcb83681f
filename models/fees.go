package models

import (
	"encoding/json"
	"time"
)

// Payment status values for a StudentFee.
const (
	FeeStatusUnpaid   = "unpaid"
	FeeStatusPartial  = "partial"
	FeeStatusPaid     = "paid"
	FeeStatusOverpaid = "overpaid"
)

// Transaction types for the payment ledger.
const (
	TxnTypePayment        = "payment"
	TxnTypeRefund         = "refund"
	TxnTypeAdjustment     = "adjustment"
	TxnTypeBalanceForward = "balance_forward"
	TxnTypeOverpayment    = "overpayment"
	TxnTypeCreditApplied  = "credit_applied"
)

// FeeCharge is one itemized line inside FeeStructure.AdditionalCharges.
type FeeCharge struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// FeeStructure defines the charge schedule for a grade/term/year.
type FeeStructure struct {
	BaseModel
	GradeID           uint    `json:"grade_id" gorm:"not null;index"`
	TermID            uint    `json:"term_id" gorm:"not null;index"`
	AcademicYearID    uint    `json:"academic_year_id" gorm:"not null;index"`
	BasicFee          float64 `json:"basic_fee" gorm:"type:decimal(12,2);not null"`
	AdditionalCharges JSON    `json:"additional_charges" gorm:"type:json"`
	TotalFee          float64 `json:"total_fee" gorm:"type:decimal(12,2);not null"`
	IsActive          bool    `json:"is_active" gorm:"default:true"`

	// Relationships
	Grade        Grade        `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Term         Term         `json:"term,omitempty" gorm:"foreignKey:TermID"`
	AcademicYear AcademicYear `json:"academic_year,omitempty" gorm:"foreignKey:AcademicYearID"`
	StudentFees  []StudentFee `json:"student_fees,omitempty" gorm:"foreignKey:FeeStructureID"`
}

// Charges decodes the AdditionalCharges JSON blob. A nil or malformed blob
// decodes to an empty list.
func (fs *FeeStructure) Charges() []FeeCharge {
	if fs.AdditionalCharges.IsNull() {
		return nil
	}
	var charges []FeeCharge
	if err := json.Unmarshal(fs.AdditionalCharges, &charges); err != nil {
		return nil
	}
	return charges
}

// ChargesTotal sums the itemized additional charges.
func (fs *FeeStructure) ChargesTotal() float64 {
	var sum float64
	for _, ch := range fs.Charges() {
		sum += ch.Amount
	}
	return sum
}

// StudentFee is one student's running obligation against a FeeStructure.
// Rows are soft-deleted only; normal operation never removes them.
type StudentFee struct {
	BaseModel
	StudentID      uint       `json:"student_id" gorm:"not null;index:idx_student_structure,unique"`
	FeeStructureID uint       `json:"fee_structure_id" gorm:"not null;index:idx_student_structure,unique"`
	AmountPaid     float64    `json:"amount_paid" gorm:"type:decimal(12,2);default:0"`
	Balance        float64    `json:"balance" gorm:"type:decimal(12,2);default:0"`
	PaymentStatus  string     `json:"payment_status" gorm:"size:50;not null;default:'unpaid';type:enum('unpaid','partial','paid','overpaid')"`
	// NULL until the first payment mints a number; the unique index must
	// not collide on freshly assigned fees, and MySQL unique indexes allow
	// any number of NULLs but at most one empty string.
	ReceiptNumber *string    `json:"receipt_number" gorm:"size:50;uniqueIndex"`
	PaymentMethod string     `json:"payment_method" gorm:"size:50"`
	PaymentDate   *time.Time `json:"payment_date"`

	// Relationships
	Student      Student              `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	FeeStructure FeeStructure         `json:"fee_structure,omitempty" gorm:"foreignKey:FeeStructureID"`
	Transactions []PaymentTransaction `json:"transactions,omitempty" gorm:"foreignKey:StudentFeeID"`
}

// ComputePaymentStatus derives the payment status from cumulative amount paid
// against the total fee. Thresholds:
//
//	amountPaid <= 0            -> unpaid
//	0 < amountPaid < totalFee  -> partial
//	amountPaid == totalFee     -> paid
//	amountPaid > totalFee      -> overpaid
func ComputePaymentStatus(amountPaid, totalFee float64) string {
	switch {
	case amountPaid <= 0:
		return FeeStatusUnpaid
	case amountPaid < totalFee:
		return FeeStatusPartial
	case amountPaid == totalFee:
		return FeeStatusPaid
	default:
		return FeeStatusOverpaid
	}
}

// ComputeBalance returns max(0, totalFee - amountPaid). The balance never
// goes negative; overpayment is carried forward through the ledger instead.
func ComputeBalance(amountPaid, totalFee float64) float64 {
	if b := totalFee - amountPaid; b > 0 {
		return b
	}
	return 0
}

// Apply adds amount (which may be negative for refunds/adjustments) to the
// cumulative amount paid and recomputes balance and status against totalFee.
// The caller persists the row; Apply itself is pure arithmetic.
func (sf *StudentFee) Apply(amount, totalFee float64) {
	sf.AmountPaid += amount
	sf.Balance = ComputeBalance(sf.AmountPaid, totalFee)
	sf.PaymentStatus = ComputePaymentStatus(sf.AmountPaid, totalFee)
	if sf.PaymentStatus == FeeStatusPaid {
		sf.Balance = 0
	}
}

// Receipt returns the minted receipt number, or "" when no payment has
// been recorded yet.
func (sf *StudentFee) Receipt() string {
	if sf.ReceiptNumber == nil {
		return ""
	}
	return *sf.ReceiptNumber
}

// Overpayment returns how much the cumulative payments exceed the total fee,
// or 0 when not overpaid.
func (sf *StudentFee) Overpayment(totalFee float64) float64 {
	if sf.AmountPaid > totalFee {
		return sf.AmountPaid - totalFee
	}
	return 0
}

// PaymentTransaction is an immutable ledger row for one payment event.
type PaymentTransaction struct {
	BaseModel
	StudentFeeID    uint      `json:"student_fee_id" gorm:"not null;index"`
	Amount          float64   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Type            string    `json:"type" gorm:"size:50;not null;type:enum('payment','refund','adjustment','balance_forward','overpayment','credit_applied')"`
	ReferenceNumber string    `json:"reference_number" gorm:"size:50;not null;uniqueIndex"`
	PaymentMethod   string    `json:"payment_method" gorm:"size:50"`
	TransactionDate time.Time `json:"transaction_date" gorm:"not null"`
	ProcessedByID   uint      `json:"processed_by_id"`
	Notes           string    `json:"notes" gorm:"type:text"`
	Metadata        JSON      `json:"metadata" gorm:"type:json"`

	// Relationships
	StudentFee  StudentFee `json:"student_fee,omitempty" gorm:"foreignKey:StudentFeeID"`
	ProcessedBy User       `json:"processed_by,omitempty" gorm:"foreignKey:ProcessedByID"`
}

// ReferencePrefix maps a transaction type to the prefix encoded into its
// reference number. Unknown types fall back to TXN.
func ReferencePrefix(txnType string) string {
	switch txnType {
	case TxnTypePayment:
		return "PAY"
	case TxnTypeRefund:
		return "REF"
	case TxnTypeAdjustment:
		return "ADJ"
	case TxnTypeBalanceForward:
		return "BF"
	case TxnTypeOverpayment:
		return "OVP"
	case TxnTypeCreditApplied:
		return "CRD"
	default:
		return "TXN"
	}
}

// Impact is the signed effect of this transaction on a running balance
// timeline: positive for money in (payment, balance_forward, credit_applied),
// negative for money out (refund, adjustment). Overpayment rows are markers
// recording the excess already counted by their originating payment, so their
// impact is zero.
func (t *PaymentTransaction) Impact() float64 {
	switch t.Type {
	case TxnTypePayment, TxnTypeBalanceForward, TxnTypeCreditApplied:
		return t.Amount
	case TxnTypeRefund, TxnTypeAdjustment:
		return -t.Amount
	default:
		return 0
	}
}
