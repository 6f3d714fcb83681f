package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"greenvale_go/database"
	"greenvale_go/models"
	"greenvale_go/utils"
)

// PaymentData carries the optional attributes of a payment event.
type PaymentData struct {
	PaymentDate   *time.Time     `json:"payment_date"`
	ReceiptNumber string         `json:"receipt_number"`
	PaymentMethod string         `json:"payment_method"`
	Notes         string         `json:"notes"`
	Metadata      map[string]any `json:"metadata"`
}

// PaymentResult is returned from ProcessPayment. Forward is non-nil only
// when this payment pushed the fee over its total and a carry-forward ran.
type PaymentResult struct {
	Fee         models.StudentFee         `json:"fee"`
	Transaction models.PaymentTransaction `json:"transaction"`
	Forward     *ForwardResult            `json:"forward,omitempty"`
}

// PaymentService owns the fee bookkeeping write path. Every mutation runs
// inside one database transaction with a FOR UPDATE lock on the StudentFee
// row, so concurrent payments against the same fee serialize instead of
// losing updates.
type PaymentService struct {
	db      *gorm.DB
	forward *BalanceForwardService
}

// NewPaymentService creates a PaymentService backed by the global database.
func NewPaymentService() *PaymentService {
	return &PaymentService{
		db:      database.GetDB(),
		forward: NewBalanceForwardService(),
	}
}

// ProcessPayment records a payment of amount against a StudentFee.
//
// amount may be any signed value; negative amounts reduce the cumulative
// paid figure the same way a refund does, without a validation error.
// The call is NOT idempotent: submitting the same amount twice counts it
// twice.
func (ps *PaymentService) ProcessPayment(studentFeeID uint, amount float64, data PaymentData, processedBy uint) (*PaymentResult, error) {
	var result PaymentResult

	err := ps.db.Transaction(func(tx *gorm.DB) error {
		fee, structure, err := lockFee(tx, studentFeeID)
		if err != nil {
			return err
		}

		paidBefore := fee.AmountPaid

		fee.Apply(amount, structure.TotalFee)

		when := time.Now()
		if data.PaymentDate != nil {
			when = *data.PaymentDate
		}
		fee.PaymentDate = &when
		if data.PaymentMethod != "" {
			fee.PaymentMethod = data.PaymentMethod
		}

		if data.ReceiptNumber != "" {
			fee.ReceiptNumber = &data.ReceiptNumber
		} else if fee.ReceiptNumber == nil {
			rcpt, err := uniqueReceiptNumber(tx, when)
			if err != nil {
				return err
			}
			fee.ReceiptNumber = &rcpt
		}

		if err := tx.Save(fee).Error; err != nil {
			return fmt.Errorf("save student fee: %w", err)
		}

		txn, err := appendTransaction(tx, fee.ID, amount, models.TxnTypePayment, data, when, processedBy)
		if err != nil {
			return err
		}
		result.Transaction = *txn

		// One carry-forward per crossing of the overpaid threshold
		if overpaidCrossing(paidBefore, fee.AmountPaid, structure.TotalFee) {
			fwd, err := ps.forward.ProcessOverpayment(tx, fee, structure, fee.Overpayment(structure.TotalFee), processedBy)
			if err != nil {
				return err
			}
			result.Forward = fwd
		}

		result.Fee = *fee
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Refund records a refund of amount against a StudentFee, reducing the
// cumulative paid figure and appending a refund ledger row.
func (ps *PaymentService) Refund(studentFeeID uint, amount float64, data PaymentData, processedBy uint) (*PaymentResult, error) {
	return ps.deduct(studentFeeID, amount, models.TxnTypeRefund, data, processedBy)
}

// Adjust records a downward correction against a StudentFee.
func (ps *PaymentService) Adjust(studentFeeID uint, amount float64, data PaymentData, processedBy uint) (*PaymentResult, error) {
	return ps.deduct(studentFeeID, amount, models.TxnTypeAdjustment, data, processedBy)
}

func (ps *PaymentService) deduct(studentFeeID uint, amount float64, txnType string, data PaymentData, processedBy uint) (*PaymentResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%s amount must not be negative", txnType)
	}

	var result PaymentResult
	err := ps.db.Transaction(func(tx *gorm.DB) error {
		fee, structure, err := lockFee(tx, studentFeeID)
		if err != nil {
			return err
		}

		fee.Apply(-amount, structure.TotalFee)
		if err := tx.Save(fee).Error; err != nil {
			return fmt.Errorf("save student fee: %w", err)
		}

		when := time.Now()
		if data.PaymentDate != nil {
			when = *data.PaymentDate
		}
		txn, err := appendTransaction(tx, fee.ID, amount, txnType, data, when, processedBy)
		if err != nil {
			return err
		}

		result.Fee = *fee
		result.Transaction = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ApplyCredit applies a standing credit (e.g. an overpayment that found no
// target term when it was recorded) to a StudentFee as a credit_applied row.
func (ps *PaymentService) ApplyCredit(studentFeeID uint, amount float64, data PaymentData, processedBy uint) (*PaymentResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit amount must be positive")
	}

	var result PaymentResult
	err := ps.db.Transaction(func(tx *gorm.DB) error {
		fee, structure, err := lockFee(tx, studentFeeID)
		if err != nil {
			return err
		}

		fee.Apply(amount, structure.TotalFee)
		if err := tx.Save(fee).Error; err != nil {
			return fmt.Errorf("save student fee: %w", err)
		}

		when := time.Now()
		if data.PaymentDate != nil {
			when = *data.PaymentDate
		}
		txn, err := appendTransaction(tx, fee.ID, amount, models.TxnTypeCreditApplied, data, when, processedBy)
		if err != nil {
			return err
		}

		result.Fee = *fee
		result.Transaction = *txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// overpaidCrossing reports whether a payment pushed the cumulative paid
// figure over the total for the first time. Only this first crossing
// triggers a carry-forward; further payments on an already overpaid fee
// append ledger rows without forwarding again.
func overpaidCrossing(paidBefore, paidAfter, totalFee float64) bool {
	return paidBefore <= totalFee && paidAfter > totalFee
}

// lockFee loads a StudentFee with a row-level write lock plus its fee
// structure. Must be called inside a transaction.
func lockFee(tx *gorm.DB, studentFeeID uint) (*models.StudentFee, *models.FeeStructure, error) {
	var fee models.StudentFee
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&fee, studentFeeID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("student fee %d not found", studentFeeID)
		}
		return nil, nil, fmt.Errorf("load student fee: %w", err)
	}

	var structure models.FeeStructure
	if err := tx.First(&structure, fee.FeeStructureID).Error; err != nil {
		return nil, nil, fmt.Errorf("load fee structure %d: %w", fee.FeeStructureID, err)
	}

	return &fee, &structure, nil
}

// appendTransaction inserts an immutable ledger row for the fee. The
// reference number is generated with a retry-until-unique loop keyed by the
// transaction type's prefix.
func appendTransaction(tx *gorm.DB, studentFeeID uint, amount float64, txnType string, data PaymentData, when time.Time, processedBy uint) (*models.PaymentTransaction, error) {
	ref, err := uniqueReferenceNumber(tx, txnType, when)
	if err != nil {
		return nil, err
	}

	var metadata models.JSON
	if len(data.Metadata) > 0 {
		if b, err := json.Marshal(data.Metadata); err == nil {
			metadata = b
		}
	}

	txn := models.PaymentTransaction{
		StudentFeeID:    studentFeeID,
		Amount:          amount,
		Type:            txnType,
		ReferenceNumber: ref,
		PaymentMethod:   data.PaymentMethod,
		TransactionDate: when,
		ProcessedByID:   processedBy,
		Notes:           data.Notes,
		Metadata:        metadata,
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, fmt.Errorf("append %s transaction: %w", txnType, err)
	}
	return &txn, nil
}

const uniquenessRetries = 10

func uniqueReceiptNumber(tx *gorm.DB, now time.Time) (string, error) {
	for i := 0; i < uniquenessRetries; i++ {
		candidate := utils.NewReceiptNumber(now)
		var count int64
		if err := tx.Model(&models.StudentFee{}).Where("receipt_number = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check receipt number: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique receipt number after %d attempts", uniquenessRetries)
}

func uniqueReferenceNumber(tx *gorm.DB, txnType string, now time.Time) (string, error) {
	prefix := models.ReferencePrefix(txnType)
	for i := 0; i < uniquenessRetries; i++ {
		candidate := utils.NewReferenceNumber(prefix, now)
		var count int64
		if err := tx.Model(&models.PaymentTransaction{}).Where("reference_number = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check reference number: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique %s reference after %d attempts", prefix, uniquenessRetries)
}
