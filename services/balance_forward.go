package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"greenvale_go/database"
	"greenvale_go/models"
)

// ForwardResult records the outcome of carrying an overpayment forward.
// Applied is false when no fee structure exists yet for the student's grade
// in the next term; the overpayment stays on the source fee's ledger as an
// unapplied credit.
type ForwardResult struct {
	FromFeeID  uint    `json:"from_fee_id"`
	ToFeeID    uint    `json:"to_fee_id,omitempty"`
	Amount     float64 `json:"amount"`
	TargetTerm string  `json:"target_term,omitempty"`
	Applied    bool    `json:"applied"`
	Note       string  `json:"note,omitempty"`
}

// PaymentHistoryEntry is one term's fee position for a student.
type PaymentHistoryEntry struct {
	TermID        uint       `json:"term_id"`
	Term          string     `json:"term"`
	AcademicYear  string     `json:"academic_year"`
	TotalFee      float64    `json:"total_fee"`
	AmountPaid    float64    `json:"amount_paid"`
	Balance       float64    `json:"balance"`
	PaymentStatus string     `json:"payment_status"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
}

// BalanceForwardService derives payment history across terms and rolls
// overpayments into the following term's fee record.
type BalanceForwardService struct {
	db *gorm.DB
}

// NewBalanceForwardService creates a BalanceForwardService backed by the
// global database.
func NewBalanceForwardService() *BalanceForwardService {
	return &BalanceForwardService{db: database.GetDB()}
}

// GetPaymentHistory returns the student's fee position per term of the
// academic year, ordered by term number.
func (bs *BalanceForwardService) GetPaymentHistory(studentID, academicYearID uint) ([]PaymentHistoryEntry, error) {
	var fees []models.StudentFee
	err := bs.db.
		Joins("JOIN fee_structures ON fee_structures.id = student_fees.fee_structure_id").
		Joins("JOIN terms ON terms.id = fee_structures.term_id").
		Where("student_fees.student_id = ? AND fee_structures.academic_year_id = ?", studentID, academicYearID).
		Order("terms.number").
		Preload("FeeStructure").
		Preload("FeeStructure.Term").
		Preload("FeeStructure.AcademicYear").
		Find(&fees).Error
	if err != nil {
		return nil, fmt.Errorf("load payment history: %w", err)
	}

	history := make([]PaymentHistoryEntry, 0, len(fees))
	for _, fee := range fees {
		history = append(history, PaymentHistoryEntry{
			TermID:        fee.FeeStructure.TermID,
			Term:          fee.FeeStructure.Term.Name,
			AcademicYear:  fee.FeeStructure.AcademicYear.Name,
			TotalFee:      fee.FeeStructure.TotalFee,
			AmountPaid:    fee.AmountPaid,
			Balance:       fee.Balance,
			PaymentStatus: fee.PaymentStatus,
			PaymentDate:   fee.PaymentDate,
		})
	}
	return history, nil
}

// ProcessOverpayment rolls the overpaid excess of fee into the next term.
// It must run inside the same transaction as the payment that crossed the
// threshold; tx is that transaction.
//
// Ledger shape: an "overpayment" marker row on the source fee records the
// excess (zero timeline impact, since the originating payment already
// counted the money), and a "balance_forward" row on the target fee carries
// the credit in.
func (bs *BalanceForwardService) ProcessOverpayment(tx *gorm.DB, fee *models.StudentFee, structure *models.FeeStructure, overpayment float64, processedBy uint) (*ForwardResult, error) {
	if overpayment <= 0 {
		return nil, fmt.Errorf("overpayment must be positive, got %.2f", overpayment)
	}

	result := &ForwardResult{FromFeeID: fee.ID, Amount: overpayment}

	// Marker row on the source fee
	markerData := PaymentData{Notes: fmt.Sprintf("overpayment of %.2f recorded for carry-forward", overpayment)}
	if _, err := appendTransaction(tx, fee.ID, overpayment, models.TxnTypeOverpayment, markerData, time.Now(), processedBy); err != nil {
		return nil, err
	}

	nextTerm, err := bs.nextTerm(tx, structure.TermID)
	if err != nil {
		return nil, err
	}
	if nextTerm == nil {
		result.Note = "no following term; credit left unapplied on source fee"
		return result, nil
	}

	var student models.Student
	if err := tx.First(&student, fee.StudentID).Error; err != nil {
		return nil, fmt.Errorf("load student %d: %w", fee.StudentID, err)
	}

	var targetStructure models.FeeStructure
	err = tx.Where("grade_id = ? AND term_id = ? AND is_active = ?", student.GradeID, nextTerm.ID, true).
		First(&targetStructure).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			result.TargetTerm = nextTerm.Name
			result.Note = "no active fee structure for the next term; credit left unapplied on source fee"
			return result, nil
		}
		return nil, fmt.Errorf("find target fee structure: %w", err)
	}

	target, err := bs.findOrCreateFee(tx, student.ID, targetStructure.ID)
	if err != nil {
		return nil, err
	}

	target.Apply(overpayment, targetStructure.TotalFee)
	if err := tx.Save(target).Error; err != nil {
		return nil, fmt.Errorf("save forwarded fee: %w", err)
	}

	fwdData := PaymentData{Notes: fmt.Sprintf("balance forward from fee %d", fee.ID)}
	if _, err := appendTransaction(tx, target.ID, overpayment, models.TxnTypeBalanceForward, fwdData, time.Now(), processedBy); err != nil {
		return nil, err
	}

	result.ToFeeID = target.ID
	result.TargetTerm = nextTerm.Name
	result.Applied = true
	return result, nil
}

// nextTerm resolves the term that follows termID: the next number within the
// same academic year, else the first term of the next year by start date.
// Returns nil when the calendar simply ends.
func (bs *BalanceForwardService) nextTerm(tx *gorm.DB, termID uint) (*models.Term, error) {
	var current models.Term
	if err := tx.First(&current, termID).Error; err != nil {
		return nil, fmt.Errorf("load term %d: %w", termID, err)
	}

	var next models.Term
	err := tx.Where("academic_year_id = ? AND number = ?", current.AcademicYearID, current.Number+1).
		First(&next).Error
	if err == nil {
		return &next, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("find next term: %w", err)
	}

	var currentYear models.AcademicYear
	if err := tx.First(&currentYear, current.AcademicYearID).Error; err != nil {
		return nil, fmt.Errorf("load academic year %d: %w", current.AcademicYearID, err)
	}

	var nextYear models.AcademicYear
	err = tx.Where("start_date > ?", currentYear.StartDate).Order("start_date").First(&nextYear).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find next academic year: %w", err)
	}

	err = tx.Where("academic_year_id = ?", nextYear.ID).Order("number").First(&next).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("find first term of next year: %w", err)
	}
	return &next, nil
}

// findOrCreateFee returns the StudentFee for (studentID, structureID),
// creating it when the student has not been billed for that term yet. The
// row is locked either way because the caller is about to mutate it.
func (bs *BalanceForwardService) findOrCreateFee(tx *gorm.DB, studentID, structureID uint) (*models.StudentFee, error) {
	var fee models.StudentFee
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND fee_structure_id = ?", studentID, structureID).
		First(&fee).Error
	if err == nil {
		return &fee, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("load target fee: %w", err)
	}

	fee = models.StudentFee{
		StudentID:      studentID,
		FeeStructureID: structureID,
		PaymentStatus:  models.FeeStatusUnpaid,
	}
	if err := tx.Create(&fee).Error; err != nil {
		return nil, fmt.Errorf("create target fee: %w", err)
	}
	return &fee, nil
}
