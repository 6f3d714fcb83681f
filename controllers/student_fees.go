package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
	"greenvale_go/services"
	"greenvale_go/utils"
)

type StudentFeeController struct {
	payments *services.PaymentService
	forward  *services.BalanceForwardService
	sms      *services.SmsService
}

func NewStudentFeeController() *StudentFeeController {
	return &StudentFeeController{
		payments: services.NewPaymentService(),
		forward:  services.NewBalanceForwardService(),
		sms:      services.NewSmsService(),
	}
}

// GetStudentFees returns student fees with filters
func (sc *StudentFeeController) GetStudentFees(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	var fees []models.StudentFee
	var total int64

	query := database.DB.Model(&models.StudentFee{})

	if studentID := c.Query("student_id"); studentID != "" {
		query = query.Where("student_id = ?", studentID)
	}
	if status := c.Query("payment_status"); status != "" {
		query = query.Where("payment_status = ?", status)
	}
	if structureID := c.Query("fee_structure_id"); structureID != "" {
		query = query.Where("fee_structure_id = ?", structureID)
	}
	if gradeID := c.Query("grade_id"); gradeID != "" {
		query = query.Joins("JOIN fee_structures ON fee_structures.id = student_fees.fee_structure_id").
			Where("fee_structures.grade_id = ?", gradeID)
	}
	if termID := c.Query("term_id"); termID != "" {
		query = query.Joins("JOIN fee_structures fs2 ON fs2.id = student_fees.fee_structure_id").
			Where("fs2.term_id = ?", termID)
	}

	query.Count(&total)

	if err := query.Preload("Student").Preload("FeeStructure").
		Preload("FeeStructure.Grade").Preload("FeeStructure.Term").
		Order("student_fees.id DESC").
		Offset(offset).Limit(limit).Find(&fees).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch student fees",
		})
	}

	return c.JSON(fiber.Map{
		"student_fees": fees,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetStudentFee returns one fee with its full ledger and running-balance
// timeline.
func (sc *StudentFeeController) GetStudentFee(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee ID"})
	}

	var fee models.StudentFee
	if err := database.DB.
		Preload("Student").Preload("Student.Grade").Preload("Student.Guardian").
		Preload("FeeStructure").Preload("FeeStructure.Grade").
		Preload("FeeStructure.Term").Preload("FeeStructure.AcademicYear").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transaction_date, id")
		}).
		Preload("Transactions.ProcessedBy").
		First(&fee, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student fee not found"})
	}

	timeline := utils.BuildFeeTimeline(fee.FeeStructure.TotalFee, fee.Transactions)

	return c.JSON(fiber.Map{
		"student_fee": fee,
		"timeline":    timeline,
	})
}

type paymentRequest struct {
	Amount        float64        `json:"amount"`
	PaymentMethod string         `json:"payment_method"`
	PaymentDate   *time.Time     `json:"payment_date"`
	Notes         string         `json:"notes"`
	ReceiptNumber string         `json:"receipt_number"`
	Metadata      map[string]any `json:"metadata"`
}

func (req *paymentRequest) data() services.PaymentData {
	return services.PaymentData{
		PaymentDate:   req.PaymentDate,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		ReceiptNumber: req.ReceiptNumber,
		Metadata:      req.Metadata,
	}
}

// RecordPayment records a payment against a fee. Overpayment triggers an
// automatic carry-forward to the next term, reflected in the response.
func (sc *StudentFeeController) RecordPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee ID"})
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount is required"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	result, err := sc.payments.ProcessPayment(uint(id), req.Amount, req.data(), user.ID)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "payment_transactions", result.Transaction.ID, fiber.Map{
		"student_fee_id": id,
		"amount":         req.Amount,
		"reference":      result.Transaction.ReferenceNumber,
	})

	// Receipt SMS goes out best-effort after commit.
	go func(fee models.StudentFee, amount float64, by uint) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("payment receipt SMS failed")
			}
		}()
		sc.sms.SendPaymentReceipt(fee, amount, by)
	}(result.Fee, req.Amount, user.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Payment recorded",
		"student_fee": result.Fee,
		"transaction": result.Transaction,
		"forward":     result.Forward,
	})
}

// RecordRefund records a refund against a fee
func (sc *StudentFeeController) RecordRefund(c *fiber.Ctx) error {
	return sc.deduction(c, models.TxnTypeRefund)
}

// RecordAdjustment records a downward adjustment against a fee
func (sc *StudentFeeController) RecordAdjustment(c *fiber.Ctx) error {
	return sc.deduction(c, models.TxnTypeAdjustment)
}

func (sc *StudentFeeController) deduction(c *fiber.Ctx, txnType string) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee ID"})
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var result *services.PaymentResult
	if txnType == models.TxnTypeRefund {
		result, err = sc.payments.Refund(uint(id), req.Amount, req.data(), user.ID)
	} else {
		result, err = sc.payments.Adjust(uint(id), req.Amount, req.data(), user.ID)
	}
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "payment_transactions", result.Transaction.ID, fiber.Map{
		"student_fee_id": id,
		"type":           txnType,
		"amount":         req.Amount,
		"reference":      result.Transaction.ReferenceNumber,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Transaction recorded",
		"student_fee": result.Fee,
		"transaction": result.Transaction,
	})
}

// ApplyCredit applies an admin-granted credit to a fee
func (sc *StudentFeeController) ApplyCredit(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee ID"})
	}

	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	result, err := sc.payments.ApplyCredit(uint(id), req.Amount, req.data(), user.ID)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "payment_transactions", result.Transaction.ID, fiber.Map{
		"student_fee_id": id,
		"type":           models.TxnTypeCreditApplied,
		"amount":         req.Amount,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     "Credit applied",
		"student_fee": result.Fee,
		"transaction": result.Transaction,
	})
}

// GetPaymentHistory returns a student's term-by-term payment history for
// one academic year.
func (sc *StudentFeeController) GetPaymentHistory(c *fiber.Ctx) error {
	studentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
	}

	yearID, err := strconv.ParseUint(c.Query("academic_year_id"), 10, 32)
	if err != nil || yearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "academic_year_id is required"})
	}

	var student models.Student
	if err := database.DB.First(&student, uint(studentID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Student not found"})
	}

	history, err := sc.forward.GetPaymentHistory(uint(studentID), uint(yearID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build payment history"})
	}

	return c.JSON(fiber.Map{
		"student_id":       student.ID,
		"academic_year_id": yearID,
		"history":          history,
	})
}
