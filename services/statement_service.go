package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"greenvale_go/config"
	"greenvale_go/database"
	"greenvale_go/models"
	"greenvale_go/utils"
)

// StatementService renders fee receipts and payment statements as PDFs and
// payment summaries as spreadsheets. Rendering is read-only; it never
// mutates fee records.
type StatementService struct {
	db *gorm.DB
}

// NewStatementService creates a StatementService backed by the global
// database.
func NewStatementService() *StatementService {
	return &StatementService{db: database.GetDB()}
}

// ReceiptFileName returns the deterministic receipt file name.
func ReceiptFileName(receiptNumber string) string {
	return fmt.Sprintf("receipt-%s.pdf", receiptNumber)
}

// StatementFileName returns the deterministic statement file name:
// Payment_Statement_{student}_{period}_{date}.pdf
func StatementFileName(student models.Student, period string, date time.Time) string {
	name := sanitizeFileToken(student.FirstName + "_" + student.LastName)
	return fmt.Sprintf("Payment_Statement_%s_%s_%s.pdf", name, sanitizeFileToken(period), date.Format("20060102"))
}

func sanitizeFileToken(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-")
	return replacer.Replace(s)
}

// GenerateReceipt renders the receipt PDF for one StudentFee.
func (ss *StatementService) GenerateReceipt(feeID uint) ([]byte, string, error) {
	fee, err := ss.loadFee(feeID)
	if err != nil {
		return nil, "", err
	}
	if fee.Receipt() == "" {
		return nil, "", fmt.Errorf("student fee %d has no receipt number yet", feeID)
	}

	pdf := newPDF()
	ss.renderReceiptPage(pdf, fee)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), ReceiptFileName(fee.Receipt()), nil
}

// GenerateBulkReceipts renders every selected receipt into one merged PDF,
// one page per fee.
func (ss *StatementService) GenerateBulkReceipts(feeIDs []uint) ([]byte, string, error) {
	if len(feeIDs) == 0 {
		return nil, "", fmt.Errorf("no student fees selected")
	}

	pdf := newPDF()
	rendered := 0
	for _, id := range feeIDs {
		fee, err := ss.loadFee(id)
		if err != nil {
			return nil, "", err
		}
		if fee.Receipt() == "" {
			continue
		}
		ss.renderReceiptPage(pdf, fee)
		rendered++
	}
	if rendered == 0 {
		return nil, "", fmt.Errorf("none of the selected fees has a receipt")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render bulk receipts: %w", err)
	}
	name := fmt.Sprintf("receipts-%s.pdf", time.Now().Format("20060102-150405"))
	return buf.Bytes(), name, nil
}

// GenerateStatement renders one student's payment statement for a period.
// termID may be 0 to cover the whole academic year.
func (ss *StatementService) GenerateStatement(studentID, academicYearID, termID uint) ([]byte, string, error) {
	var student models.Student
	if err := ss.db.Preload("Grade").Preload("Section").First(&student, studentID).Error; err != nil {
		return nil, "", fmt.Errorf("student %d not found", studentID)
	}

	var year models.AcademicYear
	if err := ss.db.First(&year, academicYearID).Error; err != nil {
		return nil, "", fmt.Errorf("academic year %d not found", academicYearID)
	}

	q := ss.db.
		Joins("JOIN fee_structures ON fee_structures.id = student_fees.fee_structure_id").
		Where("student_fees.student_id = ? AND fee_structures.academic_year_id = ?", studentID, academicYearID)
	period := year.Name
	if termID != 0 {
		q = q.Where("fee_structures.term_id = ?", termID)
		var term models.Term
		if err := ss.db.First(&term, termID).Error; err != nil {
			return nil, "", fmt.Errorf("term %d not found", termID)
		}
		period = year.Name + "-" + term.Name
	}

	var fees []models.StudentFee
	err := q.Preload("FeeStructure").
		Preload("FeeStructure.Term").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transaction_date, id")
		}).
		Find(&fees).Error
	if err != nil {
		return nil, "", fmt.Errorf("load fees for statement: %w", err)
	}

	pdf := newPDF()
	pdf.AddPage()
	ss.renderHeader(pdf, "PAYMENT STATEMENT")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Student: %s %s (%s)", student.FirstName, student.LastName, student.AdmissionNo), "", 1, "L", false, 0, "")
	gradeLine := student.Grade.Name
	if student.Section.ID != 0 {
		gradeLine += " " + student.Section.Name
	}
	pdf.CellFormat(0, 6, "Grade: "+gradeLine, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Period: "+period, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	var totalFee, totalPaid float64
	for _, fee := range fees {
		totalFee += fee.FeeStructure.TotalFee
		totalPaid += fee.AmountPaid

		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, fmt.Sprintf("%s - total %.2f, paid %.2f, balance %.2f (%s)",
			fee.FeeStructure.Term.Name, fee.FeeStructure.TotalFee, fee.AmountPaid, fee.Balance, fee.PaymentStatus),
			"", 1, "L", false, 0, "")

		ss.renderTimelineTable(pdf, fee.FeeStructure.TotalFee, fee.Transactions)
		pdf.Ln(3)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Period total: %.2f   Paid: %.2f   Outstanding: %.2f",
		totalFee, totalPaid, models.ComputeBalance(totalPaid, totalFee)), "T", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render statement: %w", err)
	}
	return buf.Bytes(), StatementFileName(student, period, time.Now()), nil
}

// GenerateCohortStatements renders statements for every active student of a
// grade (optionally narrowed to a section) into one merged PDF.
func (ss *StatementService) GenerateCohortStatements(gradeID, sectionID, academicYearID, termID uint) ([]byte, string, error) {
	q := ss.db.Where("grade_id = ? AND status = ?", gradeID, "active")
	if sectionID != 0 {
		q = q.Where("section_id = ?", sectionID)
	}
	var students []models.Student
	if err := q.Order("admission_no").Find(&students).Error; err != nil {
		return nil, "", fmt.Errorf("load students: %w", err)
	}
	if len(students) == 0 {
		return nil, "", fmt.Errorf("no active students in the selected grade")
	}

	merged := newPDF()
	for _, student := range students {
		if err := ss.renderStatementInto(merged, student, academicYearID, termID); err != nil {
			return nil, "", err
		}
	}

	var buf bytes.Buffer
	if err := merged.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render cohort statements: %w", err)
	}
	name := fmt.Sprintf("statements-grade%d-%s.pdf", gradeID, time.Now().Format("20060102"))
	return buf.Bytes(), name, nil
}

// BuildPaymentSummaryXLSX builds the payment summary workbook handed to the
// dashboard export endpoint.
func (ss *StatementService) BuildPaymentSummaryXLSX(rows []PaymentSummaryRow) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Grade", "Term", "Students Billed", "Total Fees", "Total Collected", "Outstanding", "Paid", "Partial", "Unpaid", "Overpaid"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		values := []interface{}{
			row.Grade, row.Term, row.StudentsBilled, row.TotalFees, row.TotalCollected,
			row.Outstanding, row.PaidCount, row.PartialCount, row.UnpaidCount, row.OverpaidCount,
		}
		for cIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(cIdx+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write summary workbook: %w", err)
	}
	name := fmt.Sprintf("payment-summary-%s.xlsx", time.Now().Format("20060102"))
	return buf.Bytes(), name, nil
}

// PaymentSummaryRow is one grade/term aggregate in the payment summary.
type PaymentSummaryRow struct {
	GradeID        uint    `json:"grade_id"`
	Grade          string  `json:"grade"`
	TermID         uint    `json:"term_id"`
	Term           string  `json:"term"`
	StudentsBilled int64   `json:"students_billed"`
	TotalFees      float64 `json:"total_fees"`
	TotalCollected float64 `json:"total_collected"`
	Outstanding    float64 `json:"outstanding"`
	PaidCount      int64   `json:"paid_count"`
	PartialCount   int64   `json:"partial_count"`
	UnpaidCount    int64   `json:"unpaid_count"`
	OverpaidCount  int64   `json:"overpaid_count"`
}

func (ss *StatementService) loadFee(feeID uint) (*models.StudentFee, error) {
	var fee models.StudentFee
	err := ss.db.
		Preload("Student").
		Preload("Student.Grade").
		Preload("Student.Section").
		Preload("FeeStructure").
		Preload("FeeStructure.Term").
		Preload("FeeStructure.AcademicYear").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transaction_date, id")
		}).
		First(&fee, feeID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("student fee %d not found", feeID)
		}
		return nil, fmt.Errorf("load student fee: %w", err)
	}
	return &fee, nil
}

func newPDF() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	return pdf
}

func (ss *StatementService) renderHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, config.AppConfig.SchoolName, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if config.AppConfig.SchoolAddress != "" {
		pdf.CellFormat(0, 5, config.AppConfig.SchoolAddress, "", 1, "C", false, 0, "")
	}
	if config.AppConfig.SchoolPhone != "" {
		pdf.CellFormat(0, 5, "Tel: "+config.AppConfig.SchoolPhone, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, title, "B", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func (ss *StatementService) renderReceiptPage(pdf *gofpdf.Fpdf, fee *models.StudentFee) {
	pdf.AddPage()
	ss.renderHeader(pdf, "OFFICIAL RECEIPT")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, "Receipt No: "+fee.Receipt(), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Student: %s %s (%s)", fee.Student.FirstName, fee.Student.LastName, fee.Student.AdmissionNo), "", 1, "L", false, 0, "")
	gradeLine := fee.Student.Grade.Name
	if fee.Student.Section.ID != 0 {
		gradeLine += " " + fee.Student.Section.Name
	}
	pdf.CellFormat(0, 6, "Grade: "+gradeLine, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s %s", fee.FeeStructure.AcademicYear.Name, fee.FeeStructure.Term.Name), "", 1, "L", false, 0, "")
	if fee.PaymentDate != nil {
		pdf.CellFormat(0, 6, "Payment date: "+fee.PaymentDate.Format("2006-01-02"), "", 1, "L", false, 0, "")
	}
	if fee.PaymentMethod != "" {
		pdf.CellFormat(0, 6, "Method: "+fee.PaymentMethod, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Total fee: %.2f   Amount paid: %.2f   Balance: %.2f   Status: %s",
		fee.FeeStructure.TotalFee, fee.AmountPaid, fee.Balance, strings.ToUpper(fee.PaymentStatus)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	ss.renderTimelineTable(pdf, fee.FeeStructure.TotalFee, fee.Transactions)
}

func (ss *StatementService) renderTimelineTable(pdf *gofpdf.Fpdf, totalFee float64, txns []models.PaymentTransaction) {
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(28, 6, "Date", "1", 0, "L", false, 0, "")
	pdf.CellFormat(42, 6, "Reference", "1", 0, "L", false, 0, "")
	pdf.CellFormat(32, 6, "Type", "1", 0, "L", false, 0, "")
	pdf.CellFormat(26, 6, "Amount", "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, "Paid", "1", 0, "R", false, 0, "")
	pdf.CellFormat(26, 6, "Balance", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, entry := range utils.BuildFeeTimeline(totalFee, txns) {
		pdf.CellFormat(28, 6, entry.TransactionDate.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(42, 6, entry.ReferenceNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, entry.Type, "1", 0, "L", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", entry.Impact), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", entry.RunningPaid), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, fmt.Sprintf("%.2f", entry.RunningBalance), "1", 1, "R", false, 0, "")
	}
}

func (ss *StatementService) renderStatementInto(pdf *gofpdf.Fpdf, student models.Student, academicYearID, termID uint) error {
	var year models.AcademicYear
	if err := ss.db.First(&year, academicYearID).Error; err != nil {
		return fmt.Errorf("academic year %d not found", academicYearID)
	}

	q := ss.db.
		Joins("JOIN fee_structures ON fee_structures.id = student_fees.fee_structure_id").
		Where("student_fees.student_id = ? AND fee_structures.academic_year_id = ?", student.ID, academicYearID)
	if termID != 0 {
		q = q.Where("fee_structures.term_id = ?", termID)
	}

	var fees []models.StudentFee
	err := q.Preload("FeeStructure").
		Preload("FeeStructure.Term").
		Preload("Transactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("transaction_date, id")
		}).
		Find(&fees).Error
	if err != nil {
		return fmt.Errorf("load fees for statement: %w", err)
	}

	pdf.AddPage()
	ss.renderHeader(pdf, "PAYMENT STATEMENT")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Student: %s %s (%s)", student.FirstName, student.LastName, student.AdmissionNo), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Period: "+year.Name, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	var totalFee, totalPaid float64
	for _, fee := range fees {
		totalFee += fee.FeeStructure.TotalFee
		totalPaid += fee.AmountPaid
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, fmt.Sprintf("%s - total %.2f, paid %.2f, balance %.2f (%s)",
			fee.FeeStructure.Term.Name, fee.FeeStructure.TotalFee, fee.AmountPaid, fee.Balance, fee.PaymentStatus),
			"", 1, "L", false, 0, "")
		ss.renderTimelineTable(pdf, fee.FeeStructure.TotalFee, fee.Transactions)
		pdf.Ln(3)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Period total: %.2f   Paid: %.2f   Outstanding: %.2f",
		totalFee, totalPaid, models.ComputeBalance(totalPaid, totalFee)), "T", 1, "L", false, 0, "")
	return nil
}
