package controllers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"greenvale_go/middleware"
	"greenvale_go/services"
	"greenvale_go/storage"
)

type StatementController struct {
	statements *services.StatementService
}

func NewStatementController() *StatementController {
	return &StatementController{statements: services.NewStatementService()}
}

func sendPDF(c *fiber.Ctx, content []byte, filename string) error {
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(content)
}

// archiveDocument uploads a generated document to S3 best-effort. Statement
// downloads succeed even when the archive copy fails.
func archiveDocument(content []byte, folder, filename string) {
	svc, err := storage.NewStorageService()
	if err != nil {
		logrus.WithError(err).Warn("document archive skipped: storage unavailable")
		return
	}
	if _, err := svc.UploadDocument(content, folder, filename); err != nil {
		logrus.WithError(err).WithField("file", filename).Warn("document archive failed")
	}
}

// DownloadReceipt returns the PDF receipt for one student fee
func (sc *StatementController) DownloadReceipt(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee ID"})
	}

	content, filename, err := sc.statements.GenerateReceipt(uint(id))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "DOWNLOAD", "receipts", uint(id), fiber.Map{"file": filename})
	go archiveDocument(content, "receipts", filename)

	return sendPDF(c, content, filename)
}

// DownloadBulkReceipts returns one merged PDF of receipts for the requested
// fees. Fees without a receipt number are skipped.
func (sc *StatementController) DownloadBulkReceipts(c *fiber.Ctx) error {
	var req struct {
		FeeIDs []uint `json:"fee_ids"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.FeeIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "fee_ids is required"})
	}

	content, filename, err := sc.statements.GenerateBulkReceipts(req.FeeIDs)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "DOWNLOAD", "receipts", 0, fiber.Map{
		"file":  filename,
		"count": len(req.FeeIDs),
	})

	return sendPDF(c, content, filename)
}

// DownloadStatement returns a student's payment statement for an academic
// year, optionally narrowed to one term via the term_id query parameter.
func (sc *StatementController) DownloadStatement(c *fiber.Ctx) error {
	studentID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid student ID"})
	}

	yearID, err := strconv.ParseUint(c.Query("academic_year_id"), 10, 32)
	if err != nil || yearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "academic_year_id is required"})
	}
	termID, _ := strconv.ParseUint(c.Query("term_id", "0"), 10, 32)

	content, filename, err := sc.statements.GenerateStatement(uint(studentID), uint(yearID), uint(termID))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "DOWNLOAD", "statements", uint(studentID), fiber.Map{"file": filename})
	go archiveDocument(content, "statements", filename)

	return sendPDF(c, content, filename)
}

// DownloadCohortStatements returns one PDF holding a statement per active
// student of a grade, optionally narrowed by section and term.
func (sc *StatementController) DownloadCohortStatements(c *fiber.Ctx) error {
	gradeID, err := strconv.ParseUint(c.Query("grade_id"), 10, 32)
	if err != nil || gradeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "grade_id is required"})
	}
	yearID, err := strconv.ParseUint(c.Query("academic_year_id"), 10, 32)
	if err != nil || yearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "academic_year_id is required"})
	}
	sectionID, _ := strconv.ParseUint(c.Query("section_id", "0"), 10, 32)
	termID, _ := strconv.ParseUint(c.Query("term_id", "0"), 10, 32)

	content, filename, err := sc.statements.GenerateCohortStatements(uint(gradeID), uint(sectionID), uint(yearID), uint(termID))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "DOWNLOAD", "statements", uint(gradeID), fiber.Map{
		"file":    filename,
		"scope":   "cohort",
		"section": sectionID,
		"term":    termID,
	})

	return sendPDF(c, content, filename)
}
