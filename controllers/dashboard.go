package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"greenvale_go/database"
	"greenvale_go/models"
	"greenvale_go/services"
)

type DashboardController struct {
	statements *services.StatementService
}

func NewDashboardController() *DashboardController {
	return &DashboardController{statements: services.NewStatementService()}
}

const dashboardCacheTTL = 5 * time.Minute

// GetDashboard returns the admin overview: headline counts, fee collection
// aggregates for the active year, and recent ledger activity. The payload is
// cached in Redis for a few minutes.
func (dc *DashboardController) GetDashboard(c *fiber.Ctx) error {
	ctx := context.Background()
	cacheKey := "dashboard:overview"

	if rdb := database.GetRedisClient(); rdb != nil {
		if cached, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
			var payload fiber.Map
			if json.Unmarshal([]byte(cached), &payload) == nil {
				payload["cached"] = true
				return c.JSON(payload)
			}
		}
	}

	var activeStudents, activeTeachers, guardians int64
	database.DB.Model(&models.Student{}).Where("status = ?", "active").Count(&activeStudents)
	database.DB.Model(&models.Teacher{}).Where("active = ?", true).Count(&activeTeachers)
	database.DB.Model(&models.Guardian{}).Count(&guardians)

	var activeYear models.AcademicYear
	yearFound := database.DB.Where("active = ?", true).First(&activeYear).Error == nil

	fees := fiber.Map{}
	if yearFound {
		type feeAgg struct {
			Billed      int64
			TotalFees   float64
			Collected   float64
			Outstanding float64
			Paid        int64
			Partial     int64
			Unpaid      int64
			Overpaid    int64
		}
		var agg feeAgg
		database.DB.Raw(`
			SELECT COUNT(*) AS billed,
			       COALESCE(SUM(fs.total_fee), 0) AS total_fees,
			       COALESCE(SUM(sf.amount_paid), 0) AS collected,
			       COALESCE(SUM(sf.balance), 0) AS outstanding,
			       SUM(sf.payment_status = 'paid') AS paid,
			       SUM(sf.payment_status = 'partial') AS partial,
			       SUM(sf.payment_status = 'unpaid') AS unpaid,
			       SUM(sf.payment_status = 'overpaid') AS overpaid
			FROM student_fees sf
			JOIN fee_structures fs ON fs.id = sf.fee_structure_id
			WHERE fs.academic_year_id = ? AND sf.deleted_at IS NULL
		`, activeYear.ID).Scan(&agg)

		fees = fiber.Map{
			"academic_year":   activeYear.Name,
			"students_billed": agg.Billed,
			"total_fees":      agg.TotalFees,
			"total_collected": agg.Collected,
			"outstanding":     agg.Outstanding,
			"status_breakdown": fiber.Map{
				"paid":     agg.Paid,
				"partial":  agg.Partial,
				"unpaid":   agg.Unpaid,
				"overpaid": agg.Overpaid,
			},
		}
	}

	var openHomework int64
	database.DB.Model(&models.Homework{}).Where("status = ?", "open").Count(&openHomework)

	since := time.Now().AddDate(0, 0, -30)
	var smsSent, smsFailed int64
	database.DB.Model(&models.SmsLog{}).
		Where("created_at >= ? AND status IN ?", since, []string{"sent", "delivered"}).Count(&smsSent)
	database.DB.Model(&models.SmsLog{}).
		Where("created_at >= ? AND status = ?", since, "failed").Count(&smsFailed)

	var recentTxns []models.PaymentTransaction
	database.DB.Preload("StudentFee").Preload("StudentFee.Student").
		Order("transaction_date DESC, id DESC").Limit(10).Find(&recentTxns)

	payload := fiber.Map{
		"counts": fiber.Map{
			"active_students": activeStudents,
			"active_teachers": activeTeachers,
			"guardians":       guardians,
			"open_homework":   openHomework,
		},
		"fees": fees,
		"sms_last_30_days": fiber.Map{
			"sent":   smsSent,
			"failed": smsFailed,
		},
		"recent_transactions": recentTxns,
		"generated_at":        time.Now(),
	}

	if rdb := database.GetRedisClient(); rdb != nil {
		if raw, err := json.Marshal(payload); err == nil {
			if err := rdb.Set(ctx, cacheKey, raw, dashboardCacheTTL).Err(); err != nil {
				logrus.WithError(err).Warn("dashboard cache write failed")
			}
		}
	}

	return c.JSON(payload)
}

// paymentSummaryRows builds the per-grade, per-term collection summary used
// by both the JSON endpoint and the spreadsheet export.
func (dc *DashboardController) paymentSummaryRows(academicYearID uint) ([]services.PaymentSummaryRow, error) {
	var rows []services.PaymentSummaryRow
	err := database.DB.Raw(`
		SELECT g.id AS grade_id,
		       g.name AS grade,
		       t.id AS term_id,
		       t.name AS term,
		       COUNT(sf.id) AS students_billed,
		       COALESCE(SUM(fs.total_fee), 0) AS total_fees,
		       COALESCE(SUM(sf.amount_paid), 0) AS total_collected,
		       COALESCE(SUM(sf.balance), 0) AS outstanding,
		       SUM(sf.payment_status = 'paid') AS paid_count,
		       SUM(sf.payment_status = 'partial') AS partial_count,
		       SUM(sf.payment_status = 'unpaid') AS unpaid_count,
		       SUM(sf.payment_status = 'overpaid') AS overpaid_count
		FROM student_fees sf
		JOIN fee_structures fs ON fs.id = sf.fee_structure_id
		JOIN grades g ON g.id = fs.grade_id
		JOIN terms t ON t.id = fs.term_id
		WHERE fs.academic_year_id = ? AND sf.deleted_at IS NULL
		GROUP BY g.id, g.name, t.id, t.name
		ORDER BY g.level, t.number
	`, academicYearID).Scan(&rows).Error
	return rows, err
}

// GetPaymentSummary returns the collection summary grouped by grade and term
func (dc *DashboardController) GetPaymentSummary(c *fiber.Ctx) error {
	yearID, err := strconv.ParseUint(c.Query("academic_year_id"), 10, 32)
	if err != nil || yearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "academic_year_id is required"})
	}

	rows, err := dc.paymentSummaryRows(uint(yearID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build payment summary"})
	}

	return c.JSON(fiber.Map{
		"academic_year_id": yearID,
		"summary":          rows,
	})
}

// ExportPaymentSummary downloads the collection summary as a spreadsheet
func (dc *DashboardController) ExportPaymentSummary(c *fiber.Ctx) error {
	yearID, err := strconv.ParseUint(c.Query("academic_year_id"), 10, 32)
	if err != nil || yearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "academic_year_id is required"})
	}

	rows, err := dc.paymentSummaryRows(uint(yearID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build payment summary"})
	}

	content, filename, err := dc.statements.BuildPaymentSummaryXLSX(rows)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(content)
}
