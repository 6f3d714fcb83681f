package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
	"greenvale_go/services"
)

type SmsController struct {
	sms  *services.SmsService
	line *services.LineMessagingService
}

func NewSmsController() *SmsController {
	return &SmsController{
		sms:  services.NewSmsService(),
		line: services.NewLineMessagingService(),
	}
}

type smsRequest struct {
	Phone      string `json:"phone"`
	GuardianID uint   `json:"guardian_id"`
	Message    string `json:"message"`
}

// SendSms sends a manual SMS to a phone number or a guardian
func (sc *SmsController) SendSms(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req smsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}

	phone := req.Phone
	resource := "manual"
	var resourceID uint
	if phone == "" && req.GuardianID != 0 {
		var guardian models.Guardian
		if err := database.DB.First(&guardian, req.GuardianID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Guardian not found"})
		}
		phone = guardian.Phone
		resource = "guardians"
		resourceID = guardian.ID
	}
	if phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "phone or guardian_id is required"})
	}

	log, err := sc.sms.Send(phone, req.Message, user.ID, resource, resourceID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "SMS delivery failed",
			"sms_log": log,
		})
	}

	middleware.LogActivity(c, "CREATE", "sms_logs", log.ID, fiber.Map{"phone": phone})

	if resource == "guardians" {
		guardianID := resourceID
		message := req.Message
		go func() {
			if err := sc.line.PushToGuardian(guardianID, message); err != nil {
				logrus.WithError(err).WithField("guardian_id", guardianID).Debug("LINE mirror skipped")
			}
		}()
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "SMS sent",
		"sms_log": log,
	})
}

// GetSmsLogs returns SMS logs with filters
func (sc *SmsController) GetSmsLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	query := database.DB.Model(&models.SmsLog{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if phone := c.Query("phone"); phone != "" {
		query = query.Where("phone LIKE ?", "%"+phone+"%")
	}
	if resource := c.Query("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("created_at >= ?", t)
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}

	var total int64
	query.Count(&total)

	var logs []models.SmsLog
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch SMS logs"})
	}

	return c.JSON(fiber.Map{
		"sms_logs": logs,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// RetrySms re-sends a previously failed SMS
func (sc *SmsController) RetrySms(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid SMS log ID"})
	}

	log, err := sc.sms.Retry(uint(id))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "UPDATE", "sms_logs", log.ID, fiber.Map{"action": "retry"})

	return c.JSON(fiber.Map{
		"message": "SMS retried",
		"sms_log": log,
	})
}

// GetSmsStats returns delivery counts grouped by status for a date window
func (sc *SmsController) GetSmsStats(c *fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("days", "30"))
	if days <= 0 || days > 365 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var counts []statusCount
	if err := database.DB.Model(&models.SmsLog{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("status").Scan(&counts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to build SMS stats"})
	}

	var total int64
	byStatus := fiber.Map{}
	for _, sc := range counts {
		byStatus[sc.Status] = sc.Count
		total += sc.Count
	}

	return c.JSON(fiber.Map{
		"days":      days,
		"total":     total,
		"by_status": byStatus,
	})
}
