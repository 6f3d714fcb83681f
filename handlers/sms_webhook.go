package handlers

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"greenvale_go/services"
)

// SmsWebhookHandler receives delivery reports from the SMS gateway and
// promotes sent messages to delivered.
type SmsWebhookHandler struct {
	sms *services.SmsService
}

func NewSmsWebhookHandler() *SmsWebhookHandler {
	return &SmsWebhookHandler{sms: services.NewSmsService()}
}

type deliveryReport struct {
	ProviderRef string `json:"provider_ref"`
	Status      string `json:"status"`
}

// Handle processes a gateway delivery report. The gateway signs the raw
// body with a shared secret in the X-Gateway-Signature header.
func (h *SmsWebhookHandler) Handle(c *fiber.Ctx) error {
	secret := os.Getenv("SMS_WEBHOOK_SECRET")
	if secret != "" {
		signature := c.Get("X-Gateway-Signature")
		if signature == "" || !validateSignature(secret, c.Body(), signature) {
			log.Println("SMS webhook signature mismatch")
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	var report deliveryReport
	if err := c.BodyParser(&report); err != nil || report.ProviderRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid delivery report"})
	}

	if report.Status != "delivered" {
		return c.SendStatus(fiber.StatusOK)
	}

	if err := h.sms.MarkDelivered(report.ProviderRef); err != nil {
		log.Printf("failed to record SMS delivery for %s: %v", report.ProviderRef, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
