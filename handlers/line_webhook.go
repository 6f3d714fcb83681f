package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"gorm.io/gorm"

	"greenvale_go/models"
)

// LineWebhookHandler links guardian LINE accounts to portal users so fee
// reminders can reach them over LINE as well as SMS.
type LineWebhookHandler struct {
	DB  *gorm.DB
	Bot *linebot.Client
}

func NewLineWebhookHandler(db *gorm.DB) *LineWebhookHandler {
	secret := os.Getenv("LINE_CHANNEL_SECRET")
	token := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")

	if secret == "" || token == "" {
		log.Println("LINE credentials missing: webhook disabled")
		return &LineWebhookHandler{DB: db, Bot: nil}
	}

	bot, err := linebot.New(secret, token)
	if err != nil {
		log.Fatalf("cannot create LINE bot client: %v", err)
	}
	return &LineWebhookHandler{DB: db, Bot: bot}
}

// Handle receives webhook events from the LINE platform
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	if h.Bot == nil {
		return c.SendStatus(fiber.StatusOK)
	}

	signature := c.Get("X-Line-Signature")
	if signature == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !validateSignature(os.Getenv("LINE_CHANNEL_SECRET"), c.Body(), signature) {
		log.Println("LINE webhook signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	// Reply 200 first so the platform verification passes; events are
	// processed in the background.
	go func(body []byte) {
		var webhook struct {
			Events []*linebot.Event `json:"events"`
		}
		if err := json.Unmarshal(body, &webhook); err != nil {
			log.Printf("failed to parse LINE event JSON: %v", err)
			return
		}

		for _, event := range webhook.Events {
			switch event.Type {
			case linebot.EventTypeFollow:
				h.handleFollow(event)
			case linebot.EventTypeMessage:
				h.handleMessage(event)
			}
		}
	}(c.Body())

	return c.SendStatus(fiber.StatusOK)
}

func (h *LineWebhookHandler) handleFollow(event *linebot.Event) {
	if event.Source == nil || event.Source.UserID == "" {
		return
	}
	prompt := "Welcome to the Greenvale parent channel. Reply with LINK followed by your registered phone number (e.g. LINK 0812345678) to connect your account."
	if _, err := h.Bot.ReplyMessage(event.ReplyToken, linebot.NewTextMessage(prompt)).Do(); err != nil {
		log.Printf("failed to send LINE follow reply: %v", err)
	}
}

func (h *LineWebhookHandler) handleMessage(event *linebot.Event) {
	if event.Source == nil || event.Source.UserID == "" {
		return
	}
	textMsg, ok := event.Message.(*linebot.TextMessage)
	if !ok {
		return
	}

	text := strings.TrimSpace(textMsg.Text)
	if !strings.HasPrefix(strings.ToUpper(text), "LINK ") {
		return
	}
	phone := strings.TrimSpace(text[5:])
	if phone == "" {
		return
	}

	var guardian models.Guardian
	if err := h.DB.Where("phone = ?", phone).First(&guardian).Error; err != nil {
		h.reply(event.ReplyToken, "No guardian account found for that phone number. Please contact the school office.")
		return
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", guardian.UserID).
		Update("line_id", event.Source.UserID).Error; err != nil {
		log.Printf("failed to link LINE account for guardian %d: %v", guardian.ID, err)
		h.reply(event.ReplyToken, "Something went wrong linking your account. Please try again later.")
		return
	}

	log.Printf("linked LINE account for guardian %d", guardian.ID)
	h.reply(event.ReplyToken, "Your LINE account is now linked. You will receive fee reminders and school notices here.")
}

func (h *LineWebhookHandler) reply(replyToken, message string) {
	if _, err := h.Bot.ReplyMessage(replyToken, linebot.NewTextMessage(message)).Do(); err != nil {
		log.Printf("failed to send LINE reply: %v", err)
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validateSignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(computeSignature(secret, body)))
}
