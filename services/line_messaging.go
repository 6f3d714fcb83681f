package services

import (
	"fmt"
	"log"
	"os"

	"github.com/line/line-bot-sdk-go/linebot"

	"greenvale_go/database"
	"greenvale_go/models"
)

// LineMessagingService pushes school notices to guardians who linked their
// LINE account. Missing credentials disable the service instead of failing
// startup.
type LineMessagingService struct {
	Bot *linebot.Client
}

func NewLineMessagingService() *LineMessagingService {
	channelSecret := os.Getenv("LINE_CHANNEL_SECRET")
	channelToken := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")

	if channelSecret == "" || channelToken == "" {
		log.Println("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{Bot: nil}
	}

	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		log.Fatalf("cannot create LINE bot client: %v", err)
	}

	return &LineMessagingService{Bot: bot}
}

// PushToUser sends a text message to one LINE user ID.
func (s *LineMessagingService) PushToUser(lineUserID string, message string) error {
	if s.Bot == nil {
		return fmt.Errorf("LINE Bot client is not initialized")
	}
	if lineUserID == "" {
		return fmt.Errorf("empty LINE user id")
	}

	_, err := s.Bot.PushMessage(lineUserID, linebot.NewTextMessage(message)).Do()
	if err != nil {
		return fmt.Errorf("LINE Messaging API failed: %v", err)
	}
	return nil
}

// PushToGuardian resolves a guardian's linked LINE account and pushes the
// message. Guardians without a linked account are skipped silently; the SMS
// path remains the primary channel.
func (s *LineMessagingService) PushToGuardian(guardianID uint, message string) error {
	if s.Bot == nil {
		return nil
	}

	var guardian models.Guardian
	if err := database.GetDB().Preload("User").First(&guardian, guardianID).Error; err != nil {
		return fmt.Errorf("guardian %d not found", guardianID)
	}
	if guardian.User.LineID == "" {
		return nil
	}
	return s.PushToUser(guardian.User.LineID, message)
}
