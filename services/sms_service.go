package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"greenvale_go/config"
	"greenvale_go/database"
	"greenvale_go/models"
)

// SmsService sends messages through the configured HTTP gateway and records
// every attempt as an SmsLog row. When no gateway is configured the log row
// is still written (status failed) so the audit trail stays complete.
type SmsService struct {
	db     *gorm.DB
	client *http.Client
}

// NewSmsService creates an SmsService backed by the global database.
func NewSmsService() *SmsService {
	return &SmsService{
		db:     database.GetDB(),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type gatewayRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Send delivers one SMS. The log row is written as pending first and
// updated with the outcome, so a crash mid-send still leaves a record.
func (ss *SmsService) Send(phone, message string, sentBy uint, resource string, resourceID uint) (*models.SmsLog, error) {
	entry := models.SmsLog{
		Phone:      phone,
		Message:    message,
		Status:     "pending",
		SentByID:   sentBy,
		Resource:   resource,
		ResourceID: resourceID,
	}
	if err := ss.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create sms log: %w", err)
	}

	if config.AppConfig.SMSGatewayURL == "" {
		entry.Status = "failed"
		entry.Error = "sms gateway not configured"
		ss.db.Save(&entry)
		return &entry, fmt.Errorf("sms gateway not configured")
	}

	ref, err := ss.deliver(phone, message)
	now := time.Now()
	if err != nil {
		entry.Status = "failed"
		entry.Error = err.Error()
		ss.db.Save(&entry)
		logrus.WithError(err).WithField("phone", phone).Warn("SMS delivery failed")
		return &entry, err
	}

	entry.Status = "sent"
	entry.ProviderRef = ref
	entry.SentAt = &now
	if err := ss.db.Save(&entry).Error; err != nil {
		return &entry, fmt.Errorf("update sms log: %w", err)
	}
	return &entry, nil
}

func (ss *SmsService) deliver(phone, message string) (string, error) {
	payload, err := json.Marshal(gatewayRequest{
		To:      phone,
		Message: message,
		Sender:  config.AppConfig.SMSSenderID,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, config.AppConfig.SMSGatewayURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+config.AppConfig.SMSAPIKey)

	resp, err := ss.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	var gw gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&gw); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if gw.Error != "" {
			return "", fmt.Errorf("gateway rejected message: %s", gw.Error)
		}
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return gw.MessageID, nil
}

// Retry re-sends a previously failed SMS and updates its log row in place.
func (ss *SmsService) Retry(logID uint) (*models.SmsLog, error) {
	var entry models.SmsLog
	if err := ss.db.First(&entry, logID).Error; err != nil {
		return nil, fmt.Errorf("sms log %d not found", logID)
	}
	if entry.Status != "failed" {
		return nil, fmt.Errorf("sms log %d is %s, only failed messages can be retried", logID, entry.Status)
	}

	ref, err := ss.deliver(entry.Phone, entry.Message)
	now := time.Now()
	if err != nil {
		entry.Error = err.Error()
		ss.db.Save(&entry)
		return &entry, err
	}

	entry.Status = "sent"
	entry.ProviderRef = ref
	entry.Error = ""
	entry.SentAt = &now
	if err := ss.db.Save(&entry).Error; err != nil {
		return &entry, err
	}
	return &entry, nil
}

// MarkDelivered is called from the gateway delivery-report webhook.
func (ss *SmsService) MarkDelivered(providerRef string) error {
	res := ss.db.Model(&models.SmsLog{}).
		Where("provider_ref = ? AND status = ?", providerRef, "sent").
		Update("status", "delivered")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no sent sms with provider ref %s", providerRef)
	}
	return nil
}

// SendPaymentReceipt composes and sends the payment confirmation SMS to the
// guardian of the paying student, when one with a phone number exists.
func (ss *SmsService) SendPaymentReceipt(fee models.StudentFee, amount float64, processedBy uint) {
	var student models.Student
	if err := ss.db.Preload("Guardian").First(&student, fee.StudentID).Error; err != nil {
		return
	}
	if student.Guardian == nil || student.Guardian.Phone == "" {
		return
	}

	msg := fmt.Sprintf("%s: payment of %.2f received for %s %s (receipt %s). Outstanding balance: %.2f.",
		config.AppConfig.SchoolName, amount, student.FirstName, student.LastName, fee.Receipt(), fee.Balance)
	if _, err := ss.Send(student.Guardian.Phone, msg, processedBy, "student_fees", fee.ID); err != nil {
		logrus.WithError(err).WithField("student_fee_id", fee.ID).Warn("payment receipt SMS failed")
	}
}

// SendFeeReminder composes and sends a due-balance reminder for one fee.
func (ss *SmsService) SendFeeReminder(fee models.StudentFee, termName string) {
	var student models.Student
	if err := ss.db.Preload("Guardian").First(&student, fee.StudentID).Error; err != nil {
		return
	}
	if student.Guardian == nil || student.Guardian.Phone == "" {
		return
	}

	msg := fmt.Sprintf("%s: fee balance of %.2f for %s %s (%s) is outstanding. Kindly arrange payment.",
		config.AppConfig.SchoolName, fee.Balance, student.FirstName, student.LastName, termName)
	if _, err := ss.Send(student.Guardian.Phone, msg, 0, "student_fees", fee.ID); err != nil {
		logrus.WithError(err).WithField("student_fee_id", fee.ID).Warn("fee reminder SMS failed")
	}
}
