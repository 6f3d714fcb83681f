package utils

import (
	"time"

	"greenvale_go/models"
)

// Compact representations used across APIs
type StudentShort struct {
	ID          uint   `json:"id"`
	AdmissionNo string `json:"admission_no"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Grade       string `json:"grade,omitempty"`
	Section     string `json:"section,omitempty"`
}

// ToStudentShort maps a models.Student to the compact DTO. Caller should
// have preloaded Grade and Section when possible.
func ToStudentShort(s models.Student) StudentShort {
	short := StudentShort{
		ID:          s.ID,
		AdmissionNo: s.AdmissionNo,
		FirstName:   s.FirstName,
		LastName:    s.LastName,
	}
	if s.Grade.ID != 0 {
		short.Grade = s.Grade.Name
	}
	if s.Section.ID != 0 {
		short.Section = s.Section.Name
	}
	return short
}

// TimelineEntry is one ledger row annotated with the running balance of
// payments after applying its impact.
type TimelineEntry struct {
	ID              uint      `json:"id"`
	ReferenceNumber string    `json:"reference_number"`
	Type            string    `json:"type"`
	Amount          float64   `json:"amount"`
	Impact          float64   `json:"impact"`
	RunningPaid     float64   `json:"running_paid"`
	RunningBalance  float64   `json:"running_balance"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
	TransactionDate time.Time `json:"transaction_date"`
	Notes           string    `json:"notes,omitempty"`
}

// BuildFeeTimeline walks the fee's transactions in order and computes the
// running paid amount and balance from each transaction's impact. The
// transactions slice must already be ordered by transaction date, id.
func BuildFeeTimeline(totalFee float64, txns []models.PaymentTransaction) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(txns))
	var runningPaid float64
	for _, t := range txns {
		impact := t.Impact()
		runningPaid += impact
		entries = append(entries, TimelineEntry{
			ID:              t.ID,
			ReferenceNumber: t.ReferenceNumber,
			Type:            t.Type,
			Amount:          t.Amount,
			Impact:          impact,
			RunningPaid:     runningPaid,
			RunningBalance:  models.ComputeBalance(runningPaid, totalFee),
			PaymentMethod:   t.PaymentMethod,
			TransactionDate: t.TransactionDate,
			Notes:           t.Notes,
		})
	}
	return entries
}

type NotificationDTO struct {
	ID        uint       `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UserID    uint       `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"type"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	Data      any        `json:"data,omitempty"`
}

// ToNotificationDTO maps a models.Notification to the compact DTO.
func ToNotificationDTO(n models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		ReadAt:    n.ReadAt,
	}
	if !n.Data.IsNull() {
		dto.Data = n.Data
	}
	return dto
}
