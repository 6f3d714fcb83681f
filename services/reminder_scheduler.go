package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/models"
	"greenvale_go/services/notifications"
)

// Scheduler runs the recurring background jobs: fee payment reminders,
// homework closing and activity log maintenance.
type Scheduler struct {
	db      *gorm.DB
	cron    *cron.Cron
	sms     *SmsService
	line    *LineMessagingService
	notify  *notifications.Service
	archive *LogArchiveService
}

func NewScheduler(sms *SmsService, archive *LogArchiveService) *Scheduler {
	return &Scheduler{
		db:      database.GetDB(),
		cron:    cron.New(),
		sms:     sms,
		line:    NewLineMessagingService(),
		notify:  notifications.NewService(),
		archive: archive,
	}
}

// Start registers the jobs and starts the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.AddFunc("0 7 * * *", s.SendFeeReminders)
	s.cron.AddFunc("0 * * * *", s.CloseExpiredHomework)
	s.cron.AddFunc("*/10 * * * *", s.FlushActivityLogs)
	s.cron.AddFunc("0 2 * * 0", s.ArchiveOldLogs)
	s.cron.Start()
	logrus.Info("Background scheduler started")
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SendFeeReminders sends one reminder SMS per outstanding fee of the current
// term to the student's guardian.
func (s *Scheduler) SendFeeReminders() {
	term, err := CurrentTerm(s.db)
	if err != nil {
		logrus.WithError(err).Warn("Fee reminders skipped: no current term")
		return
	}

	var fees []models.StudentFee
	err = s.db.
		Joins("JOIN fee_structures ON fee_structures.id = student_fees.fee_structure_id").
		Where("fee_structures.term_id = ? AND student_fees.payment_status IN ?",
			term.ID, []string{models.FeeStatusUnpaid, models.FeeStatusPartial}).
		Preload("Student").
		Preload("Student.Guardian").
		Preload("FeeStructure").
		Find(&fees).Error
	if err != nil {
		logrus.WithError(err).Error("Failed to load outstanding fees for reminders")
		return
	}

	sent := 0
	for _, fee := range fees {
		guardian := fee.Student.Guardian
		if guardian == nil || guardian.Phone == "" {
			continue
		}
		s.sms.SendFeeReminder(fee, term.Name)
		message := fmt.Sprintf("Fee reminder: %s %s has an outstanding balance of %.2f for %s.",
			fee.Student.FirstName, fee.Student.LastName, fee.Balance, term.Name)
		if s.line != nil {
			if err := s.line.PushToGuardian(guardian.ID, message); err != nil {
				logrus.WithError(err).WithField("guardian_id", guardian.ID).
					Debug("LINE fee reminder not delivered")
			}
		}
		if s.notify != nil && guardian.UserID != 0 {
			n := notifications.QueuedWithData(
				"Fee payment reminder", message, "warning",
				map[string]any{"student_fee_id": fee.ID},
				"normal",
			)
			if err := s.notify.EnqueueOrCreate([]uint{guardian.UserID}, n); err != nil {
				logrus.WithError(err).WithField("guardian_id", guardian.ID).
					Warn("Fee reminder notification enqueue failed")
			}
		}
		sent++
	}
	logrus.WithFields(logrus.Fields{
		"term":     term.Name,
		"fees":     len(fees),
		"reminded": sent,
	}).Info("Fee reminder sweep finished")
}

// CloseExpiredHomework marks open homework past its due date as closed.
func (s *Scheduler) CloseExpiredHomework() {
	result := s.db.Model(&models.Homework{}).
		Where("status = ? AND due_date < ?", "open", time.Now()).
		Update("status", "closed")
	if result.Error != nil {
		logrus.WithError(result.Error).Error("Failed to close expired homework")
		return
	}
	if result.RowsAffected > 0 {
		logrus.WithField("closed", result.RowsAffected).Info("Closed expired homework")
	}
}

// FlushActivityLogs drains the cached activity log queue into the database.
func (s *Scheduler) FlushActivityLogs() {
	if s.archive == nil {
		return
	}
	if err := s.archive.FlushCachedLogs(); err != nil {
		logrus.WithError(err).Error("Failed to flush cached activity logs")
	}
}

// ArchiveOldLogs moves old activity logs into a compressed S3 archive.
func (s *Scheduler) ArchiveOldLogs() {
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveOldLogs(90 * 24 * time.Hour); err != nil {
		logrus.WithError(err).Error("Failed to archive old activity logs")
	}
}

// CurrentTerm resolves the term of the active academic year whose date range
// covers today, falling back to the year's first term before it starts and
// the last term after it ends.
func CurrentTerm(db *gorm.DB) (*models.Term, error) {
	var year models.AcademicYear
	if err := db.Where("active = ?", true).First(&year).Error; err != nil {
		return nil, err
	}

	var terms []models.Term
	if err := db.Where("academic_year_id = ?", year.ID).Order("number").Find(&terms).Error; err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	now := time.Now()
	for i := range terms {
		if !now.Before(terms[i].StartDate) && !now.After(terms[i].EndDate) {
			return &terms[i], nil
		}
	}
	if now.Before(terms[0].StartDate) {
		return &terms[0], nil
	}
	return &terms[len(terms)-1], nil
}
