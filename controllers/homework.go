package controllers

import (
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
	"greenvale_go/services/notifications"
	"greenvale_go/storage"
)

type HomeworkController struct {
	notify *notifications.Service
}

func NewHomeworkController() *HomeworkController {
	return &HomeworkController{notify: notifications.NewService()}
}

// teacherFor resolves the Teacher row behind the authenticated user
func teacherFor(user *models.User) (*models.Teacher, error) {
	var teacher models.Teacher
	if err := database.DB.Where("user_id = ?", user.ID).First(&teacher).Error; err != nil {
		return nil, err
	}
	return &teacher, nil
}

// teacherAssignedTo reports whether the teacher holds an assignment covering
// the grade and section. A SectionID of 0 on the assignment covers every
// section of the grade.
func teacherAssignedTo(teacherID, gradeID, sectionID uint) bool {
	var count int64
	database.DB.Model(&models.TeacherAssignment{}).
		Where("teacher_id = ? AND grade_id = ? AND (section_id = ? OR section_id = 0)",
			teacherID, gradeID, sectionID).
		Count(&count)
	return count > 0
}

// GetHomework lists homework visible to the caller. Teachers see their own
// assignments' homework, students their grade/section's, guardians their
// children's, admins everything.
func (hc *HomeworkController) GetHomework(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	query := database.DB.Model(&models.Homework{})

	switch user.Role {
	case models.RoleTeacher:
		teacher, err := teacherFor(user)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No teacher profile"})
		}
		query = query.Where("teacher_id = ?", teacher.ID)
	case models.RoleStudent:
		var student models.Student
		if err := database.DB.Where("user_id = ?", user.ID).First(&student).Error; err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No student profile"})
		}
		query = query.Where("grade_id = ? AND (section_id = ? OR section_id = 0)",
			student.GradeID, student.SectionID)
	case models.RoleGuardian:
		var guardian models.Guardian
		if err := database.DB.Where("user_id = ?", user.ID).First(&guardian).Error; err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No guardian profile"})
		}
		var students []models.Student
		database.DB.Where("guardian_id = ?", guardian.ID).Find(&students)
		if len(students) == 0 {
			return c.JSON(fiber.Map{"homework": []models.Homework{}, "pagination": fiber.Map{"page": page, "limit": limit, "total": 0}})
		}
		cond := database.DB
		for _, s := range students {
			cond = cond.Or("grade_id = ? AND (section_id = ? OR section_id = 0)", s.GradeID, s.SectionID)
		}
		query = query.Where(cond)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if gradeID := c.Query("grade_id"); gradeID != "" && user.Role == models.RoleAdmin {
		query = query.Where("grade_id = ?", gradeID)
	}

	var total int64
	query.Count(&total)

	var homework []models.Homework
	if err := query.Preload("Teacher").Preload("Grade").Preload("Section").
		Order("due_date DESC").Offset(offset).Limit(limit).Find(&homework).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch homework"})
	}

	return c.JSON(fiber.Map{
		"homework": homework,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetHomeworkDetail returns one homework with submissions. Students only see
// their own submission; callers outside the homework's audience get 404.
func (hc *HomeworkController) GetHomeworkDetail(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework ID"})
	}

	var homework models.Homework
	if err := database.DB.Preload("Teacher").Preload("Grade").Preload("Section").
		First(&homework, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}

	switch user.Role {
	case models.RoleAdmin:
		var submissions []models.HomeworkSubmission
		database.DB.Preload("Student").Where("homework_id = ?", homework.ID).Find(&submissions)
		return c.JSON(fiber.Map{"homework": homework, "submissions": submissions})

	case models.RoleTeacher:
		teacher, err := teacherFor(user)
		if err != nil || homework.TeacherID != teacher.ID {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
		}
		var submissions []models.HomeworkSubmission
		database.DB.Preload("Student").Where("homework_id = ?", homework.ID).Find(&submissions)
		return c.JSON(fiber.Map{"homework": homework, "submissions": submissions})

	case models.RoleStudent:
		var student models.Student
		if err := database.DB.Where("user_id = ?", user.ID).First(&student).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
		}
		if student.GradeID != homework.GradeID ||
			(homework.SectionID != 0 && homework.SectionID != student.SectionID) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
		}
		var submission models.HomeworkSubmission
		var mine *models.HomeworkSubmission
		if err := database.DB.Where("homework_id = ? AND student_id = ?", homework.ID, student.ID).
			First(&submission).Error; err == nil {
			mine = &submission
		}
		return c.JSON(fiber.Map{"homework": homework, "my_submission": mine})

	case models.RoleGuardian:
		var guardian models.Guardian
		if err := database.DB.Where("user_id = ?", user.ID).First(&guardian).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
		}
		var students []models.Student
		database.DB.Where("guardian_id = ?", guardian.ID).Find(&students)
		var childIDs []uint
		for _, s := range students {
			if s.GradeID == homework.GradeID &&
				(homework.SectionID == 0 || homework.SectionID == s.SectionID) {
				childIDs = append(childIDs, s.ID)
			}
		}
		if len(childIDs) == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
		}
		var submissions []models.HomeworkSubmission
		database.DB.Preload("Student").
			Where("homework_id = ? AND student_id IN ?", homework.ID, childIDs).Find(&submissions)
		return c.JSON(fiber.Map{"homework": homework, "submissions": submissions})
	}

	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
}

type homeworkRequest struct {
	GradeID     uint      `json:"grade_id"`
	SectionID   uint      `json:"section_id"`
	Subject     string    `json:"subject"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
}

// CreateHomework creates homework for a grade/section the teacher is
// assigned to. Students of the audience get an in-app notification.
func (hc *HomeworkController) CreateHomework(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	teacher, err := teacherFor(user)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No teacher profile"})
	}

	var req homeworkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.GradeID == 0 || req.Title == "" || req.DueDate.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "grade_id, title and due_date are required"})
	}

	if !teacherAssignedTo(teacher.ID, req.GradeID, req.SectionID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not assigned to this grade"})
	}

	homework := models.Homework{
		TeacherID:   teacher.ID,
		GradeID:     req.GradeID,
		SectionID:   req.SectionID,
		Subject:     req.Subject,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      "open",
	}
	if err := database.DB.Create(&homework).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create homework"})
	}

	middleware.LogActivity(c, "CREATE", "homework", homework.ID, homework)
	go hc.notifyAudience(homework)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Homework created successfully",
		"homework": homework,
	})
}

func (hc *HomeworkController) notifyAudience(homework models.Homework) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("homework notification failed")
		}
	}()

	studentQuery := database.DB.Model(&models.Student{}).
		Where("grade_id = ? AND status = ?", homework.GradeID, "active")
	if homework.SectionID != 0 {
		studentQuery = studentQuery.Where("section_id = ?", homework.SectionID)
	}

	var userIDs []uint
	studentQuery.Pluck("user_id", &userIDs)
	if len(userIDs) == 0 {
		return
	}

	n := notifications.QueuedWithData(
		"New homework: "+homework.Title,
		fmt.Sprintf("%s homework due %s", homework.Subject, homework.DueDate.Format("2 Jan 2006")),
		"info",
		fiber.Map{"homework_id": homework.ID},
		"normal", "popup",
	)
	if err := hc.notify.EnqueueOrCreate(userIDs, n); err != nil {
		logrus.WithError(err).Warn("homework notification enqueue failed")
	}
}

// UploadAttachment attaches a file to homework owned by the caller
func (hc *HomeworkController) UploadAttachment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework ID"})
	}

	var homework models.Homework
	if err := database.DB.First(&homework, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}

	if user.Role == models.RoleTeacher {
		teacher, err := teacherFor(user)
		if err != nil || homework.TeacherID != teacher.ID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your homework"})
		}
	} else if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	svc, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	}
	key, err := svc.UploadFile(fileHeader, "homework", user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload failed"})
	}

	if err := database.DB.Model(&homework).Update("attachment_key", key).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save attachment"})
	}

	middleware.LogActivity(c, "UPDATE", "homework", homework.ID, fiber.Map{"attachment": key})

	return c.JSON(fiber.Map{
		"message":        "Attachment uploaded",
		"attachment_key": key,
		"url":            svc.PublicURL(key),
	})
}

// homeworkVisibleTo reports whether the caller's role puts the homework
// inside their audience. Mirrors the scoping used by GetHomeworkDetail.
func homeworkVisibleTo(user *models.User, homework *models.Homework) bool {
	switch user.Role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		teacher, err := teacherFor(user)
		return err == nil && homework.TeacherID == teacher.ID
	case models.RoleStudent:
		var student models.Student
		if err := database.DB.Where("user_id = ?", user.ID).First(&student).Error; err != nil {
			return false
		}
		return student.GradeID == homework.GradeID &&
			(homework.SectionID == 0 || homework.SectionID == student.SectionID)
	case models.RoleGuardian:
		var guardian models.Guardian
		if err := database.DB.Where("user_id = ?", user.ID).First(&guardian).Error; err != nil {
			return false
		}
		var students []models.Student
		database.DB.Where("guardian_id = ?", guardian.ID).Find(&students)
		for _, s := range students {
			if s.GradeID == homework.GradeID &&
				(homework.SectionID == 0 || homework.SectionID == s.SectionID) {
				return true
			}
		}
	}
	return false
}

// DownloadAttachment streams the homework attachment to callers inside
// the homework's audience.
func (hc *HomeworkController) DownloadAttachment(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework ID"})
	}

	var homework models.Homework
	if err := database.DB.First(&homework, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}

	if !homeworkVisibleTo(user, &homework) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}
	if homework.AttachmentKey == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No attachment on this homework"})
	}

	svc, err := storage.NewStorageService()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
	}
	content, err := svc.Download(homework.AttachmentKey)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Attachment file not found"})
	}

	c.Set("Content-Type", "application/octet-stream")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(homework.AttachmentKey)))
	return c.Send(content)
}

// SubmitHomework records or replaces the calling student's submission.
// Closed homework rejects new submissions.
func (hc *HomeworkController) SubmitHomework(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var student models.Student
	if err := database.DB.Where("user_id = ?", user.ID).First(&student).Error; err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No student profile"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework ID"})
	}

	var homework models.Homework
	if err := database.DB.First(&homework, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}
	if student.GradeID != homework.GradeID ||
		(homework.SectionID != 0 && homework.SectionID != student.SectionID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}
	if homework.Status != "open" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Homework is closed"})
	}

	var fileKey string
	if fileHeader, err := c.FormFile("file"); err == nil {
		svc, err := storage.NewStorageService()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Storage unavailable"})
		}
		fileKey, err = svc.UploadFile(fileHeader, "submissions", user.ID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload failed"})
		}
	}

	var submission models.HomeworkSubmission
	err = database.DB.Where("homework_id = ? AND student_id = ?", homework.ID, student.ID).
		First(&submission).Error
	if err == gorm.ErrRecordNotFound {
		submission = models.HomeworkSubmission{
			HomeworkID:  homework.ID,
			StudentID:   student.ID,
			FileKey:     fileKey,
			SubmittedAt: time.Now(),
		}
		if err := database.DB.Create(&submission).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save submission"})
		}
	} else if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load submission"})
	} else {
		if submission.Score != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Submission already graded"})
		}
		updates := map[string]interface{}{"submitted_at": time.Now()}
		if fileKey != "" {
			updates["file_key"] = fileKey
		}
		if err := database.DB.Model(&submission).Updates(updates).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update submission"})
		}
	}

	middleware.LogActivity(c, "CREATE", "homework_submissions", submission.ID, fiber.Map{
		"homework_id": homework.ID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Submission recorded",
		"submission": submission,
	})
}

type gradeRequest struct {
	Score   *float64 `json:"score"`
	Remarks string   `json:"remarks"`
}

// GradeSubmission records a score and remarks on a submission. Only the
// homework's teacher or an admin may grade.
func (hc *HomeworkController) GradeSubmission(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	submissionID, err := strconv.ParseUint(c.Params("submissionId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid submission ID"})
	}

	var submission models.HomeworkSubmission
	if err := database.DB.Preload("Homework").Preload("Student").
		First(&submission, uint(submissionID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission not found"})
	}

	if user.Role == models.RoleTeacher {
		teacher, err := teacherFor(user)
		if err != nil || submission.Homework.TeacherID != teacher.ID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your homework"})
		}
	} else if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req gradeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Score == nil || *req.Score < 0 || *req.Score > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score must be between 0 and 100"})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"score":        *req.Score,
		"remarks":      req.Remarks,
		"graded_by_id": user.ID,
		"graded_at":    now,
	}
	if err := database.DB.Model(&submission).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to grade submission"})
	}

	middleware.LogActivity(c, "UPDATE", "homework_submissions", submission.ID, fiber.Map{
		"score": *req.Score,
	})

	// Let the student know their work has been marked.
	go func(sub models.HomeworkSubmission, score float64) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("grade notification failed")
			}
		}()
		n := notifications.QueuedWithData(
			"Homework graded: "+sub.Homework.Title,
			fmt.Sprintf("You scored %.1f on %s", score, sub.Homework.Title),
			"success",
			fiber.Map{"homework_id": sub.HomeworkID, "submission_id": sub.ID},
			"normal",
		)
		if err := hc.notify.EnqueueOrCreate([]uint{sub.Student.UserID}, n); err != nil {
			logrus.WithError(err).Warn("grade notification enqueue failed")
		}
	}(submission, *req.Score)

	return c.JSON(fiber.Map{"message": "Submission graded"})
}

// CloseHomework closes homework to further submissions
func (hc *HomeworkController) CloseHomework(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid homework ID"})
	}

	var homework models.Homework
	if err := database.DB.First(&homework, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Homework not found"})
	}

	if user.Role == models.RoleTeacher {
		teacher, err := teacherFor(user)
		if err != nil || homework.TeacherID != teacher.ID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not your homework"})
		}
	} else if user.Role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	if err := database.DB.Model(&homework).Update("status", "closed").Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to close homework"})
	}

	middleware.LogActivity(c, "UPDATE", "homework", homework.ID, fiber.Map{"action": "close"})

	return c.JSON(fiber.Map{"message": "Homework closed"})
}
