package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
	"greenvale_go/utils"
)

type TeacherController struct{}

// GetTeachers returns teachers with pagination
func (tc *TeacherController) GetTeachers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	var teachers []models.Teacher
	var total int64

	query := database.DB.Model(&models.Teacher{}).Where("active = ?", true)

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR staff_no LIKE ?", like, like, like)
	}

	query.Count(&total)

	if err := query.Preload("Assignments").Preload("Assignments.Grade").
		Offset(offset).Limit(limit).Find(&teachers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch teachers",
		})
	}

	return c.JSON(fiber.Map{
		"teachers": teachers,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetTeacher returns one teacher with assignments
func (tc *TeacherController) GetTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid teacher ID",
		})
	}

	var teacher models.Teacher
	if err := database.DB.Preload("User").Preload("Assignments").Preload("Assignments.Grade").
		First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	return c.JSON(fiber.Map{
		"teacher": teacher,
	})
}

// CreateTeacher creates the teacher together with its login user
func (tc *TeacherController) CreateTeacher(c *fiber.Ctx) error {
	var req struct {
		StaffNo       string `json:"staff_no" validate:"required"`
		FirstName     string `json:"first_name" validate:"required"`
		LastName      string `json:"last_name" validate:"required"`
		Subjects      string `json:"subjects"`
		Qualification string `json:"qualification"`
		Username      string `json:"username"`
		Password      string `json:"password"`
		Email         string `json:"email"`
		Phone         string `json:"phone"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.StaffNo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "staff_no is required",
		})
	}

	var existing models.Teacher
	if err := database.DB.Where("staff_no = ?", req.StaffNo).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Staff number already exists",
		})
	}

	username := req.Username
	if username == "" {
		username = strings.ToLower(req.StaffNo)
	}
	password := req.Password
	if password == "" {
		generated, err := utils.GenerateRandomString(10)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to generate password",
			})
		}
		password = generated
	}
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to hash password",
		})
	}

	var teacher models.Teacher
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Username: username,
			Password: hashedPassword,
			Email:    utils.NullIfEmpty(req.Email),
			Phone:    req.Phone,
			Role:     models.RoleTeacher,
			Status:   "active",
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		teacher = models.Teacher{
			UserID:        user.ID,
			StaffNo:       utils.NullIfEmpty(req.StaffNo),
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Subjects:      req.Subjects,
			Qualification: req.Qualification,
			Active:        true,
		}
		return tx.Create(&teacher).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create teacher",
		})
	}

	middleware.LogActivity(c, "CREATE", "teachers", teacher.ID, teacher)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Teacher created successfully",
		"teacher": teacher,
	})
}

// UpdateTeacher updates teacher fields
func (tc *TeacherController) UpdateTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid teacher ID",
		})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	var updateData struct {
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
		Subjects      string `json:"subjects"`
		Qualification string `json:"qualification"`
		Active        *bool  `json:"active"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	updates := map[string]interface{}{}
	if updateData.FirstName != "" {
		updates["first_name"] = updateData.FirstName
	}
	if updateData.LastName != "" {
		updates["last_name"] = updateData.LastName
	}
	if updateData.Subjects != "" {
		updates["subjects"] = updateData.Subjects
	}
	if updateData.Qualification != "" {
		updates["qualification"] = updateData.Qualification
	}
	if updateData.Active != nil {
		updates["active"] = *updateData.Active
	}

	if err := database.DB.Model(&teacher).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update teacher",
		})
	}

	middleware.LogActivity(c, "UPDATE", "teachers", teacher.ID, updates)

	return c.JSON(fiber.Map{
		"message": "Teacher updated successfully",
		"teacher": teacher,
	})
}

// AssignTeacher creates a grade/section/subject assignment for a teacher
func (tc *TeacherController) AssignTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid teacher ID",
		})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Teacher not found",
		})
	}

	var req struct {
		GradeID   uint   `json:"grade_id" validate:"required"`
		SectionID uint   `json:"section_id"`
		Subject   string `json:"subject"`
	}
	if err := c.BodyParser(&req); err != nil || req.GradeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "grade_id is required",
		})
	}

	var grade models.Grade
	if err := database.DB.First(&grade, req.GradeID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Grade not found",
		})
	}

	var existing models.TeacherAssignment
	if err := database.DB.Where("teacher_id = ? AND grade_id = ? AND section_id = ? AND subject = ?",
		teacher.ID, req.GradeID, req.SectionID, req.Subject).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Assignment already exists",
		})
	}

	assignment := models.TeacherAssignment{
		TeacherID: teacher.ID,
		GradeID:   req.GradeID,
		SectionID: req.SectionID,
		Subject:   req.Subject,
	}
	if err := database.DB.Create(&assignment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create assignment",
		})
	}

	middleware.LogActivity(c, "CREATE", "teacher_assignments", assignment.ID, assignment)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Assignment created successfully",
		"assignment": assignment,
	})
}

// RemoveAssignment deletes a teacher assignment
func (tc *TeacherController) RemoveAssignment(c *fiber.Ctx) error {
	assignmentID, err := strconv.ParseUint(c.Params("assignmentId"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid assignment ID",
		})
	}

	var assignment models.TeacherAssignment
	if err := database.DB.First(&assignment, uint(assignmentID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Assignment not found",
		})
	}

	if err := database.DB.Delete(&assignment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete assignment",
		})
	}

	middleware.LogActivity(c, "DELETE", "teacher_assignments", assignment.ID, assignment)

	return c.JSON(fiber.Map{
		"message": "Assignment removed successfully",
	})
}
