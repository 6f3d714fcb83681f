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

type StudentController struct{}

// GetStudents returns students with pagination and filters
func (sc *StudentController) GetStudents(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	var students []models.Student
	var total int64

	query := database.DB.Model(&models.Student{})

	if gradeID := c.Query("grade_id"); gradeID != "" {
		query = query.Where("grade_id = ?", gradeID)
	}
	if sectionID := c.Query("section_id"); sectionID != "" {
		query = query.Where("section_id = ?", sectionID)
	}
	status := c.Query("status", "active")
	query = query.Where("status = ?", status)

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("admission_no LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}

	query.Count(&total)

	if err := query.Preload("Grade").Preload("Section").Preload("Guardian").
		Order("admission_no").Offset(offset).Limit(limit).Find(&students).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch students",
		})
	}

	return c.JSON(fiber.Map{
		"students": students,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetStudent returns one student with relations
func (sc *StudentController) GetStudent(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student ID",
		})
	}

	var student models.Student
	if err := database.DB.Preload("User").Preload("Grade").Preload("Section").
		Preload("Guardian").Preload("Guardian.User").
		First(&student, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	return c.JSON(fiber.Map{
		"student": student,
	})
}

// CreateStudent creates the student together with its login user
func (sc *StudentController) CreateStudent(c *fiber.Ctx) error {
	var req struct {
		AdmissionNo string `json:"admission_no" validate:"required"`
		FirstName   string `json:"first_name" validate:"required"`
		LastName    string `json:"last_name" validate:"required"`
		Gender      string `json:"gender"`
		Address     string `json:"address"`
		GradeID     uint   `json:"grade_id" validate:"required"`
		SectionID   uint   `json:"section_id"`
		GuardianID  uint   `json:"guardian_id"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AdmissionNo == "" || req.GradeID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "admission_no and grade_id are required",
		})
	}

	var grade models.Grade
	if err := database.DB.First(&grade, req.GradeID).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Grade not found",
		})
	}

	if req.SectionID != 0 {
		var section models.Section
		if err := database.DB.Where("id = ? AND grade_id = ?", req.SectionID, req.GradeID).First(&section).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Section does not belong to the grade",
			})
		}
	}

	var existing models.Student
	if err := database.DB.Where("admission_no = ?", req.AdmissionNo).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Admission number already exists",
		})
	}

	username := req.Username
	if username == "" {
		username = strings.ToLower(req.AdmissionNo)
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

	var student models.Student
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Username: username,
			Password: hashedPassword,
			Email:    utils.NullIfEmpty(req.Email),
			Phone:    req.Phone,
			Role:     models.RoleStudent,
			Status:   "active",
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		student = models.Student{
			UserID:      user.ID,
			AdmissionNo: req.AdmissionNo,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Gender:      req.Gender,
			Address:     req.Address,
			GradeID:     req.GradeID,
			SectionID:   req.SectionID,
			GuardianID:  req.GuardianID,
			Status:      "active",
		}
		return tx.Create(&student).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create student",
		})
	}

	database.DB.Preload("User").Preload("Grade").Preload("Section").First(&student, student.ID)

	middleware.LogActivity(c, "CREATE", "students", student.ID, student)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Student created successfully",
		"student": student,
	})
}

// UpdateStudent updates student fields
func (sc *StudentController) UpdateStudent(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student ID",
		})
	}

	var student models.Student
	if err := database.DB.First(&student, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	var updateData struct {
		FirstName  string `json:"first_name"`
		LastName   string `json:"last_name"`
		Gender     string `json:"gender"`
		Address    string `json:"address"`
		GradeID    uint   `json:"grade_id"`
		SectionID  uint   `json:"section_id"`
		GuardianID uint   `json:"guardian_id"`
		Status     string `json:"status"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if updateData.GradeID != 0 {
		var grade models.Grade
		if err := database.DB.First(&grade, updateData.GradeID).Error; err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Grade not found",
			})
		}
	}

	if err := database.DB.Model(&student).Updates(updateData).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update student",
		})
	}

	database.DB.Preload("Grade").Preload("Section").Preload("Guardian").First(&student, student.ID)

	middleware.LogActivity(c, "UPDATE", "students", student.ID, updateData)

	return c.JSON(fiber.Map{
		"message": "Student updated successfully",
		"student": student,
	})
}

// DeleteStudent soft-deletes a student and deactivates its user
func (sc *StudentController) DeleteStudent(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid student ID",
		})
	}

	var student models.Student
	if err := database.DB.First(&student, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Student not found",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&student).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", student.UserID).
			Update("status", "inactive").Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete student",
		})
	}

	middleware.LogActivity(c, "DELETE", "students", student.ID, student)

	return c.JSON(fiber.Map{
		"message": "Student deleted successfully",
	})
}
