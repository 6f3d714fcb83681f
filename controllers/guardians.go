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

type GuardianController struct{}

// GetGuardians returns guardians with pagination
func (gc *GuardianController) GetGuardians(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	var guardians []models.Guardian
	var total int64

	query := database.DB.Model(&models.Guardian{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ? OR phone LIKE ?", like, like, like)
	}

	query.Count(&total)

	if err := query.Preload("Students").Offset(offset).Limit(limit).Find(&guardians).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch guardians",
		})
	}

	return c.JSON(fiber.Map{
		"guardians": guardians,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetGuardian returns one guardian with linked students
func (gc *GuardianController) GetGuardian(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guardian ID",
		})
	}

	var guardian models.Guardian
	if err := database.DB.Preload("User").Preload("Students").Preload("Students.Grade").
		First(&guardian, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Guardian not found",
		})
	}

	return c.JSON(fiber.Map{
		"guardian": guardian,
	})
}

// CreateGuardian creates the guardian together with its login user
func (gc *GuardianController) CreateGuardian(c *fiber.Ctx) error {
	var req struct {
		FirstName    string `json:"first_name" validate:"required"`
		LastName     string `json:"last_name" validate:"required"`
		Phone        string `json:"phone" validate:"required"`
		Relationship string `json:"relationship"`
		Occupation   string `json:"occupation"`
		Username     string `json:"username"`
		Password     string `json:"password"`
		Email        string `json:"email"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone is required",
		})
	}

	username := req.Username
	if username == "" {
		username = "g" + req.Phone
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

	var guardian models.Guardian
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Username: username,
			Password: hashedPassword,
			Email:    utils.NullIfEmpty(req.Email),
			Phone:    req.Phone,
			Role:     models.RoleGuardian,
			Status:   "active",
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		guardian = models.Guardian{
			UserID:       user.ID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        req.Phone,
			Relationship: req.Relationship,
			Occupation:   req.Occupation,
		}
		return tx.Create(&guardian).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create guardian",
		})
	}

	middleware.LogActivity(c, "CREATE", "guardians", guardian.ID, guardian)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Guardian created successfully",
		"guardian": guardian,
	})
}

// UpdateGuardian updates guardian fields
func (gc *GuardianController) UpdateGuardian(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guardian ID",
		})
	}

	var guardian models.Guardian
	if err := database.DB.First(&guardian, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Guardian not found",
		})
	}

	var updateData struct {
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		Phone        string `json:"phone"`
		Relationship string `json:"relationship"`
		Occupation   string `json:"occupation"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := database.DB.Model(&guardian).Updates(updateData).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update guardian",
		})
	}

	middleware.LogActivity(c, "UPDATE", "guardians", guardian.ID, updateData)

	return c.JSON(fiber.Map{
		"message":  "Guardian updated successfully",
		"guardian": guardian,
	})
}

// LinkStudents attaches students to a guardian
func (gc *GuardianController) LinkStudents(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guardian ID",
		})
	}

	var guardian models.Guardian
	if err := database.DB.First(&guardian, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Guardian not found",
		})
	}

	var req struct {
		StudentIDs []uint `json:"student_ids" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.StudentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "student_ids is required",
		})
	}

	result := database.DB.Model(&models.Student{}).
		Where("id IN ?", req.StudentIDs).
		Update("guardian_id", guardian.ID)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to link students",
		})
	}

	middleware.LogActivity(c, "UPDATE", "guardians", guardian.ID, fiber.Map{
		"action":      "link_students",
		"student_ids": req.StudentIDs,
	})

	return c.JSON(fiber.Map{
		"message": "Students linked successfully",
		"linked":  result.RowsAffected,
	})
}

// DeleteGuardian soft-deletes a guardian and deactivates its user
func (gc *GuardianController) DeleteGuardian(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid guardian ID",
		})
	}

	var guardian models.Guardian
	if err := database.DB.First(&guardian, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Guardian not found",
		})
	}

	var linked int64
	database.DB.Model(&models.Student{}).Where("guardian_id = ?", guardian.ID).Count(&linked)
	if linked > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Guardian still has linked students",
		})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&guardian).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", guardian.UserID).
			Update("status", "inactive").Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete guardian",
		})
	}

	middleware.LogActivity(c, "DELETE", "guardians", guardian.ID, guardian)

	return c.JSON(fiber.Map{
		"message": "Guardian deleted successfully",
	})
}
