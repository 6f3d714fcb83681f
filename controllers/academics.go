package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
)

// AcademicsController manages grades, sections, academic years and terms.
type AcademicsController struct{}

// GetGrades returns all grades with their sections
func (ac *AcademicsController) GetGrades(c *fiber.Ctx) error {
	var grades []models.Grade
	query := database.DB.Preload("Sections").Order("level")
	if c.Query("active", "true") == "true" {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&grades).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch grades",
		})
	}
	return c.JSON(fiber.Map{"grades": grades})
}

// CreateGrade creates a grade
func (ac *AcademicsController) CreateGrade(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name" validate:"required"`
		Level int    `json:"level" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and level are required",
		})
	}

	var existing models.Grade
	if err := database.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Grade name already exists",
		})
	}

	grade := models.Grade{Name: req.Name, Level: req.Level, Active: true}
	if err := database.DB.Create(&grade).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create grade",
		})
	}

	middleware.LogActivity(c, "CREATE", "grades", grade.ID, grade)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Grade created successfully",
		"grade":   grade,
	})
}

// UpdateGrade updates a grade
func (ac *AcademicsController) UpdateGrade(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var grade models.Grade
	if err := database.DB.First(&grade, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Grade not found"})
	}

	var req struct {
		Name   string `json:"name"`
		Level  *int   `json:"level"`
		Active *bool  `json:"active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Level != nil {
		updates["level"] = *req.Level
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := database.DB.Model(&grade).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update grade"})
	}

	middleware.LogActivity(c, "UPDATE", "grades", grade.ID, updates)

	return c.JSON(fiber.Map{"message": "Grade updated successfully", "grade": grade})
}

// CreateSection creates a section under a grade
func (ac *AcademicsController) CreateSection(c *fiber.Ctx) error {
	gradeID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid grade ID"})
	}

	var grade models.Grade
	if err := database.DB.First(&grade, uint(gradeID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Grade not found"})
	}

	var req struct {
		Name     string `json:"name" validate:"required"`
		Capacity int    `json:"capacity"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	var existing models.Section
	if err := database.DB.Where("grade_id = ? AND name = ?", grade.ID, req.Name).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Section already exists in this grade"})
	}

	section := models.Section{GradeID: grade.ID, Name: req.Name, Capacity: req.Capacity}
	if err := database.DB.Create(&section).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create section"})
	}

	middleware.LogActivity(c, "CREATE", "sections", section.ID, section)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Section created successfully",
		"section": section,
	})
}

// GetAcademicYears returns all academic years with terms
func (ac *AcademicsController) GetAcademicYears(c *fiber.Ctx) error {
	var years []models.AcademicYear
	if err := database.DB.Preload("Terms", func(db *gorm.DB) *gorm.DB {
		return db.Order("number")
	}).Order("start_date DESC").Find(&years).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch academic years",
		})
	}
	return c.JSON(fiber.Map{"academic_years": years})
}

// CreateAcademicYear creates a year with its terms in one request
func (ac *AcademicsController) CreateAcademicYear(c *fiber.Ctx) error {
	var req struct {
		Name      string    `json:"name" validate:"required"`
		StartDate time.Time `json:"start_date" validate:"required"`
		EndDate   time.Time `json:"end_date" validate:"required"`
		Terms     []struct {
			Name      string    `json:"name"`
			Number    int       `json:"number"`
			StartDate time.Time `json:"start_date"`
			EndDate   time.Time `json:"end_date"`
		} `json:"terms"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name, start_date and end_date are required"})
	}
	if !req.EndDate.After(req.StartDate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date must be after start_date"})
	}

	var existing models.AcademicYear
	if err := database.DB.Where("name = ?", req.Name).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Academic year already exists"})
	}

	var year models.AcademicYear
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		year = models.AcademicYear{
			Name:      req.Name,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
		}
		if err := tx.Create(&year).Error; err != nil {
			return err
		}
		for _, t := range req.Terms {
			term := models.Term{
				AcademicYearID: year.ID,
				Name:           t.Name,
				Number:         t.Number,
				StartDate:      t.StartDate,
				EndDate:        t.EndDate,
			}
			if err := tx.Create(&term).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create academic year"})
	}

	database.DB.Preload("Terms").First(&year, year.ID)

	middleware.LogActivity(c, "CREATE", "academic_years", year.ID, year)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Academic year created successfully",
		"academic_year": year,
	})
}

// ActivateAcademicYear marks one year active and deactivates the rest
func (ac *AcademicsController) ActivateAcademicYear(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid academic year ID"})
	}

	var year models.AcademicYear
	if err := database.DB.First(&year, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Academic year not found"})
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AcademicYear{}).Where("active = ?", true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&year).Update("active", true).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to activate academic year"})
	}

	middleware.LogActivity(c, "UPDATE", "academic_years", year.ID, fiber.Map{"action": "activate"})

	return c.JSON(fiber.Map{
		"message":       "Academic year activated",
		"academic_year": year,
	})
}

// CreateTerm adds a term to a year
func (ac *AcademicsController) CreateTerm(c *fiber.Ctx) error {
	yearID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid academic year ID"})
	}

	var year models.AcademicYear
	if err := database.DB.First(&year, uint(yearID)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Academic year not found"})
	}

	var req struct {
		Name      string    `json:"name" validate:"required"`
		Number    int       `json:"number" validate:"required"`
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.Number == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name and number are required"})
	}

	var existing models.Term
	if err := database.DB.Where("academic_year_id = ? AND number = ?", year.ID, req.Number).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Term number already exists in this year"})
	}

	term := models.Term{
		AcademicYearID: year.ID,
		Name:           req.Name,
		Number:         req.Number,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := database.DB.Create(&term).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create term"})
	}

	middleware.LogActivity(c, "CREATE", "terms", term.ID, term)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Term created successfully",
		"term":    term,
	})
}
