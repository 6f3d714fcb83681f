package seeders

import (
	"log"
	"time"

	"greenvale_go/database"
	"greenvale_go/models"
	"greenvale_go/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedUsers()
	SeedGrades()
	SeedAcademicYear()

	log.Println("Database seeding completed successfully!")
}

// SeedUsers seeds the initial admin account
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	hashedPassword, _ := utils.HashPassword("changeme123")

	admin := models.User{
		Username: "admin",
		Password: hashedPassword,
		Email:    utils.NullIfEmpty("admin@greenvale.ac.ke"),
		Phone:    "0712000000",
		Role:     models.RoleAdmin,
		Status:   "active",
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Printf("Error seeding admin user: %v", err)
		return
	}

	log.Println("Users seeded successfully")
}

// SeedGrades seeds the grade ladder with one section each
func SeedGrades() {
	var count int64
	database.DB.Model(&models.Grade{}).Count(&count)
	if count > 0 {
		log.Println("Grades already seeded, skipping...")
		return
	}

	grades := []models.Grade{
		{Name: "Grade 1", Level: 1, Active: true},
		{Name: "Grade 2", Level: 2, Active: true},
		{Name: "Grade 3", Level: 3, Active: true},
		{Name: "Grade 4", Level: 4, Active: true},
		{Name: "Grade 5", Level: 5, Active: true},
		{Name: "Grade 6", Level: 6, Active: true},
		{Name: "Grade 7", Level: 7, Active: true},
		{Name: "Grade 8", Level: 8, Active: true},
	}

	for _, grade := range grades {
		if err := database.DB.Create(&grade).Error; err != nil {
			log.Printf("Error seeding grade %s: %v", grade.Name, err)
			continue
		}
		section := models.Section{GradeID: grade.ID, Name: "A", Capacity: 40}
		if err := database.DB.Create(&section).Error; err != nil {
			log.Printf("Error seeding section for %s: %v", grade.Name, err)
		}
	}

	log.Println("Grades seeded successfully")
}

// SeedAcademicYear seeds the current academic year with three terms
func SeedAcademicYear() {
	var count int64
	database.DB.Model(&models.AcademicYear{}).Count(&count)
	if count > 0 {
		log.Println("Academic years already seeded, skipping...")
		return
	}

	yearStart := time.Date(time.Now().Year(), 1, 6, 0, 0, 0, 0, time.UTC)
	year := models.AcademicYear{
		Name:      yearStart.Format("2006"),
		StartDate: yearStart,
		EndDate:   yearStart.AddDate(0, 10, 20),
		Active:    true,
	}
	if err := database.DB.Create(&year).Error; err != nil {
		log.Printf("Error seeding academic year: %v", err)
		return
	}

	terms := []models.Term{
		{AcademicYearID: year.ID, Name: "Term 1", Number: 1,
			StartDate: yearStart, EndDate: yearStart.AddDate(0, 3, 0)},
		{AcademicYearID: year.ID, Name: "Term 2", Number: 2,
			StartDate: yearStart.AddDate(0, 4, 0), EndDate: yearStart.AddDate(0, 7, 0)},
		{AcademicYearID: year.ID, Name: "Term 3", Number: 3,
			StartDate: yearStart.AddDate(0, 8, 0), EndDate: yearStart.AddDate(0, 10, 20)},
	}
	for _, term := range terms {
		if err := database.DB.Create(&term).Error; err != nil {
			log.Printf("Error seeding term %s: %v", term.Name, err)
		}
	}

	log.Println("Academic year seeded successfully")
}
