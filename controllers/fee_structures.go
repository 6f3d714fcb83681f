package controllers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"greenvale_go/database"
	"greenvale_go/middleware"
	"greenvale_go/models"
)

type FeeStructureController struct{}

// chargesTolerance absorbs float rounding when checking that the stated
// total matches basic fee plus itemized charges.
const chargesTolerance = 0.005

// GetFeeStructures returns fee structures with filters
func (fc *FeeStructureController) GetFeeStructures(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset := (page - 1) * limit

	var structures []models.FeeStructure
	var total int64

	query := database.DB.Model(&models.FeeStructure{})

	if gradeID := c.Query("grade_id"); gradeID != "" {
		query = query.Where("grade_id = ?", gradeID)
	}
	if termID := c.Query("term_id"); termID != "" {
		query = query.Where("term_id = ?", termID)
	}
	if yearID := c.Query("academic_year_id"); yearID != "" {
		query = query.Where("academic_year_id = ?", yearID)
	}
	if c.Query("active", "true") == "true" {
		query = query.Where("is_active = ?", true)
	}

	query.Count(&total)

	if err := query.Preload("Grade").Preload("Term").Preload("AcademicYear").
		Offset(offset).Limit(limit).Find(&structures).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch fee structures",
		})
	}

	return c.JSON(fiber.Map{
		"fee_structures": structures,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetFeeStructure returns one fee structure with its assignment stats
func (fc *FeeStructureController) GetFeeStructure(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee structure ID"})
	}

	var structure models.FeeStructure
	if err := database.DB.Preload("Grade").Preload("Term").Preload("AcademicYear").
		First(&structure, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fee structure not found"})
	}

	var assigned int64
	database.DB.Model(&models.StudentFee{}).Where("fee_structure_id = ?", structure.ID).Count(&assigned)

	return c.JSON(fiber.Map{
		"fee_structure": structure,
		"charges":       structure.Charges(),
		"assigned":      assigned,
	})
}

type feeStructureRequest struct {
	GradeID           uint               `json:"grade_id" validate:"required"`
	TermID            uint               `json:"term_id" validate:"required"`
	AcademicYearID    uint               `json:"academic_year_id" validate:"required"`
	BasicFee          float64            `json:"basic_fee" validate:"required"`
	AdditionalCharges []models.FeeCharge `json:"additional_charges"`
	TotalFee          float64            `json:"total_fee" validate:"required"`
}

func (req *feeStructureRequest) validate() error {
	if req.GradeID == 0 || req.TermID == 0 || req.AcademicYearID == 0 {
		return fmt.Errorf("grade_id, term_id and academic_year_id are required")
	}
	if req.BasicFee < 0 || req.TotalFee < 0 {
		return fmt.Errorf("fees must not be negative")
	}
	var chargesSum float64
	for _, ch := range req.AdditionalCharges {
		if ch.Amount < 0 {
			return fmt.Errorf("charge %q must not be negative", ch.Description)
		}
		chargesSum += ch.Amount
	}
	if req.TotalFee == 0 {
		req.TotalFee = req.BasicFee + chargesSum
	} else if math.Abs(req.TotalFee-(req.BasicFee+chargesSum)) > chargesTolerance {
		return fmt.Errorf("total_fee must equal basic_fee plus additional charges (%0.2f + %0.2f)", req.BasicFee, chargesSum)
	}
	return nil
}

// CreateFeeStructure creates a fee structure. The stated total must equal
// the basic fee plus the sum of itemized charges.
func (fc *FeeStructureController) CreateFeeStructure(c *fiber.Ctx) error {
	var req feeStructureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := req.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var term models.Term
	if err := database.DB.Where("id = ? AND academic_year_id = ?", req.TermID, req.AcademicYearID).First(&term).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Term does not belong to the academic year"})
	}

	var existing models.FeeStructure
	if err := database.DB.Where("grade_id = ? AND term_id = ? AND academic_year_id = ? AND is_active = ?",
		req.GradeID, req.TermID, req.AcademicYearID, true).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "An active fee structure already exists for this grade and term",
		})
	}

	chargesJSON, _ := json.Marshal(req.AdditionalCharges)

	structure := models.FeeStructure{
		GradeID:           req.GradeID,
		TermID:            req.TermID,
		AcademicYearID:    req.AcademicYearID,
		BasicFee:          req.BasicFee,
		AdditionalCharges: chargesJSON,
		TotalFee:          req.TotalFee,
		IsActive:          true,
	}
	if err := database.DB.Create(&structure).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create fee structure"})
	}

	middleware.LogActivity(c, "CREATE", "fee_structures", structure.ID, structure)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Fee structure created successfully",
		"fee_structure": structure,
	})
}

// UpdateFeeStructure updates charges on a structure that has no payments yet
func (fc *FeeStructureController) UpdateFeeStructure(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee structure ID"})
	}

	var structure models.FeeStructure
	if err := database.DB.First(&structure, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fee structure not found"})
	}

	var paid int64
	database.DB.Model(&models.StudentFee{}).
		Where("fee_structure_id = ? AND amount_paid > 0", structure.ID).Count(&paid)
	if paid > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Fee structure already has recorded payments; create a new structure instead",
		})
	}

	var req feeStructureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.GradeID = structure.GradeID
	req.TermID = structure.TermID
	req.AcademicYearID = structure.AcademicYearID
	if err := req.validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	chargesJSON, _ := json.Marshal(req.AdditionalCharges)
	updates := map[string]interface{}{
		"basic_fee":          req.BasicFee,
		"additional_charges": models.JSON(chargesJSON),
		"total_fee":          req.TotalFee,
	}
	if err := database.DB.Model(&structure).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update fee structure"})
	}

	// Unpaid assignments track the new total.
	database.DB.Model(&models.StudentFee{}).
		Where("fee_structure_id = ? AND amount_paid = 0", structure.ID).
		Updates(map[string]interface{}{"balance": req.TotalFee, "payment_status": models.FeeStatusUnpaid})

	middleware.LogActivity(c, "UPDATE", "fee_structures", structure.ID, updates)

	return c.JSON(fiber.Map{
		"message":       "Fee structure updated successfully",
		"fee_structure": structure,
	})
}

// DeactivateFeeStructure retires a structure without touching existing fees
func (fc *FeeStructureController) DeactivateFeeStructure(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee structure ID"})
	}

	var structure models.FeeStructure
	if err := database.DB.First(&structure, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fee structure not found"})
	}

	if err := database.DB.Model(&structure).Update("is_active", false).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate fee structure"})
	}

	middleware.LogActivity(c, "UPDATE", "fee_structures", structure.ID, fiber.Map{"action": "deactivate"})

	return c.JSON(fiber.Map{"message": "Fee structure deactivated"})
}

// AssignFeeStructure fans out StudentFee rows to every active student of the
// structure's grade. Students who already hold a fee for the structure are
// skipped.
func (fc *FeeStructureController) AssignFeeStructure(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid fee structure ID"})
	}

	var structure models.FeeStructure
	if err := database.DB.First(&structure, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Fee structure not found"})
	}
	if !structure.IsActive {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Fee structure is not active"})
	}

	var students []models.Student
	if err := database.DB.Where("grade_id = ? AND status = ?", structure.GradeID, "active").
		Find(&students).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load students"})
	}

	created := 0
	skipped := 0
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for _, student := range students {
			var existing models.StudentFee
			if err := tx.Where("student_id = ? AND fee_structure_id = ?", student.ID, structure.ID).
				First(&existing).Error; err == nil {
				skipped++
				continue
			} else if err != gorm.ErrRecordNotFound {
				return err
			}

			fee := models.StudentFee{
				StudentID:      student.ID,
				FeeStructureID: structure.ID,
				AmountPaid:     0,
				Balance:        structure.TotalFee,
				PaymentStatus:  models.FeeStatusUnpaid,
			}
			if err := tx.Create(&fee).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to assign fee structure"})
	}

	middleware.LogActivity(c, "CREATE", "student_fees", structure.ID, fiber.Map{
		"action":  "assign_fee_structure",
		"created": created,
		"skipped": skipped,
	})

	return c.JSON(fiber.Map{
		"message": "Fee structure assigned",
		"created": created,
		"skipped": skipped,
	})
}

// Import creates fee structures from a CSV or XLSX file.
// Expected columns: Grade, Year, Term, BasicFee, TotalFee and optional
// Charges (JSON array of {description, amount}).
func (fc *FeeStructureController) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
	}
	defer file.Close()

	filename := strings.ToLower(fileHeader.Filename)
	var rows [][]string
	var parseErr error

	if strings.HasSuffix(filename, ".csv") {
		rows, parseErr = readCSV(file)
	} else if strings.HasSuffix(filename, ".xlsx") || strings.HasSuffix(filename, ".xls") {
		tmpDir, _ := os.MkdirTemp("", "gvxls-")
		tmp := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(fileHeader.Filename)))
		if err := c.SaveFile(fileHeader, tmp); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to buffer upload"})
		}
		rows, parseErr = readXLSX(tmp)
		_ = os.RemoveAll(tmpDir)
	} else {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (csv, xlsx)"})
	}
	if parseErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}
	if len(rows) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}

	col := buildColumnIndex(rows[0])
	required := []string{"Grade", "Year", "Term", "BasicFee", "TotalFee"}
	for _, r := range required {
		if _, ok := col[r]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("missing column: %s", r)})
		}
	}

	created := 0
	skipped := 0
	var errorsList []string

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		for i := 1; i < len(rows); i++ {
			r := rows[i]
			get := func(key string) string {
				if idx, ok := col[key]; ok && idx < len(r) {
					return strings.TrimSpace(r[idx])
				}
				return ""
			}

			var grade models.Grade
			if err := tx.Where("name = ?", get("Grade")).First(&grade).Error; err != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: unknown grade %q", i+1, get("Grade")))
				continue
			}

			var year models.AcademicYear
			if err := tx.Where("name = ?", get("Year")).First(&year).Error; err != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: unknown academic year %q", i+1, get("Year")))
				continue
			}

			termNumber, _ := strconv.Atoi(get("Term"))
			var term models.Term
			if err := tx.Where("academic_year_id = ? AND (number = ? OR name = ?)",
				year.ID, termNumber, get("Term")).First(&term).Error; err != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: unknown term %q", i+1, get("Term")))
				continue
			}

			basicFee, err1 := strconv.ParseFloat(strings.ReplaceAll(get("BasicFee"), ",", ""), 64)
			totalFee, err2 := strconv.ParseFloat(strings.ReplaceAll(get("TotalFee"), ",", ""), 64)
			if err1 != nil || err2 != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: invalid fee amount", i+1))
				continue
			}

			var charges []models.FeeCharge
			if raw := get("Charges"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &charges); err != nil {
					errorsList = append(errorsList, fmt.Sprintf("row %d: invalid charges JSON", i+1))
					continue
				}
			}

			req := feeStructureRequest{
				GradeID:           grade.ID,
				TermID:            term.ID,
				AcademicYearID:    year.ID,
				BasicFee:          basicFee,
				AdditionalCharges: charges,
				TotalFee:          totalFee,
			}
			if err := req.validate(); err != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: %v", i+1, err))
				continue
			}

			var existing models.FeeStructure
			if err := tx.Where("grade_id = ? AND term_id = ? AND academic_year_id = ? AND is_active = ?",
				grade.ID, term.ID, year.ID, true).First(&existing).Error; err == nil {
				skipped++
				continue
			}

			chargesJSON, _ := json.Marshal(charges)
			structure := models.FeeStructure{
				GradeID:           grade.ID,
				TermID:            term.ID,
				AcademicYearID:    year.ID,
				BasicFee:          basicFee,
				AdditionalCharges: chargesJSON,
				TotalFee:          totalFee,
				IsActive:          true,
			}
			if err := tx.Create(&structure).Error; err != nil {
				errorsList = append(errorsList, fmt.Sprintf("row %d: %v", i+1, err))
				continue
			}
			created++
		}
		return nil
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	middleware.LogActivity(c, "CREATE", "fee_structures", 0, fiber.Map{
		"action":  "import",
		"file":    fileHeader.Filename,
		"created": created,
		"skipped": skipped,
	})

	return c.JSON(fiber.Map{
		"success":       true,
		"file_name":     fileHeader.Filename,
		"data_rows":     len(rows) - 1,
		"imported_rows": created,
		"skipped_rows":  skipped,
		"errors_count":  len(errorsList),
		"has_errors":    len(errorsList) > 0,
		"errors":        errorsList,
	})
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

func buildColumnIndex(header []string) map[string]int {
	m := map[string]int{}
	for i, h := range header {
		m[strings.TrimSpace(h)] = i
	}
	return m
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
