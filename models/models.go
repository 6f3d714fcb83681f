package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Role values for User.Role.
const (
	RoleAdmin    = "admin"
	RoleTeacher  = "teacher"
	RoleStudent  = "student"
	RoleGuardian = "guardian"
)

// User model
type User struct {
	BaseModel
	Username string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	// NULL when not provided; the unique index would otherwise reject the
	// second user created without an email.
	Email  *string `json:"email" gorm:"size:255;uniqueIndex"`
	Phone  string  `json:"phone" gorm:"size:20"`
	LineID string  `json:"line_id" gorm:"size:100"`
	Role   string  `json:"role" gorm:"size:50;not null;default:'student';type:enum('admin','teacher','student','guardian')"` // admin, teacher, student, guardian
	Status string  `json:"status" gorm:"size:50;not null;default:'active';type:enum('active','inactive','suspended')"`       // active, inactive, suspended
	Avatar string  `json:"avatar" gorm:"size:500"`

	// Relationships
	Student  *Student  `json:"student,omitempty" gorm:"foreignKey:UserID"`
	Teacher  *Teacher  `json:"teacher,omitempty" gorm:"foreignKey:UserID"`
	Guardian *Guardian `json:"guardian,omitempty" gorm:"foreignKey:UserID"`
}

// AcademicYear model. Exactly one year should be active at a time.
type AcademicYear struct {
	BaseModel
	Name      string    `json:"name" gorm:"size:20;not null;uniqueIndex"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active" gorm:"default:false"`

	// Relationships
	Terms []Term `json:"terms,omitempty" gorm:"foreignKey:AcademicYearID"`
}

// Term model. Number orders terms within a year (1, 2, 3).
type Term struct {
	BaseModel
	AcademicYearID uint      `json:"academic_year_id" gorm:"not null;index"`
	Name           string    `json:"name" gorm:"size:50;not null"`
	Number         int       `json:"number" gorm:"not null"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`

	// Relationships
	AcademicYear AcademicYear `json:"academic_year,omitempty" gorm:"foreignKey:AcademicYearID"`
}

// Grade model
type Grade struct {
	BaseModel
	Name   string `json:"name" gorm:"size:50;not null;uniqueIndex"`
	Level  int    `json:"level" gorm:"not null"`
	Active bool   `json:"active" gorm:"default:true"`

	// Relationships
	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:GradeID"`
}

// Section model
type Section struct {
	BaseModel
	GradeID  uint   `json:"grade_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"size:50;not null"`
	Capacity int    `json:"capacity"`

	// Relationships
	Grade Grade `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}

// Student model. Grade membership is referenced by GradeID only; there is
// no free-text grade column.
type Student struct {
	BaseModel
	UserID        uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	AdmissionNo   string     `json:"admission_no" gorm:"size:50;not null;uniqueIndex"`
	FirstName     string     `json:"first_name" gorm:"size:100"`
	LastName      string     `json:"last_name" gorm:"size:100"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	Gender        string     `json:"gender" gorm:"size:20"`
	Address       string     `json:"address" gorm:"size:500"`
	GradeID       uint       `json:"grade_id" gorm:"not null;index"`
	SectionID     uint       `json:"section_id" gorm:"index"`
	GuardianID    uint       `json:"guardian_id" gorm:"index"`
	AdmissionDate *time.Time `json:"admission_date"`
	Status        string     `json:"status" gorm:"size:50;default:'active';type:enum('active','inactive','graduated','transferred')"` // active, inactive, graduated, transferred

	// Relationships
	User     User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Grade    Grade     `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Section  Section   `json:"section,omitempty" gorm:"foreignKey:SectionID"`
	Guardian *Guardian `json:"guardian,omitempty" gorm:"foreignKey:GuardianID"`
}

// Guardian model
type Guardian struct {
	BaseModel
	UserID       uint   `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName    string `json:"first_name" gorm:"size:100"`
	LastName     string `json:"last_name" gorm:"size:100"`
	Phone        string `json:"phone" gorm:"size:20"`
	Relationship string `json:"relationship" gorm:"size:50"` // mother, father, other
	Occupation   string `json:"occupation" gorm:"size:100"`

	// Relationships
	User     User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Students []Student `json:"students,omitempty" gorm:"foreignKey:GuardianID"`
}

// Teacher model
type Teacher struct {
	BaseModel
	UserID        uint    `json:"user_id" gorm:"uniqueIndex;not null"`
	StaffNo       *string `json:"staff_no" gorm:"size:50;uniqueIndex"`
	FirstName     string  `json:"first_name" gorm:"size:100"`
	LastName      string  `json:"last_name" gorm:"size:100"`
	Subjects      string  `json:"subjects" gorm:"size:500"`
	Qualification string  `json:"qualification" gorm:"size:255"`
	Active        bool    `json:"active" gorm:"default:true"`

	// Relationships
	User        User                `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Assignments []TeacherAssignment `json:"assignments,omitempty" gorm:"foreignKey:TeacherID"`
}

// TeacherAssignment links a teacher to a grade/section for a subject.
// Homework access control is resolved through these rows.
type TeacherAssignment struct {
	BaseModel
	TeacherID uint   `json:"teacher_id" gorm:"not null;index"`
	GradeID   uint   `json:"grade_id" gorm:"not null;index"`
	SectionID uint   `json:"section_id" gorm:"index"` // 0 means every section of the grade
	Subject   string `json:"subject" gorm:"size:100"`

	// Relationships
	Teacher Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Grade   Grade   `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
}

// Homework model
type Homework struct {
	BaseModel
	TeacherID     uint      `json:"teacher_id" gorm:"not null;index"`
	GradeID       uint      `json:"grade_id" gorm:"not null;index"`
	SectionID     uint      `json:"section_id" gorm:"index"`
	Subject       string    `json:"subject" gorm:"size:100"`
	Title         string    `json:"title" gorm:"size:255;not null"`
	Description   string    `json:"description" gorm:"type:text"`
	DueDate       time.Time `json:"due_date"`
	AttachmentKey string    `json:"attachment_key" gorm:"size:500"`
	Status        string    `json:"status" gorm:"size:50;default:'open';type:enum('open','closed')"` // open, closed

	// Relationships
	Teacher Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Grade   Grade   `json:"grade,omitempty" gorm:"foreignKey:GradeID"`
	Section Section `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

// HomeworkSubmission model
type HomeworkSubmission struct {
	BaseModel
	HomeworkID  uint       `json:"homework_id" gorm:"not null;index"`
	StudentID   uint       `json:"student_id" gorm:"not null;index"`
	FileKey     string     `json:"file_key" gorm:"size:500"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Score       *float64   `json:"score"`
	Remarks     string     `json:"remarks" gorm:"type:text"`
	GradedByID  uint       `json:"graded_by_id"`
	GradedAt    *time.Time `json:"graded_at"`

	// Relationships
	Homework Homework `json:"homework,omitempty" gorm:"foreignKey:HomeworkID"`
	Student  Student  `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// SmsLog records every outbound SMS and its delivery outcome.
type SmsLog struct {
	BaseModel
	Phone       string     `json:"phone" gorm:"size:20;not null;index"`
	Message     string     `json:"message" gorm:"type:text;not null"`
	Status      string     `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','sent','failed','delivered')"` // pending, sent, failed, delivered
	ProviderRef string     `json:"provider_ref" gorm:"size:100"`
	Error       string     `json:"error" gorm:"type:text"`
	SentByID    uint       `json:"sent_by_id"`
	SentAt      *time.Time `json:"sent_at"`
	Resource    string     `json:"resource" gorm:"size:100"` // e.g. student_fees, homework
	ResourceID  uint       `json:"resource_id"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID   uint       `json:"user_id" gorm:"not null;index"`
	Title    string     `json:"title" gorm:"size:255;not null"`
	Message  string     `json:"message" gorm:"type:text;not null"`
	Type     string     `json:"type" gorm:"size:50;not null;type:enum('info','warning','error','success')"` // info, warning, error, success
	Read     bool       `json:"read" gorm:"default:false"`
	ReadAt   *time.Time `json:"read_at"`
	Channels JSON       `json:"channels" gorm:"type:json"`
	Data     JSON       `json:"data" gorm:"type:json"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','completed','failed')"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}
