package services

import (
	"context"
	"time"

	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
)

// ===== CLASS RELATED DTOs =====

type CreateClassRequest struct {
	Name        string  `json:"name" validate:"required,class_name"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	TeacherID   *string `json:"teacher_id"`
	MaxStudents int     `json:"max_students" validate:"omitempty,min=0,max=10000"`
}

type UpdateClassRequest struct {
	Name        *string `json:"name" validate:"omitempty,class_name"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	TeacherID   *string `json:"teacher_id"`
	MaxStudents *int    `json:"max_students" validate:"omitempty,min=0,max=10000"`
}

type ClassResponse struct {
	*models.Class
	StudentCount int64            `json:"student_count"`
	Teacher      *TeacherResponse `json:"teacher,omitempty"`
	CanEdit      bool             `json:"can_edit"`
	CanDelete    bool             `json:"can_delete"`
}

type ClassListResponse struct {
	Classes []*ClassResponse `json:"classes"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Size    int              `json:"size"`
}

// ===== TEACHER RELATED DTOs =====

type CreateTeacherRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	ClassID   *uint  `json:"class_id"`
}

type UpdateTeacherRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
}

type TeacherResponse struct {
	*models.User
	ClassCount int64 `json:"class_count"`
}

type TeacherListResponse struct {
	Teachers []*TeacherResponse `json:"teachers"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// TeacherCredentials carries the generated login for a newly
// provisioned teacher account. Returned exactly once at creation.
type TeacherCredentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type CreateTeacherResponse struct {
	Teacher     *TeacherResponse    `json:"teacher"`
	Credentials *TeacherCredentials `json:"credentials,omitempty"`
}

// ===== STUDENT RELATED DTOs =====

type CreateStudentRequest struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   string  `json:"email" validate:"omitempty,email"`
	ClassID uint    `json:"class_id" validate:"required"`
	UserID  *string `json:"user_id"`

	// CreateAccount provisions a host account with generated
	// credentials for the student. Requires an email.
	CreateAccount bool `json:"create_account"`
}

type UpdateStudentRequest struct {
	Name    *string               `json:"name" validate:"omitempty,max=200"`
	Email   *string               `json:"email" validate:"omitempty,email"`
	ClassID *uint                 `json:"class_id"`
	Status  *models.StudentStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

type BulkStudentActionRequest struct {
	IDs     []uint `json:"ids" validate:"required,min=1"`
	Action  string `json:"action" validate:"required,oneof=delete assign_class activate deactivate"`
	ClassID *uint  `json:"class_id"`
}

// BulkStudentActionResponse reports per-item outcomes. Items are
// processed independently, a failure on one does not undo the rest.
type BulkStudentActionResponse struct {
	Processed int      `json:"processed"`
	Errors    []string `json:"errors,omitempty"`
}

type BulkDeleteResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors,omitempty"`
}

type StudentResponse struct {
	*models.Student
	Class *models.Class `json:"class,omitempty"`
}

type StudentListResponse struct {
	Students []*StudentResponse `json:"students"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// ===== PROMO CODE RELATED DTOs =====

type GeneratePromoCodesRequest struct {
	ClassID    uint       `json:"class_id" validate:"required"`
	Quantity   int        `json:"quantity" validate:"required,code_quantity"`
	Prefix     string     `json:"prefix" validate:"omitempty,code_prefix"`
	Length     int        `json:"length" validate:"omitempty,min=4,max=32"`
	UsageLimit int        `json:"usage_limit" validate:"omitempty,min=1,max=10000"`
	ExpiryDate *time.Time `json:"expiry_date" validate:"omitempty"`

	// TeacherID stamps the codes with an issuer other than the class
	// teacher. Empty means the class teacher.
	TeacherID string `json:"teacher_id"`
}

type UpdatePromoCodeRequest struct {
	Code       *string    `json:"code" validate:"omitempty,min=4,max=32"`
	ExpiryDate *time.Time `json:"expiry_date"`
	UsageLimit *int       `json:"usage_limit" validate:"omitempty,min=1,max=10000"`
}

type GeneratePromoCodesResponse struct {
	Codes     []string `json:"codes"`
	Requested int      `json:"requested"`
	Generated int      `json:"generated"`
	ClassID   uint     `json:"class_id"`
}

type PromoCodeResponse struct {
	*models.PromoCode
	Class     *models.Class `json:"class,omitempty"`
	Redeemed  bool          `json:"redeemed"`
	Exhausted bool          `json:"exhausted"`
	Expired   bool          `json:"expired"`
}

type PromoCodeListResponse struct {
	Codes []*PromoCodeResponse `json:"codes"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}

type RedeemPromoCodeRequest struct {
	Code         string `json:"code" validate:"required,max=50"`
	StudentID    *uint  `json:"student_id"`
	StudentName  string `json:"student_name" validate:"omitempty,max=200"`
	StudentEmail string `json:"student_email" validate:"omitempty,email"`
	UserID       string `json:"-"`
}

type RedeemPromoCodeResponse struct {
	Message   string        `json:"message"`
	ClassID   uint          `json:"class_id"`
	ClassName string        `json:"class_name"`
	StudentID uint          `json:"student_id"`
	Student   *models.Student `json:"student,omitempty"`
}

// ===== WIZARD RELATED DTOs =====

type WizardTeacherStepRequest struct {
	// TeacherID selects an existing teacher; the remaining fields
	// create a new one when it is empty.
	TeacherID string `json:"teacher_id" validate:"omitempty,max=255"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
}

type WizardClassStepRequest struct {
	Name        string  `json:"name" validate:"required,class_name"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	MaxStudents int     `json:"max_students" validate:"omitempty,min=0,max=10000"`
}

type WizardPromoCodeStepRequest struct {
	Quantity   int        `json:"quantity" validate:"required,min=1,max=100"`
	Prefix     string     `json:"prefix" validate:"omitempty,code_prefix"`
	ExpiryDate *time.Time `json:"expiry_date"`
}

type WizardSessionResponse struct {
	SessionID      string              `json:"session_id"`
	Step           models.WizardStep   `json:"step"`
	TeacherID      string              `json:"teacher_id,omitempty"`
	ClassID        uint                `json:"class_id,omitempty"`
	GeneratedCodes []string            `json:"generated_codes,omitempty"`
	Credentials    *TeacherCredentials `json:"credentials,omitempty"`
	Done           bool                `json:"done"`
}

// ===== IMPORT/EXPORT RELATED DTOs =====

// ExportType names the data sets available for import and export
type ExportType string

const (
	ExportStudents   ExportType = "students"
	ExportTeachers   ExportType = "teachers"
	ExportClasses    ExportType = "classes"
	ExportPromoCodes ExportType = "promo_codes"
)

type ExportResult struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
	RowCount    int    `json:"row_count"`
}

type ImportResult struct {
	Type      ExportType `json:"type"`
	Total     int        `json:"total"`
	Imported  int        `json:"imported"`
	Skipped   int        `json:"skipped"`
	RowErrors []string   `json:"row_errors,omitempty"`
}

// ===== NOTIFICATION RELATED DTOs =====

type NotificationRequest struct {
	Type     models.NotificationType     `json:"type" validate:"required"`
	Title    string                      `json:"title" validate:"required,max=200"`
	Message  string                      `json:"message" validate:"required,max=2000"`
	Priority models.NotificationPriority `json:"priority" validate:"omitempty,oneof=low normal high"`
	Data     map[string]interface{}      `json:"data,omitempty"`
}

// ===== SERVICE INTERFACES =====

type ClassService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateClassRequest, userID string) (*ClassResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ClassResponse, error)
	Update(ctx context.Context, id uint, req *UpdateClassRequest, userID string) (*ClassResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	DeleteBatch(ctx context.Context, ids []uint, userID string) (*BulkDeleteResponse, error)

	// List and search operations
	List(ctx context.Context, filters repositories.ClassFilters, userID string) (*ClassListResponse, error)
	GetByTeacher(ctx context.Context, teacherID string, filters repositories.ClassFilters) (*ClassListResponse, error)
	Search(ctx context.Context, query string, filters repositories.ClassFilters, userID string) (*ClassListResponse, error)

	// Roster
	GetStudents(ctx context.Context, classID uint, filters repositories.StudentFilters, userID string) (*StudentListResponse, error)

	// Teacher assignment
	AssignTeacher(ctx context.Context, classID uint, teacherID string, userID string) error
	UnassignTeacher(ctx context.Context, classID uint, userID string) error
}

type TeacherService interface {
	// Provisioning. Reuses an existing account matched by login, phone
	// or email, otherwise creates one with generated credentials.
	Create(ctx context.Context, req *CreateTeacherRequest, userID string) (*CreateTeacherResponse, error)

	GetByID(ctx context.Context, id string, userID string) (*TeacherResponse, error)
	Update(ctx context.Context, id string, req *UpdateTeacherRequest, userID string) (*TeacherResponse, error)

	// AssignRole grants the teacher role to an existing account
	AssignRole(ctx context.Context, id string, userID string) (*TeacherResponse, error)

	// RemoveRole strips the teacher role and unassigns every class that
	// referenced the teacher
	RemoveRole(ctx context.Context, id string, userID string) error

	// Delete removes the account entirely and unassigns its classes
	Delete(ctx context.Context, id string, userID string) error

	// List operations
	List(ctx context.Context, filters repositories.UserFilters, userID string) (*TeacherListResponse, error)

	// Classes taught
	GetClasses(ctx context.Context, teacherID string, filters repositories.ClassFilters) (*ClassListResponse, error)
}

type StudentService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateStudentRequest, userID string) (*StudentResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*StudentResponse, error)
	Update(ctx context.Context, id uint, req *UpdateStudentRequest, userID string) (*StudentResponse, error)

	// Delete removes the enrollment. The linked account is deleted too
	// when no other enrollment references it.
	Delete(ctx context.Context, id uint, userID string) error

	// BulkAction applies delete, assign_class, activate or deactivate
	// to a list of enrollments, item by item.
	BulkAction(ctx context.Context, req *BulkStudentActionRequest, userID string) (*BulkStudentActionResponse, error)

	// List operations
	List(ctx context.Context, filters repositories.StudentFilters, userID string) (*StudentListResponse, error)
	Count(ctx context.Context, filters repositories.StudentFilters, userID string) (int64, error)
	GetByClass(ctx context.Context, classID uint, filters repositories.StudentFilters, userID string) (*StudentListResponse, error)

	// EnsureForUser lazily materializes enrollment rows for an account
	// that signed in, one per class the account belongs to
	EnsureForUser(ctx context.Context, accountID string, classID uint) (*StudentResponse, error)
	GetClassesForUser(ctx context.Context, accountID string) ([]*ClassResponse, error)
}

type PromoCodeService interface {
	// Generate creates a batch of unique codes for a class. Partial
	// success is reported in the response; zero generated codes is an
	// error.
	Generate(ctx context.Context, req *GeneratePromoCodesRequest, userID string) (*GeneratePromoCodesResponse, error)

	// Redeem consumes one use of a code and enrolls the student. Safe
	// under concurrent redemptions of the same code.
	Redeem(ctx context.Context, req *RedeemPromoCodeRequest) (*RedeemPromoCodeResponse, error)

	// Get and list operations
	GetByID(ctx context.Context, id uint, userID string) (*PromoCodeResponse, error)
	GetByCode(ctx context.Context, code string, userID string) (*PromoCodeResponse, error)
	List(ctx context.Context, filters repositories.PromoCodeFilters, userID string) (*PromoCodeListResponse, error)

	// Update patches code string, expiry or usage limit. Code
	// uniqueness is enforced; the limit can never drop below the uses
	// already consumed.
	Update(ctx context.Context, id uint, req *UpdatePromoCodeRequest, userID string) (*PromoCodeResponse, error)

	// Delete operations
	Delete(ctx context.Context, id uint, userID string) error
	DeleteBatch(ctx context.Context, ids []uint, userID string) (int64, error)
}

type WizardService interface {
	// Start creates a fresh wizard session and returns its ID
	Start(ctx context.Context, userID string) (*WizardSessionResponse, error)
	GetSession(ctx context.Context, sessionID string, userID string) (*WizardSessionResponse, error)

	// Step submissions, forward-only
	SubmitTeacherStep(ctx context.Context, sessionID string, req *WizardTeacherStepRequest, userID string) (*WizardSessionResponse, error)
	SubmitClassStep(ctx context.Context, sessionID string, req *WizardClassStepRequest, userID string) (*WizardSessionResponse, error)
	SubmitPromoCodeStep(ctx context.Context, sessionID string, req *WizardPromoCodeStepRequest, userID string) (*WizardSessionResponse, error)

	// Complete finishes the wizard and discards the session
	Complete(ctx context.Context, sessionID string, userID string) (*WizardSessionResponse, error)
}

type ImportExportService interface {
	// Export operations
	ExportCSV(ctx context.Context, exportType ExportType, userID string) (*ExportResult, error)
	ExportXLSX(ctx context.Context, exportType ExportType, userID string) (*ExportResult, error)
	SampleCSV(exportType ExportType) (*ExportResult, error)

	// Import operations
	ImportCSV(ctx context.Context, exportType ExportType, data []byte, userID string) (*ImportResult, error)
}

type NotificationEventService interface {
	SendBulkNotification(ctx context.Context, userIDs []uint, notification *NotificationRequest) error
	NotifyCodeRedeemed(ctx context.Context, code *models.PromoCode, student *models.Student) error
	NotifyTeacherCredentials(ctx context.Context, teacher *models.User, credentials *TeacherCredentials) error
	NotifyStudentCredentials(ctx context.Context, student *models.Student, credentials *TeacherCredentials) error
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Class() ClassService
	Teacher() TeacherService
	Student() StudentService
	PromoCode() PromoCodeService
	Wizard() WizardService

	// Additional service getters
	ImportExport() ImportExportService
	NotificationEvent() NotificationEventService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
