package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/EduOps-2025/school-service/internal/events"
	"github.com/EduOps-2025/school-service/internal/models"
	"github.com/EduOps-2025/school-service/internal/repositories"
	"github.com/EduOps-2025/school-service/internal/validator"
)

// fakeRepo is an in-memory repository for service tests. Only the
// methods the promo code flows touch are implemented; the rest return
// not-found or zero values.
type fakeRepo struct {
	classes  map[uint]*models.Class
	students map[uint]*models.Student
	codes    map[uint]*models.PromoCode
	users    map[string]*models.User

	nextStudentID uint
	nextCodeID    uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		classes:       make(map[uint]*models.Class),
		students:      make(map[uint]*models.Student),
		codes:         make(map[uint]*models.PromoCode),
		users:         make(map[string]*models.User),
		nextStudentID: 1,
		nextCodeID:    1,
	}
}

func (f *fakeRepo) Class() repositories.ClassRepository         { return &fakeClassRepo{f} }
func (f *fakeRepo) Student() repositories.StudentRepository     { return &fakeStudentRepo{f} }
func (f *fakeRepo) PromoCode() repositories.PromoCodeRepository { return &fakePromoCodeRepo{f} }
func (f *fakeRepo) User() repositories.UserRepository           { return &fakeUserRepo{f} }
func (f *fakeRepo) WizardSession() repositories.WizardSessionRepository {
	return nil
}
func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type fakeClassRepo struct{ f *fakeRepo }

func (r *fakeClassRepo) Create(ctx context.Context, tx *gorm.DB, class *models.Class) error {
	r.f.classes[class.ID] = class
	return nil
}
func (r *fakeClassRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Class, error) {
	class, ok := r.f.classes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return class, nil
}
func (r *fakeClassRepo) Update(ctx context.Context, tx *gorm.DB, class *models.Class) error {
	r.f.classes[class.ID] = class
	return nil
}
func (r *fakeClassRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	delete(r.f.classes, id)
	return nil
}
func (r *fakeClassRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	var result []*models.Class
	for _, class := range r.f.classes {
		if filters.TeacherID != nil && class.TeacherID != *filters.TeacherID {
			continue
		}
		result = append(result, class)
	}
	return result, int64(len(result)), nil
}
func (r *fakeClassRepo) GetByTeacher(ctx context.Context, tx *gorm.DB, teacherID string, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	return r.List(ctx, tx, repositories.ClassFilters{TeacherID: &teacherID})
}
func (r *fakeClassRepo) Search(ctx context.Context, tx *gorm.DB, query string, filters repositories.ClassFilters) ([]*models.Class, int64, error) {
	return nil, 0, nil
}
func (r *fakeClassRepo) CountStudents(ctx context.Context, tx *gorm.DB, classID uint) (int64, error) {
	var count int64
	for _, student := range r.f.students {
		if student.ClassID == classID {
			count++
		}
	}
	return count, nil
}
func (r *fakeClassRepo) GetStudents(ctx context.Context, tx *gorm.DB, classID uint, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	return nil, 0, nil
}
func (r *fakeClassRepo) UnassignTeacher(ctx context.Context, tx *gorm.DB, teacherID string) (int64, error) {
	var count int64
	for _, class := range r.f.classes {
		if class.TeacherID == teacherID {
			class.TeacherID = ""
			count++
		}
	}
	return count, nil
}
func (r *fakeClassRepo) ExistsByID(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	_, ok := r.f.classes[id]
	return ok, nil
}

type fakeStudentRepo struct{ f *fakeRepo }

func (r *fakeStudentRepo) Create(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	if student.UserID != nil {
		for _, existing := range r.f.students {
			if existing.UserID != nil && *existing.UserID == *student.UserID && existing.ClassID == student.ClassID {
				return repositories.ErrDuplicateKey
			}
		}
	}
	student.ID = r.f.nextStudentID
	r.f.nextStudentID++
	r.f.students[student.ID] = student
	return nil
}
func (r *fakeStudentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Student, error) {
	student, ok := r.f.students[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return student, nil
}
func (r *fakeStudentRepo) Update(ctx context.Context, tx *gorm.DB, student *models.Student) error {
	r.f.students[student.ID] = student
	return nil
}
func (r *fakeStudentRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	delete(r.f.students, id)
	return nil
}
func (r *fakeStudentRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) ([]*models.Student, int64, error) {
	var result []*models.Student
	for _, student := range r.f.students {
		if filters.ClassID != nil && student.ClassID != *filters.ClassID {
			continue
		}
		result = append(result, student)
	}
	return result, int64(len(result)), nil
}
func (r *fakeStudentRepo) Count(ctx context.Context, tx *gorm.DB, filters repositories.StudentFilters) (int64, error) {
	var count int64
	for _, student := range r.f.students {
		if filters.ClassID != nil && student.ClassID != *filters.ClassID {
			continue
		}
		if filters.Status != nil && student.Status != *filters.Status {
			continue
		}
		count++
	}
	return count, nil
}
func (r *fakeStudentRepo) GetByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (*models.Student, error) {
	for _, student := range r.f.students {
		if student.UserID != nil && *student.UserID == userID && student.ClassID == classID {
			return student, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (r *fakeStudentRepo) GetByUser(ctx context.Context, tx *gorm.DB, userID string) ([]*models.Student, error) {
	return nil, nil
}
func (r *fakeStudentRepo) GetClassesForUser(ctx context.Context, tx *gorm.DB, userID string) ([]*repositories.ClassEnrollment, error) {
	return nil, nil
}
func (r *fakeStudentRepo) ExistsByUserAndClass(ctx context.Context, tx *gorm.DB, userID string, classID uint) (bool, error) {
	_, err := r.GetByUserAndClass(ctx, tx, userID, classID)
	return err == nil, nil
}
func (r *fakeStudentRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var count int64
	for _, student := range r.f.students {
		if student.UserID != nil && *student.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakePromoCodeRepo struct{ f *fakeRepo }

func (r *fakePromoCodeRepo) Create(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error {
	code.ID = r.f.nextCodeID
	r.f.nextCodeID++
	r.f.codes[code.ID] = code
	return nil
}
func (r *fakePromoCodeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PromoCode, error) {
	code, ok := r.f.codes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return code, nil
}
func (r *fakePromoCodeRepo) GetByCode(ctx context.Context, tx *gorm.DB, codeValue string) (*models.PromoCode, error) {
	for _, code := range r.f.codes {
		if code.Code == codeValue {
			return code, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (r *fakePromoCodeRepo) Update(ctx context.Context, tx *gorm.DB, code *models.PromoCode) error {
	r.f.codes[code.ID] = code
	return nil
}
func (r *fakePromoCodeRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	delete(r.f.codes, id)
	return nil
}
func (r *fakePromoCodeRepo) DeleteBatch(ctx context.Context, tx *gorm.DB, ids []uint) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if _, ok := r.f.codes[id]; ok {
			delete(r.f.codes, id)
			deleted++
		}
	}
	return deleted, nil
}
func (r *fakePromoCodeRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.PromoCodeFilters) ([]*models.PromoCode, int64, error) {
	var result []*models.PromoCode
	for _, code := range r.f.codes {
		if filters.TeacherID != nil && code.TeacherID != *filters.TeacherID {
			continue
		}
		result = append(result, code)
	}
	return result, int64(len(result)), nil
}
func (r *fakePromoCodeRepo) ConsumeUse(ctx context.Context, tx *gorm.DB, id uint, today time.Time) (bool, error) {
	code, ok := r.f.codes[id]
	if !ok {
		return false, nil
	}
	if code.IsExhausted() || code.IsExpired(today) {
		return false, nil
	}
	code.UsedCount++
	now := time.Now()
	code.UsedAt = &now
	return true, nil
}
func (r *fakePromoCodeRepo) LinkStudent(ctx context.Context, tx *gorm.DB, id uint, studentID uint) error {
	code, ok := r.f.codes[id]
	if !ok {
		return repositories.ErrNotFound
	}
	code.StudentID = &studentID
	return nil
}
func (r *fakePromoCodeRepo) ExistsByCode(ctx context.Context, tx *gorm.DB, codeValue string) (bool, error) {
	_, err := r.GetByCode(ctx, tx, codeValue)
	return err == nil, nil
}

type fakeUserRepo struct{ f *fakeRepo }

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return user, nil
}
func (r *fakeUserRepo) GetByName(ctx context.Context, name string) (*models.User, error) {
	for _, user := range r.f.users {
		if user.Name == name {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range r.f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}
func (r *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	return nil, nil
}
func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Name
	}
	r.f.users[user.ID] = user
	return nil
}
func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error {
	r.f.users[user.ID] = user
	return nil
}
func (r *fakeUserRepo) Delete(ctx context.Context, id string) error {
	delete(r.f.users, id)
	return nil
}
func (r *fakeUserRepo) AssignRole(ctx context.Context, id string, role models.UserRole) error {
	if user, ok := r.f.users[id]; ok {
		user.Role = role
	}
	return nil
}
func (r *fakeUserRepo) RemoveRole(ctx context.Context, id string, role models.UserRole) error {
	if user, ok := r.f.users[id]; ok && user.Role == role {
		user.Role = ""
	}
	return nil
}
func (r *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var result []*models.User
	for _, user := range r.f.users {
		if filters.Role != nil && user.Role != *filters.Role {
			continue
		}
		result = append(result, user)
	}
	return result, int64(len(result)), nil
}
func (r *fakeUserRepo) Search(ctx context.Context, query string, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}
func (r *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, ok := r.f.users[id]
	return ok, nil
}
func (r *fakeUserRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	_, err := r.GetByName(ctx, name)
	return err == nil, nil
}
func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}
func (r *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	user, ok := r.f.users[id]
	if !ok {
		return false, nil
	}
	return user.Role == role || user.Role == models.RoleAdmin, nil
}

// ===== TEST SETUP =====

func newTestPromoCodeService(repo repositories.Repository) PromoCodeService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPromoCodeService(repo, nil, logger, validator.New(), events.NewMockEventPublisher(logger), nil)
}

func seedClass(repo *fakeRepo, id uint, teacherID string) *models.Class {
	class := &models.Class{ID: id, Name: "Algebra I", TeacherID: teacherID}
	repo.classes[id] = class
	return class
}

func seedUser(repo *fakeRepo, id string, role models.UserRole) *models.User {
	user := &models.User{ID: id, Name: id, FullName: "User " + id, Email: id + "@example.com", Role: role}
	repo.users[id] = user
	return user
}

// ===== GENERATION TESTS =====

func TestPromoCodeService_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("generates requested quantity with valid characters", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		response, err := service.Generate(ctx, &GeneratePromoCodesRequest{
			ClassID:  1,
			Quantity: 5,
			Prefix:   "SCH",
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		if response.Generated != 5 || len(response.Codes) != 5 {
			t.Fatalf("Expected 5 codes, got %d", len(response.Codes))
		}

		seen := make(map[string]bool)
		for _, code := range response.Codes {
			if !strings.HasPrefix(code, "SCH") {
				t.Errorf("Code %q missing prefix", code)
			}
			suffix := strings.TrimPrefix(code, "SCH")
			if len(suffix) != models.DefaultCodeLength {
				t.Errorf("Code %q has suffix length %d, want %d", code, len(suffix), models.DefaultCodeLength)
			}
			for _, ch := range suffix {
				if !strings.ContainsRune(models.CodeAlphabet, ch) {
					t.Errorf("Code %q contains %q outside the alphabet", code, ch)
				}
			}
			if seen[code] {
				t.Errorf("Duplicate code %q in batch", code)
			}
			seen[code] = true
		}
	})

	t.Run("honors a custom code length", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		response, err := service.Generate(ctx, &GeneratePromoCodesRequest{
			ClassID:  1,
			Quantity: 3,
			Length:   6,
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		for _, code := range response.Codes {
			if len(code) != 6 {
				t.Errorf("Code %q has length %d, want 6", code, len(code))
			}
		}
	})

	t.Run("stamps codes with an explicit issuer", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "teacher-2", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{
			ClassID:   1,
			Quantity:  1,
			TeacherID: "teacher-2",
		}, "teacher-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		for _, code := range repo.codes {
			if code.TeacherID != "teacher-2" {
				t.Errorf("Expected issuer teacher-2, got %q", code.TeacherID)
			}
		}
	})

	t.Run("rejects a non-teacher issuer", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "user-1", models.RoleStudent)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{
			ClassID:   1,
			Quantity:  1,
			TeacherID: "user-1",
		}, "teacher-1")
		if !errors.Is(err, ErrTeacherNotFound) {
			t.Fatalf("Expected ErrTeacherNotFound, got %v", err)
		}
	})

	t.Run("defaults usage limit to one", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{ClassID: 1, Quantity: 1}, "teacher-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		for _, code := range repo.codes {
			if code.UsageLimit != 1 {
				t.Errorf("Expected usage limit 1, got %d", code.UsageLimit)
			}
		}
	})

	t.Run("unknown class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{ClassID: 99, Quantity: 1}, "teacher-1")
		if !errors.Is(err, ErrClassNotFound) {
			t.Errorf("Expected ErrClassNotFound, got %v", err)
		}
	})

	t.Run("teacher cannot generate for another teacher's class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "teacher-2", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{ClassID: 1, Quantity: 1}, "teacher-2")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})

	t.Run("admin can generate for any class", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "admin-1", models.RoleAdmin)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		response, err := service.Generate(ctx, &GeneratePromoCodesRequest{ClassID: 1, Quantity: 2}, "admin-1")
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if response.Generated != 2 {
			t.Errorf("Expected 2 codes, got %d", response.Generated)
		}
	})

	t.Run("quantity out of range", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Generate(ctx, &GeneratePromoCodesRequest{ClassID: 1, Quantity: models.MaxGenerateQuantity + 1}, "teacher-1")
		if err == nil {
			t.Error("Expected validation error for oversized batch")
		}
	})
}

// ===== REDEMPTION TESTS =====

func TestPromoCodeService_Redeem(t *testing.T) {
	ctx := context.Background()

	seedCode := func(repo *fakeRepo, code string, usageLimit, usedCount int, expiry *time.Time) *models.PromoCode {
		promo := &models.PromoCode{
			ID:         repo.nextCodeID,
			Code:       code,
			ClassID:    1,
			TeacherID:  "teacher-1",
			UsageLimit: usageLimit,
			UsedCount:  usedCount,
			ExpiryDate: expiry,
		}
		repo.codes[promo.ID] = promo
		repo.nextCodeID++
		return promo
	}

	t.Run("anonymous redemption enrolls a new student", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		seedCode(repo, "SCHABCDE", 1, 0, nil)
		service := newTestPromoCodeService(repo)

		response, err := service.Redeem(ctx, &RedeemPromoCodeRequest{
			Code:         "schabcde",
			StudentName:  "Ann Example",
			StudentEmail: "ann@example.com",
		})
		if err != nil {
			t.Fatalf("Redeem failed: %v", err)
		}

		if response.ClassName != "Algebra I" {
			t.Errorf("Expected class name in response, got %q", response.ClassName)
		}
		if !strings.Contains(response.Message, "Algebra I") {
			t.Errorf("Expected welcome message, got %q", response.Message)
		}

		student := repo.students[response.StudentID]
		if student == nil {
			t.Fatal("Expected student row to be created")
		}
		if student.ClassID != 1 || student.Name != "Ann Example" {
			t.Errorf("Unexpected enrollment %+v", student)
		}
		if student.Status != models.StudentActive {
			t.Errorf("Expected active status, got %s", student.Status)
		}

		code := repo.codes[1]
		if code.UsedCount != 1 {
			t.Errorf("Expected used count 1, got %d", code.UsedCount)
		}
		if code.StudentID == nil || *code.StudentID != student.ID {
			t.Error("Expected code to be linked to the enrollment")
		}
	})

	t.Run("signed-in redemption reuses the account enrollment", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		seedCode(repo, "SCHABCDE", 2, 0, nil)
		seedUser(repo, "user-1", models.RoleStudent)
		userID := "user-1"
		repo.students[7] = &models.Student{ID: 7, UserID: &userID, ClassID: 1, Name: "Existing", Status: models.StudentActive}
		service := newTestPromoCodeService(repo)

		response, err := service.Redeem(ctx, &RedeemPromoCodeRequest{Code: "SCHABCDE", UserID: "user-1"})
		if err != nil {
			t.Fatalf("Redeem failed: %v", err)
		}
		if response.StudentID != 7 {
			t.Errorf("Expected existing enrollment 7, got %d", response.StudentID)
		}
	})

	t.Run("exhausted code", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		seedCode(repo, "SCHUSED1", 1, 1, nil)
		service := newTestPromoCodeService(repo)

		_, err := service.Redeem(ctx, &RedeemPromoCodeRequest{Code: "SCHUSED1", StudentName: "A", StudentEmail: "a@example.com"})
		if !errors.Is(err, ErrCodeLimitReached) {
			t.Errorf("Expected ErrCodeLimitReached, got %v", err)
		}
	})

	t.Run("expired code", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		yesterday := time.Now().AddDate(0, 0, -2)
		seedCode(repo, "SCHOLD22", 1, 0, &yesterday)
		service := newTestPromoCodeService(repo)

		_, err := service.Redeem(ctx, &RedeemPromoCodeRequest{Code: "SCHOLD22", StudentName: "A", StudentEmail: "a@example.com"})
		if !errors.Is(err, ErrCodeExpired) {
			t.Errorf("Expected ErrCodeExpired, got %v", err)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		service := newTestPromoCodeService(repo)

		_, err := service.Redeem(ctx, &RedeemPromoCodeRequest{Code: "NOPE1234", StudentName: "A", StudentEmail: "a@example.com"})
		if !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Expected ErrInvalidCode, got %v", err)
		}
	})

	t.Run("anonymous redemption requires student details", func(t *testing.T) {
		repo := newFakeRepo()
		seedClass(repo, 1, "teacher-1")
		seedCode(repo, "SCHNEW11", 1, 0, nil)
		service := newTestPromoCodeService(repo)

		_, err := service.Redeem(ctx, &RedeemPromoCodeRequest{Code: "SCHNEW11"})
		if err == nil {
			t.Error("Expected validation error for missing student details")
		}
	})
}

// ===== DELETE TESTS =====

func TestPromoCodeService_DeleteBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("teacher cannot delete another teacher's codes", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		seedUser(repo, "teacher-2", models.RoleTeacher)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "A", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 1}
		service := newTestPromoCodeService(repo)

		_, err := service.DeleteBatch(ctx, []uint{1}, "teacher-2")
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("Expected ErrForbidden, got %v", err)
		}
	})

	t.Run("admin deletes across teachers and skips unknown ids", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "admin-1", models.RoleAdmin)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "A", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 1}
		repo.codes[2] = &models.PromoCode{ID: 2, Code: "B", TeacherID: "teacher-2", ClassID: 2, UsageLimit: 1}
		service := newTestPromoCodeService(repo)

		deleted, err := service.DeleteBatch(ctx, []uint{1, 2, 99}, "admin-1")
		if err != nil {
			t.Fatalf("DeleteBatch failed: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Expected 2 deletions, got %d", deleted)
		}
	})
}

func TestPromoCodeService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("patches expiry and usage limit", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "MATH2026", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 1}
		service := newTestPromoCodeService(repo)

		expiry := time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC)
		limit := 5
		response, err := service.Update(ctx, 1, &UpdatePromoCodeRequest{ExpiryDate: &expiry, UsageLimit: &limit}, "teacher-1")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if response.UsageLimit != 5 || response.ExpiryDate == nil || !response.ExpiryDate.Equal(expiry) {
			t.Errorf("Unexpected code after update: limit %d expiry %v", response.UsageLimit, response.ExpiryDate)
		}
	})

	t.Run("rejects limit below consumed uses", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "MATH2026", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 5, UsedCount: 3}
		service := newTestPromoCodeService(repo)

		limit := 2
		_, err := service.Update(ctx, 1, &UpdatePromoCodeRequest{UsageLimit: &limit}, "teacher-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})

	t.Run("rejects renaming to a taken code", func(t *testing.T) {
		repo := newFakeRepo()
		seedUser(repo, "teacher-1", models.RoleTeacher)
		repo.codes[1] = &models.PromoCode{ID: 1, Code: "MATH2026", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 1}
		repo.codes[2] = &models.PromoCode{ID: 2, Code: "SCI2026", TeacherID: "teacher-1", ClassID: 1, UsageLimit: 1}
		service := newTestPromoCodeService(repo)

		taken := "sci2026"
		_, err := service.Update(ctx, 1, &UpdatePromoCodeRequest{Code: &taken}, "teacher-1")
		if !errors.Is(err, ErrValidationFailed) {
			t.Fatalf("Expected ErrValidationFailed, got %v", err)
		}
	})
}

func TestRandomCodeSuffix(t *testing.T) {
	suffix, err := randomCodeSuffix(models.DefaultCodeLength)
	if err != nil {
		t.Fatalf("randomCodeSuffix failed: %v", err)
	}
	if len(suffix) != models.DefaultCodeLength {
		t.Errorf("Expected length %d, got %d", models.DefaultCodeLength, len(suffix))
	}
	for _, ch := range suffix {
		if !strings.ContainsRune(models.CodeAlphabet, ch) {
			t.Errorf("Character %q outside the alphabet", ch)
		}
	}
}
